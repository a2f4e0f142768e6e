package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Frame is a decoded raster image in height-major HWC layout with 8 bits per
// channel. Three-channel frames use BGR channel order, matching what camera
// capture collaborators deliver.
type Frame struct {
	// Data holds Height*Width*Channels bytes, row by row.
	Data []uint8
	// Width is the number of columns.
	Width int
	// Height is the number of rows.
	Height int
	// Channels is 1 (grayscale), 3 (BGR), or 4 (BGRA).
	Channels int
}

// NewFrame allocates a zero-filled frame.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Data:     make([]uint8, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// NewUniformFrame allocates a frame with every channel of every pixel set to
// value. Used for letterbox padding canvases.
func NewUniformFrame(width, height, channels int, value uint8) *Frame {
	f := NewFrame(width, height, channels)
	for i := range f.Data {
		f.Data[i] = value
	}
	return f
}

// Valid reports whether the frame is a well-formed raster: non-nil, non-empty,
// a supported channel count, and a data buffer matching its dimensions.
func (f *Frame) Valid() bool {
	if f == nil {
		return false
	}
	if f.Width <= 0 || f.Height <= 0 {
		return false
	}
	if f.Channels != 1 && f.Channels != 3 && f.Channels != 4 {
		return false
	}
	return len(f.Data) == f.Width*f.Height*f.Channels
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Data:     make([]uint8, len(f.Data)),
		Width:    f.Width,
		Height:   f.Height,
		Channels: f.Channels,
	}
	copy(c.Data, f.Data)
	return c
}

// At returns the value of channel c at pixel (x, y). No bounds checking.
func (f *Frame) At(x, y, c int) uint8 {
	return f.Data[(y*f.Width+x)*f.Channels+c]
}

// Set stores value into channel c at pixel (x, y). No bounds checking.
func (f *Frame) Set(x, y, c int, value uint8) {
	f.Data[(y*f.Width+x)*f.Channels+c] = value
}

// SwapRB exchanges the first and third channel of every pixel in place,
// converting between BGR and RGB order. Frames with fewer than three channels
// are left untouched.
func (f *Frame) SwapRB() {
	if f.Channels < 3 {
		return
	}
	for i := 0; i < len(f.Data); i += f.Channels {
		f.Data[i], f.Data[i+2] = f.Data[i+2], f.Data[i]
	}
}

// ToImage converts the frame into a Go-native image for interop with resize
// libraries. Three- and four-channel frames are assumed BGR(A) and come back
// as RGBA in true color order; single-channel frames come back as Gray.
func (f *Frame) ToImage() image.Image {
	if f.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Data[y*f.Width:(y+1)*f.Width])
		}
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			b := f.At(x, y, 0)
			g := f.At(x, y, 1)
			r := f.At(x, y, 2)
			a := uint8(255)
			if f.Channels == 4 {
				a = f.At(x, y, 3)
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

// FrameFromImage converts a Go-native image back into a frame with the given
// channel count, inverting the color-order convention of ToImage.
func FrameFromImage(img image.Image, channels int) (*Frame, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, errors.Errorf("unsupported channel count: %d", channels)
	}

	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy(), channels)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			switch channels {
			case 1:
				// Rec. 601 luma weights, same as image/color.GrayModel.
				gray := (299*r + 587*g + 114*b + 500) / 1000
				f.Set(x, y, 0, uint8(gray>>8))
			case 4:
				f.Set(x, y, 3, uint8(a>>8))
				fallthrough
			case 3:
				f.Set(x, y, 0, uint8(b>>8))
				f.Set(x, y, 1, uint8(g>>8))
				f.Set(x, y, 2, uint8(r>>8))
			}
		}
	}
	return f, nil
}
