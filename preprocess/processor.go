// Package preprocess - Letterbox preprocessing for detection backends.
package preprocess

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rovercam/go-detect/images"
	"github.com/rovercam/go-detect/postprocess"
)

// padValue is the neutral gray used to fill the letterbox canvas, the
// conventional value for YOLO-family models.
const padValue = 114

// ScaleInfo records the geometry of one letterbox transform so detections can
// be mapped back into original-frame coordinates.
type ScaleInfo struct {
	// Scale is the uniform resize factor applied to both axes.
	Scale float64 `json:"scale"`
	// PadX and PadY are the left and top padding offsets in canvas pixels.
	PadX int `json:"pad_x"`
	PadY int `json:"pad_y"`
	// NewWidth and NewHeight are the resized dimensions before padding.
	NewWidth  int `json:"new_width"`
	NewHeight int `json:"new_height"`
}

// IdentityScaleInfo describes a transform that changed nothing.
func IdentityScaleInfo(width, height int) ScaleInfo {
	return ScaleInfo{Scale: 1.0, NewWidth: width, NewHeight: height}
}

// Result carries the preprocessed frame and the metadata needed to invert the
// transform.
type Result struct {
	// Frame is the letterboxed raster, always exactly the configured target
	// size on success. Three-channel output is RGB order.
	Frame *images.Frame
	// Tensor is the CHW float32 representation in [0, 1], nil unless
	// normalization was requested.
	Tensor []float32
	// OriginalSize is the input (width, height).
	OriginalSize [2]int
	// ProcessedSize is the output (width, height).
	ProcessedSize [2]int
	// ScaleInfo inverts the transform.
	ScaleInfo ScaleInfo
	// ProcessingTime is the wall time spent in Preprocess.
	ProcessingTime time.Duration
	// Normalized reports whether Tensor was populated.
	Normalized bool
	// Err is set when preprocessing failed and the original frame was
	// returned unmodified. Preprocess never fails loudly.
	Err error
}

// Processor performs letterbox preprocessing and its inverse. Stateless per
// call apart from running statistics.
type Processor struct {
	mu        sync.Mutex
	inputSize [2]int
	logger    *zap.Logger

	totalFrames  int64
	totalTime    time.Duration
	lastDuration time.Duration
}

// NewProcessor creates a frame processor targeting the given (width, height).
// A nil logger disables logging.
func NewProcessor(inputSize [2]int, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("frame processor initialized",
		zap.Int("target_width", inputSize[0]),
		zap.Int("target_height", inputSize[1]))
	return &Processor{inputSize: inputSize, logger: logger}
}

// InputSize returns the current letterbox target as (width, height).
func (p *Processor) InputSize() [2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputSize
}

// SetInputSize updates the letterbox target for subsequent calls.
func (p *Processor) SetInputSize(inputSize [2]int) {
	p.mu.Lock()
	p.inputSize = inputSize
	p.mu.Unlock()
	p.logger.Info("frame processor input size updated",
		zap.Int("target_width", inputSize[0]),
		zap.Int("target_height", inputSize[1]))
}

// ValidateFrame reports whether the frame is usable: non-nil, three
// dimensions worth of data, a supported channel count, and non-zero size.
func (p *Processor) ValidateFrame(frame *images.Frame) bool {
	return frame.Valid()
}

// Preprocess letterboxes a frame for backend input.
//
// The frame is resized by scale = min(targetW/w, targetH/h), preserving
// aspect ratio, then centered on a canvas of the target size filled with
// neutral padding. Three-channel frames are converted from BGR to RGB. When
// normalize is set, the result also carries a CHW float32 tensor with pixel
// intensities rescaled into [0, 1].
//
// Any internal failure is recovered: the result then carries the original
// frame, an identity ScaleInfo, and a non-nil Err. The call never panics and
// never returns an error to the caller.
func (p *Processor) Preprocess(frame *images.Frame, normalize bool) *Result {
	start := time.Now()

	res, err := p.letterbox(frame, normalize)
	if err != nil {
		p.logger.Error("frame preprocessing failed", zap.Error(err))
		var w, h int
		if frame != nil {
			w, h = frame.Width, frame.Height
		}
		res = &Result{
			Frame:         frame,
			OriginalSize:  [2]int{w, h},
			ProcessedSize: [2]int{w, h},
			ScaleInfo:     IdentityScaleInfo(w, h),
			Err:           err,
		}
	}

	res.ProcessingTime = time.Since(start)

	p.mu.Lock()
	p.totalFrames++
	p.totalTime += res.ProcessingTime
	p.lastDuration = res.ProcessingTime
	p.mu.Unlock()

	return res
}

func (p *Processor) letterbox(frame *images.Frame, normalize bool) (res *Result, err error) {
	// Backends can feed arbitrary rasters here; recover rather than let a
	// malformed frame take down the pipeline.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.Errorf("preprocessing panic: %v", r)
		}
	}()

	if !frame.Valid() {
		return nil, errors.New("invalid input frame")
	}

	size := p.InputSize()
	targetW, targetH := size[0], size[1]
	w, h := frame.Width, frame.Height

	scale := math.Min(float64(targetW)/float64(w), float64(targetH)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW <= 0 || newH <= 0 {
		return nil, errors.Errorf("degenerate resize target %dx%d", newW, newH)
	}

	resized := frame
	if newW != w || newH != h {
		img := resize.Resize(uint(newW), uint(newH), frame.ToImage(), resize.Bilinear)
		resized, err = images.FrameFromImage(img, frame.Channels)
		if err != nil {
			return nil, errors.Wrap(err, "resizing frame")
		}
	}

	canvas := images.NewUniformFrame(targetW, targetH, frame.Channels, padValue)
	padX := (targetW - newW) / 2
	padY := (targetH - newH) / 2
	blit(canvas, resized, padX, padY)

	if canvas.Channels >= 3 {
		canvas.SwapRB()
	}

	res = &Result{
		Frame:         canvas,
		OriginalSize:  [2]int{w, h},
		ProcessedSize: [2]int{targetW, targetH},
		ScaleInfo: ScaleInfo{
			Scale:     scale,
			PadX:      padX,
			PadY:      padY,
			NewWidth:  newW,
			NewHeight: newH,
		},
		Normalized: normalize,
	}
	if normalize {
		res.Tensor = toTensor(canvas)
	}
	return res, nil
}

// blit copies src into dst at the given offset. Rows are copied wholesale;
// both frames must share a channel count.
func blit(dst, src *images.Frame, offsetX, offsetY int) {
	rowBytes := src.Width * src.Channels
	for y := 0; y < src.Height; y++ {
		dstOff := ((y+offsetY)*dst.Width + offsetX) * dst.Channels
		copy(dst.Data[dstOff:dstOff+rowBytes], src.Data[y*rowBytes:(y+1)*rowBytes])
	}
}

// toTensor converts a frame into CHW float32 with intensities in [0, 1].
func toTensor(frame *images.Frame) []float32 {
	planeSize := frame.Width * frame.Height
	tensor := make([]float32, planeSize*frame.Channels)
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			for c := 0; c < frame.Channels; c++ {
				tensor[c*planeSize+y*frame.Width+x] = float32(frame.At(x, y, c)) / 255.0
			}
		}
	}
	return tensor
}

// PostprocessDetections maps letterbox-space results back into original-frame
// coordinates: padding offsets are subtracted, coordinates divided by the
// resize scale, and both axes clipped to the original dimensions. This
// exactly inverts Preprocess for any box inside the original frame.
func (p *Processor) PostprocessDetections(
	results []postprocess.Result,
	info ScaleInfo,
	originalW, originalH int,
) []postprocess.Result {
	if len(results) == 0 {
		return results
	}

	scale := float32(info.Scale)
	mapped := make([]postprocess.Result, len(results))
	for i, r := range results {
		r.Box.X1 = clampF((r.Box.X1-float32(info.PadX))/scale, 0, float32(originalW))
		r.Box.X2 = clampF((r.Box.X2-float32(info.PadX))/scale, 0, float32(originalW))
		r.Box.Y1 = clampF((r.Box.Y1-float32(info.PadY))/scale, 0, float32(originalH))
		r.Box.Y2 = clampF((r.Box.Y2-float32(info.PadY))/scale, 0, float32(originalH))
		mapped[i] = r
	}
	return mapped
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Stats is a snapshot of the processor's running counters.
type Stats struct {
	TotalFrames       int64   `json:"total_frames"`
	TotalTime         float64 `json:"total_processing_time"`
	LastTime          float64 `json:"last_processing_time"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	AvgFPS            float64 `json:"avg_fps"`
}

// GetStats derives average time and fps on demand from the running counters.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		TotalFrames: p.totalFrames,
		TotalTime:   p.totalTime.Seconds(),
		LastTime:    p.lastDuration.Seconds(),
	}
	if p.totalFrames > 0 {
		s.AvgProcessingTime = s.TotalTime / float64(p.totalFrames)
		if s.AvgProcessingTime > 0 {
			s.AvgFPS = 1.0 / s.AvgProcessingTime
		}
	}
	return s
}

// ResetStats clears the running counters.
func (p *Processor) ResetStats() {
	p.mu.Lock()
	p.totalFrames = 0
	p.totalTime = 0
	p.lastDuration = 0
	p.mu.Unlock()
	p.logger.Info("frame processor statistics reset")
}

// String describes the processor for logs.
func (p *Processor) String() string {
	size := p.InputSize()
	return fmt.Sprintf("Processor(target=%dx%d)", size[0], size[1])
}
