// Package postprocess - Box algebra for raw detection outputs.
package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is a float-precision bounding box in whatever coordinate frame the
// backend emitted. Integer truncation happens only once, after the box has
// been rescaled into original-frame coordinates.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float32 {
	w := math32.Max(0, b.X2-b.X1)
	h := math32.Max(0, b.Y2-b.Y1)
	return w * h
}

// IoU computes the Intersection over Union of two boxes. The intersection
// rectangle is clamped to non-negative width and height, and a zero union
// yields 0 rather than dividing by zero.
func (b Box) IoU(o Box) float32 {
	ix1 := math32.Max(b.X1, o.X1)
	iy1 := math32.Max(b.Y1, o.Y1)
	ix2 := math32.Min(b.X2, o.X2)
	iy2 := math32.Min(b.Y2, o.Y2)

	interW := math32.Max(0, ix2-ix1)
	interH := math32.Max(0, iy2-iy1)
	intersection := interW * interH

	union := b.Area() + o.Area() - intersection
	if union == 0 {
		return 0
	}
	return intersection / union
}

func (b Box) String() string {
	return fmt.Sprintf("(%f, %f), (%f, %f)", b.X1, b.Y1, b.X2, b.Y2)
}

// Result represents a single raw detection before class mapping.
type Result struct {
	// The bounding box of the result.
	Box Box
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// ScaleBoxes rescales every result from one coordinate frame to another by
// independent x and y ratios, then clamps into [0, to] on both axes so no box
// ever lands outside the target frame. A new slice is returned; the input is
// not modified.
func ScaleBoxes(results []Result, fromW, fromH, toW, toH int) []Result {
	xScale := float32(toW) / float32(fromW)
	yScale := float32(toH) / float32(fromH)

	scaled := make([]Result, len(results))
	for i, r := range results {
		r.Box.X1 = math32.Min(math32.Max(r.Box.X1*xScale, 0), float32(toW))
		r.Box.X2 = math32.Min(math32.Max(r.Box.X2*xScale, 0), float32(toW))
		r.Box.Y1 = math32.Min(math32.Max(r.Box.Y1*yScale, 0), float32(toH))
		r.Box.Y2 = math32.Min(math32.Max(r.Box.Y2*yScale, 0), float32(toH))
		scaled[i] = r
	}
	return scaled
}
