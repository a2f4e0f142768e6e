package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectGeometry(t *testing.T) {
	r := Rect{X1: 10, Y1: 20, X2: 110, Y2: 70}

	assert.Equal(t, 100, r.Width(), "width should span X1 to X2")
	assert.Equal(t, 50, r.Height(), "height should span Y1 to Y2")
	assert.Equal(t, 5000, r.Area(), "area should be width times height")

	cx, cy := r.Center()
	assert.Equal(t, 60, cx, "center x should be midpoint")
	assert.Equal(t, 45, cy, "center y should be midpoint")
}

func TestCalculateIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float32
	}{
		{
			name: "identical boxes",
			a:    Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:    Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			want: 1.0,
		},
		{
			name: "disjoint boxes",
			a:    Rect{X1: 0, Y1: 0, X2: 50, Y2: 50},
			b:    Rect{X1: 100, Y1: 100, X2: 150, Y2: 150},
			want: 0.0,
		},
		{
			name: "touching edges",
			a:    Rect{X1: 0, Y1: 0, X2: 50, Y2: 50},
			b:    Rect{X1: 50, Y1: 0, X2: 100, Y2: 50},
			want: 0.0,
		},
		{
			name: "half horizontal overlap",
			a:    Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:    Rect{X1: 50, Y1: 0, X2: 150, Y2: 100},
			// intersection 50*100=5000, union 10000+10000-5000=15000
			want: float32(5000) / float32(15000),
		},
		{
			name: "contained box",
			a:    Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:    Rect{X1: 25, Y1: 25, X2: 75, Y2: 75},
			want: 0.25,
		},
		{
			name: "degenerate boxes",
			a:    Rect{X1: 10, Y1: 10, X2: 10, Y2: 10},
			b:    Rect{X1: 10, Y1: 10, X2: 10, Y2: 10},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateIoU(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.want, CalculateIoU(tt.b, tt.a), 1e-6, "IoU should be symmetric")
		})
	}
}
