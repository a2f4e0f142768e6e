package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float32
	}{
		{
			name: "identical",
			a:    Box{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:    Box{X1: 0, Y1: 0, X2: 100, Y2: 100},
			want: 1.0,
		},
		{
			name: "disjoint",
			a:    Box{X1: 0, Y1: 0, X2: 50, Y2: 50},
			b:    Box{X1: 60, Y1: 60, X2: 100, Y2: 100},
			want: 0.0,
		},
		{
			name: "quarter contained",
			a:    Box{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:    Box{X1: 25, Y1: 25, X2: 75, Y2: 75},
			want: 0.25,
		},
		{
			name: "degenerate",
			a:    Box{X1: 5, Y1: 5, X2: 5, Y2: 5},
			b:    Box{X1: 5, Y1: 5, X2: 5, Y2: 5},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.a.IoU(tt.b), 1e-6)
			assert.InDelta(t, tt.want, tt.b.IoU(tt.a), 1e-6, "IoU should be symmetric")
		})
	}
}

func TestBoxArea(t *testing.T) {
	assert.InDelta(t, 5000.0, Box{X1: 0, Y1: 0, X2: 100, Y2: 50}.Area(), 1e-6)
	assert.InDelta(t, 0.0, Box{X1: 100, Y1: 100, X2: 50, Y2: 50}.Area(), 1e-6,
		"inverted boxes should clamp to zero area")
}

func TestScaleBoxes(t *testing.T) {
	results := []Result{
		{Box: Box{X1: 64, Y1: 64, X2: 320, Y2: 320}, Score: 0.9, Class: 0},
		{Box: Box{X1: -10, Y1: 0, X2: 700, Y2: 640}, Score: 0.8, Class: 2},
	}

	scaled := ScaleBoxes(results, 640, 640, 1920, 1080)
	require.Len(t, scaled, 2)

	// 1920/640 = 3.0 horizontally, 1080/640 = 1.6875 vertically.
	assert.InDelta(t, 192.0, scaled[0].Box.X1, 1e-3)
	assert.InDelta(t, 960.0, scaled[0].Box.X2, 1e-3)
	assert.InDelta(t, 108.0, scaled[0].Box.Y1, 1e-3)
	assert.InDelta(t, 540.0, scaled[0].Box.Y2, 1e-3)
	assert.Equal(t, results[0].Score, scaled[0].Score, "score should pass through")
	assert.Equal(t, results[0].Class, scaled[0].Class, "class should pass through")

	// Out-of-frame coordinates clamp to the target dimensions.
	assert.InDelta(t, 0.0, scaled[1].Box.X1, 1e-3)
	assert.InDelta(t, 1920.0, scaled[1].Box.X2, 1e-3)
	assert.InDelta(t, 1080.0, scaled[1].Box.Y2, 1e-3)

	// Input slice is untouched.
	assert.InDelta(t, 64.0, results[0].Box.X1, 1e-6)
}
