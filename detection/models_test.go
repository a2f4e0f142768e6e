package detection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxGeometry(t *testing.T) {
	b := BoundingBox{X1: 100, Y1: 200, X2: 300, Y2: 260}

	assert.Equal(t, 200, b.Width())
	assert.Equal(t, 60, b.Height())
	assert.Equal(t, 12000, b.Area())

	cx, cy := b.Center()
	assert.Equal(t, 200, cx)
	assert.Equal(t, 230, cy)
}

func TestDetectionJSONShape(t *testing.T) {
	d := Detection{
		Class:      ClassPerson,
		Confidence: 0.85,
		BBox:       BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 40},
		Timestamp:  1700000000.5,
		FrameID:    1700000000500,
	}

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.Equal(t, "person", m["object_class"])
	assert.Contains(t, m, "confidence")
	assert.Contains(t, m, "frame_id")
	assert.Nil(t, m["tracking_id"], "untracked detections should serialize a null tracking id")

	bbox, ok := m["bbox"].(map[string]any)
	require.True(t, ok, "bbox should nest its corners")
	assert.Equal(t, float64(10), bbox["x1"])
	assert.Equal(t, float64(40), bbox["y2"])
}

func TestDefaultClassNames(t *testing.T) {
	require.Len(t, DefaultClassNames, 80)

	// Zero-indexed with no background entry: person is index 0.
	assert.Equal(t, "person", DefaultClassNames[0])
	assert.Equal(t, "car", DefaultClassNames[2])
	assert.Equal(t, "cat", DefaultClassNames[15])
	assert.Equal(t, "dog", DefaultClassNames[16])
	assert.Equal(t, "toothbrush", DefaultClassNames[79])

	seen := map[string]bool{}
	for _, name := range DefaultClassNames {
		assert.False(t, seen[name], "duplicate class name: %s", name)
		seen[name] = true
	}
}
