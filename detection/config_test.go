package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, [2]int{640, 640}, cfg.Detector.InputSize)
	assert.InDelta(t, 0.5, cfg.Detector.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.4, cfg.Detector.NMSThreshold, 1e-6)
	assert.Contains(t, cfg.Detector.EnabledClasses, "person")
}

func TestDetectorConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectorConfig)
		errMsg string
	}{
		{"confidence too high", func(c *DetectorConfig) { c.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"confidence negative", func(c *DetectorConfig) { c.ConfidenceThreshold = -0.1 }, "confidence_threshold"},
		{"nms too high", func(c *DetectorConfig) { c.NMSThreshold = 2 }, "nms_threshold"},
		{"zero input width", func(c *DetectorConfig) { c.InputSize[0] = 0 }, "input_size"},
		{"negative input height", func(c *DetectorConfig) { c.InputSize[1] = -640 }, "input_size"},
		{"zero target fps", func(c *DetectorConfig) { c.TargetFPS = 0 }, "target_fps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig().Detector
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPerformanceConfigValidate(t *testing.T) {
	cfg := DefaultConfig().Performance
	require.NoError(t, cfg.Validate())

	cfg.FrameBufferSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig().Performance
	cfg.ProcessingThreads = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig().Performance
	cfg.MaxCPUUsage = 150
	assert.Error(t, cfg.Validate())
}

func TestConfigMapRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.ConfidenceThreshold = 0.75
	cfg.Detector.EnabledClasses = []string{"person"}

	m, err := cfg.ToMap()
	require.NoError(t, err)
	require.Contains(t, m, "yolo", "detector section should serialize under the yolo key")

	back, err := ConfigFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestConfigFromMapPartialDocument(t *testing.T) {
	// Only the detector section is supplied; everything else keeps defaults.
	m := map[string]any{
		"yolo": map[string]any{
			"confidence_threshold": 0.9,
		},
	}

	cfg, err := ConfigFromMap(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.Detector.ConfidenceThreshold, 1e-6)
	assert.Equal(t, DefaultConfig().Performance, cfg.Performance)
}

func TestConfigFromMapRejectsInvalid(t *testing.T) {
	m := map[string]any{
		"yolo": map[string]any{
			"confidence_threshold": 3.0,
		},
	}
	_, err := ConfigFromMap(m)
	assert.Error(t, err)
}
