package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovercam/go-detect/detection"
	"github.com/rovercam/go-detect/images"
)

// newMockEngine builds an engine in a directory with no model files, so the
// acquisition chain falls through to the mock backend.
func newMockEngine(t *testing.T, cfg *detection.Config) *Engine {
	t.Helper()
	eng, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func testFrame() *images.Frame {
	return images.NewUniformFrame(640, 480, 3, 128)
}

func TestNewEngineFallsBackToMock(t *testing.T) {
	eng := newMockEngine(t, nil)

	assert.True(t, eng.IsReady(), "the mock terminal makes construction infallible")
	assert.Equal(t, ModelTypeMock, eng.ModelType())

	info := eng.Info()
	assert.Equal(t, ModelTypeMock, info.ModelType)
	assert.True(t, info.IsLoaded)
	assert.Equal(t, 80, info.ClassCount)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.Detector.ConfidenceThreshold = 2.0

	_, err := NewEngine(cfg, nil)
	assert.Error(t, err)
}

func TestDetectObjectsInvalidFrame(t *testing.T) {
	eng := newMockEngine(t, nil)

	assert.Empty(t, eng.DetectObjects(nil))
	assert.Empty(t, eng.DetectObjects(&images.Frame{Width: 10, Height: 10, Channels: 3}))

	stats := eng.Stats()
	assert.Equal(t, int64(0), stats["total_inferences"],
		"rejected frames should not touch the counters")
}

func TestDetectObjectsMockCatalog(t *testing.T) {
	eng := newMockEngine(t, nil)

	dets := eng.DetectObjects(testFrame())
	require.Len(t, dets, 3, "defaults enable person, dog and cat from the catalog")

	byClass := map[detection.ObjectClass]detection.Detection{}
	for _, d := range dets {
		byClass[d.Class] = d
	}

	person, ok := byClass[detection.ClassPerson]
	require.True(t, ok)
	assert.InDelta(t, 0.85, person.Confidence, 1e-6)
	assert.Equal(t, detection.BoundingBox{X1: 160, Y1: 120, X2: 320, Y2: 360}, person.BBox,
		"mock boxes are proportional to the frame size")

	dog, ok := byClass[detection.ClassDog]
	require.True(t, ok)
	assert.InDelta(t, 0.75, dog.Confidence, 1e-6)

	cat, ok := byClass[detection.ClassCat]
	require.True(t, ok)
	assert.InDelta(t, 0.65, cat.Confidence, 1e-6)

	for _, d := range dets {
		assert.Greater(t, d.FrameID, int64(0))
		assert.Greater(t, d.Timestamp, 0.0)
		assert.Nil(t, d.TrackingID)
	}
}

func TestClassFilterRestrictsMockOutput(t *testing.T) {
	eng := newMockEngine(t, nil)
	require.NoError(t, eng.SetEnabledClasses([]string{"person"}))

	dets := eng.DetectObjects(testFrame())
	require.NotEmpty(t, dets)
	for _, d := range dets {
		assert.Equal(t, detection.ClassPerson, d.Class)
	}
}

func TestSetEnabledClasses(t *testing.T) {
	eng := newMockEngine(t, nil)

	// All names invalid: rejected, filter unchanged.
	err := eng.SetEnabledClasses([]string{"unicorn", "dragon"})
	require.Error(t, err)
	assert.True(t, eng.IsClassEnabled("person"))

	// Mixed valid and invalid: invalid names dropped, valid applied.
	require.NoError(t, eng.SetEnabledClasses([]string{"dog", "unicorn"}))
	assert.Equal(t, []string{"dog"}, eng.EnabledClasses())
	assert.False(t, eng.IsClassEnabled("person"))
	assert.True(t, eng.IsClassEnabled("dog"))
}

func TestEnableDisableClass(t *testing.T) {
	eng := newMockEngine(t, nil)

	assert.False(t, eng.EnableClass("unicorn"))
	assert.True(t, eng.EnableClass("truck"))
	assert.True(t, eng.IsClassEnabled("truck"))
	assert.True(t, eng.EnableClass("truck"), "enabling twice is a no-op that still succeeds")

	assert.True(t, eng.DisableClass("truck"))
	assert.False(t, eng.IsClassEnabled("truck"))
	assert.False(t, eng.DisableClass("truck"), "already disabled")
}

func TestDisableClassFromImplicitAll(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.Detector.EnabledClasses = nil // implicit: everything enabled
	eng := newMockEngine(t, cfg)

	assert.True(t, eng.IsClassEnabled("zebra"))
	assert.True(t, eng.DisableClass("zebra"))
	assert.False(t, eng.IsClassEnabled("zebra"))

	// The complement materialized: every other class is still explicit.
	assert.True(t, eng.IsClassEnabled("person"))
	assert.Len(t, eng.EnabledClasses(), 79)
}

func TestAvailableClasses(t *testing.T) {
	eng := newMockEngine(t, nil)

	classes := eng.AvailableClasses()
	require.Len(t, classes, 80)
	assert.Equal(t, "person", classes[0])

	classes[0] = "mutated"
	assert.Equal(t, "person", eng.AvailableClasses()[0], "callers get a copy")
}

func TestValidateClassNames(t *testing.T) {
	eng := newMockEngine(t, nil)

	assert.Empty(t, eng.ValidateClassNames([]string{"person", "dog"}))
	assert.Equal(t, []string{"unicorn"}, eng.ValidateClassNames([]string{"person", "unicorn"}))
}

func TestThresholdMutators(t *testing.T) {
	eng := newMockEngine(t, nil)

	require.NoError(t, eng.SetConfidenceThreshold(0.8))
	assert.InDelta(t, 0.8, eng.Info().ConfidenceThreshold, 1e-6)
	assert.Error(t, eng.SetConfidenceThreshold(1.5))
	assert.Error(t, eng.SetConfidenceThreshold(-0.1))

	require.NoError(t, eng.SetNMSThreshold(0.3))
	assert.InDelta(t, 0.3, eng.Info().NMSThreshold, 1e-6)
	assert.Error(t, eng.SetNMSThreshold(2))
}

func TestClassStatistics(t *testing.T) {
	eng := newMockEngine(t, nil)

	eng.DetectObjects(testFrame())
	eng.DetectObjects(testFrame())

	stats := eng.ClassStatistics()
	assert.Equal(t, int64(2), stats["person"])
	assert.Equal(t, int64(2), stats["dog"])
	assert.Equal(t, int64(2), stats["cat"])
}

func TestEngineCounters(t *testing.T) {
	eng := newMockEngine(t, nil)

	eng.DetectObjects(testFrame())
	eng.AddDroppedFrames(3)

	stats := eng.Stats()
	assert.Equal(t, int64(1), stats["total_inferences"])
	assert.Equal(t, int64(3), stats["total_detections"])
	assert.Equal(t, int64(3), stats["dropped_frames"])

	metrics := eng.Metrics()
	assert.Equal(t, int64(3), metrics.DroppedFrames)
	assert.Equal(t, int64(3), metrics.TotalDetections)
	assert.Greater(t, metrics.FPS, 0.0)

	eng.ResetStats()
	stats = eng.Stats()
	assert.Equal(t, int64(0), stats["total_inferences"])
	assert.Empty(t, eng.ClassStatistics())
}

func TestReloadKeepsEngineReady(t *testing.T) {
	eng := newMockEngine(t, nil)
	require.NoError(t, eng.SetEnabledClasses([]string{"person"}))

	require.NoError(t, eng.Reload())
	assert.True(t, eng.IsReady())
	assert.Equal(t, []string{"person"}, eng.EnabledClasses(),
		"the class filter survives a reload")

	dets := eng.DetectObjects(testFrame())
	require.Len(t, dets, 1)
	assert.Equal(t, detection.ClassPerson, dets[0].Class)
}

func TestCloseIsIdempotentEnough(t *testing.T) {
	eng, err := NewEngine(nil, nil)
	require.NoError(t, err)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
}
