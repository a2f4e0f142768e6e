package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rovercam/go-detect/detection"
	"github.com/rovercam/go-detect/images"
	"github.com/rovercam/go-detect/postprocess"
	"github.com/rovercam/go-detect/preprocess"
)

// mockCatalog drives the placeholder backend: one deterministic detection per
// enabled class, sized proportionally to the input frame.
var mockCatalog = []struct {
	class      detection.ObjectClass
	confidence float32
	box        func(w, h int) detection.BoundingBox
}{
	{detection.ClassPerson, 0.85, func(w, h int) detection.BoundingBox {
		return detection.BoundingBox{X1: w / 4, Y1: h / 4, X2: w / 2, Y2: 3 * h / 4}
	}},
	{detection.ClassDog, 0.75, func(w, h int) detection.BoundingBox {
		return detection.BoundingBox{X1: w / 2, Y1: h / 2, X2: 3 * w / 4, Y2: 3 * h / 4}
	}},
	{detection.ClassCat, 0.65, func(w, h int) detection.BoundingBox {
		return detection.BoundingBox{X1: w / 8, Y1: h / 2, X2: w / 4, Y2: 7 * h / 8}
	}},
}

// Engine orchestrates one detection feed: it owns a single backend handle
// acquired through the fallback chain, the class-filter state, and the
// running performance counters. One engine per logical sensor feed; calls are
// serialized internally, so a single instance may be shared across goroutines
// at the cost of contention.
type Engine struct {
	mu     sync.Mutex
	cfg    *detection.Config
	logger *zap.Logger

	processor *preprocess.Processor
	backend   backend
	modelType ModelType

	classNames []string
	enabledIdx map[int]struct{}

	counters    perfCounters
	classCounts map[string]int64
}

// NewEngine validates the configuration, runs the backend-acquisition chain,
// and derives the class-filter index set. Construction fails only on invalid
// configuration — backend unavailability degrades to the mock backend, so a
// freshly constructed engine is always ready.
func NewEngine(cfg *detection.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = detection.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		processor:   preprocess.NewProcessor(cfg.Detector.InputSize, logger),
		classCounts: map[string]int64{},
	}

	loaded := e.acquireBackend()
	e.installModel(loaded)
	e.setupClassFilter()

	return e, nil
}

// installModel swaps in the result of an acquisition pass.
func (e *Engine) installModel(loaded loadedModel) {
	e.backend = loaded.backend
	e.modelType = loaded.modelType
	e.classNames = loaded.classes
	if e.classNames == nil {
		e.classNames = detection.DefaultClassNames
	}
	e.counters.modelLoadTime = loaded.loadTime
}

// setupClassFilter derives the enabled index set from the configured class
// list. Unknown names are dropped with a warning; a nil list enables every
// vocabulary index.
func (e *Engine) setupClassFilter() {
	if e.cfg.Detector.EnabledClasses == nil {
		e.enabledIdx = make(map[int]struct{}, len(e.classNames))
		for i := range e.classNames {
			e.enabledIdx[i] = struct{}{}
		}
		return
	}

	e.enabledIdx = make(map[int]struct{})
	for _, name := range e.cfg.Detector.EnabledClasses {
		idx := indexOf(e.classNames, name)
		if idx < 0 {
			e.logger.Warn("class not found in model vocabulary", zap.String("class", name))
			continue
		}
		e.enabledIdx[idx] = struct{}{}
	}

	enabled := make([]string, 0, len(e.enabledIdx))
	for idx := range e.enabledIdx {
		enabled = append(enabled, e.classNames[idx])
	}
	sort.Strings(enabled)
	e.logger.Info("detection classes enabled", zap.Strings("classes", enabled))
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// IsReady reports whether the engine can serve DetectObjects. Always true
// after construction because acquisition terminates at the mock backend.
func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend != nil || e.modelType == ModelTypeMock
}

// ModelType returns the discriminant of the active backend.
func (e *Engine) ModelType() ModelType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modelType
}

// DetectObjects runs one full inference pass over a frame and returns the
// surviving detections in original-frame coordinates. A nil or malformed
// frame yields an empty result immediately. Inference failures are recovered
// locally: the call logs, records the attempt's timing, and returns an empty
// result — it never panics past this boundary.
func (e *Engine) DetectObjects(frame *images.Frame) []detection.Detection {
	if !frame.Valid() {
		e.logger.Debug("ignoring invalid frame")
		return []detection.Detection{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	dets, err := e.dispatch(frame)
	e.counters.recordAttempt(time.Since(start))

	if err != nil {
		e.logger.Error("detection failed", zap.Error(err))
		return []detection.Detection{}
	}

	e.counters.totalDetections += int64(len(dets))
	for _, d := range dets {
		e.classCounts[string(d.Class)]++
	}
	return dets
}

// dispatch routes to the routine matching the active model type, converting
// panics from backend code into ordinary errors.
func (e *Engine) dispatch(frame *images.Frame) (dets []detection.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = errors.Errorf("inference panic: %v", r)
		}
	}()

	switch e.modelType {
	case ModelTypeMock:
		return e.detectMock(frame), nil
	default:
		return e.detectModel(frame)
	}
}

// detectModel is the native and alternate-format path: letterbox, infer,
// confidence filter, NMS, rescale, class filter, stamp.
func (e *Engine) detectModel(frame *images.Frame) ([]detection.Detection, error) {
	// The ONNX session consumes the normalized tensor; the DNN path builds
	// its own blob from the raster.
	pre := e.processor.Preprocess(frame, e.modelType == ModelTypeONNX)
	if pre.Err != nil {
		return nil, errors.Wrap(pre.Err, "preprocessing frame")
	}

	raw, err := e.backend.Infer(pre, e.cfg.Detector.ConfidenceThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "running backend inference")
	}

	// Always run our own NMS pass, even when the backend claims to have
	// deduplicated, so behavior is deterministic across backends.
	if len(raw) > 0 {
		raw = postprocess.Apply(raw, e.cfg.Detector.NMSThreshold)
	}

	if pre.ProcessedSize != pre.OriginalSize {
		raw = postprocess.ScaleBoxes(raw,
			pre.ProcessedSize[0], pre.ProcessedSize[1],
			frame.Width, frame.Height)
	}

	frameID := time.Now().UnixMilli()
	timestamp := float64(time.Now().UnixNano()) / 1e9

	dets := make([]detection.Detection, 0, len(raw))
	for _, r := range raw {
		if r.Class < 0 || r.Class >= len(e.classNames) {
			// Distinct from a disabled class: the backend emitted an index
			// the vocabulary cannot map.
			e.logger.Warn("dropping detection with unmapped class index", zap.Int("class", r.Class))
			continue
		}
		if _, ok := e.enabledIdx[r.Class]; !ok {
			continue
		}
		dets = append(dets, detection.Detection{
			Class:      detection.ObjectClass(e.classNames[r.Class]),
			Confidence: r.Score,
			BBox: detection.BoundingBox{
				X1: int(r.Box.X1),
				Y1: int(r.Box.Y1),
				X2: int(r.Box.X2),
				Y2: int(r.Box.Y2),
			},
			Timestamp: timestamp,
			FrameID:   frameID,
		})
	}
	return dets, nil
}

// detectMock emits one placeholder detection per enabled catalog class,
// proportional to the frame dimensions. Same output contract as the model
// paths.
func (e *Engine) detectMock(frame *images.Frame) []detection.Detection {
	frameID := time.Now().UnixMilli()
	timestamp := float64(time.Now().UnixNano()) / 1e9

	dets := make([]detection.Detection, 0, len(mockCatalog))
	for _, entry := range mockCatalog {
		idx := indexOf(e.classNames, string(entry.class))
		if idx < 0 {
			continue
		}
		if _, ok := e.enabledIdx[idx]; !ok {
			continue
		}
		dets = append(dets, detection.Detection{
			Class:      entry.class,
			Confidence: entry.confidence,
			BBox:       entry.box(frame.Width, frame.Height),
			Timestamp:  timestamp,
			FrameID:    frameID,
		})
	}
	return dets
}

// SetConfidenceThreshold updates the confidence floor for subsequent calls.
func (e *Engine) SetConfidenceThreshold(threshold float32) error {
	if threshold < 0.0 || threshold > 1.0 {
		return errors.New("confidence threshold must be between 0.0 and 1.0")
	}
	e.mu.Lock()
	e.cfg.Detector.ConfidenceThreshold = threshold
	e.mu.Unlock()
	e.logger.Info("confidence threshold updated", zap.Float32("threshold", threshold))
	return nil
}

// SetNMSThreshold updates the suppression overlap for subsequent calls.
func (e *Engine) SetNMSThreshold(threshold float32) error {
	if threshold < 0.0 || threshold > 1.0 {
		return errors.New("nms threshold must be between 0.0 and 1.0")
	}
	e.mu.Lock()
	e.cfg.Detector.NMSThreshold = threshold
	e.mu.Unlock()
	e.logger.Info("nms threshold updated", zap.Float32("threshold", threshold))
	return nil
}

// SetEnabledClasses replaces the enabled-class list. Names missing from the
// vocabulary are dropped with a warning; the call fails only when no supplied
// name is valid, because an empty enabled set would silence the engine.
func (e *Engine) SetEnabledClasses(classes []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	invalid := e.invalidClassNames(classes)
	if len(invalid) > 0 {
		e.logger.Warn("ignoring invalid class names", zap.Strings("classes", invalid))
	}

	valid := make([]string, 0, len(classes))
	for _, name := range classes {
		if indexOf(e.classNames, name) >= 0 {
			valid = append(valid, name)
		}
	}
	if len(valid) == 0 {
		return errors.New("no valid class names provided")
	}

	e.cfg.Detector.EnabledClasses = valid
	e.setupClassFilter()
	return nil
}

// EnableClass adds one class to the enabled set. Returns false for names the
// vocabulary does not contain.
func (e *Engine) EnableClass(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if indexOf(e.classNames, name) < 0 {
		e.logger.Warn("cannot enable unknown class", zap.String("class", name))
		return false
	}

	if e.cfg.Detector.EnabledClasses == nil {
		// Implicit "all enabled" already includes it.
		e.cfg.Detector.EnabledClasses = []string{}
	}
	for _, existing := range e.cfg.Detector.EnabledClasses {
		if existing == name {
			return true
		}
	}
	e.cfg.Detector.EnabledClasses = append(e.cfg.Detector.EnabledClasses, name)
	e.setupClassFilter()
	e.logger.Info("class enabled", zap.String("class", name))
	return true
}

// DisableClass removes one class from the enabled set. Disabling from the
// implicit "all enabled" state materializes the explicit complement list.
func (e *Engine) DisableClass(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Detector.EnabledClasses == nil {
		complement := make([]string, 0, len(e.classNames))
		for _, n := range e.classNames {
			if n != name {
				complement = append(complement, n)
			}
		}
		e.cfg.Detector.EnabledClasses = complement
	} else {
		idx := indexOf(e.cfg.Detector.EnabledClasses, name)
		if idx < 0 {
			return false
		}
		e.cfg.Detector.EnabledClasses = append(
			e.cfg.Detector.EnabledClasses[:idx],
			e.cfg.Detector.EnabledClasses[idx+1:]...)
	}

	e.setupClassFilter()
	e.logger.Info("class disabled", zap.String("class", name))
	return true
}

// IsClassEnabled reports whether detections of the named class survive
// filtering.
func (e *Engine) IsClassEnabled(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Detector.EnabledClasses == nil {
		return true
	}
	return indexOf(e.cfg.Detector.EnabledClasses, name) >= 0
}

// AvailableClasses returns a copy of the active vocabulary.
func (e *Engine) AvailableClasses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.classNames))
	copy(out, e.classNames)
	return out
}

// EnabledClasses returns a copy of the configured enabled-class list. Empty
// means every vocabulary class is enabled.
func (e *Engine) EnabledClasses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.cfg.Detector.EnabledClasses))
	copy(out, e.cfg.Detector.EnabledClasses)
	return out
}

// ValidateClassNames returns the subset of names the active vocabulary does
// not contain.
func (e *Engine) ValidateClassNames(names []string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invalidClassNames(names)
}

func (e *Engine) invalidClassNames(names []string) []string {
	var invalid []string
	for _, name := range names {
		if indexOf(e.classNames, name) < 0 {
			invalid = append(invalid, name)
		}
	}
	return invalid
}

// ClassStatistics returns per-class detection counts accumulated since
// construction.
func (e *Engine) ClassStatistics() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]int64, len(e.classCounts))
	for k, v := range e.classCounts {
		out[k] = v
	}
	return out
}

// ModelInfo describes the active backend for observability collaborators.
type ModelInfo struct {
	ModelType           ModelType `json:"model_type"`
	ModelPath           string    `json:"model_path"`
	Device              string    `json:"device"`
	ClassCount          int       `json:"class_count"`
	EnabledClasses      []string  `json:"enabled_classes"`
	ConfidenceThreshold float32   `json:"confidence_threshold"`
	NMSThreshold        float32   `json:"nms_threshold"`
	IsLoaded            bool      `json:"is_loaded"`
}

// Info returns a snapshot of the active model descriptor.
func (e *Engine) Info() ModelInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	enabled := make([]string, len(e.cfg.Detector.EnabledClasses))
	copy(enabled, e.cfg.Detector.EnabledClasses)

	return ModelInfo{
		ModelType:           e.modelType,
		ModelPath:           e.cfg.Detector.ModelPath,
		Device:              e.cfg.Detector.Device,
		ClassCount:          len(e.classNames),
		EnabledClasses:      enabled,
		ConfidenceThreshold: e.cfg.Detector.ConfidenceThreshold,
		NMSThreshold:        e.cfg.Detector.NMSThreshold,
		IsLoaded:            e.backend != nil || e.modelType == ModelTypeMock,
	}
}

// Reload tears down the current backend and re-executes the acquisition
// chain, reapplying the configured class filter. The mock terminal makes this
// effectively infallible; an error here means something unexpected broke and
// the engine should be treated as degraded.
func (e *Engine) Reload() (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("model reload panic: %v", r)
		}
	}()

	previous := e.modelType
	if e.backend != nil {
		if cerr := e.backend.Close(); cerr != nil {
			e.logger.Warn("closing previous backend", zap.Error(cerr))
		}
		e.backend = nil
	}
	e.modelType = ""

	e.installModel(e.acquireBackend())
	e.setupClassFilter()

	e.logger.Info("model reloaded",
		zap.String("was", string(previous)),
		zap.String("now", string(e.modelType)))
	return nil
}

// Processor exposes the engine's frame processor, mainly for stats.
func (e *Engine) Processor() *preprocess.Processor {
	return e.processor
}

// Close releases the backend handle. The engine is not usable afterward.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend != nil {
		err := e.backend.Close()
		e.backend = nil
		return err
	}
	return nil
}
