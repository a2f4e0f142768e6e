package detection

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DetectorConfig holds the thresholds and input geometry for one detection
// engine. Values are validated at construction and again after every mutation.
type DetectorConfig struct {
	// Enabled toggles the whole detection subsystem.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// ModelPath is the primary model tried by the backend-acquisition chain.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// ConfidenceThreshold drops candidates scoring below it, in [0, 1].
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NMSThreshold is the IoU above which overlapping boxes are suppressed, in [0, 1].
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`
	// InputSize is the letterbox target as [width, height], both positive.
	InputSize [2]int `json:"input_size" yaml:"input_size"`
	// TargetFPS is the frame rate the upstream capture source aims for.
	TargetFPS int `json:"target_fps" yaml:"target_fps"`
	// EnabledClasses restricts detection to these labels; nil means all.
	EnabledClasses []string `json:"enabled_classes" yaml:"enabled_classes"`
	// Device selects the compute device, e.g. "cpu" or "cuda". Opaque to callers.
	Device string `json:"device" yaml:"device"`
}

// Validate checks threshold ranges and geometry.
func (c *DetectorConfig) Validate() error {
	if c.ConfidenceThreshold < 0.0 || c.ConfidenceThreshold > 1.0 {
		return errors.New("confidence_threshold must be between 0.0 and 1.0")
	}
	if c.NMSThreshold < 0.0 || c.NMSThreshold > 1.0 {
		return errors.New("nms_threshold must be between 0.0 and 1.0")
	}
	if c.InputSize[0] <= 0 || c.InputSize[1] <= 0 {
		return errors.New("input_size dimensions must be positive")
	}
	if c.TargetFPS <= 0 {
		return errors.New("target_fps must be positive")
	}
	return nil
}

// AlertConfig configures the alerting collaborator. Carried in the aggregate
// so one document round-trips through the external configuration layer.
type AlertConfig struct {
	Enabled             bool     `json:"enabled" yaml:"enabled"`
	AlertClasses        []string `json:"alert_classes" yaml:"alert_classes"`
	ConfidenceThreshold float32  `json:"confidence_threshold" yaml:"confidence_threshold"`
	RateLimitSeconds    int      `json:"rate_limit_seconds" yaml:"rate_limit_seconds"`
	MaxAlertsPerMinute  int      `json:"max_alerts_per_minute" yaml:"max_alerts_per_minute"`
}

// Validate checks alert thresholds and rate limits.
func (c *AlertConfig) Validate() error {
	if c.ConfidenceThreshold < 0.0 || c.ConfidenceThreshold > 1.0 {
		return errors.New("alert confidence_threshold must be between 0.0 and 1.0")
	}
	if c.RateLimitSeconds < 0 {
		return errors.New("rate_limit_seconds must be non-negative")
	}
	return nil
}

// PerformanceConfig bounds the pipeline's resource envelope.
type PerformanceConfig struct {
	// MaxCPUUsage is a percentage in (0, 100].
	MaxCPUUsage int `json:"max_cpu_usage" yaml:"max_cpu_usage"`
	// AdaptiveFPS signals the capture source to back off under sustained
	// queue pressure.
	AdaptiveFPS             bool `json:"adaptive_fps" yaml:"adaptive_fps"`
	UseHardwareAcceleration bool `json:"use_hardware_acceleration" yaml:"use_hardware_acceleration"`
	MaxMemoryMB             int  `json:"max_memory_mb" yaml:"max_memory_mb"`
	// FrameBufferSize is the bounded queue capacity of the worker pipeline.
	FrameBufferSize int `json:"frame_buffer_size" yaml:"frame_buffer_size"`
	// ProcessingThreads is the worker count of the pipeline.
	ProcessingThreads int `json:"processing_threads" yaml:"processing_threads"`
}

// Validate checks the resource envelope bounds.
func (c *PerformanceConfig) Validate() error {
	if c.MaxCPUUsage <= 0 || c.MaxCPUUsage > 100 {
		return errors.New("max_cpu_usage must be between 1 and 100")
	}
	if c.MaxMemoryMB <= 0 {
		return errors.New("max_memory_mb must be positive")
	}
	if c.FrameBufferSize <= 0 {
		return errors.New("frame_buffer_size must be positive")
	}
	if c.ProcessingThreads <= 0 {
		return errors.New("processing_threads must be positive")
	}
	return nil
}

// Config is the complete detection configuration document. The external
// configuration collaborator owns loading and persistence; this package only
// consumes the parsed structure and offers map conversion for that
// collaborator's serialization.
type Config struct {
	Detector    DetectorConfig    `json:"yolo" yaml:"yolo"`
	Alerts      AlertConfig       `json:"alerts" yaml:"alerts"`
	Performance PerformanceConfig `json:"performance" yaml:"performance"`
}

// DefaultConfig returns the configuration used when no document is supplied.
func DefaultConfig() *Config {
	return &Config{
		Detector: DetectorConfig{
			Enabled:             true,
			ModelPath:           "models/yolov5n.onnx",
			ConfidenceThreshold: 0.5,
			NMSThreshold:        0.4,
			InputSize:           [2]int{640, 640},
			TargetFPS:           10,
			EnabledClasses:      []string{"person", "car", "bicycle", "dog", "cat"},
			Device:              "cpu",
		},
		Alerts: AlertConfig{
			Enabled:             true,
			AlertClasses:        []string{"person", "dog"},
			ConfidenceThreshold: 0.7,
			RateLimitSeconds:    30,
			MaxAlertsPerMinute:  10,
		},
		Performance: PerformanceConfig{
			MaxCPUUsage:             80,
			AdaptiveFPS:             true,
			UseHardwareAcceleration: true,
			MaxMemoryMB:             1024,
			FrameBufferSize:         5,
			ProcessingThreads:       2,
		},
	}
}

// Validate checks every section of the aggregate.
func (c *Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "yolo config")
	}
	if err := c.Alerts.Validate(); err != nil {
		return errors.Wrap(err, "alerts config")
	}
	if err := c.Performance.Validate(); err != nil {
		return errors.Wrap(err, "performance config")
	}
	return nil
}

// ToMap converts the configuration into a generic map for the external
// configuration collaborator's serialization.
func (c *Config) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decoding config map")
	}
	return out, nil
}

// ConfigFromMap builds a validated configuration from a generic map. Sections
// absent from the map keep their defaults.
func ConfigFromMap(m map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config map")
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
