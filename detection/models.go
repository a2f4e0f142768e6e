// Package detection - Core data model for the object-detection pipeline.
package detection

// ObjectClass is one label from a model's class vocabulary.
type ObjectClass string

// Well-known classes used by alerting collaborators and the mock backend.
const (
	ClassPerson ObjectClass = "person"
	ClassCar    ObjectClass = "car"
	ClassDog    ObjectClass = "dog"
	ClassCat    ObjectClass = "cat"
)

// BoundingBox represents a box around a detected object in pixel coordinates.
// Invariant: X2 >= X1 and Y2 >= Y1.
type BoundingBox struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

// Center returns the midpoint of the box, rounded down.
func (b BoundingBox) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Area returns the number of pixels covered by the box.
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// Detection is a single detected object. It is a value created once per
// surviving candidate and never mutated afterward; the caller owns it once
// returned from the engine.
type Detection struct {
	// Class is the vocabulary label of the detected object.
	Class ObjectClass `json:"object_class" yaml:"object_class"`
	// Confidence is the backend's score in [0, 1].
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// BBox locates the object in original-frame coordinates.
	BBox BoundingBox `json:"bbox" yaml:"bbox"`
	// Timestamp is the wall-clock detection time in seconds.
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
	// FrameID is derived from a millisecond clock, monotonic-ish across calls.
	FrameID int64 `json:"frame_id" yaml:"frame_id"`
	// TrackingID is assigned by an external tracker, nil when untracked.
	TrackingID *int `json:"tracking_id" yaml:"tracking_id"`
}

// DetectionFrame aggregates the detections of one inference call. The engine
// returns bare detection slices; callers that need per-frame bookkeeping
// build this around them.
type DetectionFrame struct {
	Detections     []Detection `json:"detections" yaml:"detections"`
	FrameTimestamp float64     `json:"frame_timestamp" yaml:"frame_timestamp"`
	ProcessingTime float64     `json:"processing_time" yaml:"processing_time"`
	FrameSize      [2]int      `json:"frame_size" yaml:"frame_size"`
	TotalObjects   int         `json:"total_objects" yaml:"total_objects"`
}

// PerformanceMetrics is a point-in-time snapshot derived from the engine's
// running counters.
type PerformanceMetrics struct {
	FPS               float64 `json:"fps" yaml:"fps"`
	AvgProcessingTime float64 `json:"avg_processing_time" yaml:"avg_processing_time"`
	CPUUsage          float64 `json:"cpu_usage" yaml:"cpu_usage"`
	MemoryUsage       float64 `json:"memory_usage" yaml:"memory_usage"`
	DroppedFrames     int64   `json:"dropped_frames" yaml:"dropped_frames"`
	TotalDetections   int64   `json:"total_detections" yaml:"total_detections"`
}

// AlertEvent is raised by an alerting collaborator when a detection matches
// its rules. Defined here so every consumer shares one shape.
type AlertEvent struct {
	Detection    Detection `json:"detection" yaml:"detection"`
	AlertType    string    `json:"alert_type" yaml:"alert_type"`
	Message      string    `json:"message" yaml:"message"`
	Timestamp    float64   `json:"timestamp" yaml:"timestamp"`
	Acknowledged bool      `json:"acknowledged" yaml:"acknowledged"`
}
