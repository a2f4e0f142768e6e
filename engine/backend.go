// Package engine - Detection engine with multi-backend model acquisition.
package engine

import (
	"github.com/rovercam/go-detect/postprocess"
	"github.com/rovercam/go-detect/preprocess"
)

// ModelType identifies which backend family owns the active model handle.
// Selected once at construction (or reload) and stored as the dispatch
// discriminant.
type ModelType string

const (
	// ModelTypeDNN is the OpenCV DNN backend loading the configured model.
	ModelTypeDNN ModelType = "dnn"
	// ModelTypeONNX is the ONNX Runtime backend for serialized .onnx graphs.
	ModelTypeONNX ModelType = "onnx"
	// ModelTypeMock is the deterministic placeholder backend. It always
	// loads, which is what makes the acquisition chain total.
	ModelTypeMock ModelType = "mock"
)

// backend is the uniform inference contract behind the engine. Implementations
// receive a letterboxed frame and emit raw candidates in letterbox-space
// coordinates; confidence filtering below confThreshold may happen inside for
// efficiency, everything else (NMS, class filtering, rescaling) is the
// engine's job.
type backend interface {
	// Infer runs the model over a preprocessed frame.
	Infer(input *preprocess.Result, confThreshold float32) ([]postprocess.Result, error)
	// ClassNames returns the backend's own label vocabulary, or nil when the
	// model format carries none and the baseline vocabulary applies.
	ClassNames() []string
	// Close releases the model handle.
	Close() error
}
