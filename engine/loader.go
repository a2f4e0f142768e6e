package engine

import (
	"time"

	"go.uber.org/zap"
)

// fallbackModelPaths are the well-known model locations tried, in order, when
// the configured model path fails to load.
var fallbackModelPaths = []string{
	"models/yolov5n.onnx",
	"models/yolov8n.onnx",
	"yolov5n.onnx",
	"yolov8n.onnx",
}

// onnxRuntimeModelPaths are the alternate-format attempts made through ONNX
// Runtime when OpenCV DNN could not produce a backend.
var onnxRuntimeModelPaths = []string{
	"models/yolov5n.onnx",
	"models/yolov8n.onnx",
}

// loadedModel is the outcome of one model acquisition pass.
type loadedModel struct {
	backend   backend
	modelType ModelType
	// classes is the active vocabulary: the backend's own when it has one,
	// the baseline otherwise.
	classes  []string
	loadTime time.Duration
}

// acquireBackend walks the acquisition chain: the configured model path, then
// the fallback list, then the alternate-format runtime, then the mock. The
// mock loader cannot fail, so acquisition always produces a ready backend —
// failures along the way are diagnostics, never errors.
func (e *Engine) acquireBackend() loadedModel {
	start := time.Now()
	cfg := e.cfg.Detector

	if b, err := loadDNNBackend(cfg.ModelPath, cfg.Device, cfg.InputSize); err == nil {
		e.logger.Info("loaded model",
			zap.String("model_path", cfg.ModelPath),
			zap.String("model_type", string(ModelTypeDNN)),
			zap.String("device", cfg.Device))
		return e.finishLoad(b, ModelTypeDNN, start)
	} else {
		e.logger.Warn("failed to load primary model",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err))
	}

	for _, path := range fallbackModelPaths {
		b, err := loadDNNBackend(path, cfg.Device, cfg.InputSize)
		if err != nil {
			e.logger.Debug("failed to load fallback model",
				zap.String("model_path", path),
				zap.Error(err))
			continue
		}
		e.logger.Info("loaded fallback model", zap.String("model_path", path))
		return e.finishLoad(b, ModelTypeDNN, start)
	}

	if onnxRuntimeAvailable() {
		for _, path := range onnxRuntimeModelPaths {
			b, err := loadONNXBackend(path, cfg.InputSize)
			if err != nil {
				e.logger.Debug("failed to load ONNX model",
					zap.String("model_path", path),
					zap.Error(err))
				continue
			}
			e.logger.Info("loaded ONNX model", zap.String("model_path", path))
			return e.finishLoad(b, ModelTypeONNX, start)
		}
	}

	e.logger.Warn("all model loading attempts failed, using mock backend")
	return e.finishLoad(nil, ModelTypeMock, start)
}

func (e *Engine) finishLoad(b backend, modelType ModelType, start time.Time) loadedModel {
	classes := detectionClasses(b)
	return loadedModel{
		backend:   b,
		modelType: modelType,
		classes:   classes,
		loadTime:  time.Since(start),
	}
}

func detectionClasses(b backend) []string {
	if b != nil {
		if names := b.ClassNames(); len(names) > 0 {
			return names
		}
	}
	return nil
}
