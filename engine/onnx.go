package engine

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/rovercam/go-detect/postprocess"
	"github.com/rovercam/go-detect/preprocess"
)

// numClasses is the class-score width of the YOLOv8 output head.
const numClasses = 80

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// sharedLibPath locates the ONNX Runtime shared library for this platform.
// Empty means the runtime is not supported here and the alternate-format
// backend is skipped.
func sharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "third_party/onnxruntime.dll"
		}
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
	return ""
}

// onnxRuntimeAvailable reports whether the shared library can be loaded at
// all. Checked before any acquisition attempt so a missing runtime costs one
// stat call instead of a cgo failure.
func onnxRuntimeAvailable() bool {
	path := sharedLibPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func initONNXRuntime() error {
	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(sharedLibPath())
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// onnxBackend runs inference through ONNX Runtime over a fixed-shape session.
// Output layout is the transposed YOLOv8 head: (4+80) rows by anchor count,
// boxes in letterbox pixel space as [cx, cy, w, h].
type onnxBackend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	anchors int
	width   int
	height  int
}

// loadONNXBackend creates an ONNX Runtime session for the model at path. The
// anchor count follows from the input size across the three YOLO stride
// levels (8, 16, 32).
func loadONNXBackend(modelPath string, inputSize [2]int) (*onnxBackend, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s not reachable", modelPath)
	}
	if err := initONNXRuntime(); err != nil {
		return nil, errors.Wrap(err, "initializing ONNX Runtime environment")
	}

	w, h := inputSize[0], inputSize[1]
	anchors := (w/8)*(h/8) + (w/16)*(h/16) + (w/32)*(h/32)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(h), int64(w)))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+numClasses), int64(anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(4)
	options.SetInterOpNumThreads(2)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating ONNX session")
	}

	return &onnxBackend{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		anchors: anchors,
		width:   w,
		height:  h,
	}, nil
}

func (b *onnxBackend) Infer(input *preprocess.Result, confThreshold float32) ([]postprocess.Result, error) {
	if input.Tensor == nil {
		return nil, errors.New("ONNX backend requires a normalized input tensor")
	}

	dst := b.input.GetData()
	if len(dst) != len(input.Tensor) {
		return nil, errors.Errorf("input tensor holds %d floats, session expects %d",
			len(input.Tensor), len(dst))
	}
	copy(dst, input.Tensor)

	if err := b.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	return b.parseOutput(b.output.GetData(), confThreshold), nil
}

// parseOutput scans each anchor column for its best class score and converts
// center-format boxes to corners, clamped into the letterbox frame.
func (b *onnxBackend) parseOutput(output []float32, confThreshold float32) []postprocess.Result {
	var results []postprocess.Result

	for idx := 0; idx < b.anchors; idx++ {
		classID := 0
		score := float32(-1)
		for c := 0; c < numClasses; c++ {
			if s := output[b.anchors*(c+4)+idx]; s > score {
				score = s
				classID = c
			}
		}
		if score < confThreshold {
			continue
		}

		cx := output[idx]
		cy := output[b.anchors+idx]
		w := output[2*b.anchors+idx]
		h := output[3*b.anchors+idx]

		results = append(results, postprocess.Result{
			Box: postprocess.Box{
				X1: clamp(cx-w/2, 0, float32(b.width)),
				Y1: clamp(cy-h/2, 0, float32(b.height)),
				X2: clamp(cx+w/2, 0, float32(b.width)),
				Y2: clamp(cy+h/2, 0, float32(b.height)),
			},
			Score: score,
			Class: classID,
		})
	}

	return results
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClassNames returns nil: the exported graphs carry no label metadata.
func (b *onnxBackend) ClassNames() []string {
	return nil
}

func (b *onnxBackend) Close() error {
	if b.input != nil {
		b.input.Destroy()
		b.input = nil
	}
	if b.output != nil {
		b.output.Destroy()
		b.output = nil
	}
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	return nil
}
