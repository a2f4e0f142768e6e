package engine

import (
	"image"
	"os"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/rovercam/go-detect/images"
	"github.com/rovercam/go-detect/postprocess"
	"github.com/rovercam/go-detect/preprocess"
)

// dnnBackend runs inference through OpenCV's DNN module (gocv.ReadNet). It
// handles YOLOv5-style outputs: one row per candidate, columns
// [cx, cy, w, h, objectness, 80 class scores] in letterbox pixel space.
type dnnBackend struct {
	net       gocv.Net
	inputSize image.Point
}

// loadDNNBackend opens a serialized model with OpenCV DNN. The device
// selector maps onto the preferable backend/target pair; anything but "cuda"
// stays on the default CPU path.
func loadDNNBackend(modelPath, device string, inputSize [2]int) (*dnnBackend, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s not reachable", modelPath)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to read network from %s", modelPath)
	}

	if device == "cuda" {
		if err := net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			net.Close()
			return nil, errors.Wrap(err, "selecting CUDA backend")
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			net.Close()
			return nil, errors.Wrap(err, "selecting CUDA target")
		}
	}

	return &dnnBackend{
		net:       net,
		inputSize: image.Point{X: inputSize[0], Y: inputSize[1]},
	}, nil
}

func (b *dnnBackend) Infer(input *preprocess.Result, confThreshold float32) ([]postprocess.Result, error) {
	mat, err := matFromFrame(input.Frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// The letterboxed frame is already RGB, so no channel swap in the blob.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, b.inputSize, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	return b.parseOutput(output, input.ProcessedSize, confThreshold), nil
}

// parseOutput walks the YOLO candidate rows, combining objectness with the
// best class score and converting center-format boxes to corners.
func (b *dnnBackend) parseOutput(output gocv.Mat, processedSize [2]int, confThreshold float32) []postprocess.Result {
	var results []postprocess.Result

	rows := output.Rows()
	cols := output.Cols()

	for i := 0; i < rows; i++ {
		objectness := output.GetFloatAt(i, 4)
		if objectness < confThreshold {
			continue
		}

		classID := 0
		maxScore := float32(0)
		for j := 5; j < cols; j++ {
			score := output.GetFloatAt(i, j)
			if score > maxScore {
				maxScore = score
				classID = j - 5
			}
		}

		confidence := objectness * maxScore
		if confidence < confThreshold {
			continue
		}

		cx := output.GetFloatAt(i, 0)
		cy := output.GetFloatAt(i, 1)
		w := output.GetFloatAt(i, 2)
		h := output.GetFloatAt(i, 3)

		maxX := float32(processedSize[0])
		maxY := float32(processedSize[1])
		results = append(results, postprocess.Result{
			Box: postprocess.Box{
				X1: math32.Max(0, cx-w/2),
				Y1: math32.Max(0, cy-h/2),
				X2: math32.Min(maxX, cx+w/2),
				Y2: math32.Min(maxY, cy+h/2),
			},
			Score: confidence,
			Class: classID,
		})
	}

	return results
}

// ClassNames returns nil: OpenCV DNN model files carry no label vocabulary.
func (b *dnnBackend) ClassNames() []string {
	return nil
}

func (b *dnnBackend) Close() error {
	return b.net.Close()
}

// matFromFrame wraps a frame's raw bytes in a gocv.Mat without conversion.
func matFromFrame(frame *images.Frame) (gocv.Mat, error) {
	var matType gocv.MatType
	switch frame.Channels {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 3:
		matType = gocv.MatTypeCV8UC3
	case 4:
		matType = gocv.MatTypeCV8UC4
	default:
		return gocv.Mat{}, errors.Errorf("unsupported channel count: %d", frame.Channels)
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, matType, frame.Data)
}
