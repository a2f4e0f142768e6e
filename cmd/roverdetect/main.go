// Command roverdetect runs the object-detection engine over an image file or
// a stream of synthetic frames and prints detection results as JSON lines.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovercam/go-detect/detection"
	"github.com/rovercam/go-detect/engine"
	"github.com/rovercam/go-detect/images"
)

const (
	// defaultFrameCount is the number of synthetic frames pushed through the
	// pipeline when no image is supplied.
	defaultFrameCount = 10
	// syntheticWidth/Height match a typical camera feed.
	syntheticWidth  = 1920
	syntheticHeight = 1080
)

func main() {
	var (
		configPath string
		imagePath  string
		frameDir   string
		classes    string
		confidence float64
		frameCount int
		showStats  bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png)")
	flag.StringVar(&frameDir, "frame-dir", "", "Directory of numbered frame images to replay")
	flag.StringVar(&classes, "classes", "", "Comma-separated class names to enable (overrides config)")
	flag.Float64Var(&confidence, "confidence", -1, "Confidence threshold override (0.0-1.0)")
	flag.IntVar(&frameCount, "frames", defaultFrameCount, "Synthetic frame count when no image is given")
	flag.BoolVar(&showStats, "stats", false, "Print engine statistics after the run")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}
	if confidence >= 0 {
		cfg.Detector.ConfidenceThreshold = float32(confidence)
	}
	if classes != "" {
		cfg.Detector.EnabledClasses = splitClasses(classes)
	}

	eng, err := engine.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal("constructing engine", zap.Error(err))
	}
	defer eng.Close()

	info := eng.Info()
	logger.Info("engine ready",
		zap.String("model_type", string(info.ModelType)),
		zap.Int("class_count", info.ClassCount))

	switch {
	case imagePath != "":
		err = runImage(eng, imagePath)
	case frameDir != "":
		err = runFrameDirectory(eng, cfg, logger, frameDir)
	default:
		err = runSynthetic(eng, cfg, logger, frameCount)
	}
	if err != nil {
		logger.Fatal("detection run failed", zap.Error(err))
	}

	if showStats {
		printJSON(eng.Stats())
		printJSON(eng.Metrics())
	}
}

// loadConfig reads a YAML file into the typed configuration, or returns the
// defaults when no path is given.
func loadConfig(path string) (*detection.Config, error) {
	if path == "" {
		return detection.DefaultConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return detection.ConfigFromMap(m)
}

func splitClasses(list string) []string {
	var out []string
	for _, name := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// runImage detects objects in a single decoded image and prints one result
// frame.
func runImage(eng *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}
	frame, err := images.FrameFromImage(img, 3)
	if err != nil {
		return err
	}

	start := time.Now()
	dets := eng.DetectObjects(frame)

	printJSON(detection.DetectionFrame{
		Detections:     dets,
		FrameTimestamp: float64(start.UnixNano()) / 1e9,
		ProcessingTime: time.Since(start).Seconds() * 1000,
		FrameSize:      [2]int{frame.Width, frame.Height},
		TotalObjects:   len(dets),
	})
	return nil
}

// runFrameDirectory replays a captured frame sequence through the pipeline
// in recorded order.
func runFrameDirectory(eng *engine.Engine, cfg *detection.Config, logger *zap.Logger, dir string) error {
	frames, err := images.LoadDirectory(dir)
	if err != nil {
		return err
	}
	logger.Info("replaying frame sequence", zap.String("dir", dir), zap.Int("frames", len(frames)))

	pipe := engine.NewPipeline(eng, logger)
	go func() {
		interval := time.Second / time.Duration(cfg.Detector.TargetFPS)
		for _, nf := range frames {
			pipe.Submit(nf.Frame)
			time.Sleep(interval)
		}
		pipe.Close()
	}()

	for result := range pipe.Results() {
		printJSON(result)
	}
	return nil
}

// runSynthetic pushes uniform gray frames through the pipeline, which
// exercises the full queue/worker path even with the mock backend.
func runSynthetic(eng *engine.Engine, cfg *detection.Config, logger *zap.Logger, count int) error {
	pipe := engine.NewPipeline(eng, logger)

	go func() {
		interval := time.Second / time.Duration(cfg.Detector.TargetFPS)
		for i := 0; i < count; i++ {
			frame := images.NewUniformFrame(syntheticWidth, syntheticHeight, 3, 114)
			pipe.Submit(frame)
			if pipe.Backpressure() {
				time.Sleep(interval)
			}
			time.Sleep(interval)
		}
		pipe.Close()
	}()

	for result := range pipe.Results() {
		printJSON(result)
	}
	return nil
}

func printJSON(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		return
	}
	fmt.Println(string(raw))
}
