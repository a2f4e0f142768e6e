package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovercam/go-detect/detection"
	"github.com/rovercam/go-detect/images"
)

// Pipeline runs an engine behind a bounded frame queue with a fixed worker
// pool. Producers submit frames without blocking; when the queue is full the
// oldest queued frame is dropped so the feed stays near real time.
type Pipeline struct {
	engine *Engine
	logger *zap.Logger

	frames  chan *images.Frame
	results chan detection.DetectionFrame

	adaptive bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewPipeline wires a pipeline around an existing engine using the engine's
// performance configuration for queue depth and worker count.
func NewPipeline(engine *Engine, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	perf := engine.cfg.Performance

	p := &Pipeline{
		engine:   engine,
		logger:   logger,
		frames:   make(chan *images.Frame, perf.FrameBufferSize),
		results:  make(chan detection.DetectionFrame, perf.FrameBufferSize),
		adaptive: perf.AdaptiveFPS,
	}

	for i := 0; i < perf.ProcessingThreads; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logger.Info("detection pipeline started",
		zap.Int("workers", perf.ProcessingThreads),
		zap.Int("queue_depth", perf.FrameBufferSize))
	return p
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for frame := range p.frames {
		start := time.Now()
		dets := p.engine.DetectObjects(frame)

		result := detection.DetectionFrame{
			Detections:     dets,
			FrameTimestamp: float64(start.UnixNano()) / 1e9,
			ProcessingTime: time.Since(start).Seconds() * 1000,
			FrameSize:      [2]int{frame.Width, frame.Height},
			TotalObjects:   len(dets),
		}

		select {
		case p.results <- result:
		default:
			// Consumer is behind; stale results are worthless.
			p.engine.AddDroppedFrames(1)
		}
	}
}

// Submit queues a frame without blocking. When the queue is full the oldest
// queued frame is evicted to make room; the evicted frame counts as dropped.
// Returns false once the pipeline is closed.
func (p *Pipeline) Submit(frame *images.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	for {
		select {
		case p.frames <- frame:
			return true
		default:
		}
		select {
		case <-p.frames:
			p.dropped++
			p.engine.AddDroppedFrames(1)
		default:
		}
	}
}

// Results delivers completed detection frames. The channel closes after
// Close drains the queue.
func (p *Pipeline) Results() <-chan detection.DetectionFrame {
	return p.results
}

// Backpressure reports whether a producer honoring adaptive pacing should
// slow down: the queue is full and adaptive mode is enabled.
func (p *Pipeline) Backpressure() bool {
	return p.adaptive && len(p.frames) == cap(p.frames)
}

// Dropped returns the number of frames evicted by Submit since construction.
func (p *Pipeline) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops intake, lets the workers drain the queue, then closes the
// results channel. Safe to call more than once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.frames)
	p.wg.Wait()
	close(p.results)
	p.logger.Info("detection pipeline stopped", zap.Int64("dropped_frames", p.Dropped()))
}
