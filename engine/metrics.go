package engine

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/rovercam/go-detect/detection"
)

// perfCounters accumulates raw inference timing under the engine lock.
// Derived figures (fps, averages) are computed at snapshot time.
type perfCounters struct {
	totalInferences int64
	totalTime       time.Duration
	totalDetections int64
	droppedFrames   int64
	modelLoadTime   time.Duration
}

func (c *perfCounters) recordAttempt(d time.Duration) {
	c.totalInferences++
	c.totalTime += d
}

func (c *perfCounters) averageTime() time.Duration {
	if c.totalInferences == 0 {
		return 0
	}
	return c.totalTime / time.Duration(c.totalInferences)
}

func (c *perfCounters) fps() float64 {
	avg := c.averageTime()
	if avg <= 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}

// AddDroppedFrames accounts for frames discarded upstream, e.g. by a bounded
// pipeline queue under backpressure.
func (e *Engine) AddDroppedFrames(n int64) {
	e.mu.Lock()
	e.counters.droppedFrames += n
	e.mu.Unlock()
}

// Metrics samples process resource usage and combines it with the inference
// counters. CPU and memory figures come from the OS and may be zero when
// sampling fails; the counter-derived fields are always valid.
func (e *Engine) Metrics() detection.PerformanceMetrics {
	e.mu.Lock()
	m := detection.PerformanceMetrics{
		FPS:               e.counters.fps(),
		AvgProcessingTime: e.counters.averageTime().Seconds() * 1000,
		DroppedFrames:     e.counters.droppedFrames,
		TotalDetections:   e.counters.totalDetections,
	}
	e.mu.Unlock()

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.CPUUsage = percents[0]
	} else if err != nil {
		e.logger.Debug("cpu sampling failed", zap.Error(err))
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pct, err := proc.MemoryPercent(); err == nil {
			m.MemoryUsage = float64(pct)
		}
	}

	return m
}

// Stats returns the engine-level counters alongside the processor's own
// preprocessing figures.
func (e *Engine) Stats() map[string]interface{} {
	e.mu.Lock()
	stats := map[string]interface{}{
		"total_inferences":  e.counters.totalInferences,
		"total_detections":  e.counters.totalDetections,
		"avg_inference_ms":  e.counters.averageTime().Seconds() * 1000,
		"inference_fps":     e.counters.fps(),
		"dropped_frames":    e.counters.droppedFrames,
		"model_load_time_s": e.counters.modelLoadTime.Seconds(),
		"model_type":        string(e.modelType),
	}
	e.mu.Unlock()

	pre := e.processor.GetStats()
	stats["preprocess_total_frames"] = pre.TotalFrames
	stats["preprocess_avg_time_s"] = pre.AvgProcessingTime
	stats["preprocess_fps"] = pre.AvgFPS
	return stats
}

// ResetStats clears the inference counters and per-class tallies. The model
// load time survives because it describes the current backend, not traffic.
func (e *Engine) ResetStats() {
	e.mu.Lock()
	loadTime := e.counters.modelLoadTime
	e.counters = perfCounters{modelLoadTime: loadTime}
	e.classCounts = map[string]int64{}
	e.mu.Unlock()

	e.processor.ResetStats()
}
