package app

import (
	"sync"
	"time"
)

// TargetFrameTime is one NTSC frame
const TargetFrameTime = time.Duration(16666667) * time.Nanosecond

// FramePacer holds the game goroutine to the display rate and measures the
// frame times it achieves
type FramePacer struct {
	targetFrameTime time.Duration
	nextFrame       time.Time
	lastFrame       time.Time
	timing          *CircularTimingBuffer
	frameCount      uint64
	droppedFrames   uint64
}

// NewFramePacer creates a pacer for the given frame time
func NewFramePacer(targetFrameTime time.Duration) *FramePacer {
	return &FramePacer{
		targetFrameTime: targetFrameTime,
		timing:          NewCircularTimingBuffer(60),
	}
}

// Wait blocks until the next frame is due. A pacer that has fallen more than
// a frame behind starts over rather than rushing to catch up.
func (fp *FramePacer) Wait() {
	now := time.Now()
	if fp.nextFrame.IsZero() {
		fp.nextFrame = now
	}

	if delay := fp.nextFrame.Sub(now); delay > 0 {
		time.Sleep(delay)
		now = time.Now()
	} else if -delay > fp.targetFrameTime {
		fp.nextFrame = now
		fp.droppedFrames++
	}
	fp.nextFrame = fp.nextFrame.Add(fp.targetFrameTime)

	if !fp.lastFrame.IsZero() {
		fp.timing.Add(now.Sub(fp.lastFrame))
	}
	fp.lastFrame = now
	fp.frameCount++
}

// FPS returns the frame rate over the last second of frames
func (fp *FramePacer) FPS() float64 {
	avg := fp.timing.GetAverage()
	if avg <= 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}

// Jitter returns the mean deviation of recent frame times
func (fp *FramePacer) Jitter() time.Duration {
	return fp.timing.GetVariance()
}

// DroppedFrames returns how many times the pacer had to resynchronise
func (fp *FramePacer) DroppedFrames() uint64 {
	return fp.droppedFrames
}

// Reset forgets the schedule and the measurements
func (fp *FramePacer) Reset() {
	fp.nextFrame = time.Time{}
	fp.lastFrame = time.Time{}
	fp.frameCount = 0
	fp.droppedFrames = 0
	fp.timing.Reset()
}

// CircularTimingBuffer keeps the most recent frame time measurements
type CircularTimingBuffer struct {
	mu       sync.RWMutex
	buffer   []time.Duration
	capacity int
	index    int
	size     int
}

// NewCircularTimingBuffer creates a new circular timing buffer
func NewCircularTimingBuffer(capacity int) *CircularTimingBuffer {
	return &CircularTimingBuffer{
		buffer:   make([]time.Duration, capacity),
		capacity: capacity,
	}
}

// Add adds a timing measurement to the buffer
func (ctb *CircularTimingBuffer) Add(duration time.Duration) {
	ctb.mu.Lock()
	defer ctb.mu.Unlock()

	ctb.buffer[ctb.index] = duration
	ctb.index = (ctb.index + 1) % ctb.capacity

	if ctb.size < ctb.capacity {
		ctb.size++
	}
}

// GetAverage calculates the average of stored durations
func (ctb *CircularTimingBuffer) GetAverage() time.Duration {
	ctb.mu.RLock()
	defer ctb.mu.RUnlock()
	return ctb.average()
}

func (ctb *CircularTimingBuffer) average() time.Duration {
	if ctb.size == 0 {
		return 0
	}

	var total time.Duration
	for i := 0; i < ctb.size; i++ {
		total += ctb.buffer[i]
	}
	return total / time.Duration(ctb.size)
}

// GetVariance returns the mean absolute deviation of stored durations
func (ctb *CircularTimingBuffer) GetVariance() time.Duration {
	ctb.mu.RLock()
	defer ctb.mu.RUnlock()

	if ctb.size < 2 {
		return 0
	}

	avg := ctb.average()
	var deviation time.Duration
	for i := 0; i < ctb.size; i++ {
		diff := ctb.buffer[i] - avg
		if diff < 0 {
			diff = -diff
		}
		deviation += diff
	}
	return deviation / time.Duration(ctb.size)
}

// Reset clears the buffer
func (ctb *CircularTimingBuffer) Reset() {
	ctb.mu.Lock()
	defer ctb.mu.Unlock()
	ctb.index = 0
	ctb.size = 0
}
