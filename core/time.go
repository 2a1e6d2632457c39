package core

import (
	"time"
)

// ConstantFrame is the frame duration assumed before
// two frames were measured, one 60Hz frame
const ConstantFrame = time.Second / 60

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	pollDelay := time.Duration(cfg.EventPollDelay) * time.Millisecond
	if pollDelay <= 0 {
		pollDelay = time.Millisecond
	}

	return &Time{
		fps:            cfg.FramesPerSecond,
		fpsTicker:      time.NewTicker(interval),
		eventPollDelay: cfg.EventPollDelay,
		eventTicker:    time.NewTicker(pollDelay),
		frames:         NewFrameTimer(nil),
	}
}

// Time contains all the time services and tickers
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	eventPollDelay int
	eventTicker    *time.Ticker

	frames *FrameTimer
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Frames gets the frame timer driven by the game loop
func (t *Time) Frames() *FrameTimer {
	return t.frames
}

// Destroy stops the tickers
func (t *Time) Destroy() {
	t.fpsTicker.Stop()
	t.eventTicker.Stop()
}

// NewFrameTimer creates a frame timer. When now is nil
// the wall clock is used.
func NewFrameTimer(now func() time.Time) *FrameTimer {
	if now == nil {
		now = time.Now
	}
	return &FrameTimer{now: now}
}

// FrameTimer measures the time elapsed between consecutive frames
type FrameTimer struct {
	now   func() time.Time
	last  time.Time
	delta time.Duration
	count uint64
}

// Tick marks the beginning of a frame and returns the
// duration of the previous one
func (f *FrameTimer) Tick() time.Duration {
	current := f.now()
	if f.count == 0 {
		f.delta = ConstantFrame
	} else {
		f.delta = current.Sub(f.last)
	}
	f.last = current
	f.count++
	return f.delta
}

// FrameTime is the duration of the last measured frame
func (f *FrameTimer) FrameTime() time.Duration {
	if f.count == 0 {
		return ConstantFrame
	}
	return f.delta
}

// FrameTimeMs is FrameTime in milliseconds
func (f *FrameTimer) FrameTimeMs() float32 {
	return float32(f.FrameTime()) / float32(time.Millisecond)
}

// Frames is the number of ticks so far
func (f *FrameTimer) Frames() uint64 {
	return f.count
}
