package emu

import "time"

// FrameSync paces the emulation loop against the wall clock. Deadlines
// accumulate from the initial Restart rather than from each frame's actual
// end, so the long-run frame rate stays exact even when individual frames
// jitter.
type FrameSync struct {
	frameDur time.Duration
	deadline time.Time
}

func NewFrameSync(frameDur time.Duration) *FrameSync {
	fs := &FrameSync{frameDur: frameDur}
	fs.Restart()
	return fs
}

// SetFrameDuration adjusts the pace, keeping the current deadline. Called
// when migrating between models with different frame timings.
func (fs *FrameSync) SetFrameDuration(d time.Duration) { fs.frameDur = d }

func (fs *FrameSync) FrameDuration() time.Duration { return fs.frameDur }

// Restart re-anchors the deadline to now. Call it after any stretch where
// the loop intentionally stopped running frames (pause, heavy IO), or the
// backlog would be replayed at full speed.
func (fs *FrameSync) Restart() {
	fs.deadline = time.Now().Add(fs.frameDur)
}

// Synchronize sleeps until the current frame's deadline and moves it one
// frame forward. When the loop is running late it does not sleep and
// returns the number of whole frame periods that were missed.
func (fs *FrameSync) Synchronize() (missed int) {
	now := time.Now()
	if late := now.Sub(fs.deadline); late > 0 {
		missed = int(late / fs.frameDur)
		fs.deadline = fs.deadline.Add(time.Duration(missed+1) * fs.frameDur)
		return missed
	}
	time.Sleep(fs.deadline.Sub(now))
	fs.deadline = fs.deadline.Add(fs.frameDur)
	return 0
}

// FrameElapsed reports whether the current deadline has already passed,
// without sleeping. Accelerated runs use it as their time budget: emulate
// frames back to back until one wall-clock frame has elapsed.
func (fs *FrameSync) FrameElapsed() bool {
	return !time.Now().Before(fs.deadline)
}
