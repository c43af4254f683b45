package emu

import (
	"testing"
	"time"
)

func TestSynchronizePaces(t *testing.T) {
	const frameDur = 10 * time.Millisecond
	fs := NewFrameSync(frameDur)

	start := time.Now()
	for range 5 {
		if missed := fs.Synchronize(); missed != 0 {
			t.Errorf("missed %d frames on an idle loop", missed)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 5*frameDur {
		t.Errorf("5 frames took %v, want at least %v", elapsed, 5*frameDur)
	}
}

func TestSynchronizeReportsMissedFrames(t *testing.T) {
	const frameDur = 5 * time.Millisecond
	fs := NewFrameSync(frameDur)

	// Oversleep by three whole frame periods.
	time.Sleep(4 * frameDur)
	missed := fs.Synchronize()
	if missed < 2 {
		t.Errorf("missed = %d, want at least 2", missed)
	}

	// The deadline was pushed past now, so the next frame is on time.
	if missed := fs.Synchronize(); missed != 0 {
		t.Errorf("still late after catching up: missed %d", missed)
	}
}

func TestFrameElapsed(t *testing.T) {
	fs := NewFrameSync(20 * time.Millisecond)
	if fs.FrameElapsed() {
		t.Error("frame elapsed immediately after Restart")
	}
	time.Sleep(25 * time.Millisecond)
	if !fs.FrameElapsed() {
		t.Error("frame not elapsed past the deadline")
	}
	fs.Restart()
	if fs.FrameElapsed() {
		t.Error("frame elapsed right after Restart")
	}
}

func TestSetFrameDuration(t *testing.T) {
	fs := NewFrameSync(10 * time.Millisecond)
	fs.SetFrameDuration(20 * time.Millisecond)
	if got := fs.FrameDuration(); got != 20*time.Millisecond {
		t.Errorf("FrameDuration = %v", got)
	}
}
