package emu

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/koron-go/z80"
	"github.com/spf13/afero"

	"speccy/hw"
	"speccy/tape"
)

// fakeMachine is a scriptable Machine for exercising the session logic
// without a CPU core.
type fakeMachine struct {
	probes    uint32
	drainFeed bool     // consume the whole pulse stream in FeedEarIn
	mic       []uint32 // MIC pulses delivered on the next frame
	nmiOK     bool

	frames  int
	nmiTrys int
	resets  []bool
	border  uint8
	keys    hw.KeyboardState
	cpu     z80.States
	halted  bool
}

type queuedPulses struct{ pulses []uint32 }

func (q *queuedPulses) Next() (uint32, bool) {
	if len(q.pulses) == 0 {
		return 0, false
	}
	p := q.pulses[0]
	q.pulses = q.pulses[1:]
	return p, true
}

func (m *fakeMachine) Model() hw.Model { return hw.Model48 }
func (m *fakeMachine) ClockHz() int64 { return 3_500_000 }
func (m *fakeMachine) FrameTicks() int { return 69888 }
func (m *fakeMachine) FrameDuration() time.Duration { return 20 * time.Millisecond }
func (m *fakeMachine) CurrentTick() int64 { return int64(m.frames) * 69888 }
func (m *fakeMachine) StepFrame() { m.frames++ }
func (m *fakeMachine) Reset(hard bool) { m.resets = append(m.resets, hard) }
func (m *fakeMachine) OutputEdges() []hw.SignalEdge { return nil }
func (m *fakeMachine) MicOutPulses() tape.PulseSource {
	p := m.mic
	m.mic = nil
	return &queuedPulses{pulses: p}
}
func (m *fakeMachine) EarInProbes() uint32 { return m.probes }

func (m *fakeMachine) TriggerNMI() bool {
	m.nmiTrys++
	return m.nmiOK
}

func (m *fakeMachine) FeedEarIn(src *tape.PulseStream, frameLimit int) {
	if !m.drainFeed {
		return
	}
	for {
		if _, ok := src.Next(); !ok {
			return
		}
	}
}

func (m *fakeMachine) RenderAudioFrame(mix *hw.AudioMixer, audibleTape bool) {}
func (m *fakeMachine) RenderVideoFrame(buf []byte, pitch int) {}
func (m *fakeMachine) BorderColor() uint8 { return m.border }
func (m *fakeMachine) SetBorderColor(c uint8) { m.border = c }
func (m *fakeMachine) RAMSnapshot() io.Reader { return bytes.NewReader(nil) }
func (m *fakeMachine) LoadRAM(r io.Reader) {}
func (m *fakeMachine) SetKeyState(ks hw.KeyboardState) { m.keys = ks }
func (m *fakeMachine) KeyState() hw.KeyboardState { return m.keys }
func (m *fakeMachine) CPUState() z80.States { return m.cpu }
func (m *fakeMachine) SetCPUState(st z80.States) { m.cpu = st }
func (m *fakeMachine) Halted() bool { return m.halted }
func (m *fakeMachine) SetHalted(h bool) { m.halted = h }

func testTapeConfig() TapeConfig {
	return TapeConfig{ProbeThreshold: 1000, IdleThreshold: 20, FlashLoad: true}
}

// insertedDeck returns a deck with a one-chunk TAP loaded.
func insertedDeck(t *testing.T) *tape.Deck {
	t.Helper()
	fs := afero.NewMemMapFs()
	f, err := fs.Create("game.tap")
	if err != nil {
		t.Fatal(err)
	}
	cw := tape.NewChunkWriter(f)
	if err := cw.WriteChunk(tape.Chunk{0xFF, 0x10, 0x20, 0xFF ^ 0x10 ^ 0x20}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deck := tape.NewDeck(fs)
	if err := deck.Insert("game.tap"); err != nil {
		t.Fatal(err)
	}
	return deck
}

func runFrame(t *testing.T, s *Session) bool {
	t.Helper()
	ticks, changed := s.RunFrame()
	if ticks != 69888 {
		t.Fatalf("frame reported %d ticks, want 69888", ticks)
	}
	return changed
}

func TestTapeAutoStart(t *testing.T) {
	m := &fakeMachine{probes: 1001}
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, testTapeConfig())

	if !runFrame(t, sess) {
		t.Error("deck state change not reported")
	}
	if got := sess.Deck.State(); got != tape.Playing {
		t.Errorf("deck state = %v, want Playing", got)
	}
	if !sess.Turbo() {
		t.Error("auto-start did not enter turbo")
	}
}

func TestTapeNoStartAtThreshold(t *testing.T) {
	m := &fakeMachine{probes: 1000} // threshold is exclusive
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, testTapeConfig())

	for range 10 {
		if runFrame(t, sess) {
			t.Fatal("deck started at the probe threshold")
		}
	}
	if got := sess.Deck.State(); got != tape.Stopped {
		t.Errorf("deck state = %v, want Stopped", got)
	}
}

func TestTapeNoStartWithFlashLoadOff(t *testing.T) {
	m := &fakeMachine{probes: 5000}
	cfg := testTapeConfig()
	cfg.FlashLoad = false
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, cfg)

	runFrame(t, sess)
	if got := sess.Deck.State(); got != tape.Stopped {
		t.Errorf("deck state = %v, want Stopped", got)
	}
}

func TestTapeAutoStop(t *testing.T) {
	m := &fakeMachine{probes: 500}
	deck := insertedDeck(t)
	sess := NewSession(m, deck, nil, hw.Firmware{}, testTapeConfig())
	if err := deck.Play(); err != nil {
		t.Fatal(err)
	}
	sess.SetTurbo(true)

	runFrame(t, sess) // loader still busy
	m.probes = 10
	runFrame(t, sess) // 500+10, still over the idle threshold
	m.probes = 9
	if !runFrame(t, sess) { // 10+9 = 19 < 20
		t.Error("stop not reported as a state change")
	}
	if got := deck.State(); got != tape.Stopped {
		t.Errorf("deck state = %v, want Stopped", got)
	}
	if sess.Turbo() {
		t.Error("turbo survived the auto-stop")
	}
}

func TestTapeNoAutoStopWithoutTurbo(t *testing.T) {
	m := &fakeMachine{}
	deck := insertedDeck(t)
	sess := NewSession(m, deck, nil, hw.Firmware{}, testTapeConfig())
	if err := deck.Play(); err != nil {
		t.Fatal(err)
	}

	// Manual playback with zero probes stays put.
	for range 10 {
		runFrame(t, sess)
	}
	if got := deck.State(); got != tape.Playing {
		t.Errorf("deck state = %v, want Playing", got)
	}
}

func TestEndOfTapeStopsDeck(t *testing.T) {
	m := &fakeMachine{drainFeed: true}
	deck := insertedDeck(t)
	sess := NewSession(m, deck, nil, hw.Firmware{}, testTapeConfig())
	if err := deck.Play(); err != nil {
		t.Fatal(err)
	}
	sess.SetTurbo(true)

	if !runFrame(t, sess) {
		t.Error("end of tape not reported as a state change")
	}
	if got := deck.State(); got != tape.Stopped {
		t.Errorf("deck state = %v, want Stopped", got)
	}
	if sess.Turbo() {
		t.Error("turbo not cleared at end of tape")
	}
}

func TestRecordingRaisesTurboWhileDecoding(t *testing.T) {
	m := &fakeMachine{}
	deck := insertedDeck(t)
	sess := NewSession(m, deck, nil, hw.Firmware{}, testTapeConfig())
	if err := deck.Record(); err != nil {
		t.Fatal(err)
	}

	// A burst of pilot tone puts the decoder mid-chunk: with flash load
	// enabled the save runs accelerated.
	m.mic = make([]uint32, 32)
	for i := range m.mic {
		m.mic[i] = tape.PilotPulse
	}
	if !runFrame(t, sess) {
		t.Error("turbo raise not reported as a state change")
	}
	if !sess.Turbo() {
		t.Error("turbo not raised while the decoder is mid-chunk")
	}

	// No new pulses, but the chunk is still open: turbo holds.
	if runFrame(t, sess) {
		t.Error("spurious state change while the chunk is open")
	}
	if !sess.Turbo() {
		t.Error("turbo dropped while the decoder is mid-chunk")
	}

	// A long gap closes the chunk and the decoder goes idle.
	m.mic = []uint32{tape.BlockPause}
	if !runFrame(t, sess) {
		t.Error("turbo drop not reported as a state change")
	}
	if sess.Turbo() {
		t.Error("turbo held with an idle decoder")
	}
	if got := deck.State(); got != tape.Recording {
		t.Errorf("deck state = %v, recording should continue", got)
	}
}

func TestRecordingDropsTurboWhenIdle(t *testing.T) {
	m := &fakeMachine{}
	deck := insertedDeck(t)
	sess := NewSession(m, deck, nil, hw.Firmware{}, testTapeConfig())
	if err := deck.Record(); err != nil {
		t.Fatal(err)
	}
	sess.SetTurbo(true)

	// No MIC pulses arrive, so the decoder never goes busy.
	if !runFrame(t, sess) {
		t.Error("turbo drop not reported as a state change")
	}
	if sess.Turbo() {
		t.Error("turbo held with an idle decoder")
	}
	if got := deck.State(); got != tape.Recording {
		t.Errorf("deck state = %v, recording should continue", got)
	}
}

func TestRunAcceleratedStopsOnStateChange(t *testing.T) {
	m := &fakeMachine{probes: 1500}
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, testTapeConfig())
	fs := NewFrameSync(time.Hour) // deadline never elapses by itself

	ticks, changed := sess.RunAccelerated(fs)
	if !changed {
		t.Error("state change did not end the burst")
	}
	if ticks != 69888 {
		t.Errorf("burst ran %d ticks, want one frame", ticks)
	}
}

func TestRunAcceleratedBoundedByDeadline(t *testing.T) {
	m := &fakeMachine{}
	cfg := testTapeConfig()
	cfg.FlashLoad = false
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, cfg)
	fs := NewFrameSync(5 * time.Millisecond)

	start := time.Now()
	ticks, changed := sess.RunAccelerated(fs)
	if changed {
		t.Error("burst reported a state change with no heuristics firing")
	}
	if ticks < 69888 {
		t.Errorf("burst ran %d ticks, want at least one frame", ticks)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("burst ran for %v, want about one frame interval", elapsed)
	}
}

func TestNMIPendsUntilAccepted(t *testing.T) {
	m := &fakeMachine{nmiOK: false}
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, testTapeConfig())

	sess.RequestNMI()
	runFrame(t, sess)
	runFrame(t, sess)
	if m.nmiTrys != 2 {
		t.Errorf("refused NMI retried %d times, want 2", m.nmiTrys)
	}

	m.nmiOK = true
	runFrame(t, sess)
	runFrame(t, sess)
	if m.nmiTrys != 3 {
		t.Errorf("accepted NMI redelivered: %d tries", m.nmiTrys)
	}
}

func TestResetDelivery(t *testing.T) {
	m := &fakeMachine{}
	sess := NewSession(m, insertedDeck(t), nil, hw.Firmware{}, testTapeConfig())

	sess.RequestReset(true)
	runFrame(t, sess)
	runFrame(t, sess)
	if len(m.resets) != 1 || !m.resets[0] {
		t.Errorf("resets = %v, want one hard reset", m.resets)
	}
}

func TestToggleTapeAudible(t *testing.T) {
	cfg := testTapeConfig()
	cfg.Audible = true
	sess := NewSession(&fakeMachine{}, insertedDeck(t), nil, hw.Firmware{}, cfg)

	if !sess.TapeAudible() {
		t.Error("audible default not taken from config")
	}
	sess.ToggleTapeAudible()
	if sess.TapeAudible() {
		t.Error("toggle had no effect")
	}
}

// TestFlashLoadEndToEnd runs a real 48k machine whose ROM polls the EAR
// line in a tight loop against a real deck: playback must auto-start with
// turbo within a few frames, survive the whole chunk, and wind down when
// the tape runs out.
func TestFlashLoadEndToEnd(t *testing.T) {
	rom := make([]byte, 16*1024)
	copy(rom, []byte{
		0xF3,       // di
		0xDB, 0xFE, // in a,(0xFE)
		0x18, 0xFC, // jr -4
	})
	fw := hw.Firmware{ROM48: rom}
	m, err := hw.NewMachine(hw.Model48, fw)
	if err != nil {
		t.Fatal(err)
	}
	sess := NewSession(m, insertedDeck(t), nil, fw, testTapeConfig())

	started := -1
	for frame := 0; frame < 300; frame++ {
		sess.RunFrame()
		if started < 0 && sess.Turbo() {
			started = frame
		}
		if started >= 0 && !sess.Turbo() {
			if got := sess.Deck.State(); got != tape.Stopped {
				t.Fatalf("deck state = %v after turbo ended", got)
			}
			return
		}
	}
	if started < 0 {
		t.Fatal("flash load never started")
	}
	t.Fatal("flash load never finished")
}
