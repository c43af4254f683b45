package emu

import (
	"fmt"
	"strings"

	"speccy/emu/log"
	"speccy/hw"
	"speccy/tape"
)

// earInLookahead is how many frames of tape pulses are queued ahead of the
// CPU, so a pulse straddling the frame boundary is never cut short.
const earInLookahead = 2

// Session ties one machine to its tape deck and audio mixer and runs the
// per-frame orchestration: tape heuristics, turbo control, pending
// NMI/reset delivery, frame execution. It is single-threaded; the
// emulation loop owns it.
type Session struct {
	Machine hw.Machine
	Deck    *tape.Deck
	Mixer   *hw.AudioMixer

	fw   hw.Firmware
	tcfg TapeConfig

	// turbo runs frames back to back, without real-time pacing. The tape
	// heuristics raise it on a detected load and drop it when the tape
	// goes quiet; the user can toggle it too.
	turbo bool

	// flashLoad enables the automatic play-and-accelerate heuristics.
	flashLoad bool

	// audibleTape routes the tape signal to the speaker while the deck
	// runs. Toggled by CmdTapeAudible.
	audibleTape bool

	prevProbes uint32 // EAR-IN probe count of the frame before last
	nmiPending bool
	resetNext  bool // deliver a reset before the next frame
	resetHard  bool
}

func NewSession(m hw.Machine, deck *tape.Deck, mix *hw.AudioMixer, fw hw.Firmware, tcfg TapeConfig) *Session {
	return &Session{
		Machine:     m,
		Deck:        deck,
		Mixer:       mix,
		fw:          fw,
		tcfg:        tcfg,
		flashLoad:   tcfg.FlashLoad,
		audibleTape: tcfg.Audible,
	}
}

// RequestNMI schedules a non-maskable interrupt for the next frame
// boundary. It stays pending until the CPU accepts it.
func (s *Session) RequestNMI() { s.nmiPending = true }

// RequestReset schedules a reset for the next frame boundary.
func (s *Session) RequestReset(hard bool) {
	s.resetNext = true
	s.resetHard = hard
}

func (s *Session) Turbo() bool      { return s.turbo }
func (s *Session) SetTurbo(on bool) { s.turbo = on }
func (s *Session) ToggleTurbo()     { s.turbo = !s.turbo }

func (s *Session) ToggleFlashLoad() { s.flashLoad = !s.flashLoad }
func (s *Session) FlashLoad() bool  { return s.flashLoad }

func (s *Session) ToggleTapeAudible() { s.audibleTape = !s.audibleTape }
func (s *Session) TapeAudible() bool  { return s.audibleTape }

// RunFrame executes one frame: harvest the previous frame's tape output,
// queue tape input, deliver pending NMI and reset, then step the machine
// and apply the activity heuristics to the new frame's EAR probe count.
// It returns the emulated time that passed, in T-states, and whether the
// deck motion or the turbo flag changed, so the caller can refresh the
// title and the audio routing.
func (s *Session) RunFrame() (ticks int64, stateChanged bool) {
	wasRunning := s.Deck.Running()
	wasTurbo := s.turbo

	s.recordMicOut()
	s.feedEarIn()

	if s.nmiPending && s.Machine.TriggerNMI() {
		s.nmiPending = false
		log.ModEmu.InfoZ("nmi delivered").End()
	}
	if s.resetNext {
		s.Machine.Reset(s.resetHard)
		s.resetNext = false
		log.ModEmu.InfoZ("reset").Bool("hard", s.resetHard).End()
	}

	s.Machine.StepFrame()

	s.autoTape()
	ticks = int64(s.Machine.FrameTicks())
	return ticks, s.Deck.Running() != wasRunning || s.turbo != wasTurbo
}

// RunAccelerated executes frames back to back, stopping as soon as the
// heuristics change the tape or turbo state, or one wall-clock frame has
// elapsed on fs. Either way it ends within one real frame interval, so a
// stuck turbo can always be toggled off.
func (s *Session) RunAccelerated(fs *FrameSync) (ticks int64, stateChanged bool) {
	for {
		t, changed := s.RunFrame()
		ticks += t
		if changed {
			return ticks, true
		}
		if fs.FrameElapsed() {
			return ticks, false
		}
	}
}

// recordMicOut feeds the previous frame's MIC line pulses into the
// recording decoder. A write failure stops the recording and drops turbo
// but keeps the session running.
func (s *Session) recordMicOut() {
	if s.Deck.State() != tape.Recording {
		return
	}
	dec := s.Deck.RecordingDecoder()
	if _, err := dec.WritePulses(s.Machine.MicOutPulses()); err != nil {
		log.ModTape.WarnZ("tape write failed").Error("err", err).End()
		s.Deck.Stop()
		s.turbo = false
	}
}

// feedEarIn keeps the EAR input line supplied with tape pulses while the
// deck plays, and stops the deck when the tape runs out.
func (s *Session) feedEarIn() {
	if s.Deck.State() != tape.Playing {
		return
	}
	src := s.Deck.Pulses()
	s.Machine.FeedEarIn(src, earInLookahead)
	if src.Done() {
		if err := src.Err(); err != nil {
			log.ModTape.WarnZ("tape read failed").Error("err", err).End()
		} else {
			log.ModTape.InfoZ("end of tape").End()
		}
		s.Deck.Stop()
		s.turbo = false
	}
}

// autoTape applies the activity heuristics to the frame that just ran.
//
// A program loading from tape polls the EAR line in a tight loop, thousands
// of times per frame; anything else polls it rarely or never. So: a stopped
// tape starts playing (and accelerates) when one frame's probe count
// exceeds the probe threshold, and an accelerated playing tape stops when
// two consecutive frames together stay under the idle threshold. Recording
// under flash load tracks the decoder: turbo is held exactly while it is
// inside a chunk.
func (s *Session) autoTape() {
	probes := s.Machine.EarInProbes()
	prev := s.prevProbes
	s.prevProbes = probes

	switch s.Deck.State() {
	case tape.Stopped:
		if s.flashLoad && probes > s.tcfg.ProbeThreshold {
			if err := s.Deck.Play(); err == nil {
				s.turbo = true
				log.ModTape.InfoZ("tape auto-started").
					Uint("probes", uint64(probes)).
					End()
			}
		}

	case tape.Playing:
		if s.turbo && prev+probes < s.tcfg.IdleThreshold {
			s.Deck.Stop()
			s.turbo = false
			log.ModTape.InfoZ("tape auto-stopped").End()
		}

	case tape.Recording:
		if s.turbo || s.flashLoad {
			busy := s.Deck.RecordingDecoder().Busy()
			if s.turbo != busy {
				s.turbo = busy
				log.ModTape.InfoZ("tape recording activity").
					Bool("turbo", busy).
					End()
			}
		}
	}
}

// Info is a one-line session status, used as the window title.
func (s *Session) Info() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "speccy - %s", s.Machine.Model())
	if s.turbo {
		sb.WriteString(" >>")
	}

	switch s.Deck.State() {
	case tape.Stopped:
		fmt.Fprintf(&sb, " | tape %s", s.Deck.Name())
	case tape.Playing:
		fmt.Fprintf(&sb, " | playing %s", s.Deck.Name())
	case tape.Recording:
		fmt.Fprintf(&sb, " | recording %s", s.Deck.Name())
	}
	if s.Deck.Inserted() {
		if info, err := s.Deck.CurrentChunkInfo(); err == nil {
			fmt.Fprintf(&sb, " [%s]", info)
		}
	}
	return sb.String()
}
