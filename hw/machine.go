// Package hw hosts the hardware shells: the three Spectrum model variants,
// their memory layouts, the ULA frame stepper and the audio/video/input
// front end. Instruction execution is delegated to the external Z80 core;
// everything above it (frame pacing, tape heuristics, migration) lives in
// package emu and only sees the Machine interface.
package hw

import (
	"fmt"
	"io"
	"time"

	"github.com/koron-go/z80"

	"speccy/tape"
)

// Model identifies a hardware configuration.
type Model int

//go:generate go tool stringer -type=Model -linecomment

const (
	Model16  Model = iota // ZX Spectrum 16k
	Model48               // ZX Spectrum 48k
	Model128              // ZX Spectrum 128k

	numModels
)

func (m Model) Valid() bool { return m >= 0 && m < numModels }

// RAMSize is the writable memory of the configuration, in bytes.
func (m Model) RAMSize() int {
	switch m {
	case Model16:
		return 16 * 1024
	case Model48:
		return 48 * 1024
	case Model128:
		return 128 * 1024
	}
	return 0
}

// clockHz is the CPU clock of the configuration.
func (m Model) clockHz() int64 {
	if m == Model128 {
		return 3_546_900
	}
	return 3_500_000
}

// frameTicks is the T-state length of one video frame.
func (m Model) frameTicks() uint32 {
	if m == Model128 {
		return 70908
	}
	return 69888
}

func ParseModel(s string) (Model, error) {
	switch s {
	case "16":
		return Model16, nil
	case "48":
		return Model48, nil
	case "128":
		return Model128, nil
	}
	return 0, fmt.Errorf("unknown model %q (want 16, 48 or 128)", s)
}

// SignalEdge is one output-line level change, timestamped in T-states from
// the start of the current frame. Level packs the MIC bit (bit 0) and the
// EAR bit (bit 1) as last written to the ULA port.
type SignalEdge struct {
	Tick  uint32
	Level uint8
}

// KeyboardState is the 8x5 key matrix, one half-row per element, low 5 bits
// used, 1 meaning pressed.
type KeyboardState [8]uint8

// Machine is the frame-stepping contract between the orchestration core and
// a hardware configuration. A Machine is exclusively owned by one session
// and is never stepped concurrently.
type Machine interface {
	Model() Model
	ClockHz() int64
	FrameTicks() int
	FrameDuration() time.Duration
	CurrentTick() int64

	// StepFrame runs the Z80 for one frame worth of T-states, raising the
	// frame interrupt first. Output edges and the EAR-IN probe count of the
	// previous frame are discarded when a new frame starts.
	StepFrame()
	Reset(hard bool)
	TriggerNMI() bool

	// OutputEdges returns the EAR/MIC output edges recorded during the last
	// completed frame, ordered by timestamp.
	OutputEdges() []SignalEdge
	// MicOutPulses converts the last frame's output edges into pulse widths
	// for the tape decoder.
	MicOutPulses() tape.PulseSource
	// EarInProbes is the number of times the EAR-IN line was sampled during
	// the last completed frame.
	EarInProbes() uint32
	// FeedEarIn schedules tape pulses on the EAR-IN line, consuming the
	// source at most frameLimit frames ahead of the current tick.
	FeedEarIn(src *tape.PulseStream, frameLimit int)

	// RenderAudioFrame folds the frame's signal edges into the mixer.
	// audibleTape selects the EAR+MIC blend and adds the EAR-IN line.
	RenderAudioFrame(mix *AudioMixer, audibleTape bool)

	RenderVideoFrame(buf []byte, pitch int)
	BorderColor() uint8
	SetBorderColor(c uint8)

	// RAMSnapshot reads the addressable writable memory in sequential bank
	// order. LoadRAM overwrites it from a stream, truncating to fit.
	RAMSnapshot() io.Reader
	LoadRAM(r io.Reader)

	SetKeyState(ks KeyboardState)
	KeyState() KeyboardState

	// CPU register file, copied by value during migration. The halted flag
	// is not part of the register file and travels on its own.
	CPUState() z80.States
	SetCPUState(st z80.States)
	Halted() bool
	SetHalted(h bool)
}

// JoystickAccess is implemented by machines with a pluggable joystick bus.
type JoystickAccess interface {
	JoystickBus() *JoystickBus
}

// KeypadAccess is implemented by machines carrying the serial keypad.
type KeypadAccess interface {
	Keypad() *Keypad
}

// NewMachine builds a powered-up machine of the given model: randomized
// RAM, firmware loaded from the canonical images, CPU at the reset vector.
func NewMachine(model Model, fw Firmware) (Machine, error) {
	switch model {
	case Model16, Model48:
		return newSpectrum48(model, fw)
	case Model128:
		return newSpectrum128(fw)
	}
	return nil, fmt.Errorf("unsupported model id %d", model)
}
