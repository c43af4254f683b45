package hw

import (
	"time"

	"github.com/koron-go/z80"

	"speccy/tape"
)

// Average instruction cost. The scheduler only needs frame-level accuracy,
// per-instruction contention is left to the CPU core.
const ticksPerStep = 4

// portHandler is the model-specific slice of the IO space, consulted before
// the ULA's own decoding.
type portHandler interface {
	portIn(hi, lo uint8) (uint8, bool)
	portOut(hi, lo, v uint8) bool
}

// nullPorts is the 16k/48k IO space: everything beyond the ULA floats.
type nullPorts struct{}

func (nullPorts) portIn(hi, lo uint8) (uint8, bool) { return 0, false }
func (nullPorts) portOut(hi, lo, v uint8) bool      { return false }

// ula is the shared machine chassis: CPU, memory decoding, ULA port,
// keyboard matrix, tape signal plumbing and frame bookkeeping. The
// model wrappers supply the memory bus and extra IO decoding.
type ula struct {
	model      Model
	mem        memoryBus
	cpu        z80.CPU
	inNMI      bool // set by TriggerNMI, cleared when the handler RETNs
	ports      portHandler
	clockHz    int64
	frameTicks uint32

	tick  uint32 // T-states into the current frame
	total uint64 // T-states since power-on
	frame uint64

	border uint8
	keys   KeyboardState
	joy    *JoystickBus

	// EAR/MIC output edges of the current frame, in tick order.
	edges    []SignalEdge
	outLevel uint8 // last written MIC|EAR bits, SignalEdge encoding

	// EAR input toggle schedule, absolute ticks.
	earQueue   []uint64
	earEdge    uint64 // tick of the last queued toggle
	earLevel   uint8  // current bit 6 value
	earProbes  uint32
	earInEdges []SignalEdge // EAR-IN toggles of the current frame
	frameStart uint64       // absolute tick of the current frame start

	// MIC output pulse widths, for the recording decoder.
	micQueue []uint32
	micLast  uint64 // absolute tick of the last MIC toggle
}

func (u *ula) init(model Model, mem memoryBus, ports portHandler) {
	u.model = model
	u.mem = mem
	u.ports = ports
	u.clockHz = model.clockHz()
	u.frameTicks = model.frameTicks()
	u.joy = NewJoystickBus()
	u.cpu.Memory = u
	u.cpu.IO = u
	u.cpu.RETNHandler = u
}

func (u *ula) Model() Model              { return u.model }
func (u *ula) ClockHz() int64            { return u.clockHz }
func (u *ula) FrameTicks() int           { return int(u.frameTicks) }
func (u *ula) CurrentTick() int64        { return int64(u.tick) }
func (u *ula) BorderColor() uint8        { return u.border }
func (u *ula) SetBorderColor(c uint8)    { u.border = c & 7 }
func (u *ula) JoystickBus() *JoystickBus { return u.joy }

// FrameDuration is the wall-clock length of one frame: 19.968ms for the
// 16k/48k timing, a hair over 19.992ms for the 128k.
func (u *ula) FrameDuration() time.Duration {
	return time.Duration(u.frameTicks) * time.Second / time.Duration(u.clockHz)
}

func (u *ula) SetKeyState(keys KeyboardState) { u.keys = keys }
func (u *ula) KeyState() KeyboardState        { return u.keys }

func (u *ula) CPUState() z80.States     { return u.cpu.States }
func (u *ula) SetCPUState(s z80.States) { u.cpu.States = s }

// The halted flag lives next to the register file but not in it, so model
// migration carries it separately.
func (u *ula) Halted() bool     { return u.cpu.HALT }
func (u *ula) SetHalted(h bool) { u.cpu.HALT = h }

// Get and Set implement z80.Memory.
func (u *ula) Get(addr uint16) uint8    { return u.mem.read(addr) }
func (u *ula) Set(addr uint16, v uint8) { u.mem.write(addr, v) }

// In implements z80.IO. The core hands us the low address byte only; the
// Spectrum firmware drives all 16-bit ports through BC (IN A,(C)), so the
// high byte is recovered from B.
func (u *ula) In(lo uint8) uint8 {
	hi := u.cpu.States.BC.Hi
	if v, ok := u.ports.portIn(hi, lo); ok {
		return v
	}
	if lo&1 == 0 {
		return u.ulaIn(hi)
	}
	if u.joy.Mode() == JoyKempston && lo == 0x1F {
		return u.joy.KempstonByte()
	}
	return 0xFF
}

// Out implements z80.IO.
func (u *ula) Out(lo uint8, v uint8) {
	hi := u.cpu.States.BC.Hi
	if u.ports.portOut(hi, lo, v) {
		return
	}
	if lo&1 != 0 {
		return
	}
	u.border = v & 7
	level := (v >> 3) & 3 // bit0 MIC, bit1 EAR, matching SignalEdge
	if level == u.outLevel {
		return
	}
	if level&1 != u.outLevel&1 {
		u.recordMicToggle()
	}
	u.outLevel = level
	u.edges = append(u.edges, SignalEdge{Tick: u.tick, Level: level})
}

func (u *ula) recordMicToggle() {
	width := u.total - u.micLast
	u.micLast = u.total
	if width > 1<<31 {
		width = 1 << 31
	}
	u.micQueue = append(u.micQueue, uint32(width))
}

// ulaIn reads port 0xFE: keyboard half-rows selected by zero bits of the
// high address byte, plus the EAR input on bit 6. Unused bits float high.
func (u *ula) ulaIn(hi uint8) uint8 {
	u.earProbes++
	u.advanceEarIn()
	var pressed uint8
	for row := range 8 {
		if hi&(1<<row) == 0 {
			pressed |= u.keys[row] | u.joy.rowOverlay(row)
		}
	}
	return (0x1F &^ pressed) | 0xA0 | u.earLevel
}

func (u *ula) advanceEarIn() {
	for len(u.earQueue) > 0 && u.earQueue[0] <= u.total {
		at := u.earQueue[0]
		u.earLevel ^= 0x40
		u.earQueue = u.earQueue[1:]
		tick := uint32(0)
		if at > u.frameStart {
			tick = uint32(at - u.frameStart)
		}
		u.earInEdges = append(u.earInEdges, SignalEdge{Tick: tick, Level: u.earLevel >> 6})
	}
}

// EarInEdges returns the EAR-IN toggles of the last completed frame, for
// mixing the tape signal into the audio output.
func (u *ula) EarInEdges() []SignalEdge { return u.earInEdges }

// FeedEarIn queues pulses from src onto the EAR input line, covering the
// next frames frames of emulated time. Pulses already queued are kept.
func (u *ula) FeedEarIn(src *tape.PulseStream, frames int) {
	horizon := u.total + uint64(u.frameTicks)*uint64(frames)
	if u.earEdge < u.total {
		u.earEdge = u.total
	}
	for u.earEdge < horizon {
		width, ok := src.Next()
		if !ok {
			return
		}
		u.earEdge += uint64(width)
		u.earQueue = append(u.earQueue, u.earEdge)
	}
}

func (u *ula) EarInProbes() uint32 { return u.earProbes }

func (u *ula) OutputEdges() []SignalEdge { return u.edges }

// MicOutPulses drains the MIC pulse widths accumulated since the last call.
func (u *ula) MicOutPulses() tape.PulseSource {
	q := u.micQueue
	u.micQueue = nil
	return &micSource{pulses: q}
}

type micSource struct{ pulses []uint32 }

func (s *micSource) Next() (uint32, bool) {
	if len(s.pulses) == 0 {
		return 0, false
	}
	p := s.pulses[0]
	s.pulses = s.pulses[1:]
	return p, true
}

// StepFrame runs the CPU to the end of the current frame, delivering the
// ULA frame interrupt first. Leftover T-states carry into the next frame.
func (u *ula) StepFrame() {
	u.edges = u.edges[:0]
	u.earInEdges = u.earInEdges[:0]
	u.earProbes = 0
	u.frameStart = u.total
	u.maskableInterrupt()
	for u.tick < u.frameTicks {
		if !u.cpu.HALT {
			u.cpu.Step()
		}
		u.tick += ticksPerStep
		u.total += ticksPerStep
	}
	u.advanceEarIn() // tape keeps rolling even when the program stops probing
	u.tick -= u.frameTicks
	u.frame++
}

// maskableInterrupt asserts the 50Hz ULA interrupt at the frame boundary.
// The CPU core consumes the signal on its next step. The 0xFF data byte
// covers every mode: RST 38 under IM 0 (the data bus floats high on the
// Spectrum), unused under IM 1, vector low byte under IM 2.
func (u *ula) maskableInterrupt() {
	if !u.cpu.IFF1 || u.cpu.Interrupt != nil {
		return
	}
	u.unhalt()
	u.cpu.Interrupt = z80.IM2Interrupt(0xFF)
	u.tick += 13
	u.total += 13
}

// TriggerNMI asserts the non-maskable interrupt line. Refused while a
// previous handler is still running; RETN re-arms it.
func (u *ula) TriggerNMI() bool {
	if u.inNMI {
		return false
	}
	u.inNMI = true
	u.unhalt()
	u.cpu.Interrupt = z80.NMIInterrupt() // outranks a pending maskable
	return true
}

// RETNHandle implements z80.RETNHandler: RETN marks the end of NMI service.
func (u *ula) RETNHandle() { u.inNMI = false }

// unhalt releases a CPU parked on a HALT opcode. The core rewinds PC onto
// the HALT, so move past it before the interrupt pushes the return address.
func (u *ula) unhalt() {
	if u.cpu.HALT {
		u.cpu.HALT = false
		u.cpu.PC++
	}
}

// resetCPU is the soft part of a reset: the CPU restarts at the ROM entry
// point, outputs drop, pending tape input is flushed.
func (u *ula) resetCPU() {
	u.cpu.States = z80.States{}
	u.cpu.HALT = false
	u.cpu.Interrupt = nil
	u.inNMI = false
	u.tick = 0
	u.border = 7
	u.edges = u.edges[:0]
	u.outLevel = 0
	u.earQueue = nil
	u.earLevel = 0
	u.micQueue = nil
	u.micLast = u.total
}
