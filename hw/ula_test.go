package hw

import (
	"bytes"
	"testing"

	"speccy/tape"
)

// testMachine48 builds a 48k machine whose ROM starts with the given
// program.
func testMachine48(t *testing.T, program ...byte) *spectrum48 {
	t.Helper()
	rom := make([]byte, pageSize)
	copy(rom, program)
	m, err := newSpectrum48(Model48, Firmware{ROM48: rom})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestEarProbeCounting(t *testing.T) {
	// di; loop: in a,(0xFE); jr loop
	m := testMachine48(t,
		0xF3,       // di
		0xDB, 0xFE, // in a,(0xFE)
		0x18, 0xFC, // jr -4
	)

	m.StepFrame()
	probes := m.EarInProbes()
	if probes < 1000 {
		t.Errorf("probe loop counted %d probes, want thousands", probes)
	}

	// The counter is per frame, not cumulative.
	m2 := m.EarInProbes()
	if m2 != probes {
		t.Errorf("second read = %d, want %d", m2, probes)
	}
	m.StepFrame()
	if got := m.EarInProbes(); got == 0 {
		t.Error("probe count vanished on the next frame")
	}
}

func TestKeyboardMatrix(t *testing.T) {
	// di; ld bc,0xFEFE; in a,(c); ld (0x8000),a; halt
	m := testMachine48(t,
		0xF3,
		0x01, 0xFE, 0xFE,
		0xED, 0x78,
		0x32, 0x00, 0x80,
		0x76,
	)

	var ks KeyboardState
	ks[0] = 1 << 4 // V, half-row 0xFE bit 4
	m.SetKeyState(ks)

	m.StepFrame()
	got := m.flat.read(0x8000)
	if want := uint8(0x0F | 0xA0); got != want {
		t.Errorf("port 0xFE read = %#x, want %#x", got, want)
	}
}

func TestOutputEdgesAndBorder(t *testing.T) {
	// di; ld a,0x15; out (0xFE),a; xor a; out (0xFE),a; halt
	m := testMachine48(t,
		0xF3,
		0x3E, 0x15,
		0xD3, 0xFE,
		0xAF,
		0xD3, 0xFE,
		0x76,
	)

	m.StepFrame()
	if got := m.BorderColor(); got != 0 {
		t.Errorf("border = %d, want 0 (last write)", got)
	}

	edges := m.OutputEdges()
	if len(edges) != 2 {
		t.Fatalf("recorded %d edges, want 2", len(edges))
	}
	// 0x15: EAR set (bit 4), MIC wiggled too? bit 3 of 0x15 is 0, so
	// level bits are EAR only.
	if edges[0].Level != 2 || edges[1].Level != 0 {
		t.Errorf("edge levels = %d,%d, want 2,0", edges[0].Level, edges[1].Level)
	}
	if edges[1].Tick <= edges[0].Tick {
		t.Error("edges out of order")
	}

	// Edges belong to one frame only.
	m.StepFrame()
	if got := len(m.OutputEdges()); got != 0 {
		t.Errorf("stale edges on next frame: %d", got)
	}
}

func TestMicOutPulses(t *testing.T) {
	// Toggle MIC (bit 3) twice, leaving two measurable pulse widths.
	// di; ld a,8; out (0xFE),a; xor a; out (0xFE),a; ld a,8; out (0xFE),a; halt
	m := testMachine48(t,
		0xF3,
		0x3E, 0x08,
		0xD3, 0xFE,
		0xAF,
		0xD3, 0xFE,
		0x3E, 0x08,
		0xD3, 0xFE,
		0x76,
	)

	m.StepFrame()
	src := m.MicOutPulses()
	var widths []uint32
	for {
		w, ok := src.Next()
		if !ok {
			break
		}
		widths = append(widths, w)
	}
	if len(widths) != 3 {
		t.Fatalf("got %d MIC pulses, want 3", len(widths))
	}
	// The drain is destructive.
	if w, ok := m.MicOutPulses().Next(); ok {
		t.Errorf("second drain returned %d", w)
	}
}

func TestTriggerNMI(t *testing.T) {
	// ROM: two halts back to back, retn at the NMI vector.
	rom := make([]byte, pageSize)
	rom[0x00] = 0x76
	rom[0x01] = 0x76
	rom[0x66] = 0xED // retn
	rom[0x67] = 0x45
	m, err := newSpectrum48(Model48, Firmware{ROM48: rom})
	if err != nil {
		t.Fatal(err)
	}
	st := m.CPUState()
	st.SP = 0xFFFE
	m.SetCPUState(st)

	m.StepFrame()
	if !m.Halted() {
		t.Fatal("CPU did not park on the halt")
	}

	if !m.TriggerNMI() {
		t.Fatal("TriggerNMI refused on idle CPU")
	}
	if m.TriggerNMI() {
		t.Error("nested NMI accepted before the handler ran")
	}

	// The handler runs on the next frame: push, retn, and the CPU resumes
	// past the halt it was woken from.
	m.StepFrame()
	st = m.CPUState()
	if st.PC != 0x01 {
		t.Errorf("PC = %#x, want 0x01 (resumed after the first halt)", st.PC)
	}
	if !m.Halted() {
		t.Error("CPU not parked on the second halt")
	}
	if st.SP != 0xFFFE {
		t.Errorf("SP = %#x, want 0xFFFE (unbalanced push)", st.SP)
	}
	if !m.TriggerNMI() {
		t.Error("retn did not re-arm the NMI")
	}
}

func TestMaskableInterrupt(t *testing.T) {
	// ROM: halt at 0, halt at the 0x38 vector too.
	rom := make([]byte, pageSize)
	rom[0x00] = 0x76
	rom[0x38] = 0x76
	m, err := newSpectrum48(Model48, Firmware{ROM48: rom})
	if err != nil {
		t.Fatal(err)
	}

	st := m.CPUState()
	st.IFF1, st.IFF2 = true, true
	st.IM = 1
	st.SP = 0xFFFE
	m.SetCPUState(st)

	m.StepFrame()
	st = m.CPUState()
	if !m.Halted() {
		t.Error("CPU not halted in the interrupt handler")
	}
	if st.PC != 0x38 {
		t.Errorf("PC = %#x, want 0x38 (halted at the vector)", st.PC)
	}
	if st.IFF1 {
		t.Error("IFF1 still set inside the handler")
	}
	if st.SP != 0xFFFC {
		t.Errorf("SP = %#x, want 0xFFFC (return address pushed)", st.SP)
	}
}

func TestFeedEarInReachesPort(t *testing.T) {
	// Probe loop, reading the EAR line all frame.
	m := testMachine48(t,
		0xF3,
		0xDB, 0xFE,
		0x18, 0xFC,
	)

	chunk := tape.Chunk{0xFF, 0x01, 0x02, 0x03, 0xFF}
	var buf bytes.Buffer
	cw := tape.NewChunkWriter(&buf)
	if err := cw.WriteChunk(chunk); err != nil {
		t.Fatal(err)
	}
	src := tape.NewPulseStream(tape.NewChunkReader(bytes.NewReader(buf.Bytes())))

	m.FeedEarIn(src, 2)
	m.StepFrame()

	if len(m.EarInEdges()) == 0 {
		t.Error("no EAR-IN toggles reached the line")
	}
	if m.EarInProbes() == 0 {
		t.Error("probe loop saw no port")
	}
}

func TestSoftReset(t *testing.T) {
	m := testMachine48(t, 0x76)
	m.SetBorderColor(3)
	m.flat.write(0x8000, 0x42)

	st := m.CPUState()
	st.PC = 0x1234
	m.SetCPUState(st)

	m.Reset(false)
	st = m.CPUState()
	if st.PC != 0 {
		t.Errorf("PC after reset = %#x", st.PC)
	}
	if m.BorderColor() != 7 {
		t.Errorf("border after reset = %d", m.BorderColor())
	}
	if got := m.flat.read(0x8000); got != 0x42 {
		t.Errorf("soft reset clobbered RAM: %#x", got)
	}
}
