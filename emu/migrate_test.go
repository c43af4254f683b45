package emu

import (
	"bytes"
	"io"
	"testing"

	"speccy/hw"
)

func testFirmware() hw.Firmware {
	page := func(fill byte) []byte {
		p := make([]byte, 16*1024)
		for i := range p {
			p[i] = fill
		}
		p[0] = 0x76 // halt
		return p
	}
	return hw.Firmware{
		ROM48:  page(0x01),
		ROM128: [2][]byte{page(0x02), page(0x03)},
	}
}

func migrationSession(t *testing.T, model hw.Model) *Session {
	t.Helper()
	fw := testFirmware()
	m, err := hw.NewMachine(model, fw)
	if err != nil {
		t.Fatal(err)
	}
	mix := hw.NewAudioMixer(m.ClockHz(), 44100)
	return NewSession(m, insertedDeck(t), mix, fw, testTapeConfig())
}

func ramPattern(size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(i*7 + i>>8)
	}
	return p
}

func snapshot(t *testing.T, m hw.Machine) []byte {
	t.Helper()
	b, err := io.ReadAll(m.RAMSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestMigrateRoundTripPreservesRAM(t *testing.T) {
	sess := migrationSession(t, hw.Model48)
	pattern := ramPattern(48 * 1024)
	sess.Machine.LoadRAM(bytes.NewReader(pattern))

	if err := sess.ChangeModel(hw.Model128); err != nil {
		t.Fatal(err)
	}
	if err := sess.ChangeModel(hw.Model48); err != nil {
		t.Fatal(err)
	}

	got := snapshot(t, sess.Machine)
	if !bytes.Equal(got, pattern) {
		t.Error("RAM image changed across a 48 -> 128 -> 48 round trip")
	}
}

func TestMigrateShrinkTruncates(t *testing.T) {
	sess := migrationSession(t, hw.Model48)
	pattern := ramPattern(48 * 1024)
	sess.Machine.LoadRAM(bytes.NewReader(pattern))

	if err := sess.ChangeModel(hw.Model16); err != nil {
		t.Fatal(err)
	}

	got := snapshot(t, sess.Machine)
	if len(got) != 16*1024 {
		t.Fatalf("16k snapshot is %d bytes", len(got))
	}
	if !bytes.Equal(got, pattern[:16*1024]) {
		t.Error("low 16k not preserved on shrink")
	}
}

func TestMigrateGrowPadsHigh(t *testing.T) {
	sess := migrationSession(t, hw.Model16)
	pattern := ramPattern(16 * 1024)
	sess.Machine.LoadRAM(bytes.NewReader(pattern))

	if err := sess.ChangeModel(hw.Model48); err != nil {
		t.Fatal(err)
	}

	got := snapshot(t, sess.Machine)
	if !bytes.Equal(got[:16*1024], pattern) {
		t.Error("low 16k not preserved on grow")
	}
	for i, b := range got[16*1024:] {
		if b != 0xFF {
			t.Fatalf("new RAM at +%#x = %#x, want 0xFF", i, b)
		}
	}
}

func TestMigrateCarriesMachineState(t *testing.T) {
	sess := migrationSession(t, hw.Model48)

	st := sess.Machine.CPUState()
	st.PC = 0x1234
	st.SP = 0x8000
	st.AF.Hi = 0x42
	sess.Machine.SetCPUState(st)
	sess.Machine.SetHalted(true)
	sess.Machine.SetBorderColor(5)
	var keys hw.KeyboardState
	keys[3] = 1 << 2
	sess.Machine.SetKeyState(keys)
	if ja, ok := sess.Machine.(hw.JoystickAccess); ok {
		ja.JoystickBus().SetMode(hw.JoyKempston)
	}

	if err := sess.ChangeModel(hw.Model128); err != nil {
		t.Fatal(err)
	}

	got := sess.Machine.CPUState()
	if got.PC != 0x1234 || got.SP != 0x8000 || got.AF.Hi != 0x42 {
		t.Errorf("CPU state not carried: PC=%#x SP=%#x A=%#x", got.PC, got.SP, got.AF.Hi)
	}
	if !sess.Machine.Halted() {
		t.Error("halted flag not carried")
	}
	if sess.Machine.BorderColor() != 5 {
		t.Errorf("border = %d, want 5", sess.Machine.BorderColor())
	}
	if sess.Machine.KeyState() != keys {
		t.Error("keyboard state not carried")
	}
	if ja, ok := sess.Machine.(hw.JoystickAccess); ok {
		if ja.JoystickBus().Mode() != hw.JoyKempston {
			t.Error("joystick mode not carried")
		}
	}
}

func TestMigrateRejectsUnknownModel(t *testing.T) {
	sess := migrationSession(t, hw.Model48)
	before := sess.Machine

	if err := sess.ChangeModel(hw.Model(99)); err == nil {
		t.Fatal("unknown model accepted")
	}
	if sess.Machine != before {
		t.Error("machine replaced despite the error")
	}
}

func TestMigrateSameModelIsNoOp(t *testing.T) {
	sess := migrationSession(t, hw.Model48)
	before := sess.Machine

	if err := sess.ChangeModel(hw.Model48); err != nil {
		t.Fatal(err)
	}
	if sess.Machine != before {
		t.Error("machine rebuilt for a same-model change")
	}
}
