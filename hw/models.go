package hw

import (
	"fmt"
	"io"
)

// spectrum48 is the 16k and 48k configuration: flat memory, beeper only.
type spectrum48 struct {
	ula
	flat *flatMemory
}

func newSpectrum48(model Model, fw Firmware) (*spectrum48, error) {
	if len(fw.ROM48) == 0 {
		return nil, fmt.Errorf("%s: no 48k firmware image", model)
	}
	s := &spectrum48{flat: newFlatMemory(model, fw.ROM48)}
	s.ula.init(model, s.flat, nullPorts{})
	return s, nil
}

func (s *spectrum48) Reset(hard bool) {
	s.resetCPU()
	if hard {
		randomize(s.flat.ram)
	}
}

func (s *spectrum48) RAMSnapshot() io.Reader { return s.flat.ramReader() }
func (s *spectrum48) LoadRAM(r io.Reader)    { s.flat.loadRAM(r) }

func (s *spectrum48) RenderVideoFrame(buf []byte, pitch int) {
	renderScreen(buf, pitch, s.flat.screen(), s.border, s.frame)
}

func (s *spectrum48) RenderAudioFrame(mix *AudioMixer, audibleTape bool) {
	renderBeeper(mix, s.edges, audibleTape)
	if audibleTape {
		renderTapeIn(mix, s.earInEdges)
	}
	mix.Silence(ChanAYA)
	mix.Silence(ChanAYB)
	mix.Silence(ChanAYC)
}

// spectrum128 adds the banking MMU, the AY sound generator and the serial
// keypad to the shared chassis. It decodes ports 0x7FFD, 0xFFFD and 0xBFFD;
// like the real MMU this only looks at A15/A14 and A1, so the firmware's
// mirrored addresses work too.
type spectrum128 struct {
	ula
	banked *bankedMemory
	ay     *AY
	keypad *Keypad
}

func newSpectrum128(fw Firmware) (*spectrum128, error) {
	if len(fw.ROM128[0]) == 0 || len(fw.ROM128[1]) == 0 {
		return nil, fmt.Errorf("%s: incomplete 128k firmware images", Model128)
	}
	s := &spectrum128{
		banked: newBankedMemory(fw.ROM128),
		keypad: NewKeypad(),
	}
	s.ay = NewAY(s.keypad)
	s.ula.init(Model128, s.banked, s)
	return s, nil
}

func (s *spectrum128) portOut(hi, lo, v uint8) bool {
	if lo&0x02 != 0 {
		return false
	}
	switch {
	case hi&0x80 == 0:
		s.banked.setPort(v)
	case hi&0x40 != 0:
		s.ay.SelectReg(v)
	default:
		s.ay.WriteData(s.tick, v)
	}
	return true
}

func (s *spectrum128) portIn(hi, lo uint8) (uint8, bool) {
	if lo&0x02 != 0 || hi&0xC0 != 0xC0 {
		return 0, false
	}
	return s.ay.ReadData(), true
}

func (s *spectrum128) Reset(hard bool) {
	s.resetCPU()
	s.banked.port = 0 // unlocks the MMU
	s.ay.Reset()
	if hard {
		for i := range s.banked.banks {
			randomize(s.banked.banks[i][:])
		}
	}
}

func (s *spectrum128) RAMSnapshot() io.Reader { return s.banked.ramReader() }
func (s *spectrum128) LoadRAM(r io.Reader)    { s.banked.loadRAM(r) }

func (s *spectrum128) RenderVideoFrame(buf []byte, pitch int) {
	renderScreen(buf, pitch, s.banked.screen(), s.border, s.frame)
}

func (s *spectrum128) RenderAudioFrame(mix *AudioMixer, audibleTape bool) {
	renderBeeper(mix, s.edges, audibleTape)
	if audibleTape {
		renderTapeIn(mix, s.earInEdges)
	}
	s.ay.RenderFrame(mix, uint32(s.frameTicks))
}

func (s *spectrum128) Keypad() *Keypad { return s.keypad }

// LockBanking48 pins the MMU to the 48k-compatible configuration until the
// next reset. Used after migrating a 48k image onto 128k hardware, mirroring
// what the menu ROM does when entering 48 BASIC.
func (s *spectrum128) LockBanking48() {
	s.banked.lock48()
}
