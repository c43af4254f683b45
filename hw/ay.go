package hw

// AY-3-8912 programmable sound generator, as fitted to the 128k models.
// Register writes are journaled with their frame timestamp so RenderFrame
// can replay them at the right position in the frame.
//
// The AY runs at half the CPU clock and its tone prescaler divides by 16,
// so one tone unit is 32 T-states. Rendering walks the frame in these
// units, which is plenty for the audible range.

const ayUnit = 32 // T-states per tone counter step

// Register indices.
const (
	ayToneALo = iota
	ayToneAHi
	ayToneBLo
	ayToneBHi
	ayToneCLo
	ayToneCHi
	ayNoise
	ayMixer
	ayVolA
	ayVolB
	ayVolC
	ayEnvLo
	ayEnvHi
	ayEnvShape
	ayPortA
)

// Logarithmic volume curve scaled to the per-channel headroom.
var ayVols = [16]int16{
	0, ampScale * 1 / 100, ampScale * 1 / 66, ampScale * 1 / 45,
	ampScale * 1 / 32, ampScale * 1 / 21, ampScale * 1 / 15, ampScale * 1 / 9,
	ampScale * 1 / 7, ampScale * 1 / 5, ampScale * 29 / 100, ampScale * 37 / 100,
	ampScale * 49 / 100, ampScale * 63 / 100, ampScale * 81 / 100, ampScale,
}

type ayWrite struct {
	tick uint32
	reg  uint8
	val  uint8
}

type AY struct {
	keypad *Keypad
	sel    uint8
	regs   [16]uint8 // CPU-visible register file
	writes []ayWrite // this frame's journal

	// Rendering state, advanced by RenderFrame only.
	rregs    [16]uint8
	toneCnt  [3]uint16
	toneOut  [3]uint8
	noiseCnt uint16
	lfsr     uint32
	noiseOut uint8
	envCnt   uint16
	envPos   int // 0..31 within the shape cycle
	amps     [3]int16
}

func NewAY(kp *Keypad) *AY {
	a := &AY{keypad: kp}
	a.Reset()
	return a
}

func (a *AY) Reset() {
	*a = AY{keypad: a.keypad, lfsr: 1}
}

func (a *AY) SelectReg(v uint8) { a.sel = v & 0x0F }

func (a *AY) WriteData(tick uint32, v uint8) {
	a.regs[a.sel] = v
	a.writes = append(a.writes, ayWrite{tick: tick, reg: a.sel, val: v})
}

func (a *AY) ReadData() uint8 {
	if a.sel == ayPortA && a.regs[ayMixer]&0x40 == 0 {
		return a.keypad.PortA()
	}
	return a.regs[a.sel]
}

// RenderFrame replays the frame's register journal, stepping the tone,
// noise and envelope generators in between, and emits amplitude steps into
// the mixer's three AY channels.
func (a *AY) RenderFrame(mix *AudioMixer, frameTicks uint32) {
	pos := uint32(0)
	for _, w := range a.writes {
		a.renderSpan(mix, pos, w.tick)
		pos = w.tick
		a.rregs[w.reg] = w.val
		if w.reg == ayEnvShape {
			a.envPos = 0
			a.envCnt = 0
		}
	}
	a.renderSpan(mix, pos, frameTicks)
	a.writes = a.writes[:0]
}

func (a *AY) renderSpan(mix *AudioMixer, from, to uint32) {
	for t := from; t < to; t += ayUnit {
		a.stepUnit()
		for ch := range 3 {
			amp := a.channelAmp(ch)
			if amp != a.amps[ch] {
				a.amps[ch] = amp
				mix.AddStep(ChanAYA+AudioChannel(ch), t, amp)
			}
		}
	}
}

func (a *AY) stepUnit() {
	for ch := range 3 {
		a.toneCnt[ch]++
		if a.toneCnt[ch] >= a.tonePeriod(ch) {
			a.toneCnt[ch] = 0
			a.toneOut[ch] ^= 1
		}
	}

	a.noiseCnt++
	np := uint16(a.rregs[ayNoise] & 0x1F)
	if np == 0 {
		np = 1
	}
	// The noise prescaler runs at half the tone rate.
	if a.noiseCnt >= np*2 {
		a.noiseCnt = 0
		a.noiseOut = uint8(a.lfsr & 1)
		fb := (a.lfsr ^ a.lfsr>>3) & 1
		a.lfsr = a.lfsr>>1 | fb<<16
	}

	a.envCnt++
	ep := uint16(a.rregs[ayEnvLo]) | uint16(a.rregs[ayEnvHi])<<8
	if ep == 0 {
		ep = 1
	}
	if a.envCnt >= ep {
		a.envCnt = 0
		if a.envPos < 31 {
			a.envPos++
		} else if shape := a.rregs[ayEnvShape]; shape&0x08 != 0 && shape&0x01 == 0 {
			a.envPos = 16 // continuous shapes repeat their second half
		}
	}
}

func (a *AY) tonePeriod(ch int) uint16 {
	p := uint16(a.rregs[2*ch]) | uint16(a.rregs[2*ch+1]&0x0F)<<8
	if p == 0 {
		p = 1
	}
	return p
}

// envVolume maps the envelope position onto a 0..15 volume for the
// configured shape. Positions 0..15 are the first half-cycle, 16..31 the
// repeating or held half.
func (a *AY) envVolume() uint8 {
	shape := a.rregs[ayEnvShape]
	pos := a.envPos
	attack := shape&0x04 != 0
	if pos >= 16 {
		switch {
		case shape&0x08 == 0: // one-shot, hold at the floor
			return holdVol(attack, false)
		case shape&0x01 != 0: // hold
			return holdVol(attack, shape&0x02 != 0)
		case shape&0x02 != 0: // alternate half
			attack = !attack
			pos -= 16
		default:
			pos -= 16
		}
	}
	if attack {
		return uint8(pos)
	}
	return uint8(15 - pos)
}

func holdVol(attack, alt bool) uint8 {
	if attack != alt {
		return 0
	}
	return 15
}

func (a *AY) channelAmp(ch int) int16 {
	mixer := a.rregs[ayMixer]
	toneOn := mixer&(1<<ch) == 0
	noiseOn := mixer&(1<<(ch+3)) == 0
	active := (!toneOn || a.toneOut[ch] != 0) && (!noiseOn || a.noiseOut != 0)
	if !active || (!toneOn && !noiseOn) {
		return 0
	}
	vol := a.rregs[ayVolA+ch]
	if vol&0x10 != 0 {
		return ayVols[a.envVolume()]
	}
	return ayVols[vol&0x0F]
}
