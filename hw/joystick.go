package hw

import "fmt"

// JoystickMode selects the interface a plugged joystick emulates.
type JoystickMode int

//go:generate go tool stringer -type=JoystickMode -linecomment

const (
	JoyNone     JoystickMode = iota // none
	JoyKempston                     // kempston
	JoySinclair1                    // sinclair1
	JoySinclair2                    // sinclair2
	JoyCursor                       // cursor
)

func ParseJoystickMode(s string) (JoystickMode, error) {
	for m := JoyNone; m <= JoyCursor; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown joystick mode %q", s)
}

// Direction bits, Kempston ordering.
const (
	JoyRight = 1 << iota
	JoyLeft
	JoyDown
	JoyUp
	JoyFire
)

// JoystickBus adapts one physical stick onto the selected interface:
// Kempston reads on port 0x1F, the Sinclair and cursor variants overlay
// keyboard half-rows.
type JoystickBus struct {
	mode  JoystickMode
	state uint8 // Kempston-ordered direction bits
}

func NewJoystickBus() *JoystickBus { return &JoystickBus{} }

func (j *JoystickBus) Mode() JoystickMode        { return j.mode }
func (j *JoystickBus) SetMode(mode JoystickMode) { j.mode = mode }

// CycleMode switches to the next interface, wrapping back to none.
func (j *JoystickBus) CycleMode() JoystickMode {
	j.mode++
	if j.mode > JoyCursor {
		j.mode = JoyNone
	}
	return j.mode
}

func (j *JoystickBus) Set(bits uint8, pressed bool) {
	if pressed {
		j.state |= bits
	} else {
		j.state &^= bits
	}
}

func (j *JoystickBus) KempstonByte() uint8 { return j.state }

// rowOverlay returns extra pressed-key bits for a keyboard half-row, for
// the interfaces that piggyback on the matrix. Sinclair 1 sits on keys 6-0
// (row 4), Sinclair 2 on 1-5 (row 3); cursor mode maps to 5,6,7,8 and 0.
func (j *JoystickBus) rowOverlay(row int) uint8 {
	var bits uint8
	switch j.mode {
	case JoySinclair1:
		if row != 4 {
			return 0
		}
		// 0=fire 9=up 8=down 7=left 6=right, keys read 0,9,8,7,6 as
		// bits 0..4 of the half-row.
		bits = pick(j.state, JoyFire, 0) | pick(j.state, JoyUp, 1) |
			pick(j.state, JoyDown, 2) | pick(j.state, JoyLeft, 3) |
			pick(j.state, JoyRight, 4)
	case JoySinclair2:
		if row != 3 {
			return 0
		}
		// 1=left 2=right 3=down 4=up 5=fire as bits 0..4.
		bits = pick(j.state, JoyLeft, 0) | pick(j.state, JoyRight, 1) |
			pick(j.state, JoyDown, 2) | pick(j.state, JoyUp, 3) |
			pick(j.state, JoyFire, 4)
	case JoyCursor:
		switch row {
		case 3: // key 5 = left, bit 4
			bits = pick(j.state, JoyLeft, 4)
		case 4: // keys 8,7,6 = right,up,down; 0 = fire
			bits = pick(j.state, JoyFire, 0) | pick(j.state, JoyDown, 4) |
				pick(j.state, JoyUp, 3) | pick(j.state, JoyRight, 2)
		}
	}
	return bits
}

func pick(state, dir uint8, bit int) uint8 {
	if state&dir != 0 {
		return 1 << bit
	}
	return 0
}
