package hw

import "github.com/veandco/go-sdl2/sdl"

// KeyEvent is one host keyboard transition, delivered by Output.Poll.
type KeyEvent struct {
	Scancode sdl.Scancode
	Down     bool
}

type matrixKey struct{ row, bit uint8 }

// Host key to ZX matrix position. Convenience keys (backspace, arrows,
// comma) expand to shifted combinations like the rubber keyboard legends.
var zxKeys = map[sdl.Scancode][]matrixKey{
	sdl.SCANCODE_LSHIFT: {{0, 0}},
	sdl.SCANCODE_Z:      {{0, 1}},
	sdl.SCANCODE_X:      {{0, 2}},
	sdl.SCANCODE_C:      {{0, 3}},
	sdl.SCANCODE_V:      {{0, 4}},

	sdl.SCANCODE_A: {{1, 0}},
	sdl.SCANCODE_S: {{1, 1}},
	sdl.SCANCODE_D: {{1, 2}},
	sdl.SCANCODE_F: {{1, 3}},
	sdl.SCANCODE_G: {{1, 4}},

	sdl.SCANCODE_Q: {{2, 0}},
	sdl.SCANCODE_W: {{2, 1}},
	sdl.SCANCODE_E: {{2, 2}},
	sdl.SCANCODE_R: {{2, 3}},
	sdl.SCANCODE_T: {{2, 4}},

	sdl.SCANCODE_1: {{3, 0}},
	sdl.SCANCODE_2: {{3, 1}},
	sdl.SCANCODE_3: {{3, 2}},
	sdl.SCANCODE_4: {{3, 3}},
	sdl.SCANCODE_5: {{3, 4}},

	sdl.SCANCODE_0: {{4, 0}},
	sdl.SCANCODE_9: {{4, 1}},
	sdl.SCANCODE_8: {{4, 2}},
	sdl.SCANCODE_7: {{4, 3}},
	sdl.SCANCODE_6: {{4, 4}},

	sdl.SCANCODE_P: {{5, 0}},
	sdl.SCANCODE_O: {{5, 1}},
	sdl.SCANCODE_I: {{5, 2}},
	sdl.SCANCODE_U: {{5, 3}},
	sdl.SCANCODE_Y: {{5, 4}},

	sdl.SCANCODE_RETURN: {{6, 0}},
	sdl.SCANCODE_L:      {{6, 1}},
	sdl.SCANCODE_K:      {{6, 2}},
	sdl.SCANCODE_J:      {{6, 3}},
	sdl.SCANCODE_H:      {{6, 4}},

	sdl.SCANCODE_SPACE:  {{7, 0}},
	sdl.SCANCODE_RSHIFT: {{7, 1}},
	sdl.SCANCODE_M:      {{7, 2}},
	sdl.SCANCODE_N:      {{7, 3}},
	sdl.SCANCODE_B:      {{7, 4}},

	sdl.SCANCODE_BACKSPACE: {{0, 0}, {4, 0}}, // caps shift + 0
	sdl.SCANCODE_LEFT:      {{0, 0}, {3, 4}}, // caps shift + 5
	sdl.SCANCODE_DOWN:      {{0, 0}, {4, 4}}, // caps shift + 6
	sdl.SCANCODE_UP:        {{0, 0}, {4, 3}}, // caps shift + 7
	sdl.SCANCODE_RIGHT:     {{0, 0}, {4, 2}}, // caps shift + 8
	sdl.SCANCODE_COMMA:     {{7, 1}, {7, 3}}, // symbol shift + N
	sdl.SCANCODE_PERIOD:    {{7, 1}, {7, 2}}, // symbol shift + M
}

// Host keys mapped onto the emulated stick when a joystick mode is active.
var joyKeys = map[sdl.Scancode]uint8{
	sdl.SCANCODE_UP:    JoyUp,
	sdl.SCANCODE_DOWN:  JoyDown,
	sdl.SCANCODE_LEFT:  JoyLeft,
	sdl.SCANCODE_RIGHT: JoyRight,
	sdl.SCANCODE_RCTRL: JoyFire,
}

// ApplyKeyEvent routes one host key event into the keyboard matrix, or into
// the joystick when one is configured (the stick steals the arrow keys).
func ApplyKeyEvent(ks *KeyboardState, joy *JoystickBus, ev KeyEvent) {
	if joy != nil && joy.Mode() != JoyNone {
		if dir, ok := joyKeys[ev.Scancode]; ok {
			joy.Set(dir, ev.Down)
			return
		}
	}
	for _, mk := range zxKeys[ev.Scancode] {
		if ev.Down {
			ks[mk.row] |= 1 << mk.bit
		} else {
			ks[mk.row] &^= 1 << mk.bit
		}
	}
}
