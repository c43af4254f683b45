package hw

// Keypad is the 128's external numeric pad, reachable through the AY's IO
// port A. The real pad talks a serial handshake with the keypad scan
// routine in the menu ROM; this models the line levels only, which is
// enough for the ROM to detect "no keypad" or a held key.
type Keypad struct {
	pressed uint32 // one bit per key, KeypadKey numbering
}

// KeypadKey identifies one of the 20 pad keys, row-major.
type KeypadKey int

func NewKeypad() *Keypad { return &Keypad{} }

func (k *Keypad) Press(key KeypadKey)   { k.pressed |= 1 << key }
func (k *Keypad) Release(key KeypadKey) { k.pressed &^= 1 << key }

// PortA returns the pad's line levels: idle high, data line pulled low
// while any key is held.
func (k *Keypad) PortA() uint8 {
	if k.pressed != 0 {
		return 0xFE
	}
	return 0xFF
}
