package emu

import (
	"fmt"

	"speccy/emu/log"
	"speccy/hw"
)

// ChangeModel migrates the running session to another hardware model,
// carrying over the CPU registers, RAM image, border color, keyboard state
// and joystick selection. Firmware is always loaded fresh from the
// canonical images, never copied from the source machine.
//
// Moving to a smaller machine truncates the RAM image; moving to a larger
// one pads it with 0xFF, matching uninitialized memory. A 48k image landing
// on 128k hardware gets the MMU locked into the 48k-compatible
// configuration until the next reset.
func (s *Session) ChangeModel(target hw.Model) error {
	if !target.Valid() {
		return fmt.Errorf("unknown model id %d", target)
	}
	cur := s.Machine
	if cur.Model() == target {
		return nil
	}

	next, err := hw.NewMachine(target, s.fw)
	if err != nil {
		return fmt.Errorf("migrate to %s: %w", target, err)
	}

	next.LoadRAM(hw.PadReader(cur.RAMSnapshot(), 0xFF))
	next.SetCPUState(cur.CPUState())
	next.SetHalted(cur.Halted())
	next.SetBorderColor(cur.BorderColor())
	next.SetKeyState(cur.KeyState())

	if src, ok := cur.(hw.JoystickAccess); ok {
		if dst, ok := next.(hw.JoystickAccess); ok {
			dst.JoystickBus().SetMode(src.JoystickBus().Mode())
		}
	}

	// The 48k program knows nothing about the MMU; pin it down until a
	// reset hands control back to the 128 firmware.
	if lk, ok := next.(interface{ LockBanking48() }); ok {
		lk.LockBanking48()
	}

	s.Machine = next
	s.Mixer.SetClockRate(next.ClockHz())
	s.prevProbes = 0

	log.ModEmu.InfoZ("model changed").
		Stringer("from", cur.Model()).
		Stringer("to", target).
		End()
	return nil
}
