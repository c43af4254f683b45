package emu

// Command is a control request for the emulation loop. The UI side (hotkeys,
// RPC) produces commands, the loop consumes them between frames, so every
// state change happens at a frame boundary.
type Command int

//go:generate go tool stringer -type=Command -linecomment

const (
	CmdQuit        Command = iota // quit
	CmdTogglePause                // toggle pause
	CmdToggleTurbo                // toggle turbo
	CmdReset                      // reset
	CmdHardReset                  // hard reset
	CmdNMI                        // trigger nmi

	CmdTapePlay    // tape play
	CmdTapeStop    // tape stop
	CmdTapeRecord  // tape record
	CmdTapeRewind  // tape rewind
	CmdTapePrev    // tape previous block
	CmdTapeNext    // tape next block
	CmdTapeEject   // tape eject
	CmdTapeAudible // toggle tape audio
	CmdTapeFlash   // toggle flash load

	CmdUseModel16  // use 16k model
	CmdUseModel48  // use 48k model
	CmdUseModel128 // use 128k model

	CmdJoystickNext // next joystick mode

	numCommands
)

func (c Command) Valid() bool { return c >= 0 && c < numCommands }
