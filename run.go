package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/afero"
	"github.com/veandco/go-sdl2/sdl"

	"speccy/emu"
	"speccy/emu/log"
	"speccy/emu/rpc"
	"speccy/hw"
	"speccy/tape"
)

// emuMain runs the emulator with the given options layered over the config
// file.
func emuMain(args Run) {
	var exitcode int
	sdl.Main(func() {
		cfg := emu.LoadConfigOrDefault()
		if args.Model != "" {
			cfg.General.Model = args.Model
		}
		if args.Joystick != "" {
			cfg.General.Joystick = args.Joystick
		}
		if args.FirmwareDir != "" {
			cfg.General.FirmwareDir = args.FirmwareDir
		}
		if args.Scale > 0 {
			cfg.Video.Scale = args.Scale
		}
		if args.NoAudio {
			cfg.Audio.DisableAudio = true
		}

		model, err := hw.ParseModel(cfg.General.Model)
		checkf(err, "invalid model")
		joymode, err := hw.ParseJoystickMode(cfg.General.Joystick)
		checkf(err, "invalid joystick mode")

		fs := afero.NewOsFs()
		fw, err := hw.LoadFirmware(fs, cfg.General.FirmwareDir)
		checkf(err, "failed to load firmware")

		machine, err := hw.NewMachine(model, fw)
		checkf(err, "failed to build machine")
		if ja, ok := machine.(hw.JoystickAccess); ok {
			ja.JoystickBus().SetMode(joymode)
		}

		deck := tape.NewDeck(fs)
		if args.TapePath != "" {
			checkf(deck.Insert(args.TapePath), "failed to insert tape")
		}

		mixer := hw.NewAudioMixer(machine.ClockHz(), cfg.Audio.SampleRate)
		sess := emu.NewSession(machine, deck, mixer, fw, cfg.Tape)

		emulator, err := emu.Launch(sess, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start emulator: %v\n", err)
			exitcode = 1
			return
		}
		if args.Turbo {
			emulator.Do(emu.CmdToggleTurbo)
		}

		if args.CPUProfile != "" {
			f, err := os.Create(args.CPUProfile)
			checkf(err, "failed to create cpu profile file")
			checkf(pprof.StartCPUProfile(f), "failed to start cpu profile")
			defer func() {
				pprof.StopCPUProfile()
				f.Close()
				fmt.Println("CPU profile written to", args.CPUProfile)
			}()
		}

		if args.Port != 0 {
			server, err := rpc.NewServer(args.Port, emulator)
			if err != nil {
				fmt.Fprintf(os.Stderr, "RPC error: %v", err)
				exitcode = 1
				return
			}
			defer server.Close()
		}

		emulator.Run()
		log.ModEmu.InfoZ("bye").End()
	})
	os.Exit(exitcode)
}
