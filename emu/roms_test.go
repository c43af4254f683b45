package emu_test

import (
	"image"
	"testing"
	"time"

	"github.com/spf13/afero"

	"speccy/emu"
	"speccy/emu/log"
	"speccy/emu/rpc"
	"speccy/hw"
	"speccy/tape"
	"speccy/tests"
)

// bannerVisible reports whether the bitmap area shows the firmware boot
// banner: white paper nearly everywhere, a line of black ink. The 64-pixel
// border frame around the 256x192 bitmap is excluded, it is white long
// before the boot finishes.
func bannerVisible(frame image.RGBA) bool {
	white, black, total := 0, 0, 0
	for y := 32; y < 32+192; y++ {
		for x := 32; x < 32+256; x++ {
			off := frame.PixOffset(x, y)
			r, g, b := frame.Pix[off], frame.Pix[off+1], frame.Pix[off+2]
			switch {
			case r == 0xC0 && g == 0xC0 && b == 0xC0:
				white++
			case r == 0x00 && g == 0x00 && b == 0x00:
				black++
			}
			total++
		}
	}
	return black > 40 && white > total*9/10
}

// TestFirmwareBoot runs the stock 48k firmware on a headless session until
// it prints its copyright banner, driving the emulator over the wire the
// way an external frontend would.
func TestFirmwareBoot(t *testing.T) {
	if testing.Short() {
		t.Skip("fetches firmware images")
	}
	log.Disable()

	fs := afero.NewOsFs()
	fw, err := hw.LoadFirmware(fs, tests.FirmwareDir(t))
	if err != nil {
		t.Fatal(err)
	}
	machine, err := hw.NewMachine(hw.Model48, fw)
	if err != nil {
		t.Fatal(err)
	}
	mixer := hw.NewAudioMixer(machine.ClockHz(), 44100)
	sess := emu.NewSession(machine, tape.NewDeck(fs), mixer, fw, emu.TapeConfig{
		ProbeThreshold: 1000,
		IdleThreshold:  20,
	})

	frames := make(chan image.RGBA, 1)
	var cfg emu.Config
	cfg.Video.Hidden = true
	cfg.Video.FrameOutCh = frames
	cfg.Audio.DisableAudio = true

	emulator, err := emu.Launch(sess, cfg)
	if err != nil {
		t.Fatal(err)
	}

	port := rpc.UnusedPort()
	server, err := rpc.NewServer(port, emulator)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	done := make(chan struct{})
	go func() {
		emulator.Run()
		close(done)
	}()

	client, err := rpc.NewClient(port)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if !client.IsReady() {
		t.Fatal("server up but not ready")
	}

	// The memory check takes a few emulated seconds, let it run
	// accelerated.
	client.Command(emu.CmdToggleTurbo)

	deadline := time.After(30 * time.Second)
	for booted := false; !booted; {
		select {
		case frame := <-frames:
			booted = bannerVisible(frame)
		case <-deadline:
			t.Fatal("firmware never printed its banner")
		}
	}

	client.SetPause(true)
	client.SetPause(false)
	client.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emulation loop did not exit")
	}
}
