// Package emu hosts the orchestration core: the emulation loop, the frame
// scheduler, the tape-activity heuristics and hardware model migration.
package emu

import (
	"sync/atomic"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"speccy/emu/log"
	"speccy/hw"
)

// Hotkey bindings. Everything else goes to the keyboard matrix.
var hotkeys = map[sdl.Scancode]Command{
	sdl.SCANCODE_F1:       CmdTapePlay,
	sdl.SCANCODE_F2:       CmdTapeStop,
	sdl.SCANCODE_F3:       CmdTapeRewind,
	sdl.SCANCODE_F4:       CmdTapeRecord,
	sdl.SCANCODE_F5:       CmdReset,
	sdl.SCANCODE_F6:       CmdHardReset,
	sdl.SCANCODE_F7:       CmdNMI,
	sdl.SCANCODE_F8:       CmdToggleTurbo,
	sdl.SCANCODE_F9:       CmdTapeAudible,
	sdl.SCANCODE_F10:      CmdQuit,
	sdl.SCANCODE_F11:      CmdTogglePause,
	sdl.SCANCODE_F12:      CmdTapeFlash,
	sdl.SCANCODE_PAGEUP:   CmdTapePrev,
	sdl.SCANCODE_PAGEDOWN: CmdTapeNext,
	sdl.SCANCODE_DELETE:   CmdTapeEject,
	sdl.SCANCODE_KP_0:     CmdJoystickNext,
	sdl.SCANCODE_KP_1:     CmdUseModel16,
	sdl.SCANCODE_KP_2:     CmdUseModel48,
	sdl.SCANCODE_KP_3:     CmdUseModel128,
}

// Emulator drives a Session at real time against the host: window, audio
// device, frame pacing and command handling. Commands can be posted from
// any goroutine; they are applied between frames.
type Emulator struct {
	Session *Session
	cfg     Config

	out   *hw.Output
	audio *hw.AudioDevice
	sync  *FrameSync

	// These are accessed concurrently by the emulator loop and the UI.
	quit   atomic.Bool
	paused atomic.Bool

	commands chan Command

	keys    hw.KeyboardState
	samples []int16
}

// Launch opens the window and the audio device and wires them to the
// session. It doesn't start the emulation loop, call Run() for that.
func Launch(sess *Session, cfg Config) (*Emulator, error) {
	out, err := hw.NewOutput(hw.OutputConfig{
		Title:      sess.Info(),
		Scale:      cfg.Video.Scale,
		Hidden:     cfg.Video.Hidden,
		FrameOutCh: cfg.Video.FrameOutCh,
	})
	if err != nil {
		return nil, err
	}

	e := &Emulator{
		Session:  sess,
		cfg:      cfg,
		out:      out,
		sync:     NewFrameSync(sess.Machine.FrameDuration()),
		commands: make(chan Command, 16),
	}

	if cfg.Audio.DisableAudio {
		log.ModEmu.WarnZ("audio disabled").End()
	} else {
		spf := samplesPerFrame(cfg.Audio.SampleRate, sess.Machine.FrameDuration())
		dev, err := hw.OpenAudioDevice(cfg.Audio.SampleRate, spf, cfg.Audio.LatencyFrames)
		if err != nil {
			out.Close()
			return nil, err
		}
		dev.Pause(false)
		e.audio = dev
	}
	return e, nil
}

func samplesPerFrame(rate int32, frameDur time.Duration) int {
	return int(int64(rate)*int64(frameDur)/int64(time.Second)) + 1
}

// Do posts a command to the emulation loop. Safe from any goroutine; a
// saturated queue drops the command rather than blocking the caller.
func (e *Emulator) Do(cmd Command) {
	select {
	case e.commands <- cmd:
	default:
		log.ModEmu.WarnZ("command dropped").Stringer("cmd", cmd).End()
	}
}

// Stop and SetPause allow controlling the emulator loop in a
// concurrent-safe way.

func (e *Emulator) Stop()               { e.quit.Store(true) }
func (e *Emulator) SetPause(pause bool) { e.paused.CompareAndSwap(!pause, pause) }

// Run executes the emulation loop until the user quits or Stop is called.
func (e *Emulator) Run() {
	e.sync.Restart()
	turbo := false
	for !e.quit.Load() {
		keys, quit := e.out.Poll()
		if quit {
			break
		}
		e.applyInput(keys)
		e.drainCommands()

		// Turbo can be flipped by a command or by the tape heuristics;
		// either way the audio device follows it.
		if t := e.Session.Turbo(); t != turbo {
			turbo = t
			if e.audio != nil {
				e.audio.Flush()
				e.audio.Pause(turbo)
			}
			e.sync.Restart()
			e.out.SetTitle(e.Session.Info())
		}

		switch {
		case e.paused.Load():
			// Don't burn cpu while paused.
			time.Sleep(100 * time.Millisecond)
			e.sync.Restart()

		case turbo:
			ticks, changed := e.Session.RunAccelerated(e.sync)
			e.renderVideo()
			e.sync.Restart()
			if changed {
				e.out.SetTitle(e.Session.Info())
			}
			log.ModSched.DebugZ("turbo burst").Int("ticks", ticks).End()

		default:
			_, stateChanged := e.Session.RunFrame()
			e.renderVideo()
			e.renderAudio()
			if stateChanged {
				e.out.SetTitle(e.Session.Info())
			}
			if missed := e.sync.Synchronize(); missed > 0 {
				log.ModSched.WarnZ("frames missed").Int("count", int64(missed)).End()
			}
		}
	}

	if e.audio != nil {
		e.audio.Close()
	}
	e.out.Close()
	log.ModEmu.InfoZ("emulation loop exited").End()
}

func (e *Emulator) renderVideo() {
	video := e.out.BeginFrame()
	e.Session.Machine.RenderVideoFrame(video, hw.ScreenW*4)
	e.out.EndFrame(video)
}

func (e *Emulator) renderAudio() {
	if e.audio == nil {
		return
	}
	s := e.Session
	audible := s.TapeAudible() && s.Deck.Running()
	s.Machine.RenderAudioFrame(s.Mixer, audible)

	n := s.Mixer.EndFrame(s.Machine.FrameTicks())
	if cap(e.samples) < n*2 {
		e.samples = make([]int16, n*2)
	}
	n = s.Mixer.ReadSamples(e.samples[:n*2])
	e.audio.Queue(e.samples[:n*2])
}

func (e *Emulator) applyInput(keys []hw.KeyEvent) {
	var joy *hw.JoystickBus
	if ja, ok := e.Session.Machine.(hw.JoystickAccess); ok {
		joy = ja.JoystickBus()
	}
	changed := false
	for _, ev := range keys {
		if cmd, ok := hotkeys[ev.Scancode]; ok {
			if ev.Down {
				e.Do(cmd)
			}
			continue
		}
		hw.ApplyKeyEvent(&e.keys, joy, ev)
		changed = true
	}
	if changed {
		e.Session.Machine.SetKeyState(e.keys)
	}
}

func (e *Emulator) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		default:
			return
		}
	}
}

func (e *Emulator) handleCommand(cmd Command) {
	log.ModEmu.DebugZ("command").Stringer("cmd", cmd).End()

	var err error
	switch cmd {
	case CmdQuit:
		e.quit.Store(true)
	case CmdTogglePause:
		paused := !e.paused.Load()
		e.paused.Store(paused)
		if e.audio != nil {
			e.audio.Pause(paused)
		}
	case CmdToggleTurbo:
		e.Session.ToggleTurbo()
	case CmdReset:
		e.Session.RequestReset(false)
	case CmdHardReset:
		e.Session.RequestReset(true)
	case CmdNMI:
		e.Session.RequestNMI()

	case CmdTapePlay:
		err = e.Session.Deck.Play()
	case CmdTapeStop:
		e.Session.Deck.Stop()
	case CmdTapeRecord:
		err = e.Session.Deck.Record()
	case CmdTapeRewind:
		err = e.Session.Deck.Rewind()
	case CmdTapePrev:
		err = e.Session.Deck.PrevChunk()
	case CmdTapeNext:
		err = e.Session.Deck.NextChunk()
	case CmdTapeEject:
		e.Session.Deck.Eject()
	case CmdTapeAudible:
		e.Session.ToggleTapeAudible()
	case CmdTapeFlash:
		e.Session.ToggleFlashLoad()

	case CmdUseModel16:
		err = e.changeModel(hw.Model16)
	case CmdUseModel48:
		err = e.changeModel(hw.Model48)
	case CmdUseModel128:
		err = e.changeModel(hw.Model128)

	case CmdJoystickNext:
		if ja, ok := e.Session.Machine.(hw.JoystickAccess); ok {
			mode := ja.JoystickBus().CycleMode()
			log.ModInput.InfoZ("joystick mode").Stringer("mode", mode).End()
		}
	}
	if err != nil {
		log.ModEmu.WarnZ("command failed").Stringer("cmd", cmd).Error("err", err).End()
	}
	e.out.SetTitle(e.Session.Info())
}

func (e *Emulator) changeModel(m hw.Model) error {
	if err := e.Session.ChangeModel(m); err != nil {
		return err
	}
	e.sync.SetFrameDuration(e.Session.Machine.FrameDuration())
	e.sync.Restart()
	if e.audio != nil {
		e.audio.Flush()
	}
	return nil
}
