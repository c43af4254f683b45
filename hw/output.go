package hw

import (
	"image"

	"github.com/veandco/go-sdl2/sdl"
)

type OutputConfig struct {
	Title  string
	Scale  int
	Hidden bool // headless: no window, frames are discarded or forwarded

	// When set, rendered frames are also published here (screenshots,
	// tests). Non-blocking: a slow receiver misses frames.
	FrameOutCh chan image.RGBA
}

// Output owns the host-facing side: the window, frame presentation and the
// input event queue. Frames are double-buffered so the emulation can fill
// the next frame while the previous one is on its way to the GPU.
type Output struct {
	cfg OutputConfig
	win *window

	framebufidx int
	framebuf    [2][]byte
}

func NewOutput(cfg OutputConfig) (*Output, error) {
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	o := &Output{cfg: cfg}
	for i := range o.framebuf {
		o.framebuf[i] = make([]byte, ScreenW*ScreenH*4)
	}
	if !cfg.Hidden {
		win, err := newWindow(cfg.Title, ScreenW, ScreenH, cfg.Scale)
		if err != nil {
			return nil, err
		}
		o.win = win
	}
	return o, nil
}

// BeginFrame returns the buffer to render the next frame into.
func (o *Output) BeginFrame() (video []byte) {
	o.framebufidx ^= 1
	return o.framebuf[o.framebufidx]
}

// EndFrame presents a buffer previously handed out by BeginFrame.
func (o *Output) EndFrame(video []byte) {
	if o.cfg.FrameOutCh != nil {
		rgba := image.RGBA{
			Pix:    video,
			Stride: 4 * ScreenW,
			Rect:   image.Rect(0, 0, ScreenW, ScreenH),
		}
		select {
		case o.cfg.FrameOutCh <- rgba:
		default:
		}
	}
	if o.win == nil {
		return
	}
	sdl.Do(func() {
		o.win.present(video)
	})
}

// Poll drains the host event queue, returning the keyboard transitions and
// whether the user asked to quit.
func (o *Output) Poll() (keys []KeyEvent, quit bool) {
	if o.win == nil {
		return nil, false
	}
	sdl.Do(func() {
		for {
			event := sdl.PollEvent()
			if event == nil {
				return
			}
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				quit = true
			case *sdl.KeyboardEvent:
				if ev.Repeat != 0 {
					continue
				}
				keys = append(keys, KeyEvent{
					Scancode: ev.Keysym.Scancode,
					Down:     ev.Type == sdl.KEYDOWN,
				})
			}
		}
	})
	return keys, quit
}

func (o *Output) SetTitle(title string) {
	if o.win == nil {
		return
	}
	sdl.Do(func() {
		o.win.SetTitle(title)
	})
}

func (o *Output) Close() error {
	if o.win == nil {
		return nil
	}
	return o.win.Close()
}
