package hw

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"speccy/emu/log"
)

const (
	AudioFormat   = sdl.AUDIO_S16LSB
	AudioChannels = 2
)

// AudioDevice owns the SDL playback queue. The emulation loop pushes one
// frame of samples per emulated frame; the queue depth cap keeps latency
// bounded when the host briefly outruns real time.
type AudioDevice struct {
	id         sdl.AudioDeviceID
	sampleRate int32
	maxQueued  uint32 // bytes
}

// OpenAudioDevice opens the default playback device. latencyFrames caps the
// queue depth, in emulated frames worth of samples.
func OpenAudioDevice(sampleRate int32, samplesPerFrame int, latencyFrames int) (*AudioDevice, error) {
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL audio: %s", err)
	}

	want := sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   AudioFormat,
		Channels: AudioChannels,
		Samples:  uint16(samplesPerFrame),
	}
	var have sdl.AudioSpec
	id, err := sdl.OpenAudioDevice("", false, &want, &have, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %s", err)
	}

	dev := &AudioDevice{
		id:         id,
		sampleRate: sampleRate,
		maxQueued:  uint32(samplesPerFrame*latencyFrames) * AudioChannels * 2,
	}
	log.ModSound.InfoZ("audio device open").
		Int("rate", int64(have.Freq)).
		Int("buffer", int64(have.Samples)).
		End()
	return dev, nil
}

// Queue pushes interleaved stereo samples to the device. Samples beyond the
// latency cap are dropped rather than letting the queue, and with it the
// audio lag, grow without bound.
func (d *AudioDevice) Queue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if queued := sdl.GetQueuedAudioSize(d.id); queued >= d.maxQueued {
		log.ModSound.DebugZ("audio queue full, dropping").
			Int("queued", int64(queued)).
			Int("samples", int64(len(samples))).
			End()
		return
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*2)
	if err := sdl.QueueAudio(d.id, buf); err != nil {
		log.ModSound.DebugZ("failed to queue audio buffer").Error("err", err).End()
	}
}

// Pause stops or resumes playback without dropping queued samples.
func (d *AudioDevice) Pause(pause bool) {
	sdl.PauseAudioDevice(d.id, pause)
}

// Flush drops everything queued but not yet played.
func (d *AudioDevice) Flush() {
	sdl.ClearQueuedAudio(d.id)
}

func (d *AudioDevice) Close() {
	sdl.CloseAudioDevice(d.id)
}
