package hw

import (
	"github.com/arl/blip"

	"speccy/emu/log"
)

// Mixer channels. The beeper and tape input are panned center, the AY
// channels follow the usual A-left, B-center, C-right arrangement.
type AudioChannel int

const (
	ChanBeeper AudioChannel = iota
	ChanTapeIn
	ChanAYA
	ChanAYB
	ChanAYC

	numChannels
)

// Per-channel amplitude headroom. Five channels sum into the same output,
// so each one stays well below full scale.
const ampScale = 10922 // one third of full scale

// Amplitude tables, indexed by the ULA output bits (bit 0 MIC, bit 1 EAR)
// or the EAR-IN level. The EAR+MIC blend is used while the tape signal is
// audible, the EAR-only table otherwise.
var (
	EarMicAmps4 = [4]int16{0, ampScale / 5, ampScale * 4 / 5, ampScale}
	EarOutAmps4 = [4]int16{0, 0, ampScale, ampScale}
	EarInAmps2  = [2]int16{0, ampScale / 2}
)

// Channel pan gains, 8.8 fixed point.
var panGains = [numChannels][2]int32{
	ChanBeeper: {181, 181},
	ChanTapeIn: {181, 181},
	ChanAYA:    {230, 115},
	ChanAYB:    {181, 181},
	ChanAYC:    {115, 230},
}

// AudioMixer folds timestamped level changes from all sound sources into a
// band-limited stereo stream. Timestamps are T-states from the start of the
// current frame; EndFrame closes a frame and makes its samples readable.
type AudioMixer struct {
	left, right *blip.Buffer
	sampleRate  int32
	amps        [numChannels]int16
}

func NewAudioMixer(clockHz int64, sampleRate int32) *AudioMixer {
	m := &AudioMixer{
		left:       blip.NewBuffer(int(sampleRate) / 10),
		right:      blip.NewBuffer(int(sampleRate) / 10),
		sampleRate: sampleRate,
	}
	m.SetClockRate(clockHz)
	return m
}

// SetClockRate retunes the resampler for a new CPU clock and drops any
// buffered audio. Called on model migration.
func (m *AudioMixer) SetClockRate(clockHz int64) {
	m.left.SetRates(float64(clockHz), float64(m.sampleRate))
	m.right.SetRates(float64(clockHz), float64(m.sampleRate))
	m.Reset()
	log.ModSound.InfoZ("mixer clock").Int("clock", clockHz).Int("rate", int64(m.sampleRate)).End()
}

// AddStep moves a channel to a new amplitude at the given frame tick.
func (m *AudioMixer) AddStep(ch AudioChannel, tick uint32, amp int16) {
	delta := int32(amp) - int32(m.amps[ch])
	if delta == 0 {
		return
	}
	m.amps[ch] = amp
	g := panGains[ch]
	m.left.AddDelta(uint64(tick), delta*g[0]>>8)
	m.right.AddDelta(uint64(tick), delta*g[1]>>8)
}

// Silence ramps a channel down to zero at the start of the frame.
func (m *AudioMixer) Silence(ch AudioChannel) { m.AddStep(ch, 0, 0) }

// EndFrame closes a frame of the given T-state length and returns the
// number of stereo sample frames now available.
func (m *AudioMixer) EndFrame(frameTicks int) int {
	m.left.EndFrame(frameTicks)
	m.right.EndFrame(frameTicks)
	return m.left.SamplesAvailable()
}

// ReadSamples fills out with interleaved stereo samples and returns the
// number of sample frames written.
func (m *AudioMixer) ReadSamples(out []int16) int {
	n := m.left.SamplesAvailable()
	if lim := len(out) / 2; n > lim {
		n = lim
	}
	m.left.ReadSamples(out, n, blip.Stereo)
	m.right.ReadSamples(out[1:], n, blip.Stereo)
	return n
}

// Reset drops buffered samples and recenters every channel.
func (m *AudioMixer) Reset() {
	m.left.Clear()
	m.right.Clear()
	m.amps = [numChannels]int16{}
}

// renderBeeper folds a frame of ULA output edges into the beeper channel.
// While the tape signal is audible the MIC bit contributes too, so saving
// programs remain audible.
func renderBeeper(mix *AudioMixer, edges []SignalEdge, audibleTape bool) {
	amps := &EarOutAmps4
	if audibleTape {
		amps = &EarMicAmps4
	}
	for _, e := range edges {
		mix.AddStep(ChanBeeper, e.Tick, amps[e.Level&3])
	}
}

// renderTapeIn folds the EAR-IN line toggles into their own channel.
func renderTapeIn(mix *AudioMixer, edges []SignalEdge) {
	for _, e := range edges {
		mix.AddStep(ChanTapeIn, e.Tick, EarInAmps2[e.Level&1])
	}
}
