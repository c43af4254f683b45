package hw

import "testing"

const testClock = 3_500_000
const testFrameTicks = 69888

func TestMixerSilence(t *testing.T) {
	mix := NewAudioMixer(testClock, 44100)

	n := mix.EndFrame(testFrameTicks)
	if n == 0 {
		t.Fatal("no samples for a silent frame")
	}
	out := make([]int16, n*2)
	mix.ReadSamples(out)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d = %d, want silence", i, s)
		}
	}
}

func TestMixerBeeperStep(t *testing.T) {
	mix := NewAudioMixer(testClock, 44100)

	// Square wave on the beeper across the frame.
	level := int16(0)
	for tick := uint32(0); tick < testFrameTicks; tick += 2000 {
		level = EarOutAmps4[3] - level
		mix.AddStep(ChanBeeper, tick, level)
	}

	n := mix.EndFrame(testFrameTicks)
	out := make([]int16, n*2)
	mix.ReadSamples(out)

	nonzero := 0
	for _, s := range out {
		if s != 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		t.Fatal("beeper square wave produced silence")
	}
}

func TestMixerFrameSampleCount(t *testing.T) {
	const rate = 44100
	mix := NewAudioMixer(testClock, rate)

	// One 48k frame is 19.968ms, about 881 samples at 44.1kHz.
	n := mix.EndFrame(testFrameTicks)
	want := rate * testFrameTicks / testClock
	if n < want-1 || n > want+1 {
		t.Errorf("frame samples = %d, want about %d", n, want)
	}
}

func TestMixerResetDropsSamples(t *testing.T) {
	mix := NewAudioMixer(testClock, 44100)
	mix.AddStep(ChanBeeper, 100, EarOutAmps4[3])
	mix.EndFrame(testFrameTicks)

	mix.Reset()
	out := make([]int16, 64)
	if n := mix.ReadSamples(out); n != 0 {
		t.Errorf("ReadSamples after Reset = %d, want 0", n)
	}
}

func TestMixerDuplicateStepIsNoop(t *testing.T) {
	mix := NewAudioMixer(testClock, 44100)
	mix.AddStep(ChanAYA, 0, 1000)
	mix.AddStep(ChanAYA, 500, 1000) // same amplitude, no delta

	n := mix.EndFrame(testFrameTicks)
	out := make([]int16, n*2)
	mix.ReadSamples(out)

	// The settled tail of the frame must sit at the stepped level, with no
	// second transition.
	last := out[len(out)-2]
	if last == 0 {
		t.Error("channel did not hold its level")
	}
}
