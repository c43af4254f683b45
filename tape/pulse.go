package tape

import "io"

// Pulse widths of the ROM loader, in T-states.
const (
	PilotPulse = 2168
	SyncPulse1 = 667
	SyncPulse2 = 735
	Bit0Pulse  = 855
	Bit1Pulse  = 1710

	PilotCountHeader = 8063
	PilotCountData   = 3223

	// Silence inserted between two blocks, about one second of tape.
	BlockPause = 3_500_000
)

// Decoder classification thresholds, halfway between the ideal widths.
const (
	bitThreshold   = (Bit0Pulse + Bit1Pulse) / 2
	pilotThreshold = (Bit1Pulse + PilotPulse) / 2
	gapThreshold   = 2 * PilotPulse
	minPilots      = 16
)

// PulseSource yields consecutive pulse durations in T-states. A false second
// return means the source has no pulse to deliver right now; it does not
// necessarily mean end of tape.
type PulseSource interface {
	Next() (uint32, bool)
}

type pulseStage int

const (
	stagePause pulseStage = iota
	stagePilot
	stageSync1
	stageSync2
	stageBits
)

// PulseStream encodes the chunks of a ChunkReader as ROM-loader pulses. The
// stream keeps its position across calls so a frame boundary can interrupt
// it anywhere, including mid-byte.
type PulseStream struct {
	cr    *ChunkReader
	chunk Chunk
	stage pulseStage

	pilotLeft int
	byteIdx   int
	bitMask   uint8
	halfDone  bool // first half of the current bit was delivered
	err       error
	done      bool
}

// NewPulseStream starts encoding at the reader's current chunk.
func NewPulseStream(cr *ChunkReader) *PulseStream {
	return &PulseStream{cr: cr, done: false}
}

func (ps *PulseStream) Err() error { return ps.err }

// Done reports whether the stream has delivered its last pulse. It only
// turns true once a Next call has hit the end of the chunk list.
func (ps *PulseStream) Done() bool { return ps.done }

func (ps *PulseStream) nextChunk() bool {
	var chunk Chunk
	for len(chunk) == 0 {
		// A malformed TAP file can carry a zero-length block; there is
		// nothing to modulate, skip it.
		var err error
		if chunk, err = ps.cr.ReadChunk(); err != nil {
			if err != io.EOF {
				ps.err = err
			}
			ps.done = true
			return false
		}
	}
	ps.chunk = chunk
	ps.stage = stagePilot
	ps.pilotLeft = PilotCountData
	if chunk.IsHeader() {
		ps.pilotLeft = PilotCountHeader
	}
	ps.byteIdx = 0
	ps.bitMask = 0x80
	ps.halfDone = false
	return true
}

func (ps *PulseStream) Next() (uint32, bool) {
	if ps.done {
		return 0, false
	}
	if ps.chunk == nil {
		if !ps.nextChunk() {
			return 0, false
		}
	}

	switch ps.stage {
	case stagePilot:
		ps.pilotLeft--
		if ps.pilotLeft == 0 {
			ps.stage = stageSync1
		}
		return PilotPulse, true

	case stageSync1:
		ps.stage = stageSync2
		return SyncPulse1, true

	case stageSync2:
		ps.stage = stageBits
		return SyncPulse2, true

	case stageBits:
		width := uint32(Bit0Pulse)
		if ps.chunk[ps.byteIdx]&ps.bitMask != 0 {
			width = Bit1Pulse
		}
		if !ps.halfDone {
			ps.halfDone = true
			return width, true
		}
		ps.halfDone = false
		ps.bitMask >>= 1
		if ps.bitMask == 0 {
			ps.bitMask = 0x80
			ps.byteIdx++
			if ps.byteIdx == len(ps.chunk) {
				// Chunk done. Deliver the block gap on the next call,
				// then move on to the next chunk.
				ps.stage = stagePause
			}
		}
		return width, true

	case stagePause:
		ps.chunk = nil
		return BlockPause, true
	}
	return 0, false
}

type decodeState int

const (
	decodeIdle decodeState = iota
	decodePilot
	decodeSync
	decodeData
)

// Decoder turns MIC-OUT pulse widths back into TAP chunks, writing each
// finished chunk out. It mirrors the save routine of the firmware: pilot
// tone, two sync pulses, then two half-pulses per bit, most significant bit
// first.
type Decoder struct {
	w     *ChunkWriter
	state decodeState

	pilots   int
	data     []byte
	cur      uint8
	nbits    int
	halfBit  uint32 // width of the pending first half, 0 if none
	nchunks  int
}

func NewDecoder(w *ChunkWriter) *Decoder {
	return &Decoder{w: w}
}

// Busy reports whether the decoder is mid-chunk. The session holds turbo
// only while this is true.
func (d *Decoder) Busy() bool { return d.state != decodeIdle }

// Chunks returns the total number of chunks written so far.
func (d *Decoder) Chunks() int { return d.nchunks }

// WritePulses consumes every pulse the source currently has and returns the
// number of complete chunks written during the call.
func (d *Decoder) WritePulses(src PulseSource) (int, error) {
	wrote := 0
	for {
		width, ok := src.Next()
		if !ok {
			return wrote, nil
		}
		n, err := d.pulse(width)
		wrote += n
		if err != nil {
			return wrote, err
		}
	}
}

func (d *Decoder) pulse(width uint32) (int, error) {
	if width >= gapThreshold {
		return d.endBlock()
	}

	switch d.state {
	case decodeIdle, decodePilot:
		if width >= pilotThreshold {
			d.state = decodePilot
			d.pilots++
			return 0, nil
		}
		// A short pulse after enough pilot is the first sync pulse.
		if d.state == decodePilot && d.pilots >= minPilots && width < Bit0Pulse {
			d.state = decodeSync
			return 0, nil
		}
		d.reset()
		return 0, nil

	case decodeSync:
		// Second sync pulse, data starts next.
		d.state = decodeData
		d.data = d.data[:0]
		d.cur, d.nbits, d.halfBit = 0, 0, 0
		return 0, nil

	case decodeData:
		if d.halfBit == 0 {
			d.halfBit = width
			return 0, nil
		}
		bit := uint8(0)
		if (d.halfBit+width)/2 >= bitThreshold {
			bit = 1
		}
		d.halfBit = 0
		d.cur = d.cur<<1 | bit
		d.nbits++
		if d.nbits == 8 {
			d.data = append(d.data, d.cur)
			d.cur, d.nbits = 0, 0
		}
		return 0, nil
	}
	return 0, nil
}

func (d *Decoder) endBlock() (int, error) {
	if d.state != decodeData || len(d.data) == 0 {
		d.reset()
		return 0, nil
	}
	chunk := Chunk(append([]byte(nil), d.data...))
	d.reset()
	if err := d.w.WriteChunk(chunk); err != nil {
		return 0, err
	}
	d.nchunks++
	return 1, nil
}

// Flush closes out a chunk left open by a recording that stopped without a
// trailing gap.
func (d *Decoder) Flush() (int, error) {
	return d.endBlock()
}

func (d *Decoder) reset() {
	d.state = decodeIdle
	d.pilots = 0
	d.data = d.data[:0]
	d.cur, d.nbits, d.halfBit = 0, 0, 0
}
