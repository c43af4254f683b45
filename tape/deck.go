package tape

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"speccy/emu/log"
)

// Deck state. A tape is either absent or inserted, and an inserted tape is
// stopped, playing or recording.
type State int

const (
	Ejected State = iota
	Stopped
	Playing
	Recording
)

var (
	ErrNoTape      = errors.New("tape: no tape inserted")
	ErrReadOnly    = errors.New("tape: tape is read-only")
	ErrWhileMoving = errors.New("tape: tape is running")
)

// Deck is the cassette recorder. It owns the inserted TAP image and the
// pulse-level reader/decoder positioned on it. All mutation happens on the
// frame-loop goroutine.
type Deck struct {
	fs afero.Fs

	state    State
	name     string
	file     afero.File
	readOnly bool

	reader  *ChunkReader
	pulses  *PulseStream
	decoder *Decoder
}

func NewDeck(fs afero.Fs) *Deck {
	return &Deck{fs: fs}
}

// Insert opens a TAP image, creating it if needed. A tape that cannot be
// opened for writing is retried read-only before giving up.
func (d *Deck) Insert(name string) error {
	d.Eject()

	readOnly := false
	f, err := d.fs.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		log.ModTape.WarnZ("tape not writable, retrying read-only").
			String("path", name).Error("err", err).End()
		f, err = d.fs.Open(name)
		if err != nil {
			return fmt.Errorf("open tape: %w", err)
		}
		readOnly = true
	}

	d.file = f
	d.name = name
	d.readOnly = readOnly
	d.state = Stopped
	d.reader = NewChunkReader(f)
	log.ModTape.InfoZ("tape inserted").String("path", name).Bool("readonly", readOnly).End()
	return nil
}

// Eject closes the current tape, if any.
func (d *Deck) Eject() {
	if d.state == Ejected {
		return
	}
	d.Stop()
	if d.file != nil {
		d.file.Close()
	}
	*d = Deck{fs: d.fs}
}

func (d *Deck) State() State { return d.state }
func (d *Deck) Inserted() bool { return d.state != Ejected }
func (d *Deck) Running() bool { return d.state == Playing || d.state == Recording }
func (d *Deck) IsPlaying() bool { return d.state == Playing }
func (d *Deck) Name() string { return d.name }
func (d *Deck) ReadOnly() bool { return d.readOnly }

// Play starts tape playback from the current chunk position.
func (d *Deck) Play() error {
	switch d.state {
	case Ejected:
		return ErrNoTape
	case Playing:
		return nil
	case Recording:
		d.Stop()
	}
	d.pulses = NewPulseStream(d.reader)
	d.state = Playing
	return nil
}

// Record starts appending to the end of the tape.
func (d *Deck) Record() error {
	switch d.state {
	case Ejected:
		return ErrNoTape
	case Recording:
		return nil
	case Playing:
		d.Stop()
	}
	if d.readOnly {
		return ErrReadOnly
	}
	if _, err := d.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	d.decoder = NewDecoder(NewChunkWriter(d.file))
	d.state = Recording
	return nil
}

// Stop halts tape motion, leaving the chunk position where it is.
func (d *Deck) Stop() {
	switch d.state {
	case Playing:
		d.pulses = nil
	case Recording:
		if n, err := d.decoder.Flush(); err != nil {
			log.ModTape.ErrorZ("flushing recording").Error("err", err).End()
		} else if n != 0 {
			log.ModTape.InfoZ("saved chunk on stop").End()
		}
		d.decoder = nil
	default:
		return
	}
	d.state = Stopped
}

// Pulses returns the playback pulse source, nil unless playing.
func (d *Deck) Pulses() *PulseStream {
	if d.state != Playing {
		return nil
	}
	return d.pulses
}

// RecordingDecoder returns the pulse decoder, nil unless recording.
func (d *Deck) RecordingDecoder() *Decoder {
	if d.state != Recording {
		return nil
	}
	return d.decoder
}

// Chunk seeking. Only valid while the tape is not running.

func (d *Deck) Rewind() error { return d.seek(func() error { d.reader.Rewind(); return nil }) }
func (d *Deck) NextChunk() error { return d.seek(d.reader.NextChunk) }
func (d *Deck) PrevChunk() error { return d.seek(d.reader.PrevChunk) }
func (d *Deck) SeekChunk(n int) error { return d.seek(func() error { return d.reader.SeekChunk(n) }) }

func (d *Deck) seek(fn func() error) error {
	if d.state == Ejected {
		return ErrNoTape
	}
	if d.Running() {
		return ErrWhileMoving
	}
	return fn()
}

// CurrentChunkInfo peeks at the chunk under the head for the status line.
func (d *Deck) CurrentChunkInfo() (Info, error) {
	if d.state == Ejected {
		return Info{}, ErrNoTape
	}
	n := d.reader.Chunk()
	chunk, err := d.reader.ReadChunk()
	if err != nil {
		return Info{}, err
	}
	d.reader.next = n
	return chunk.Info(), nil
}
