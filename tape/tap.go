// Package tape implements the TAP cassette image format and the pulse-level
// encoding the ULA consumes: an ordered sequence of length-prefixed chunks,
// each encoded on tape as a pilot tone, two sync pulses and a stream of bit
// pulses.
package tape

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// TAP chunk flag bytes.
const (
	FlagHeader = 0x00
	FlagData   = 0xFF
)

// Header block types.
const (
	HeaderProgram   = 0
	HeaderNumArray  = 1
	HeaderCharArray = 2
	HeaderCode      = 3
)

const headerLen = 19 // flag + type + 10 name + 3 x u16 + checksum

var ErrNoChunk = errors.New("tape: no such chunk")

// Chunk is a single TAP block, flag byte and trailing checksum included.
type Chunk []byte

func (c Chunk) Flag() byte     { return c[0] }
func (c Chunk) IsHeader() bool { return len(c) == headerLen && c[0] == FlagHeader }

// Checksum returns the xor of all bytes but the last, which is how the
// trailing checksum byte is computed.
func (c Chunk) Checksum() byte {
	var x byte
	for _, b := range c[:len(c)-1] {
		x ^= b
	}
	return x
}

// Info describes a chunk for the status line.
type Info struct {
	Header bool
	Type   byte
	Name   string
	Length int
}

func (c Chunk) Info() Info {
	if !c.IsHeader() {
		return Info{Length: len(c) - 2}
	}
	name := make([]byte, 10)
	copy(name, c[2:12])
	for i, b := range name {
		if b < 0x20 || b > 0x7e {
			name[i] = '?'
		}
	}
	return Info{
		Header: true,
		Type:   c[1],
		Name:   string(name),
		Length: int(binary.LittleEndian.Uint16(c[12:14])),
	}
}

func (i Info) String() string {
	if !i.Header {
		return fmt.Sprintf("data %d bytes", i.Length)
	}
	kind := "code"
	switch i.Type {
	case HeaderProgram:
		kind = "program"
	case HeaderNumArray:
		kind = "numbers"
	case HeaderCharArray:
		kind = "chars"
	}
	return fmt.Sprintf("%s %q %d bytes", kind, i.Name, i.Length)
}

// ChunkReader reads TAP chunks sequentially from a seekable stream and
// supports chunk-boundary seeking. Chunk offsets are discovered lazily as
// the stream is traversed.
type ChunkReader struct {
	r       io.ReadSeeker
	offsets []int64 // start offset of every chunk seen so far
	next    int     // index of the next chunk ReadChunk returns
	scanned bool    // whole stream has been indexed
}

func NewChunkReader(r io.ReadSeeker) *ChunkReader {
	return &ChunkReader{r: r, offsets: []int64{0}}
}

// ReadChunk returns the next chunk, or io.EOF past the last one.
func (cr *ChunkReader) ReadChunk() (Chunk, error) {
	off := cr.offsets[cr.next]
	if _, err := cr.r.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}

	var hdr [2]byte
	if _, err := io.ReadFull(cr.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(hdr[:]))
	chunk := make(Chunk, n)
	if _, err := io.ReadFull(cr.r, chunk); err != nil {
		return nil, fmt.Errorf("truncated chunk %d: %w", cr.next, err)
	}

	cr.next++
	if cr.next == len(cr.offsets) {
		cr.offsets = append(cr.offsets, off+2+int64(n))
	}
	return chunk, nil
}

// Chunk reports the index of the next chunk to be read, starting at 0.
func (cr *ChunkReader) Chunk() int { return cr.next }

// Rewind seeks back to the first chunk.
func (cr *ChunkReader) Rewind() { cr.next = 0 }

// SeekChunk positions the reader on chunk n, indexing forward through the
// stream as needed.
func (cr *ChunkReader) SeekChunk(n int) error {
	if n < 0 {
		return ErrNoChunk
	}
	for n >= len(cr.offsets) {
		cr.next = len(cr.offsets) - 1
		if _, err := cr.ReadChunk(); err != nil {
			if err == io.EOF {
				return ErrNoChunk
			}
			return err
		}
	}
	cr.next = n
	return nil
}

// NextChunk and PrevChunk move one chunk boundary in either direction.
func (cr *ChunkReader) NextChunk() error { return cr.SeekChunk(cr.next + 1) }
func (cr *ChunkReader) PrevChunk() error {
	if cr.next == 0 {
		return nil
	}
	return cr.SeekChunk(cr.next - 1)
}

// ChunkWriter appends TAP chunks to a stream.
type ChunkWriter struct {
	w io.Writer
}

func NewChunkWriter(w io.Writer) *ChunkWriter {
	return &ChunkWriter{w: w}
}

// WriteChunk writes one length-prefixed block. The chunk must already carry
// its flag and checksum bytes.
func (cw *ChunkWriter) WriteChunk(c Chunk) error {
	if len(c) > 0xFFFF {
		return fmt.Errorf("chunk too large: %d bytes", len(c))
	}
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(c)))
	if _, err := cw.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := cw.w.Write(c)
	return err
}
