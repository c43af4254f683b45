package hw

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"

	"github.com/spf13/afero"

	"speccy/emu/log"
)

const pageSize = 0x4000

// Firmware holds the canonical ROM images. Migration always reloads these
// into a fresh machine, never copies them from the source machine.
type Firmware struct {
	ROM48  []byte    // 16k, also used by the 16k model
	ROM128 [2][]byte // 16k editor/menu ROM + 16k 48k-compatible ROM
}

// LoadFirmware reads 48.rom, 128-0.rom and 128-1.rom from dir.
func LoadFirmware(fs afero.Fs, dir string) (Firmware, error) {
	var fw Firmware
	var err error
	if fw.ROM48, err = readROM(fs, filepath.Join(dir, "48.rom")); err != nil {
		return fw, err
	}
	if fw.ROM128[0], err = readROM(fs, filepath.Join(dir, "128-0.rom")); err != nil {
		return fw, err
	}
	if fw.ROM128[1], err = readROM(fs, filepath.Join(dir, "128-1.rom")); err != nil {
		return fw, err
	}
	return fw, nil
}

func readROM(fs afero.Fs, path string) ([]byte, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	if len(buf) > pageSize {
		return nil, fmt.Errorf("firmware: %s is %d bytes, want at most %d", path, len(buf), pageSize)
	}
	return buf, nil
}

// memoryBus is the model-specific part of the address space.
type memoryBus interface {
	read(addr uint16) uint8
	write(addr uint16, v uint8)

	// ramReader streams the writable memory in sequential bank order.
	ramReader() io.Reader
	// loadRAM overwrites the writable memory from a stream, stopping at
	// end of RAM. The stream is expected to never run dry (see PadReader).
	loadRAM(r io.Reader)

	// screen returns the 6912 bytes of display memory currently scanned out.
	screen() []byte
}

// flatMemory is the 16k/48k address space: one ROM page and 1 or 3
// contiguous RAM pages. Reads past the end of a 16k machine's RAM float
// high, writes there are lost.
type flatMemory struct {
	rom [pageSize]byte
	ram []byte
}

func newFlatMemory(model Model, rom []byte) *flatMemory {
	m := &flatMemory{ram: make([]byte, model.RAMSize())}
	copy(m.rom[:], rom)
	randomize(m.ram)
	return m
}

func (m *flatMemory) read(addr uint16) uint8 {
	if addr < pageSize {
		return m.rom[addr]
	}
	if int(addr)-pageSize >= len(m.ram) {
		return 0xFF
	}
	return m.ram[addr-pageSize]
}

func (m *flatMemory) write(addr uint16, v uint8) {
	if addr < pageSize || int(addr)-pageSize >= len(m.ram) {
		return
	}
	m.ram[addr-pageSize] = v
}

func (m *flatMemory) ramReader() io.Reader { return bytes.NewReader(m.ram) }

func (m *flatMemory) loadRAM(r io.Reader) {
	if _, err := io.ReadFull(r, m.ram); err != nil {
		log.ModMem.WarnZ("short RAM image").Error("err", err).End()
	}
}

func (m *flatMemory) screen() []byte { return m.ram[:6912] }

// Banking bits of port 0x7FFD.
const (
	bankRAMMask    = 0x07 // RAM bank mapped at 0xC000
	bankScreenFlag = 0x08 // scan out the shadow screen (bank 7)
	bankROMFlag    = 0x10 // select the 48k-compatible ROM
	bankLockFlag   = 0x20 // ignore further banking writes until reset
)

// bankedMemory is the 128k address space: two ROMs and eight switchable RAM
// banks controlled by port 0x7FFD.
type bankedMemory struct {
	roms  [2][pageSize]byte
	banks [8][pageSize]byte
	port  uint8 // last accepted 0x7FFD value
}

func newBankedMemory(roms [2][]byte) *bankedMemory {
	m := &bankedMemory{}
	copy(m.roms[0][:], roms[0])
	copy(m.roms[1][:], roms[1])
	for i := range m.banks {
		randomize(m.banks[i][:])
	}
	return m
}

func (m *bankedMemory) read(addr uint16) uint8 {
	switch addr >> 14 {
	case 0:
		rom := 0
		if m.port&bankROMFlag != 0 {
			rom = 1
		}
		return m.roms[rom][addr]
	case 1:
		return m.banks[5][addr&0x3FFF]
	case 2:
		return m.banks[2][addr&0x3FFF]
	default:
		return m.banks[m.port&bankRAMMask][addr&0x3FFF]
	}
}

func (m *bankedMemory) write(addr uint16, v uint8) {
	switch addr >> 14 {
	case 0:
	case 1:
		m.banks[5][addr&0x3FFF] = v
	case 2:
		m.banks[2][addr&0x3FFF] = v
	default:
		m.banks[m.port&bankRAMMask][addr&0x3FFF] = v
	}
}

// setPort latches a banking write, unless the MMU is locked.
func (m *bankedMemory) setPort(v uint8) {
	if m.port&bankLockFlag != 0 {
		return
	}
	m.port = v
}

// lock48 forces the 48k-compatible configuration until the next reset:
// ROM 1, bank 0 at the top, normal screen, MMU locked.
func (m *bankedMemory) lock48() {
	m.port = bankROMFlag | bankLockFlag
}

// ramReader streams the three mapped RAM pages in address order, which is
// what migration snapshots: 0x4000..0xFFFF as the CPU currently sees it,
// then the five remaining banks.
func (m *bankedMemory) ramReader() io.Reader {
	readers := []io.Reader{
		bytes.NewReader(m.banks[5][:]),
		bytes.NewReader(m.banks[2][:]),
		bytes.NewReader(m.banks[m.port&bankRAMMask][:]),
	}
	for i := range m.banks {
		if i == 5 || i == 2 || i == int(m.port&bankRAMMask) {
			continue
		}
		readers = append(readers, bytes.NewReader(m.banks[i][:]))
	}
	return io.MultiReader(readers...)
}

func (m *bankedMemory) loadRAM(r io.Reader) {
	order := []int{5, 2, int(m.port & bankRAMMask)}
	for i := range m.banks {
		if i == order[0] || i == order[1] || i == order[2] {
			continue
		}
		order = append(order, i)
	}
	for _, bank := range order {
		if _, err := io.ReadFull(r, m.banks[bank][:]); err != nil {
			log.ModMem.WarnZ("short RAM image").Int("bank", int64(bank)).Error("err", err).End()
			return
		}
	}
}

func (m *bankedMemory) screen() []byte {
	bank := 5
	if m.port&bankScreenFlag != 0 {
		bank = 7
	}
	return m.banks[bank][:6912]
}

func randomize(p []byte) {
	for i := 0; i+8 <= len(p); i += 8 {
		v := rand.Uint64()
		for j := range 8 {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	for i := len(p) &^ 7; i < len(p); i++ {
		p[i] = byte(rand.Uint32())
	}
}

// padReader yields r's bytes, then fill forever. Migrating to a larger
// memory pads the image instead of failing.
type padReader struct {
	r    io.Reader
	fill byte
	eof  bool
}

// PadReader wraps r so it never runs dry, padding with fill past the end.
func PadReader(r io.Reader, fill byte) io.Reader {
	return &padReader{r: r, fill: fill}
}

func (p *padReader) Read(buf []byte) (int, error) {
	if !p.eof {
		n, err := p.r.Read(buf)
		if n > 0 || (err == nil && n == 0) {
			return n, nil
		}
		if err != io.EOF {
			return n, err
		}
		p.eof = true
	}
	for i := range buf {
		buf[i] = p.fill
	}
	return len(buf), nil
}
