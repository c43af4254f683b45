package hw

// Output frame geometry: the 256x192 bitmap with a 32-pixel border band.
const (
	ScreenW = 320
	ScreenH = 256

	borderX = (ScreenW - 256) / 2
	borderY = (ScreenH - 192) / 2

	// FLASH attributes swap ink and paper every 16 frames.
	flashPeriod = 16
)

// palette holds the 16 RGBA colors, normal then bright.
var palette = [16][4]byte{
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0xC0, 0xFF},
	{0xC0, 0x00, 0x00, 0xFF}, {0xC0, 0x00, 0xC0, 0xFF},
	{0x00, 0xC0, 0x00, 0xFF}, {0x00, 0xC0, 0xC0, 0xFF},
	{0xC0, 0xC0, 0x00, 0xFF}, {0xC0, 0xC0, 0xC0, 0xFF},
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0xFF, 0xFF},
	{0xFF, 0x00, 0x00, 0xFF}, {0xFF, 0x00, 0xFF, 0xFF},
	{0x00, 0xFF, 0x00, 0xFF}, {0x00, 0xFF, 0xFF, 0xFF},
	{0xFF, 0xFF, 0x00, 0xFF}, {0xFF, 0xFF, 0xFF, 0xFF},
}

// renderScreen expands the 6912-byte display file plus border color into an
// RGBA buffer of at least ScreenH rows of pitch bytes.
func renderScreen(buf []byte, pitch int, screen []byte, border uint8, frame uint64) {
	bc := palette[border&7]
	flash := frame%(2*flashPeriod) >= flashPeriod

	for y := range ScreenH {
		row := buf[y*pitch : y*pitch+ScreenW*4]
		if y < borderY || y >= borderY+192 {
			fillRGBA(row, bc)
			continue
		}
		fillRGBA(row[:borderX*4], bc)
		fillRGBA(row[(borderX+256)*4:], bc)

		sy := y - borderY
		// Display file rows interleave by character line thirds.
		base := (sy&0xC0)<<5 | (sy&0x07)<<8 | (sy&0x38)<<2
		arow := 6144 + (sy>>3)<<5
		for col := range 32 {
			bits := screen[base+col]
			attr := screen[arow+col]
			ink := palette[attr&0x07|(attr&0x40)>>3]
			paper := palette[(attr>>3)&0x07|(attr&0x40)>>3]
			if attr&0x80 != 0 && flash {
				ink, paper = paper, ink
			}
			px := row[(borderX+col*8)*4:]
			for b := range 8 {
				c := paper
				if bits&(0x80>>b) != 0 {
					c = ink
				}
				copy(px[b*4:], c[:])
			}
		}
	}
}

func fillRGBA(dst []byte, c [4]byte) {
	for i := 0; i+4 <= len(dst); i += 4 {
		copy(dst[i:], c[:])
	}
}
