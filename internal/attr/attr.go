// Package attr packs per-tile palette selectors into NES attribute table bytes.
//
// Each attribute byte covers a 32x32 pixel area split into four 16x16 blocks:
//
//	bits 0-1 top-left, 2-3 top-right, 4-5 bottom-left, 6-7 bottom-right
//
// Map tiles are 16x16 blocks visited in row-major order, so every attribute byte
// is touched by four tiles across two block rows. The packer accumulates those
// contributions additively while the tiles stream out.
package attr

import "fmt"

const (
	// TableSize is the number of attribute bytes kept for one screen
	TableSize = 0x38

	// RowBytes is the number of attribute bytes covering one 32 px strip
	RowBytes = 8

	// HUDStart is the first byte of the strip that sits under the HUD
	HUDStart = TableSize - RowBytes
)

// Table accumulates palette selectors for one streaming pass
type Table [TableSize]byte

// Clear resets the table ahead of a pass. When containsHUD is set the last strip
// selects palette 3 everywhere so the HUD keeps its dedicated colours.
func (t *Table) Clear(containsHUD bool) {
	for i := 0; i < HUDStart; i++ {
		t[i] = 0x00
	}
	fill := byte(0x00)
	if containsHUD {
		fill = 0xFF
	}
	for i := HUDStart; i < TableSize; i++ {
		t[i] = fill
	}
}

// Cursor tracks which attribute byte the current tile accumulates into.
// Reverse swaps which block row of a strip counts as "top", which lets a pass
// start on an odd block row.
type Cursor struct {
	J       int
	Reverse bool
}

// NewCursor returns a cursor positioned before tile 0
func NewCursor(reverse bool) Cursor {
	if reverse {
		return Cursor{J: 7, Reverse: true}
	}
	return Cursor{J: -1}
}

// CursorAt returns a cursor positioned before the first tile of a row pair
// (tile index pair*32), equivalent to having advanced a fresh cursor through
// every earlier tile.
func CursorAt(pair int, reverse bool) Cursor {
	if reverse {
		return Cursor{J: pair*RowBytes + 7, Reverse: true}
	}
	return Cursor{J: pair*RowBytes - 1}
}

// Advance moves the cursor onto tile i and returns the byte index it selects.
// Tiles must be visited in increasing order within a row pair.
func (c *Cursor) Advance(i int) int {
	boundary := 16
	if c.Reverse {
		boundary = 0
	}
	if i%32 == boundary {
		c.J -= RowBytes
	}
	if i%2 == 0 {
		c.J++
	}
	return c.J
}

// Contribution returns the palette bits of a tile byte shifted into the quadrant
// that tile i occupies
func Contribution(i int, tile byte, reverse bool) byte {
	value := tile & 0xC0
	polarity := 0
	if reverse {
		polarity = 1
	}
	top := (i/16)%2 == polarity

	if i%2 == 0 {
		// Even tiles are the left block of their pair
		if top {
			return value >> 6
		}
		return value >> 2
	}
	if top {
		return value >> 4
	}
	return value
}

// Accumulate advances the cursor onto tile i and adds its contribution
func (t *Table) Accumulate(c *Cursor, i int, tile byte) {
	j := c.Advance(i)
	if j < 0 || j >= TableSize {
		panic(fmt.Sprintf("attr: tile %d selects attribute byte %d outside the table", i, j))
	}
	t[j] += Contribution(i, tile, c.Reverse)
}

// Strip returns the RowBytes bytes ending at index j, the strip the cursor
// finished most recently
func (t *Table) Strip(j int) []byte {
	start := j - (RowBytes - 1)
	if start < 0 || j >= TableSize {
		panic(fmt.Sprintf("attr: strip ending at %d outside the table", j))
	}
	return t[start : j+1]
}
