// Package render streams tile maps into nametable banks through vblank-gated
// VRAM update lists.
package render

import (
	"fmt"
	"log"

	"nesmap/internal/attr"
	"nesmap/internal/tilemap"
	"nesmap/internal/update"
)

// RunLength is the number of screen tiles in one flushed block row: 16 blocks
// of 2x2 tiles
const RunLength = 64

// Display is the video device the renderer drives. Update lists are consumed
// by the next WaitNMI.
type Display interface {
	SetVRAMUpdate(list []byte)
	WaitNMI()
	Scroll(x, y int)
	Split(x int)
	SplitY(x, y int)
}

// Bank is one of the four nametables
type Bank int

const (
	BankA Bank = iota
	BankB
	BankC
	BankD
)

// Nametable returns the VRAM address of the bank's tile area
func (b Bank) Nametable() uint16 {
	return 0x2000 + uint16(b)*0x400
}

// Attributes returns the VRAM address of the bank's attribute table
func (b Bank) Attributes() uint16 {
	return b.Nametable() + 0x3C0
}

func (b Bank) String() string {
	return string(rune('A' + int(b)))
}

// Split describes the scroll applied below sprite 0
type Split struct {
	X, Y     int
	absolute bool
	active   bool
}

// NoSplit leaves the whole frame on the regular scroll
var NoSplit = Split{}

// SplitAt moves the area below the HUD horizontally; the vertical position
// keeps following the frame scroll
func SplitAt(x int) Split {
	return Split{X: x, active: true}
}

// SplitAtY sets both axes for the area below the HUD
func SplitAtY(x, y int) Split {
	return Split{X: x, Y: y, absolute: true, active: true}
}

// Active reports whether a split is in effect
func (s Split) Active() bool {
	return s.active
}

// Absolute reports whether the split sets the vertical position too
func (s Split) Absolute() bool {
	return s.absolute
}

// Renderer owns the attribute table and the update buffer shared by every
// streaming pass
type Renderer struct {
	display Display
	attrs   attr.Table
	buf     update.Buffer
	split   Split
	debug   bool
}

// New creates a renderer drawing to display
func New(display Display) *Renderer {
	return &Renderer{display: display}
}

// SetDebug enables pass-level logging
func (r *Renderer) SetDebug(enabled bool) {
	r.debug = enabled
}

// SetSplit changes the split re-armed after every vblank wait
func (r *Renderer) SetSplit(s Split) {
	r.split = s
}

// CurrentSplit returns the split re-armed after every vblank wait
func (r *Renderer) CurrentSplit() Split {
	return r.split
}

// ClearAttributes resets the attribute table before a pass
func (r *Renderer) ClearAttributes(containsHUD bool) {
	r.attrs.Clear(containsHUD)
}

// Attributes returns the attribute table as accumulated so far
func (r *Renderer) Attributes() attr.Table {
	return r.attrs
}

// DrawBank redraws a whole bank from m. Only bank A carries the HUD strip.
func (r *Renderer) DrawBank(m *tilemap.Map, bank Bank) {
	r.ClearAttributes(bank == BankA)
	r.split = NoSplit
	r.StreamMap(m, bank.Nametable(), bank.Attributes(), false)
}

// Rearm re-applies the current split for the frame in progress
func (r *Renderer) Rearm() {
	if !r.split.active {
		return
	}
	r.display.Scroll(0, tilemap.RestingScrollY)
	if r.split.absolute {
		r.display.SplitY(r.split.X, r.split.Y)
	} else {
		r.display.Split(r.split.X)
	}
}

// StreamMap writes all 192 map tiles as 2x2 blocks starting at nametable, one
// block row per vblank, then the accumulated attribute table at attributes.
// The caller clears the attribute table first.
func (r *Renderer) StreamMap(m *tilemap.Map, nametable, attributes uint16, reverse bool) {
	if r.debug {
		log.Printf("[RENDER] Streaming map to $%04X (attributes $%04X, reverse=%v)", nametable, attributes, reverse)
	}

	r.buf.Reset()
	cursor := attr.NewCursor(reverse)
	var tiles []byte

	for i := 0; i < tilemap.TileCount; i++ {
		slot := i % tilemap.Width
		if slot == 0 {
			tiles = r.buf.Begin(nametable+uint16(i/tilemap.Width)*RunLength, RunLength)
		}
		putBlock(tiles, slot, m.TileID(i))
		r.attrs.Accumulate(&cursor, i, m.Tile(i))

		switch slot {
		case 7:
			// Half a row in; the frame may still be drawing
			r.Rearm()
		case tilemap.Width - 1:
			r.flush(r.Rearm)
		}
	}

	copy(r.buf.Begin(attributes, attr.TableSize), r.attrs[:])
	r.flush(r.Rearm)
}

// RowCursor is the position of a row-by-row pass. It is returned by every
// StreamRow call and must be handed unchanged to the next one.
type RowCursor struct {
	Tile        int         // Next map tile, always the start of a row pair
	Attr        attr.Cursor // Attribute byte cursor matching Tile
	SplitOffset int         // Vertical split offset below the HUD
}

// NewRowCursor positions a cursor at the start of a row pair (32 map tiles)
func NewRowCursor(pair int, reverse bool, splitOffset int) RowCursor {
	return RowCursor{
		Tile:        pair * 2 * tilemap.Width,
		Attr:        attr.CursorAt(pair, reverse),
		SplitOffset: splitOffset,
	}
}

// StreamRow writes one row pair from cursor.Tile. Each block row is flushed
// together with the attribute strip it finished. While a split is active the
// split offset moves by delta at the midpoint of each block row, so the view
// keeps scrolling while the row streams in.
func (r *Renderer) StreamRow(m *tilemap.Map, nametable, attributes uint16, cursor RowCursor, delta int) RowCursor {
	if cursor.Tile%(2*tilemap.Width) != 0 || cursor.Tile >= tilemap.TileCount {
		panic(fmt.Sprintf("render: row cursor at tile %d is not the start of a row pair", cursor.Tile))
	}

	r.buf.Reset()
	arm := func() { r.armRowSplit(cursor.SplitOffset) }
	var tiles []byte

	for n := 0; n < 2*tilemap.Width; n++ {
		i := cursor.Tile + n
		slot := i % tilemap.Width
		if slot == 0 {
			tiles = r.buf.Begin(nametable+uint16(i/tilemap.Width)*RunLength, RunLength)
		}
		putBlock(tiles, slot, m.TileID(i))
		r.attrs.Accumulate(&cursor.Attr, i, m.Tile(i))

		switch slot {
		case 7:
			r.display.WaitNMI()
			if r.split.active {
				cursor.SplitOffset += delta
			}
			arm()
		case tilemap.Width - 1:
			j := cursor.Attr.J
			copy(r.buf.Begin(attributes+uint16(j-(attr.RowBytes-1)), attr.RowBytes), r.attrs.Strip(j))
			r.flush(arm)
		}
	}

	cursor.Tile += 2 * tilemap.Width
	return cursor
}

func (r *Renderer) armRowSplit(offset int) {
	if !r.split.active {
		return
	}
	r.display.Scroll(0, tilemap.RestingScrollY)
	r.display.SplitY(r.split.X, 240+tilemap.HUDPixelHeight+offset)
}

// flush hands the built list to the display, waits for it to be applied and
// starts a new list
func (r *Renderer) flush(afterWait func()) {
	r.buf.Terminate()
	r.display.SetVRAMUpdate(r.buf.Bytes())
	r.display.WaitNMI()
	afterWait()
	r.buf.Reset()
}

// putBlock writes the 2x2 screen tiles for a map tile into slot of a block row
func putBlock(tiles []byte, slot int, id uint8) {
	block := tilemap.Block(id)
	tiles[slot*2] = block[0]
	tiles[slot*2+1] = block[1]
	tiles[slot*2+tilemap.ScreenWidthTiles] = block[2]
	tiles[slot*2+tilemap.ScreenWidthTiles+1] = block[3]
}
