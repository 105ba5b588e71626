// Package tilemap holds the in-memory layout of a single overworld screen.
package tilemap

import "fmt"

// Map geometry
const (
	Size       = 256 // Bytes in one map buffer
	TileCount  = 192 // Tile bytes at the start of the buffer
	Width      = 16  // Blocks per row (16x16 px each)
	Height     = 12  // Block rows
	MaxSprites = 12  // Sprite placement slots following the tile bytes

	// Placement record position byte meaning "no sprite in this slot"
	NoSprite = 0xFF
)

// Screen geometry shared by the streamer and the transition controller
const (
	ScreenWidthTiles = 32
	HUDPixelHeight   = 48
	HUDTileRows      = HUDPixelHeight / 8

	// PositionShift is the number of fractional bits in 16-bit sprite and player positions
	PositionShift = 4

	// RestingScrollY keeps the HUD at the top of the screen with the map below it
	RestingScrollY = 240 - HUDPixelHeight
)

// Map is one screen of tile data followed by sprite placement records.
// Tile bytes carry the tile index in bits 0-5 and the palette selector in bits 6-7.
type Map [Size]byte

// Placement is a decoded sprite placement record
type Placement struct {
	Position uint8 // Coarse grid position: low nibble X, high nibble Y
	Template uint8 // Index into the sprite template table
}

// FromBytes copies a raw map buffer. Short input is padded with empty sprite slots.
func FromBytes(data []byte) *Map {
	m := &Map{}
	for i := TileCount; i < Size; i++ {
		m[i] = NoSprite
	}
	copy(m[:], data)
	return m
}

// Tile returns the raw tile byte at index i (row-major, 16 per row)
func (m *Map) Tile(i int) uint8 {
	if i < 0 || i >= TileCount {
		panic(fmt.Sprintf("tilemap: tile index %d out of range", i))
	}
	return m[i]
}

// TileID returns the 6-bit tile index of tile i
func (m *Map) TileID(i int) uint8 {
	return m.Tile(i) & 0x3F
}

// Palette returns the 2-bit palette selector of tile i
func (m *Map) Palette(i int) uint8 {
	return m.Tile(i) >> 6
}

// SetTile stores a tile index and palette selector at index i
func (m *Map) SetTile(i int, id, palette uint8) {
	if i < 0 || i >= TileCount {
		panic(fmt.Sprintf("tilemap: tile index %d out of range", i))
	}
	m[i] = (id & 0x3F) | (palette << 6)
}

// Placement returns the placement record for a sprite slot. ok is false when the slot
// holds the empty sentinel.
func (m *Map) Placement(slot int) (p Placement, ok bool) {
	if slot < 0 || slot >= MaxSprites {
		panic(fmt.Sprintf("tilemap: sprite slot %d out of range", slot))
	}
	offset := TileCount + slot<<1
	if m[offset] == NoSprite {
		return Placement{}, false
	}
	return Placement{Position: m[offset], Template: m[offset+1]}, true
}

// SetPlacement writes a sprite placement record into a slot
func (m *Map) SetPlacement(slot int, p Placement) {
	if slot < 0 || slot >= MaxSprites {
		panic(fmt.Sprintf("tilemap: sprite slot %d out of range", slot))
	}
	offset := TileCount + slot<<1
	m[offset] = p.Position
	m[offset+1] = p.Template
}

// ClearPlacement empties a sprite slot
func (m *Map) ClearPlacement(slot int) {
	if slot < 0 || slot >= MaxSprites {
		panic(fmt.Sprintf("tilemap: sprite slot %d out of range", slot))
	}
	offset := TileCount + slot<<1
	m[offset] = NoSprite
	m[offset+1] = 0
}

// BlockTile returns the top-left screen tile of the 2x2 block drawn for a map tile id.
// Tiles are laid out 8 metatiles per row in a 16 tile wide pattern table, so the other
// three quadrants are at +1, +16 and +17.
func BlockTile(id uint8) uint8 {
	id &= 0x3F
	return ((id >> 3) << 5) + ((id % 8) << 1)
}

// Block returns the four screen tiles (top-left, top-right, bottom-left, bottom-right)
// for a map tile id
func Block(id uint8) [4]uint8 {
	base := BlockTile(id)
	return [4]uint8{base, base + 1, base + 16, base + 17}
}
