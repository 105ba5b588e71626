package cartridge

import (
	"nesmap/internal/memory"
	"nesmap/internal/tilemap"
)

// Tiles the debug pattern table provides beyond the map blocks
const (
	PlayerTile  = 0x40 // Top-left tile of the 16x16 player in the sprite table
	Sprite0Tile = 0xFE // Opaque 8x8 sprite tile used for the split
	HeartBlock  = 62   // Map block drawn as a heart in the HUD
	HUDBlock    = 63   // Map block filling the HUD background
)

const spriteTable = 0x1000

// NewDebugCHR generates pattern tables in which every map block used by the
// demo world is recognisable, plus a sprite table with one shape per template.
func NewDebugCHR() *Cartridge {
	cart := &Cartridge{
		chr:       make([]uint8, CHRSize),
		hasCHRRAM: true,
		mirror:    memory.MirrorVertical,
	}
	cart.mapper = NewMapper000(cart)

	for id := 0; id < 64; id++ {
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				cart.setBlockPixel(0, int(tilemap.BlockTile(uint8(id))), x, y, blockPixel(id, x, y))
			}
		}
	}

	for group := 0; group < 0x100; group += 2 {
		if group&0x10 != 0 {
			continue
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				cart.setBlockPixel(spriteTable, group, x, y, spritePixel(group, x, y))
			}
		}
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			cart.setPixel(spriteTable, Sprite0Tile, x, y, 1)
		}
	}

	return cart
}

// setBlockPixel sets a pixel of the 16x16 block whose top-left tile is tile
func (c *Cartridge) setBlockPixel(table, tile, x, y int, color uint8) {
	c.setPixel(table, tile+x/8+(y/8)*16, x%8, y%8, color)
}

func (c *Cartridge) setPixel(table, tile, x, y int, color uint8) {
	base := table + (tile&0xFF)*16 + y
	bit := uint8(0x80) >> uint(x)
	c.chr[base] &^= bit
	c.chr[base+8] &^= bit
	if color&1 != 0 {
		c.chr[base] |= bit
	}
	if color&2 != 0 {
		c.chr[base+8] |= bit
	}
}

func blockPixel(id, x, y int) uint8 {
	dx, dy := x*2-15, y*2-15
	switch id {
	case 0: // grass
		if (x*7+y*13)%23 == 0 {
			return 1
		}
		return 0
	case 1: // flowers
		if x%6 == 2 && y%6 == 3 {
			return 2
		}
		if (x+y)%9 == 0 {
			return 1
		}
		return 0
	case 2: // sand
		if (x+y*3)%5 == 0 {
			return 1
		}
		return 0
	case 3: // path
		if y == 0 || y == 15 {
			return 1
		}
		return 3
	case 8: // wall
		offset := 0
		if y/4%2 == 1 {
			offset = 4
		}
		if y%4 == 3 || (x+offset)%8 == 7 {
			return 3
		}
		return 2
	case 9: // tree
		if dx >= -3 && dx <= 3 && y >= 11 {
			return 3
		}
		if dx*dx+(dy+4)*(dy+4) < 120 {
			return 1
		}
		return 0
	case 10, 11: // rock, water
		r := dx*dx + dy*dy
		switch {
		case r < 110:
			return 2
		case r < 160:
			return 3
		}
		return 0
	case HeartBlock:
		u, v := (float64(x)-7.5)/6, (7-float64(y))/6
		a := u*u + v*v - 1
		if a*a*a-u*u*v*v*v < 0 {
			return 2
		}
		return 3
	case HUDBlock:
		return 3
	default:
		return uint8((x/4 + y/4 + id) % 4)
	}
}

func spritePixel(group, x, y int) uint8 {
	dx, dy := abs(x*2-15), abs(y*2-15)
	if group == PlayerTile {
		if (x == 5 || x == 10) && y == 5 {
			return 3
		}
		if dx*dx+dy*dy < 200 {
			return 1
		}
		return 0
	}

	d := dx + dy
	switch {
	case d < 16:
		return uint8(group>>1)%3 + 1
	case d < 20:
		return 3
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
