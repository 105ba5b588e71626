// Package memory implements the PPU address space: pattern tables, nametables
// and palette RAM.
package memory

import (
	"fmt"

	"github.com/cespare/xxhash"
)

const (
	NametableBase = 0x2000
	NametableSize = 0x400
	AttributeBase = 0x3C0
	PaletteBase   = 0x3F00
	PaletteSize   = 32
)

// PPUMemory represents the PPU's memory space
type PPUMemory struct {
	vram       [0x1000]uint8 // 4KB so four-screen layouts keep every bank
	paletteRAM [PaletteSize]uint8
	patterns   PatternSource
	mirroring  MirrorMode
}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single0"
	case MirrorSingleScreen1:
		return "single1"
	case MirrorFourScreen:
		return "four-screen"
	default:
		return fmt.Sprintf("MirrorMode(%d)", uint8(m))
	}
}

// ParseMirrorMode maps a configuration name onto a mirroring mode
func ParseMirrorMode(name string) (MirrorMode, error) {
	for m := MirrorHorizontal; m <= MirrorFourScreen; m++ {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mirroring mode %q", name)
}

// PatternSource supplies the $0000-$1FFF pattern tables
type PatternSource interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(patterns PatternSource, mirroring MirrorMode) *PPUMemory {
	mem := &PPUMemory{
		patterns:  patterns,
		mirroring: mirroring,
	}

	// Background color positions start out black
	for i := 0; i < PaletteSize; i += 4 {
		mem.paletteRAM[i] = 0x0F
	}

	return mem
}

// Mirroring returns the active mirroring mode
func (pm *PPUMemory) Mirroring() MirrorMode {
	return pm.mirroring
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.patterns.ReadCHR(address)
	case address < 0x3000:
		return pm.vram[pm.getNametableIndex(address)]
	case address < 0x3F00:
		// $3000-$3EFF mirrors the nametables
		return pm.vram[pm.getNametableIndex(address-0x1000)]
	default:
		return pm.paletteRAM[paletteIndex(address)]
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.patterns.WriteCHR(address, value)
	case address < 0x3000:
		pm.vram[pm.getNametableIndex(address)] = value
	case address < 0x3F00:
		pm.vram[pm.getNametableIndex(address-0x1000)] = value
	default:
		pm.paletteRAM[paletteIndex(address)] = value
	}
}

// Nametable returns a copy of the 1KB bank visible at logical nametable n (0-3)
func (pm *PPUMemory) Nametable(n int) [NametableSize]uint8 {
	var out [NametableSize]uint8
	base := pm.getNametableIndex(NametableBase + uint16(n&3)*NametableSize)
	copy(out[:], pm.vram[base:base+NametableSize])
	return out
}

// BankDigest hashes the contents of logical nametable n, attributes included
func (pm *PPUMemory) BankDigest(n int) uint64 {
	bank := pm.Nametable(n)
	return xxhash.Sum64(bank[:])
}

// Palette returns a copy of palette RAM
func (pm *PPUMemory) Palette() [PaletteSize]uint8 {
	return pm.paletteRAM
}

// getNametableIndex calculates the actual VRAM index based on mirroring mode
func (pm *PPUMemory) getNametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	nametable := (address >> 10) & 3
	offset := address & 0x3FF

	switch pm.mirroring {
	case MirrorHorizontal:
		// $2000/$2400 share the first 1KB, $2800/$2C00 the second
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset

	case MirrorVertical:
		// $2000/$2800 share the first 1KB, $2400/$2C00 the second
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset

	case MirrorSingleScreen0:
		return offset

	case MirrorSingleScreen1:
		return 0x400 + offset

	case MirrorFourScreen:
		return nametable*0x400 + offset

	default:
		return offset
	}
}

func paletteIndex(address uint16) uint16 {
	index := (address - PaletteBase) & 0x1F

	// $3F10/$3F14/$3F18/$3F1C mirror the background entries
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return index
}
