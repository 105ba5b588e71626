// Package cartridge supplies pattern table data for the PPU, either from the
// CHR ROM of an iNES image or generated for debugging.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"nesmap/internal/archive"
	"nesmap/internal/memory"
)

// CHRSize is the size of the two pattern tables
const CHRSize = 0x2000

// Cartridge holds the pattern tables of a loaded image
type Cartridge struct {
	chr []uint8

	// Mapper information
	mapperID uint8
	mapper   Mapper

	// Mirroring mode requested by the header
	mirror memory.MirrorMode

	// CHR memory type
	hasCHRRAM bool
}

// Mapper maps PPU pattern table addresses onto CHR memory
type Mapper interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// iNES header structure
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // in 16KB units
	CHRROMSize uint8 // in 8KB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// LoadFromFile loads the pattern tables of an iNES file. The image may be
// gzip compressed or packed in a zip or 7z archive.
func LoadFromFile(filename string) (*Cartridge, error) {
	data, err := archive.Load(filename)
	if err != nil {
		return nil, err
	}
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromReader loads pattern tables from an iNES stream. PRG ROM is skipped.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}

	if string(header.Magic[:]) != "NES\x1A" {
		return nil, errors.New("invalid iNES file")
	}

	if header.PRGROMSize == 0 {
		return nil, errors.New("invalid ROM: PRG ROM size cannot be zero")
	}

	cart := &Cartridge{
		mapperID: (header.Flags6 >> 4) | (header.Flags7 & 0xF0),
	}

	if (header.Flags6 & 0x08) != 0 {
		cart.mirror = memory.MirrorFourScreen
	} else if (header.Flags6 & 0x01) != 0 {
		cart.mirror = memory.MirrorVertical
	} else {
		cart.mirror = memory.MirrorHorizontal
	}

	// Trainer and PRG ROM are of no use to the pattern tables
	skip := int64(header.PRGROMSize) * 16384
	if (header.Flags6 & 0x04) != 0 {
		skip += 512
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("truncated PRG ROM: %v", err)
	}

	chrSize := int(header.CHRROMSize) * CHRSize
	if chrSize > 0 {
		cart.chr = make([]uint8, chrSize)
		if _, err := io.ReadFull(r, cart.chr); err != nil {
			return nil, fmt.Errorf("truncated CHR ROM: %v", err)
		}
	} else {
		cart.chr = make([]uint8, CHRSize)
		cart.hasCHRRAM = true
	}

	cart.mapper = createMapper(cart.mapperID, cart)

	return cart, nil
}

// ReadCHR reads from CHR ROM/RAM
func (c *Cartridge) ReadCHR(address uint16) uint8 {
	return c.mapper.ReadCHR(address)
}

// WriteCHR writes to CHR RAM
func (c *Cartridge) WriteCHR(address uint16, value uint8) {
	c.mapper.WriteCHR(address, value)
}

// GetMirrorMode returns the mirroring mode from the header
func (c *Cartridge) GetMirrorMode() memory.MirrorMode {
	return c.mirror
}

// HasCHRRAM reports whether the pattern tables are writable
func (c *Cartridge) HasCHRRAM() bool {
	return c.hasCHRRAM
}

// createMapper creates the appropriate mapper for the given ID
func createMapper(id uint8, cart *Cartridge) Mapper {
	switch id {
	case 0:
		return NewMapper000(cart)
	default:
		// Only the first CHR bank is ever shown, which every mapper maps at power on
		return NewMapper000(cart)
	}
}
