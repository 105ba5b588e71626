package cartridge

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nesmap/internal/memory"
	"nesmap/internal/tilemap"
)

// Test data constants for iNES header construction
const (
	validINESMagic = "NES\x1A"
	invalidMagic   = "ROM\x1A"
)

// createValidINESHeader creates a valid 16-byte iNES header for testing
func createValidINESHeader(prgSize, chrSize, flags6, flags7 uint8) []byte {
	header := make([]byte, 16)
	copy(header[0:4], validINESMagic)
	header[4] = prgSize
	header[5] = chrSize
	header[6] = flags6
	header[7] = flags7
	return header
}

// createMinimalValidROM creates a ROM whose CHR bytes follow a known pattern
func createMinimalValidROM(prgSize, chrSize, flags6 uint8) []byte {
	rom := createValidINESHeader(prgSize, chrSize, flags6, 0)
	if flags6&0x04 != 0 {
		rom = append(rom, make([]byte, 512)...)
	}

	prgData := make([]byte, int(prgSize)*16384)
	for i := range prgData {
		prgData[i] = 0xEA
	}
	rom = append(rom, prgData...)

	chrData := make([]byte, int(chrSize)*CHRSize)
	for i := range chrData {
		chrData[i] = uint8((i + 128) % 256)
	}
	return append(rom, chrData...)
}

func TestLoadFromReader_CHRROM(t *testing.T) {
	tests := []struct {
		name    string
		prgSize uint8
		flags6  uint8
	}{
		{"16KB PRG", 1, 0x00},
		{"32KB PRG", 2, 0x00},
		{"with trainer", 1, 0x04},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := LoadFromReader(bytes.NewReader(createMinimalValidROM(tt.prgSize, 1, tt.flags6)))
			if err != nil {
				t.Fatalf("Expected successful load, got error: %v", err)
			}
			for _, addr := range []uint16{0x0000, 0x0123, 0x1FFF} {
				want := uint8((int(addr) + 128) % 256)
				if got := cart.ReadCHR(addr); got != want {
					t.Errorf("ReadCHR($%04X) = $%02X, want $%02X", addr, got, want)
				}
			}
			if cart.HasCHRRAM() {
				t.Error("CHR ROM reported as RAM")
			}
		})
	}
}

func TestLoadFromReader_CHRROMIsReadOnly(t *testing.T) {
	cart, err := LoadFromReader(bytes.NewReader(createMinimalValidROM(1, 1, 0)))
	if err != nil {
		t.Fatal(err)
	}
	before := cart.ReadCHR(0x0010)
	cart.WriteCHR(0x0010, before+1)
	if cart.ReadCHR(0x0010) != before {
		t.Error("write to CHR ROM was not ignored")
	}
}

func TestLoadFromReader_CHRRAM(t *testing.T) {
	cart, err := LoadFromReader(bytes.NewReader(createMinimalValidROM(1, 0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if !cart.HasCHRRAM() {
		t.Fatal("expected CHR RAM when the header has no CHR ROM")
	}
	cart.WriteCHR(0x1ABC, 0x5A)
	if got := cart.ReadCHR(0x1ABC); got != 0x5A {
		t.Errorf("CHR RAM read back $%02X, want $5A", got)
	}
}

func TestLoadFromReader_Errors(t *testing.T) {
	badMagic := createMinimalValidROM(1, 1, 0)
	copy(badMagic, invalidMagic)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"invalid magic", badMagic, "invalid iNES file"},
		{"zero PRG", createValidINESHeader(0, 1, 0, 0), "PRG ROM size cannot be zero"},
		{"truncated PRG", createValidINESHeader(1, 1, 0, 0), "truncated PRG ROM"},
		{"truncated CHR", createMinimalValidROM(1, 1, 0)[:16+16384+100], "truncated CHR ROM"},
		{"short header", []byte("NES"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := LoadFromReader(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("Expected error, got success")
			}
			if cart != nil {
				t.Error("Expected nil cartridge on error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromReader_MirroringModes(t *testing.T) {
	tests := []struct {
		name           string
		flags6         uint8
		expectedMirror memory.MirrorMode
	}{
		{"Horizontal mirroring", 0x00, memory.MirrorHorizontal},
		{"Vertical mirroring", 0x01, memory.MirrorVertical},
		{"Four-screen mirroring", 0x08, memory.MirrorFourScreen},
		{"Four-screen overrides vertical", 0x09, memory.MirrorFourScreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := LoadFromReader(bytes.NewReader(createMinimalValidROM(1, 1, tt.flags6)))
			if err != nil {
				t.Fatalf("Expected success, got error: %v", err)
			}
			if cart.GetMirrorMode() != tt.expectedMirror {
				t.Errorf("Expected mirror mode %v, got %v", tt.expectedMirror, cart.GetMirrorMode())
			}
		})
	}
}

func TestLoadFromReader_MapperIdentification(t *testing.T) {
	header := createValidINESHeader(1, 1, 0x40, 0x10)
	rom := append(header, make([]byte, 16384+CHRSize)...)

	cart, err := LoadFromReader(bytes.NewReader(rom))
	if err != nil {
		t.Fatal(err)
	}
	if cart.mapperID != 0x14 {
		t.Errorf("Expected mapper ID 20, got %d", cart.mapperID)
	}
	if _, ok := cart.mapper.(*Mapper000); !ok {
		t.Errorf("Expected NROM pattern mapping for mapper %d", cart.mapperID)
	}
}

func TestLoadFromFile_Compressed(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(createMinimalValidROM(1, 1, 0x01))
	zw.Close()

	path := filepath.Join(t.TempDir(), "game.nes.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	cart, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cart.ReadCHR(0) != 128 {
		t.Errorf("ReadCHR(0) = %d, want 128", cart.ReadCHR(0))
	}
	if cart.GetMirrorMode() != memory.MirrorVertical {
		t.Errorf("mirroring = %v, want vertical", cart.GetMirrorMode())
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.nes")); err == nil {
		t.Error("expected error for missing file")
	}
}

// tileBytes returns the 16 pattern bytes of a tile
func tileBytes(c *Cartridge, table, tile int) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = c.ReadCHR(uint16(table + tile*16 + i))
	}
	return out
}

func TestDebugCHRBlocksAreDistinct(t *testing.T) {
	cart := NewDebugCHR()

	blocks := []uint8{0, 1, 2, 3, 8, 9, 10, HeartBlock, HUDBlock}
	seen := make(map[string]uint8)
	for _, id := range blocks {
		var key []byte
		base := int(tilemap.BlockTile(id))
		for _, tile := range []int{base, base + 1, base + 16, base + 17} {
			key = append(key, tileBytes(cart, 0, tile)...)
		}
		if other, ok := seen[string(key)]; ok {
			t.Errorf("block %d looks the same as block %d", id, other)
		}
		seen[string(key)] = id
	}
}

func TestDebugCHRSprite0IsOpaque(t *testing.T) {
	cart := NewDebugCHR()
	data := tileBytes(cart, spriteTable, Sprite0Tile)
	for row := 0; row < 8; row++ {
		if data[row]|data[row+8] != 0xFF {
			t.Fatalf("sprite 0 row %d has transparent pixels", row)
		}
	}
}

func TestDebugCHRSpritesAreDrawn(t *testing.T) {
	cart := NewDebugCHR()
	for _, group := range []int{PlayerTile, 0x00, 0x0E, 0x20} {
		empty := true
		for _, b := range tileBytes(cart, spriteTable, group) {
			if b != 0 {
				empty = false
			}
		}
		if empty {
			t.Errorf("sprite tile $%02X is blank", group)
		}
	}
}

func TestDebugCHRIsWritable(t *testing.T) {
	cart := NewDebugCHR()
	cart.WriteCHR(0x0000, 0xAA)
	if cart.ReadCHR(0x0000) != 0xAA {
		t.Error("debug CHR is not writable")
	}
}
