package memory

import (
	"testing"
)

// MockPatterns is a flat CHR RAM
type MockPatterns struct {
	chr [0x2000]uint8
}

func (m *MockPatterns) ReadCHR(address uint16) uint8 {
	return m.chr[address&0x1FFF]
}

func (m *MockPatterns) WriteCHR(address uint16, value uint8) {
	m.chr[address&0x1FFF] = value
}

func TestPPUMemory_PatternTables(t *testing.T) {
	patterns := &MockPatterns{}
	mem := NewPPUMemory(patterns, MirrorVertical)

	mem.Write(0x0010, 0x3C)
	mem.Write(0x1FFF, 0x81)

	if got := patterns.chr[0x0010]; got != 0x3C {
		t.Errorf("CHR[0x0010] = %02X, want 3C", got)
	}
	if got := mem.Read(0x1FFF); got != 0x81 {
		t.Errorf("Read(1FFF) = %02X, want 81", got)
	}
}

func TestPPUMemoryMirroring_Nametables(t *testing.T) {
	mirrorModes := []struct {
		name string
		mode MirrorMode
		// pairs[i] lists logical nametables sharing storage with nametable i
		same [4][]int
	}{
		{"horizontal", MirrorHorizontal, [4][]int{{1}, {0}, {3}, {2}}},
		{"vertical", MirrorVertical, [4][]int{{2}, {3}, {0}, {1}}},
		{"single0", MirrorSingleScreen0, [4][]int{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}}},
		{"single1", MirrorSingleScreen1, [4][]int{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}}},
		{"four-screen", MirrorFourScreen, [4][]int{{}, {}, {}, {}}},
	}

	for _, mm := range mirrorModes {
		t.Run(mm.name, func(t *testing.T) {
			for src := 0; src < 4; src++ {
				mem := NewPPUMemory(&MockPatterns{}, mm.mode)
				addr := uint16(NametableBase + src*NametableSize + 0x123)
				mem.Write(addr, 0xA5)

				for nt := 0; nt < 4; nt++ {
					got := mem.Read(uint16(NametableBase + nt*NametableSize + 0x123))
					want := uint8(0)
					if nt == src || contains(mm.same[src], nt) {
						want = 0xA5
					}
					if got != want {
						t.Errorf("write to NT%d, read NT%d = %02X, want %02X", src, nt, got, want)
					}
				}
			}
		})
	}
}

func TestPPUMemoryMirroring_NametableToMirror(t *testing.T) {
	mem := NewPPUMemory(&MockPatterns{}, MirrorVertical)

	mem.Write(0x2005, 0x11)
	if got := mem.Read(0x3005); got != 0x11 {
		t.Errorf("Read(3005) = %02X, want 11", got)
	}

	mem.Write(0x3EFF, 0x22)
	if got := mem.Read(0x2EFF); got != 0x22 {
		t.Errorf("Read(2EFF) = %02X, want 22", got)
	}
}

func TestPPUMemoryMirroring_Palette(t *testing.T) {
	mem := NewPPUMemory(&MockPatterns{}, MirrorVertical)

	mem.Write(0x3F01, 0x2A)
	for _, addr := range []uint16{0x3F21, 0x3F41, 0x3FE1} {
		if got := mem.Read(addr); got != 0x2A {
			t.Errorf("Read(%04X) = %02X, want 2A", addr, got)
		}
	}
}

func TestPPUMemoryMirroring_PaletteBackgroundColors(t *testing.T) {
	mem := NewPPUMemory(&MockPatterns{}, MirrorVertical)

	for _, pair := range [][2]uint16{{0x3F10, 0x3F00}, {0x3F14, 0x3F04}, {0x3F18, 0x3F08}, {0x3F1C, 0x3F0C}} {
		mem.Write(pair[0], 0x30)
		if got := mem.Read(pair[1]); got != 0x30 {
			t.Errorf("write %04X, Read(%04X) = %02X, want 30", pair[0], pair[1], got)
		}
	}

	// Sprite color entries are not shared
	mem.Write(0x3F11, 0x16)
	if got := mem.Read(0x3F01); got == 0x16 {
		t.Errorf("Read(3F01) picked up sprite entry 3F11")
	}
}

func TestPPUMemory_DefaultPalette(t *testing.T) {
	mem := NewPPUMemory(&MockPatterns{}, MirrorVertical)
	palette := mem.Palette()
	for i := 0; i < PaletteSize; i += 4 {
		if palette[i] != 0x0F {
			t.Errorf("palette[%d] = %02X, want 0F", i, palette[i])
		}
	}
}

func TestPPUMemory_BankDigest(t *testing.T) {
	mem := NewPPUMemory(&MockPatterns{}, MirrorFourScreen)

	empty := mem.BankDigest(1)
	if mem.BankDigest(0) != empty {
		t.Fatal("empty banks should hash equal")
	}

	mem.Write(0x27C0, 0xE4)
	if mem.BankDigest(1) == empty {
		t.Error("attribute write did not change bank digest")
	}
	if mem.BankDigest(0) != empty {
		t.Error("write to bank 1 changed bank 0 digest")
	}

	bank := mem.Nametable(1)
	if bank[AttributeBase] != 0xE4 {
		t.Errorf("Nametable(1)[3C0] = %02X, want E4", bank[AttributeBase])
	}
}

func TestParseMirrorMode(t *testing.T) {
	for m := MirrorHorizontal; m <= MirrorFourScreen; m++ {
		got, err := ParseMirrorMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMirrorMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMirrorMode("diagonal"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
