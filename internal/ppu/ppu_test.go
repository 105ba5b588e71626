package ppu

import (
	"testing"

	"nesmap/internal/memory"
	"nesmap/internal/update"
)

// MockCartridge implements a flat CHR RAM for testing
type MockCartridge struct {
	chrData [0x2000]uint8
}

// ReadCHR reads from CHR memory (pattern tables)
func (m *MockCartridge) ReadCHR(address uint16) uint8 {
	return m.chrData[address&0x1FFF]
}

// WriteCHR writes to CHR memory (pattern tables)
func (m *MockCartridge) WriteCHR(address uint16, value uint8) {
	m.chrData[address&0x1FFF] = value
}

// SetSolidTile fills both planes of a tile so every pixel has the given color index
func (m *MockCartridge) SetSolidTile(table uint16, tile uint8, colorIndex uint8) {
	base := table + uint16(tile)*16
	for row := uint16(0); row < 8; row++ {
		m.chrData[base+row] = 0
		m.chrData[base+row+8] = 0
		if colorIndex&1 != 0 {
			m.chrData[base+row] = 0xFF
		}
		if colorIndex&2 != 0 {
			m.chrData[base+row+8] = 0xFF
		}
	}
}

func newTestPPU(mirroring memory.MirrorMode) (*PPU, *memory.PPUMemory, *MockCartridge) {
	cart := &MockCartridge{}
	mem := memory.NewPPUMemory(cart, mirroring)
	p := New()
	p.SetMemory(mem)
	return p, mem, cart
}

// fillNametable writes tile into every tile slot of logical nametable n
func fillNametable(mem *memory.PPUMemory, n int, tile uint8) {
	base := uint16(0x2000 + n*0x400)
	for i := uint16(0); i < 960; i++ {
		mem.Write(base+i, tile)
	}
}

func TestPPUScrollWrite(t *testing.T) {
	ppu := New()

	ppu.WriteRegister(0x2005, 0x7D)

	if ppu.t&0x001F != uint16(0x7D>>3) {
		t.Errorf("Expected coarse X %04X, got %04X", 0x7D>>3, ppu.t&0x001F)
	}
	if ppu.x != 0x7D&0x07 {
		t.Errorf("Expected fine X %d, got %d", 0x7D&0x07, ppu.x)
	}
	if !ppu.w {
		t.Error("Expected write latch to be set after first PPUSCROLL write")
	}

	ppu.WriteRegister(0x2005, 0xB6)

	if ppu.t&0x03E0 != uint16(0xB6&0xF8)<<2 {
		t.Errorf("Expected coarse Y bits %04X, got %04X", uint16(0xB6&0xF8)<<2, ppu.t&0x03E0)
	}
	if ppu.t&0x7000 != uint16(0xB6&0x07)<<12 {
		t.Errorf("Expected fine Y bits %04X, got %04X", uint16(0xB6&0x07)<<12, ppu.t&0x7000)
	}
	if ppu.w {
		t.Error("Expected write latch to be cleared after second PPUSCROLL write")
	}
}

func TestPPUAddressWrite(t *testing.T) {
	ppu := New()

	ppu.WriteRegister(0x2006, 0x23)
	if !ppu.w {
		t.Error("Expected write latch to be set after first PPUADDR write")
	}
	ppu.WriteRegister(0x2006, 0x45)

	if ppu.v != 0x2345 {
		t.Errorf("Expected v register 2345, got %04X", ppu.v)
	}
	if ppu.w {
		t.Error("Expected write latch to be cleared after second PPUADDR write")
	}
}

func TestPPUDataIncrementMode(t *testing.T) {
	ppu, mem, _ := newTestPPU(memory.MirrorVertical)

	ppu.WriteRegister(0x2006, 0x20)
	ppu.WriteRegister(0x2006, 0x00)
	ppu.WriteRegister(0x2007, 0x11)
	ppu.WriteRegister(0x2007, 0x22)
	if mem.Read(0x2001) != 0x22 {
		t.Errorf("increment by 1: Read(2001) = %02X, want 22", mem.Read(0x2001))
	}

	ppu.WriteRegister(0x2000, 0x04)
	ppu.WriteRegister(0x2006, 0x20)
	ppu.WriteRegister(0x2006, 0x00)
	ppu.WriteRegister(0x2007, 0x33)
	ppu.WriteRegister(0x2007, 0x44)
	if mem.Read(0x2020) != 0x44 {
		t.Errorf("increment by 32: Read(2020) = %02X, want 44", mem.Read(0x2020))
	}
}

func TestVRAMUpdateAppliedAtVBlank(t *testing.T) {
	ppu, mem, _ := newTestPPU(memory.MirrorVertical)

	var buf update.Buffer
	copy(buf.Begin(0x2400, 4), []byte{1, 2, 3, 4})
	copy(buf.BeginVertical(0x2010, 3), []byte{7, 8, 9})
	buf.Terminate()

	ppu.SetVRAMUpdate(buf.Bytes())
	// The list is copied; the scratch buffer may be reused right away
	buf.Reset()

	if mem.Read(0x2400) != 0 {
		t.Fatal("update applied before vblank")
	}
	if !ppu.hasPendingUpdate() {
		t.Fatal("expected a pending update")
	}

	ppu.WaitNMI()

	for i, want := range []uint8{1, 2, 3, 4} {
		if got := mem.Read(0x2400 + uint16(i)); got != want {
			t.Errorf("Read(%04X) = %d, want %d", 0x2400+i, got, want)
		}
	}
	for i, want := range []uint8{7, 8, 9} {
		if got := mem.Read(0x2010 + uint16(i*32)); got != want {
			t.Errorf("vertical Read(%04X) = %d, want %d", 0x2010+i*32, got, want)
		}
	}
	if ppu.hasPendingUpdate() {
		t.Error("update list still pending after vblank")
	}
	if ppu.ppuCtrl&0x04 != 0 {
		t.Error("vertical increment left enabled after update")
	}
}

func TestVRAMUpdateDoubleSubmitPanics(t *testing.T) {
	ppu, _, _ := newTestPPU(memory.MirrorVertical)
	list := []byte{0x20, 0x00, 0x01, update.EOF}

	ppu.SetVRAMUpdate(list)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on second submission")
		}
	}()
	ppu.SetVRAMUpdate(list)
}

func TestVRAMUpdateWithdraw(t *testing.T) {
	ppu, mem, _ := newTestPPU(memory.MirrorVertical)

	ppu.SetVRAMUpdate([]byte{0x20, 0x00, 0x01, update.EOF})
	ppu.SetVRAMUpdate(nil)
	ppu.WaitNMI()

	if mem.Read(0x2000) != 0 {
		t.Error("withdrawn update was applied")
	}
}

func TestScrollLatchedAtVBlank(t *testing.T) {
	ppu, _, _ := newTestPPU(memory.MirrorVertical)

	ppu.Scroll(300, 192)
	if got := ppu.frameScroll(); got != (planePos{}) {
		t.Fatalf("scroll latched early: %+v", got)
	}

	ppu.WaitNMI()
	if got := ppu.frameScroll(); got != (planePos{x: 300, y: 192}) {
		t.Errorf("frameScroll() = %+v, want {300 192}", got)
	}

	ppu.Scroll(0, 250)
	ppu.WaitNMI()
	if got := ppu.frameScroll(); got != (planePos{x: 0, y: 250}) {
		t.Errorf("frameScroll() = %+v, want {0 250}", got)
	}
}

// setupSplitScene puts an empty nametable A above a solid nametable B and
// parks sprite 0 above line 48
func setupSplitScene(t *testing.T) (*PPU, *memory.PPUMemory, uint32) {
	t.Helper()
	ppu, mem, cart := newTestPPU(memory.MirrorVertical)

	cart.SetSolidTile(0x0000, 1, 1)
	fillNametable(mem, 1, 1)
	mem.Write(0x3F00, 0x0F)
	mem.Write(0x3F01, 0x16)

	ppu.WriteRegister(0x2001, 0x08)
	ppu.WriteSprite(0, 249, 40, 0, 0)
	ppu.Scroll(0, 192)
	ppu.WaitNMI()

	return ppu, mem, NESColorToRGB(0x16)
}

func TestSplitShowsSecondBankBelowSprite0(t *testing.T) {
	ppu, _, solid := setupSplitScene(t)
	backdrop := NESColorToRGB(0x0F)

	ppu.Split(256)
	ppu.WaitNMI()
	frame := ppu.GetFrameBuffer()

	if got := frame[47*ScreenWidth+10]; got != backdrop {
		t.Errorf("line 47 = %06X, want backdrop %06X", got, backdrop)
	}
	if got := frame[48*ScreenWidth+10]; got != solid {
		t.Errorf("line 48 = %06X, want %06X", got, solid)
	}
	if ppu.ReadRegister(0x2002)&0x40 == 0 {
		t.Error("sprite 0 hit flag not set by split")
	}

	// Splits only last one frame
	ppu.WaitNMI()
	frame = ppu.GetFrameBuffer()
	if got := frame[100*ScreenWidth+10]; got != backdrop {
		t.Errorf("split persisted into the next frame: %06X", got)
	}
}

func TestSplitHalfway(t *testing.T) {
	ppu, _, solid := setupSplitScene(t)
	backdrop := NESColorToRGB(0x0F)

	ppu.Split(128)
	ppu.WaitNMI()
	frame := ppu.GetFrameBuffer()

	if got := frame[100*ScreenWidth+127]; got != backdrop {
		t.Errorf("left half = %06X, want backdrop", got)
	}
	if got := frame[100*ScreenWidth+128]; got != solid {
		t.Errorf("right half = %06X, want %06X", got, solid)
	}
}

func TestSplitIgnoredWhenSprite0Hidden(t *testing.T) {
	ppu, _, _ := setupSplitScene(t)
	backdrop := NESColorToRGB(0x0F)

	ppu.HideSprite(0)
	ppu.Split(256)
	ppu.WaitNMI()

	frame := ppu.GetFrameBuffer()
	if got := frame[100*ScreenWidth+10]; got != backdrop {
		t.Errorf("split applied without sprite 0: %06X", got)
	}
}

func TestSplitYIsAbsolute(t *testing.T) {
	ppu, mem, cart := newTestPPU(memory.MirrorVertical)

	cart.SetSolidTile(0x0000, 1, 1)
	cart.SetSolidTile(0x0000, 2, 2)
	// Bank B: tile row 6 is color 2, everything else color 1
	fillNametable(mem, 1, 1)
	for col := uint16(0); col < 32; col++ {
		mem.Write(0x2400+6*32+col, 2)
	}
	mem.Write(0x3F01, 0x16)
	mem.Write(0x3F02, 0x2A)

	ppu.WriteRegister(0x2001, 0x08)
	ppu.WriteSprite(0, 249, 40, 0, 0)
	ppu.Scroll(0, 192)
	ppu.WaitNMI()

	ppu.SplitY(256, 240+48)
	ppu.WaitNMI()
	frame := ppu.GetFrameBuffer()

	if got, want := frame[48*ScreenWidth], NESColorToRGB(0x2A); got != want {
		t.Errorf("line 48 = %06X, want row 6 color %06X", got, want)
	}
	if got, want := frame[56*ScreenWidth], NESColorToRGB(0x16); got != want {
		t.Errorf("line 56 = %06X, want %06X", got, want)
	}
}

func TestPaletteAppliedAtVBlank(t *testing.T) {
	ppu, mem, _ := newTestPPU(memory.MirrorVertical)

	var palette [memory.PaletteSize]uint8
	for i := range palette {
		palette[i] = uint8(i)
	}
	ppu.SetPalette(palette)
	if mem.Read(0x3F01) == 1 {
		t.Fatal("palette applied before vblank")
	}

	ppu.WaitNMI()
	if got := mem.Read(0x3F1F); got != 0x1F {
		t.Errorf("Read(3F1F) = %02X, want 1F", got)
	}
}

func TestFrameCompleteCallback(t *testing.T) {
	ppu, _, _ := newTestPPU(memory.MirrorVertical)

	calls := 0
	ppu.SetFrameCompleteCallback(func() {
		calls++
		if !ppu.inVBlank() {
			t.Error("callback ran outside vblank")
		}
	})

	for i := 0; i < 3; i++ {
		ppu.WaitNMI()
	}
	if calls != 3 {
		t.Errorf("callback ran %d times, want 3", calls)
	}
	if ppu.GetFrameCount() != 3 {
		t.Errorf("GetFrameCount() = %d, want 3", ppu.GetFrameCount())
	}
}

func TestSpriteRendering(t *testing.T) {
	ppu, mem, cart := newTestPPU(memory.MirrorVertical)

	cart.SetSolidTile(0x0000, 5, 3)
	mem.Write(0x3F13, 0x30)
	ppu.WriteRegister(0x2001, 0x10)
	ppu.WriteSprite(3, 10, 20, 5, 0x00)
	ppu.WaitNMI()

	frame := ppu.GetFrameBuffer()
	white := NESColorToRGB(0x30)
	if got := frame[21*ScreenWidth+10]; got != white {
		t.Errorf("sprite pixel = %06X, want %06X", got, white)
	}
	if got := frame[20*ScreenWidth+10]; got == white {
		t.Error("sprite drawn on its OAM line instead of the line below")
	}
	if got := frame[21*ScreenWidth+18]; got == white {
		t.Error("sprite wider than 8 pixels")
	}
}

func TestSpriteOverflowFlag(t *testing.T) {
	ppu, _, _ := newTestPPU(memory.MirrorVertical)
	ppu.WriteRegister(0x2001, 0x10)

	for i := 0; i < 9; i++ {
		ppu.WriteSprite(i, uint8(i*10), 100, 0, 0)
	}
	ppu.WaitNMI()

	if ppu.ReadRegister(0x2002)&0x20 == 0 {
		t.Error("expected sprite overflow with nine sprites on one line")
	}
}

func TestWriteSpriteLayout(t *testing.T) {
	ppu := New()
	ppu.WriteSprite(2, 0x11, 0x22, 0x33, 0x44)

	if got := ppu.Sprite(2); got != [4]uint8{0x22, 0x33, 0x44, 0x11} {
		t.Errorf("Sprite(2) = % X, want Y tile attr X order", got)
	}
}
