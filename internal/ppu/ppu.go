// Package ppu implements a frame-stepped NES Picture Processing Unit.
//
// The game side owns the PPU and advances it one frame at a time with
// WaitNMI. Video memory is only written from inside WaitNMI, by replaying the
// pending update list through the register file the way the NMI handler of a
// real cartridge does.
package ppu

import (
	"fmt"
	"log"

	"nesmap/internal/memory"
	"nesmap/internal/update"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 240

	// OAM entries whose Y is at or beyond this line are not drawn
	SpriteOffscreen = 0xEF
)

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	// PPU Registers (CPU-visible)
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR

	// Internal PPU State
	v uint16 // Current VRAM address (15 bits)
	t uint16 // Temporary VRAM address (15 bits) - address latch
	x uint8  // Fine X scroll (3 bits)
	w bool   // Write latch (toggles between first/second write)

	memory     *memory.PPUMemory
	readBuffer uint8

	oam [256]uint8

	frameBuffer [ScreenWidth * ScreenHeight]uint32
	frameCount  uint64

	// Frame state owned by the game goroutine between vblanks
	pending        []byte
	hasPending     bool
	nextScroll     planePos
	split          splitState
	pendingPalette *[memory.PaletteSize]uint8

	frameCompleteCallback func()

	backgroundEnabled bool
	spritesEnabled    bool

	debug bool
}

// planePos is a position on the 512x480 plane formed by the four nametables
type planePos struct {
	x, y int
}

type splitState struct {
	armed    bool
	absolute bool
	x, y     int
}

// New creates a new PPU instance
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// Reset resets the PPU to initial state
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false
	p.readBuffer = 0

	p.frameCount = 0
	p.pending = p.pending[:0]
	p.hasPending = false
	p.nextScroll = planePos{}
	p.split = splitState{}
	p.pendingPalette = nil

	p.backgroundEnabled = false
	p.spritesEnabled = false

	// Everything starts hidden
	for i := range p.oam {
		p.oam[i] = 0xFF
	}

	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0x000000
	}
}

// SetMemory sets the PPU memory interface
func (p *PPU) SetMemory(memory *memory.PPUMemory) {
	p.memory = memory
}

// SetFrameCompleteCallback sets the frame complete callback
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// SetDebug enables per-frame diagnostics
func (p *PPU) SetDebug(enabled bool) {
	p.debug = enabled
}

// ReadRegister reads from a PPU register (CPU $2000-$2007)
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus
		p.ppuStatus &= 0x3F
		p.w = false
		return status
	case 0x2004: // OAMDATA
		return p.oam[p.oamAddr]
	case 0x2007: // PPUDATA
		return p.readPPUData()
	default:
		// Write-only registers return open bus
		return p.ppuStatus & 0x1F
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007)
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10) // Nametable select
	case 0x2001: // PPUMASK
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writePPUScroll(value)
	case 0x2006: // PPUADDR
		p.writePPUAddr(value)
	case 0x2007: // PPUDATA
		p.writePPUData(value)
	}
}

// WriteOAM writes to OAM at the specified address
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// WriteSprite fills one 4-byte OAM entry
func (p *PPU) WriteSprite(index int, x, y, tile, attributes uint8) {
	if index < 0 || index >= 64 {
		panic(fmt.Sprintf("ppu: sprite index %d out of range", index))
	}
	base := index * 4
	p.oam[base] = y
	p.oam[base+1] = tile
	p.oam[base+2] = attributes
	p.oam[base+3] = x
}

// HideSprite moves one OAM entry below the visible area
func (p *PPU) HideSprite(index int) {
	p.WriteSprite(index, 0xFF, 0xFF, 0, 0)
}

// Sprite returns the raw OAM entry as Y, tile, attributes, X
func (p *PPU) Sprite(index int) [4]uint8 {
	base := index * 4
	return [4]uint8{p.oam[base], p.oam[base+1], p.oam[base+2], p.oam[base+3]}
}

// SetVRAMUpdate queues an update list to be applied at the next vblank. A nil
// list withdraws the pending one. Only one list may be pending at a time.
func (p *PPU) SetVRAMUpdate(list []byte) {
	if list == nil {
		p.pending = p.pending[:0]
		p.hasPending = false
		return
	}
	if p.hasPending {
		panic("ppu: VRAM update queued while another is pending")
	}
	p.pending = append(p.pending[:0], list...)
	p.hasPending = true
}

// hasPendingUpdate reports whether an update list is waiting for vblank
func (p *PPU) hasPendingUpdate() bool {
	return p.hasPending
}

// Scroll sets the scroll position latched at the next vblank. x covers
// 0-511 and y 0-479 across the four nametables.
func (p *PPU) Scroll(x, y int) {
	p.nextScroll = planePos{x: wrap(x, 512), y: wrap(y, 480)}
}

// Split changes the horizontal scroll below sprite 0 for the frame in
// progress. The vertical position keeps counting from the frame scroll.
func (p *PPU) Split(x int) {
	p.split = splitState{armed: true, x: wrap(x, 512)}
}

// SplitY sets both scroll axes below sprite 0 for the frame in progress
func (p *PPU) SplitY(x, y int) {
	p.split = splitState{armed: true, absolute: true, x: wrap(x, 512), y: wrap(y, 480)}
}

// SetPalette queues a full palette to be written at the next vblank
func (p *PPU) SetPalette(palette [memory.PaletteSize]uint8) {
	p.pendingPalette = &palette
}

// WaitNMI finishes the current frame and runs the vertical blank.
//
// The frame is composited with the scroll latched at the previous vblank and
// whatever split was armed since. Then, inside vblank, the pending update list
// is written to video memory, the next scroll is latched and any pending
// palette is loaded.
func (p *PPU) WaitNMI() {
	p.renderFrame()

	p.ppuStatus |= 0x80
	p.applyUpdate()
	p.latchScroll()
	p.applyPalette()
	p.split = splitState{}

	p.frameCount++
	if p.frameCompleteCallback != nil {
		p.frameCompleteCallback()
	}
	p.ppuStatus &^= 0x80
}

func (p *PPU) applyUpdate() {
	if !p.hasPending {
		return
	}
	ctrl := p.ppuCtrl
	err := update.Decode(p.pending, func(e update.Entry) {
		if e.Vertical {
			p.WriteRegister(0x2000, ctrl|0x04)
		} else {
			p.WriteRegister(0x2000, ctrl&^0x04)
		}
		p.WriteRegister(0x2006, uint8(e.Address>>8))
		p.WriteRegister(0x2006, uint8(e.Address))
		for _, b := range e.Data {
			p.WriteRegister(0x2007, b)
		}
	})
	if err != nil {
		panic(fmt.Sprintf("ppu: bad VRAM update list: %v", err))
	}
	p.WriteRegister(0x2000, ctrl)

	if p.debug {
		log.Printf("[PPU] Frame %d: applied %d byte update list", p.frameCount, len(p.pending))
	}
	p.pending = p.pending[:0]
	p.hasPending = false
}

// latchScroll loads t and fine x from the next scroll position through the
// same register writes the NMI handler uses
func (p *PPU) latchScroll() {
	s := p.nextScroll
	nametable := uint8(s.x>>8)&1 | uint8(s.y/240)<<1
	p.w = false
	p.WriteRegister(0x2000, p.ppuCtrl&^0x03|nametable)
	p.WriteRegister(0x2005, uint8(s.x))
	p.WriteRegister(0x2005, uint8(s.y%240))
}

func (p *PPU) applyPalette() {
	if p.pendingPalette == nil || p.memory == nil {
		return
	}
	for i, c := range p.pendingPalette {
		p.memory.Write(memory.PaletteBase+uint16(i), c)
	}
	p.pendingPalette = nil
}

// frameScroll decodes the scroll latched into t and fine x
func (p *PPU) frameScroll() planePos {
	nametable := int(p.t>>10) & 3
	return planePos{
		x: (nametable&1)<<8 | int(p.t&0x001F)<<3 | int(p.x),
		y: (nametable>>1)*240 + int((p.t>>5)&0x001F)<<3 + int((p.t>>12)&0x0007),
	}
}

// updateRenderingFlags updates internal rendering state based on PPUMASK
func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
}

// writePPUScroll handles writes to PPUSCROLL ($2005)
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		// First write: X scroll
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		// Second write: Y scroll
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUAddr handles writes to PPUADDR ($2006)
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles reads from PPUDATA ($2007)
func (p *PPU) readPPUData() uint8 {
	var data uint8

	if p.memory != nil {
		if p.v >= 0x3F00 {
			// Palette data is not buffered
			data = p.memory.Read(p.v)
			p.readBuffer = p.memory.Read(p.v & 0x2FFF)
		} else {
			data = p.readBuffer
			p.readBuffer = p.memory.Read(p.v)
		}
	}

	p.incrementAddress()
	return data
}

// writePPUData handles writes to PPUDATA ($2007)
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.incrementAddress()
}

func (p *PPU) incrementAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current frame buffer
func (p *PPU) GetFrameBuffer() [ScreenWidth * ScreenHeight]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the number of completed frames
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// inVBlank returns true while the frame-complete callback runs
func (p *PPU) inVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
