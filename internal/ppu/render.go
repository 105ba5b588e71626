package ppu

import "log"

// pixel is one background or sprite sample before priority resolution
type pixel struct {
	colorIndex  uint8
	rgbColor    uint32
	spriteIndex int8
	priority    bool
	transparent bool
}

var transparentPixel = pixel{spriteIndex: -1, transparent: true}

// renderFrame composites the whole visible frame from video memory and OAM
func (p *PPU) renderFrame() {
	if p.memory == nil {
		return
	}

	// Sprite 0 hit and overflow describe the frame being drawn
	p.ppuStatus &^= 0x60

	backdrop := NESColorToRGB(p.memory.Read(0x3F00))
	if !p.backgroundEnabled && !p.spritesEnabled {
		p.ClearFrameBuffer(backdrop)
		return
	}

	base := p.frameScroll()
	splitLine := p.splitLine()

	var visible [8]int
	for line := 0; line < ScreenHeight; line++ {
		originX, originY := base.x, base.y+line
		if splitLine >= 0 && line >= splitLine {
			originX = p.split.x
			if p.split.absolute {
				originY = p.split.y + line - splitLine
			}
		}

		sprites := p.evaluateSprites(line, visible[:0])

		row := p.frameBuffer[line*ScreenWidth : (line+1)*ScreenWidth]
		for col := range row {
			background := transparentPixel
			if p.backgroundEnabled {
				background = p.renderBackgroundPixel(originX+col, originY)
			}
			sprite := transparentPixel
			if p.spritesEnabled && len(sprites) > 0 {
				sprite = p.renderSpritePixel(sprites, col, line)
			}
			row[col] = p.compositeFinalPixel(background, sprite, backdrop)
		}
	}
}

// splitLine returns the first scanline using the split scroll, or -1. The
// split takes effect on the line below sprite 0, so it is dropped when
// sprite 0 is hidden.
func (p *PPU) splitLine() int {
	if !p.split.armed {
		return -1
	}
	y := int(p.oam[0])
	if y >= SpriteOffscreen {
		if p.debug {
			log.Printf("[PPU] Frame %d: split armed with sprite 0 hidden, ignoring", p.frameCount)
		}
		return -1
	}
	p.ppuStatus |= 0x40
	return y + 8
}

// renderBackgroundPixel samples the nametable plane at (planeX, planeY)
func (p *PPU) renderBackgroundPixel(planeX, planeY int) pixel {
	planeX = wrap(planeX, 512)
	planeY = wrap(planeY, 480)

	nametable := planeX>>8 | (planeY/240)<<1
	worldX := planeX & 0xFF
	worldY := planeY % 240

	tileX := worldX >> 3
	tileY := worldY >> 3
	pixelInTileX := worldX & 7
	pixelInTileY := worldY & 7

	// Fetch nametable byte - determines which tile to use
	nametableAddr := 0x2000 | (uint16(nametable) << 10) | uint16(tileY*32+tileX)
	tileID := p.memory.Read(nametableAddr)

	// Fetch attribute table byte - determines palette selection
	attributeAddr := 0x23C0 | (uint16(nametable) << 10) | uint16((tileY>>2)*8+(tileX>>2))
	attributeByte := p.memory.Read(attributeAddr)

	// blockID: 0=top-left, 1=top-right, 2=bottom-left, 3=bottom-right
	blockID := ((tileX & 3) >> 1) + ((tileY&3)>>1)*2
	paletteIndex := (attributeByte >> (blockID << 1)) & 0x03

	var patternTableBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}

	patternAddr := patternTableBase + uint16(tileID)*16 + uint16(pixelInTileY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelInTileX
	colorIndex := ((patternHigh>>bitShift)&1)<<1 | (patternLow>>bitShift)&1
	if colorIndex == 0 {
		return transparentPixel
	}

	nesColorIndex := p.memory.Read(0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex))
	return pixel{
		colorIndex:  colorIndex,
		rgbColor:    NESColorToRGB(nesColorIndex),
		spriteIndex: -1,
	}
}

// evaluateSprites collects up to eight OAM entries covering line, in OAM order
func (p *PPU) evaluateSprites(line int, out []int) []int {
	height := p.spriteHeight()
	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		if y >= SpriteOffscreen {
			continue
		}
		// Sprites are delayed by one scanline
		if line < y+1 || line >= y+1+height {
			continue
		}
		if len(out) == 8 {
			p.ppuStatus |= 0x20
			break
		}
		out = append(out, i)
	}
	return out
}

func (p *PPU) spriteHeight() int {
	if p.ppuCtrl&0x20 != 0 {
		return 16
	}
	return 8
}

// renderSpritePixel returns the first opaque sprite pixel at (pixelX, pixelY).
// Lower OAM index wins.
func (p *PPU) renderSpritePixel(sprites []int, pixelX, pixelY int) pixel {
	height := p.spriteHeight()

	for _, index := range sprites {
		base := index * 4
		sY := int(p.oam[base])
		tileIndex := p.oam[base+1]
		attributes := p.oam[base+2]
		sX := int(p.oam[base+3])

		if pixelX < sX || pixelX >= sX+8 {
			continue
		}

		spritePixelX := pixelX - sX
		spritePixelY := pixelY - (sY + 1)

		if attributes&0x40 != 0 { // Horizontal flip
			spritePixelX = 7 - spritePixelX
		}
		if attributes&0x80 != 0 { // Vertical flip
			spritePixelY = height - 1 - spritePixelY
		}

		colorIndex := p.getSpritePixelColor(tileIndex, spritePixelX, spritePixelY)
		if colorIndex == 0 {
			continue
		}

		paletteIndex := attributes & 0x03
		nesColorIndex := p.memory.Read(0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex))
		return pixel{
			colorIndex:  colorIndex,
			rgbColor:    NESColorToRGB(nesColorIndex),
			spriteIndex: int8(index),
			priority:    attributes&0x20 != 0,
		}
	}

	return transparentPixel
}

// getSpritePixelColor gets the 2-bit color index for a sprite pixel
func (p *PPU) getSpritePixelColor(tileIndex uint8, pixelX, pixelY int) uint8 {
	var patternTableBase uint16

	if p.ppuCtrl&0x20 == 0 {
		// 8x8 sprites use PPUCTRL bit 3
		if p.ppuCtrl&0x08 != 0 {
			patternTableBase = 0x1000
		}
	} else {
		// 8x16 sprites take the table from bit 0 of the tile index
		if tileIndex&0x01 != 0 {
			patternTableBase = 0x1000
		}
		tileIndex &= 0xFE
		if pixelY >= 8 {
			tileIndex++
			pixelY -= 8
		}
	}

	patternAddr := patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelX
	return ((patternHigh>>bitShift)&1)<<1 | (patternLow>>bitShift)&1
}

// compositeFinalPixel combines background and sprite pixels according to priority
func (p *PPU) compositeFinalPixel(background, sprite pixel, backdrop uint32) uint32 {
	if sprite.transparent {
		if background.transparent {
			return backdrop
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}

	// Both opaque: the priority bit puts the sprite behind the background
	if sprite.priority && p.backgroundEnabled {
		return background.rgbColor
	}
	return sprite.rgbColor
}

// ClearFrameBuffer clears the frame buffer to a specific color
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}
