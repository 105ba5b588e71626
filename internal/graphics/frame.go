package graphics

import (
	"encoding/binary"
	"image"

	"github.com/cespare/xxhash"

	"nesmap/internal/ppu"
)

// NewFrameImage allocates an image the size of one frame
func NewFrameImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight))
}

// CopyToRGBA converts a frame buffer into img, which must be frame sized
func CopyToRGBA(frameBuffer *FrameBuffer, img *image.RGBA) {
	for y := 0; y < ppu.ScreenHeight; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < ppu.ScreenWidth; x++ {
			pixel := frameBuffer[y*ppu.ScreenWidth+x]
			row[x*4] = uint8(pixel >> 16)
			row[x*4+1] = uint8(pixel >> 8)
			row[x*4+2] = uint8(pixel)
			row[x*4+3] = 0xFF
		}
	}
}

// FrameDigest hashes a frame buffer so identical frames can be recognised in logs
func FrameDigest(frameBuffer *FrameBuffer) uint64 {
	var buf [ppu.ScreenWidth * ppu.ScreenHeight * 4]byte
	for i, pixel := range frameBuffer {
		binary.LittleEndian.PutUint32(buf[i*4:], pixel)
	}
	return xxhash.Sum64(buf[:])
}
