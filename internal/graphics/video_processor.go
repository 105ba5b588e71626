package graphics

// VideoProcessor applies brightness, contrast and saturation to frames
// before they are presented
type VideoProcessor struct {
	brightness float32
	contrast   float32
	saturation float32
}

// NewVideoProcessor creates a new video processor
func NewVideoProcessor(brightness, contrast, saturation float32) *VideoProcessor {
	return &VideoProcessor{
		brightness: brightness,
		contrast:   contrast,
		saturation: saturation,
	}
}

// Identity reports whether processing leaves frames unchanged
func (vp *VideoProcessor) Identity() bool {
	return vp.brightness == 1 && vp.contrast == 1 && vp.saturation == 1
}

// ProcessFrame adjusts a frame buffer in place
func (vp *VideoProcessor) ProcessFrame(frameBuffer *FrameBuffer) {
	if vp.Identity() {
		return
	}

	for i, pixel := range frameBuffer {
		r := float32((pixel >> 16) & 0xFF)
		g := float32((pixel >> 8) & 0xFF)
		b := float32(pixel & 0xFF)

		// Saturation mixes each channel with the pixel's luma
		luma := 0.299*r + 0.587*g + 0.114*b
		r = luma + (r-luma)*vp.saturation
		g = luma + (g-luma)*vp.saturation
		b = luma + (b-luma)*vp.saturation

		r = vp.adjust(r)
		g = vp.adjust(g)
		b = vp.adjust(b)

		frameBuffer[i] = uint32(r+0.5)<<16 | uint32(g+0.5)<<8 | uint32(b+0.5)
	}
}

// adjust applies brightness then contrast around mid grey and clamps
func (vp *VideoProcessor) adjust(v float32) float32 {
	v *= vp.brightness
	v = (v-127.5)*vp.contrast + 127.5
	return clamp(v, 0, 255)
}

// clamp limits a value to a range
func clamp(value, min, max float32) float32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// SetBrightness updates the brightness value
func (vp *VideoProcessor) SetBrightness(brightness float32) {
	vp.brightness = brightness
}

// SetContrast updates the contrast value
func (vp *VideoProcessor) SetContrast(contrast float32) {
	vp.contrast = contrast
}

// SetSaturation updates the saturation value
func (vp *VideoProcessor) SetSaturation(saturation float32) {
	vp.saturation = saturation
}
