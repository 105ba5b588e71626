package graphics

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"nesmap/internal/ppu"
)

// captionHeight is the strip added below a snapshot for its caption
const captionHeight = 20

// HeadlessBackend implements the Backend interface for windowless runs
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow counts frames and writes the configured ones as PNG snapshots
type HeadlessWindow struct {
	title      string
	width      int
	height     int
	running    bool
	frameCount int
	outputPath string
	scale      int
	snapshots  map[int]bool
	caption    string
	written    []string
	debug      bool
}

// NewHeadlessBackend creates a new headless graphics backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow creates a headless "window" that writes snapshots
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	scale := b.config.SnapshotScale
	if scale < 1 {
		scale = 1
	}
	outputPath := b.config.SnapshotDir
	if outputPath == "" {
		outputPath = "snapshots"
	}

	snapshots := make(map[int]bool, len(b.config.SnapshotFrames))
	for _, frame := range b.config.SnapshotFrames {
		snapshots[frame] = true
	}

	return &HeadlessWindow{
		title:      title,
		width:      width,
		height:     height,
		running:    true,
		outputPath: outputPath,
		scale:      scale,
		snapshots:  snapshots,
		debug:      b.config.Debug,
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true (this is a headless backend)
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

// SetTitle sets the window title (for logging purposes)
func (w *HeadlessWindow) SetTitle(title string) {
	w.title = title
}

// GetSize returns window dimensions
func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *HeadlessWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns no events; headless runs are scripted
func (w *HeadlessWindow) PollEvents() []InputEvent {
	return nil
}

// SetCaption sets the text drawn under the following snapshots
func (w *HeadlessWindow) SetCaption(caption string) {
	w.caption = caption
}

// RenderFrame counts the frame and saves it when it is a snapshot frame
func (w *HeadlessWindow) RenderFrame(frameBuffer FrameBuffer) error {
	w.frameCount++

	if !w.snapshots[w.frameCount] {
		return nil
	}

	filename := filepath.Join(w.outputPath, fmt.Sprintf("frame_%05d.png", w.frameCount))
	if err := w.saveSnapshot(&frameBuffer, filename); err != nil {
		return err
	}
	if w.debug {
		log.Printf("[HEADLESS] Wrote %s (digest %016x)", filename, FrameDigest(&frameBuffer))
	}
	return nil
}

// Snapshot renders a frame the way it is written to disk
func (w *HeadlessWindow) Snapshot(frameBuffer *FrameBuffer) *image.RGBA {
	frame := NewFrameImage()
	CopyToRGBA(frameBuffer, frame)

	width, height := ppu.ScreenWidth*w.scale, ppu.ScreenHeight*w.scale
	out := image.NewRGBA(image.Rect(0, 0, width, height+captionHeight))
	draw.NearestNeighbor.Scale(out, image.Rect(0, 0, width, height), frame, frame.Bounds(), draw.Src, nil)
	draw.Draw(out, image.Rect(0, height, width, height+captionHeight), image.Black, image.Point{}, draw.Src)

	caption := fmt.Sprintf("#%d %s", w.frameCount, w.caption)
	(&font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}),
		Face: inconsolata.Regular8x16,
		Dot:  fixed.P(4, height+captionHeight-5),
	}).DrawString(caption)

	return out
}

func (w *HeadlessWindow) saveSnapshot(frameBuffer *FrameBuffer, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %v", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %v", filename, err)
	}
	defer file.Close()

	if err := png.Encode(file, w.Snapshot(frameBuffer)); err != nil {
		return fmt.Errorf("failed to encode %s: %v", filename, err)
	}
	w.written = append(w.written, filename)
	return nil
}

// Cleanup releases window resources
func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// GetFrameCount returns the number of frames presented
func (w *HeadlessWindow) GetFrameCount() int {
	return w.frameCount
}

// Written returns the snapshot files written so far
func (w *HeadlessWindow) Written() []string {
	return w.written
}
