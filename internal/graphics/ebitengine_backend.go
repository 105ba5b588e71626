//go:build !headless
// +build !headless

package graphics

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nesmap/internal/ppu"
)

// EbitengineBackend implements the Backend interface using Ebitengine
type EbitengineBackend struct {
	initialized bool
	config      Config
	game        *EbitengineGame
}

// EbitengineWindow implements the Window interface for Ebitengine
type EbitengineWindow struct {
	backend    *EbitengineBackend
	title      string
	width      int
	height     int
	game       *EbitengineGame
	running    bool
	events     []InputEvent
	updateFunc func() error
}

// EbitengineGame implements ebiten.Game for the viewer
type EbitengineGame struct {
	window       *EbitengineWindow
	frameImage   *ebiten.Image
	windowWidth  int
	windowHeight int
	drawCount    int
	debug        bool

	// Reusable conversion buffer
	imageBuffer *image.RGBA
}

// keyMappings lists the keys the viewer reacts to
var keyMappings = map[ebiten.Key]Key{
	ebiten.KeyEscape:     KeyEscape,
	ebiten.KeyEnter:      KeyEnter,
	ebiten.KeySpace:      KeySpace,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyW:          KeyW,
	ebiten.KeyA:          KeyA,
	ebiten.KeyS:          KeyS,
	ebiten.KeyD:          KeyD,
	ebiten.KeyJ:          KeyJ,
	ebiten.KeyK:          KeyK,
	ebiten.KeyF1:         KeyF1,
	ebiten.KeyF12:        KeyF12,
}

// NewEbitengineBackend creates a new Ebitengine graphics backend
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize initializes the Ebitengine backend
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("Ebitengine backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow creates an Ebitengine window
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	if b.config.Headless {
		return nil, fmt.Errorf("cannot create window in headless mode")
	}

	game := &EbitengineGame{
		windowWidth:  width,
		windowHeight: height,
		frameImage:   ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight),
		imageBuffer:  NewFrameImage(),
		debug:        b.config.Debug,
	}

	window := &EbitengineWindow{
		backend: b,
		title:   title,
		width:   width,
		height:  height,
		game:    game,
		running: true,
	}

	game.window = window
	b.game = game

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)

	if b.config.Fullscreen {
		ebiten.SetFullscreen(true)
	}

	ebiten.SetScreenFilterEnabled(b.config.Filter == "linear")

	return window, nil
}

// Cleanup releases all Ebitengine resources
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true if running in headless mode
func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

// GetName returns the backend name
func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

// SetTitle sets the window title
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns window dimensions
func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns the events gathered since the last call
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame uploads a frame buffer for the next Draw
func (w *EbitengineWindow) RenderFrame(frameBuffer FrameBuffer) error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}

	CopyToRGBA(&frameBuffer, w.game.imageBuffer)
	w.game.frameImage.WritePixels(w.game.imageBuffer.Pix)
	return nil
}

// Cleanup releases window resources
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// Run starts the Ebitengine game loop
func (w *EbitengineWindow) Run() error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}
	return ebiten.RunGame(w.game)
}

// SetUpdateFunc sets the function called from every Ebitengine update
func (w *EbitengineWindow) SetUpdateFunc(updateFunc func() error) {
	w.updateFunc = updateFunc
}

// Update implements ebiten.Game.Update
func (g *EbitengineGame) Update() error {
	if g.window == nil {
		return nil
	}

	g.processInput()

	if !g.window.running {
		return ebiten.Termination
	}

	if g.window.updateFunc != nil {
		if err := g.window.updateFunc(); err != nil {
			log.Printf("[Ebitengine] Update error: %v", err)
		}
	}

	return nil
}

// Draw implements ebiten.Game.Draw
func (g *EbitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 0, G: 0, B: 0, A: 255})

	// Fit the window while keeping the aspect ratio
	scaleX := float64(g.windowWidth) / float64(ppu.ScreenWidth)
	scaleY := float64(g.windowHeight) / float64(ppu.ScreenHeight)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	offsetX := (float64(g.windowWidth) - float64(ppu.ScreenWidth)*scale) / 2
	offsetY := (float64(g.windowHeight) - float64(ppu.ScreenHeight)*scale) / 2

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	screen.DrawImage(g.frameImage, op)

	g.drawCount++
	if g.debug && g.drawCount%1800 == 0 {
		log.Printf("[Ebitengine] Drawing frame %d scaled %.2fx at offset (%.1f,%.1f)",
			g.drawCount, scale, offsetX, offsetY)
	}
}

// Layout implements ebiten.Game.Layout
func (g *EbitengineGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	g.windowWidth = outsideWidth
	g.windowHeight = outsideHeight
	return outsideWidth, outsideHeight
}

// processInput gathers key changes and turns them into pad button events
func (g *EbitengineGame) processInput() {
	var events []InputEvent

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		events = append(events, InputEvent{
			Type:    InputEventTypeQuit,
			Pressed: true,
		})
	}

	for ebitenKey, key := range keyMappings {
		if inpututil.IsKeyJustPressed(ebitenKey) {
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
		} else if inpututil.IsKeyJustReleased(ebitenKey) {
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: false})
		}
	}

	g.window.events = append(g.window.events, KeyToButtonEvents(events)...)
}
