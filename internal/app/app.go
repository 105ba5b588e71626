// Package app implements the map viewer application: the world, the pattern
// tables, the PPU and the game loop wired to a presentation backend.
package app

import (
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"nesmap/internal/cartridge"
	"nesmap/internal/debug"
	"nesmap/internal/graphics"
	"nesmap/internal/input"
	"nesmap/internal/memory"
	"nesmap/internal/ppu"
	"nesmap/internal/world"
)

// Application owns every component. The game runs on its own goroutine and
// is the only user of the PPU; the window goroutine only sees finished frames
// and writes pad state.
type Application struct {
	config *Config

	// Core components
	world     *world.World
	worldName string
	cartridge *cartridge.Cartridge
	memory    *memory.PPUMemory
	ppu       *ppu.PPU
	pad       *input.Controller
	game      *Game
	states    *StateManager
	script    Script

	// Graphics backend
	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor
	pacer           *FramePacer

	// Video memory dumps at snapshot frames
	banks      *debug.BankDumper
	dumpFrames map[uint64]bool

	// Control flags
	headless bool
	paced    bool
	running  atomic.Bool
	paused   atomic.Bool

	// Newest finished frame for the window goroutine
	frames   chan graphics.FrameBuffer
	requests chan stateRequest
	gameDone chan struct{}

	frameCount atomic.Uint64
	startTime  time.Time
}

// stateRequest asks the game goroutine to save or load between frames
type stateRequest struct {
	load bool
	slot int
}

// captioned is implemented by windows that label their output
type captioned interface {
	SetCaption(caption string)
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("Application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a windowed application
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates an application from a config file, which is
// written with defaults when missing. An empty path uses the defaults.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	config := NewConfig()
	if configPath != "" {
		if err := config.LoadFromFile(configPath); err != nil {
			return nil, &ApplicationError{Component: "config", Operation: "load", Err: err}
		}
	}
	return NewApplicationWithConfig(config, headless)
}

// NewApplicationWithConfig creates an application from a prepared config
func NewApplicationWithConfig(config *Config, headless bool) (*Application, error) {
	if err := config.validate(); err != nil {
		return nil, &ApplicationError{Component: "config", Operation: "validate", Err: err}
	}

	app := &Application{
		config:    config,
		headless:  headless || config.Video.Backend == string(graphics.BackendHeadless),
		pad:       input.New(),
		frames:    make(chan graphics.FrameBuffer, 1),
		requests:  make(chan stateRequest, 4),
		startTime: time.Now(),
	}

	if err := app.initializeComponents(); err != nil {
		return nil, err
	}
	if err := app.initializeGraphicsBackend(); err != nil {
		return nil, &ApplicationError{Component: "graphics", Operation: "initialize", Err: err}
	}
	return app, nil
}

func (app *Application) initializeComponents() error {
	var err error

	if app.config.World.Path == "" {
		app.world = world.Generate(app.config.World.Seed)
		app.worldName = fmt.Sprintf("generated-%d", app.config.World.Seed)
	} else {
		app.world, err = world.Load(app.config.World.Path)
		if err != nil {
			return &ApplicationError{Component: "world", Operation: "load", Err: err}
		}
		app.worldName = app.config.World.Path
	}

	if app.config.Display.CHRPath == "" {
		app.cartridge = cartridge.NewDebugCHR()
	} else {
		app.cartridge, err = cartridge.LoadFromFile(app.config.Display.CHRPath)
		if err != nil {
			return &ApplicationError{Component: "cartridge", Operation: "load", Err: err}
		}
	}

	mirroring := app.config.MirrorMode()
	if app.cartridge.GetMirrorMode() != mirroring {
		app.logf("Cartridge asks for %v mirroring, using %v", app.cartridge.GetMirrorMode(), mirroring)
	}
	app.memory = memory.NewPPUMemory(app.cartridge, mirroring)

	app.ppu = ppu.New()
	app.ppu.SetMemory(app.memory)
	app.ppu.SetDebug(app.config.Debug.PPUDebugging)
	app.ppu.SetFrameCompleteCallback(app.onFrame)

	app.pad.EnableDebug(app.config.Debug.InputDebugging)
	app.game = NewGame(app.ppu, app.world, app.pad, app.config)
	app.states = NewStateManager(app.config.Paths.SaveStates)
	app.pacer = NewFramePacer(TargetFrameTime)

	app.script, err = ParseScript(app.config.Headless.Script)
	if err != nil {
		return &ApplicationError{Component: "script", Operation: "parse", Err: err}
	}

	if app.config.Debug.PPUDebugging {
		app.banks = debug.NewBankDumper(filepath.Join(app.config.Paths.Snapshots, "banks"))
		app.banks.SetMaxDumps(len(app.config.Headless.SnapshotFrames))
		if err := app.banks.Enable(); err != nil {
			return &ApplicationError{Component: "debug", Operation: "enable bank dumps", Err: err}
		}
		app.dumpFrames = make(map[uint64]bool, len(app.config.Headless.SnapshotFrames))
		for _, frame := range app.config.Headless.SnapshotFrames {
			app.dumpFrames[uint64(frame)] = true
		}
	}
	return nil
}

// initializeGraphicsBackend creates the backend and its window. Ebitengine
// failures fall back to headless snapshots.
func (app *Application) initializeGraphicsBackend() error {
	var backendType graphics.BackendType
	if app.headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "terminal":
			backendType = graphics.BackendTerminal
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %v", err)
	}

	width, height := app.config.GetWindowResolution()
	graphicsConfig := graphics.Config{
		WindowTitle:    "nesmap",
		WindowWidth:    width,
		WindowHeight:   height,
		Fullscreen:     app.config.Window.Fullscreen,
		VSync:          app.config.Video.VSync,
		Filter:         app.config.Video.Filter,
		SnapshotDir:    app.config.Paths.Snapshots,
		SnapshotScale:  app.config.Headless.SnapshotScale,
		SnapshotFrames: app.config.Headless.SnapshotFrames,
		Headless:       app.headless,
		Debug:          app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendEbitengine {
			return fmt.Errorf("failed to initialize graphics backend: %v", err)
		}
		log.Printf("[APP] Ebitengine backend failed (%v), falling back to headless mode", err)
		backendType = graphics.BackendHeadless
		app.graphicsBackend = graphics.NewHeadlessBackend()
		graphicsConfig.Headless = true
		if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
			return fmt.Errorf("failed to initialize fallback headless backend: %v", err)
		}
		app.headless = true
	}

	app.window, err = app.graphicsBackend.CreateWindow(graphicsConfig.WindowTitle, width, height)
	if err != nil {
		return fmt.Errorf("failed to create window: %v", err)
	}

	app.paced = backendType != graphics.BackendHeadless
	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)
	return nil
}

// Run runs until the window closes, Stop is called or, without a window, the
// configured number of frames has been shown
func (app *Application) Run() error {
	if !app.running.CompareAndSwap(false, true) {
		return fmt.Errorf("application already running")
	}
	defer app.running.Store(false)

	runner, ok := app.window.(graphics.Runner)
	if !ok || app.graphicsBackend.IsHeadless() {
		return app.runDirect()
	}

	app.gameDone = make(chan struct{})
	go app.gameLoop()

	runner.SetUpdateFunc(app.update)
	err := runner.Run()

	// The game goroutine finishes its current transition unpaced
	app.running.Store(false)
	<-app.gameDone

	if err != nil {
		return &ApplicationError{Component: "graphics", Operation: "run", Err: err}
	}
	return nil
}

// gameLoop is the game goroutine of a windowed run
func (app *Application) gameLoop() {
	defer close(app.gameDone)

	app.game.Start()
	for app.running.Load() {
		app.handleRequests()
		if app.paused.Load() {
			time.Sleep(TargetFrameTime)
			continue
		}
		app.game.Step()
	}
	app.logf("Game loop stopped after %d frames", app.ppu.GetFrameCount())
}

// runDirect runs the game on the calling goroutine, presenting every frame.
// Scripted input stands in for the pad.
func (app *Application) runDirect() error {
	limit := uint64(app.config.Headless.Frames)

	app.game.Start()
	for step := 0; app.running.Load(); step++ {
		if limit > 0 && app.ppu.GetFrameCount() >= limit {
			break
		}
		app.handleRequests()
		app.setPad(app.script.ButtonsAt(step))
		app.game.Step()
	}

	app.logf("%s run finished after %d frames (%s)", app.graphicsBackend.GetName(), app.ppu.GetFrameCount(), app.game.Status())
	return nil
}

// onFrame runs inside every WaitNMI on the game goroutine
func (app *Application) onFrame() {
	frame := app.ppu.GetFrameBuffer()
	if !app.videoProcessor.Identity() {
		app.videoProcessor.ProcessFrame(&frame)
	}
	app.frameCount.Add(1)

	if n := app.ppu.GetFrameCount(); app.dumpFrames[n] {
		if path, err := app.banks.DumpBanks(app.memory, n); err != nil {
			log.Printf("[APP] Bank dump failed: %v", err)
		} else if path != "" {
			app.logf("Wrote %s", path)
		}
	}

	if app.paced && app.running.Load() {
		app.pacer.Wait()
	}

	if app.gameDone == nil {
		if c, ok := app.window.(captioned); ok {
			c.SetCaption(app.game.Status())
		}
		if err := app.window.RenderFrame(frame); err != nil {
			log.Printf("[APP] Failed to present frame %d: %v", app.ppu.GetFrameCount(), err)
		}
		return
	}

	// Only the newest frame is kept
	select {
	case <-app.frames:
	default:
	}
	select {
	case app.frames <- frame:
	default:
	}
}

// update is called by the window once per host frame
func (app *Application) update() error {
	for _, event := range app.window.PollEvents() {
		app.handleEvent(event)
	}

	if !app.running.Load() {
		return app.window.Cleanup()
	}

	select {
	case frame := <-app.frames:
		if err := app.window.RenderFrame(frame); err != nil {
			return &ApplicationError{Component: "graphics", Operation: "render", Err: err}
		}
	default:
	}

	if app.config.Debug.ShowFPS && app.frameCount.Load()%60 == 0 {
		app.window.SetTitle(fmt.Sprintf("nesmap - %.1f FPS", app.pacer.FPS()))
	}
	return nil
}

func (app *Application) handleEvent(event graphics.InputEvent) {
	switch event.Type {
	case graphics.InputEventTypeQuit:
		app.Stop()
	case graphics.InputEventTypeButton:
		button, ok := padButtons[event.Button]
		if !ok {
			return
		}
		app.pad.SetButton(button, event.Pressed)
		if button == input.Start && event.Pressed {
			app.TogglePause()
		}
	case graphics.InputEventTypeKey:
		if !event.Pressed {
			return
		}
		switch event.Key {
		case graphics.KeyF1:
			app.requestState(stateRequest{slot: 0})
		case graphics.KeyF12:
			app.requestState(stateRequest{load: true, slot: 0})
		}
	}
}

var padButtons = map[graphics.Button]input.Button{
	graphics.ButtonA:      input.A,
	graphics.ButtonB:      input.B,
	graphics.ButtonSelect: input.Select,
	graphics.ButtonStart:  input.Start,
	graphics.ButtonUp:     input.Up,
	graphics.ButtonDown:   input.Down,
	graphics.ButtonLeft:   input.Left,
	graphics.ButtonRight:  input.Right,
}

func (app *Application) setPad(buttons input.Button) {
	for bit := input.ButtonA; bit != 0; bit <<= 1 {
		app.pad.SetButton(bit, buttons&bit != 0)
	}
}

func (app *Application) requestState(r stateRequest) {
	select {
	case app.requests <- r:
	default:
		log.Printf("[APP] Dropped state request for slot %d", r.slot)
	}
}

// handleRequests serves save and load requests between game frames
func (app *Application) handleRequests() {
	for {
		select {
		case r := <-app.requests:
			var err error
			if r.load {
				err = app.LoadState(r.slot)
			} else {
				err = app.SaveState(r.slot)
			}
			if err != nil {
				log.Printf("[APP] %v", err)
			}
		default:
			return
		}
	}
}

// SaveState saves the game's progress to a slot. It must be called from the
// game goroutine or while the game is not running.
func (app *Application) SaveState(slot int) error {
	if err := app.states.SaveState(app.game.Progress(), slot, app.worldName, app.world.Bytes()); err != nil {
		return &ApplicationError{Component: "states", Operation: "save", Err: err}
	}
	app.logf("Saved slot %d", slot)
	return nil
}

// LoadState restores progress from a slot, with the same restriction as
// SaveState
func (app *Application) LoadState(slot int) error {
	progress, err := app.states.LoadState(slot, app.worldName, app.world.Bytes())
	if err != nil {
		return &ApplicationError{Component: "states", Operation: "load", Err: err}
	}
	app.game.Restore(progress)
	app.logf("Loaded slot %d", slot)
	return nil
}

// Stop stops the application after the current frame
func (app *Application) Stop() {
	app.running.Store(false)
}

// Pause pauses the game
func (app *Application) Pause() {
	app.paused.Store(true)
}

// Resume resumes the game
func (app *Application) Resume() {
	app.paused.Store(false)
}

// TogglePause toggles pause state
func (app *Application) TogglePause() {
	app.paused.Store(!app.paused.Load())
}

// IsRunning returns whether the application is running
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// IsPaused returns whether the game is paused
func (app *Application) IsPaused() bool {
	return app.paused.Load()
}

// GetFrameCount returns the number of frames produced
func (app *Application) GetFrameCount() uint64 {
	return app.frameCount.Load()
}

// GetFPS returns the measured frame rate of paced runs
func (app *Application) GetFPS() float64 {
	return app.pacer.FPS()
}

// GetUptime returns the time since the application was created
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetConfig returns the configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// Game returns the game, for inspection once a run has finished
func (app *Application) Game() *Game {
	return app.game
}

// Window returns the presentation window
func (app *Application) Window() graphics.Window {
	return app.window
}

// Cleanup releases all resources and shuts down the application
func (app *Application) Cleanup() error {
	app.logf("Cleaning up application resources...")

	var lastErr error
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] Window cleanup error: %v", err)
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] Graphics backend cleanup error: %v", err)
		}
	}

	app.logf("Application cleanup complete")
	return lastErr
}

func (app *Application) logf(format string, args ...interface{}) {
	if app.config.Debug.EnableLogging {
		log.Printf("[APP] "+format, args...)
	}
}
