// Package graphics provides an abstraction layer for different presentation backends
package graphics

import (
	"fmt"

	"nesmap/internal/ppu"
)

// FrameBuffer is one composited PPU frame, 0xRRGGBB per pixel
type FrameBuffer = [ppu.ScreenWidth * ppu.ScreenHeight]uint32

// Backend represents a presentation backend (Ebitengine window, PNG snapshots, terminal)
type Backend interface {
	// Initialize initializes the graphics backend
	Initialize(config Config) error

	// CreateWindow creates a window for rendering
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if running without a window
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window represents a rendering target
type Window interface {
	// SetTitle sets the window title
	SetTitle(title string)

	// GetSize returns window dimensions
	GetSize() (width, height int)

	// ShouldClose returns true if window should close
	ShouldClose() bool

	// PollEvents returns input events since the last poll
	PollEvents() []InputEvent

	// RenderFrame presents a frame buffer
	RenderFrame(frameBuffer FrameBuffer) error

	// Cleanup releases window resources
	Cleanup() error
}

// Runner is implemented by windows that own the main loop
type Runner interface {
	// SetUpdateFunc sets the function called once per host frame
	SetUpdateFunc(update func() error)

	// Run blocks until the window is closed
	Run() error
}

// Config contains configuration for graphics backends
type Config struct {
	// Window configuration
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool

	// Rendering configuration
	Filter string // "nearest", "linear"

	// Snapshot configuration for the headless backend
	SnapshotDir    string
	SnapshotScale  int
	SnapshotFrames []int

	Headless bool
	Debug    bool
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type    InputEventType
	Key     Key
	Button  Button
	Pressed bool
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents keyboard keys
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeyF1
	KeyF12
)

// Button represents controller buttons
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// buttonMappings maps keyboard keys onto pad buttons
var buttonMappings = map[Key]Button{
	KeyUp:    ButtonUp,
	KeyDown:  ButtonDown,
	KeyLeft:  ButtonLeft,
	KeyRight: ButtonRight,
	KeyW:     ButtonUp,
	KeyS:     ButtonDown,
	KeyA:     ButtonLeft,
	KeyD:     ButtonRight,
	KeyJ:     ButtonA,
	KeyK:     ButtonB,
	KeyEnter: ButtonStart,
	KeySpace: ButtonSelect,
}

// KeyToButtonEvents turns key events into button events. Keys without a
// button mapping pass through unchanged.
func KeyToButtonEvents(events []InputEvent) []InputEvent {
	out := make([]InputEvent, 0, len(events))
	for _, event := range events {
		if button, exists := buttonMappings[event.Key]; exists && event.Type == InputEventTypeKey {
			out = append(out, InputEvent{
				Type:    InputEventTypeButton,
				Button:  button,
				Pressed: event.Pressed,
			})
			continue
		}
		out = append(out, event)
	}
	return out
}

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return nil, fmt.Errorf("unknown graphics backend %q", backendType)
	}
}
