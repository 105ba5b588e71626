package graphics

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"nesmap/internal/ppu"
)

// shades orders characters from dark to bright
const shades = " .:-=+*#%@"

// keyHoldFrames is how long a typed key counts as held. Terminals report no
// key releases, only the auto-repeat of a held key.
const keyHoldFrames = 12

// keyboard is the terminal key source
type keyboard interface {
	Keys() []byte
	Close() error
}

// TerminalBackend implements the Backend interface with text output. With a
// controlling terminal it also reads the keyboard and runs the main loop.
type TerminalBackend struct {
	initialized bool
	config      Config
	out         io.Writer
	openInput   func() (keyboard, error)
	input       keyboard
}

// TerminalWindow draws every Nth frame as text
type TerminalWindow struct {
	title      string
	width      int
	height     int
	running    bool
	out        io.Writer
	every      int
	frames     int
	input      keyboard
	held       map[Key]int
	updateFunc func() error
}

// NewTerminalBackend creates a new terminal graphics backend writing to stdout
func NewTerminalBackend() Backend {
	return &TerminalBackend{out: os.Stdout, openInput: openKeyboard}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}

	b.config = config
	if !config.Headless && b.openInput != nil {
		input, err := b.openInput()
		if err != nil {
			log.Printf("[TERMINAL] No keyboard input: %v", err)
		} else {
			b.input = input
		}
	}
	b.initialized = true

	return nil
}

// CreateWindow creates a terminal "window"
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	every := 30
	if b.input != nil {
		every = 4
	}
	return &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		out:     b.out,
		every:   every,
		input:   b.input,
		held:    make(map[Key]int),
	}, nil
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	if b.input != nil {
		err := b.input.Close()
		b.input = nil
		return err
	}
	return nil
}

// IsHeadless reports whether the terminal runs without keyboard input
func (b *TerminalBackend) IsHeadless() bool {
	return b.input == nil
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// SetTitle sets the window title
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
}

// GetSize returns window dimensions
func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents turns typed keys into press events and releases keys that have
// not been repeated for keyHoldFrames polls
func (w *TerminalWindow) PollEvents() []InputEvent {
	if w.input == nil {
		return nil
	}

	var events []InputEvent
	for key, left := range w.held {
		if left <= 1 {
			delete(w.held, key)
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: false})
			continue
		}
		w.held[key] = left - 1
	}

	for _, key := range decodeKeys(w.input.Keys()) {
		if key == KeyEscape {
			events = append(events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
			continue
		}
		if _, down := w.held[key]; !down {
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
		}
		w.held[key] = keyHoldFrames
	}
	return KeyToButtonEvents(events)
}

// decodeKeys maps terminal input bytes, including the escape sequences of
// arrow and function keys, onto keys. 'q' and a lone escape quit.
func decodeKeys(data []byte) []Key {
	var keys []Key
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != 0x1B {
			if key, ok := terminalKeys[c]; ok {
				keys = append(keys, key)
			}
			continue
		}

		rest := data[i+1:]
		switch {
		case len(rest) >= 2 && (rest[0] == '[' || rest[0] == 'O') && rest[1] >= 'A' && rest[1] <= 'D':
			keys = append(keys, [...]Key{KeyUp, KeyDown, KeyRight, KeyLeft}[rest[1]-'A'])
			i += 2
		case len(rest) >= 2 && rest[0] == 'O' && rest[1] == 'P':
			keys = append(keys, KeyF1)
			i += 2
		case len(rest) >= 4 && string(rest[:4]) == "[24~":
			keys = append(keys, KeyF12)
			i += 4
		case len(rest) == 0:
			keys = append(keys, KeyEscape)
		}
	}
	return keys
}

var terminalKeys = map[byte]Key{
	'w':  KeyW,
	'a':  KeyA,
	's':  KeyS,
	'd':  KeyD,
	'j':  KeyJ,
	'k':  KeyK,
	'\r': KeyEnter,
	'\n': KeyEnter,
	' ':  KeySpace,
	'q':  KeyEscape,
}

// RenderFrame draws the frame as text, one character per 4x8 pixel cell
func (w *TerminalWindow) RenderFrame(frameBuffer FrameBuffer) error {
	w.frames++
	if w.frames%w.every != 1 && w.every > 1 {
		return nil
	}

	out := bufio.NewWriter(w.out)
	fmt.Fprintf(out, "\033[2J\033[H%s (frame %d)\n", w.title, w.frames)
	for y := 0; y < ppu.ScreenHeight; y += 8 {
		for x := 0; x < ppu.ScreenWidth; x += 4 {
			out.WriteByte(shade(frameBuffer[y*ppu.ScreenWidth+x]))
		}
		out.WriteByte('\n')
	}
	return out.Flush()
}

// shade maps a pixel's luma onto a character
func shade(pixel uint32) byte {
	r, g, b := (pixel>>16)&0xFF, (pixel>>8)&0xFF, pixel&0xFF
	luma := (299*r + 587*g + 114*b) / 1000
	return shades[int(luma)*(len(shades)-1)/255]
}

// SetUpdateFunc sets the function called once per host frame
func (w *TerminalWindow) SetUpdateFunc(update func() error) {
	w.updateFunc = update
}

// Run calls the update function at the display rate until the window closes
func (w *TerminalWindow) Run() error {
	if w.input == nil {
		return fmt.Errorf("terminal has no keyboard input")
	}

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for range ticker.C {
		if w.updateFunc != nil {
			if err := w.updateFunc(); err != nil {
				return err
			}
		}
		if !w.running {
			return nil
		}
	}
	return nil
}

// Cleanup releases window resources
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	return nil
}
