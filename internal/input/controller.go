// Package input implements the game pad shared between the window goroutine,
// which writes button state, and the game goroutine, which polls it.
package input

import (
	"log"
	"sync"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Convenience constants for shorter names used by the backends
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller represents a NES controller. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	// Current button states, one bit per Button
	buttons uint8

	// Shift register for serial reading
	shiftRegister uint8
	strobe        bool
	bitPosition   uint8

	// State returned by the previous Poll, for edge detection
	previous uint8

	debugEnabled bool
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a button
func (c *Controller) SetButton(button Button, pressed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldButtons := c.buttons
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}

	if c.debugEnabled && oldButtons != c.buttons {
		log.Printf("[INPUT] SetButton: button=%d, pressed=%t, buttons=0x%02X", uint8(button), pressed, c.buttons)
	}
}

// SetButtons sets all button states at once in A, B, Select, Start, Up,
// Down, Left, Right order
func (c *Controller) SetButtons(buttons [8]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buttons = 0
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= 1 << uint(i)
		}
	}
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return (c.buttons & uint8(button)) != 0
}

// Write handles writes to the strobe register
func (c *Controller) Write(value uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(value)
}

func (c *Controller) write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = (value & 1) != 0

	if c.strobe || wasStrobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read returns the next button bit. While strobe is high it keeps
// returning button A; after eight reads it returns 0.
func (c *Controller) Read() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *Controller) read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return c.buttons & 1
	}
	if c.bitPosition >= 8 {
		return 0
	}
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Poll latches the pad and reads all eight buttons the way a game does:
// strobe high, strobe low, eight serial reads.
func (c *Controller) Poll() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.write(1)
	c.write(0)
	var state uint8
	for i := 0; i < 8; i++ {
		state |= c.read() << uint(i)
	}
	c.previous = state
	return state
}

// Trigger polls the pad and returns only the buttons pressed since the
// previous poll
func (c *Controller) Trigger() uint8 {
	c.mu.Lock()
	previous := c.previous
	c.mu.Unlock()

	return c.Poll() &^ previous
}

// Reset resets the controller state
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.bitPosition = 0
	c.previous = 0
}

// EnableDebug enables debug logging for this controller
func (c *Controller) EnableDebug(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugEnabled = enable
}
