//go:build !windows
// +build !windows

package graphics

import (
	"fmt"
	"time"

	"github.com/pkg/term"
)

// ttyKeyboard reads raw key bytes from the controlling terminal
type ttyKeyboard struct {
	tty  *term.Term
	keys chan []byte
	done chan struct{}
}

// openKeyboard puts the controlling terminal in cbreak mode and starts
// reading it
func openKeyboard() (keyboard, error) {
	tty, err := term.Open("/dev/tty", term.CBreakMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %v", err)
	}
	if err := tty.SetReadTimeout(100 * time.Millisecond); err != nil {
		tty.Restore()
		tty.Close()
		return nil, fmt.Errorf("failed to set terminal read timeout: %v", err)
	}

	k := &ttyKeyboard{
		tty:  tty,
		keys: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	go k.read()
	return k, nil
}

func (k *ttyKeyboard) read() {
	buf := make([]byte, 16)
	for {
		select {
		case <-k.done:
			return
		default:
		}

		n, err := k.tty.Read(buf)
		if err != nil || n == 0 {
			continue
		}
		data := append([]byte(nil), buf[:n]...)
		select {
		case k.keys <- data:
		default:
		}
	}
}

// Keys returns the bytes typed since the last call
func (k *ttyKeyboard) Keys() []byte {
	var out []byte
	for {
		select {
		case data := <-k.keys:
			out = append(out, data...)
		default:
			return out
		}
	}
}

// Close restores the terminal mode
func (k *ttyKeyboard) Close() error {
	close(k.done)
	if err := k.tty.Restore(); err != nil {
		k.tty.Close()
		return err
	}
	return k.tty.Close()
}
