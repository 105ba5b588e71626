//go:build windows
// +build windows

package graphics

import "fmt"

func openKeyboard() (keyboard, error) {
	return nil, fmt.Errorf("terminal input is not supported on windows")
}
