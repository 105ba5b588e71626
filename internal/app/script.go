package app

import (
	"fmt"
	"strconv"
	"strings"

	"nesmap/internal/input"
)

// ScriptStep holds a set of buttons down for a number of frames
type ScriptStep struct {
	Buttons input.Button
	Frames  int
}

// Script is a scripted controller for unattended runs
type Script []ScriptStep

var scriptButtons = map[string]input.Button{
	"up":     input.Up,
	"down":   input.Down,
	"left":   input.Left,
	"right":  input.Right,
	"a":      input.A,
	"b":      input.B,
	"start":  input.Start,
	"select": input.Select,
	"wait":   0,
}

// ParseScript reads a comma separated list of button:frames steps. Buttons
// may be combined with '+', e.g. "right:120,up+right:30,wait:10".
func ParseScript(text string) (Script, error) {
	var script Script
	text = strings.TrimSpace(text)
	if text == "" {
		return script, nil
	}

	for _, field := range strings.Split(text, ",") {
		name, count, ok := strings.Cut(strings.TrimSpace(field), ":")
		if !ok {
			return nil, fmt.Errorf("step %q has no frame count", field)
		}

		frames, err := strconv.Atoi(count)
		if err != nil || frames <= 0 {
			return nil, fmt.Errorf("step %q has invalid frame count", field)
		}

		var buttons input.Button
		for _, part := range strings.Split(name, "+") {
			button, known := scriptButtons[strings.ToLower(strings.TrimSpace(part))]
			if !known {
				return nil, fmt.Errorf("step %q names unknown button %q", field, part)
			}
			buttons |= button
		}

		script = append(script, ScriptStep{Buttons: buttons, Frames: frames})
	}
	return script, nil
}

// ButtonsAt returns the buttons held on a game step. The script repeats once
// it runs out.
func (s Script) ButtonsAt(step int) input.Button {
	total := s.Length()
	if total == 0 {
		return 0
	}
	step %= total
	for _, st := range s {
		if step < st.Frames {
			return st.Buttons
		}
		step -= st.Frames
	}
	return 0
}

// Length returns the number of steps the script covers
func (s Script) Length() int {
	total := 0
	for _, st := range s {
		total += st.Frames
	}
	return total
}
