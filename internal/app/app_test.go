package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nesmap/internal/graphics"
	"nesmap/internal/input"
	"nesmap/internal/transition"
)

func newHeadlessApp(t *testing.T, frames int, snapshots ...int) *Application {
	t.Helper()
	dir := t.TempDir()

	config := NewConfig()
	config.Paths = PathsConfig{
		SaveStates: filepath.Join(dir, "states"),
		Snapshots:  filepath.Join(dir, "snapshots"),
	}
	config.Transition.FadeDelay = 1
	config.Headless.Frames = frames
	config.Headless.Script = "right:40,wait:10"
	config.Headless.SnapshotFrames = snapshots

	app, err := NewApplicationWithConfig(config, true)
	if err != nil {
		t.Fatalf("NewApplicationWithConfig() error = %v", err)
	}
	t.Cleanup(func() { app.Cleanup() })
	return app
}

func TestHeadlessRunWritesSnapshots(t *testing.T) {
	app := newHeadlessApp(t, 90, 30, 90)

	if err := app.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if app.IsRunning() {
		t.Error("still running after the frame limit")
	}
	if app.GetFrameCount() < 90 {
		t.Errorf("frame count = %d, want at least 90", app.GetFrameCount())
	}
	if app.Game().State() != transition.Running {
		t.Errorf("game state = %v after run", app.Game().State())
	}

	window, ok := app.Window().(*graphics.HeadlessWindow)
	if !ok {
		t.Fatalf("window is %T, want a headless window", app.Window())
	}
	written := window.Written()
	if len(written) != 2 {
		t.Fatalf("wrote %v, want two snapshots", written)
	}
	for _, name := range written {
		info, err := os.Stat(name)
		if err != nil || info.Size() == 0 {
			t.Errorf("snapshot %s missing or empty: %v", name, err)
		}
	}
	if filepath.Base(written[1]) != "frame_00090.png" {
		t.Errorf("second snapshot = %s", written[1])
	}
}

func TestRunTwiceFails(t *testing.T) {
	app := newHeadlessApp(t, 60)
	app.running.Store(true)
	if err := app.Run(); err == nil {
		t.Error("Run() succeeded while already running")
	}
}

func TestSaveAndLoadAfterRun(t *testing.T) {
	app := newHeadlessApp(t, 60)
	if err := app.Run(); err != nil {
		t.Fatal(err)
	}

	saved := app.Game().Progress()
	if err := app.SaveState(0); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	app.Game().player.X += 8 << 4
	app.Game().keys = 9
	if err := app.LoadState(0); err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if got := app.Game().Progress(); got != saved {
		t.Errorf("progress after load = %+v, want %+v", got, saved)
	}

	if err := app.LoadState(1); err == nil {
		t.Error("LoadState() read an empty slot")
	}
}

func TestHandleEvents(t *testing.T) {
	app := newHeadlessApp(t, 1)
	app.running.Store(true)

	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeButton, Button: graphics.ButtonLeft, Pressed: true})
	if !app.pad.IsPressed(input.Left) {
		t.Error("left not pressed on the pad")
	}

	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeButton, Button: graphics.ButtonStart, Pressed: true})
	if !app.IsPaused() {
		t.Error("start did not pause")
	}
	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeButton, Button: graphics.ButtonStart, Pressed: false})
	if !app.IsPaused() {
		t.Error("releasing start resumed")
	}

	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.KeyF1, Pressed: true})
	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.KeyF12, Pressed: true})
	if len(app.requests) != 2 {
		t.Errorf("queued %d state requests, want 2", len(app.requests))
	}

	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeQuit})
	if app.IsRunning() {
		t.Error("quit did not stop the application")
	}
}

func TestSetPadFollowsScript(t *testing.T) {
	app := newHeadlessApp(t, 1)

	app.setPad(input.Up | input.A)
	if app.pad.Poll() != uint8(input.Up|input.A) {
		t.Errorf("pad = %08b", app.pad.Poll())
	}
	app.setPad(0)
	if app.pad.Poll() != 0 {
		t.Errorf("pad = %08b after release", app.pad.Poll())
	}
}

func TestPPUDebuggingDumpsBanks(t *testing.T) {
	dir := t.TempDir()
	config := NewConfig()
	config.Paths = PathsConfig{SaveStates: filepath.Join(dir, "states"), Snapshots: dir}
	config.Transition.FadeDelay = 1
	config.Headless.Frames = 40
	config.Headless.SnapshotFrames = []int{40}
	config.Debug.PPUDebugging = true

	app, err := NewApplicationWithConfig(config, true)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Cleanup()
	if err := app.Run(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "banks", "banks_000040.txt"))
	if err != nil {
		t.Fatalf("bank dump missing: %v", err)
	}
	if !strings.Contains(string(data), "Bank A ($2000)") {
		t.Error("dump does not list bank A")
	}
}
