// Package app provides configuration management and the map viewer built on
// the streaming and transition packages.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nesmap/internal/memory"
	"nesmap/internal/sprites"
)

// Config holds all application configuration
type Config struct {
	Window     WindowConfig     `json:"window"`
	Video      VideoConfig      `json:"video"`
	World      WorldConfig      `json:"world"`
	Transition TransitionConfig `json:"transition"`
	Display    DisplayConfig    `json:"display"`
	Headless   HeadlessConfig   `json:"headless"`
	Debug      DebugConfig      `json:"debug"`
	Paths      PathsConfig      `json:"paths"`

	// Internal state
	configPath string
	loaded     bool
}

// WindowConfig contains window-related configuration
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Scale      int  `json:"scale"` // NES resolution multiplier
}

// VideoConfig contains video presentation configuration
type VideoConfig struct {
	VSync      bool    `json:"vsync"`
	Filter     string  `json:"filter"`  // "nearest", "linear"
	Backend    string  `json:"backend"` // "ebitengine", "headless", "terminal"
	Brightness float32 `json:"brightness"`
	Contrast   float32 `json:"contrast"`
	Saturation float32 `json:"saturation"`
}

// WorldConfig selects the overworld and where the player starts
type WorldConfig struct {
	Path        string `json:"path"` // Empty generates a world from Seed
	Seed        int64  `json:"seed"`
	StartScreen int    `json:"start_screen"`
	StartX      int    `json:"start_x"` // Pixels
	StartY      int    `json:"start_y"`
}

// TransitionConfig contains the screen change settings
type TransitionConfig struct {
	Style     string `json:"style"`     // "scroll", "fade"
	Increment int    `json:"increment"` // Pixels per scroll step
	Speed     int    `json:"speed"`     // Pixels between vblank waits
	FadeSteps int    `json:"fade_steps"`
	FadeDelay int    `json:"fade_delay"` // Frames per fade step
}

// DisplayConfig contains the video memory layout and pattern source
type DisplayConfig struct {
	Mirroring string `json:"mirroring"` // Only "vertical" is supported
	CHRPath   string `json:"chr_path"`  // iNES image; empty uses the debug tiles
}

// HeadlessConfig drives unattended runs
type HeadlessConfig struct {
	Frames         int    `json:"frames"`
	Script         string `json:"script"` // e.g. "right:120,down:60"
	SnapshotFrames []int  `json:"snapshot_frames"`
	SnapshotScale  int    `json:"snapshot_scale"`
}

// DebugConfig contains debugging and development options
type DebugConfig struct {
	ShowFPS         bool `json:"show_fps"`
	EnableLogging   bool `json:"enable_logging"`
	PPUDebugging    bool `json:"ppu_debugging"`
	RenderDebugging bool `json:"render_debugging"`
	InputDebugging  bool `json:"input_debugging"`
}

// PathsConfig contains file and directory paths
type PathsConfig struct {
	SaveStates string `json:"save_states"`
	Snapshots  string `json:"snapshots"`
	Config     string `json:"config"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	config := &Config{
		Window: WindowConfig{
			Width:      800,
			Height:     600,
			Fullscreen: false,
			Scale:      2, // 512x480 (256x240 * 2)
		},
		Video: VideoConfig{
			VSync:      true,
			Filter:     "nearest",
			Backend:    "ebitengine",
			Brightness: 1.0,
			Contrast:   1.0,
			Saturation: 1.0,
		},
		World: WorldConfig{
			Seed:        1,
			StartScreen: 27,
			StartX:      120,
			StartY:      136,
		},
		Transition: TransitionConfig{
			Style:     "scroll",
			Increment: 2,
			Speed:     4,
			FadeSteps: 4,
			FadeDelay: 4,
		},
		Display: DisplayConfig{
			Mirroring: memory.MirrorVertical.String(),
		},
		Headless: HeadlessConfig{
			Frames:         600,
			Script:         "right:160,down:200,left:160,up:200",
			SnapshotFrames: []int{1, 150, 300, 450, 600},
			SnapshotScale:  2,
		},
		Debug: DebugConfig{
			ShowFPS:       false,
			EnableLogging: false,
		},
		Paths: PathsConfig{
			SaveStates: "./states",
			Snapshots:  "./snapshots",
			Config:     "./config",
		},
		loaded: false,
	}

	return config
}

// LoadFromFile loads configuration from a JSON file
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	// Missing file: write the defaults out and use them
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %v", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	if err := c.createDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %v", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	c.configPath = path
	return nil
}

// Save saves the configuration to the current config file
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("no config file path set")
	}

	return c.SaveToFile(c.configPath)
}

// validate rejects settings the display cannot work with and clamps the rest
func (c *Config) validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window dimensions: %dx%d", c.Window.Width, c.Window.Height)
	}

	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}

	if c.Video.Brightness < 0.1 || c.Video.Brightness > 3.0 {
		c.Video.Brightness = 1.0
	}

	if c.Video.Contrast < 0.1 || c.Video.Contrast > 3.0 {
		c.Video.Contrast = 1.0
	}

	if c.Video.Saturation < 0.0 || c.Video.Saturation > 3.0 {
		c.Video.Saturation = 1.0
	}

	if c.World.StartScreen < 0 || c.World.StartScreen >= sprites.Screens {
		return &ConfigError{Field: "world.start_screen", Value: c.World.StartScreen, Err: fmt.Errorf("must be below %d", sprites.Screens)}
	}

	switch c.Transition.Style {
	case "scroll", "fade":
	case "":
		c.Transition.Style = "scroll"
	default:
		return &ConfigError{Field: "transition.style", Value: c.Transition.Style, Err: fmt.Errorf("expected scroll or fade")}
	}

	// The row streamer's snapping needs a step that divides a row pair
	switch c.Transition.Increment {
	case 1, 2, 4, 8:
	default:
		return &ConfigError{Field: "transition.increment", Value: c.Transition.Increment, Err: fmt.Errorf("must be 1, 2, 4 or 8")}
	}

	if c.Transition.Speed <= 0 {
		c.Transition.Speed = 4
	}

	if c.Transition.FadeSteps <= 0 {
		c.Transition.FadeSteps = 4
	}

	if c.Transition.FadeDelay <= 0 {
		c.Transition.FadeDelay = 4
	}

	mode, err := memory.ParseMirrorMode(c.Display.Mirroring)
	if err != nil {
		return &ConfigError{Field: "display.mirroring", Value: c.Display.Mirroring, Err: err}
	}
	// The resting scroll wraps from bank A onto C and splits from B onto D
	if mode != memory.MirrorVertical {
		return &ConfigError{Field: "display.mirroring", Value: c.Display.Mirroring, Err: fmt.Errorf("only vertical mirroring keeps banks C and D in step with A and B")}
	}

	if c.Headless.Frames < 0 {
		c.Headless.Frames = 0
	}

	if c.Headless.SnapshotScale <= 0 {
		c.Headless.SnapshotScale = 1
	}

	if _, err := ParseScript(c.Headless.Script); err != nil {
		return &ConfigError{Field: "headless.script", Value: c.Headless.Script, Err: err}
	}

	return nil
}

// createDirectories creates required directories
func (c *Config) createDirectories() error {
	dirs := []string{
		c.Paths.SaveStates,
		c.Paths.Snapshots,
		c.Paths.Config,
	}

	for _, dir := range dirs {
		if dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %v", dir, err)
			}
		}
	}

	return nil
}

// MirrorMode returns the validated mirroring mode
func (c *Config) MirrorMode() memory.MirrorMode {
	mode, err := memory.ParseMirrorMode(c.Display.Mirroring)
	if err != nil {
		return memory.MirrorVertical
	}
	return mode
}

// GetWindowResolution returns the window resolution based on scale
func (c *Config) GetWindowResolution() (int, int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}

// UsesFade reports whether screen edges fade instead of scrolling
func (c *Config) UsesFade() bool {
	return strings.EqualFold(c.Transition.Style, "fade")
}

// IsLoaded returns whether the configuration was loaded from file
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// GetConfigPath returns the path to the config file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return NewConfig()
	}

	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return NewConfig()
	}

	clone.configPath = c.configPath
	clone.loaded = c.loaded

	return clone
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return "./config/nesmap.json"
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s' with value '%v': %v", e.Field, e.Value, e.Err)
}
