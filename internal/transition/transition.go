// Package transition implements the screen change state machines: a fade
// through black and a split-scroll slide in one of four directions.
package transition

import (
	"fmt"
	"log"

	"nesmap/internal/attr"
	"nesmap/internal/render"
	"nesmap/internal/sprites"
	"nesmap/internal/tilemap"
)

// GameState is the top-level state shared with the game loop
type GameState int

const (
	Running GameState = iota
	ScreenScroll
	WorldTransition
)

func (s GameState) String() string {
	switch s {
	case Running:
		return "running"
	case ScreenScroll:
		return "screen-scroll"
	case WorldTransition:
		return "world-transition"
	default:
		return fmt.Sprintf("GameState(%d)", int(s))
	}
}

// Direction is the way the player is facing or leaving the screen
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Player is the position of the player sprite with tilemap.PositionShift
// fractional bits, plus the overworld screen it is on
type Player struct {
	X, Y      int
	Direction Direction
	Screen    int
}

// Screen edges in pixels. A player leaving the screen re-enters at the
// opposite edge.
const (
	EdgeLeft   = 0x04
	EdgeRight  = 0xEC
	EdgeTop    = tilemap.HUDPixelHeight + 4
	EdgeBottom = 0xDC
)

// Hooks are the game-side collaborators a transition calls into
type Hooks interface {
	// LoadMap returns the tile map for the player's current screen
	LoadMap() *tilemap.Map
	UpdatePlayerSprite()
	UpdateMapSprites()
	FadeOut()
	FadeIn()
}

// Display is the video device plus the sprite table entry used for the split
type Display interface {
	render.Display
	WriteSprite(index int, x, y, tile, attributes uint8)
}

// Config holds the scroll cadence
type Config struct {
	// Increment is the number of pixels scrolled per loop iteration
	Increment int
	// Speed is the number of pixels between vblank waits on horizontal scrolls
	Speed int
	// Sprite0Tile is the opaque tile parked at the HUD edge to trigger the split
	Sprite0Tile uint8
}

// DefaultConfig returns the standard scroll cadence
func DefaultConfig() Config {
	return Config{Increment: 2, Speed: 4, Sprite0Tile: 0xFE}
}

// Context is the mutable game state a transition works on
type Context struct {
	State       *GameState
	Player      *Player
	Map         *tilemap.Map
	Sprites     *sprites.Set
	Persistence *sprites.Persistence
	Templates   []sprites.Template
}

// Phase is the step a transition is in
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseLoading
	PhasePositioning
	PhaseRendering
	PhaseFadingIn
	PhaseSetup
	PhaseStreaming
	PhaseSettling
)

var phaseNames = [...]string{"running", "loading", "positioning", "rendering", "fading-in", "setup", "streaming", "settling"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

const (
	// horizontalDistance caps how far a horizontal slide travels. Increments
	// that do not divide it stop at the last whole step below it.
	horizontalDistance = 254

	mapPixelHeight = tilemap.Height * 16
	rowPairHeight  = 32
	lastRowPair    = tilemap.Height/2 - 1

	// splitBaseY is the split_y value showing the second bank from its top
	splitBaseY = 240 + tilemap.HUDPixelHeight

	sprite0X      = 249
	sprite0Y      = tilemap.HUDPixelHeight - 8
	sprite0Hidden = 0xFF
)

// Controller runs transitions. It owns the display for their whole duration.
type Controller struct {
	display  Display
	renderer *render.Renderer
	hooks    Hooks
	ctx      *Context
	cfg      Config

	phase    Phase
	observer func(Phase)
	debug    bool
}

// NewController creates a controller
func NewController(display Display, renderer *render.Renderer, hooks Hooks, ctx *Context, cfg Config) *Controller {
	if cfg.Increment <= 0 || cfg.Speed <= 0 {
		panic(fmt.Sprintf("transition: invalid cadence %+v", cfg))
	}
	return &Controller{
		display:  display,
		renderer: renderer,
		hooks:    hooks,
		ctx:      ctx,
		cfg:      cfg,
	}
}

// SetDebug enables phase logging
func (c *Controller) SetDebug(enabled bool) {
	c.debug = enabled
}

// SetPhaseObserver registers a function called on every phase change
func (c *Controller) SetPhaseObserver(observer func(Phase)) {
	c.observer = observer
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) enter(phase Phase) {
	c.phase = phase
	if c.debug {
		log.Printf("[TRANSITION] %v: %v (screen %d, player %d,%d)",
			*c.ctx.State, phase, c.ctx.Player.Screen, c.ctx.Player.X>>tilemap.PositionShift, c.ctx.Player.Y>>tilemap.PositionShift)
	}
	if c.observer != nil {
		c.observer(phase)
	}
}

func (c *Controller) loadMap() *tilemap.Map {
	m := c.hooks.LoadMap()
	c.ctx.Map = m
	return m
}

func (c *Controller) loadSprites() {
	*c.ctx.Sprites = sprites.Load(c.ctx.Map, c.ctx.Player.Screen, c.ctx.Persistence, c.ctx.Templates)
}

// Fade swaps the screen behind a fade to black and leaves the game Running
func (c *Controller) Fade() {
	c.enter(PhaseLoading)
	m := c.loadMap()
	c.loadSprites()
	c.renderer.ClearAttributes(true)
	c.hooks.FadeOut()

	c.enter(PhasePositioning)
	player := c.ctx.Player
	switch *c.ctx.State {
	case ScreenScroll:
		switch player.Direction {
		case Left:
			player.X = EdgeRight << tilemap.PositionShift
		case Right:
			player.X = EdgeLeft << tilemap.PositionShift
		case Up:
			player.Y = EdgeBottom << tilemap.PositionShift
		case Down:
			player.Y = EdgeTop << tilemap.PositionShift
		}
	case WorldTransition:
		for i := range c.ctx.Sprites {
			s := &c.ctx.Sprites[i]
			if s.Type != sprites.TypeWarpDoor {
				continue
			}
			player.X = int(s.X)
			player.Y = int(s.Y)
			// Hidden so the door does not flicker under the player
			s.TileID = sprites.TileOffscreen
		}
	}

	c.enter(PhaseRendering)
	c.hooks.UpdatePlayerSprite()
	c.renderer.StreamMap(m, render.BankA.Nametable(), render.BankA.Attributes(), false)
	c.hooks.UpdateMapSprites()

	c.enter(PhaseFadingIn)
	c.hooks.FadeIn()
	*c.ctx.State = Running
	c.enter(PhaseRunning)
}

// Scroll slides the new screen in from the side the player left through,
// keeping the HUD fixed with a sprite 0 split, and leaves the game Running
func (c *Controller) Scroll() {
	c.enter(PhaseSetup)
	c.renderer.SetSplit(render.NoSplit)
	c.display.Scroll(0, tilemap.RestingScrollY)
	c.display.WriteSprite(0, sprite0X, sprite0Y, c.cfg.Sprite0Tile, 0x00)
	c.display.WaitNMI()

	c.enter(PhaseStreaming)
	switch c.ctx.Player.Direction {
	case Right:
		c.scrollHorizontal(true)
	case Left:
		c.scrollHorizontal(false)
	case Down:
		c.scrollDown()
	case Up:
		c.scrollUp()
	}

	c.enter(PhaseSettling)
	// Bank B stays on screen through the parked split while A is redrawn
	c.renderer.ClearAttributes(true)
	c.renderer.StreamMap(c.ctx.Map, render.BankA.Nametable(), render.BankA.Attributes(), false)
	c.display.Scroll(0, tilemap.RestingScrollY)
	c.display.WriteSprite(0, sprite0Hidden, sprite0Hidden, c.cfg.Sprite0Tile, 0x00)
	c.renderer.SetSplit(render.NoSplit)

	c.loadSprites()
	c.hooks.UpdateMapSprites()

	*c.ctx.State = Running
	c.enter(PhaseRunning)
}

// scrollHorizontal draws the new map to bank B and slides the split across it
func (c *Controller) scrollHorizontal(right bool) {
	m := c.loadMap()
	c.renderer.ClearAttributes(true)
	c.renderer.StreamMap(m, render.BankB.Nametable(), render.BankB.Attributes(), false)

	step := c.cfg.Increment << tilemap.PositionShift
	for i := 0; i+c.cfg.Increment <= horizontalDistance; i += c.cfg.Increment {
		if right {
			c.ctx.Player.X -= step
		} else {
			c.ctx.Player.X += step
		}
		c.hooks.UpdatePlayerSprite()

		if i%c.cfg.Speed == 0 {
			c.display.WaitNMI()
			if right {
				c.display.Split(i)
			} else {
				c.display.Split(512 - i)
			}
		}
	}

	c.renderer.SetSplit(render.SplitAt(256))
}

// hiddenStrip addresses bank B shifted down by the HUD height, so its first
// rows sit behind the HUD
func hiddenStrip() (nametable, attributes uint16) {
	return render.BankB.Nametable() + tilemap.HUDTileRows*tilemap.ScreenWidthTiles,
		render.BankB.Attributes() + attr.RowBytes
}

// scrollDown shows the old map in bank B below the HUD, then scrolls the split
// downwards one increment per frame, streaming each new row pair into the rows
// hidden behind the HUD just before they come into view at the bottom.
func (c *Controller) scrollDown() {
	nametable, attributes := hiddenStrip()
	c.renderer.ClearAttributes(false)
	c.renderer.StreamMap(c.ctx.Map, nametable, attributes, true)

	m := c.loadMap()
	c.renderer.ClearAttributes(false)
	c.renderer.SetSplit(render.SplitAt(256))

	cursor := render.NewRowCursor(0, false, 0)
	offset := 0
	for offset < mapPixelHeight {
		c.movePlayerY(-c.cfg.Increment)

		c.display.WaitNMI()
		c.display.SplitY(256, splitBaseY+offset)

		if offset%rowPairHeight == 0 {
			cursor.SplitOffset = offset
			cursor = c.renderer.StreamRow(m, render.BankB.Nametable(), render.BankB.Attributes(), cursor, c.cfg.Increment)
			c.movePlayerY(-(cursor.SplitOffset - offset))
			offset = cursor.SplitOffset
		}

		offset += c.cfg.Increment
	}

	// x-only split: the frame scroll wraps onto the top of bank B
	c.renderer.SetSplit(render.SplitAt(256))
}

// scrollUp shows the old map at the top of bank B and scrolls the split
// upwards one increment per frame through the HUD-shifted copy of bank B. New row pairs go into that
// copy bottom first, each while it is still behind the HUD.
func (c *Controller) scrollUp() {
	c.renderer.ClearAttributes(false)
	c.renderer.StreamMap(c.ctx.Map, render.BankB.Nametable(), render.BankB.Attributes(), false)

	m := c.loadMap()
	c.renderer.ClearAttributes(false)
	c.renderer.SetSplit(render.SplitAt(256))

	nametable, attributes := hiddenStrip()

	// The bottom pair is exposed by the very first step, so it goes in before
	// the scroll starts
	c.renderer.StreamRow(m, nametable, attributes, render.NewRowCursor(lastRowPair, true, mapPixelHeight), 0)

	offset := mapPixelHeight
	for offset > 0 {
		c.movePlayerY(c.cfg.Increment)

		// Pair q covers offsets 32q+48 to 32q+79 of the shifted copy and stays
		// behind the HUD until the offset drops below 32q+32
		pairStart := offset - rowPairHeight - rowPairHeight/2
		c.display.WaitNMI()
		c.display.SplitY(256, splitBaseY+offset)

		if offset%rowPairHeight == rowPairHeight/2 && pairStart >= 0 && pairStart/rowPairHeight < lastRowPair {
			cursor := render.NewRowCursor(pairStart/rowPairHeight, true, offset)
			cursor = c.renderer.StreamRow(m, nametable, attributes, cursor, -c.cfg.Increment)
			c.movePlayerY(offset - cursor.SplitOffset)
			offset = cursor.SplitOffset
		}

		offset -= c.cfg.Increment
	}

	c.renderer.SetSplit(render.SplitAtY(256, splitBaseY))
}

func (c *Controller) movePlayerY(pixels int) {
	if pixels == 0 {
		return
	}
	c.ctx.Player.Y += pixels << tilemap.PositionShift
	c.hooks.UpdatePlayerSprite()
}
