package app

import (
	"fmt"
	"log"

	"nesmap/internal/attr"
	"nesmap/internal/cartridge"
	"nesmap/internal/input"
	"nesmap/internal/memory"
	"nesmap/internal/ppu"
	"nesmap/internal/render"
	"nesmap/internal/sprites"
	"nesmap/internal/tilemap"
	"nesmap/internal/transition"
	"nesmap/internal/update"
	"nesmap/internal/world"
)

// Sprite table layout. Entry 0 is the split sprite.
const (
	playerOAM    = 1 // Four entries
	mapSpriteOAM = 5 // Four entries per map sprite slot
)

// PPU setup written once at start
const (
	ctrlSpriteTable = 0x08 // 8x8 sprites from $1000, background from $0000
	maskShowAll     = 0x1E
)

const (
	startHealth  = 3
	maxHealth    = 8
	playerStep   = 1 << tilemap.PositionShift
	hurtFrames   = 60
	contactRange = 12
)

// HUD strip: tile rows 24-29 of bank A and the attribute row below the map
const (
	hudTileRow    = tilemap.Height * 2
	hudAddress    = memory.NametableBase + hudTileRow*tilemap.ScreenWidthTiles
	hudAttributes = memory.NametableBase + memory.AttributeBase + attr.TableSize
	heartRow      = 2 // HUD-relative
	heartColumn   = 2
)

var basePalette = [memory.PaletteSize]uint8{
	0x29, 0x1A, 0x37, 0x17, // Ground
	0x29, 0x00, 0x10, 0x2D, // Walls and rocks
	0x29, 0x21, 0x11, 0x0A, // Water and trees
	0x29, 0x30, 0x16, 0x0F, // HUD
	0x29, 0x27, 0x0F, 0x30, // Player
	0x29, 0x16, 0x27, 0x0F,
	0x29, 0x12, 0x21, 0x0F,
	0x29, 0x1A, 0x2A, 0x0F,
}

// Progress is the part of the game a save state keeps
type Progress struct {
	Player      transition.Player
	Health      int
	Keys        int
	Persistence [sprites.Screens]uint16
}

// Game is the top-level game loop and the collaborators the transitions call
// back into. It owns the PPU; every method runs on the game goroutine.
type Game struct {
	ppu        *ppu.PPU
	renderer   *render.Renderer
	controller *transition.Controller
	world      *world.World
	pad        *input.Controller
	config     *Config

	state       transition.GameState
	player      transition.Player
	current     tilemap.Map
	sprites     sprites.Set
	persistence sprites.Persistence
	ctx         transition.Context

	palette [memory.PaletteSize]uint8
	hud     update.Buffer
	health  int
	keys    int
	shown   int  // Health the HUD currently shows
	hurt    int  // Invulnerable frames left
	onWarp  bool // Still standing on the door the player arrived through
	debug   bool
}

// NewGame wires a game to its display, world and pad
func NewGame(display *ppu.PPU, w *world.World, pad *input.Controller, config *Config) *Game {
	g := &Game{
		ppu:     display,
		world:   w,
		pad:     pad,
		config:  config,
		palette: basePalette,
		health:  startHealth,
		debug:   config.Debug.EnableLogging,
	}
	g.ctx = transition.Context{
		State:       &g.state,
		Player:      &g.player,
		Map:         &g.current,
		Sprites:     &g.sprites,
		Persistence: &g.persistence,
		Templates:   sprites.DefaultTemplates,
	}

	g.renderer = render.New(display)
	g.renderer.SetDebug(config.Debug.RenderDebugging)
	g.controller = transition.NewController(display, g.renderer, g, &g.ctx, transition.Config{
		Increment:   config.Transition.Increment,
		Speed:       config.Transition.Speed,
		Sprite0Tile: cartridge.Sprite0Tile,
	})
	g.controller.SetDebug(config.Debug.EnableLogging)
	return g
}

// Start sets up the display and fades in on the configured start screen
func (g *Game) Start() {
	g.ppu.WriteRegister(0x2000, ctrlSpriteTable)
	g.ppu.WriteRegister(0x2001, maskShowAll)
	g.ppu.Scroll(0, tilemap.RestingScrollY)
	g.ppu.SetPalette(darken(g.palette, g.config.Transition.FadeSteps, g.config.Transition.FadeSteps))

	g.player = g.startPosition()
	g.health = startHealth
	g.drawHUD()

	g.state = transition.Running
	g.controller.Fade()
	g.logf("Started on screen %d", g.player.Screen)
}

func (g *Game) startPosition() transition.Player {
	return transition.Player{
		X:         g.config.World.StartX << tilemap.PositionShift,
		Y:         g.config.World.StartY << tilemap.PositionShift,
		Direction: transition.Down,
		Screen:    g.config.World.StartScreen,
	}
}

// Step runs one frame: input, movement, contacts and screen changes, then
// the vblank wait
func (g *Game) Step() {
	buttons := input.Button(g.pad.Poll())

	g.move(buttons)
	g.checkContacts()
	g.checkEdges()
	if g.hurt > 0 {
		g.hurt--
	}

	g.UpdatePlayerSprite()
	g.UpdateMapSprites()
	g.ppu.WaitNMI()
}

func (g *Game) move(buttons input.Button) {
	dx, dy := 0, 0
	switch {
	case buttons&input.Up != 0:
		dy, g.player.Direction = -1, transition.Up
	case buttons&input.Down != 0:
		dy, g.player.Direction = 1, transition.Down
	}
	switch {
	case buttons&input.Left != 0:
		dx, g.player.Direction = -1, transition.Left
	case buttons&input.Right != 0:
		dx, g.player.Direction = 1, transition.Right
	}

	// One axis at a time so the player slides along walls
	if dx != 0 && g.walkable(g.player.X+dx*playerStep, g.player.Y) {
		g.player.X += dx * playerStep
	}
	if dy != 0 && g.walkable(g.player.X, g.player.Y+dy*playerStep) {
		g.player.Y += dy * playerStep
	}
}

// walkable reports whether the lower half of the player sprite at x, y stays
// off solid tiles
func (g *Game) walkable(x, y int) bool {
	px, py := x>>tilemap.PositionShift, y>>tilemap.PositionShift
	corners := [4][2]int{{px + 2, py + 9}, {px + 13, py + 9}, {px + 2, py + 16}, {px + 13, py + 16}}
	for _, c := range corners {
		if g.solidAt(c[0], c[1]) {
			return false
		}
	}
	return true
}

// solidAt checks the map tile under a screen pixel. Nothing outside the map
// is solid.
func (g *Game) solidAt(x, y int) bool {
	if x < 0 || y < tilemap.HUDPixelHeight {
		return false
	}
	col, row := x/16, (y-tilemap.HUDPixelHeight)/16
	if col >= tilemap.Width || row >= tilemap.Height {
		return false
	}
	return world.Solid(g.current.TileID(row*tilemap.Width + col))
}

func (g *Game) checkContacts() {
	px, py := g.player.X>>tilemap.PositionShift, g.player.Y>>tilemap.PositionShift
	touchingWarp := false

	for slot := range g.sprites {
		s := &g.sprites[slot]
		if !s.Active() {
			continue
		}
		sx, sy := s.PixelPosition()
		if abs(px-sx) >= contactRange || abs(py-sy) >= contactRange {
			continue
		}

		switch {
		case s.Type.Collectible():
			g.collect(slot)
		case s.Type == sprites.TypeWarpDoor:
			touchingWarp = true
			if !g.onWarp {
				g.warp()
				return
			}
		case s.Type == sprites.TypeRegularEnemy || s.Type == sprites.TypeInvulnerableEnemy:
			if g.hit(int(s.Damage)) {
				return
			}
		}
	}
	g.onWarp = touchingWarp
}

// collect removes a pickup from its screen for good
func (g *Game) collect(slot int) {
	s := &g.sprites[slot]
	switch s.Type {
	case sprites.TypeHealth:
		if g.health < maxHealth {
			g.health++
		}
	case sprites.TypeKey:
		g.keys++
	}
	g.persistence.Mark(g.player.Screen, slot)
	g.logf("Collected %v from screen %d slot %d (removed %012b)", s.Type, g.player.Screen, slot, g.persistence.Screen(g.player.Screen))

	*s = sprites.Sprite{Template: sprites.Template{Type: sprites.TypeOffscreen}}
	g.refreshHearts()
}

// hit applies enemy damage and reports whether the player was sent back to
// the start
func (g *Game) hit(damage int) bool {
	if g.hurt > 0 || damage <= 0 {
		return false
	}
	g.health -= damage
	g.hurt = hurtFrames
	if g.health > 0 {
		g.refreshHearts()
		return false
	}

	g.logf("Player defeated on screen %d", g.player.Screen)
	g.health = startHealth
	g.hurt = 0
	g.player = g.startPosition()
	g.state = transition.Running
	g.controller.Fade()
	g.refreshHearts()
	return true
}

func (g *Game) warp() {
	target, ok := g.world.WarpTarget(g.player.Screen)
	if !ok {
		return
	}
	g.logf("Warp from screen %d to %d", g.player.Screen, target)
	g.player.Screen = target
	g.state = transition.WorldTransition
	g.controller.Fade()
	g.onWarp = true
}

// checkEdges starts a screen change when the player has walked past an edge
func (g *Game) checkEdges() {
	x, y := g.player.X>>tilemap.PositionShift, g.player.Y>>tilemap.PositionShift
	var d transition.Direction
	switch {
	case x < transition.EdgeLeft:
		d = transition.Left
	case x > transition.EdgeRight:
		d = transition.Right
	case y < transition.EdgeTop:
		d = transition.Up
	case y > transition.EdgeBottom:
		d = transition.Down
	default:
		return
	}

	next, ok := world.Neighbor(g.player.Screen, d)
	if !ok {
		g.clampPlayer()
		return
	}

	g.logf("Leaving screen %d %v to %d", g.player.Screen, d, next)
	g.player.Direction = d
	g.player.Screen = next
	g.state = transition.ScreenScroll
	if g.config.UsesFade() {
		g.controller.Fade()
	} else {
		g.hideMapSprites()
		g.controller.Scroll()
		// A slide moves the player a whole screen, past the far edge
		g.clampPlayer()
	}
	g.onWarp = false
}

func (g *Game) clampPlayer() {
	g.player.X = clamp(g.player.X, transition.EdgeLeft<<tilemap.PositionShift, transition.EdgeRight<<tilemap.PositionShift)
	g.player.Y = clamp(g.player.Y, transition.EdgeTop<<tilemap.PositionShift, transition.EdgeBottom<<tilemap.PositionShift)
}

// LoadMap copies the player's current screen out of the world
func (g *Game) LoadMap() *tilemap.Map {
	g.current = *g.world.Map(g.player.Screen)
	return &g.current
}

// UpdatePlayerSprite writes the four player entries. The sprite blinks while
// the player is invulnerable.
func (g *Game) UpdatePlayerSprite() {
	if g.hurt%8 >= 4 {
		g.hideBlock(playerOAM)
		return
	}
	var attributes uint8
	if g.player.Direction == transition.Left {
		attributes |= 0x40
	}
	g.writeBlock(playerOAM, g.player.X>>tilemap.PositionShift, g.player.Y>>tilemap.PositionShift, cartridge.PlayerTile, attributes)
}

// UpdateMapSprites writes four entries per map sprite slot, hiding empty
// slots and sprites parked offscreen
func (g *Game) UpdateMapSprites() {
	frame := g.ppu.GetFrameCount()
	for slot := range g.sprites {
		s := &g.sprites[slot]
		index := mapSpriteOAM + slot*4
		if !s.Active() || s.TileID == sprites.TileOffscreen {
			g.hideBlock(index)
			continue
		}

		tile := s.TileID
		switch s.AnimationType {
		case sprites.AnimationFlicker:
			if frame&1 != 0 {
				g.hideBlock(index)
				continue
			}
		case sprites.AnimationSwap:
			if frame&0x10 != 0 {
				tile += 0x20
			}
		}

		x, y := s.PixelPosition()
		attributes := s.SizePalette & sprites.PaletteMask
		if s.SizePalette&sprites.SizeMask == sprites.Size8x8 {
			g.hideBlock(index)
			g.ppu.WriteSprite(index, uint8(x), uint8(y), tile, attributes)
			continue
		}
		g.writeBlock(index, x, y, tile, attributes)
	}
}

func (g *Game) hideMapSprites() {
	for slot := range g.sprites {
		g.hideBlock(mapSpriteOAM + slot*4)
	}
}

// writeBlock fills the four entries of a 16x16 sprite whose top-left corner
// has OAM position x, y. Quarters off the map area are hidden.
func (g *Game) writeBlock(index, x, y int, tile, attributes uint8) {
	flip := attributes&0x40 != 0
	for q := 0; q < 4; q++ {
		col, row := q&1, q>>1
		t := tile + uint8(row*16)
		if flip {
			t += uint8(1 - col)
		} else {
			t += uint8(col)
		}

		sx, sy := x+col*8, y+row*8
		if sx < 0 || sx >= ppu.ScreenWidth || sy < tilemap.HUDPixelHeight-1 || sy >= ppu.SpriteOffscreen {
			g.ppu.HideSprite(index + q)
			continue
		}
		g.ppu.WriteSprite(index+q, uint8(sx), uint8(sy), t, attributes)
	}
}

func (g *Game) hideBlock(index int) {
	for q := 0; q < 4; q++ {
		g.ppu.HideSprite(index + q)
	}
}

// FadeOut steps the palette down to black
func (g *Game) FadeOut() {
	for level := 1; level <= g.config.Transition.FadeSteps; level++ {
		g.showPalette(level)
	}
}

// FadeIn steps the palette back up from black
func (g *Game) FadeIn() {
	for level := g.config.Transition.FadeSteps - 1; level >= 0; level-- {
		g.showPalette(level)
	}
}

func (g *Game) showPalette(level int) {
	g.ppu.SetPalette(darken(g.palette, level, g.config.Transition.FadeSteps))
	for i := 0; i < g.config.Transition.FadeDelay; i++ {
		g.ppu.WaitNMI()
	}
}

// darken lowers every colour by level/steps of the four brightness rows.
// Colours that drop below the darkest row become black.
func darken(palette [memory.PaletteSize]uint8, level, steps int) [memory.PaletteSize]uint8 {
	rows := level * 4 / steps
	for i, c := range palette {
		v := int(c>>4) - rows
		if v < 0 || c&0x0F >= 0x0D {
			palette[i] = 0x0F
			continue
		}
		palette[i] = uint8(v<<4) | c&0x0F
	}
	return palette
}

// drawHUD fills the HUD strip of bank A, two tile rows per vblank, then the
// attribute row the map streamer never writes
func (g *Game) drawHUD() {
	for row := 0; row < tilemap.HUDTileRows; row += 2 {
		g.hud.Reset()
		g.putHUDRows(row)
		if row+2 == tilemap.HUDTileRows {
			attrs := g.hud.Begin(hudAttributes, attr.RowBytes)
			for i := range attrs {
				attrs[i] = 0xFF
			}
		}
		g.submitHUD()
	}
}

// refreshHearts redraws the health display. A change of one heart writes
// just that heart's four tiles; anything else redraws both rows.
func (g *Game) refreshHearts() {
	g.hud.Reset()
	if d := g.health - g.shown; d == 1 || d == -1 {
		heart := g.health
		if g.shown < heart {
			heart = g.shown
		}
		for r := heartRow; r < heartRow+2; r++ {
			for col := heartColumn + 2*heart; col < heartColumn+2*heart+2; col++ {
				g.hud.Put(hudAddress+uint16(r*tilemap.ScreenWidthTiles+col), g.hudTile(r, col))
			}
		}
	} else {
		g.putHUDRows(heartRow)
	}
	g.submitHUD()
}

func (g *Game) putHUDRows(row int) {
	for r := row; r < row+2; r++ {
		tiles := g.hud.Begin(hudAddress+uint16(r*tilemap.ScreenWidthTiles), tilemap.ScreenWidthTiles)
		for col := range tiles {
			tiles[col] = g.hudTile(r, col)
		}
	}
}

// hudTile returns the screen tile at a HUD-relative row and column
func (g *Game) hudTile(row, col int) uint8 {
	heart := col - heartColumn
	if row < heartRow || row > heartRow+1 || heart < 0 || heart >= 2*g.health {
		return tilemap.BlockTile(cartridge.HUDBlock)
	}
	return tilemap.Block(cartridge.HeartBlock)[(row-heartRow)*2+heart%2]
}

func (g *Game) submitHUD() {
	g.shown = g.health
	g.hud.Terminate()
	g.ppu.SetVRAMUpdate(g.hud.Bytes())
	g.ppu.WaitNMI()
}

// Progress returns the state a save keeps
func (g *Game) Progress() Progress {
	return Progress{
		Player:      g.player,
		Health:      g.health,
		Keys:        g.keys,
		Persistence: g.persistence.Snapshot(),
	}
}

// Restore puts saved progress back and fades over to the saved screen
func (g *Game) Restore(p Progress) {
	g.player = p.Player
	g.health = p.Health
	g.keys = p.Keys
	g.persistence.Restore(p.Persistence)
	g.hurt = 0
	g.onWarp = true

	g.state = transition.Running
	g.controller.Fade()
	g.refreshHearts()
	g.logf("Restored screen %d", g.player.Screen)
}

// State returns the top-level game state
func (g *Game) State() transition.GameState {
	return g.state
}

// Player returns the player position
func (g *Game) Player() transition.Player {
	return g.player
}

// Status is a one-line summary for window captions
func (g *Game) Status() string {
	return fmt.Sprintf("screen %d  sprites %d  hp %d  keys %d  frame %d",
		g.player.Screen, g.sprites.ActiveCount(), g.health, g.keys, g.ppu.GetFrameCount())
}

// SetPhaseObserver forwards transition phase changes, for tests and tracing
func (g *Game) SetPhaseObserver(observer func(transition.Phase)) {
	g.controller.SetPhaseObserver(observer)
}

func (g *Game) logf(format string, args ...interface{}) {
	if g.debug {
		log.Printf("[GAME] "+format, args...)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
