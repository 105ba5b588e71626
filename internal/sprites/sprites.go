// Package sprites turns the placement records of a map into live sprite state.
package sprites

import (
	"fmt"

	"nesmap/internal/tilemap"
)

// Type is the gameplay category of a sprite
type Type uint8

const (
	TypeNothing Type = iota
	TypeHealth
	TypeKey
	TypeRegularEnemy
	TypeInvulnerableEnemy
	TypeGameEnd
	TypeDoor
	TypeLockedDoor
	TypeNPC
	TypeWarpDoor

	// TypeOffscreen marks an empty slot
	TypeOffscreen Type = 0x7F
)

var typeNames = map[Type]string{
	TypeNothing:           "nothing",
	TypeHealth:            "health",
	TypeKey:               "key",
	TypeRegularEnemy:      "enemy",
	TypeInvulnerableEnemy: "invulnerable-enemy",
	TypeGameEnd:           "game-end",
	TypeDoor:              "door",
	TypeLockedDoor:        "locked-door",
	TypeNPC:               "npc",
	TypeWarpDoor:          "warp-door",
	TypeOffscreen:         "offscreen",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Collectible reports whether touching the sprite removes it for good
func (t Type) Collectible() bool {
	return t == TypeHealth || t == TypeKey
}

// TileOffscreen is a tile id the sprite renderer never draws
const TileOffscreen = 0xFF

// Size and palette byte layout
const (
	SizeMask    = 0xC0
	Size8x8     = 0x00
	Size16x16   = 0x40
	PaletteMask = 0x03
)

// Animation types
const (
	AnimationNone uint8 = iota
	AnimationSwap
	AnimationFlicker
)

// Movement types
const (
	MovementNone uint8 = iota
	MovementRandomWander
	MovementLeftRight
)

// Template is one read-only sprite definition
type Template struct {
	TileID        uint8
	Type          Type
	SizePalette   uint8
	Health        uint8
	AnimationType uint8
	MovementType  uint8
	MoveSpeed     uint8
	Damage        uint8
}

// DefaultTemplates is the built-in template table indexed by placement records
var DefaultTemplates = []Template{
	{TileID: 0x00, Type: TypeHealth, SizePalette: Size16x16 | 0, Health: 1},
	{TileID: 0x02, Type: TypeKey, SizePalette: Size16x16 | 1},
	{TileID: 0x04, Type: TypeRegularEnemy, SizePalette: Size16x16 | 2, Health: 2, AnimationType: AnimationSwap, MovementType: MovementRandomWander, MoveSpeed: 4, Damage: 1},
	{TileID: 0x06, Type: TypeInvulnerableEnemy, SizePalette: Size16x16 | 3, AnimationType: AnimationSwap, MovementType: MovementLeftRight, MoveSpeed: 8, Damage: 2},
	{TileID: 0x08, Type: TypeDoor, SizePalette: Size16x16 | 1},
	{TileID: 0x0A, Type: TypeLockedDoor, SizePalette: Size16x16 | 1},
	{TileID: 0x0C, Type: TypeNPC, SizePalette: Size16x16 | 0, AnimationType: AnimationFlicker},
	{TileID: 0x0E, Type: TypeWarpDoor, SizePalette: Size16x16 | 2},
	{TileID: 0x20, Type: TypeGameEnd, SizePalette: Size16x16 | 3},
}

// Sprite is the live state of one map sprite slot. Positions carry
// tilemap.PositionShift fractional bits.
type Sprite struct {
	X, Y uint16
	Template
}

// Active reports whether the slot holds a sprite
func (s *Sprite) Active() bool {
	return s.Type != TypeOffscreen
}

// PixelPosition returns the on-screen position of the sprite's top-left corner
func (s *Sprite) PixelPosition() (x, y int) {
	return int(s.X >> tilemap.PositionShift), int(s.Y >> tilemap.PositionShift)
}

// Set holds one sprite per placement slot of the current map
type Set [tilemap.MaxSprites]Sprite

// VerticalOffset places sprites below the HUD. Sprites render one line lower
// than their OAM Y, so the offset is one pixel short of the HUD height.
const VerticalOffset = (tilemap.HUDPixelHeight - 1) << tilemap.PositionShift

// Load builds live sprite state for screen from the placement records of m.
// Empty slots and slots whose persistence bit is set come back offscreen with
// every other field zeroed.
func Load(m *tilemap.Map, screen int, persistence *Persistence, templates []Template) Set {
	var set Set
	for slot := range set {
		placement, ok := m.Placement(slot)
		if !ok || persistence.Has(screen, slot) {
			set[slot] = Sprite{Template: Template{Type: TypeOffscreen}}
			continue
		}
		if int(placement.Template) >= len(templates) {
			panic(fmt.Sprintf("sprites: slot %d references template %d of %d", slot, placement.Template, len(templates)))
		}
		set[slot] = Sprite{
			X:        uint16(placement.Position&0x0F) << 8,
			Y:        uint16(placement.Position&0xF0)<<4 + VerticalOffset,
			Template: templates[placement.Template],
		}
	}
	return set
}

// ActiveCount returns the number of occupied slots
func (s *Set) ActiveCount() int {
	n := 0
	for i := range s {
		if s[i].Active() {
			n++
		}
	}
	return n
}

// Persistence records which sprites have been removed from each overworld
// screen, one bit per slot. Bits are only ever set.
type Persistence struct {
	bits [Screens]uint16
}

// Screens is the number of overworld screens tracked
const Screens = 64

// Mark records that the sprite in slot on screen is gone for good
func (p *Persistence) Mark(screen, slot int) {
	checkSlot(screen, slot)
	p.bits[screen] |= 1 << uint(slot)
}

// Has reports whether the sprite in slot on screen has been removed
func (p *Persistence) Has(screen, slot int) bool {
	checkSlot(screen, slot)
	return p.bits[screen]&(1<<uint(slot)) != 0
}

// Screen returns the raw bitmask for one screen
func (p *Persistence) Screen(screen int) uint16 {
	checkSlot(screen, 0)
	return p.bits[screen]
}

// Snapshot returns a copy of every screen's bitmask
func (p *Persistence) Snapshot() [Screens]uint16 {
	return p.bits
}

// Restore replaces every bitmask with one taken by Snapshot, for loading a
// saved game
func (p *Persistence) Restore(bits [Screens]uint16) {
	p.bits = bits
}

func checkSlot(screen, slot int) {
	if screen < 0 || screen >= Screens {
		panic(fmt.Sprintf("sprites: screen %d out of range", screen))
	}
	if slot < 0 || slot >= tilemap.MaxSprites {
		panic(fmt.Sprintf("sprites: slot %d out of range", slot))
	}
}
