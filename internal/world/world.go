// Package world stores the overworld: 64 screens laid out on an 8x8 grid,
// each one a tilemap.Map.
package world

import (
	"fmt"
	"math/rand"

	"nesmap/internal/archive"
	"nesmap/internal/sprites"
	"nesmap/internal/tilemap"
	"nesmap/internal/transition"
)

const (
	Screens  = sprites.Screens
	GridSize = 8
	PackSize = Screens * tilemap.Size
)

// Tile ids used by the generated world
const (
	TileGrass   uint8 = 0
	TileFlowers uint8 = 1
	TileSand    uint8 = 2
	TilePath    uint8 = 3
	TileWall    uint8 = 8
	TileTree    uint8 = 9
	TileRock    uint8 = 10
	TileWater   uint8 = 11
)

// Tile ids from TileWall up to lastSolid block movement
const lastSolid = 15

// Solid reports whether the player is blocked by a tile byte
func Solid(tile uint8) bool {
	id := tile & 0x3F
	return id >= TileWall && id <= lastSolid
}

// FormatError reports a world pack that cannot be used
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("world %s: %s", e.Path, e.Reason)
}

// World is the full set of overworld screens
type World struct {
	screens [Screens]tilemap.Map
}

// Load reads a world pack of 64 consecutive 256-byte screens. The file may be
// gzip compressed or the first entry of a zip or 7z archive.
func Load(path string) (*World, error) {
	data, err := archive.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world: %v", err)
	}
	return FromBytes(path, data)
}

// FromBytes builds a world from a raw pack. name is only used in errors.
func FromBytes(name string, data []byte) (*World, error) {
	if len(data) != PackSize {
		return nil, &FormatError{Path: name, Reason: fmt.Sprintf("pack is %d bytes, want %d", len(data), PackSize)}
	}

	w := &World{}
	for screen := range w.screens {
		copy(w.screens[screen][:], data[screen*tilemap.Size:])
		if err := w.validate(screen); err != nil {
			return nil, &FormatError{Path: name, Reason: err.Error()}
		}
	}
	return w, nil
}

func (w *World) validate(screen int) error {
	m := &w.screens[screen]
	for slot := 0; slot < tilemap.MaxSprites; slot++ {
		p, ok := m.Placement(slot)
		if !ok {
			continue
		}
		if int(p.Template) >= len(sprites.DefaultTemplates) {
			return fmt.Errorf("screen %d slot %d references unknown template %d", screen, slot, p.Template)
		}
		if p.Position>>4 >= tilemap.Height {
			return fmt.Errorf("screen %d slot %d is placed below the map", screen, slot)
		}
	}
	return nil
}

// Bytes returns the raw pack
func (w *World) Bytes() []byte {
	out := make([]byte, 0, PackSize)
	for i := range w.screens {
		out = append(out, w.screens[i][:]...)
	}
	return out
}

// Map returns the map for a screen. The map is shared, callers copy it
// before modifying.
func (w *World) Map(screen int) *tilemap.Map {
	if screen < 0 || screen >= Screens {
		panic(fmt.Sprintf("world: screen %d out of range", screen))
	}
	return &w.screens[screen]
}

// Neighbor returns the screen reached by leaving screen in direction d.
// ok is false at the edge of the world.
func Neighbor(screen int, d transition.Direction) (next int, ok bool) {
	x, y := screen%GridSize, screen/GridSize
	switch d {
	case transition.Up:
		y--
	case transition.Down:
		y++
	case transition.Left:
		x--
	case transition.Right:
		x++
	}
	if x < 0 || x >= GridSize || y < 0 || y >= GridSize {
		return screen, false
	}
	return y*GridSize + x, true
}

// WarpTarget returns the next screen after screen, in index order and
// wrapping around, that holds a warp door
func (w *World) WarpTarget(screen int) (target int, ok bool) {
	for i := 1; i < Screens; i++ {
		candidate := (screen + i) % Screens
		if w.hasWarpDoor(candidate) {
			return candidate, true
		}
	}
	return screen, false
}

func (w *World) hasWarpDoor(screen int) bool {
	m := &w.screens[screen]
	for slot := 0; slot < tilemap.MaxSprites; slot++ {
		p, ok := m.Placement(slot)
		if ok && sprites.DefaultTemplates[p.Template].Type == sprites.TypeWarpDoor {
			return true
		}
	}
	return false
}

// Template indices into sprites.DefaultTemplates used by the generator
const (
	templateHealth   = 0
	templateKey      = 1
	templateEnemy    = 2
	templateGuard    = 3
	templateNPC      = 6
	templateWarpDoor = 7
)

// Generate builds a deterministic demo world. Every screen is walled in with
// openings towards its neighbours; every eighth screen holds a warp door.
func Generate(seed int64) *World {
	rng := rand.New(rand.NewSource(seed))
	w := &World{}

	for screen := range w.screens {
		m := tilemap.FromBytes(nil)
		ground := uint8(rng.Intn(4))

		for i := 0; i < tilemap.TileCount; i++ {
			id, palette := TileGrass, ground
			switch n := rng.Intn(20); {
			case n == 0:
				id, palette = TileTree, 1
			case n == 1:
				id, palette = TileRock, 2
			case n < 4:
				id = TileFlowers
			case n < 6:
				id = TileSand
			}
			m.SetTile(i, id, palette)
		}

		w.wallIn(m, screen)
		w.placeSprites(m, screen, rng)
		w.screens[screen] = *m
	}
	return w
}

// wallIn draws the border and cuts a path-tiled opening wherever a neighbour exists
func (w *World) wallIn(m *tilemap.Map, screen int) {
	for i := 0; i < tilemap.TileCount; i++ {
		x, y := i%tilemap.Width, i/tilemap.Width
		if x != 0 && x != tilemap.Width-1 && y != 0 && y != tilemap.Height-1 {
			continue
		}

		var d transition.Direction
		var opening bool
		switch {
		case x == 0:
			d, opening = transition.Left, y == 5 || y == 6
		case x == tilemap.Width-1:
			d, opening = transition.Right, y == 5 || y == 6
		case y == 0:
			d, opening = transition.Up, x == 7 || x == 8
		default:
			d, opening = transition.Down, x == 7 || x == 8
		}

		if _, ok := Neighbor(screen, d); ok && opening {
			m.SetTile(i, TilePath, 3)
		} else {
			m.SetTile(i, TileWall, 1)
		}
	}
}

func (w *World) placeSprites(m *tilemap.Map, screen int, rng *rand.Rand) {
	slot := 0
	place := func(template uint8) {
		// Interior cells only, clear of the border walls
		x := 2 + rng.Intn(tilemap.Width-4)
		y := 2 + rng.Intn(tilemap.Height-4)
		m.SetTile(y*tilemap.Width+x, TileGrass, m.Palette(y*tilemap.Width+x))
		m.SetPlacement(slot, tilemap.Placement{Position: uint8(y<<4 | x), Template: template})
		slot++
	}

	if screen%8 == 3 {
		place(templateWarpDoor)
	}
	for n := rng.Intn(3); n > 0; n-- {
		place(templateEnemy)
	}
	if rng.Intn(3) == 0 {
		place(templateGuard)
	}
	if rng.Intn(2) == 0 {
		place(templateHealth)
	}
	if rng.Intn(4) == 0 {
		place(templateKey)
	}
	if rng.Intn(5) == 0 {
		place(templateNPC)
	}
}
