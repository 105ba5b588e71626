package sprites

import (
	"testing"

	"nesmap/internal/tilemap"
)

func TestLoadScenario(t *testing.T) {
	m := tilemap.FromBytes(nil)
	m.SetPlacement(0, tilemap.Placement{Position: 0x23, Template: 2})

	var persistence Persistence
	set := Load(m, 5, &persistence, DefaultTemplates)

	s := set[0]
	if !s.Active() {
		t.Fatal("slot 0 should be active")
	}
	if s.X != 0x300 {
		t.Errorf("X = %#x, want 0x300", s.X)
	}
	if want := uint16(0x20<<4) + VerticalOffset; s.Y != want {
		t.Errorf("Y = %#x, want %#x", s.Y, want)
	}
	if s.Template != DefaultTemplates[2] {
		t.Errorf("template fields = %+v, want %+v", s.Template, DefaultTemplates[2])
	}

	for slot := 1; slot < tilemap.MaxSprites; slot++ {
		if set[slot].Active() {
			t.Errorf("empty slot %d is active", slot)
		}
	}
}

func TestVerticalOffset(t *testing.T) {
	if VerticalOffset != 752 {
		t.Errorf("VerticalOffset = %d, want 752", VerticalOffset)
	}
}

func TestDecodedPositions(t *testing.T) {
	m := tilemap.FromBytes(nil)
	var persistence Persistence

	for pos := 0; pos < 0xFF; pos++ {
		m.SetPlacement(3, tilemap.Placement{Position: uint8(pos), Template: 0})
		set := Load(m, 0, &persistence, DefaultTemplates)

		wantX := uint16(pos&0x0F) << 8
		wantY := uint16(pos&0xF0)<<4 + VerticalOffset
		if set[3].X != wantX || set[3].Y != wantY {
			t.Fatalf("position %#02x: got (%#x, %#x), want (%#x, %#x)", pos, set[3].X, set[3].Y, wantX, wantY)
		}
	}
}

func TestSentinelSlotAlwaysInactive(t *testing.T) {
	m := tilemap.FromBytes(nil)
	m.SetPlacement(4, tilemap.Placement{Position: tilemap.NoSprite, Template: 2})

	for _, marked := range []bool{false, true} {
		var persistence Persistence
		if marked {
			persistence.Mark(7, 4)
		}
		set := Load(m, 7, &persistence, DefaultTemplates)
		if set[4] != (Sprite{Template: Template{Type: TypeOffscreen}}) {
			t.Errorf("marked=%v: sentinel slot = %+v, want zeroed offscreen", marked, set[4])
		}
	}
}

func TestPersistedSlotInactive(t *testing.T) {
	m := tilemap.FromBytes(nil)
	m.SetPlacement(2, tilemap.Placement{Position: 0x45, Template: 0})
	m.SetPlacement(3, tilemap.Placement{Position: 0x46, Template: 1})

	var persistence Persistence
	persistence.Mark(9, 2)

	set := Load(m, 9, &persistence, DefaultTemplates)
	if set[2].Active() || set[2].X != 0 || set[2].Y != 0 {
		t.Errorf("persisted slot = %+v, want offscreen with no position", set[2])
	}
	if !set[3].Active() {
		t.Error("neighbouring slot should stay active")
	}

	// The mark only applies to its own screen
	other := Load(m, 10, &persistence, DefaultTemplates)
	if !other[2].Active() {
		t.Error("persistence bit leaked to another screen")
	}
}

func TestPersistence(t *testing.T) {
	var p Persistence
	p.Mark(63, 11)
	p.Mark(63, 0)

	if !p.Has(63, 11) || !p.Has(63, 0) || p.Has(63, 5) {
		t.Errorf("Screen(63) = %016b", p.Screen(63))
	}
	if p.Screen(63) != 1<<11|1 {
		t.Errorf("Screen(63) = %#x, want %#x", p.Screen(63), 1<<11|1)
	}
}

func TestPersistenceOutOfRangePanics(t *testing.T) {
	tests := []struct {
		name         string
		screen, slot int
	}{
		{"screen", 64, 0},
		{"slot", 0, tilemap.MaxSprites},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			var p Persistence
			p.Mark(tt.screen, tt.slot)
		})
	}
}

func TestUnknownTemplatePanics(t *testing.T) {
	m := tilemap.FromBytes(nil)
	m.SetPlacement(0, tilemap.Placement{Position: 0x11, Template: 200})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for template out of range")
		}
	}()
	var p Persistence
	Load(m, 0, &p, DefaultTemplates)
}

func TestActiveCount(t *testing.T) {
	m := tilemap.FromBytes(nil)
	m.SetPlacement(0, tilemap.Placement{Position: 0x11, Template: 0})
	m.SetPlacement(5, tilemap.Placement{Position: 0x22, Template: 7})

	var p Persistence
	set := Load(m, 0, &p, DefaultTemplates)
	if set.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", set.ActiveCount())
	}
	if set[5].Type != TypeWarpDoor {
		t.Errorf("slot 5 type = %v, want warp-door", set[5].Type)
	}
}

func TestPersistenceSnapshotRestore(t *testing.T) {
	var p Persistence
	p.Mark(3, 1)
	p.Mark(63, 11)

	var q Persistence
	q.Restore(p.Snapshot())
	if !q.Has(3, 1) || !q.Has(63, 11) {
		t.Error("restored persistence lost a mark")
	}
	if q.Has(3, 0) {
		t.Error("restored persistence gained a mark")
	}
}
