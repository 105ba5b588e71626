package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash"

	"nesmap/internal/sprites"
	"nesmap/internal/transition"
)

const saveStateVersion = "1.0"

// StateManager manages save states
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// SaveState is a saved game
type SaveState struct {
	// Metadata
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	WorldName     string    `json:"world_name"`
	WorldChecksum string    `json:"world_checksum"`
	SlotNumber    int       `json:"slot_number"`
	Description   string    `json:"description"`

	Player      PlayerData `json:"player"`
	Health      int        `json:"health"`
	Keys        int        `json:"keys"`
	Persistence []uint16   `json:"persistence"`
}

// PlayerData is the player position in a save file
type PlayerData struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
	Screen    int    `json:"screen"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates a new state manager
func NewStateManager(saveDirectory string) *StateManager {
	return &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      10,
	}
}

func (sm *StateManager) initialize() error {
	if sm.initialized {
		return nil
	}
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}
	sm.initialized = true
	return nil
}

// SaveState writes progress to a slot. world is the raw pack the progress
// belongs to.
func (sm *StateManager) SaveState(progress Progress, slot int, worldName string, world []byte) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if err := sm.initialize(); err != nil {
		return err
	}

	now := time.Now()
	state := &SaveState{
		Version:       saveStateVersion,
		Timestamp:     now,
		WorldName:     worldName,
		WorldChecksum: worldChecksum(world),
		SlotNumber:    slot,
		Description:   fmt.Sprintf("Screen %d, %s", progress.Player.Screen, now.Format("2006-01-02 15:04:05")),
		Player: PlayerData{
			X:         progress.Player.X,
			Y:         progress.Player.Y,
			Direction: progress.Player.Direction.String(),
			Screen:    progress.Player.Screen,
		},
		Health:      progress.Health,
		Keys:        progress.Keys,
		Persistence: progress.Persistence[:],
	}

	if err := sm.saveToFile(state, sm.getSlotFilePath(slot, worldName)); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}
	return nil
}

// LoadState reads progress from a slot, refusing saves made on another world
func (sm *StateManager) LoadState(slot int, worldName string, world []byte) (Progress, error) {
	if err := sm.checkSlot(slot); err != nil {
		return Progress{}, err
	}

	filePath := sm.getSlotFilePath(slot, worldName)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return Progress{}, fmt.Errorf("save state not found in slot %d", slot)
	}

	state, err := sm.loadFromFile(filePath)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to load state: %v", err)
	}

	if err := sm.validateSaveState(state, world); err != nil {
		return Progress{}, fmt.Errorf("invalid save state: %v", err)
	}

	return state.progress()
}

func (sm *StateManager) checkSlot(slot int) error {
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	return nil
}

func (sm *StateManager) saveToFile(state *SaveState, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %v", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %v", err)
	}
	return nil
}

func (sm *StateManager) loadFromFile(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}

	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %v", err)
	}
	return &state, nil
}

func (sm *StateManager) validateSaveState(state *SaveState, world []byte) error {
	if state.Version == "" {
		return fmt.Errorf("missing version information")
	}
	if state.WorldChecksum != worldChecksum(world) {
		return fmt.Errorf("save state is for a different world")
	}
	if len(state.Persistence) != sprites.Screens {
		return fmt.Errorf("persistence holds %d screens, want %d", len(state.Persistence), sprites.Screens)
	}
	if state.Player.Screen < 0 || state.Player.Screen >= sprites.Screens {
		return fmt.Errorf("player screen %d out of range", state.Player.Screen)
	}
	return nil
}

func (s *SaveState) progress() (Progress, error) {
	direction, err := parseDirection(s.Player.Direction)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{
		Player: transition.Player{
			X:         s.Player.X,
			Y:         s.Player.Y,
			Direction: direction,
			Screen:    s.Player.Screen,
		},
		Health: s.Health,
		Keys:   s.Keys,
	}
	copy(p.Persistence[:], s.Persistence)
	return p, nil
}

func parseDirection(name string) (transition.Direction, error) {
	for d := transition.Up; d <= transition.Right; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", name)
}

func (sm *StateManager) getSlotFilePath(slot int, worldName string) string {
	base := filepath.Base(worldName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "world"
	}
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s_slot_%d.save", base, slot))
}

// worldChecksum identifies a world pack independent of its file name
func worldChecksum(world []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(world))
}

// GetSlotInfo returns information about all save slots
func (sm *StateManager) GetSlotInfo(worldName string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)
	for i := range slots {
		path := sm.getSlotFilePath(i, worldName)
		slots[i] = StateSlotInfo{SlotNumber: i, FilePath: path}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		slots[i].Used = true
		slots[i].FileSize = info.Size()

		if state, err := sm.loadFromFile(path); err == nil {
			slots[i].Timestamp = state.Timestamp
			slots[i].Description = state.Description
		}
	}
	return slots
}

// DeleteState removes a save state
func (sm *StateManager) DeleteState(slot int, worldName string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}

	path := sm.getSlotFilePath(slot, worldName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no save state in slot %d", slot)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete save state: %v", err)
	}
	return nil
}

// HasSaveState checks if a save state exists in the slot
func (sm *StateManager) HasSaveState(slot int, worldName string) bool {
	if sm.checkSlot(slot) != nil {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, worldName))
	return err == nil
}

// GetMaxSlots returns the maximum number of save slots
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// SetMaxSlots sets the maximum number of save slots
func (sm *StateManager) SetMaxSlots(slots int) {
	if slots > 0 {
		sm.maxSlots = slots
	}
}

// GetSaveDirectory returns the save directory path
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}
