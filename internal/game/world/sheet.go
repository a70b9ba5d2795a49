package world

import (
	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/memory"
	"github.com/cory-johannsen/hearth/internal/game/needs"
)

// EntityKind distinguishes players from NPCs on a shared sheet shape.
type EntityKind string

// Entity kinds.
const (
	KindPlayer EntityKind = "player"
	KindNPC    EntityKind = "npc"
)

// DefaultActionPoints is the per-tick action budget granted to a fresh NPC.
const DefaultActionPoints = 3

// CharacterSheet is the shared stat block for players and NPCs.
//
// All cross-entity references (ownership, relationships, factions) use the
// stable ID, never a volatile session reference: sessions disconnect and
// reconnect, but ownership must persist.
//
// Invariant: SleepTicksRemaining > 0 if and only if SleepingBedID != "";
// the consistency guard repairs any divergence.
type CharacterSheet struct {
	// ID is the stable entity id.
	ID string `yaml:"id" json:"id"`
	// Kind is player or npc.
	Kind EntityKind `yaml:"kind" json:"kind"`
	// Name is the display name. NPCs are addressed by name in-world.
	Name string `yaml:"name" json:"name"`
	// Description is free text; autonomy rules inspect it (e.g. "merchant").
	Description string `yaml:"description" json:"description"`
	// RoomID is the current room.
	RoomID string `yaml:"room_id" json:"room_id"`
	// Inventory is the fixed 8-slot carry space.
	Inventory Inventory `yaml:"inventory" json:"inventory"`
	// Currency is liquid wealth.
	Currency int `yaml:"currency" json:"currency"`
	// Needs is the 0–100 gauge block.
	Needs needs.Needs `yaml:"needs" json:"needs"`
	// Personality is the static trait block.
	Personality needs.Personality `yaml:"personality" json:"personality"`
	// SleepTicksRemaining counts down while the entity sleeps.
	SleepTicksRemaining int `yaml:"sleep_ticks_remaining" json:"sleep_ticks_remaining"`
	// SleepingBedID is the claimed bed object id while sleeping.
	SleepingBedID string `yaml:"sleeping_bed_id" json:"sleeping_bed_id"`
	// ActionPoints is the bounded per-tick action budget (NPCs only).
	ActionPoints int `yaml:"action_points" json:"action_points"`
	// PlanQueue is the ordered list of pending actions.
	PlanQueue []action.Queued `yaml:"plan_queue" json:"plan_queue"`
	// Ledger holds bounded memories and relationship scores.
	Ledger memory.Ledger `yaml:"ledger" json:"ledger"`
	// Hostile marks the entity as a threat to low-safety NPCs.
	Hostile bool `yaml:"hostile" json:"hostile"`
	// Guard marks the NPC as guard-like for safety assessment.
	Guard bool `yaml:"guard" json:"guard"`
	// NeedsHelp marks a player as looking for assistance.
	NeedsHelp bool `yaml:"needs_help" json:"needs_help"`
}

// NewNPCSheet creates a default NPC sheet with satisfied needs, neutral
// personality, and a full action budget.
func NewNPCSheet(id, name string) *CharacterSheet {
	return &CharacterSheet{
		ID:           id,
		Kind:         KindNPC,
		Name:         name,
		Needs:        needs.Defaults(),
		Personality:  needs.DefaultPersonality(),
		ActionPoints: DefaultActionPoints,
	}
}

// NewPlayerSheet creates a default player sheet bound to a stable account id.
func NewPlayerSheet(accountID, name string) *CharacterSheet {
	return &CharacterSheet{
		ID:          accountID,
		Kind:        KindPlayer,
		Name:        name,
		Needs:       needs.Defaults(),
		Personality: needs.DefaultPersonality(),
	}
}

// Sleeping reports whether the sheet is currently in a sleep cycle.
func (s *CharacterSheet) Sleeping() bool {
	return s.SleepTicksRemaining > 0
}

// EnqueuePlan appends queued actions to the plan queue in order.
func (s *CharacterSheet) EnqueuePlan(actions ...action.Queued) {
	s.PlanQueue = append(s.PlanQueue, actions...)
}

// DequeuePlan pops the next queued action in FIFO order.
//
// Postcondition: returns (entry, true) and shrinks the queue, or
// (action.Queued{}, false) when the queue is empty.
func (s *CharacterSheet) DequeuePlan() (action.Queued, bool) {
	if len(s.PlanQueue) == 0 {
		return action.Queued{}, false
	}
	next := s.PlanQueue[0]
	s.PlanQueue = s.PlanQueue[1:]
	return next, true
}

// ClearPlan empties the plan queue.
func (s *CharacterSheet) ClearPlan() {
	s.PlanQueue = nil
}
