// Package world provides the authoritative in-memory game world: rooms,
// objects, character sheets, factions, and the mutation primitives that keep
// them coherent under the single-writer discipline.
package world

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/hearth/internal/game/needs"
)

// Capability tags with engine-level meaning. The tag set is free-form; these
// are the values the engine inspects.
const (
	TagSmall       = "small"
	TagLarge       = "large"
	TagWeapon      = "weapon"
	TagImmovable   = "Immovable"
	TagTravelPoint = "Travel Point"
	TagBed         = "Bed"
	TagContainer   = "Container"
)

// ContainerSlots is the sub-slot layout of a container object: 2 small + 2
// large, with opened/searched flags. Slot entries hold object ids; "" is empty.
type ContainerSlots struct {
	Small    [2]string `yaml:"small" json:"small"`
	Large    [2]string `yaml:"large" json:"large"`
	Opened   bool      `yaml:"opened" json:"opened"`
	Searched bool      `yaml:"searched" json:"searched"`
}

// Object is a physical thing in the world: carried, placed in a room, or
// nested in a container.
type Object struct {
	// ID is the stable object identifier.
	ID string `yaml:"id" json:"id"`
	// Name is the display name.
	Name string `yaml:"name" json:"name"`
	// Description is shown on examination.
	Description string `yaml:"description" json:"description"`
	// Tags is the free-form capability tag set.
	Tags []string `yaml:"tags" json:"tags"`
	// Value is the object's worth in currency.
	Value float64 `yaml:"value" json:"value"`
	// Durability and Quality are optional condition gauges.
	Durability float64 `yaml:"durability" json:"durability"`
	Quality    float64 `yaml:"quality" json:"quality"`
	// OwnerID is the stable id of the owning player or NPC; "" means unowned.
	OwnerID string `yaml:"owner_id" json:"owner_id"`
	// FactionOwner is the owning faction id; "" means none.
	FactionOwner string `yaml:"faction_owner" json:"faction_owner"`
	// CraftInputs and SalvageOutputs name related object templates.
	CraftInputs    []string `yaml:"craft_inputs" json:"craft_inputs"`
	SalvageOutputs []string `yaml:"salvage_outputs" json:"salvage_outputs"`
	// Container is non-nil when the object carries sub-slots.
	Container *ContainerSlots `yaml:"container" json:"container"`
	// TravelTarget is the destination room id for Travel Point objects.
	TravelTarget string `yaml:"travel_target" json:"travel_target"`
	// LegacySatiation and LegacyHydration are the pre-tag nutrition fields.
	// needs.NutritionOf defines the precedence between them and the tag set.
	LegacySatiation float64 `yaml:"legacy_satiation" json:"legacy_satiation"`
	LegacyHydration float64 `yaml:"legacy_hydration" json:"legacy_hydration"`
}

// HasTag reports whether the object's tag set contains tag exactly.
func (o *Object) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Movable reports whether the object may occupy an inventory slot.
// Immovable and Travel Point objects never can.
func (o *Object) Movable() bool {
	return !o.HasTag(TagImmovable) && !o.HasTag(TagTravelPoint)
}

// Nutrition returns the (satiation, hydration) the object provides when
// consumed, applying the tag-over-legacy precedence rule.
func (o *Object) Nutrition() (satiation, hydration float64) {
	return needs.NutritionOf(o.Tags, o.LegacySatiation, o.LegacyHydration)
}

// Nutritious reports whether consuming the object restores any need.
func (o *Object) Nutritious() bool {
	sat, hyd := o.Nutrition()
	return sat > 0 || hyd > 0
}

// RelRule is a relationship-based door allowance: the mover passes when its
// relationship score toward TargetID meets the threshold for Type.
//
// Invariant: a rule is only honored while TargetID resolves to an existing
// entity; rules pointing at deleted entities deny passage.
type RelRule struct {
	// Type is the required relationship tier: "friend" or "ally".
	Type string `yaml:"type" json:"type"`
	// TargetID is the stable id the mover's relationship is measured toward.
	TargetID string `yaml:"to" json:"to"`
}

// Relationship score thresholds per rule type.
const (
	friendThreshold = 25
	allyThreshold   = 75
)

// scoreSatisfies reports whether score meets the tier named by ruleType.
// Unknown tiers never pass.
func scoreSatisfies(ruleType string, score int) bool {
	switch strings.ToLower(ruleType) {
	case "friend":
		return score >= friendThreshold
	case "ally":
		return score >= allyThreshold
	default:
		return false
	}
}

// LockPolicy restricts passage through a door. An empty policy (no ids, no
// rules) admits everyone; a non-empty policy admits only movers matching an
// explicit id or a satisfied relationship rule.
type LockPolicy struct {
	AllowIDs []string  `yaml:"allow_ids" json:"allow_ids"`
	AllowRel []RelRule `yaml:"allow_rel" json:"allow_rel"`
}

// Restricted reports whether the policy limits passage at all.
func (p *LockPolicy) Restricted() bool {
	return p != nil && (len(p.AllowIDs) > 0 || len(p.AllowRel) > 0)
}

// Door is a labeled passage from one room to another.
type Door struct {
	// Label is the door's display name ("oak door", "north gate").
	Label string `yaml:"label" json:"label"`
	// TargetRoom is the destination room id.
	TargetRoom string `yaml:"target" json:"target"`
	// Lock is the optional lock policy; nil means unlocked.
	Lock *LockPolicy `yaml:"lock" json:"lock"`
}

// Room is one location in the world.
//
// Invariant: every door and stair link resolves to an existing room id, and
// every Travel Point object present carries a valid target room id; violations
// are reported by State.Validate as broken links.
type Room struct {
	// ID is the unique room key.
	ID string `yaml:"id" json:"id"`
	// Description is the free-text room description.
	Description string `yaml:"description" json:"description"`
	// Players is the set of stable player ids present. The session layer maps
	// volatile session refs onto these ids.
	Players map[string]bool `yaml:"players" json:"players"`
	// NPCs is the set of NPC stable ids present.
	NPCs map[string]bool `yaml:"npcs" json:"npcs"`
	// Doors maps door label to door.
	Doors map[string]*Door `yaml:"doors" json:"doors"`
	// Up and Down are optional stair links to room ids.
	Up   string `yaml:"up" json:"up"`
	Down string `yaml:"down" json:"down"`
	// Objects is the set of object ids physically present.
	Objects map[string]bool `yaml:"objects" json:"objects"`
}

// NewRoom creates an empty room with initialized sets.
func NewRoom(id, description string) *Room {
	return &Room{
		ID:          id,
		Description: description,
		Players:     make(map[string]bool),
		NPCs:        make(map[string]bool),
		Doors:       make(map[string]*Door),
		Objects:     make(map[string]bool),
	}
}

// OccupantCount returns the number of players and NPCs in the room.
func (r *Room) OccupantCount() int {
	return len(r.Players) + len(r.NPCs)
}

// Faction groups players and NPCs with shared allies and rivals.
//
// Invariant: a faction never lists itself as ally or rival, and no pair of
// factions is simultaneously ally and rival.
type Faction struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	PlayerIDs   []string `yaml:"player_ids" json:"player_ids"`
	NPCIDs      []string `yaml:"npc_ids" json:"npc_ids"`
	AllyIDs     []string `yaml:"ally_ids" json:"ally_ids"`
	RivalIDs    []string `yaml:"rival_ids" json:"rival_ids"`
}

// Validate checks the faction's self-referential invariants.
//
// Postcondition: nil return guarantees the faction does not ally or rival
// itself and no id appears in both the ally and rival lists.
func (f *Faction) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("faction ID must not be empty")
	}
	rivals := make(map[string]bool, len(f.RivalIDs))
	for _, id := range f.RivalIDs {
		if id == f.ID {
			return fmt.Errorf("faction %q lists itself as rival", f.ID)
		}
		rivals[id] = true
	}
	for _, id := range f.AllyIDs {
		if id == f.ID {
			return fmt.Errorf("faction %q lists itself as ally", f.ID)
		}
		if rivals[id] {
			return fmt.Errorf("faction %q lists %q as both ally and rival", f.ID, id)
		}
	}
	return nil
}

// HasRival reports whether otherID is in the faction's rival list.
func (f *Faction) HasRival(otherID string) bool {
	for _, id := range f.RivalIDs {
		if id == otherID {
			return true
		}
	}
	return false
}

// HasMember reports whether the stable entity id is a member (player or NPC).
func (f *Faction) HasMember(entityID string) bool {
	for _, id := range f.PlayerIDs {
		if id == entityID {
			return true
		}
	}
	for _, id := range f.NPCIDs {
		if id == entityID {
			return true
		}
	}
	return false
}
