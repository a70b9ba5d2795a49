package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Mutation failure reasons. These are data, not control flow: callers report
// them to the scheduler, which converts them into in-character lines.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrObjectNotFound    = errors.New("object not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrSlotOccupied      = errors.New("slot occupied")
	ErrSlotConstraint    = errors.New("slot constraint violated")
	ErrDuplicateObject   = errors.New("duplicate object id")
	ErrNotMovable        = errors.New("object cannot be carried")
)

// PlannerMode selects which planner fills empty NPC plan queues.
type PlannerMode string

// Planner modes.
const (
	ModeOffline  PlannerMode = "offline"
	ModeAdvanced PlannerMode = "advanced"
)

// Valid reports whether m is a recognized planner mode.
func (m PlannerMode) Valid() bool {
	return m == ModeOffline || m == ModeAdvanced
}

// RefKind names a container location class.
type RefKind string

// Container location classes.
const (
	RefRoom   RefKind = "room"
	RefSheet  RefKind = "sheet"
	RefObject RefKind = "object"
)

// ContainerRef addresses one place an object can rest: a room floor, a
// character inventory, or a container object's sub-slots.
type ContainerRef struct {
	Kind RefKind
	ID   string
}

// RoomRef addresses a room floor.
func RoomRef(roomID string) ContainerRef { return ContainerRef{Kind: RefRoom, ID: roomID} }

// SheetRef addresses a character inventory by stable entity id.
func SheetRef(entityID string) ContainerRef { return ContainerRef{Kind: RefSheet, ID: entityID} }

// ObjectRef addresses a container object's sub-slots.
func ObjectRef(objectID string) ContainerRef { return ContainerRef{Kind: RefObject, ID: objectID} }

// State is the single authoritative mutable world graph. All cross-entity
// mutation passes through its methods so invariants are enforced once.
//
// State's mutators assume non-concurrent access and do not lock internally:
// the caller (the tick scheduler or the session-handling layer) must hold
// Lock for the duration of each discrete operation. Partial granularity is
// not safe because operations like MoveEntity and TransferObject touch two
// rooms or containers atomically.
type State struct {
	mu sync.Mutex

	// Rooms maps room id to room.
	Rooms map[string]*Room
	// Objects maps object id to object, wherever it currently rests.
	Objects map[string]*Object
	// Sheets maps stable entity id to character sheet (players and NPCs).
	Sheets map[string]*CharacterSheet
	// Factions maps faction id to faction.
	Factions map[string]*Faction
	// Mode selects the planner used for empty NPC queues.
	Mode PlannerMode

	// npcIDs maps NPC display name to stable id. First-use creation happens
	// under the world lock so an id is never double-allocated.
	npcIDs map[string]string

	// newID mints stable ids; replaceable in tests for determinism.
	newID func() string
}

// NewState creates an empty world in offline planner mode.
func NewState() *State {
	return &State{
		Rooms:    make(map[string]*Room),
		Objects:  make(map[string]*Object),
		Sheets:   make(map[string]*CharacterSheet),
		Factions: make(map[string]*Faction),
		Mode:     ModeOffline,
		npcIDs:   make(map[string]string),
		newID:    uuid.NewString,
	}
}

// Lock acquires the single-writer boundary. Every discrete mutation or
// consistent multi-read must run between Lock and Unlock.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the single-writer boundary.
func (s *State) Unlock() { s.mu.Unlock() }

// Room returns the room with the given id.
func (s *State) Room(id string) (*Room, bool) {
	r, ok := s.Rooms[id]
	return r, ok
}

// Object returns the object with the given id.
func (s *State) Object(id string) (*Object, bool) {
	o, ok := s.Objects[id]
	return o, ok
}

// Sheet returns the character sheet for a stable entity id.
func (s *State) Sheet(id string) (*CharacterSheet, bool) {
	sh, ok := s.Sheets[id]
	return sh, ok
}

// EntityExists reports whether a stable entity id resolves to a sheet.
func (s *State) EntityExists(id string) bool {
	_, ok := s.Sheets[id]
	return ok
}

// AddRoom registers a room.
//
// Postcondition: returns an error on a duplicate room id.
func (s *State) AddRoom(r *Room) error {
	if _, exists := s.Rooms[r.ID]; exists {
		return fmt.Errorf("world.State.AddRoom: duplicate room id %q", r.ID)
	}
	s.Rooms[r.ID] = r
	return nil
}

// AddObject registers an object and optionally places it on a room floor.
//
// Postcondition: returns ErrDuplicateObject on a duplicate object id and
// ErrRoomNotFound when roomID is non-empty and unknown.
func (s *State) AddObject(o *Object, roomID string) error {
	if _, exists := s.Objects[o.ID]; exists {
		return fmt.Errorf("world.State.AddObject: %w: %q", ErrDuplicateObject, o.ID)
	}
	if roomID != "" {
		room, ok := s.Rooms[roomID]
		if !ok {
			return fmt.Errorf("world.State.AddObject: %w: %q", ErrRoomNotFound, roomID)
		}
		room.Objects[o.ID] = true
	}
	s.Objects[o.ID] = o
	return nil
}

// ResolveNPCID returns the stable id for an NPC display name, creating and
// persisting the mapping on first use. Subsequent calls are idempotent.
func (s *State) ResolveNPCID(name string) string {
	if id, ok := s.npcIDs[name]; ok {
		return id
	}
	id := s.newID()
	s.npcIDs[name] = id
	return id
}

// GetOrCreateNPCSheet lazily creates a default sheet the first time an NPC
// name is referenced.
//
// Postcondition: the returned sheet is registered under the NPC's stable id.
func (s *State) GetOrCreateNPCSheet(name string) *CharacterSheet {
	id := s.ResolveNPCID(name)
	if sheet, ok := s.Sheets[id]; ok {
		return sheet
	}
	sheet := NewNPCSheet(id, name)
	s.Sheets[id] = sheet
	return sheet
}

// MoveEntity relocates an entity to the target room, updating both room
// membership sets and the sheet's room pointer as one step.
//
// Postcondition: on success the entity appears in exactly one room's set and
// the sheet's RoomID matches it; on error nothing changed.
func (s *State) MoveEntity(entityID, targetRoomID string) error {
	sheet, ok := s.Sheets[entityID]
	if !ok {
		return fmt.Errorf("world.State.MoveEntity: %w: %q", ErrEntityNotFound, entityID)
	}
	target, ok := s.Rooms[targetRoomID]
	if !ok {
		return fmt.Errorf("world.State.MoveEntity: %w: %q", ErrRoomNotFound, targetRoomID)
	}

	if old, ok := s.Rooms[sheet.RoomID]; ok {
		delete(old.Players, entityID)
		delete(old.NPCs, entityID)
	}
	if sheet.Kind == KindPlayer {
		target.Players[entityID] = true
	} else {
		target.NPCs[entityID] = true
	}
	sheet.RoomID = targetRoomID
	return nil
}

// TransferObject moves an object from one container location to another.
// toSlot selects the destination slot for sheet and object containers; pass
// a negative slot to auto-select. Rooms ignore toSlot.
//
// Postcondition: on success the object is removed from exactly one place and
// appears in exactly one place — never zero, never two. On error nothing
// changed.
func (s *State) TransferObject(objectID string, from, to ContainerRef, toSlot int) error {
	obj, ok := s.Objects[objectID]
	if !ok {
		return fmt.Errorf("world.State.TransferObject: %w: %q", ErrObjectNotFound, objectID)
	}
	if !s.heldBy(objectID, from) {
		return fmt.Errorf("world.State.TransferObject: %w: %q not in %s %q", ErrObjectNotFound, objectID, from.Kind, from.ID)
	}
	if s.heldBy(objectID, to) {
		return fmt.Errorf("world.State.TransferObject: %w: %q already in %s %q", ErrDuplicateObject, objectID, to.Kind, to.ID)
	}

	// Validate the destination fully before touching the source.
	switch to.Kind {
	case RefRoom:
		if _, ok := s.Rooms[to.ID]; !ok {
			return fmt.Errorf("world.State.TransferObject: %w: %q", ErrRoomNotFound, to.ID)
		}
	case RefSheet:
		sheet, ok := s.Sheets[to.ID]
		if !ok {
			return fmt.Errorf("world.State.TransferObject: %w: %q", ErrContainerNotFound, to.ID)
		}
		if !obj.Movable() {
			return fmt.Errorf("world.State.TransferObject: %w: %q", ErrNotMovable, objectID)
		}
		if toSlot < 0 {
			slot, ok := sheet.Inventory.FreeSlotFor(obj)
			if !ok {
				return fmt.Errorf("world.State.TransferObject: %w: no free slot for %q", ErrSlotConstraint, objectID)
			}
			toSlot = slot
		} else if sheet.Inventory.Slots[toSlot] != "" {
			return fmt.Errorf("world.State.TransferObject: %w: sheet %q slot %d", ErrSlotOccupied, to.ID, toSlot)
		} else if !sheet.Inventory.CanPlace(toSlot, obj) {
			return fmt.Errorf("world.State.TransferObject: %w: %q in slot %d", ErrSlotConstraint, objectID, toSlot)
		}
	case RefObject:
		if err := s.checkContainerSlot(to.ID, toSlot, obj); err != nil {
			return err
		}
	default:
		return fmt.Errorf("world.State.TransferObject: %w: unknown ref kind %q", ErrContainerNotFound, to.Kind)
	}

	s.removeFrom(objectID, from)
	switch to.Kind {
	case RefRoom:
		s.Rooms[to.ID].Objects[objectID] = true
	case RefSheet:
		s.Sheets[to.ID].Inventory.Place(toSlot, objectID)
	case RefObject:
		s.placeInContainer(to.ID, toSlot, objectID)
	}
	return nil
}

// Container object sub-slot indexing: 0–1 small, 2–3 large.
const (
	containerSmallSlots = 2
	containerSlotCount  = 4
)

func (s *State) checkContainerSlot(containerID string, slot int, obj *Object) error {
	holder, ok := s.Objects[containerID]
	if !ok || holder.Container == nil {
		return fmt.Errorf("world.State.TransferObject: %w: %q", ErrContainerNotFound, containerID)
	}
	if !obj.Movable() {
		return fmt.Errorf("world.State.TransferObject: %w: %q", ErrNotMovable, obj.ID)
	}
	if slot < 0 || slot >= containerSlotCount {
		return fmt.Errorf("world.State.TransferObject: %w: container slot %d", ErrSlotConstraint, slot)
	}
	if slot < containerSmallSlots {
		if !obj.HasTag(TagSmall) || obj.HasTag(TagLarge) {
			return fmt.Errorf("world.State.TransferObject: %w: %q in small container slot", ErrSlotConstraint, obj.ID)
		}
		if holder.Container.Small[slot] != "" {
			return fmt.Errorf("world.State.TransferObject: %w: container %q slot %d", ErrSlotOccupied, containerID, slot)
		}
		return nil
	}
	if !obj.HasTag(TagLarge) {
		return fmt.Errorf("world.State.TransferObject: %w: %q in large container slot", ErrSlotConstraint, obj.ID)
	}
	if holder.Container.Large[slot-containerSmallSlots] != "" {
		return fmt.Errorf("world.State.TransferObject: %w: container %q slot %d", ErrSlotOccupied, containerID, slot)
	}
	return nil
}

func (s *State) placeInContainer(containerID string, slot int, objectID string) {
	c := s.Objects[containerID].Container
	if slot < containerSmallSlots {
		c.Small[slot] = objectID
	} else {
		c.Large[slot-containerSmallSlots] = objectID
	}
}

// heldBy reports whether the object currently rests in the given location.
func (s *State) heldBy(objectID string, ref ContainerRef) bool {
	switch ref.Kind {
	case RefRoom:
		room, ok := s.Rooms[ref.ID]
		return ok && room.Objects[objectID]
	case RefSheet:
		sheet, ok := s.Sheets[ref.ID]
		return ok && sheet.Inventory.Contains(objectID)
	case RefObject:
		holder, ok := s.Objects[ref.ID]
		if !ok || holder.Container == nil {
			return false
		}
		for _, id := range holder.Container.Small {
			if id == objectID {
				return true
			}
		}
		for _, id := range holder.Container.Large {
			if id == objectID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// removeFrom detaches the object from a location it is known to occupy.
func (s *State) removeFrom(objectID string, ref ContainerRef) {
	switch ref.Kind {
	case RefRoom:
		delete(s.Rooms[ref.ID].Objects, objectID)
	case RefSheet:
		s.Sheets[ref.ID].Inventory.Remove(objectID)
	case RefObject:
		c := s.Objects[ref.ID].Container
		for i, id := range c.Small {
			if id == objectID {
				c.Small[i] = ""
				return
			}
		}
		for i, id := range c.Large {
			if id == objectID {
				c.Large[i] = ""
				return
			}
		}
	}
}

// FactionOf returns the faction the stable entity id belongs to, or nil.
func (s *State) FactionOf(entityID string) *Faction {
	for _, f := range s.Factions {
		if f.HasMember(entityID) {
			return f
		}
	}
	return nil
}

// AreRivals reports whether two entities belong to mutually or one-way rival
// factions. Entities with no faction, or a faction missing from the faction
// table, never produce rivalry.
func (s *State) AreRivals(entityA, entityB string) bool {
	fa := s.FactionOf(entityA)
	fb := s.FactionOf(entityB)
	if fa == nil || fb == nil {
		return false
	}
	return fa.HasRival(fb.ID) || fb.HasRival(fa.ID)
}

// DoorPermits evaluates a door's lock policy for a mover's stable id.
//
// An unrestricted door admits everyone. A restricted door admits movers on
// the explicit allow-list, or movers satisfying a relationship rule whose
// target entity still exists; a rule pointing at a deleted entity is dead
// and denies.
func (s *State) DoorPermits(moverID string, door *Door) bool {
	if !door.Lock.Restricted() {
		return true
	}
	for _, id := range door.Lock.AllowIDs {
		if id == moverID {
			return true
		}
	}
	mover, ok := s.Sheets[moverID]
	if !ok {
		return false
	}
	for _, rule := range door.Lock.AllowRel {
		if !s.EntityExists(rule.TargetID) {
			continue
		}
		if scoreSatisfies(rule.Type, mover.Ledger.Relationship(rule.TargetID)) {
			return true
		}
	}
	return false
}

// NPCSheets returns all NPC sheets in stable iteration order by id.
//
// Postcondition: returns a non-nil slice (may be empty).
func (s *State) NPCSheets() []*CharacterSheet {
	out := make([]*CharacterSheet, 0, len(s.Sheets))
	for _, sheet := range s.Sheets {
		if sheet.Kind == KindNPC {
			out = append(out, sheet)
		}
	}
	sortSheets(out)
	return out
}

// AllSheets returns every sheet (players and NPCs) sorted by id.
func (s *State) AllSheets() []*CharacterSheet {
	out := make([]*CharacterSheet, 0, len(s.Sheets))
	for _, sheet := range s.Sheets {
		out = append(out, sheet)
	}
	sortSheets(out)
	return out
}

func sortSheets(sheets []*CharacterSheet) {
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].ID < sheets[j].ID })
}

// RemoveEntity deletes a sheet, its room membership, its name mapping, and
// any relationship scores other entities hold toward it.
func (s *State) RemoveEntity(entityID string) error {
	sheet, ok := s.Sheets[entityID]
	if !ok {
		return fmt.Errorf("world.State.RemoveEntity: %w: %q", ErrEntityNotFound, entityID)
	}
	if room, ok := s.Rooms[sheet.RoomID]; ok {
		delete(room.Players, entityID)
		delete(room.NPCs, entityID)
	}
	for name, id := range s.npcIDs {
		if id == entityID {
			delete(s.npcIDs, name)
		}
	}
	for _, other := range s.Sheets {
		other.Ledger.ForgetRelationship(entityID)
	}
	delete(s.Sheets, entityID)
	return nil
}

// Validate checks world-level invariants: door and stair links resolve,
// Travel Points carry valid targets, factions are self-consistent with
// resolvable members, and no object rests in two places.
//
// Postcondition: returns nil or an error describing the first violation.
func (s *State) Validate() error {
	for _, room := range s.Rooms {
		for label, door := range room.Doors {
			if _, ok := s.Rooms[door.TargetRoom]; !ok {
				return fmt.Errorf("room %q: door %q targets unknown room %q", room.ID, label, door.TargetRoom)
			}
		}
		if room.Up != "" {
			if _, ok := s.Rooms[room.Up]; !ok {
				return fmt.Errorf("room %q: up stair targets unknown room %q", room.ID, room.Up)
			}
		}
		if room.Down != "" {
			if _, ok := s.Rooms[room.Down]; !ok {
				return fmt.Errorf("room %q: down stair targets unknown room %q", room.ID, room.Down)
			}
		}
		for objID := range room.Objects {
			obj, ok := s.Objects[objID]
			if !ok {
				return fmt.Errorf("room %q: holds unknown object %q", room.ID, objID)
			}
			if obj.HasTag(TagTravelPoint) {
				if _, ok := s.Rooms[obj.TravelTarget]; !ok {
					return fmt.Errorf("room %q: travel point %q targets unknown room %q", room.ID, obj.ID, obj.TravelTarget)
				}
			}
		}
	}

	for _, f := range s.Factions {
		if err := f.Validate(); err != nil {
			return err
		}
		for _, id := range append(append([]string{}, f.PlayerIDs...), f.NPCIDs...) {
			if !s.EntityExists(id) {
				return fmt.Errorf("faction %q: member %q does not resolve to an entity", f.ID, id)
			}
		}
		for _, id := range f.AllyIDs {
			if _, ok := s.Factions[id]; !ok {
				return fmt.Errorf("faction %q: ally %q does not resolve to a faction", f.ID, id)
			}
		}
		for _, id := range f.RivalIDs {
			if _, ok := s.Factions[id]; !ok {
				return fmt.Errorf("faction %q: rival %q does not resolve to a faction", f.ID, id)
			}
		}
	}

	seen := make(map[string]string)
	record := func(objID, place string) error {
		if prev, dup := seen[objID]; dup {
			return fmt.Errorf("object %q rests in both %s and %s", objID, prev, place)
		}
		seen[objID] = place
		return nil
	}
	for _, room := range s.Rooms {
		for objID := range room.Objects {
			if err := record(objID, "room "+room.ID); err != nil {
				return err
			}
		}
	}
	for _, sheet := range s.Sheets {
		for _, objID := range sheet.Inventory.Items() {
			obj, ok := s.Objects[objID]
			if !ok {
				return fmt.Errorf("sheet %q: holds unknown object %q", sheet.ID, objID)
			}
			if !obj.Movable() {
				return fmt.Errorf("sheet %q: holds unmovable object %q", sheet.ID, objID)
			}
			if err := record(objID, "sheet "+sheet.ID); err != nil {
				return err
			}
		}
	}
	for _, obj := range s.Objects {
		if obj.Container == nil {
			continue
		}
		for _, id := range obj.Container.Small {
			if id != "" {
				if err := record(id, "container "+obj.ID); err != nil {
					return err
				}
			}
		}
		for _, id := range obj.Container.Large {
			if id != "" {
				if err := record(id, "container "+obj.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
