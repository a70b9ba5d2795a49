package world

// Inventory slot layout: 2 hand slots accepting anything movable, 4 small
// slots requiring the "small" tag, 2 large slots requiring the "large" tag.
const (
	SlotHandFirst  = 0
	SlotHandLast   = 1
	SlotSmallFirst = 2
	SlotSmallLast  = 5
	SlotLargeFirst = 6
	SlotLargeLast  = 7
	NumSlots       = 8
)

// Inventory is the fixed 8-slot carry space of a character sheet. Slot
// entries hold object ids; "" is empty.
//
// Invariant: no object id appears in more than one slot, and every placement
// passed CanPlace at the moment it was made.
type Inventory struct {
	Slots [NumSlots]string `yaml:"slots" json:"slots"`
}

// CanPlace reports whether obj may occupy slot index idx. Immovable and
// Travel Point objects are rejected everywhere; small slots reject "large"
// objects and require the "small" tag; large slots require "large".
func (inv *Inventory) CanPlace(idx int, obj *Object) bool {
	if idx < 0 || idx >= NumSlots || obj == nil || !obj.Movable() {
		return false
	}
	if inv.Slots[idx] != "" {
		return false
	}
	switch {
	case idx <= SlotHandLast:
		return true
	case idx <= SlotSmallLast:
		return obj.HasTag(TagSmall) && !obj.HasTag(TagLarge)
	default:
		return obj.HasTag(TagLarge)
	}
}

// FreeSlotFor returns the preferred free slot index for obj: large objects
// try hands first and then the large slots; small objects try the small
// slots and fall back to hands; everything else goes in a hand.
//
// Postcondition: returns (idx, true) with CanPlace(idx, obj) holding, or
// (0, false) when nothing fits.
func (inv *Inventory) FreeSlotFor(obj *Object) (int, bool) {
	if obj == nil || !obj.Movable() {
		return 0, false
	}
	var order []int
	switch {
	case obj.HasTag(TagLarge):
		order = []int{SlotHandFirst, SlotHandLast, SlotLargeFirst, SlotLargeLast}
	case obj.HasTag(TagSmall):
		order = []int{SlotSmallFirst, SlotSmallFirst + 1, SlotSmallFirst + 2, SlotSmallLast, SlotHandFirst, SlotHandLast}
	default:
		order = []int{SlotHandFirst, SlotHandLast}
	}
	for _, idx := range order {
		if inv.CanPlace(idx, obj) {
			return idx, true
		}
	}
	return 0, false
}

// Place stores the object id at idx.
//
// Precondition: CanPlace(idx, obj) must have held for the object with this id.
func (inv *Inventory) Place(idx int, objectID string) {
	inv.Slots[idx] = objectID
}

// Remove clears the slot holding objectID and returns its index.
//
// Postcondition: returns (idx, true) if the id was present, (0, false)
// otherwise.
func (inv *Inventory) Remove(objectID string) (int, bool) {
	if objectID == "" {
		return 0, false
	}
	for i, id := range inv.Slots {
		if id == objectID {
			inv.Slots[i] = ""
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether objectID occupies any slot.
func (inv *Inventory) Contains(objectID string) bool {
	if objectID == "" {
		return false
	}
	for _, id := range inv.Slots {
		if id == objectID {
			return true
		}
	}
	return false
}

// Items returns the ids of all held objects in slot order.
//
// Postcondition: returns a non-nil slice (may be empty).
func (inv *Inventory) Items() []string {
	items := make([]string, 0, NumSlots)
	for _, id := range inv.Slots {
		if id != "" {
			items = append(items, id)
		}
	}
	return items
}
