package autonomy

import (
	"sort"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

// Thresholds are the need levels below which (strictly) the offline planner
// reacts. Values at exactly the threshold do not trigger.
type Thresholds struct {
	Hunger        float64
	Thirst        float64
	Socialization float64
	Sleep         float64
}

// DefaultThresholds returns the standard 25-point trigger levels.
func DefaultThresholds() Thresholds {
	return Thresholds{Hunger: 25, Thirst: 25, Socialization: 25, Sleep: 25}
}

// OfflinePlanner is the deterministic rule-based planner used when no
// advanced planner is configured, enabled, or reachable.
//
// The band ordering is load-bearing: safety preempts everything (band 1
// short-circuits), bands 2, 3, 5, and 6 are additive, and bands 4 and 7
// only fire while the queue is still empty.
type OfflinePlanner struct {
	thresholds Thresholds
}

// NewOfflinePlanner constructs an OfflinePlanner. Zero-valued thresholds are
// replaced with the defaults.
func NewOfflinePlanner(t Thresholds) *OfflinePlanner {
	d := DefaultThresholds()
	if t.Hunger == 0 {
		t.Hunger = d.Hunger
	}
	if t.Thirst == 0 {
		t.Thirst = d.Thirst
	}
	if t.Socialization == 0 {
		t.Socialization = d.Socialization
	}
	if t.Sleep == 0 {
		t.Sleep = d.Sleep
	}
	return &OfflinePlanner{thresholds: t}
}

// Plan produces an ordered, executable action queue for one NPC.
//
// Precondition: the caller must hold the world lock; s and npc must not be nil.
// Postcondition: returns a non-empty queue (the final band queues do_nothing
// when nothing else fired); world state is unchanged.
func (p *OfflinePlanner) Plan(s *world.State, npc *world.CharacterSheet) []action.Queued {
	room, ok := s.Room(npc.RoomID)
	if !ok {
		return []action.Queued{action.New(action.DoNothing)}
	}

	var queue []action.Queued

	// Band 1: safety preempts all lower bands.
	if npc.Needs.Safety < 30 {
		if doors := sortedDoors(room); len(doors) > 0 {
			return []action.Queued{action.New(action.MoveThrough, "door", doors[0])}
		}
	}

	// Band 2: hunger.
	if npc.Needs.Hunger < p.thresholds.Hunger {
		queue = append(queue, p.nourishmentActions(s, npc, room, wantFood)...)
	}

	// Band 3: thirst.
	if npc.Needs.Thirst < p.thresholds.Thirst {
		queue = append(queue, p.nourishmentActions(s, npc, room, wantDrink)...)
	}

	// Band 4: idle curiosity, only while nothing is queued yet.
	if len(queue) == 0 && npc.Personality.Curiosity > 60 && npc.Personality.Confidence > 40 {
		if obj := firstUnexamined(s, npc, room); obj != nil {
			queue = append(queue, action.New(action.Look, "object_id", obj.ID, "name", obj.Name))
		}
	}

	// Band 5: socialization.
	if npc.Needs.Socialization < p.thresholds.Socialization {
		if npc.Personality.Aggression > 60 {
			queue = append(queue, action.New(action.Emote, "message", "glares around the room, daring anyone to meet their eyes"))
		} else {
			queue = append(queue, action.New(action.Emote, "message", "hums a gentle tune"))
		}
	}

	// Band 6: sleep. Never queues sleep or claim without a concrete bed id.
	if npc.Needs.Sleep < p.thresholds.Sleep {
		if bed := bedFor(s, npc, room); bed != nil {
			if bed.OwnerID == npc.ID {
				queue = append(queue, action.New(action.Sleep, "bed_id", bed.ID))
			} else {
				queue = append(queue,
					action.New(action.Claim, "object_id", bed.ID),
					action.New(action.Sleep, "bed_id", bed.ID))
			}
		}
	}

	// Band 7: wealth, only while nothing is queued yet.
	if len(queue) == 0 && npc.Needs.WealthDesire > 60 && npc.Currency < 20 {
		if obj := mostValuable(s, room); obj != nil {
			switch {
			case npc.Personality.Responsibility > 60:
				queue = append(queue, action.New(action.Emote, "message", "eyes the "+obj.Name+" appraisingly"))
			case npc.Personality.Responsibility < 40:
				queue = append(queue, action.New(action.GetObject, "name", obj.Name))
			}
		}
	}

	// Band 8: never return an empty queue.
	if len(queue) == 0 {
		queue = append(queue, action.New(action.DoNothing))
	}
	return queue
}

type nourishmentKind int

const (
	wantFood nourishmentKind = iota
	wantDrink
)

func nourishes(obj *world.Object, kind nourishmentKind) bool {
	sat, hyd := obj.Nutrition()
	if kind == wantFood {
		return sat > 0
	}
	return hyd > 0
}

// nourishmentActions queues consumption of a held item, or a fetch-then-eat
// pair when the room offers one.
func (p *OfflinePlanner) nourishmentActions(s *world.State, npc *world.CharacterSheet, room *world.Room, kind nourishmentKind) []action.Queued {
	for _, objID := range npc.Inventory.Items() {
		obj, ok := s.Object(objID)
		if ok && nourishes(obj, kind) {
			return []action.Queued{action.New(action.ConsumeObject, "object_id", obj.ID)}
		}
	}
	for _, obj := range roomObjects(s, room) {
		if obj.Movable() && nourishes(obj, kind) {
			return []action.Queued{
				action.New(action.GetObject, "name", obj.Name),
				action.New(action.ConsumeObject, "object_id", obj.ID),
			}
		}
	}
	return nil
}

// firstUnexamined returns the first room object (by id order) the NPC has no
// investigation memory of.
func firstUnexamined(s *world.State, npc *world.CharacterSheet, room *world.Room) *world.Object {
	for _, obj := range roomObjects(s, room) {
		if !npc.Ledger.HasMemoryOf("investigated", obj.ID) {
			return obj
		}
	}
	return nil
}

// bedFor returns the NPC's own bed in the room if present, otherwise an
// unowned bed, otherwise nil. Beds owned by someone else are never used.
func bedFor(s *world.State, npc *world.CharacterSheet, room *world.Room) *world.Object {
	var unowned *world.Object
	for _, obj := range roomObjects(s, room) {
		if !obj.HasTag(world.TagBed) {
			continue
		}
		if obj.OwnerID == npc.ID {
			return obj
		}
		if obj.OwnerID == "" && unowned == nil {
			unowned = obj
		}
	}
	return unowned
}

// mostValuable returns the most valuable room object worth more than the
// valuable threshold, ties broken by id order.
func mostValuable(s *world.State, room *world.Room) *world.Object {
	objs := roomObjects(s, room)
	sort.SliceStable(objs, func(i, j int) bool { return objs[i].Value > objs[j].Value })
	if len(objs) > 0 && objs[0].Value > valuableWorth {
		return objs[0]
	}
	return nil
}
