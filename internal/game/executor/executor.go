// Package executor applies plan-queue entries to the world one at a time.
// Each handler is total: expected failures come back as (ok=false, reason)
// data, and a panic inside a handler is caught and reported as a generic
// failure so one NPC's bad data can never abort the tick loop.
package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/needs"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

// Failure reasons reported to the scheduler. The scheduler rewrites them as
// in-character lines; they are never shown raw to players in autonomous flows.
const (
	ReasonObjectNotFound  = "object not found"
	ReasonNotInInventory  = "object not in inventory"
	ReasonNoFreeSlot      = "no free slot"
	ReasonCannotCarry     = "cannot carry"
	ReasonRoomNotFound    = "room not found"
	ReasonLocked          = "locked"
	ReasonTargetNotFound  = "target not found"
	ReasonNothingToSay    = "nothing to say"
	ReasonAlreadyOwned    = "already owned"
	ReasonAlreadySleeping = "already sleeping"
	ReasonNotABed         = "not a bed"
	ReasonNotConsumable   = "not consumable"
	ReasonInvalidAction   = "invalid action"
	ReasonInternal        = "internal error"
)

// Tunables for action side effects.
const (
	// socializationRegen is restored by each say/emote.
	socializationRegen = 10
	// sleepDurationTicks is the sleep cycle length started by a sleep action.
	sleepDurationTicks = 5
	// attackSafetyLoss is drained from the victim's safety per attack.
	attackSafetyLoss = 20
	// theftRelationshipPenalty is applied to the victim's view of the thief.
	theftRelationshipPenalty = -25
	// theftFactionPenalty is applied to every member of the wronged faction.
	theftFactionPenalty = -10
	// attackRelationshipPenalty is applied to the victim's view of the attacker.
	attackRelationshipPenalty = -40
	// maxFuzzyDistance is the levenshtein edit budget for name matching.
	maxFuzzyDistance = 2
)

// EventScope selects event delivery: to one session or to a whole room.
type EventScope string

// Event scopes.
const (
	ScopeEmit      EventScope = "emit"
	ScopeBroadcast EventScope = "broadcast"
)

// Event is one deliverable output line. The transport layer maps stable
// entity ids onto live session refs; disconnected targets are dropped there.
type Event struct {
	Scope EventScope
	// TargetID is the stable entity id for emit-scoped events.
	TargetID string
	// RoomID is the delivery room for broadcast-scoped events.
	RoomID string
	// ExcludeID is an optional stable entity id omitted from a broadcast.
	ExcludeID string
	Line      string
}

// Emit builds a single-session event.
func Emit(targetID, line string) Event {
	return Event{Scope: ScopeEmit, TargetID: targetID, Line: line}
}

// Broadcast builds a room-wide event.
func Broadcast(roomID, line string) Event {
	return Event{Scope: ScopeBroadcast, RoomID: roomID, Line: line}
}

// BroadcastExcept builds a room-wide event that skips one entity.
func BroadcastExcept(roomID, excludeID, line string) Event {
	return Event{Scope: ScopeBroadcast, RoomID: roomID, ExcludeID: excludeID, Line: line}
}

// Result is the outcome of applying one queued action.
type Result struct {
	OK     bool
	Reason string
	Events []Event
}

func fail(reason string) Result {
	return Result{OK: false, Reason: reason}
}

func done(events ...Event) Result {
	return Result{OK: true, Events: events}
}

// Executor applies one plan-queue entry per call. It holds no per-action
// state; everything lives in the world.
type Executor struct {
	log *zap.Logger
	now func() time.Time
}

// NewExecutor constructs an Executor.
//
// Precondition: log must not be nil.
func NewExecutor(log *zap.Logger) *Executor {
	if log == nil {
		panic("executor.NewExecutor: log must not be nil")
	}
	return &Executor{log: log, now: time.Now}
}

// Execute applies exactly one queued action for the acting entity.
//
// Precondition: the caller must hold the world lock.
// Postcondition: always returns a Result; never panics. A failed action
// leaves the world unchanged apart from harmless memory writes.
func (e *Executor) Execute(s *world.State, actorID string, entry action.Queued) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("action handler panicked",
				zap.String("actor", actorID),
				zap.String("kind", string(entry.Kind)),
				zap.Any("panic", r))
			res = fail(ReasonInternal)
		}
	}()

	if !entry.WellFormed() {
		return fail(ReasonInvalidAction)
	}
	actor, ok := s.Sheet(actorID)
	if !ok {
		return fail(ReasonTargetNotFound)
	}
	room, ok := s.Room(actor.RoomID)
	if !ok {
		return fail(ReasonRoomNotFound)
	}

	switch entry.Kind {
	case action.GetObject, action.StealObject, action.PettyTheft:
		return e.pickUp(s, actor, room, entry)
	case action.ConsumeObject:
		return e.consume(s, actor, room, entry.Arg("object_id"))
	case action.Drop:
		return e.drop(s, actor, room, entry.Arg("object_id"))
	case action.MoveThrough, action.MoveToSafety, action.ExploreArea,
		action.FleeDanger, action.FleeConflict:
		return e.move(s, actor, room, entry)
	case action.MoveStairs:
		return e.moveStairs(s, actor, room, entry.Arg("direction"))
	case action.Emote:
		return e.emote(actor, room, entry.Arg("message"))
	case action.Say:
		return e.say(actor, room, entry.Arg("message"))
	case action.Look, action.InvestigateObject:
		return e.look(s, actor, room, entry)
	case action.Sleep:
		return e.sleep(s, actor, room, entry.Arg("bed_id"))
	case action.Claim:
		return e.claim(s, actor, room, entry.Arg("object_id"))
	case action.Attack, action.ChallengeCompetitor:
		return e.attack(s, actor, room, entry)
	case action.InitiateTrade:
		return e.initiateTrade(s, actor, room, entry.Arg("target"))
	case action.BoastAchievements:
		actor.Needs.Restore(needs.SocialStatus, socializationRegen)
		return done(Broadcast(room.ID, fmt.Sprintf("%s recounts a string of unlikely triumphs.", actor.Name)))
	case action.OfferHelp:
		return e.offerHelp(s, actor, room, entry.Arg("target"))
	case action.ReportCrime:
		return done(Broadcast(room.ID, fmt.Sprintf("%s loudly declares that the authorities will hear of this.", actor.Name)))
	case action.DoNothing:
		return done()
	default:
		return fail(ReasonInvalidAction)
	}
}

// pickUp handles get_object, steal_object, and petty_theft. All three move a
// room object into the actor's inventory; the theft variants additionally
// damage the victim's relationship toward the actor.
func (e *Executor) pickUp(s *world.State, actor *world.CharacterSheet, room *world.Room, entry action.Queued) Result {
	var obj *world.Object
	if id := entry.Arg("object_id"); id != "" {
		o, ok := s.Object(id)
		if !ok || !room.Objects[id] {
			return fail(ReasonObjectNotFound)
		}
		obj = o
	} else {
		obj = findRoomObject(s, room, entry.Arg("name"))
		if obj == nil {
			return fail(ReasonObjectNotFound)
		}
	}

	if err := s.TransferObject(obj.ID, world.RoomRef(room.ID), world.SheetRef(actor.ID), -1); err != nil {
		return fail(transferReason(err))
	}

	events := []Event{Broadcast(room.ID, fmt.Sprintf("%s picks up the %s.", actor.Name, obj.Name))}
	if entry.Kind == action.StealObject || entry.Kind == action.PettyTheft {
		victimID := ""
		if victim, ok := s.Sheet(obj.OwnerID); ok && victim.ID != actor.ID {
			victim.Ledger.AdjustRelationship(actor.ID, theftRelationshipPenalty)
			victim.Ledger.Remember("theft", obj.ID, e.now(), 0)
			events = append(events, Emit(victim.ID, fmt.Sprintf("%s made off with your %s!", actor.Name, obj.Name)))
			victimID = victim.ID
		}
		penalizeFaction(s, actor.ID, wrongedFaction(s, obj, victimID))
		actor.Ledger.Remember("stole", obj.ID, e.now(), 0)
	}
	return Result{OK: true, Events: events}
}

// wrongedFaction resolves the faction injured by a theft: the object's owning
// faction when one is set, otherwise the personal owner's faction.
func wrongedFaction(s *world.State, obj *world.Object, ownerID string) *world.Faction {
	if obj.FactionOwner != "" {
		if f, ok := s.Factions[obj.FactionOwner]; ok {
			return f
		}
	}
	if ownerID == "" {
		return nil
	}
	return s.FactionOf(ownerID)
}

// penalizeFaction sours every member of the wronged faction toward the thief.
// The personal victim's separate grievance stacks on top of this.
func penalizeFaction(s *world.State, thiefID string, f *world.Faction) {
	if f == nil {
		return
	}
	for _, ids := range [][]string{f.NPCIDs, f.PlayerIDs} {
		for _, id := range ids {
			if id == thiefID {
				continue
			}
			if member, ok := s.Sheet(id); ok {
				member.Ledger.AdjustRelationship(thiefID, theftFactionPenalty)
			}
		}
	}
}

func transferReason(err error) string {
	switch {
	case errors.Is(err, world.ErrNotMovable):
		return ReasonCannotCarry
	case errors.Is(err, world.ErrSlotConstraint), errors.Is(err, world.ErrSlotOccupied):
		return ReasonNoFreeSlot
	default:
		return ReasonObjectNotFound
	}
}

// consume eats or drinks an inventory object by id. The object is destroyed.
func (e *Executor) consume(s *world.State, actor *world.CharacterSheet, room *world.Room, objectID string) Result {
	if !actor.Inventory.Contains(objectID) {
		return fail(ReasonNotInInventory)
	}
	obj, ok := s.Object(objectID)
	if !ok {
		return fail(ReasonNotInInventory)
	}
	sat, hyd := obj.Nutrition()
	if sat <= 0 && hyd <= 0 {
		return fail(ReasonNotConsumable)
	}

	actor.Needs.Restore(needs.Hunger, sat)
	actor.Needs.Restore(needs.Thirst, hyd)
	actor.Inventory.Remove(objectID)
	delete(s.Objects, objectID)

	verb := "drinks"
	if sat > 0 {
		verb = "eats"
	}
	return done(Broadcast(room.ID, fmt.Sprintf("%s %s the %s.", actor.Name, verb, obj.Name)))
}

func (e *Executor) drop(s *world.State, actor *world.CharacterSheet, room *world.Room, objectID string) Result {
	if !actor.Inventory.Contains(objectID) {
		return fail(ReasonNotInInventory)
	}
	obj, _ := s.Object(objectID)
	if err := s.TransferObject(objectID, world.SheetRef(actor.ID), world.RoomRef(room.ID), -1); err != nil {
		return fail(ReasonNotInInventory)
	}
	name := objectID
	if obj != nil {
		name = obj.Name
	}
	return done(Broadcast(room.ID, fmt.Sprintf("%s sets down the %s.", actor.Name, name)))
}

// move handles every room-to-room action kind. The exit may be a labeled
// door or a Travel-Point-tagged object; with exactly one exit and no name
// given, it is auto-selected.
func (e *Executor) move(s *world.State, actor *world.CharacterSheet, room *world.Room, entry action.Queued) Result {
	name := entry.Arg("door")
	if name == "" {
		name = entry.Arg("name")
	}

	targetRoomID, door, found := resolveExit(s, room, name)
	if !found && name == "" &&
		(entry.Kind == action.FleeDanger || entry.Kind == action.FleeConflict) {
		targetRoomID, door, found = fleeExit(s, actor.ID, room)
	}
	if !found {
		return fail(ReasonTargetNotFound)
	}
	if door != nil && !s.DoorPermits(actor.ID, door) {
		return fail(ReasonLocked)
	}
	target, ok := s.Room(targetRoomID)
	if !ok {
		return fail(ReasonRoomNotFound)
	}
	if err := s.MoveEntity(actor.ID, target.ID); err != nil {
		return fail(ReasonRoomNotFound)
	}
	actor.Ledger.Remember("explored", target.ID, e.now(), 0)

	leave := fmt.Sprintf("%s leaves.", actor.Name)
	if entry.Kind == action.FleeDanger || entry.Kind == action.FleeConflict {
		leave = fmt.Sprintf("%s flees!", actor.Name)
	}
	return done(
		BroadcastExcept(room.ID, actor.ID, leave),
		BroadcastExcept(target.ID, actor.ID, fmt.Sprintf("%s arrives.", actor.Name)),
	)
}

// exitOption is one way out of a room: a labeled door, or a Travel-Point
// object (door is nil for those; Travel Points are never locked).
type exitOption struct {
	label  string
	target string
	door   *world.Door
}

// roomExits lists a room's exits in deterministic order: doors by label,
// then Travel Points by object id.
func roomExits(s *world.State, room *world.Room) []exitOption {
	var exits []exitOption
	labels := make([]string, 0, len(room.Doors))
	for label := range room.Doors {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		d := room.Doors[label]
		exits = append(exits, exitOption{label: label, target: d.TargetRoom, door: d})
	}

	objIDs := make([]string, 0, len(room.Objects))
	for id := range room.Objects {
		objIDs = append(objIDs, id)
	}
	sort.Strings(objIDs)
	for _, id := range objIDs {
		obj, ok := s.Object(id)
		if ok && obj.HasTag(world.TagTravelPoint) {
			exits = append(exits, exitOption{label: obj.Name, target: obj.TravelTarget})
		}
	}
	return exits
}

// resolveExit finds the exit named (fuzzily) by name, or the sole exit when
// name is empty. Returns the destination room id and, for doors, the door
// whose lock policy must be checked.
func resolveExit(s *world.State, room *world.Room, name string) (roomID string, door *world.Door, found bool) {
	exits := roomExits(s, room)

	if name == "" {
		if len(exits) == 1 {
			return exits[0].target, exits[0].door, true
		}
		return "", nil, false
	}

	names := make([]string, len(exits))
	for i, x := range exits {
		names[i] = x.label
	}
	if idx, ok := bestNameMatch(names, name); ok {
		return exits[idx].target, exits[idx].door, true
	}
	return "", nil, false
}

// fleeExit picks an escape route for a flee action that names no exit: the
// first exit, in label order, whose lock the actor can pass. A fleeing NPC
// cares that the way out opens, not where it leads.
func fleeExit(s *world.State, actorID string, room *world.Room) (roomID string, door *world.Door, found bool) {
	for _, x := range roomExits(s, room) {
		if x.door != nil && !s.DoorPermits(actorID, x.door) {
			continue
		}
		return x.target, x.door, true
	}
	return "", nil, false
}

func (e *Executor) moveStairs(s *world.State, actor *world.CharacterSheet, room *world.Room, direction string) Result {
	var targetID string
	switch strings.ToLower(direction) {
	case "up":
		targetID = room.Up
	case "down":
		targetID = room.Down
	default:
		return fail(ReasonTargetNotFound)
	}
	if targetID == "" {
		return fail(ReasonTargetNotFound)
	}
	if err := s.MoveEntity(actor.ID, targetID); err != nil {
		return fail(ReasonRoomNotFound)
	}
	return done(
		BroadcastExcept(room.ID, actor.ID, fmt.Sprintf("%s heads %s the stairs.", actor.Name, direction)),
		BroadcastExcept(targetID, actor.ID, fmt.Sprintf("%s arrives.", actor.Name)),
	)
}

func (e *Executor) emote(actor *world.CharacterSheet, room *world.Room, message string) Result {
	if message == "" {
		message = "gazes into the middle distance"
	}
	actor.Needs.Restore(needs.Socialization, socializationRegen)
	return done(Broadcast(room.ID, fmt.Sprintf("%s %s.", actor.Name, message)))
}

func (e *Executor) say(actor *world.CharacterSheet, room *world.Room, message string) Result {
	if strings.TrimSpace(message) == "" {
		return fail(ReasonNothingToSay)
	}
	actor.Needs.Restore(needs.Socialization, socializationRegen)
	return done(Broadcast(room.ID, fmt.Sprintf("%s says, %q", actor.Name, message)))
}

// HandleSay applies one utterance received from a session. The suppressReply
// token is per call, threaded through by the caller that needs it (for
// example when echoing a quoted utterance); there is no shared flag, so
// concurrent utterances cannot suppress each other's replies.
//
// Precondition: the caller must hold the world lock.
// Postcondition: the utterance is broadcast to everyone else in the room;
// unless suppressReply is set, each awake idle NPC listener queues a reply
// and records hearing the speaker.
func (e *Executor) HandleSay(s *world.State, speakerID, text string, suppressReply bool) Result {
	speaker, ok := s.Sheet(speakerID)
	if !ok {
		return fail(ReasonTargetNotFound)
	}
	room, ok := s.Room(speaker.RoomID)
	if !ok {
		return fail(ReasonRoomNotFound)
	}
	if strings.TrimSpace(text) == "" {
		return fail(ReasonNothingToSay)
	}

	speaker.Needs.Restore(needs.Socialization, socializationRegen)
	events := []Event{BroadcastExcept(room.ID, speakerID, fmt.Sprintf("%s says, %q", speaker.Name, text))}

	if !suppressReply {
		for npcID := range room.NPCs {
			if npcID == speakerID {
				continue
			}
			listener, ok := s.Sheet(npcID)
			if !ok || listener.Sleeping() {
				continue
			}
			listener.Ledger.Remember("heard", speakerID, e.now(), 0)
			if len(listener.PlanQueue) == 0 {
				listener.EnqueuePlan(action.New(action.Say, "message",
					fmt.Sprintf("Well met, %s.", speaker.Name)))
			}
		}
	}
	return done(events...)
}

// look examines a room object and records the investigation so the curiosity
// planner band moves on to something else next time.
func (e *Executor) look(s *world.State, actor *world.CharacterSheet, room *world.Room, entry action.Queued) Result {
	var obj *world.Object
	if id := entry.Arg("object_id"); id != "" {
		o, ok := s.Object(id)
		if !ok || !room.Objects[id] {
			return fail(ReasonTargetNotFound)
		}
		obj = o
	} else {
		obj = findRoomObject(s, room, entry.Arg("name"))
		if obj == nil {
			return fail(ReasonTargetNotFound)
		}
	}

	actor.Ledger.Remember("investigated", obj.ID, e.now(), 0)
	return done(Broadcast(room.ID, fmt.Sprintf("%s examines the %s closely.", actor.Name, obj.Name)))
}

// sleep begins a sleep cycle on a bed in the actor's room. The tick
// scheduler regenerates the sleep need and releases the bed when the cycle
// runs out.
func (e *Executor) sleep(s *world.State, actor *world.CharacterSheet, room *world.Room, bedID string) Result {
	if actor.Sleeping() {
		return fail(ReasonAlreadySleeping)
	}
	bed, ok := s.Object(bedID)
	if !ok || !room.Objects[bedID] {
		return fail(ReasonObjectNotFound)
	}
	if !bed.HasTag(world.TagBed) {
		return fail(ReasonNotABed)
	}
	if bed.OwnerID != "" && bed.OwnerID != actor.ID {
		return fail(ReasonAlreadyOwned)
	}

	actor.SleepTicksRemaining = sleepDurationTicks
	actor.SleepingBedID = bed.ID
	return done(Broadcast(room.ID, fmt.Sprintf("%s lies down on the %s and drifts off.", actor.Name, bed.Name)))
}

func (e *Executor) claim(s *world.State, actor *world.CharacterSheet, room *world.Room, objectID string) Result {
	obj, ok := s.Object(objectID)
	if !ok || !room.Objects[objectID] {
		return fail(ReasonObjectNotFound)
	}
	if obj.OwnerID != "" && obj.OwnerID != actor.ID {
		return fail(ReasonAlreadyOwned)
	}
	obj.OwnerID = actor.ID
	return done(Broadcast(room.ID, fmt.Sprintf("%s claims the %s.", actor.Name, obj.Name)))
}

// attack handles attack and challenge_competitor. Both require the target in
// the same room; an attack additionally drains the victim's safety and sours
// its relationship toward the attacker.
func (e *Executor) attack(s *world.State, actor *world.CharacterSheet, room *world.Room, entry action.Queued) Result {
	target, ok := s.Sheet(entry.Arg("target"))
	if !ok || target.RoomID != room.ID {
		return fail(ReasonTargetNotFound)
	}

	if entry.Kind == action.ChallengeCompetitor {
		return done(
			Broadcast(room.ID, fmt.Sprintf("%s squares up to %s.", actor.Name, target.Name)),
			Emit(target.ID, fmt.Sprintf("%s wants what's yours.", actor.Name)),
		)
	}

	target.Needs.Decay(needs.Safety, attackSafetyLoss)
	target.Ledger.AdjustRelationship(actor.ID, attackRelationshipPenalty)
	target.Ledger.Remember("attacked_by", actor.ID, e.now(), 0)
	actor.Ledger.Remember("attacked", target.ID, e.now(), 0)
	return done(
		Broadcast(room.ID, fmt.Sprintf("%s lunges at %s!", actor.Name, target.Name)),
		Emit(target.ID, fmt.Sprintf("%s attacks you!", actor.Name)),
	)
}

func (e *Executor) initiateTrade(s *world.State, actor *world.CharacterSheet, room *world.Room, targetID string) Result {
	target, ok := s.Sheet(targetID)
	if !ok || target.RoomID != room.ID {
		return fail(ReasonTargetNotFound)
	}
	return done(
		Broadcast(room.ID, fmt.Sprintf("%s shows %s a few wares.", actor.Name, target.Name)),
		Emit(target.ID, fmt.Sprintf("%s would like to trade.", actor.Name)),
	)
}

func (e *Executor) offerHelp(s *world.State, actor *world.CharacterSheet, room *world.Room, targetID string) Result {
	target, ok := s.Sheet(targetID)
	if !ok || target.RoomID != room.ID {
		return fail(ReasonTargetNotFound)
	}
	actor.Needs.Restore(needs.SocialStatus, socializationRegen)
	return done(
		Broadcast(room.ID, fmt.Sprintf("%s offers %s a hand.", actor.Name, target.Name)),
		Emit(target.ID, fmt.Sprintf("%s offers to help you.", actor.Name)),
	)
}

// findRoomObject fuzzy-matches a room object by display name: exact, then
// prefix, then substring, then a small edit distance, all case-insensitive.
// When nothing matches by name it falls back to any nutritious object, so a
// hungry NPC told to fetch "bred" still finds dinner.
func findRoomObject(s *world.State, room *world.Room, name string) *world.Object {
	ids := make([]string, 0, len(room.Objects))
	for id := range room.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	objs := make([]*world.Object, 0, len(ids))
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if obj, ok := s.Object(id); ok {
			objs = append(objs, obj)
			names = append(names, obj.Name)
		}
	}

	if name != "" {
		if idx, ok := bestNameMatch(names, name); ok {
			return objs[idx]
		}
	}
	for _, obj := range objs {
		if obj.Nutritious() {
			return obj
		}
	}
	return nil
}

// bestNameMatch returns the index of the best candidate for the wanted name,
// in strictly descending match quality: exact, prefix, substring, then edit
// distance within maxFuzzyDistance.
func bestNameMatch(candidates []string, want string) (int, bool) {
	w := strings.ToLower(want)

	for i, c := range candidates {
		if strings.ToLower(c) == w {
			return i, true
		}
	}
	for i, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), w) {
			return i, true
		}
	}
	for i, c := range candidates {
		if strings.Contains(strings.ToLower(c), w) {
			return i, true
		}
	}
	bestIdx, bestDist := -1, maxFuzzyDistance+1
	for i, c := range candidates {
		if d := levenshtein.ComputeDistance(strings.ToLower(c), w); d < bestDist {
			bestIdx, bestDist = i, d
		}
	}
	if bestIdx >= 0 {
		return bestIdx, true
	}
	return -1, false
}
