package executor_test

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/autonomy"
	"github.com/cory-johannsen/hearth/internal/game/executor"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

func newExecutor() *executor.Executor {
	return executor.NewExecutor(zap.NewNop())
}

func setupRoom(t *testing.T, ids ...string) *world.State {
	t.Helper()
	s := world.NewState()
	for _, id := range ids {
		if err := s.AddRoom(world.NewRoom(id, "a room")); err != nil {
			t.Fatalf("AddRoom(%s): %v", id, err)
		}
	}
	return s
}

func placeNPC(t *testing.T, s *world.State, name, roomID string) *world.CharacterSheet {
	t.Helper()
	sheet := s.GetOrCreateNPCSheet(name)
	if err := s.MoveEntity(sheet.ID, roomID); err != nil {
		t.Fatalf("MoveEntity(%s): %v", name, err)
	}
	return sheet
}

func addObject(t *testing.T, s *world.State, obj *world.Object, roomID string) {
	t.Helper()
	if err := s.AddObject(obj, roomID); err != nil {
		t.Fatalf("AddObject(%s): %v", obj.ID, err)
	}
}

func TestExecute_HungryGuardEatsBread(t *testing.T) {
	s := setupRoom(t, "gate")
	guard := placeNPC(t, s, "Gate Guard", "gate")
	guard.Needs.Hunger = 10

	addObject(t, s, &world.Object{ID: "bread-1", Name: "Bread", Tags: []string{"small", "Edible: 20"}, Value: 2}, "gate")

	plan := autonomy.NewOfflinePlanner(autonomy.Thresholds{}).Plan(s, guard)
	guard.EnqueuePlan(plan...)

	exec := newExecutor()
	for {
		entry, ok := guard.DequeuePlan()
		if !ok {
			break
		}
		res := exec.Execute(s, guard.ID, entry)
		if !res.OK {
			t.Fatalf("%s failed: %s", entry.Kind, res.Reason)
		}
	}

	if guard.Needs.Hunger != 30 {
		t.Fatalf("hunger = %v, want 30", guard.Needs.Hunger)
	}
	if _, exists := s.Object("bread-1"); exists {
		t.Fatal("bread should be consumed and destroyed")
	}
	if guard.Inventory.Contains("bread-1") {
		t.Fatal("consumed bread still in inventory")
	}
}

func TestExecute_GetObject_FuzzyMatching(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Bread", "loaf-1"},       // exact
		{"Rusty", "sword-1"},      // prefix
		{"Sword", "sword-1"},      // substring
		{"Bred", "loaf-1"},        // edit distance 1
		{"Porridge", "loaf-1"},    // nutritious fallback
	}
	for _, tc := range cases {
		s := setupRoom(t, "hall")
		npc := placeNPC(t, s, "Fetcher", "hall")
		addObject(t, s, &world.Object{ID: "loaf-1", Name: "Bread", Tags: []string{"small", "Edible: 20"}}, "hall")
		addObject(t, s, &world.Object{ID: "sword-1", Name: "Rusty Sword", Tags: []string{"large", "weapon"}}, "hall")

		res := newExecutor().Execute(s, npc.ID, action.New(action.GetObject, "name", tc.name))
		if !res.OK {
			t.Fatalf("get_object(%s) failed: %s", tc.name, res.Reason)
		}
		if !npc.Inventory.Contains(tc.want) {
			t.Fatalf("get_object(%s): expected %s in inventory", tc.name, tc.want)
		}
	}
}

func TestExecute_GetObject_NotFound(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Fetcher", "hall")
	addObject(t, s, &world.Object{ID: "sword-1", Name: "Rusty Sword", Tags: []string{"large"}}, "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.GetObject, "name", "Chandelier"))
	if res.OK || res.Reason != executor.ReasonObjectNotFound {
		t.Fatalf("expected %q, got %+v", executor.ReasonObjectNotFound, res)
	}
}

func TestExecute_GetObject_ImmovableNeverVanishes(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Fetcher", "hall")
	addObject(t, s, &world.Object{ID: "statue", Name: "Statue", Tags: []string{world.TagImmovable}}, "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.GetObject, "name", "Statue"))
	if res.OK || res.Reason != executor.ReasonCannotCarry {
		t.Fatalf("expected %q, got %+v", executor.ReasonCannotCarry, res)
	}
	room, _ := s.Room("hall")
	if !room.Objects["statue"] {
		t.Fatal("statue vanished from the room on a failed pickup")
	}
}

func TestExecute_GetObject_FullInventory(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Hoarder", "hall")
	for i := 0; i < world.NumSlots; i++ {
		npc.Inventory.Place(i, "filler")
	}
	addObject(t, s, &world.Object{ID: "coin", Name: "Coin", Tags: []string{"small"}}, "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.GetObject, "name", "Coin"))
	if res.OK || res.Reason != executor.ReasonNoFreeSlot {
		t.Fatalf("expected %q, got %+v", executor.ReasonNoFreeSlot, res)
	}
	room, _ := s.Room("hall")
	if !room.Objects["coin"] {
		t.Fatal("coin vanished on a failed pickup")
	}
}

func TestExecute_Consume_ChoosesEatsOverDrinks(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Diner", "hall")
	npc.Needs.Hunger = 50
	npc.Needs.Thirst = 50

	addObject(t, s, &world.Object{ID: "stew", Name: "Stew", Tags: []string{"small", "Edible: 15", "Drinkable: 5"}}, "hall")
	if err := s.TransferObject("stew", world.RoomRef("hall"), world.SheetRef(npc.ID), -1); err != nil {
		t.Fatalf("TransferObject: %v", err)
	}

	res := newExecutor().Execute(s, npc.ID, action.New(action.ConsumeObject, "object_id", "stew"))
	if !res.OK {
		t.Fatalf("consume failed: %s", res.Reason)
	}
	if npc.Needs.Hunger != 65 || npc.Needs.Thirst != 55 {
		t.Fatalf("needs = (%v, %v), want (65, 55)", npc.Needs.Hunger, npc.Needs.Thirst)
	}
	if len(res.Events) != 1 || !strings.Contains(res.Events[0].Line, "eats") {
		t.Fatalf("expected an eats line, got %+v", res.Events)
	}
}

func TestExecute_Consume_NotHeld(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Diner", "hall")
	addObject(t, s, &world.Object{ID: "stew", Name: "Stew", Tags: []string{"small", "Edible: 15"}}, "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.ConsumeObject, "object_id", "stew"))
	if res.OK || res.Reason != executor.ReasonNotInInventory {
		t.Fatalf("expected %q, got %+v", executor.ReasonNotInInventory, res)
	}
}

func TestExecute_Drop(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Clumsy", "hall")
	addObject(t, s, &world.Object{ID: "coin", Name: "Coin", Tags: []string{"small"}}, "hall")
	if err := s.TransferObject("coin", world.RoomRef("hall"), world.SheetRef(npc.ID), -1); err != nil {
		t.Fatalf("TransferObject: %v", err)
	}

	res := newExecutor().Execute(s, npc.ID, action.New(action.Drop, "object_id", "coin"))
	if !res.OK {
		t.Fatalf("drop failed: %s", res.Reason)
	}
	room, _ := s.Room("hall")
	if !room.Objects["coin"] || npc.Inventory.Contains("coin") {
		t.Fatal("coin not returned to the room")
	}
}

func TestExecute_MoveThrough_LockedDoor(t *testing.T) {
	s := setupRoom(t, "hall", "vault")
	hall, _ := s.Room("hall")
	hall.Doors["vault door"] = &world.Door{
		Label:      "vault door",
		TargetRoom: "vault",
		Lock:       &world.LockPolicy{AllowIDs: []string{"keyholder"}},
	}

	npc := placeNPC(t, s, "Wanderer", "hall")
	res := newExecutor().Execute(s, npc.ID, action.New(action.MoveThrough, "door", "vault door"))
	if res.OK || res.Reason != executor.ReasonLocked {
		t.Fatalf("expected %q, got %+v", executor.ReasonLocked, res)
	}
	if npc.RoomID != "hall" {
		t.Fatal("NPC moved through a locked door")
	}
}

func TestExecute_MoveThrough_AutoSelectsSoleExit(t *testing.T) {
	s := setupRoom(t, "hall", "yard")
	hall, _ := s.Room("hall")
	hall.Doors["side door"] = &world.Door{Label: "side door", TargetRoom: "yard"}

	npc := placeNPC(t, s, "Wanderer", "hall")
	res := newExecutor().Execute(s, npc.ID, action.New(action.MoveThrough))
	if !res.OK {
		t.Fatalf("move_through failed: %s", res.Reason)
	}
	if npc.RoomID != "yard" {
		t.Fatalf("NPC in %q, want yard", npc.RoomID)
	}
	yard, _ := s.Room("yard")
	hall, _ = s.Room("hall")
	if hall.NPCs[npc.ID] || !yard.NPCs[npc.ID] {
		t.Fatal("room membership sets not updated")
	}
}

func TestExecute_MoveThrough_TravelPoint(t *testing.T) {
	s := setupRoom(t, "hall", "sanctum")
	addObject(t, s, &world.Object{ID: "portal", Name: "Shimmering Portal", Tags: []string{world.TagTravelPoint}, TravelTarget: "sanctum"}, "hall")

	npc := placeNPC(t, s, "Wanderer", "hall")
	res := newExecutor().Execute(s, npc.ID, action.New(action.MoveThrough, "name", "Shimmering Portal"))
	if !res.OK {
		t.Fatalf("move_through failed: %s", res.Reason)
	}
	if npc.RoomID != "sanctum" {
		t.Fatalf("NPC in %q, want sanctum", npc.RoomID)
	}
}

func TestExecute_Flee_PicksAnExitInMultiExitRoom(t *testing.T) {
	s := setupRoom(t, "plaza", "alley", "arcade")
	plaza, _ := s.Room("plaza")
	plaza.Doors["east gate"] = &world.Door{Label: "east gate", TargetRoom: "alley"}
	plaza.Doors["west arch"] = &world.Door{Label: "west arch", TargetRoom: "arcade"}

	runner := placeNPC(t, s, "Runner", "plaza")
	menace := placeNPC(t, s, "Menace", "plaza")

	res := newExecutor().Execute(s, runner.ID, action.New(action.FleeDanger, "threat", menace.ID))
	if !res.OK {
		t.Fatalf("flee_danger failed: %s", res.Reason)
	}
	if runner.RoomID == "plaza" {
		t.Fatal("fleeing NPC stayed put")
	}
	fled := false
	for _, ev := range res.Events {
		if strings.Contains(ev.Line, "flees!") {
			fled = true
		}
	}
	if !fled {
		t.Fatalf("expected a flees! line, got %+v", res.Events)
	}
}

func TestExecute_Flee_SkipsLockedDoors(t *testing.T) {
	s := setupRoom(t, "plaza", "vault", "arcade")
	plaza, _ := s.Room("plaza")
	plaza.Doors["iron door"] = &world.Door{
		Label:      "iron door",
		TargetRoom: "vault",
		Lock:       &world.LockPolicy{AllowIDs: []string{"keyholder"}},
	}
	plaza.Doors["west arch"] = &world.Door{Label: "west arch", TargetRoom: "arcade"}

	runner := placeNPC(t, s, "Runner", "plaza")
	res := newExecutor().Execute(s, runner.ID, action.New(action.FleeConflict))
	if !res.OK {
		t.Fatalf("flee_conflict failed: %s", res.Reason)
	}
	if runner.RoomID != "arcade" {
		t.Fatalf("NPC in %q, want arcade (the unlocked way out)", runner.RoomID)
	}
}

func TestExecute_Flee_NoExitFails(t *testing.T) {
	s := setupRoom(t, "cell")
	runner := placeNPC(t, s, "Runner", "cell")

	res := newExecutor().Execute(s, runner.ID, action.New(action.FleeDanger, "threat", "whatever"))
	if res.OK || res.Reason != executor.ReasonTargetNotFound {
		t.Fatalf("expected %q, got %+v", executor.ReasonTargetNotFound, res)
	}
}

func TestExecute_MoveStairs(t *testing.T) {
	s := setupRoom(t, "cellar", "hall")
	cellar, _ := s.Room("cellar")
	cellar.Up = "hall"

	npc := placeNPC(t, s, "Climber", "cellar")
	res := newExecutor().Execute(s, npc.ID, action.New(action.MoveStairs, "direction", "up"))
	if !res.OK || npc.RoomID != "hall" {
		t.Fatalf("move_stairs up failed: %+v, room %q", res, npc.RoomID)
	}

	res = newExecutor().Execute(s, npc.ID, action.New(action.MoveStairs, "direction", "up"))
	if res.OK || res.Reason != executor.ReasonTargetNotFound {
		t.Fatalf("expected %q climbing from a room with no stairs, got %+v", executor.ReasonTargetNotFound, res)
	}
}

func TestExecute_Say_RegeneratesSocialization(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Talker", "hall")
	npc.Needs.Socialization = 40

	res := newExecutor().Execute(s, npc.ID, action.New(action.Say, "message", "Fine weather."))
	if !res.OK {
		t.Fatalf("say failed: %s", res.Reason)
	}
	if npc.Needs.Socialization != 50 {
		t.Fatalf("socialization = %v, want 50", npc.Needs.Socialization)
	}
}

func TestExecute_Say_EmptyFails(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Talker", "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.Say, "message", "  "))
	if res.OK || res.Reason != executor.ReasonNothingToSay {
		t.Fatalf("expected %q, got %+v", executor.ReasonNothingToSay, res)
	}
}

func TestExecute_Look_RecordsInvestigation(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Curious", "hall")
	addObject(t, s, &world.Object{ID: "orb", Name: "Orb", Tags: []string{"small"}}, "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.Look, "object_id", "orb"))
	if !res.OK {
		t.Fatalf("look failed: %s", res.Reason)
	}
	if !npc.Ledger.HasMemoryOf("investigated", "orb") {
		t.Fatal("investigation not recorded")
	}
}

func TestExecute_SleepAndClaim(t *testing.T) {
	s := setupRoom(t, "room")
	npc := placeNPC(t, s, "Tired", "room")
	addObject(t, s, &world.Object{ID: "bed-1", Name: "Bed", Tags: []string{world.TagBed, world.TagImmovable}}, "room")

	exec := newExecutor()
	res := exec.Execute(s, npc.ID, action.New(action.Claim, "object_id", "bed-1"))
	if !res.OK {
		t.Fatalf("claim failed: %s", res.Reason)
	}
	bed, _ := s.Object("bed-1")
	if bed.OwnerID != npc.ID {
		t.Fatal("claim did not set ownership")
	}

	res = exec.Execute(s, npc.ID, action.New(action.Sleep, "bed_id", "bed-1"))
	if !res.OK {
		t.Fatalf("sleep failed: %s", res.Reason)
	}
	if !npc.Sleeping() || npc.SleepingBedID != "bed-1" {
		t.Fatalf("sleep state not set: ticks=%d bed=%q", npc.SleepTicksRemaining, npc.SleepingBedID)
	}

	// Sleeping again while asleep is rejected.
	res = exec.Execute(s, npc.ID, action.New(action.Sleep, "bed_id", "bed-1"))
	if res.OK || res.Reason != executor.ReasonAlreadySleeping {
		t.Fatalf("expected %q, got %+v", executor.ReasonAlreadySleeping, res)
	}
}

func TestExecute_Sleep_SomeoneElsesBed(t *testing.T) {
	s := setupRoom(t, "room")
	npc := placeNPC(t, s, "Tired", "room")
	addObject(t, s, &world.Object{ID: "bed-1", Name: "Bed", Tags: []string{world.TagBed, world.TagImmovable}, OwnerID: "landlord"}, "room")

	res := newExecutor().Execute(s, npc.ID, action.New(action.Sleep, "bed_id", "bed-1"))
	if res.OK || res.Reason != executor.ReasonAlreadyOwned {
		t.Fatalf("expected %q, got %+v", executor.ReasonAlreadyOwned, res)
	}
}

func TestExecute_Steal_SoursRelationship(t *testing.T) {
	s := setupRoom(t, "market")
	thief := placeNPC(t, s, "Thief", "market")
	victim := placeNPC(t, s, "Victim", "market")
	addObject(t, s, &world.Object{ID: "purse", Name: "Purse", Tags: []string{"small"}, Value: 20, OwnerID: victim.ID}, "market")

	res := newExecutor().Execute(s, thief.ID, action.New(action.StealObject, "object_id", "purse"))
	if !res.OK {
		t.Fatalf("steal failed: %s", res.Reason)
	}
	if !thief.Inventory.Contains("purse") {
		t.Fatal("stolen purse not in thief inventory")
	}
	if victim.Ledger.Relationship(thief.ID) >= 0 {
		t.Fatalf("victim relationship toward thief = %d, want negative", victim.Ledger.Relationship(thief.ID))
	}
	if !victim.Ledger.HasMemoryOf("theft", "purse") {
		t.Fatal("victim did not remember the theft")
	}
}

func TestExecute_Steal_SoursVictimFaction(t *testing.T) {
	s := setupRoom(t, "market")
	thief := placeNPC(t, s, "Thief", "market")
	victim := placeNPC(t, s, "Victim", "market")
	bystander := placeNPC(t, s, "Bystander", "market")
	s.Factions["guild"] = &world.Faction{
		ID: "guild", Name: "Guild",
		NPCIDs: []string{victim.ID, bystander.ID},
	}
	addObject(t, s, &world.Object{ID: "brooch", Name: "Brooch", Tags: []string{"small"}, Value: 30, OwnerID: victim.ID}, "market")

	res := newExecutor().Execute(s, thief.ID, action.New(action.StealObject, "object_id", "brooch"))
	if !res.OK {
		t.Fatalf("steal failed: %s", res.Reason)
	}
	if got := victim.Ledger.Relationship(thief.ID); got != -35 {
		t.Fatalf("victim relationship = %d, want -35 (personal grievance plus faction grievance)", got)
	}
	if got := bystander.Ledger.Relationship(thief.ID); got != -10 {
		t.Fatalf("faction member relationship = %d, want -10", got)
	}
}

func TestExecute_Steal_FactionOwnedObject(t *testing.T) {
	s := setupRoom(t, "warehouse")
	thief := placeNPC(t, s, "Thief", "warehouse")
	docker := placeNPC(t, s, "Docker", "warehouse")
	s.Factions["dockers"] = &world.Faction{
		ID: "dockers", Name: "Dockers",
		NPCIDs: []string{docker.ID},
	}
	addObject(t, s, &world.Object{ID: "crate", Name: "Crate", Tags: []string{"large"}, Value: 15, FactionOwner: "dockers"}, "warehouse")

	res := newExecutor().Execute(s, thief.ID, action.New(action.PettyTheft, "object_id", "crate"))
	if !res.OK {
		t.Fatalf("petty_theft failed: %s", res.Reason)
	}
	if got := docker.Ledger.Relationship(thief.ID); got != -10 {
		t.Fatalf("faction member relationship = %d, want -10", got)
	}
}

func TestExecute_Steal_UnownedObjectNoFactionFallout(t *testing.T) {
	s := setupRoom(t, "market")
	thief := placeNPC(t, s, "Thief", "market")
	bystander := placeNPC(t, s, "Bystander", "market")
	s.Factions["guild"] = &world.Faction{ID: "guild", Name: "Guild", NPCIDs: []string{bystander.ID}}
	addObject(t, s, &world.Object{ID: "apple", Name: "Apple", Tags: []string{"small", "Edible: 5"}, Value: 1}, "market")

	res := newExecutor().Execute(s, thief.ID, action.New(action.PettyTheft, "object_id", "apple"))
	if !res.OK {
		t.Fatalf("petty_theft failed: %s", res.Reason)
	}
	if got := bystander.Ledger.Relationship(thief.ID); got != 0 {
		t.Fatalf("unowned loot should carry no faction fallout, got %d", got)
	}
}

func TestExecute_Attack_DrainsSafety(t *testing.T) {
	s := setupRoom(t, "alley")
	bruiser := placeNPC(t, s, "Bruiser", "alley")
	mark := placeNPC(t, s, "Mark", "alley")

	res := newExecutor().Execute(s, bruiser.ID, action.New(action.Attack, "target", mark.ID))
	if !res.OK {
		t.Fatalf("attack failed: %s", res.Reason)
	}
	if mark.Needs.Safety != 80 {
		t.Fatalf("victim safety = %v, want 80", mark.Needs.Safety)
	}
	if mark.Ledger.Relationship(bruiser.ID) >= 0 {
		t.Fatal("victim relationship toward attacker should be negative")
	}
}

func TestExecute_Attack_TargetGone(t *testing.T) {
	s := setupRoom(t, "alley", "elsewhere")
	bruiser := placeNPC(t, s, "Bruiser", "alley")
	mark := placeNPC(t, s, "Mark", "elsewhere")

	res := newExecutor().Execute(s, bruiser.ID, action.New(action.Attack, "target", mark.ID))
	if res.OK || res.Reason != executor.ReasonTargetNotFound {
		t.Fatalf("expected %q, got %+v", executor.ReasonTargetNotFound, res)
	}
}

func TestExecute_UnknownKindIsInvalidNoOp(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Confused", "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.Kind("summon_dragon")))
	if res.OK || res.Reason != executor.ReasonInvalidAction {
		t.Fatalf("expected %q, got %+v", executor.ReasonInvalidAction, res)
	}
}

func TestExecute_DoNothing(t *testing.T) {
	s := setupRoom(t, "hall")
	npc := placeNPC(t, s, "Idle", "hall")

	res := newExecutor().Execute(s, npc.ID, action.New(action.DoNothing))
	if !res.OK || len(res.Events) != 0 {
		t.Fatalf("do_nothing should succeed silently, got %+v", res)
	}
}

func TestHandleSay_BroadcastsAndQueuesReplies(t *testing.T) {
	s := setupRoom(t, "square")
	speaker := placeNPC(t, s, "Crier", "square")
	listener := placeNPC(t, s, "Baker", "square")

	res := newExecutor().HandleSay(s, speaker.ID, "Fresh news!", false)
	if !res.OK {
		t.Fatalf("HandleSay failed: %s", res.Reason)
	}
	if len(res.Events) != 1 || res.Events[0].ExcludeID != speaker.ID {
		t.Fatalf("expected one broadcast excluding the speaker, got %+v", res.Events)
	}
	if len(listener.PlanQueue) != 1 || listener.PlanQueue[0].Kind != action.Say {
		t.Fatalf("listener should queue a reply, got %v", listener.PlanQueue)
	}
	if !listener.Ledger.HasMemoryOf("heard", speaker.ID) {
		t.Fatal("listener should remember hearing the speaker")
	}
}

func TestHandleSay_SuppressTokenSkipsReplies(t *testing.T) {
	s := setupRoom(t, "square")
	speaker := placeNPC(t, s, "Crier", "square")
	listener := placeNPC(t, s, "Baker", "square")

	res := newExecutor().HandleSay(s, speaker.ID, "Echoed words.", true)
	if !res.OK {
		t.Fatalf("HandleSay failed: %s", res.Reason)
	}
	if len(listener.PlanQueue) != 0 {
		t.Fatalf("suppressed utterance must not queue replies, got %v", listener.PlanQueue)
	}
	if len(res.Events) != 1 {
		t.Fatalf("suppression affects replies, not the broadcast itself: %+v", res.Events)
	}
}

func TestHandleSay_BusyListenerKeepsItsPlan(t *testing.T) {
	s := setupRoom(t, "square")
	speaker := placeNPC(t, s, "Crier", "square")
	busy := placeNPC(t, s, "Porter", "square")
	busy.EnqueuePlan(action.New(action.Emote, "message", "hefts a crate"))

	if res := newExecutor().HandleSay(s, speaker.ID, "Oi!", false); !res.OK {
		t.Fatalf("HandleSay failed: %s", res.Reason)
	}
	if len(busy.PlanQueue) != 1 || busy.PlanQueue[0].Kind != action.Emote {
		t.Fatalf("busy listener's plan should be untouched, got %v", busy.PlanQueue)
	}
	if !busy.Ledger.HasMemoryOf("heard", speaker.ID) {
		t.Fatal("busy listener still hears the speaker")
	}
}

func TestHandleSay_EmptyUtteranceFails(t *testing.T) {
	s := setupRoom(t, "square")
	speaker := placeNPC(t, s, "Crier", "square")

	res := newExecutor().HandleSay(s, speaker.ID, "   ", false)
	if res.OK || res.Reason != executor.ReasonNothingToSay {
		t.Fatalf("expected %q, got %+v", executor.ReasonNothingToSay, res)
	}
}
