package autonomy_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/autonomy"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

func testEvaluator() *autonomy.Evaluator {
	return autonomy.NewEvaluator(rand.New(rand.NewSource(1)))
}

func worldWithRoom(t *testing.T, roomIDs ...string) *world.State {
	t.Helper()
	s := world.NewState()
	for _, id := range roomIDs {
		if err := s.AddRoom(world.NewRoom(id, "somewhere")); err != nil {
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

func TestEvaluate_FactionRivalry_InsultBeforeAttack(t *testing.T) {
	s := worldWithRoom(t, "square")
	a := placeNPC(t, s, "A", "square")
	b := placeNPC(t, s, "B", "square")

	s.Factions["rivals"] = &world.Faction{ID: "rivals", Name: "Rivals", NPCIDs: []string{a.ID}}
	s.Factions["enemies"] = &world.Faction{ID: "enemies", Name: "Enemies", NPCIDs: []string{b.ID}, RivalIDs: []string{"rivals"}}

	wishes := testEvaluator().Evaluate(s, a)
	if len(wishes) < 2 {
		t.Fatalf("expected at least 2 wishes, got %d", len(wishes))
	}
	if wishes[0].Category != "insult" || wishes[0].Priority != 96 {
		t.Fatalf("wish 0 = %s@%v, want insult@96", wishes[0].Category, wishes[0].Priority)
	}
	if wishes[1].Category != "attack" || wishes[1].Priority != 95 {
		t.Fatalf("wish 1 = %s@%v, want attack@95", wishes[1].Category, wishes[1].Priority)
	}
	if wishes[1].Action.Arg("target") != b.ID {
		t.Fatalf("attack targets %q, want %q", wishes[1].Action.Arg("target"), b.ID)
	}
}

func TestEvaluate_NoFaction_NoCombatWishes(t *testing.T) {
	s := worldWithRoom(t, "square")
	a := placeNPC(t, s, "A", "square")
	placeNPC(t, s, "B", "square")

	for _, w := range testEvaluator().Evaluate(s, a) {
		if w.Category == "insult" || w.Category == "attack" {
			t.Fatalf("unexpected combat wish %s for factionless NPC", w.Category)
		}
	}
}

func TestEvaluate_LowSafety_FleesHostileOccupant(t *testing.T) {
	s := worldWithRoom(t, "square")
	npc := placeNPC(t, s, "Nervous", "square")
	npc.Needs.Safety = 10

	bully := placeNPC(t, s, "Bully", "square")
	bully.Personality.Aggression = 90

	wishes := testEvaluator().Evaluate(s, npc)
	if len(wishes) == 0 || wishes[0].Category != "flee_danger" || wishes[0].Priority != 90 {
		t.Fatalf("expected flee_danger@90 first, got %+v", wishes)
	}
}

func TestEvaluate_LowSafety_MovesTowardGuardedRoom(t *testing.T) {
	s := worldWithRoom(t, "square", "barracks")
	square, _ := s.Room("square")
	square.Doors["iron door"] = &world.Door{Label: "iron door", TargetRoom: "barracks"}

	guard := placeNPC(t, s, "Guard", "barracks")
	guard.Guard = true

	npc := placeNPC(t, s, "Nervous", "square")
	npc.Needs.Safety = 10

	wishes := testEvaluator().Evaluate(s, npc)
	if len(wishes) == 0 || wishes[0].Category != "move_to_safety" || wishes[0].Priority != 60 {
		t.Fatalf("expected move_to_safety@60, got %+v", wishes)
	}
	if wishes[0].Action.Arg("door") != "iron door" {
		t.Fatalf("expected the iron door exit, got %q", wishes[0].Action.Arg("door"))
	}
}

func TestEvaluate_StealPriorityScalesWithIrresponsibility(t *testing.T) {
	s := worldWithRoom(t, "square")
	npc := placeNPC(t, s, "Sly", "square")
	npc.Needs.WealthDesire = 80
	npc.Personality.Responsibility = 20
	npc.Currency = 5

	if err := s.AddObject(&world.Object{ID: "gem", Name: "Gem", Tags: []string{"small"}, Value: 40}, "square"); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	wishes := testEvaluator().Evaluate(s, npc)
	var steal *autonomy.Wish
	for i := range wishes {
		if wishes[i].Category == "steal_object" {
			steal = &wishes[i]
			break
		}
	}
	if steal == nil {
		t.Fatalf("expected a steal_object wish, got %+v", wishes)
	}
	if steal.Priority != 100 { // 50 + (70 - 20)
		t.Fatalf("steal priority = %v, want 100", steal.Priority)
	}
	if steal.Action.Kind != action.StealObject {
		t.Fatalf("steal action kind = %q", steal.Action.Kind)
	}
}

func TestEvaluate_TradeWithMerchant(t *testing.T) {
	s := worldWithRoom(t, "square")
	npc := placeNPC(t, s, "Buyer", "square")
	npc.Needs.WealthDesire = 60

	merchant := placeNPC(t, s, "Trader", "square")
	merchant.Description = "A traveling merchant with a heavy pack."

	wishes := testEvaluator().Evaluate(s, npc)
	found := false
	for _, w := range wishes {
		if w.Category == "initiate_trade" && w.Priority == 30 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected initiate_trade@30, got %+v", wishes)
	}
}

func TestEvaluate_ReportCrime(t *testing.T) {
	s := worldWithRoom(t, "square")
	watcher := placeNPC(t, s, "Watcher", "square")
	watcher.Personality.Responsibility = 85

	crook := placeNPC(t, s, "Crook", "square")
	crook.Personality.Responsibility = 10

	if err := s.AddObject(&world.Object{ID: "purse", Name: "Purse", Tags: []string{"small"}, Value: 8}, "square"); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	wishes := testEvaluator().Evaluate(s, watcher)
	found := false
	for _, w := range wishes {
		if w.Category == "report_crime" && w.Priority == 60 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected report_crime@60, got %+v", wishes)
	}
}

func TestEvaluate_CuriosityInvestigatesUnseen(t *testing.T) {
	s := worldWithRoom(t, "square")
	npc := placeNPC(t, s, "Curious", "square")
	npc.Personality.Curiosity = 80

	if err := s.AddObject(&world.Object{ID: "orb", Name: "Orb", Tags: []string{"small"}}, "square"); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	wishes := testEvaluator().Evaluate(s, npc)
	if len(wishes) == 0 || wishes[0].Category != "investigate_object" {
		t.Fatalf("expected investigate_object, got %+v", wishes)
	}

	// Once remembered, the same object no longer draws a wish.
	npc.Ledger.Remember("investigated", "orb", time.Now(), 50)
	for _, w := range testEvaluator().Evaluate(s, npc) {
		if w.Category == "investigate_object" {
			t.Fatal("investigated object drew a second wish")
		}
	}
}

func TestEvaluate_SortedDescendingStable(t *testing.T) {
	s := worldWithRoom(t, "square")
	npc := placeNPC(t, s, "Busy", "square")
	npc.Needs.SocialStatus = 20
	npc.Personality.Confidence = 80
	npc.Personality.Curiosity = 80

	if err := s.AddObject(&world.Object{ID: "orb", Name: "Orb", Tags: []string{"small"}}, "square"); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	wishes := testEvaluator().Evaluate(s, npc)
	for i := 1; i < len(wishes); i++ {
		if wishes[i].Priority > wishes[i-1].Priority {
			t.Fatalf("wishes out of order at %d: %+v", i, wishes)
		}
	}
}
