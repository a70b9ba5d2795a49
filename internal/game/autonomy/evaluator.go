// Package autonomy turns an NPC's needs, personality, and surroundings into
// executable action plans. It provides two deliberately distinct strategies:
// the Evaluator produces a scored wish-list, while the OfflinePlanner emits a
// strictly ordered action queue. The two are never reconciled; they are
// alternative planning paradigms selected by the world's planner mode.
package autonomy

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

// Wish is one scored candidate action. Higher priority executes first; ties
// keep emission order.
type Wish struct {
	// Category names the rule that emitted the wish (e.g. "insult",
	// "flee_danger"); Action carries the executable form.
	Category string
	Action   action.Queued
	Priority float64
}

// Trait and need thresholds used by the evaluator rules.
const (
	lowSafety            = 30
	threatAggression     = 70
	safeResponsibility   = 80
	greedyWealthDesire   = 70
	tradeWealthDesire    = 50
	partnerWealthDesire  = 40
	slackResponsibility  = 40
	poorCurrency         = 50
	valuableWorth        = 10
	lowSocialStatus      = 40
	boastConfidence      = 60
	crimeResponsibility  = 30
	dutyResponsibility   = 70
	unguardedWorth       = 5
	maxQuietWitnesses    = 2
	challengeAggression  = 60
	challengeConfidence  = 40
	timidAggression      = 20
	curiousThreshold     = 60
	exploreConfidence    = 40
	urgentNeed           = 30
	insultPriority       = 96
	attackPriority       = 95
	fleeDangerPriority   = 90
	fleeConflictPriority = 70
	safeExitPriority     = 60
	reportCrimePriority  = 60
	boastPriority        = 40
	offerHelpPriority    = 35
	tradePriority        = 30
	investigatePriority  = 25
	explorePriority      = 20
)

// Evaluator scores candidate actions for one NPC from a read-only view of
// the world. It never mutates world state.
type Evaluator struct {
	rng *rand.Rand
}

// NewEvaluator constructs an Evaluator.
//
// Precondition: rng must not be nil.
func NewEvaluator(rng *rand.Rand) *Evaluator {
	if rng == nil {
		panic("autonomy.NewEvaluator: rng must not be nil")
	}
	return &Evaluator{rng: rng}
}

// Evaluate produces the ranked wish-list for one NPC: all rules are applied
// in category order, then the collected wishes are sorted descending by
// priority with stable ties.
//
// Precondition: the caller must hold the world lock; s and npc must not be nil.
// Postcondition: returns a non-nil slice (may be empty); world state is unchanged.
func (e *Evaluator) Evaluate(s *world.State, npc *world.CharacterSheet) []Wish {
	room, ok := s.Room(npc.RoomID)
	if !ok {
		return []Wish{}
	}

	var wishes []Wish
	wishes = append(wishes, e.safetyWishes(s, npc, room)...)
	wishes = append(wishes, e.factionWishes(s, npc, room)...)
	wishes = append(wishes, e.wealthWishes(s, npc, room)...)
	wishes = append(wishes, e.statusWishes(s, npc, room)...)
	wishes = append(wishes, e.responsibilityWishes(s, npc, room)...)
	wishes = append(wishes, e.aggressionWishes(s, npc, room)...)
	wishes = append(wishes, e.curiosityWishes(s, npc, room)...)

	sort.SliceStable(wishes, func(i, j int) bool {
		return wishes[i].Priority > wishes[j].Priority
	})
	if wishes == nil {
		wishes = []Wish{}
	}
	return wishes
}

// occupantSheets returns the sheets of every other occupant, sorted by id
// for deterministic rule evaluation.
func occupantSheets(s *world.State, room *world.Room, excludeID string) []*world.CharacterSheet {
	ids := make([]string, 0, room.OccupantCount())
	for id := range room.Players {
		ids = append(ids, id)
	}
	for id := range room.NPCs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*world.CharacterSheet, 0, len(ids))
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		if sheet, ok := s.Sheet(id); ok {
			out = append(out, sheet)
		}
	}
	return out
}

// roomObjects returns the room's objects sorted by id.
func roomObjects(s *world.State, room *world.Room) []*world.Object {
	ids := make([]string, 0, len(room.Objects))
	for id := range room.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*world.Object, 0, len(ids))
	for _, id := range ids {
		if obj, ok := s.Object(id); ok {
			out = append(out, obj)
		}
	}
	return out
}

// sortedDoors returns door labels in deterministic order.
func sortedDoors(room *world.Room) []string {
	labels := make([]string, 0, len(room.Doors))
	for label := range room.Doors {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (e *Evaluator) safetyWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	if npc.Needs.Safety >= lowSafety {
		return nil
	}

	for _, other := range occupantSheets(s, room, npc.ID) {
		threatening := other.Hostile ||
			(other.Kind == world.KindNPC && other.Personality.Aggression > threatAggression)
		if threatening {
			return []Wish{{
				Category: "flee_danger",
				Action:   action.New(action.FleeDanger, "threat", other.ID),
				Priority: fleeDangerPriority,
			}}
		}
	}

	var safeExits []string
	for _, label := range sortedDoors(room) {
		target, ok := s.Room(room.Doors[label].TargetRoom)
		if !ok {
			continue
		}
		if roomIsSafe(s, target) {
			safeExits = append(safeExits, label)
		}
	}
	if len(safeExits) > 0 {
		label := safeExits[e.rng.Intn(len(safeExits))]
		return []Wish{{
			Category: "move_to_safety",
			Action:   action.New(action.MoveToSafety, "door", label),
			Priority: safeExitPriority,
		}}
	}
	return nil
}

// roomIsSafe reports whether a room contains a guard-like NPC.
func roomIsSafe(s *world.State, room *world.Room) bool {
	for id := range room.NPCs {
		sheet, ok := s.Sheet(id)
		if !ok {
			continue
		}
		if sheet.Guard || sheet.Personality.Responsibility > safeResponsibility {
			return true
		}
	}
	return false
}

func (e *Evaluator) factionWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	var wishes []Wish
	for _, other := range occupantSheets(s, room, npc.ID) {
		if other.Kind != world.KindNPC {
			continue
		}
		if !s.AreRivals(npc.ID, other.ID) {
			continue
		}
		// The insult always precedes the attack for the same target.
		wishes = append(wishes,
			Wish{
				Category: "insult",
				Action: action.New(action.Say,
					"target", other.ID,
					"message", fmt.Sprintf("Your kind isn't welcome here, %s!", other.Name)),
				Priority: insultPriority,
			},
			Wish{
				Category: "attack",
				Action:   action.New(action.Attack, "target", other.ID),
				Priority: attackPriority,
			},
		)
	}
	return wishes
}

func (e *Evaluator) wealthWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	if npc.Needs.WealthDesire > greedyWealthDesire &&
		npc.Personality.Responsibility < slackResponsibility &&
		npc.Currency < poorCurrency {
		var best *world.Object
		for _, obj := range roomObjects(s, room) {
			if obj.Value <= valuableWorth {
				continue
			}
			if best == nil || obj.Value > best.Value {
				best = obj
			}
		}
		if best != nil {
			return []Wish{{
				Category: "steal_object",
				Action:   action.New(action.StealObject, "object_id", best.ID),
				Priority: 50 + (70 - npc.Personality.Responsibility),
			}}
		}
	}

	if npc.Needs.WealthDesire > tradeWealthDesire {
		for _, other := range occupantSheets(s, room, npc.ID) {
			partner := other.Kind == world.KindPlayer ||
				other.Needs.WealthDesire > partnerWealthDesire ||
				strings.Contains(strings.ToLower(other.Description), "merchant")
			if partner {
				return []Wish{{
					Category: "initiate_trade",
					Action:   action.New(action.InitiateTrade, "target", other.ID),
					Priority: tradePriority,
				}}
			}
		}
	}
	return nil
}

func (e *Evaluator) statusWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	if npc.Needs.SocialStatus >= lowSocialStatus {
		return nil
	}
	var wishes []Wish
	if npc.Personality.Confidence > boastConfidence {
		wishes = append(wishes, Wish{
			Category: "boast_achievements",
			Action:   action.New(action.BoastAchievements),
			Priority: boastPriority,
		})
	}
	for _, other := range occupantSheets(s, room, npc.ID) {
		if other.Kind == world.KindPlayer && other.NeedsHelp {
			wishes = append(wishes, Wish{
				Category: "offer_help",
				Action:   action.New(action.OfferHelp, "target", other.ID),
				Priority: offerHelpPriority,
			})
			break
		}
	}
	return wishes
}

func (e *Evaluator) responsibilityWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	var wishes []Wish
	witnesses := room.OccupantCount() - 1

	if npc.Personality.Responsibility < crimeResponsibility && witnesses < maxQuietWitnesses {
		for _, obj := range roomObjects(s, room) {
			if obj.Value > unguardedWorth && obj.OwnerID == "" {
				wishes = append(wishes, Wish{
					Category: "petty_theft",
					Action:   action.New(action.PettyTheft, "object_id", obj.ID),
					Priority: 30 + (crimeResponsibility - npc.Personality.Responsibility),
				})
				break
			}
		}
	}

	if npc.Personality.Responsibility > dutyResponsibility && criminalActivityIn(s, npc, room) {
		wishes = append(wishes, Wish{
			Category: "report_crime",
			Action:   action.New(action.ReportCrime),
			Priority: reportCrimePriority,
		})
	}
	return wishes
}

// criminalActivityIn reports whether the room shows signs of crime: another
// low-responsibility NPC loitering near an unguarded valuable.
func criminalActivityIn(s *world.State, npc *world.CharacterSheet, room *world.Room) bool {
	hasLoot := false
	for _, obj := range roomObjects(s, room) {
		if obj.Value > unguardedWorth && obj.OwnerID == "" {
			hasLoot = true
			break
		}
	}
	if !hasLoot {
		return false
	}
	for _, other := range occupantSheets(s, room, npc.ID) {
		if other.Kind == world.KindNPC && other.Personality.Responsibility < crimeResponsibility {
			return true
		}
	}
	return false
}

func (e *Evaluator) aggressionWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	var wishes []Wish

	if npc.Personality.Aggression > challengeAggression && npc.Personality.Confidence > challengeConfidence {
		for _, other := range occupantSheets(s, room, npc.ID) {
			if other.Kind != world.KindNPC {
				continue
			}
			if competesForResources(npc, other) {
				wishes = append(wishes, Wish{
					Category: "challenge_competitor",
					Action:   action.New(action.ChallengeCompetitor, "target", other.ID),
					Priority: 45 + (npc.Personality.Aggression - challengeAggression),
				})
				break
			}
		}
	}

	if npc.Personality.Aggression < timidAggression && conflictIn(s, npc, room) {
		wishes = append(wishes, Wish{
			Category: "flee_conflict",
			Action:   action.New(action.FleeConflict),
			Priority: fleeConflictPriority,
		})
	}
	return wishes
}

// competesForResources reports whether both NPCs share an urgent hunger or
// thirst need.
func competesForResources(a, b *world.CharacterSheet) bool {
	return (a.Needs.Hunger < urgentNeed && b.Needs.Hunger < urgentNeed) ||
		(a.Needs.Thirst < urgentNeed && b.Needs.Thirst < urgentNeed)
}

// conflictIn reports whether the room holds open conflict: a hostile
// occupant, or a pair of rival-faction NPCs.
func conflictIn(s *world.State, npc *world.CharacterSheet, room *world.Room) bool {
	occupants := occupantSheets(s, room, "")
	for _, o := range occupants {
		if o.ID != npc.ID && o.Hostile {
			return true
		}
	}
	for i := 0; i < len(occupants); i++ {
		for j := i + 1; j < len(occupants); j++ {
			if s.AreRivals(occupants[i].ID, occupants[j].ID) {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) curiosityWishes(s *world.State, npc *world.CharacterSheet, room *world.Room) []Wish {
	if npc.Personality.Curiosity <= curiousThreshold {
		return nil
	}
	var wishes []Wish

	for _, obj := range roomObjects(s, room) {
		if !npc.Ledger.HasMemoryOf("investigated", obj.ID) {
			wishes = append(wishes, Wish{
				Category: "investigate_object",
				Action:   action.New(action.InvestigateObject, "object_id", obj.ID, "name", obj.Name),
				Priority: investigatePriority,
			})
			break
		}
	}

	if npc.Personality.Confidence > exploreConfidence {
		for _, label := range sortedDoors(room) {
			if !npc.Ledger.HasMemoryOf("explored", room.Doors[label].TargetRoom) {
				wishes = append(wishes, Wish{
					Category: "explore_area",
					Action:   action.New(action.ExploreArea, "door", label),
					Priority: explorePriority,
				})
				break
			}
		}
	}
	return wishes
}
