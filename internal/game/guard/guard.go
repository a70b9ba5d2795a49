// Package guard detects and repairs NPC and world state corruption. Planner
// mode switches and world reloads are the historical trouble spots: a plan
// built under one planning paradigm is never valid under the other, so mode
// switches always clear every queue before anything else runs.
package guard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/world"
)

// Guard validates and repairs world state. Repair is idempotent: running it
// twice in a row performs no work the second time.
type Guard struct {
	log *zap.Logger
	// cleanups run at the start of a world reload to flush external caches
	// (planner context caches, session-keyed ephemera).
	cleanups []func()
}

// NewGuard constructs a Guard.
//
// Precondition: log must not be nil.
func NewGuard(log *zap.Logger, cleanups ...func()) *Guard {
	if log == nil {
		panic("guard.NewGuard: log must not be nil")
	}
	return &Guard{log: log, cleanups: cleanups}
}

// Validate checks per-sheet invariants: well-formed plan queue entries, need
// values in [0,100], a non-negative action budget, and mutually consistent
// sleep state. It also runs the structural world validation.
//
// Precondition: the caller must hold the world lock.
// Postcondition: returns (true, nil) or (false, one issue per violation).
func (g *Guard) Validate(s *world.State) (bool, []string) {
	var issues []string
	for _, sheet := range s.AllSheets() {
		issues = append(issues, sheetIssues(sheet)...)
	}
	if err := s.Validate(); err != nil {
		issues = append(issues, fmt.Sprintf("world: %v", err))
	}
	return len(issues) == 0, issues
}

func sheetIssues(sheet *world.CharacterSheet) []string {
	var issues []string
	for i, entry := range sheet.PlanQueue {
		if !entry.WellFormed() {
			issues = append(issues, fmt.Sprintf("sheet %q: plan queue entry %d is malformed (kind %q)", sheet.ID, i, entry.Kind))
		}
	}
	if clone := sheet.Needs; clone.ClampAll() {
		issues = append(issues, fmt.Sprintf("sheet %q: need value out of range", sheet.ID))
	}
	if sheet.ActionPoints < 0 {
		issues = append(issues, fmt.Sprintf("sheet %q: negative action points %d", sheet.ID, sheet.ActionPoints))
	}
	if (sheet.SleepTicksRemaining > 0) != (sheet.SleepingBedID != "") {
		issues = append(issues, fmt.Sprintf("sheet %q: sleep ticks %d inconsistent with bed %q",
			sheet.ID, sheet.SleepTicksRemaining, sheet.SleepingBedID))
	}
	return issues
}

// Repair fixes every violation Validate reports, in place.
//
// Queues are cleared entirely when resetPlans is set; otherwise only the
// malformed entries are stripped.
// Out-of-range needs are clamped unless resetNeeds is set, which restores the
// four basic needs to 100. Sleep inconsistency is repaired toward the less
// destructive state: a sleep with no bed stops, a dangling bed reference with
// no active sleep is cleared.
//
// Precondition: the caller must hold the world lock.
// Postcondition: a subsequent Validate reports no sheet-level issues; returns
// the repair count and a description per repair.
func (g *Guard) Repair(s *world.State, resetPlans, resetNeeds bool) (int, []string) {
	var actions []string
	for _, sheet := range s.AllSheets() {
		actions = append(actions, repairSheet(sheet, resetPlans, resetNeeds)...)
	}
	for _, a := range actions {
		g.log.Warn("repaired state", zap.String("action", a))
	}
	return len(actions), actions
}

func repairSheet(sheet *world.CharacterSheet, resetPlans, resetNeeds bool) []string {
	var actions []string

	if resetPlans && len(sheet.PlanQueue) > 0 {
		sheet.ClearPlan()
		actions = append(actions, fmt.Sprintf("sheet %q: cleared plan queue", sheet.ID))
	} else if len(sheet.PlanQueue) > 0 {
		kept := sheet.PlanQueue[:0]
		stripped := 0
		for _, entry := range sheet.PlanQueue {
			if entry.WellFormed() {
				kept = append(kept, entry)
			} else {
				stripped++
			}
		}
		if stripped > 0 {
			sheet.PlanQueue = kept
			actions = append(actions, fmt.Sprintf("sheet %q: stripped %d malformed plan entries", sheet.ID, stripped))
		}
	}

	if resetNeeds {
		if sheet.Needs.Hunger != 100 || sheet.Needs.Thirst != 100 ||
			sheet.Needs.Sleep != 100 || sheet.Needs.Socialization != 100 {
			sheet.Needs.Hunger = 100
			sheet.Needs.Thirst = 100
			sheet.Needs.Sleep = 100
			sheet.Needs.Socialization = 100
			actions = append(actions, fmt.Sprintf("sheet %q: reset basic needs", sheet.ID))
		}
	} else if sheet.Needs.ClampAll() {
		actions = append(actions, fmt.Sprintf("sheet %q: clamped out-of-range needs", sheet.ID))
	}

	if sheet.ActionPoints < 0 {
		sheet.ActionPoints = 0
		actions = append(actions, fmt.Sprintf("sheet %q: reset negative action points", sheet.ID))
	}

	if sheet.SleepTicksRemaining < 0 {
		sheet.SleepTicksRemaining = 0
		actions = append(actions, fmt.Sprintf("sheet %q: clamped negative sleep ticks", sheet.ID))
	}
	switch {
	case sheet.SleepTicksRemaining > 0 && sheet.SleepingBedID == "":
		sheet.SleepTicksRemaining = 0
		actions = append(actions, fmt.Sprintf("sheet %q: stopped sleep with no bed", sheet.ID))
	case sheet.SleepTicksRemaining == 0 && sheet.SleepingBedID != "":
		sheet.SleepingBedID = ""
		actions = append(actions, fmt.Sprintf("sheet %q: cleared dangling bed reference", sheet.ID))
	}

	return actions
}

// SwitchPlannerMode changes the world's planner mode.
//
// An unchanged mode only validates and repairs opportunistically. A real
// change clears every NPC's plan queue before anything else, flips the flag,
// then repairs and re-validates. Lingering issues are logged as a warning but
// never fail the switch.
//
// Precondition: the caller must hold the world lock.
func (g *Guard) SwitchPlannerMode(s *world.State, newMode world.PlannerMode) (bool, []string) {
	if !newMode.Valid() {
		return false, []string{fmt.Sprintf("unknown planner mode %q", newMode)}
	}

	var actions []string
	if newMode != s.Mode {
		for _, sheet := range s.NPCSheets() {
			if len(sheet.PlanQueue) > 0 {
				sheet.ClearPlan()
				actions = append(actions, fmt.Sprintf("sheet %q: cleared plan queue for mode switch", sheet.ID))
			}
		}
		old := s.Mode
		s.Mode = newMode
		g.log.Info("planner mode switched",
			zap.String("from", string(old)),
			zap.String("to", string(newMode)))
	}

	_, repairs := g.Repair(s, false, false)
	actions = append(actions, repairs...)

	if ok, issues := g.Validate(s); !ok {
		g.log.Warn("issues remain after planner mode switch", zap.Strings("issues", issues))
		actions = append(actions, issues...)
	}
	return true, actions
}

// OnWorldReload runs the full post-load cycle: external cache cleanup, a
// conservative repair, a same-mode planner switch to force validate/repair,
// and finally a health score.
//
// Precondition: the caller must hold the world lock.
// Postcondition: returns the repair descriptions and a health score in
// [0,100], where 100 means every check passed after repair.
func (g *Guard) OnWorldReload(s *world.State) ([]string, float64) {
	for _, cleanup := range g.cleanups {
		cleanup()
	}

	if !s.Mode.Valid() {
		s.Mode = world.ModeOffline
	}

	_, actions := g.Repair(s, false, false)
	_, switchActions := g.SwitchPlannerMode(s, s.Mode)
	actions = append(actions, switchActions...)

	score := g.healthScore(s)
	g.log.Info("world reloaded",
		zap.Int("repairs", len(actions)),
		zap.Float64("health", score))
	return actions, score
}

// healthScore counts per-sheet checks (plan queue, needs, action points,
// sleep state) plus the structural world check, and scores the passing share.
func (g *Guard) healthScore(s *world.State) float64 {
	sheets := s.AllSheets()
	total := len(sheets)*4 + 1
	failed := 0
	for _, sheet := range sheets {
		failed += len(sheetIssues(sheet))
	}
	if err := s.Validate(); err != nil {
		failed++
	}
	if failed > total {
		failed = total
	}
	return 100 - float64(failed)/float64(total)*100
}
