// Package tick drives the world heartbeat: need decay and sleep regen, a
// planning pass for idle NPCs, and a bounded drain of queued actions. Ticks
// never overlap; the loop runs each tick to completion before the next fires.
package tick

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/autonomy"
	"github.com/cory-johannsen/hearth/internal/game/executor"
	"github.com/cory-johannsen/hearth/internal/game/needs"
	"github.com/cory-johannsen/hearth/internal/game/world"
	"github.com/cory-johannsen/hearth/internal/planner"
	"github.com/cory-johannsen/hearth/internal/ratelimit"
)

// PlanProposer is the generative planning boundary.
type PlanProposer interface {
	Configured() bool
	ProposePlan(ctx context.Context, nc planner.NPCContext) ([]action.Queued, error)
}

// Limiter gates expensive operations per key.
type Limiter interface {
	CheckAndConsume(key string, tier ratelimit.CostTier) bool
}

// Deliverer ships executor events to sessions. Must not block.
type Deliverer interface {
	Deliver(events []executor.Event)
}

// Saver schedules a world snapshot write. Must not block.
type Saver interface {
	ScheduleSave()
}

// Config holds the per-tick tunables.
type Config struct {
	// Interval between ticks.
	Interval time.Duration `mapstructure:"interval"`
	// MaxActionsPerNPC bounds the per-tick drain for one NPC.
	MaxActionsPerNPC int `mapstructure:"max_actions_per_npc"`
	// Per-tick passive decay rates.
	HungerDecay        float64 `mapstructure:"hunger_decay"`
	ThirstDecay        float64 `mapstructure:"thirst_decay"`
	SocializationDecay float64 `mapstructure:"socialization_decay"`
	SleepDecay         float64 `mapstructure:"sleep_decay"`
	// SleepRegen is restored per tick while sleeping, instead of decay.
	SleepRegen float64 `mapstructure:"sleep_regen"`
}

// DefaultConfig returns the standard rates: one tick per second with slow
// decay, so an untouched need drains over roughly half an hour of play.
func DefaultConfig() Config {
	return Config{
		Interval:           time.Second,
		MaxActionsPerNPC:   3,
		HungerDecay:        0.05,
		ThirstDecay:        0.08,
		SocializationDecay: 0.03,
		SleepDecay:         0.02,
		SleepRegen:         10,
	}
}

// Scheduler owns the tick loop.
type Scheduler struct {
	cfg      Config
	state    *world.State
	exec     *executor.Executor
	offline  *autonomy.OfflinePlanner
	eval     *autonomy.Evaluator
	proposer PlanProposer
	limiter  Limiter
	deliver  Deliverer
	saver    Saver
	log      *zap.Logger

	done chan struct{}
}

// NewScheduler constructs a Scheduler.
//
// Precondition: state, exec, offline, and log must not be nil. proposer,
// limiter, deliver, and saver may be nil; the corresponding step is skipped.
func NewScheduler(cfg Config, state *world.State, exec *executor.Executor,
	offline *autonomy.OfflinePlanner, proposer PlanProposer, limiter Limiter,
	deliver Deliverer, saver Saver, log *zap.Logger) *Scheduler {
	if state == nil || exec == nil || offline == nil {
		panic("tick.NewScheduler: state, exec, and offline must not be nil")
	}
	if log == nil {
		panic("tick.NewScheduler: log must not be nil")
	}
	d := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.MaxActionsPerNPC <= 0 {
		cfg.MaxActionsPerNPC = d.MaxActionsPerNPC
	}
	return &Scheduler{
		cfg:      cfg,
		state:    state,
		exec:     exec,
		offline:  offline,
		eval:     autonomy.NewEvaluator(rand.New(rand.NewSource(time.Now().UnixNano()))),
		proposer: proposer,
		limiter:  limiter,
		deliver:  deliver,
		saver:    saver,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Runs until ctx is cancelled.
//
// Postcondition: ticks are sequential; a tick completes before the next fires.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunTick(ctx)
			}
		}
	}()
}

// Wait blocks until the tick loop has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

// RunTick executes one full tick: decay, planning, drain, delivery, and a
// scheduled save. Exported so tests and admin commands can step the world.
func (s *Scheduler) RunTick(ctx context.Context) {
	s.state.Lock()
	s.decayPass()
	idle := s.idleNPCs()
	mode := s.state.Mode
	s.state.Unlock()

	for _, id := range idle {
		s.planFor(ctx, id, mode)
	}

	s.state.Lock()
	events := s.drainPass()
	s.state.Unlock()

	if s.deliver != nil && len(events) > 0 {
		s.deliver.Deliver(events)
	}
	if s.saver != nil {
		s.saver.ScheduleSave()
	}
}

// decayPass applies passive decay to every sheet, or sleep regeneration to
// sleeping entities. A sleep cycle reaching zero releases the bed claim.
//
// Precondition: world lock held.
func (s *Scheduler) decayPass() {
	for _, sheet := range s.state.AllSheets() {
		if sheet.Sleeping() {
			sheet.Needs.Restore(needs.Sleep, s.cfg.SleepRegen)
			sheet.SleepTicksRemaining--
			if sheet.SleepTicksRemaining <= 0 {
				sheet.SleepTicksRemaining = 0
				sheet.SleepingBedID = ""
			}
			continue
		}
		sheet.Needs.Decay(needs.Hunger, s.cfg.HungerDecay)
		sheet.Needs.Decay(needs.Thirst, s.cfg.ThirstDecay)
		sheet.Needs.Decay(needs.Socialization, s.cfg.SocializationDecay)
		sheet.Needs.Decay(needs.Sleep, s.cfg.SleepDecay)
	}
}

// idleNPCs returns the ids of awake NPCs with empty plan queues.
//
// Precondition: world lock held.
func (s *Scheduler) idleNPCs() []string {
	var ids []string
	for _, sheet := range s.state.NPCSheets() {
		if !sheet.Sleeping() && len(sheet.PlanQueue) == 0 {
			ids = append(ids, sheet.ID)
		}
	}
	return ids
}

// planFor fills one NPC's empty queue. In advanced mode the generative
// planner is tried first, subject to the rate limiter; when it is
// unconfigured, rate limited, or fails, the evaluator's ranked wish-list
// plans instead, so advanced mode keeps personality-driven behavior even
// with the model unreachable. The offline planner is the floor: every
// remaining path lands there so the NPC never ends the tick planless.
func (s *Scheduler) planFor(ctx context.Context, npcID string, mode world.PlannerMode) {
	if mode == world.ModeAdvanced {
		if s.proposer != nil && s.proposer.Configured() {
			if s.limiter == nil || s.limiter.CheckAndConsume(npcID, ratelimit.TierPlanner) {
				if s.planAdvanced(ctx, npcID) {
					return
				}
			} else {
				s.log.Debug("planner call rate limited", zap.String("npc", npcID))
			}
		}
		if s.planWishes(npcID) {
			return
		}
	}
	s.planOffline(npcID)
}

// maxWishesPerPlan bounds how many top-ranked wishes become one plan.
const maxWishesPerPlan = 3

// planWishes fills the queue from the evaluator's wish-list, taking the
// top-ranked wishes in priority order. Reports false when the evaluator has
// nothing to say, leaving the NPC to the offline planner.
func (s *Scheduler) planWishes(npcID string) bool {
	s.state.Lock()
	defer s.state.Unlock()
	npc, ok := s.state.Sheet(npcID)
	if !ok || len(npc.PlanQueue) > 0 {
		return true
	}
	wishes := s.eval.Evaluate(s.state, npc)
	if len(wishes) == 0 {
		return false
	}
	n := len(wishes)
	if n > maxWishesPerPlan {
		n = maxWishesPerPlan
	}
	for _, w := range wishes[:n] {
		npc.EnqueuePlan(w.Action)
	}
	return true
}

// planAdvanced snapshots the NPC under the lock, awaits the generative call
// without it, then re-acquires the lock and applies the plan only if the NPC
// still exists with an empty queue. Plan entries referencing objects that
// disappeared during the await are dropped.
func (s *Scheduler) planAdvanced(ctx context.Context, npcID string) bool {
	s.state.Lock()
	npc, ok := s.state.Sheet(npcID)
	if !ok {
		s.state.Unlock()
		return true // nothing to plan for
	}
	nc := planner.BuildNPCContext(s.state, npc)
	s.state.Unlock()

	plan, err := s.proposer.ProposePlan(ctx, nc)
	if err != nil {
		s.log.Warn("generative planning failed, falling back",
			zap.String("npc", npcID), zap.Error(err))
		return false
	}

	s.state.Lock()
	defer s.state.Unlock()
	npc, ok = s.state.Sheet(npcID)
	if !ok || len(npc.PlanQueue) > 0 || npc.Sleeping() {
		return true // world moved on during the await
	}
	kept := plan[:0]
	for _, entry := range plan {
		if !s.entryTargetsExist(entry) {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == 0 {
		return false
	}
	npc.EnqueuePlan(kept...)
	return true
}

// entryTargetsExist re-validates object references against the live world.
func (s *Scheduler) entryTargetsExist(entry action.Queued) bool {
	for _, key := range [...]string{"object_id", "bed_id"} {
		if id := entry.Arg(key); id != "" {
			if _, ok := s.state.Object(id); !ok {
				return false
			}
		}
	}
	if id := entry.Arg("target"); id != "" && !s.state.EntityExists(id) {
		return false
	}
	return true
}

func (s *Scheduler) planOffline(npcID string) {
	s.state.Lock()
	defer s.state.Unlock()
	npc, ok := s.state.Sheet(npcID)
	if !ok || len(npc.PlanQueue) > 0 {
		return
	}
	npc.EnqueuePlan(s.offline.Plan(s.state, npc)...)
}

// drainPass pops up to the configured number of actions per NPC and applies
// each. Failed actions are dropped, not retried, and surface as in-character
// flavor lines rather than raw errors.
//
// Precondition: world lock held.
func (s *Scheduler) drainPass() []executor.Event {
	var events []executor.Event
	for _, sheet := range s.state.NPCSheets() {
		if sheet.Sleeping() {
			continue
		}
		budget := s.cfg.MaxActionsPerNPC
		if sheet.ActionPoints > 0 && sheet.ActionPoints < budget {
			budget = sheet.ActionPoints
		}
		for i := 0; i < budget; i++ {
			entry, ok := sheet.DequeuePlan()
			if !ok {
				break
			}
			res := s.exec.Execute(s.state, sheet.ID, entry)
			if res.OK {
				events = append(events, res.Events...)
				continue
			}
			s.log.Debug("action failed",
				zap.String("npc", sheet.Name),
				zap.String("kind", string(entry.Kind)),
				zap.String("reason", res.Reason))
			if line := failureLine(sheet.Name, entry, res.Reason); line != "" {
				events = append(events, executor.Broadcast(sheet.RoomID, line))
			}
		}
	}
	return events
}

// failureLine converts a failure reason into a short in-character line.
func failureLine(name string, entry action.Queued, reason string) string {
	switch reason {
	case executor.ReasonLocked:
		return fmt.Sprintf("%s tries the door, but it's locked!", name)
	case executor.ReasonObjectNotFound, executor.ReasonTargetNotFound:
		if want := entry.Arg("name"); want != "" {
			return fmt.Sprintf("%s mutters, \"I cannot find the %s!\"", name, want)
		}
		return fmt.Sprintf("%s looks around, puzzled.", name)
	case executor.ReasonNoFreeSlot, executor.ReasonCannotCarry:
		return fmt.Sprintf("%s fumbles with full hands.", name)
	case executor.ReasonNotInInventory, executor.ReasonNotConsumable:
		return fmt.Sprintf("%s pats their pockets, finding nothing.", name)
	case executor.ReasonNothingToSay:
		return fmt.Sprintf("%s opens their mouth, then thinks better of it.", name)
	case executor.ReasonAlreadyOwned:
		return fmt.Sprintf("%s scowls at someone else's property.", name)
	case executor.ReasonInvalidAction:
		return ""
	default:
		return fmt.Sprintf("%s grumbles.", name)
	}
}
