// Package planner is the generative planning boundary. It snapshots one
// NPC's situation into a serializable context, asks a language model for a
// short action plan, and parses the reply back into queue entries. The tick
// scheduler treats every failure here as "use the offline planner this tick".
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/action"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

// ErrNotConfigured is returned when no API key was provided; callers fall
// back to offline planning unconditionally.
var ErrNotConfigured = errors.New("planner: not configured")

// Defaults.
const (
	DefaultModel     = "claude-haiku-4-5"
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 16 * 1024
	defaultMaxTokens = 1024
	// maxPlanActions caps a parsed plan; a misbehaving model cannot flood a
	// queue.
	maxPlanActions = 8
	recentMemories = 5
)

// Config configures the generative planner.
type Config struct {
	// APIKey enables the planner; empty means not configured.
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// Timeout is the hard per-call deadline.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxResponseBytes truncates implausibly large replies before parsing.
	MaxResponseBytes int `mapstructure:"max_response_bytes"`
	// ContentSafety is the per-world safety directive forwarded on every call.
	ContentSafety string `mapstructure:"content_safety"`
}

// NPCContext is the serializable snapshot handed to the model. It is built
// under the world lock and read afterwards without it, so it holds copies.
type NPCContext struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	RoomID        string            `json:"room_id"`
	RoomContents  []string          `json:"room_contents"`
	Occupants     []string          `json:"occupants"`
	Exits         []string          `json:"exits"`
	Inventory     []string          `json:"inventory"`
	Needs         map[string]float64 `json:"needs"`
	Personality   map[string]float64 `json:"personality"`
	Memories      []string          `json:"memories"`
	Relationships map[string]int    `json:"relationships"`
	Instruction   string            `json:"instruction"`
}

// BuildNPCContext snapshots everything the model needs about one NPC.
//
// Precondition: the caller must hold the world lock.
func BuildNPCContext(s *world.State, npc *world.CharacterSheet) NPCContext {
	nc := NPCContext{
		Name:        npc.Name,
		Description: npc.Description,
		RoomID:      npc.RoomID,
		Needs: map[string]float64{
			"hunger":        npc.Needs.Hunger,
			"thirst":        npc.Needs.Thirst,
			"sleep":         npc.Needs.Sleep,
			"socialization": npc.Needs.Socialization,
			"safety":        npc.Needs.Safety,
			"wealth_desire": npc.Needs.WealthDesire,
			"social_status": npc.Needs.SocialStatus,
		},
		Personality: map[string]float64{
			"aggression":     npc.Personality.Aggression,
			"confidence":     npc.Personality.Confidence,
			"curiosity":      npc.Personality.Curiosity,
			"responsibility": npc.Personality.Responsibility,
		},
		Relationships: make(map[string]int, len(npc.Ledger.Relationships)),
		Instruction:   "Choose a short plan of actions that serves this character's strongest need.",
	}

	for id, score := range npc.Ledger.Relationships {
		nc.Relationships[id] = score
	}
	start := len(npc.Ledger.Entries) - recentMemories
	if start < 0 {
		start = 0
	}
	for _, entry := range npc.Ledger.Entries[start:] {
		nc.Memories = append(nc.Memories, entry.Kind+" "+entry.Details)
	}

	for _, objID := range npc.Inventory.Items() {
		if obj, ok := s.Object(objID); ok {
			nc.Inventory = append(nc.Inventory, obj.Name)
		}
	}

	room, ok := s.Room(npc.RoomID)
	if !ok {
		return nc
	}
	objIDs := make([]string, 0, len(room.Objects))
	for id := range room.Objects {
		objIDs = append(objIDs, id)
	}
	sort.Strings(objIDs)
	for _, id := range objIDs {
		if obj, ok := s.Object(id); ok {
			nc.RoomContents = append(nc.RoomContents, fmt.Sprintf("%s (%s)", obj.Name, obj.ID))
		}
	}
	for id := range room.Players {
		if sheet, ok := s.Sheet(id); ok {
			nc.Occupants = append(nc.Occupants, sheet.Name)
		}
	}
	for id := range room.NPCs {
		if sheet, ok := s.Sheet(id); ok && id != npc.ID {
			nc.Occupants = append(nc.Occupants, sheet.Name)
		}
	}
	sort.Strings(nc.Occupants)
	for _, label := range sortedKeys(room.Doors) {
		nc.Exits = append(nc.Exits, label)
	}
	return nc
}

func sortedKeys(doors map[string]*world.Door) []string {
	keys := make([]string, 0, len(doors))
	for k := range doors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Planner calls the Anthropic Messages API to propose plans.
type Planner struct {
	client     anthropic.Client
	log        *zap.Logger
	model      string
	timeout    time.Duration
	maxBytes   int
	safety     string
	configured bool
}

// NewPlanner constructs a Planner. An empty API key yields a planner in the
// not-configured state; ProposePlan then always returns ErrNotConfigured.
//
// Precondition: log must not be nil.
func NewPlanner(cfg Config, log *zap.Logger) *Planner {
	if log == nil {
		panic("planner.NewPlanner: log must not be nil")
	}
	p := &Planner{
		log:      log,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxResponseBytes,
		safety:   cfg.ContentSafety,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.maxBytes <= 0 {
		p.maxBytes = DefaultMaxBytes
	}
	if cfg.APIKey != "" {
		p.client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		p.configured = true
	}
	return p
}

// Configured reports whether the planner can make calls at all.
func (p *Planner) Configured() bool {
	return p != nil && p.configured
}

const systemPrompt = `You plan actions for a non-player character in a text game.
Reply with ONLY a JSON array of actions. Each action is an object with a
"kind" string and an "args" object of string values. Valid kinds:
move_through, move_stairs, get_object, consume_object, drop, look, emote,
say, sleep, claim, do_nothing. Keep plans short (1-4 actions).`

// ProposePlan asks the model for a plan for one NPC.
//
// The call carries a hard deadline; the caller must not hold the world lock
// while waiting. Errors, timeouts, truncated replies that fail to parse, and
// the not-configured state all mean "fall back to offline planning".
func (p *Planner) ProposePlan(ctx context.Context, nc NPCContext) ([]action.Queued, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	prompt, err := json.Marshal(nc)
	if err != nil {
		return nil, fmt.Errorf("planner.Planner.ProposePlan: marshal context: %w", err)
	}
	system := systemPrompt
	if p.safety != "" {
		system += "\nContent policy: " + p.safety
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg, err := p.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(prompt))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner.Planner.ProposePlan: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	plan, err := ParsePlan([]byte(sb.String()), p.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("planner.Planner.ProposePlan: %w", err)
	}
	p.log.Debug("generative plan accepted",
		zap.String("npc", nc.Name),
		zap.Int("actions", len(plan)))
	return plan, nil
}

// ParsePlan decodes a model reply into queue entries. The raw reply is
// truncated at maxBytes before parsing; entries with unknown kinds are
// dropped rather than rejected, and the plan length is capped.
//
// Postcondition: every returned entry is well-formed.
func ParsePlan(raw []byte, maxBytes int) ([]action.Queued, error) {
	if maxBytes > 0 && len(raw) > maxBytes {
		raw = raw[:maxBytes]
	}

	// Models sometimes wrap the array in prose or a code fence; parse from
	// the first bracket through the last.
	start := strings.IndexByte(string(raw), '[')
	end := strings.LastIndexByte(string(raw), ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("planner.ParsePlan: no JSON array in reply")
	}

	var entries []action.Queued
	if err := json.Unmarshal(raw[start:end+1], &entries); err != nil {
		return nil, fmt.Errorf("planner.ParsePlan: %w", err)
	}

	plan := make([]action.Queued, 0, len(entries))
	for _, entry := range entries {
		if entry.Args == nil {
			entry.Args = map[string]string{}
		}
		if !entry.Kind.IsKnown() {
			continue
		}
		plan = append(plan, entry)
		if len(plan) == maxPlanActions {
			break
		}
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("planner.ParsePlan: no usable actions in reply")
	}
	return plan, nil
}
