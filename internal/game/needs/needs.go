// Package needs provides the pure need-gauge and personality model shared by
// players and NPCs: 0–100 gauges that decay over time and are restored by
// specific actions, plus the static trait block that drives autonomy scoring.
package needs

import (
	"math"
	"strconv"
	"strings"
)

// Gauge bounds for every need value.
const (
	Min = 0.0
	Max = 100.0
)

// Kind names one of the need gauges.
type Kind string

// The seven need gauges. Hunger through Socialization decay passively each
// tick; Safety, WealthDesire, and SocialStatus are the enhanced needs driven
// by world events and autonomy scoring.
const (
	Hunger        Kind = "hunger"
	Thirst        Kind = "thirst"
	Sleep         Kind = "sleep"
	Socialization Kind = "socialization"
	Safety        Kind = "safety"
	WealthDesire  Kind = "wealth_desire"
	SocialStatus  Kind = "social_status"
)

// Needs is the full need block of a character sheet.
//
// Invariant: every field stays within [Min, Max] after any Decay or Restore.
type Needs struct {
	Hunger        float64 `yaml:"hunger" json:"hunger"`
	Thirst        float64 `yaml:"thirst" json:"thirst"`
	Sleep         float64 `yaml:"sleep" json:"sleep"`
	Socialization float64 `yaml:"socialization" json:"socialization"`
	Safety        float64 `yaml:"safety" json:"safety"`
	WealthDesire  float64 `yaml:"wealth_desire" json:"wealth_desire"`
	SocialStatus  float64 `yaml:"social_status" json:"social_status"`
}

// Defaults returns a fully satisfied need block.
//
// Postcondition: all basic needs are Max; enhanced needs start at Max except
// WealthDesire and SocialStatus, which start at the neutral midpoint.
func Defaults() Needs {
	return Needs{
		Hunger:        Max,
		Thirst:        Max,
		Sleep:         Max,
		Socialization: Max,
		Safety:        Max,
		WealthDesire:  50,
		SocialStatus:  50,
	}
}

// Personality is the static trait block. Values are 0–100 and never change
// unless explicitly edited.
type Personality struct {
	Responsibility float64 `yaml:"responsibility" json:"responsibility"`
	Aggression     float64 `yaml:"aggression" json:"aggression"`
	Confidence     float64 `yaml:"confidence" json:"confidence"`
	Curiosity      float64 `yaml:"curiosity" json:"curiosity"`
}

// DefaultPersonality returns a neutral trait block (all 50).
func DefaultPersonality() Personality {
	return Personality{Responsibility: 50, Aggression: 50, Confidence: 50, Curiosity: 50}
}

// Clamp clamps v to [Min, Max]. NaN maps to Min.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Min
	}
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// get returns a pointer to the gauge named by kind, or nil for an unknown kind.
func (n *Needs) get(kind Kind) *float64 {
	switch kind {
	case Hunger:
		return &n.Hunger
	case Thirst:
		return &n.Thirst
	case Sleep:
		return &n.Sleep
	case Socialization:
		return &n.Socialization
	case Safety:
		return &n.Safety
	case WealthDesire:
		return &n.WealthDesire
	case SocialStatus:
		return &n.SocialStatus
	default:
		return nil
	}
}

// Value returns the current value of the named gauge, or Min for an unknown kind.
func (n *Needs) Value(kind Kind) float64 {
	if p := n.get(kind); p != nil {
		return *p
	}
	return Min
}

// Decay subtracts amount from the named gauge, clamped to [Min, Max].
// Unknown kinds are ignored.
func (n *Needs) Decay(kind Kind, amount float64) {
	if p := n.get(kind); p != nil {
		*p = Clamp(*p - amount)
	}
}

// Restore adds amount to the named gauge, clamped to [Min, Max].
// Unknown kinds are ignored.
func (n *Needs) Restore(kind Kind, amount float64) {
	if p := n.get(kind); p != nil {
		*p = Clamp(*p + amount)
	}
}

// ClampAll clamps every gauge in place and reports whether any was out of range.
func (n *Needs) ClampAll() bool {
	changed := false
	for _, k := range []Kind{Hunger, Thirst, Sleep, Socialization, Safety, WealthDesire, SocialStatus} {
		p := n.get(k)
		if c := Clamp(*p); c != *p {
			*p = c
			changed = true
		}
	}
	return changed
}

// Nutrition tag prefixes. An object whose tag set contains the bare key or a
// "key: N" form is tag-governed for that nutrition channel.
const (
	edibleTag    = "Edible"
	drinkableTag = "Drinkable"
)

// NutritionOf derives (satiation, hydration) for an object from its tag set,
// falling back to the legacy numeric fields only when the corresponding tag
// key is entirely absent.
//
// The precedence rule is deliberately asymmetric: presence of the tag key
// signals that the object's nutrition is tag-governed, so a bare "Edible" tag
// with no numeric suffix yields 0 satiation — never the legacy value.
func NutritionOf(tags []string, legacySatiation, legacyHydration float64) (satiation, hydration float64) {
	satVal, satTagged := tagValue(tags, edibleTag)
	hydVal, hydTagged := tagValue(tags, drinkableTag)

	satiation = legacySatiation
	if satTagged {
		satiation = satVal
	}
	hydration = legacyHydration
	if hydTagged {
		hydration = hydVal
	}
	return satiation, hydration
}

// tagValue scans tags for key or "key: N" and returns the parsed value and
// whether the key was present at all. A present key with a missing or
// malformed suffix yields (0, true).
func tagValue(tags []string, key string) (float64, bool) {
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == key {
			return 0, true
		}
		if strings.HasPrefix(trimmed, key+":") {
			suffix := strings.TrimSpace(trimmed[len(key)+1:])
			v, err := strconv.ParseFloat(suffix, 64)
			if err != nil || math.IsNaN(v) {
				return 0, true
			}
			return v, true
		}
	}
	return 0, false
}
