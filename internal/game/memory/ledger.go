// Package memory provides the bounded event ledger and signed relationship
// scores an NPC keeps about the world around it.
package memory

import "time"

// Relationship score bounds.
const (
	MinScore = -100
	MaxScore = 100
)

// DefaultMaxEntries is the default bound on remembered events.
const DefaultMaxEntries = 50

// Entry is one observed event, tagged by kind.
type Entry struct {
	// Kind categorizes the event (e.g. "investigated", "theft_witnessed").
	Kind string `yaml:"kind" json:"kind"`
	// Details is free-form event context.
	Details string `yaml:"details" json:"details"`
	// At is the observation timestamp.
	At time.Time `yaml:"at" json:"at"`
}

// Ledger holds one entity's memories and relationship scores.
// A zero Ledger is ready for use; maps are initialized lazily.
type Ledger struct {
	// Entries is the bounded, oldest-first event log.
	Entries []Entry `yaml:"entries" json:"entries"`
	// Relationships maps another entity's stable id to a score in
	// [MinScore, MaxScore].
	Relationships map[string]int `yaml:"relationships" json:"relationships"`
}

// Remember appends a timestamped entry, truncating to the most recent max
// entries (oldest dropped first). A max of <= 0 uses DefaultMaxEntries.
func (l *Ledger) Remember(kind, details string, at time.Time, max int) {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	l.Entries = append(l.Entries, Entry{Kind: kind, Details: details, At: at})
	if excess := len(l.Entries) - max; excess > 0 {
		l.Entries = append(l.Entries[:0], l.Entries[excess:]...)
	}
}

// AdjustRelationship adds delta to the score for targetID (default 0),
// clamped to [MinScore, MaxScore], and returns the new score.
func (l *Ledger) AdjustRelationship(targetID string, delta int) int {
	if l.Relationships == nil {
		l.Relationships = make(map[string]int)
	}
	score := l.Relationships[targetID] + delta
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	l.Relationships[targetID] = score
	return score
}

// Relationship returns the score for targetID, or 0 if none is recorded.
func (l *Ledger) Relationship(targetID string) int {
	return l.Relationships[targetID]
}

// HasMemoryOf reports whether any entry of the given kind mentions details
// exactly. Used by the curiosity rules to skip already-investigated objects.
func (l *Ledger) HasMemoryOf(kind, details string) bool {
	for _, e := range l.Entries {
		if e.Kind == kind && e.Details == details {
			return true
		}
	}
	return false
}

// ForgetRelationship removes any score for targetID. Called when the target
// entity is deleted from the world.
func (l *Ledger) ForgetRelationship(targetID string) {
	delete(l.Relationships, targetID)
}
