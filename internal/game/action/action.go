// Package action defines the fixed action vocabulary an NPC plan queue may
// name, plus the queued-action shape shared by the planners, the executor,
// and the consistency guard.
package action

// Kind names one action in the vocabulary.
type Kind string

// The full action vocabulary. Any kind outside this set is treated as an
// invalid queue entry by the executor and stripped by the consistency guard.
const (
	MoveThrough         Kind = "move_through"
	MoveStairs          Kind = "move_stairs"
	GetObject           Kind = "get_object"
	ConsumeObject       Kind = "consume_object"
	Drop                Kind = "drop"
	Look                Kind = "look"
	Emote               Kind = "emote"
	Say                 Kind = "say"
	Sleep               Kind = "sleep"
	Claim               Kind = "claim"
	FleeDanger          Kind = "flee_danger"
	MoveToSafety        Kind = "move_to_safety"
	StealObject         Kind = "steal_object"
	PettyTheft          Kind = "petty_theft"
	InitiateTrade       Kind = "initiate_trade"
	BoastAchievements   Kind = "boast_achievements"
	OfferHelp           Kind = "offer_help"
	ReportCrime         Kind = "report_crime"
	ChallengeCompetitor Kind = "challenge_competitor"
	FleeConflict        Kind = "flee_conflict"
	InvestigateObject   Kind = "investigate_object"
	ExploreArea         Kind = "explore_area"
	Attack              Kind = "attack"
	DoNothing           Kind = "do_nothing"
)

var known = map[Kind]struct{}{
	MoveThrough: {}, MoveStairs: {}, GetObject: {}, ConsumeObject: {},
	Drop: {}, Look: {}, Emote: {}, Say: {}, Sleep: {}, Claim: {},
	FleeDanger: {}, MoveToSafety: {}, StealObject: {}, PettyTheft: {},
	InitiateTrade: {}, BoastAchievements: {}, OfferHelp: {}, ReportCrime: {},
	ChallengeCompetitor: {}, FleeConflict: {}, InvestigateObject: {},
	ExploreArea: {}, Attack: {}, DoNothing: {},
}

// IsKnown reports whether k is part of the vocabulary.
func (k Kind) IsKnown() bool {
	_, ok := known[k]
	return ok
}

// Queued is one pending plan-queue entry: a tagged kind plus an open-ended
// argument bag.
type Queued struct {
	Kind Kind              `yaml:"kind" json:"kind"`
	Args map[string]string `yaml:"args" json:"args"`
}

// New builds a queued action with the given argument pairs.
//
// Precondition: pairs must have even length (key, value, key, value...).
func New(kind Kind, pairs ...string) Queued {
	args := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		args[pairs[i]] = pairs[i+1]
	}
	return Queued{Kind: kind, Args: args}
}

// Arg returns the named argument, or "" if absent.
func (q Queued) Arg(name string) string {
	return q.Args[name]
}

// WellFormed reports whether q carries a recognized kind and a non-nil
// argument bag. Malformed entries are discarded rather than executed.
func (q Queued) WellFormed() bool {
	return q.Kind.IsKnown() && q.Args != nil
}
