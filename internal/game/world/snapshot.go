package world

// Snapshot is the opaque, serializable form of the whole world handed to the
// persistence boundary. Field shapes mirror the live state exactly so a
// restore is lossless.
type Snapshot struct {
	Rooms    map[string]*Room           `json:"rooms"`
	Objects  map[string]*Object         `json:"objects"`
	Sheets   map[string]*CharacterSheet `json:"sheets"`
	Factions map[string]*Faction        `json:"factions"`
	NPCIDs   map[string]string          `json:"npc_ids"`
	Mode     PlannerMode                `json:"planner_mode"`
}

// Snapshot captures the current world.
//
// Precondition: the caller must hold the world lock; the snapshot shares no
// mutable structure with the live state afterwards only at the top level —
// callers wanting full isolation should serialize promptly.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Rooms:    make(map[string]*Room, len(s.Rooms)),
		Objects:  make(map[string]*Object, len(s.Objects)),
		Sheets:   make(map[string]*CharacterSheet, len(s.Sheets)),
		Factions: make(map[string]*Faction, len(s.Factions)),
		NPCIDs:   make(map[string]string, len(s.npcIDs)),
		Mode:     s.Mode,
	}
	for k, v := range s.Rooms {
		snap.Rooms[k] = v
	}
	for k, v := range s.Objects {
		snap.Objects[k] = v
	}
	for k, v := range s.Sheets {
		snap.Sheets[k] = v
	}
	for k, v := range s.Factions {
		snap.Factions[k] = v
	}
	for k, v := range s.npcIDs {
		snap.NPCIDs[k] = v
	}
	return snap
}

// Restore replaces the world's contents with a snapshot.
//
// Precondition: the caller must hold the world lock. The consistency guard's
// OnWorldReload should run immediately after any restore.
func (s *State) Restore(snap *Snapshot) {
	s.Rooms = snap.Rooms
	s.Objects = snap.Objects
	s.Sheets = snap.Sheets
	s.Factions = snap.Factions
	s.npcIDs = snap.NPCIDs
	if s.Rooms == nil {
		s.Rooms = make(map[string]*Room)
	}
	if s.Objects == nil {
		s.Objects = make(map[string]*Object)
	}
	if s.Sheets == nil {
		s.Sheets = make(map[string]*CharacterSheet)
	}
	if s.Factions == nil {
		s.Factions = make(map[string]*Faction)
	}
	if s.npcIDs == nil {
		s.npcIDs = make(map[string]string)
	}
	if snap.Mode.Valid() {
		s.Mode = snap.Mode
	} else {
		s.Mode = ModeOffline
	}
	for _, room := range s.Rooms {
		if room.Players == nil {
			room.Players = make(map[string]bool)
		}
		if room.NPCs == nil {
			room.NPCs = make(map[string]bool)
		}
		if room.Doors == nil {
			room.Doors = make(map[string]*Door)
		}
		if room.Objects == nil {
			room.Objects = make(map[string]bool)
		}
	}
}
