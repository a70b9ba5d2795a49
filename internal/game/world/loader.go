package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlWorldFile is the top-level YAML structure for world content files.
type yamlWorldFile struct {
	World yamlWorld `yaml:"world"`
}

// yamlWorld is the YAML representation of a world.
type yamlWorld struct {
	Rooms    []yamlRoom    `yaml:"rooms"`
	Objects  []yamlObject  `yaml:"objects"`
	Factions []*Faction    `yaml:"factions"`
	NPCs     []yamlNPCSeed `yaml:"npcs"`
}

// yamlRoom is the YAML representation of a room.
type yamlRoom struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Doors       []yamlDoor `yaml:"doors"`
	Up          string     `yaml:"up"`
	Down        string     `yaml:"down"`
	Objects     []string   `yaml:"objects"`
}

// yamlDoor is the YAML representation of a door.
type yamlDoor struct {
	Label  string      `yaml:"label"`
	Target string      `yaml:"target"`
	Lock   *LockPolicy `yaml:"lock"`
}

// yamlObject is the YAML representation of an object definition.
type yamlObject struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description"`
	Tags            []string        `yaml:"tags"`
	Value           float64         `yaml:"value"`
	Durability      float64         `yaml:"durability"`
	Quality         float64         `yaml:"quality"`
	Owner           string          `yaml:"owner"`
	FactionOwner    string          `yaml:"faction_owner"`
	CraftInputs     []string        `yaml:"craft_inputs"`
	SalvageOutputs  []string        `yaml:"salvage_outputs"`
	Container       *ContainerSlots `yaml:"container"`
	TravelTarget    string          `yaml:"travel_target"`
	LegacySatiation float64         `yaml:"legacy_satiation"`
	LegacyHydration float64         `yaml:"legacy_hydration"`
}

// yamlNPCSeed is the YAML representation of an NPC placed at load time.
type yamlNPCSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Room        string `yaml:"room"`
	Guard       bool   `yaml:"guard"`
	Hostile     bool   `yaml:"hostile"`
	// Faction is the id of the faction this NPC joins at load time.
	Faction string `yaml:"faction"`
	Traits  struct {
		Responsibility *float64 `yaml:"responsibility"`
		Aggression     *float64 `yaml:"aggression"`
		Confidence     *float64 `yaml:"confidence"`
		Curiosity      *float64 `yaml:"curiosity"`
	} `yaml:"traits"`
	Currency int `yaml:"currency"`
}

// LoadWorldFile reads, converts, and validates a world content YAML file.
//
// Precondition: path must point to a valid YAML world file.
// Postcondition: returns a State passing Validate, or a non-nil error.
func LoadWorldFile(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}
	return LoadWorldBytes(data)
}

// LoadWorldBytes parses and validates a world from YAML bytes.
//
// Postcondition: returns a State passing Validate, or a non-nil error.
func LoadWorldBytes(data []byte) (*State, error) {
	var file yamlWorldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing world YAML: %w", err)
	}

	state, err := convertYAMLWorld(file.World)
	if err != nil {
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("validating world: %w", err)
	}
	return state, nil
}

// LoadWorldDir loads and merges all YAML files in a directory into one world.
//
// Precondition: dir must be a readable directory containing at least one
// .yaml/.yml file.
func LoadWorldDir(dir string) (*State, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading world directory %s: %w", dir, err)
	}

	var docs [][]byte
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading world file %s: %w", name, err)
		}
		docs = append(docs, data)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no world files found in %s", dir)
	}

	merged := yamlWorld{}
	for _, data := range docs {
		var file yamlWorldFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing world YAML: %w", err)
		}
		merged.Rooms = append(merged.Rooms, file.World.Rooms...)
		merged.Objects = append(merged.Objects, file.World.Objects...)
		merged.Factions = append(merged.Factions, file.World.Factions...)
		merged.NPCs = append(merged.NPCs, file.World.NPCs...)
	}

	state, err := convertYAMLWorld(merged)
	if err != nil {
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("validating world: %w", err)
	}
	return state, nil
}

// convertYAMLWorld converts parsed YAML structures into a live State.
func convertYAMLWorld(yw yamlWorld) (*State, error) {
	state := NewState()

	for _, yr := range yw.Rooms {
		room := NewRoom(yr.ID, strings.TrimSpace(yr.Description))
		room.Up = yr.Up
		room.Down = yr.Down
		for _, yd := range yr.Doors {
			room.Doors[yd.Label] = &Door{Label: yd.Label, TargetRoom: yd.Target, Lock: yd.Lock}
		}
		if err := state.AddRoom(room); err != nil {
			return nil, err
		}
	}

	objectRooms := make(map[string]string, len(yw.Objects))
	for _, yr := range yw.Rooms {
		for _, objID := range yr.Objects {
			objectRooms[objID] = yr.ID
		}
	}
	for _, yo := range yw.Objects {
		obj := &Object{
			ID:              yo.ID,
			Name:            yo.Name,
			Description:     yo.Description,
			Tags:            yo.Tags,
			Value:           yo.Value,
			Durability:      yo.Durability,
			Quality:         yo.Quality,
			OwnerID:         yo.Owner,
			FactionOwner:    yo.FactionOwner,
			CraftInputs:     yo.CraftInputs,
			SalvageOutputs:  yo.SalvageOutputs,
			Container:       yo.Container,
			TravelTarget:    yo.TravelTarget,
			LegacySatiation: yo.LegacySatiation,
			LegacyHydration: yo.LegacyHydration,
		}
		if err := state.AddObject(obj, objectRooms[yo.ID]); err != nil {
			return nil, err
		}
	}

	factionMembers := make(map[string][]string)
	for _, yn := range yw.NPCs {
		sheet := state.GetOrCreateNPCSheet(yn.Name)
		sheet.Description = yn.Description
		sheet.Guard = yn.Guard
		sheet.Hostile = yn.Hostile
		sheet.Currency = yn.Currency
		if yn.Faction != "" {
			factionMembers[yn.Faction] = append(factionMembers[yn.Faction], sheet.ID)
		}
		if yn.Traits.Responsibility != nil {
			sheet.Personality.Responsibility = *yn.Traits.Responsibility
		}
		if yn.Traits.Aggression != nil {
			sheet.Personality.Aggression = *yn.Traits.Aggression
		}
		if yn.Traits.Confidence != nil {
			sheet.Personality.Confidence = *yn.Traits.Confidence
		}
		if yn.Traits.Curiosity != nil {
			sheet.Personality.Curiosity = *yn.Traits.Curiosity
		}
		if yn.Room != "" {
			if err := state.MoveEntity(sheet.ID, yn.Room); err != nil {
				return nil, fmt.Errorf("placing npc %q: %w", yn.Name, err)
			}
		}
	}

	for _, f := range yw.Factions {
		if f == nil {
			continue
		}
		f.NPCIDs = append(f.NPCIDs, factionMembers[f.ID]...)
		state.Factions[f.ID] = f
	}

	resolveNPCRefs(state)

	return state, nil
}

// npcRefPrefix marks a lock-policy reference to an NPC by name instead of
// stable id. Content files cannot know generated ids, so "npc:Warden"
// resolves to the Warden's stable id at load time.
const npcRefPrefix = "npc:"

// resolveNPCRefs rewrites name-based lock references to stable ids.
// Unresolvable names are left as written; DoorPermits treats a reference to
// a missing entity as a failed rule.
func resolveNPCRefs(state *State) {
	resolve := func(ref string) string {
		name, ok := strings.CutPrefix(ref, npcRefPrefix)
		if !ok {
			return ref
		}
		if id, exists := state.npcIDs[name]; exists {
			return id
		}
		return ref
	}
	for _, room := range state.Rooms {
		for _, door := range room.Doors {
			if door.Lock == nil {
				continue
			}
			for i, id := range door.Lock.AllowIDs {
				door.Lock.AllowIDs[i] = resolve(id)
			}
			for i := range door.Lock.AllowRel {
				door.Lock.AllowRel[i].TargetID = resolve(door.Lock.AllowRel[i].TargetID)
			}
		}
	}
}
