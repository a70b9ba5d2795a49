// Package main provides a content validation tool: it loads a world content
// directory, runs the consistency checks, and reports what a server boot
// would repair.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/guard"
	"github.com/cory-johannsen/hearth/internal/game/world"
)

func main() {
	contentDir := flag.String("content", "content/world", "path to world content directory")
	repair := flag.Bool("repair", false, "report repairs a server boot would apply")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	state, err := world.LoadWorldDir(*contentDir)
	if err != nil {
		logger.Fatal("loading world content", zap.Error(err))
	}
	fmt.Printf("loaded %d rooms, %d objects, %d sheets, %d factions\n",
		len(state.Rooms), len(state.Objects), len(state.Sheets), len(state.Factions))

	g := guard.NewGuard(logger)
	ok, issues := g.Validate(state)
	for _, issue := range issues {
		fmt.Printf("issue: %s\n", issue)
	}

	if *repair {
		actions, health := g.OnWorldReload(state)
		for _, a := range actions {
			fmt.Printf("repair: %s\n", a)
		}
		fmt.Printf("health after repair: %.0f\n", health)
	}

	if !ok && !*repair {
		os.Exit(1)
	}
}
