package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/world"
)

// saveFlushTimeout bounds the final snapshot write during shutdown.
const saveFlushTimeout = 10 * time.Second

// Saver writes world snapshots asynchronously. ScheduleSave only marks the
// world dirty; the background loop coalesces marks and writes at most one
// snapshot per interval, so the tick loop never blocks on the database.
type Saver struct {
	repo      *SnapshotRepository
	state     *world.State
	worldName string
	interval  time.Duration
	log       *zap.Logger

	dirty chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// NewSaver constructs a Saver.
//
// Precondition: repo, state, and log must not be nil; worldName must be
// non-empty. A non-positive interval defaults to 30 seconds.
func NewSaver(repo *SnapshotRepository, state *world.State, worldName string,
	interval time.Duration, log *zap.Logger) *Saver {
	if repo == nil || state == nil || log == nil {
		panic("postgres.NewSaver: repo, state, and log must not be nil")
	}
	if worldName == "" {
		panic("postgres.NewSaver: worldName must not be empty")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Saver{
		repo:      repo,
		state:     state,
		worldName: worldName,
		interval:  interval,
		log:       log,
		dirty:     make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ScheduleSave marks the world dirty. Never blocks; repeated calls between
// writes coalesce into a single snapshot.
func (s *Saver) ScheduleSave() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Start launches the background save loop.
func (s *Saver) Start() error {
	go s.run()
	return nil
}

// Stop halts the loop and flushes a final snapshot if the world is dirty.
func (s *Saver) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Saver) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-s.dirty:
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			s.persist()
		case <-s.stop:
			select {
			case <-s.dirty:
				pending = true
			default:
			}
			if pending {
				s.persist()
			}
			return
		}
	}
}

// persist snapshots the world under its lock and writes the result.
func (s *Saver) persist() {
	s.state.Lock()
	snap := s.state.Snapshot()
	s.state.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveFlushTimeout)
	defer cancel()

	start := time.Now()
	if err := s.repo.Save(ctx, s.worldName, snap); err != nil {
		s.log.Error("snapshot save failed",
			zap.String("world", s.worldName), zap.Error(err))
		// Leave the next ScheduleSave to retry; the live world is unharmed.
		return
	}
	s.log.Debug("world snapshot saved",
		zap.String("world", s.worldName),
		zap.Int("sheets", len(snap.Sheets)),
		zap.Duration("elapsed", time.Since(start)))
}
