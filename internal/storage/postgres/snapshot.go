package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hearth/internal/game/world"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a world.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists whole-world snapshots as JSONB documents,
// one row per world name.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts the snapshot for the named world.
//
// Precondition: worldName must be non-empty; snap must not be nil.
// Postcondition: A subsequent Load for the same world returns this snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, worldName string, snap *world.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO world_snapshots (world_name, snapshot, saved_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (world_name)
		 DO UPDATE SET snapshot = EXCLUDED.snapshot, saved_at = NOW()`,
		worldName, data,
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}
	return nil
}

// Load retrieves the stored snapshot for the named world.
//
// Precondition: worldName must be non-empty.
// Postcondition: Returns the snapshot and its save time, or
// ErrSnapshotNotFound if the world has never been saved.
func (r *SnapshotRepository) Load(ctx context.Context, worldName string) (*world.Snapshot, time.Time, error) {
	var data []byte
	var savedAt time.Time
	err := r.db.QueryRow(ctx,
		`SELECT snapshot, saved_at FROM world_snapshots WHERE world_name = $1`,
		worldName,
	).Scan(&data, &savedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, ErrSnapshotNotFound
		}
		return nil, time.Time{}, fmt.Errorf("querying snapshot: %w", err)
	}

	var snap world.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	return &snap, savedAt, nil
}

// Delete removes the stored snapshot for the named world.
//
// Postcondition: Returns ErrSnapshotNotFound if no snapshot existed.
func (r *SnapshotRepository) Delete(ctx context.Context, worldName string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM world_snapshots WHERE world_name = $1`, worldName)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
