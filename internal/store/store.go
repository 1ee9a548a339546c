package store

import (
	"context"
	"errors"

	"FountainProtocol/internal/model"
)

// ErrAlreadyExists is returned when a record for the date has already been written.
var ErrAlreadyExists = errors.New("record already exists for date")

// StateStore persists the carried-forward oracle state.
type StateStore interface {
	// GetPriorState returns the most recent state strictly before date, or nil.
	GetPriorState(ctx context.Context, date string) (*model.OracleState, error)
	PutState(ctx context.Context, st *model.OracleState) error
}

// SnapshotStore persists daily snapshots.
type SnapshotStore interface {
	// GetSnapshot returns the snapshot for date, or nil when not computed.
	GetSnapshot(ctx context.Context, date string) (*model.DailySnapshot, error)
	PutSnapshot(ctx context.Context, snap *model.DailySnapshot) error
}

// SnapshotLister lists the most recent snapshots, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]*model.DailySnapshot, error)
}

// DayCommitter writes a day's state and snapshot atomically.
type DayCommitter interface {
	CommitDay(ctx context.Context, st *model.OracleState, snap *model.DailySnapshot) error
}

// Store is implemented by every backend in this package.
type Store interface {
	StateStore
	SnapshotStore
	SnapshotLister
	DayCommitter
	Close() error
}
