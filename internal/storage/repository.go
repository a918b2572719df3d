// Package storage keeps an offline copy of the last list synchronized with
// the remote, so the calendar has something to draw before the first load
// completes.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/taskcal/internal/model"
)

var ErrNoSnapshot = errors.New("storage: no snapshot saved")

// Snapshot is the task list as of SyncedAt, in calendar insertion order.
type Snapshot struct {
	Tasks    []model.Task
	SyncedAt time.Time
}

type Repository interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}
