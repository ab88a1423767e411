package leads

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Repository is the persistence contract for the lead book and the small
// config key/value table that holds the access PINs.
//
// FetchAll returns rows ordered by creation descending (newest first); the
// fresh-pool ordering derives from that.
type Repository interface {
	FetchAll(ctx context.Context) ([]Lead, error)

	Insert(ctx context.Context, l Lead) error
	// InsertBatch persists all rows or none.
	InsertBatch(ctx context.Context, rows []Lead) error

	Update(ctx context.Context, id string, f UpdateFields) error
	ResetToPending(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
	DeleteByStatus(ctx context.Context, s Status) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)

	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value string) error
}
