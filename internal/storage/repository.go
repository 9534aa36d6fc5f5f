package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: not found")

// Repository is the durable key/value store for client-side state.
type Repository interface {
	GetState(ctx context.Context, key string) (StateEntry, error)
	PutState(ctx context.Context, in StateEntry) error
	DeleteState(ctx context.Context, key string) error
}
