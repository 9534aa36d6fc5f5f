package storage

import "time"

// StateEntry is one named value of durable client-side state.
type StateEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
