// Package storage persists normalized job postings to a durable sink.
package storage

import (
	"github.com/jobradar/jobradar/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of jobs. MongoStorage upserts by Job.ID so
	// re-observed postings refresh in place; FileStorage only appends.
	Store(jobs []*types.Job) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
