// Package store holds job records and the queue of pending work.
//
// A record is the source of truth for a job's status; a queue entry is
// only a work ticket. Both live in the same durable store so that
// producers and the worker coordinate without any other channel.
package store

import (
	"context"
	"time"

	"renderq/internal/job"
)

// Update names the record fields a merge may change. Nil fields are left
// untouched. The store refreshes updated_at on every merge.
type Update struct {
	Status          *job.Status
	ErrorMessage    *string
	ResultReference *string
}

// Store is the contract between the submission gateway, the status
// reader, and the worker.
type Store interface {
	// Create writes a full record for a new id. It fails with
	// ALREADY_EXISTS if the id is present.
	Create(ctx context.Context, j *job.Job) error

	// Enqueue appends the id to the queue's tail.
	Enqueue(ctx context.Context, id string) error

	// Dequeue blocks until a ticket is available or the timeout elapses.
	// It returns (id, true, nil) on success and ("", false, nil) when the
	// wait elapsed with no work. A ticket is delivered to at most one
	// caller.
	Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error)

	// Get returns the current record or NOT_FOUND.
	Get(ctx context.Context, id string) (*job.Job, error)

	// Merge atomically updates the named fields of an existing record,
	// refreshing updated_at. It never creates a record and fails with
	// NOT_FOUND if the id is absent.
	Merge(ctx context.Context, id string, u Update) error

	// ListIDs returns every id ever enqueued, whether or not its ticket
	// is still pending.
	ListIDs(ctx context.Context) ([]string, error)

	// Ping reports store reachability.
	Ping(ctx context.Context) error
}
