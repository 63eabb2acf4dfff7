package store

import (
	"context"
	"sync"
	"time"

	"renderq/internal/job"
	"renderq/internal/pkg/errors"
)

// MemoryStore is an in-process Store for tests and local development.
// It honors the same contract as RedisStore, including the at-most-one-
// winner dequeue guarantee.
type MemoryStore struct {
	mu     sync.Mutex
	jobs   map[string]job.Job
	queue  []string
	ids    []string
	idSeen map[string]bool
	wake   chan struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]job.Job),
		idSeen: make(map[string]bool),
		wake:   make(chan struct{}, 1),
	}
}

func (s *MemoryStore) Create(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return errors.AlreadyExists("job", j.ID)
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryStore) Enqueue(ctx context.Context, id string) error {
	s.mu.Lock()
	s.queue = append(s.queue, id)
	if !s.idSeen[id] {
		s.idSeen[id] = true
		s.ids = append(s.ids, id)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *MemoryStore) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			id := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return id, true, nil
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	copied := j
	return &copied, nil
}

func (s *MemoryStore) Merge(ctx context.Context, id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}

	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.ResultReference != nil {
		j.ResultReference = *u.ResultReference
	}
	j.UpdatedAt = time.Now().UTC()

	s.jobs[id] = j
	return nil
}

func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
