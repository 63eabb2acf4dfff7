// Package worker drains the job queue: it dequeues tickets one at a
// time and runs each job through generation, encoding, and artifact
// publication, recording the terminal outcome on the job record.
package worker

import (
	"context"
	"time"

	"renderq/internal/pkg/logger"
	"renderq/internal/ports"
	"renderq/internal/store"
	"renderq/internal/worker/encoder"
	"renderq/internal/worker/generator"
)

// Deps are the collaborators of the worker loop.
type Deps struct {
	Store      store.Store
	Generator  generator.Generator
	Encoder    encoder.Encoder
	Objects    ports.StorageProvider
	ScratchDir string
	Log        *logger.Logger

	// DequeueWait bounds each blocking dequeue so the loop can notice
	// cancellation. Zero means the 5s default.
	DequeueWait time.Duration
}

const defaultDequeueWait = 5 * time.Second

// Run consumes the queue until ctx is cancelled. Jobs are processed
// strictly one at a time; a failed job never stops the loop.
func Run(ctx context.Context, deps Deps) error {
	wait := deps.DequeueWait
	if wait <= 0 {
		wait = defaultDequeueWait
	}

	log := deps.Log.WithComponent("worker")
	proc := NewProcessor(deps.Store, deps.Generator, deps.Encoder, deps.Objects, deps.ScratchDir, deps.Log)

	log.Info("worker started", "dequeue_wait", wait.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return ctx.Err()
		default:
		}

		id, ok, err := deps.Store.Dequeue(ctx, wait)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return ctx.Err()
			}
			log.WithError(err).Warn("dequeue failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}

		proc.Process(logger.ContextWithJobID(ctx, id), id)
	}
}
