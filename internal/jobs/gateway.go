// Package jobs provides the submission gateway and the status reader on
// top of the job store.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"renderq/internal/job"
	"renderq/internal/pkg/errors"
	"renderq/internal/pkg/logger"
	"renderq/internal/store"
)

// Gateway validates generation requests and turns them into queued jobs.
type Gateway struct {
	st  store.Store
	log *logger.Logger
}

func NewGateway(st store.Store, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Gateway{st: st, log: log.WithComponent("gateway")}
}

// Submit validates the request, writes the pending record, and enqueues
// the work ticket. The returned job always has status pending; failure
// detail for the job itself is only ever visible through status reads.
func (g *Gateway) Submit(ctx context.Context, req job.SubmitRequest) (*job.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	j := job.NewJob(uuid.NewString(), req, time.Now())

	if err := g.st.Create(ctx, j); err != nil {
		return nil, errors.Wrap(err, "gateway.create", "job record write failed")
	}

	if err := g.st.Enqueue(ctx, j.ID); err != nil {
		// The record exists but no ticket was queued, so the job will
		// never be processed. Surface this distinctly so the caller can
		// resubmit or a corrective sweep can requeue it.
		g.log.FromContext(ctx).Error("job created but enqueue failed",
			"job_id", j.ID,
			"error", err.Error(),
		)
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "gateway.enqueue",
			"job created but could not be queued").WithField("job_id", j.ID)
	}

	g.log.FromContext(ctx).Info("job submitted",
		"job_id", j.ID,
		"duration_seconds", j.DurationSeconds,
		"frame_rate", j.FrameRate,
		"resolution", j.ResolutionTag,
	)

	return j, nil
}
