package jobs

import (
	"context"
	"io"
	"os"
	"sort"
	"time"

	"renderq/internal/job"
	"renderq/internal/pkg/errors"
	"renderq/internal/ports"
	"renderq/internal/store"
)

// JobView is the client-facing projection of a job record. VideoPath is
// derived from the id and only present once the job has completed.
type JobView struct {
	ID              string     `json:"id"`
	Status          job.Status `json:"status"`
	Prompt          string     `json:"prompt"`
	DurationSeconds int        `json:"duration_seconds"`
	FrameRate       int        `json:"frame_rate"`
	ResolutionTag   string     `json:"resolution_tag"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ResultReference string     `json:"result_reference,omitempty"`
	VideoPath       string     `json:"video_path,omitempty"`
}

// Reader serves status queries and artifact retrieval.
type Reader struct {
	st store.Store
	sp ports.StorageProvider
}

func NewReader(st store.Store, sp ports.StorageProvider) *Reader {
	return &Reader{st: st, sp: sp}
}

// Status returns the client view of a single job.
func (r *Reader) Status(ctx context.Context, id string) (*JobView, error) {
	j, err := r.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return project(j), nil
}

// List returns the view of every job ever enqueued. Best-effort admin
// surface: unpaginated, suitable for low job volumes only.
func (r *Reader) List(ctx context.Context) ([]*JobView, error) {
	ids, err := r.st.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*JobView, 0, len(ids))
	for _, id := range ids {
		j, err := r.st.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				// Ticket without a record; skip rather than fail the listing.
				continue
			}
			return nil, err
		}
		views = append(views, project(j))
	}

	sort.Slice(views, func(i, k int) bool {
		return views[i].CreatedAt.Before(views[k].CreatedAt)
	})

	return views, nil
}

// Artifact opens the produced video of a completed job for streaming.
// A job that exists but has not completed yields NOT_READY. A completed
// job whose file is gone yields NOT_FOUND with the artifact flagged, so
// record/filesystem inconsistency stays distinguishable from an unknown
// id.
func (r *Reader) Artifact(ctx context.Context, id string) (rc io.ReadCloser, contentType string, size int64, err error) {
	j, err := r.st.Get(ctx, id)
	if err != nil {
		return nil, "", 0, err
	}

	if j.Status != job.StatusCompleted {
		return nil, "", 0, errors.NotReady("artifact", id).WithField("status", string(j.Status))
	}

	rc, contentType, size, err = r.sp.GetObject(ctx, job.ArtifactName(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", 0, errors.NotFound("artifact", id).WithField("artifact", job.ArtifactName(id))
		}
		return nil, "", 0, errors.Wrap(err, "reader.artifact", "artifact read failed")
	}
	return rc, contentType, size, nil
}

func project(j *job.Job) *JobView {
	v := &JobView{
		ID:              j.ID,
		Status:          j.Status,
		Prompt:          j.Prompt,
		DurationSeconds: j.DurationSeconds,
		FrameRate:       j.FrameRate,
		ResolutionTag:   j.ResolutionTag,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		ErrorMessage:    j.ErrorMessage,
	}
	if j.Status == job.StatusCompleted {
		v.ResultReference = j.ResultReference
		v.VideoPath = "/jobs/" + j.ID + "/video"
	}
	return v
}
