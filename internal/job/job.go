// Package job defines the job record model: the schema of a generation
// job, its status machine, and the submission parameters with their
// defaults and safety limits.
package job

import (
	"strings"
	"time"

	"renderq/internal/pkg/errors"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status. Terminal jobs are
// never mutated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// The status graph is a strict DAG:
//
//	pending -> processing -> {completed, failed}
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Submission defaults.
const (
	DefaultDurationSeconds = 10
	DefaultFrameRate       = 8
	DefaultResolutionTag   = "480p"
)

// MaxFrameRate is the worker-side safety ceiling for the effective frame
// rate. The submitted value is stored as-is; the cap applies at
// processing time only.
const MaxFrameRate = 24

// NumInferenceSteps is the fixed quality setting passed to the
// generation collaborator.
const NumInferenceSteps = 64

// ArtifactExt is the container extension of produced videos.
const ArtifactExt = ".mp4"

// Job is the durable record of a single generation request.
type Job struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	Prompt          string    `json:"prompt"`
	DurationSeconds int       `json:"duration_seconds"`
	FrameRate       int       `json:"frame_rate"`
	ResolutionTag   string    `json:"resolution_tag"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ResultReference string    `json:"result_reference,omitempty"`
}

// SubmitRequest is an incoming generation request. Zero-valued numeric
// fields and an empty resolution tag mean "use the default".
type SubmitRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	FrameRate       int    `json:"frame_rate,omitempty"`
	ResolutionTag   string `json:"resolution_tag,omitempty"`
}

// Validate checks the request. The prompt is the only required field; it
// must be non-empty after trimming.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.ValidationField("prompt", "prompt is required")
	}
	return nil
}

// NewJob builds a pending job record from a validated request, applying
// defaults for omitted parameters. No upper bound is enforced here; the
// frame-rate cap is a worker-side policy.
func NewJob(id string, r SubmitRequest, now time.Time) *Job {
	j := &Job{
		ID:              id,
		Status:          StatusPending,
		Prompt:          strings.TrimSpace(r.Prompt),
		DurationSeconds: r.DurationSeconds,
		FrameRate:       r.FrameRate,
		ResolutionTag:   strings.TrimSpace(r.ResolutionTag),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if j.DurationSeconds <= 0 {
		j.DurationSeconds = DefaultDurationSeconds
	}
	if j.FrameRate <= 0 {
		j.FrameRate = DefaultFrameRate
	}
	if j.ResolutionTag == "" {
		j.ResolutionTag = DefaultResolutionTag
	}
	return j
}

// ClampFrameRate applies the safety ceiling to a requested frame rate and
// reports whether an adjustment happened.
func ClampFrameRate(fps int) (int, bool) {
	if fps > MaxFrameRate {
		return MaxFrameRate, true
	}
	return fps, false
}

// Dimensions maps a resolution tag to frame height and width. Unknown
// tags fall back to the 480p dimensions.
func Dimensions(tag string) (height, width int) {
	switch tag {
	case "720p":
		return 720, 1280
	case "1080p":
		return 1080, 1920
	default:
		return 480, 848
	}
}

// ArtifactName returns the artifact file name for a job id. It is a pure
// function of the id, so the artifact location is derivable without
// consulting the record.
func ArtifactName(id string) string {
	return id + ArtifactExt
}
