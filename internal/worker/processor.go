package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"renderq/internal/job"
	"renderq/internal/metrics"
	"renderq/internal/pkg/errors"
	"renderq/internal/pkg/logger"
	"renderq/internal/ports"
	"renderq/internal/store"
	"renderq/internal/worker/encoder"
	"renderq/internal/worker/generator"
)

// maxErrorMessageLen bounds the error text persisted on a failed record.
const maxErrorMessageLen = 2000

// Processor runs a single job through the generate/encode/publish
// pipeline and records the outcome.
type Processor struct {
	st         store.Store
	gen        generator.Generator
	enc        encoder.Encoder
	objects    ports.StorageProvider
	scratchDir string
	log        *logger.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(st store.Store, gen generator.Generator, enc encoder.Encoder, objects ports.StorageProvider, scratchDir string, log *logger.Logger) *Processor {
	return &Processor{
		st:         st,
		gen:        gen,
		enc:        enc,
		objects:    objects,
		scratchDir: scratchDir,
		log:        log.WithComponent("processor"),
	}
}

// Process handles one dequeued ticket. A job-level failure is recorded
// on the job itself and never propagates: the loop must survive any
// single job. Only a nil record (a ticket with no backing record) is a
// silent drop.
func (p *Processor) Process(ctx context.Context, id string) {
	log := p.log.WithJobID(id)
	started := time.Now()

	j, err := p.st.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Warn("dequeued ticket has no record, dropping")
			return
		}
		log.WithError(err).Error("failed to load job record")
		return
	}

	// A ticket for a job that already ran (terminal, or mid-processing
	// from a crashed run) is stale; the record stays as it is.
	if !j.Status.CanTransitionTo(job.StatusProcessing) {
		log.Warn("job not in a runnable state, dropping ticket", "status", string(j.Status))
		return
	}

	outcome := "completed"
	if runErr := p.run(ctx, j, log); runErr != nil {
		p.fail(ctx, id, runErr, log)
		outcome = "failed"
	}
	metrics.JobsProcessed.WithLabelValues(outcome).Inc()

	elapsed := time.Since(started)
	metrics.JobDuration.Observe(elapsed.Seconds())
	log.Info("job finished", "outcome", outcome, "duration_ms", elapsed.Milliseconds())
}

func (p *Processor) run(ctx context.Context, j *job.Job, log *logger.Logger) error {
	fps, clamped := job.ClampFrameRate(j.FrameRate)
	if clamped {
		metrics.FrameRateClamped.Inc()
		log.Warn("frame rate exceeds ceiling, clamping",
			"requested_fps", j.FrameRate, "effective_fps", fps)
	}

	processing := job.StatusProcessing
	if err := p.st.Merge(ctx, j.ID, store.Update{Status: &processing}); err != nil {
		return errors.Wrap(err, "processor.mark_processing", "failed to mark job processing")
	}
	log.Info("job processing started",
		"prompt_len", len(j.Prompt),
		"duration_seconds", j.DurationSeconds,
		"frame_rate", fps,
		"resolution", j.ResolutionTag)

	height, width := job.Dimensions(j.ResolutionTag)
	frames, err := p.gen.Generate(ctx, generator.Request{
		Prompt:            j.Prompt,
		Height:            height,
		Width:             width,
		NumFrames:         j.DurationSeconds * fps,
		NumInferenceSteps: job.NumInferenceSteps,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeGenerationFailed, "processor.generate", "content generation failed")
	}
	log.Info("frames generated", "frame_count", len(frames))

	scratchOut := filepath.Join(p.scratchDir, job.ArtifactName(j.ID))
	if err := p.enc.Encode(ctx, frames, scratchOut, fps); err != nil {
		return err
	}
	defer os.Remove(scratchOut)

	if err := p.publish(ctx, j.ID, scratchOut); err != nil {
		return err
	}

	completed := job.StatusCompleted
	ref := job.ArtifactName(j.ID)
	if err := p.st.Merge(ctx, j.ID, store.Update{Status: &completed, ResultReference: &ref}); err != nil {
		return errors.Wrap(err, "processor.mark_completed", "failed to mark job completed")
	}
	log.Info("job completed", "result_reference", ref)
	return nil
}

func (p *Processor) publish(ctx context.Context, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "processor.publish", "failed to open encoded video")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "processor.publish", "failed to stat encoded video")
	}

	_, err = p.objects.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   job.ArtifactName(id),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        info.Size(),
	})
	if err != nil {
		return errors.Wrap(err, "processor.publish", "failed to store artifact")
	}
	return nil
}

// fail records the failure on the job and reclaims accelerator memory
// so the next job starts from a clean slate. Reclamation and record
// errors are logged, never surfaced: the job is already lost.
func (p *Processor) fail(ctx context.Context, id string, cause error, log *logger.Logger) {
	log.WithError(cause).Error("job failed")

	devices, err := p.gen.Reclaim(ctx)
	if err != nil {
		log.WithError(err).Warn("device memory reclaim failed")
	} else {
		for _, d := range devices {
			log.Info("device memory after reclaim",
				"device", d.Device, "allocated_bytes", d.AllocatedBytes)
		}
	}
	runtime.GC()

	msg := cause.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	failed := job.StatusFailed
	if err := p.st.Merge(ctx, id, store.Update{Status: &failed, ErrorMessage: &msg}); err != nil {
		log.WithError(err).Error(fmt.Sprintf("failed to record failure: %s", msg))
	}
}
