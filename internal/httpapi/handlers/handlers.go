// Package handlers implements the HTTP surface: job submission, status
// and listing reads, artifact download, and health.
package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"renderq/internal/httpkit"
	"renderq/internal/job"
	"renderq/internal/jobs"
	"renderq/internal/pkg/errors"
	"renderq/internal/pkg/logger"
	"renderq/internal/pkg/middleware"
	"renderq/internal/store"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Store   store.Store
	Gateway *jobs.Gateway
	Reader  *jobs.Reader
	Log     *logger.Logger
}

type Handlers struct {
	deps Deps
}

func New(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Register mounts every route on r.
func (h *Handlers) Register(r chi.Router) {
	log := h.deps.Log

	r.Post("/videos", middleware.WrapHandler(log, h.submit))
	r.Get("/jobs", middleware.WrapHandler(log, h.list))
	r.Get("/jobs/{jobID}", middleware.WrapHandler(log, h.status))
	r.Get("/jobs/{jobID}/video", middleware.WrapHandler(log, h.artifact))
	r.Get("/health", h.health)
}

type submitResponse struct {
	ID     string     `json:"id"`
	Status job.Status `json:"status"`
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) error {
	var req job.SubmitRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return errors.Validation("invalid request body: " + err.Error())
	}

	j, err := h.deps.Gateway.Submit(r.Context(), req)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusCreated, submitResponse{ID: j.ID, Status: j.Status})
	return nil
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "jobID")

	view, err := h.deps.Reader.Status(r.Context(), id)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, view)
	return nil
}

type listResponse struct {
	Jobs  []*jobs.JobView `json:"jobs"`
	Total int             `json:"total"`
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) error {
	views, err := h.deps.Reader.List(r.Context())
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, listResponse{Jobs: views, Total: len(views)})
	return nil
}

func (h *Handlers) artifact(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "jobID")

	rc, contentType, size, err := h.deps.Reader.Artifact(r.Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ArtifactName(id)+`"`)

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log.
		h.deps.Log.FromContext(r.Context()).WithError(err).Warn("artifact stream interrupted", "job_id", id)
	}
	return nil
}

type healthResponse struct {
	Status      string `json:"status"`
	StoreStatus string `json:"store_status"`
}

// health reports liveness plus store reachability. A degraded store
// turns the whole check unhealthy: without the store no operation works.
func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", StoreStatus: "ok"}
	status := http.StatusOK

	if err := h.deps.Store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.StoreStatus = "unreachable"
		status = http.StatusServiceUnavailable
		h.deps.Log.FromContext(r.Context()).WithError(err).Warn("health check: store unreachable")
	}

	httpkit.WriteJSON(w, status, resp)
}
