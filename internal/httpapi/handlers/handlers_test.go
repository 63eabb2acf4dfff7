package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"renderq/internal/httpkit"
	"renderq/internal/job"
	"renderq/internal/jobs"
	"renderq/internal/pkg/logger"
	"renderq/internal/ports"
	"renderq/internal/store"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

type memObjects struct {
	objects map[string][]byte
}

func (m *memObjects) Provider() string { return "memory" }

func (m *memObjects) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	m.objects[in.ObjectKey] = data
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (m *memObjects) GetObject(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, "", 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), "video/mp4", int64(len(data)), nil
}

func (m *memObjects) DeleteObject(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type fixture struct {
	st      *store.MemoryStore
	objects *memObjects
	router  chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	objects := &memObjects{objects: make(map[string][]byte)}
	log := newTestLogger()

	r := chi.NewRouter()
	New(Deps{
		Store:   st,
		Gateway: jobs.NewGateway(st, log),
		Reader:  jobs.NewReader(st, objects),
		Log:     log,
	}).Register(r)

	return &fixture{st: st, objects: objects, router: r}
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env httpkit.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestSubmit(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/videos", map[string]any{
		"prompt":           "a cat",
		"duration_seconds": 2,
		"frame_rate":       8,
		"resolution_tag":   "480p",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Error("response missing job id")
	}
	if resp.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Status)
	}

	// The ticket is queued.
	id, ok, err := fx.st.Dequeue(context.Background(), 100*time.Millisecond)
	if err != nil || !ok || id != resp.ID {
		t.Errorf("Dequeue = (%q, %v, %v), want (%q, true, nil)", id, ok, err, resp.ID)
	}
}

func TestSubmitAppliesDefaults(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/videos", map[string]any{"prompt": "a cat"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	statusRec := fx.do(t, http.MethodGet, "/jobs/"+resp.ID, nil)
	var view jobs.JobView
	if err := json.Unmarshal(statusRec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.DurationSeconds != job.DefaultDurationSeconds {
		t.Errorf("duration = %d, want %d", view.DurationSeconds, job.DefaultDurationSeconds)
	}
	if view.FrameRate != job.DefaultFrameRate {
		t.Errorf("frame_rate = %d, want %d", view.FrameRate, job.DefaultFrameRate)
	}
	if view.ResolutionTag != job.DefaultResolutionTag {
		t.Errorf("resolution = %q, want %q", view.ResolutionTag, job.DefaultResolutionTag)
	}
}

func TestSubmitEmptyPrompt(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/videos", map[string]any{"prompt": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", code)
	}

	// No job record was created.
	listRec := fx.do(t, http.MethodGet, "/jobs", nil)
	var list struct {
		Total int `json:"total"`
	}
	json.Unmarshal(listRec.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("total = %d, want 0", list.Total)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/videos", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", code)
	}
}

func TestStatusUnknownID(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/jobs/no-such-job", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}
}

func TestList(t *testing.T) {
	fx := newFixture(t)

	for i := 0; i < 3; i++ {
		rec := fx.do(t, http.MethodPost, "/videos", map[string]any{"prompt": fmt.Sprintf("prompt %d", i)})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit %d: status = %d", i, rec.Code)
		}
	}

	rec := fx.do(t, http.MethodGet, "/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list struct {
		Jobs  []jobs.JobView `json:"jobs"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 3 || len(list.Jobs) != 3 {
		t.Errorf("total = %d, len = %d, want 3", list.Total, len(list.Jobs))
	}
}

func TestArtifactNotReady(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/videos", map[string]any{"prompt": "a cat"})
	var resp struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	artRec := fx.do(t, http.MethodGet, "/jobs/"+resp.ID+"/video", nil)
	if artRec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", artRec.Code)
	}
	if code := errorCode(t, artRec); code != "NOT_READY" {
		t.Errorf("code = %q, want NOT_READY", code)
	}
}

func TestArtifactUnknownJob(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/jobs/no-such-job/video", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestArtifactDownload(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	j := job.NewJob("job-1", job.SubmitRequest{Prompt: "a cat"}, time.Now())
	if err := fx.st.Create(ctx, j); err != nil {
		t.Fatal(err)
	}
	processing := job.StatusProcessing
	completed := job.StatusCompleted
	ref := "job-1.mp4"
	fx.st.Merge(ctx, "job-1", store.Update{Status: &processing})
	fx.st.Merge(ctx, "job-1", store.Update{Status: &completed, ResultReference: &ref})
	fx.objects.objects["job-1.mp4"] = []byte("video-bytes")

	rec := fx.do(t, http.MethodGet, "/jobs/job-1/video", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "11" {
		t.Errorf("Content-Length = %q, want 11", cl)
	}
	if rec.Body.String() != "video-bytes" {
		t.Errorf("body = %q, want video-bytes", rec.Body.String())
	}
}

func TestArtifactFileMissing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	j := job.NewJob("job-1", job.SubmitRequest{Prompt: "a cat"}, time.Now())
	fx.st.Create(ctx, j)
	processing := job.StatusProcessing
	completed := job.StatusCompleted
	ref := "job-1.mp4"
	fx.st.Merge(ctx, "job-1", store.Update{Status: &processing})
	fx.st.Merge(ctx, "job-1", store.Update{Status: &completed, ResultReference: &ref})
	// No object written: record says completed but the artifact is gone.

	rec := fx.do(t, http.MethodGet, "/jobs/job-1/video", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status      string `json:"status"`
		StoreStatus string `json:"store_status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.StoreStatus != "ok" {
		t.Errorf("health = %+v, want ok/ok", resp)
	}
}

type downStore struct {
	store.Store
}

func (downStore) Ping(ctx context.Context) error {
	return fmt.Errorf("connection refused")
}

func TestHealthStoreDown(t *testing.T) {
	st := store.NewMemoryStore()
	log := newTestLogger()
	objects := &memObjects{objects: make(map[string][]byte)}

	r := chi.NewRouter()
	New(Deps{
		Store:   downStore{st},
		Gateway: jobs.NewGateway(st, log),
		Reader:  jobs.NewReader(st, objects),
		Log:     log,
	}).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
