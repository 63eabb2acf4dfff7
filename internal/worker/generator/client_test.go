package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("path = %s, want /generate", r.URL.Path)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "a cat" {
			t.Errorf("prompt = %q, want %q", req.Prompt, "a cat")
		}
		if req.NumFrames != 16 {
			t.Errorf("num_frames = %d, want 16", req.NumFrames)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"frames": []string{"/scratch/f0.png", "/scratch/f1.png"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Minute)
	frames, err := c.Generate(context.Background(), Request{
		Prompt:    "a cat",
		Height:    480,
		Width:     848,
		NumFrames: 16,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(frames) != 2 || frames[0] != "/scratch/f0.png" {
		t.Errorf("unexpected frames: %v", frames)
	}
}

func TestGenerateEmptyFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"frames": []string{}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Minute)
	if _, err := c.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error for empty frame list")
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Minute)
	if _, err := c.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestReclaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reclaim" {
			t.Errorf("path = %s, want /reclaim", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"devices": []map[string]any{
				{"device": "cuda:0", "allocated_bytes": 1073741824},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Minute)
	devices, err := c.Reclaim(context.Background())
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	if devices[0].Device != "cuda:0" || devices[0].AllocatedBytes != 1073741824 {
		t.Errorf("unexpected device report: %+v", devices[0])
	}
}

func TestDefaultTimeout(t *testing.T) {
	c := NewHTTPClient("http://localhost:9000", 0)
	if c.client.Timeout != 30*time.Minute {
		t.Errorf("timeout = %v, want 30m", c.client.Timeout)
	}
}
