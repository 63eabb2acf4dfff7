// Package generator defines the contract of the content-generation
// collaborator and its HTTP client.
//
// Generation runs in a separate model-server process with the
// accelerator attached. The worker talks to it over HTTP; produced
// frames land in a scratch directory shared between the two processes
// and are referenced by path.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request carries the generation parameters. NumFrames is the effective
// frame rate times the duration; the safety clamp has already been
// applied by the caller.
type Request struct {
	Prompt            string `json:"prompt"`
	Height            int    `json:"height"`
	Width             int    `json:"width"`
	NumFrames         int    `json:"num_frames"`
	NumInferenceSteps int    `json:"num_inference_steps"`
}

// FrameSequence is an ordered list of rendered frame files.
type FrameSequence []string

// DeviceMemory reports allocated accelerator memory for one device.
type DeviceMemory struct {
	Device         string `json:"device"`
	AllocatedBytes int64  `json:"allocated_bytes"`
}

// Generator produces a frame sequence from a prompt. Generate is
// synchronous and long-running; it is not cancellable mid-flight.
// Reclaim releases cached device memory after a failed attempt.
type Generator interface {
	Generate(ctx context.Context, req Request) (FrameSequence, error)
	Reclaim(ctx context.Context) ([]DeviceMemory, error)
}

// HTTPClient talks to the model server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the model server at baseURL. The
// timeout bounds the whole generation call and should be generous.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Generate(ctx context.Context, req Request) (FrameSequence, error) {
	var out struct {
		Frames []string `json:"frames"`
	}
	if err := c.post(ctx, "/generate", req, &out); err != nil {
		return nil, err
	}
	if len(out.Frames) == 0 {
		return nil, fmt.Errorf("model server returned no frames")
	}
	return FrameSequence(out.Frames), nil
}

func (c *HTTPClient) Reclaim(ctx context.Context) ([]DeviceMemory, error) {
	var out struct {
		Devices []DeviceMemory `json:"devices"`
	}
	if err := c.post(ctx, "/reclaim", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("model server %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
