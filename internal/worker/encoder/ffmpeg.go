// Package encoder turns a frame sequence into a playable video file.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"renderq/internal/pkg/errors"
)

// Encoder assembles ordered frame files into a video at outputPath.
type Encoder interface {
	Encode(ctx context.Context, frames []string, outputPath string, frameRate int) error
}

// FFmpeg shells out to an ffmpeg binary using the concat demuxer.
type FFmpeg struct {
	bin string
}

// NewFFmpeg creates an encoder using the given ffmpeg binary. An empty
// bin falls back to "ffmpeg" resolved via PATH.
func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

func (f *FFmpeg) Encode(ctx context.Context, frames []string, outputPath string, frameRate int) error {
	if len(frames) == 0 {
		return errors.New(errors.CodeEncodingFailed, "no frames to encode")
	}
	if frameRate <= 0 {
		return errors.New(errors.CodeEncodingFailed, "frame rate must be positive")
	}

	listPath, err := writeConcatList(frames, outputPath)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeEncodingFailed, "encoder.concat_list", "failed to write frame list")
	}
	defer os.Remove(listPath)

	args := buildArgs(listPath, outputPath, frameRate)
	cmd := exec.CommandContext(ctx, f.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.WrapWithCode(
			fmt.Errorf("%w: %s", err, tail(stderr.Bytes(), 1024)),
			errors.CodeEncodingFailed, "encoder.ffmpeg", "video assembly failed",
		)
	}
	return nil
}

// buildArgs assembles the ffmpeg invocation. Kept separate from Encode
// so the invocation can be checked without an ffmpeg binary present.
func buildArgs(listPath, outputPath string, frameRate int) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-r", strconv.Itoa(frameRate),
		"-i", listPath,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	}
}

// writeConcatList writes the concat demuxer input file next to the
// output so it lives on the same volume as the scratch frames.
func writeConcatList(frames []string, outputPath string) (string, error) {
	var buf bytes.Buffer
	for _, frame := range frames {
		abs, err := filepath.Abs(frame)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "file '%s'\n", abs)
	}

	listPath := outputPath + ".frames.txt"
	if err := os.WriteFile(listPath, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return listPath, nil
}

func tail(b []byte, n int) []byte {
	b = bytes.TrimSpace(b)
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
