package encoder

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"renderq/internal/pkg/errors"
)

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/tmp/list.txt", "/out/video.mp4", 8)
	want := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-r", "8",
		"-i", "/tmp/list.txt",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"/out/video.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v\nwant  %v", args, want)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "video.mp4")

	listPath, err := writeConcatList([]string{
		filepath.Join(dir, "f0.png"),
		filepath.Join(dir, "f1.png"),
	}, out)
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	defer os.Remove(listPath)

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			t.Errorf("line %d not in concat format: %q", i, line)
		}
	}
	if !strings.Contains(lines[0], "f0.png") || !strings.Contains(lines[1], "f1.png") {
		t.Errorf("frame order not preserved: %v", lines)
	}
}

func TestEncodeNoFrames(t *testing.T) {
	f := NewFFmpeg("")
	err := f.Encode(context.Background(), nil, "/tmp/out.mp4", 8)
	if err == nil {
		t.Fatal("expected error for empty frame list")
	}
	if !errors.IsCode(err, errors.CodeEncodingFailed) {
		t.Errorf("code = %s, want ENCODING_FAILED", errors.GetCode(err))
	}
}

func TestEncodeBadFrameRate(t *testing.T) {
	f := NewFFmpeg("")
	err := f.Encode(context.Background(), []string{"f0.png"}, "/tmp/out.mp4", 0)
	if !errors.IsCode(err, errors.CodeEncodingFailed) {
		t.Errorf("code = %v, want ENCODING_FAILED", errors.GetCode(err))
	}
}

func TestEncodeMissingBinary(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "f0.png")
	if err := os.WriteFile(frame, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFFmpeg(filepath.Join(dir, "no-such-ffmpeg"))
	err := f.Encode(context.Background(), []string{frame}, filepath.Join(dir, "out.mp4"), 8)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.IsCode(err, errors.CodeEncodingFailed) {
		t.Errorf("code = %s, want ENCODING_FAILED", errors.GetCode(err))
	}
}

func TestNewFFmpegDefault(t *testing.T) {
	if NewFFmpeg("").bin != "ffmpeg" {
		t.Error("empty bin should default to ffmpeg")
	}
	if NewFFmpeg("/opt/ffmpeg").bin != "/opt/ffmpeg" {
		t.Error("explicit bin should be kept")
	}
}
