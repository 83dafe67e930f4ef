package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maauso/slideshow/internal/media"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// fakeProber returns canned metadata keyed by path.
type fakeProber map[string]media.Info

func (f fakeProber) Probe(_ context.Context, path string) (media.Info, error) {
	info, ok := f[path]
	if !ok {
		return media.Info{}, fmt.Errorf("no such file: %s", path)
	}
	return info, nil
}

// createSilentClip creates a video-only clip of the given duration.
func createSilentClip(t *testing.T, path string, durationSec float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=blue:s=64x64:r=30:d=%s", formatSeconds(durationSec)),
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test clip: %v\n%s", err, out)
	}
}

// createTestAudio creates a sine-wave m4a of the given duration.
func createTestAudio(t *testing.T, path string, durationSec float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+formatSeconds(durationSec),
		"-c:a", "aac",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\n%s", err, out)
	}
}

func TestNewFFmpegAttacher(t *testing.T) {
	a := NewFFmpegAttacher(nil)
	if a.runner == nil {
		t.Fatal("expected default runner")
	}
	if a.prober == nil {
		t.Fatal("expected runner to be used as prober")
	}
	if a.padShort {
		t.Error("expected silence padding to be disabled by default")
	}

	a = NewFFmpegAttacher(nil, WithSilencePadding(true))
	if !a.padShort {
		t.Error("expected silence padding to be enabled")
	}
}

func TestAttach_AudioShorterThanClip(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "batch_0.mp4")
	song := filepath.Join(dir, "song.m4a")
	output := filepath.Join(dir, "final_batch_0.mp4")

	prober := fakeProber{
		clip: {Duration: 20, VideoStreams: 1},
		song: {Duration: 12.5, AudioStreams: 1, AudioDuration: 12.5},
	}
	a := NewFFmpegAttacher(media.NewRunner(filepath.Join(dir, "no-ffmpeg"), ""), WithProber(prober))

	_, err := a.Attach(context.Background(), clip, song, output)

	var rerr *AudioRangeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected AudioRangeError, got %v", err)
	}
	if rerr.Need != 20 || rerr.Have != 12.5 {
		t.Errorf("unexpected range error values: need=%v have=%v", rerr.Need, rerr.Have)
	}
	if !strings.Contains(rerr.Error(), song) {
		t.Errorf("error should name the audio source: %q", rerr.Error())
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("no output file should be produced")
	}
}

func TestAttach_WithinTolerance(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "batch_0.mp4")
	song := filepath.Join(dir, "song.m4a")

	prober := fakeProber{
		clip: {Duration: 10, VideoStreams: 1},
		song: {Duration: 9.9995, AudioStreams: 1, AudioDuration: 9.9995},
	}
	// The missing ffmpeg binary proves the range check passed and the run was attempted.
	a := NewFFmpegAttacher(media.NewRunner(filepath.Join(dir, "no-ffmpeg"), ""), WithProber(prober))

	_, err := a.Attach(context.Background(), clip, song, filepath.Join(dir, "out.mp4"))

	var rerr *AudioRangeError
	if errors.As(err, &rerr) {
		t.Fatalf("did not expect AudioRangeError within tolerance: %v", err)
	}
	var ferr *media.FFmpegError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FFmpegError from missing binary, got %v", err)
	}
	if !strings.Contains(strings.Join(ferr.Args, " "), "apad") {
		t.Errorf("audio slightly short of the clip should be padded: %v", ferr.Args)
	}
}

func TestAttach_ExactLengthIsNotPadded(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "batch_0.mp4")
	song := filepath.Join(dir, "song.m4a")

	prober := fakeProber{
		clip: {Duration: 10, VideoStreams: 1},
		song: {Duration: 10, AudioStreams: 1, AudioDuration: 10},
	}
	a := NewFFmpegAttacher(media.NewRunner(filepath.Join(dir, "no-ffmpeg"), ""), WithProber(prober))

	_, err := a.Attach(context.Background(), clip, song, filepath.Join(dir, "out.mp4"))

	var ferr *media.FFmpegError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FFmpegError from missing binary, got %v", err)
	}
	if strings.Contains(strings.Join(ferr.Args, " "), "apad") {
		t.Errorf("audio covering the clip should not be padded: %v", ferr.Args)
	}
}

func TestAttach_NoAudioStream(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "batch_0.mp4")
	song := filepath.Join(dir, "silent.mp4")

	prober := fakeProber{
		clip: {Duration: 4, VideoStreams: 1},
		song: {Duration: 60, VideoStreams: 1},
	}
	a := NewFFmpegAttacher(nil, WithProber(prober))

	_, err := a.Attach(context.Background(), clip, song, filepath.Join(dir, "out.mp4"))
	if !errors.Is(err, ErrNoAudioStream) {
		t.Fatalf("expected ErrNoAudioStream, got %v", err)
	}
}

func TestAttach_ProbeFailure(t *testing.T) {
	a := NewFFmpegAttacher(nil, WithProber(fakeProber{}))

	_, err := a.Attach(context.Background(), "missing.mp4", "song.m4a", "out.mp4")
	if err == nil || !strings.Contains(err.Error(), "probe clip") {
		t.Fatalf("expected probe clip error, got %v", err)
	}
}

func TestAttachArgs(t *testing.T) {
	args := attachArgs("/w/batch_0.mp4", "/a/song.m4a", "/w/final_batch_0.mp4", 20, false)
	joined := strings.Join(args, " ")

	for _, want := range []string{"/w/batch_0.mp4", "/a/song.m4a", "/w/final_batch_0.mp4", "-c:v copy", "-c:a aac", "-t 20.000", "-y"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "apad") {
		t.Errorf("unexpected apad without padding: %s", joined)
	}

	padded := strings.Join(attachArgs("/w/batch_0.mp4", "/a/song.m4a", "/w/out.mp4", 20, true), " ")
	if !strings.Contains(padded, "apad") {
		t.Errorf("expected apad filter when padding: %s", padded)
	}
}

func TestFFmpegAttacher_Attach(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	clip := filepath.Join(tmpDir, "batch_0.mp4")
	song := filepath.Join(tmpDir, "song.m4a")
	output := filepath.Join(tmpDir, "final_batch_0.mp4")

	createSilentClip(t, clip, 2)
	createTestAudio(t, song, 5)

	runner := media.NewRunner("", "")
	a := NewFFmpegAttacher(runner)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := a.Attach(ctx, clip, song, output)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	info, err := runner.Probe(ctx, output)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if !info.HasAudio() {
		t.Fatal("deliverable has no audio stream")
	}
	if diff := info.AudioDuration - d.Duration; diff > 0.05 || diff < -0.05 {
		t.Errorf("audio length %.3f, want %.3f", info.AudioDuration, d.Duration)
	}
}

func TestFFmpegAttacher_ShortAudio(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	clip := filepath.Join(tmpDir, "batch_0.mp4")
	song := filepath.Join(tmpDir, "short.m4a")
	createSilentClip(t, clip, 3)
	createTestAudio(t, song, 1)

	ctx := context.Background()

	t.Run("fails by default", func(t *testing.T) {
		output := filepath.Join(tmpDir, "fail.mp4")
		_, err := NewFFmpegAttacher(nil).Attach(ctx, clip, song, output)
		var rerr *AudioRangeError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected AudioRangeError, got %v", err)
		}
		if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
			t.Error("no output file should be produced")
		}
	})

	t.Run("pads with silence when enabled", func(t *testing.T) {
		output := filepath.Join(tmpDir, "padded.mp4")
		runner := media.NewRunner("", "")
		d, err := NewFFmpegAttacher(runner, WithSilencePadding(true)).Attach(ctx, clip, song, output)
		if err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
		info, err := runner.Probe(ctx, output)
		if err != nil {
			t.Fatalf("probe output: %v", err)
		}
		if diff := info.AudioDuration - d.Duration; diff > 0.05 || diff < -0.05 {
			t.Errorf("padded audio length %.3f, want %.3f", info.AudioDuration, d.Duration)
		}
	})
}
