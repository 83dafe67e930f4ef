package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes the ffmpeg and ffprobe binaries. Every invocation is a
// child process that is waited on before the call returns.
type Runner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewRunner creates a new Runner.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewRunner(ffmpegPath, ffprobePath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Run executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (r *Runner) Run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Info is the subset of ffprobe metadata the pipeline relies on.
type Info struct {
	// Duration is the container duration in seconds.
	Duration float64
	// VideoStreams and AudioStreams count the streams of each kind.
	VideoStreams int
	AudioStreams int
	// AudioDuration is the duration of the first audio stream, or 0.
	AudioDuration float64
}

// HasAudio reports whether the media carries at least one audio stream.
func (i Info) HasAudio() bool {
	return i.AudioStreams > 0
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration and stream layout of a media file.
func (r *Runner) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_entries", "format=duration:stream=codec_type,duration",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput decodes ffprobe's JSON writer output.
func parseProbeOutput(data []byte) (Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var info Info
	duration, err := parseSeconds(out.Format.Duration)
	if err != nil {
		return Info{}, fmt.Errorf("parse duration: %w", err)
	}
	info.Duration = duration

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			info.VideoStreams++
		case "audio":
			info.AudioStreams++
			if info.AudioStreams == 1 {
				if d, err := parseSeconds(s.Duration); err == nil {
					info.AudioDuration = d
				}
			}
		}
	}
	// Matroska leaves per-stream duration unset; fall back to the container.
	if info.AudioStreams > 0 && info.AudioDuration == 0 {
		info.AudioDuration = info.Duration
	}

	return info, nil
}

func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("duration not reported")
	}
	return strconv.ParseFloat(s, 64)
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("write destination file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}
	return nil
}

// removePartial deletes an output this package was writing when the write failed.
func removePartial(path string) {
	_ = os.Remove(path)
}

// Verify interface implementation at compile time.
var _ Prober = (*Runner)(nil)
