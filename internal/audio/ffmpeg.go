package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/maauso/slideshow/internal/media"
)

// ErrNoAudioStream is returned when the audio source carries no audio stream.
var ErrNoAudioStream = errors.New("audio source has no audio stream")

// rangeTolerance absorbs container rounding when comparing durations.
const rangeTolerance = 0.001

// FFmpegAttacher implements Attacher using the ffmpeg CLI.
type FFmpegAttacher struct {
	runner   *media.Runner
	prober   media.Prober
	padShort bool
}

// Option configures an FFmpegAttacher.
type Option func(*FFmpegAttacher)

// WithSilencePadding pads an audio source shorter than the clip with silence
// instead of failing.
func WithSilencePadding(enabled bool) Option {
	return func(a *FFmpegAttacher) {
		a.padShort = enabled
	}
}

// WithProber overrides how clip and audio durations are measured.
func WithProber(p media.Prober) Option {
	return func(a *FFmpegAttacher) {
		a.prober = p
	}
}

// NewFFmpegAttacher creates a new FFmpegAttacher.
// A nil runner defaults to ffmpeg and ffprobe found in PATH.
func NewFFmpegAttacher(runner *media.Runner, opts ...Option) *FFmpegAttacher {
	if runner == nil {
		runner = media.NewRunner("", "")
	}
	a := &FFmpegAttacher{runner: runner, prober: runner}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach implements Attacher.Attach.
func (a *FFmpegAttacher) Attach(ctx context.Context, clipPath, audioPath, output string) (Deliverable, error) {
	clip, err := a.prober.Probe(ctx, clipPath)
	if err != nil {
		return Deliverable{}, fmt.Errorf("probe clip: %w", err)
	}

	src, err := a.prober.Probe(ctx, audioPath)
	if err != nil {
		return Deliverable{}, fmt.Errorf("probe audio: %w", err)
	}
	if !src.HasAudio() {
		return Deliverable{}, fmt.Errorf("%w: %s", ErrNoAudioStream, audioPath)
	}

	need, have := clip.Duration, src.AudioDuration
	if have+rangeTolerance < need && !a.padShort {
		return Deliverable{}, &AudioRangeError{Audio: audioPath, Need: need, Have: have}
	}

	// Any remaining shortfall is padded so the track spans the whole clip.
	pad := have < need
	if err := a.runner.Run(ctx, attachArgs(clipPath, audioPath, output, need, pad)); err != nil {
		_ = os.Remove(output)
		return Deliverable{}, fmt.Errorf("attach audio: %w", err)
	}

	return Deliverable{Path: output, Duration: need}, nil
}

// attachArgs maps the clip's video (stream copy) and the first audio stream of
// the source, trimmed to duration seconds. When pad is set the audio is
// extended with silence before trimming.
func attachArgs(clipPath, audioPath, output string, duration float64, pad bool) []string {
	video := ffmpeg.Input(clipPath).Video()
	track := ffmpeg.Input(audioPath, ffmpeg.KwArgs{"t": formatSeconds(duration)}).Audio()
	if pad {
		track = ffmpeg.Input(audioPath).Audio().Filter("apad", ffmpeg.Args{}, ffmpeg.KwArgs{
			"whole_dur": formatSeconds(duration),
		})
	}

	return ffmpeg.Output([]*ffmpeg.Stream{video, track}, output, ffmpeg.KwArgs{
		"c:v": "copy",
		"c:a": "aac",
		"b:a": "192k",
		"t":   formatSeconds(duration),
	}).
		OverWriteOutput().
		GetArgs()
}

func formatSeconds(sec float64) string {
	// Format with 3 decimal places for ffmpeg
	return fmt.Sprintf("%.3f", sec)
}

// Verify interface implementation at compile time.
var _ Attacher = (*FFmpegAttacher)(nil)
