package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegMerger implements Merger using ffmpeg's concat demuxer.
type FFmpegMerger struct {
	runner *Runner
}

// NewFFmpegMerger creates a new FFmpegMerger.
func NewFFmpegMerger(runner *Runner) *FFmpegMerger {
	if runner == nil {
		runner = NewRunner("", "")
	}
	return &FFmpegMerger{runner: runner}
}

// Merge concatenates inputs into a single output file, in list order.
// It first attempts a fast copy (no re-encoding) and falls back to re-encoding
// with libx264/aac if the copy fails.
func (m *FFmpegMerger) Merge(ctx context.Context, inputs []string, output string) (FinalVideo, error) {
	if len(inputs) == 0 {
		return FinalVideo{}, &MergeError{Err: ErrNoInputs}
	}

	for _, in := range inputs {
		if err := checkReadable(in); err != nil {
			return FinalVideo{}, &MergeError{Input: in, Err: err}
		}
	}

	if len(inputs) == 1 {
		// Single video: just copy the file
		if err := copyFile(inputs[0], output); err != nil {
			removePartial(output)
			return FinalVideo{}, &MergeError{Err: err}
		}
		return FinalVideo{Path: output, Inputs: 1}, nil
	}

	// Create a temporary file list for the concat demuxer
	listFile, err := createConcatList(inputs)
	if err != nil {
		return FinalVideo{}, &MergeError{Err: fmt.Errorf("create concat list: %w", err)}
	}
	defer func() { _ = os.Remove(listFile) }()

	// Try fast copy first (no re-encoding)
	if err := m.runner.Run(ctx, joinCopyArgs(listFile, output)); err != nil {
		if ctx.Err() != nil {
			removePartial(output)
			return FinalVideo{}, &MergeError{Err: err}
		}
		// Fast copy failed, fall back to re-encoding
		if err := m.runner.Run(ctx, joinReencodeArgs(listFile, output)); err != nil {
			removePartial(output)
			return FinalVideo{}, &MergeError{Err: err}
		}
	}

	return FinalVideo{Path: output, Inputs: len(inputs)}, nil
}

// joinCopyArgs concatenates with stream copy (no re-encoding).
func joinCopyArgs(listFile, output string) []string {
	return concatInput(listFile).
		Output(output, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		GetArgs()
}

// joinReencodeArgs concatenates by re-encoding with libx264/aac.
func joinReencodeArgs(listFile, output string) []string {
	return concatInput(listFile).
		Output(output, ffmpeg.KwArgs{
			"c:v":    "libx264",
			"preset": "fast",
			"crf":    23,
			"c:a":    "aac",
			"b:a":    "128k",
		}).
		OverWriteOutput().
		GetArgs()
}

func concatInput(listFile string) *ffmpeg.Stream {
	return ffmpeg.Input(listFile, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": 0, // Allow absolute paths
	})
}

// checkReadable opens and closes path to confirm it can be read.
func checkReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 - path is produced by the pipeline
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	return nil
}

// createConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer.
func createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapeConcatPath(absPath)); err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// escapeConcatPath escapes single quotes for the concat demuxer's quoting rules.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// Verify interface implementation at compile time.
var _ Merger = (*FFmpegMerger)(nil)
