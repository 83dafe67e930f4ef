package media

import (
	"errors"
	"fmt"
)

// Static errors for media operations.
var (
	// ErrEmptyBatch is returned when a clip is requested for zero images.
	ErrEmptyBatch = errors.New("empty batch: at least one image is required")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("invalid frame rate: must be positive")
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoInputs is returned when no video paths are provided for merging.
	ErrNoInputs = errors.New("no video paths provided")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// RenderError reports a failed clip render. Image is set when a specific
// input image caused the failure.
type RenderError struct {
	Image string
	Err   error
}

func (e *RenderError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("render clip: image %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("render clip: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// MergeError reports a failed merge. Input is set when a specific input
// could not be opened.
type MergeError struct {
	Input string
	Err   error
}

func (e *MergeError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("merge videos: input %s: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("merge videos: %v", e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}
