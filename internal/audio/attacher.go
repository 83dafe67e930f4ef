// Package audio scores rendered clips with a background audio track.
package audio

import (
	"context"
	"fmt"
)

// Deliverable is a rendered clip with its background audio attached.
type Deliverable struct {
	// Path is where the scored clip was written.
	Path string
	// Duration is the clip length in seconds; the audio track matches it.
	Duration float64
}

// Attacher overlays background audio onto a silent clip.
type Attacher interface {
	// Attach writes clipPath's video with the audio segment [0, clip duration]
	// of audioPath to output.
	//
	// If the audio source is shorter than the clip, Attach returns an
	// *AudioRangeError and writes nothing, unless the implementation was
	// configured to pad with silence.
	Attach(ctx context.Context, clipPath, audioPath, output string) (Deliverable, error)
}

// AudioRangeError is returned when the audio source cannot cover the clip.
type AudioRangeError struct {
	Audio string
	// Need is the clip duration in seconds.
	Need float64
	// Have is the audio source duration in seconds.
	Have float64
}

func (e *AudioRangeError) Error() string {
	return fmt.Sprintf("audio %s is %.3fs long, clip needs %.3fs", e.Audio, e.Have, e.Need)
}
