// Package media renders slideshow clips and merges finished batches using
// the ffmpeg and ffprobe command-line tools.
package media

import "context"

// Clip is a silent video rendered from one batch of images.
type Clip struct {
	// Path is where the clip was written.
	Path string
	// Duration is images × per-image duration, in seconds.
	Duration float64
	// Images is the number of images shown in the clip.
	Images int
}

// FinalVideo is the concatenation of every batch deliverable.
type FinalVideo struct {
	Path   string
	Inputs int
}

// RenderOpts configures clip rendering.
type RenderOpts struct {
	// ImageDuration is how long each image stays on screen, in seconds.
	ImageDuration float64
	// FPS is the output frame rate.
	FPS int
	// Width and Height are the output frame size in pixels.
	Width  int
	Height int
}

// Renderer turns an ordered batch of images into a silent clip.
type Renderer interface {
	// RenderClip shows each image for opts.ImageDuration seconds with a linear
	// zoom from 1.0x to 1.2x, back-to-back in the given order, and writes the
	// clip to output.
	RenderClip(ctx context.Context, images []string, opts RenderOpts, output string) (Clip, error)
}

// Merger concatenates finished videos.
type Merger interface {
	// Merge joins inputs in list order into output. It first attempts a
	// stream copy and falls back to re-encoding with libx264/aac.
	Merge(ctx context.Context, inputs []string, output string) (FinalVideo, error)
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}
