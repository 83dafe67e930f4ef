package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoders for the pre-render integrity check
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Zoom bounds: every image starts at its natural framing and ends 20% larger.
const (
	zoomStart = 1.0
	zoomGain  = 0.2
)

// ZoomAt returns the display scale of an image t seconds into its on-screen
// window of length d: 1 + 0.2·t/d, clamped to [1.0, 1.2].
func ZoomAt(t, d float64) float64 {
	if d <= 0 || t <= 0 {
		return zoomStart
	}
	if t >= d {
		return zoomStart + zoomGain
	}
	return zoomStart + zoomGain*t/d
}

// FFmpegRenderer implements Renderer using the ffmpeg zoompan filter.
type FFmpegRenderer struct {
	runner *Runner
}

// NewFFmpegRenderer creates a new FFmpegRenderer.
func NewFFmpegRenderer(runner *Runner) *FFmpegRenderer {
	if runner == nil {
		runner = NewRunner("", "")
	}
	return &FFmpegRenderer{runner: runner}
}

// RenderClip implements Renderer.RenderClip.
func (r *FFmpegRenderer) RenderClip(ctx context.Context, images []string, opts RenderOpts, output string) (Clip, error) {
	if err := opts.validate(); err != nil {
		return Clip{}, &RenderError{Err: err}
	}
	if len(images) == 0 {
		return Clip{}, &RenderError{Err: ErrEmptyBatch}
	}

	for _, img := range images {
		if err := checkImage(img); err != nil {
			return Clip{}, &RenderError{Image: img, Err: err}
		}
	}

	args := renderArgs(images, opts, output)
	if err := r.runner.Run(ctx, args); err != nil {
		removePartial(output)
		return Clip{}, &RenderError{Err: err}
	}

	return Clip{
		Path:     output,
		Duration: float64(len(images)) * opts.ImageDuration,
		Images:   len(images),
	}, nil
}

func (o RenderOpts) validate() error {
	if o.ImageDuration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, o.ImageDuration)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFPS, o.FPS)
	}
	if o.ImageDuration*float64(o.FPS) < 1 {
		return fmt.Errorf("%w: %.3fs is shorter than one frame at %d fps", ErrInvalidDuration, o.ImageDuration, o.FPS)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, o.Width, o.Height)
	}
	return nil
}

// frameCounts splits the k·d·fps output frames of a clip across its images.
// Image i covers frames [round(i·d·fps), round((i+1)·d·fps)), so the total is
// round(k·d·fps) even when d·fps is fractional.
func frameCounts(k int, opts RenderOpts) []int {
	perImage := opts.ImageDuration * float64(opts.FPS)
	counts := make([]int, k)
	for i := range counts {
		start := math.Round(float64(i) * perImage)
		end := math.Round(float64(i+1) * perImage)
		counts[i] = int(end - start)
	}
	return counts
}

// zoomExpr is the zoompan z expression for a window of n frames. The output
// frame number "on" maps to t = on/fps, so 1+0.2·on/n equals ZoomAt(t, d).
func zoomExpr(n int) string {
	return fmt.Sprintf("%g+%g*on/%d", zoomStart, zoomGain, n)
}

// imageSources returns one input stream per batch position. A path listed
// more than once is read once and fanned out through a split filter.
func imageSources(images []string) []*ffmpeg.Stream {
	uses := make(map[string]int, len(images))
	for _, img := range images {
		uses[img]++
	}

	splits := make(map[string]*ffmpeg.Node)
	taken := make(map[string]int)
	sources := make([]*ffmpeg.Stream, len(images))
	for i, img := range images {
		if uses[img] == 1 {
			sources[i] = ffmpeg.Input(img)
			continue
		}
		node, ok := splits[img]
		if !ok {
			node = ffmpeg.Input(img).Split()
			splits[img] = node
		}
		sources[i] = node.Get(strconv.Itoa(taken[img]))
		taken[img]++
	}
	return sources
}

// renderArgs builds the ffmpeg command line for one clip. Each image is
// letterboxed to the frame size, run through zoompan for exactly its own
// window, and the windows are joined back-to-back with the concat filter.
func renderArgs(images []string, opts RenderOpts, output string) []string {
	counts := frameCounts(len(images), opts)
	w, h := fmt.Sprint(opts.Width), fmt.Sprint(opts.Height)

	segments := make([]*ffmpeg.Stream, 0, len(images))
	for i, src := range imageSources(images) {
		seg := src.
			Filter("scale", ffmpeg.Args{w, h}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
			Filter("pad", ffmpeg.Args{w, h, "(ow-iw)/2", "(oh-ih)/2"}).
			Filter("setsar", ffmpeg.Args{"1"}).
			Filter("zoompan", ffmpeg.Args{}, ffmpeg.KwArgs{
				"z":   zoomExpr(counts[i]),
				"x":   "iw/2-(iw/zoom/2)",
				"y":   "ih/2-(ih/zoom/2)",
				"d":   counts[i],
				"s":   fmt.Sprintf("%dx%d", opts.Width, opts.Height),
				"fps": opts.FPS,
			})
		segments = append(segments, seg)
	}

	total := float64(len(images)) * opts.ImageDuration

	return ffmpeg.Concat(segments).
		Filter("format", ffmpeg.Args{"yuv420p"}).
		Output(output, ffmpeg.KwArgs{
			"c:v":     "libx264",
			"preset":  "fast",
			"pix_fmt": "yuv420p",
			"r":       opts.FPS,
			"t":       fmt.Sprintf("%.3f", total),
		}).
		OverWriteOutput().
		GetArgs()
}

// decodable lists the extensions whose headers can be verified in-process.
// Other formats are left for ffmpeg to reject.
var decodable = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// checkImage verifies that an image exists and, for formats with a
// registered decoder, that its header decodes to a non-empty frame.
func checkImage(path string) error {
	f, err := os.Open(path) // #nosec G304 - path comes from directory discovery
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if !decodable[strings.ToLower(filepath.Ext(path))] {
		return nil
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("decode: image has no pixels")
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Renderer = (*FFmpegRenderer)(nil)
