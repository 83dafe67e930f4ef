// Package pipeline sequences a slideshow run: it renders each image batch,
// attaches the background audio, merges the finished batches and removes the
// intermediate artifacts along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"

	"github.com/maauso/slideshow/internal/audio"
	"github.com/maauso/slideshow/internal/batch"
	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/run"
	"github.com/maauso/slideshow/internal/storage"
)

// Batcher yields the image batches of a run.
type Batcher interface {
	Batches() (iter.Seq[batch.Batch], int, error)
}

// Options holds the per-run settings of a Driver.
type Options struct {
	// ImageDuration is the on-screen time of each image, in seconds.
	ImageDuration float64
	FPS           int
	Width         int
	Height        int
	// AudioPath is the background track every batch is scored with.
	AudioPath string
	// OutputPath is where the final video is written.
	OutputPath string
	// Ext is the container extension of intermediate artifacts, without the dot.
	Ext string
	// PublishKey is the S3 object key for the final video. Empty disables publishing.
	PublishKey string
}

func (o Options) renderOpts() media.RenderOpts {
	return media.RenderOpts{
		ImageDuration: o.ImageDuration,
		FPS:           o.FPS,
		Width:         o.Width,
		Height:        o.Height,
	}
}

// IOError is returned when an intermediate artifact cannot be deleted.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Driver runs the render, attach, merge sequence over every batch.
type Driver struct {
	batcher  Batcher
	renderer media.Renderer
	attacher audio.Attacher
	merger   media.Merger
	store    storage.Storage
	opts     Options
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for progress lines.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDriver creates a Driver.
func NewDriver(
	batcher Batcher,
	renderer media.Renderer,
	attacher audio.Attacher,
	merger media.Merger,
	store storage.Storage,
	opts Options,
	options ...Option,
) *Driver {
	if opts.Ext == "" {
		opts.Ext = "mp4"
	}
	d := &Driver{
		batcher:  batcher,
		renderer: renderer,
		attacher: attacher,
		merger:   merger,
		store:    store,
		opts:     opts,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Run executes one full pipeline pass and returns its record.
//
// Any failure aborts the run. The failing batch's clip and deliverable are
// removed; deliverables of batches that already completed are left on disk.
// The returned Run is a snapshot and is never nil.
func (d *Driver) Run(ctx context.Context) (*run.Run, error) {
	r := run.New()
	logger := d.logger.With(slog.String("run_id", r.ID))

	batches, total, err := d.batcher.Batches()
	if err != nil {
		return d.fail(r, logger, err)
	}
	r.SetTotal(total)
	logger.Info("discovered images",
		slog.Int("batches", total),
		slog.String("audio", d.opts.AudioPath),
	)

	var duration float64
	for b := range batches {
		if err := ctx.Err(); err != nil {
			return d.fail(r, logger, err)
		}
		deliv, err := d.processBatch(ctx, r, b, total, logger)
		if err != nil {
			return d.fail(r, logger, err)
		}
		duration += deliv.Duration
	}

	if err := r.TransitionTo(run.StageMerge); err != nil {
		return d.fail(r, logger, err)
	}
	deliverables := r.Deliverables()
	logger.Info("merging batches", slog.Int("inputs", len(deliverables)))
	final, err := d.merger.Merge(ctx, deliverables, d.opts.OutputPath)
	if err != nil {
		return d.fail(r, logger, err)
	}
	r.SetOutput(final.Path, duration, "")

	if err := r.TransitionTo(run.StageCleanupBatches); err != nil {
		return d.fail(r, logger, err)
	}
	// The final video already exists, so deliverable cleanup is not cancelled.
	if err := d.remove(context.WithoutCancel(ctx), "remove deliverable", deliverables); err != nil {
		return d.fail(r, logger, err)
	}

	if d.opts.PublishKey != "" {
		url, err := d.publish(ctx, final.Path)
		if err != nil {
			return d.fail(r, logger, err)
		}
		r.SetURL(url)
		logger.Info("published final video", slog.String("url", url))
	}

	if err := r.TransitionTo(run.StageDone); err != nil {
		return d.fail(r, logger, err)
	}
	logger.Info("slideshow complete",
		slog.String("output", final.Path),
		slog.Float64("duration_sec", duration),
		slog.Int("batches", len(deliverables)),
	)
	return r.Clone(), nil
}

// processBatch renders, scores and cleans up one batch.
func (d *Driver) processBatch(ctx context.Context, r *run.Run, b batch.Batch, total int, logger *slog.Logger) (audio.Deliverable, error) {
	clipPath := d.store.ArtifactPath(storage.ClipName(b.Index, d.opts.Ext))
	delivPath := d.store.ArtifactPath(storage.DeliverableName(b.Index, d.opts.Ext))
	logger = logger.With(slog.Int("batch", b.Index))

	r.AddBatch(run.Batch{
		Index:           b.Index,
		Images:          b.Len(),
		ClipPath:        clipPath,
		DeliverablePath: delivPath,
		Status:          run.BatchPending,
	})

	abort := func(err error) (audio.Deliverable, error) {
		r.UpdateBatch(b.Index, func(rb *run.Batch) {
			rb.Status = run.BatchFailed
			rb.Error = err.Error()
		})
		d.rollback(ctx, logger, clipPath, delivPath)
		return audio.Deliverable{}, err
	}

	if err := r.TransitionTo(run.StageRender); err != nil {
		return abort(err)
	}
	logger.Info("rendering batch",
		slog.String("progress", fmt.Sprintf("%d/%d", b.Index+1, total)),
		slog.Int("images", b.Len()),
	)
	clip, err := d.renderer.RenderClip(ctx, b.Images, d.opts.renderOpts(), clipPath)
	if err != nil {
		return abort(fmt.Errorf("batch %d: %w", b.Index, err))
	}
	r.UpdateBatch(b.Index, func(rb *run.Batch) {
		rb.Status = run.BatchRendered
		rb.Duration = clip.Duration
	})

	if err := r.TransitionTo(run.StageAttach); err != nil {
		return abort(err)
	}
	deliv, err := d.attacher.Attach(ctx, clipPath, d.opts.AudioPath, delivPath)
	if err != nil {
		return abort(fmt.Errorf("batch %d: %w", b.Index, err))
	}
	r.UpdateBatch(b.Index, func(rb *run.Batch) { rb.Status = run.BatchAttached })

	if err := r.TransitionTo(run.StageCleanupIntermediate); err != nil {
		return abort(err)
	}
	if err := d.remove(ctx, "remove clip", []string{clipPath}); err != nil {
		return abort(err)
	}
	r.UpdateBatch(b.Index, func(rb *run.Batch) {
		rb.Status = run.BatchCompleted
		rb.Duration = deliv.Duration
	})

	logger.Info("batch complete",
		slog.String("deliverable", deliv.Path),
		slog.Float64("duration_sec", deliv.Duration),
	)
	return deliv, nil
}

// remove deletes artifacts, reporting a failed deletion as *IOError.
func (d *Driver) remove(ctx context.Context, op string, paths []string) error {
	err := d.store.CleanupTemp(ctx, paths)
	if err == nil {
		return nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &IOError{Op: op, Path: pathErr.Path, Err: pathErr.Err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rollback removes the in-flight batch's artifacts after a failure.
// It runs even when ctx is already cancelled.
func (d *Driver) rollback(ctx context.Context, logger *slog.Logger, paths ...string) {
	if err := d.store.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		logger.Warn("failed to remove in-flight artifacts",
			slog.String("error", err.Error()),
		)
	}
}

func (d *Driver) publish(ctx context.Context, path string) (string, error) {
	f, err := d.store.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := d.store.UploadToS3(ctx, d.opts.PublishKey, f)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return url, nil
}

func (d *Driver) fail(r *run.Run, logger *slog.Logger, err error) (*run.Run, error) {
	stage := r.GetStage()
	if !r.IsTerminal() {
		_ = r.Fail(err.Error())
	}
	logger.Error("slideshow failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
	return r.Clone(), err
}
