// Package run provides the Run aggregate that records the progress of one
// pipeline execution: its stage, per-batch artifacts and final output.
package run

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/slideshow/internal/run/id"
)

// Stage is the current step of a run.
type Stage string

const (
	// StageDiscover lists and partitions the input images.
	StageDiscover Stage = "DISCOVER"
	// StageRender renders the silent clip of the current batch.
	StageRender Stage = "RENDER"
	// StageAttach attaches the audio segment to the current clip.
	StageAttach Stage = "ATTACH"
	// StageCleanupIntermediate deletes the silent clip of the current batch.
	StageCleanupIntermediate Stage = "CLEANUP_INTERMEDIATE"
	// StageMerge concatenates all batch deliverables.
	StageMerge Stage = "MERGE"
	// StageCleanupBatches deletes all batch deliverables.
	StageCleanupBatches Stage = "CLEANUP_BATCHES"
	// StageDone means the final video is written.
	StageDone Stage = "DONE"
	// StageFailed means the run aborted.
	StageFailed Stage = "FAILED"
)

// ErrInvalidTransition is returned when an invalid stage transition is attempted.
var ErrInvalidTransition = errors.New("invalid stage transition")

// validTransitions defines which stage transitions are allowed.
// Every non-terminal stage may also move to FAILED.
var validTransitions = map[Stage][]Stage{
	StageDiscover:            {StageRender, StageMerge},
	StageRender:              {StageAttach},
	StageAttach:              {StageCleanupIntermediate},
	StageCleanupIntermediate: {StageRender, StageMerge},
	StageMerge:               {StageCleanupBatches},
	StageCleanupBatches:      {StageDone},
	StageDone:                {},
	StageFailed:              {},
}

func canTransition(from, to Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	if to == StageFailed {
		return from != StageDone && from != StageFailed
	}
	return slices.Contains(allowed, to)
}

// BatchStatus is the state of a single batch within a run.
type BatchStatus string

const (
	BatchPending   BatchStatus = "PENDING"
	BatchRendered  BatchStatus = "RENDERED"
	BatchAttached  BatchStatus = "ATTACHED"
	BatchCompleted BatchStatus = "COMPLETED"
	BatchFailed    BatchStatus = "FAILED"
)

// Batch records the artifacts of one batch.
type Batch struct {
	Index           int
	Images          int
	ClipPath        string
	DeliverablePath string
	Duration        float64
	Status          BatchStatus
	Error           string
}

// Run is the aggregate for one pipeline execution.
type Run struct {
	mu sync.RWMutex

	ID         string
	Stage      Stage
	Batches    []Batch
	TotalCount int
	FinalPath  string
	FinalURL   string
	Duration   float64
	Error      string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// New creates a Run with a generated ID in the DISCOVER stage.
func New() *Run {
	return NewWithID(id.Generate())
}

// NewWithID creates a Run with the given ID in the DISCOVER stage.
func NewWithID(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Stage:     StageDiscover,
		Batches:   make([]Batch, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the run to the given stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(stage Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Stage, stage) {
		return ErrInvalidTransition
	}

	r.Stage = stage
	r.UpdatedAt = time.Now()
	if stage == StageDone || stage == StageFailed {
		r.CompletedAt = r.UpdatedAt
	}
	return nil
}

// Fail records errMsg and moves the run to FAILED.
func (r *Run) Fail(errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.mu.Unlock()
	return r.TransitionTo(StageFailed)
}

// GetStage returns the current stage (thread-safe).
func (r *Run) GetStage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stage
}

// SetTotal records the number of batches the run will process.
func (r *Run) SetTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TotalCount = n
	r.UpdatedAt = time.Now()
}

// AddBatch appends a batch record.
func (r *Run) AddBatch(b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Batches = append(r.Batches, b)
	r.UpdatedAt = time.Now()
}

// UpdateBatch applies fn to the batch record with the given index.
// It is a no-op if no record has that index.
func (r *Run) UpdateBatch(index int, fn func(*Batch)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Batches {
		if r.Batches[i].Index == index {
			fn(&r.Batches[i])
			r.UpdatedAt = time.Now()
			return
		}
	}
}

// Deliverables returns the deliverable paths of completed batches in order.
func (r *Run) Deliverables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var paths []string
	for _, b := range r.Batches {
		if b.Status == BatchCompleted {
			paths = append(paths, b.DeliverablePath)
		}
	}
	return paths
}

// SetOutput sets the final video path, its duration and optional S3 URL.
func (r *Run) SetOutput(path string, duration float64, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinalPath = path
	r.Duration = duration
	r.FinalURL = url
	r.UpdatedAt = time.Now()
}

// SetURL records the published URL of the final video.
func (r *Run) SetURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinalURL = url
	r.UpdatedAt = time.Now()
}

// IsTerminal returns true if the run is DONE or FAILED.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stage == StageDone || r.Stage == StageFailed
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Run{
		ID:          r.ID,
		Stage:       r.Stage,
		Batches:     slices.Clone(r.Batches),
		TotalCount:  r.TotalCount,
		FinalPath:   r.FinalPath,
		FinalURL:    r.FinalURL,
		Duration:    r.Duration,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}
