// Package batch runs analyses over a collection of image files in
// sequential chunks. Items inside a chunk run concurrently; the next
// chunk starts only after the previous one has fully settled and a
// pause has elapsed.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-quality/internal/utils"
	"github.com/menta2k/image-quality/pkg/preview"
	"github.com/menta2k/image-quality/pkg/types"
)

const (
	DefaultBatchSize = 5
	DefaultPause     = 500 * time.Millisecond
)

var (
	ErrRunning  = errors.New("batch already running")
	ErrNotFound = errors.New("image not found")
	ErrClosed   = errors.New("batch closed")
)

// Status is the lifecycle state of an ImageFile
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ImageFile is one entry of the collection
type ImageFile struct {
	ID         uuid.UUID         `json:"id"`
	Path       string            `json:"path"`
	Name       string            `json:"name"`
	PreviewURL string            `json:"previewUrl,omitempty"`
	Hash       string            `json:"hash"`
	Status     Status            `json:"status"`
	Result     *types.Assessment `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// AnalyzeFunc scores the image at path
type AnalyzeFunc func(ctx context.Context, path string) (*types.Assessment, error)

// Options configures an Orchestrator
type Options struct {
	// BatchSize is the chunk size; values below 1 use DefaultBatchSize
	BatchSize int
	// Pause separates chunks. Zero means no pause.
	Pause  time.Duration
	Logger *zerolog.Logger
	// OnUpdate receives a snapshot after every change to the collection.
	// It is called without locks held and must not block for long.
	OnUpdate func([]ImageFile)
	// Sleep waits between chunks; nil uses a timer honouring ctx
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the standard chunking
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, Pause: DefaultPause}
}

// Orchestrator owns an ordered collection of images and runs them
type Orchestrator struct {
	analyze  AnalyzeFunc
	previews preview.Store
	opts     Options
	logger   zerolog.Logger

	mu     sync.Mutex
	items  []ImageFile // replaced wholesale, never mutated in place
	hashes map[string]uuid.UUID
	cancel context.CancelFunc
	gen    uint64
	closed bool
}

// New creates an orchestrator. A nil previews store uses preview.NopStore.
func New(analyze AnalyzeFunc, previews preview.Store, opts Options) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if previews == nil {
		previews = preview.NopStore{}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "batch").Logger()
	}

	return &Orchestrator{
		analyze:  analyze,
		previews: previews,
		opts:     opts,
		logger:   logger,
		hashes:   make(map[string]uuid.UUID),
	}
}

// Add appends pending items for paths. Files whose content is already in
// the collection are skipped. Files that cannot be read or previewed are
// skipped and reported in the returned error; the rest are still added.
func (o *Orchestrator) Add(ctx context.Context, paths ...string) ([]ImageFile, error) {
	var (
		added []ImageFile
		errs  []error
	)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		hash, err := utils.ContentHashFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		o.mu.Lock()
		closed := o.closed
		_, dup := o.hashes[hash]
		o.mu.Unlock()
		if closed {
			errs = append(errs, ErrClosed)
			break
		}
		if dup {
			o.logger.Debug().Str("file", path).Str("hash", hash).Msg("skipping duplicate")
			continue
		}

		previewURL, err := o.previews.Create(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: preview: %w", path, err))
			continue
		}

		item := ImageFile{
			ID:         uuid.New(),
			Path:       path,
			Name:       filepath.Base(path),
			PreviewURL: previewURL,
			Hash:       hash,
			Status:     StatusPending,
		}

		o.mu.Lock()
		if _, dup := o.hashes[hash]; dup || o.closed {
			o.mu.Unlock()
			o.revoke(previewURL)
			continue
		}
		o.hashes[hash] = item.ID
		o.items = append(slices.Clip(o.items), item)
		snap := o.items
		o.mu.Unlock()

		added = append(added, item)
		o.notify(snap)
	}

	return added, errors.Join(errs...)
}

// Remove drops an item and releases its preview. A result arriving for
// a removed item is discarded.
func (o *Orchestrator) Remove(id uuid.UUID) error {
	o.mu.Lock()
	idx := o.indexOf(id)
	if idx < 0 {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item := o.items[idx]
	o.items = slices.Delete(slices.Clone(o.items), idx, idx+1)
	delete(o.hashes, item.Hash)
	snap := o.items
	o.mu.Unlock()

	o.revoke(item.PreviewURL)
	o.notify(snap)
	return nil
}

// Close stops any run and releases every remaining preview. Calling it
// again does nothing.
func (o *Orchestrator) Close() error {
	o.Stop()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	items := o.items
	o.items = nil
	o.hashes = make(map[string]uuid.UUID)
	o.mu.Unlock()

	var errs []error
	for _, item := range items {
		if err := o.revoke(item.PreviewURL); err != nil {
			errs = append(errs, err)
		}
	}
	o.notify(nil)
	return errors.Join(errs...)
}

// Run analyses every pending item, chunk by chunk. It returns when all
// chunks have settled, after Stop, or when ctx is cancelled, in which
// case ctx's error is returned. Per-item failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.cancel != nil {
		o.mu.Unlock()
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.gen++
	gen := o.gen
	var pending []uuid.UUID
	for _, item := range o.items {
		if item.Status == StatusPending {
			pending = append(pending, item.ID)
		}
	}
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
	}()

	chunks := slices.Collect(slices.Chunk(pending, o.opts.BatchSize))
	o.logger.Info().Int("images", len(pending)).Int("chunks", len(chunks)).Msg("starting batch")

	for i, chunk := range chunks {
		if runCtx.Err() != nil {
			break
		}

		started := o.markAnalyzing(gen, chunk)
		o.logger.Debug().Int("chunk", i+1).Int("images", len(started)).Msg("chunk started")

		var g errgroup.Group
		g.SetLimit(o.opts.BatchSize)
		for _, item := range started {
			g.Go(func() error {
				o.process(runCtx, gen, item)
				return nil
			})
		}
		g.Wait()

		o.logger.Debug().Int("chunk", i+1).Msg("chunk finished")

		if i < len(chunks)-1 && runCtx.Err() == nil {
			if err := o.opts.Sleep(runCtx, o.opts.Pause); err != nil {
				break
			}
		}
	}

	if runCtx.Err() != nil {
		o.halt(gen)
	}

	if err := ctx.Err(); err != nil {
		o.logger.Warn().Err(err).Msg("batch interrupted")
		return err
	}

	o.logger.Info().Msg("batch finished")
	return nil
}

// Stop cancels the current run. Items still analyzing go back to
// pending and their late results are ignored.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	gen := o.gen
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	o.halt(gen)
}

// Running reports whether Run is in progress
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

// Snapshot returns a copy of the collection in insertion order
func (o *Orchestrator) Snapshot() []ImageFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.items)
}

// Summary is computed from a fresh snapshot
func (o *Orchestrator) Summary() Summary {
	return Summarize(o.Snapshot())
}

// halt reverts analyzing items of run gen to pending and retires gen so
// that results still in flight are dropped
func (o *Orchestrator) halt(gen uint64) {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return
	}
	o.gen++

	next := slices.Clone(o.items)
	reverted := 0
	for i := range next {
		if next[i].Status == StatusAnalyzing {
			next[i].Status = StatusPending
			reverted++
		}
	}
	o.items = next
	o.mu.Unlock()

	o.logger.Info().Int("reverted", reverted).Msg("batch stopped")
	o.notify(next)
}

func (o *Orchestrator) markAnalyzing(gen uint64, ids []uuid.UUID) []ImageFile {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return nil
	}

	next := slices.Clone(o.items)
	var started []ImageFile
	for _, id := range ids {
		idx := indexOf(next, id)
		if idx < 0 || next[idx].Status != StatusPending {
			continue
		}
		next[idx].Status = StatusAnalyzing
		started = append(started, next[idx])
	}
	o.items = next
	o.mu.Unlock()

	o.notify(next)
	return started
}

func (o *Orchestrator) process(ctx context.Context, gen uint64, item ImageFile) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("file", item.Path).Interface("panic", r).Msg("analysis panicked")
			if ctx.Err() == nil {
				o.finish(gen, item.ID, nil, fmt.Errorf("analysis panicked: %v", r))
			}
		}
	}()

	res, err := o.analyze(ctx, item.Path)
	if ctx.Err() != nil {
		return
	}
	if err == nil && res == nil {
		err = errors.New("analysis returned no result")
	}
	if err != nil {
		o.logger.Warn().Str("file", item.Path).Err(err).Msg("analysis failed")
	}
	o.finish(gen, item.ID, res, err)
}

func (o *Orchestrator) finish(gen uint64, id uuid.UUID, res *types.Assessment, err error) {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return
	}
	idx := o.indexOf(id)
	if idx < 0 || o.items[idx].Status != StatusAnalyzing {
		o.mu.Unlock()
		return
	}

	next := slices.Clone(o.items)
	if err != nil {
		next[idx].Status = StatusError
		next[idx].Error = err.Error()
		next[idx].Result = nil
	} else {
		next[idx].Status = StatusCompleted
		next[idx].Error = ""
		next[idx].Result = res
	}
	o.items = next
	o.mu.Unlock()

	o.notify(next)
}

func (o *Orchestrator) revoke(url string) error {
	if url == "" {
		return nil
	}
	if err := o.previews.Revoke(url); err != nil {
		o.logger.Warn().Str("preview", url).Err(err).Msg("failed to release preview")
		return err
	}
	return nil
}

func (o *Orchestrator) notify(items []ImageFile) {
	if o.opts.OnUpdate != nil {
		o.opts.OnUpdate(slices.Clone(items))
	}
}

func (o *Orchestrator) indexOf(id uuid.UUID) int {
	return indexOf(o.items, id)
}

func indexOf(items []ImageFile, id uuid.UUID) int {
	return slices.IndexFunc(items, func(it ImageFile) bool { return it.ID == id })
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
