// Package pipeline implements the corpus stages. Every stage enumerates its
// inputs, partitions them into buckets, processes the buckets on a bounded
// worker pool and persists the merged result.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/corpus-builder/internal/core"
	"github.com/book-expert/corpus-builder/internal/partition"
	"github.com/book-expert/corpus-builder/internal/sources"
	"github.com/book-expert/corpus-builder/internal/storage"
	"github.com/book-expert/corpus-builder/internal/workerpool"
	"github.com/book-expert/logger"
)

// Stage names used in logs and completion events.
const (
	StageDownload = "download"
	StageClean    = "clean"
	StageCompile  = "compile"
	StageCount    = "count"
	StageNGram    = "ngram"
)

// Static errors.
var (
	ErrStoreNil          = errors.New("artifact store cannot be nil")
	ErrFetcherNil        = errors.New("fetcher cannot be nil")
	ErrLoggerNil         = errors.New("logger cannot be nil")
	ErrInvalidNGramSize  = errors.New("n-gram size must be at least 1")
	ErrUnknownTokenKind  = errors.New("unknown token kind")
	ErrInvalidMaxBuckets = errors.New("max buckets must be positive")
	ErrUnknownStage      = errors.New("unknown stage")
)

// Fetcher lists and downloads the raw texts of a source.
type Fetcher interface {
	ListItems(ctx context.Context, lang string, kind sources.Kind) ([]sources.Item, error)
	Fetch(ctx context.Context, lang string, item sources.Item) (string, error)
}

// Options controls stage concurrency, source selection and the existence gate.
type Options struct {
	Workers    int
	MaxBuckets int
	Sources    []sources.Kind
	// Force reprocesses items whose output artifact already exists.
	Force bool
}

// Runner executes the pipeline stages against one artifact store.
type Runner struct {
	store    core.ArtifactStore
	fetcher  Fetcher
	log      *logger.Logger
	options  Options
	mirror   core.ObjectStore
	notifier core.Notifier
}

// NewRunner creates a runner. Mirror and notifier are optional and attached
// with WithMirror and WithNotifier.
func NewRunner(store core.ArtifactStore, fetcher Fetcher, log *logger.Logger, options Options) (*Runner, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	if fetcher == nil {
		return nil, ErrFetcherNil
	}

	if log == nil {
		return nil, ErrLoggerNil
	}

	if options.Workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", workerpool.ErrInvalidSize, options.Workers)
	}

	if options.MaxBuckets <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxBuckets, options.MaxBuckets)
	}

	if len(options.Sources) == 0 {
		options.Sources = sources.Kinds()
	}

	return &Runner{
		store:    store,
		fetcher:  fetcher,
		log:      log,
		options:  options,
		mirror:   nil,
		notifier: nil,
	}, nil
}

// WithMirror copies every compiled artifact into an object store.
func (r *Runner) WithMirror(mirror core.ObjectStore) *Runner {
	r.mirror = mirror

	return r
}

// WithNotifier announces every finished stage.
func (r *Runner) WithNotifier(notifier core.Notifier) *Runner {
	r.notifier = notifier

	return r
}

// ItemFailure records one work item that could not be processed.
type ItemFailure struct {
	Source sources.Kind
	Name   string
	Err    error
}

// Report summarizes one stage invocation.
type Report struct {
	Stage     string
	Language  string
	Processed int
	Skipped   int
	Failures  []ItemFailure
}

func newReport(stage, lang string) Report {
	return Report{
		Stage:     stage,
		Language:  lang,
		Processed: 0,
		Skipped:   0,
		Failures:  nil,
	}
}

// Failed returns the number of failed items.
func (r Report) Failed() int {
	return len(r.Failures)
}

// Summary converts the report to the form published to notifiers.
func (r Report) Summary() core.StageSummary {
	return core.StageSummary{
		Stage:     r.Stage,
		Language:  r.Language,
		Processed: r.Processed,
		Skipped:   r.Skipped,
		Failed:    r.Failed(),
	}
}

func (r *Report) merge(other Report) {
	r.Processed += other.Processed
	r.Skipped += other.Skipped
	r.Failures = append(r.Failures, other.Failures...)
}

func (r *Report) fail(source sources.Kind, name string, err error) {
	r.Failures = append(r.Failures, ItemFailure{Source: source, Name: name, Err: err})
}

// runBuckets partitions items and processes every bucket on a fresh pool that
// is closed once all buckets are done. Results come back in bucket order.
func runBuckets[T, R any](r *Runner, items []T, process func(bucket []T) (R, error)) ([]R, error) {
	buckets := partition.Partition(items, partition.Target(len(items), r.options.MaxBuckets))
	if len(buckets) == 0 {
		return nil, nil
	}

	pool, err := workerpool.New(r.options.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Close()

	r.log.Info("Dispatching buckets=%d workers=%d items=%d", len(buckets), pool.Size(), len(items))

	results, err := workerpool.Map(pool, buckets, process)
	if err != nil {
		return results, fmt.Errorf("bucket processing failed: %w", err)
	}

	return results, nil
}

// finish logs the outcome of a stage and notifies the optional listener.
// Item failures are logged where they happen.
func (r *Runner) finish(ctx context.Context, report Report) {
	r.log.Info("Completed stage=%s language=%s processed=%d skipped=%d failed=%d",
		report.Stage, report.Language, report.Processed, report.Skipped, report.Failed())

	if r.notifier == nil {
		return
	}

	err := r.notifier.StageCompleted(ctx, report.Summary())
	if err != nil {
		r.log.Warn("Failed to publish completion of stage %s: %v", report.Stage, err)
	}
}

// persist stores a stage-level artifact and mirrors it when a mirror is
// attached. A mirror failure is logged and does not fail the stage.
func (r *Runner) persist(ctx context.Context, path, content string) error {
	err := r.store.Store(path, content)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", path, err)
	}

	r.log.Info("Stored %s size=%d", path, len(content))

	if r.mirror == nil {
		return nil
	}

	err = r.mirror.Upload(ctx, path, []byte(content))
	if err != nil {
		r.log.Warn("Failed to mirror %s: %v", path, err)
	}

	return nil
}

// loadCorpus reads the compiled corpus of a language. When the local copy is
// missing and a mirror is attached, the mirrored corpus is restored first.
func (r *Runner) loadCorpus(ctx context.Context, lang string) (string, error) {
	path := storage.CompiledCorpusPath(lang)

	corpus, err := r.store.Load(path)
	if err == nil {
		return corpus, nil
	}

	if r.mirror == nil || !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to load compiled corpus: %w", err)
	}

	data, mirrorErr := r.mirror.Download(ctx, path)
	if mirrorErr != nil {
		return "", fmt.Errorf("failed to load compiled corpus: %w (mirror: %w)", err, mirrorErr)
	}

	r.log.Info("Restored %s from mirror size=%d", path, len(data))

	err = r.store.Store(path, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to restore compiled corpus: %w", err)
	}

	return string(data), nil
}
