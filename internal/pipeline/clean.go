package pipeline

import (
	"context"
	"fmt"

	"github.com/book-expert/corpus-builder/internal/sources"
	"github.com/book-expert/corpus-builder/internal/storage"
	"github.com/book-expert/corpus-builder/internal/text"
)

// Clean pre-cleans and normalizes every downloaded artifact of a language into
// clean/{lang}/{source}. Each item writes its own artifact, so there is no
// merge step. Lowercasing is language neutral, so the language only selects
// the directories.
func (r *Runner) Clean(ctx context.Context, lang string) (Report, error) {
	report := newReport(StageClean, lang)

	items, err := r.enumerate(storage.StageDownloads, lang)
	if err != nil {
		return report, err
	}

	results, err := runBuckets(r, items, func(bucket []sources.Downloaded) (Report, error) {
		return r.cleanBucket(lang, bucket), nil
	})
	for _, result := range results {
		report.merge(result)
	}

	r.finish(ctx, report)

	if err != nil {
		return report, err
	}

	return report, nil
}

func (r *Runner) cleanBucket(lang string, bucket []sources.Downloaded) Report {
	report := newReport(StageClean, lang)

	r.log.Info("Cleaning bucket size=%d", len(bucket))

	for _, item := range bucket {
		output := storage.ArtifactPath(storage.StageClean, lang, item.Source.String(), item.Name)

		if !r.options.Force && r.store.Exists(output) {
			r.log.Info("Skipping cleaned %s", item.Describe())

			report.Skipped++

			continue
		}

		err := r.cleanItem(lang, item, output)
		if err != nil {
			r.log.Error("Unable to load and clean %s: %v", item.Describe(), err)
			report.fail(item.Source, item.Name, err)

			continue
		}

		report.Processed++
	}

	return report
}

func (r *Runner) cleanItem(lang string, item sources.Downloaded, output string) error {
	input := storage.ArtifactPath(storage.StageDownloads, lang, item.Source.String(), item.Name)

	content, err := r.store.Load(input)
	if err != nil {
		return err
	}

	r.log.Info("Cleaning with source handler %s", item.Describe())

	content, err = sources.PreClean(item.Source, content)
	if err != nil {
		return err
	}

	r.log.Info("Cleaning using generic cleaner filename=%s size=%d", item.Name, len(content))

	content = text.Normalize(content)

	r.log.Info("Storing %s", item.Describe())

	err = r.store.Store(output, content)
	if err != nil {
		return fmt.Errorf("failed to store cleaned text: %w", err)
	}

	return nil
}

// enumerate lists the artifacts of every known source below {stage}/{lang}.
func (r *Runner) enumerate(stage storage.Stage, lang string) ([]sources.Downloaded, error) {
	var items []sources.Downloaded

	for _, kind := range sources.Kinds() {
		names, err := r.store.List(storage.SourceDir(stage, lang, kind.String()))
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate %s artifacts: %w", stage, err)
		}

		for _, name := range names {
			items = append(items, sources.Downloaded{Source: kind, Name: name})
		}
	}

	return items, nil
}
