package pipeline

import (
	"context"
	"fmt"

	"github.com/book-expert/corpus-builder/internal/sources"
	"github.com/book-expert/corpus-builder/internal/storage"
)

// Download lists the configured sources for a language and stores the raw text
// of every item under downloads/{lang}/{source}. Items already downloaded are
// skipped unless the runner forces reprocessing. A failing listing or fetch is
// recorded in the report and never aborts the stage.
func (r *Runner) Download(ctx context.Context, lang string) (Report, error) {
	report := newReport(StageDownload, lang)

	var items []sources.Item

	for _, kind := range r.options.Sources {
		if !sources.Available(kind, lang) {
			r.log.Info("Source %s offers no texts for language=%s", kind, lang)

			continue
		}

		r.log.Info("Listing source=%s language=%s", kind, lang)

		listed, err := r.fetcher.ListItems(ctx, lang, kind)
		if err != nil {
			r.log.Error("Unable to list source=%s language=%s: %v", kind, lang, err)
			report.fail(kind, "", fmt.Errorf("failed to list items: %w", err))

			continue
		}

		items = append(items, listed...)
	}

	results, err := runBuckets(r, items, func(bucket []sources.Item) (Report, error) {
		return r.downloadBucket(ctx, lang, bucket), nil
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

func (r *Runner) downloadBucket(ctx context.Context, lang string, bucket []sources.Item) Report {
	report := newReport(StageDownload, lang)

	r.log.Info("Downloading bucket size=%d", len(bucket))

	for _, item := range bucket {
		output := storage.ArtifactPath(storage.StageDownloads, lang, item.Kind().String(), item.Filename())

		if !r.options.Force && r.store.Exists(output) {
			r.log.Info("Skipping download %s", sources.Describe(item))

			report.Skipped++

			continue
		}

		err := r.downloadItem(ctx, lang, item, output)
		if err != nil {
			r.log.Error("Unable to download %s: %v", sources.Describe(item), err)
			report.fail(item.Kind(), item.Filename(), err)

			continue
		}

		report.Processed++
	}

	return report
}

func (r *Runner) downloadItem(ctx context.Context, lang string, item sources.Item, output string) error {
	r.log.Info("Fetching %s", sources.Describe(item))

	content, err := r.fetcher.Fetch(ctx, lang, item)
	if err != nil {
		return err
	}

	r.log.Info("Storing %s", sources.Describe(item))

	err = r.store.Store(output, content)
	if err != nil {
		return fmt.Errorf("failed to store download: %w", err)
	}

	return nil
}
