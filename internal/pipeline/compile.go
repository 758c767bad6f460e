package pipeline

import (
	"context"
	"strings"

	"github.com/book-expert/corpus-builder/internal/sources"
	"github.com/book-expert/corpus-builder/internal/storage"
)

type compiledBucket struct {
	text   string
	report Report
}

// Compile concatenates every cleaned artifact of a language into
// compiled/{lang}/compiled.txt. The corpus is always rebuilt.
func (r *Runner) Compile(ctx context.Context, lang string) (Report, error) {
	report := newReport(StageCompile, lang)

	items, err := r.enumerate(storage.StageClean, lang)
	if err != nil {
		return report, err
	}

	results, err := runBuckets(r, items, func(bucket []sources.Downloaded) (compiledBucket, error) {
		return r.compileBucket(lang, bucket), nil
	})
	if err != nil {
		r.finish(ctx, report)

		return report, err
	}

	var compiled strings.Builder

	for _, result := range results {
		compiled.WriteString(result.text)
		compiled.WriteString("\n")
		report.merge(result.report)
	}

	r.log.Info("Completed all buckets, storing compilation")

	err = r.persist(ctx, storage.CompiledCorpusPath(lang), compiled.String())
	if err != nil {
		return report, err
	}

	r.finish(ctx, report)

	return report, nil
}

func (r *Runner) compileBucket(lang string, bucket []sources.Downloaded) compiledBucket {
	result := compiledBucket{text: "", report: newReport(StageCompile, lang)}

	r.log.Info("Compiling bucket size=%d", len(bucket))

	var compiled strings.Builder

	for _, item := range bucket {
		content, err := r.store.Load(storage.ArtifactPath(storage.StageClean, lang, item.Source.String(), item.Name))
		if err != nil {
			r.log.Error("Unable to load and compile %s: %v", item.Describe(), err)
			result.report.fail(item.Source, item.Name, err)

			continue
		}

		compiled.WriteString("\n")
		compiled.WriteString(content)

		result.report.Processed++
	}

	result.text = compiled.String()

	return result
}
