package pipeline

import (
	"context"
	"fmt"
)

// RunAll executes download, clean, compile, both counts and the n-gram stage
// in order. It stops at the first stage-level error; item failures only show
// up in the reports.
func (r *Runner) RunAll(ctx context.Context, lang string, n int) ([]Report, error) {
	steps := []struct {
		name string
		run  func() (Report, error)
	}{
		{StageDownload, func() (Report, error) { return r.Download(ctx, lang) }},
		{StageClean, func() (Report, error) { return r.Clean(ctx, lang) }},
		{StageCompile, func() (Report, error) { return r.Compile(ctx, lang) }},
		{StageCount, func() (Report, error) { return r.Count(ctx, lang, Words) }},
		{StageCount, func() (Report, error) { return r.Count(ctx, lang, Characters) }},
		{StageNGram, func() (Report, error) { return r.NGram(ctx, lang, n) }},
	}

	reports := make([]Report, 0, len(steps))

	for _, step := range steps {
		report, err := step.run()
		reports = append(reports, report)

		if err != nil {
			return reports, fmt.Errorf("stage %s failed: %w", step.name, err)
		}
	}

	return reports, nil
}

// StageAll selects the full pipeline in a Request.
const StageAll = "all"

// Request names one stage, or StageAll, and its parameters.
type Request struct {
	Stage    string
	Language string
	// NGramSize is used by the ngram stage and StageAll.
	NGramSize int
	// Tokens is used by the count stage.
	Tokens TokenKind
}

// Run dispatches a request to the matching stage.
func (r *Runner) Run(ctx context.Context, request Request) ([]Report, error) {
	var (
		report Report
		err    error
	)

	switch request.Stage {
	case StageAll:
		return r.RunAll(ctx, request.Language, request.NGramSize)
	case StageDownload:
		report, err = r.Download(ctx, request.Language)
	case StageClean:
		report, err = r.Clean(ctx, request.Language)
	case StageCompile:
		report, err = r.Compile(ctx, request.Language)
	case StageCount:
		report, err = r.Count(ctx, request.Language, request.Tokens)
	case StageNGram:
		report, err = r.NGram(ctx, request.Language, request.NGramSize)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownStage, request.Stage)
	}

	return []Report{report}, err
}
