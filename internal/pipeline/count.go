package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/corpus-builder/internal/storage"
)

// TokenKind selects what the count stage counts.
type TokenKind int

// Token kinds.
const (
	Words TokenKind = iota
	Characters
)

// String returns the name used in the frequency file name.
func (k TokenKind) String() string {
	switch k {
	case Words:
		return "word"
	case Characters:
		return "character"
	default:
		return fmt.Sprintf("token-kind(%d)", int(k))
	}
}

// ParseTokenKind maps "word" or "character" to its kind.
func ParseTokenKind(name string) (TokenKind, error) {
	switch name {
	case "word", "words":
		return Words, nil
	case "character", "characters":
		return Characters, nil
	default:
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownTokenKind, name)
	}
}

// countLine adds the tokens of one corpus line to table. Words are separated
// by single spaces with empty tokens dropped; characters are every rune but
// the space.
func (k TokenKind) countLine(line string, table *FrequencyTable) {
	switch k {
	case Words:
		for _, word := range strings.Split(line, " ") {
			if word != "" {
				table.Add(word)
			}
		}
	case Characters:
		for _, character := range line {
			if character != ' ' {
				table.Add(string(character))
			}
		}
	}
}

// Count builds the frequency table of the compiled corpus and stores it as
// compiled/{lang}/{word|character}-frequencies.json.
func (r *Runner) Count(ctx context.Context, lang string, kind TokenKind) (Report, error) {
	report := newReport(StageCount, lang)

	if kind != Words && kind != Characters {
		return report, fmt.Errorf("%w: %d", ErrUnknownTokenKind, int(kind))
	}

	corpus, err := r.loadCorpus(ctx, lang)
	if err != nil {
		return report, err
	}

	lines := strings.Split(corpus, "\n")

	r.log.Info("Counting %ss in %d lines", kind, len(lines))

	tables, err := runBuckets(r, lines, func(bucket []string) (*FrequencyTable, error) {
		table := NewFrequencyTable()

		for _, line := range bucket {
			kind.countLine(line, table)
		}

		return table, nil
	})
	if err != nil {
		r.finish(ctx, report)

		return report, err
	}

	merged := NewFrequencyTable()
	for _, table := range tables {
		merged.Merge(table)
	}

	report.Processed = len(lines)

	data, err := merged.MarshalJSON()
	if err != nil {
		return report, fmt.Errorf("failed to serialize frequencies: %w", err)
	}

	r.log.Info("Counted %d distinct %ss", merged.Len(), kind)

	err = r.persist(ctx, storage.FrequenciesPath(lang, kind.String()), string(data))
	if err != nil {
		return report, err
	}

	r.finish(ctx, report)

	return report, nil
}
