package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/corpus-builder/internal/storage"
)

// Windows splits a sentence into non-overlapping windows of n whitespace
// separated tokens. The last window holds the remainder and may be shorter.
// An n below 1 yields no windows.
func Windows(sentence string, n int) []string {
	if n < 1 {
		return nil
	}

	tokens := strings.Fields(sentence)

	windows := make([]string, 0, (len(tokens)+n-1)/n)

	for start := 0; start < len(tokens); start += n {
		end := min(start+n, len(tokens))
		windows = append(windows, strings.Join(tokens[start:end], " "))
	}

	return windows
}

// orderedSet keeps unique strings in insertion order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: nil}
}

func (s *orderedSet) add(item string) {
	if _, ok := s.seen[item]; ok {
		return
	}

	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}

// NGram collects the distinct n-grams of every corpus sentence and stores them
// one per line as compiled/{lang}/{n}-grams.txt. Windows never span sentences.
func (r *Runner) NGram(ctx context.Context, lang string, n int) (Report, error) {
	report := newReport(StageNGram, lang)

	if n < 1 {
		return report, fmt.Errorf("%w: got %d", ErrInvalidNGramSize, n)
	}

	corpus, err := r.loadCorpus(ctx, lang)
	if err != nil {
		return report, err
	}

	sentences := strings.Split(corpus, "\n")

	r.log.Info("Creating %d-grams of %d sentences", n, len(sentences))

	sets, err := runBuckets(r, sentences, func(bucket []string) (*orderedSet, error) {
		set := newOrderedSet()

		for _, sentence := range bucket {
			for _, window := range Windows(sentence, n) {
				set.add(window)
			}
		}

		return set, nil
	})
	if err != nil {
		r.finish(ctx, report)

		return report, err
	}

	grams := newOrderedSet()

	for _, set := range sets {
		for _, gram := range set.items {
			grams.add(gram)
		}
	}

	report.Processed = len(sentences)

	r.log.Info("Completed all buckets, storing %d distinct %d-grams", len(grams.items), n)

	err = r.persist(ctx, storage.NGramPath(lang, n), strings.Join(grams.items, "\n"))
	if err != nil {
		return report, err
	}

	r.finish(ctx, report)

	return report, nil
}
