package storage_test

import (
	"testing"

	"github.com/book-expert/corpus-builder/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "download artifact",
			got:      storage.ArtifactPath(storage.StageDownloads, "sv", "wikipedia", "Stockholm.txt"),
			expected: "downloads/sv/wikipedia/Stockholm.txt",
		},
		{
			name:     "clean directory",
			got:      storage.SourceDir(storage.StageClean, "en", "gutenberg"),
			expected: "clean/en/gutenberg",
		},
		{
			name:     "compiled corpus",
			got:      storage.CompiledCorpusPath("en"),
			expected: "compiled/en/compiled.txt",
		},
		{
			name:     "word frequencies",
			got:      storage.FrequenciesPath("en", "word"),
			expected: "compiled/en/word-frequencies.json",
		},
		{
			name:     "character frequencies",
			got:      storage.FrequenciesPath("sv", "character"),
			expected: "compiled/sv/character-frequencies.json",
		},
		{
			name:     "ngrams",
			got:      storage.NGramPath("sv", 3),
			expected: "compiled/sv/3-grams.txt",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, testCase.got)
		})
	}
}
