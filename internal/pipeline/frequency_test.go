package pipeline_test

import (
	"testing"

	"github.com/book-expert/corpus-builder/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyTable_MergeKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	first := pipeline.NewFrequencyTable()
	first.Add("b")
	first.Add("a")

	second := pipeline.NewFrequencyTable()
	second.Add("c")
	second.Add("a")

	first.Merge(second)

	assert.Equal(t, 3, first.Len())
	assert.Equal(t, 2, first.Count("a"))
	assert.Equal(t, 0, first.Count("z"))
	assert.Equal(t, []pipeline.Frequency{
		{Token: "a", Count: 2},
		{Token: "b", Count: 1},
		{Token: "c", Count: 1},
	}, first.Sorted())
}

func TestFrequencyTable_MarshalJSON(t *testing.T) {
	t.Parallel()

	table := pipeline.NewFrequencyTable()

	data, err := table.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	table.Add(`say "hi"`)
	table.Add("<b>")
	table.Add("<b>")

	data, err = table.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"<b>\": 2,\n  \"say \\\"hi\\\"\": 1\n}", string(data))
	assert.JSONEq(t, `{"<b>": 2, "say \"hi\"": 1}`, string(data))
}

func TestWindows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sentence string
		n        int
		expected []string
	}{
		{name: "short final window", sentence: "a b c d e", n: 2, expected: []string{"a b", "c d", "e"}},
		{name: "exact multiple", sentence: "a b c d", n: 2, expected: []string{"a b", "c d"}},
		{name: "unigrams", sentence: "x y", n: 1, expected: []string{"x", "y"}},
		{name: "shorter than n", sentence: "a b", n: 3, expected: []string{"a b"}},
		{name: "extra whitespace", sentence: " a  b c ", n: 2, expected: []string{"a b", "c"}},
		{name: "empty sentence", sentence: "", n: 3, expected: []string{}},
		{name: "zero window size", sentence: "a b c", n: 0, expected: nil},
		{name: "negative window size", sentence: "a b c", n: -2, expected: nil},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, pipeline.Windows(testCase.sentence, testCase.n))
		})
	}
}

func TestParseTokenKind(t *testing.T) {
	t.Parallel()

	kind, err := pipeline.ParseTokenKind("word")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Words, kind)

	kind, err = pipeline.ParseTokenKind("character")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Characters, kind)
	assert.Equal(t, "character", kind.String())

	_, err = pipeline.ParseTokenKind("syllable")
	require.ErrorIs(t, err, pipeline.ErrUnknownTokenKind)
}
