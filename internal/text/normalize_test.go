package text_test

import (
	"strings"
	"testing"

	"github.com/book-expert/corpus-builder/internal/text"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

// normalizerTestCase defines a standard test case for the normalizer.
type normalizerTestCase struct {
	name     string
	input    string
	expected string
}

// runNormalizerTests is a helper function to run table-driven tests against
// the package-level normalizer.
func runNormalizerTests(t *testing.T, tests []normalizerTestCase) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, text.Normalize(testCase.input))
		})
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, text.Normalize(""))
}

func TestNormalize_SentenceSegmentation(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			name:     "period and question mark",
			input:    "Hello world. How are you?",
			expected: "hello world\nhow are you",
		},
		{
			name:     "exclamation",
			input:    "Stop! Go on",
			expected: "stop\ngo on",
		},
		{
			name:     "newlines are whitespace",
			input:    "first line\nsecond line",
			expected: "first line second line",
		},
		{
			name:     "repeated terminators collapse",
			input:    "Wait... what?!",
			expected: "wait\nwhat",
		},
	})
}

func TestNormalize_Digits(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			name:     "standalone digits vanish",
			input:    "I have 12 cats",
			expected: "i have cats",
		},
		{
			name:     "embedded digits are kept",
			input:    "the mp3 player and b52s",
			expected: "the mp3 player and b52s",
		},
		{
			name:     "digits next to non ascii letters are kept",
			input:    "år2020 var bra",
			expected: "år2020 var bra",
		},
	})
}

func TestNormalize_Possessives(t *testing.T) {
	t.Parallel()

	result := text.Normalize("The dog's bone")

	assert.Contains(t, result, "dog bone")
	assert.NotContains(t, result, "'s")
}

func TestNormalize_Hyphens(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			name:     "infix hyphen survives",
			input:    "a well-known fact",
			expected: "a well-known fact",
		},
		{
			name:     "dangling hyphens removed",
			input:    "pre- and -post",
			expected: "pre and post",
		},
		{
			name:     "unicode dashes are folded first",
			input:    "word — word",
			expected: "word word",
		},
		{
			name:     "infix between non ascii letters",
			input:    "svensk-östlig",
			expected: "svensk-östlig",
		},
	})
}

func TestNormalize_NoiseRemoval(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			name:     "urls",
			input:    "visit https://example.com/path now",
			expected: "visit now",
		},
		{
			name:     "bare hosts",
			input:    "see www.example.org today",
			expected: "see today",
		},
		{
			name:     "math expressions",
			input:    "the formula {x^2 + y} holds",
			expected: "the formula holds",
		},
		{
			name:     "special characters vanish without a space",
			input:    "rock&roll (live) #1",
			expected: "rockroll live",
		},
		{
			name:     "curly quotes",
			input:    "“quoted” ‘text’",
			expected: "quoted text",
		},
	})
}

func TestNormalize_UnicodePunctuationSplitsSentences(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			name:     "ideographic full stop",
			input:    "one sentence。 another one",
			expected: "one sentence\nanother one",
		},
		{
			name:     "inverted question mark",
			input:    "¿que pasa? nada",
			expected: "que pasa\nnada",
		},
		{
			name:     "ellipsis character",
			input:    "and then… silence",
			expected: "and then\nsilence",
		},
	})
}

func TestNormalize_SingleCharacterLinesDropped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "the end", text.Normalize("A. The end."))
}

func TestNormalize_AbbreviationsAreNotExpanded(t *testing.T) {
	t.Parallel()

	result := text.Normalize("apples, pears etc. are fruit")

	assert.Equal(t, "apples pears etc\nare fruit", result)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	sentences := []string{
		"Hello world.",
		"The dog's bone was 12 inches long!",
		"A well-known fact: Go is fun.",
		"Stockholm är Sveriges huvudstad.",
	}

	for _, sentence := range sentences {
		once := text.Normalize(sentence)
		assert.Equal(t, once, text.Normalize(once), "sentence %q", sentence)
	}
}

func TestNormalize_OneSentencePerLine(t *testing.T) {
	t.Parallel()

	result := text.Normalize("First one. Second one! Third one?")

	for _, line := range strings.Split(result, "\n") {
		assert.Equal(t, strings.TrimSpace(line), line)
		assert.Greater(t, len([]rune(line)), 1)
		assert.Equal(t, strings.ToLower(line), line)
	}

	assert.Len(t, strings.Split(result, "\n"), 3)
}

func TestNormalizer_LanguageAwareLowercase(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer(language.Turkish)

	assert.Equal(t, "istanbul ılık", normalizer.Normalize("İSTANBUL ILIK"))
}

func TestExtractWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, text.ExtractWords("a  b c "))
	assert.Equal(t, []string{"hello", "worldhow", "are"}, text.ExtractWords("hello world\nhow are"))
	assert.Empty(t, text.ExtractWords(""))
}

func TestNormalize_LanguageNeutralLowercase(t *testing.T) {
	t.Parallel()

	raw := "DI\u015e IRMAK \u0130zmir. \u00cc\u00cd \u0128 word"
	expected := "di\u015f irmak i\u0307zmir\n\u00ec\u00ed \u0129 word"

	assert.Equal(t, expected, text.Normalize(raw))
	assert.Equal(t, expected, text.NewNormalizer(language.Und).Normalize(raw))

	for _, tag := range []language.Tag{language.Turkish, language.Lithuanian} {
		assert.NotEqual(t, expected, text.NewNormalizer(tag).Normalize(raw), tag.String())
	}
}
