// Package text provides the normalization cascade that turns raw source text
// into lowercase, denoised text with one sentence per line.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Regex patterns for the cascade.
const (
	digitRegexPattern      = `\p{Nd}+`
	urlRegexPattern        = `(https?://)?([a-z0-9-]+\.)+[a-z]{2,}(/[a-z0-9%&?=#.-]+)*`
	mathRegexPattern       = `\{[A-Za-z0-9\\ _^+\-*{}]+\}`
	possessiveRegexPattern = `([a-z])'s`
	whitespaceRegexPattern = `[\t\n\v\f\r\x{1c}-\x{1f} \x{85}\p{Z}]+`
	sentenceRegexPattern   = `[!?.]`
	specialRegexPattern    = `[\\!"#$%&'()*+,./:;<=>?@\[\]^_{|}~°→©²§½×ʃ•¾⊙\x{2020}\x{2030}\x{00b3}\x{00b9}‿✯¼√═\x{0333}º⎫⎬⎭\x{2460}-\x{325a}ᚠ™]`
)

// Canonical representatives for the unicode equivalence classes.
const (
	hyphen      = "-"
	singleQuote = "'"
	doubleQuote = `"`
	period      = "."
	comma       = ","
	exclamation = "!"
	question    = "?"
	colon       = ":"
	ellipsis    = "..."
	space       = " "
	newline     = "\n"
)

// unicodeClasses maps each canonical representative to the code points folded
// into it.
var unicodeClasses = []struct {
	target string
	runes  string
}{
	{hyphen, "\u2014\u2013\u2012\u2010\u2043\ufe63\uff0d\u058a\u1806\u00ad\u2212"},
	{singleQuote, "\u2039\u203a\u2019\u276e\u276f\u201a\u2018\u201b\u275b\u275c\u275f\u00b4\u02c8\u02cc\u02bb`\u2032"},
	{doubleQuote, "\u00ab\u201e\u201c\u201f\u201d\u275d\u275e\u2e42\u301d\u301e\u301f\uff02\u00bb\u2033"},
	{period, "\u0589\u3002\u06d4\u2cf9\u0701\u1362\u166e\u1803\u2cfe\ua4ff\ua60e\ua6f3"},
	{comma, "\u060c\u3001\u055d\u07f8\u1363\u1808\ua4fe\ua60d\ua6f5"},
	{exclamation, "\u2048\u2757\u203c\u00a1\u07f9\u1944"},
	{question, "\u2047\u2049\u037e\u00bf\u061f\u055e\u1367\u2cfa\u2cfb\ua60f\ua6f7"},
	{colon, "\u0706\u1365\ua6f4\u02d0"},
	{ellipsis, "\u2026\ufe19\u0eaf"},
}

// Normalizer applies the ordered cleaning cascade. It is safe for concurrent use.
type Normalizer struct {
	lang language.Tag
	// Precompiled regex patterns for performance.
	digitPattern      *regexp.Regexp
	urlPattern        *regexp.Regexp
	mathPattern       *regexp.Regexp
	possessivePattern *regexp.Regexp
	whitespacePattern *regexp.Regexp
	sentencePattern   *regexp.Regexp
	specialPattern    *regexp.Regexp
	unicodeReplacer   *strings.Replacer
}

var defaultNormalizer = NewNormalizer(language.Und)

// NewNormalizer creates a normalizer whose lowercasing follows the rules of
// lang. Tags such as tr, az and lt change the output of I and accented i, so
// corpus cleaning uses Normalize, which is language neutral.
func NewNormalizer(lang language.Tag) *Normalizer {
	var pairs []string

	for _, class := range unicodeClasses {
		for _, r := range class.runes {
			pairs = append(pairs, string(r), class.target)
		}
	}

	return &Normalizer{
		lang:              lang,
		digitPattern:      regexp.MustCompile(digitRegexPattern),
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		mathPattern:       regexp.MustCompile(mathRegexPattern),
		possessivePattern: regexp.MustCompile(possessiveRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		sentencePattern:   regexp.MustCompile(sentenceRegexPattern),
		specialPattern:    regexp.MustCompile(specialRegexPattern),
		unicodeReplacer:   strings.NewReplacer(pairs...),
	}
}

// Normalize runs the cascade with language-neutral lowercasing.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Normalize cleans raw text into lowercase sentences, one per line.
// Each step consumes the previous step's output; the order is significant.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	text := n.lowercase(raw)
	text = n.normalizeUnicode(text)
	text = n.normalizeAbbreviations(text)
	text = n.removeDigits(text)
	text = n.urlPattern.ReplaceAllString(text, space)
	text = n.mathPattern.ReplaceAllString(text, space)
	text = n.possessivePattern.ReplaceAllString(text, "$1")
	text = removeDetachedHyphens(text)
	text = n.whitespacePattern.ReplaceAllString(text, space)
	text = n.sentencePattern.ReplaceAllString(text, newline)
	text = n.specialPattern.ReplaceAllString(text, "")

	return tidyLines(text)
}

// lowercase builds a fresh caser per call; a cases.Caser must not be shared
// between goroutines.
func (n *Normalizer) lowercase(text string) string {
	return cases.Lower(n.lang).String(text)
}

// normalizeUnicode folds visually equivalent code points into their ASCII
// representative. Exotic scripts are left for the special character pass.
func (n *Normalizer) normalizeUnicode(text string) string {
	return n.unicodeReplacer.Replace(text)
}

// normalizeAbbreviations intentionally changes nothing. Multi-word
// abbreviations such as "etc." or "i.e." keep their dots, and sentence
// splitting relies on that.
func (n *Normalizer) normalizeAbbreviations(text string) string {
	return text
}

// removeDigits replaces standalone digit runs with a space. A run touching a
// word character on either side belongs to an alphanumeric token and is kept.
func (n *Normalizer) removeDigits(text string) string {
	matches := n.digitPattern.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}

	var result strings.Builder

	result.Grow(len(text))

	last := 0

	for _, match := range matches {
		start, end := match[0], match[1]

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])

		if (start > 0 && isWordRune(before)) || (end < len(text) && isWordRune(after)) {
			continue
		}

		result.WriteString(text[last:start])
		result.WriteString(space)

		last = end
	}

	result.WriteString(text[last:])

	return result.String()
}

// removeDetachedHyphens replaces every hyphen that is not an infix between two
// word characters with a space.
func removeDetachedHyphens(text string) string {
	if !strings.Contains(text, hyphen) {
		return text
	}

	runes := []rune(text)
	result := make([]rune, len(runes))

	for i, r := range runes {
		result[i] = r

		if r != '-' {
			continue
		}

		leftIsWord := i > 0 && isWordRune(runes[i-1])
		rightIsWord := i+1 < len(runes) && isWordRune(runes[i+1])

		if !leftIsWord || !rightIsWord {
			result[i] = ' '
		}
	}

	return string(result)
}

// tidyLines trims every line, drops lines of a single character and collapses
// the remaining line breaks so no empty line survives.
func tidyLines(text string) string {
	lines := strings.Split(text, newline)
	kept := lines[:0]

	for _, line := range lines {
		line = strings.TrimFunc(line, isSpace)

		if line == "" || utf8.RuneCountInString(line) == 1 {
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, newline)
}

// ExtractWords strips line breaks and splits on single spaces, discarding empty
// tokens. Lines are joined without a separator.
func ExtractWords(text string) []string {
	text = strings.ReplaceAll(text, newline, "")

	var words []string

	for _, word := range strings.Split(text, space) {
		if word != "" {
			words = append(words, word)
		}
	}

	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
