package sources

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Regex patterns for the structural cleanup of each source.
const (
	headingRegexPattern          = `=+ *[^=]+ *=+`
	gutenbergHeaderPattern       = `.*\*\*\* ?START OF.*`
	gutenbergFooterPattern       = `\*\*\* ?END OF.*`
	gutenbergLicensePattern      = `\*\*\* ?START: FULL LICENSE.*`
	wiktionaryTranslationPattern = `\*[^:]+: ?(\{\{[^}]+\}\}(, ?)?)+`
)

const (
	newline                        = "\n"
	sentenceNewline                = "\n."
	litteraturbankenDelimiterWidth = 80
	wiktionaryMainNamespace        = 0
)

var (
	headingPattern         = regexp.MustCompile(headingRegexPattern)
	gutenbergHeader        = regexp.MustCompile(gutenbergHeaderPattern)
	gutenbergFooter        = regexp.MustCompile(gutenbergFooterPattern)
	gutenbergLicense       = regexp.MustCompile(gutenbergLicensePattern)
	wiktionaryTranslation  = regexp.MustCompile(wiktionaryTranslationPattern)
	litteraturbankenHeader = strings.Repeat("-", litteraturbankenDelimiterWidth)

	// Mojibake left by a Latin-1 round trip of lowercase Swedish vowels.
	accentRepair = strings.NewReplacer(
		"ã¥", "å",
		"ã¤", "ä",
		"ã¶", "ö",
		"ß", "ss",
	)

	// Greek and Coptic, Cyrillic.
	foreignScripts = &unicode.RangeTable{
		R16: []unicode.Range16{
			{Lo: 0x0370, Hi: 0x03ff, Stride: 1},
			{Lo: 0x0400, Hi: 0x04ff, Stride: 1},
		},
		R32:         nil,
		LatinOffset: 0,
	}
)

// PreClean applies the structural cleanup of a source. It runs before the
// generic normalizer.
func PreClean(kind Kind, content string) (string, error) {
	switch kind {
	case Wikipedia:
		return CleanWikipediaArticle(content), nil
	case Gutenberg:
		return CleanGutenbergBook(content)
	case Wiktionary:
		return CleanWiktionaryDump(content)
	case Litteraturbanken:
		return CleanLitteraturbankenBook(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, kind)
	}
}

// CleanWikipediaArticle removes headings and turns every line break into a
// sentence break so list items become sentences.
func CleanWikipediaArticle(body string) string {
	body = headingPattern.ReplaceAllString(body, "")

	return strings.ReplaceAll(body, newline, sentenceNewline)
}

// CleanGutenbergBook keeps the text between the start-of-text marker and the
// end-of-text or license marker, then unwraps the hard line breaks.
func CleanGutenbergBook(body string) (string, error) {
	headers := gutenbergHeader.FindAllStringIndex(body, 2)
	if len(headers) == 0 {
		return "", fmt.Errorf("%w: gutenberg start marker not found", ErrMalformedSource)
	}

	end := len(body)
	if len(headers) > 1 {
		end = headers[1][0]
	}

	body = body[headers[0][1]:end]

	body = cutAtMatch(body, gutenbergFooter)
	body = cutAtMatch(body, gutenbergLicense)

	return strings.TrimSpace(strings.ReplaceAll(body, newline, " ")), nil
}

// CleanLitteraturbankenBook drops the export header, repairs broken accents
// and deletes Greek and Cyrillic characters.
func CleanLitteraturbankenBook(book string) (string, error) {
	parts := strings.SplitN(book, litteraturbankenHeader, 3)
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: litteraturbanken header delimiter not found", ErrMalformedSource)
	}

	book = accentRepair.Replace(parts[1])

	cleaned, _, err := transform.String(runes.Remove(runes.In(foreignScripts)), book)
	if err != nil {
		return "", fmt.Errorf("failed to remove foreign scripts: %w", err)
	}

	return cleaned, nil
}

// wiktionaryPage is the subset of a MediaWiki export page the cleaner reads.
type wiktionaryPage struct {
	Title     string    `xml:"title"`
	Namespace int       `xml:"ns"`
	Redirect  *struct{} `xml:"redirect"`
	Text      string    `xml:"revision>text"`
}

// CleanWiktionaryDump extracts the main-namespace articles of a MediaWiki
// XML export, strips headings and translation lists and joins the articles.
// Line breaks become sentence breaks as for Wikipedia.
func CleanWiktionaryDump(dump string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(dump))

	var articles []string

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("%w: wiktionary dump: %w", ErrMalformedSource, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}

		var page wiktionaryPage

		err = decoder.DecodeElement(&page, &start)
		if err != nil {
			return "", fmt.Errorf("%w: wiktionary page: %w", ErrMalformedSource, err)
		}

		if page.Namespace != wiktionaryMainNamespace || page.Redirect != nil ||
			strings.Contains(page.Title, ":") {
			continue
		}

		articles = append(articles, cleanWiktionaryArticle(page.Text))
	}

	return strings.ReplaceAll(strings.Join(articles, newline), newline, sentenceNewline), nil
}

func cleanWiktionaryArticle(article string) string {
	article = headingPattern.ReplaceAllString(article, "")

	return wiktionaryTranslation.ReplaceAllString(article, "")
}

// cutAtMatch truncates body at the first match of pattern.
func cutAtMatch(body string, pattern *regexp.Regexp) string {
	loc := pattern.FindStringIndex(body)
	if loc == nil {
		return body
	}

	return body[:loc[0]]
}
