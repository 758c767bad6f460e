// Package sources describes the text sources a corpus is built from, their
// structural pre-cleaners and the HTTP fetchers that download them.
package sources

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags one of the supported text sources.
type Kind int

// Supported sources.
const (
	Wikipedia Kind = iota
	Gutenberg
	Wiktionary
	Litteraturbanken
)

// Static errors.
var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrFetch           = errors.New("fetch failed")
	ErrMalformedSource = errors.New("malformed source")
)

const (
	textExtension      = ".txt"
	wiktionaryDumpFile = "dump.xml"
)

var kindNames = map[Kind]string{
	Wikipedia:        "wikipedia",
	Gutenberg:        "gutenberg",
	Wiktionary:       "wiktionary",
	Litteraturbanken: "litteraturbanken",
}

// Kinds returns every supported source in download order.
func Kinds() []Kind {
	return []Kind{Wikipedia, Gutenberg, Wiktionary, Litteraturbanken}
}

// String returns the directory name of the source.
func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return name
}

// ParseKind maps a directory name back to its source.
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("%w: '%s'", ErrUnknownSource, name)
}

// Item is one unit of download work. The set of implementations is closed.
type Item interface {
	// Kind returns the source the item belongs to.
	Kind() Kind
	// Filename returns the artifact name, unique within the source.
	Filename() string

	item()
}

// WikipediaArticle is a single article addressed by its title.
type WikipediaArticle struct {
	Title string
}

// GutenbergBook is a Project Gutenberg ebook.
type GutenbergBook struct {
	ID    string
	Title string
}

// WiktionaryDump is the complete pages-articles dump of a language edition.
type WiktionaryDump struct{}

// LitteraturbankenBook is an etext from the Swedish literature bank.
type LitteraturbankenBook struct {
	Name   string
	WorkID string
}

// Kind implements Item.
func (WikipediaArticle) Kind() Kind { return Wikipedia }

// Kind implements Item.
func (GutenbergBook) Kind() Kind { return Gutenberg }

// Kind implements Item.
func (WiktionaryDump) Kind() Kind { return Wiktionary }

// Kind implements Item.
func (LitteraturbankenBook) Kind() Kind { return Litteraturbanken }

// Filename replaces path separators in the title.
func (a WikipediaArticle) Filename() string {
	return strings.ReplaceAll(a.Title, "/", "_") + textExtension
}

// Filename is derived from the ebook id.
func (b GutenbergBook) Filename() string {
	return strings.ReplaceAll(b.ID, "/", "_") + textExtension
}

// Filename is fixed; there is one dump per language.
func (WiktionaryDump) Filename() string {
	return wiktionaryDumpFile
}

// Filename is the name Litteraturbanken exports the etext under.
func (b LitteraturbankenBook) Filename() string {
	return strings.ReplaceAll(b.Name, "/", "_")
}

func (WikipediaArticle) item()     {}
func (GutenbergBook) item()        {}
func (WiktionaryDump) item()       {}
func (LitteraturbankenBook) item() {}

// Downloaded identifies a stored artifact of one source, the work item of the
// clean and compile stages.
type Downloaded struct {
	Source Kind
	Name   string
}

// Describe returns the "source=… filename=…" fragment used in log lines.
func (d Downloaded) Describe() string {
	return fmt.Sprintf("source=%s filename=%s", d.Source, d.Name)
}

// Describe returns the "source=… filename=…" fragment used in log lines.
func Describe(item Item) string {
	return fmt.Sprintf("source=%s filename=%s", item.Kind(), item.Filename())
}
