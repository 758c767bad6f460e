package sources

import (
	"compress/bzip2"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/book-expert/corpus-builder/internal/config"
)

// HTTP headers.
const (
	headerUserAgent   = "User-Agent"
	headerContentType = "Content-Type"
	contentTypeForm   = "application/x-www-form-urlencoded"
)

// API paths.
const (
	pageviewsPathFmt        = "%s/%s.wikipedia.org/all-access/%d/%02d/all-days"
	gutenbergCatalogPathFmt = "%s/browse/languages/%s"
	gutenbergBookPathFmt    = "%s/ebooks/%s.txt.utf-8"
	wiktionaryDumpPathFmt   = "%s/%swiktionary/latest/%swiktionary-latest-pages-articles.xml.bz2"
	litteraturbankenList    = "/list_all/etext"
	litteraturbankenFetch   = "/download"
	litteraturbankenFileFmt = "%s-etext-txt"
	litteraturbankenNameFmt = "LB_%s_%s_%s_etext.txt"
	litteraturbankenTxt     = "txt"
	litteraturbankenLang    = "sv"
	gutenbergLinkSelector   = `a[href^="/ebooks/"]`
)

// Error messages.
const (
	errFmtNonOKStatus   = "%w: %s returned non-OK status: %s"
	errFmtRequestFailed = "%w: request to %s failed: %w"
)

var gutenbergLinkPattern = regexp.MustCompile(`^/ebooks/([0-9]+)$`)

// Books Litteraturbanken reports as Swedish although they are not.
var litteraturbankenBlacklist = []string{
	"LB_StrindbergA_LegenderSvenskText_2001_etext.txt",
	"LB_StrindbergA_EnDåresFörsvarstalSv_1999_etext.txt",
	"LB_BrennerSE_PoetiskeDikter1_1713_etext.txt",
}

// Client fetches listings and raw texts from the upstream sources.
type Client struct {
	httpClient *http.Client
	endpoints  config.HTTPConfig
	now        func() time.Time
}

// NewClient creates a client for the configured endpoints. The timeout applies
// to every request.
func NewClient(cfg config.HTTPConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, time.Now)
}

// NewClientWithHTTP creates a client with an injected HTTP client and clock.
func NewClientWithHTTP(cfg config.HTTPConfig, httpClient *http.Client, now func() time.Time) *Client {
	return &Client{
		httpClient: httpClient,
		endpoints:  cfg,
		now:        now,
	}
}

// Available reports whether a source offers texts in the language.
func Available(kind Kind, lang string) bool {
	if kind == Litteraturbanken {
		return lang == litteraturbankenLang
	}

	return true
}

// ListItems enumerates the download work of one source for a language.
func (c *Client) ListItems(ctx context.Context, lang string, kind Kind) ([]Item, error) {
	if !Available(kind, lang) {
		return nil, nil
	}

	switch kind {
	case Wikipedia:
		return listAs(c.ListTopArticles(ctx, lang))
	case Gutenberg:
		return listAs(c.ListBooks(ctx, lang))
	case Wiktionary:
		return []Item{WiktionaryDump{}}, nil
	case Litteraturbanken:
		return listAs(c.ListLitteraturbankenBooks(ctx))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, kind)
	}
}

// Fetch downloads the raw text of one item.
func (c *Client) Fetch(ctx context.Context, lang string, item Item) (string, error) {
	switch typed := item.(type) {
	case WikipediaArticle:
		return c.FetchArticle(ctx, lang, typed.Title)
	case GutenbergBook:
		return c.FetchBook(ctx, typed.ID)
	case WiktionaryDump:
		return c.FetchDump(ctx, lang)
	case LitteraturbankenBook:
		return c.FetchLitteraturbankenBook(ctx, typed.WorkID)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownSource, item)
	}
}

type pageviewsResponse struct {
	Items []struct {
		Articles []struct {
			Article string `json:"article"`
		} `json:"articles"`
	} `json:"items"`
}

// ListTopArticles returns the most viewed articles of the previous month,
// excluding titles in special namespaces.
func (c *Client) ListTopArticles(ctx context.Context, lang string) ([]WikipediaArticle, error) {
	now := c.now()
	previous := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	endpoint := fmt.Sprintf(pageviewsPathFmt,
		strings.TrimSuffix(c.endpoints.PageviewsURL, "/"), lang, previous.Year(), int(previous.Month()))

	var response pageviewsResponse

	err := c.getJSON(ctx, endpoint, &response)
	if err != nil {
		return nil, err
	}

	if len(response.Items) == 0 {
		return nil, nil
	}

	var articles []WikipediaArticle

	for _, article := range response.Items[0].Articles {
		if strings.Contains(article.Article, ":") {
			continue
		}

		articles = append(articles, WikipediaArticle{Title: article.Article})
	}

	return articles, nil
}

type extractsResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract *string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// FetchArticle returns the plain-text extract of an article.
func (c *Client) FetchArticle(ctx context.Context, lang, title string) (string, error) {
	query := url.Values{}
	query.Set("action", "query")
	query.Set("prop", "extracts")
	query.Set("explaintext", "1")
	query.Set("format", "json")
	query.Set("titles", title)

	endpoint := c.wikipediaURL(lang) + "?" + query.Encode()

	var response extractsResponse

	err := c.getJSON(ctx, endpoint, &response)
	if err != nil {
		return "", err
	}

	for _, page := range response.Query.Pages {
		if page.Extract != nil {
			return *page.Extract, nil
		}
	}

	return "", fmt.Errorf("%w: no extract for article '%s'", ErrFetch, title)
}

// ListBooks parses the Gutenberg catalog page of a language.
func (c *Client) ListBooks(ctx context.Context, lang string) ([]GutenbergBook, error) {
	endpoint := fmt.Sprintf(gutenbergCatalogPathFmt, strings.TrimSuffix(c.endpoints.GutenbergURL, "/"), lang)

	body, err := c.open(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse gutenberg catalog: %w", ErrFetch, err)
	}

	var (
		books []GutenbergBook
		seen  = make(map[string]struct{})
	)

	doc.Find(gutenbergLinkSelector).Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")

		match := gutenbergLinkPattern.FindStringSubmatch(href)
		if match == nil {
			return
		}

		if _, duplicate := seen[match[1]]; duplicate {
			return
		}

		seen[match[1]] = struct{}{}
		books = append(books, GutenbergBook{ID: match[1], Title: strings.TrimSpace(selection.Text())})
	})

	return books, nil
}

// FetchBook returns the UTF-8 plain text of an ebook.
func (c *Client) FetchBook(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf(gutenbergBookPathFmt, strings.TrimSuffix(c.endpoints.GutenbergURL, "/"), id)

	return c.getString(ctx, endpoint)
}

// FetchDump downloads and decompresses the latest pages-articles dump.
func (c *Client) FetchDump(ctx context.Context, lang string) (string, error) {
	endpoint := fmt.Sprintf(wiktionaryDumpPathFmt,
		strings.TrimSuffix(c.endpoints.WiktionaryDumpsURL, "/"), lang, lang)

	body, err := c.open(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(bzip2.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to decompress wiktionary dump: %w", ErrFetch, err)
	}

	return string(data), nil
}

type litteraturbankenExport struct {
	Type string `json:"type"`
}

type litteraturbankenListing struct {
	Data []struct {
		WorkID     string `json:"lbworkid"`
		TitleID    string `json:"titleid"`
		MainAuthor struct {
			AuthorID string `json:"authorid"`
		} `json:"main_author"`
		SortDateImprint struct {
			Plain string `json:"plain"`
		} `json:"sort_date_imprint"`
		Export []litteraturbankenExport `json:"export"`
	} `json:"data"`
}

// ListLitteraturbankenBooks returns the etexts that have a plain-text export.
func (c *Client) ListLitteraturbankenBooks(ctx context.Context) ([]LitteraturbankenBook, error) {
	query := url.Values{}
	query.Set("exclude", "text,parts,sourcedesc,pages,errata")
	query.Set("filter_and", `{"sort_date_imprint.date:range":"1248,2020","export>type":["xml","txt","workdb"]}`)
	query.Set("filter_or", "{}")
	query.Set("include", "lbworkid,titleid,main_author.authorid,sort_date_imprint.plain,export")
	query.Set("sort_field", "popularity|desc")
	query.Set("from", "0")
	query.Set("to", "1000")

	endpoint := strings.TrimSuffix(c.endpoints.LitteraturbankenURL, "/") + litteraturbankenList + "?" + query.Encode()

	var listing litteraturbankenListing

	err := c.getJSON(ctx, endpoint, &listing)
	if err != nil {
		return nil, err
	}

	var books []LitteraturbankenBook

	for _, entry := range listing.Data {
		hasText := slices.ContainsFunc(entry.Export, func(export litteraturbankenExport) bool {
			return export.Type == litteraturbankenTxt
		})
		if !hasText {
			continue
		}

		name := fmt.Sprintf(litteraturbankenNameFmt,
			entry.MainAuthor.AuthorID, entry.TitleID, entry.SortDateImprint.Plain)
		if slices.Contains(litteraturbankenBlacklist, name) {
			continue
		}

		books = append(books, LitteraturbankenBook{Name: name, WorkID: entry.WorkID})
	}

	return books, nil
}

// FetchLitteraturbankenBook downloads the plain-text export of one work.
func (c *Client) FetchLitteraturbankenBook(ctx context.Context, workID string) (string, error) {
	form := url.Values{}
	form.Add("files", fmt.Sprintf(litteraturbankenFileFmt, workID))

	endpoint := strings.TrimSuffix(c.endpoints.LitteraturbankenURL, "/") + litteraturbankenFetch

	body, err := c.open(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %w", ErrFetch, endpoint, err)
	}

	return string(data), nil
}

func (c *Client) wikipediaURL(lang string) string {
	if strings.Contains(c.endpoints.WikipediaURL, "%s") {
		return fmt.Sprintf(c.endpoints.WikipediaURL, lang)
	}

	return c.endpoints.WikipediaURL
}

// open sends a request and returns the body of a 200 response. Every failure
// is wrapped in ErrFetch.
func (c *Client) open(ctx context.Context, method, endpoint string, payload io.Reader) (io.ReadCloser, error) {
	if payload == nil {
		payload = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrFetch, err)
	}

	req.Header.Set(headerUserAgent, c.endpoints.UserAgent)

	if method == http.MethodPost {
		req.Header.Set(headerContentType, contentTypeForm)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtRequestFailed, ErrFetch, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf(errFmtNonOKStatus, ErrFetch, endpoint, resp.Status)
	}

	return resp.Body, nil
}

func (c *Client) getString(ctx context.Context, endpoint string) (string, error) {
	body, err := c.open(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %w", ErrFetch, endpoint, err)
	}

	return string(data), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	body, err := c.open(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	err = json.NewDecoder(body).Decode(target)
	if err != nil {
		return fmt.Errorf("%w: failed to decode response from %s: %w", ErrFetch, endpoint, err)
	}

	return nil
}

func listAs[T Item](typed []T, err error) ([]Item, error) {
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(typed))
	for _, item := range typed {
		items = append(items, item)
	}

	return items, nil
}
