// Package config provides the configuration structure for the corpus builder.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// Defaults applied when a key is absent from the configuration.
const (
	DefaultCacheDir       = "./frequency-data"
	DefaultWorkers        = 5
	DefaultMaxBuckets     = 10
	DefaultNGramSize      = 3
	DefaultTimeoutSeconds = 60
	DefaultUserAgent      = "corpus-builder/1.0 (https://github.com/book-expert/corpus-builder)"
)

// Default upstream endpoints.
const (
	DefaultWikipediaURL        = "https://%s.wikipedia.org/w/api.php"
	DefaultPageviewsURL        = "https://wikimedia.org/api/rest_v1/metrics/pageviews/top"
	DefaultGutenbergURL        = "https://www.gutenberg.org"
	DefaultWiktionaryDumpsURL  = "https://dumps.wikimedia.org"
	DefaultLitteraturbankenURL = "https://litteraturbanken.se/api"
)

var (
	// ErrInvalidLanguage indicates that the language is not a two-letter code.
	ErrInvalidLanguage = errors.New("language must be a two-letter code")
	// ErrInvalidWorkers indicates a non-positive worker count.
	ErrInvalidWorkers = errors.New("workers must be positive")
	// ErrInvalidMaxBuckets indicates a non-positive bucket ceiling.
	ErrInvalidMaxBuckets = errors.New("max_buckets must be positive")
	// ErrCacheDirEmpty indicates that no cache directory was configured.
	ErrCacheDirEmpty = errors.New("cache directory cannot be empty")
	// ErrNoProjectConfig indicates that no project file exists above the start directory.
	ErrNoProjectConfig = errors.New("no " + ProjectFileName + " found")
)

// ProjectFileName is the file the configurator discovers.
const ProjectFileName = "project.toml"

var languagePattern = regexp.MustCompile(`^[a-z]{2}$`)

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	CacheDir    string `toml:"cache_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// PipelineConfig controls stage concurrency and source selection.
type PipelineConfig struct {
	Workers    int      `toml:"workers"`
	MaxBuckets int      `toml:"max_buckets"`
	NGramSize  int      `toml:"ngram_size"`
	Sources    []string `toml:"sources"`
	Force      bool     `toml:"force"`
}

// HTTPConfig holds the upstream endpoints used by the download stage.
type HTTPConfig struct {
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	UserAgent           string `toml:"user_agent"`
	WikipediaURL        string `toml:"wikipedia_url"`
	PageviewsURL        string `toml:"pageviews_url"`
	GutenbergURL        string `toml:"gutenberg_url"`
	WiktionaryDumpsURL  string `toml:"wiktionary_dumps_url"`
	LitteraturbankenURL string `toml:"litteraturbanken_url"`
}

// NATSConfig holds the configuration for the optional NATS integration.
// An empty URL disables it.
type NATSConfig struct {
	URL                   string `toml:"url"`
	ArtifactBucket        string `toml:"artifact_bucket"`
	StageCompletedSubject string `toml:"stage_completed_subject"`
	StageRequestSubject   string `toml:"stage_request_subject"`
}

// Config is the root configuration structure.
type Config struct {
	Paths    PathsConfig    `toml:"paths"`
	Pipeline PipelineConfig `toml:"pipeline"`
	HTTP     HTTPConfig     `toml:"http"`
	NATS     NATSConfig     `toml:"nats"`
}

// Default returns a configuration with every key set to its default.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			CacheDir:    DefaultCacheDir,
			BaseLogsDir: os.TempDir(),
		},
		Pipeline: PipelineConfig{
			Workers:    DefaultWorkers,
			MaxBuckets: DefaultMaxBuckets,
			NGramSize:  DefaultNGramSize,
			Sources:    []string{"wikipedia", "gutenberg", "wiktionary", "litteraturbanken"},
			Force:      false,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:      DefaultTimeoutSeconds,
			UserAgent:           DefaultUserAgent,
			WikipediaURL:        DefaultWikipediaURL,
			PageviewsURL:        DefaultPageviewsURL,
			GutenbergURL:        DefaultGutenbergURL,
			WiktionaryDumpsURL:  DefaultWiktionaryDumpsURL,
			LitteraturbankenURL: DefaultLitteraturbankenURL,
		},
		NATS: NATSConfig{
			URL:                   "",
			ArtifactBucket:        "CORPUS_ARTIFACTS",
			StageCompletedSubject: "corpus.stage.completed",
			StageRequestSubject:   "corpus.stage.requested",
		},
	}
}

// Load loads the configuration through the central configurator and fills in
// defaults for keys it leaves empty.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadProject loads the project configuration through the configurator when a
// project file exists in startDir or one of its parents. Without one it
// returns ErrNoProjectConfig; a project file that fails to load is an error.
func LoadProject(startDir string, log *logger.Logger) (*Config, error) {
	path, found := FindProjectFile(startDir)
	if !found {
		return nil, fmt.Errorf("%w above %s", ErrNoProjectConfig, startDir)
	}

	_, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Load(log)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return cfg, nil
}

// FindProjectFile walks from startDir up to the filesystem root looking for
// ProjectFileName.
func FindProjectFile(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	for {
		candidate := filepath.Join(dir, ProjectFileName)

		info, statErr := os.Stat(candidate)
		if statErr == nil && info.Mode().IsRegular() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}

		dir = parent
	}
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the values the pipeline relies on.
func (c *Config) Validate() error {
	if c.Paths.CacheDir == "" {
		return ErrCacheDirEmpty
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Pipeline.Workers)
	}

	if c.Pipeline.MaxBuckets <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxBuckets, c.Pipeline.MaxBuckets)
	}

	return nil
}

// ParseLanguage validates a two-letter language code and returns its tag.
func ParseLanguage(code string) (language.Tag, error) {
	if !languagePattern.MatchString(code) {
		return language.Und, fmt.Errorf("%w: '%s'", ErrInvalidLanguage, code)
	}

	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, fmt.Errorf("%w: '%s': %w", ErrInvalidLanguage, code, err)
	}

	return tag, nil
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Paths.CacheDir == "" {
		c.Paths.CacheDir = def.Paths.CacheDir
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = def.Paths.BaseLogsDir
	}

	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = def.Pipeline.Workers
	}

	if c.Pipeline.MaxBuckets == 0 {
		c.Pipeline.MaxBuckets = def.Pipeline.MaxBuckets
	}

	if c.Pipeline.NGramSize == 0 {
		c.Pipeline.NGramSize = def.Pipeline.NGramSize
	}

	if len(c.Pipeline.Sources) == 0 {
		c.Pipeline.Sources = def.Pipeline.Sources
	}

	c.HTTP.applyDefaults(def.HTTP)

	if c.NATS.ArtifactBucket == "" {
		c.NATS.ArtifactBucket = def.NATS.ArtifactBucket
	}

	if c.NATS.StageCompletedSubject == "" {
		c.NATS.StageCompletedSubject = def.NATS.StageCompletedSubject
	}

	if c.NATS.StageRequestSubject == "" {
		c.NATS.StageRequestSubject = def.NATS.StageRequestSubject
	}
}

func (h *HTTPConfig) applyDefaults(def HTTPConfig) {
	if h.TimeoutSeconds == 0 {
		h.TimeoutSeconds = def.TimeoutSeconds
	}

	if h.UserAgent == "" {
		h.UserAgent = def.UserAgent
	}

	if h.WikipediaURL == "" {
		h.WikipediaURL = def.WikipediaURL
	}

	if h.PageviewsURL == "" {
		h.PageviewsURL = def.PageviewsURL
	}

	if h.GutenbergURL == "" {
		h.GutenbergURL = def.GutenbergURL
	}

	if h.WiktionaryDumpsURL == "" {
		h.WiktionaryDumpsURL = def.WiktionaryDumpsURL
	}

	if h.LitteraturbankenURL == "" {
		h.LitteraturbankenURL = def.LitteraturbankenURL
	}
}
