// main package for the corpus builder
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/book-expert/corpus-builder/internal/config"
	"github.com/book-expert/corpus-builder/internal/notify"
	"github.com/book-expert/corpus-builder/internal/objectstore"
	"github.com/book-expert/corpus-builder/internal/pipeline"
	"github.com/book-expert/corpus-builder/internal/sources"
	"github.com/book-expert/corpus-builder/internal/storage"
	"github.com/book-expert/corpus-builder/internal/worker"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const commandServe = "serve"

// Set by the build through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Flag names.
const (
	flagLanguage = "language"
	flagCache    = "cache"
	flagConfig   = "config"
	flagNGram    = "n"
	flagTokens   = "tokens"
	flagWorkers  = "workers"
	flagForce    = "force"
)

// Flag descriptions.
const (
	flagLanguageDesc = "Two-letter language code (required except for serve)"
	flagCacheDesc    = "Root directory of the artifact cache"
	flagConfigDesc   = "Path to a TOML configuration file (defaults to the configurator search)"
	flagNGramDesc    = "Window size of the ngram stage"
	flagTokensDesc   = "What the count stage counts: word or character"
	flagWorkersDesc  = "Number of concurrent workers"
	flagForceDesc    = "Reprocess items whose output already exists"
)

// File names.
const (
	bootstrapLogFile = "corpus-bootstrap.log"
	logFile          = "corpus.log"
)

const usage = "usage: corpus <download|clean|compile|count|ngram|all|serve> -language xx [flags]"

var (
	errMissingCommand  = errors.New("a command is required")
	errUnknownCommand  = errors.New("unknown command")
	errMissingLanguage = errors.New("-language is required")
	errNATSRequired    = errors.New("serve requires nats.url to be configured")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	command  string
	language string
	cache    string
	config   string
	nGram    int
	tokens   string
	workers  int
	force    bool
	// set records which flags were given explicitly.
	set map[string]bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corpus exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return err
	}

	defer closeLogger(bootstrapLog)

	cfg, err := loadConfig(flags, ".", bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer closeLogger(finalLog)

	finalLog.System("corpus %s (commit %s, built %s)", version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, natsConnection, err := buildRunner(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize pipeline: %v", err)

		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	if flags.command == commandServe {
		return serve(ctx, cfg, runner, natsConnection, finalLog)
	}

	return execute(ctx, cfg, runner, flags, finalLog, stdout)
}

// parseFlags accepts the command before or after the flags.
func parseFlags(args []string) (appFlags, error) {
	flags := appFlags{
		command:  "",
		language: "",
		cache:    "",
		config:   "",
		nGram:    0,
		tokens:   pipeline.Words.String(),
		workers:  0,
		force:    false,
		set:      make(map[string]bool),
	}

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		flags.command = args[0]
		args = args[1:]
	}

	flagSet := flag.NewFlagSet("corpus", flag.ContinueOnError)
	flagSet.StringVar(&flags.language, flagLanguage, "", flagLanguageDesc)
	flagSet.StringVar(&flags.cache, flagCache, "", flagCacheDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.IntVar(&flags.nGram, flagNGram, 0, flagNGramDesc)
	flagSet.StringVar(&flags.tokens, flagTokens, flags.tokens, flagTokensDesc)
	flagSet.IntVar(&flags.workers, flagWorkers, 0, flagWorkersDesc)
	flagSet.BoolVar(&flags.force, flagForce, false, flagForceDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("%s: %w", usage, err)
	}

	if flags.command == "" {
		flags.command = flagSet.Arg(0)
	}

	flagSet.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })

	return flags, validateFlags(flags)
}

func validateFlags(flags appFlags) error {
	switch flags.command {
	case "":
		return fmt.Errorf("%w\n%s", errMissingCommand, usage)
	case pipeline.StageDownload, pipeline.StageClean, pipeline.StageCompile,
		pipeline.StageCount, pipeline.StageNGram, pipeline.StageAll:
	case commandServe:
		return nil
	default:
		return fmt.Errorf("%w: '%s'\n%s", errUnknownCommand, flags.command, usage)
	}

	if flags.language == "" {
		return errMissingLanguage
	}

	_, err := config.ParseLanguage(flags.language)
	if err != nil {
		return err
	}

	_, err = pipeline.ParseTokenKind(flags.tokens)

	return err
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func closeLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

// loadConfig reads the explicit file when given, otherwise the project file
// found from projectDir upward. Only a missing project file falls back to the
// defaults. Flags override both.
func loadConfig(flags appFlags, projectDir string, log *logger.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flags.config != "" {
		cfg, err = config.LoadFile(flags.config)
	} else {
		cfg, err = config.LoadProject(projectDir, log)
		if errors.Is(err, config.ErrNoProjectConfig) {
			log.Info("No project configuration found, using defaults")

			cfg, err = config.Default(), nil
		}
	}

	if err != nil {
		return nil, err
	}

	applyOverrides(cfg, flags)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Configuration loaded: cache=%s workers=%d", cfg.Paths.CacheDir, cfg.Pipeline.Workers)

	return cfg, nil
}

func applyOverrides(cfg *config.Config, flags appFlags) {
	if flags.set[flagCache] {
		cfg.Paths.CacheDir = flags.cache
	}

	if flags.set[flagNGram] {
		cfg.Pipeline.NGramSize = flags.nGram
	}

	if flags.set[flagWorkers] {
		cfg.Pipeline.Workers = flags.workers
	}

	if flags.set[flagForce] {
		cfg.Pipeline.Force = flags.force
	}
}

// buildRunner wires storage, fetchers and the optional NATS mirror and
// notifier. The returned connection is nil when NATS is not configured.
func buildRunner(cfg *config.Config, log *logger.Logger) (*pipeline.Runner, *nats.Conn, error) {
	store, err := storage.New(cfg.Paths.CacheDir)
	if err != nil {
		return nil, nil, err
	}

	kinds := make([]sources.Kind, 0, len(cfg.Pipeline.Sources))

	for _, name := range cfg.Pipeline.Sources {
		kind, parseErr := sources.ParseKind(name)
		if parseErr != nil {
			return nil, nil, parseErr
		}

		kinds = append(kinds, kind)
	}

	runner, err := pipeline.NewRunner(store, sources.NewClient(cfg.HTTP), log, pipeline.Options{
		Workers:    cfg.Pipeline.Workers,
		MaxBuckets: cfg.Pipeline.MaxBuckets,
		Sources:    kinds,
		Force:      cfg.Pipeline.Force,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.NATS.URL == "" {
		return runner, nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	mirror, err := objectstore.New(jetstreamContext, cfg.NATS.ArtifactBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	notifier, err := notify.NewNatsNotifier(natsConnection, cfg.NATS.StageCompletedSubject)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	log.System("NATS enabled: bucket=%s subject=%s workflow=%s",
		cfg.NATS.ArtifactBucket, cfg.NATS.StageCompletedSubject, notifier.WorkflowID())

	return runner.WithMirror(mirror).WithNotifier(notifier), natsConnection, nil
}

func execute(
	ctx context.Context,
	cfg *config.Config,
	runner *pipeline.Runner,
	flags appFlags,
	log *logger.Logger,
	stdout io.Writer,
) error {
	tokens, err := pipeline.ParseTokenKind(flags.tokens)
	if err != nil {
		return err
	}

	log.System("Running %s for language %s", flags.command, flags.language)

	reports, err := runner.Run(ctx, pipeline.Request{
		Stage:     flags.command,
		Language:  flags.language,
		NGramSize: cfg.Pipeline.NGramSize,
		Tokens:    tokens,
	})

	for _, report := range reports {
		fmt.Fprintf(stdout, "%s %s: processed=%d skipped=%d failed=%d\n",
			report.Stage, report.Language, report.Processed, report.Skipped, report.Failed())
	}

	if err != nil {
		log.Error("Command %s failed: %v", flags.command, err)

		return err
	}

	return nil
}

func serve(
	ctx context.Context,
	cfg *config.Config,
	runner *pipeline.Runner,
	natsConnection *nats.Conn,
	log *logger.Logger,
) error {
	if natsConnection == nil {
		return errNATSRequired
	}

	stageWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.StageRequestSubject, runner, cfg.Pipeline.NGramSize, log,
	)
	if err != nil {
		return err
	}

	log.System("corpus worker listening on %s", cfg.NATS.StageRequestSubject)

	return stageWorker.Run(ctx)
}
