//go:build stave

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
	"github.com/yaklabco/stave/pkg/target"
)

// Default target when running `stave` with no arguments.
var Default = All

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
}

// All runs lint and test, then builds the binary.
func All() error {
	st.Deps(Init)
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Init ensures the module dependencies are up to date.
func Init() error {
	return sh.Run("go", "mod", "tidy")
}

// Build compiles bin/corpus with version information.
func Build() error {
	st.Deps(Init)

	rebuild, err := target.Glob("bin/corpus", "**/*.go", "go.mod", "go.sum")
	if err != nil {
		return fmt.Errorf("checking rebuild: %w", err)
	}
	if !rebuild {
		if st.Verbose() {
			fmt.Println("corpus is up to date")
		}
		return nil
	}

	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", "bin/corpus", "./cmd/corpus")
}

func buildLdflags() string {
	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	commit, _ := sh.Output("git", "rev-parse", "--short", "HEAD")

	return fmt.Sprintf(
		"-X main.version=%s -X main.commit=%s -X main.date=%s",
		strings.TrimSpace(version),
		strings.TrimSpace(commit),
		time.Now().Format(time.RFC3339),
	)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// TestShort runs tests in short mode.
func TestShort() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-short", "-race", "./...")
}

// Lint runs golangci-lint on the codebase.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm("bin/")
}

// Pipeline namespace for running stages against a local cache.
type Pipeline st.Namespace

// All runs every stage for $CORPUS_LANGUAGE (default sv).
func (Pipeline) All() error {
	st.Deps(Build)

	lang := os.Getenv("CORPUS_LANGUAGE")
	if lang == "" {
		lang = "sv"
	}

	return sh.RunV("./bin/corpus", "all", "-language", lang)
}
