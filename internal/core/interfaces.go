// Package core defines the collaborator interfaces shared by the pipeline stages.
package core

import "context"

// ArtifactStore addresses stage artifacts by slash-separated paths relative to
// the cache root, e.g. "clean/sv/wikipedia/Stockholm.txt".
type ArtifactStore interface {
	// Exists reports whether an artifact is present. Presence alone means
	// "already processed".
	Exists(path string) bool
	// Load returns the full artifact content.
	Load(path string) (string, error)
	// Store creates missing parent directories and writes the full content.
	Store(path, content string) error
	// List returns the sorted entry names directly under a directory.
	List(dir string) ([]string, error)
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// StageSummary describes the outcome of one stage invocation.
type StageSummary struct {
	Stage     string `json:"stage"`
	Language  string `json:"language"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Notifier is told about every completed stage.
type Notifier interface {
	StageCompleted(ctx context.Context, summary StageSummary) error
}
