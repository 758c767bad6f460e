package storage

import (
	"path"
	"strconv"
)

// Stage names the top-level directory a pipeline stage writes to.
type Stage string

// Artifact stages.
const (
	StageDownloads Stage = "downloads"
	StageClean     Stage = "clean"
	StageCompiled  Stage = "compiled"
)

// Compiled artifact names.
const (
	compiledCorpusFile = "compiled.txt"
	frequenciesSuffix  = "-frequencies.json"
	ngramsSuffix       = "-grams.txt"
)

// SourceDir returns "{stage}/{lang}/{source}".
func SourceDir(stage Stage, lang, source string) string {
	return path.Join(string(stage), lang, source)
}

// ArtifactPath returns "{stage}/{lang}/{source}/{filename}".
func ArtifactPath(stage Stage, lang, source, filename string) string {
	return path.Join(SourceDir(stage, lang, source), filename)
}

// CompiledCorpusPath returns the path of the per-language corpus.
func CompiledCorpusPath(lang string) string {
	return path.Join(string(StageCompiled), lang, compiledCorpusFile)
}

// FrequenciesPath returns the path of the frequency table for a token kind,
// e.g. "compiled/sv/word-frequencies.json".
func FrequenciesPath(lang, tokenKind string) string {
	return path.Join(string(StageCompiled), lang, tokenKind+frequenciesSuffix)
}

// NGramPath returns the path of the n-gram set, e.g. "compiled/sv/3-grams.txt".
func NGramPath(lang string, n int) string {
	return path.Join(string(StageCompiled), lang, strconv.Itoa(n)+ngramsSuffix)
}
