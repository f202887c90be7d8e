package archex

import (
	"io"

	"github.com/flaneur2020/archex/archex/format"
	"github.com/flaneur2020/archex/archex/source"
	"github.com/flaneur2020/archex/archex/transform"
)

// Config holds the settings of one extraction run.
type Config struct {
	Input            string // path or http(s) URL of the archive text
	OutputDir        string
	Verbose          int    // 0 errors only, 1 info, 2 debug
	Workers          int    // transform workers; 1 is strictly sequential
	MaxNameLength    int
	Format           string // auto, raw or dump
	TransformCommand string // external transform program; empty uses the in-process one
	Digest           string // expected digest of the input text, e.g. "sha256:..."
	LogFile          string // appended to; empty disables the file log
	NoProgress       bool

	// Set programmatically; nil values pick the defaults.
	Source      source.Source
	Transformer transform.Transformer
	Console     io.Writer
	Progress    ProgressCallback
}

// DefaultConfig returns the settings used when no flag overrides them.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:     "./extracted",
		Workers:       1,
		MaxNameLength: format.DefaultMaxNameLength,
		Format:        "auto",
		LogFile:       "archextract.log",
	}
}
