package archex

import (
	"context"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/hexcodec"
	"github.com/flaneur2020/archex/archex/ledger"
	"github.com/flaneur2020/archex/archex/logger"
	"github.com/flaneur2020/archex/archex/source"
	"github.com/flaneur2020/archex/archex/transform"
)

// OpenStream fetches cfg.Input, verifies it against cfg.Digest when set and
// decodes it into a stream.
func OpenStream(ctx context.Context, cfg *Config, log *logger.Logger) (*Stream, error) {
	mode, err := hexcodec.ParseMode(cfg.Format, source.Name(cfg.Input))
	if err != nil {
		return nil, err
	}

	src := cfg.Source
	if src == nil {
		src = source.ForRef(cfg.Input, log)
	}
	rc, err := src.Open(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	verified, err := source.Verify(rc, digest.Digest(cfg.Digest))
	if err != nil {
		return nil, err
	}
	return ReadStream(verified, mode)
}

// NewLogger builds the console logger for cfg.
func NewLogger(cfg *Config) *logger.Logger {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	return logger.New(console, logger.LevelForVerbosity(cfg.Verbose))
}

// Run performs a complete extraction: log file, output root, ledger and
// input are acquired in that order and released on every return path.
func Run(ctx context.Context, cfg *Config) (*ExtractStats, error) {
	log := NewLogger(cfg)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, archexerrors.ErrIO.WithMessage("failed to open log file").
				WithDetail("path", cfg.LogFile).
				WithCause(err)
		}
		defer f.Close()
		log.SetFile(f)
		defer log.SetFile(nil)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Error("Failed to create output directory %s: %v", cfg.OutputDir, err)
		return nil, archexerrors.ErrIO.WithMessage("failed to create output directory").
			WithDetail("path", cfg.OutputDir).
			WithCause(err)
	}

	ledgerPath := filepath.Join(cfg.OutputDir, ledger.FileName)
	lf, err := os.Create(ledgerPath)
	if err != nil {
		log.Error("Failed to create metadata file %s: %v", ledgerPath, err)
		return nil, archexerrors.ErrIO.WithMessage("failed to create metadata file").
			WithDetail("path", ledgerPath).
			WithCause(err)
	}
	defer lf.Close()

	tr, err := newTransformer(cfg, log)
	if err != nil {
		log.Error("%v", err)
		return nil, err
	}

	log.Info("Reading archive from %s", cfg.Input)
	stream, err := OpenStream(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to read archive: %v", err)
		return nil, err
	}
	log.Debug("Decoded %d bytes of archive data", stream.Len())

	ex := NewExtractor(Options{
		OutputDir:     cfg.OutputDir,
		Workers:       cfg.Workers,
		MaxNameLength: cfg.MaxNameLength,
		Transformer:   tr,
		Ledger:        ledger.NewWriter(lf),
		Logger:        log,
		Progress:      cfg.Progress,
		Protected:     []string{ledgerPath, cfg.LogFile},
	})
	stats, err := ex.Extract(ctx, stream)
	if stats != nil {
		log.Info("Extracted %d of %d records (%d failed, %d skipped, %d bytes)",
			stats.ExtractedRecords, stats.TotalRecords, stats.FailedRecords, stats.SkippedRecords, stats.ExtractedBytes)
	}
	if err != nil {
		log.Error("Extraction stopped: %v", err)
	}
	return stats, err
}

func newTransformer(cfg *Config, log *logger.Logger) (transform.Transformer, error) {
	if cfg.Transformer != nil {
		return cfg.Transformer, nil
	}
	if cfg.TransformCommand == "" {
		return transform.NewLocal(), nil
	}
	return transform.NewExec(cfg.TransformCommand, log)
}
