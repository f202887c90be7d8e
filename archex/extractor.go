// Package archex extracts the files stored in a hex-encoded archive.
package archex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/format"
	"github.com/flaneur2020/archex/archex/ledger"
	"github.com/flaneur2020/archex/archex/logger"
	"github.com/flaneur2020/archex/archex/transform"
)

// ProgressCallback is called as records are decoded
// current: stream bytes consumed so far
// total: stream length
type ProgressCallback func(current int64, total int64)

// ExtractStats contains statistics about an extraction
type ExtractStats struct {
	TotalRecords     int
	ExtractedRecords int
	FailedRecords    int // decoded, but the file could not be produced
	SkippedRecords   int // not decodable (unknown method, name too long)
	ExtractedBytes   int64
	Version          byte
	Order            format.ByteOrder
}

// Options configures an Extractor.
type Options struct {
	OutputDir     string
	Workers       int
	MaxNameLength int
	Transformer   transform.Transformer
	// Ledger receives one row per decoded record; nil disables it.
	Ledger   *ledger.Writer
	Logger   *logger.Logger
	Progress ProgressCallback
	// Protected lists files records must not overwrite, such as the ledger.
	Protected []string
}

// Extractor walks a stream and hands each record to the transform service.
type Extractor struct {
	opts Options
}

// NewExtractor fills in defaults for unset options.
func NewExtractor(opts Options) *Extractor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = format.DefaultMaxNameLength
	}
	if opts.Transformer == nil {
		opts.Transformer = transform.NewLocal()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Extractor{opts: opts}
}

// Extract validates the header and processes every record in order.
//
// Per-record failures are logged and counted, and extraction continues. A
// fatal error (bad header, truncated record, unusable output root or
// ledger) stops it; the stats gathered so far are returned with the error.
func (e *Extractor) Extract(ctx context.Context, s *Stream) (*ExtractStats, error) {
	log := e.opts.Logger

	if err := os.MkdirAll(e.opts.OutputDir, 0755); err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to create output directory").
			WithDetail("path", e.opts.OutputDir).
			WithCause(err)
	}

	h, err := format.ParseHeader(s.Bytes())
	if err != nil {
		return nil, err
	}
	log.Info("Read version 0x%02x from archive", h.Version)
	log.Debug("Archive byte order: %s", h.Order)

	stats := &ExtractStats{
		Version: h.Version,
		Order:   h.Order,
	}
	var mu sync.Mutex

	total := int64(s.Len())
	if e.opts.Progress != nil {
		e.opts.Progress(format.HeaderSize, total)
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	it := format.NewIterator(s.Bytes(), h, e.opts.MaxNameLength)
	var fatal error
	for {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if e.opts.Progress != nil {
			e.opts.Progress(int64(it.Offset()), total)
		}
		if err != nil {
			if archexerrors.IsFatal(err) {
				log.Error("Stopping at offset %d: %v", it.Offset(), err)
				fatal = err
				break
			}
			log.Warn("Skipping record: %v", err)
			mu.Lock()
			stats.TotalRecords++
			stats.SkippedRecords++
			mu.Unlock()
			continue
		}

		mu.Lock()
		stats.TotalRecords++
		mu.Unlock()

		if e.opts.Ledger != nil {
			if err := e.opts.Ledger.Append(ledger.RowFor(rec)); err != nil {
				fatal = err
				break
			}
		}

		log.Info("Processing %s: method=%s, orig_size=%d, proc_size=%d",
			rec.Name, rec.Method, rec.OriginalSize, rec.ProcessedSize)
		if log.Enabled(logger.LogLevelDebug) {
			log.Debug("Payload digest for %s: %s", rec.Name, rec.Digest())
		}

		req, err := e.prepare(rec)
		if err != nil {
			e.recordFailure(rec, err)
			mu.Lock()
			stats.FailedRecords++
			mu.Unlock()
			continue
		}

		run := func() error {
			res, err := e.opts.Transformer.Transform(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.recordFailure(rec, asTransformError(rec, err))
				stats.FailedRecords++
				return nil
			}
			stats.ExtractedRecords++
			stats.ExtractedBytes += res.Written
			return nil
		}
		if e.opts.Workers == 1 {
			run()
		} else {
			g.Go(run)
		}
	}

	g.Wait()
	return stats, fatal
}

// prepare resolves the destination of rec, creates its parent directories
// and builds the transform request.
func (e *Extractor) prepare(rec *format.FileRecord) (*transform.Request, error) {
	dest, err := ResolvePath(e.opts.OutputDir, rec.Name)
	if err != nil {
		return nil, err
	}
	if e.isProtected(dest) {
		return nil, archexerrors.ErrUnsafePath.
			WithDetail("name", rec.Name).
			WithCause(fmt.Errorf("%s is reserved", dest))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to create directory").
			WithDetail("path", filepath.Dir(dest)).
			WithCause(err)
	}
	return transform.NewRequest(rec, dest)
}

func (e *Extractor) isProtected(dest string) bool {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return false
	}
	for _, p := range e.opts.Protected {
		if p == "" {
			continue
		}
		if pa, err := filepath.Abs(p); err == nil && pa == abs {
			return true
		}
	}
	return false
}

func (e *Extractor) recordFailure(rec *format.FileRecord, err error) {
	e.opts.Logger.Error("Failed to extract %s (offset %d, orig_size=%d, proc_size=%d): %v",
		rec.Name, rec.Offset, rec.OriginalSize, rec.ProcessedSize, err)
}

// asTransformError keeps coded errors from the transformer and wraps
// anything else as a transform failure.
func asTransformError(rec *format.FileRecord, err error) error {
	if archexerrors.IsArchexError(err) {
		return err
	}
	return archexerrors.ErrTransformFailed.
		WithDetail("name", rec.Name).
		WithDetail("method", rec.Method.String()).
		WithCause(err)
}

// ResolvePath joins a slash-separated record name onto root. Absolute names
// and names that would leave root are rejected.
func ResolvePath(root, name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", archexerrors.ErrUnsafePath.
			WithDetail("name", name).
			WithCause(fmt.Errorf("%q is not a path inside %s", name, root))
	}
	return filepath.Join(root, local), nil
}

// IsTruncated reports whether err ended an extraction early because the
// archive was cut short.
func IsTruncated(err error) bool {
	return errors.Is(err, archexerrors.ErrTruncatedRecord)
}
