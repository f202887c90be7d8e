// Package source opens archive text from the local filesystem or over HTTP.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/logger"
)

// Source abstracts where archive text is read from.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// ForRef picks the HTTP source for URLs and the filesystem otherwise.
func ForRef(ref string, log *logger.Logger) Source {
	if IsRemote(ref) {
		return NewHTTPSource(nil, log)
	}
	return FileSource{}
}

// Name returns the file name part of ref, used to choose the text format.
func Name(ref string) string {
	if IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			return path.Base(u.Path)
		}
	}
	return ref
}

// FileSource reads local files.
type FileSource struct{}

// Open opens the file at ref.
func (FileSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to open input file").
			WithDetail("path", ref).
			WithCause(err)
	}
	return f, nil
}

// HTTPSource fetches archive text with a GET request.
type HTTPSource struct {
	client *http.Client
	log    *logger.Logger
}

// NewHTTPSource returns an HTTPSource; a nil client uses http.DefaultClient
// and a nil log the package logger.
func NewHTTPSource(client *http.Client, log *logger.Logger) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.Default()
	}
	return &HTTPSource{client: client, log: log}
}

// Open issues the request and returns the response body.
func (s *HTTPSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.log.Debug("Fetching archive: %s", ref)

	req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
	if err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to create request").
			WithDetail("url", ref).
			WithCause(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("HTTP request failed: %v", err)
		return nil, archexerrors.ErrIO.WithMessage("failed to fetch archive").
			WithDetail("url", ref).
			WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		s.log.Error("HTTP request for %s returned %d", ref, resp.StatusCode)
		return nil, archexerrors.ErrIO.WithMessage("failed to fetch archive").
			WithDetail("url", ref).
			WithCause(fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return resp.Body, nil
}

// Verify wraps rc so that reaching EOF fails with ErrDigestMismatch unless
// the bytes read match expected. An empty expected digest disables the check.
func Verify(rc io.ReadCloser, expected digest.Digest) (io.ReadCloser, error) {
	if expected == "" {
		return rc, nil
	}
	if err := expected.Validate(); err != nil {
		return nil, archexerrors.ErrDigestMismatch.WithMessage("invalid expected digest").
			WithDetail("digest", expected.String()).
			WithCause(err)
	}
	return &verifyingReader{
		rc:       rc,
		expected: expected,
		verifier: expected.Verifier(),
	}, nil
}

type verifyingReader struct {
	rc       io.ReadCloser
	expected digest.Digest
	verifier digest.Verifier
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	v.verifier.Write(p[:n])
	if err == io.EOF && !v.verifier.Verified() {
		return n, archexerrors.ErrDigestMismatch.WithDetail("expected", v.expected.String())
	}
	return n, err
}

func (v *verifyingReader) Close() error {
	return v.rc.Close()
}
