package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/fernet/fernet-go"
	"github.com/klauspost/compress/zlib"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/format"
)

// xzMagic starts an .xz container; anything else is read as a legacy .lzma
// stream.
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// Local transforms payloads in process.
type Local struct{}

var _ Transformer = (*Local)(nil)

// NewLocal returns the in-process transformer.
func NewLocal() *Local {
	return &Local{}
}

// Transform decodes req and writes the result to req.DestPath. The decoded
// content must be exactly req.OriginalSize bytes.
func (l *Local) Transform(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := l.decode(req)
	if err != nil {
		return nil, failed(req, err)
	}
	if uint64(len(data)) != req.OriginalSize {
		return nil, failed(req, fmt.Errorf("%s decoded size mismatch: got %d, want %d", req.Method, len(data), req.OriginalSize))
	}

	if err := os.MkdirAll(filepath.Dir(req.DestPath), 0755); err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to create directory").
			WithDetail("path", filepath.Dir(req.DestPath)).
			WithCause(err)
	}
	if err := os.WriteFile(req.DestPath, data, 0644); err != nil {
		return nil, archexerrors.ErrIO.WithMessage("failed to write output file").
			WithDetail("path", req.DestPath).
			WithCause(err)
	}

	return &Result{Written: int64(len(data))}, nil
}

func (l *Local) decode(req *Request) ([]byte, error) {
	switch req.Method {
	case format.MethodNone:
		return req.Data, nil

	case format.MethodZlib:
		zr, err := zlib.NewReader(bytes.NewReader(req.Data))
		if err != nil {
			return nil, fmt.Errorf("zlib decompression failed: %w", err)
		}
		defer zr.Close()
		return readBounded(zr, req.OriginalSize, "zlib")

	case format.MethodLZMA:
		var r io.Reader
		var err error
		if bytes.HasPrefix(req.Data, xzMagic) {
			r, err = xz.NewReader(bytes.NewReader(req.Data))
		} else {
			r, err = lzma.NewReader(bytes.NewReader(req.Data))
		}
		if err != nil {
			return nil, fmt.Errorf("lzma decompression failed: %w", err)
		}
		return readBounded(r, req.OriginalSize, "lzma")

	case format.MethodFernet:
		key, err := fernet.DecodeKey(string(req.Key))
		if err != nil {
			return nil, fmt.Errorf("invalid fernet key: %w", err)
		}
		// A negative ttl disables the token age check.
		msg := fernet.VerifyAndDecrypt(req.Data, -1, []*fernet.Key{key})
		if msg == nil {
			return nil, fmt.Errorf("fernet decryption failed")
		}
		return msg, nil
	}
	return nil, req.Method.Valid()
}

// readBounded reads at most limit+1 bytes so an oversized stream is caught
// by the size check without being inflated in full.
func readBounded(r io.Reader, limit uint64, method string) ([]byte, error) {
	n := int64(math.MaxInt64)
	if limit < math.MaxInt64 {
		n = int64(limit) + 1
	}
	data, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, fmt.Errorf("%s decompression failed: %w", method, err)
	}
	return data, nil
}

func failed(req *Request, cause error) error {
	return archexerrors.ErrTransformFailed.
		WithDetail("name", req.Name).
		WithDetail("method", req.Method.String()).
		WithCause(cause)
}
