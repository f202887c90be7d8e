// Package hexcodec decodes the two text renderings of an archive: raw hex
// (one arbitrary-length run of hex pairs per line) and the address-annotated
// dump produced by xxd ("00000000: 4152 4348 01  ARCH.").
package hexcodec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
)

// Mode selects the text rendering of an archive.
type Mode int

const (
	// ModeRaw is plain hex, an even number of hex digits per line.
	ModeRaw Mode = iota + 1
	// ModeDump is an xxd style dump with an address prefix and ASCII gutter.
	ModeDump
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeDump:
		return "dump"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ModeForName picks the mode from a file name: ".hex" is raw, ".txt" is a dump.
func ModeForName(name string) (Mode, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex":
		return ModeRaw, nil
	case ".txt":
		return ModeDump, nil
	}
	return 0, archexerrors.ErrUnsupportedFormat.WithDetail("name", name)
}

// ParseMode parses a --format flag value. "auto" (or "") defers to the input
// name.
func ParseMode(s, name string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ModeForName(name)
	case "raw", "hex":
		return ModeRaw, nil
	case "dump", "xxd":
		return ModeDump, nil
	}
	return 0, archexerrors.ErrUnsupportedFormat.WithDetail("format", s)
}

// DecodeLine decodes one line in the given mode.
func DecodeLine(line string, mode Mode) ([]byte, error) {
	switch mode {
	case ModeRaw:
		return DecodeRawLine(line)
	case ModeDump:
		return DecodeDumpLine(line)
	}
	return nil, archexerrors.ErrUnsupportedFormat.WithDetail("mode", int(mode))
}

// DecodeRawLine decodes a line of consecutive hex pairs. A trailing newline
// is ignored; the remaining length must be even.
func DecodeRawLine(line string) ([]byte, error) {
	line = trimEOL(line)
	if len(line)%2 != 0 {
		return nil, archexerrors.ErrMalformedLine.
			WithMessage("invalid hex line length").
			WithDetail("length", len(line))
	}

	out := make([]byte, 0, len(line)/2)
	for i := 0; i < len(line); i += 2 {
		b, ok := parsePair(line[i], line[i+1])
		if !ok {
			return nil, archexerrors.ErrMalformedLine.
				WithMessage("invalid hex pair").
				WithDetail("column", i+1).
				WithDetail("pair", line[i:i+2])
		}
		out = append(out, b)
	}
	return out, nil
}

// DecodeDumpLine decodes the hex groups of a dump line. Decoding starts after
// the first ':' and stops at the first pair that is not two hex digits, which
// is where the ASCII gutter (or the end of the line) begins. A single space
// is allowed after each pair.
func DecodeDumpLine(line string) ([]byte, error) {
	line = trimEOL(line)
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return nil, archexerrors.ErrMalformedLine.
			WithMessage("missing address separator")
	}

	s := line[colon+1:]
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}

	var out []byte
	for len(s) >= 2 {
		b, ok := parsePair(s[0], s[1])
		if !ok {
			break
		}
		out = append(out, b)
		s = s[2:]
		if len(s) > 0 && s[0] == ' ' {
			s = s[1:]
		}
	}
	return out, nil
}

// Reader decodes archive text one line at a time.
type Reader struct {
	scanner *bufio.Scanner
	mode    Mode
	line    int
}

// maxLineSize bounds a single text line. Raw hex lines can be long.
const maxLineSize = 16 * 1024 * 1024

// NewReader returns a Reader decoding r in the given mode.
func NewReader(r io.Reader, mode Mode) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{
		scanner: scanner,
		mode:    mode,
	}
}

// Next returns the bytes decoded from the next line. It returns io.EOF when
// the input is exhausted, which is the normal end of the stream.
func (r *Reader) Next() ([]byte, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			var ae *archexerrors.ArchexError
			if errors.As(err, &ae) {
				return nil, ae
			}
			return nil, archexerrors.ErrMalformedLine.
				WithDetail("line", r.line+1).
				WithCause(err)
		}
		return nil, io.EOF
	}
	r.line++

	b, err := DecodeLine(r.scanner.Text(), r.mode)
	if err != nil {
		if ae, ok := err.(*archexerrors.ArchexError); ok {
			return nil, ae.WithDetail("line", r.line)
		}
		return nil, err
	}
	return b, nil
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// EncodeRaw writes data as raw hex, width bytes per line.
func EncodeRaw(w io.Writer, data []byte, width int) error {
	if width <= 0 {
		width = 32
	}
	bw := bufio.NewWriter(w)
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		for _, b := range data[off:end] {
			bw.WriteByte(hexDigits[b>>4])
			bw.WriteByte(hexDigits[b&0x0f])
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// EncodeDump writes data in the xxd layout: 16 bytes per line, two-byte
// groups and an ASCII gutter.
func EncodeDump(w io.Writer, data []byte) error {
	const width = 16
	bw := bufio.NewWriter(w)
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		fmt.Fprintf(bw, "%08x: ", off)
		for i := 0; i < width; i++ {
			if i < len(chunk) {
				bw.WriteByte(hexDigits[chunk[i]>>4])
				bw.WriteByte(hexDigits[chunk[i]&0x0f])
			} else {
				bw.WriteString("  ")
			}
			if i%2 == 1 {
				bw.WriteByte(' ')
			}
		}
		bw.WriteByte(' ')
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				bw.WriteByte(c)
			} else {
				bw.WriteByte('.')
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

const hexDigits = "0123456789abcdef"

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func parsePair(hi, lo byte) (byte, bool) {
	h, ok := nibble(hi)
	if !ok {
		return 0, false
	}
	l, ok := nibble(lo)
	if !ok {
		return 0, false
	}
	return h<<4 | l, true
}

func nibble(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
