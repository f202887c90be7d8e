package archex

import (
	"errors"
	"io"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/format"
	"github.com/flaneur2020/archex/archex/hexcodec"
)

// Stream is the binary archive reconstructed from its text form.
type Stream struct {
	data []byte
}

// NewStream wraps data without copying it.
func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// ReadStream decodes every line of r and returns the assembled stream.
// Any malformed line aborts the whole read.
func ReadStream(r io.Reader, mode hexcodec.Mode) (*Stream, error) {
	s := &Stream{}
	hr := hexcodec.NewReader(r, mode)
	for {
		b, err := hr.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		s.Append(b)
	}
}

// Append grows the stream by p.
func (s *Stream) Append(p []byte) {
	s.data = append(s.data, p...)
}

// Bytes returns the stream contents. Record payloads alias this slice.
func (s *Stream) Bytes() []byte {
	return s.data
}

// Len returns the stream length in bytes.
func (s *Stream) Len() int {
	return len(s.data)
}

// Listing is what ListRecords found in a stream.
type Listing struct {
	Header  *format.Header
	Records []*format.FileRecord
	// Skipped counts undecodable records that iteration stepped over.
	Skipped int
}

// ListRecords decodes the header and every record without extracting
// anything. A truncation ends the listing; the records before it are
// returned together with the error.
func ListRecords(s *Stream, maxNameLength int) (*Listing, error) {
	h, err := format.ParseHeader(s.Bytes())
	if err != nil {
		return nil, err
	}

	l := &Listing{Header: h}
	it := format.NewIterator(s.Bytes(), h, maxNameLength)
	for {
		rec, err := it.Next()
		if err == io.EOF {
			return l, nil
		}
		if errors.Is(err, archexerrors.ErrTruncatedRecord) {
			return l, err
		}
		if err != nil {
			l.Skipped++
			continue
		}
		l.Records = append(l.Records, rec)
	}
}
