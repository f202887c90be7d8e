package format

import (
	"encoding/binary"
	"io"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
)

// DefaultMaxNameLength bounds record names.
const DefaultMaxNameLength = 255

const (
	nameLengthSize = 4
	sizesSize      = 16
	methodSize     = 1
)

// Iterator walks the records of a stream, one per Next call. The cursor is
// owned by the iterator and only moves forward.
type Iterator struct {
	data    []byte
	order   binary.ByteOrder
	cursor  int
	maxName int

	// err latches a truncation so the same position is never retried.
	err error
}

// NewIterator returns an iterator positioned after the header. A
// maxNameLength <= 0 selects DefaultMaxNameLength.
func NewIterator(data []byte, h *Header, maxNameLength int) *Iterator {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}
	return &Iterator{
		data:    data,
		order:   h.Order.Binary(),
		cursor:  HeaderSize,
		maxName: maxNameLength,
	}
}

// Offset returns the current cursor.
func (it *Iterator) Offset() int {
	return it.cursor
}

// Len returns the stream length.
func (it *Iterator) Len() int {
	return len(it.data)
}

// Next decodes the record at the cursor.
//
// It returns io.EOF once the cursor reaches the end of the stream. A field
// that would extend past the end yields ErrTruncatedRecord, which is terminal:
// the cursor is left after the fields already consumed and every later call
// returns the same error. ErrUnknownMethod and ErrNameTooLong are returned
// with the cursor already at the next record, so iteration can continue.
func (it *Iterator) Next() (*FileRecord, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.cursor >= len(it.data) {
		return nil, io.EOF
	}

	rec := &FileRecord{Offset: it.cursor}

	b, err := it.take(rec, "name length", nameLengthSize)
	if err != nil {
		return nil, err
	}
	nameLen := it.order.Uint32(b)

	b, err = it.take(rec, "name", uint64(nameLen))
	if err != nil {
		return nil, err
	}
	rec.Name = string(b)

	b, err = it.take(rec, "sizes", sizesSize)
	if err != nil {
		return nil, err
	}
	rec.OriginalSize = it.order.Uint64(b[0:8])
	rec.ProcessedSize = it.order.Uint64(b[8:16])

	b, err = it.take(rec, "method", methodSize)
	if err != nil {
		return nil, err
	}
	rec.Method = Method(b[0])

	payload, err := it.take(rec, "payload", rec.ProcessedSize)
	if err != nil {
		return nil, err
	}
	rec.Payload = payload

	if err := rec.Method.Valid(); err != nil {
		return nil, recordDetails(err.(*archexerrors.ArchexError), rec).
			WithDetail("next", it.cursor)
	}
	if len(rec.Name) > it.maxName {
		return nil, recordDetails(archexerrors.ErrNameTooLong, rec).
			WithDetail("nameLength", len(rec.Name)).
			WithDetail("max", it.maxName).
			WithDetail("next", it.cursor)
	}

	return rec, nil
}

// take consumes n bytes for field, or latches a truncation error if fewer
// than n bytes remain. The whole width is checked before any byte is read.
func (it *Iterator) take(rec *FileRecord, field string, n uint64) ([]byte, error) {
	remaining := len(it.data) - it.cursor
	if n > uint64(remaining) {
		err := recordDetails(archexerrors.ErrTruncatedRecord, rec).
			WithDetail("field", field).
			WithDetail("need", n).
			WithDetail("remaining", remaining).
			WithDetail("consumed", it.cursor-rec.Offset)
		it.err = err
		return nil, err
	}
	b := it.data[it.cursor : it.cursor+int(n)]
	it.cursor += int(n)
	return b, nil
}

func recordDetails(e *archexerrors.ArchexError, rec *FileRecord) *archexerrors.ArchexError {
	e = e.WithDetail("offset", rec.Offset)
	if rec.Name != "" {
		e = e.WithDetail("name", rec.Name)
	}
	if rec.ProcessedSize != 0 || rec.OriginalSize != 0 {
		e = e.WithDetail("originalSize", rec.OriginalSize).
			WithDetail("processedSize", rec.ProcessedSize)
	}
	return e
}

// Progressed reports whether a truncation error consumed any bytes of its
// record before failing.
func Progressed(err error) bool {
	v, ok := archexerrors.GetDetail(err, "consumed")
	if !ok {
		return false
	}
	n, ok := v.(int)
	return ok && n > 0
}
