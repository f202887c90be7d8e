// Package ledger writes and reads the metadata report: one tab-separated
// line per decoded record, "name\toriginalSize\tprocessedSize\tmethod".
package ledger

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/format"
)

// FileName is the ledger's name inside the output directory.
const FileName = "metadata.txt"

// Row is one ledger line.
type Row struct {
	Name          string
	OriginalSize  uint64
	ProcessedSize uint64
	Method        format.Method
}

// RowFor builds the row for a decoded record.
func RowFor(rec *format.FileRecord) Row {
	return Row{
		Name:          rec.Name,
		OriginalSize:  rec.OriginalSize,
		ProcessedSize: rec.ProcessedSize,
		Method:        rec.Method,
	}
}

// Names are written with backslash escapes for the characters that would
// break a row apart.
var (
	nameEscaper   = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)
	nameUnescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\r`, "\r")
)

// String renders the row without the trailing newline.
func (r Row) String() string {
	return fmt.Sprintf("%s\t%d\t%d\t%s", nameEscaper.Replace(r.Name), r.OriginalSize, r.ProcessedSize, r.Method)
}

// Writer appends rows. It is safe for concurrent use; each row is written
// and flushed as one line.
type Writer struct {
	mu   sync.Mutex
	w    *bufio.Writer
	rows int
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Append writes one row.
func (lw *Writer) Append(row Row) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.WriteString(row.String() + "\n"); err != nil {
		return archexerrors.ErrIO.WithMessage("failed to write ledger row").WithCause(err)
	}
	if err := lw.w.Flush(); err != nil {
		return archexerrors.ErrIO.WithMessage("failed to flush ledger").WithCause(err)
	}
	lw.rows++
	return nil
}

// Rows returns the number of rows written.
func (lw *Writer) Rows() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.rows
}

// ParseRow parses one ledger line.
func ParseRow(line string) (Row, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != 4 {
		return Row{}, fmt.Errorf("ledger row has %d fields, want 4", len(fields))
	}
	orig, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("invalid original size %q: %w", fields[1], err)
	}
	proc, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("invalid processed size %q: %w", fields[2], err)
	}
	method, err := format.ParseMethodTag(fields[3])
	if err != nil {
		return Row{}, err
	}
	return Row{
		Name:          nameUnescaper.Replace(fields[0]),
		OriginalSize:  orig,
		ProcessedSize: proc,
		Method:        method,
	}, nil
}

// Read parses every row of a ledger.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if scanner.Text() == "" {
			continue
		}
		row, err := ParseRow(scanner.Text())
		if err != nil {
			return rows, fmt.Errorf("ledger line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return rows, fmt.Errorf("failed to read ledger: %w", err)
	}
	return rows, nil
}
