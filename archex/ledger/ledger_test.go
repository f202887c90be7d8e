package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/flaneur2020/archex/archex/format"
)

func TestRow_String(t *testing.T) {
	row := Row{Name: "a.txt", OriginalSize: 10, ProcessedSize: 10, Method: format.MethodNone}
	if got := row.String(); got != "a.txt\t10\t10\tnone" {
		t.Errorf("String() = %q", got)
	}
}

func TestWriter_AppendAndRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	rows := []Row{
		{Name: "a.txt", OriginalSize: 10, ProcessedSize: 10, Method: format.MethodNone},
		{Name: "dir/b.bin", OriginalSize: 4096, ProcessedSize: 120, Method: format.MethodZlib},
		{Name: "secret", OriginalSize: 5, ProcessedSize: 144, Method: format.MethodFernet},
	}
	for _, row := range rows {
		if err := w.Append(row); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	want := "a.txt\t10\t10\tnone\ndir/b.bin\t4096\t120\tzlib\nsecret\t5\t144\tfernet\n"
	if buf.String() != want {
		t.Errorf("ledger = %q, want %q", buf.String(), want)
	}
	if w.Rows() != 3 {
		t.Errorf("Rows() = %d, want 3", w.Rows())
	}

	got, err := Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("Read() returned %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestWriter_NamesWithSeparators(t *testing.T) {
	names := []string{
		"tab\there",
		"new\nline",
		"carriage\rreturn",
		`back\slash`,
		`literal\t`,
		"mixed\t\\n\n",
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, name := range names {
		if err := w.Append(Row{Name: name, OriginalSize: 1, ProcessedSize: 1, Method: format.MethodNone}); err != nil {
			t.Fatalf("Append(%q) error = %v", name, err)
		}
	}

	if n := strings.Count(buf.String(), "\n"); n != len(names) {
		t.Fatalf("ledger has %d lines, want %d: %q", n, len(names), buf.String())
	}

	rows, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rows) != len(names) {
		t.Fatalf("Read() returned %d rows, want %d", len(rows), len(names))
	}
	for i, row := range rows {
		if row.Name != names[i] {
			t.Errorf("row %d name = %q, want %q", i, row.Name, names[i])
		}
	}
}

func TestWriter_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Append(Row{Name: fmt.Sprintf("file-%02d", i), OriginalSize: uint64(i), ProcessedSize: uint64(i), Method: format.MethodLZMA})
		}(i)
	}
	wg.Wait()

	rows, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rows) != 50 {
		t.Errorf("Read() returned %d rows, want 50", len(rows))
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriter_AppendError(t *testing.T) {
	w := NewWriter(failingWriter{})
	if err := w.Append(Row{Name: "a"}); err == nil {
		t.Fatal("Append() should fail when the sink fails")
	}
}

func TestParseRow_Errors(t *testing.T) {
	bad := []string{
		"only\tthree\tfields",
		"a\tx\t1\tnone",
		"a\t1\tx\tnone",
		"a\t1\t1\tbrotli",
	}
	for _, line := range bad {
		if _, err := ParseRow(line); err == nil {
			t.Errorf("ParseRow(%q) should fail", line)
		}
	}
}
