package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flaneur2020/archex/archex"
	"github.com/flaneur2020/archex/archex/ledger"
)

func newShell(input string) (*Shell, *bytes.Buffer) {
	var out bytes.Buffer
	return New(archex.DefaultConfig(), strings.NewReader(input), &out), &out
}

func TestShell_Set(t *testing.T) {
	tests := []struct {
		line    string
		wantErr bool
		check   func(*archex.Config) bool
	}{
		{"set input archive.hex", false, func(c *archex.Config) bool { return c.Input == "archive.hex" }},
		{"set output '/tmp/my out'", false, func(c *archex.Config) bool { return c.OutputDir == "/tmp/my out" }},
		{"set verbose 2", false, func(c *archex.Config) bool { return c.Verbose == 2 }},
		{"set verbose 7", true, nil},
		{"set workers 4", false, func(c *archex.Config) bool { return c.Workers == 4 }},
		{"set workers 0", true, nil},
		{"set format dump", false, func(c *archex.Config) bool { return c.Format == "dump" }},
		{"set format base64", true, nil},
		{`set transform python3 "process data.py"`, false, func(c *archex.Config) bool {
			return c.TransformCommand == `python3 'process data.py'`
		}},
		{"set colour red", true, nil},
		{"set", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sh, _ := newShell("")
			err := sh.Execute(context.Background(), tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(sh.Config()) {
				t.Errorf("config not updated: %+v", sh.Config())
			}
		})
	}
}

func TestShell_ConfigIsCopied(t *testing.T) {
	cfg := archex.DefaultConfig()
	sh := New(cfg, strings.NewReader(""), &bytes.Buffer{})
	if err := sh.Execute(context.Background(), "set input x.hex"); err != nil {
		t.Fatal(err)
	}
	if cfg.Input != "" {
		t.Error("shell should not modify the caller's config")
	}
}

func TestShell_Loop(t *testing.T) {
	var got *archex.Config
	sh, out := newShell("set input a.hex\n\nbogus\nextract\nhistory\nexit\nshow\n")
	sh.SetRunFunc(func(ctx context.Context, cfg *archex.Config) (*archex.ExtractStats, error) {
		got = cfg
		return &archex.ExtractStats{TotalRecords: 3, ExtractedRecords: 2, FailedRecords: 1, ExtractedBytes: 42}, nil
	})

	if err := sh.Loop(context.Background()); err != nil {
		t.Fatalf("Loop() error = %v", err)
	}
	if got == nil || got.Input != "a.hex" {
		t.Fatalf("run called with %+v", got)
	}

	text := out.String()
	for _, want := range []string{
		`unknown command "bogus"`,
		"Extracted 2 of 3 records (1 failed, 0 skipped, 42 bytes)",
		"   1  set input a.hex",
		"   4  history",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "input:") {
		t.Error("commands after exit should not run")
	}
	if n := len(sh.History()); n != 5 {
		t.Errorf("History() has %d entries, want 5", n)
	}
}

func TestShell_LoopEndsAtEOF(t *testing.T) {
	sh, out := newShell("show")
	if err := sh.Loop(context.Background()); err != nil {
		t.Fatalf("Loop() error = %v", err)
	}
	if !strings.Contains(out.String(), "transform: (built-in)") {
		t.Errorf("last line without newline not executed:\n%s", out.String())
	}
}

func TestShell_ExtractErrors(t *testing.T) {
	sh, _ := newShell("")
	if err := sh.Execute(context.Background(), "extract"); err == nil {
		t.Error("extract without input should fail")
	}

	boom := errors.New("boom")
	sh.SetRunFunc(func(ctx context.Context, cfg *archex.Config) (*archex.ExtractStats, error) {
		return nil, boom
	})
	sh.Execute(context.Background(), "set input a.hex")
	if err := sh.Execute(context.Background(), "extract"); !errors.Is(err, boom) {
		t.Errorf("extract error = %v, want boom", err)
	}
}

func TestShell_LsAndMetadata(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("12345"), 0644)
	os.WriteFile(filepath.Join(dir, ledger.FileName), []byte("sub/b.txt\t5\t5\tnone\n"), 0644)

	sh, out := newShell("")
	if err := sh.Execute(context.Background(), "set output "+dir); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := sh.Execute(context.Background(), "ls"); err != nil {
		t.Fatalf("ls error = %v", err)
	}
	if !strings.Contains(out.String(), "5  sub/b.txt") || !strings.Contains(out.String(), "Total: 2 files") {
		t.Errorf("ls output:\n%s", out.String())
	}

	out.Reset()
	if err := sh.Execute(context.Background(), "metadata"); err != nil {
		t.Fatalf("metadata error = %v", err)
	}
	if !strings.Contains(out.String(), "sub/b.txt") || !strings.Contains(out.String(), "none") {
		t.Errorf("metadata output:\n%s", out.String())
	}

	if err := sh.Execute(context.Background(), "ls "+filepath.Join(dir, "missing")); err == nil {
		t.Error("ls of a missing directory should fail")
	}
}
