// Package shell is an interactive front-end for configuring and running
// extractions.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/flaneur2020/archex/archex"
	"github.com/flaneur2020/archex/archex/hexcodec"
	"github.com/flaneur2020/archex/archex/ledger"
)

// RunFunc performs one extraction.
type RunFunc func(ctx context.Context, cfg *archex.Config) (*archex.ExtractStats, error)

var errQuit = errors.New("quit")

const helpText = `Commands:
  set input <path|url>       archive to extract
  set output <dir>           output directory
  set verbose <0|1|2>        log verbosity
  set workers <n>            parallel transform workers
  set format <auto|raw|dump> input text format
  set transform <command>    external transform command ("" for built-in)
  show                       print the current settings
  ls [dir]                   list files (default: output directory)
  extract                    run the extraction
  metadata                   print the metadata of the last extraction
  history                    print command history
  help                       print this help
  exit, quit                 leave the shell`

// Shell reads commands line by line and applies them to its config.
type Shell struct {
	cfg     *archex.Config
	in      *bufio.Reader
	out     io.Writer
	run     RunFunc
	history []string
}

// New returns a shell working on a copy of cfg.
func New(cfg *archex.Config, in io.Reader, out io.Writer) *Shell {
	c := *cfg
	if c.Console == nil {
		c.Console = out
	}
	return &Shell{
		cfg: &c,
		in:  bufio.NewReader(in),
		out: out,
		run: archex.Run,
	}
}

// SetRunFunc replaces the function used by the extract command.
func (s *Shell) SetRunFunc(fn RunFunc) {
	s.run = fn
}

// Config returns the shell's current settings.
func (s *Shell) Config() *archex.Config {
	return s.cfg
}

// History returns the commands entered so far.
func (s *Shell) History() []string {
	return append([]string(nil), s.history...)
}

// Loop runs until exit, quit or the end of input.
func (s *Shell) Loop(ctx context.Context) error {
	fmt.Fprintln(s.out, "Type commands. 'help' for information or 'exit' to quit.")
	for {
		fmt.Fprint(s.out, "archex> ")

		line, err := s.in.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			if err == io.EOF {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// Execute runs a single command line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	s.history = append(s.history, line)

	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "set":
		return s.set(args[1:])
	case "show":
		s.show()
	case "ls":
		dir := s.cfg.OutputDir
		if len(args) > 1 {
			dir = args[1]
		}
		return s.list(dir)
	case "extract":
		return s.extract(ctx)
	case "metadata":
		return s.metadata()
	case "history":
		for i, h := range s.history {
			fmt.Fprintf(s.out, "%4d  %s\n", i+1, h)
		}
	case "exit", "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type 'help' for a list", args[0])
	}
	return nil
}

func (s *Shell) set(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: set <input|output|verbose|workers|format|transform> <value>")
	}
	key := args[0]
	if key != "transform" && len(args) != 2 {
		return fmt.Errorf("usage: set %s <value>", key)
	}

	switch key {
	case "input":
		s.cfg.Input = args[1]
	case "output":
		s.cfg.OutputDir = args[1]
	case "verbose":
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 || v > 2 {
			return fmt.Errorf("verbose must be 0, 1 or 2")
		}
		s.cfg.Verbose = v
	case "workers":
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("workers must be a positive integer")
		}
		s.cfg.Workers = n
	case "format":
		if _, err := hexcodec.ParseMode(args[1], "archive.hex"); err != nil {
			return err
		}
		s.cfg.Format = args[1]
	case "transform":
		s.cfg.TransformCommand = shellquote.Join(args[1:]...)
		if len(args) == 2 && args[1] == "" {
			s.cfg.TransformCommand = ""
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	fmt.Fprintf(s.out, "%s updated\n", key)
	return nil
}

func (s *Shell) show() {
	transform := s.cfg.TransformCommand
	if transform == "" {
		transform = "(built-in)"
	}
	fmt.Fprintf(s.out, "input:     %s\n", s.cfg.Input)
	fmt.Fprintf(s.out, "output:    %s\n", s.cfg.OutputDir)
	fmt.Fprintf(s.out, "verbose:   %d\n", s.cfg.Verbose)
	fmt.Fprintf(s.out, "workers:   %d\n", s.cfg.Workers)
	fmt.Fprintf(s.out, "format:    %s\n", s.cfg.Format)
	fmt.Fprintf(s.out, "transform: %s\n", transform)
}

func (s *Shell) list(dir string) error {
	var count int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintf(s.out, "%10d  %s\n", info.Size(), filepath.ToSlash(rel))
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	fmt.Fprintf(s.out, "\nTotal: %d files\n", count)
	return nil
}

func (s *Shell) extract(ctx context.Context) error {
	if s.cfg.Input == "" {
		return fmt.Errorf("no input set, use 'set input <path>'")
	}
	stats, err := s.run(ctx, s.cfg)
	if stats != nil {
		fmt.Fprintf(s.out, "Extracted %d of %d records (%d failed, %d skipped, %d bytes) to %s\n",
			stats.ExtractedRecords, stats.TotalRecords, stats.FailedRecords, stats.SkippedRecords,
			stats.ExtractedBytes, s.cfg.OutputDir)
	}
	return err
}

func (s *Shell) metadata() error {
	path := filepath.Join(s.cfg.OutputDir, ledger.FileName)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("no metadata in %s: %w", s.cfg.OutputDir, err)
	}
	defer f.Close()

	rows, err := ledger.Read(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%-40s %12s %12s  %s\n", "NAME", "ORIGINAL", "PROCESSED", "METHOD")
	for _, row := range rows {
		fmt.Fprintf(s.out, "%-40s %12d %12d  %s\n", row.Name, row.OriginalSize, row.ProcessedSize, row.Method)
	}
	return nil
}
