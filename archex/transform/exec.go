package transform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/kballard/go-shellquote"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
	"github.com/flaneur2020/archex/archex/logger"
)

// maxOutputLine bounds one line of transform command output.
const maxOutputLine = 1024 * 1024

// Exec runs an external program once per record:
//
//	<command...> <method> <payload file> <destination> <original size>
//
// The payload file holds the Fernet key segment (if any) followed by the
// data. Every line the program prints is forwarded to the logger, and a
// non-zero exit status is a transform failure.
type Exec struct {
	command []string
	tempDir string
	log     *logger.Logger
}

var _ Transformer = (*Exec)(nil)

// NewExec parses command with shell quoting rules, e.g.
// "python3 process_data.py".
func NewExec(command string, log *logger.Logger) (*Exec, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid transform command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty transform command")
	}
	if log == nil {
		log = logger.Default()
	}
	return &Exec{
		command: args,
		log:     log,
	}, nil
}

// SetTempDir sets where payload files are staged; "" uses os.TempDir.
func (e *Exec) SetTempDir(dir string) {
	e.tempDir = dir
}

// Transform stages the payload, runs the command and waits for it.
func (e *Exec) Transform(ctx context.Context, req *Request) (*Result, error) {
	tmpPath, err := e.stage(req)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	args := append(append([]string(nil), e.command[1:]...),
		strconv.Itoa(int(req.Method)),
		tmpPath,
		req.DestPath,
		strconv.FormatUint(req.OriginalSize, 10),
	)
	cmd := exec.CommandContext(ctx, e.command[0], args...)

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, failed(req, err)
	}
	cmd.Stderr = cmd.Stdout

	e.log.Debug("Running %s for %s", e.command[0], req.Name)
	if err := cmd.Start(); err != nil {
		return nil, failed(req, err)
	}

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		e.log.Info("%s", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		e.log.Warn("Discarding output of %s for %s: %v", e.command[0], req.Name, err)
		// The pipe must be drained or the command blocks on write.
		io.Copy(io.Discard, out)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, archexerrors.ErrTransformFailed.
				WithMessage("transform command failed").
				WithDetail("name", req.Name).
				WithDetail("exitCode", exitErr.ExitCode()).
				WithCause(err)
		}
		return nil, failed(req, err)
	}

	st, err := os.Stat(req.DestPath)
	if err != nil {
		return nil, failed(req, fmt.Errorf("transform command wrote no output: %w", err))
	}
	return &Result{Written: st.Size()}, nil
}

func (e *Exec) stage(req *Request) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "archex-*.bin")
	if err != nil {
		return "", archexerrors.ErrIO.WithMessage("failed to create temp file").WithCause(err)
	}
	name := f.Name()

	_, err = f.Write(req.Key)
	if err == nil {
		_, err = f.Write(req.Data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", archexerrors.ErrIO.WithMessage("failed to write temp file").
			WithDetail("path", name).
			WithCause(err)
	}
	return name, nil
}
