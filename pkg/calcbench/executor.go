package calcbench

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Stream identifies the output stream a line of process output was read from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// A LineHandler receives process output line by line. Calls to a LineHandler are never concurrent.
type LineHandler func(stream Stream, line string)

// A Command is an external program invocation.
type Command struct {
	Name string   // The program to run
	Args []string // Its arguments
	Dir  string   // The working directory, or the current one if empty
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Name, c.Args[0])
}

// An Executor spawns external commands.
//
// Execute runs the command to completion, passing every output line to lines (which may be nil).
// A nonzero exit code is not an error; the returned error is only non-nil if the command could not be run at all.
type Executor interface {
	Execute(ctx context.Context, cmd Command, lines LineHandler) (int, error)
}

// SystemExecutor runs commands as child processes of the current process.
type SystemExecutor struct{}

// maxLineLength is the longest line of output a SystemExecutor passes on without splitting it
const maxLineLength = 1024 * 1024

func (SystemExecutor) Execute(ctx context.Context, c Command, lines LineHandler) (int, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}

	if err := cmd.Start(); err != nil {
		return -1, errors.Join(fmt.Errorf("failed to start %s", c), err)
	}

	// Serialize handler calls across both streams
	var mu sync.Mutex
	emit := func(stream Stream, line string) {
		if lines == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		lines(stream, line)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, stdout, Stdout, emit)
	go scanLines(&wg, stderr, Stderr, emit)
	// Pipes have to be drained before Wait closes them
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.Join(fmt.Errorf("failed to wait for %s", c), err)
	}
	return 0, nil
}

func scanLines(wg *sync.WaitGroup, r io.Reader, stream Stream, emit LineHandler) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		emit(stream, scanner.Text())
	}
	// Drain whatever is left if the scanner gave up on an overlong line
	io.Copy(io.Discard, r)
}
