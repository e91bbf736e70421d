// Package shell is an interactive prompt over one semaphore, used to poke at
// a ping-pong stuck on a handshake from a terminal.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
)

var ErrWriteLineFailed = errors.New("write line failed")

const helpText = `commands:
  acquire [timeout]  take one permit, waiting up to timeout (Ctrl-C interrupts)
  try                take one permit if available
  release [n]        give back n permits (default 1)
  value              print the current count
  help               print this help
  exit               leave the shell
`

// LineReader - the part of *readline.Instance the shell uses.
type LineReader interface {
	Readline() (string, error)
	Write(b []byte) (int, error)
	Close() error
}

type valuer interface {
	Value() (int64, error)
}

// Shell - prompt bound to one semaphore.
type Shell struct {
	sem ipcsem.Semaphore

	// interrupt derives the context of one acquire, cancelled by Ctrl-C.
	interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

// New - creates a shell over sem.
func New(sem ipcsem.Semaphore) *Shell {
	return &Shell{
		sem: sem,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// NewReadline - readline instance with the shell prompt and command completion.
func NewReadline(prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("acquire"),
			readline.PcItem("try"),
			readline.PcItem("release"),
			readline.PcItem("value"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
}

// Run - reads commands from rl until exit, EOF, interrupt at the prompt or ctx is done.
func (s *Shell) Run(ctx context.Context, rl LineReader) error {
	defer rl.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read line: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}

		out, err := s.Exec(ctx, fields[0], fields[1:]...)
		if err != nil {
			if errors.Is(err, ipcsem.ErrClosed) || errors.Is(err, ipcsem.ErrCorruptState) {
				return err
			}
			out = "error: " + err.Error()
		}

		if _, err = rl.Write([]byte(out + "\n")); err != nil {
			return errors.Join(ErrWriteLineFailed, err)
		}
	}
}

// Exec - runs one command and returns its output line.
func (s *Shell) Exec(ctx context.Context, cmd string, args ...string) (string, error) {
	switch cmd {
	case "acquire":
		return s.acquire(ctx, args)
	case "try":
		ok, err := s.sem.TryAcquire()
		if err != nil {
			return "", err
		}
		if !ok {
			return "no permit available", nil
		}
		return "acquired", nil
	case "release":
		return s.release(args)
	case "value":
		v, ok := s.sem.(valuer)
		if !ok {
			return "", fmt.Errorf("%w: value", ipcsem.ErrNotSupported)
		}
		n, err := v.Value()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case "help":
		return strings.TrimSuffix(helpText, "\n"), nil
	}

	return "", fmt.Errorf("unknown command %q, try help", cmd)
}

func (s *Shell) acquire(ctx context.Context, args []string) (string, error) {
	if len(args) > 1 {
		return "", errors.New("usage: acquire [timeout]")
	}

	ctx, cancel := s.interrupt(ctx)
	defer cancel()

	if len(args) == 1 {
		timeout, err := time.ParseDuration(args[0])
		if err != nil {
			return "", fmt.Errorf("parse timeout: %w", err)
		}

		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	start := time.Now()
	if err := s.sem.AcquireContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timed out", nil
		}
		if errors.Is(err, context.Canceled) {
			return "interrupted", nil
		}
		return "", err
	}

	waited := time.Since(start)
	logger.Debug("shell acquire", zap.Duration("waited", waited))

	return fmt.Sprintf("acquired after %s", waited.Round(time.Microsecond)), nil
}

func (s *Shell) release(args []string) (string, error) {
	n := 1
	if len(args) > 1 {
		return "", errors.New("usage: release [n]")
	}

	if len(args) == 1 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n <= 0 {
			return "", fmt.Errorf("invalid count %q", args[0])
		}
	}

	for i := 0; i < n; i++ {
		if err := s.sem.Release(); err != nil {
			return "", fmt.Errorf("released %d of %d: %w", i, n, err)
		}
	}

	return fmt.Sprintf("released %d", n), nil
}
