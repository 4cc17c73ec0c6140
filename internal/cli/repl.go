package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/models"
)

const (
	banner = "Agent started. Type 'exit' to quit."
	prompt = "User: "
)

// Asker answers a query within a conversation.
type Asker interface {
	Ask(ctx context.Context, mem *memory.Memory, query string) (*models.Answer, error)
}

// REPL is the interactive chat loop. One REPL is one conversation.
type REPL struct {
	asker      Asker
	memory     *memory.Memory
	maxSources int
	logger     *zap.Logger
}

// NewREPL creates a chat loop that prints at most maxSources sources per answer.
func NewREPL(asker Asker, mem *memory.Memory, maxSources int, logger *zap.Logger) *REPL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REPL{asker: asker, memory: mem, maxSources: maxSources, logger: logger}
}

// Run reads questions from in and writes answers to out until "exit" or "quit"
// (any case), end of input, or ctx is done. Cancelling ctx while waiting for input
// ends the loop cleanly. A failed question prints an error and the loop continues.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner)
	lines, reader := readLines(in)
	defer close(reader.stop)
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out)
			return nil
		}
		fmt.Fprintf(out, "\n%s", prompt)
		var text string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-reader.err
			}
			text = l
		}
		line := strings.TrimSpace(text)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := r.asker.Ask(ctx, r.memory, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			r.logger.Debug("question failed", zap.Error(err))
			fmt.Fprintf(out, "\nError: %s\n", userMessage(err))
			continue
		}
		_ = WriteAnswer(out, answer, OutputText, r.maxSources)
	}
}

type lineReader struct {
	stop chan struct{}
	err  chan error
}

// readLines scans in on its own goroutine so the loop can wait on ctx at the same time.
// The scanner goroutine exits at end of input or at the next line after stop is closed.
func readLines(in io.Reader) (<-chan string, *lineReader) {
	lines := make(chan string)
	lr := &lineReader{stop: make(chan struct{}), err: make(chan error, 1)}
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-lr.stop:
				return
			}
		}
		lr.err <- scanner.Err()
	}()
	return lines, lr
}

func userMessage(err error) string {
	var capErr *models.CapabilityError
	switch {
	case errors.As(err, &capErr):
		return fmt.Sprintf("%v, please try again", capErr.Capability)
	case errors.Is(err, models.ErrIndexNotFound), errors.Is(err, models.ErrIndexEmpty):
		return "the document index is not available; run 'tanya index' first"
	default:
		return err.Error()
	}
}
