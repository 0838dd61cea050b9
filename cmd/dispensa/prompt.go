package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// prompt asks yes/no questions on the terminal. Without a terminal every
// prompt is declined unless --yes was given.
type prompt struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	yes         bool
}

func newPrompt(in *os.File, out io.Writer, yes bool) *prompt {
	return &prompt{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
		yes:         yes,
	}
}

// Confirm implements core.Confirmer.
func (p *prompt) Confirm(ctx context.Context, text string) (bool, error) {
	if p.yes {
		return true, nil
	}
	if !p.interactive {
		slog.Warn("confirmation declined, stdin is not a terminal (use --yes)", "prompt", text)
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [s/N] ", text)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "si", "sì", "y", "yes":
		return true
	}
	return false
}

// stderrNotifier prints reported failures.
type stderrNotifier struct{}

func (stderrNotifier) Notify(_ context.Context, err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
