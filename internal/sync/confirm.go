package sync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer gates destructive remote operations behind an explicit
// yes/no answer. The engine only ever calls it from the sequential sync
// loop, never from a worker goroutine.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmerFunc adapts a plain function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// ConsoleConfirmer prompts on out and reads answers line by line from
// in. Anything other than a y/yes or n/no answer repeats the prompt.
type ConsoleConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (c *ConsoleConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		fmt.Fprintf(c.out, "%s [y/n]: ", prompt)

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
