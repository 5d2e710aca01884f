package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(execute(context.Background()))
}

// execute runs the command tree and maps the outcome to an exit code. A
// cancelled run (Ctrl-C during a long command) exits non-zero without noise.
func execute(ctx context.Context) int {
	err := newRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
		return 1
	}
}
