package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"agmerge/internal/diag"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(diag.ExitCode(err))
	}
}
