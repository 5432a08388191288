package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledgerbench/ledgerbench/internal/runner"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(runner.ExitUsage)
		}
		os.Exit(runner.ExitFatal)
	}
}
