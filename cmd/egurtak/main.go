package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hitoshi/egurtak/internal/app"
)

func main() {
	err := app.Run(os.Stdout, os.Stderr, os.Args[1:])
	if err == nil {
		return
	}
	if errors.Is(err, app.ErrReported) {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	if app.IsUsageError(err) {
		os.Exit(2)
	}
	os.Exit(1)
}
