// Command csvload runs the registered CSV file loaders from the command line
// and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvload/internal/core"
)

// Exit codes.
const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
	exitData     = 3
	exitDB       = 4
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode picks the process exit code for err. Run errors without an
// explicit code are classified by kind.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch core.KindOf(err) {
	case core.KindDataFormat, core.KindValidation, core.KindEncoding, core.KindFile, core.KindMissingContext:
		return exitData
	case core.KindStore:
		return exitDB
	}
	return exitInternal
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "csvload:", err)
		os.Exit(exitCode(err))
	}
}
