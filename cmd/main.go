package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Exit codes by error class.
const (
	exitOK = iota
	exitError
	exitUsage
	exitAuth
	exitNotFound
	exitConflict
	exitRemote
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.NewLogger(os.Stderr)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		logger.Error(err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode classifies err for the shell.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var validation *shared.ValidationError
	var conflict *shared.ConflictError
	var remote *shared.RemoteServiceError
	switch {
	case errors.As(err, &validation),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidFlag),
		errors.Is(err, shared.ErrInvalidConfig),
		errors.Is(err, shared.ErrMissingCredentials):
		return exitUsage
	case errors.As(err, &conflict):
		return exitConflict
	case errors.As(err, &remote):
		return exitRemote
	}

	switch shared.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return exitAuth
	case http.StatusNotFound:
		return exitNotFound
	case http.StatusBadRequest:
		return exitUsage
	}
	return exitError
}
