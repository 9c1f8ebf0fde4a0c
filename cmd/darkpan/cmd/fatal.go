package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"golang.org/x/sys/unix"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// infoLogger wraps informative messages to os.Stdout without cluttering expected output in tests.
	// To be used instead on fmt.Printf(os.Stdout, ...)
	infoLogger = log.New(os.Stdout, "", 0)
)

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
	} else {
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}

// fatalOnRepoError exits with a status code reflecting the kind of repository error
func fatalOnRepoError(msg string, err error) {
	switch {
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrNotInitialized):
		wrapFatalWithCodef(int(unix.ENOENT), "%s: %v", msg, err)
	case errors.Is(err, status.ErrConflict), errors.Is(err, status.ErrAlreadyInitialized):
		wrapFatalWithCodef(int(unix.EEXIST), "%s: %v", msg, err)
	case errors.Is(err, status.ErrInvalidInput):
		wrapFatalWithCodef(int(unix.EINVAL), "%s: %v", msg, err)
	case errors.Is(err, status.ErrPartialIngestFailure):
		wrapFatalWithCodef(int(unix.EIO), "%s: %v\nthe archive may be placed later with: darkpan recover", msg, err)
	case errors.Is(err, status.ErrConsistencyViolation):
		wrapFatalln("the repository is inconsistent, this requires an operator: "+msg, err)
	default:
		wrapFatalln(msg, err)
	}
}
