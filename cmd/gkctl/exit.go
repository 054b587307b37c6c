package main

import (
	"errors"
	"fmt"

	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/schema"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"github.com/spf13/cobra"
)

const (
	exitOK         = 0
	exitUsage      = 2
	exitValidation = 3
	exitIO         = 4
)

type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

var validationErrors = []error{
	ingest.ErrSealedDate,
	ingest.ErrInvalidDate,
	schema.ErrNoCodeColumn,
	schema.ErrNoApplicantsColumn,
	sheet.ErrEmptyTable,
	sheet.ErrUnsupportedFormat,
}

// exitCode maps an error to the process exit status. Anything that is neither a usage nor
// a validation error is an I/O or database failure.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return exitValidation
		}
	}
	return exitIO
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("expected %s", what)
		}
		return nil
	}
}
