package errors

import (
	"fmt"
	"log/slog"
)

// ExitPartial is the distinguished exit code for a run that produced an
// artifact but had non-fatal omissions (e.g. a chapter that failed to render).
const ExitPartial = 3

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if be, ok := err.(*BookbinderError); ok {
		return a.exitCodeFromBookbinder(be)
	}

	return 1
}

// exitCodeFromBookbinder maps BookbinderError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromBookbinder(err *BookbinderError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryScan, CategoryManifest:
		return 9 // Content discovery error
	case CategoryRender, CategoryAssemble, CategoryPaginate, CategoryFileSystem:
		return 11 // Build error
	case CategoryPublish:
		return 12 // Archive error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// Report logs an error with stage context before the process exits.
func (a *CLIErrorAdapter) Report(err error) {
	if err == nil {
		return
	}
	if be, ok := err.(*BookbinderError); ok {
		a.logger.Error(be.Message,
			slog.String("stage", string(be.Category)),
			slog.String("severity", string(be.Severity)),
			slog.Any("context", be.Context),
			slog.String("error", fmt.Sprint(be.Cause)))
		return
	}
	a.logger.Error("run failed", slog.String("error", err.Error()))
}
