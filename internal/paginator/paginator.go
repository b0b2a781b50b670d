// Package paginator converts the combined document into the fixed-layout
// "book" artifact. The real conversion engine is an opaque external command;
// this package only knows how to invoke it.
package paginator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/bookbinder/internal/config"
	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
)

// Paginator converts a combined HTML document file into a book file.
type Paginator interface {
	Paginate(ctx context.Context, inputPath, outputPath string) error
}

// ExecPaginator runs a configured external command. The argv may contain
// {input} and {output} placeholders, substituted per invocation.
type ExecPaginator struct {
	Command []string
}

// Paginate implements Paginator.
func (p *ExecPaginator) Paginate(ctx context.Context, inputPath, outputPath string) error {
	if len(p.Command) == 0 {
		return berrors.New(berrors.CategoryPaginate, berrors.SeverityFatal, "paginator command not configured")
	}

	argv := make([]string, len(p.Command))
	for i, arg := range p.Command {
		arg = strings.ReplaceAll(arg, "{input}", inputPath)
		arg = strings.ReplaceAll(arg, "{output}", outputPath)
		argv[i] = arg
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 - argv is operator-configured
	out, err := cmd.CombinedOutput()
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryPaginate, berrors.SeverityFatal, "paginator command failed").
			WithContext("command", argv[0]).
			WithContext("output", strings.TrimSpace(string(out)))
	}
	return nil
}

// CopyPaginator is the fallback when no external command is configured: the
// combined HTML document itself is the book.
type CopyPaginator struct{}

// Paginate implements Paginator by copying input to output.
func (CopyPaginator) Paginate(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(inputPath) // #nosec G304 - pipeline-owned paths
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryPaginate, berrors.SeverityFatal, "open combined document")
	}
	defer in.Close()

	out, err := os.Create(outputPath) // #nosec G304 - pipeline-owned paths
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryPaginate, berrors.SeverityFatal, "create book file")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return berrors.Wrap(err, berrors.CategoryPaginate, berrors.SeverityFatal, "write book file")
	}
	return out.Close()
}

// ForConfig selects the paginator implementation for the configuration.
func ForConfig(pc config.PaginatorConfig) (Paginator, error) {
	if len(pc.Command) == 0 {
		return CopyPaginator{}, nil
	}
	if len(pc.Command) < 2 {
		return nil, berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
			fmt.Sprintf("paginator command too short: %v", pc.Command))
	}
	return &ExecPaginator{Command: pc.Command}, nil
}
