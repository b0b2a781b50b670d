// Package renderer turns one chapter source into a rendered page.
//
// The page renderer is an opaque collaborator from the pipeline's point of
// view: it receives a chapter path and returns a complete standalone HTML
// page. The assembler is responsible for stripping the per-page envelope
// before merging.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/bookbinder/internal/scanner"
)

// RenderedPage is the render result for one chapter. Err is set when
// rendering failed; the page is then flagged at the assembly boundary rather
// than aborting the run.
type RenderedPage struct {
	Path            string
	ContentFragment []byte
	Err             error
}

// PageRenderer renders a single chapter document, identified by its
// slash-separated path relative to the content root.
type PageRenderer interface {
	RenderPage(ctx context.Context, chapterPath string) ([]byte, error)
}

// GoldmarkRenderer is the built-in markdown page renderer. It emits a full
// standalone page (envelope included) the way an external renderer would.
type GoldmarkRenderer struct {
	ContentDir string
	titles     scanner.TitleExtractor
}

// NewGoldmarkRenderer creates a renderer reading sources under contentDir.
func NewGoldmarkRenderer(contentDir string) *GoldmarkRenderer {
	return &GoldmarkRenderer{
		ContentDir: contentDir,
		titles:     scanner.MarkdownTitleExtractor{},
	}
}

// RenderPage implements PageRenderer.
func (r *GoldmarkRenderer) RenderPage(ctx context.Context, chapterPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := filepath.Join(r.ContentDir, filepath.FromSlash(chapterPath))
	src, err := os.ReadFile(abs) // #nosec G304 - chapterPath comes from the scanned tree
	if err != nil {
		return nil, fmt.Errorf("read chapter source: %w", err)
	}

	// A fresh goldmark instance per page keeps RenderPage safe under the
	// concurrent fan-out in RenderAll.
	var body bytes.Buffer
	if err := goldmark.New().Convert(src, &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	title, ok := r.titles.ExtractTitle(src)
	if !ok {
		title = scanner.TitleFromFilename(filepath.Base(chapterPath))
	}

	return wrapStandalonePage(title, body.Bytes()), nil
}

// wrapStandalonePage adds the per-page envelope a standalone renderer would
// emit: doctype, head with title/stylesheet/script references, body. All of
// it except the body content is stripped again during assembly.
func wrapStandalonePage(title string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	buf.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(title))
	buf.WriteString("<link rel=\"stylesheet\" href=\"page.css\">\n")
	buf.WriteString("<script src=\"page.js\"></script>\n")
	buf.WriteString("</head>\n<body>\n")
	buf.Write(body)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}
