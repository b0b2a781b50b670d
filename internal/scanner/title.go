package scanner

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TitleExtractor is the pluggable heading-detection strategy. Alternative
// source markups supply their own implementation without touching the
// traversal logic.
type TitleExtractor interface {
	// ExtractTitle returns the document's display title and whether one was
	// found. A false return means the caller should derive a title elsewhere
	// (e.g. from the filename).
	ExtractTitle(content []byte) (string, bool)
}

// MarkdownTitleExtractor finds the first top-level (level 1) heading via the
// goldmark AST. Parsing instead of line matching keeps headings inside code
// fences from being mistaken for titles.
type MarkdownTitleExtractor struct{}

// ExtractTitle implements TitleExtractor.
func (MarkdownTitleExtractor) ExtractTitle(content []byte) (string, bool) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(content))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(headingText(h, content))
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})

	return title, title != ""
}

// headingText collects the plain text of a heading's inline children.
func headingText(n gmast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			sb.Write(t.Value(src))
			continue
		}
		sb.WriteString(headingText(c, src))
	}
	return sb.String()
}
