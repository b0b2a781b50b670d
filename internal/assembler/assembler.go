// Package assembler merges independently rendered pages into one combined
// document: a title/TOC section followed by each chapter's content in
// manifest order, wrapped once in a single outer envelope.
//
// The manifest is authoritative for ordering; the assembler never re-derives
// it. The core guarantee: the combined document contains one contiguous
// section per leaf manifest entry, in manifest order, minus flagged
// omissions.
package assembler

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/bookbinder/internal/config"
	"git.home.luguber.info/inful/bookbinder/internal/logfields"
	"git.home.luguber.info/inful/bookbinder/internal/manifest"
	"git.home.luguber.info/inful/bookbinder/internal/renderer"
)

// Options configures assembly.
type Options struct {
	ProductTitle string
	MissingPage  config.MissingPagePolicy
}

// Warning records a non-fatal assembly anomaly: a missing or failed render,
// or a duplicate manifest path.
type Warning struct {
	Path   string
	Reason string
}

// Result is the combined document plus accounting for the run summary.
type Result struct {
	Document []byte
	// Sections counts chapter content sections actually included. Invariant:
	// Sections == leaf manifest entries - Omitted - duplicates dropped.
	Sections int
	// Omitted counts chapters flagged as missing or failed. Placeholder
	// sections still count as omissions; they carry no chapter content.
	Omitted  int
	Warnings []Warning
}

// Assemble merges rendered pages in manifest order. It never aborts on a
// missing or failed page: a partial book is more useful than none.
func Assemble(m *manifest.Manifest, pages map[string]*renderer.RenderedPage, opts Options) (*Result, error) {
	if opts.MissingPage == "" {
		opts.MissingPage = config.MissingPagePlaceholder
	}
	if opts.ProductTitle == "" {
		opts.ProductTitle = "Book"
	}

	res := &Result{}
	var body bytes.Buffer

	body.WriteString(renderTOC(m))

	seen := make(map[string]bool, len(m.Entries))
	for _, entry := range m.Entries {
		if seen[entry.Path] {
			// Scanner invariants make this unreachable, but a corrupted
			// manifest must not silently duplicate content.
			slog.Warn("Duplicate manifest path dropped", logfields.Chapter(entry.Path))
			res.Warnings = append(res.Warnings, Warning{Path: entry.Path, Reason: "duplicate manifest path"})
			continue
		}
		seen[entry.Path] = true

		if entry.Section {
			fmt.Fprintf(&body, "<h2 class=\"part-heading\" id=%q>%s</h2>\n",
				anchorID(entry.Path), html.EscapeString(entry.Title))
			continue
		}

		page, ok := pages[entry.Path]
		switch {
		case !ok:
			res.Omitted++
			res.Warnings = append(res.Warnings, Warning{Path: entry.Path, Reason: "no rendered page"})
			writeMissingSection(&body, entry, "page was not rendered", opts.MissingPage)
		case page.Err != nil:
			res.Omitted++
			res.Warnings = append(res.Warnings, Warning{Path: entry.Path, Reason: "render failed: " + page.Err.Error()})
			writeMissingSection(&body, entry, "chapter failed to render", opts.MissingPage)
		default:
			fragment, err := ExtractFragment(page.ContentFragment)
			if err != nil {
				res.Omitted++
				res.Warnings = append(res.Warnings, Warning{Path: entry.Path, Reason: "unusable fragment: " + err.Error()})
				writeMissingSection(&body, entry, "rendered page was unusable", opts.MissingPage)
				continue
			}
			res.Sections++
			fmt.Fprintf(&body, "<section class=\"chapter\" id=%q data-source-path=%q>\n",
				anchorID(entry.Path), entry.Path)
			body.Write(fragment)
			body.WriteString("\n</section>\n")
		}
	}

	res.Document = wrapEnvelope(opts.ProductTitle, body.Bytes())
	return res, nil
}

// writeMissingSection emits the configured stand-in for an omitted chapter.
func writeMissingSection(buf *bytes.Buffer, entry manifest.Entry, reason string, policy config.MissingPagePolicy) {
	if policy == config.MissingPageOmit {
		return
	}
	fmt.Fprintf(buf, "<section class=\"chapter placeholder\" id=%q data-source-path=%q>\n",
		anchorID(entry.Path), entry.Path)
	fmt.Fprintf(buf, "<h1>%s</h1>\n<p class=\"omission\">%s</p>\n",
		html.EscapeString(entry.Title), html.EscapeString(reason))
	buf.WriteString("</section>\n")
}

// renderTOC synthesizes the leading table of contents: directory entries as
// non-linked section headers, leaf chapters as links to their sections.
// Nested lists are emitted inside the parent entry's <li>, so every <ul> has
// only <li> children. Entries stay open until the next sibling or the end of
// their level, because a deeper entry nests inside them.
func renderTOC(m *manifest.Manifest) string {
	var sb strings.Builder
	sb.WriteString("<nav class=\"toc\">\n<h2>Contents</h2>\n<ul>\n")

	depth := 0
	open := []bool{false} // open[d]: an <li> at depth d awaits its </li>
	for _, entry := range m.Entries {
		for depth < entry.Depth {
			sb.WriteString("<ul>\n")
			depth++
			open = append(open, false)
		}
		for depth > entry.Depth {
			if open[depth] {
				sb.WriteString("</li>\n")
			}
			sb.WriteString("</ul>\n")
			open = open[:depth]
			depth--
		}
		if open[depth] {
			sb.WriteString("</li>\n")
		}
		if entry.Section {
			fmt.Fprintf(&sb, "<li class=\"section\">%s\n", html.EscapeString(entry.Title))
		} else {
			fmt.Fprintf(&sb, "<li><a href=\"#%s\">%s</a>",
				anchorID(entry.Path), html.EscapeString(entry.Title))
		}
		open[depth] = true
	}
	for depth >= 0 {
		if open[depth] {
			sb.WriteString("</li>\n")
		}
		if depth > 0 {
			sb.WriteString("</ul>\n")
		}
		depth--
	}

	sb.WriteString("</ul>\n</nav>\n")
	return sb.String()
}

var anchorUnsafe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// anchorID derives a stable fragment identifier from a chapter path.
func anchorID(path string) string {
	return "sec-" + strings.Trim(anchorUnsafe.ReplaceAllString(path, "-"), "-")
}

// sharedStyle is the single stylesheet carried by the combined document's
// outer envelope. Per-page styling was stripped with the page envelopes.
const sharedStyle = `body { font-family: serif; margin: 2rem auto; max-width: 48rem; }
nav.toc { page-break-after: always; }
nav.toc li.section { font-weight: bold; list-style: none; margin-top: 0.5rem; }
h2.part-heading { page-break-before: always; border-bottom: 1px solid #888; }
section.chapter { page-break-before: always; }
section.placeholder { color: #888; border: 1px dashed #888; padding: 1rem; }`

// wrapEnvelope wraps the assembled body once in the outer document envelope.
func wrapEnvelope(title string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&buf, "<style>\n%s\n</style>\n", sharedStyle)
	buf.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&buf, "<header class=\"book-title\"><h1>%s</h1></header>\n", html.EscapeString(title))
	buf.Write(body)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}
