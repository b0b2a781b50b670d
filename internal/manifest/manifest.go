// Package manifest flattens a chapter tree into the ordered table of
// contents that drives assembly. The manifest is the single source of truth
// for chapter order: downstream stages never re-derive it.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
	"git.home.luguber.info/inful/bookbinder/internal/scanner"
)

// Entry is one row of the flattened table of contents.
type Entry struct {
	Title string `json:"title"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
	// Section marks directory-level headings; they carry no page content.
	Section bool `json:"section,omitempty"`
}

// Manifest is the pre-order flattening of a chapter tree plus the original
// tree for nested TOC rendering.
type Manifest struct {
	Entries []Entry                `json:"entries"`
	Tree    []*scanner.ChapterNode `json:"-"`
}

// Build flattens a chapter tree pre-order: every parent before its children,
// children in their scanner-assigned sibling order. Build is pure; identical
// trees produce identical manifests.
func Build(tree []*scanner.ChapterNode) *Manifest {
	m := &Manifest{Tree: tree}
	m.Entries = flatten(tree, 0, nil)
	return m
}

func flatten(nodes []*scanner.ChapterNode, depth int, acc []Entry) []Entry {
	for _, n := range nodes {
		acc = append(acc, Entry{
			Title:   n.Title,
			Path:    n.Path,
			Depth:   depth,
			Section: n.IsDir,
		})
		acc = flatten(n.Children, depth+1, acc)
	}
	return acc
}

// Leaves returns only the content-bearing entries, in manifest order.
func (m *Manifest) Leaves() []Entry {
	leaves := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if !e.Section {
			leaves = append(leaves, e)
		}
	}
	return leaves
}

// Serialize renders the manifest as a plain ordered list, one line per entry,
// nesting by two-space indentation. The format is human-diffable and stable:
// identical manifests serialize byte-identically.
func (m *Manifest) Serialize() []byte {
	var buf bytes.Buffer
	for _, e := range m.Entries {
		buf.WriteString(strings.Repeat("  ", e.Depth))
		buf.WriteString("- ")
		buf.WriteString(e.Title)
		if e.Section {
			buf.WriteString("/")
		}
		buf.WriteString(" -> ")
		buf.WriteString(e.Path)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ToJSON serializes the flat entry list for machine consumers.
func (m *Manifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// WriteFile persists the list serialization; the manifest is publishable on
// its own, independent of whether assembly succeeds.
func (m *Manifest) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return berrors.Wrap(err, berrors.CategoryManifest, berrors.SeverityFatal, "create manifest directory")
	}
	if err := os.WriteFile(path, m.Serialize(), 0o644); err != nil {
		return berrors.Wrap(err, berrors.CategoryManifest, berrors.SeverityFatal, "write manifest").
			WithContext("path", path)
	}
	return nil
}
