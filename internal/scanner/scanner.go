// Package scanner discovers chapter documents under a content root and
// arranges them into a deterministic, ordered tree.
//
// Only markdown files count as chapters; directories containing at least one
// chapter (directly or transitively) become container nodes. Ordering is a
// total order over siblings: numeric filename prefixes first (by value),
// everything else lexically, ties broken by path.
package scanner

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
	"git.home.luguber.info/inful/bookbinder/internal/logfields"
)

// ChapterNode is one content unit: a leaf chapter document or a directory of
// sub-chapters. Path is slash-separated and relative to the content root,
// unique within the tree.
type ChapterNode struct {
	Path     string
	Title    string
	OrderKey OrderKey
	Children []*ChapterNode
	IsDir    bool
}

// OrderKey is the sortable sibling key derived from a file or directory name.
type OrderKey struct {
	Numeric    int
	HasNumeric bool
	Lexical    string
}

// Less defines the total sibling order: numeric-prefixed names first by
// value, then unprefixed names lexically; all ties fall back to the lexical
// key so two runs over an unchanged tree order identically.
func (k OrderKey) Less(other OrderKey) bool {
	switch {
	case k.HasNumeric && other.HasNumeric:
		if k.Numeric != other.Numeric {
			return k.Numeric < other.Numeric
		}
		return k.Lexical < other.Lexical
	case k.HasNumeric:
		return true
	case other.HasNumeric:
		return false
	default:
		return k.Lexical < other.Lexical
	}
}

// Warning records a non-fatal anomaly encountered during scanning.
type Warning struct {
	Path   string
	Reason string
}

var numericPrefix = regexp.MustCompile(`^(\d+)[-_ ]?`)

// OrderKeyFor derives the sibling order key from a file or directory name
// (extension already stripped for files).
func OrderKeyFor(name string) OrderKey {
	key := OrderKey{Lexical: name}
	if m := numericPrefix.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			key.Numeric = n
			key.HasNumeric = true
		}
	}
	return key
}

// Scanner walks a content root and produces a ChapterNode tree.
type Scanner struct {
	root   string
	titles TitleExtractor
}

// New creates a scanner rooted at contentDir. A nil extractor falls back to
// the markdown default.
func New(contentDir string, titles TitleExtractor) *Scanner {
	if titles == nil {
		titles = MarkdownTitleExtractor{}
	}
	return &Scanner{root: contentDir, titles: titles}
}

// Scan walks the content root. An empty root yields an empty tree; a missing
// or unreadable root is fatal. Unreadable files and subdirectories are
// skipped with a warning.
func (s *Scanner) Scan() ([]*ChapterNode, []Warning, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, nil, berrors.Wrap(err, berrors.CategoryScan, berrors.SeverityFatal, "content root not readable").
			WithContext("path", s.root)
	}

	nodes, warnings, err := s.scanDir(s.root, "")
	if err != nil {
		return nil, warnings, err
	}
	return nodes, warnings, nil
}

// scanDir reads one directory level, recursing into subdirectories. rel is
// the slash-separated path of dir relative to the content root.
func (s *Scanner) scanDir(dir, rel string) ([]*ChapterNode, []Warning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return nil, nil, berrors.Wrap(err, berrors.CategoryScan, berrors.SeverityFatal, "read content root").
				WithContext("path", dir)
		}
		return nil, []Warning{{Path: rel, Reason: "unreadable directory: " + err.Error()}}, nil
	}

	var nodes []*ChapterNode
	var warnings []Warning

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		childRel := path.Join(rel, name)

		if entry.IsDir() {
			children, childWarnings, err := s.scanDir(filepath.Join(dir, name), childRel)
			warnings = append(warnings, childWarnings...)
			if err != nil {
				return nil, warnings, err
			}
			if len(children) == 0 {
				// Directories with no chapters anywhere below them are not sections.
				continue
			}
			nodes = append(nodes, &ChapterNode{
				Path:     childRel,
				Title:    TitleFromFilename(name),
				OrderKey: OrderKeyFor(name),
				Children: children,
				IsDir:    true,
			})
			continue
		}

		if !isChapterFile(name) {
			continue
		}

		node, warning := s.scanFile(filepath.Join(dir, name), childRel, name)
		if warning != nil {
			warnings = append(warnings, *warning)
			continue
		}
		nodes = append(nodes, node)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].OrderKey.Less(nodes[j].OrderKey)
	})
	return nodes, warnings, nil
}

// scanFile builds a leaf node for one chapter document.
func (s *Scanner) scanFile(abs, rel, name string) (*ChapterNode, *Warning) {
	content, err := os.ReadFile(abs) // #nosec G304 - abs is inside the scanned content root
	if err != nil {
		slog.Warn("Skipping unreadable chapter", logfields.Chapter(rel), logfields.Error(err))
		return nil, &Warning{Path: rel, Reason: "unreadable file: " + err.Error()}
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	title, ok := s.titles.ExtractTitle(content)
	if !ok {
		title = TitleFromFilename(stem)
	}

	return &ChapterNode{
		Path:     rel,
		Title:    title,
		OrderKey: OrderKeyFor(stem),
	}, nil
}

// isChapterFile reports whether a filename is a recognized chapter document.
func isChapterFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// TitleFromFilename derives a display title from a file or directory name:
// numeric prefix and extension stripped, separators replaced with spaces,
// title cased. Safe for concurrent use; a cases.Caser is stateful, so one is
// created per call.
func TitleFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = numericPrefix.ReplaceAllString(stem, "")
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return name
	}
	return cases.Title(language.English).String(stem)
}
