package assembler

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// ExtractFragment strips the per-page document envelope from a rendered page
// and returns only the content meaningful inside a larger document.
//
// The rule is structural, not textual: the page is parsed, and only the
// children of <body> survive, minus elements that are only valid once per
// whole document (script/style/link/meta/title/base). Chapter content that
// merely resembles wrapper markup, say a code block containing the literal
// text "</head>", is untouched: goldmark escapes it and the parse sees text,
// not elements.
func ExtractFragment(page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	body := findBody(doc)
	if body == nil {
		// html.Parse always synthesizes a body; nil means a malformed tree.
		return nil, fmt.Errorf("rendered page has no body")
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if isWrapperElement(c) {
			continue
		}
		if err := html.Render(&buf, c); err != nil {
			return nil, fmt.Errorf("render fragment: %w", err)
		}
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// isWrapperElement reports whether an element is part of the per-document
// envelope grammar and must not be repeated in a merged document.
func isWrapperElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "script", "style", "link", "meta", "title", "base":
		return true
	}
	return false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
