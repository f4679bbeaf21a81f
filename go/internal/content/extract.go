package content

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	MinWords = 100
	MaxWords = 20000
	// WordsPerQuestion is used to estimate how many questions a document
	// supports.
	WordsPerQuestion = 100
)

// boilerplate elements are dropped before text extraction.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
}

// mainSelectors are tried in order; the first with any text wins.
var mainSelectors = []func(*html.Node) bool{
	isElement(atom.Article),
	isElement(atom.Main),
	hasClass("content"),
	hasClass("post-content"),
	hasClass("entry-content"),
	isElement(atom.Body),
}

// Normalize trims text and collapses every whitespace run to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Truncate keeps at most max words of normalized text.
func Truncate(text string, max int) (string, int) {
	words := strings.Fields(text)
	if len(words) > max {
		words = words[:max]
	}
	return strings.Join(words, " "), len(words)
}

// ExtractText returns the readable main text of an HTML document.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	stripBoilerplate(doc)

	for _, match := range mainSelectors {
		var b strings.Builder
		for _, n := range findAll(doc, match) {
			writeText(&b, n)
		}
		if text := Normalize(b.String()); text != "" {
			return text, nil
		}
	}
	return "", nil
}

func stripBoilerplate(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && boilerplate[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			stripBoilerplate(c)
		}
		c = next
	}
}

// findAll returns the outermost nodes matching match in document order.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	if match(n) {
		return []*html.Node{n}
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, findAll(c, match)...)
	}
	return out
}

func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
		return false
	}
}
