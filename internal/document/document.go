// Package document wraps goquery with a small, read-only query surface used
// by the scrapers: lookups by id, class and tag that return plain views.
package document

import (
	"bytes"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
)

// Document is a parsed HTML page.
type Document struct {
	root *goquery.Document
}

// Node is a read-only view of a single element. The zero value is an absent
// node; its queries return nothing.
type Node struct {
	sel *goquery.Selection
}

// Parse reads r fully and builds a Document. Failures wrap crawler.ErrParse.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrParse, err)
	}
	return &Document{root: doc}, nil
}

// ParseBytes is Parse over an in-memory body.
func ParseBytes(body []byte) (*Document, error) {
	return Parse(bytes.NewReader(body))
}

// Root returns the document element view.
func (d *Document) Root() Node {
	if d == nil || d.root == nil {
		return Node{}
	}
	return Node{sel: d.root.Selection}
}

// FindByID returns the first element whose id attribute equals id.
func (d *Document) FindByID(id string) (Node, bool) {
	return d.Root().FindByID(id)
}

// FindByClass returns every element carrying class, in document order.
func (d *Document) FindByClass(class string) []Node {
	return d.Root().FindByClass(class)
}

// FindByTag returns every element named tag, in document order.
func (d *Document) FindByTag(tag string) []Node {
	return d.Root().FindByTag(tag)
}

// Exists reports whether the node refers to an element.
func (n Node) Exists() bool {
	return n.sel != nil && n.sel.Length() > 0
}

// FindByID returns the first descendant whose id attribute equals id.
func (n Node) FindByID(id string) (Node, bool) {
	if !n.Exists() {
		return Node{}, false
	}
	match := n.sel.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
	if match.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: match}, true
}

// FindByClass returns every descendant carrying class, in document order.
func (n Node) FindByClass(class string) []Node {
	if !n.Exists() {
		return nil
	}
	return wrap(n.sel.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(class)
	}))
}

// FindByTag returns every descendant element named tag, in document order.
func (n Node) FindByTag(tag string) []Node {
	if !n.Exists() {
		return nil
	}
	return wrap(n.sel.Find(tag))
}

// FirstByTag returns the first descendant element named tag.
func (n Node) FirstByTag(tag string) (Node, bool) {
	if !n.Exists() {
		return Node{}, false
	}
	match := n.sel.Find(tag).First()
	if match.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: match}, true
}

// Text returns the concatenated text content of the node and its descendants.
func (n Node) Text() string {
	if !n.Exists() {
		return ""
	}
	return n.sel.Text()
}

// Attr returns the named attribute.
func (n Node) Attr(name string) (string, bool) {
	if !n.Exists() {
		return "", false
	}
	return n.sel.Attr(name)
}

func wrap(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, Node{sel: s})
	})
	return nodes
}
