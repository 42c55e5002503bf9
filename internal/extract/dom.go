package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeKind distinguishes the node types kept in a Node tree.
type NodeKind int

const (
	DocumentNode NodeKind = iota
	ElementNode
	TextNode
)

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

// Node is a parser-independent view of an HTML subtree. Only elements and
// visible text survive conversion.
type Node struct {
	Kind     NodeKind
	Tag      string
	Data     string
	Attrs    map[string]string
	Parent   *Node
	Children []*Node

	pos int
}

// FromHTML converts an x/net/html tree rooted at n.
func FromHTML(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	return convert(n, nil)
}

func convert(n *html.Node, parent *Node) *Node {
	out := &Node{Parent: parent}
	switch n.Type {
	case html.DocumentNode:
		out.Kind = DocumentNode
	case html.ElementNode:
		out.Kind = ElementNode
		out.Tag = strings.ToLower(n.Data)
		if len(n.Attr) > 0 {
			out.Attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				out.Attrs[a.Key] = a.Val
			}
		}
	case html.TextNode:
		out.Kind = TextNode
		out.Data = n.Data
		return out
	default:
		return nil
	}
	if skippedTags[out.Tag] {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child := convert(c, out)
		if child == nil {
			continue
		}
		child.pos = len(out.Children)
		out.Children = append(out.Children, child)
	}
	return out
}

// Is reports whether n is an element with one of the given tags.
func (n *Node) Is(tags ...string) bool {
	if n == nil || n.Kind != ElementNode {
		return false
	}
	for _, t := range tags {
		if n.Tag == t {
			return true
		}
	}
	return false
}

// Find returns the first descendant of n, in document order, for which
// match returns true.
func (n *Node) Find(match func(*Node) bool) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if match(c) {
			return c
		}
		if found := c.Find(match); found != nil {
			return found
		}
	}
	return nil
}

// ChildElements returns the direct element children with the given tag.
func (n *Node) ChildElements(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Is(tag) {
			out = append(out, c)
		}
	}
	return out
}

// EachFollowingSibling calls fn for every sibling after n until fn returns
// false.
func (n *Node) EachFollowingSibling(fn func(*Node) bool) {
	if n == nil || n.Parent == nil {
		return
	}
	for _, sib := range n.Parent.Children[n.pos+1:] {
		if !fn(sib) {
			return
		}
	}
}

// RawText concatenates every text node below n without separators.
func (n *Node) RawText() string {
	var b strings.Builder
	n.eachText(func(s string) { b.WriteString(s) })
	return b.String()
}

// Text trims every text node below n and joins the non-empty pieces with a
// single space. Non-breaking spaces and whitespace runs collapse to one
// space.
func (n *Node) Text() string {
	var pieces []string
	n.eachText(func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			pieces = append(pieces, s)
		}
	})
	return Flatten(strings.Join(pieces, " "))
}

func (n *Node) eachText(fn func(string)) {
	if n == nil {
		return
	}
	if n.Kind == TextNode {
		fn(n.Data)
		return
	}
	if skippedTags[n.Tag] {
		return
	}
	for _, c := range n.Children {
		c.eachText(fn)
	}
}

// Flatten replaces non-breaking spaces and collapses whitespace runs.
func Flatten(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
