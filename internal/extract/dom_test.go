package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseTree(t *testing.T, src string) *Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return FromHTML(doc)
}

func TestNodeFindIsDocumentOrder(t *testing.T) {
	t.Parallel()

	root := parseTree(t, `<div><section><h3>deep</h3></section><h2>shallow</h2></div>`)
	got := root.Find(func(n *Node) bool { return n.Is("h2", "h3") })
	require.NotNil(t, got)
	assert.Equal(t, "h3", got.Tag)
	assert.Equal(t, "deep", got.Text())
}

func TestNodeEachFollowingSibling(t *testing.T) {
	t.Parallel()

	root := parseTree(t, `<div><h2>A</h2>x<p>one</p><!-- c --><p>two</p><h2>B</h2><p>three</p></div>`)
	h := root.Find(func(n *Node) bool { return n.Is("h2") })
	require.NotNil(t, h)

	var seen []string
	h.EachFollowingSibling(func(n *Node) bool {
		if n.Is("h2") {
			return false
		}
		seen = append(seen, n.Text())
		return true
	})
	assert.Equal(t, []string{"x", "one", "two"}, seen)
}

func TestNodeTextSkipsScriptsAndCollapsesSpace(t *testing.T) {
	t.Parallel()

	root := parseTree(t, "<p> a  b <script>x()</script><b>c</b>\n\t d</p>")
	p := root.Find(func(n *Node) bool { return n.Is("p") })
	require.NotNil(t, p)
	assert.Equal(t, "a b c d", p.Text())
	assert.Equal(t, " a  b c\n\t d", p.RawText())
}

func TestChildElementsIsShallow(t *testing.T) {
	t.Parallel()

	root := parseTree(t, `<ul><li>a<ul><li>b</li></ul></li><li>c</li></ul>`)
	ul := root.Find(func(n *Node) bool { return n.Is("ul") })
	require.NotNil(t, ul)
	assert.Len(t, ul.ChildElements("li"), 2)
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b", Flatten("  a  \n b "))
	assert.Empty(t, Flatten("   "))
}
