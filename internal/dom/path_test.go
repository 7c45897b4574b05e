package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pathNode struct{ id string }

func (n *pathNode) Visible() (bool, error)            { return true, nil }
func (n *pathNode) Text() (string, error)             { return "", nil }
func (n *pathNode) TagName() (string, error)          { return "", nil }
func (n *pathNode) Attribute(string) (string, error)  { return "", nil }
func (n *pathNode) SetAttribute(string, string) error { return nil }
func (n *pathNode) Center() (float64, float64, error) { return 0, 0, nil }
func (n *pathNode) Click() error                      { return nil }
func (n *pathNode) ClickJS() error                    { return nil }
func (n *pathNode) Hover() error                      { return nil }
func (n *pathNode) Focus() error                      { return nil }
func (n *pathNode) Input(string) error                { return nil }
func (n *pathNode) Clear() error                      { return nil }
func (n *pathNode) ScrollIntoView() error             { return nil }

// traceBridge records every context switch and answers queries from a map.
type traceBridge struct {
	css    map[string]Node
	xpath  map[string]Node
	trace  []string
	resets int
}

func (b *traceBridge) Reset() error { b.resets++; b.trace = append(b.trace, "reset"); return nil }

func (b *traceBridge) EnterIframe(step PathStep) error {
	b.trace = append(b.trace, "iframe:"+step.ID+step.Name+step.Selector)
	return nil
}

func (b *traceBridge) EnterShadow(host string) error {
	b.trace = append(b.trace, "shadow:"+host)
	return nil
}

func (b *traceBridge) QueryCSS(selector string) (Node, error) {
	if n, ok := b.css[selector]; ok {
		return n, nil
	}
	return nil, ErrNotFound
}

func (b *traceBridge) QueryXPath(xpath string) (Node, error) {
	if n, ok := b.xpath[xpath]; ok {
		return n, nil
	}
	return nil, ErrNotFound
}

func (b *traceBridge) QueryAll(string) ([]Node, error)        { return nil, nil }
func (b *traceBridge) ElementAt(x, y float64) (Node, error)   { return nil, ErrNotFound }
func (b *traceBridge) SearchShadowDeep(Criteria) (Node, error) { return nil, ErrNotFound }
func (b *traceBridge) SearchIframes(Criteria) (Node, error)    { return nil, ErrNotFound }
func (b *traceBridge) ClickAt(x, y float64) error              { return nil }
func (b *traceBridge) TypeText(string) error                   { return nil }
func (b *traceBridge) Viewport() (int, int)                    { return 1280, 720 }
func (b *traceBridge) Screenshot() ([]byte, error)             { return nil, nil }

func TestTraversePathWalksNesting(t *testing.T) {
	target := &pathNode{id: "target"}
	b := &traceBridge{css: map[string]Node{"#submit": target}}

	node, err := TraversePath(b, Path{
		{Type: "iframe", ID: "payment"},
		{Type: "shadow", HostSelector: "pay-widget"},
		{Type: "element", Selector: "#submit"},
	})
	require.NoError(t, err)
	assert.Same(t, target, node)
	assert.Equal(t, []string{"reset", "iframe:payment", "shadow:pay-widget"}, b.trace)
}

func TestTraversePathElementLookupOrder(t *testing.T) {
	byID := &pathNode{id: "by-id"}
	byXPath := &pathNode{id: "by-xpath"}

	// id wins over selector and xpath.
	b := &traceBridge{css: map[string]Node{`[id="save"]`: byID, ".save": &pathNode{}}}
	node, err := TraversePath(b, Path{{Type: "element", ID: "save", Selector: ".save", XPath: "//button"}})
	require.NoError(t, err)
	assert.Same(t, byID, node)

	// xpath is the last resort.
	b = &traceBridge{xpath: map[string]Node{"//button": byXPath}}
	node, err = TraversePath(b, Path{{Type: "element", ID: "save", Selector: ".save", XPath: "//button"}})
	require.NoError(t, err)
	assert.Same(t, byXPath, node)
}

func TestTraversePathErrors(t *testing.T) {
	b := &traceBridge{}

	_, err := TraversePath(b, nil)
	assert.ErrorContains(t, err, "empty DOM path")

	_, err = TraversePath(b, Path{{Type: "shadow"}})
	assert.ErrorContains(t, err, "without host selector")

	_, err = TraversePath(b, Path{{Type: "teleport"}})
	assert.ErrorContains(t, err, "unknown path step type")

	_, err = TraversePath(b, Path{{Type: "iframe", ID: "only-context"}})
	assert.ErrorContains(t, err, "no element step")

	_, err = TraversePath(b, Path{{Type: "element", Selector: "#missing"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
