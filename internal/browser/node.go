package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// rodNode adapts a rod element to the dom.Node boundary.
type rodNode struct {
	el *rod.Element
}

func (n *rodNode) Visible() (bool, error) {
	return n.el.Visible()
}

func (n *rodNode) Text() (string, error) {
	return n.el.Text()
}

func (n *rodNode) TagName() (string, error) {
	res, err := n.el.Eval(`() => this.tagName`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (n *rodNode) Attribute(name string) (string, error) {
	v, err := n.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (n *rodNode) SetAttribute(name, value string) error {
	_, err := n.el.Eval(`(name, value) => this.setAttribute(name, value)`, name, value)
	return err
}

// Center returns the midpoint of the element's first content quad.
func (n *rodNode) Center() (float64, float64, error) {
	box, err := n.el.Shape()
	if err != nil {
		return 0, 0, err
	}
	if len(box.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape")
	}
	quad := box.Quads[0]
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y, nil
}

// Click dispatches a native pointer click. The timeout matters: a click that
// opens a JavaScript dialog blocks the protocol reply until the dialog is
// answered, and the dialog is answered by a later activity.
func (n *rodNode) Click() error {
	return n.el.Timeout(3 * time.Second).Click(proto.InputMouseButtonLeft, 1)
}

// ClickJS dispatches a synthetic click, for elements a pointer click cannot
// reach (overlays, off-screen targets).
func (n *rodNode) ClickJS() error {
	_, err := n.el.Eval(`() => this.click()`)
	return err
}

func (n *rodNode) Hover() error {
	return n.el.Hover()
}

func (n *rodNode) Focus() error {
	return n.el.Focus()
}

func (n *rodNode) Input(text string) error {
	return n.el.Input(text)
}

// Clear selects the field's content and deletes it, falling back to a direct
// value reset when key events do not stick (custom widgets).
func (n *rodNode) Clear() error {
	if err := n.el.SelectAllText(); err == nil {
		if err := n.el.Type(input.Backspace); err == nil {
			return nil
		}
	}
	_, err := n.el.Eval(`() => {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`)
	return err
}

func (n *rodNode) ScrollIntoView() error {
	return n.el.ScrollIntoView()
}
