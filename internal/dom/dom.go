package dom

import "errors"

// ErrNotFound is returned by Bridge queries when no element matches.
var ErrNotFound = errors.New("element not found")

// Node is a handle to a live DOM element. It is only valid within the
// browsing context it was resolved in; callers must not retain it past the
// current action or across a context switch.
type Node interface {
	Visible() (bool, error)
	Text() (string, error)
	TagName() (string, error)
	Attribute(name string) (string, error)
	SetAttribute(name, value string) error
	Center() (x, y float64, err error)
	Click() error
	ClickJS() error
	Hover() error
	Focus() error
	Input(text string) error
	Clear() error
	ScrollIntoView() error
}

// Criteria describes an element for the deep shadow-DOM and iframe searches.
// Empty fields are not matched against.
type Criteria struct {
	TagName     string `json:"tagName"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	Type        string `json:"type"`
}

// Dialog describes a JavaScript dialog (alert/confirm/prompt) raised by the page.
type Dialog struct {
	Type    string
	Message string
}

// Bridge is the browsing-context-scoped view of the live document. Every call
// is a blocking round-trip to the remote browser. Queries run against the
// current context: the main document by default, or the iframe/shadow root
// last entered. Reset must restore the main document; the owner of a context
// switch is responsible for calling it on every exit path.
type Bridge interface {
	// Reset restores the main-document context.
	Reset() error

	// EnterIframe switches the context into an iframe resolved by id, name,
	// selector or index (tried in that order).
	EnterIframe(step PathStep) error

	// EnterShadow switches the context into the shadow root of the element
	// matching hostSelector.
	EnterShadow(hostSelector string) error

	QueryCSS(selector string) (Node, error)
	QueryXPath(xpath string) (Node, error)
	QueryAll(selector string) ([]Node, error)

	// ElementAt hit-tests the viewport point and returns the topmost element.
	ElementAt(x, y float64) (Node, error)

	// SearchShadowDeep walks every shadow root depth-first for an element
	// matching the criteria.
	SearchShadowDeep(c Criteria) (Node, error)

	// SearchIframes enumerates same-origin iframes and retries id/name/tag
	// lookups inside each. On success the context stays switched into the
	// matching iframe; the caller must Reset after interacting.
	SearchIframes(c Criteria) (Node, error)

	// ClickAt performs an absolute-position pointer click. The pointer is
	// moved to the absolute point, never by relative offsets, so no offset
	// state leaks between actions.
	ClickAt(x, y float64) error

	// TypeText inserts text into the currently focused element.
	TypeText(text string) error

	Viewport() (width, height int)
	Screenshot() ([]byte, error)
}

// Resolution is the outcome of one attempt to locate a recorded target:
// a live node, a bare coordinate pair, or a failure with a reason. Method
// identifies which tactic produced the outcome and is populated on every path.
type Resolution struct {
	Node      Node
	X, Y      float64
	HasCoords bool
	Method    string
	Err       string
}

// Found wraps a resolved live node.
func Found(n Node, method string) Resolution {
	return Resolution{Node: n, Method: method}
}

// FoundAt wraps a coordinate-only resolution, for targets that can only be
// addressed by a raw pointer action.
func FoundAt(x, y float64, method string) Resolution {
	return Resolution{X: x, Y: y, HasCoords: true, Method: method}
}

// NotFound wraps a failed resolution with a diagnostic reason.
func NotFound(reason string) Resolution {
	return Resolution{Method: "not_found", Err: reason}
}

// Ok reports whether the resolution produced something actionable.
func (r Resolution) Ok() bool {
	return r.Node != nil || r.HasCoords
}
