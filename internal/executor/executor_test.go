package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/dom"
	"github.com/v0xg/webreplay/internal/readiness"
	"github.com/v0xg/webreplay/internal/vision"
)

// stubNode records the interactions performed on it.
type stubNode struct {
	visible bool
	tag     string
	text    string
	attrs   map[string]string

	clicked bool
	focused bool
	cleared bool
	input   string
}

func (n *stubNode) Visible() (bool, error)   { return n.visible, nil }
func (n *stubNode) Text() (string, error)    { return n.text, nil }
func (n *stubNode) TagName() (string, error) { return n.tag, nil }
func (n *stubNode) Attribute(name string) (string, error) {
	return n.attrs[name], nil
}
func (n *stubNode) SetAttribute(name, value string) error {
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	n.attrs[name] = value
	return nil
}
func (n *stubNode) Center() (float64, float64, error) { return 10, 10, nil }
func (n *stubNode) Click() error                      { n.clicked = true; return nil }
func (n *stubNode) ClickJS() error                    { n.clicked = true; return nil }
func (n *stubNode) Hover() error                      { return nil }
func (n *stubNode) Focus() error                      { n.focused = true; return nil }
func (n *stubNode) Input(text string) error           { n.input = text; return nil }
func (n *stubNode) Clear() error                      { n.cleared = true; return nil }
func (n *stubNode) ScrollIntoView() error             { return nil }

type point struct{ x, y float64 }

// stubCtrl is an in-memory Controller backed by selector maps.
type stubCtrl struct {
	css      map[string]*stubNode
	xpath    map[string]*stubNode
	buttons  []*stubNode
	atPoint  *stubNode
	shadowEl *stubNode
	iframeEl *stubNode
	pageText string
	dialog   *dom.Dialog

	tried      []string
	resets     int
	clicksAt   []point
	typed      string
	handled    []bool
	activated  []int
	navigated  []string
	newTabs    int
	closedTabs int
}

func (c *stubCtrl) Reset() error { c.resets++; return nil }

func (c *stubCtrl) EnterIframe(dom.PathStep) error { return nil }
func (c *stubCtrl) EnterShadow(string) error       { return nil }

func (c *stubCtrl) QueryCSS(selector string) (dom.Node, error) {
	c.tried = append(c.tried, selector)
	if n, ok := c.css[selector]; ok {
		return n, nil
	}
	return nil, dom.ErrNotFound
}

func (c *stubCtrl) QueryXPath(xpath string) (dom.Node, error) {
	c.tried = append(c.tried, xpath)
	if n, ok := c.xpath[xpath]; ok {
		return n, nil
	}
	return nil, dom.ErrNotFound
}

func (c *stubCtrl) QueryAll(string) ([]dom.Node, error) {
	nodes := make([]dom.Node, 0, len(c.buttons))
	for _, b := range c.buttons {
		nodes = append(nodes, b)
	}
	return nodes, nil
}

func (c *stubCtrl) ElementAt(x, y float64) (dom.Node, error) {
	if c.atPoint != nil {
		return c.atPoint, nil
	}
	return nil, dom.ErrNotFound
}

func (c *stubCtrl) SearchShadowDeep(dom.Criteria) (dom.Node, error) {
	if c.shadowEl != nil {
		return c.shadowEl, nil
	}
	return nil, dom.ErrNotFound
}

func (c *stubCtrl) SearchIframes(dom.Criteria) (dom.Node, error) {
	if c.iframeEl != nil {
		return c.iframeEl, nil
	}
	return nil, dom.ErrNotFound
}

func (c *stubCtrl) ClickAt(x, y float64) error {
	c.clicksAt = append(c.clicksAt, point{x, y})
	return nil
}

func (c *stubCtrl) TypeText(text string) error { c.typed = text; return nil }
func (c *stubCtrl) Viewport() (int, int)       { return 1280, 720 }
func (c *stubCtrl) Screenshot() ([]byte, error) {
	return []byte("png"), nil
}

func (c *stubCtrl) Navigate(url string) error { c.navigated = append(c.navigated, url); return nil }
func (c *stubCtrl) PageText() (string, error) { return c.pageText, nil }

func (c *stubCtrl) WaitDialog(timeout time.Duration) (dom.Dialog, error) {
	if c.dialog != nil {
		d := *c.dialog
		c.dialog = nil
		return d, nil
	}
	return dom.Dialog{}, fmt.Errorf("no dialog appeared within %s", timeout)
}

func (c *stubCtrl) HandleDialogAction(accept bool, text string) error {
	c.handled = append(c.handled, accept)
	return nil
}

func (c *stubCtrl) DialogPending() bool { return false }

func (c *stubCtrl) ActivateTab(index int) error { c.activated = append(c.activated, index); return nil }
func (c *stubCtrl) WaitNewTab(time.Duration) error { c.newTabs++; return nil }
func (c *stubCtrl) CloseTab() error                { c.closedTabs++; return nil }

// stubOracle reports stable immediately.
type stubOracle struct{}

func (stubOracle) Wait(time.Duration) readiness.Result {
	return readiness.Result{State: readiness.Stable, Proceed: true}
}

// stubFinder is a scriptable vision backend.
type stubFinder struct {
	match vision.Match
	calls int
}

func (f *stubFinder) FindElement(context.Context, []byte, string) (vision.Match, error) {
	f.calls++
	return f.match, nil
}
func (f *stubFinder) Describe(context.Context, []byte, string) (string, error) { return "", nil }
func (f *stubFinder) Available() bool                                          { return true }
func (f *stubFinder) Name() string                                             { return "stub" }

func newTestExecutor(ctrl *stubCtrl, finder vision.Finder) *Executor {
	return New(ctrl, finder, stubOracle{}, Options{SettleDelay: -1})
}

func clickActivity(locators *activity.Locators) *activity.Activity {
	return &activity.Activity{
		Action:  activity.Click,
		Details: activity.Details{TagName: "button", Text: "Search", Locators: locators},
	}
}

func TestClickResolvedByID(t *testing.T) {
	btn := &stubNode{visible: true, tag: "BUTTON", text: "Search"}
	ctrl := &stubCtrl{css: map[string]*stubNode{`[id="search-btn"]`: btn}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), clickActivity(&activity.Locators{ID: "search-btn"}))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "id", res.Method)
	assert.Empty(t, res.Error)
	assert.True(t, btn.clicked)
	assert.GreaterOrEqual(t, ctrl.resets, 1, "context must be restored after the activity")
}

func TestClickHiddenIDFallsThroughToTextContent(t *testing.T) {
	hidden := &stubNode{visible: false, tag: "BUTTON"}
	visible := &stubNode{visible: true, tag: "BUTTON", text: "Search"}
	ctrl := &stubCtrl{
		css:   map[string]*stubNode{`[id="search-btn"]`: hidden},
		xpath: map[string]*stubNode{`//*[contains(text(), 'Search')]`: visible},
	}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), clickActivity(&activity.Locators{
		ID:   "search-btn",
		Text: "Search",
	}))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "text_content", res.Method)
	assert.False(t, hidden.clicked)
	assert.True(t, visible.clicked)
}

func TestClickDetailsOnlyResolvedByID(t *testing.T) {
	// Logs from older recorders carry the attributes directly on details with
	// no locator bundle; the cascade must still resolve them.
	btn := &stubNode{visible: true, tag: "BUTTON", text: "Search"}
	ctrl := &stubCtrl{css: map[string]*stubNode{`[id="search-btn"]`: btn}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Click,
		Details: activity.Details{TagName: "button", ID: "search-btn"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "id", res.Method)
	assert.True(t, btn.clicked)
}

func TestClickDetailsOnlyHiddenIDFallsThroughToText(t *testing.T) {
	hidden := &stubNode{visible: false, tag: "BUTTON"}
	visible := &stubNode{visible: true, tag: "BUTTON", text: "Search"}
	ctrl := &stubCtrl{
		css:   map[string]*stubNode{`[id="search-btn"]`: hidden},
		xpath: map[string]*stubNode{`//*[contains(text(), 'Search')]`: visible},
	}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Click,
		Details: activity.Details{TagName: "button", ID: "search-btn", Text: "Search"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "text_content", res.Method)
	assert.False(t, hidden.clicked)
	assert.True(t, visible.clicked)
}

func TestClickFallsBackToRecordedPoint(t *testing.T) {
	// Nothing resolves and the hit-test at the recorded point comes back
	// empty, but the point itself is still worth a raw pointer click.
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, nil) // noop vision

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action: activity.Click,
		Details: activity.Details{
			TagName:     "button",
			Coordinates: &activity.Coordinates{ClickX: 300, ClickY: 400},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "coordinates", res.Method)
	require.Len(t, ctrl.clicksAt, 1)
	assert.Equal(t, point{300, 400}, ctrl.clicksAt[0])
}

func TestClickNothingFoundReportsNotFound(t *testing.T) {
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, nil) // noop vision

	res, err := e.Execute(context.Background(), clickActivity(&activity.Locators{}))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "not_found", res.Method)
	assert.NotEmpty(t, res.Error)
}

func TestTextInputTypesRecordedValue(t *testing.T) {
	field := &stubNode{visible: true, tag: "INPUT"}
	ctrl := &stubCtrl{css: map[string]*stubNode{`[id="q"]`: field}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action: activity.TextInput,
		Details: activity.Details{
			TagName:  "input",
			Value:    "hello",
			Locators: &activity.Locators{ID: "q"},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "id", res.Method)
	assert.True(t, field.focused)
	assert.True(t, field.cleared)
	assert.Equal(t, "hello", field.input)
}

func TestDOMPathShortCircuitsCascade(t *testing.T) {
	target := &stubNode{visible: true, tag: "BUTTON"}
	ctrl := &stubCtrl{css: map[string]*stubNode{
		"#deep-target":    target,
		`[id="fallback"]`: {visible: true, tag: "BUTTON"},
	}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), clickActivity(&activity.Locators{
		ID:      "fallback",
		DOMPath: dom.Path{{Type: "element", Selector: "#deep-target"}},
	}))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "dom_path", res.Method)
	assert.True(t, target.clicked)
	assert.NotContains(t, ctrl.tried, `[id="fallback"]`, "locator bundle must not run after a DOM path hit")
}

func TestShadowSearchUsedWhenFlagged(t *testing.T) {
	el := &stubNode{visible: true, tag: "INPUT"}
	ctrl := &stubCtrl{shadowEl: el}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action: activity.Click,
		Details: activity.Details{
			TagName:      "input",
			InShadowRoot: true,
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "shadow_dom_search", res.Method)
	assert.True(t, el.clicked)
}

func TestVisionConfidenceGate(t *testing.T) {
	lowConfidence := &stubFinder{match: vision.Match{Found: true, X: 100, Y: 100, Confidence: 0.5}}
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, lowConfidence)

	res, err := e.Execute(context.Background(), clickActivity(nil))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "not_found", res.Method)
	assert.Empty(t, ctrl.clicksAt)

	confident := &stubFinder{match: vision.Match{Found: true, X: 100, Y: 100, Confidence: 0.9}}
	ctrl = &stubCtrl{}
	e = newTestExecutor(ctrl, confident)

	res, err = e.Execute(context.Background(), clickActivity(nil))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "vlm_finder", res.Method)
	require.Len(t, ctrl.clicksAt, 1)
	assert.Equal(t, point{100, 100}, ctrl.clicksAt[0])
}

func TestVisionVerifiesRecordedCoordinates(t *testing.T) {
	finder := &stubFinder{match: vision.Match{Found: true, X: 200, Y: 150, Confidence: 0.85}}
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, finder)

	res, err := e.Execute(context.Background(), clickActivity(&activity.Locators{
		Coordinates: &activity.Coordinates{ElementCenterX: 205, ElementCenterY: 148},
	}))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "visual_detection_verified", res.Method)
	require.Len(t, ctrl.clicksAt, 1)
	assert.Equal(t, point{200, 150}, ctrl.clicksAt[0])
}

func TestNavigation(t *testing.T) {
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Navigation,
		Details: activity.Details{URL: "https://example.com/login"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "navigation", res.Method)
	assert.Equal(t, []string{"https://example.com/login"}, ctrl.navigated)
}

func TestPopupAcceptAndAbsent(t *testing.T) {
	ctrl := &stubCtrl{dialog: &dom.Dialog{Type: "confirm", Message: "Are you sure?"}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.PopupHandled,
		Details: activity.Details{Text: "Are you sure?", PopupAction: "accept"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "popup_accept", res.Method)
	assert.Equal(t, []bool{true}, ctrl.handled)

	// No dialog this time: reported, not failed.
	res, err = e.Execute(context.Background(), &activity.Activity{Action: activity.PopupHandled})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "no_popup", res.Method)
}

func TestModalButtonTextScan(t *testing.T) {
	confirm := &stubNode{visible: true, tag: "BUTTON", text: "Confirm"}
	ctrl := &stubCtrl{buttons: []*stubNode{
		{visible: false, tag: "BUTTON", text: "Confirm"},
		{visible: true, tag: "BUTTON", text: "Cancel"},
		confirm,
	}}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.ModalButtonClick,
		Details: activity.Details{ButtonText: "Confirm"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "modal_button_text", res.Method)
	assert.True(t, confirm.clicked)
}

func TestVerification(t *testing.T) {
	ctrl := &stubCtrl{pageText: "Welcome back, Ada. Your dashboard is ready."}
	e := newTestExecutor(ctrl, nil)

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Verification,
		Details: activity.Details{Criteria: "dashboard is ready"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "verification", res.Method)

	res, err = e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Verification,
		Details: activity.Details{Criteria: "logged out"},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found on page")
}

func TestTabActions(t *testing.T) {
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, nil)
	idx := 2

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.SwitchTab,
		Details: activity.Details{TabIndex: &idx},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []int{2}, ctrl.activated)

	res, err = e.Execute(context.Background(), &activity.Activity{Action: activity.NewTab})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, ctrl.newTabs)

	res, err = e.Execute(context.Background(), &activity.Activity{Action: activity.TabClosed})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, ctrl.closedTabs)
}

func TestAssertionsRunOnceAndFailTheStep(t *testing.T) {
	ctrl := &stubCtrl{pageText: "order placed"}
	e := newTestExecutor(ctrl, nil)
	e.QueueAssertion(TextPresent{Text: "order placed"})
	e.QueueAssertion(TextPresent{Text: "receipt emailed"})

	res, err := e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Navigation,
		Details: activity.Details{URL: "https://example.com"},
	})
	require.NoError(t, err)

	require.Len(t, res.Assertions, 2)
	assert.True(t, res.Assertions[0].Passed)
	assert.False(t, res.Assertions[1].Passed)
	assert.False(t, res.Success, "a failed assertion fails the step")

	// Queue consumed: next step carries no assertions.
	res, err = e.Execute(context.Background(), &activity.Activity{
		Action:  activity.Navigation,
		Details: activity.Details{URL: "https://example.com"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Assertions)
	assert.True(t, res.Success)
}

func TestStepNumbersIncrement(t *testing.T) {
	ctrl := &stubCtrl{}
	e := newTestExecutor(ctrl, nil)

	for want := 1; want <= 3; want++ {
		res, err := e.Execute(context.Background(), &activity.Activity{
			Action:  activity.Navigation,
			Details: activity.Details{URL: "https://example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, want, res.Step)
	}
}
