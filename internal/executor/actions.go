package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/dom"
)

// popupWait bounds how long a popup_handled activity waits for its dialog.
const popupWait = 5 * time.Second

func (e *Executor) execNavigation(act *activity.Activity, result *StepResult) {
	url := act.Details.URL
	if url == "" {
		result.Method = "navigation"
		result.Error = "navigation activity without url"
		return
	}
	if err := e.ctrl.Navigate(url); err != nil {
		result.Method = "navigation"
		result.Error = err.Error()
		return
	}
	result.Success = true
	result.Method = "navigation"
}

func (e *Executor) execClick(ctx context.Context, act *activity.Activity, result *StepResult) {
	defer e.resetContext()

	res, usedVLM := e.resolve(ctx, act)
	result.Method = res.Method
	result.UsedVLMDescription = usedVLM
	if !res.Ok() {
		result.Error = res.Err
		return
	}

	if res.Node == nil {
		if err := e.ctrl.ClickAt(res.X, res.Y); err != nil {
			result.Method = "click_error"
			result.Error = err.Error()
			return
		}
		result.Success = true
		return
	}

	restore := e.highlight(res.Node, "red")
	if err := res.Node.ScrollIntoView(); err != nil {
		slog.Debug("scroll into view failed", "error", err)
	}
	time.Sleep(200 * time.Millisecond)

	if err := res.Node.Click(); err != nil {
		if e.ctrl.DialogPending() {
			// The click landed; the protocol reply is stuck behind the dialog
			// a later activity will answer.
			slog.Debug("click blocked by open dialog, treating as delivered")
		} else if jsErr := res.Node.ClickJS(); jsErr != nil {
			restore()
			result.Method = "click_error"
			result.Error = fmt.Sprintf("native click: %v; js click: %v", err, jsErr)
			return
		}
	}
	restore()

	e.supplementCustomElementClick(res.Node)
	result.Success = true
}

// supplementCustomElementClick adds an absolute-position pointer click for
// custom web components whose outer boundary swallows synthetic clicks.
func (e *Executor) supplementCustomElementClick(node dom.Node) {
	tag, err := node.TagName()
	if err != nil {
		return
	}
	tag = strings.ToUpper(tag)
	if !strings.Contains(tag, "SEARCH") && !strings.HasPrefix(tag, "C4D-") {
		return
	}
	x, y, err := node.Center()
	if err != nil {
		return
	}
	if err := e.ctrl.ClickAt(x, y); err != nil {
		slog.Debug("supplementary coordinate click failed", "tag", tag, "error", err)
	}
}

func (e *Executor) execTextInput(ctx context.Context, act *activity.Activity, result *StepResult) {
	defer e.resetContext()

	value := act.Details.Value
	res, usedVLM := e.resolve(ctx, act)
	result.Method = res.Method
	result.UsedVLMDescription = usedVLM
	if !res.Ok() {
		result.Error = res.Err
		return
	}

	if res.Node == nil {
		// Coordinate-only target: click to focus, then type into it.
		if err := e.ctrl.ClickAt(res.X, res.Y); err != nil {
			result.Method = "input_error"
			result.Error = err.Error()
			return
		}
		if err := e.ctrl.TypeText(value); err != nil {
			result.Method = "input_error"
			result.Error = err.Error()
			return
		}
		result.Success = true
		return
	}

	restore := e.highlight(res.Node, "green")
	defer restore()

	if err := res.Node.ScrollIntoView(); err != nil {
		slog.Debug("scroll into view failed", "error", err)
	}
	if err := res.Node.Focus(); err != nil {
		result.Method = "input_error"
		result.Error = fmt.Sprintf("focus: %v", err)
		return
	}
	if err := res.Node.Clear(); err != nil {
		result.Method = "input_error"
		result.Error = fmt.Sprintf("clear: %v", err)
		return
	}
	if err := res.Node.Input(value); err != nil {
		result.Method = "input_error"
		result.Error = fmt.Sprintf("input: %v", err)
		return
	}
	result.Success = true
}

func (e *Executor) execHover(ctx context.Context, act *activity.Activity, result *StepResult) {
	defer e.resetContext()

	res, usedVLM := e.resolve(ctx, act)
	result.Method = res.Method
	result.UsedVLMDescription = usedVLM
	if !res.Ok() {
		result.Error = res.Err
		return
	}

	node := res.Node
	if node == nil {
		n, err := e.ctrl.ElementAt(res.X, res.Y)
		if err != nil {
			result.Error = "no element at resolved coordinates"
			return
		}
		node = n
	}
	if err := node.Hover(); err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
}

func (e *Executor) execScroll(ctx context.Context, act *activity.Activity, result *StepResult) {
	defer e.resetContext()

	res, usedVLM := e.resolve(ctx, act)
	result.Method = res.Method
	result.UsedVLMDescription = usedVLM
	if !res.Ok() {
		result.Error = res.Err
		return
	}
	if res.Node == nil {
		// Coordinates are already in the viewport; nothing to scroll.
		result.Success = true
		return
	}
	if err := res.Node.ScrollIntoView(); err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
}

// execPopup answers the JavaScript dialog the recorded step observed. An
// absent dialog is reported but does not fail the run; pages often stop
// raising confirmation dialogs between recording and replay.
func (e *Executor) execPopup(act *activity.Activity, result *StepResult) {
	d, err := e.ctrl.WaitDialog(popupWait)
	if err != nil {
		result.Success = true
		result.Method = "no_popup"
		slog.Warn("expected dialog never appeared", "recorded_text", act.Details.Text)
		return
	}

	if recorded := act.Details.Text; recorded != "" && d.Message != recorded {
		slog.Warn("dialog text differs from recording", "recorded", recorded, "actual", d.Message)
	}

	accept := true
	switch strings.ToLower(act.Details.PopupAction) {
	case "dismiss", "cancel", "dismissed":
		accept = false
	}

	var promptText string
	if act.Details.InputValue != nil {
		promptText = *act.Details.InputValue
	}

	if err := e.ctrl.HandleDialogAction(accept, promptText); err != nil {
		result.Method = "popup_error"
		result.Error = err.Error()
		return
	}

	result.Success = true
	if accept {
		result.Method = "popup_accept"
	} else {
		result.Method = "popup_dismiss"
	}
}

// execModalButton clicks a button inside a modal, trying the recorded xpath,
// then the button id, then a visible-button text scan, then a modal-scoped
// class lookup, then raw coordinates.
func (e *Executor) execModalButton(act *activity.Activity, result *StepResult) {
	defer e.resetContext()
	d := act.Details

	if d.XPath != "" {
		if node, err := e.ctrl.QueryXPath(d.XPath); err == nil {
			if e.clickModalNode(node, result, "modal_button_xpath") {
				return
			}
		}
	}

	if d.ButtonID != "" {
		if node, err := e.ctrl.QueryCSS(fmt.Sprintf("[id=%q]", d.ButtonID)); err == nil {
			if e.clickModalNode(node, result, "modal_button_id") {
				return
			}
		}
	}

	want := d.ButtonText
	if want == "" {
		want = d.MatchedText
	}
	if want != "" {
		if node := e.findButtonByText(want); node != nil {
			if e.clickModalNode(node, result, "modal_button_text") {
				return
			}
		}
	}

	if d.ModalSelector != "" && d.ButtonClass != "" {
		selector := d.ModalSelector + " ." + strings.Fields(d.ButtonClass)[0]
		if node, err := e.ctrl.QueryCSS(selector); err == nil {
			if e.clickModalNode(node, result, "modal_button_class") {
				return
			}
		}
	}

	if x, y, ok := recordedPoint(act); ok {
		if err := e.ctrl.ClickAt(x, y); err == nil {
			result.Success = true
			result.Method = "modal_button_coordinates"
			return
		}
	}

	result.Method = "not_found"
	result.Error = fmt.Sprintf("modal button %q not found", want)
}

func (e *Executor) clickModalNode(node dom.Node, result *StepResult, method string) bool {
	if visible, err := node.Visible(); err != nil || !visible {
		return false
	}
	if err := node.Click(); err != nil {
		if err := node.ClickJS(); err != nil {
			return false
		}
	}
	result.Success = true
	result.Method = method
	return true
}

// findButtonByText scans visible button-like elements for a text, value or
// aria-label match.
func (e *Executor) findButtonByText(want string) dom.Node {
	nodes, err := e.ctrl.QueryAll(`button, input[type="button"], input[type="submit"], [role="button"]`)
	if err != nil {
		return nil
	}
	want = strings.TrimSpace(strings.ToLower(want))
	for _, node := range nodes {
		if visible, err := node.Visible(); err != nil || !visible {
			continue
		}
		if text, err := node.Text(); err == nil && strings.TrimSpace(strings.ToLower(text)) == want {
			return node
		}
		if v, err := node.Attribute("value"); err == nil && strings.TrimSpace(strings.ToLower(v)) == want {
			return node
		}
		if v, err := node.Attribute("aria-label"); err == nil && strings.TrimSpace(strings.ToLower(v)) == want {
			return node
		}
	}
	return nil
}

// execVerification checks that the recorded criteria text is present on the
// page.
func (e *Executor) execVerification(act *activity.Activity, result *StepResult) {
	result.Method = "verification"
	criteria := act.Details.Criteria
	if criteria == "" {
		criteria = act.Details.Text
	}
	if criteria == "" {
		result.Error = "verification activity without criteria"
		return
	}

	text, err := e.ctrl.PageText()
	if err != nil {
		result.Error = fmt.Sprintf("read page text: %v", err)
		return
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(criteria)) {
		result.Error = fmt.Sprintf("text %q not found on page", criteria)
		return
	}
	result.Success = true
}

func (e *Executor) execSwitchTab(act *activity.Activity, result *StepResult) {
	result.Method = "switch_tab"
	index := 0
	if act.TabIndex != nil {
		index = *act.TabIndex
	} else if act.Details.TabIndex != nil {
		index = *act.Details.TabIndex
	}
	if err := e.ctrl.ActivateTab(index); err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
}

func (e *Executor) execNewTab(result *StepResult) {
	result.Method = "new_tab"
	if err := e.ctrl.WaitNewTab(popupWait); err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
}

func (e *Executor) execCloseTab(result *StepResult) {
	result.Method = "tab_closed"
	if err := e.ctrl.CloseTab(); err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
}

// resetContext restores the main-document scope; every handler that can
// switch context defers it so the next activity starts clean.
func (e *Executor) resetContext() {
	if err := e.ctrl.Reset(); err != nil {
		slog.Warn("context reset failed", "error", err)
	}
}

// highlight applies a transient outline to the target and returns a restore
// function. Diagnostic only; failures are ignored.
func (e *Executor) highlight(node dom.Node, color string) func() {
	if !e.opts.Highlight {
		return func() {}
	}
	old, err := node.Attribute("style")
	if err != nil {
		return func() {}
	}
	style := strings.TrimSuffix(old, ";")
	if style != "" {
		style += "; "
	}
	if err := node.SetAttribute("style", style+"outline: 3px solid "+color); err != nil {
		return func() {}
	}
	return func() {
		if err := node.SetAttribute("style", old); err != nil {
			slog.Debug("highlight restore failed", "error", err)
		}
	}
}
