// Package executor replays one recorded activity at a time: wait for the
// page, resolve the target through the cascade, perform the interaction, and
// report a structured result. It is the error boundary of the replay: expected
// failures become failed step results, and only session-fatal errors propagate.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/dom"
	"github.com/v0xg/webreplay/internal/locator"
	"github.com/v0xg/webreplay/internal/readiness"
	"github.com/v0xg/webreplay/internal/vision"
)

// Controller is everything the executor needs from the browser session beyond
// the query bridge: navigation, dialogs, tabs and page text.
type Controller interface {
	dom.Bridge

	Navigate(url string) error
	PageText() (string, error)

	WaitDialog(timeout time.Duration) (dom.Dialog, error)
	HandleDialogAction(accept bool, text string) error
	DialogPending() bool

	ActivateTab(index int) error
	WaitNewTab(timeout time.Duration) error
	CloseTab() error
}

// ReadinessWaiter is satisfied by *readiness.Oracle.
type ReadinessWaiter interface {
	Wait(timeout time.Duration) readiness.Result
}

// Options tunes executor behavior.
type Options struct {
	PageTimeout    time.Duration // readiness wait before each activity
	LocatorTimeout time.Duration // wall-clock budget for the strategy cascade
	ScreenshotDir  string        // empty disables before/after captures
	Highlight      bool          // transient outline on resolved targets
	SettleDelay    time.Duration // pause before the after screenshot; negative disables
}

func (o Options) withDefaults() Options {
	if o.PageTimeout == 0 {
		o.PageTimeout = 10 * time.Second
	}
	if o.LocatorTimeout == 0 {
		o.LocatorTimeout = 10 * time.Second
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	return o
}

// StepResult is the per-activity outcome consumed by persistence and
// reporting. Method identifies which cascade step produced the outcome and is
// populated on every path, including failures.
type StepResult struct {
	Step               int               `json:"step"`
	Action             string            `json:"action"`
	Success            bool              `json:"success"`
	Method             string            `json:"method"`
	ScreenshotBefore   string            `json:"screenshot_before,omitempty"`
	ScreenshotAfter    string            `json:"screenshot_after,omitempty"`
	Error              string            `json:"error,omitempty"`
	Timestamp          string            `json:"timestamp"`
	UsedVLMDescription bool              `json:"used_vlm_description"`
	Assertions         []AssertionResult `json:"assertions,omitempty"`
}

// Executor drives the per-activity state machine against one browser session.
type Executor struct {
	ctrl   Controller
	finder vision.Finder
	oracle ReadinessWaiter
	opts   Options

	step    int
	pending []Assertion
}

// New creates an executor over a controller, vision finder and readiness
// oracle.
func New(ctrl Controller, finder vision.Finder, oracle ReadinessWaiter, opts Options) *Executor {
	if finder == nil {
		finder = vision.NoopFinder{}
	}
	return &Executor{
		ctrl:   ctrl,
		finder: finder,
		oracle: oracle,
		opts:   opts.withDefaults(),
	}
}

// QueueAssertion registers an assertion to run after the next activity's
// interaction. The queue is consumed by that activity.
func (e *Executor) QueueAssertion(a Assertion) {
	e.pending = append(e.pending, a)
}

// Execute replays one activity. The returned error is reserved for
// session-fatal conditions; ordinary step failures are reported inside the
// StepResult.
func (e *Executor) Execute(ctx context.Context, act *activity.Activity) (StepResult, error) {
	e.step++
	result := StepResult{
		Step:      e.step,
		Action:    string(act.Action),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	ready := e.oracle.Wait(e.opts.PageTimeout)
	if ready.State == readiness.TimedOut {
		slog.Warn("page not stable before activity", "step", e.step, "last_reason", ready.LastReason)
	}

	result.ScreenshotBefore = e.capture(fmt.Sprintf("step_%03d_before", e.step))

	e.dispatch(ctx, act, &result)

	// Brief settle so the after screenshot shows the interaction's effect.
	if e.opts.SettleDelay > 0 {
		time.Sleep(e.opts.SettleDelay)
	}
	result.ScreenshotAfter = e.capture(fmt.Sprintf("step_%03d_after", e.step))

	result.Assertions = e.runAssertions()
	for _, a := range result.Assertions {
		if !a.Passed {
			result.Success = false
			if result.Error == "" {
				result.Error = fmt.Sprintf("assertion %q failed: %s", a.Name, a.Message)
			}
		}
	}

	return result, nil
}

// dispatch routes the activity to its handler. Handlers own the browsing
// context for their duration and must leave it restored.
func (e *Executor) dispatch(ctx context.Context, act *activity.Activity, result *StepResult) {
	switch act.Action {
	case activity.Navigation:
		e.execNavigation(act, result)
	case activity.Click:
		e.execClick(ctx, act, result)
	case activity.TextInput:
		e.execTextInput(ctx, act, result)
	case activity.Hover:
		e.execHover(ctx, act, result)
	case activity.ScrollToElement:
		e.execScroll(ctx, act, result)
	case activity.PopupHandled:
		e.execPopup(act, result)
	case activity.ModalDetected:
		result.Success = true
		result.Method = "modal_noted"
	case activity.ModalButtonClick:
		e.execModalButton(act, result)
	case activity.Verification:
		e.execVerification(act, result)
	case activity.SwitchTab, activity.SwitchWindow:
		e.execSwitchTab(act, result)
	case activity.NewTab:
		e.execNewTab(result)
	case activity.TabClosed:
		e.execCloseTab(result)
	default:
		// Unknown kinds are recorded noise (e.g. page_loaded markers); skip
		// them without failing the run.
		result.Success = true
		result.Method = "skipped"
		slog.Debug("skipping unsupported action", "action", act.Action)
	}
}

// resolve runs the five-step cascade. The first step that produces something
// wins; later steps are not attempted. Reports whether the stored vision
// description was used, for the result record.
func (e *Executor) resolve(ctx context.Context, act *activity.Activity) (dom.Resolution, bool) {
	loc := act.Details.Locators

	// 1. Recorded DOM path encodes the exact nesting the recorder observed.
	if loc != nil && len(loc.DOMPath) > 0 {
		if node, err := dom.TraversePath(e.ctrl, loc.DOMPath); err == nil {
			return dom.Found(node, "dom_path"), false
		} else {
			slog.Debug("DOM path traversal failed", "error", err)
			if err := e.ctrl.Reset(); err != nil {
				slog.Warn("context reset failed", "error", err)
			}
		}
	}

	// 2. Multi-strategy locator from the recorded bundle.
	el := locator.FromActivity(act)
	if len(el.Strategies) > 0 {
		if res := el.Find(e.ctrl, e.opts.LocatorTimeout); res.Ok() {
			return res, false
		}
	}

	// 3. Context-flagged deep searches.
	if el.InShadowRoot || act.Details.InShadowRoot {
		if node, err := e.ctrl.SearchShadowDeep(act.TargetCriteria()); err == nil {
			return dom.Found(node, "shadow_dom_search"), false
		}
	}
	if el.InIframe || act.Details.InIframe {
		if node, err := e.ctrl.SearchIframes(act.TargetCriteria()); err == nil {
			return dom.Found(node, "iframe_search"), false
		}
		if err := e.ctrl.Reset(); err != nil {
			slog.Warn("context reset failed", "error", err)
		}
	}

	// 4. Recorded coordinates, model-verified when a model is reachable.
	if x, y, ok := recordedPoint(act); ok {
		if e.finder.Available() {
			if m, ok := e.askVision(ctx, act.Describe()); ok {
				return dom.FoundAt(m.X, m.Y, "visual_detection_verified"), false
			}
		} else if node, err := e.ctrl.ElementAt(x, y); err == nil {
			if visible, err := node.Visible(); err == nil && visible {
				return dom.FoundAt(x, y, "visual_coordinates"), false
			}
		}
	}

	// 5. Vision fallback with the richest available description.
	if e.finder.Available() {
		desc := act.VLMDescription
		usedVLM := desc != ""
		if desc == "" {
			desc = act.Describe()
		}
		if m, ok := e.askVision(ctx, desc); ok {
			return dom.FoundAt(m.X, m.Y, "vlm_finder"), usedVLM
		}
	}

	// Last resort: a raw pointer action at the recorded point. Some custom
	// elements swallow hit-tests on their outer boundary, so a missed
	// hit-test does not prove the point is dead.
	if x, y, ok := recordedPoint(act); ok {
		return dom.FoundAt(x, y, "coordinates"), false
	}

	return dom.NotFound("all resolution strategies exhausted"), false
}

// askVision captures a screenshot and asks the finder for the element,
// normalizing every failure mode to a miss.
func (e *Executor) askVision(ctx context.Context, description string) (vision.Match, bool) {
	shot, err := e.ctrl.Screenshot()
	if err != nil {
		slog.Debug("screenshot for vision lookup failed", "error", err)
		return vision.Match{}, false
	}
	m, err := e.finder.FindElement(ctx, shot, description)
	if err != nil {
		slog.Debug("vision lookup failed", "error", err)
		return vision.Match{}, false
	}
	if !m.Accept() {
		slog.Debug("vision match below confidence threshold", "confidence", m.Confidence, "found", m.Found)
		return vision.Match{}, false
	}

	w, h := e.ctrl.Viewport()
	if m.X >= float64(w) {
		m.X = float64(w) - 1
	}
	if m.Y >= float64(h) {
		m.Y = float64(h) - 1
	}
	return m, true
}

// recordedPoint extracts the best coordinate hint from the activity.
func recordedPoint(act *activity.Activity) (float64, float64, bool) {
	if loc := act.Details.Locators; loc != nil {
		if x, y, ok := loc.Coordinates.Center(); ok {
			return x, y, ok
		}
	}
	return act.Details.Coordinates.Center()
}

// capture saves a screenshot under the configured directory and returns its
// path, or empty when capture is disabled or failed.
func (e *Executor) capture(name string) string {
	if e.opts.ScreenshotDir == "" {
		return ""
	}
	data, err := e.ctrl.Screenshot()
	if err != nil {
		slog.Debug("screenshot capture failed", "name", name, "error", err)
		return ""
	}
	path := filepath.Join(e.opts.ScreenshotDir, name+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Debug("screenshot write failed", "path", path, "error", err)
		return ""
	}
	return path
}

func (e *Executor) runAssertions() []AssertionResult {
	if len(e.pending) == 0 {
		return nil
	}
	results := make([]AssertionResult, 0, len(e.pending))
	for _, a := range e.pending {
		r := AssertionResult{Name: a.Name(), Passed: true}
		if err := a.Check(e.ctrl); err != nil {
			r.Passed = false
			r.Message = err.Error()
		}
		results = append(results, r)
	}
	e.pending = nil
	return results
}
