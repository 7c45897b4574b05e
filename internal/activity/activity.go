package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/v0xg/webreplay/internal/dom"
)

// Kind identifies the user-observed action an activity records.
type Kind string

const (
	Navigation       Kind = "navigation"
	Click            Kind = "click"
	TextInput        Kind = "text_input"
	Hover            Kind = "hover"
	PopupHandled     Kind = "popup_handled"
	ModalButtonClick Kind = "modal_button_click"
	ModalDetected    Kind = "modal_detected"
	SwitchTab        Kind = "switch_tab"
	SwitchWindow     Kind = "switch_window"
	Verification     Kind = "verification"
	ScrollToElement  Kind = "scroll_to_element"
	NewTab           Kind = "new_tab"
	TabClosed        Kind = "tab_closed"
)

// Coordinates carries the positions the recorder captured for a target:
// the raw click point, the element center, and a generic point used by
// the locator bundle.
type Coordinates struct {
	X              float64 `json:"x,omitempty"`
	Y              float64 `json:"y,omitempty"`
	ClickX         float64 `json:"clickX,omitempty"`
	ClickY         float64 `json:"clickY,omitempty"`
	ElementCenterX float64 `json:"elementCenterX,omitempty"`
	ElementCenterY float64 `json:"elementCenterY,omitempty"`
}

// Center returns the best available point for the element, preferring the
// recorded element center over the raw click point.
func (c *Coordinates) Center() (float64, float64, bool) {
	if c == nil {
		return 0, 0, false
	}
	if c.ElementCenterX != 0 || c.ElementCenterY != 0 {
		return c.ElementCenterX, c.ElementCenterY, true
	}
	if c.ClickX != 0 || c.ClickY != 0 {
		return c.ClickX, c.ClickY, true
	}
	if c.X != 0 || c.Y != 0 {
		return c.X, c.Y, true
	}
	return 0, 0, false
}

// Locators is the recorder's bundle of alternative ways to find the target.
// Absent fields mean the recorder could not capture that locator; replay
// skips the corresponding tactic.
type Locators struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Class        string       `json:"class,omitempty"`
	CSSSelector  string       `json:"css_selector,omitempty"`
	XPath        string       `json:"xpath,omitempty"`
	Text         string       `json:"text,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	AriaLabel    string       `json:"aria_label,omitempty"`
	Label        string       `json:"label,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	InShadowRoot bool         `json:"in_shadow_root,omitempty"`
	InIframe     bool         `json:"in_iframe,omitempty"`
	DOMPath      dom.Path     `json:"dom_path,omitempty"`
}

// Details is the semi-structured description of the recorded target and
// action parameters. Which fields are meaningful depends on the action kind;
// fields this version does not know about are preserved opaquely in Extra so
// logs from newer recorders round-trip unchanged.
type Details struct {
	TagName      string       `json:"tagName,omitempty"`
	Text         string       `json:"text,omitempty"`
	Value        string       `json:"value,omitempty"`
	URL          string       `json:"url,omitempty"`
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name,omitempty"`
	ClassName    string       `json:"className,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Type         string       `json:"type,omitempty"`
	AriaLabel    string       `json:"ariaLabel,omitempty"`
	Label        string       `json:"label,omitempty"`
	XPath        string       `json:"xpath,omitempty"`
	Selector     string       `json:"selector,omitempty"`
	InShadowRoot bool         `json:"inShadowRoot,omitempty"`
	InIframe     bool         `json:"inIframe,omitempty"`
	IframeIndex  int          `json:"iframeIndex,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Locators     *Locators    `json:"locators,omitempty"`

	// Popup handling. The recorder reuses the "type" key for the dialog kind
	// and stores the user's choice under "action".
	PopupAction string  `json:"action,omitempty"`
	InputValue  *string `json:"input_value,omitempty"`

	// Modal button clicks.
	ModalSelector string `json:"modal_selector,omitempty"`
	ButtonText    string `json:"button_text,omitempty"`
	ButtonID      string `json:"button_id,omitempty"`
	ButtonClass   string `json:"button_class,omitempty"`
	MatchedText   string `json:"matched_text,omitempty"`

	// Verification steps.
	Criteria string `json:"criteria,omitempty"`

	// Tab switching.
	TabIndex *int `json:"tab_index,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// detailKeys lists the JSON keys Details decodes into typed fields; anything
// else lands in Extra.
var detailKeys = map[string]struct{}{
	"tagName": {}, "text": {}, "value": {}, "url": {}, "id": {}, "name": {},
	"className": {}, "placeholder": {}, "type": {}, "ariaLabel": {}, "label": {},
	"xpath": {}, "selector": {}, "inShadowRoot": {}, "inIframe": {},
	"iframeIndex": {}, "coordinates": {}, "locators": {}, "action": {},
	"input_value": {}, "modal_selector": {}, "button_text": {}, "button_id": {},
	"button_class": {}, "matched_text": {}, "criteria": {}, "tab_index": {},
}

func (d *Details) UnmarshalJSON(data []byte) error {
	type plain Details
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Details(p)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if _, known := detailKeys[k]; known {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
	return nil
}

func (d Details) MarshalJSON() ([]byte, error) {
	type plain Details
	base, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, known := detailKeys[k]; known {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ScreenshotRef points at the screenshot the recorder captured alongside the
// activity.
type ScreenshotRef struct {
	Path string `json:"path,omitempty"`
}

// Activity is one recorded user action. Created once during recording and
// immutable during replay, except for in-place enrichment of the vision
// description.
type Activity struct {
	Action         Kind           `json:"action"`
	Details        Details        `json:"details"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Screenshot     *ScreenshotRef `json:"screenshot,omitempty"`
	VLMDescription string         `json:"vlm_description,omitempty"`
	ElementHTML    string         `json:"element_html,omitempty"`
	WindowHandle   string         `json:"window_handle,omitempty"`
	TabIndex       *int           `json:"tab_index,omitempty"`
}

// Describe synthesizes a natural-language description of the target from the
// available attribute hints, in a fixed human-readable order.
func (a *Activity) Describe() string {
	d := a.Details
	var parts []string
	if d.Text != "" {
		parts = append(parts, fmt.Sprintf("text '%s'", truncate(d.Text, 50)))
	}
	if d.TagName != "" {
		parts = append(parts, fmt.Sprintf("%s element", strings.ToLower(d.TagName)))
	}
	if d.Placeholder != "" {
		parts = append(parts, fmt.Sprintf("placeholder '%s'", d.Placeholder))
	}
	if d.AriaLabel != "" {
		parts = append(parts, fmt.Sprintf("aria-label '%s'", d.AriaLabel))
	}
	if len(parts) == 0 {
		if a.Action == TextInput {
			return "input field"
		}
		return "clickable element"
	}
	return strings.Join(parts, " with ")
}

// truncate shortens s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// TargetCriteria builds the search criteria for the deep shadow-DOM and
// iframe searches from the recorded details.
func (a *Activity) TargetCriteria() dom.Criteria {
	return dom.Criteria{
		TagName:     strings.ToUpper(a.Details.TagName),
		ID:          a.Details.ID,
		Name:        a.Details.Name,
		Placeholder: a.Details.Placeholder,
		Type:        a.Details.Type,
	}
}

// LoadLog reads an ordered activity log from a JSON file.
func LoadLog(path string) ([]Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	var activities []Activity
	if err := json.Unmarshal(data, &activities); err != nil {
		return nil, fmt.Errorf("parse activity log: %w", err)
	}
	return activities, nil
}

// SaveLog writes the activity log back to disk, preserving unknown fields.
func SaveLog(path string, activities []Activity) error {
	data, err := json.MarshalIndent(activities, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activity log: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
