package executor

import (
	"fmt"
	"strings"
)

// Assertion is an external check run against the session after an activity's
// interaction. Failures fail the step but never abort the run.
type Assertion interface {
	Name() string
	Check(ctrl Controller) error
}

// AssertionResult is the recorded outcome of one assertion.
type AssertionResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// TextPresent asserts that the page's rendered text contains a substring,
// case-insensitively.
type TextPresent struct {
	Text string
}

func (a TextPresent) Name() string {
	return fmt.Sprintf("text present: %q", a.Text)
}

func (a TextPresent) Check(ctrl Controller) error {
	text, err := ctrl.PageText()
	if err != nil {
		return fmt.Errorf("read page text: %w", err)
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(a.Text)) {
		return fmt.Errorf("%q not found on page", a.Text)
	}
	return nil
}
