package browser

import (
	"fmt"
	"time"
)

// ActivateTab brings the tab at the given index to the foreground and makes
// it the session's active page.
func (s *Session) ActivateTab(index int) error {
	pages, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	if index < 0 || index >= len(pages) {
		return fmt.Errorf("tab index %d out of range (%d tabs)", index, len(pages))
	}

	page, err := pages[index].Activate()
	if err != nil {
		return fmt.Errorf("activate tab %d: %w", index, err)
	}

	s.page = page
	s.frame = page
	s.shadow = nil
	if err := s.injectTracker(page); err == nil {
		s.pumpDialogs(page)
	}
	return nil
}

// WaitNewTab waits for a tab beyond the currently known count to appear, then
// switches to the newest one. Returns immediately when the tab already opened
// before the call.
func (s *Session) WaitNewTab(timeout time.Duration) error {
	known, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	baseline := len(known)
	if s.knownTabs > 0 && s.knownTabs < baseline {
		// A tab opened since we last looked; switch without waiting.
		s.knownTabs = baseline
		return s.ActivateTab(baseline - 1)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pages, err := s.browser.Pages()
		if err != nil {
			return fmt.Errorf("list tabs: %w", err)
		}
		if len(pages) > baseline {
			s.knownTabs = len(pages)
			return s.ActivateTab(len(pages) - 1)
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("no new tab appeared within %s", timeout)
}

// CloseTab closes the active tab and falls back to the last remaining one.
func (s *Session) CloseTab() error {
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}

	pages, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no tabs left after close")
	}
	s.knownTabs = len(pages)
	return s.ActivateTab(len(pages) - 1)
}

// TabCount returns the number of open tabs.
func (s *Session) TabCount() (int, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return 0, err
	}
	s.knownTabs = len(pages)
	return len(pages), nil
}
