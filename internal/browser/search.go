package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/v0xg/webreplay/internal/dom"
)

// EnterIframe switches the query scope into an iframe, resolving it by id,
// then name, then selector, then positional index.
func (s *Session) EnterIframe(step dom.PathStep) error {
	var frameEl *rod.Element
	var err error

	switch {
	case step.ID != "":
		frameEl, err = s.frame.Timeout(queryTimeout).Element(fmt.Sprintf("iframe[id=%q]", step.ID))
	case step.Name != "":
		frameEl, err = s.frame.Timeout(queryTimeout).Element(fmt.Sprintf("iframe[name=%q]", step.Name))
	case step.Selector != "":
		frameEl, err = s.frame.Timeout(queryTimeout).Element(step.Selector)
	case step.Index != nil:
		var els rod.Elements
		els, err = s.frame.Elements("iframe")
		if err == nil {
			if *step.Index < 0 || *step.Index >= len(els) {
				return fmt.Errorf("iframe index %d out of range (%d iframes)", *step.Index, len(els))
			}
			frameEl = els[*step.Index]
		}
	default:
		return fmt.Errorf("iframe step has no id, name, selector or index")
	}
	if err != nil {
		return fmt.Errorf("resolve iframe: %w", err)
	}
	if step.Index == nil {
		frameEl = frameEl.CancelTimeout()
	}

	frame, err := frameEl.Frame()
	if err != nil {
		return fmt.Errorf("switch into iframe: %w", err)
	}
	s.frame = frame
	s.shadow = nil
	return nil
}

// EnterShadow scopes queries to the shadow root of the host element.
func (s *Session) EnterShadow(hostSelector string) error {
	var host *rod.Element
	var err error
	if s.shadow != nil {
		host, err = s.shadow.Timeout(queryTimeout).Element(hostSelector)
	} else {
		host, err = s.frame.Timeout(queryTimeout).Element(hostSelector)
	}
	if err != nil {
		return fmt.Errorf("resolve shadow host %q: %w", hostSelector, err)
	}

	root, err := host.CancelTimeout().ShadowRoot()
	if err != nil {
		return fmt.Errorf("access shadow root of %q: %w", hostSelector, err)
	}
	s.shadow = root
	return nil
}

// deepShadowSearchJS walks the document and every open shadow root
// depth-first for the first visible element matching the criteria.
const deepShadowSearchJS = `(criteria) => {
	const matches = (el) => {
		if (criteria.tagName && el.tagName !== criteria.tagName) return false;
		if (criteria.id && el.id !== criteria.id) return false;
		if (criteria.name && el.getAttribute('name') !== criteria.name) return false;
		if (criteria.placeholder && el.getAttribute('placeholder') !== criteria.placeholder) return false;
		if (criteria.type && el.getAttribute('type') !== criteria.type) return false;
		return true;
	};
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};
	const walk = (root) => {
		for (const el of root.querySelectorAll('*')) {
			if (matches(el) && visible(el)) return el;
			if (el.shadowRoot) {
				const found = walk(el.shadowRoot);
				if (found) return found;
			}
		}
		return null;
	};
	return walk(document);
}`

// shadowRetryDelays implements progressive backoff for web components that
// render asynchronously after page load.
var shadowRetryDelays = []time.Duration{
	500 * time.Millisecond,
	time.Second,
	1500 * time.Millisecond,
}

// SearchShadowDeep walks every open shadow root for an element matching the
// criteria, retrying with increasing delays so late-rendering components get
// a chance to attach.
func (s *Session) SearchShadowDeep(c dom.Criteria) (dom.Node, error) {
	for attempt := 0; ; attempt++ {
		el, err := s.frame.ElementByJS(rod.Eval(deepShadowSearchJS, c))
		if err == nil && el != nil {
			return &rodNode{el: el}, nil
		}

		if attempt >= len(shadowRetryDelays) {
			return nil, dom.ErrNotFound
		}
		slog.Debug("shadow search retry", "attempt", attempt+1, "criteria", c)
		time.Sleep(shadowRetryDelays[attempt])
	}
}

// SearchIframes enumerates same-origin iframes on the active page and tries
// id, name and tag-based lookups inside each. On a hit the query scope stays
// switched into that iframe; the caller must Reset after interacting.
func (s *Session) SearchIframes(c dom.Criteria) (dom.Node, error) {
	frames, err := s.page.Elements("iframe")
	if err != nil {
		return nil, fmt.Errorf("enumerate iframes: %w", err)
	}

	for i, frameEl := range frames {
		frame, err := frameEl.Frame()
		if err != nil {
			slog.Debug("iframe not accessible", "index", i, "error", err)
			continue
		}

		for _, selector := range iframeSelectors(c) {
			el, err := frame.Timeout(queryTimeout).Element(selector)
			if err != nil {
				continue
			}
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
			slog.Debug("element found in iframe", "index", i, "selector", selector)
			s.frame = frame
			s.shadow = nil
			return &rodNode{el: el.CancelTimeout()}, nil
		}
	}
	return nil, dom.ErrNotFound
}

// iframeSelectors builds the lookup cascade used inside each iframe.
func iframeSelectors(c dom.Criteria) []string {
	var selectors []string
	if c.ID != "" {
		selectors = append(selectors, fmt.Sprintf("[id=%q]", c.ID))
	}
	if c.Name != "" {
		selectors = append(selectors, fmt.Sprintf("[name=%q]", c.Name))
	}
	if c.TagName != "" {
		sel := c.TagName
		if c.Placeholder != "" {
			sel += fmt.Sprintf("[placeholder=%q]", c.Placeholder)
		} else if c.Type != "" {
			sel += fmt.Sprintf("[type=%q]", c.Type)
		}
		selectors = append(selectors, sel)
	}
	return selectors
}
