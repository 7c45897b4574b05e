package locator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/dom"
)

// ElementLocator owns one target's full set of strategies and tries them in
// order against the live document. Recreated per activity; the learned
// success rates and the last-successful pointer do not persist across replay
// runs.
type ElementLocator struct {
	Description string
	Strategies  []*Strategy

	// Recency bias: if a prior Find on this object succeeded, that strategy
	// is retried first on the next call.
	lastSuccessful *Strategy

	// Visual context captured by the recorder.
	InShadowRoot bool
	InIframe     bool
	TagName      string
}

// New creates an empty locator for the described target.
func New(description string) *ElementLocator {
	return &ElementLocator{Description: description}
}

// Add appends a strategy with its kind's static priority.
func (l *ElementLocator) Add(kind Kind, value string) *ElementLocator {
	l.Strategies = append(l.Strategies, &Strategy{
		Kind:     kind,
		Value:    value,
		Priority: PriorityFor(kind),
	})
	return l
}

// AddCoordinates appends a coordinate hit-test strategy.
func (l *ElementLocator) AddCoordinates(x, y float64) *ElementLocator {
	l.Strategies = append(l.Strategies, &Strategy{
		Kind:     KindCoordinates,
		X:        x,
		Y:        y,
		Priority: PriorityFor(KindCoordinates),
	})
	return l
}

// FromActivity builds a locator from the recorded locator bundle and the
// attributes recorded directly on the details. Older recorders wrote no
// bundle at all, so the details-level fields must contribute strategies on
// their own; when both carry the same value the strategy is added once.
func FromActivity(act *activity.Activity) *ElementLocator {
	d := act.Details

	description := d.TagName
	if description == "" {
		description = "element"
	}
	if d.Text != "" {
		description += fmt.Sprintf(" with text '%s'", truncate(d.Text, 30))
	}

	l := New(description)
	l.TagName = d.TagName

	seen := make(map[string]bool)
	add := func(kind Kind, value string) {
		if value == "" {
			return
		}
		key := string(kind) + "\x00" + value
		if seen[key] {
			return
		}
		seen[key] = true
		l.Add(kind, value)
	}

	if loc := d.Locators; loc != nil {
		add(KindID, loc.ID)
		add(KindName, loc.Name)
		add(KindClass, loc.Class)
		add(KindCSS, loc.CSSSelector)
		add(KindXPath, loc.XPath)
		add(KindTextContent, loc.Text)
		if loc.Placeholder != "" {
			add(KindCSS, fmt.Sprintf("[placeholder=%q]", loc.Placeholder))
		}
		if loc.AriaLabel != "" {
			add(KindCSS, fmt.Sprintf("[aria-label=%q]", loc.AriaLabel))
		}
		if loc.Label != "" {
			add(KindXPath, fmt.Sprintf("//label[contains(text(), %s)]/following-sibling::input", xpathLiteral(loc.Label)))
		}
		l.InShadowRoot = loc.InShadowRoot
		l.InIframe = loc.InIframe
	}

	add(KindID, d.ID)
	add(KindName, d.Name)
	add(KindClass, d.ClassName)
	add(KindXPath, d.XPath)
	add(KindCSS, d.Selector)
	add(KindTextContent, d.Text)
	if d.Placeholder != "" {
		add(KindCSS, fmt.Sprintf("[placeholder=%q]", d.Placeholder))
	}
	if d.AriaLabel != "" {
		add(KindCSS, fmt.Sprintf("[aria-label=%q]", d.AriaLabel))
	}

	if x, y, ok := recordedCoordinates(d); ok {
		l.AddCoordinates(x, y)
	}

	l.InShadowRoot = l.InShadowRoot || d.InShadowRoot
	l.InIframe = l.InIframe || d.InIframe
	return l
}

// recordedCoordinates prefers the bundle's coordinates over the details-level
// ones.
func recordedCoordinates(d activity.Details) (float64, float64, bool) {
	if d.Locators != nil {
		if x, y, ok := d.Locators.Coordinates.Center(); ok {
			return x, y, true
		}
	}
	return d.Coordinates.Center()
}

// truncate shortens s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sorted returns the attempt order: the last successful strategy first when
// present, otherwise priority ascending with success rate as tie-breaker
// (stable, so equal entries keep insertion order).
func (l *ElementLocator) sorted() []*Strategy {
	if l.lastSuccessful != nil {
		out := make([]*Strategy, 0, len(l.Strategies))
		out = append(out, l.lastSuccessful)
		for _, s := range l.Strategies {
			if s != l.lastSuccessful {
				out = append(out, s)
			}
		}
		return out
	}

	out := make([]*Strategy, len(l.Strategies))
	copy(out, l.Strategies)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].SuccessRate() > out[j].SuccessRate()
	})
	return out
}

// Find tries each strategy in order and returns the first that resolves to a
// currently displayed element. A present-but-hidden node counts as a failure
// for that strategy and the cascade continues. The timeout bounds total
// wall-clock across all strategies, checked before each attempt.
func (l *ElementLocator) Find(b dom.Bridge, timeout time.Duration) dom.Resolution {
	start := time.Now()
	strategies := l.sorted()
	lastErr := "no locator strategies available"

	slog.Debug("locating element", "target", l.Description, "strategies", len(strategies))

	for _, s := range strategies {
		if time.Since(start) > timeout {
			lastErr = fmt.Sprintf("locator timeout after %s", timeout)
			break
		}

		if s.Kind == KindCoordinates {
			node, err := b.ElementAt(s.X, s.Y)
			if err == nil && node != nil {
				if visible, verr := node.Visible(); verr == nil && visible {
					s.recordSuccess()
					l.lastSuccessful = s
					return dom.Found(node, string(s.Kind))
				}
			}
			s.recordFailure()
			lastErr = "no visible element at recorded coordinates"
			continue
		}

		node, err := s.try(b)
		if err != nil {
			s.recordFailure()
			lastErr = fmt.Sprintf("%s failed: %v", s.Kind, err)
			continue
		}

		visible, err := node.Visible()
		if err != nil {
			s.recordFailure()
			lastErr = fmt.Sprintf("%s error: %v", s.Kind, err)
			continue
		}
		if !visible {
			s.recordFailure()
			lastErr = fmt.Sprintf("element found but not displayed (%s)", s.Kind)
			continue
		}

		s.recordSuccess()
		l.lastSuccessful = s
		slog.Debug("element located", "target", l.Description, "method", s.Kind)
		return dom.Found(node, string(s.Kind))
	}

	slog.Debug("all strategies failed", "target", l.Description, "reason", lastErr)
	return dom.NotFound(lastErr)
}

// LastSuccessful exposes the recency-bias pointer, for diagnostics.
func (l *ElementLocator) LastSuccessful() *Strategy { return l.lastSuccessful }
