package locator

import (
	"fmt"
	"strings"

	"github.com/v0xg/webreplay/internal/dom"
)

// Kind is one element-finding tactic.
type Kind string

const (
	KindID              Kind = "id"
	KindName            Kind = "name"
	KindCSS             Kind = "css"
	KindXPath           Kind = "xpath"
	KindLinkText        Kind = "link_text"
	KindPartialLinkText Kind = "partial_link_text"
	KindTagName         Kind = "tag_name"
	KindClass           Kind = "class"
	KindTextContent     Kind = "text_content"
	KindCoordinates     Kind = "coordinates"
)

// Static priority rank per kind; lower is tried earlier.
var priorities = map[Kind]int{
	KindID:              10,
	KindName:            20,
	KindCSS:             30,
	KindXPath:           40,
	KindLinkText:        50,
	KindPartialLinkText: 60,
	KindTagName:         70,
	KindClass:           80,
	KindTextContent:     90,
	KindCoordinates:     100,
}

const defaultPriority = 100

// PriorityFor returns the static rank for a strategy kind.
func PriorityFor(k Kind) int {
	if p, ok := priorities[k]; ok {
		return p
	}
	return defaultPriority
}

// Strategy is a single (kind, value, priority) tactic with running
// success/failure tallies. Owned exclusively by one ElementLocator; tallies
// accumulate only over that locator's lifetime.
type Strategy struct {
	Kind     Kind
	Value    string
	X, Y     float64 // coordinates kind only
	Priority int

	successes int
	failures  int
}

// SuccessRate is successes over total attempts, zero when untried.
func (s *Strategy) SuccessRate() float64 {
	total := s.successes + s.failures
	if total == 0 {
		return 0
	}
	return float64(s.successes) / float64(total)
}

func (s *Strategy) recordSuccess() { s.successes++ }
func (s *Strategy) recordFailure() { s.failures++ }

// Attempts returns the total recorded attempts, for diagnostics.
func (s *Strategy) Attempts() int { return s.successes + s.failures }

// try runs the strategy's single resolution technique against the current
// context. Coordinates strategies are hit-tested by the ElementLocator, not
// here.
func (s *Strategy) try(b dom.Bridge) (dom.Node, error) {
	switch s.Kind {
	case KindID:
		return b.QueryCSS(fmt.Sprintf("[id=%q]", s.Value))
	case KindName:
		return b.QueryCSS(fmt.Sprintf("[name=%q]", s.Value))
	case KindClass:
		return b.QueryCSS("." + firstClass(s.Value))
	case KindCSS:
		return b.QueryCSS(s.Value)
	case KindXPath:
		return b.QueryXPath(s.Value)
	case KindTagName:
		return b.QueryCSS(s.Value)
	case KindLinkText:
		return b.QueryXPath(fmt.Sprintf("//a[normalize-space(text())=%s]", xpathLiteral(s.Value)))
	case KindPartialLinkText:
		return b.QueryXPath(fmt.Sprintf("//a[contains(text(), %s)]", xpathLiteral(s.Value)))
	case KindTextContent:
		// Substring match on rendered text; first match wins.
		return b.QueryXPath(fmt.Sprintf("//*[contains(text(), %s)]", xpathLiteral(s.Value)))
	default:
		return nil, fmt.Errorf("unsupported strategy kind %q", s.Kind)
	}
}

func firstClass(classes string) string {
	fields := strings.Fields(classes)
	if len(fields) == 0 {
		return classes
	}
	return fields[0]
}

// xpathLiteral quotes a string for use in an XPath expression. XPath 1.0 has
// no escape syntax, so values containing both quote kinds are built with
// concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
