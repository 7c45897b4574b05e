// Package vision locates on-screen elements from screenshots using a vision
// language model. It is the last resort of the element-resolution cascade and
// also powers activity-log enrichment with human-readable step descriptions.
package vision

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ConfidenceThreshold is the minimum self-reported confidence at which a
// vision match is acted on. Below it the match is treated as a miss.
const ConfidenceThreshold = 0.7

// Match is the model's answer to "where is this element on the screenshot".
// X and Y are in screenshot pixel coordinates.
type Match struct {
	Found      bool    `json:"found"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Accept reports whether the match is trustworthy enough to click on.
func (m Match) Accept() bool {
	return m.Found && m.Confidence >= ConfidenceThreshold
}

// Finder answers visual questions about screenshots.
type Finder interface {
	// FindElement locates the described element on a PNG screenshot.
	FindElement(ctx context.Context, screenshot []byte, description string) (Match, error)

	// Describe produces a short natural-language description of what the
	// screenshot shows, guided by the prompt.
	Describe(ctx context.Context, screenshot []byte, prompt string) (string, error)

	// Available reports whether the backing model can actually be reached.
	Available() bool

	Name() string
}

// New selects a vision backend by probing reachability at startup: a local or
// remote OpenAI-compatible endpoint first, then Anthropic, then a no-op
// fallback so replay still runs with the vision steps skipped.
func New(model string) Finder {
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if f, err := NewOpenAIFinder(model); err == nil {
		if f.probe(probeCtx) {
			slog.Info("vision backend selected", "backend", f.Name(), "model", f.model)
			return f
		}
		slog.Debug("OpenAI-compatible endpoint unreachable, trying next backend")
	} else {
		slog.Debug("OpenAI-compatible backend not configured", "error", err)
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" || os.Getenv("WEBREPLAY_ANTHROPIC_KEY") != "" {
		if f, err := NewClaudeFinder(model); err == nil {
			slog.Info("vision backend selected", "backend", f.Name(), "model", f.model)
			return f
		}
	}

	slog.Warn("no vision backend reachable, visual fallback disabled")
	return NoopFinder{}
}

// NoopFinder is the null backend: every lookup is a miss and descriptions are
// empty. Used when no model endpoint is reachable.
type NoopFinder struct{}

func (NoopFinder) FindElement(context.Context, []byte, string) (Match, error) {
	return Match{Found: false}, nil
}

func (NoopFinder) Describe(context.Context, []byte, string) (string, error) {
	return "", nil
}

func (NoopFinder) Available() bool { return false }
func (NoopFinder) Name() string    { return "noop" }
