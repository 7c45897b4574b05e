package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseMatchJSON extracts and parses a JSON object from a response that may
// contain surrounding text or a markdown fence.
func parseMatchJSON(response string) (Match, error) {
	var m Match
	if err := json.Unmarshal([]byte(response), &m); err == nil {
		return m, nil
	}

	// Find first balanced JSON object in the response.
	start := strings.Index(response, "{")
	if start == -1 {
		return Match{}, fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	end := -1
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}

	if end == -1 {
		return Match{}, fmt.Errorf("no matching closing brace found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &m); err != nil {
		return Match{}, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return m, nil
}

// clampMatch bounds the match coordinates to the image dimensions. Models
// occasionally report points just past an edge for elements flush against it.
func clampMatch(m Match, width, height int) Match {
	if !m.Found {
		return m
	}
	if m.X < 0 {
		m.X = 0
	}
	if m.Y < 0 {
		m.Y = 0
	}
	if w := float64(width); m.X >= w && w > 0 {
		m.X = w - 1
	}
	if h := float64(height); m.Y >= h && h > 0 {
		m.Y = h - 1
	}
	return m
}
