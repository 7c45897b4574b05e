package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Match
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"found": true, "x": 120, "y": 340, "confidence": 0.92}`,
			want:     Match{Found: true, X: 120, Y: 340, Confidence: 0.92},
		},
		{
			name:     "markdown fence",
			response: "```json\n{\"found\": true, \"x\": 5, \"y\": 6, \"confidence\": 0.8}\n```",
			want:     Match{Found: true, X: 5, Y: 6, Confidence: 0.8},
		},
		{
			name:     "surrounding prose",
			response: `The element is here: {"found": true, "x": 10, "y": 20, "confidence": 0.75, "reasoning": "blue {button}"} as requested.`,
			want:     Match{Found: true, X: 10, Y: 20, Confidence: 0.75, Reasoning: "blue {button}"},
		},
		{
			name:     "not found",
			response: `{"found": false, "confidence": 0.0}`,
			want:     Match{Found: false},
		},
		{
			name:     "no object at all",
			response: "I cannot see that element.",
			wantErr:  true,
		},
		{
			name:     "unterminated object",
			response: `{"found": true, "x": 1`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMatchJSON(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClampMatch(t *testing.T) {
	m := clampMatch(Match{Found: true, X: 1500, Y: -3, Confidence: 0.9}, 1280, 720)
	assert.Equal(t, 1279.0, m.X)
	assert.Equal(t, 0.0, m.Y)

	// Misses pass through untouched.
	miss := clampMatch(Match{Found: false, X: 9999}, 1280, 720)
	assert.Equal(t, 9999.0, miss.X)
}

func TestRescaleMatch(t *testing.T) {
	p := prepared{width: 1024, height: 576, scale: 1.25}
	m := rescaleMatch(Match{Found: true, X: 100, Y: 200, Confidence: 0.9}, p)
	assert.Equal(t, 125.0, m.X)
	assert.Equal(t, 250.0, m.Y)
}

func TestMatchAccept(t *testing.T) {
	assert.True(t, Match{Found: true, Confidence: 0.7}.Accept())
	assert.False(t, Match{Found: true, Confidence: 0.69}.Accept())
	assert.False(t, Match{Found: false, Confidence: 0.99}.Accept())
}
