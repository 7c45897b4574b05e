package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v0xg/webreplay/internal/dom"
)

func TestIframeSelectors(t *testing.T) {
	tests := []struct {
		name string
		c    dom.Criteria
		want []string
	}{
		{
			name: "id first",
			c:    dom.Criteria{ID: "q", Name: "query", TagName: "INPUT"},
			want: []string{`[id="q"]`, `[name="query"]`, "INPUT"},
		},
		{
			name: "tag with placeholder",
			c:    dom.Criteria{TagName: "INPUT", Placeholder: "Search..."},
			want: []string{`INPUT[placeholder="Search..."]`},
		},
		{
			name: "tag with type when no placeholder",
			c:    dom.Criteria{TagName: "INPUT", Type: "email"},
			want: []string{`INPUT[type="email"]`},
		},
		{
			name: "empty criteria",
			c:    dom.Criteria{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, iframeSelectors(tt.c))
		})
	}
}
