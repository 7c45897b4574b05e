package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The readiness sample script runs opaque in the browser, so these tests pin
// the parts of its loader-visibility walk that are easy to regress.
func TestReadinessSampleLoaderVisibilityWalk(t *testing.T) {
	// Near-invisible spinners (opacity below 0.1) must not count as visible;
	// an exact-zero check misses spinners faded out to 0.01.
	assert.Contains(t, readinessSampleJS, "parseFloat(cs.opacity) < 0.1")
	assert.NotContains(t, readinessSampleJS, "cs.opacity === 0")

	// The ancestor walk covers <body> itself: stopping at document.body would
	// skip a body-level display:none.
	assert.Contains(t, readinessSampleJS, "node !== document.documentElement")
	assert.NotContains(t, readinessSampleJS, "node !== document.body")

	assert.Contains(t, readinessSampleJS, "cs.visibility === 'hidden'")
	assert.Contains(t, readinessSampleJS, "cs.visibility === 'collapse'")
}

func TestReadinessSampleChecksCheapestFirst(t *testing.T) {
	order := []string{
		"document.readyState",
		"network requests in flight",
		"jQuery",
		"lastMutation",
		"aria-busy",
		"nprogress-busy",
	}
	pos := -1
	for _, marker := range order {
		next := strings.Index(readinessSampleJS, marker)
		assert.Greater(t, next, pos, "check %q out of order", marker)
		pos = next
	}
}
