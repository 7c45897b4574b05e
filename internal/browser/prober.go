package browser

import (
	"fmt"

	"github.com/go-rod/rod"

	"github.com/v0xg/webreplay/internal/readiness"
)

// trackerJS installs request and mutation counters before any page script
// runs, so the readiness probe can see in-flight activity the browser itself
// does not report.
const trackerJS = `(() => {
	if (window.__replayTracker) return;
	const t = { active: 0, lastMutation: Date.now() };
	window.__replayTracker = t;

	const origFetch = window.fetch;
	if (origFetch) {
		window.fetch = function(...args) {
			t.active++;
			return origFetch.apply(this, args).finally(() => { t.active--; });
		};
	}

	const origSend = XMLHttpRequest.prototype.send;
	XMLHttpRequest.prototype.send = function(...args) {
		t.active++;
		this.addEventListener('loadend', () => { t.active--; });
		return origSend.apply(this, args);
	};

	const observe = () => {
		new MutationObserver(() => { t.lastMutation = Date.now(); }).observe(
			document.documentElement,
			{ childList: true, subtree: true, attributes: true },
		);
	};
	if (document.documentElement) {
		observe();
	} else {
		document.addEventListener('DOMContentLoaded', observe);
	}
})()`

// readinessSampleJS runs the layered page-busy checks in one round-trip,
// cheapest first, and reports the first signal that fires.
const readinessSampleJS = `() => {
	if (document.readyState !== 'complete') {
		return { loading: true, reason: 'document ' + document.readyState };
	}

	const t = window.__replayTracker;
	if (t && t.active > 0) {
		return { loading: true, reason: t.active + ' network requests in flight' };
	}
	if (window.jQuery && window.jQuery.active > 0) {
		return { loading: true, reason: 'jQuery requests active' };
	}

	if (t && Date.now() - t.lastMutation < 200) {
		return { loading: true, reason: 'DOM still mutating' };
	}

	const indicators = document.querySelectorAll(
		'.spinner, .loader, .loading, [class*="spinner"], [class*="loading"], [aria-busy="true"], progress:not([value])',
	);
	for (const el of indicators) {
		let node = el;
		let visible = true;
		while (node && node !== document.documentElement) {
			const cs = getComputedStyle(node);
			if (cs.display === 'none' || cs.visibility === 'hidden' || cs.visibility === 'collapse' || parseFloat(cs.opacity) < 0.1) {
				visible = false;
				break;
			}
			node = node.parentElement;
		}
		if (!visible) continue;
		const r = el.getBoundingClientRect();
		if (r.width > 0 && r.height > 0) {
			return { loading: true, reason: 'loading indicator visible' };
		}
	}

	if (document.querySelector('html.nprogress-busy, body.loading')) {
		return { loading: true, reason: 'framework busy flag set' };
	}

	return { loading: false, reason: 'all checks passed' };
}`

// injectTracker arms the tracker on the current document and on every future
// navigation of the page.
func (s *Session) injectTracker(page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(trackerJS); err != nil {
		return fmt.Errorf("register tracker: %w", err)
	}
	if _, err := page.Eval(trackerJS); err != nil {
		return fmt.Errorf("install tracker: %w", err)
	}
	return nil
}

// Prober returns a readiness probe bound to whichever page is active when
// each sample runs.
func (s *Session) Prober() readiness.Prober {
	return sessionProber{s: s}
}

type sessionProber struct {
	s *Session
}

func (p sessionProber) Sample() (readiness.Sample, error) {
	res, err := p.s.page.Eval(readinessSampleJS)
	if err != nil {
		return readiness.Sample{}, fmt.Errorf("readiness probe: %w", err)
	}
	return readiness.Sample{
		Loading: res.Value.Get("loading").Bool(),
		Reason:  res.Value.Get("reason").Str(),
	}, nil
}
