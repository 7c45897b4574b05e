package dom

import "fmt"

// PathStep is one hop of a recorded DOM path: an iframe to switch into, a
// shadow root to dereference, or the final element lookup.
type PathStep struct {
	Type         string `json:"type"` // iframe, shadow, element
	Selector     string `json:"selector,omitempty"`
	XPath        string `json:"xpath,omitempty"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Index        *int   `json:"index,omitempty"`
	HostSelector string `json:"hostSelector,omitempty"`
}

// Path is the exact nesting the recorder observed for a target element,
// outermost first.
type Path []PathStep

// TraversePath walks a recorded DOM path against the live document: iframe
// steps switch the bridge context, shadow steps dereference a shadow root,
// and the element step performs the final lookup scoped to wherever the path
// has led. The bridge context is left wherever the path ended; the caller
// must Reset on every exit path.
func TraversePath(b Bridge, path Path) (Node, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty DOM path")
	}

	if err := b.Reset(); err != nil {
		return nil, fmt.Errorf("reset context: %w", err)
	}

	for i, step := range path {
		switch step.Type {
		case "iframe":
			if err := b.EnterIframe(step); err != nil {
				return nil, fmt.Errorf("step %d: switch to iframe: %w", i+1, err)
			}
		case "shadow":
			if step.HostSelector == "" {
				return nil, fmt.Errorf("step %d: shadow step without host selector", i+1)
			}
			if err := b.EnterShadow(step.HostSelector); err != nil {
				return nil, fmt.Errorf("step %d: access shadow root: %w", i+1, err)
			}
		case "element":
			node, err := lookupElementStep(b, step)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			return node, nil
		default:
			return nil, fmt.Errorf("step %d: unknown path step type %q", i+1, step.Type)
		}
	}

	return nil, fmt.Errorf("DOM path has no element step")
}

// lookupElementStep resolves the final element of a path by id, then
// selector, then xpath.
func lookupElementStep(b Bridge, step PathStep) (Node, error) {
	if step.ID != "" {
		if node, err := b.QueryCSS(fmt.Sprintf("[id=%q]", step.ID)); err == nil {
			return node, nil
		}
	}
	if step.Selector != "" {
		if node, err := b.QueryCSS(step.Selector); err == nil {
			return node, nil
		}
	}
	if step.XPath != "" {
		if node, err := b.QueryXPath(step.XPath); err == nil {
			return node, nil
		}
	}
	return nil, ErrNotFound
}
