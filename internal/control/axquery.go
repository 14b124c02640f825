package control

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"

	"github.com/ajsharma/verify_split/internal/browser"
)

// FindRole queries the accessibility tree for elements with the given role
// and exact accessible name. It reports whether the single match has a
// non-empty box, and fails with browser.ErrAmbiguousMatch on several matches.
// It must run inside a chromedp executor context.
func FindRole(ctx context.Context, role, name string) (bool, error) {
	doc, err := dom.GetDocument().WithDepth(0).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("get document: %w", err)
	}

	nodes, err := accessibility.QueryAXTree().
		WithBackendNodeID(doc.BackendNodeID).
		WithAccessibleName(name).
		WithRole(role).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("query accessibility tree: %w", err)
	}

	matches := backendIDs(nodes)
	switch len(matches) {
	case 0:
		return false, nil
	case 1:
	default:
		return false, fmt.Errorf("%w: role=%s name=%q resolved to %d elements",
			browser.ErrAmbiguousMatch, role, name, len(matches))
	}

	box, err := dom.GetBoxModel().WithBackendNodeID(matches[0]).Do(ctx)
	if err != nil {
		// No box model means the node is not rendered.
		return false, nil
	}
	return box.Width > 0 && box.Height > 0, nil
}

// backendIDs keeps the DOM-backed, non-ignored nodes.
func backendIDs(nodes []*accessibility.Node) []cdp.BackendNodeID {
	var ids []cdp.BackendNodeID
	for _, n := range nodes {
		if n == nil || n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		ids = append(ids, n.BackendDOMNodeID)
	}
	return ids
}
