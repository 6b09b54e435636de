package workflow

import (
	"context"

	"inkwell/internal/gateway"
	"inkwell/internal/models"
)

// SkeletonCards is the fixed cardinality of the placeholder grid shown while
// the listing fetch is pending.
const SkeletonCards = 3

// List resolves the full post collection for the listing page. The fetch is
// always treated as dynamic: the handler marks the response non-cacheable
// unless the component-cache feature flag serves a tagged cached rendering
// (invalidated whenever a post is created). No pagination, filtering, or
// sorting contract exists; the gateway determines order.
type List struct {
	gw gateway.Gateway
}

// NewList creates the list workflow.
func NewList(gw gateway.Gateway) *List {
	return &List{gw: gw}
}

// Run fetches all posts. Failures propagate to the page error boundary.
func (w *List) Run(ctx context.Context) ([]*models.Post, error) {
	return w.gw.GetPosts(ctx)
}
