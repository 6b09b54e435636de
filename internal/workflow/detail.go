// Package workflow contains the page-level request/response flows: post
// detail, post listing, and post creation. Workflows take the session token
// as an explicit argument and depend only on the gateway, which keeps them
// pure enough to drive with stubs in tests.
package workflow

import (
	"context"

	"inkwell/internal/gateway"
	"inkwell/internal/models"

	"golang.org/x/sync/errgroup"
)

// LoginPath is where unauthenticated viewers are redirected before any post
// content renders.
const LoginPath = "/auth/login"

// DetailInput identifies the requested post and carries the inbound session token.
type DetailInput struct {
	PostID uint
	Token  string
}

// DetailResult is the outcome of the detail workflow. Exactly one of
// RedirectTo, NotFound, or Post is meaningful.
type DetailResult struct {
	RedirectTo string
	NotFound   bool
	Post       *models.Post
	Comments   *gateway.PreloadedComments
	ViewerID   uint
	// RoomID keys the presence room for this post; a convention shared with
	// the real-time collaborator, not a lock.
	RoomID uint
}

// Detail resolves a post page: post metadata, preloaded comments, and the
// viewer identity.
type Detail struct {
	gw gateway.Gateway
}

// NewDetail creates the detail workflow.
func NewDetail(gw gateway.Gateway) *Detail {
	return &Detail{gw: gw}
}

// Run issues the three reads concurrently and joins them with
// all-succeed-or-first-failure semantics: the post fetch, the comment
// preload, and the viewer resolution have no data dependency on one another,
// so end-to-end latency is the slowest single call rather than the sum.
// The identity gate runs only after all three settle; the reads are never
// skipped. Read failures are not recovered here: they propagate to the
// page-level error boundary.
func (w *Detail) Run(ctx context.Context, in DetailInput) (*DetailResult, error) {
	var (
		post     *models.Post
		comments *gateway.PreloadedComments
		viewerID uint
		viewerOK bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		post, err = w.gw.GetPostByID(gctx, in.PostID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = w.gw.PreloadComments(gctx, in.PostID)
		return err
	})
	g.Go(func() error {
		var err error
		viewerID, viewerOK, err = w.gw.GetUserID(gctx, in.Token)
		return err
	})

	if err := g.Wait(); err != nil {
		if comments != nil {
			comments.Cancel()
		}
		return nil, err
	}

	if !viewerOK {
		comments.Cancel()
		return &DetailResult{RedirectTo: LoginPath}, nil
	}

	if post == nil {
		comments.Cancel()
		return &DetailResult{NotFound: true, ViewerID: viewerID}, nil
	}

	return &DetailResult{
		Post:     post,
		Comments: comments,
		ViewerID: viewerID,
		RoomID:   post.ID,
	}, nil
}
