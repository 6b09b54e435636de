// Package gateway exposes the typed query/mutation surface the page workflows
// consume. It mirrors an RPC client to a reactive document store: point-in-time
// queries, authorized mutations, and preloadable queries whose result keeps
// updating after the initial render.
package gateway

import (
	"context"

	"inkwell/internal/models"
)

// PreloadedComments is the handle produced by a preloadable comment query:
// the initial snapshot plus a live update stream handed to the rendering
// subtree rather than consumed once. Callers must invoke Cancel when the
// subtree is torn down.
type PreloadedComments struct {
	PostID   uint
	Comments []*models.Comment
	Updates  <-chan []byte
	Cancel   func()
}

// CreatePostArgs is the payload for the create-post mutation.
type CreatePostArgs struct {
	Title          string
	Body           string
	ImageStorageID string
}

// CreateCommentArgs is the payload for the create-comment mutation.
type CreateCommentArgs struct {
	PostID uint
	Body   string
}

// Gateway is the data access surface. Queries taking a token treat an
// unresolvable viewer as absent, not as an error; mutations require a valid
// token and fail with an unauthorized error otherwise.
type Gateway interface {
	// GetPostByID returns the post or (nil, nil) when no record matches.
	GetPostByID(ctx context.Context, postID uint) (*models.Post, error)
	// GetPosts returns the full post collection, newest first.
	GetPosts(ctx context.Context) ([]*models.Post, error)
	// PreloadComments returns a live-updating handle for a post's comments.
	PreloadComments(ctx context.Context, postID uint) (*PreloadedComments, error)
	// GetUserID resolves the viewer identity from a session token.
	GetUserID(ctx context.Context, token string) (uint, bool, error)
	// GenerateImageUploadURL mints a single-use upload URL for the viewer.
	GenerateImageUploadURL(ctx context.Context, token string) (string, error)
	// CreatePost persists a new post and returns its ID.
	CreatePost(ctx context.Context, token string, args CreatePostArgs) (uint, error)
	// CreateComment persists a new comment and fans it out to preloaded handles.
	CreateComment(ctx context.Context, token string, args CreateCommentArgs) (uint, error)
}
