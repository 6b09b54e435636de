package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/storage"

	"gorm.io/gorm"
)

// Local is the in-process Gateway implementation: repositories for documents,
// the storage service for upload tickets, and the comment feed for live
// updates.
type Local struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	tokens   *auth.TokenProvider
	storage  *storage.Service
	feed     *notifications.CommentFeed
}

// NewLocal wires a local gateway from its collaborators.
func NewLocal(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	tokens *auth.TokenProvider,
	store *storage.Service,
	feed *notifications.CommentFeed,
) *Local {
	return &Local{
		posts:    posts,
		comments: comments,
		tokens:   tokens,
		storage:  store,
		feed:     feed,
	}
}

func (g *Local) GetPostByID(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := g.posts.GetByID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Absent is a rendered empty state, not an error.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (g *Local) GetPosts(ctx context.Context) ([]*models.Post, error) {
	return g.posts.List(ctx)
}

func (g *Local) PreloadComments(ctx context.Context, postID uint) (*PreloadedComments, error) {
	comments, err := g.comments.GetByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	updates, cancel := g.feed.Subscribe(postID)
	return &PreloadedComments{
		PostID:   postID,
		Comments: comments,
		Updates:  updates,
		Cancel:   cancel,
	}, nil
}

func (g *Local) GetUserID(_ context.Context, token string) (uint, bool, error) {
	userID, ok := g.tokens.Resolve(token)
	return userID, ok, nil
}

func (g *Local) GenerateImageUploadURL(ctx context.Context, token string) (string, error) {
	userID, ok := g.tokens.Resolve(token)
	if !ok {
		return "", models.NewUnauthorizedError("Authorization required")
	}
	return g.storage.IssueTicket(ctx, userID)
}

func (g *Local) CreatePost(ctx context.Context, token string, args CreatePostArgs) (uint, error) {
	userID, ok := g.tokens.Resolve(token)
	if !ok {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	if strings.TrimSpace(args.Title) == "" || strings.TrimSpace(args.Body) == "" {
		return 0, models.NewValidationError("Title and body are required")
	}

	post := &models.Post{
		Title:          args.Title,
		Body:           args.Body,
		ImageStorageID: args.ImageStorageID,
		UserID:         userID,
	}
	if err := g.posts.Create(ctx, post); err != nil {
		return 0, err
	}
	return post.ID, nil
}

func (g *Local) CreateComment(ctx context.Context, token string, args CreateCommentArgs) (uint, error) {
	userID, ok := g.tokens.Resolve(token)
	if !ok {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	if strings.TrimSpace(args.Body) == "" {
		return 0, models.NewValidationError("Comment body is required")
	}

	comment := &models.Comment{
		PostID: args.PostID,
		UserID: userID,
		Body:   args.Body,
	}
	if err := g.comments.Create(ctx, comment); err != nil {
		return 0, err
	}

	if payload, err := json.Marshal(comment); err == nil {
		g.feed.Publish(ctx, args.PostID, payload)
	}
	return comment.ID, nil
}
