// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		cache.InvalidateBlogList(ctx)
	}
	return err
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		return r.withCommentsCount(r.db.WithContext(ctx)).
			Preload("User").
			First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post

	err := cache.Aside(ctx, cache.BlogListKey, &posts, cache.ListTTL, func() error {
		return r.withCommentsCount(r.db.WithContext(ctx)).
			Preload("User").
			Order("created_at DESC").
			Find(&posts).Error
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) withCommentsCount(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).
		Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) AS comments_count")
}
