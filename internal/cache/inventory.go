package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix = "post:%d"
	BlogListKey   = "posts:list"
	BlogRenderTag = "render:blog"
)

const (
	PostTTL   = 30 * time.Minute
	ListTTL   = 5 * time.Minute
	RenderTTL = time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateBlogList drops both the post-list data cache and the cached
// rendering tagged "blog", so the next list read reflects new posts.
func InvalidateBlogList(ctx context.Context) {
	Invalidate(ctx, BlogListKey)
	Invalidate(ctx, BlogRenderTag)
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
