package repository

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepos(t *testing.T) (*gorm.DB, PostRepository, CommentRepository, *miniredis.Miniredis) {
	t.Helper()

	db, err := database.ConnectTest()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	return db, NewPostRepository(db), NewCommentRepository(db), mr
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestPostRepository_GetByIDIncludesCommentsCount(t *testing.T) {
	db, posts, comments, _ := setupRepos(t)
	ctx := context.Background()
	user := seedUser(t, db, "counter")

	post := &models.Post{Title: "counted", Body: "b", UserID: user.ID}
	require.NoError(t, posts.Create(ctx, post))

	for i := 0; i < 3; i++ {
		require.NoError(t, comments.Create(ctx, &models.Comment{
			PostID: post.ID, UserID: user.ID, Body: "c",
		}))
	}

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.CommentsCount)
	assert.Equal(t, "counter", got.User.Username)
}

func TestPostRepository_GetByIDMissing(t *testing.T) {
	_, posts, _, _ := setupRepos(t)

	_, err := posts.GetByID(context.Background(), 424242)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_ListIsCachedUntilCreate(t *testing.T) {
	db, posts, _, mr := setupRepos(t)
	ctx := context.Background()
	user := seedUser(t, db, "cacher")

	require.NoError(t, posts.Create(ctx, &models.Post{Title: "first", Body: "b", UserID: user.ID}))

	list, err := posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, mr.Exists(cache.BlogListKey))

	// Creating a post drops the cached list and the tagged rendering.
	require.NoError(t, mr.Set(cache.BlogRenderTag, "<div>stale</div>"))
	require.NoError(t, posts.Create(ctx, &models.Post{Title: "second", Body: "b", UserID: user.ID}))
	assert.False(t, mr.Exists(cache.BlogListKey))
	assert.False(t, mr.Exists(cache.BlogRenderTag))

	list, err = posts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCommentRepository_CreateDropsCachedPost(t *testing.T) {
	db, posts, comments, mr := setupRepos(t)
	ctx := context.Background()
	user := seedUser(t, db, "invalidator")

	post := &models.Post{Title: "cached", Body: "b", UserID: user.ID}
	require.NoError(t, posts.Create(ctx, post))

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.CommentsCount)
	require.True(t, mr.Exists(cache.PostKey(post.ID)))

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, UserID: user.ID, Body: "c"}))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	got, err = posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.CommentsCount)
}

func TestCommentRepository_GetByPostIDOldestFirst(t *testing.T) {
	db, posts, comments, _ := setupRepos(t)
	ctx := context.Background()
	user := seedUser(t, db, "orderer")

	post := &models.Post{Title: "t", Body: "b", UserID: user.ID}
	require.NoError(t, posts.Create(ctx, post))

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, UserID: user.ID, Body: "first"}))
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, UserID: user.ID, Body: "second"}))

	got, err := comments.GetByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Body)
	assert.Equal(t, "second", got[1].Body)
	assert.Equal(t, "orderer", got[0].User.Username)
}
