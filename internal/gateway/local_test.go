package gateway

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type localFixture struct {
	gw     *Local
	db     *gorm.DB
	tokens *auth.TokenProvider
	feed   *notifications.CommentFeed
}

func setupLocal(t *testing.T) *localFixture {
	t.Helper()

	db, err := database.ConnectTest()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		PublicBaseURL:     "http://localhost:8375",
		AllowedImageHosts: "images.squarespace-cdn.com",
	}
	tokens := auth.NewTokenProvider("test-secret")
	feed := notifications.NewCommentFeed(nil)
	store := storage.NewService(db, nil, cfg)

	gw := NewLocal(
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		tokens,
		store,
		feed,
	)
	return &localFixture{gw: gw, db: db, tokens: tokens, feed: feed}
}

func (f *localFixture) createUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, f.db.Create(user).Error)
	token, err := f.tokens.Issue(user.ID, user.Username)
	require.NoError(t, err)
	return user, token
}

func TestGetPostByID_AbsentIsNilNotError(t *testing.T) {
	f := setupLocal(t)

	post, err := f.gw.GetPostByID(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestCreatePost_RequiresValidToken(t *testing.T) {
	f := setupLocal(t)

	_, err := f.gw.CreatePost(context.Background(), "", CreatePostArgs{Title: "t", Body: "b"})
	require.Error(t, err)

	_, err = f.gw.CreatePost(context.Background(), "garbage", CreatePostArgs{Title: "t", Body: "b"})
	require.Error(t, err)
}

func TestCreatePost_ThenVisibleInListAndByID(t *testing.T) {
	f := setupLocal(t)
	user, token := f.createUser(t, "author")

	postID, err := f.gw.CreatePost(context.Background(), token, CreatePostArgs{
		Title:          "First post",
		Body:           "Hello world",
		ImageStorageID: "blob-1",
	})
	require.NoError(t, err)
	require.NotZero(t, postID)

	post, err := f.gw.GetPostByID(context.Background(), postID)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "First post", post.Title)
	assert.Equal(t, "blob-1", post.ImageStorageID)
	assert.Equal(t, user.ID, post.UserID)

	posts, err := f.gw.GetPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, postID, posts[0].ID)
}

func TestGetPosts_NewestFirst(t *testing.T) {
	f := setupLocal(t)
	user, _ := f.createUser(t, "author")

	older := &models.Post{Title: "older", Body: "b", UserID: user.ID, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Post{Title: "newer", Body: "b", UserID: user.ID, CreatedAt: time.Now()}
	require.NoError(t, f.db.Create(older).Error)
	require.NoError(t, f.db.Create(newer).Error)

	posts, err := f.gw.GetPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].Title)
	assert.Equal(t, "older", posts[1].Title)
}

func TestCreateComment_FansOutToPreloadedHandles(t *testing.T) {
	f := setupLocal(t)
	_, token := f.createUser(t, "commenter")

	postID, err := f.gw.CreatePost(context.Background(), token, CreatePostArgs{Title: "t", Body: "b"})
	require.NoError(t, err)

	pre, err := f.gw.PreloadComments(context.Background(), postID)
	require.NoError(t, err)
	defer pre.Cancel()
	assert.Empty(t, pre.Comments)

	commentID, err := f.gw.CreateComment(context.Background(), token, CreateCommentArgs{
		PostID: postID,
		Body:   "live update",
	})
	require.NoError(t, err)
	require.NotZero(t, commentID)

	select {
	case payload := <-pre.Updates:
		assert.Contains(t, string(payload), "live update")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a live comment update on the preloaded handle")
	}

	// A fresh preload sees the persisted comment.
	pre2, err := f.gw.PreloadComments(context.Background(), postID)
	require.NoError(t, err)
	defer pre2.Cancel()
	require.Len(t, pre2.Comments, 1)
	assert.Equal(t, "live update", pre2.Comments[0].Body)
}

func TestCreateComment_RequiresBodyAndToken(t *testing.T) {
	f := setupLocal(t)
	_, token := f.createUser(t, "c")

	_, err := f.gw.CreateComment(context.Background(), "", CreateCommentArgs{PostID: 1, Body: "x"})
	assert.Error(t, err)

	_, err = f.gw.CreateComment(context.Background(), token, CreateCommentArgs{PostID: 1, Body: "  "})
	assert.Error(t, err)
}

func TestGenerateImageUploadURL_RequiresAuth(t *testing.T) {
	f := setupLocal(t)
	_, token := f.createUser(t, "uploader")

	_, err := f.gw.GenerateImageUploadURL(context.Background(), "")
	assert.Error(t, err)

	url, err := f.gw.GenerateImageUploadURL(context.Background(), token)
	require.NoError(t, err)
	assert.Contains(t, url, "/api/storage/upload/")
}
