package server

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/featureflags"
	"inkwell/internal/gateway"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// maxUploadBytes caps image submissions read into memory.
const maxUploadBytes = 10 << 20

// cardExcerptLen is the body truncation length for list cards.
const cardExcerptLen = 180

// postCard is the view model for one card on the listing page.
type postCard struct {
	ID            uint
	Title         string
	Excerpt       string
	ImageURL      string
	Author        string
	CommentsCount int64
	CreatedAt     time.Time
}

// BlogListPage renders the post listing. The response is always dynamic;
// when the component-cache flag is on for the viewer, the post-list fragment
// is served from a tagged cached rendering that post creation invalidates.
func (s *Server) BlogListPage(c *fiber.Ctx) error {
	viewerID, loggedIn := s.tokens.Resolve(sessionToken(c))
	if loggedIn {
		setViewerContext(c, viewerID)
	}

	useCache := s.featureFlags.Enabled(featureflags.CacheComponents, viewerID)

	var fragment string
	if useCache {
		if cached, ok, _ := cache.GetString(c.UserContext(), cache.BlogRenderTag); ok {
			fragment = cached
		}
	} else {
		c.Set(fiber.HeaderCacheControl, "no-store")
	}

	if fragment == "" {
		posts, err := s.listFlow.Run(c.UserContext())
		if err != nil {
			return err
		}

		rendered, err := s.renderPostList(posts)
		if err != nil {
			return err
		}
		fragment = rendered

		if useCache {
			_ = cache.SetString(c.UserContext(), cache.BlogRenderTag, fragment, cache.RenderTTL)
		}
	}

	return c.Render("blog", fiber.Map{
		"Title":     "Blog",
		"LoggedIn":  loggedIn,
		"ListHTML":  template.HTML(fragment),
		"Skeletons": make([]struct{}, workflow.SkeletonCards),
	}, "layouts/main")
}

// renderPostList renders the post-list fragment to a string so it can be
// embedded in the page or stored in the render cache.
func (s *Server) renderPostList(posts []*models.Post) (string, error) {
	cards := make([]postCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, postCard{
			ID:            p.ID,
			Title:         p.Title,
			Excerpt:       excerpt(p.Body, cardExcerptLen),
			ImageURL:      s.storage.ResolveImageURL(p.ImageStorageID, p.ImageURL),
			Author:        p.User.Username,
			CommentsCount: p.CommentsCount,
			CreatedAt:     p.CreatedAt,
		})
	}

	var buf bytes.Buffer
	if err := s.views.Render(&buf, "partials/post_list", fiber.Map{"Posts": cards}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BlogDetailPage renders one post with its comment thread and joins the
// viewer to the post's presence room. Unauthenticated viewers are redirected
// to the login page; an unknown post renders the empty state rather than an
// error.
func (s *Server) BlogDetailPage(c *fiber.Ctx) error {
	postID, err := parsePostID(c)
	if err != nil {
		return err
	}

	res, err := s.detailFlow.Run(c.UserContext(), workflow.DetailInput{
		PostID: postID,
		Token:  sessionToken(c),
	})
	if err != nil {
		return err
	}

	if res.RedirectTo != "" {
		return c.Redirect(res.RedirectTo, fiber.StatusFound)
	}

	if res.NotFound {
		return c.Status(fiber.StatusNotFound).Render("post", fiber.Map{
			"Title":    "Post not found",
			"NotFound": true,
		}, "layouts/main")
	}

	setViewerContext(c, res.ViewerID)
	middleware.Logger.InfoContext(c.UserContext(), "rendering post detail",
		"post_id", res.Post.ID, "comments", len(res.Comments.Comments))

	// The preloaded handle's live stream belongs to the websocket path; the
	// server-rendered page consumes only the snapshot.
	defer res.Comments.Cancel()

	return c.Render("post", fiber.Map{
		"Title":    res.Post.Title,
		"LoggedIn": true,
		"Post":     res.Post,
		"ImageURL": s.storage.ResolveImageURL(res.Post.ImageStorageID, res.Post.ImageURL),
		"Comments": res.Comments.Comments,
		"RoomID":   res.RoomID,
		"ViewerID": res.ViewerID,
	}, "layouts/main")
}

// NewPostPage renders the post creation form.
func (s *Server) NewPostPage(c *fiber.Ctx) error {
	if _, ok := s.tokens.Resolve(sessionToken(c)); !ok {
		return c.Redirect(workflow.LoginPath, fiber.StatusFound)
	}

	return c.Render("new", fiber.Map{
		"Title":    "New post",
		"LoggedIn": true,
	}, "layouts/main")
}

// CreatePostSubmit handles the post creation form submission.
func (s *Server) CreatePostSubmit(c *fiber.Ctx) error {
	token := sessionToken(c)
	if _, ok := s.tokens.Resolve(token); !ok {
		return c.Redirect(workflow.LoginPath, fiber.StatusFound)
	}

	title := c.FormValue("title")
	body := c.FormValue("body")

	image := workflow.ImageFile{}
	if fileHeader, err := c.FormFile("image"); err == nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			return models.NewInternalError(openErr)
		}
		content, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		_ = file.Close()
		if readErr != nil {
			return models.NewInternalError(readErr)
		}
		if len(content) > maxUploadBytes {
			return s.renderCreateFailure(c, fiber.StatusBadRequest, title, body,
				"Image is too large")
		}
		image.Content = content
		image.ContentType = fileHeader.Header.Get("Content-Type")
	}

	res := s.createFlow.Run(c.UserContext(), workflow.CreateInput{
		Token: token,
		Title: title,
		Body:  body,
		Image: image,
	})

	switch res.Status {
	case workflow.StatusCreated:
		return c.Redirect(res.RedirectTo, fiber.StatusSeeOther)
	case workflow.StatusValidationFailed:
		msg := res.Message()
		var appErr *models.AppError
		if errors.As(res.Err, &appErr) {
			msg = appErr.Message
		}
		return s.renderCreateFailure(c, fiber.StatusBadRequest, title, body, msg)
	default:
		middleware.Logger.ErrorContext(c.UserContext(), "post creation failed",
			"status", res.Status.String(), "error", res.Err)
		return s.renderCreateFailure(c, fiber.StatusInternalServerError, title, body, res.Message())
	}
}

func (s *Server) renderCreateFailure(c *fiber.Ctx, status int, title, body, msg string) error {
	return c.Status(status).Render("new", fiber.Map{
		"Title":     "New post",
		"LoggedIn":  true,
		"Error":     msg,
		"FormTitle": title,
		"FormBody":  body,
	}, "layouts/main")
}

// CreateCommentSubmit appends a comment to the thread and returns to the
// post page. New comments fan out to live subscribers through the comment
// feed inside the gateway mutation.
func (s *Server) CreateCommentSubmit(c *fiber.Ctx) error {
	postID, err := parsePostID(c)
	if err != nil {
		return err
	}

	token := sessionToken(c)
	if viewerID, ok := s.tokens.Resolve(token); ok {
		setViewerContext(c, viewerID)
	} else {
		return c.Redirect(workflow.LoginPath, fiber.StatusFound)
	}

	_, err = s.gateway.CreateComment(c.UserContext(), token, gateway.CreateCommentArgs{
		PostID: postID,
		Body:   c.FormValue("body"),
	})
	if err != nil {
		return err
	}

	return c.Redirect("/blog/"+c.Params("postId"), fiber.StatusSeeOther)
}
