package server

import (
	"strings"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// sessionLifetime matches the token lifetime so the cookie and the JWT
// expire together.
const sessionLifetime = 7 * 24 * time.Hour

// LoginPage renders the login form. Already-authenticated viewers are sent
// back to the blog.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	if _, ok := s.tokens.Resolve(sessionToken(c)); ok {
		return c.Redirect("/blog", fiber.StatusFound)
	}

	return c.Render("login", fiber.Map{
		"Title": "Log in",
	}, "layouts/main")
}

// Login authenticates a viewer and establishes the session cookie.
func (s *Server) Login(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	if username == "" || password == "" {
		return s.renderLoginFailure(c, fiber.StatusBadRequest, "Username and password are required")
	}

	user, err := s.userRepo.GetByUsername(c.UserContext(), username)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.renderLoginFailure(c, fiber.StatusUnauthorized, "Invalid username or password")
		}
		return models.NewInternalError(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return s.renderLoginFailure(c, fiber.StatusUnauthorized, "Invalid username or password")
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}

	s.setSessionCookie(c, token)
	setViewerContext(c, user.ID)
	middleware.Logger.InfoContext(c.UserContext(), "viewer logged in", "username", user.Username)

	return c.Redirect("/blog", fiber.StatusSeeOther)
}

// Signup registers a new viewer and logs them in.
func (s *Server) Signup(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	switch {
	case username == "" || email == "" || password == "":
		return s.renderLoginFailure(c, fiber.StatusBadRequest, "Username, email, and password are required")
	case len(password) < 8:
		return s.renderLoginFailure(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}
	if err := s.userRepo.Create(c.UserContext(), user); err != nil {
		// Unique violations on username or email surface as a duplicate error
		// from the driver; anything else is unexpected.
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") ||
			strings.Contains(strings.ToLower(err.Error()), "unique") {
			return s.renderLoginFailure(c, fiber.StatusConflict, "Username or email is already taken")
		}
		return models.NewInternalError(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}

	s.setSessionCookie(c, token)
	setViewerContext(c, user.ID)
	middleware.Logger.InfoContext(c.UserContext(), "viewer signed up", "username", user.Username)

	return c.Redirect("/blog", fiber.StatusSeeOther)
}

// Logout clears the session cookie.
func (s *Server) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect("/blog", fiber.StatusSeeOther)
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Expires:  time.Now().Add(sessionLifetime),
		HTTPOnly: true,
		Secure:   s.config.Env == "production",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) renderLoginFailure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).Render("login", fiber.Map{
		"Title": "Log in",
		"Error": msg,
	}, "layouts/main")
}
