package server

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"inkwell/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// sessionCookie carries the signed session token for browser viewers.
const sessionCookie = "inkwell_session"

// sessionToken extracts the session token from the cookie or, for API
// clients, from a Bearer Authorization header. Empty means anonymous.
func sessionToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(sessionCookie); cookie != "" {
		return cookie
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// setViewerContext stores the resolved viewer in locals and the request
// context so structured logging picks it up.
func setViewerContext(c *fiber.Ctx, viewerID uint) {
	c.Locals("viewerID", viewerID)
	ctx := context.WithValue(c.UserContext(), middleware.ViewerIDKey, viewerID)
	c.SetUserContext(ctx)
}

// parsePostID parses the :postId route param.
func parsePostID(c *fiber.Ctx) (uint, error) {
	raw := c.Params("postId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid post ID")
	}
	return uint(id), nil
}

// wantsHTML reports whether the client is a browser expecting a page rather
// than a JSON API response.
func wantsHTML(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return false
	}
	return strings.Contains(c.Get("Accept"), "text/html") || c.Get("Accept") == ""
}

// excerpt truncates body text for list cards at a rune boundary.
func excerpt(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max]), " \n\t") + "…"
}
