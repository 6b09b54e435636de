// Package auth provides the session token provider: issuing and resolving
// HMAC-signed bearer tokens that represent the current viewer. The token is
// always passed explicitly to the workflows; nothing in this package reads
// ambient request state.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "inkwell"
	tokenAudience = "inkwell-web"
	tokenLifetime = 7 * 24 * time.Hour
)

// TokenProvider issues and resolves session tokens.
type TokenProvider struct {
	secret []byte
}

// NewTokenProvider creates a provider signing with the given HMAC secret.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret)}
}

// Issue creates a signed session token for the given user.
func (p *TokenProvider) Issue(userID uint, username string) (string, error) {
	if len(p.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(tokenLifetime).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Resolve returns the viewer ID encoded in the token, or ok=false when the
// token is empty, expired, malformed, or signed for another issuer/audience.
// An absent viewer is not an error: detail rendering redirects instead.
func (p *TokenProvider) Resolve(tokenString string) (uint, bool) {
	if tokenString == "" {
		return 0, false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
		return 0, false
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != tokenAudience {
		return 0, false
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, false
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, false
	}

	return uint(userID), true
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
