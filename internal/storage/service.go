// Package storage persists uploaded binaries behind single-use upload tickets.
// A ticket is a short-lived, one-time URL: the creation workflow requests one,
// the browser-facing handler consumes it exactly once, and the stored blob's
// ID is the storage identifier referenced by the created post. Tickets expire
// by TTL; a ticket consumed by an upload whose post mutation later fails
// leaves an orphaned blob that nothing garbage-collects.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TicketTTL bounds how long an issued upload URL stays valid.
const TicketTTL = 2 * time.Minute

const ticketKeyPrefix = "upload_ticket:"

// Service issues upload tickets and stores blobs.
type Service struct {
	db      *gorm.DB
	redis   *redis.Client
	cfg     *config.Config
	mu      sync.Mutex
	tickets map[string]memTicket // fallback when Redis is unavailable
}

type memTicket struct {
	userID    uint
	expiresAt time.Time
}

// NewService creates a storage service. The Redis client may be nil; tickets
// then live in process memory, which is fine for single-instance deployments
// and tests.
func NewService(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:      db,
		redis:   rdb,
		cfg:     cfg,
		tickets: make(map[string]memTicket),
	}
}

// IssueTicket mints a single-use upload URL authorized for the given user.
func (s *Service) IssueTicket(ctx context.Context, userID uint) (string, error) {
	ticket := uuid.NewString()

	if s.redis != nil {
		key := ticketKeyPrefix + ticket
		if err := s.redis.Set(ctx, key, strconv.FormatUint(uint64(userID), 10), TicketTTL).Err(); err != nil {
			return "", fmt.Errorf("failed to store upload ticket: %w", err)
		}
	} else {
		s.mu.Lock()
		s.tickets[ticket] = memTicket{userID: userID, expiresAt: time.Now().Add(TicketTTL)}
		s.mu.Unlock()
	}

	return s.cfg.PublicBaseURL + "/api/storage/upload/" + ticket, nil
}

// ConsumeTicket redeems a ticket, deleting it immediately (single-use).
// Returns the user the ticket was issued for, or ok=false when the ticket is
// unknown, expired, or already used.
func (s *Service) ConsumeTicket(ctx context.Context, ticket string) (uint, bool) {
	if ticket == "" {
		return 0, false
	}

	if s.redis != nil {
		key := ticketKeyPrefix + ticket
		userIDStr, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			return 0, false
		}
		s.redis.Del(ctx, key)
		userID, parseErr := strconv.ParseUint(userIDStr, 10, 32)
		if parseErr != nil {
			return 0, false
		}
		return uint(userID), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tickets[ticket]
	if !ok {
		return 0, false
	}
	delete(s.tickets, ticket)
	if time.Now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.userID, true
}

// Store persists an uploaded binary and returns its storage identifier.
func (s *Service) Store(ctx context.Context, userID uint, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", models.NewValidationError("Empty upload body")
	}
	if strings.TrimSpace(contentType) == "" {
		return "", models.NewValidationError("Content-Type is required")
	}

	blob := &models.Blob{
		ID:        uuid.NewString(),
		MimeType:  contentType,
		SizeBytes: int64(len(data)),
		Data:      data,
		UserID:    userID,
	}
	if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
		return "", err
	}
	return blob.ID, nil
}

// GetBlob loads a stored binary by storage identifier.
func (s *Service) GetBlob(ctx context.Context, id string) (*models.Blob, error) {
	var blob models.Blob
	if err := s.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &blob, nil
}

// ResolveImageURL maps a post's image reference to a renderable URL.
// Storage identifiers resolve to the local serving route; remote URLs must be
// on the configured host allow-list; everything else falls back to the
// documented placeholder image.
func (s *Service) ResolveImageURL(storageID, remoteURL string) string {
	if storageID != "" {
		return "/api/storage/" + storageID
	}
	if remoteURL != "" {
		if parsed, err := url.Parse(remoteURL); err == nil && s.cfg.ImageHostAllowed(parsed.Hostname()) {
			return remoteURL
		}
	}
	if s.cfg.PlaceholderImage != "" {
		return s.cfg.PlaceholderImage
	}
	return config.DefaultPlaceholderImage
}
