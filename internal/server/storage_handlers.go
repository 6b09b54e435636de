package server

import (
	"errors"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UploadImage accepts a direct binary upload authorized by a single-use
// ticket. The ticket is consumed before the body is touched, so a replayed
// URL fails even when the first attempt's write failed.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	ticket := c.Params("ticket")

	userID, ok := s.storage.ConsumeTicket(c.UserContext(), ticket)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired upload ticket"))
	}
	setViewerContext(c, userID)

	body := c.Body()
	if len(body) > maxUploadBytes {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			models.NewValidationError("Upload exceeds the size limit"))
	}

	storageID, err := s.storage.Store(c.UserContext(), userID, c.Get(fiber.HeaderContentType), body)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR" {
			return models.RespondWithError(c, fiber.StatusBadRequest, appErr)
		}
		middleware.Logger.ErrorContext(c.UserContext(), "blob store failed", "error", err)
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(c.UserContext(), "image stored",
		"storage_id", storageID, "bytes", len(body))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"storageId": storageID,
	})
}

// GetStoredImage serves a stored blob. Storage IDs are random UUIDs, so the
// content is immutable and cacheable forever.
func (s *Server) GetStoredImage(c *fiber.Ctx) error {
	id := c.Params("id")

	blob, err := s.storage.GetBlob(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Image", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, blob.MimeType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(blob.Data)
}
