package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/services"
)

// multipart framing allowance on top of the file itself
const photoBodyHeadroomMB = 1

// PhotoHandler serves photo upload and listing
type PhotoHandler struct {
	photos      *services.PhotoService
	maxSizeMB   int
	maxBodySize int64
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(photos *services.PhotoService, maxSizeMB int) *PhotoHandler {
	return &PhotoHandler{
		photos:      photos,
		maxSizeMB:   maxSizeMB,
		maxBodySize: int64(maxSizeMB) * 1024 * 1024,
	}
}

// BodyLimit rejects request bodies well past the photo size limit before
// the multipart form is parsed
func (h *PhotoHandler) BodyLimit() echo.MiddlewareFunc {
	return echomw.BodyLimit(fmt.Sprintf("%dM", h.maxSizeMB+photoBodyHeadroomMB))
}

// Upload accepts a multipart "image" field and stores it in the bucket
func (h *PhotoHandler) Upload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return unprocessable("image file is required")
	}
	if _, err := services.PhotoExtension(file.Filename); err != nil {
		if !hasExtension(file.Filename) {
			return badRequest("File must have an extension")
		}
		return httpError(err)
	}
	if file.Size > h.maxBodySize {
		return badRequest(fmt.Sprintf("File size exceeds maximum allowed size of %dMB", h.maxSizeMB))
	}

	src, err := file.Open()
	if err != nil {
		return badRequest("Unable to read uploaded file")
	}
	defer src.Close()

	photo, err := h.photos.Upload(c.Request().Context(), middleware.CurrentUser(c), services.PhotoUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Size:        file.Size,
		Body:        src,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, photo)
}

// List returns the caller's active photos
func (h *PhotoHandler) List(c echo.Context) error {
	photos, err := h.photos.List(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, photos)
}

func hasExtension(name string) bool {
	ext := filepath.Ext(name)
	return ext != "" && ext != "."
}
