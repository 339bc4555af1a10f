// handlers_upload.go - Dump file upload operation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/battery-insight/backend/internal/storage"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store storage.Store
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store) UploadHandler {
	return &UploadHandlerImpl{store: store}
}

// HandleUploadFile accepts a dump file upload (multipart/form-data).
// Gzip-compressed dumps are accepted and stored decompressed.
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns a list of recently uploaded dump files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

type renameFileRequest struct {
	Name string `json:"name"`
}
