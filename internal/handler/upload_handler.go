package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/opencove/cove/internal/middleware"
	"github.com/opencove/cove/internal/service"
	"github.com/opencove/cove/pkg/errcode"
	"github.com/opencove/cove/pkg/response"
)

// UploadHandler handles file upload requests
type UploadHandler struct {
	storageService *service.StorageService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(storageService *service.StorageService) *UploadHandler {
	return &UploadHandler{storageService: storageService}
}

// Upload handles multipart file upload request. The file goes to object
// storage first; the caller attaches the returned URL to a message.
func (h *UploadHandler) Upload(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrUploadFailed)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := h.storageService.Upload(ctx, userId, fileHeader.Filename, contentType, file, fileHeader.Size)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
