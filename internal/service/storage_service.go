package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/config"
	"github.com/opencove/cove/internal/storage"
	"github.com/opencove/cove/pkg/errcode"
	"github.com/opencove/cove/pkg/idgen"
)

// allowedContentTypes are the upload types accepted client-side before any
// request is issued; everything else is rejected synchronously.
var allowedContentTypes = map[string]bool{
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"image/webp":               true,
	"video/mp4":                true,
	"video/webm":               true,
	"application/pdf":          true,
	"application/octet-stream": true,
	"text/plain":               true,
}

// StorageService handles attachment and avatar uploads
type StorageService struct {
	store   storage.ObjectStore
	maxSize int64
}

// NewStorageService creates a new StorageService
func NewStorageService(store storage.ObjectStore, cfg *config.StorageConfig) *StorageService {
	return &StorageService{
		store:   store,
		maxSize: cfg.MaxUploadSize,
	}
}

// UploadResult represents a completed upload
type UploadResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Upload validates and stores a file, returning its public URL. The stored
// object name is unique per upload; the original filename survives only as
// the display name.
func (s *StorageService) Upload(ctx context.Context, userId, filename, contentType string, reader io.Reader, size int64) (*UploadResult, error) {
	if filename == "" || size <= 0 {
		return nil, errcode.ErrInvalidParam
	}
	if size > s.maxSize {
		return nil, errcode.ErrUploadTooLarge
	}
	if contentType != "" && !allowedContentTypes[strings.ToLower(contentType)] {
		return nil, errcode.ErrUploadBadType
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate object id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	objectName := fmt.Sprintf("%s/%s%s", userId, id, strings.ToLower(path.Ext(filename)))

	url, err := s.store.Upload(ctx, objectName, contentType, reader, size)
	if err != nil {
		log.CtxError(ctx, "upload failed: user_id=%s, object=%s, error=%v", userId, objectName, err)
		return nil, errcode.ErrUploadFailed
	}

	log.CtxInfo(ctx, "upload complete: user_id=%s, object=%s", userId, objectName)
	return &UploadResult{URL: url, Name: filename}, nil
}
