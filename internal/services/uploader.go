package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/arnold/memories-api/internal/common"
)

// MaxUploadSize caps a single media upload.
const MaxUploadSize = 50 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
	".mp4": true, ".mov": true,
}

// Uploader stores a media file and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, filename, ownerID string) (string, error)
}

// LocalUploader writes uploads under dir, one subdirectory per owner, and
// serves them below urlPrefix.
type LocalUploader struct {
	dir       string
	urlPrefix string
}

func NewLocalUploader(dir, urlPrefix string) *LocalUploader {
	return &LocalUploader{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// AllowedExtension reports whether filename has a supported media type.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func (u *LocalUploader) Upload(ctx context.Context, r io.Reader, filename, ownerID string) (string, error) {
	if ownerID == "" {
		return "", common.ErrNotAuthenticated
	}
	if !AllowedExtension(filename) {
		return "", common.Validation("Only jpg, png, webp, heic, mp4 and mov files are allowed")
	}
	if err := ctx.Err(); err != nil {
		return "", common.Aborted(err)
	}

	ownerDir := filepath.Join(u.dir, filepath.Base(ownerID))
	if err := os.MkdirAll(ownerDir, 0755); err != nil {
		return "", common.Wrap(err, common.TypeUnknown, "create uploads directory")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dst, err := os.Create(filepath.Join(ownerDir, name))
	if err != nil {
		return "", common.Wrap(err, common.TypeUnknown, "create upload")
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		os.Remove(dst.Name())
		return "", common.Wrap(err, common.TypeUnknown, "save upload")
	}
	if n > MaxUploadSize {
		os.Remove(dst.Name())
		return "", common.Validation(fmt.Sprintf("Files must be under %dMB", MaxUploadSize/(1024*1024)))
	}

	return path.Join(u.urlPrefix, filepath.Base(ownerID), name), nil
}
