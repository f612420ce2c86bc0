package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/pkg/logger"
	"github.com/yiback/gatherly/pkg/response"
)

const (
	MaxImageBytes       = 5 << 20
	MaxAvatarBytes      = 2 << 20
	MaxImagesPerEvent   = 5
	imageTooLargeFormat = "image must be at most %d MB"
)

// preparedImage is an upload that passed the size and type checks and was resized.
type preparedImage struct {
	Data        []byte
	ContentType string
	Ext         string
}

func prepareImage(data []byte, maxBytes, maxWidth int, cfg config.ImageConfig) (*preparedImage, error) {
	if len(data) == 0 {
		return nil, response.NewBadRequest("file: is required")
	}
	if len(data) > maxBytes {
		return nil, response.NewPayloadTooLarge(fmt.Sprintf(imageTooLargeFormat, maxBytes>>20))
	}
	if _, ok := utils.DetectImageType(data); !ok {
		return nil, ErrUnsupportedImage
	}

	out, mime, err := utils.ResizeImage(data, maxWidth, cfg.Quality)
	if errors.Is(err, utils.ErrImageDimensions) {
		return nil, ErrImageDimensions
	}
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	ext, ok := utils.AllowedImageTypes[mime]
	if !ok {
		return nil, ErrUnsupportedImage
	}
	return &preparedImage{Data: out, ContentType: mime, Ext: ext}, nil
}

// objectPath builds a unique key under prefix.
func objectPath(prefix, ext string) string {
	return prefix + "/" + uuid.NewString() + ext
}

// removeObject deletes a stored object and only logs failures.
func removeObject(ctx context.Context, store storage.ObjectStore, bucket, path string) {
	if path == "" {
		return
	}
	if err := store.Delete(ctx, bucket, path); err != nil {
		logger.Warn().Err(err).Str("bucket", bucket).Str("path", path).Msg("failed to delete stored object")
	}
}
