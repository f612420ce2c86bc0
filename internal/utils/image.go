package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxImagePixels bounds width*height of an accepted image. The compressed size
// limit alone does not bound the decoded size.
const MaxImagePixels = 40_000_000

var ErrImageDimensions = errors.New("image dimensions exceed the pixel limit")

// AllowedImageTypes maps accepted upload MIME types to file extensions.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// DetectImageType sniffs data and returns its MIME type when it is an allowed image.
func DetectImageType(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	_, ok := AllowedImageTypes[mime]
	return mime, ok
}

// ResizeImage scales data down to maxWidth, keeping the aspect ratio, and
// re-encodes it as JPEG at quality. Images already within maxWidth and GIFs
// are returned unchanged together with their detected MIME type. Images over
// MaxImagePixels are rejected with ErrImageDimensions before decoding.
func ResizeImage(data []byte, maxWidth, quality int) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageDimensions, cfg.Width, cfg.Height)
	}
	mime := "image/" + format
	if maxWidth <= 0 || cfg.Width <= maxWidth || format == "gif" {
		return data, mime, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	height := cfg.Height * maxWidth / cfg.Width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	// JPEG has no alpha channel; flatten transparent pixels onto white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
