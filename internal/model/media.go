package model

import "errors"

// Media upload limits and whitelists (spec: image 5 MB, video 50 MB).
const (
	MaxImageSizeBytes = 5 * 1024 * 1024
	MaxVideoSizeBytes = 50 * 1024 * 1024

	AvatarWidth  = 200
	AvatarHeight = 200
	BannerWidth  = 1500
	BannerHeight = 500
)

var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var AllowedVideoTypes = map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
}

var (
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrInvalidMediaType = errors.New("unsupported media type")
	ErrMediaMismatch    = errors.New("file contents do not match declared type")
)

// UploadResult is returned by the object store adapter after a successful put.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}
