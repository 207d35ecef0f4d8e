// Package objectstore adapts media uploads to Cloudflare R2 via the S3 API
// (spec §5 media pipeline, C3): validation, normalization, and upload for
// avatars, banners, and post attachments.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"thewire/internal/config"
	"thewire/internal/model"
)

const (
	avatarCacheControl = "public, max-age=31536000, immutable"
	bannerCacheControl = "public, max-age=31536000, immutable"
	mediaCacheControl  = "public, max-age=86400"
	avatarFolder       = "avatars"
	bannerFolder       = "banners"
	mediaFolder        = "media"
	contentTypeJPEG    = "image/jpeg"
)

// Store uploads and deletes media against an S3-compatible bucket.
type Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// New constructs an S3 client pointed at the account's Cloudflare R2 endpoint.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" || cfg.R2PublicURL == "" {
		return nil, fmt.Errorf("objectstore: missing R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &Store{
		client:    client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

// UploadAvatar validates, center-crops to 200x200, and stores an avatar image.
func (s *Store) UploadAvatar(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	data, err := readAndValidateImage(file, header, model.MaxImageSizeBytes)
	if err != nil {
		return nil, err
	}
	jpegBytes, err := resizeToJPEG(data, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s.jpg", avatarFolder, uuid.NewString())
	if err := s.putObject(ctx, key, jpegBytes, contentTypeJPEG, avatarCacheControl); err != nil {
		return nil, err
	}
	return &model.UploadResult{URL: s.url(key), Key: key}, nil
}

// UploadBanner validates, center-crops to 1500x500, and stores a banner image.
func (s *Store) UploadBanner(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	data, err := readAndValidateImage(file, header, model.MaxImageSizeBytes)
	if err != nil {
		return nil, err
	}
	jpegBytes, err := resizeToJPEG(data, model.BannerWidth, model.BannerHeight, 85)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s.jpg", bannerFolder, uuid.NewString())
	if err := s.putObject(ctx, key, jpegBytes, contentTypeJPEG, bannerCacheControl); err != nil {
		return nil, err
	}
	return &model.UploadResult{URL: s.url(key), Key: key}, nil
}

// UploadPostMedia stores an image or video attachment unmodified beyond
// validation (spec §5: post media is not resized, only avatars/banners are).
func (s *Store) UploadPostMedia(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	maxSize := int64(model.MaxImageSizeBytes)
	if header.Size > model.MaxImageSizeBytes {
		maxSize = model.MaxVideoSizeBytes
	}

	limited := io.LimitReader(file, maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.ErrFileTooLarge
	}

	contentType := detectContentType(header, data)
	ext, ok := extensionFor(contentType)
	if !ok {
		return nil, model.ErrInvalidMediaType
	}

	declaredSize := int64(model.MaxImageSizeBytes)
	if model.AllowedVideoTypes[contentType] {
		declaredSize = model.MaxVideoSizeBytes
	}
	if int64(len(data)) > declaredSize {
		return nil, model.ErrFileTooLarge
	}

	key := fmt.Sprintf("%s/%s%s", mediaFolder, uuid.NewString(), ext)
	if err := s.putObject(ctx, key, data, contentType, mediaCacheControl); err != nil {
		return nil, err
	}
	return &model.UploadResult{URL: s.url(key), Key: key}, nil
}

// DeleteObject removes the object identified by key. A blank key (the
// shared default avatar/banner) is a no-op.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) url(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

func (s *Store) putObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %q: %w", key, err)
	}
	return nil
}

func readAndValidateImage(file multipart.File, header *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if header.Size > maxSize {
		return nil, model.ErrFileTooLarge
	}
	limited := io.LimitReader(file, maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.ErrFileTooLarge
	}

	contentType := detectContentType(header, data)
	if !model.AllowedImageTypes[contentType] {
		return nil, model.ErrInvalidMediaType
	}
	return data, nil
}

func detectContentType(header *multipart.FileHeader, data []byte) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		n := len(data)
		if n > 512 {
			n = 512
		}
		contentType = http.DetectContentType(data[:n])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}

func extensionFor(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/webp":
		return ".webp", true
	case "image/gif":
		return ".gif", true
	case "video/mp4":
		return ".mp4", true
	case "video/webm":
		return ".webm", true
	default:
		return "", false
	}
}

func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("objectstore: decode image: %w", err)
	}
	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("objectstore: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
