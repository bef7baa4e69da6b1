package storage

import (
	"context"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/config"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
)

// MaxAvatarSize caps profile picture uploads.
const MaxAvatarSize = 5 << 20 // 5 MiB

var allowedAvatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// AvatarStore keeps profile pictures in an S3-compatible bucket. Only
// the object URL lands in the user directory; the directory itself
// never stores image bytes.
type AvatarStore struct {
	client *minio.Client
	bucket string
}

// NewAvatarStore connects to MinIO and ensures the bucket exists.
func NewAvatarStore(cfg config.MinIOConfig) (*AvatarStore, error) {
	if cfg.Endpoint == "" {
		return nil, apperr.InvalidArgument("minio endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperr.Unavailable(err, "minio connect")
	}
	s := &AvatarStore{client: mc, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, apperr.Unavailable(err, "minio bucket ensure")
		}
	}
	return s, nil
}

// Put stores a user's avatar and returns the object key. One object
// per user; a re-upload replaces the previous picture.
func (s *AvatarStore) Put(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedAvatarTypes[contentType]
	if !ok {
		return "", apperr.InvalidArgument("unsupported avatar content type %q", contentType)
	}
	if size <= 0 || size > MaxAvatarSize {
		return "", apperr.InvalidArgument("avatar size must be between 1 byte and %d bytes", MaxAvatarSize)
	}
	key := path.Join("avatars", userID+ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", apperr.Unavailable(err, "avatar upload")
	}
	// A re-upload under a different content type lands on a different
	// key, so sweep the other extensions or the old picture lingers.
	for _, staleExt := range allowedAvatarTypes {
		if staleExt == ext {
			continue
		}
		if err := s.Delete(ctx, path.Join("avatars", userID+staleExt)); err != nil {
			logger.Warnf("stale avatar cleanup for user %s: %v", userID, err)
		}
	}
	return key, nil
}

// URL returns a presigned GET URL for a stored avatar.
func (s *AvatarStore) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, url.Values{})
	if err != nil {
		return "", apperr.Unavailable(err, "avatar url")
	}
	return presigned.String(), nil
}

// Delete removes a stored avatar; missing objects are not an error.
func (s *AvatarStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperr.Unavailable(err, "avatar delete")
	}
	return nil
}
