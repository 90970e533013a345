package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"MotionWeaver-server/config"
)

// Storage uploads finished videos to MinIO and hands out time-limited
// share links. Working assets stay on the local media volume; only
// final cuts leave the box.
type Storage struct {
	client *minio.Client
	bucket string
}

func NewStorage(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	s := &Storage{client: client, bucket: cfg.MinIO.Bucket}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		log.Printf("[Storage] created bucket %s", s.bucket)
	}
	return nil
}

// UploadVideo pushes a local file under the given object key and
// returns a 7-day presigned URL.
func (s *Storage) UploadVideo(ctx context.Context, localPath, objectKey string) (string, error) {
	contentType := "video/mp4"
	if filepath.Ext(localPath) != ".mp4" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectKey, err)
	}
	log.Printf("[Storage] uploaded %s (%d bytes)", objectKey, info.Size)

	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, 7*24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return url.String(), nil
}
