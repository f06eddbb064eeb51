package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flacshare/config"
	"flacshare/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioBlobStore 基于 MinIO 实现 BlobStore，audio/cover 作为同一存储桶下的前缀。
type MinioBlobStore struct {
	client        *minio.Client
	bucket        string
	region        string
	publicBaseURL string
	log           *zap.Logger
}

// NewMinioBlobStore creates the client. It does not contact the server; call
// EnsureBucket before serving traffic.
func NewMinioBlobStore(cfg *config.Config) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	base := strings.TrimRight(cfg.MinioPublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.MinioEndpoint
	}

	return &MinioBlobStore{
		client:        client,
		bucket:        cfg.MinioBucket,
		region:        cfg.MinioRegion,
		publicBaseURL: base,
		log:           logger.Named("minio"),
	}, nil
}

// Bucket returns the bucket name.
func (s *MinioBlobStore) Bucket() string {
	return s.bucket
}

// EnsureBucket checks the bucket exists and creates it if not.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		s.log.Info("存储桶已存在", zap.String("bucket", s.bucket))
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	s.log.Info("成功创建存储桶", zap.String("bucket", s.bucket))
	return nil
}

// Put implements BlobStore.
func (s *MinioBlobStore) Put(ctx context.Context, ns Namespace, key, contentType string, data []byte) (string, error) {
	object := ObjectName(ns, key)
	info, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s 失败: %w", object, err)
	}
	s.log.Debug("对象已上传", zap.String("object", object), zap.Int64("size", info.Size), zap.String("etag", info.ETag))
	return s.ObjectURL(object), nil
}

// Delete implements BlobStore. A missing object counts as deleted.
func (s *MinioBlobStore) Delete(ctx context.Context, ns Namespace, key string) error {
	object := ObjectName(ns, key)
	err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return nil
	}
	return fmt.Errorf("删除对象 %s 失败: %w", object, err)
}

// ObjectURL is the public URL of an object in the bucket.
func (s *MinioBlobStore) ObjectURL(object string) string {
	return objectURL(s.publicBaseURL, s.bucket, object)
}

func objectURL(base, bucket, object string) string {
	segments := strings.Split(object, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
