package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore 是 MinIOSink 用到的 *minio.Client 方法子集。
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOSink 把报告上传到对象存储，对象名为 <prefix><runID>.<ext>。
type MinIOSink struct {
	store  objectStore
	bucket string
	prefix string
	log    *logger.Logger
}

// NewMinIOSink 使用配置中的端点和静态凭证创建 MinIO 客户端。
// 创建客户端不会发起网络请求，存储桶在首次发布时检查。
func NewMinIOSink(cfg config.MinIOConfig, log *logger.Logger) (*MinIOSink, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("无法创建 MinIO 客户端: %w", err)
	}
	return newMinIOSink(c, cfg.Bucket, cfg.Prefix, log), nil
}

func newMinIOSink(store objectStore, bucket, prefix string, log *logger.Logger) *MinIOSink {
	if log == nil {
		log = logger.Nop()
	}
	return &MinIOSink{store: store, bucket: bucket, prefix: prefix, log: log.Named("minio")}
}

// Name 实现 Sink。
func (s *MinIOSink) Name() string { return "minio" }

// ObjectName 返回产物对应的对象名。
func (s *MinIOSink) ObjectName(art *Artifact) string {
	return s.prefix + art.RunID + "." + art.Extension()
}

// Publish 上传报告，存储桶不存在时先创建。
func (s *MinIOSink) Publish(ctx context.Context, art *Artifact) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 失败: %w", s.bucket, err)
	}
	if !exists {
		if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", s.bucket, err)
		}
		s.log.WithField("bucket", s.bucket).Info("bucket created")
	}

	object := s.ObjectName(art)
	info, err := s.store.PutObject(ctx, s.bucket, object, bytes.NewReader(art.Content), int64(len(art.Content)),
		minio.PutObjectOptions{
			ContentType:  art.ContentType(),
			UserMetadata: map[string]string{"run-id": art.RunID},
		})
	if err != nil {
		return fmt.Errorf("上传报告 %s 失败: %w", object, err)
	}

	s.log.WithPayload(map[string]interface{}{"bucket": s.bucket, "object": object, "size": info.Size}).
		Debug("report uploaded")
	return nil
}
