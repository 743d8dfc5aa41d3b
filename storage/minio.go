package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"RPGMixer/config"
	"RPGMixer/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Scheme prefixes locators that live in the asset bucket.
const Scheme = "minio://"

var ErrNotInitialized = errors.New("minio client not initialized")

// Minio 封装 MinIO 客户端和音频存储桶
type Minio struct {
	client *minio.Client
	bucket string
	region string
}

var minioStore *Minio

// NewMinio creates a client for the configured endpoint without touching the network.
func NewMinio(cfg *config.Config) (*Minio, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return &Minio{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}, nil
}

// InitMinio 初始化全局 MinIO 客户端并确保存储桶存在
func InitMinio(cfg *config.Config) error {
	m, err := NewMinio(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}

	minioStore = m
	logger.Info("minio client initialized",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return nil
}

// GetMinio 获取全局 MinIO 实例, nil before InitMinio
func GetMinio() *Minio {
	return minioStore
}

// Bucket returns the asset bucket name.
func (m *Minio) Bucket() string { return m.bucket }

// EnsureBucket 检查存储桶，不存在则创建
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Debug("bucket exists", logger.String("bucket", m.bucket))
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("bucket created", logger.String("bucket", m.bucket))
	return nil
}

// Put uploads one object. size may be -1 for unknown length.
func (m *Minio) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: ContentType(key),
	})
	if err != nil {
		return fmt.Errorf("上传 %s 失败: %w", key, err)
	}
	return nil
}

// Get returns a seekable object reader. The object is stat'ed first so that a
// missing key fails here instead of on the first Read.
func (m *Minio) Get(ctx context.Context, key string) (*minio.Object, minio.ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, fmt.Errorf("获取 %s 失败: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, minio.ObjectInfo{}, fmt.Errorf("获取 %s 失败: %w", key, err)
	}
	return obj, info, nil
}

// Remove deletes one object.
func (m *Minio) Remove(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// Open implements audio.Opener for "minio://key" locators and bare keys.
func (m *Minio) Open(ctx context.Context, locator string) (io.ReadSeekCloser, error) {
	obj, _, err := m.Get(ctx, ObjectKey(locator))
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ObjectKey strips the scheme from a locator.
func ObjectKey(locator string) string {
	return strings.TrimPrefix(strings.TrimPrefix(locator, Scheme), "/")
}
