package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jobvault/internal/config"
)

// Client 封装 MinIO 客户端，存放导出的备份文件并签发下载链接。
type Client struct {
	client     *minio.Client
	bucketName string
}

// ObjectMeta 描述 Bucket 中对象的关键信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{client: client, bucketName: cfg.Bucket}, nil
}

// UploadExport 把一份导出文件写入 Bucket，返回对象键。
func (c *Client) UploadExport(ctx context.Context, backupID, fileName string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("backup-exports/%s/%s", backupID, fileName)
	reader := bytes.NewReader(data)
	_, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", objectKey, err)
	}
	return objectKey, nil
}

// GeneratePresignedURL 生成对象的限时下载链接。
func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error) {
	presignedURL, err := c.client.PresignedGetObject(ctx, c.bucketName, objectKey, duration, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", objectKey, err)
	}
	return presignedURL.String(), nil
}

// ListExports 列出某个备份的全部导出对象。
func (c *Client) ListExports(ctx context.Context, backupID string) ([]ObjectMeta, error) {
	prefix := fmt.Sprintf("backup-exports/%s/", backupID)
	objCh := c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	result := make([]ObjectMeta, 0, 4)
	for object := range objCh {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		result = append(result, ObjectMeta{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return result, nil
}

// DeleteExports 删除某个备份的全部导出对象。
// 若对象已不存在会被视为成功（幂等）。
func (c *Client) DeleteExports(ctx context.Context, backupID string) error {
	objects, err := c.ListExports(ctx, backupID)
	if err != nil {
		return err
	}
	for _, object := range objects {
		key := strings.TrimSpace(object.Key)
		if key == "" {
			continue
		}
		if err := c.client.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
			if IsNoSuchKey(err) {
				continue
			}
			return fmt.Errorf("remove object %q: %w", key, err)
		}
	}
	return nil
}
