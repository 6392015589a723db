// Package storage 提供了把上传原件归档到对象存储（MinIO）的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/pkg/log"
)

const uploadsPrefix = "uploads/"

// Archive 保存每次上传的原始文件，对象名为 uploads/{doc_id}/{filename}。
type Archive interface {
	Put(ctx context.Context, docID, filename string, data []byte) error
	RemoveDocument(ctx context.Context, docID string) error
	RemoveAll(ctx context.Context) error
}

type minioArchive struct {
	client *minio.Client
	bucket string
}

// NewArchive 初始化 MinIO 客户端并确保存储桶存在。Endpoint 为空时返回不做任何事的归档。
func NewArchive(ctx context.Context, cfg config.MinIOConfig) (Archive, error) {
	if cfg.Endpoint == "" {
		return NopArchive{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &minioArchive{client: client, bucket: cfg.BucketName}, nil
}

// ObjectName 返回原件在存储桶中的对象名。
func ObjectName(docID, filename string) string {
	return path.Join(uploadsPrefix+docID, filepath.Base(filename))
}

func (a *minioArchive) Put(ctx context.Context, docID, filename string, data []byte) error {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, a.bucket, ObjectName(docID, filename), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (a *minioArchive) RemoveDocument(ctx context.Context, docID string) error {
	return a.removePrefix(ctx, uploadsPrefix+docID+"/")
}

func (a *minioArchive) RemoveAll(ctx context.Context) error {
	return a.removePrefix(ctx, uploadsPrefix)
}

func (a *minioArchive) removePrefix(ctx context.Context, prefix string) error {
	objects := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for rerr := range a.client.RemoveObjects(ctx, a.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("删除对象 %s 失败: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}

// NopArchive 不保存任何文件。
type NopArchive struct{}

func (NopArchive) Put(context.Context, string, string, []byte) error { return nil }

func (NopArchive) RemoveDocument(context.Context, string) error { return nil }

func (NopArchive) RemoveAll(context.Context) error { return nil }
