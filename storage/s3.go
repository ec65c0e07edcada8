// Package storage работает с объектным хранилищем файлов каталогов.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fipsreg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client создаёт S3-клиент для S3-совместимого хранилища с кастомным
// эндпоинтом.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadFile загружает данные в бакет и возвращает ссылку.
func UploadFile(client *s3.Client, bucket, key string, data []byte, cfg *config.Config) (string, error) {
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	link := fmt.Sprintf("%s/%s/%s", cfg.S3URL, bucket, key)
	return link, nil
}

// CatalogueFiles отдаёт локальные пути к файлам каталогов. Локальный путь
// используется как есть; ключ хранилища скачивается во временный каталог.
type CatalogueFiles struct {
	client *s3.Client
	bucket string
}

// NewCatalogueFiles создаёт источник файлов каталогов. Клиент может быть
// nil, тогда доступны только локальные пути.
func NewCatalogueFiles(client *s3.Client, bucket string) *CatalogueFiles {
	return &CatalogueFiles{client: client, bucket: bucket}
}

// Fetch возвращает локальный путь к файлу каталога и функцию очистки.
func (f *CatalogueFiles) Fetch(ctx context.Context, fileKey string) (string, func(), error) {
	if _, err := os.Stat(fileKey); err == nil {
		return fileKey, func() {}, nil
	}
	if f.client == nil {
		return "", nil, fmt.Errorf("catalogue file %q not found locally and storage is not configured", fileKey)
	}

	obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &f.bucket,
		Key:    &fileKey,
	})
	if err != nil {
		return "", nil, fmt.Errorf("download catalogue %q: %w", fileKey, err)
	}
	defer obj.Body.Close()

	tmp, err := os.CreateTemp("", "catalogue-*"+filepath.Ext(fileKey))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, obj.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write catalogue %q: %w", fileKey, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	path := tmp.Name()
	return path, func() { os.Remove(path) }, nil
}
