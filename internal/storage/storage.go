// Package storage persists rendered deal room documents and returns where they
// can be fetched from.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"intent-broker/internal/common/config"
	apperrors "intent-broker/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectAPI is the slice of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	api     ObjectAPI
	bucket  string
	prefix  string
	baseURL string
}

func NewS3Storage(api ObjectAPI, cfg config.StorageConfig) *S3Storage {
	return &S3Storage{
		api:     api,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

func (s *S3Storage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Storage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	objectKey := s.objectKey(key)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", apperrors.NewStorageError("put_object", err)
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + objectKey, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return apperrors.NewStorageError("delete_object", err)
	}
	return nil
}

// LocalStorage writes documents under a directory. For development and tests.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(cfg config.StorageConfig) (*LocalStorage, error) {
	dir := filepath.Join(cfg.LocalDir, filepath.FromSlash(strings.Trim(cfg.Prefix, "/")))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, apperrors.NewStorageError("create_dir", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(cfg.PublicBaseURL, "/")}, nil
}

func (l *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", apperrors.NewStorageError("resolve_key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(l.dir, clean), nil
}

func (l *LocalStorage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", apperrors.NewStorageError("create_dir", err)
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return "", apperrors.NewStorageError("write_file", err)
	}

	if l.baseURL != "" {
		return l.baseURL + "/" + filepath.ToSlash(key), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorageError("remove_file", err)
	}
	return nil
}
