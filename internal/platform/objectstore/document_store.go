// Package objectstore provides document storage on an S3-compatible backend.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docpolish/docpolish-api/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrDocumentNotFound is returned when a document exists under none of the
// candidate keys.
var ErrDocumentNotFound = errors.New("document not found in object storage")

// DocumentStore reads source documents and persists rewritten results in a
// single bucket.
type DocumentStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewDocumentStore connects to the object storage backend and verifies the
// configured bucket exists, creating it when absent.
func NewDocumentStore(
	ctx context.Context,
	cfg config.StorageConfig,
	logger *slog.Logger,
) (*DocumentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created storage bucket", "bucket", cfg.Bucket)
	}

	return &DocumentStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// CandidateKeys returns the storage keys tried, in order, when resolving a
// document by its identifier.
func CandidateKeys(documentID string) []string {
	// An identifier that already names an HTML object is used as-is.
	if strings.HasSuffix(documentID, ".html") {
		return []string{
			documentID,
			"converted/" + documentID,
		}
	}

	return []string{
		documentID + ".html",
		"converted/" + documentID + ".html",
		documentID,
	}
}

// FetchDocument resolves a document by trying each candidate key in order.
// Returns the document bytes and the key that matched, or ErrDocumentNotFound
// when no candidate exists.
func (s *DocumentStore) FetchDocument(ctx context.Context, documentID string) ([]byte, string, error) {
	for _, key := range CandidateKeys(documentID) {
		data, err := s.getObject(ctx, key)
		if err == nil {
			s.logger.Debug("resolved source document",
				"document_id", documentID,
				"key", key,
				"size", len(data))
			return data, key, nil
		}
		if !isNoSuchKey(err) {
			return nil, "", fmt.Errorf("failed to fetch document %q: %w", key, err)
		}
	}

	return nil, "", fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
}

// PutResult persists a rewritten document under the given key.
func (s *DocumentStore) PutResult(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/html"})
	if err != nil {
		return fmt.Errorf("failed to store result %q: %w", key, err)
	}

	s.logger.Debug("stored result document", "key", key, "size", len(data))
	return nil
}

func (s *DocumentStore) getObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; the first read surfaces missing-key errors.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
