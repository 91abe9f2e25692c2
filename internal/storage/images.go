// Package storage wraps the object store that hosts listing images.
// Uploads pass straight through: handlers forward the multipart bytes
// here and hand the resulting public URLs back to the client.
package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageStore stores listing images in a MinIO (or S3-compatible)
// bucket and knows how to build the public URL for an object.
type ImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewImageStore connects to the object store and ensures the bucket
// exists.  publicURL is the externally reachable base; when empty, URLs
// are built from the endpoint itself.
func NewImageStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*ImageStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("image store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("image store bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("image store make bucket: %w", err)
		}
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}
	return &ImageStore{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Upload stores image bytes under a random key that keeps the original
// extension, and returns the public URL for the object.
func (s *ImageStore) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key, err := objectKey(filename)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}

// objectKey builds a collision-resistant key from random bytes plus the
// original file extension, so hosted URLs stay content-type friendly.
func objectKey(filename string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(filename))
	return hex.EncodeToString(buf) + ext, nil
}
