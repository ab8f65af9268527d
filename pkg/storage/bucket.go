// Package storage writes transcript blobs to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) error
}

// FileAPI is the subset of the Supabase storage client the bucket uses.
type FileAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
}

// SupabaseBucket uploads into one Supabase storage bucket.
type SupabaseBucket struct {
	api    FileAPI
	bucket string
}

var ErrNoStorageClient = errors.New("storage: supabase storage client is nil")

// NewSupabaseBucket binds api to bucket.
func NewSupabaseBucket(api FileAPI, bucket string) (*SupabaseBucket, error) {
	if api == nil {
		return nil, ErrNoStorageClient
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	return &SupabaseBucket{api: api, bucket: bucket}, nil
}

// Upload writes data at path. With overwrite set an existing object is
// replaced, so retries are safe.
func (b *SupabaseBucket) Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &overwrite,
	}
	if _, err := b.api.UploadFile(b.bucket, path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("upload %s/%s: %w", b.bucket, path, err)
	}
	return nil
}
