// Package storage writes objects to S3, Google Cloud Storage or MinIO.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectExists is returned by PutObject with NoOverwrite when the key is
// already taken.
var ErrObjectExists = errors.New("storage: object already exists")

// Storage stores objects in a bucket.
type Storage interface {
	io.Closer

	// PutObject stores the content of r under key. A non-positive
	// opts.Size means the length is unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
}

// PutOptions configures upload behavior.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
	// NoOverwrite makes the write conditional on key being absent. Audit
	// archives use it so a replayed run can never replace history.
	NoOverwrite bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}
