package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverS3    = "s3"
	DriverGCS   = "gcs"
	DriverMinIO = "minio"
)

// ErrUnknownDriver indicates an unsupported storage driver.
var ErrUnknownDriver = errors.New("storage: unknown driver")

// FactoryOptions carries the settings of every driver; only the selected
// one is read.
type FactoryOptions struct {
	S3    S3Options
	GCS   GCSOptions
	MinIO MinIOOptions
}

var drivers = map[string]func(context.Context, FactoryOptions) (Storage, error){
	DriverS3: func(ctx context.Context, o FactoryOptions) (Storage, error) {
		return nonNil(NewS3(ctx, o.S3))
	},
	DriverGCS: func(ctx context.Context, o FactoryOptions) (Storage, error) {
		return nonNil(NewGCS(ctx, o.GCS))
	},
	DriverMinIO: func(_ context.Context, o FactoryOptions) (Storage, error) {
		return nonNil(NewMinIO(o.MinIO))
	},
}

// NewFromDriver builds the Storage named by driver, case insensitively.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	build, ok := drivers[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return build(ctx, opts)
}

// nonNil keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func nonNil[T Storage](v T, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
