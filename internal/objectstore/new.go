package objectstore

import (
	"context"
	"strings"
)

// New selects a backend by URI scheme: "s3://bucket/prefix" uses S3Store
// (region comes from the region argument); anything else is treated as a
// local directory path and backed by LocalStore.
func New(ctx context.Context, uri, region string) (ObjectStore, error) {
	if strings.HasPrefix(uri, "s3://") {
		rest := strings.TrimPrefix(uri, "s3://")
		bucket := rest
		prefix := ""
		if idx := strings.Index(rest, "/"); idx >= 0 {
			bucket = rest[:idx]
			prefix = rest[idx+1:]
		}
		return NewS3Store(ctx, S3Config{Bucket: bucket, Prefix: prefix, Region: region})
	}
	return NewLocalStore(uri)
}
