package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// ObjectStore defines minimal methods for import/export needs.
type ObjectStore interface {
	// Get returns a reader for the given s3://bucket/key URI.
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to the given URI (s3://bucket/key); returns final URI.
	Put(ctx context.Context, uri string, body io.Reader) (string, error)
}

// Blob is a random-access upload source.
type Blob interface {
	io.ReaderAt
	io.Closer
	Size() int64
	Name() string
	ContentType() string
}

// newS3 constructs the client behind s3:// blobs; overridden in tests.
var newS3 = NewS3

// OpenBlob opens a local path, file:// URI or s3:// URI as an upload source.
func OpenBlob(ctx context.Context, uri string) (Blob, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return OpenFile(strings.TrimPrefix(uri, "file://"))
	}
	cl, err := newS3(ctx)
	if err != nil {
		return nil, err
	}
	return cl.Blob(ctx, uri)
}

// IsRemote reports whether uri names an object store location.
func IsRemote(uri string) bool {
	u, err := url.Parse(uri)
	return err == nil && u.Scheme == "s3"
}
