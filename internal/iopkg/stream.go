// Package iopkg opens and creates file:// and s3:// locations for the CLI:
// option files are read from either, search results are exported to either.
package iopkg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourorg/scene-data/internal/storage"
)

// newStore constructs the object store behind s3:// locations; overridden in tests.
var newStore = func(ctx context.Context) (storage.ObjectStore, error) {
	return storage.NewS3(ctx)
}

// Open returns a ReadCloser and (if known) size for file:// or s3:// URIs.
func Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, 0, err
	}
	switch u.Scheme {
	case "file", "":
		p := strings.TrimPrefix(uri, "file://")
		f, err := os.Open(p)
		if err != nil {
			return nil, 0, err
		}
		st, _ := f.Stat()
		var sz int64
		if st != nil {
			sz = st.Size()
		}
		return f, sz, nil
	case "s3":
		st, err := newStore(ctx)
		if err != nil {
			return nil, 0, err
		}
		return st.Get(ctx, uri)
	default:
		return nil, 0, errors.New("unsupported scheme: " + u.Scheme)
	}
}

// ReadAll reads the whole content at uri.
func ReadAll(ctx context.Context, uri string) ([]byte, error) {
	rc, _, err := Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Create creates a local file (file scheme). For S3 use CreateWriter with s3://.
func Create(path string) (io.Writer, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// CreateWriter supports file:// and s3://. S3 content is buffered and
// stored on Close.
func CreateWriter(ctx context.Context, uri string) (io.Writer, io.Closer, error) {
	if strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://") {
		p := strings.TrimPrefix(uri, "file://")
		return Create(p)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, nil, err
	}
	switch u.Scheme {
	case "s3":
		var buf bytes.Buffer
		done := false
		return &buf, closerFunc(func() error {
			if done {
				return nil
			}
			done = true
			st, err := newStore(ctx)
			if err != nil {
				return err
			}
			_, err = st.Put(ctx, uri, bytes.NewReader(buf.Bytes()))
			return err
		}), nil
	default:
		return nil, nil, errors.New("unsupported scheme for CreateWriter: " + u.Scheme)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
