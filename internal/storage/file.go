package storage

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// FileBlob is a local file opened for upload.
type FileBlob struct {
	f           *os.File
	size        int64
	name        string
	contentType string
}

// OpenFile opens path and determines its content type, first from the
// extension and then by sniffing the leading bytes.
func OpenFile(path string) (*FileBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	b := &FileBlob{f: f, size: st.Size(), name: filepath.Base(path)}
	b.contentType = mime.TypeByExtension(filepath.Ext(path))
	if b.contentType == "" {
		mt, err := mimetype.DetectReader(io.NewSectionReader(f, 0, b.size))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("detect content type: %w", err)
		}
		b.contentType = mt.String()
	}
	return b, nil
}

func (b *FileBlob) ReadAt(p []byte, off int64) (int, error) { return b.f.ReadAt(p, off) }
func (b *FileBlob) Size() int64                              { return b.size }
func (b *FileBlob) Name() string                             { return b.name }
func (b *FileBlob) ContentType() string                      { return b.contentType }
func (b *FileBlob) Close() error                             { return b.f.Close() }
