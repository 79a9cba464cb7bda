// Package upload stores resource files on the scene service.
//
// Files up to one block are sent with a single PUT to a pre-signed
// destination. Larger files are split into fixed-size blocks that are PUT
// concurrently and then committed as an ordered block list.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	znmetrics "github.com/yourorg/scene-data/internal/metrics"
	"github.com/yourorg/scene-data/internal/rest"
)

const (
	// DefaultBlockSize is the block size and the single-PUT threshold.
	DefaultBlockSize = 1048576
	// DefaultConcurrency caps in-flight block PUTs.
	DefaultConcurrency = 16

	blockIDWidth = 12
)

var (
	// ErrUploadURL means the service did not hand out a destination.
	ErrUploadURL = errors.New("upload destination unavailable")
	// ErrBlockUpload wraps every failed direct or block PUT.
	ErrBlockUpload = errors.New("block upload failed")
	// ErrCommit means the block list was rejected.
	ErrCommit = errors.New("block list commit failed")
	// ErrProcessStart means the file is stored but processing was refused.
	ErrProcessStart = errors.New("processing could not be started")
	// ErrPanic reports a recovered panic.
	ErrPanic = errors.New("upload aborted")
)

// Blob is a byte-addressable upload source.
type Blob interface {
	io.ReaderAt
	Size() int64
	Name() string
	ContentType() string
}

// Params are the processing options sent once the file is stored.
type Params struct {
	RevisionOf string // id of the resource this file revises
	Path       string // destination folder
	Split      bool
}

// Result is the outcome of Upload. Exactly one of ProcessID and Err is set.
type Result struct {
	ProcessID string
	Err       error
}

// Progress receives the completed fraction in [0, 1].
type Progress func(fraction float64)

// Uploader uploads files through a service client.
type Uploader struct {
	client      *rest.Client
	blockSize   int64
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBlockSize sets the block size, which is also the single-PUT threshold.
func WithBlockSize(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.blockSize = n
		}
	}
}

// WithConcurrency caps in-flight block PUTs.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithClock replaces time.Now, which seeds upload session ids.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

// WithLogger sets the logger for upload events.
func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) { u.log = l }
}

// New returns an Uploader for the service behind client.
func New(client *rest.Client, opts ...Option) *Uploader {
	u := &Uploader{
		client:      client,
		blockSize:   DefaultBlockSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// BlockID returns the identifier of the block at index: the index as a
// zero-padded 12 digit decimal, base64 encoded.
func BlockID(index int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%0*d", blockIDWidth, index)))
}

// session is the state of one Upload call.
type session struct {
	id        int64
	uploadURL string
	total     int64
	blockIDs  []string

	mu        sync.Mutex
	completed int64
	err       error
	progress  Progress
}

// complete records n stored bytes and reports progress.
func (s *session) complete(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed += n
	if s.progress == nil {
		return
	}
	if s.total == 0 {
		s.progress(1)
		return
	}
	s.progress(float64(s.completed) / float64(s.total))
}

func (s *session) failed(err error) {
	s.mu.Lock()
	s.err = multierr.Append(s.err, err)
	s.mu.Unlock()
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Upload stores blob and starts server-side processing. It never panics;
// every failure is reported through Result.Err.
func (u *Uploader) Upload(ctx context.Context, blob Blob, progress Progress, p Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
		outcome := "ok"
		if res.Err != nil {
			outcome = "failed"
			u.log.Warn("upload failed", zap.String("file", blob.Name()), zap.Error(res.Err))
		}
		znmetrics.Uploads.WithLabelValues(outcome).Inc()
	}()
	if progress != nil {
		progress(0)
	}
	s := &session{
		id:       u.now().UnixMilli(),
		total:    blob.Size(),
		progress: progress,
	}
	var err error
	s.uploadURL, err = u.destination(ctx, s.id)
	if err != nil {
		return Result{Err: err}
	}
	log := u.log.With(zap.Int64("session", s.id), zap.String("file", blob.Name()), zap.Int64("size", s.total))
	if s.total > u.blockSize {
		log.Debug("block upload", zap.Int64("blockSize", u.blockSize))
		if err := u.putBlocks(ctx, s, blob); err != nil {
			return Result{Err: err}
		}
		if err := u.commit(ctx, s, blob.ContentType()); err != nil {
			return Result{Err: err}
		}
	} else {
		log.Debug("direct upload")
		if err := u.putDirect(ctx, s, blob); err != nil {
			return Result{Err: err}
		}
	}
	if err := u.startProcessing(ctx, s, blob, p); err != nil {
		return Result{Err: err}
	}
	return Result{ProcessID: strconv.FormatInt(s.id, 10)}
}

// destination asks the service for a pre-signed upload URL.
func (u *Uploader) destination(ctx context.Context, id int64) (string, error) {
	resp, err := u.client.Call(ctx, &rest.Opts{
		Path:         "/upload/" + strconv.FormatInt(id, 10),
		ExtraHeaders: map[string]string{"Cache-Control": "no-cache"},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadURL, err)
	}
	body, err := rest.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadURL, err)
	}
	dest := strings.TrimSpace(string(body))
	if dest == "" {
		return "", fmt.Errorf("%w: empty response", ErrUploadURL)
	}
	return dest, nil
}

func (u *Uploader) putDirect(ctx context.Context, s *session, blob Blob) error {
	size := s.total
	_, err := u.client.Call(ctx, &rest.Opts{
		Method:        http.MethodPut,
		RootURL:       s.uploadURL,
		Body:          io.NewSectionReader(blob, 0, size),
		ContentLength: &size,
		ExtraHeaders:  map[string]string{"x-ms-blob-type": "BlockBlob"},
		NoAuth:        true,
		NoResponse:    true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBlockUpload, err)
	}
	znmetrics.UploadBytes.Add(float64(size))
	s.complete(size)
	return nil
}

// putBlocks uploads every block, at most u.concurrency at a time. After the
// first failure no further blocks are started; blocks already in flight run
// to completion and their errors join the aggregate.
func (u *Uploader) putBlocks(ctx context.Context, s *session, blob Blob) error {
	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for index, off := 0, int64(0); off < s.total; index, off = index+1, off+u.blockSize {
		if s.failure() != nil {
			break
		}
		n := min(u.blockSize, s.total-off)
		id := BlockID(index)
		s.blockIDs = append(s.blockIDs, id)
		// Go blocks while the limit is reached
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: block %d: %v", ErrPanic, index, r)
				}
				if err != nil {
					znmetrics.UploadBlocks.WithLabelValues("failed").Inc()
					s.failed(err)
				}
			}()
			if s.failure() != nil {
				return nil
			}
			if err := u.putBlock(ctx, s, id, io.NewSectionReader(blob, off, n), n); err != nil {
				return fmt.Errorf("block %d: %w", index, err)
			}
			znmetrics.UploadBlocks.WithLabelValues("ok").Inc()
			znmetrics.UploadBytes.Add(float64(n))
			s.complete(n)
			return nil
		})
	}
	_ = g.Wait()
	if err := s.failure(); err != nil {
		return fmt.Errorf("%w: %w", ErrBlockUpload, err)
	}
	return nil
}

func (u *Uploader) putBlock(ctx context.Context, s *session, id string, body io.Reader, n int64) error {
	_, err := u.client.Call(ctx, &rest.Opts{
		Method:        http.MethodPut,
		RootURL:       s.uploadURL,
		Parameters:    url.Values{"comp": {"block"}, "blockid": {id}},
		Body:          body,
		ContentLength: &n,
		ExtraHeaders:  map[string]string{"x-ms-blob-type": "BlockBlob"},
		NoAuth:        true,
		NoResponse:    true,
	})
	return err
}

func (u *Uploader) commit(ctx context.Context, s *session, contentType string) error {
	doc, err := BlockList(s.blockIDs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	headers := map[string]string{}
	if contentType != "" {
		headers["x-ms-blob-content-type"] = contentType
	}
	_, err = u.client.Call(ctx, &rest.Opts{
		Method:       http.MethodPut,
		RootURL:      s.uploadURL,
		Parameters:   url.Values{"comp": {"blocklist"}},
		Body:         strings.NewReader(doc),
		ExtraHeaders: headers,
		NoAuth:       true,
		NoResponse:   true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	return nil
}

// SizeMB is the size reported to the service: whole megabytes, rounded.
func SizeMB(size int64) int64 {
	return int64(math.Round(float64(size) / DefaultBlockSize))
}

func (u *Uploader) startProcessing(ctx context.Context, s *session, blob Blob, p Params) error {
	q := url.Values{
		"fileName": {blob.Name()},
		"size":     {strconv.FormatInt(SizeMB(s.total), 10)},
		"revision": {p.RevisionOf},
		"path":     {p.Path},
	}
	if p.Split {
		q.Set("split", "true")
	}
	_, err := u.client.Call(ctx, &rest.Opts{
		Method:      http.MethodPost,
		Path:        "/resource/" + strconv.FormatInt(s.id, 10),
		Parameters:  q,
		Body:        strings.NewReader("{}"),
		ContentType: "application/json",
		NoResponse:  true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessStart, err)
	}
	return nil
}
