// Package search is the remote object database of one scene: paginated
// search, on-demand full metadata, descendant lists and object saves.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/linestream"
	znmetrics "github.com/yourorg/scene-data/internal/metrics"
	"github.com/yourorg/scene-data/internal/objcache"
	"github.com/yourorg/scene-data/internal/rest"
	"github.com/yourorg/scene-data/internal/types"
)

// ErrMissingContinuation means a search page ended before its continuation
// line. The service always sends one, even when it is empty.
var ErrMissingContinuation = errors.New("search page has no continuation line")

// DB searches and hydrates the objects of one scene.
type DB struct {
	client      *rest.Client
	metadataURL string
	assetURL    string
	cache       *objcache.Cache
	log         *zap.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for page and degradation events.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.log = l }
}

// New returns a DB for the scene whose metadata lives at metadataURL and
// whose assets live under assetURL.
func New(client *rest.Client, metadataURL, assetURL string, opts ...Option) *DB {
	db := &DB{
		client:      client,
		metadataURL: strings.TrimSuffix(metadataURL, "/"),
		assetURL:    assetURL,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(db)
	}
	db.cache = objcache.New(db.Object, db.Save)
	return db
}

// Cache exposes the identity cache shared by every stream of this DB.
func (db *DB) Cache() *objcache.Cache { return db.cache }

// Search starts a lazy, paginated search. Nothing is sent until the first
// call to Next.
func (db *DB) Search(ctx context.Context, opts types.SearchOptions) *Stream {
	return &Stream{db: db, ctx: ctx, opts: opts}
}

// Stream yields the records of a search one at a time.
type Stream struct {
	db   *DB
	ctx  context.Context
	opts types.SearchOptions

	body         io.ReadCloser
	lines        *linestream.Decoder
	continuation string
	started      bool
	done         bool

	obj    *objcache.Object
	err    error
	errors int
	pages  int
}

// Next advances to the next record, fetching pages as needed. It returns
// false when the search is exhausted, cancelled or failed.
func (s *Stream) Next() bool {
	s.obj = nil
	for !s.done {
		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			return false
		}
		if s.lines == nil {
			if s.started && s.continuation == "" {
				s.finish()
				return false
			}
			if err := s.openPage(); err != nil {
				s.fail(err)
				return false
			}
			continue
		}
		if !s.lines.Next() {
			err := s.lines.Err()
			s.closePage()
			if err != nil {
				s.fail(fmt.Errorf("read search page: %w", err))
				return false
			}
			continue
		}
		rec, ok := decodeRecord(s.lines.Line())
		if !ok {
			s.errors++
			znmetrics.SearchDecodeErrors.Inc()
			continue
		}
		s.obj = s.db.cache.Merge(rec, s.opts.Full)
		znmetrics.SearchRecords.Inc()
		return true
	}
	return false
}

// searchRecord shadows ObjectData.ID so a missing or null id can be told
// apart from object 0.
type searchRecord struct {
	types.ObjectData
	ID *types.ObjectID `json:"id"`
}

// decodeRecord parses one search line. Lines that are not an object with an
// id, such as null or {}, are rejected.
func decodeRecord(line string) (types.ObjectData, bool) {
	var rec searchRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.ID == nil {
		return types.ObjectData{}, false
	}
	rec.ObjectData.ID = *rec.ID
	return rec.ObjectData, true
}

// Object returns the canonical handle of the current record.
func (s *Stream) Object() *objcache.Object { return s.obj }

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error { return s.err }

// Errors returns how many lines were skipped as malformed.
func (s *Stream) Errors() int { return s.errors }

// Pages returns how many pages have been requested.
func (s *Stream) Pages() int { return s.pages }

// Close releases the current page. It is safe to call at any time.
func (s *Stream) Close() error {
	s.closePage()
	s.done = true
	return nil
}

// All drains the stream into a slice.
func (s *Stream) All() ([]*objcache.Object, error) {
	defer s.Close()
	var out []*objcache.Object
	for s.Next() {
		out = append(out, s.Object())
	}
	return out, s.Err()
}

func (s *Stream) openPage() error {
	req := types.SearchRequest{
		Path:         s.opts.ParentPath,
		Descendants:  s.opts.DescentDepth,
		Search:       s.opts.SearchPatternJSON(),
		Continuation: s.continuation,
		Full:         s.opts.Full,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode search request: %w", err)
	}
	resp, err := s.db.client.Call(s.ctx, &rest.Opts{
		Method:       http.MethodPost,
		RootURL:      s.db.metadataURL,
		Path:         "/search",
		Body:         bytes.NewReader(body),
		ContentType:  "application/json",
		ExtraHeaders: map[string]string{"Accept": "text/plain"},
	})
	if err != nil {
		return fmt.Errorf("search page %d: %w", s.pages+1, err)
	}
	s.started = true
	s.pages++
	znmetrics.SearchPages.Inc()
	s.body = resp.Body
	s.lines = linestream.NewDecoder(resp.Body)
	if !s.lines.Next() {
		err := s.lines.Err()
		s.closePage()
		if err == nil {
			err = ErrMissingContinuation
		}
		return fmt.Errorf("search page %d: %w", s.pages, err)
	}
	s.continuation = s.lines.Line()
	s.db.log.Debug("search page",
		zap.Int("page", s.pages),
		zap.Bool("more", s.continuation != ""),
		zap.String("path", s.opts.ParentPath))
	return nil
}

func (s *Stream) closePage() {
	if s.body != nil {
		_ = s.body.Close()
	}
	s.body = nil
	s.lines = nil
}

func (s *Stream) finish() {
	s.closePage()
	s.done = true
	if s.errors > 0 {
		s.db.log.Debug("search skipped malformed lines", zap.Int("count", s.errors))
	}
}

func (s *Stream) fail(err error) {
	s.finish()
	s.err = err
}

// Object returns the fully hydrated record for id, fetching it when the
// cache only holds partial fields. It is the loader bound to partial records.
func (db *DB) Object(ctx context.Context, id types.ObjectID) (*objcache.Object, error) {
	if o, ok := db.cache.Get(id); ok && o.Full() {
		return o, nil
	}
	var rec types.ObjectData
	_, err := db.client.CallJSON(ctx, &rest.Opts{
		RootURL: db.metadataURL,
		Path:    "/" + strconv.FormatInt(int64(id), 10),
	}, nil, &rec)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", id, err)
	}
	// the cache is keyed by the requested id
	rec.ID = id
	return db.cache.Merge(rec, true), nil
}

// savedObject is the subset of fields the service accepts on save.
type savedObject struct {
	Name        string           `json:"name"`
	Path        string           `json:"path"`
	Properties  []types.Property `json:"properties"`
	URL         string           `json:"url,omitempty"`
	Description string           `json:"description,omitempty"`
	ID          types.ObjectID   `json:"id"`
	Type        types.NodeType   `json:"type"`
	Bounds      *types.Bounds    `json:"bounds,omitempty"`
}

// Save persists a record's metadata. It is the saver bound to full records.
func (db *DB) Save(ctx context.Context, d types.ObjectData) error {
	_, err := db.client.CallJSON(ctx, &rest.Opts{
		Method:  http.MethodPost,
		RootURL: db.metadataURL,
	}, savedObject{
		Name:        d.Name,
		Path:        d.Path,
		Properties:  d.Properties,
		URL:         d.URL,
		Description: d.Description,
		ID:          d.ID,
		Type:        d.Type,
		Bounds:      d.Bounds,
	}, nil)
	if err != nil {
		return fmt.Errorf("save object %d: %w", d.ID, err)
	}
	return nil
}

// Descendants returns every descendant id of obj. The list is fetched once
// and cached on the handle. Any failure yields an empty list, which is also
// cached.
func (db *DB) Descendants(ctx context.Context, obj *objcache.Object) []types.ObjectID {
	if ids, ok := obj.Descendants(); ok {
		return ids
	}
	ids, err := db.fetchDescendants(ctx, obj.ID())
	if err != nil {
		db.log.Warn("descendants unavailable", zap.Int64("id", int64(obj.ID())), zap.Error(err))
		znmetrics.DescendantLookups.WithLabelValues("degraded").Inc()
		ids = []types.ObjectID{}
	} else {
		znmetrics.DescendantLookups.WithLabelValues("ok").Inc()
	}
	obj.SetDescendants(ids)
	got, _ := obj.Descendants()
	return got
}

func (db *DB) fetchDescendants(ctx context.Context, id types.ObjectID) ([]types.ObjectID, error) {
	if db.assetURL == "" {
		return nil, errors.New("scene has no asset url")
	}
	u, err := url.Parse(db.assetURL)
	if err != nil {
		return nil, fmt.Errorf("asset url: %w", err)
	}
	// the asset url may carry a signed query; extend the path only
	u.Path += "descendants/" + strconv.FormatInt(int64(id), 10)
	u.RawPath = ""
	resp, err := db.client.Call(ctx, &rest.Opts{
		RootURL: u.String(),
		NoAuth:  true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	ids := []types.ObjectID{}
	lines := linestream.NewDecoder(resp.Body)
	for lines.Next() {
		n, err := strconv.ParseInt(strings.TrimSpace(lines.Line()), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, types.ObjectID(n))
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
