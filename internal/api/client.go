// Package api is the scene service client: scenes, bookmarks, resources,
// uploads and processing jobs. Object search is reached through the DB bound
// to a loaded scene.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/config"
	"github.com/yourorg/scene-data/internal/rest"
	"github.com/yourorg/scene-data/internal/types"
	"github.com/yourorg/scene-data/internal/upload"
)

// Client talks to one scene service.
type Client struct {
	rest       *rest.Client
	serviceURL string
	uploader   *upload.Uploader
	log        *zap.Logger
}

type options struct {
	doer       rest.Doer
	auth       rest.HeaderProvider
	log        *zap.Logger
	uploadOpts []upload.Option
}

// Option configures a Client.
type Option func(*options)

// WithDoer replaces the HTTP transport.
func WithDoer(d rest.Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithAuth replaces the authentication header taken from the configuration.
func WithAuth(p rest.HeaderProvider) Option {
	return func(o *options) { o.auth = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithUploadOptions passes options through to the resource uploader.
func WithUploadOptions(opts ...upload.Option) Option {
	return func(o *options) { o.uploadOpts = append(o.uploadOpts, opts...) }
}

// New returns a client for cfg.ServiceURL.
func New(cfg *config.Config, opts ...Option) *Client {
	o := options{auth: cfg.AuthProvider(), log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.doer == nil {
		o.doer = &http.Client{Timeout: cfg.Timeout}
	}
	rc := rest.NewClient(o.doer, cfg.ServiceURL, rest.HeaderDecorator(o.auth), o.log)
	uploadOpts := append([]upload.Option{
		upload.WithBlockSize(cfg.BlockSize),
		upload.WithConcurrency(cfg.UploadConcurrency),
		upload.WithLogger(o.log),
	}, o.uploadOpts...)
	return &Client{
		rest:       rc,
		serviceURL: rc.RootURL(),
		uploader:   upload.New(rc, uploadOpts...),
		log:        o.log,
	}
}

// ServiceURL returns the normalised service root.
func (c *Client) ServiceURL() string { return c.serviceURL }

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	if _, err := c.rest.CallJSON(ctx, &rest.Opts{Path: path}, nil, v); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) error {
	if _, err := c.rest.CallJSON(ctx, &rest.Opts{Method: method, Path: path}, body, nil); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// UserInformation returns the authenticated user.
func (c *Client) UserInformation(ctx context.Context) (*types.UserInformation, error) {
	var u types.UserInformation
	if err := c.getJSON(ctx, "/user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Processes lists active processing jobs.
func (c *Client) Processes(ctx context.Context) ([]types.ActiveProcess, error) {
	var ps []types.ActiveProcess
	if err := c.getJSON(ctx, "/process", &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// ProcessProgress polls a processing job from position. It does not return
// an error: a failed poll yields a complete progress whose text describes the
// failure, so a polling loop stops.
func (c *Client) ProcessProgress(ctx context.Context, id string, position int64) types.ProcessProgress {
	var p types.ProcessProgress
	_, err := c.rest.CallJSON(ctx, &rest.Opts{
		Path:       "/progress/" + id,
		Parameters: url.Values{"position": {strconv.FormatInt(position, 10)}},
	}, nil, &p)
	if err != nil {
		var se *rest.StatusError
		text := err.Error()
		if errors.As(err, &se) {
			text = se.StatusText
		}
		c.log.Debug("progress poll failed", zap.String("process", id), zap.Error(err))
		return types.ProcessProgress{Text: text, Complete: true}
	}
	return p
}

// Fetch sends a decorated request to path under the service root. The
// caller closes the body. A non-2xx response is returned as *rest.StatusError.
func (c *Client) Fetch(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.rest.Call(ctx, &rest.Opts{Method: method, Path: "/" + path, Body: body})
}
