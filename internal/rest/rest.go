// Package rest is the small HTTP layer shared by the scene service clients.
//
// All methods are safe for concurrent calling.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Doer sends a request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Decorator augments an outgoing request, typically with auth headers.
type Decorator func(ctx context.Context, req *http.Request) error

// HeaderProvider returns the name and value of an authentication header.
type HeaderProvider func(ctx context.Context) (header, value string, err error)

// HeaderDecorator adds the header returned by p to every request. Nothing is
// added when either the name or the value is empty.
func HeaderDecorator(p HeaderProvider) Decorator {
	return func(ctx context.Context, req *http.Request) error {
		if p == nil {
			return nil
		}
		name, value, err := p(ctx)
		if err != nil {
			return fmt.Errorf("auth header: %w", err)
		}
		if name == "" || value == "" {
			return nil
		}
		req.Header.Add(name, value)
		return nil
	}
}

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP error %d (%s): %q", e.StatusCode, e.StatusText, e.Body)
	}
	return fmt.Sprintf("HTTP error %d (%s)", e.StatusCode, e.StatusText)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 4096

// Client holds the root URL, transport and decorator for a service.
type Client struct {
	c        Doer
	rootURL  string
	decorate Decorator
	log      *zap.Logger
}

// NewClient makes a client rooted at rootURL. A nil doer means http.DefaultClient.
func NewClient(c Doer, rootURL string, decorate Decorator, log *zap.Logger) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{c: c, rootURL: strings.TrimSuffix(rootURL, "/"), decorate: decorate, log: log}
}

// RootURL returns the root the client was created with.
func (api *Client) RootURL() string { return api.rootURL }

// Opts contains parameters for Call and CallJSON.
type Opts struct {
	Method        string // GET, POST, etc.
	Path          string // relative to RootURL
	RootURL       string // override the client root, e.g. a pre-signed URL
	Body          io.Reader
	ContentType   string
	ContentLength *int64
	ExtraHeaders  map[string]string
	Parameters    url.Values // appended to the final URL
	NoAuth        bool       // skip the decorator
	NoResponse    bool       // close the body before returning
}

// URL builds the final request URL for opts.
func (api *Client) URL(opts *Opts) string {
	u := api.rootURL
	if opts.RootURL != "" {
		u = opts.RootURL
	}
	u += opts.Path
	if len(opts.Parameters) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + opts.Parameters.Encode()
	}
	return u
}

// Call makes the request and returns the response.
//
// If err == nil the caller must close resp.Body unless opts.NoResponse is
// set. Non-2xx responses are turned into a *StatusError and their body is
// closed.
func (api *Client) Call(ctx context.Context, opts *Opts) (resp *http.Response, err error) {
	if opts == nil {
		return nil, errors.New("call() called with nil opts")
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	u := api.URL(opts)
	req, err := http.NewRequestWithContext(ctx, method, u, opts.Body)
	if err != nil {
		return nil, err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.ContentLength != nil {
		req.ContentLength = *opts.ContentLength
		if *opts.ContentLength == 0 {
			req.Body = http.NoBody
		}
	}
	for k, v := range opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	if !opts.NoAuth && api.decorate != nil {
		if err := api.decorate(ctx, req); err != nil {
			return nil, err
		}
	}
	api.log.Debug("http request", zap.String("method", method), zap.String("url", redact(u)))
	resp, err = api.c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, &StatusError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if opts.NoResponse {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, resp.Body.Close()
	}
	return resp, nil
}

// CallJSON encodes request (if non-nil) as the body, makes the call and
// decodes the response into response (if non-nil).
func (api *Client) CallJSON(ctx context.Context, opts *Opts, request, response interface{}) (resp *http.Response, err error) {
	o := *opts
	if request != nil {
		b, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		o.Body = bytes.NewReader(b)
		if o.ContentType == "" {
			o.ContentType = "application/json"
		}
	}
	o.NoResponse = response == nil
	resp, err = api.Call(ctx, &o)
	if err != nil || response == nil {
		return resp, err
	}
	return resp, DecodeJSON(resp, response)
}

// DecodeJSON decodes resp.Body into result, closing the body.
func DecodeJSON(resp *http.Response, result interface{}) (err error) {
	defer func() {
		if cerr := resp.Body.Close(); err == nil {
			err = cerr
		}
	}()
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ReadBody reads resp.Body, closing it.
func ReadBody(resp *http.Response) (result []byte, err error) {
	defer func() {
		if cerr := resp.Body.Close(); err == nil {
			err = cerr
		}
	}()
	return io.ReadAll(resp.Body)
}

func statusText(resp *http.Response) string {
	// resp.Status is "404 Not Found"; keep the reason phrase only
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// redact drops the query string so pre-signed credentials never hit the logs.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
