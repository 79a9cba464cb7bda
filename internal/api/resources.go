package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/yourorg/scene-data/internal/types"
	"github.com/yourorg/scene-data/internal/upload"
)

// wireResource carries tags as one ";" separated string.
type wireResource struct {
	types.Resource
	Tags string `json:"tags,omitempty"`
}

func fromWire(w wireResource) types.Resource {
	r := w.Resource
	r.Tags = nil
	if w.Tags != "" {
		r.Tags = strings.Split(w.Tags, ";")
	}
	return r
}

// Resources lists uploaded resources.
func (c *Client) Resources(ctx context.Context) ([]types.Resource, error) {
	var ws []wireResource
	if err := c.getJSON(ctx, "/resources", &ws); err != nil {
		return nil, err
	}
	out := make([]types.Resource, len(ws))
	for i, w := range ws {
		out[i] = fromWire(w)
	}
	return out, nil
}

// Resource returns the preview files of a resource.
func (c *Client) Resource(ctx context.Context, id string) (*types.ResourcePreview, error) {
	var p types.ResourcePreview
	if err := c.getJSON(ctx, "/resources/"+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateResource(ctx context.Context, r types.Resource) error {
	return c.send(ctx, http.MethodPost, "/resources", wireResource{Resource: r, Tags: strings.Join(r.Tags, ";")})
}

func (c *Client) DeleteResource(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/resources/"+id, nil)
}

// UploadResource stores blob and starts processing it.
func (c *Client) UploadResource(ctx context.Context, blob upload.Blob, progress upload.Progress, p upload.Params) upload.Result {
	return c.uploader.Upload(ctx, blob, progress, p)
}
