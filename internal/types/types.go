package types

import (
	"encoding/json"
	"time"
)

// ObjectID identifies an object within a scene.
type ObjectID int64

// NodeType distinguishes folders from leaves in the object hierarchy.
type NodeType int

const (
	NodeInternal NodeType = 0
	NodeLeaf     NodeType = 1
)

// Vec3 is an [x, y, z] triple.
type Vec3 [3]float64

type AABB struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

type BoundingSphere struct {
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

type Bounds struct {
	Box    AABB           `json:"box"`
	Sphere BoundingSphere `json:"sphere"`
}

// Property is a [key, value] pair as sent by the service.
type Property [2]string

// ObjectData is one object record on the wire. Search results in partial mode
// only carry ID, Path, Type, Bounds (and sometimes Descendants); the
// remaining fields arrive with full hydration.
type ObjectData struct {
	ID          ObjectID   `json:"id"`
	Path        string     `json:"path"`
	Type        NodeType   `json:"type"`
	Bounds      *Bounds    `json:"bounds,omitempty"`
	Descendants []ObjectID `json:"descendants,omitempty"`

	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Properties  []Property `json:"properties,omitempty"`
}

// SearchPattern matches objects by property.
type SearchPattern struct {
	Property string          `json:"property,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"` // string or []string
	Exact    bool            `json:"exact,omitempty"`
	Exclude  bool            `json:"exclude,omitempty"`
	Range    *Range          `json:"range,omitempty"`
}

type Range struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// SearchOptions filters a search. The pattern is either free text or a list
// of SearchPattern; Patterns wins when both are set. A nil DescentDepth
// leaves the depth to the service.
type SearchOptions struct {
	ParentPath   string
	DescentDepth *int
	Text         string
	Patterns     []SearchPattern
	Full         bool
}

// SearchPatternJSON returns the value sent as "search".
func (o SearchOptions) SearchPatternJSON() interface{} {
	if len(o.Patterns) > 0 {
		return o.Patterns
	}
	if o.Text != "" {
		return o.Text
	}
	return nil
}

// SearchRequest is the body of a search page request.
type SearchRequest struct {
	Path         string      `json:"path,omitempty"`
	Descendants  *int        `json:"descendants,omitempty"`
	Search       interface{} `json:"search,omitempty"`
	Continuation string      `json:"continuation"`
	Full         bool        `json:"full"`
}

type ScenePreview struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Count        *int       `json:"count,omitempty"`
}

type ObjectGroup struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	IDs                []ObjectID      `json:"ids,omitempty"`
	Color              []float64       `json:"color,omitempty"`
	Opacity            *float64        `json:"opacity,omitempty"`
	Selected           bool            `json:"selected"`
	Hidden             bool            `json:"hidden"`
	Search             []SearchPattern `json:"search,omitempty"`
	IncludeDescendants *bool           `json:"includeDescendants,omitempty"`
	Grouping           string          `json:"grouping,omitempty"`
}

// Bookmark is kept as raw JSON members so that camera, clipping and
// measurement state round-trips untouched.
type Bookmark map[string]json.RawMessage

// Name returns the bookmark's name, or "" if absent.
func (b Bookmark) Name() string {
	var name string
	_ = json.Unmarshal(b["name"], &name)
	return name
}

// CameraBookmark is the legacy bookmark layout still returned by old scenes.
type CameraBookmark struct {
	Name       string          `json:"name"`
	Properties json.RawMessage `json:"properties"`
}

type Resource struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Original string    `json:"original"`
	Revision string    `json:"revision,omitempty"`
	Created  time.Time `json:"created"`
	Path     string    `json:"path,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Type     string    `json:"type,omitempty"`
	Size     *int64    `json:"size,omitempty"`
}

type ResourcePreview struct {
	GLTF string `json:"gltf"`
	Bin  string `json:"bin"`
}

type XYZ struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
}

type XYZW struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
	W float64 `json:"W"`
}

type SceneAsset struct {
	Name     string `json:"name,omitempty"`
	Resource string `json:"resource"`
	Position *XYZ   `json:"position,omitempty"`
	Rotation *XYZW  `json:"rotation,omitempty"`
	Scale    *XYZ   `json:"scale,omitempty"`
}

type SceneDefinition struct {
	Title  string       `json:"title"`
	ID     string       `json:"id"`
	Assets []SceneAsset `json:"assets"`
}

type ActiveProcess struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type ProcessProgress struct {
	Text     string `json:"text"`
	Complete bool   `json:"complete"`
	Position int64  `json:"position"`
}

type UserInformation struct {
	Name         string          `json:"user"`
	Organization string          `json:"organization"`
	Role         string          `json:"role,omitempty"`
	Features     json.RawMessage `json:"features,omitempty"`
}

// SceneLoadFail describes a scene the service refused to return.
type SceneLoadFail struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error"`
	Tenant     string `json:"tenant,omitempty"`
}
