package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/rest"
	"github.com/yourorg/scene-data/internal/search"
	"github.com/yourorg/scene-data/internal/types"
)

// Names of the groups built from legacy selection and visibility lists.
const (
	DefaultGroup       = "default"
	DefaultHiddenGroup = "defaultHidden"
)

// Scene is a loaded scene document with its object database.
type Scene struct {
	ID   string
	Data types.SceneData
	DB   *search.DB
	// Fail is set when the service refused the scene; Data is then empty.
	Fail *types.SceneLoadFail
}

// Scenes lists the scenes visible to the user.
func (c *Client) Scenes(ctx context.Context) ([]types.ScenePreview, error) {
	var out []types.ScenePreview
	if err := c.getJSON(ctx, "/scenes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadScene fetches a scene and binds a search DB for its objects. A non-2xx
// answer is not an error: it is returned as Scene.Fail.
func (c *Client) LoadScene(ctx context.Context, id string) (*Scene, error) {
	resp, err := c.rest.Call(ctx, &rest.Opts{Path: "/scenes/" + id})
	if err != nil {
		var se *rest.StatusError
		if !errors.As(err, &se) {
			return nil, fmt.Errorf("load scene %s: %w", id, err)
		}
		fail := &types.SceneLoadFail{}
		if json.Unmarshal([]byte(se.Body), fail) != nil || fail.Error == "" {
			fail.Error = se.StatusText
		}
		fail.StatusCode = se.StatusCode
		c.log.Warn("scene refused", zap.String("scene", id), zap.Int("status", se.StatusCode), zap.String("error", fail.Error))
		return &Scene{ID: id, DB: c.sceneDB(id, ""), Fail: fail}, nil
	}
	var data types.SceneData
	if err := rest.DecodeJSON(resp, &data); err != nil {
		return nil, fmt.Errorf("load scene %s: %w", id, err)
	}
	if err := normalizeScene(&data); err != nil {
		return nil, fmt.Errorf("load scene %s: %w", id, err)
	}
	return &Scene{ID: id, Data: data, DB: c.sceneDB(id, data.URL)}, nil
}

func (c *Client) sceneDB(id, assetURL string) *search.DB {
	return search.New(c.rest, c.serviceURL+"/metadata/"+id, assetURL, search.WithLogger(c.log))
}

type legacySettings struct {
	SelectedObjects *struct {
		Color []float64 `json:"color"`
	} `json:"selectedObjects"`
}

// normalizeScene upgrades legacy scene layouts: selection and hidden lists
// become groups, unnamed groups get ids and camera bookmarks become bookmarks.
func normalizeScene(s *types.SceneData) error {
	if s.ObjectGroups == nil {
		s.ObjectGroups = []types.ObjectGroup{}
		if raw, ok := s.Extra["settings"]; ok && string(raw) != "null" {
			var settings legacySettings
			if err := json.Unmarshal(raw, &settings); err != nil {
				return fmt.Errorf("settings: %w", err)
			}
			def := types.ObjectGroup{Name: DefaultGroup, IDs: []types.ObjectID{}, Color: []float64{1, 0, 0}, Selected: true}
			addDef := false
			if settings.SelectedObjects != nil && len(settings.SelectedObjects.Color) > 0 {
				def.Color = append([]float64(nil), settings.SelectedObjects.Color...)
				addDef = true
			}
			var selected []types.ObjectID
			if ok, err := s.Take("selectedObjects", &selected); err != nil {
				return fmt.Errorf("selectedObjects: %w", err)
			} else if ok {
				def.IDs = selected
				addDef = true
			}
			if addDef {
				s.ObjectGroups = append(s.ObjectGroups, def)
			}
			if raw, ok := s.Extra["hiddenObjects"]; ok && string(raw) != "null" {
				var hidden []types.ObjectID
				if err := json.Unmarshal(raw, &hidden); err != nil {
					return fmt.Errorf("hiddenObjects: %w", err)
				}
				s.ObjectGroups = append(s.ObjectGroups, types.ObjectGroup{
					Name: DefaultHiddenGroup, IDs: hidden, Color: []float64{1, 0, 0}, Hidden: true,
				})
			}
		}
	} else {
		for i := range s.ObjectGroups {
			g := &s.ObjectGroups[i]
			if g.ID == "" && g.Name != DefaultGroup && g.Name != DefaultHiddenGroup {
				g.ID = NewGroupID()
			}
		}
	}
	var camera []types.CameraBookmark
	if ok, err := s.Take("cameraBookmarks", &camera); err != nil {
		return fmt.Errorf("cameraBookmarks: %w", err)
	} else if ok {
		s.Bookmarks = make([]types.Bookmark, 0, len(camera))
		for _, cb := range camera {
			name, _ := json.Marshal(cb.Name)
			b := types.Bookmark{"name": name}
			if len(cb.Properties) > 0 {
				b["camera"] = cb.Properties
			}
			s.Bookmarks = append(s.Bookmarks, b)
		}
	}
	return nil
}

// NewGroupID returns a random group id: 32 lowercase hex digits.
func NewGroupID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PutScene stores a scene. Its URL is "id" or "id:mainScene" and is not
// sent in the body.
func (c *Client) PutScene(ctx context.Context, scene types.SceneData) error {
	id, main, _ := strings.Cut(scene.URL, ":")
	if id == "" {
		return errors.New("put scene: scene url has no id")
	}
	path := "/scenes/" + id
	if main != "" {
		path += "/" + main
	}
	scene.URL = ""
	return c.send(ctx, http.MethodPost, path, scene)
}

// DeleteScene removes a scene.
func (c *Client) DeleteScene(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/scenes/"+id, nil)
}

// BookmarkOptions selects a bookmark collection of a scene.
type BookmarkOptions struct {
	Group    string
	Personal bool
}

func bookmarksPath(id string, o BookmarkOptions) string {
	p := "/scenes/" + id + "/"
	if o.Personal {
		p += "personal"
	}
	p += "bookmarks"
	if o.Group != "" {
		p += "/" + o.Group
	}
	return p
}

func (c *Client) Bookmarks(ctx context.Context, sceneID string, o BookmarkOptions) ([]types.Bookmark, error) {
	var out []types.Bookmark
	if err := c.getJSON(ctx, bookmarksPath(sceneID, o), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveBookmarks(ctx context.Context, sceneID string, bookmarks []types.Bookmark, o BookmarkOptions) error {
	if bookmarks == nil {
		bookmarks = []types.Bookmark{}
	}
	return c.send(ctx, http.MethodPost, bookmarksPath(sceneID, o), bookmarks)
}

// GroupIDs returns the object ids of a stored group.
func (c *Client) GroupIDs(ctx context.Context, sceneID, groupID string) ([]types.ObjectID, error) {
	var out []types.ObjectID
	if err := c.getJSON(ctx, "/scenes/"+sceneID+"/group/"+groupID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SceneDefinition returns the definition a scene was created from.
func (c *Client) SceneDefinition(ctx context.Context, id string) (*types.SceneDefinition, error) {
	var def types.SceneDefinition
	if err := c.getJSON(ctx, "/scenes/"+id+"/config", &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// CreateSceneResult is the outcome of CreateScene; Error is set on failure.
type CreateSceneResult struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateScene starts a job that builds a scene from def.
func (c *Client) CreateScene(ctx context.Context, def types.SceneDefinition) CreateSceneResult {
	var res CreateSceneResult
	_, err := c.rest.CallJSON(ctx, &rest.Opts{Method: http.MethodPost, Path: "/process"}, def, &res)
	if err != nil {
		var se *rest.StatusError
		if errors.As(err, &se) {
			return CreateSceneResult{Error: se.StatusText}
		}
		return CreateSceneResult{Error: "Failed: " + err.Error()}
	}
	return res
}
