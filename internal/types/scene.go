package types

import "encoding/json"

// SceneData is a scene document. Members the client does not interpret are
// kept in Extra and written back unchanged by MarshalJSON.
type SceneData struct {
	URL          string
	Title        string
	ObjectGroups []ObjectGroup
	Bookmarks    []Bookmark
	Extra        map[string]json.RawMessage
}

var sceneKeys = []string{"url", "title", "objectGroups", "bookmarks"}

func (s *SceneData) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	dst := []interface{}{&s.URL, &s.Title, &s.ObjectGroups, &s.Bookmarks}
	for i, k := range sceneKeys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, dst[i]); err != nil {
				return err
			}
		}
		delete(m, k)
	}
	s.Extra = m
	return nil
}

func (s SceneData) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(s.Extra)+len(sceneKeys))
	for k, v := range s.Extra {
		m[k] = v
	}
	if s.URL != "" {
		m["url"] = s.URL
	}
	m["title"] = s.Title
	m["objectGroups"] = s.ObjectGroups
	if s.Bookmarks != nil {
		m["bookmarks"] = s.Bookmarks
	}
	return json.Marshal(m)
}

// Take removes key from Extra and decodes it into v. It reports whether the
// key was present.
func (s *SceneData) Take(key string, v interface{}) (bool, error) {
	raw, ok := s.Extra[key]
	if !ok {
		return false, nil
	}
	delete(s.Extra, key)
	if string(raw) == "null" {
		return true, nil
	}
	return true, json.Unmarshal(raw, v)
}
