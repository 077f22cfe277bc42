package domain

import (
	"encoding/json"
	"maps"
)

type TrackID int64

// Track is one playlist entry. Meta is whatever the client sent (title,
// videoId, thumbnail, ...); it is opaque to the server and flattened on the
// wire next to the server-owned id and addedBy fields.
type Track struct {
	ID      TrackID
	AddedBy string
	Meta    map[string]any
}

func (t Track) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Meta)+2)
	maps.Copy(out, t.Meta)
	out["id"] = t.ID
	out["addedBy"] = t.AddedBy
	return json.Marshal(out)
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var tr Track
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &tr.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if v, ok := raw["addedBy"]; ok {
		if err := json.Unmarshal(v, &tr.AddedBy); err != nil {
			return err
		}
		delete(raw, "addedBy")
	}
	tr.Meta = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		tr.Meta[k] = val
	}
	*t = tr
	return nil
}

// CleanMeta drops the keys the server owns so a client cannot forge them.
func CleanMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "id" || k == "addedBy" {
			continue
		}
		out[k] = v
	}
	return out
}
