package viewertoken

import (
	"bytes"
	"encoding/json"
)

// TileSource is one of the tile-source shapes a viewer accepts:
// StringSource, ListSource, *DescriptorSource or RawSource.
type TileSource interface {
	tileSource()
}

// StringSource is a single info.json or image URL.
type StringSource string

// ListSource is a sequence of sources. String entries are rewritten; any
// other entry is kept as is.
type ListSource []any

// DescriptorSource is an object carrying its location in url or tileSource.
// Fields other than those two are kept in Extra.
type DescriptorSource struct {
	URL        *string
	TileSource *string
	Extra      map[string]json.RawMessage
}

// RawSource is any other JSON value. It passes through untouched.
type RawSource json.RawMessage

func (StringSource) tileSource()      {}
func (ListSource) tileSource()        {}
func (*DescriptorSource) tileSource() {}
func (RawSource) tileSource()         {}

// NormalizeTileSources appends the token to every URL in ts. Descriptors are
// updated in place.
func (h *Helper) NormalizeTileSources(ts TileSource) TileSource {
	if ts == nil || !h.HasToken() {
		return ts
	}

	switch v := ts.(type) {
	case StringSource:
		return StringSource(h.AppendToken(string(v)))
	case ListSource:
		out := make(ListSource, len(v))
		for i, entry := range v {
			switch s := entry.(type) {
			case string:
				out[i] = h.AppendToken(s)
			case StringSource:
				out[i] = StringSource(h.AppendToken(string(s)))
			default:
				out[i] = entry
			}
		}
		return out
	case *DescriptorSource:
		if v == nil {
			return ts
		}
		if v.URL != nil {
			*v.URL = h.AppendToken(*v.URL)
		}
		if v.TileSource != nil {
			*v.TileSource = h.AppendToken(*v.TileSource)
		}
		return v
	}
	return ts
}

// ParseTileSource decodes a JSON tile-source value into its TileSource
// shape.
func ParseTileSource(data []byte) (TileSource, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return RawSource(nil), nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return StringSource(s), nil
	case '[':
		var entries []any
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return ListSource(entries), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, err
		}
		d := &DescriptorSource{Extra: fields}
		d.URL = takeString(fields, "url")
		d.TileSource = takeString(fields, "tileSource")
		if d.URL == nil && d.TileSource == nil {
			return RawSource(trimmed), nil
		}
		return d, nil
	}
	return RawSource(trimmed), nil
}

// takeString removes key from fields when it holds a JSON string.
func takeString(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	delete(fields, key)
	return &s
}

func (d *DescriptorSource) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.URL != nil {
		out["url"] = *d.URL
	}
	if d.TileSource != nil {
		out["tileSource"] = *d.TileSource
	}
	return json.Marshal(out)
}

func (r RawSource) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(r).MarshalJSON()
}
