package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Fields is a sparse document: only keys holding non-default values are
// present. An absent key means "use the default"; a JSON null value is the
// explicit clear sentinel for nullable fields.
type Fields map[string]json.RawMessage

var jsonNull = []byte("null")

// Put encodes v under key.
func (f Fields) Put(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f[key] = b
	return nil
}

// Clear stores the null sentinel under key.
func (f Fields) Clear(key string) { f[key] = json.RawMessage(jsonNull) }

// Has reports whether key is present (null included).
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// IsNull reports whether key is present and holds the null sentinel.
func (f Fields) IsNull(key string) bool {
	v, ok := f[key]
	return ok && bytes.Equal(bytes.TrimSpace(v), jsonNull)
}

// Decode unmarshals the value under key into v. It reports false when the
// key is absent or null.
func (f Fields) Decode(key string, v any) (bool, error) {
	raw, ok := f[key]
	if !ok || f.IsNull(key) {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Keys returns the present keys in sorted order.
func (f Fields) Keys() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge returns a copy of f overlaid with other; keys in other win.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Only returns a copy restricted to the given keys. Keys absent from f are
// emitted as null so the receiver clears them.
func (f Fields) Only(keys ...string) Fields {
	out := make(Fields, len(keys))
	for _, k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		} else {
			out.Clear(k)
		}
	}
	return out
}

// Marshal encodes the document; a nil document encodes as "{}".
func (f Fields) Marshal() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]json.RawMessage(f))
}

// ParseFields decodes a stored document. Empty input yields an empty document.
func ParseFields(b []byte) (Fields, error) {
	out := Fields{}
	if len(bytes.TrimSpace(b)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
