package strata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata/internal/batch"
)

// ToMap returns the external representation of the record: its visible
// fields read through their getters, its visible loaded relations and, for
// records loaded through a many-to-many relation, the pivot columns under
// "pivot". Config.Hidden and Config.Visible apply to relation names as they
// do to fields.
func (r *Record) ToMap() map[string]any {
	out := make(map[string]any, len(r.attributes)+len(r.relations))
	for _, name := range r.model.columns {
		if !r.model.Visible(name) {
			continue
		}
		d := r.model.fields[name]
		if d.Getter != nil {
			out[name] = d.Getter(r)
			continue
		}
		if v, ok := r.attributes[name]; ok {
			out[name] = v
		}
	}
	for name, v := range r.relations {
		if !r.model.Visible(name) {
			continue
		}
		switch v := v.(type) {
		case *Record:
			if v == nil {
				out[name] = nil
			} else {
				out[name] = v.ToMap()
			}
		case []*Record:
			list := make([]map[string]any, len(v))
			for i, rv := range v {
				list[i] = rv.ToMap()
			}
			out[name] = list
		}
	}
	if r.pivot != nil {
		out["pivot"] = r.PivotData()
	}
	return out
}

// MarshalJSON implements the json.Marshaler interface.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// EncodeMsgpack implements the msgpack.CustomEncoder interface.
func (r *Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(r.ToMap())
}

var _ msgpack.CustomEncoder = (*Record)(nil)

// ETag returns a digest of the model name and the full attribute set,
// hidden fields included. Equal attribute values yield equal tags
// regardless of their Go representation.
func (r *Record) ETag() (string, error) {
	attrs := make(map[string]any, len(r.attributes))
	for name, v := range r.attributes {
		attrs[name] = canonical(v)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(r.model.name); err != nil {
		return "", err
	}
	if err := enc.Encode(attrs); err != nil {
		return "", fmt.Errorf("strata: encoding %s attributes: %w", r.model.name, err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(buf.Bytes())), nil
}

// canonical maps a value to a representation that is stable across driver
// and user supplied forms.
func canonical(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, []byte:
		return batch.Normalize(v)
	}
	return v
}
