package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// A Type represents a field kind.
type Type uint8

// List of field kinds.
const (
	TypeInvalid Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
	TypeJSON
	TypeOther
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int64",
	TypeFloat:   "float64",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeBytes:   "[]byte",
	TypeJSON:    "json.RawMessage",
	TypeOther:   "other",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type if known type.
func (t Type) Valid() bool { return t > TypeInvalid && t <= TypeOther }

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool { return t == TypeInt || t == TypeFloat }

// Attributes is the view of a record given to custom accessors.
type Attributes interface {
	// Raw returns the stored value of the attribute, bypassing getters.
	Raw(name string) any
	// SetRaw stores the value of the attribute, bypassing setters.
	SetRaw(name string, v any) error
}

type (
	// GetterFunc computes the value returned for a field.
	GetterFunc func(Attributes) any
	// SetterFunc stores a value assigned to a field.
	SetterFunc func(Attributes, any) error
)

// A Descriptor for field configuration.
type Descriptor struct {
	Name        string     // field name.
	Type        Type       // field kind.
	Default     any        // default value on create.
	DefaultFunc func() any // default value factory on create.
	Hidden      bool       // excluded from serialization.
	Getter      GetterFunc // custom read accessor.
	Setter      SetterFunc // custom write accessor.
	Comment     string     // field comment.
	Err         error
}

// HasDefault reports if the field declares a default value.
func (d *Descriptor) HasDefault() bool { return d.Default != nil || d.DefaultFunc != nil }

// DefaultValue returns the default value of the field, calling the default
// factory if one was declared.
func (d *Descriptor) DefaultValue() any {
	if d.DefaultFunc != nil {
		return d.DefaultFunc()
	}
	return d.Default
}

// Builder is the builder shared by all field kinds.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Type: t}}
	if strings.TrimSpace(name) == "" {
		b.desc.Err = fmt.Errorf("field: empty %s field name", t)
	}
	return b
}

// String returns a new Field with type string.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new string field for large text columns.
func Text(name string) *Builder { return newBuilder(name, TypeString) }

// Int returns a new Field with type int64.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int64 returns a new Field with type int64.
func Int64(name string) *Builder { return newBuilder(name, TypeInt) }

// Float returns a new Field with type float64.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Float64 returns a new Field with type float64.
func Float64(name string) *Builder { return newBuilder(name, TypeFloat) }

// Bool returns a new Field with type bool.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Time returns a new Field with type timestamp.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// Bytes returns a new Field with type bytes/buffer.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// JSON returns a new Field whose value is stored as a JSON document.
func JSON(name string) *Builder { return newBuilder(name, TypeJSON) }

// Other returns a new Field whose values are passed to the driver as-is.
func Other(name string) *Builder { return newBuilder(name, TypeOther) }

// Default sets the default value of the field.
//
//	field.String("status").Default("pending")
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a function that produces the default value.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.desc.DefaultFunc = fn
	return b
}

// Hidden excludes the field from serialization. The field still takes part in
// dirty tracking and ETag computation.
func (b *Builder) Hidden() *Builder {
	b.desc.Hidden = true
	return b
}

// Getter sets a custom read accessor for the field.
func (b *Builder) Getter(fn GetterFunc) *Builder {
	b.desc.Getter = fn
	return b
}

// Setter sets a custom write accessor for the field.
func (b *Builder) Setter(fn SetterFunc) *Builder {
	b.desc.Setter = fn
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the strata.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor { return b.desc }

// timeLayouts are the layouts textual timestamps are parsed with. The last one
// is the time.Time.String format some SQLite drivers persist.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// Coerce converts a value read from the driver into the Go representation of
// the kind. Nil values stay nil.
func (t Type) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		switch v := v.(type) {
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
		return v, nil
	case TypeInt:
		return toInt(v)
	case TypeFloat:
		return toFloat(v)
	case TypeBool:
		return toBool(v)
	case TypeTime:
		return toTime(v)
	case TypeBytes:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
		return v, nil
	case TypeJSON:
		var raw []byte
		switch v := v.(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			return v, nil
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("field: decode json: %w", err)
		}
		return out, nil
	}
	return v, nil
}

// Value converts a Go value into the value passed to the driver.
func (t Type) Value(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t == TypeJSON {
		switch v.(type) {
		case string, []byte:
			return v, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field: encode json: %w", err)
		}
		return string(b), nil
	}
	return v, nil
}

func toInt(v any) (any, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("field: %d overflows int64", v)
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("field: %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("field: %v is not an integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return nil, fmt.Errorf("field: cannot convert %T to int64", v)
}

func toFloat(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	i, err := toInt(v)
	if err != nil {
		return nil, fmt.Errorf("field: cannot convert %T to float64", v)
	}
	return float64(i.(int64)), nil
}

func toBool(v any) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	i, err := toInt(v)
	if err != nil {
		return nil, fmt.Errorf("field: cannot convert %T to bool", v)
	}
	return i.(int64) != 0, nil
}

func toTime(v any) (any, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return nil, fmt.Errorf("field: cannot convert %T to time.Time", v)
	}
	// Strip the monotonic clock reading written by time.Time.String.
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("field: cannot parse %q as time.Time", s)
}
