package field_test

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/schema/field"
)

func TestBuilders(t *testing.T) {
	fd := field.String("name").
		Default("unknown").
		Comment("comment").
		Descriptor()
	assert.Equal(t, "name", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.Equal(t, "unknown", fd.Default)
	assert.Equal(t, "comment", fd.Comment)
	assert.True(t, fd.HasDefault())
	assert.False(t, fd.Hidden)
	assert.NoError(t, fd.Err)

	fd = field.String("password").Hidden().Descriptor()
	assert.True(t, fd.Hidden)
	assert.False(t, fd.HasDefault())
	assert.Nil(t, fd.DefaultValue())

	calls := 0
	fd = field.Int("rank").DefaultFunc(func() any { calls++; return int64(calls) }).Descriptor()
	assert.Equal(t, int64(1), fd.DefaultValue())
	assert.Equal(t, int64(2), fd.DefaultValue())

	assert.Equal(t, field.TypeInt, field.Int64("n").Descriptor().Type)
	assert.Equal(t, field.TypeFloat, field.Float64("n").Descriptor().Type)
	assert.Equal(t, field.TypeBool, field.Bool("n").Descriptor().Type)
	assert.Equal(t, field.TypeTime, field.Time("n").Descriptor().Type)
	assert.Equal(t, field.TypeBytes, field.Bytes("n").Descriptor().Type)
	assert.Equal(t, field.TypeJSON, field.JSON("n").Descriptor().Type)
	assert.Equal(t, field.TypeString, field.Text("n").Descriptor().Type)
	assert.Equal(t, field.TypeOther, field.Other("n").Descriptor().Type)

	assert.Error(t, field.String(" ").Descriptor().Err)
}

func TestType(t *testing.T) {
	assert.Equal(t, "string", field.TypeString.String())
	assert.Equal(t, "invalid", field.Type(100).String())
	assert.True(t, field.TypeInt.Numeric())
	assert.False(t, field.TypeBool.Numeric())
	assert.True(t, field.TypeJSON.Valid())
	assert.False(t, field.TypeInvalid.Valid())
}

type attrs map[string]any

func (a attrs) Raw(name string) any { return a[name] }

func (a attrs) SetRaw(name string, v any) error {
	a[name] = v
	return nil
}

func TestAccessors(t *testing.T) {
	fd := field.String("full_name").
		Getter(func(a field.Attributes) any {
			return a.Raw("first").(string) + " " + a.Raw("last").(string)
		}).
		Setter(func(a field.Attributes, v any) error {
			if err := a.SetRaw("first", v.([]string)[0]); err != nil {
				return err
			}
			return a.SetRaw("last", v.([]string)[1])
		}).
		Descriptor()
	a := attrs{}
	require.NoError(t, fd.Setter(a, []string{"Ada", "Lovelace"}))
	assert.Equal(t, attrs{"first": "Ada", "last": "Lovelace"}, a)
	assert.Equal(t, "Ada Lovelace", fd.Getter(a))
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
	}{
		{"nil", field.TypeInt, nil, nil},
		{"bytes to string", field.TypeString, []byte("a8m"), "a8m"},
		{"int to int64", field.TypeInt, 7, int64(7)},
		{"text to int64", field.TypeInt, "42", int64(42)},
		{"integral float to int64", field.TypeInt, float64(3), int64(3)},
		{"int to float", field.TypeFloat, int64(2), float64(2)},
		{"text to float", field.TypeFloat, []byte("1.5"), 1.5},
		{"sqlite bool", field.TypeBool, int64(1), true},
		{"sqlite false", field.TypeBool, int64(0), false},
		{"text bool", field.TypeBool, "true", true},
		{"time passthrough", field.TypeTime, ts, ts},
		{"rfc3339", field.TypeTime, "2024-03-01T10:30:00Z", ts},
		{"sqlite text time", field.TypeTime, "2024-03-01 10:30:00+00:00", ts},
		{"string time", field.TypeTime, "2024-03-01 10:30:00 +0000 UTC", ts},
		{"unix time", field.TypeTime, ts.Unix(), ts},
		{"string to bytes", field.TypeBytes, "raw", []byte("raw")},
		{"json text", field.TypeJSON, `{"theme":"dark"}`, map[string]any{"theme": "dark"}},
		{"json map", field.TypeJSON, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"other", field.TypeOther, 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.in)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := field.TypeInt.Coerce(1.5)
	assert.Error(t, err)
	_, err = field.TypeTime.Coerce("yesterday")
	assert.Error(t, err)
	_, err = field.TypeJSON.Coerce("{")
	assert.Error(t, err)
	if maxUint := ^uint(0); strconv.IntSize == 64 {
		_, err = field.TypeInt.Coerce(maxUint)
		assert.ErrorContains(t, err, "overflows int64")
		got, err := field.TypeInt.Coerce(maxUint >> 1)
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), got)
	}
	_, err = field.TypeInt.Coerce(uint64(math.MaxInt64) + 1)
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	v, err := field.TypeJSON.Value(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = field.TypeJSON.Value(`{"b":2}`)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, v)

	v, err = field.TypeString.Value("x")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = field.TypeJSON.Value(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
