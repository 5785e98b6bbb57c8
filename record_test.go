package strata_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
)

func TestMake(t *testing.T) {
	client, _ := mockClient(t)
	users := client.MustModel("User")

	u, err := users.Make(map[string]any{"name": "alice", "email": "  Alice@Example.COM "})
	require.NoError(t, err)
	assert.False(t, u.Exists())
	assert.Nil(t, u.Key())
	assert.Equal(t, "", u.Raw("password"), "defaults apply to absent fields")
	assert.Equal(t, "alice@example.com", u.Raw("email"), "setter normalizes the value")
	assert.True(t, u.IsDirty())

	u, err = users.Make(map[string]any{"password": "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", u.Raw("password"), "explicit values win over defaults")

	_, err = users.Make(map[string]any{"name": "x", "nickname": "y"})
	assert.True(t, strata.IsUnknownAttribute(err))
}

func TestRecordAccessors(t *testing.T) {
	client, _ := mockClient(t)
	users := client.MustModel("User")
	u, err := users.Make(map[string]any{"name": "alice", "email": "alice@example.com"})
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		v, err := u.Get("name")
		require.NoError(t, err)
		assert.Equal(t, "alice", v)
		v, err = u.Get("display_name")
		require.NoError(t, err)
		assert.Equal(t, "alice <alice@example.com>", v, "getters compute the value")
		_, err = u.Get("nickname")
		assert.True(t, strata.IsUnknownAttribute(err))
	})

	t.Run("Set", func(t *testing.T) {
		require.NoError(t, u.Set("email", "BOB@EXAMPLE.COM"))
		assert.Equal(t, "bob@example.com", u.Raw("email"))
		require.NoError(t, u.SetRaw("email", "RAW"))
		assert.Equal(t, "RAW", u.Raw("email"), "SetRaw bypasses the setter")
		assert.True(t, strata.IsUnknownAttribute(u.Set("nickname", "x")))
		assert.True(t, strata.IsUnknownAttribute(u.SetRaw("nickname", "x")))
		assert.Nil(t, u.Raw("nickname"))
	})

	t.Run("FillIsAllOrNothing", func(t *testing.T) {
		err := u.Fill(map[string]any{"name": "zed", "unknown": 1})
		var uerr *strata.UnknownAttributeError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "unknown", uerr.Field)
		assert.Equal(t, "User", uerr.Model)
		assert.Equal(t, "alice", u.Raw("name"))
	})

	t.Run("Attributes", func(t *testing.T) {
		attrs := u.Attributes()
		attrs["name"] = "mutated"
		assert.Equal(t, "alice", u.Raw("name"), "attributes are returned as a copy")
	})
}

func TestFromRow(t *testing.T) {
	client, _ := mockClient(t)
	posts := client.MustModel("Post")

	p, err := posts.FromRow(map[string]any{
		"id":         int64(3),
		"title":      []byte("hello"),
		"views":      "12",
		"user_id":    int64(1),
		"created_at": "2024-05-06 07:08:09+00:00",
		"updated_at": testNow,
	})
	require.NoError(t, err)
	assert.True(t, p.Exists())
	assert.False(t, p.IsDirty())
	assert.Equal(t, int64(3), p.Key())
	assert.Equal(t, "hello", p.Raw("title"))
	assert.Equal(t, int64(12), p.Raw("views"))
	created, ok := p.Raw("created_at").(time.Time)
	require.True(t, ok)
	assert.True(t, created.Equal(testNow))

	_, err = posts.FromRow(map[string]any{"id": int64(1), "rating": 5})
	assert.True(t, strata.IsUnknownAttribute(err))

	_, err = posts.FromRow(map[string]any{"id": int64(1), "views": "many"})
	var serr *strata.SchemaError
	assert.ErrorAs(t, err, &serr)
}

func TestDirtyTracking(t *testing.T) {
	client, _ := mockClient(t)
	users := client.MustModel("User")
	u, err := users.FromRow(map[string]any{
		"id":         int64(1),
		"name":       "alice",
		"email":      "alice@example.com",
		"version":    int64(1),
		"created_at": testNow,
		"updated_at": testNow,
		"deleted_at": nil,
	})
	require.NoError(t, err)
	require.False(t, u.IsDirty())

	t.Run("EquivalentValues", func(t *testing.T) {
		require.NoError(t, u.SetRaw("version", 1))
		require.NoError(t, u.SetRaw("created_at", testNow.In(time.FixedZone("CEST", 2*60*60))))
		require.NoError(t, u.SetRaw("name", []byte("alice")))
		var nilTime *time.Time
		require.NoError(t, u.SetRaw("deleted_at", nilTime))
		assert.False(t, u.IsDirty(), "equal values are not dirty: %v", u.Dirty())
		assert.Empty(t, u.Dirty())
	})

	t.Run("Changes", func(t *testing.T) {
		require.NoError(t, u.Set("name", "bob"))
		require.NoError(t, u.Set("password", "secret"))
		assert.True(t, u.IsDirty())
		assert.True(t, u.IsDirty("name"))
		assert.True(t, u.IsDirty("email", "password"))
		assert.False(t, u.IsDirty("email"))
		assert.Equal(t, map[string]any{"name": "bob", "password": "secret"}, u.Dirty())
		assert.Equal(t, "alice", u.Original("name"))
	})

	t.Run("SyncOriginal", func(t *testing.T) {
		u.SyncOriginal()
		assert.False(t, u.IsDirty())
		assert.Equal(t, "bob", u.Original("name"))
	})

	t.Run("Trashed", func(t *testing.T) {
		assert.False(t, u.Trashed())
		require.NoError(t, u.SetRaw("deleted_at", testNow))
		assert.True(t, u.Trashed())
	})
}

func TestRelationCacheAccessors(t *testing.T) {
	client, _ := mockClient(t)
	u, err := client.MustModel("User").FromRow(map[string]any{"id": int64(1)})
	require.NoError(t, err)
	assert.False(t, u.Loaded("posts"))
	_, ok := u.Relation("posts")
	assert.False(t, ok)
	assert.Nil(t, u.PivotData())
}
