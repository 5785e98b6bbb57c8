package strata_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

func TestToMap(t *testing.T) {
	f := newFixture(t)
	b := seedBlog(t, f)
	ctx := context.Background()

	require.NoError(t, b.alice.Update(ctx, map[string]any{"password": "secret"}))
	m := b.alice.ToMap()
	assert.NotContains(t, m, "password", "hidden fields are not serialized")
	assert.Equal(t, "alice", m["name"])
	assert.Equal(t, "alice <alice@example.com>", m["display_name"])
	assert.NotContains(t, m, "posts", "only loaded relations are serialized")

	u, err := f.users.Query().With("posts.tags", "profile").FindOrFail(ctx, b.bob.Key())
	require.NoError(t, err)
	m = u.ToMap()
	assert.Nil(t, m["profile"])
	assert.Contains(t, m, "profile")
	posts, ok := m["posts"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "bye", posts[0]["title"])
	tags, ok := posts[0]["tags"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0]["name"])
	pivot, ok := tags[0]["pivot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, b.bye.Key(), pivot["post_id"])
}

// Author exposes only its name and published posts.
type Author struct{ strata.Schema }

func (Author) Config() strata.Config {
	return strata.Config{Table: "authors", Visible: []string{"name", "posts"}}
}

func (Author) Fields() []strata.Field {
	return []strata.Field{
		field.String("name"),
		field.String("email"),
	}
}

func (Author) Edges() []strata.Edge {
	return []strata.Edge{
		edge.HasMany("posts", Post.Type).ForeignKey("user_id"),
		edge.HasMany("drafts", Post.Type).ForeignKey("user_id"),
	}
}

func TestToMapRelationVisibility(t *testing.T) {
	f := newFixture(t, strata.WithSchemas(Author{}))
	seedBlog(t, f)
	ctx := context.Background()
	require.NoError(t, f.Driver().Exec(ctx, "CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT, email TEXT)", []any{}, nil))

	authors := f.MustModel("Author")
	_, err := authors.Create(ctx, map[string]any{"id": int64(1), "name": "alice", "email": "alice@example.com"})
	require.NoError(t, err)
	a, err := authors.Query().With("posts", "drafts").FindOrFail(ctx, int64(1))
	require.NoError(t, err)
	assert.True(t, a.Loaded("drafts"))

	m := a.ToMap()
	assert.Equal(t, "alice", m["name"])
	assert.NotContains(t, m, "email")
	assert.NotContains(t, m, "drafts", "relations outside the visible list are not serialized")
	posts, ok := m["posts"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, posts, 2)
}

func TestMarshalJSON(t *testing.T) {
	f := newFixture(t)
	b := seedBlog(t, f)
	ctx := context.Background()
	require.NoError(t, b.alice.Load(ctx, "posts"))

	data, err := json.Marshal(b.alice)
	require.NoError(t, err)
	var out struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Posts    []struct {
			Title string `json:"title"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, b.alice.Key(), out.ID)
	assert.Equal(t, "alice", out.Name)
	assert.Empty(t, out.Password)
	require.Len(t, out.Posts, 2)
	assert.Equal(t, "hello", out.Posts[0].Title)
}

func TestEncodeMsgpack(t *testing.T) {
	f := newFixture(t)
	b := seedBlog(t, f)

	data, err := msgpack.Marshal(b.bob)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &out))
	assert.Equal(t, "bob", out["name"])
	assert.NotContains(t, out, "password")
}

func TestETag(t *testing.T) {
	client, _ := mockClient(t)
	users := client.MustModel("User")
	row := map[string]any{"id": int64(1), "name": "alice", "password": "a", "version": int64(1), "created_at": testNow}

	u, err := users.FromRow(row)
	require.NoError(t, err)
	tag, err := u.ETag()
	require.NoError(t, err)
	assert.Len(t, tag, 16)

	same, err := users.FromRow(row)
	require.NoError(t, err)
	require.NoError(t, same.SetRaw("version", 1))
	require.NoError(t, same.SetRaw("name", []byte("alice")))
	tag2, err := same.ETag()
	require.NoError(t, err)
	assert.Equal(t, tag, tag2, "equivalent values yield equal tags")

	require.NoError(t, same.SetRaw("password", "b"))
	tag3, err := same.ETag()
	require.NoError(t, err)
	assert.NotEqual(t, tag, tag3, "hidden fields are part of the tag")

	other, err := client.MustModel("Tag").FromRow(map[string]any{"id": int64(1), "name": "alice"})
	require.NoError(t, err)
	tag4, err := other.ETag()
	require.NoError(t, err)
	assert.NotEqual(t, tag, tag4)
}
