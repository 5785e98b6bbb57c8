package strata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
)

func TestRelations(t *testing.T) {
	f := newFixture(t)
	b := seedBlog(t, f)
	ctx := context.Background()

	t.Run("HasMany", func(t *testing.T) {
		f.resetStats()
		posts, err := b.alice.Many(ctx, "posts")
		require.NoError(t, err)
		assert.Equal(t, []any{"hello", "world"}, values(posts, "title"), "ordered by the relation order")
		assert.True(t, b.alice.Loaded("posts"))
		_, err = b.alice.Many(ctx, "posts")
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.queries(), "cached relations are not reloaded")

		posts, err = b.carol.Many(ctx, "posts")
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("HasOne", func(t *testing.T) {
		profile, err := b.alice.One(ctx, "profile")
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, "gopher", profile.Raw("bio"))

		f.resetStats()
		profile, err = b.bob.One(ctx, "profile")
		require.NoError(t, err)
		assert.Nil(t, profile)
		assert.True(t, b.bob.Loaded("profile"), "missing records are cached too")
		_, err = b.bob.One(ctx, "profile")
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.queries())
	})

	t.Run("BelongsTo", func(t *testing.T) {
		author, err := b.bye.One(ctx, "author")
		require.NoError(t, err)
		require.NotNil(t, author)
		assert.Equal(t, "bob", author.Raw("name"))

		orphan := f.create(t, f.posts, map[string]any{"title": "orphan"})
		author, err = orphan.One(ctx, "author")
		require.NoError(t, err)
		assert.Nil(t, author)
	})

	t.Run("BelongsToMany", func(t *testing.T) {
		tags, err := b.hello.Many(ctx, "tags")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"go", "sql"}, values(tags, "name"))
		for _, tag := range tags {
			pivot := tag.PivotData()
			assert.Equal(t, b.hello.Key(), pivot["post_id"])
			assert.Equal(t, tag.Key(), pivot["tag_id"])
			if tag.Raw("name") == "go" {
				assert.Equal(t, "intro", pivot["note"])
			} else {
				assert.Nil(t, pivot["note"])
			}
		}

		posts, err := b.golang.Many(ctx, "posts")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"hello", "bye"}, values(posts, "title"))
		for _, p := range posts {
			assert.Equal(t, b.golang.Key(), p.PivotData()["tag_id"])
		}
	})

	t.Run("RelationQuery", func(t *testing.T) {
		q, err := b.alice.RelationQuery("posts")
		require.NoError(t, err)
		world, err := q.WhereEq("title", "world").All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{"world"}, values(world, "title"))

		n, err := q.ClearWhere().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "the relation constraint survives ClearWhere")

		q, err = b.hello.RelationQuery("tags")
		require.NoError(t, err)
		golang, err := q.WhereEq("name", "go").FirstOrFail(ctx)
		require.NoError(t, err)
		assert.Equal(t, b.golang.Key(), golang.Key())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := b.alice.One(ctx, "posts")
		assert.True(t, strata.IsUnsupported(err))
		_, err = b.alice.Many(ctx, "profile")
		assert.True(t, strata.IsUnsupported(err))
		_, err = b.alice.Many(ctx, "friends")
		assert.True(t, strata.IsUnknownRelation(err))
		_, err = b.alice.RelationQuery("friends")
		assert.True(t, strata.IsUnknownRelation(err))
		_, err = b.alice.Pivot("posts")
		assert.True(t, strata.IsUnsupported(err))
	})
}

func TestPivot(t *testing.T) {
	f := newFixture(t)
	b := seedBlog(t, f)
	ctx := context.Background()

	tagNames := func(t *testing.T, post *strata.Record) []any {
		t.Helper()
		tags, err := post.Many(ctx, "tags")
		require.NoError(t, err)
		return values(tags, "name")
	}

	p, err := b.hello.Pivot("tags")
	require.NoError(t, err)
	require.Len(t, tagNames(t, b.hello), 2)

	n, err := p.Detach(ctx, b.sql)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.False(t, b.hello.Loaded("tags"), "pivot writes invalidate the cache")
	assert.Equal(t, []any{"go"}, tagNames(t, b.hello))

	require.NoError(t, p.Sync(ctx, b.sql.Key()))
	assert.Equal(t, []any{"sql"}, tagNames(t, b.hello))

	err = p.Attach(ctx, b.sql)
	assert.True(t, strata.IsConstraintError(err), "pivot rows are unique: %v", err)

	err = p.AttachWith(ctx, b.golang, map[string]any{"weight": 1})
	assert.True(t, strata.IsUnknownAttribute(err))

	n, err = p.Detach(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, tagNames(t, b.hello))

	draft, err := f.posts.Make(map[string]any{"title": "draft"})
	require.NoError(t, err)
	dp, err := draft.Pivot("tags")
	require.NoError(t, err)
	assert.True(t, strata.IsUnsupported(dp.Attach(ctx, b.golang)))
	_, err = dp.Detach(ctx)
	assert.True(t, strata.IsUnsupported(err))

	unsaved, err := f.tags.Make(map[string]any{"name": "new"})
	require.NoError(t, err)
	assert.True(t, strata.IsUnsupported(p.Attach(ctx, unsaved)))
}
