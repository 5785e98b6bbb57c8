package strata_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/keygen"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
)

// User holds the schema definition for the User entity.
type User struct{ strata.Schema }

func (User) Mixin() []strata.Mixin {
	return []strata.Mixin{
		mixin.TimeSoftDelete{},
		mixin.Version{},
	}
}

func (User) Fields() []strata.Field {
	return []strata.Field{
		field.String("name"),
		field.String("email").
			Setter(func(a field.Attributes, v any) error {
				s, _ := v.(string)
				return a.SetRaw("email", strings.ToLower(strings.TrimSpace(s)))
			}),
		field.String("password").Default("").Hidden(),
		field.String("display_name").
			Getter(func(a field.Attributes) any {
				return fmt.Sprintf("%v <%v>", a.Raw("name"), a.Raw("email"))
			}),
	}
}

func (User) Edges() []strata.Edge {
	return []strata.Edge{
		edge.HasMany("posts", Post.Type).OrderBy("title"),
		edge.HasOne("profile", Profile.Type),
	}
}

// Profile holds the schema definition for the Profile entity.
type Profile struct{ strata.Schema }

func (Profile) Fields() []strata.Field {
	return []strata.Field{
		field.Text("bio"),
	}
}

func (Profile) Edges() []strata.Edge {
	return []strata.Edge{
		edge.BelongsTo("user", User.Type),
	}
}

// Post holds the schema definition for the Post entity.
type Post struct{ strata.Schema }

func (Post) Mixin() []strata.Mixin {
	return []strata.Mixin{
		mixin.Time{},
	}
}

func (Post) Fields() []strata.Field {
	return []strata.Field{
		field.String("title"),
		field.Int("views").Default(int64(0)),
	}
}

func (Post) Edges() []strata.Edge {
	return []strata.Edge{
		edge.BelongsTo("author", User.Type).ForeignKey("user_id"),
		edge.HasMany("comments", Comment.Type),
		edge.BelongsToMany("tags", Tag.Type).PivotColumns("note"),
	}
}

// Comment holds the schema definition for the Comment entity.
type Comment struct{ strata.Schema }

func (Comment) Config() strata.Config {
	return strata.Config{KeyPolicy: keygen.NanoID}
}

func (Comment) Fields() []strata.Field {
	return []strata.Field{
		field.Text("body"),
	}
}

func (Comment) Edges() []strata.Edge {
	return []strata.Edge{
		edge.BelongsTo("post", Post.Type),
	}
}

// Tag holds the schema definition for the Tag entity.
type Tag struct{ strata.Schema }

func (Tag) Config() strata.Config {
	return strata.Config{KeyPolicy: keygen.UUID}
}

func (Tag) Fields() []strata.Field {
	return []strata.Field{
		field.String("name"),
	}
}

func (Tag) Edges() []strata.Edge {
	return []strata.Edge{
		edge.BelongsToMany("posts", Post.Type),
	}
}

var testSchemas = []strata.Interface{User{}, Profile{}, Post{}, Comment{}, Tag{}}

var testDDL = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, email TEXT UNIQUE, password TEXT NOT NULL DEFAULT '', created_at DATETIME, updated_at DATETIME, deleted_at DATETIME, version INTEGER)`,
	`CREATE TABLE profiles (id INTEGER PRIMARY KEY AUTOINCREMENT, bio TEXT, user_id INTEGER REFERENCES users(id))`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, views INTEGER NOT NULL DEFAULT 0, user_id INTEGER REFERENCES users(id), created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE comments (id TEXT PRIMARY KEY, body TEXT, post_id INTEGER REFERENCES posts(id))`,
	`CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT)`,
	`CREATE TABLE post_tag (post_id INTEGER NOT NULL REFERENCES posts(id), tag_id TEXT NOT NULL REFERENCES tags(id), note TEXT, PRIMARY KEY (post_id, tag_id))`,
}

// testNow is the clock of every fixture client.
var testNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// fixture is a client over a fresh SQLite database.
type fixture struct {
	*strata.Client
	stats    *sql.StatsDriver
	users    *strata.ModelClient
	profiles *strata.ModelClient
	posts    *strata.ModelClient
	comments *strata.ModelClient
	tags     *strata.ModelClient
}

func newFixture(t *testing.T, opts ...strata.Option) *fixture {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "strata.db") +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	drv, err := sql.Open(dialect.SQLite, dsn)
	require.NoError(t, err)
	for _, stmt := range testDDL {
		require.NoError(t, drv.Exec(context.Background(), stmt, []any{}, nil))
	}
	stats := sql.NewStatsDriver(drv)
	opts = append([]strata.Option{
		strata.WithSchemas(testSchemas...),
		strata.WithClock(func() time.Time { return testNow }),
		strata.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	client, err := strata.NewClient(stats, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &fixture{
		Client:   client,
		stats:    stats,
		users:    client.MustModel("User"),
		profiles: client.MustModel("Profile"),
		posts:    client.MustModel("Post"),
		comments: client.MustModel("Comment"),
		tags:     client.MustModel("Tag"),
	}
}

// queries returns the number of select statements run since the last reset.
func (f *fixture) queries() int64 {
	return f.stats.QueryStats().Stats().TotalQueries
}

func (f *fixture) resetStats() {
	f.stats.QueryStats().Reset()
}

func (f *fixture) create(t *testing.T, mc *strata.ModelClient, attrs map[string]any) *strata.Record {
	t.Helper()
	r, err := mc.Create(context.Background(), attrs)
	require.NoError(t, err)
	return r
}

// blog is a seeded data set: three users, the first two with posts, the
// posts with comments and tags.
type blog struct {
	alice, bob, carol *strata.Record
	hello, world, bye *strata.Record
	golang, sql       *strata.Record
}

func seedBlog(t *testing.T, f *fixture) *blog {
	t.Helper()
	ctx := context.Background()
	b := &blog{
		alice: f.create(t, f.users, map[string]any{"name": "alice", "email": "alice@example.com"}),
		bob:   f.create(t, f.users, map[string]any{"name": "bob", "email": "bob@example.com"}),
		carol: f.create(t, f.users, map[string]any{"name": "carol", "email": "carol@example.com"}),
	}
	f.create(t, f.profiles, map[string]any{"bio": "gopher", "user_id": b.alice.Key()})
	b.world = f.create(t, f.posts, map[string]any{"title": "world", "views": 10, "user_id": b.alice.Key()})
	b.hello = f.create(t, f.posts, map[string]any{"title": "hello", "views": 5, "user_id": b.alice.Key()})
	b.bye = f.create(t, f.posts, map[string]any{"title": "bye", "views": 1, "user_id": b.bob.Key()})
	f.create(t, f.comments, map[string]any{"body": "first", "post_id": b.hello.Key()})
	f.create(t, f.comments, map[string]any{"body": "second", "post_id": b.hello.Key()})
	f.create(t, f.comments, map[string]any{"body": "third", "post_id": b.bye.Key()})
	b.golang = f.create(t, f.tags, map[string]any{"name": "go"})
	b.sql = f.create(t, f.tags, map[string]any{"name": "sql"})
	p, err := b.hello.Pivot("tags")
	require.NoError(t, err)
	require.NoError(t, p.AttachWith(ctx, b.golang, map[string]any{"note": "intro"}))
	require.NoError(t, p.Attach(ctx, b.sql))
	p, err = b.bye.Pivot("tags")
	require.NoError(t, err)
	require.NoError(t, p.Attach(ctx, b.golang.Key()))
	return b
}

// mockClient returns a client over sqlmock matching statements exactly.
func mockClient(t *testing.T, opts ...strata.Option) (*strata.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	opts = append([]strata.Option{
		strata.WithSchemas(testSchemas...),
		strata.WithClock(func() time.Time { return testNow }),
	}, opts...)
	client, err := strata.NewClient(sql.OpenDB(dialect.SQLite, db), opts...)
	require.NoError(t, err)
	return client, mock
}

func keys(records []*strata.Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Key()
	}
	return out
}

func values(records []*strata.Record, name string) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Raw(name)
	}
	return out
}
