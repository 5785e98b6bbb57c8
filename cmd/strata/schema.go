package main

import (
	"strings"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/keygen"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
)

// User holds the schema definition for the User entity.
type User struct{ strata.Schema }

func (User) Config() strata.Config {
	return strata.Config{Hidden: []string{"password"}}
}

func (User) Mixin() []strata.Mixin {
	return []strata.Mixin{
		mixin.ID{Policy: keygen.ULID},
		mixin.TimeSoftDelete{},
		mixin.Version{},
	}
}

func (User) Fields() []strata.Field {
	return []strata.Field{
		field.String("username").
			Setter(func(a field.Attributes, v any) error {
				s, _ := v.(string)
				return a.SetRaw("username", strings.ToLower(strings.TrimSpace(s)))
			}),
		field.String("password").Default(""),
	}
}

func (User) Edges() []strata.Edge {
	return []strata.Edge{
		edge.HasMany("posts", Post.Type).OrderBy("title"),
	}
}

// Post holds the schema definition for the Post entity.
type Post struct{ strata.Schema }

func (Post) Mixin() []strata.Mixin {
	return []strata.Mixin{
		mixin.ID{Policy: keygen.UUID},
		mixin.Time{},
	}
}

func (Post) Fields() []strata.Field {
	return []strata.Field{
		field.String("title"),
		field.Time("published_at").Comment("Nil while drafting"),
	}
}

func (Post) Edges() []strata.Edge {
	return []strata.Edge{
		edge.BelongsTo("author", User.Type).ForeignKey("user_id"),
		edge.HasMany("comments", Comment.Type),
		edge.BelongsToMany("tags", Tag.Type).PivotColumns("created_at"),
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
	return strata.Config{KeyPolicy: keygen.Func(func() any {
		return "tag_" + time.Now().UTC().Format("20060102150405.000000000")
	})}
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

// ddl returns the statements creating the demo tables.
func ddl(dialect string) []string {
	ts := "TIMESTAMP NULL"
	switch dialect {
	case "mysql":
		ts = "DATETIME(6) NULL"
	case "sqlite":
		ts = "TIMESTAMP"
	}
	key := "VARCHAR(64) NOT NULL PRIMARY KEY"
	return []string{
		`CREATE TABLE IF NOT EXISTS users (id ` + key + `, username VARCHAR(255) NOT NULL UNIQUE, password VARCHAR(255) NOT NULL, created_at ` + ts + `, updated_at ` + ts + `, deleted_at ` + ts + `, version BIGINT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS posts (id ` + key + `, title VARCHAR(255) NOT NULL, published_at ` + ts + `, user_id VARCHAR(64) REFERENCES users(id), created_at ` + ts + `, updated_at ` + ts + `)`,
		`CREATE TABLE IF NOT EXISTS comments (id ` + key + `, body TEXT NOT NULL, post_id VARCHAR(64) REFERENCES posts(id))`,
		`CREATE TABLE IF NOT EXISTS tags (id ` + key + `, name VARCHAR(255) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS post_tag (post_id VARCHAR(64) NOT NULL REFERENCES posts(id), tag_id VARCHAR(64) NOT NULL REFERENCES tags(id), created_at ` + ts + `, PRIMARY KEY (post_id, tag_id))`,
	}
}
