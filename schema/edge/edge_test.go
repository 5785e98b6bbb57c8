package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/strata/schema/edge"
)

// Test schema types for edge testing.
type (
	User struct{}
	Post struct{}
	Tag  struct{}
)

func (User) Type() {}
func (Post) Type() {}
func (Tag) Type()  {}

func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name:  "has_many",
			build: func() *edge.Descriptor { return edge.HasMany("posts", Post.Type).Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "posts", desc.Name)
				assert.Equal(t, "Post", desc.Type)
				assert.Equal(t, edge.O2M, desc.Rel)
				assert.Empty(t, desc.ForeignKey)
				assert.NoError(t, desc.Err)
			},
		},
		{
			name: "has_one_ordered",
			build: func() *edge.Descriptor {
				return edge.HasOne("latest", Post.Type).OrderByDesc("created_at").OrderBy("id").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.O2O, desc.Rel)
				assert.Equal(t, []edge.Order{{Column: "created_at", Desc: true}, {Column: "id"}}, desc.Order)
			},
		},
		{
			name: "belongs_to_by_name",
			build: func() *edge.Descriptor {
				return edge.BelongsTo("author", "User").ForeignKey("author_id").OwnerKey("uuid").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "User", desc.Type)
				assert.Equal(t, edge.M2O, desc.Rel)
				assert.Equal(t, "author_id", desc.ForeignKey)
				assert.Equal(t, "uuid", desc.OwnerKey)
			},
		},
		{
			name: "belongs_to_many",
			build: func() *edge.Descriptor {
				return edge.BelongsToMany("tags", Tag.Type).
					Through("taggings").
					PivotKeys("post_id", "tag_id").
					PivotColumns("weight").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.M2M, desc.Rel)
				assert.Equal(t, "taggings", desc.Through)
				assert.Equal(t, []string{"post_id", "tag_id"}, desc.PivotKeys)
				assert.Equal(t, []string{"weight"}, desc.PivotCols)
				assert.NoError(t, desc.Err)
			},
		},
		{
			name:  "pointer_receiver_type",
			build: func() *edge.Descriptor { return edge.HasMany("users", (*User).Type).Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "User", desc.Type)
			},
		},
		{
			name:  "pivot_on_has_many",
			build: func() *edge.Descriptor { return edge.HasMany("posts", Post.Type).Through("x").Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
		{
			name:  "invalid_type",
			build: func() *edge.Descriptor { return edge.HasMany("posts", 1).Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
		{
			name:  "empty_name",
			build: func() *edge.Descriptor { return edge.HasMany("", "Post").Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestRel(t *testing.T) {
	assert.Equal(t, "M2M", edge.M2M.String())
	assert.Equal(t, "Unknown", edge.Unk.String())
	assert.True(t, edge.O2O.Unique())
	assert.True(t, edge.M2O.Unique())
	assert.False(t, edge.O2M.Unique())
}
