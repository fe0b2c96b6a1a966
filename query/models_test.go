package query

import (
	"testing"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/model"
	"github.com/goliatone/go-repository-identity/pkg/testsupport"
)

var (
	userSchema    = model.NewSchema("User")
	postSchema    = model.NewSchema("Post")
	roleSchema    = model.NewSchema("Role")
	tagSchema     = model.NewSchema("Tag", model.WithoutTimestamps())
	sessionSchema = model.NewSchema("Session", model.WithKey("token", model.KeyUUID))
)

type testUser struct {
	model.MappedRecord
}

func newUser() identity.Model {
	return &testUser{MappedRecord: model.NewMappedRecord(userSchema)}
}

func (u *testUser) Relations() map[string]RelationFunc {
	return map[string]RelationFunc{
		"posts": func() any { return NewHasMany(newPost, "author_id", "") },
		"roles": func() any { return NewBelongsToMany(newRole, "role_user", "user_id", "role_id") },
	}
}

type testPost struct {
	model.MappedRecord
}

func newPost() identity.Model {
	return &testPost{MappedRecord: model.NewMappedRecord(postSchema)}
}

func (p *testPost) Relations() map[string]RelationFunc {
	return map[string]RelationFunc{
		"author":    func() any { return NewBelongsTo(newUser, "author_id", "") },
		"tag":       func() any { return NewBelongsTo(newTag, "tag_id", "") },
		"broken":    func() any { return nil },
		"typed_nil": func() any { var r *BelongsTo; return r },
		"invalid":   func() any { return "author" },
		"unset":     nil,
	}
}

type testRole struct {
	model.MappedRecord
}

func newRole() identity.Model {
	return &testRole{MappedRecord: model.NewMappedRecord(roleSchema)}
}

// testTag is not identity aware.
type testTag struct {
	model.Record
}

func newTag() identity.Model {
	return &testTag{Record: model.NewRecord(tagSchema)}
}

type testSession struct {
	model.MappedRecord
}

func newSession() identity.Model {
	return &testSession{MappedRecord: model.NewMappedRecord(sessionSchema)}
}

// newBlog returns a user builder over the blog fixture. Other entity types are
// reached with Related so they share the identity map.
func newBlog(t *testing.T, opts ...Option) (*testsupport.MemoryStorage, *Builder) {
	t.Helper()
	store := testsupport.NewMemoryStorage("default")
	testsupport.SeedFixture(t, store, testsupport.FixturePath("blog.json"))
	store.Seed("tags",
		identity.NewAttributes("id", 1, "label", "go"),
	)
	return store, NewBuilder(store, identity.NewMap(), newUser, opts...)
}

func attr(m identity.Model, name string) any {
	v, _ := m.Attribute(name)
	return v
}
