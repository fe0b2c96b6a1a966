package identity

import (
	stderrors "errors"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaterialize_RegistersNewEntity(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)

	model, err := m.Materialize(newFake("User"), NewAttributes("id", int64(1), "name", "Ada"), "default", constructFake("User"))
	require.NoError(t, err)

	cached, ok := ids.Get(NewKey("User", 1, "default"))
	require.True(t, ok)
	assert.Same(t, model, cached)
	assert.Same(t, ids, m.Map())
}

func TestMaterialize_ReturnsCachedInstance(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)
	proto := newFake("User")
	construct := constructFake("User")

	first, err := m.Materialize(proto, NewAttributes("id", 1, "name", "Ada"), "default", construct)
	require.NoError(t, err)

	second, err := m.Materialize(proto, NewAttributes("id", int64(1), "name", "Ada"), "default", construct)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, ids.Len())
}

func TestMaterialize_ConnectionScopesIdentity(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)
	proto := newFake("User")
	construct := constructFake("User")

	primary, err := m.Materialize(proto, NewAttributes("id", 1), "default", construct)
	require.NoError(t, err)
	replica, err := m.Materialize(proto, NewAttributes("id", 1), "replica", construct)
	require.NoError(t, err)

	assert.NotSame(t, primary, replica)
	assert.Equal(t, 2, ids.Len())
}

func TestMaterialize_SkipsMapping(t *testing.T) {
	tests := []struct {
		name  string
		proto Model
		attrs Attributes
	}{
		{name: "row without key", proto: newFake("User"), attrs: NewAttributes("name", "Ada")},
		{name: "row with nil key", proto: newFake("User"), attrs: NewAttributes("id", nil, "name", "Ada")},
		{name: "type not identity aware", proto: newPlain("Tag"), attrs: NewAttributes("id", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := NewMap()
			m := NewMaterializer(ids)
			construct := func(attrs Attributes, connection string) (Model, error) {
				return newPlain("Tag", "id", 1), nil
			}

			first, err := m.Materialize(tt.proto, tt.attrs, "default", construct)
			require.NoError(t, err)
			second, err := m.Materialize(tt.proto, tt.attrs, "default", construct)
			require.NoError(t, err)

			assert.NotSame(t, first.(plainModel).fakeEntity, second.(plainModel).fakeEntity)
			assert.Zero(t, ids.Len())
		})
	}
}

func TestMaterialize_ConstructErrors(t *testing.T) {
	m := NewMaterializer(NewMap())

	_, err := m.Materialize(newFake("User"), NewAttributes("id", 1), "default", nil)
	assert.True(t, errors.Is(err, ErrNilConstructor))

	boom := stderrors.New("boom")
	_, err = m.Materialize(newFake("User"), NewAttributes("id", 1), "default", func(Attributes, string) (Model, error) {
		return nil, boom
	})
	assert.Same(t, boom, err)
}

func TestMaterialize_ReconcilesNewerRow(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)
	proto := newFake("User")
	construct := constructFake("User")

	model, err := m.Materialize(proto, NewAttributes(
		"id", 1, "name", "Ada", "email", "old@example.com", "updated_at", "2024-01-01 10:00:00",
	), "default", construct)
	require.NoError(t, err)
	cached := model.(*fakeEntity)
	cached.set("name", "Ada (draft)")

	again, err := m.Materialize(proto, NewAttributes(
		"id", 1, "name", "Ada Lovelace", "email", "new@example.com", "updated_at", "2024-02-01 10:00:00",
	), "default", construct)
	require.NoError(t, err)
	assert.Same(t, cached, again)

	name, _ := cached.Attribute("name")
	email, _ := cached.Attribute("email")
	assert.Equal(t, "Ada (draft)", name, "unsaved edits survive")
	assert.Equal(t, "new@example.com", email, "clean attributes are refreshed")
	assert.Equal(t, []string{"name"}, cached.Dirty().Keys())

	original, _ := cached.original.Get("name")
	assert.Equal(t, "Ada Lovelace", original)
}

func TestMaterialize_KeepsCachedForStaleRow(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)
	proto := newFake("User")
	construct := constructFake("User")

	model, err := m.Materialize(proto, NewAttributes("id", 1, "email", "a@example.com", "updated_at", "2024-02-01 10:00:00"), "default", construct)
	require.NoError(t, err)

	_, err = m.Materialize(proto, NewAttributes("id", 1, "email", "stale@example.com", "updated_at", "2024-01-01 10:00:00"), "default", construct)
	require.NoError(t, err)

	email, _ := model.Attribute("email")
	assert.Equal(t, "a@example.com", email)
}

func TestMaterialize_UnparseableTimestampOnHit(t *testing.T) {
	ids := NewMap()
	m := NewMaterializer(ids)
	proto := newFake("User")
	construct := constructFake("User")

	_, err := m.Materialize(proto, NewAttributes("id", 1, "updated_at", "2024-02-01 10:00:00"), "default", construct)
	require.NoError(t, err)

	_, err = m.Materialize(proto, NewAttributes("id", 1, "updated_at", "not a date"), "default", construct)
	assert.True(t, errors.Is(err, ErrUnparseableTimestamp))
}

func TestReconcile_WithoutTimestampsAlwaysApplies(t *testing.T) {
	m := NewMaterializer(NewMap())
	cached := newFake("Tag", "id", 1, "label", "go")
	cached.timestamps = false

	changed, err := m.Reconcile(cached, NewAttributes("id", 1, "label", "golang"))
	require.NoError(t, err)
	assert.True(t, changed)

	label, _ := cached.Attribute("label")
	assert.Equal(t, "golang", label)
}

func TestMaterializer_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := NewMaterializer(NewMap(), WithLogger(zap.New(core)))
	proto := newFake("User")
	construct := constructFake("User")

	_, err := m.Materialize(proto, NewAttributes("id", 1, "updated_at", "2024-01-01 00:00:00"), "default", construct)
	require.NoError(t, err)
	_, err = m.Materialize(proto, NewAttributes("id", 1, "updated_at", "2024-01-01 00:00:00"), "default", construct)
	require.NoError(t, err)
	_, err = m.Materialize(proto, NewAttributes("id", 1, "updated_at", "2024-01-02 00:00:00"), "default", construct)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("identity registered").Len())
	assert.Equal(t, 1, logs.FilterMessage("identity kept cached attributes").Len())
	assert.Equal(t, 1, logs.FilterMessage("identity reconciled").Len())
}

func TestReconcile_PartialRowKeepsMissingColumns(t *testing.T) {
	tests := []struct {
		name         string
		cached       func() (Model, *fakeEntity)
		keepBaseline bool
	}{
		{name: "baseline exposed", cached: func() (Model, *fakeEntity) {
			f := newFake("User", "id", 1, "name", "Ada", "email", "ada@example.com", "bio", "math")
			return f, f
		}, keepBaseline: true},
		{name: "baseline derived", cached: func() (Model, *fakeEntity) {
			f := newFake("User", "id", 1, "name", "Ada", "email", "ada@example.com", "bio", "math")
			return baselessEntity{fakeEntity: f}, f
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMaterializer(NewMap())
			cached, f := tt.cached()
			f.set("bio", "poetry")

			changed, err := m.Reconcile(cached, NewAttributes("id", 1, "name", "Ada Lovelace"))
			require.NoError(t, err)
			assert.True(t, changed)

			name, _ := f.Attribute("name")
			email, _ := f.Attribute("email")
			bio, _ := f.Attribute("bio")
			assert.Equal(t, "Ada Lovelace", name)
			assert.Equal(t, "ada@example.com", email)
			assert.Equal(t, "poetry", bio)
			assert.Equal(t, []string{"bio"}, f.Dirty().Keys())

			original, _ := f.original.Get("bio")
			assert.NotEqual(t, "poetry", original, "unsaved edits never reach the baseline")
			if tt.keepBaseline {
				assert.Equal(t, "math", original)
			}
		})
	}
}
