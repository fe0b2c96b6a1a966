package query

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/pkg/testsupport"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingObserver records lifecycle events.
type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) Created(m identity.Model) {
	o.calls = append(o.calls, "created:"+identity.SerializeID(m.Key()))
}

func (o *recordingObserver) Deleted(m identity.Model) {
	o.calls = append(o.calls, "deleted:"+identity.SerializeID(m.Key()))
}

func TestCreate_RegistersAndFindSkipsStorage(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStorage("default")
	users := NewBuilder(store, identity.NewMap(), newUser, WithClock(func() time.Time { return fixedNow }))

	u := newUser().(*testUser)
	u.Set("name", "Margaret")
	require.NoError(t, users.Create(ctx, u))

	assert.Equal(t, []string{"Insert"}, store.Calls())
	assert.Equal(t, int64(1), u.Key())
	assert.True(t, u.Exists())
	assert.Equal(t, "default", u.ConnectionName())
	assert.Equal(t, "2024-03-01 12:00:00", u.Get("created_at"))
	assert.Equal(t, "2024-03-01 12:00:00", u.Get("updated_at"))
	assert.False(t, u.IsDirty())

	found, err := users.Find(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, u, found)
	assert.Zero(t, store.SelectCount())
}

func TestDelete_EvictsFromIdentityMap(t *testing.T) {
	ctx := context.Background()
	store, users := newBlog(t)

	grace, err := users.Find(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, users.Map().Len())

	require.NoError(t, users.Delete(ctx, grace))
	assert.Zero(t, users.Map().Len())
	assert.False(t, grace.(*testUser).Exists())

	_, err = users.Find(ctx, 2)
	assert.True(t, errors.Is(err, ErrModelNotFound))
	assert.Equal(t, []string{"Select", "Delete", "Select"}, store.Calls())
}

func TestUpdate_PersistsDirtyAttributesWithoutReRegistering(t *testing.T) {
	ctx := context.Background()
	store, users := newBlog(t, WithClock(func() time.Time { return fixedNow }))
	obs := &recordingObserver{}
	users.env.observers = append(users.env.observers, obs)

	m, err := users.Find(ctx, 3)
	require.NoError(t, err)
	linus := m.(*testUser)
	linus.Set("email", "torvalds@example.com")

	require.NoError(t, users.Update(ctx, linus))
	assert.False(t, linus.IsDirty())
	assert.Equal(t, "2024-03-01 12:00:00", linus.Get("updated_at"))
	assert.Empty(t, obs.calls, "updates are not observed")

	row := store.Rows("users")[2]
	email, _ := row.Get("email")
	assert.Equal(t, "torvalds@example.com", email)

	again, err := users.Find(ctx, 3)
	require.NoError(t, err)
	assert.Same(t, linus, again)
}

func TestUpdate_NothingDirty(t *testing.T) {
	ctx := context.Background()
	store, users := newBlog(t)

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, users.Update(ctx, m))
	assert.Equal(t, []string{"Select"}, store.Calls())
}

func TestWrites_RequireKey(t *testing.T) {
	_, users := newBlog(t)
	u := newUser()

	assert.True(t, errors.Is(users.Update(context.Background(), u), ErrMissingKey))
	assert.True(t, errors.Is(users.Delete(context.Background(), u), ErrMissingKey))
}

func TestCreate_UUIDKey(t *testing.T) {
	ctx := context.Background()
	_, users := newBlog(t)
	sessions := users.Related(newSession)

	s := newSession().(*testSession)
	s.Set("user_id", 1)
	require.NoError(t, sessions.Create(ctx, s))

	token, ok := s.Key().(string)
	require.True(t, ok)
	_, err := uuid.Parse(token)
	assert.NoError(t, err)

	found, err := sessions.Find(ctx, token)
	require.NoError(t, err)
	assert.Same(t, s, found)
}

func TestCreate_NotifiesObserversInOrder(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store, users := newBlog(t, WithObservers(obs))
	tags := users.Related(newTag)

	tag := newTag()
	require.NoError(t, tags.Create(ctx, tag))
	require.NoError(t, tags.Delete(ctx, tag))

	assert.Equal(t, []string{"created:1", "deleted:1"}, obs.calls)
	assert.Zero(t, users.Map().Len(), "tags are not identity aware")
	assert.Equal(t, []string{"Insert", "Delete"}, store.Calls())
}

func TestCreate_StorageErrorSkipsObservers(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store, users := newBlog(t, WithObservers(obs))
	boom := stderrors.New("unique violation")
	store.FailWith(boom)

	err := users.Create(ctx, newUser())
	assert.Same(t, boom, err)
	assert.Empty(t, obs.calls)
	assert.Zero(t, users.Map().Len())
}
