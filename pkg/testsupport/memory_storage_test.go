package testsupport

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/storage"
)

func seededStore() *MemoryStorage {
	s := NewMemoryStorage("default")
	s.Seed("users",
		identity.NewAttributes("id", int64(1), "name", "Ada", "active", true),
		identity.NewAttributes("id", int64(2), "name", "Grace", "active", false),
		identity.NewAttributes("id", int64(3), "name", "Linus", "active", true),
	)
	return s
}

func TestMemoryStorage_Select(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		sel     *storage.Select
		wantIDs []string
	}{
		{
			name:    "all rows",
			sel:     &storage.Select{Table: "users"},
			wantIDs: []string{"1", "2", "3"},
		},
		{
			name: "where in matches across int widths",
			sel: &storage.Select{Table: "users", Conditions: []storage.Condition{
				{Kind: storage.WhereIn, Column: "users.id", Args: []any{3, 1}},
			}},
			wantIDs: []string{"1", "3"},
		},
		{
			name: "empty where in",
			sel: &storage.Select{Table: "users", Conditions: []storage.Condition{
				{Kind: storage.WhereIn, Column: "id"},
			}},
			wantIDs: nil,
		},
		{
			name: "where equals",
			sel: &storage.Select{Table: "users", Conditions: []storage.Condition{
				{Kind: storage.Where, Expr: "active = ?", Args: []any{true}},
			}},
			wantIDs: []string{"1", "3"},
		},
		{
			name:    "limit",
			sel:     &storage.Select{Table: "users", Limit: 2},
			wantIDs: []string{"1", "2"},
		},
		{
			name:    "unknown table",
			sel:     &storage.Select{Table: "teams"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore()
			rows, err := s.Select(ctx, tt.sel)
			require.NoError(t, err)

			var ids []string
			for _, row := range rows {
				id, _ := row.Get("id")
				ids = append(ids, identity.SerializeID(id))
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, 1, s.SelectCount())
		})
	}
}

func TestMemoryStorage_SelectProjectsColumns(t *testing.T) {
	s := seededStore()
	rows, err := s.Select(context.Background(), &storage.Select{Table: "users", Columns: []string{"users.id", "name"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "name"}, rows[0].Keys())
}

func TestMemoryStorage_UnsupportedCondition(t *testing.T) {
	s := seededStore()
	_, err := s.Select(context.Background(), &storage.Select{Table: "users", Conditions: []storage.Condition{
		{Kind: storage.Join, Expr: "JOIN teams ON teams.id = users.team_id"},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedCondition))
}

func TestMemoryStorage_SelectReturnsCopies(t *testing.T) {
	s := seededStore()
	rows, err := s.Select(context.Background(), &storage.Select{Table: "users", Limit: 1})
	require.NoError(t, err)
	rows[0].Set("name", "Changed")

	name, _ := s.Rows("users")[0].Get("name")
	assert.Equal(t, "Ada", name)
}

func TestMemoryStorage_Writes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("default")

	id, err := s.Insert(ctx, "users", identity.NewAttributes("name", "Ada"), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = s.Insert(ctx, "users", identity.NewAttributes("id", "u-9", "name", "Grace"), "id")
	require.NoError(t, err)
	assert.Equal(t, "u-9", id)

	require.NoError(t, s.Update(ctx, "users", "id", 1, identity.NewAttributes("name", "Ada L.")))
	name, _ := s.Rows("users")[0].Get("name")
	assert.Equal(t, "Ada L.", name)

	require.NoError(t, s.Delete(ctx, "users", "id", "u-9"))
	assert.Len(t, s.Rows("users"), 1)

	assert.Equal(t, []string{"Insert", "Insert", "Update", "Delete"}, s.Calls())
}

func TestMemoryStorage_Touch(t *testing.T) {
	s := seededStore()
	assert.True(t, s.Touch("users", "id", 2, identity.NewAttributes("name", "Grace H.")))
	assert.False(t, s.Touch("users", "id", 99, identity.NewAttributes("name", "nobody")))
	assert.Empty(t, s.Calls())

	name, _ := s.Rows("users")[1].Get("name")
	assert.Equal(t, "Grace H.", name)
}

func TestMemoryStorage_FailWith(t *testing.T) {
	boom := stderrors.New("boom")
	s := seededStore()
	s.FailWith(boom)

	_, err := s.Select(context.Background(), &storage.Select{Table: "users"})
	assert.Same(t, boom, err)

	s.FailWith(nil)
	s.ResetCalls()
	_, err = s.Select(context.Background(), &storage.Select{Table: "users"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Select"}, s.Calls())
}
