package testsupport

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/storage"
)

// ErrUnsupportedCondition is returned by MemoryStorage for conditions it
// cannot evaluate.
var ErrUnsupportedCondition = errors.New("testsupport: condition not supported by memory storage", errors.CategoryBadInput).
	WithTextCode("UNSUPPORTED_CONDITION")

// MemoryStorage is an in-memory storage.Storage that records every call.
//
// It evaluates WhereIn conditions and Where conditions of the form
// "column = ?". Opaque criteria are recorded but not applied. Values are
// compared the way identity keys are, so int 7 matches int64 7.
type MemoryStorage struct {
	mu      sync.Mutex
	name    string
	tables  map[string][]identity.Attributes
	nextID  map[string]int64
	calls   []string
	selects []*storage.Select
	failErr error
}

// NewMemoryStorage creates an empty storage for connection name.
func NewMemoryStorage(name string) *MemoryStorage {
	return &MemoryStorage{
		name:   name,
		tables: make(map[string][]identity.Attributes),
		nextID: make(map[string]int64),
	}
}

func (s *MemoryStorage) Name() string { return s.name }

// Seed appends rows to table without recording a call.
func (s *MemoryStorage) Seed(table string, rows ...identity.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], row.Clone())
	}
}

// Touch changes a stored row in place without recording a call, the way a
// concurrent writer would.
func (s *MemoryStorage) Touch(table, keyName string, id any, attrs identity.Attributes) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(table, keyName, id)
	if i < 0 {
		return false
	}
	s.tables[table][i] = s.tables[table][i].Merge(attrs)
	return true
}

// Rows returns copies of the stored rows of table.
func (s *MemoryStorage) Rows(table string) []identity.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.tables[table])
}

// FailWith makes every following call return err until cleared with nil.
func (s *MemoryStorage) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Calls returns the recorded method names in call order.
func (s *MemoryStorage) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Selects returns copies of the recorded selects.
func (s *MemoryStorage) Selects() []*storage.Select {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*storage.Select, 0, len(s.selects))
	for _, q := range s.selects {
		out = append(out, q.Clone())
	}
	return out
}

// SelectCount returns the number of recorded selects.
func (s *MemoryStorage) SelectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selects)
}

// ResetCalls forgets recorded calls.
func (s *MemoryStorage) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.selects = nil
}

func (s *MemoryStorage) recordCall(method string) error {
	s.calls = append(s.calls, method)
	return s.failErr
}

func (s *MemoryStorage) Select(_ context.Context, q *storage.Select) ([]identity.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects = append(s.selects, q.Clone())
	if err := s.recordCall("Select"); err != nil {
		return nil, err
	}

	var out []identity.Attributes
	for _, row := range s.tables[q.Table] {
		ok, err := matches(q, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, project(row, q.Columns))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStorage) Insert(_ context.Context, table string, attrs identity.Attributes, keyName string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordCall("Insert"); err != nil {
		return nil, err
	}

	row := attrs.Clone()
	id, _ := row.Get(keyName)
	if id == nil {
		s.nextID[table]++
		id = s.nextID[table]
		row.Set(keyName, id)
	}
	s.tables[table] = append(s.tables[table], row)
	return id, nil
}

func (s *MemoryStorage) Update(_ context.Context, table, keyName string, id any, attrs identity.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordCall("Update"); err != nil {
		return err
	}
	if i := s.indexOf(table, keyName, id); i >= 0 {
		s.tables[table][i] = s.tables[table][i].Merge(attrs)
	}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, table, keyName string, id any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordCall("Delete"); err != nil {
		return err
	}
	if i := s.indexOf(table, keyName, id); i >= 0 {
		rows := s.tables[table]
		s.tables[table] = append(rows[:i:i], rows[i+1:]...)
	}
	return nil
}

func (s *MemoryStorage) indexOf(table, keyName string, id any) int {
	want := identity.SerializeID(id)
	for i, row := range s.tables[table] {
		if v, ok := row.Get(keyName); ok && identity.SerializeID(v) == want {
			return i
		}
	}
	return -1
}

func matches(q *storage.Select, row identity.Attributes) (bool, error) {
	for _, c := range q.Conditions {
		switch c.Kind {
		case storage.WhereIn:
			v, _ := row.Get(unqualify(c.Column))
			if !containsValue(c.Args, v) {
				return false, nil
			}
		case storage.Where:
			fields := strings.Fields(c.Expr)
			if len(fields) != 3 || fields[1] != "=" || fields[2] != "?" || len(c.Args) != 1 {
				return false, ErrUnsupportedCondition
			}
			v, _ := row.Get(unqualify(fields[0]))
			if !containsValue(c.Args, v) {
				return false, nil
			}
		default:
			return false, ErrUnsupportedCondition
		}
	}
	return true, nil
}

func containsValue(values []any, v any) bool {
	if v == nil {
		return false
	}
	sv := identity.SerializeID(v)
	for _, candidate := range values {
		if identity.SerializeID(candidate) == sv {
			return true
		}
	}
	return false
}

func project(row identity.Attributes, columns []string) identity.Attributes {
	if len(columns) == 0 {
		return row.Clone()
	}
	out := identity.NewAttributes()
	for _, col := range columns {
		col = unqualify(col)
		if col == "*" {
			return row.Clone()
		}
		if v, ok := row.Get(col); ok {
			out.Set(col, v)
		}
	}
	return out
}

func unqualify(column string) string {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[i+1:]
	}
	return column
}

func cloneRows(rows []identity.Attributes) []identity.Attributes {
	out := make([]identity.Attributes, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Clone())
	}
	return out
}

var _ storage.Storage = (*MemoryStorage)(nil)
