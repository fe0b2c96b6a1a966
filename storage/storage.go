// Package storage defines the boundary between the identity layer and the
// relational engine that actually runs queries.
//
// The query package only ever narrows the key set handed to Storage; it never
// changes what a Select means. Errors returned by implementations are
// propagated to callers unchanged.
package storage

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-repository-identity/identity"
)

// ConditionKind classifies a query condition.
type ConditionKind int

const (
	// Where is an AND-ed filter expression.
	Where ConditionKind = iota
	// OrWhere is an OR-ed filter expression.
	OrWhere
	// WhereIn restricts Column to Args.
	WhereIn
	// Join adds a join clause.
	Join
	// Having adds a HAVING expression.
	Having
)

// String returns the kind name.
func (k ConditionKind) String() string {
	switch k {
	case Where:
		return "where"
	case OrWhere:
		return "or_where"
	case WhereIn:
		return "where_in"
	case Join:
		return "join"
	case Having:
		return "having"
	}
	return "unknown"
}

// Condition is one clause of a Select. Expr uses "?" placeholders for Args;
// WhereIn conditions use Column and Args instead of Expr.
type Condition struct {
	Kind   ConditionKind
	Expr   string
	Column string
	Args   []any
}

// Select describes a read against one table.
type Select struct {
	Table      string
	Columns    []string
	Conditions []Condition
	// Criteria are opaque go-repository-bun modifiers applied last.
	Criteria []repository.SelectCriteria
	Orders   []string
	Limit    int
}

// Clone returns a copy that can be extended without touching s.
func (s *Select) Clone() *Select {
	out := *s
	out.Columns = append([]string(nil), s.Columns...)
	out.Conditions = append([]Condition(nil), s.Conditions...)
	out.Criteria = append([]repository.SelectCriteria(nil), s.Criteria...)
	out.Orders = append([]string(nil), s.Orders...)
	return &out
}

// WhereInValues returns the values of the first WhereIn condition on column.
func (s *Select) WhereInValues(column string) ([]any, bool) {
	for _, c := range s.Conditions {
		if c.Kind == WhereIn && c.Column == column {
			return c.Args, true
		}
	}
	return nil, false
}

// Storage executes reads and writes for the query layer.
type Storage interface {
	// Name is the connection name rows read through this storage belong to.
	Name() string
	// Select returns the matching rows, each as ordered attributes.
	Select(ctx context.Context, q *Select) ([]identity.Attributes, error)
	// Insert writes attrs into table and returns the value of keyName, which
	// storage generates when attrs do not carry it.
	Insert(ctx context.Context, table string, attrs identity.Attributes, keyName string) (any, error)
	// Update writes attrs to the row of table whose keyName equals id.
	Update(ctx context.Context, table, keyName string, id any, attrs identity.Attributes) error
	// Delete removes the row of table whose keyName equals id.
	Delete(ctx context.Context, table, keyName string, id any) error
}
