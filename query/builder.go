package query

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/model"
	"github.com/goliatone/go-repository-identity/storage"
)

// Factory returns a blank instance of an entity type.
type Factory func() identity.Model

// Constraint narrows the query used to load a relation.
type Constraint func(q *Builder)

// Option configures a Builder.
type Option func(*env)

// WithLogger sets the logger shared by the builder and its materializer.
func WithLogger(logger *zap.Logger) Option {
	return func(e *env) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObservers adds lifecycle observers notified after Create and Delete.
// The identity map observer is always installed first.
func WithObservers(observers ...identity.Observer) Option {
	return func(e *env) {
		e.observers = append(e.observers, observers...)
	}
}

// WithClock sets the time source used for timestamps on writes.
func WithClock(now func() time.Time) Option {
	return func(e *env) {
		if now != nil {
			e.now = now
		}
	}
}

// env is shared by a builder, its clones and the builders it creates for relations.
type env struct {
	store        storage.Storage
	ids          identity.Map
	materializer *identity.Materializer
	logger       *zap.Logger
	observers    []identity.Observer
	now          func() time.Time
}

type eagerLoad struct {
	name       string
	constraint Constraint
	nested     []string
}

// Builder is a query over one entity type. Condition methods mutate the
// builder and return it; use Clone to branch.
type Builder struct {
	env       *env
	factory   Factory
	prototype identity.Model

	sel            *storage.Select
	refresh        bool
	identityMapped bool

	eagerLoads []*eagerLoad
	// eager loads requested by name only, eligible for identity shortcuts
	noConstraint []string

	// pivot rows read by the last BelongsToMany GetEager run on this builder
	pivotPairs []pivotPair
}

// NewBuilder creates a builder for the entity type built by factory, reading
// through store and sharing ids.
func NewBuilder(store storage.Storage, ids identity.Map, factory Factory, opts ...Option) *Builder {
	e := &env{
		store:  store,
		ids:    ids,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.materializer = identity.NewMaterializer(ids, identity.WithLogger(e.logger))
	e.observers = append([]identity.Observer{identity.NewMapObserver(ids, e.logger)}, e.observers...)
	return newBuilder(e, factory)
}

func newBuilder(e *env, factory Factory) *Builder {
	proto := factory()
	return &Builder{
		env:            e,
		factory:        factory,
		prototype:      proto,
		sel:            &storage.Select{Table: tableOf(proto)},
		identityMapped: identity.IsIdentityAware(proto),
	}
}

// Related returns a fresh builder for another entity type that shares this
// builder's storage, identity map, logger and observers.
func (b *Builder) Related(factory Factory) *Builder {
	return newBuilder(b.env, factory)
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	out := *b
	out.sel = b.sel.Clone()
	out.noConstraint = append([]string(nil), b.noConstraint...)
	out.pivotPairs = nil
	out.eagerLoads = make([]*eagerLoad, 0, len(b.eagerLoads))
	for _, l := range b.eagerLoads {
		cp := *l
		cp.nested = append([]string(nil), l.nested...)
		out.eagerLoads = append(out.eagerLoads, &cp)
	}
	return &out
}

// Prototype returns the blank instance describing the builder's entity type.
func (b *Builder) Prototype() identity.Model { return b.prototype }

// Table returns the table the builder reads from.
func (b *Builder) Table() string { return b.sel.Table }

// Map returns the identity map shared by the builder.
func (b *Builder) Map() identity.Map { return b.env.ids }

// Storage returns the storage the builder reads through.
func (b *Builder) Storage() storage.Storage { return b.env.store }

// SelectQuery returns a copy of the select the builder would run.
func (b *Builder) SelectQuery() *storage.Select { return b.sel.Clone() }

// Where adds an AND-ed filter expression with "?" placeholders.
func (b *Builder) Where(expr string, args ...any) *Builder {
	return b.addCondition(storage.Condition{Kind: storage.Where, Expr: expr, Args: args})
}

// OrWhere adds an OR-ed filter expression.
func (b *Builder) OrWhere(expr string, args ...any) *Builder {
	return b.addCondition(storage.Condition{Kind: storage.OrWhere, Expr: expr, Args: args})
}

// WhereIn restricts column to values. An empty value list matches nothing.
func (b *Builder) WhereIn(column string, values ...any) *Builder {
	return b.addCondition(storage.Condition{Kind: storage.WhereIn, Column: column, Args: values})
}

// Join adds a join clause, e.g. "JOIN teams AS t ON t.id = users.team_id".
func (b *Builder) Join(expr string, args ...any) *Builder {
	return b.addCondition(storage.Condition{Kind: storage.Join, Expr: expr, Args: args})
}

// Having adds a HAVING expression.
func (b *Builder) Having(expr string, args ...any) *Builder {
	return b.addCondition(storage.Condition{Kind: storage.Having, Expr: expr, Args: args})
}

// Apply adds go-repository-bun criteria. They are opaque to the builder and
// disable identity map shortcuts like any other filter.
func (b *Builder) Apply(criteria ...repository.SelectCriteria) *Builder {
	b.sel.Criteria = append(b.sel.Criteria, criteria...)
	return b
}

// Select restricts the columns read.
func (b *Builder) Select(columns ...string) *Builder {
	b.sel.Columns = append(b.sel.Columns, columns...)
	return b
}

// OrderBy adds order expressions, e.g. "created_at DESC".
func (b *Builder) OrderBy(orders ...string) *Builder {
	b.sel.Orders = append(b.sel.Orders, orders...)
	return b
}

// Limit caps the number of rows read.
func (b *Builder) Limit(n int) *Builder {
	b.sel.Limit = n
	return b
}

// Refresh forces reads from storage for this query.
func (b *Builder) Refresh() *Builder {
	b.refresh = true
	return b
}

// UseIdentityMap clears a forced refresh.
func (b *Builder) UseIdentityMap() *Builder {
	b.refresh = false
	return b
}

func (b *Builder) addCondition(c storage.Condition) *Builder {
	b.sel.Conditions = append(b.sel.Conditions, c)
	return b
}

// ShouldUseIdentityMap reports whether identity map shortcuts may answer this
// query: no forced refresh on the builder or ctx, and no filter, join,
// having clause or opaque criteria.
func (b *Builder) ShouldUseIdentityMap(ctx context.Context) bool {
	if b.refresh || refreshRequested(ctx) {
		return false
	}
	return len(b.sel.Conditions) == 0 && len(b.sel.Criteria) == 0
}

// IdentityMapped reports whether the builder's entity type is identity aware.
func (b *Builder) IdentityMapped() bool { return b.identityMapped }

func (b *Builder) connection() string {
	if name := b.env.store.Name(); name != "" {
		return name
	}
	return b.prototype.ConnectionName()
}

// identifyModel returns the mapped entity for id when the gate allows it.
func (b *Builder) identifyModel(ctx context.Context, id any) identity.Model {
	if !b.identityMapped || !b.ShouldUseIdentityMap(ctx) {
		return nil
	}
	proto, _ := identity.AsEntity(b.prototype)
	if key, ok := id.(identity.Key); ok {
		return b.lookup(key)
	}
	return b.lookup(proto.ModelIdentity(id, b.connection()))
}

func (b *Builder) lookup(key identity.Key) identity.Model {
	if entity, ok := b.env.ids.Get(key); ok {
		return entity
	}
	return nil
}

// qualify prefixes column with the builder's table.
func (b *Builder) qualify(column string) string {
	if strings.Contains(column, ".") || b.sel.Table == "" {
		return column
	}
	return b.sel.Table + "." + column
}

// whereKey returns a clone restricted to the given primary keys.
func (b *Builder) whereKey(ids []any) *Builder {
	return b.Clone().WhereIn(b.qualify(b.prototype.KeyName()), ids...)
}

// Rows runs the select and returns the raw rows.
func (b *Builder) Rows(ctx context.Context) ([]identity.Attributes, error) {
	if b.matchesNothing() {
		return nil, nil
	}
	return b.env.store.Select(ctx, b.sel)
}

func (b *Builder) matchesNothing() bool {
	for _, c := range b.sel.Conditions {
		if c.Kind == storage.WhereIn && len(c.Args) == 0 {
			return true
		}
	}
	return false
}

// Get runs the query and returns materialized models with eager loads applied.
func (b *Builder) Get(ctx context.Context) ([]identity.Model, error) {
	models, err := b.getModels(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.eagerLoadRelations(ctx, models); err != nil {
		return nil, err
	}
	return models, nil
}

// First returns the first model, or ErrModelNotFound.
func (b *Builder) First(ctx context.Context) (identity.Model, error) {
	models, err := b.Clone().Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, notFound(b.prototype.EntityType(), nil)
	}
	return models[0], nil
}

func (b *Builder) getModels(ctx context.Context) ([]identity.Model, error) {
	rows, err := b.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return b.materializeRows(rows)
}

func (b *Builder) materializeRows(rows []identity.Attributes) ([]identity.Model, error) {
	models := make([]identity.Model, 0, len(rows))
	for _, row := range rows {
		m, err := b.materialize(row)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func (b *Builder) materialize(row identity.Attributes) (identity.Model, error) {
	return b.env.materializer.Materialize(b.prototype, row, b.connection(), b.construct)
}

type hydrator interface {
	Hydrate(attrs identity.Attributes, connection string)
}

func (b *Builder) construct(attrs identity.Attributes, connection string) (identity.Model, error) {
	m := b.factory()
	if h, ok := m.(hydrator); ok {
		h.Hydrate(attrs, connection)
		return m, nil
	}
	m.SetRawAttributes(attrs, true)
	return m, nil
}

type tabler interface {
	Table() string
}

func tableOf(m identity.Model) string {
	if t, ok := m.(tabler); ok && t.Table() != "" {
		return t.Table()
	}
	return model.TableName(m.EntityType())
}
