package query

import (
	"context"
	"reflect"

	"github.com/goliatone/go-repository-identity/identity"
)

// RelationFunc returns the relation definition for one relation name.
type RelationFunc func() any

// Relationships is implemented by models that declare relations.
type Relationships interface {
	Relations() map[string]RelationFunc
}

// RelationHolder stores loaded relation values on a model. model.Record
// implements it.
type RelationHolder interface {
	Relation(name string) (any, bool)
	SetRelation(name string, value any)
}

// Relation loads related models for one or many parents.
type Relation interface {
	// Factory builds blank instances of the related type.
	Factory() Factory
	// AddEagerConstraints restricts q to the rows related to parents.
	AddEagerConstraints(q *Builder, parents []identity.Model)
	// GetEager runs q and returns the related models.
	GetEager(ctx context.Context, q *Builder) ([]identity.Model, error)
	// InitRelation sets the empty value of name on every parent.
	InitRelation(parents []identity.Model, name string)
	// Match assigns results to the parents they belong to. q is the query
	// GetEager ran, so per-load state lives on it rather than on the relation.
	Match(q *Builder, parents []identity.Model, results []identity.Model, name string)
	// GetResults loads the relation for a single parent.
	GetResults(ctx context.Context, q *Builder, parent identity.Model) (any, error)
}

// resolveRelation looks up name on m and validates what the definition returns.
func resolveRelation(m identity.Model, name string) (Relation, error) {
	provider, ok := m.(Relationships)
	if !ok {
		return nil, relationUndefined(m.EntityType(), name)
	}
	fn, ok := provider.Relations()[name]
	if !ok || fn == nil {
		return nil, relationUndefined(m.EntityType(), name)
	}

	v := fn()
	if isNil(v) {
		return nil, relationNil(m.EntityType(), name)
	}
	rel, ok := v.(Relation)
	if !ok {
		return nil, relationInvalid(m.EntityType(), name, v)
	}
	return rel, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func setRelation(m identity.Model, name string, value any) {
	if h, ok := m.(RelationHolder); ok {
		h.SetRelation(name, value)
	}
}

// keysOf collects the distinct non-nil values of attribute from models.
func keysOf(models []identity.Model, attribute string) []any {
	seen := make(map[string]struct{}, len(models))
	keys := make([]any, 0, len(models))
	for _, m := range models {
		v, ok := m.Attribute(attribute)
		if !ok || v == nil {
			continue
		}
		sid := identity.SerializeID(v)
		if _, dup := seen[sid]; dup {
			continue
		}
		seen[sid] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// BelongsTo is an inverse one-to-one or many-to-one relation: the parent
// carries the foreign key.
type BelongsTo struct {
	related    Factory
	ForeignKey string
	OwnerKey   string
}

// NewBelongsTo creates a belongs-to relation. An empty ownerKey means the
// related type's primary key.
func NewBelongsTo(related Factory, foreignKey, ownerKey string) *BelongsTo {
	if ownerKey == "" {
		ownerKey = related().KeyName()
	}
	return &BelongsTo{related: related, ForeignKey: foreignKey, OwnerKey: ownerKey}
}

func (r *BelongsTo) Factory() Factory { return r.related }

// ForeignKeyOf returns the parent's foreign key value.
func (r *BelongsTo) ForeignKeyOf(parent identity.Model) any {
	v, _ := parent.Attribute(r.ForeignKey)
	return v
}

func (r *BelongsTo) AddEagerConstraints(q *Builder, parents []identity.Model) {
	q.WhereIn(q.qualify(r.OwnerKey), keysOf(parents, r.ForeignKey)...)
}

func (r *BelongsTo) GetEager(ctx context.Context, q *Builder) ([]identity.Model, error) {
	return q.Get(ctx)
}

func (r *BelongsTo) InitRelation(parents []identity.Model, name string) {
	for _, p := range parents {
		setRelation(p, name, nil)
	}
}

func (r *BelongsTo) Match(_ *Builder, parents []identity.Model, results []identity.Model, name string) {
	owners := make(map[string]identity.Model, len(results))
	for _, m := range results {
		if v, ok := m.Attribute(r.OwnerKey); ok && v != nil {
			owners[identity.SerializeID(v)] = m
		}
	}
	for _, p := range parents {
		fk := r.ForeignKeyOf(p)
		if fk == nil {
			continue
		}
		if owner, ok := owners[identity.SerializeID(fk)]; ok {
			setRelation(p, name, owner)
		}
	}
}

// GetResults returns the owner or nil.
func (r *BelongsTo) GetResults(ctx context.Context, q *Builder, parent identity.Model) (any, error) {
	fk := r.ForeignKeyOf(parent)
	if fk == nil {
		return nil, nil
	}
	models, err := q.WhereIn(q.qualify(r.OwnerKey), fk).Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0], nil
}

// HasMany is a one-to-many relation: the related rows carry the foreign key.
type HasMany struct {
	related    Factory
	ForeignKey string
	LocalKey   string
}

// NewHasMany creates a has-many relation. An empty localKey means the
// parent's primary key.
func NewHasMany(related Factory, foreignKey, localKey string) *HasMany {
	return &HasMany{related: related, ForeignKey: foreignKey, LocalKey: localKey}
}

func (r *HasMany) Factory() Factory { return r.related }

func (r *HasMany) localKey(parent identity.Model) string {
	if r.LocalKey != "" {
		return r.LocalKey
	}
	return parent.KeyName()
}

func (r *HasMany) AddEagerConstraints(q *Builder, parents []identity.Model) {
	if len(parents) == 0 {
		q.WhereIn(q.qualify(r.ForeignKey))
		return
	}
	q.WhereIn(q.qualify(r.ForeignKey), keysOf(parents, r.localKey(parents[0]))...)
}

func (r *HasMany) GetEager(ctx context.Context, q *Builder) ([]identity.Model, error) {
	return q.Get(ctx)
}

func (r *HasMany) InitRelation(parents []identity.Model, name string) {
	for _, p := range parents {
		setRelation(p, name, []identity.Model{})
	}
}

func (r *HasMany) Match(_ *Builder, parents []identity.Model, results []identity.Model, name string) {
	children := make(map[string][]identity.Model)
	for _, m := range results {
		if v, ok := m.Attribute(r.ForeignKey); ok && v != nil {
			sid := identity.SerializeID(v)
			children[sid] = append(children[sid], m)
		}
	}
	for _, p := range parents {
		v, ok := p.Attribute(r.localKey(p))
		if !ok || v == nil {
			continue
		}
		if list, ok := children[identity.SerializeID(v)]; ok {
			setRelation(p, name, list)
		}
	}
}

// GetResults returns the children as []identity.Model.
func (r *HasMany) GetResults(ctx context.Context, q *Builder, parent identity.Model) (any, error) {
	v, _ := parent.Attribute(r.localKey(parent))
	if v == nil {
		return []identity.Model{}, nil
	}
	return q.WhereIn(q.qualify(r.ForeignKey), v).Get(ctx)
}

// BelongsToMany is a many-to-many relation through a pivot table.
type BelongsToMany struct {
	related         Factory
	PivotTable      string
	ForeignPivotKey string
	RelatedPivotKey string
	ParentKey       string
	RelatedKey      string
}

type pivotPair struct {
	parent string
	model  identity.Model
}

// NewBelongsToMany creates a many-to-many relation. foreignPivotKey references
// the parent and relatedPivotKey the related row; both keys default to the
// primary keys of their types.
func NewBelongsToMany(related Factory, pivotTable, foreignPivotKey, relatedPivotKey string) *BelongsToMany {
	return &BelongsToMany{
		related:         related,
		PivotTable:      pivotTable,
		ForeignPivotKey: foreignPivotKey,
		RelatedPivotKey: relatedPivotKey,
		RelatedKey:      related().KeyName(),
	}
}

func (r *BelongsToMany) Factory() Factory { return r.related }

func (r *BelongsToMany) parentKey(parent identity.Model) string {
	if r.ParentKey != "" {
		return r.ParentKey
	}
	return parent.KeyName()
}

func (r *BelongsToMany) pivotAlias() string {
	return "pivot_" + r.ForeignPivotKey
}

func (r *BelongsToMany) AddEagerConstraints(q *Builder, parents []identity.Model) {
	related := q.Table()
	q.Select(related+".*", r.PivotTable+"."+r.ForeignPivotKey+" AS "+r.pivotAlias())
	q.Join("JOIN " + r.PivotTable + " ON " + r.PivotTable + "." + r.RelatedPivotKey + " = " + related + "." + r.RelatedKey)

	var keys []any
	if len(parents) > 0 {
		keys = keysOf(parents, r.parentKey(parents[0]))
	}
	q.WhereIn(r.PivotTable+"."+r.ForeignPivotKey, keys...)
}

// GetEager strips the pivot column from each row before materializing, so
// cached instances never pick up pivot data.
func (r *BelongsToMany) GetEager(ctx context.Context, q *Builder) ([]identity.Model, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}

	q.pivotPairs = q.pivotPairs[:0]
	results := make([]identity.Model, 0, len(rows))
	seen := make(map[identity.Model]struct{}, len(rows))
	for _, row := range rows {
		pv, _ := row.Get(r.pivotAlias())
		row.Delete(r.pivotAlias())
		m, err := q.materialize(row)
		if err != nil {
			return nil, err
		}
		q.pivotPairs = append(q.pivotPairs, pivotPair{parent: identity.SerializeID(pv), model: m})
		if _, dup := seen[m]; !dup {
			seen[m] = struct{}{}
			results = append(results, m)
		}
	}

	if err := q.eagerLoadRelations(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *BelongsToMany) InitRelation(parents []identity.Model, name string) {
	for _, p := range parents {
		setRelation(p, name, []identity.Model{})
	}
}

func (r *BelongsToMany) Match(q *Builder, parents []identity.Model, _ []identity.Model, name string) {
	grouped := make(map[string][]identity.Model)
	for _, pair := range q.pivotPairs {
		grouped[pair.parent] = append(grouped[pair.parent], pair.model)
	}
	for _, p := range parents {
		v, ok := p.Attribute(r.parentKey(p))
		if !ok || v == nil {
			continue
		}
		if list, ok := grouped[identity.SerializeID(v)]; ok {
			setRelation(p, name, list)
		}
	}
}

// GetResults returns the related models as []identity.Model.
func (r *BelongsToMany) GetResults(ctx context.Context, q *Builder, parent identity.Model) (any, error) {
	r.AddEagerConstraints(q, []identity.Model{parent})
	return r.GetEager(ctx, q)
}

var (
	_ Relation = (*BelongsTo)(nil)
	_ Relation = (*HasMany)(nil)
	_ Relation = (*BelongsToMany)(nil)
)
