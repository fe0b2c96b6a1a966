package query

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
)

// With requests relations to be eager loaded with the results.
//
// A plain name loads the whole relation and lets belongs-to relations be
// answered from the identity map. "name:col1,col2" restricts the related
// columns and "a.b" loads b on the models loaded for a.
func (b *Builder) With(relations ...string) *Builder {
	for _, def := range relations {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		b.addEagerLoad(def)
	}
	return b
}

// WithConstraint eager loads name and applies fn to the relation query.
func (b *Builder) WithConstraint(name string, fn Constraint) *Builder {
	l := b.eagerLoad(name)
	l.constraint = fn
	b.dropNoConstraint(name)
	return b
}

func (b *Builder) addEagerLoad(def string) {
	name, rest := def, ""
	if i := strings.IndexAny(def, ".:"); i >= 0 && def[i] == '.' {
		name, rest = def[:i], def[i+1:]
	}

	if rest != "" {
		l, existed := b.findEagerLoad(name)
		if !existed {
			l = b.eagerLoad(name)
			b.noConstraint = append(b.noConstraint, name)
		}
		l.nested = append(l.nested, rest)
		return
	}

	if i := strings.Index(def, ":"); i >= 0 {
		name = def[:i]
		columns := splitColumns(def[i+1:])
		l := b.eagerLoad(name)
		l.constraint = func(q *Builder) {
			q.Select(columns...)
		}
		b.dropNoConstraint(name)
		return
	}

	b.eagerLoad(name)
	if !b.eagerLoadHasNoConstraints(name) {
		b.noConstraint = append(b.noConstraint, name)
	}
}

func splitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (b *Builder) findEagerLoad(name string) (*eagerLoad, bool) {
	for _, l := range b.eagerLoads {
		if l.name == name {
			return l, true
		}
	}
	return nil, false
}

// eagerLoad returns the entry for name, creating it when needed.
func (b *Builder) eagerLoad(name string) *eagerLoad {
	if l, ok := b.findEagerLoad(name); ok {
		return l
	}
	l := &eagerLoad{name: name}
	b.eagerLoads = append(b.eagerLoads, l)
	return l
}

func (b *Builder) eagerLoadHasNoConstraints(name string) bool {
	for _, n := range b.noConstraint {
		if n == name {
			return true
		}
	}
	return false
}

func (b *Builder) dropNoConstraint(name string) {
	out := b.noConstraint[:0]
	for _, n := range b.noConstraint {
		if n != name {
			out = append(out, n)
		}
	}
	b.noConstraint = out
}

// EagerLoads returns the requested relation names in request order.
func (b *Builder) EagerLoads() []string {
	names := make([]string, 0, len(b.eagerLoads))
	for _, l := range b.eagerLoads {
		names = append(names, l.name)
	}
	return names
}

func (b *Builder) eagerLoadRelations(ctx context.Context, parents []identity.Model) error {
	if len(parents) == 0 {
		return nil
	}
	for _, l := range b.eagerLoads {
		if err := b.eagerLoadRelation(ctx, parents, l); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) eagerLoadRelation(ctx context.Context, parents []identity.Model, l *eagerLoad) error {
	rel, err := resolveRelation(b.prototype, l.name)
	if err != nil {
		return err
	}

	q := b.Related(rel.Factory())
	q.refresh = b.refresh
	q.With(l.nested...)

	var loaded []identity.Model
	fetch := parents
	if bt, ok := rel.(*BelongsTo); ok && b.eagerLoadHasNoConstraints(l.name) && b.ShouldUseIdentityMap(ctx) {
		loaded, fetch = b.eagerLoadBelongsToIdentities(ctx, q, bt, parents)
		if len(loaded) > 0 {
			// nested loads still apply to models taken from the map
			if err := q.eagerLoadRelations(ctx, loaded); err != nil {
				return err
			}
		}
	}

	results := loaded
	if len(fetch) > 0 {
		rel.AddEagerConstraints(q, fetch)
		if l.constraint != nil {
			l.constraint(q)
		}
		fresh, err := rel.GetEager(ctx, q)
		if err != nil {
			return err
		}
		results = unionModels(fresh, loaded)
	}

	rel.InitRelation(parents, l.name)
	rel.Match(q, parents, results, l.name)
	return nil
}

// eagerLoadBelongsToIdentities splits parents into owners already mapped and
// parents whose owner must still be read. Parents with a nil foreign key are
// in neither list.
func (b *Builder) eagerLoadBelongsToIdentities(ctx context.Context, q *Builder, rel *BelongsTo, parents []identity.Model) ([]identity.Model, []identity.Model) {
	proto, aware := identity.AsEntity(q.prototype)
	if !aware {
		return nil, parents
	}

	var loaded, fetch []identity.Model
	seen := make(map[identity.Model]struct{})
	for _, p := range parents {
		fk := rel.ForeignKeyOf(p)
		if fk == nil {
			continue
		}
		if owner := b.lookup(proto.ModelIdentity(fk, q.connection())); owner != nil {
			if _, dup := seen[owner]; !dup {
				seen[owner] = struct{}{}
				loaded = append(loaded, owner)
			}
			continue
		}
		fetch = append(fetch, p)
	}

	b.env.logger.Debug("identity eager belongs-to",
		zap.String("entity", q.prototype.EntityType()),
		zap.Int("mapped", len(loaded)),
		zap.Int("fetch", len(fetch)),
	)
	return loaded, fetch
}

// unionModels concatenates a and b, dropping repeated instances.
func unionModels(a, b []identity.Model) []identity.Model {
	out := make([]identity.Model, 0, len(a)+len(b))
	seen := make(map[identity.Model]struct{}, len(a)+len(b))
	for _, list := range [][]identity.Model{a, b} {
		for _, m := range list {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Load lazily loads relation name on parent, which must be of the builder's
// entity type, and stores it on parent. A belongs-to owner already in the
// identity map is returned without a read unless a refresh is forced.
func (b *Builder) Load(ctx context.Context, parent identity.Model, name string) (any, error) {
	rel, err := resolveRelation(parent, name)
	if err != nil {
		return nil, err
	}

	q := b.Related(rel.Factory())
	if bt, ok := rel.(*BelongsTo); ok && !b.refresh && !refreshRequested(ctx) {
		if proto, aware := identity.AsEntity(q.prototype); aware {
			if fk := bt.ForeignKeyOf(parent); fk != nil {
				if owner := b.lookup(proto.ModelIdentity(fk, q.connection())); owner != nil {
					setRelation(parent, name, owner)
					return owner, nil
				}
			}
		}
	}

	result, err := rel.GetResults(ctx, q, parent)
	if err != nil {
		return nil, err
	}
	setRelation(parent, name, result)
	return result, nil
}
