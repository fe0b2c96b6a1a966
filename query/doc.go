// Package query intercepts primary key reads and eager loads so they are
// answered from the identity map when that is safe.
//
// # Overview
//
// A Builder is a query over one entity type. It reads rows through a
// storage.Storage and turns them into models with an identity.Materializer,
// so a row whose key is already mapped comes back as the mapped instance
// (reconciled when the row is newer). Writes go through the same builder and
// notify lifecycle observers, which keep the identity map in step.
//
// # Basic Usage
//
//	ids := identity.NewMap()
//	users := query.NewBuilder(store, ids, NewUser, query.WithLogger(logger))
//
//	u, err := users.Find(ctx, 7)          // reads storage, registers the user
//	again, err := users.Find(ctx, 7)      // same instance, no read
//	list, err := users.FindMany(ctx, []any{7, 8, 9}) // reads only 8 and 9
//
// # Eligibility
//
// Identity map shortcuts apply only when the query is a pure primary key
// lookup:
//   - no Where, OrWhere, WhereIn, Join or Having condition
//   - no opaque criteria added with Apply
//   - no Refresh on the builder and no WithRefresh on the context
//
// Any of these makes the builder read storage as usual; rows read that way
// are still materialized through the identity map.
//
// # Eager Loading
//
// With requests relations by name. Relations are declared by implementing
// Relationships:
//
//	func (p *Post) Relations() map[string]query.RelationFunc {
//		return map[string]query.RelationFunc{
//			"author":   func() any { return query.NewBelongsTo(NewUser, "author_id", "") },
//			"comments": func() any { return query.NewHasMany(NewComment, "post_id", "") },
//		}
//	}
//
//	posts, err := query.NewBuilder(store, ids, NewPost).With("author", "comments.author").Get(ctx)
//
// A belongs-to relation requested by name alone, on an eligible query, takes
// owners that are already mapped from the identity map and reads only the
// rest. "author:id,name" and WithConstraint disable that shortcut because the
// caller asked for a narrower query.
//
// # Lifecycle
//
// Create registers identity aware models under their key and Delete removes
// them. Update writes dirty attributes and leaves the map alone.
package query
