package query

import (
	"fmt"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-repository-identity/identity"
)

var (
	// ErrModelNotFound is returned by Find and First when no row matches.
	ErrModelNotFound = errors.New("query: model not found", errors.CategoryNotFound).
				WithTextCode("MODEL_NOT_FOUND")

	// ErrRelationUndefined is returned when a model declares no relation by that name.
	ErrRelationUndefined = errors.New("query: relation is not defined", errors.CategoryInternal).
				WithTextCode("RELATION_UNDEFINED")

	// ErrRelationNil is returned when a relation definition returns nil,
	// which usually means a missing return statement.
	ErrRelationNil = errors.New("query: relation definition returned nil", errors.CategoryInternal).
			WithTextCode("RELATION_NIL")

	// ErrRelationInvalid is returned when a relation definition returns a
	// value that is not a Relation.
	ErrRelationInvalid = errors.New("query: relation definition must return a relation", errors.CategoryInternal).
				WithTextCode("RELATION_INVALID")

	// ErrMissingKey is returned when a write needs a primary key the model lacks.
	ErrMissingKey = errors.New("query: model has no primary key value", errors.CategoryBadInput).
			WithTextCode("MISSING_KEY")

	// ErrCollectionID is returned by Find when given several ids.
	ErrCollectionID = errors.New("query: Find expects a single id, use FindMany", errors.CategoryBadInput).
			WithTextCode("COLLECTION_ID")

	// ErrTypeMismatch is returned by the typed helpers when a model is not of the requested type.
	ErrTypeMismatch = errors.New("query: model has unexpected type", errors.CategoryInternal).
			WithTextCode("TYPE_MISMATCH")
)

func notFound(entityType string, id any) error {
	return identity.Detail(ErrModelNotFound,
		fmt.Sprintf("query: no %s with key %v", entityType, id),
		map[string]any{"entity": entityType, "id": id})
}

func relationNil(entityType, name string) error {
	return identity.Detail(ErrRelationNil,
		fmt.Sprintf(`query: %s.%s must return a relation, but nil was returned. Was the return statement used?`, entityType, name),
		map[string]any{"entity": entityType, "relation": name})
}

func relationInvalid(entityType, name string, got any) error {
	return identity.Detail(ErrRelationInvalid,
		fmt.Sprintf("query: %s.%s must return a relation, got %T", entityType, name, got),
		map[string]any{"entity": entityType, "relation": name})
}

func relationUndefined(entityType, name string) error {
	return identity.Detail(ErrRelationUndefined,
		fmt.Sprintf("query: %s has no relation %q", entityType, name),
		map[string]any{"entity": entityType, "relation": name})
}
