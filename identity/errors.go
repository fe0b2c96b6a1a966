package identity

import (
	"github.com/goliatone/go-errors"
)

var (
	// ErrUnparseableTimestamp is returned by the staleness check when an
	// updated-at value is neither a time, an epoch number nor a string in
	// the model's date format.
	ErrUnparseableTimestamp = errors.New("identity: updated-at value cannot be parsed as a timestamp", errors.CategoryBadInput).
				WithTextCode("UNPARSEABLE_TIMESTAMP")

	// ErrNilConstructor is returned when the materializer has no way to build a model.
	ErrNilConstructor = errors.New("identity: construct function is nil", errors.CategoryInternal).
				WithTextCode("NIL_CONSTRUCTOR")
)

// Detail returns a new error carrying sentinel's category and text code, with
// sentinel as its source so errors.Is keeps matching.
func Detail(sentinel *errors.Error, message string, meta map[string]any) *errors.Error {
	e := errors.New(message, sentinel.Category).WithTextCode(sentinel.TextCode)
	if len(meta) > 0 {
		e = e.WithMetadata(meta)
	}
	e.Source = sentinel
	return e
}
