package identity

import (
	"go.uber.org/zap"
)

// Observer receives persistence lifecycle events.
type Observer interface {
	Created(model Model)
	Deleted(model Model)
}

// MapObserver keeps the identity map in step with persistence: created
// entities are registered and deleted ones removed. Updates are not observed.
type MapObserver struct {
	ids    Map
	logger *zap.Logger
}

// NewMapObserver creates an observer bound to ids. A nil logger disables logging.
func NewMapObserver(ids Map, logger *zap.Logger) *MapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MapObserver{ids: ids, logger: logger}
}

// Created registers model when it is identity aware.
func (o *MapObserver) Created(model Model) {
	entity, ok := AsEntity(model)
	if !ok {
		return
	}
	key := entity.ModelIdentity(nil, "")
	o.ids.Put(key, entity)
	o.logger.Debug("identity stored on create", zap.Stringer("key", key))
}

// Deleted removes model when it is identity aware.
func (o *MapObserver) Deleted(model Model) {
	entity, ok := AsEntity(model)
	if !ok {
		return
	}
	key := entity.ModelIdentity(nil, "")
	o.ids.Remove(key)
	o.logger.Debug("identity removed on delete", zap.Stringer("key", key))
}
