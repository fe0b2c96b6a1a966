package identity

// fakeEntity is a minimal Entity used by the package tests.
type fakeEntity struct {
	entityType string
	connection string
	timestamps bool
	attrs      Attributes
	original   Attributes
}

func newFake(entityType string, pairs ...any) *fakeEntity {
	f := &fakeEntity{entityType: entityType, connection: "default", timestamps: true}
	f.SetRawAttributes(NewAttributes(pairs...), true)
	return f
}

func (f *fakeEntity) EntityType() string     { return f.entityType }
func (f *fakeEntity) ConnectionName() string { return f.connection }
func (f *fakeEntity) KeyName() string        { return "id" }
func (f *fakeEntity) Key() any               { v, _ := f.attrs.Get("id"); return v }
func (f *fakeEntity) UsesTimestamps() bool   { return f.timestamps }
func (f *fakeEntity) UpdatedAtColumn() string {
	return "updated_at"
}
func (f *fakeEntity) DateFormat() string { return DefaultDateFormat }
func (f *fakeEntity) Attribute(name string) (any, bool) {
	return f.attrs.Get(name)
}
func (f *fakeEntity) RawAttributes() Attributes { return f.attrs.Clone() }
func (f *fakeEntity) SetRawAttributes(attrs Attributes, sync bool) {
	f.attrs = attrs.Clone()
	if sync {
		f.original = f.attrs.Clone()
	}
}
func (f *fakeEntity) Dirty() Attributes    { return f.attrs.Diff(f.original) }
func (f *fakeEntity) Original() Attributes { return f.original.Clone() }

func (f *fakeEntity) set(name string, value any) { f.attrs.Set(name, value) }

func (f *fakeEntity) ModelIdentity(id any, connection string) Key {
	if id == nil {
		id = f.Key()
	}
	if connection == "" {
		connection = f.connection
	}
	return NewKey(f.entityType, id, connection)
}

// plainModel is a Model that does not take part in identity mapping.
type plainModel struct {
	*fakeEntity
}

// ModelIdentity shadows the embedded method, so plainModel is not an Entity.
func (plainModel) ModelIdentity() {}

func newPlain(entityType string, pairs ...any) Model {
	return plainModel{fakeEntity: newFake(entityType, pairs...)}
}

// baselessEntity hides the clean baseline, so reconciliation has to derive it.
type baselessEntity struct {
	*fakeEntity
}

// Original shadows the embedded method with a different signature.
func (baselessEntity) Original() {}

func constructFake(entityType string) ConstructFunc {
	return func(attrs Attributes, connection string) (Model, error) {
		f := newFake(entityType)
		f.connection = connection
		f.SetRawAttributes(attrs, true)
		return f, nil
	}
}
