package crdt

// Entity is a record of named fields, each independently replicated as
// a Singleton or a Collection. It is the CRDT behind the backing store
// of a reference-mode handle (spec.md §4.C): one Entity per referenced
// id, schema-shaped by the handle's Schema.
type Entity struct {
	fields map[string]Model
}

// NewEntity builds an Entity from a field layout. Callers typically
// derive the layout once from a Schema and reuse it for every instance
// of that type.
func NewEntity(fields map[string]Model) *Entity {
	out := make(map[string]Model, len(fields))
	for name, m := range fields {
		out[name] = m
	}
	return &Entity{fields: out}
}

// Field returns the named field's model, or nil if the entity has no
// such field.
func (e *Entity) Field(name string) Model {
	return e.fields[name]
}

// ApplyOperation implements Model, routing to the field named by
// op.Field.
func (e *Entity) ApplyOperation(op Operation) (bool, error) {
	field, ok := e.fields[op.Field]
	if !ok {
		return false, newSchemaViolation("entity: no field %q", op.Field)
	}
	return field.ApplyOperation(op)
}

// Merge implements Model, merging field by field.
func (e *Entity) Merge(other Model) (*Delta, error) {
	o, ok := other.(*Entity)
	if !ok {
		return nil, newSchemaViolation("entity: cannot merge with %T", other)
	}

	delta := &Delta{}
	for name, field := range e.fields {
		otherField, ok := o.fields[name]
		if !ok {
			return nil, newSchemaViolation("entity: remote missing field %q", name)
		}
		fd, err := field.Merge(otherField)
		if err != nil {
			return nil, err
		}
		for i := range fd.ModelChange {
			fd.ModelChange[i].Field = name
		}
		for i := range fd.OtherChange {
			fd.OtherChange[i].Field = name
		}
		delta.ModelChange = append(delta.ModelChange, fd.ModelChange...)
		delta.OtherChange = append(delta.OtherChange, fd.OtherChange...)
	}
	return delta, nil
}

// GetData implements Model.
func (e *Entity) GetData() interface{} {
	out := make(map[string]interface{}, len(e.fields))
	for name, field := range e.fields {
		out[name] = field.GetData()
	}
	return out
}

// GetParticleView implements Model: a plain map of field name to each
// field's own particle-visible projection.
func (e *Entity) GetParticleView() interface{} {
	out := make(map[string]interface{}, len(e.fields))
	for name, field := range e.fields {
		out[name] = field.GetParticleView()
	}
	return out
}

// Clone implements Model.
func (e *Entity) Clone() Model {
	out := make(map[string]Model, len(e.fields))
	for name, field := range e.fields {
		out[name] = field.Clone()
	}
	return &Entity{fields: out}
}
