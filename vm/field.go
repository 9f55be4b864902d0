package vm

// Field describes a single declared field, static or per-instance.
//
// Instance fields don't need a runtime Field record beyond what
// Class.InstVars already carries; Field exists mainly to give static
// fields (class variables and top-level library variables) a single
// addressable Value cell that reload's reconciliation can copy across a
// reload by name, independent of any particular Class pointer's
// lifetime.
type Field struct {
	Owner    *Class // nil for a library-level (non-class) static field
	Name     string
	IsStatic bool

	// StaticValue is the field's cell when IsStatic is true. Instance
	// fields ignore this; their storage lives in each Object's slots.
	StaticValue Value
}

// NewField creates a Field owned by owner.
func NewField(owner *Class, name string, isStatic bool) *Field {
	f := &Field{Owner: owner, Name: name, IsStatic: isStatic}
	if isStatic {
		f.StaticValue = Nil
	}
	return f
}

// SameDeclaration reports whether f and other describe the same static
// field for reload purposes: same name, same staticness. Ownership is
// deliberately not compared, since reconciliation calls this to match a
// field on the before-image class against a field of the same name on
// the after-image class.
func (f *Field) SameDeclaration(other *Field) bool {
	return f.Name == other.Name && f.IsStatic == other.IsStatic
}
