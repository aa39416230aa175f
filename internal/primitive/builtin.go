package primitive

// RegisterBuiltins adds the standard primitives to r.
func RegisterBuiltins(r *Registry) {
	registerArith(r)
	registerHeader(r)
	registerControl(r)
	registerStateful(r)
	registerCodec(r)
	registerMisc(r)
}

// NewStandardRegistry returns a registry holding the standard primitives.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
