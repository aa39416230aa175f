package phv

import (
	"fmt"

	"firestige.xyz/actionengine/internal/core"
)

// FieldSpec declares one field of a header type.
type FieldSpec struct {
	Name  string
	Width int
}

// HeaderType is an ordered list of field declarations.
type HeaderType struct {
	name   string
	fields []FieldSpec
	nbits  int
}

// NewHeaderType validates and builds a header type.
func NewHeaderType(name string, fields []FieldSpec) (*HeaderType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: header type name is empty", core.ErrConfigInvalid)
	}
	seen := make(map[string]struct{}, len(fields))
	nbits := 0
	for _, f := range fields {
		if f.Width <= 0 {
			return nil, fmt.Errorf("%w: field '%s.%s' has width %d", core.ErrConfigInvalid, name, f.Name, f.Width)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: field '%s.%s'", core.ErrDuplicateDefinition, name, f.Name)
		}
		seen[f.Name] = struct{}{}
		nbits += f.Width
	}
	return &HeaderType{
		name:   name,
		fields: append([]FieldSpec(nil), fields...),
		nbits:  nbits,
	}, nil
}

// Name returns the type name.
func (t *HeaderType) Name() string { return t.name }

// Fields returns the field declarations in order.
func (t *HeaderType) Fields() []FieldSpec { return t.fields }

// ByteLength returns the on-wire length in bytes.
func (t *HeaderType) ByteLength() int { return (t.nbits + 7) / 8 }

// Field is a named Value owned by a Header.
type Field struct {
	Value
	name   string
	header *Header
}

// Name returns the qualified "header.field" name.
func (f *Field) Name() string { return f.name }

// Header returns the owning header.
func (f *Field) Header() *Header { return f.header }

// Header is an instance of a HeaderType plus a validity bit.
type Header struct {
	name     string
	htype    *HeaderType
	fields   []*Field
	byName   map[string]*Field
	valid    bool
	metadata bool
}

func newHeader(name string, t *HeaderType, metadata bool) *Header {
	h := &Header{
		name:     name,
		htype:    t,
		fields:   make([]*Field, 0, len(t.fields)),
		byName:   make(map[string]*Field, len(t.fields)),
		valid:    metadata,
		metadata: metadata,
	}
	for _, spec := range t.fields {
		f := &Field{name: name + "." + spec.Name, header: h}
		f.width = spec.Width
		h.fields = append(h.fields, f)
		h.byName[spec.Name] = f
	}
	return h
}

// Name returns the instance name, the prefix of its qualified field names.
func (h *Header) Name() string { return h.name }

// Type returns the header type the instance was built from.
func (h *Header) Type() *HeaderType { return h.htype }

// Fields returns the fields in declaration order.
func (h *Header) Fields() []*Field { return h.fields }

// IsValid reports whether the header is present in the packet.
func (h *Header) IsValid() bool { return h.valid }

// IsMetadata reports whether the header is metadata and never emitted.
func (h *Header) IsMetadata() bool { return h.metadata }

// ByteLength returns the encoded size of the header.
func (h *Header) ByteLength() int { return h.htype.ByteLength() }

// MarkValid sets the validity bit.
func (h *Header) MarkValid() { h.valid = true }

// MarkInvalid clears the validity bit.
func (h *Header) MarkInvalid() { h.valid = false }

// Field looks up a field by its unqualified name.
func (h *Header) Field(name string) (*Field, bool) {
	f, ok := h.byName[name]
	return f, ok
}

// Reset zeroes every field. Validity is unchanged.
func (h *Header) Reset() {
	for _, f := range h.fields {
		f.v.SetInt64(0)
	}
}

// CopyFrom copies src's field values and validity field by field. The two
// headers are expected to share a layout; extra fields on either side are
// left alone.
func (h *Header) CopyFrom(src *Header) {
	if h == src {
		return
	}
	n := len(h.fields)
	if len(src.fields) < n {
		n = len(src.fields)
	}
	for i := 0; i < n; i++ {
		h.fields[i].Set(&src.fields[i].Value)
	}
	h.valid = src.valid
}
