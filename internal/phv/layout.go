package phv

import (
	"fmt"
	"sort"

	"firestige.xyz/actionengine/internal/core"
)

type headerDecl struct {
	name     string
	htype    *HeaderType
	metadata bool
}

// Layout describes the header instances of a pipeline and builds a fresh
// PHV for every packet.
type Layout struct {
	types   map[string]*HeaderType
	headers []headerDecl
	byName  map[string]int
	fields  map[string]int // qualified name -> width
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{
		types:  make(map[string]*HeaderType),
		byName: make(map[string]int),
		fields: make(map[string]int),
	}
}

// AddType registers a header type.
func (l *Layout) AddType(t *HeaderType) error {
	if _, exists := l.types[t.name]; exists {
		return fmt.Errorf("%w: header type '%s'", core.ErrDuplicateDefinition, t.name)
	}
	l.types[t.name] = t
	return nil
}

// AddHeader declares a header instance of a registered type. Metadata
// headers are always valid.
func (l *Layout) AddHeader(name, typeName string, metadata bool) error {
	t, ok := l.types[typeName]
	if !ok {
		return fmt.Errorf("%w: header '%s' uses unknown type '%s'", core.ErrConfigInvalid, name, typeName)
	}
	if _, exists := l.byName[name]; exists {
		return fmt.Errorf("%w: header '%s'", core.ErrDuplicateDefinition, name)
	}
	l.byName[name] = len(l.headers)
	l.headers = append(l.headers, headerDecl{name: name, htype: t, metadata: metadata})
	for _, f := range t.fields {
		l.fields[name+"."+f.Name] = f.Width
	}
	return nil
}

// HasHeader reports whether a header instance is declared.
func (l *Layout) HasHeader(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// HeaderType returns the type of a declared header instance.
func (l *Layout) HeaderType(name string) (*HeaderType, bool) {
	i, ok := l.byName[name]
	if !ok {
		return nil, false
	}
	return l.headers[i].htype, true
}

// HasField reports whether a qualified "header.field" is declared.
func (l *Layout) HasField(name string) bool {
	_, ok := l.fields[name]
	return ok
}

// FieldWidth returns the declared width of a qualified field.
func (l *Layout) FieldWidth(name string) (int, bool) {
	w, ok := l.fields[name]
	return w, ok
}

// Headers returns the declared header names in declaration order.
func (l *Layout) Headers() []string {
	names := make([]string, len(l.headers))
	for i, d := range l.headers {
		names[i] = d.name
	}
	return names
}

// Fields returns all qualified field names, sorted.
func (l *Layout) Fields() []string {
	names := make([]string, 0, len(l.fields))
	for name := range l.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPHV builds a PHV with all fields zero, metadata headers valid and
// packet headers invalid.
func (l *Layout) NewPHV() *PHV {
	p := &PHV{
		headers: make([]*Header, len(l.headers)),
		byName:  make(map[string]*Header, len(l.headers)),
		fields:  make(map[string]*Field, len(l.fields)),
	}
	for i, d := range l.headers {
		h := newHeader(d.name, d.htype, d.metadata)
		p.headers[i] = h
		p.byName[d.name] = h
		for _, f := range h.fields {
			p.fields[f.name] = f
		}
	}
	return p
}

// PHV is the header collection of one packet. It is owned by the worker
// processing that packet and is not safe for concurrent use.
type PHV struct {
	headers []*Header
	byName  map[string]*Header
	fields  map[string]*Field
}

// Header looks up a header instance.
func (p *PHV) Header(name string) (*Header, bool) {
	h, ok := p.byName[name]
	return h, ok
}

// Field looks up a qualified "header.field".
func (p *PHV) Field(name string) (*Field, bool) {
	f, ok := p.fields[name]
	return f, ok
}

// HasField reports whether the qualified field exists in this PHV.
func (p *PHV) HasField(name string) bool {
	_, ok := p.fields[name]
	return ok
}

// Headers returns the headers in declaration order.
func (p *PHV) Headers() []*Header { return p.headers }

// Reset zeroes all fields and restores the initial validity.
func (p *PHV) Reset() {
	for _, h := range p.headers {
		h.Reset()
		h.valid = h.metadata
	}
}

// CopyFrom copies every header of src into p. Both must come from the
// same Layout.
func (p *PHV) CopyFrom(src *PHV) {
	for i, h := range p.headers {
		if i < len(src.headers) {
			h.CopyFrom(src.headers[i])
		}
	}
}
