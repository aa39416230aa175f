// Package extern implements user-defined stateful objects. A type declares
// its attributes and methods once; instances own private attribute storage
// that only the type's own methods can reach.
package extern

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/phv"
)

// AttributeDef declares one attribute. Width 0 means an unbounded value.
type AttributeDef struct {
	Name    string
	Width   int
	Default uint64
}

// MethodFunc is the body of an extern method. args has exactly the
// method's arity.
type MethodFunc func(s *State, args []*phv.Value)

// Method is a named operation with zero or one argument.
type Method struct {
	Arity int
	Fn    MethodFunc
}

// TypeDef describes an extern type.
type TypeDef struct {
	Name       string
	Attributes []AttributeDef
	Methods    map[string]Method
	// Init runs once per instance after attributes are set.
	Init func(s *State)
}

// State is the attribute storage of one instance. It is handed only to the
// type's Init and methods, and is guarded by the instance lock while they
// run.
type State struct {
	instance string
	attrs    map[string]*phv.Value
	log      log.Logger
}

// Instance returns the instance name.
func (s *State) Instance() string { return s.instance }

// Attr returns the attribute storage, or nil if the type has no such
// attribute.
func (s *State) Attr(name string) *phv.Value { return s.attrs[name] }

// Log returns a logger tagged with the instance name.
func (s *State) Log() log.Logger { return s.log }

// Instance is one instantiated extern object.
type Instance struct {
	name  string
	typ   *TypeDef
	mu    sync.Mutex
	state *State
}

// Name returns the instance name programs refer to it by.
func (i *Instance) Name() string { return i.name }

// TypeName returns the name of the instance's extern type.
func (i *Instance) TypeName() string { return i.typ.Name }

// Method resolves a method at configuration time.
func (i *Instance) Method(name string) (Method, error) {
	m, ok := i.typ.Methods[name]
	if !ok {
		return Method{}, fmt.Errorf("%w: '%s' on type '%s'", core.ErrUnknownMethod, name, i.typ.Name)
	}
	return m, nil
}

// Invoke runs a method under the instance lock. Unknown methods and arity
// mismatches are reported as errors; callers bind methods before packets
// flow so these never happen at packet time.
func (i *Instance) Invoke(method string, args ...*phv.Value) error {
	m, err := i.Method(method)
	if err != nil {
		return err
	}
	if len(args) != m.Arity {
		return fmt.Errorf("%w: method '%s' takes %d argument(s), got %d",
			core.ErrArgumentMismatch, method, m.Arity, len(args))
	}
	i.Call(m, args)
	return nil
}

// Call runs an already resolved method under the instance lock.
func (i *Instance) Call(m Method, args []*phv.Value) {
	i.mu.Lock()
	defer i.mu.Unlock()
	m.Fn(i.state, args)
}

// Registry holds extern types and the instances created from them.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]*TypeDef
	instances map[string]*Instance
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]*TypeDef),
		instances: make(map[string]*Instance),
	}
}

// DefineType registers an extern type.
func (r *Registry) DefineType(def TypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("%w: extern type name is empty", core.ErrConfigInvalid)
	}
	seen := make(map[string]struct{}, len(def.Attributes))
	for _, a := range def.Attributes {
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: attribute '%s' of extern type '%s'", core.ErrDuplicateDefinition, a.Name, def.Name)
		}
		if a.Width < 0 {
			return fmt.Errorf("%w: attribute '%s' has negative width", core.ErrConfigInvalid, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	for name, m := range def.Methods {
		if m.Fn == nil || m.Arity < 0 || m.Arity > 1 {
			return fmt.Errorf("%w: method '%s' of extern type '%s' must have a body and arity 0 or 1",
				core.ErrConfigInvalid, name, def.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[def.Name]; exists {
		return fmt.Errorf("%w: extern type '%s'", core.ErrDuplicateDefinition, def.Name)
	}
	methods := make(map[string]Method, len(def.Methods))
	for name, m := range def.Methods {
		methods[name] = m
	}
	def.Methods = methods
	def.Attributes = append([]AttributeDef(nil), def.Attributes...)
	r.types[def.Name] = &def
	return nil
}

// MustDefineType is DefineType that panics on error.
func (r *Registry) MustDefineType(def TypeDef) {
	if err := r.DefineType(def); err != nil {
		panic(err)
	}
}

// Type looks up a type definition.
func (r *Registry) Type(name string) (*TypeDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownExternType, name)
	}
	return t, nil
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates an instance of typeName. overrides replace attribute
// defaults; naming an attribute the type lacks is an error.
func (r *Registry) Instantiate(typeName, instanceName string, overrides map[string]uint64) (*Instance, error) {
	t, err := r.Type(typeName)
	if err != nil {
		return nil, err
	}
	for name := range overrides {
		if !t.hasAttribute(name) {
			return nil, fmt.Errorf("%w: extern type '%s' has no attribute '%s'", core.ErrConfigInvalid, typeName, name)
		}
	}

	st := &State{
		instance: instanceName,
		attrs:    make(map[string]*phv.Value, len(t.Attributes)),
		log:      log.GetLogger().WithField("extern", instanceName),
	}
	for _, a := range t.Attributes {
		v := phv.NewValue(a.Width)
		if o, ok := overrides[a.Name]; ok {
			v.SetUint64(o)
		} else {
			v.SetUint64(a.Default)
		}
		st.attrs[a.Name] = v
	}
	inst := &Instance{name: instanceName, typ: t, state: st}

	r.mu.Lock()
	if _, exists := r.instances[instanceName]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: extern instance '%s'", core.ErrDuplicateDefinition, instanceName)
	}
	r.instances[instanceName] = inst
	r.mu.Unlock()

	if t.Init != nil {
		inst.mu.Lock()
		t.Init(st)
		inst.mu.Unlock()
	}
	return inst, nil
}

// Instance looks up an instance by name.
func (r *Registry) Instance(name string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownExtern, name)
	}
	return inst, nil
}

func (t *TypeDef) hasAttribute(name string) bool {
	for _, a := range t.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}
