package action

import (
	"fmt"
	"math/big"
	"strings"

	"firestige.xyz/actionengine/internal/calc"
	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/phv"
	"firestige.xyz/actionengine/internal/primitive"
	"firestige.xyz/actionengine/internal/stateful"
)

// Argument spec prefixes.
const (
	PrefixConst    = "const"
	PrefixField    = "field"
	PrefixHeader   = "header"
	PrefixCounter  = "counter"
	PrefixMeter    = "meter"
	PrefixRegister = "register"
	PrefixCalc     = "calc"
	PrefixExtern   = "extern"
)

// Binder resolves argument specs against one pipeline configuration.
type Binder struct {
	Layout     *phv.Layout
	Store      *stateful.Store
	Calcs      *calc.Registry
	Externs    *extern.Registry
	Primitives *primitive.Registry
}

// BindArg resolves one argument spec. Specs have the form "kind:name";
// a bare number is a constant and a bare dotted name is a field.
func (b *Binder) BindArg(spec string) (primitive.Arg, error) {
	kind, name, ok := strings.Cut(spec, ":")
	if !ok {
		name = spec
		switch {
		case isNumber(spec):
			kind = PrefixConst
		case strings.Contains(spec, "."):
			kind = PrefixField
		default:
			return primitive.Arg{}, fmt.Errorf("%w: cannot tell what argument '%s' is", core.ErrConfigInvalid, spec)
		}
	}
	name = strings.TrimSpace(name)

	switch kind {
	case PrefixConst:
		v, ok := new(big.Int).SetString(name, 0)
		if !ok {
			return primitive.Arg{}, fmt.Errorf("%w: bad constant '%s'", core.ErrConfigInvalid, name)
		}
		return primitive.Const(phv.ConstBig(v)), nil
	case PrefixField:
		if !b.Layout.HasField(name) {
			return primitive.Arg{}, fmt.Errorf("%w: '%s'", core.ErrUnknownField, name)
		}
		return primitive.FieldRef(name), nil
	case PrefixHeader:
		if !b.Layout.HasHeader(name) {
			return primitive.Arg{}, fmt.Errorf("%w: '%s'", core.ErrUnknownHeader, name)
		}
		return primitive.HeaderRef(name), nil
	case PrefixCounter:
		a, err := b.Store.Counters(name)
		if err != nil {
			return primitive.Arg{}, err
		}
		return primitive.CountersRef(a), nil
	case PrefixMeter:
		a, err := b.Store.Meters(name)
		if err != nil {
			return primitive.Arg{}, err
		}
		return primitive.MetersRef(a), nil
	case PrefixRegister:
		a, err := b.Store.Registers(name)
		if err != nil {
			return primitive.Arg{}, err
		}
		return primitive.RegistersRef(a), nil
	case PrefixCalc:
		c, err := b.Calcs.Get(name)
		if err != nil {
			return primitive.Arg{}, err
		}
		return primitive.CalcRef(c), nil
	case PrefixExtern:
		inst, err := b.Externs.Instance(name)
		if err != nil {
			return primitive.Arg{}, err
		}
		return primitive.ExternRef(inst), nil
	}
	return primitive.Arg{}, fmt.Errorf("%w: unknown argument kind '%s' in '%s'", core.ErrConfigInvalid, kind, spec)
}

func isNumber(s string) bool {
	_, ok := new(big.Int).SetString(s, 0)
	return ok
}

// BindCall resolves a primitive call. Every configuration-fatal problem
// (unknown primitive, unknown names, signature mismatch, constant zero
// divisors, copy_header across types) is reported here.
func (b *Binder) BindCall(name string, specs []string) (Call, error) {
	p, err := b.Primitives.Lookup(name)
	if err != nil {
		return Call{}, err
	}
	args := make([]primitive.Arg, 0, len(specs))
	for i, spec := range specs {
		a, err := b.BindArg(spec)
		if err != nil {
			return Call{}, fmt.Errorf("primitive '%s' argument %d: %w", name, i, err)
		}
		args = append(args, a)
	}
	if err := p.Check(args); err != nil {
		return Call{}, err
	}
	if err := b.checkHeaderTypes(p, args); err != nil {
		return Call{}, err
	}
	return Call{Primitive: p, Args: args}, nil
}

// checkHeaderTypes requires all header operands of a call to share a type.
func (b *Binder) checkHeaderTypes(p *primitive.Primitive, args []primitive.Arg) error {
	var first *phv.HeaderType
	for _, a := range args {
		if a.Kind != primitive.ArgHeader {
			continue
		}
		t, _ := b.Layout.HeaderType(a.Name)
		if first == nil {
			first = t
			continue
		}
		if t != first {
			return fmt.Errorf("%w: primitive '%s' mixes header types '%s' and '%s'",
				core.ErrArgumentMismatch, p.Name, first.Name(), t.Name())
		}
	}
	return nil
}

// CallSpec is an unbound call as written in an action program.
type CallSpec struct {
	Primitive string
	Args      []string
}

// Bind resolves a whole action.
func (b *Binder) Bind(name string, calls []CallSpec) (*Action, error) {
	a := &Action{Name: name, Calls: make([]Call, 0, len(calls))}
	for i, cs := range calls {
		c, err := b.BindCall(cs.Primitive, cs.Args)
		if err != nil {
			return nil, fmt.Errorf("action '%s' call %d: %w", name, i, err)
		}
		a.Calls = append(a.Calls, c)
	}
	return a, nil
}
