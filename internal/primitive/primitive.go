// Package primitive implements the action primitives and the registry that
// maps primitive names to them.
package primitive

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/actionengine/internal/calc"
	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/phv"
	"firestige.xyz/actionengine/internal/stateful"
)

// ArgKind is what a bound argument refers to.
type ArgKind int

const (
	ArgConst ArgKind = iota
	ArgField
	ArgHeader
	ArgCounters
	ArgMeters
	ArgRegisters
	ArgCalc
	ArgExtern
)

var argKindNames = [...]string{"const", "field", "header", "counter", "meter", "register", "calc", "extern"}

func (k ArgKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return fmt.Sprintf("ArgKind(%d)", int(k))
}

// Arg is a resolved call-site argument. Fields and headers are kept by
// name because every packet has its own PHV; everything else is a direct
// reference to shared state.
type Arg struct {
	Kind      ArgKind
	Name      string
	Const     *phv.Value
	Counters  *stateful.CounterArray
	Meters    *stateful.MeterArray
	Registers *stateful.RegisterArray
	Calc      calc.Calculation
	Extern    *extern.Instance
}

// Const returns a constant argument.
func Const(v *phv.Value) Arg { return Arg{Kind: ArgConst, Const: v} }

// Uint returns an unbounded constant argument holding x.
func Uint(x uint64) Arg { return Const(phv.Const(x)) }

// FieldRef refers to a field by its qualified name, header.field.
func FieldRef(name string) Arg { return Arg{Kind: ArgField, Name: name} }

// HeaderRef refers to a header instance by name.
func HeaderRef(name string) Arg { return Arg{Kind: ArgHeader, Name: name} }

// CountersRef refers to a counter array.
func CountersRef(a *stateful.CounterArray) Arg {
	return Arg{Kind: ArgCounters, Name: a.Name(), Counters: a}
}

// MetersRef refers to a meter array.
func MetersRef(a *stateful.MeterArray) Arg {
	return Arg{Kind: ArgMeters, Name: a.Name(), Meters: a}
}

// RegistersRef refers to a register array.
func RegistersRef(a *stateful.RegisterArray) Arg {
	return Arg{Kind: ArgRegisters, Name: a.Name(), Registers: a}
}

// CalcRef refers to a calculation.
func CalcRef(c calc.Calculation) Arg { return Arg{Kind: ArgCalc, Name: c.Name(), Calc: c} }

// ExternRef refers to an extern instance.
func ExternRef(i *extern.Instance) Arg { return Arg{Kind: ArgExtern, Name: i.Name(), Extern: i} }

// Param is the declared type of a primitive parameter.
type Param int

const (
	// ParamData accepts a constant or a field, read only.
	ParamData Param = iota
	// ParamField accepts a field that the primitive writes.
	ParamField
	ParamHeader
	ParamCounters
	ParamMeters
	ParamRegisters
	ParamCalc
	ParamExtern
)

var paramNames = [...]string{"data", "field", "header", "counter", "meter", "register", "calc", "extern"}

func (p Param) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return fmt.Sprintf("Param(%d)", int(p))
}

// Accepts reports whether an argument of kind k can be bound to p.
func (p Param) Accepts(k ArgKind) bool {
	switch p {
	case ParamData:
		return k == ArgConst || k == ArgField
	case ParamField:
		return k == ArgField
	case ParamHeader:
		return k == ArgHeader
	case ParamCounters:
		return k == ArgCounters
	case ParamMeters:
		return k == ArgMeters
	case ParamRegisters:
		return k == ArgRegisters
	case ParamCalc:
		return k == ArgCalc
	case ParamExtern:
		return k == ArgExtern
	}
	return false
}

// Func is a primitive body. It reports problems through ctx and never
// fails the packet.
type Func func(ctx *Context, args []Arg)

// Primitive is a named operation with a fixed signature.
type Primitive struct {
	Name   string
	Params []Param
	Fn     Func
	// ExternType restricts the first argument of an extern method
	// primitive to instances of this type.
	ExternType string
	// Validate runs after the generic checks for primitives with
	// constraints on constant operands.
	Validate func(args []Arg) error

	invocations prometheus.Counter
}

// Check validates a bound argument list against the signature. It is run
// once at configuration time.
func (p *Primitive) Check(args []Arg) error {
	if len(args) != len(p.Params) {
		return fmt.Errorf("%w: primitive '%s' takes %d argument(s), got %d",
			core.ErrArgumentMismatch, p.Name, len(p.Params), len(args))
	}
	for i, param := range p.Params {
		if !param.Accepts(args[i].Kind) {
			return fmt.Errorf("%w: primitive '%s' argument %d must be %s, got %s",
				core.ErrArgumentMismatch, p.Name, i, param, args[i].Kind)
		}
		if args[i].Kind == ArgConst && args[i].Const == nil {
			return fmt.Errorf("%w: primitive '%s' argument %d has no value", core.ErrArgumentMismatch, p.Name, i)
		}
	}
	if p.ExternType != "" && len(args) > 0 {
		inst := args[0].Extern
		if inst == nil || inst.TypeName() != p.ExternType {
			return fmt.Errorf("%w: primitive '%s' needs an instance of '%s'",
				core.ErrArgumentMismatch, p.Name, p.ExternType)
		}
	}
	if p.Validate != nil {
		if err := p.Validate(args); err != nil {
			return fmt.Errorf("primitive '%s': %w", p.Name, err)
		}
	}
	return nil
}

// Invoke runs p against args, which must have passed Check.
func (p *Primitive) Invoke(ctx *Context, args []Arg) {
	if p.invocations != nil {
		p.invocations.Inc()
	}
	ctx.primitive = p.Name
	p.Fn(ctx, args)
	ctx.primitive = ""
}
