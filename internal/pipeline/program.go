package pipeline

import (
	"fmt"

	"firestige.xyz/actionengine/internal/action"
	"firestige.xyz/actionengine/internal/calc"
	"firestige.xyz/actionengine/internal/config"
	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/phv"
	"firestige.xyz/actionengine/internal/primitive"
	"firestige.xyz/actionengine/internal/stateful"
)

// Program is an action program bound to its layout and shared state.
// Everything in it is shared by all workers of a pipeline.
type Program struct {
	Layout     *phv.Layout
	Store      *stateful.Store
	Calcs      *calc.Registry
	Externs    *extern.Registry
	Primitives *primitive.Registry
	Actions    *action.Program
	Ingress    []*action.Action
	Egress     []*action.Action
}

// Compile builds a Program from its configuration. The ExternIncrease
// type is always available; externTypes adds more.
func Compile(pc *config.ProgramConfig, externTypes ...extern.TypeDef) (*Program, error) {
	prog := &Program{
		Layout:     phv.NewLayout(),
		Store:      stateful.NewStore(),
		Calcs:      calc.NewRegistry(),
		Externs:    extern.NewRegistry(),
		Primitives: primitive.NewStandardRegistry(),
		Actions:    action.NewProgram(),
	}

	if err := prog.compileLayout(pc); err != nil {
		return nil, err
	}
	if err := prog.compileState(pc); err != nil {
		return nil, err
	}
	for _, c := range pc.Calculations {
		if err := prog.addCalculation(c); err != nil {
			return nil, err
		}
	}

	types := append([]extern.TypeDef{extern.Increase()}, externTypes...)
	for _, t := range types {
		if err := prog.Externs.DefineType(t); err != nil {
			return nil, err
		}
	}
	for _, e := range pc.Externs {
		attrs, err := e.AttributeValues()
		if err != nil {
			return nil, err
		}
		if _, err := prog.Externs.Instantiate(e.Type, e.Name, attrs); err != nil {
			return nil, fmt.Errorf("extern '%s': %w", e.Name, err)
		}
	}
	if err := primitive.RegisterExternMethods(prog.Primitives, prog.Externs); err != nil {
		return nil, err
	}

	binder := &action.Binder{
		Layout:     prog.Layout,
		Store:      prog.Store,
		Calcs:      prog.Calcs,
		Externs:    prog.Externs,
		Primitives: prog.Primitives,
	}
	for _, ac := range pc.Actions {
		calls := make([]action.CallSpec, len(ac.Calls))
		for i, c := range ac.Calls {
			calls[i] = action.CallSpec{Primitive: c.Primitive, Args: c.Args}
		}
		a, err := binder.Bind(ac.Name, calls)
		if err != nil {
			return nil, err
		}
		if err := prog.Actions.Add(a); err != nil {
			return nil, err
		}
	}

	var err error
	if prog.Ingress, err = prog.resolve(pc.Ingress); err != nil {
		return nil, fmt.Errorf("ingress: %w", err)
	}
	if prog.Egress, err = prog.resolve(pc.Egress); err != nil {
		return nil, fmt.Errorf("egress: %w", err)
	}
	return prog, nil
}

func (prog *Program) compileLayout(pc *config.ProgramConfig) error {
	for _, ht := range pc.HeaderTypes {
		fields := make([]phv.FieldSpec, len(ht.Fields))
		for i, f := range ht.Fields {
			fields[i] = phv.FieldSpec{Name: f.Name, Width: f.Width}
		}
		t, err := phv.NewHeaderType(ht.Name, fields)
		if err != nil {
			return err
		}
		if err := prog.Layout.AddType(t); err != nil {
			return err
		}
	}
	for _, h := range pc.Headers {
		if err := prog.Layout.AddHeader(h.Name, h.Type, h.Metadata); err != nil {
			return err
		}
	}
	return nil
}

func (prog *Program) compileState(pc *config.ProgramConfig) error {
	for _, c := range pc.Counters {
		if err := prog.Store.AddCounters(stateful.NewCounterArray(c.Name, c.Size)); err != nil {
			return err
		}
	}
	for _, m := range pc.Meters {
		typ, err := stateful.ParseMeterType(m.Type)
		if err != nil {
			return err
		}
		arr := stateful.NewMeterArray(m.Name, typ, m.Size)
		if len(m.Rates) > 0 {
			rates := make([]stateful.Rate, len(m.Rates))
			for i, r := range m.Rates {
				rates[i] = stateful.Rate{InfoRate: r.InfoRate, BurstSize: r.BurstSize}
			}
			if err := arr.SetRates(rates); err != nil {
				return fmt.Errorf("meter '%s': %w", m.Name, err)
			}
		}
		if err := prog.Store.AddMeters(arr); err != nil {
			return err
		}
	}
	for _, r := range pc.Registers {
		if err := prog.Store.AddRegisters(stateful.NewRegisterArray(r.Name, r.Size, r.Width)); err != nil {
			return err
		}
	}
	return nil
}

func (prog *Program) addCalculation(c config.CalculationConfig) error {
	for _, f := range c.Fields {
		if !prog.Layout.HasField(f) {
			return fmt.Errorf("calculation '%s': %w: '%s'", c.Name, core.ErrUnknownField, f)
		}
	}
	named, err := calc.New(c.Name, c.Algorithm, c.Fields)
	if err != nil {
		return err
	}
	return prog.Calcs.Add(named)
}

func (prog *Program) resolve(names []string) ([]*action.Action, error) {
	out := make([]*action.Action, 0, len(names))
	for _, name := range names {
		a, err := prog.Actions.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
