package primitive

import (
	"fmt"

	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/phv"
)

// ExternMethodName is the primitive name under which method m of extern
// type t is callable.
func ExternMethodName(t, m string) string {
	return fmt.Sprintf("_%s_%s", t, m)
}

// RegisterExternMethods exposes every method of every type in ext as a
// primitive whose first argument is the instance.
func RegisterExternMethods(r *Registry, ext *extern.Registry) error {
	for _, typeName := range ext.Types() {
		t, err := ext.Type(typeName)
		if err != nil {
			return err
		}
		for methodName, m := range t.Methods {
			params := make([]Param, 1+m.Arity)
			params[0] = ParamExtern
			for i := 1; i < len(params); i++ {
				params[i] = ParamData
			}
			err := r.Register(Primitive{
				Name:       ExternMethodName(typeName, methodName),
				Params:     params,
				Fn:         callMethod(m),
				ExternType: typeName,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func callMethod(m extern.Method) Func {
	return func(ctx *Context, args []Arg) {
		var vals []*phv.Value
		if len(args) > 1 {
			vals = make([]*phv.Value, 0, len(args)-1)
			for _, a := range args[1:] {
				vals = append(vals, ctx.Value(a))
			}
		}
		args[0].Extern.Call(m, vals)
	}
}
