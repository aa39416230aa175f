package primitive

import (
	"fmt"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/metrics"
	"firestige.xyz/actionengine/internal/phv"
)

type binaryOp func(d, a, b *phv.Value) *phv.Value

func registerArith(r *Registry) {
	r.MustRegister(Primitive{Name: "modify_field", Params: []Param{ParamField, ParamData}, Fn: modifyField})
	r.MustRegister(Primitive{Name: "modify_field_rng_uniform", Params: []Param{ParamField, ParamData, ParamData}, Fn: modifyFieldRNGUniform})
	r.MustRegister(Primitive{Name: "add_to_field", Params: []Param{ParamField, ParamData}, Fn: inPlace((*phv.Value).Add)})
	r.MustRegister(Primitive{Name: "subtract_from_field", Params: []Param{ParamField, ParamData}, Fn: inPlace((*phv.Value).Sub)})

	three := []Param{ParamField, ParamData, ParamData}
	r.MustRegister(Primitive{Name: "add", Params: three, Fn: ternary((*phv.Value).Add)})
	r.MustRegister(Primitive{Name: "subtract", Params: three, Fn: ternary((*phv.Value).Sub)})
	r.MustRegister(Primitive{Name: "bit_xor", Params: three, Fn: ternary((*phv.Value).Xor)})
	r.MustRegister(Primitive{Name: "bit_or", Params: three, Fn: ternary((*phv.Value).Or)})
	r.MustRegister(Primitive{Name: "bit_and", Params: three, Fn: ternary((*phv.Value).And)})
	r.MustRegister(Primitive{Name: "shift_left", Params: three, Fn: ternary((*phv.Value).ShiftLeft)})
	r.MustRegister(Primitive{Name: "shift_right", Params: three, Fn: ternary((*phv.Value).ShiftRight)})

	r.MustRegister(Primitive{
		Name:     "modify_field_with_hash_based_offset",
		Params:   []Param{ParamField, ParamData, ParamCalc, ParamData},
		Fn:       modifyFieldWithHashBasedOffset,
		Validate: nonZeroConst(3, "size"),
	})
}

// modify_field(dst, src): dst = src reduced to dst's width.
func modifyField(ctx *Context, args []Arg) {
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	dst.Set(ctx.Value(args[1]))
}

// modify_field_rng_uniform(dst, lo, hi): dst = uniform draw from [lo, hi].
func modifyFieldRNGUniform(ctx *Context, args []Arg) {
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	lo, hi := ctx.Value(args[1]), ctx.Value(args[2])
	if !ctx.Worker.Uniform(&dst.Value, lo, hi) {
		ctx.fail(metrics.ReasonBadOperand, "empty range [%s, %s], '%s' left unchanged", lo, hi, dst.Name())
	}
}

func inPlace(op binaryOp) Func {
	return func(ctx *Context, args []Arg) {
		f := ctx.Field(args[0])
		if f == nil {
			return
		}
		op(&f.Value, &f.Value, ctx.Value(args[1]))
	}
}

func ternary(op binaryOp) Func {
	return func(ctx *Context, args []Arg) {
		dst := ctx.Field(args[0])
		if dst == nil {
			return
		}
		op(&dst.Value, ctx.Value(args[1]), ctx.Value(args[2]))
	}
}

// modify_field_with_hash_based_offset(dst, base, calc, size):
// dst = base + calc(packet) % size.
func modifyFieldWithHashBasedOffset(ctx *Context, args []Arg) {
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	size := ctx.Value(args[3]).Uint64()
	if size == 0 {
		ctx.fail(metrics.ReasonZeroDivisor, "size is 0, '%s' left unchanged", dst.Name())
		return
	}
	h := args[2].Calc.Output(ctx.Packet)
	dst.SetUint64(h%size + ctx.Value(args[1]).Uint64())
}

// nonZeroConst rejects a constant zero at argument i. Field operands are
// checked per packet.
func nonZeroConst(i int, what string) func(args []Arg) error {
	return func(args []Arg) error {
		if args[i].Kind == ArgConst && args[i].Const.IsZero() {
			return fmt.Errorf("%w: %s must not be 0", core.ErrZeroDivisor, what)
		}
		return nil
	}
}
