package primitive

import (
	"encoding/binary"
	"math"

	"firestige.xyz/actionengine/internal/metrics"
)

func registerCodec(r *Registry) {
	r.MustRegister(Primitive{
		Name:     "double_to_int64",
		Params:   []Param{ParamField, ParamData, ParamData},
		Fn:       doubleToInt64,
		Validate: nonZeroConst(2, "precision"),
	})
	r.MustRegister(Primitive{
		Name:     "int64_to_double",
		Params:   []Param{ParamField, ParamData, ParamData},
		Fn:       int64ToDouble,
		Validate: nonZeroConst(2, "precision"),
	})
}

// DecodeDouble reads a double from its 8-byte wire image. The image is the
// double's memory layout, least significant byte first, so a field holding
// it reads as the byte-reversed IEEE-754 bits.
func DecodeDouble(wire [8]byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(wire[:]))
}

// EncodeDouble returns the 8-byte wire image of d, least significant byte
// first.
func EncodeDouble(d float64) [8]byte {
	var wire [8]byte
	binary.LittleEndian.PutUint64(wire[:], math.Float64bits(d))
	return wire
}

// wireImage lays out the low 64 bits of a field most significant byte
// first, the order its bytes appear in the packet.
func wireImage(bits uint64) [8]byte {
	var wire [8]byte
	binary.BigEndian.PutUint64(wire[:], bits)
	return wire
}

// saturate converts to int64 truncating toward zero. NaN maps to 0 and
// out-of-range values clamp.
func saturate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// double_to_int64(dst, double_hex, precision): dst = trunc(double *
// precision) as a 64-bit two's complement pattern, zero-extended to wider
// fields.
func doubleToInt64(ctx *Context, args []Arg) {
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	prec := ctx.Value(args[2]).Int64()
	if prec == 0 {
		ctx.fail(metrics.ReasonZeroDivisor, "precision is 0, '%s' left unchanged", dst.Name())
		return
	}
	d := DecodeDouble(wireImage(ctx.Value(args[1]).Uint64()))
	n := saturate(d * float64(prec))
	dst.SetUint64(uint64(n))
	ctx.trace("double %g * precision %d = %d", d, prec, n)
}

// int64_to_double(dst, int64, precision): dst = wire image of
// int64 / precision.
func int64ToDouble(ctx *Context, args []Arg) {
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	prec := ctx.Value(args[2]).Int64()
	if prec == 0 {
		ctx.fail(metrics.ReasonZeroDivisor, "precision is 0, '%s' left unchanged", dst.Name())
		return
	}
	d := float64(ctx.Value(args[1]).Int64()) / float64(prec)
	wire := EncodeDouble(d)
	dst.SetBytes(wire[:])
	ctx.trace("int %d / precision %d = %g", ctx.Value(args[1]).Int64(), prec, d)
}
