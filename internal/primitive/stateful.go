package primitive

func registerStateful(r *Registry) {
	r.MustRegister(Primitive{Name: "count", Params: []Param{ParamCounters, ParamData}, Fn: count})
	r.MustRegister(Primitive{Name: "execute_meter", Params: []Param{ParamMeters, ParamData, ParamField}, Fn: executeMeter})
	r.MustRegister(Primitive{Name: "register_read", Params: []Param{ParamField, ParamRegisters, ParamData}, Fn: registerRead})
	r.MustRegister(Primitive{Name: "register_write", Params: []Param{ParamRegisters, ParamData, ParamData}, Fn: registerWrite})
}

// index reads an index operand. Values that do not fit a uint are mapped
// to the largest uint so they fail the bounds check.
func index(ctx *Context, a Arg) uint {
	v := ctx.Value(a)
	if v.BitLen() > 64 {
		return ^uint(0)
	}
	x := v.Uint64()
	if uint64(uint(x)) != x {
		return ^uint(0)
	}
	return uint(x)
}

// count(counters, idx): add the packet and its ingress length to
// counters[idx].
func count(ctx *Context, args []Arg) {
	a := args[0].Counters
	i := index(ctx, args[1])
	if i >= uint(a.Size()) {
		ctx.outOfRange("update counter", a, i, "No counters were updated.")
		return
	}
	_ = a.Increment(i, uint64(ctx.Packet.IngressLength()))
	ctx.trace("updated counter '%s' at index %d", a.Name(), i)
}

// execute_meter(meters, idx, dst): dst = colour of the packet at
// meters[idx].
func executeMeter(ctx *Context, args []Arg) {
	a := args[0].Meters
	i := index(ctx, args[1])
	if i >= uint(a.Size()) {
		ctx.outOfRange("update meter", a, i, "No meters were updated, and neither was dest field.")
		return
	}
	dst := ctx.Field(args[2])
	if dst == nil {
		return
	}
	color, _ := a.Execute(i, uint64(ctx.Packet.IngressLength()))
	dst.SetUint64(uint64(color))
	ctx.trace("updated meter '%s' at index %d, assigning dest field the color result %d", a.Name(), i, color)
}

// register_read(dst, registers, idx): dst = registers[idx].
func registerRead(ctx *Context, args []Arg) {
	a := args[1].Registers
	i := index(ctx, args[2])
	if i >= uint(a.Size()) {
		ctx.outOfRange("read register", a, i, "Dest field was not updated.")
		return
	}
	dst := ctx.Field(args[0])
	if dst == nil {
		return
	}
	_ = a.Read(i, &dst.Value)
	ctx.trace("read register '%s' at index %d read value %s", a.Name(), i, &dst.Value)
}

// register_write(registers, idx, src): registers[idx] = src.
func registerWrite(ctx *Context, args []Arg) {
	a := args[0].Registers
	i := index(ctx, args[1])
	if i >= uint(a.Size()) {
		ctx.outOfRange("write register", a, i, "No register array elements were updated.")
		return
	}
	src := ctx.Value(args[2])
	_ = a.Write(i, src)
	ctx.trace("wrote register '%s' at index %d with value %s", a.Name(), i, src)
}
