package primitive

func registerMisc(r *Registry) {
	r.MustRegister(Primitive{Name: "no_op", Fn: func(*Context, []Arg) {}})
	r.MustRegister(Primitive{Name: "p4_logger", Params: []Param{ParamData}, Fn: p4Logger})
}

// p4_logger(value): log the value in hex.
func p4Logger(ctx *Context, args []Arg) {
	ctx.logger().Infof("[P4 logger] %x", ctx.Value(args[0]).Uint64())
}
