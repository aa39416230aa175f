package primitive

import "firestige.xyz/actionengine/internal/packet"

func registerHeader(r *Registry) {
	r.MustRegister(Primitive{Name: "add_header", Params: []Param{ParamHeader}, Fn: addHeader})
	r.MustRegister(Primitive{Name: "add_header_fast", Params: []Param{ParamHeader}, Fn: addHeaderFast})
	r.MustRegister(Primitive{Name: "remove_header", Params: []Param{ParamHeader}, Fn: removeHeader})
	r.MustRegister(Primitive{Name: "copy_header", Params: []Param{ParamHeader, ParamHeader}, Fn: copyHeader})
}

// add_header(hdr): zero and validate an invalid header and grow the
// length register by its size. Valid headers are left alone.
func addHeader(ctx *Context, args []Arg) {
	h := ctx.Header(args[0])
	if h == nil || h.IsValid() {
		return
	}
	h.Reset()
	h.MarkValid()
	pkt := ctx.Packet
	pkt.SetRegister(packet.LengthRegister, pkt.Register(packet.LengthRegister)+uint64(h.ByteLength()))
}

// add_header_fast(hdr): mark valid without zeroing or length accounting.
func addHeaderFast(ctx *Context, args []Arg) {
	if h := ctx.Header(args[0]); h != nil {
		h.MarkValid()
	}
}

// remove_header(hdr): invalidate a valid header and shrink the length
// register by its size.
func removeHeader(ctx *Context, args []Arg) {
	h := ctx.Header(args[0])
	if h == nil || !h.IsValid() {
		return
	}
	pkt := ctx.Packet
	pkt.SetRegister(packet.LengthRegister, pkt.Register(packet.LengthRegister)-uint64(h.ByteLength()))
	h.MarkInvalid()
}

// copy_header(dst, src): copy field values and validity. Both headers
// share a type; the binder checks this.
func copyHeader(ctx *Context, args []Arg) {
	dst, src := ctx.Header(args[0]), ctx.Header(args[1])
	if dst == nil || src == nil {
		return
	}
	dst.CopyFrom(src)
}
