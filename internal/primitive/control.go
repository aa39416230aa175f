package primitive

import (
	"firestige.xyz/actionengine/internal/phv"
)

// Metadata fields written by the control primitives.
const (
	EgressSpecField      = "standard_metadata.egress_spec"
	CloneSpecField       = "standard_metadata.clone_spec"
	McastGrpField        = "intrinsic_metadata.mcast_grp"
	ResubmitFlagField    = "intrinsic_metadata.resubmit_flag"
	RecirculateFlagField = "intrinsic_metadata.recirculate_flag"
	LearnField           = "intrinsic_metadata.lf_field_list"

	// DropPort is the egress_spec value that drops the packet.
	DropPort = 511
)

func registerControl(r *Registry) {
	r.MustRegister(Primitive{Name: "drop", Fn: drop})
	r.MustRegister(Primitive{Name: "exit", Fn: exit})
	r.MustRegister(Primitive{Name: "truncate", Params: []Param{ParamData}, Fn: truncate})
	r.MustRegister(Primitive{Name: "resubmit", Params: []Param{ParamData}, Fn: setOptional(ResubmitFlagField)})
	r.MustRegister(Primitive{Name: "recirculate", Params: []Param{ParamData}, Fn: setOptional(RecirculateFlagField)})
	r.MustRegister(Primitive{Name: "clone_ingress_pkt_to_egress", Params: []Param{ParamData, ParamData}, Fn: clonePkt})
	r.MustRegister(Primitive{Name: "clone_egress_pkt_to_egress", Params: []Param{ParamData, ParamData}, Fn: clonePkt})
	r.MustRegister(Primitive{Name: "generate_digest", Params: []Param{ParamData, ParamData}, Fn: generateDigest})
}

// drop(): egress_spec = 511, and mcast_grp = 0 when the pipeline has it.
func drop(ctx *Context, _ []Arg) {
	if f := ctx.metaField(EgressSpecField, true); f != nil {
		f.SetUint64(DropPort)
	}
	if f := ctx.metaField(McastGrpField, false); f != nil {
		f.SetUint64(0)
	}
}

// exit(): stop running actions for this packet. The packet is still
// emitted.
func exit(ctx *Context, _ []Arg) {
	ctx.Packet.MarkForExit()
}

// truncate(n): emit at most n bytes.
func truncate(ctx *Context, args []Arg) {
	ctx.Packet.Truncate(int(min(ctx.Value(args[0]).Uint64(), uint64(maxInt))))
}

const maxInt = int(^uint(0) >> 1)

// setOptional writes its operand into name if the pipeline declares it.
func setOptional(name string) Func {
	return func(ctx *Context, args []Arg) {
		if f := ctx.metaField(name, false); f != nil {
			f.Set(ctx.Value(args[0]))
		}
	}
}

var cloneSpecMask = phv.Const(0xffff)

// clone_*_pkt_to_egress(clone_spec, field_list_id):
// clone_spec field = field_list_id << 16 | clone_spec & 0xffff.
func clonePkt(ctx *Context, args []Arg) {
	f := ctx.metaField(CloneSpecField, true)
	if f == nil {
		return
	}
	var lo phv.Value
	lo.And(ctx.Value(args[0]), cloneSpecMask)
	f.ShiftLeft(ctx.Value(args[1]), phv.Const(16))
	f.Or(&f.Value, &lo)
}

// generate_digest(receiver, learn_id): lf_field_list = learn_id. The
// receiver is unused.
func generateDigest(ctx *Context, args []Arg) {
	if f := ctx.metaField(LearnField, true); f != nil {
		f.Set(ctx.Value(args[1]))
	}
}
