package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/actionengine/internal/calc"
	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/packet"
	"firestige.xyz/actionengine/internal/phv"
	"firestige.xyz/actionengine/internal/primitive"
	"firestige.xyz/actionengine/internal/stateful"
)

func testBinder(t *testing.T) *Binder {
	t.Helper()
	l := phv.NewLayout()
	meta, err := phv.NewHeaderType("meta_t", []phv.FieldSpec{{Name: "a", Width: 8}, {Name: "b", Width: 32}})
	require.NoError(t, err)
	require.NoError(t, l.AddType(meta))
	require.NoError(t, l.AddHeader("m", "meta_t", true))
	vlan, err := phv.NewHeaderType("vlan_t", []phv.FieldSpec{{Name: "tci", Width: 16}, {Name: "etherType", Width: 16}})
	require.NoError(t, err)
	require.NoError(t, l.AddType(vlan))
	require.NoError(t, l.AddHeader("vlan", "vlan_t", false))
	require.NoError(t, l.AddHeader("vlan2", "vlan_t", false))

	store := stateful.NewStore()
	require.NoError(t, store.AddCounters(stateful.NewCounterArray("c", 4)))
	require.NoError(t, store.AddRegisters(stateful.NewRegisterArray("r", 4, 32)))
	require.NoError(t, store.AddMeters(stateful.NewMeterArray("mt", stateful.MeterBytes, 4)))

	calcs := calc.NewRegistry()
	h, err := calc.New("h", "crc32", nil)
	require.NoError(t, err)
	require.NoError(t, calcs.Add(h))

	ext := extern.NewRegistry()
	require.NoError(t, ext.DefineType(extern.Increase()))
	_, err = ext.Instantiate(extern.IncreaseType, "inc", nil)
	require.NoError(t, err)

	prims := primitive.NewStandardRegistry()
	require.NoError(t, primitive.RegisterExternMethods(prims, ext))

	return &Binder{Layout: l, Store: store, Calcs: calcs, Externs: ext, Primitives: prims}
}

func TestBindArg(t *testing.T) {
	b := testBinder(t)

	tests := []struct {
		spec string
		kind primitive.ArgKind
	}{
		{"const:0x10", primitive.ArgConst},
		{"42", primitive.ArgConst},
		{"m.a", primitive.ArgField},
		{"field:m.b", primitive.ArgField},
		{"header:vlan", primitive.ArgHeader},
		{"counter:c", primitive.ArgCounters},
		{"meter:mt", primitive.ArgMeters},
		{"register:r", primitive.ArgRegisters},
		{"calc:h", primitive.ArgCalc},
		{"extern:inc", primitive.ArgExtern},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			a, err := b.BindArg(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, a.Kind)
		})
	}

	a, err := b.BindArg("const:0x10")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), a.Const.Uint64())

	errs := []struct {
		spec string
		want error
	}{
		{"field:m.z", core.ErrUnknownField},
		{"header:ipv4", core.ErrUnknownHeader},
		{"counter:nope", core.ErrUnknownArray},
		{"calc:nope", core.ErrUnknownCalculation},
		{"extern:nope", core.ErrUnknownExtern},
		{"const:zz", core.ErrConfigInvalid},
		{"table:t", core.ErrConfigInvalid},
		{"bare", core.ErrConfigInvalid},
	}
	for _, tt := range errs {
		_, err := b.BindArg(tt.spec)
		assert.True(t, errors.Is(err, tt.want), "%s: %v", tt.spec, err)
	}
}

func TestBindCall_Errors(t *testing.T) {
	b := testBinder(t)

	_, err := b.BindCall("frobnicate", nil)
	assert.True(t, errors.Is(err, core.ErrUnknownPrimitive))

	_, err = b.BindCall("add", []string{"m.a", "1"})
	assert.True(t, errors.Is(err, core.ErrArgumentMismatch))

	_, err = b.BindCall("modify_field_with_hash_based_offset", []string{"m.a", "0", "calc:h", "0"})
	assert.True(t, errors.Is(err, core.ErrZeroDivisor))

	_, err = b.BindCall("copy_header", []string{"header:vlan", "header:m"})
	assert.True(t, errors.Is(err, core.ErrArgumentMismatch))

	_, err = b.BindCall("copy_header", []string{"header:vlan2", "header:vlan"})
	assert.NoError(t, err)

	_, err = b.Bind("bad", []CallSpec{{Primitive: "count", Args: []string{"counter:c", "field:m.q"}}})
	assert.True(t, errors.Is(err, core.ErrUnknownField))
}

func TestAction_Execute(t *testing.T) {
	b := testBinder(t)
	act, err := b.Bind("set_and_count", []CallSpec{
		{Primitive: "modify_field", Args: []string{"m.a", "3"}},
		{Primitive: "count", Args: []string{"counter:c", "m.a"}},
		{Primitive: "register_write", Args: []string{"register:r", "m.a", "const:0xabcd"}},
		{Primitive: "add_header", Args: []string{"header:vlan"}},
		{Primitive: "exit"},
		{Primitive: "_ExternIncrease_increase", Args: []string{"extern:inc"}},
	})
	require.NoError(t, err)
	assert.Len(t, act.Calls, 6)

	pkt := packet.New(1, b.Layout.NewPHV(), make([]byte, 60))
	act.Execute(primitive.NewContext(primitive.NewWorker(0), pkt, nil))

	c, _ := b.Store.Counters("c")
	v, err := c.Read(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Packets)
	assert.Equal(t, uint64(60), v.Bytes)

	r, _ := b.Store.Registers("r")
	got := phv.NewValue(32)
	require.NoError(t, r.Read(3, got))
	assert.Equal(t, uint64(0xabcd), got.Uint64())

	assert.Equal(t, uint64(64), pkt.Register(packet.LengthRegister))
	assert.True(t, pkt.IsMarkedForExit())
}

func TestProgram(t *testing.T) {
	p := NewProgram()
	require.NoError(t, p.Add(&Action{Name: "a"}))
	assert.True(t, errors.Is(p.Add(&Action{Name: "a"}), core.ErrDuplicateDefinition))

	_, err := p.Get("b")
	assert.True(t, errors.Is(err, core.ErrUnknownAction))
	assert.Equal(t, []string{"a"}, p.Names())
}
