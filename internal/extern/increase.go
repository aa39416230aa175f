package extern

import "firestige.xyz/actionengine/internal/phv"

// IncreaseType is the name of the sample counter extern.
const IncreaseType = "ExternIncrease"

// Increase returns the ExternIncrease type: one 32-bit attribute,
// attribute_example, and an increase method adding its optional operand
// (default 1) to it.
func Increase() TypeDef {
	return TypeDef{
		Name:       IncreaseType,
		Attributes: []AttributeDef{{Name: "attribute_example", Width: 32}},
		Methods: map[string]Method{
			"increase":    {Arity: 0, Fn: increase},
			"increase_by": {Arity: 1, Fn: increase},
		},
	}
}

func increase(s *State, args []*phv.Value) {
	attr := s.Attr("attribute_example")
	delta := phv.Const(1)
	if len(args) > 0 {
		delta = args[0]
	}
	attr.Add(attr, delta)
	s.Log().Infof("increase called, attribute_example=%s", attr)
}
