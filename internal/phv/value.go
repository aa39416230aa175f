// Package phv implements the packet header vector: fixed-width integer
// values, the fields and headers built from them, and the per-packet
// collection of headers.
package phv

import (
	"encoding/hex"
	"math/big"
	"sync"
)

// maxUnboundedShift caps left shifts on unbounded values.
const maxUnboundedShift = 1 << 16

var (
	one   = big.NewInt(1)
	masks sync.Map // int -> *big.Int
)

func mask(width int) *big.Int {
	if m, ok := masks.Load(width); ok {
		return m.(*big.Int)
	}
	m := new(big.Int).Lsh(one, uint(width))
	m.Sub(m, one)
	actual, _ := masks.LoadOrStore(width, m)
	return actual.(*big.Int)
}

// Value is an unsigned integer of fixed bit width. Every mutation reduces
// the result modulo 2^width, so arithmetic wraps and never fails. A width
// of zero means unbounded and is used for constants.
//
// The zero Value is an unbounded zero.
type Value struct {
	width int
	v     big.Int
}

// NewValue returns a zero value of the given width.
func NewValue(width int) *Value {
	if width < 0 {
		width = 0
	}
	return &Value{width: width}
}

// Uint returns a value of the given width holding x reduced to that width.
func Uint(width int, x uint64) *Value {
	d := NewValue(width)
	d.SetUint64(x)
	return d
}

// Const returns an unbounded constant.
func Const(x uint64) *Value {
	return Uint(0, x)
}

// ConstBig returns an unbounded constant holding x. Negative inputs are
// stored in 64-bit two's complement.
func ConstBig(x *big.Int) *Value {
	d := NewValue(0)
	d.SetBig(x)
	return d
}

// Width returns the bit width, zero for unbounded values.
func (d *Value) Width() int { return d.width }

func (d *Value) reduce() {
	switch {
	case d.width > 0:
		// big.Int And uses two's complement semantics for negative operands.
		d.v.And(&d.v, mask(d.width))
	case d.v.Sign() < 0:
		d.v.And(&d.v, mask(64))
	}
}

// Uint64 returns the low 64 bits.
func (d *Value) Uint64() uint64 {
	if d.v.BitLen() <= 64 {
		return d.v.Uint64()
	}
	var t big.Int
	return t.And(&d.v, mask(64)).Uint64()
}

// Int64 returns the low 64 bits as a two's complement integer.
func (d *Value) Int64() int64 { return int64(d.Uint64()) }

// Uint returns the low bits as a uint, used for indexes and lengths.
func (d *Value) Uint() uint { return uint(d.Uint64()) }

// IsZero reports whether the value is zero.
func (d *Value) IsZero() bool { return d.v.Sign() == 0 }

// Big returns a copy of the value as a big.Int.
func (d *Value) Big() *big.Int { return new(big.Int).Set(&d.v) }

// BitLen returns the number of significant bits.
func (d *Value) BitLen() int { return d.v.BitLen() }

// Bytes returns the big-endian encoding padded to the byte length of the
// width. Unbounded values use their minimal encoding, at least one byte.
func (d *Value) Bytes() []byte {
	n := (d.width + 7) / 8
	if d.width == 0 {
		n = (d.v.BitLen() + 7) / 8
		if n == 0 {
			n = 1
		}
	}
	return d.v.FillBytes(make([]byte, n))
}

// String returns the value as 0x-prefixed lowercase hex.
func (d *Value) String() string {
	return "0x" + d.v.Text(16)
}

// Hex returns the Bytes encoding as hex without prefix.
func (d *Value) Hex() string {
	return hex.EncodeToString(d.Bytes())
}

// Cmp compares the numeric values of d and o.
func (d *Value) Cmp(o *Value) int { return d.v.Cmp(&o.v) }

// Equal reports whether d and o hold the same number, ignoring width.
func (d *Value) Equal(o *Value) bool { return d.Cmp(o) == 0 }

// Set assigns src to d, truncated to d's width.
func (d *Value) Set(src *Value) *Value {
	if d != src {
		d.v.Set(&src.v)
		d.reduce()
	}
	return d
}

// SetUint64 assigns x truncated to d's width.
func (d *Value) SetUint64(x uint64) *Value {
	d.v.SetUint64(x)
	d.reduce()
	return d
}

// SetInt64 assigns x in two's complement, truncated to d's width.
func (d *Value) SetInt64(x int64) *Value {
	if d.width > 64 {
		d.v.SetInt64(x)
		d.reduce()
		return d
	}
	return d.SetUint64(uint64(x))
}

// SetBig assigns x truncated to d's width.
func (d *Value) SetBig(x *big.Int) *Value {
	d.v.Set(x)
	d.reduce()
	return d
}

// SetBytes assigns the big-endian unsigned integer b.
func (d *Value) SetBytes(b []byte) *Value {
	d.v.SetBytes(b)
	d.reduce()
	return d
}

// Add sets d = a + b.
func (d *Value) Add(a, b *Value) *Value {
	var t big.Int
	return d.SetBig(t.Add(&a.v, &b.v))
}

// Sub sets d = a - b.
func (d *Value) Sub(a, b *Value) *Value {
	var t big.Int
	return d.SetBig(t.Sub(&a.v, &b.v))
}

// And sets d = a & b.
func (d *Value) And(a, b *Value) *Value {
	var t big.Int
	return d.SetBig(t.And(&a.v, &b.v))
}

// Or sets d = a | b.
func (d *Value) Or(a, b *Value) *Value {
	var t big.Int
	return d.SetBig(t.Or(&a.v, &b.v))
}

// Xor sets d = a ^ b.
func (d *Value) Xor(a, b *Value) *Value {
	var t big.Int
	return d.SetBig(t.Xor(&a.v, &b.v))
}

// ShiftLeft sets d = a << n. Shifts at or beyond d's width produce zero.
func (d *Value) ShiftLeft(a, n *Value) *Value {
	limit := d.width
	if limit == 0 {
		limit = maxUnboundedShift
	}
	if n.BitLen() > 32 || n.Uint64() >= uint64(limit) {
		d.v.SetInt64(0)
		return d
	}
	var t big.Int
	return d.SetBig(t.Lsh(&a.v, uint(n.Uint64())))
}

// ShiftRight sets d = a >> n with zero fill. Shifts at or beyond a's bit
// length produce zero.
func (d *Value) ShiftRight(a, n *Value) *Value {
	if n.BitLen() > 32 || n.Uint64() >= uint64(a.v.BitLen()) {
		d.v.SetInt64(0)
		return d
	}
	var t big.Int
	return d.SetBig(t.Rsh(&a.v, uint(n.Uint64())))
}
