package stateful

import (
	"fmt"
	"sync"
	"time"

	"firestige.xyz/actionengine/internal/core"
)

// Color is the result of metering one packet.
type Color uint8

const (
	Green  Color = 0
	Yellow Color = 1
	Red    Color = 2
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// MeterType selects what a meter measures.
type MeterType int

const (
	MeterBytes MeterType = iota
	MeterPackets
)

// ParseMeterType accepts "bytes" and "packets".
func ParseMeterType(s string) (MeterType, error) {
	switch s {
	case "bytes", "":
		return MeterBytes, nil
	case "packets":
		return MeterPackets, nil
	default:
		return 0, fmt.Errorf("%w: unknown meter type '%s'", core.ErrConfigInvalid, s)
	}
}

// Rate is one token bucket: InfoRate units per microsecond, up to
// BurstSize units.
type Rate struct {
	InfoRate  float64
	BurstSize uint64
}

type bucket struct {
	rate   Rate
	tokens float64
	last   time.Time
	color  Color
}

// meter is a two rate three color marker. Buckets are ordered committed
// then peak; running out of bucket i yields color i+1.
type meter struct {
	mu      sync.Mutex
	buckets []bucket
}

func (m *meter) configure(rates []Rate, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make([]bucket, len(rates))
	for i, r := range rates {
		m.buckets[i] = bucket{
			rate:   r,
			tokens: float64(r.BurstSize),
			last:   now,
			color:  Color(i + 1),
		}
	}
}

func (m *meter) execute(now time.Time, input float64) Color {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.buckets) == 0 {
		return Green
	}

	for i := range m.buckets {
		b := &m.buckets[i]
		elapsed := float64(now.Sub(b.last)) / float64(time.Microsecond)
		if elapsed > 0 {
			b.tokens += elapsed * b.rate.InfoRate
			if limit := float64(b.rate.BurstSize); b.tokens > limit {
				b.tokens = limit
			}
			b.last = now
		}
	}

	color := Green
	for i := len(m.buckets) - 1; i >= 0; i-- {
		if m.buckets[i].tokens < input {
			color = m.buckets[i].color
			break
		}
	}
	for i := range m.buckets {
		if m.buckets[i].color > color {
			m.buckets[i].tokens -= input
		}
	}
	return color
}

func (m *meter) tokens() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.buckets))
	for i, b := range m.buckets {
		out[i] = b.tokens
	}
	return out
}

// MeterOption configures a MeterArray.
type MeterOption func(*MeterArray)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MeterOption {
	return func(a *MeterArray) { a.now = now }
}

// MeterArray is a named fixed-size array of meters. Meters without rates
// mark every packet green.
type MeterArray struct {
	name   string
	typ    MeterType
	meters []meter
	now    func() time.Time
}

// NewMeterArray creates size unconfigured meters.
func NewMeterArray(name string, typ MeterType, size int, opts ...MeterOption) *MeterArray {
	if size < 0 {
		size = 0
	}
	a := &MeterArray{
		name:   name,
		typ:    typ,
		meters: make([]meter, size),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MeterArray) Name() string { return a.name }
func (a *MeterArray) Size() int    { return len(a.meters) }

// Type reports whether the array meters bytes or packets.
func (a *MeterArray) Type() MeterType { return a.typ }

func validateRates(rates []Rate) error {
	if len(rates) == 0 || len(rates) > 2 {
		return fmt.Errorf("%w: meter needs 1 or 2 rates, got %d", core.ErrConfigInvalid, len(rates))
	}
	for _, r := range rates {
		if r.InfoRate < 0 {
			return fmt.Errorf("%w: negative meter rate %v", core.ErrConfigInvalid, r.InfoRate)
		}
	}
	if len(rates) == 2 && rates[0].InfoRate > rates[1].InfoRate {
		return fmt.Errorf("%w: committed rate %v exceeds peak rate %v", core.ErrConfigInvalid, rates[0].InfoRate, rates[1].InfoRate)
	}
	return nil
}

// SetRates configures every meter of the array. Buckets start full.
func (a *MeterArray) SetRates(rates []Rate) error {
	if err := validateRates(rates); err != nil {
		return err
	}
	now := a.now()
	for i := range a.meters {
		a.meters[i].configure(rates, now)
	}
	return nil
}

// SetRatesAt configures the meter at idx.
func (a *MeterArray) SetRatesAt(idx uint, rates []Rate) error {
	if idx >= uint(len(a.meters)) {
		return outOfRange(a, idx)
	}
	if err := validateRates(rates); err != nil {
		return err
	}
	a.meters[idx].configure(rates, a.now())
	return nil
}

// Execute meters one packet of pktBytes at idx and returns its color.
func (a *MeterArray) Execute(idx uint, pktBytes uint64) (Color, error) {
	if idx >= uint(len(a.meters)) {
		return Green, outOfRange(a, idx)
	}
	input := float64(pktBytes)
	if a.typ == MeterPackets {
		input = 1
	}
	return a.meters[idx].execute(a.now(), input), nil
}

// Snapshot returns the bucket levels of every meter.
func (a *MeterArray) Snapshot() [][]float64 {
	out := make([][]float64, len(a.meters))
	for i := range a.meters {
		out[i] = a.meters[i].tokens()
	}
	return out
}
