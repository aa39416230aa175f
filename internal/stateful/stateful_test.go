package stateful

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/phv"
)

func TestCounterArray_IncrementAndRead(t *testing.T) {
	a := NewCounterArray("port_counters", 4)
	assert.Equal(t, "port_counters", a.Name())
	assert.Equal(t, 4, a.Size())

	require.NoError(t, a.Increment(2, 100))
	require.NoError(t, a.Increment(2, 60))

	v, err := a.Read(2)
	require.NoError(t, err)
	assert.Equal(t, CounterValue{Bytes: 160, Packets: 2}, v)

	a.Reset()
	v, _ = a.Read(2)
	assert.Equal(t, CounterValue{}, v)
}

func TestCounterArray_OutOfRangeLeavesStateIdentical(t *testing.T) {
	a := NewCounterArray("c", 3)
	require.NoError(t, a.Increment(0, 10))
	before := a.Snapshot()

	err := a.Increment(3, 10)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))
	assert.Contains(t, err.Error(), "'c' has size 3, index 3")

	_, err = a.Read(1 << 40)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))
	assert.Equal(t, before, a.Snapshot())
}

func TestCounterArray_Concurrent(t *testing.T) {
	a := NewCounterArray("c", 2)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = a.Increment(uint(i%2), 1)
			}
		}()
	}
	wg.Wait()

	total := uint64(0)
	for _, v := range a.Snapshot() {
		total += v.Packets
	}
	assert.Equal(t, uint64(8000), total)
}

func TestCounterArray_ReadsAreConsistentPairs(t *testing.T) {
	a := NewCounterArray("c", 1)
	done := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				_ = a.Increment(0, 10)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		v, err := a.Read(0)
		require.NoError(t, err)
		require.Equal(t, 10*v.Packets, v.Bytes)
		select {
		case <-done:
			v, _ = a.Read(0)
			assert.Equal(t, CounterValue{Bytes: 80000, Packets: 8000}, v)
			return
		default:
		}
	}
}

func TestRegisterArray_ReadWrite(t *testing.T) {
	a := NewRegisterArray("r", 8, 16)
	assert.Equal(t, 16, a.Width())

	require.NoError(t, a.Write(5, phv.Const(0x12345)))
	dst := phv.NewValue(32)
	require.NoError(t, a.Read(5, dst))
	assert.Equal(t, uint64(0x2345), dst.Uint64(), "write truncates to array width")

	narrow := phv.NewValue(8)
	require.NoError(t, a.Read(5, narrow))
	assert.Equal(t, uint64(0x45), narrow.Uint64(), "read truncates to dst width")
}

func TestRegisterArray_OutOfRange(t *testing.T) {
	a := NewRegisterArray("r", 2, 32)
	require.NoError(t, a.Write(1, phv.Const(7)))

	dst := phv.Uint(32, 99)
	err := a.Read(2, dst)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))
	assert.Equal(t, uint64(99), dst.Uint64())

	err = a.Write(2, phv.Const(1))
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))

	snap := a.Snapshot()
	assert.Equal(t, uint64(0), snap[0].Uint64())
	assert.Equal(t, uint64(7), snap[1].Uint64())
}

func TestRegisterArray_ConcurrentUpdate(t *testing.T) {
	a := NewRegisterArray("r", 1, 64)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = a.Update(0, func(v *phv.Value) { v.Add(v, phv.Const(1)) })
			}
		}()
	}
	wg.Wait()

	dst := phv.NewValue(64)
	require.NoError(t, a.Read(0, dst))
	assert.Equal(t, uint64(2000), dst.Uint64())
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMeterArray_TwoRateThreeColor(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	a := NewMeterArray("m", MeterPackets, 2, WithClock(clk.now))
	require.NoError(t, a.SetRates([]Rate{
		{InfoRate: 0.000001, BurstSize: 2}, // 1 packet/s
		{InfoRate: 0.000002, BurstSize: 3}, // 2 packets/s
	}))

	var colors []Color
	for i := 0; i < 4; i++ {
		c, err := a.Execute(0, 1500)
		require.NoError(t, err)
		colors = append(colors, c)
	}
	assert.Equal(t, []Color{Green, Green, Yellow, Red}, colors)

	clk.t = clk.t.Add(2 * time.Second)
	c, err := a.Execute(0, 1500)
	require.NoError(t, err)
	assert.Equal(t, Green, c)

	// other indexes are independent
	c, _ = a.Execute(1, 1500)
	assert.Equal(t, Green, c)
}

func TestMeterArray_Bytes(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	a := NewMeterArray("m", MeterBytes, 1, WithClock(clk.now))
	require.NoError(t, a.SetRates([]Rate{{InfoRate: 0, BurstSize: 1000}}))

	c, _ := a.Execute(0, 600)
	assert.Equal(t, Green, c)
	c, _ = a.Execute(0, 600)
	assert.Equal(t, Yellow, c, "single rate marks yellow when exhausted")
}

func TestMeterArray_UnconfiguredIsGreen(t *testing.T) {
	a := NewMeterArray("m", MeterBytes, 1)
	c, err := a.Execute(0, 1<<30)
	require.NoError(t, err)
	assert.Equal(t, Green, c)
}

func TestMeterArray_OutOfRangeLeavesBuckets(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	a := NewMeterArray("m", MeterPackets, 2, WithClock(clk.now))
	require.NoError(t, a.SetRates([]Rate{{InfoRate: 1, BurstSize: 5}, {InfoRate: 2, BurstSize: 9}}))
	before := a.Snapshot()

	_, err := a.Execute(2, 1)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))
	assert.Equal(t, before, a.Snapshot())
}

func TestMeterArray_RateValidation(t *testing.T) {
	a := NewMeterArray("m", MeterBytes, 1)
	assert.True(t, errors.Is(a.SetRates(nil), core.ErrConfigInvalid))
	assert.True(t, errors.Is(a.SetRates([]Rate{{InfoRate: 2}, {InfoRate: 1}}), core.ErrConfigInvalid))
	assert.True(t, errors.Is(a.SetRatesAt(3, []Rate{{InfoRate: 1}}), core.ErrIndexOutOfRange))

	_, err := ParseMeterType("frames")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.Equal(t, "yellow", Yellow.String())
}

func TestStore_UniqueNames(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddCounters(NewCounterArray("a", 1)))
	err := s.AddRegisters(NewRegisterArray("a", 1, 8))
	assert.True(t, errors.Is(err, core.ErrDuplicateDefinition))

	require.NoError(t, s.AddMeters(NewMeterArray("m", MeterBytes, 1)))
	_, err = s.Meters("m")
	assert.NoError(t, err)
	_, err = s.Counters("m")
	assert.True(t, errors.Is(err, core.ErrUnknownArray))

	require.NoError(t, s.AddCounters(NewCounterArray("0first", 1)))
	names := []string{}
	for _, c := range s.CounterArrays() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"0first", "a"}, names)
}
