package dram

import (
	"testing"

	"github.com/archsim/llcsim/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ cycle uint64 }

func (c *testClock) Cycle(cpu int) uint64 { return c.cycle }

type fakeUpper struct {
	returned []packet.Packet
}

func (f *fakeUpper) AddRQ(p *packet.Packet) int  { return -1 }
func (f *fakeUpper) AddWQ(p *packet.Packet) int  { return -1 }
func (f *fakeUpper) AddPQ(p *packet.Packet) int  { return -1 }
func (f *fakeUpper) ReturnData(p *packet.Packet) { f.returned = append(f.returned, *p) }
func (f *fakeUpper) Operate()                    {}
func (f *fakeUpper) GetOccupancy(int, uint64) int { return 0 }
func (f *fakeUpper) GetSize(int, uint64) int       { return 8 }
func (f *fakeUpper) IncrementWQFull(uint64)        {}

func TestMemory_ReturnsReadAfterLatency(t *testing.T) {
	clock := &testClock{}
	m := New(clock, 4, 4, 10)
	upper := &fakeUpper{}
	m.SetUpper(upper)

	m.AddRQ(&packet.Packet{CPU: 0, Address: 0x1000})

	clock.cycle = 9
	m.Operate()
	assert.Empty(t, upper.returned, "must not reply before latency elapses")

	clock.cycle = 10
	m.Operate()
	require.Len(t, upper.returned, 1)
	assert.Equal(t, uint64(0x1000), upper.returned[0].Address)
}

func TestMemory_DefaultsLatencyWhenNonPositive(t *testing.T) {
	m := New(&testClock{}, 4, 4, 0)
	assert.Equal(t, 200, m.latency)
}

func TestMemory_WritebackDrainsSilently(t *testing.T) {
	clock := &testClock{}
	m := New(clock, 4, 4, 5)
	upper := &fakeUpper{}
	m.SetUpper(upper)

	m.AddWQ(&packet.Packet{CPU: 0, Address: 0x2000})
	clock.cycle = 5
	m.Operate()

	assert.Equal(t, 0, m.GetOccupancy(2, 0))
	assert.Empty(t, upper.returned)
}

func TestMemory_AddPQAlwaysFull(t *testing.T) {
	m := New(&testClock{}, 4, 4, 5)
	assert.Equal(t, -2, m.AddPQ(&packet.Packet{}))
}
