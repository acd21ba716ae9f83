package queue

import (
	"testing"

	"github.com/archsim/llcsim/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketQueue_AddAndMerge(t *testing.T) {
	q := NewPacketQueue("RQ", 4, 5)

	res := q.Add(100, &packet.Packet{Address: 0x1000, FillLevel: packet.FillL2})
	assert.Equal(t, -1, res, "a fresh insertion reports -1")
	assert.EqualValues(t, 1, q.Occupancy())
	assert.EqualValues(t, 1, q.ToCache)

	idx := q.CheckQueue(0x1000)
	require.GreaterOrEqual(t, idx, 0)

	res2 := q.Add(101, &packet.Packet{Address: 0x1000, FillLevel: packet.FillL1})
	assert.Equal(t, idx, res2, "duplicate address must merge into the existing slot")
	assert.EqualValues(t, 1, q.Occupancy(), "merge must not grow occupancy")
	assert.EqualValues(t, 1, q.Merged)
	assert.Equal(t, packet.FillL1, q.entries[idx].FillLevel, "fill_level must narrow to the minimum")
}

func TestPacketQueue_PrefetchSupersededByDemand(t *testing.T) {
	q := NewPacketQueue("RQ", 4, 5)

	q.Add(0, &packet.Packet{Address: 0x2000, Type: packet.Prefetch, FillLevel: packet.FillL2})
	idx := q.CheckQueue(0x2000)
	require.GreaterOrEqual(t, idx, 0)
	q.entries[idx].Returned = packet.Completed
	q.entries[idx].EventCycle = 42

	q.Add(10, &packet.Packet{Address: 0x2000, Type: packet.Load, FillLevel: packet.FillL1, FillL1D: true})

	got := q.entries[idx]
	assert.Equal(t, packet.Load, got.Type)
	assert.True(t, got.FillL1D)
	assert.Equal(t, packet.Completed, got.Returned, "a completed prefetch must not lose its completion state")
	assert.EqualValues(t, 42, got.EventCycle)
}

func TestPacketQueue_FullIncrementsCounter(t *testing.T) {
	q := NewPacketQueue("WQ", 1, 0)

	res := q.Add(0, &packet.Packet{Address: 0x10})
	require.Equal(t, -1, res)

	res = q.Add(0, &packet.Packet{Address: 0x20})
	assert.Equal(t, -2, res)
	assert.EqualValues(t, 1, q.Full)
}

func TestPacketQueue_EventCycleLatency(t *testing.T) {
	q := NewPacketQueue("RQ", 2, 5)
	q.Add(100, &packet.Packet{Address: 0x30})
	idx := q.CheckQueue(0x30)
	require.GreaterOrEqual(t, idx, 0)
	assert.EqualValues(t, 105, q.entries[idx].EventCycle)
}

func TestPacketQueue_RecordForwardIncrementsForwardAndAccess(t *testing.T) {
	q := NewPacketQueue("WQ", 4, 5)
	q.Add(0, &packet.Packet{Address: 0x1000, Data: 0xfeed})
	idx := q.CheckQueue(0x1000)
	require.GreaterOrEqual(t, idx, 0)

	entry := q.EntryAt(idx)
	require.NotNil(t, entry)
	assert.EqualValues(t, 0xfeed, entry.Data)

	q.RecordForward()
	assert.EqualValues(t, 1, q.Forward)
	assert.EqualValues(t, 2, q.Access, "RecordForward adds to the Add call's own Access increment")
}

func TestPacketQueue_EntryAtOutOfRangeOrEmpty(t *testing.T) {
	q := NewPacketQueue("WQ", 2, 0)
	assert.Nil(t, q.EntryAt(-1))
	assert.Nil(t, q.EntryAt(5))
	assert.Nil(t, q.EntryAt(0), "slot 0 is unoccupied until something is added")
}

func TestPacketQueue_RemoveHeadAdvances(t *testing.T) {
	q := NewPacketQueue("RQ", 2, 0)
	q.Add(0, &packet.Packet{Address: 0x1})
	q.Add(0, &packet.Packet{Address: 0x2})

	head := q.HeadEntry()
	require.NotNil(t, head)
	assert.EqualValues(t, 0x1, head.Address)

	q.RemoveHead()
	assert.EqualValues(t, 1, q.Occupancy())
	head = q.HeadEntry()
	require.NotNil(t, head)
	assert.EqualValues(t, 0x2, head.Address)
}
