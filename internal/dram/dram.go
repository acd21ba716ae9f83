// Package dram implements the fixed-latency terminal Memory the lowest
// cache level forwards misses to. It presents the same cache-queue
// interface as any other level; there is no row-buffer/bank timing model
// behind it.
package dram

import (
	"github.com/archsim/llcsim/internal/constants"
	"github.com/archsim/llcsim/internal/interfaces"
	"github.com/archsim/llcsim/internal/packet"
	"github.com/archsim/llcsim/internal/queue"
)

// Clock mirrors internal/cache.Clock so DRAM doesn't need to import the
// cache package just to read the current cycle.
type Clock interface {
	Cycle(cpu int) uint64
}

// Memory is the simulator's terminal level: an RQ/WQ (no PQ) that answers
// every read by calling ReturnData on the requester after a fixed latency,
// and drains writebacks without producing any reply.
type Memory struct {
	clock   Clock
	latency int

	rq *queue.PacketQueue
	wq *queue.PacketQueue

	// upper is the single level DRAM replies to, for every cpu (the shared
	// LLC is DRAM's only caller).
	upper interfaces.Memory
}

// New constructs a DRAM model with constants.DRAMLatency response time
// unless overridden.
func New(clock Clock, rqSize, wqSize, latency int) *Memory {
	if latency <= 0 {
		latency = constants.DRAMLatency
	}
	return &Memory{
		clock:   clock,
		latency: latency,
		rq:      queue.NewPacketQueue("DRAM.RQ", rqSize, latency),
		wq:      queue.NewPacketQueue("DRAM.WQ", wqSize, latency),
	}
}

// SetUpper wires the (single) caller DRAM delivers completed reads to.
func (m *Memory) SetUpper(upper interfaces.Memory) { m.upper = upper }

func (m *Memory) AddRQ(p *packet.Packet) int { return m.rq.Add(m.clock.Cycle(p.CPU), p) }
func (m *Memory) AddWQ(p *packet.Packet) int { return m.wq.Add(m.clock.Cycle(p.CPU), p) }
func (m *Memory) AddPQ(p *packet.Packet) int { return -2 }

// ReturnData is never called on DRAM: nothing sits below it.
func (m *Memory) ReturnData(p *packet.Packet) {}

func (m *Memory) IncrementWQFull(address uint64) { m.wq.Full++ }

func (m *Memory) GetOccupancy(queueType int, address uint64) int {
	switch queueType {
	case 1:
		return m.rq.Occupancy()
	case 2:
		return m.wq.Occupancy()
	default:
		return 0
	}
}

func (m *Memory) GetSize(queueType int, address uint64) int {
	switch queueType {
	case 1:
		return m.rq.Size()
	case 2:
		return m.wq.Size()
	default:
		return 0
	}
}

// Operate drains one matured WQ entry (silently, DRAM never evicts) and one
// matured RQ entry per cycle, replying to the latter through ReturnData on
// the upper level.
func (m *Memory) Operate() {
	if head := m.wq.HeadEntry(); head != nil && head.EventCycle <= m.clock.Cycle(head.CPU) {
		m.wq.RemoveHead()
	}

	head := m.rq.HeadEntry()
	if head == nil || head.EventCycle > m.clock.Cycle(head.CPU) {
		return
	}
	resp := *head
	m.rq.RemoveHead()
	if m.upper != nil {
		m.upper.ReturnData(&resp)
	}
}

var _ interfaces.Memory = (*Memory)(nil)
