package llcsim

import (
	"sync"

	"github.com/archsim/llcsim/internal/interfaces"
	"github.com/archsim/llcsim/internal/packet"
)

// MockMemory is a fake lower level implementing interfaces.Memory, standing
// in for a real Cache or dram.Memory in unit tests that only need to
// observe what a level forwards downward. Call-count tracking is kept
// behind a mutex so it is safe to share across concurrently-driven levels.
type MockMemory struct {
	mu sync.Mutex

	RQCalls []packet.Packet
	WQCalls []packet.Packet
	PQCalls []packet.Packet

	ReturnDataCalls []packet.Packet

	// RQFull/WQFull/PQFull force AddRQ/AddWQ/AddPQ to report -2, exercising
	// a caller's back-pressure path without needing a real full queue.
	RQFull, WQFull, PQFull bool

	// Occupancy/Size report fixed values for GetOccupancy/GetSize so tests
	// can simulate a lower level's queue state without wiring a real Cache.
	Occupancy map[int]int
	Capacity  map[int]int

	WQFullCalls int
	OperateCalls int
}

// NewMockMemory returns a MockMemory with empty occupancy/capacity tables.
func NewMockMemory() *MockMemory {
	return &MockMemory{
		Occupancy: make(map[int]int),
		Capacity:  make(map[int]int),
	}
}

func (m *MockMemory) AddRQ(p *packet.Packet) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RQFull {
		return -2
	}
	m.RQCalls = append(m.RQCalls, *p)
	return -1
}

func (m *MockMemory) AddWQ(p *packet.Packet) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WQFull {
		return -2
	}
	m.WQCalls = append(m.WQCalls, *p)
	return -1
}

func (m *MockMemory) AddPQ(p *packet.Packet) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PQFull {
		return -2
	}
	m.PQCalls = append(m.PQCalls, *p)
	return -1
}

func (m *MockMemory) ReturnData(p *packet.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReturnDataCalls = append(m.ReturnDataCalls, *p)
}

func (m *MockMemory) Operate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OperateCalls++
}

func (m *MockMemory) GetOccupancy(queueType int, address uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Occupancy[queueType]
}

func (m *MockMemory) GetSize(queueType int, address uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Capacity[queueType]
}

func (m *MockMemory) IncrementWQFull(address uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WQFullCalls++
}

var _ interfaces.Memory = (*MockMemory)(nil)
