package queue

import "github.com/archsim/llcsim/internal/packet"

// MSHR is the miss status holding register set: a fixed-size table of
// in-flight misses, at most one per block address, tracked by
// packet.ReturnedState. It additionally caches the earliest-maturing
// COMPLETED entry so handle_fill doesn't rescan the table every cycle.
type MSHR struct {
	entries  []packet.Packet
	occupied []bool
	size     int
	latency  int

	NextFillCycle uint64
	NextFillIndex int

	Merged uint64
}

// NewMSHR allocates an MSHR with room for size in-flight misses; latency is
// the delay applied by ReturnData before an entry matures.
func NewMSHR(size, latency int) *MSHR {
	m := &MSHR{
		entries:       make([]packet.Packet, size),
		occupied:      make([]bool, size),
		size:          size,
		latency:       latency,
		NextFillIndex: size,
	}
	return m
}

func (m *MSHR) Size() int { return m.size }

func (m *MSHR) Occupancy() int {
	n := 0
	for _, ok := range m.occupied {
		if ok {
			n++
		}
	}
	return n
}

// Check returns the index of the entry tracking address, or -1.
func (m *MSHR) Check(address uint64) int {
	for i, ok := range m.occupied {
		if ok && m.entries[i].Address == address {
			return i
		}
	}
	return -1
}

// Allocate installs p as a new in-flight miss, marking it InFlight and
// stamping CycleEnqueued. Returns the slot index, or -1 if the table is
// full; callers must check Occupancy() first to decide whether to stall.
func (m *MSHR) Allocate(currentCycle uint64, p *packet.Packet) int {
	for i, ok := range m.occupied {
		if !ok {
			entry := *p
			entry.Returned = packet.InFlight
			entry.CycleEnqueued = currentCycle
			m.entries[i] = entry
			m.occupied[i] = true
			m.recomputeNextFill()
			return i
		}
	}
	return -1
}

// Coalesce merges an incoming duplicate demand/prefetch into the entry at
// idx: fill level narrows, routing bits OR together, dependency sets union,
// and a demand supersedes an in-flight prefetch without losing its
// completion state.
func (m *MSHR) Coalesce(idx int, incoming *packet.Packet) {
	existing := &m.entries[idx]

	if incoming.FillLevel < existing.FillLevel {
		existing.FillLevel = incoming.FillLevel
	}
	if incoming.FillL1I {
		existing.FillL1I = true
	}
	if incoming.FillL1D {
		existing.FillL1D = true
	}
	if incoming.Instruction {
		existing.Instruction = true
	}
	if incoming.IsData {
		existing.IsData = true
	}
	unionDependencies(existing, incoming)

	if existing.Type == packet.Prefetch {
		returned := existing.Returned
		eventCycle := existing.EventCycle
		*existing = *incoming
		existing.Returned = returned
		existing.EventCycle = eventCycle
	}

	m.Merged++
}

// ReturnData marks the in-flight entry for address as COMPLETED, due to
// mature at currentCycle+latency, copying translated/prefetch metadata from
// the response.
func (m *MSHR) ReturnData(currentCycle uint64, p *packet.Packet) int {
	idx := m.Check(p.Address)
	if idx < 0 {
		return -1
	}
	e := &m.entries[idx]
	e.Data = p.Data
	e.PFMetadata = p.PFMetadata
	e.TranslatedPA = p.TranslatedPA
	e.Returned = packet.Completed
	e.EventCycle = max64(e.EventCycle, currentCycle) + uint64(m.latency)
	m.recomputeNextFill()
	return idx
}

// Remove clears the entry at idx and recomputes the next-maturing fill.
func (m *MSHR) Remove(idx int) {
	m.occupied[idx] = false
	m.entries[idx] = packet.Packet{}
	m.recomputeNextFill()
}

// Entry returns a pointer to the live entry at idx, or nil.
func (m *MSHR) Entry(idx int) *packet.Packet {
	if idx < 0 || idx >= m.size || !m.occupied[idx] {
		return nil
	}
	return &m.entries[idx]
}

// recomputeNextFill scans for the minimum EventCycle among COMPLETED
// entries, breaking ties by index.
func (m *MSHR) recomputeNextFill() {
	best := -1
	for i, ok := range m.occupied {
		if !ok || m.entries[i].Returned != packet.Completed {
			continue
		}
		if best == -1 || m.entries[i].EventCycle < m.entries[best].EventCycle {
			best = i
		}
	}
	if best == -1 {
		m.NextFillIndex = m.size
		m.NextFillCycle = 0
		return
	}
	m.NextFillIndex = best
	m.NextFillCycle = m.entries[best].EventCycle
}
