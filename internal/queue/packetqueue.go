// Package queue implements the two bounded, address-indexed request queues
// that drive the cache pipeline: PacketQueue (RQ/WQ/PQ) and the MSHR.
package queue

import "github.com/archsim/llcsim/internal/packet"

// PacketQueue is a bounded FIFO of in-flight packets with duplicate
// detection and merging by block address.
// Entries occupy a fixed-size backing array indexed by head/tail so that
// head-of-line blocking (the oldest entry must mature before the next one
// is considered) falls out of the indexing rather than needing a separate
// rule.
type PacketQueue struct {
	Name     string
	entries  []packet.Packet
	occupied []bool
	head     int
	tail     int
	size     int
	latency  int

	Access   uint64
	Merged   uint64
	Full     uint64
	Forward  uint64
	ToCache  uint64
}

// NewPacketQueue allocates a queue with room for size entries; latency is
// added to a fresh (non-merged) entry's EventCycle on first insertion.
func NewPacketQueue(name string, size, latency int) *PacketQueue {
	return &PacketQueue{
		Name:     name,
		entries:  make([]packet.Packet, size),
		occupied: make([]bool, size),
		size:     size,
		latency:  latency,
	}
}

// Size returns the queue's fixed capacity.
func (q *PacketQueue) Size() int { return q.size }

// Occupancy returns the current number of live entries.
func (q *PacketQueue) Occupancy() int {
	n := 0
	for _, ok := range q.occupied {
		if ok {
			n++
		}
	}
	return n
}

// IsFull reports whether the queue is at capacity.
func (q *PacketQueue) IsFull() bool { return q.Occupancy() == q.size }

// CheckQueue returns the slot index holding a live entry for address, or -1.
func (q *PacketQueue) CheckQueue(address uint64) int {
	for i, ok := range q.occupied {
		if ok && q.entries[i].Address == address {
			return i
		}
	}
	return -1
}

// HeadEntry returns a pointer to the oldest live entry, or nil if empty.
func (q *PacketQueue) HeadEntry() *packet.Packet {
	if !q.occupied[q.head] {
		return nil
	}
	return &q.entries[q.head]
}

// EntryAt returns a pointer to the live entry at idx (as returned by
// CheckQueue), or nil if idx is out of range or the slot is unoccupied.
func (q *PacketQueue) EntryAt(idx int) *packet.Packet {
	if idx < 0 || idx >= q.size || !q.occupied[idx] {
		return nil
	}
	return &q.entries[idx]
}

// RecordForward increments Forward and Access for a request served directly
// out of this queue's in-flight entry instead of being enqueued elsewhere.
func (q *PacketQueue) RecordForward() {
	q.Forward++
	q.Access++
}

// HeadIndex is the slot currently at the front of the queue.
func (q *PacketQueue) HeadIndex() int { return q.head }

// RemoveHead clears the head slot and advances head, mirroring
// remove_queue's compaction for the common single-consumer case.
func (q *PacketQueue) RemoveHead() {
	q.occupied[q.head] = false
	q.entries[q.head] = packet.Packet{}
	q.head = (q.head + 1) % q.size
}

// RemoveAt clears an arbitrary slot without moving head or tail.
func (q *PacketQueue) RemoveAt(idx int) {
	q.occupied[idx] = false
	q.entries[idx] = packet.Packet{}
}

// Add enqueues p, merging into a matching in-flight entry by block address.
// Returns the matched slot index on a merge, -1 for a fresh insertion, or
// -2 if the queue was full and nothing could be merged.
func (q *PacketQueue) Add(currentCycle uint64, p *packet.Packet) int {
	if idx := q.CheckQueue(p.Address); idx >= 0 {
		q.merge(idx, p)
		q.Merged++
		return idx
	}

	if q.Occupancy() == q.size {
		q.Full++
		return -2
	}

	idx := q.tail
	p.EventCycle = max64(p.EventCycle, currentCycle) + uint64(q.latency)
	q.entries[idx] = *p
	q.occupied[idx] = true
	q.tail = (q.tail + 1) % q.size

	q.ToCache++
	q.Access++
	return -1
}

// merge folds an incoming duplicate into the existing entry at idx per the
// fill-level narrowing / routing-bit OR-ing / prefetch-supersede rules.
func (q *PacketQueue) merge(idx int, incoming *packet.Packet) {
	existing := &q.entries[idx]

	if existing.Type == packet.Prefetch && incoming.Type != packet.Prefetch {
		returned := existing.Returned
		eventCycle := existing.EventCycle
		*existing = *incoming
		existing.Returned = returned
		existing.EventCycle = eventCycle
		return
	}

	if incoming.FillLevel < existing.FillLevel {
		existing.FillLevel = incoming.FillLevel
	}
	existing.FillL1I = existing.FillL1I || incoming.FillL1I
	existing.FillL1D = existing.FillL1D || incoming.FillL1D
	existing.Instruction = existing.Instruction || incoming.Instruction
	existing.IsData = existing.IsData || incoming.IsData
	unionDependencies(existing, incoming)
}

// unionDependencies merges incoming's instruction/load/store dependency
// index sets into existing and sets the corresponding *_merged flags.
func unionDependencies(existing, incoming *packet.Packet) {
	if len(incoming.RobIndexDependOnMe) > 0 {
		existing.RobIndexDependOnMe = append(existing.RobIndexDependOnMe, incoming.RobIndexDependOnMe...)
		existing.InstrMerged = true
	}
	if len(incoming.LqIndexDependOnMe) > 0 {
		existing.LqIndexDependOnMe = append(existing.LqIndexDependOnMe, incoming.LqIndexDependOnMe...)
		existing.LoadMerged = true
	}
	if len(incoming.SqIndexDependOnMe) > 0 {
		existing.SqIndexDependOnMe = append(existing.SqIndexDependOnMe, incoming.SqIndexDependOnMe...)
		existing.StoreMerged = true
	}
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
