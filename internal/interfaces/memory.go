// Package interfaces defines the internal contracts shared across the cache
// hierarchy, kept separate from the concrete packet/cache packages to avoid
// import cycles between levels that reference each other (upper/lower).
package interfaces

import "github.com/archsim/llcsim/internal/packet"

// Memory is the contract every level of the hierarchy presents to the level
// above it: a place to enqueue reads, writes and prefetches, and a place
// that pushes completed fills back up. DRAM implements it as a terminal
// level with no lower level and no PQ.
type Memory interface {
	// AddRQ enqueues a demand read (load, RFO, or translation). Returns -2
	// when the queue is full, -1 for a fresh insertion, and the matched
	// slot index when the request merged into an in-flight entry.
	AddRQ(p *packet.Packet) int
	// AddWQ enqueues a writeback or RFO-store-queue request.
	AddWQ(p *packet.Packet) int
	// AddPQ enqueues a prefetch request.
	AddPQ(p *packet.Packet) int
	// ReturnData delivers a completed fill back to the level that requested
	// it, invoked by the lower level once its own handle_fill completes.
	ReturnData(p *packet.Packet)
	// Operate advances this level's pipeline by exactly one cycle:
	// fill, writeback, read, prefetch, in that fixed order.
	Operate()
	// GetOccupancy reports the current occupancy of queueType (0=MSHR,
	// 1=RQ, 2=WQ, 3=PQ) for the given address.
	GetOccupancy(queueType int, address uint64) int
	// GetSize reports the capacity of queueType for the given address.
	GetSize(queueType int, address uint64) int
	// IncrementWQFull records that a writeback was blocked on this level's
	// full write queue, charged against the requester that tried to evict
	// into it.
	IncrementWQFull(address uint64)
}

// Observer receives accounting events as the pipeline processes packets.
// Implementations must be safe to call from the single driver goroutine;
// no concurrent calls are made, but implementations may be shared across
// multiple Hierarchy instances in tests.
type Observer interface {
	ObserveAccess(cpu int, cacheName string, kind packet.PacketType, hit bool)
	ObserveStall(cpu int, cacheName string, kind packet.PacketType)
	ObserveMSHRMerge(cpu int, cacheName string, kind packet.PacketType)
	ObservePartition(cycle uint64, allocations []int)
	// ObserveMissLatency records cycles elapsed between a miss's enqueue and
	// its matured fill, accumulated only once warm-up has completed.
	ObserveMissLatency(cpu int, cacheName string, cycles uint64)
	// ObservePrefetchIssued/Useful/Useless/Filled track prefetch accuracy:
	// requests accepted into a PQ, prefetched blocks a demand later
	// touched, prefetched blocks evicted untouched, and completed installs.
	ObservePrefetchIssued(cpu int, cacheName string)
	ObservePrefetchUseful(cpu int, cacheName string)
	ObservePrefetchUseless(cpu int, cacheName string)
	ObservePrefetchFilled(cpu int, cacheName string)
}
