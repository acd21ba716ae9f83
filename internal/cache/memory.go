package cache

import (
	"github.com/archsim/llcsim/internal/cerr"
	"github.com/archsim/llcsim/internal/packet"
)

// AddRQ enqueues a demand read. Before touching RQ at all, it checks the WQ
// for a pending writeback to the same address and, on a hit, serves the
// request directly out of that in-flight entry instead of enqueueing.
// Returns -2 when full, -1 for a fresh insertion or a WQ-forward, and the
// matched slot index for a merge.
func (c *Cache) AddRQ(p *packet.Packet) int {
	if idx := c.wq.CheckQueue(p.Address); idx >= 0 {
		c.forwardFromWQ(p, idx, true)
		return -1
	}
	return c.rq.Add(c.clock.Cycle(p.CPU), p)
}

// AddWQ enqueues a writeback/RFO-store request. The ATD (LLC only) is
// probed when the matured entry is actually dequeued in handleWriteback, not
// here; an enqueue that PacketQueue.Add later merges into an existing
// entry must never drive a second ATD probe.
func (c *Cache) AddWQ(p *packet.Packet) int {
	return c.wq.Add(c.clock.Cycle(p.CPU), p)
}

// AddPQ enqueues a prefetch request; levels without a PQ (translation
// caches) report -2 (full) unconditionally. Like AddRQ, a pending writeback
// to the same address is served directly instead of queueing the prefetch.
func (c *Cache) AddPQ(p *packet.Packet) int {
	if c.pq == nil {
		return -2
	}
	if idx := c.wq.CheckQueue(p.Address); idx >= 0 {
		c.forwardFromWQ(p, idx, false)
		return -1
	}
	return c.pq.Add(c.clock.Cycle(p.CPU), p)
}

// forwardFromWQ serves p directly out of the in-flight writeback at wq slot
// idx instead of ever touching RQ/PQ. deliverToCore gates the PROCESSED
// deposit exactly like completeReadHit's demand-vs-prefetch split.
func (c *Cache) forwardFromWQ(p *packet.Packet, idx int, deliverToCore bool) {
	entry := c.wq.EntryAt(idx)
	p.Data = entry.Data
	c.wq.RecordForward()

	if deliverToCore && c.cfg.Type.isCoreFacing() && len(c.processed) < c.processedCap {
		c.processed = append(c.processed, *p)
	}
	if p.Type == packet.Load {
		c.prefetcher.Operate(p.CPU, p.Address, p.IP, true, int(p.Type))
	}
	if p.FillLevel < c.cfg.FillLevel {
		c.routeUp(p)
	}
	c.obs.ObserveAccess(p.CPU, c.cfg.Name, p.Type, true)
}

// ReturnData resolves an in-flight miss; the address must match an MSHR
// entry or the pipeline's invariants have already been broken.
func (c *Cache) ReturnData(p *packet.Packet) {
	idx := c.mshr.ReturnData(c.clock.Cycle(p.CPU), p)
	if idx < 0 {
		c.violation("return_data", p.CPU, cerr.ErrCodeMissingMSHREntry, "no mshr entry for address")
	}
}

// GetOccupancy reports queueType's current occupancy (0=MSHR,1=RQ,2=WQ,3=PQ).
func (c *Cache) GetOccupancy(queueType int, address uint64) int {
	switch queueType {
	case QueueMSHR:
		return c.mshr.Occupancy()
	case QueueRQ:
		return c.rq.Occupancy()
	case QueueWQ:
		return c.wq.Occupancy()
	case QueuePQ:
		if c.pq == nil {
			return 0
		}
		return c.pq.Occupancy()
	default:
		return 0
	}
}

// GetSize reports queueType's capacity.
func (c *Cache) GetSize(queueType int, address uint64) int {
	switch queueType {
	case QueueMSHR:
		return c.mshr.Size()
	case QueueRQ:
		return c.rq.Size()
	case QueueWQ:
		return c.wq.Size()
	case QueuePQ:
		if c.pq == nil {
			return 0
		}
		return c.pq.Size()
	default:
		return 0
	}
}

// IncrementWQFull records that an upper level's dirty eviction stalled on
// this cache's full write queue.
func (c *Cache) IncrementWQFull(address uint64) {
	c.wq.Full++
}

// probeATD feeds an LLC arrival into the requesting cpu's auxiliary tag
// directory when the target set is one of the dynamically-sampled sets.
// Called from handleRead/handleWriteback at the
// moment a matured RQ/WQ head is actually processed, not at enqueue time,
// so a request that gets merged into an existing queue entry is never
// double-probed. A no-op on every non-LLC level.
func (c *Cache) probeATD(p *packet.Packet) {
	if c.cfg.Type != LLC {
		return
	}
	set := c.getSet(p.Address)
	sampled := c.Partitioner.ATD.SampledSetIndex(set, c.cfg.Geometry.Sets)
	if sampled < 0 {
		return
	}
	tag := blockTag(p.Address, c.cfg.Geometry.Sets)
	c.Partitioner.ATD.Probe(p.CPU, sampled, tag)
}
