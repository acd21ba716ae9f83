package cache

import (
	"github.com/archsim/llcsim/internal/cerr"
	"github.com/archsim/llcsim/internal/constants"
	"github.com/archsim/llcsim/internal/packet"
	"github.com/archsim/llcsim/internal/prefetch"
)

// Operate advances this level by exactly one cycle: fill, writeback, read,
// prefetch, in that fixed order. Fills free MSHR slots,
// writebacks make room in the lower level's WQ, reads consume the budget
// writebacks freed up, and prefetches spend whatever of that budget reads
// didn't use.
func (c *Cache) Operate() {
	if c.cfg.Type == LLC {
		c.maybeReconfigurePartitions()
	}

	for i := 0; i < c.cfg.Geometry.MaxFill; i++ {
		if !c.handleFillOnce() {
			break
		}
	}

	c.handleWriteback()

	budget := c.cfg.Geometry.MaxRead
	budget = c.handleRead(budget)
	c.handlePrefetch(budget)
}

// maybeReconfigurePartitions checks the UCP reconfiguration cadence against
// cpu 0's cycle count and, when due, applies new way allocations to the
// partitioned grid.
func (c *Cache) maybeReconfigurePartitions() {
	allocations, due := c.Partitioner.MaybeReconfigure(c.clock.Cycle(0))
	if !due {
		return
	}
	c.grid.Reallocate(allocations)
	c.obs.ObservePartition(c.clock.Cycle(0), allocations)
	c.log.WithCache(c.cfg.Name).WithCycle(c.clock.Cycle(0)).Debug("partition reallocated", "ways", allocations)
}

// handleFillOnce processes the earliest-maturing MSHR entry, if any matured
// this cycle. Returns false when there was nothing to do (empty MSHR, not
// yet matured, or a dirty-eviction stall), signalling the MaxFill loop to
// stop early.
func (c *Cache) handleFillOnce() bool {
	idx := c.mshr.NextFillIndex
	if idx >= c.mshr.Size() {
		return false
	}
	entry := c.mshr.Entry(idx)
	if entry == nil {
		return false
	}
	cycle := c.clock.Cycle(entry.CPU)
	if entry.EventCycle > cycle {
		return false
	}

	set := c.getSet(entry.Address)
	bypass := c.cfg.Type == LLC && c.cfg.Bypass && c.bypassPolicy != nil && c.bypassPolicy(set, entry.CPU)

	// way == Ways signals a bypassed install to the prefetcher callback.
	way := c.cfg.Geometry.Ways
	var evictedAddr uint64
	if !bypass {
		way = c.grid.Victim(set, entry.CPU)
		victim := c.grid.At(set, way)
		evictedAddr = victim.Address
		if victim.Valid && victim.Dirty {
			if c.lower == nil {
				if c.cfg.Type == STLB {
					c.violation("handle_fill", entry.CPU, cerr.ErrCodeDirtySTLBVictim, "stlb produced a dirty victim")
				}
			} else if c.lower.GetOccupancy(QueueWQ, victim.Address) >= c.lower.GetSize(QueueWQ, victim.Address) {
				c.lower.IncrementWQFull(victim.Address)
				return false
			} else {
				c.lower.AddWQ(&packet.Packet{
					CPU:       victim.CPU,
					Type:      packet.Writeback,
					Address:   victim.Address,
					FullAddr:  victim.FullAddr,
					Data:      victim.Data,
					FillLevel: c.cfg.FillLevel << 1,
				})
			}
		}
		// Counted only once the eviction is certain; a lower-WQ stall above
		// retries this same victim next cycle.
		if victim.Valid && victim.Prefetch && !victim.Used {
			c.obs.ObservePrefetchUseless(victim.CPU, c.cfg.Name)
		}
	}

	isPF := entry.Type == packet.Prefetch
	entry.PFMetadata = c.prefetcher.CacheFill(entry.CPU, entry.Address, set, way, isPF, evictedAddr, entry.PFMetadata)

	if !bypass {
		tag := blockTag(entry.Address, c.cfg.Geometry.Sets)
		c.grid.Install(set, way, entry.CPU, tag, entry.Address, entry.FullAddr, entry.Data, entry.IP, entry.InstrID)
		b := c.grid.At(set, way)
		b.Prefetch = isPF
		b.Used = false
		c.grid.Touch(set, way)

		if c.cfg.Type == L1D && (entry.Type == packet.RFO || entry.Type == packet.Writeback) {
			b.Dirty = true
		}

		if c.cfg.Type.isCoreFacing() && entry.Type != packet.Prefetch && len(c.processed) < c.processedCap {
			c.processed = append(c.processed, *entry)
		}
		if isPF {
			c.obs.ObservePrefetchFilled(entry.CPU, c.cfg.Name)
		}
	}

	c.obs.ObserveAccess(entry.CPU, c.cfg.Name, entry.Type, false)

	if entry.FillLevel < c.cfg.FillLevel {
		c.routeUp(entry)
	}

	c.obs.ObserveMissLatency(entry.CPU, c.cfg.Name, cycle-entry.CycleEnqueued)

	c.mshr.Remove(idx)
	return true
}

// handleWriteback drains up to MaxWrite matured WQ heads per cycle.
func (c *Cache) handleWriteback() {
	for i := 0; i < c.cfg.Geometry.MaxWrite; i++ {
		if !c.handleWritebackOnce() {
			break
		}
	}
}

// handleWritebackOnce inspects the WQ head and, if matured, either updates
// an in-cache hit or drives an eviction-style install on a miss. Returns
// false when nothing was consumed (empty WQ, immature head, or a stall).
func (c *Cache) handleWritebackOnce() bool {
	head := c.wq.HeadEntry()
	if head == nil {
		return false
	}
	cycle := c.clock.Cycle(head.CPU)
	if head.EventCycle > cycle {
		return false
	}
	c.probeATD(head)

	set := c.getSet(head.Address)
	tag := blockTag(head.Address, c.cfg.Geometry.Sets)
	way := c.grid.Find(set, tag, head.CPU)

	if way >= 0 {
		c.grid.Touch(set, way)
		b := c.grid.At(set, way)
		b.Dirty = true
		if c.cfg.Type == STLB || c.cfg.Type == DTLB || c.cfg.Type == ITLB {
			head.TranslatedPA = b.Data
		}
		if head.FillLevel < c.cfg.FillLevel {
			c.routeUp(head)
		}
		c.obs.ObserveAccess(head.CPU, c.cfg.Name, head.Type, true)
		c.wq.RemoveHead()
		return true
	}

	if c.cfg.Type == L1D {
		return c.handleWritebackMissAsRFO(head, cycle)
	}

	// Non-L1D writeback miss: writeback-allocate. An eviction-driven
	// install with dirty=1 set on the installed block, no MSHR round-trip.
	way = c.grid.Victim(set, head.CPU)
	victim := c.grid.At(set, way)
	if victim.Valid && victim.Dirty && c.lower != nil {
		if c.lower.GetOccupancy(QueueWQ, victim.Address) >= c.lower.GetSize(QueueWQ, victim.Address) {
			c.lower.IncrementWQFull(victim.Address)
			return false
		}
		c.lower.AddWQ(&packet.Packet{
			CPU: victim.CPU, Type: packet.Writeback,
			Address: victim.Address, FullAddr: victim.FullAddr, Data: victim.Data,
			FillLevel: c.cfg.FillLevel << 1,
		})
	}
	// Past the stall point, so a retried head cannot count the same victim
	// twice.
	if victim.Valid && victim.Prefetch && !victim.Used {
		c.obs.ObservePrefetchUseless(victim.CPU, c.cfg.Name)
	}
	c.grid.Install(set, way, head.CPU, tag, head.Address, head.FullAddr, head.Data, head.IP, head.InstrID)
	c.grid.At(set, way).Dirty = true
	c.grid.Touch(set, way)
	c.obs.ObserveAccess(head.CPU, c.cfg.Name, head.Type, false)
	c.wq.RemoveHead()
	return true
}

func (c *Cache) handleWritebackMissAsRFO(head *packet.Packet, cycle uint64) bool {
	if mi := c.mshr.Check(head.Address); mi >= 0 {
		c.mshr.Coalesce(mi, head)
		c.obs.ObserveMSHRMerge(head.CPU, c.cfg.Name, head.Type)
		c.wq.RemoveHead()
		return true
	}
	if c.mshr.Occupancy() == c.mshr.Size() {
		c.obs.ObserveStall(head.CPU, c.cfg.Name, head.Type)
		return false
	}
	req := *head
	req.Type = packet.RFO
	c.mshr.Allocate(cycle, &req)
	if c.lower != nil {
		c.lower.AddRQ(&req)
	}
	c.wq.RemoveHead()
	return true
}

// handleRead drains up to budget matured RQ entries, hitting against the
// grid or registering/coalescing a miss in the MSHR. Returns the unused
// budget so handlePrefetch can spend it.
func (c *Cache) handleRead(budget int) int {
	for budget > 0 {
		head := c.rq.HeadEntry()
		if head == nil {
			break
		}
		cycle := c.clock.Cycle(head.CPU)
		if head.EventCycle > cycle {
			break
		}
		c.probeATD(head)

		set := c.getSet(head.Address)
		tag := blockTag(head.Address, c.cfg.Geometry.Sets)
		way := c.grid.Find(set, tag, head.CPU)

		if way >= 0 {
			c.completeReadHit(head, set, way, true)
			c.rq.RemoveHead()
			budget--
			continue
		}

		if !c.registerReadMiss(head, cycle, true) {
			break
		}
		c.rq.RemoveHead()
		budget--
	}
	return budget
}

// completeReadHit applies the shared hit-path bookkeeping for both
// handle_read and handle_prefetch: data delivery, prefetcher callbacks,
// replacement update, upward routing, and pf_useful accounting.
// deliverToCore gates the PROCESSED deposit (never done for prefetch hits).
func (c *Cache) completeReadHit(head *packet.Packet, set, way int, deliverToCore bool) {
	b := c.grid.At(set, way)
	head.Data = b.Data
	if c.cfg.Type == STLB || c.cfg.Type == DTLB || c.cfg.Type == ITLB {
		head.TranslatedPA = b.Data
	}

	if deliverToCore && c.cfg.Type.isCoreFacing() && len(c.processed) < c.processedCap {
		c.processed = append(c.processed, *head)
	}

	if deliverToCore {
		if head.Type == packet.Load {
			c.prefetcher.Operate(head.CPU, head.Address, head.IP, true, int(head.Type))
		}
	} else if head.PFOriginLevel < c.cfg.FillLevel {
		c.prefetcher.Operate(head.CPU, head.Address, head.IP, true, int(head.Type))
	}

	c.grid.Touch(set, way)

	if head.FillLevel < c.cfg.FillLevel {
		c.routeUp(head)
	}

	if b.Prefetch && !b.Used {
		c.obs.ObservePrefetchUseful(head.CPU, c.cfg.Name)
		b.Prefetch = false
	}
	b.Used = true

	c.obs.ObserveAccess(head.CPU, c.cfg.Name, head.Type, true)
}

// registerReadMiss implements the shared handle_read/handle_prefetch miss
// branch: coalesce into an existing MSHR entry, or allocate a new one and
// forward to the lower level. isDemand picks the downstream queue (RQ for
// demand traffic, PQ for prefetches below a non-LLC level) and gates the
// prefetcher callback. Returns false when the head must stay queued
// (stall) so the caller stops draining further entries this cycle.
func (c *Cache) registerReadMiss(head *packet.Packet, cycle uint64, isDemand bool) bool {
	if mi := c.mshr.Check(head.Address); mi >= 0 {
		c.mshr.Coalesce(mi, head)
		c.obs.ObserveMSHRMerge(head.CPU, c.cfg.Name, head.Type)
		if isDemand && head.Type == packet.Load {
			c.prefetcher.Operate(head.CPU, head.Address, head.IP, false, int(head.Type))
		}
		return true
	}

	if c.mshr.Occupancy() == c.mshr.Size() {
		c.obs.ObserveStall(head.CPU, c.cfg.Name, head.Type)
		c.log.WithCache(c.cfg.Name).WithCPU(head.CPU).WithCycle(cycle).Debug("mshr full, stalling", "address", head.Address)
		return false
	}
	if c.cfg.Type == LLC && c.lower != nil &&
		c.lower.GetOccupancy(QueueRQ, head.Address) >= c.lower.GetSize(QueueRQ, head.Address) {
		c.obs.ObserveStall(head.CPU, c.cfg.Name, head.Type)
		c.log.WithCache(c.cfg.Name).WithCPU(head.CPU).WithCycle(cycle).Debug("lower rq full, stalling", "address", head.Address)
		return false
	}

	c.mshr.Allocate(cycle, head)

	if c.cfg.Type == STLB {
		pa := uint64(0)
		if c.vaToPA != nil {
			pa = c.vaToPA(head.CPU, head.InstrID, head.FullAddr, head.Address, 0)
		}
		resp := *head
		resp.Data = pa
		resp.TranslatedPA = pa
		c.ReturnData(&resp)
	} else if c.lower != nil {
		if isDemand {
			c.lower.AddRQ(head)
		} else {
			c.forwardPrefetchLower(head)
		}
	}

	if isDemand && head.Type == packet.Load {
		c.prefetcher.Operate(head.CPU, head.Address, head.IP, false, int(head.Type))
	}
	return true
}

// handlePrefetch mirrors handleRead, spending whatever budget reads left,
// except PROCESSED delivery is skipped, the prefetcher is invoked only on a
// hit whose PFOriginLevel is lower than this level's FillLevel (a prefetch
// issued by a level nearer the core), and a miss forwards to the lower
// level's PQ (RQ for the LLC, since DRAM has no PQ). Pass-through prefetches
// are forwarded without invoking the prefetcher.
func (c *Cache) handlePrefetch(budget int) int {
	if c.pq == nil {
		return budget
	}
	for budget > 0 {
		head := c.pq.HeadEntry()
		if head == nil {
			break
		}
		cycle := c.clock.Cycle(head.CPU)
		if head.EventCycle > cycle {
			break
		}

		set := c.getSet(head.Address)
		tag := blockTag(head.Address, c.cfg.Geometry.Sets)
		way := c.grid.Find(set, tag, head.CPU)

		if way >= 0 {
			c.completeReadHit(head, set, way, false)
			c.pq.RemoveHead()
			budget--
			continue
		}

		if int(head.FillLevel) <= int(c.cfg.FillLevel) {
			if !c.registerReadMiss(head, cycle, false) {
				break
			}
		} else if c.lower != nil {
			c.forwardPrefetchLower(head)
		}
		c.pq.RemoveHead()
		budget--
	}
	return budget
}

// forwardPrefetchLower sends a prefetch one level down: the lower PQ for
// every level but the LLC, whose lower level is DRAM and has no PQ.
func (c *Cache) forwardPrefetchLower(head *packet.Packet) {
	if c.cfg.Type == LLC {
		c.lower.AddRQ(head)
		return
	}
	c.lower.AddPQ(head)
}

// routeUp delivers a completed access to the level immediately above, so
// every intermediate level retires its own MSHR entry and installs the line
// on its own fill path. The LLC and STLB sit below a unified next level and
// pick the instruction or data side by the Instruction/IsData bits; the L2
// (and the TLBs' own parents) split by the FillL1I/FillL1D routing bits.
func (c *Cache) routeUp(p *packet.Packet) {
	if c.cfg.Type == LLC || c.cfg.Type == STLB {
		if p.Instruction {
			if up := c.upperICache[p.CPU]; up != nil {
				up.ReturnData(p)
			}
		}
		if p.IsData {
			if up := c.upperDCache[p.CPU]; up != nil {
				up.ReturnData(p)
			}
		}
		return
	}
	if p.FillL1I {
		if up := c.upperICache[p.CPU]; up != nil {
			up.ReturnData(p)
		}
	}
	if p.FillL1D {
		if up := c.upperDCache[p.CPU]; up != nil {
			up.ReturnData(p)
		}
	}
}

// PrefetchLine implements prefetch.Injector: the callback a level's own
// prefetcher uses to request a line, rejected on a cross-page request or a
// full PQ.
func (c *Cache) PrefetchLine(cpu int, ip, baseAddr, pfAddr uint64, fillLevel int, metadata uint32) bool {
	if prefetch.CrossesPage(baseAddr, pfAddr) {
		return false
	}
	if c.pq == nil || c.pq.IsFull() {
		return false
	}
	p := &packet.Packet{
		CPU:           cpu,
		Type:          packet.Prefetch,
		Address:       pfAddr,
		FullAddr:      pfAddr << constants.LogBlockSize,
		IP:            ip,
		FillLevel:     packet.FillLevel(fillLevel),
		PFOriginLevel: c.cfg.FillLevel,
		PFMetadata:    metadata,
	}
	// A prefetch needs its routing bits set, or a completed fill below has
	// nowhere to return to on the way back up.
	switch c.cfg.Type {
	case L1I:
		p.Instruction = true
		p.FillL1I = true
	case L1D:
		p.IsData = true
		p.FillL1D = true
	default:
		p.IsData = true
	}
	if c.pq.Add(c.clock.Cycle(cpu), p) == -2 {
		return false
	}
	c.obs.ObservePrefetchIssued(cpu, c.cfg.Name)
	return true
}

// Processed drains and returns every reply the core front-end has not yet
// consumed from the PROCESSED outflow queue.
func (c *Cache) Processed() []packet.Packet {
	out := c.processed
	c.processed = nil
	return out
}

var _ prefetch.Injector = (*Cache)(nil)
