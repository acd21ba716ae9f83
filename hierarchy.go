// Package llcsim builds and drives a multi-cpu cache hierarchy: private
// ITLB/DTLB/STLB/L1I/L1D/L2 per cpu feeding a shared, UCP-partitioned LLC
// backed by a fixed-latency DRAM model.
package llcsim

import (
	"github.com/archsim/llcsim/internal/cache"
	"github.com/archsim/llcsim/internal/constants"
	"github.com/archsim/llcsim/internal/dram"
	"github.com/archsim/llcsim/internal/logging"
	"github.com/archsim/llcsim/internal/packet"
	"github.com/archsim/llcsim/internal/prefetch"
)

// HierarchyParams configures a simulated cache hierarchy: per-level
// geometry, cpu count, and the optional LLC bypass/translation hooks.
type HierarchyParams struct {
	NumCPUs int

	ITLB, DTLB, STLB constants.CacheGeometry
	L1I, L1D, L2, LLC constants.CacheGeometry

	DRAMLatency int

	// Bypass enables the LLC's optional install-skipping admission policy;
	// it only takes effect when a bypass policy is also installed via
	// Hierarchy.SetLLCBypassPolicy.
	Bypass bool

	// VaToPA resolves a miss's virtual address once it reaches the STLB;
	// a default identity mapping is used if nil.
	VaToPA cache.VaToPA
}

// DefaultHierarchyParams returns the default per-level sizing for numCPUs
// cpus; LLC set count and MSHR size scale by NumCPUs.
func DefaultHierarchyParams(numCPUs int) *HierarchyParams {
	llc := constants.LLC
	llc.Sets *= numCPUs
	llc.MSHRSize *= numCPUs

	return &HierarchyParams{
		NumCPUs:     numCPUs,
		ITLB:        constants.ITLB,
		DTLB:        constants.DTLB,
		STLB:        constants.STLB,
		L1I:         constants.L1I,
		L1D:         constants.L1D,
		L2:          constants.L2C,
		LLC:         llc,
		DRAMLatency: constants.DRAMLatency,
	}
}

// simClock is the single cycle counter handed to every level: callers read
// it through the narrow cache.Clock/dram.Clock interfaces rather than
// touching shared mutable state directly.
type simClock struct {
	cycles []uint64
}

func newSimClock(numCPUs int) *simClock { return &simClock{cycles: make([]uint64, numCPUs)} }

func (s *simClock) Cycle(cpu int) uint64 { return s.cycles[cpu] }

// Advance steps every cpu's cycle counter by one. All cpus share a single
// clock domain; heterogeneous per-core clock ratios are not modelled.
func (s *simClock) Advance() {
	for i := range s.cycles {
		s.cycles[i]++
	}
}

// Hierarchy owns one simulated multi-cpu cache hierarchy end to end: every
// level's Cache, the shared DRAM terminal, the clock, and the Stats/Observer
// pair the pipeline reports into.
type Hierarchy struct {
	Params *HierarchyParams
	Stats  *Stats
	Log    *logging.Logger

	clock *simClock
	obs   *StatsObserver

	ITLB, DTLB, STLB []*cache.Cache
	L1I, L1D, L2     []*cache.Cache
	LLC              *cache.Cache
	DRAM             *dram.Memory
}

// NewHierarchy constructs every level, wires upper/lower back-pointers and
// per-level prefetchers, and returns a ready-to-step Hierarchy.
func NewHierarchy(params *HierarchyParams, log *logging.Logger) *Hierarchy {
	if log == nil {
		log = logging.Default()
	}
	h := &Hierarchy{
		Params: params,
		Stats:  NewStats(params.NumCPUs),
		Log:    log,
		clock:  newSimClock(params.NumCPUs),
	}
	h.obs = NewStatsObserver(h.Stats)

	h.DRAM = dram.New(h.clock, params.LLC.RQSize, params.LLC.WQSize, params.DRAMLatency)

	h.LLC = cache.New(cache.Config{
		Name: "LLC", Type: cache.LLC, FillLevel: packet.FillLLC,
		Geometry: params.LLC, NumCPUs: params.NumCPUs, Bypass: params.Bypass,
	}, h.clock, log, h.obs)
	h.LLC.SetLower(h.DRAM)
	h.LLC.SetPrefetcher(prefetch.NewNextLine(h.LLC, int(packet.FillLLC)))
	h.DRAM.SetUpper(h.LLC)

	h.ITLB = make([]*cache.Cache, params.NumCPUs)
	h.DTLB = make([]*cache.Cache, params.NumCPUs)
	h.STLB = make([]*cache.Cache, params.NumCPUs)
	h.L1I = make([]*cache.Cache, params.NumCPUs)
	h.L1D = make([]*cache.Cache, params.NumCPUs)
	h.L2 = make([]*cache.Cache, params.NumCPUs)

	for cpu := 0; cpu < params.NumCPUs; cpu++ {
		h.buildCPU(cpu, params, log)
	}

	return h
}

func (h *Hierarchy) buildCPU(cpu int, params *HierarchyParams, log *logging.Logger) {
	name := func(base string) string { return cacheInstanceName(base, cpu) }

	vaToPA := params.VaToPA
	if vaToPA == nil {
		vaToPA = identityVaToPA
	}
	stlb := cache.New(cache.Config{Name: name("STLB"), Type: cache.STLB, FillLevel: packet.FillL2, Geometry: params.STLB, NumCPUs: 1}, h.clock, log, h.obs)
	stlb.SetVaToPA(vaToPA)

	dtlb := cache.New(cache.Config{Name: name("DTLB"), Type: cache.DTLB, FillLevel: packet.FillL1, Geometry: params.DTLB, NumCPUs: 1}, h.clock, log, h.obs)
	dtlb.SetLower(stlb)

	itlb := cache.New(cache.Config{Name: name("ITLB"), Type: cache.ITLB, FillLevel: packet.FillL1, Geometry: params.ITLB, NumCPUs: 1}, h.clock, log, h.obs)
	itlb.SetLower(stlb)

	l2 := cache.New(cache.Config{Name: name("L2"), Type: cache.L2, FillLevel: packet.FillL2, Geometry: params.L2, NumCPUs: 1}, h.clock, log, h.obs)
	l2.SetLower(h.LLC)
	l2.SetPrefetcher(prefetch.NewNextLine(l2, int(packet.FillL2)))

	l1d := cache.New(cache.Config{Name: name("L1D"), Type: cache.L1D, FillLevel: packet.FillL1, Geometry: params.L1D, NumCPUs: 1}, h.clock, log, h.obs)
	l1d.SetLower(l2)
	l1d.SetPrefetcher(prefetch.NewNextLine(l1d, int(packet.FillL1)))

	l1i := cache.New(cache.Config{Name: name("L1I"), Type: cache.L1I, FillLevel: packet.FillL1, Geometry: params.L1I, NumCPUs: 1}, h.clock, log, h.obs)
	l1i.SetLower(l2)

	// Each level returns to the one immediately above it: the LLC hands
	// both instruction and data fills to the cpu's unified L2, which then
	// splits them across L1I/L1D; the STLB does the same for its TLBs.
	h.LLC.SetUpperICache(cpu, l2)
	h.LLC.SetUpperDCache(cpu, l2)
	l2.SetUpperICache(cpu, l1i)
	l2.SetUpperDCache(cpu, l1d)
	stlb.SetUpperICache(cpu, itlb)
	stlb.SetUpperDCache(cpu, dtlb)

	h.ITLB[cpu] = itlb
	h.DTLB[cpu] = dtlb
	h.STLB[cpu] = stlb
	h.L1I[cpu] = l1i
	h.L1D[cpu] = l1d
	h.L2[cpu] = l2
}

func cacheInstanceName(base string, cpu int) string {
	if cpu == 0 {
		return base
	}
	return base + "#" + itoa(cpu)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func identityVaToPA(cpu int, instrID, fullAddr, blockAddr uint64, mode int) uint64 { return blockAddr }

// Step advances the whole hierarchy by one simulated cycle: every cpu's
// private levels operate first, then the shared LLC, then DRAM, in a fixed
// per-tick traversal order.
func (h *Hierarchy) Step() {
	for cpu := 0; cpu < h.Params.NumCPUs; cpu++ {
		h.ITLB[cpu].Operate()
		h.DTLB[cpu].Operate()
		h.STLB[cpu].Operate()
		h.L1I[cpu].Operate()
		h.L1D[cpu].Operate()
		h.L2[cpu].Operate()
	}
	h.LLC.Operate()
	h.DRAM.Operate()
	h.clock.Advance()
}

// Run steps the hierarchy for cycles ticks.
func (h *Hierarchy) Run(cycles uint64) {
	for i := uint64(0); i < cycles; i++ {
		h.Step()
	}
}

// Cycle returns cpu's current cycle count.
func (h *Hierarchy) Cycle(cpu int) uint64 { return h.clock.Cycle(cpu) }

// IssueLoad enqueues a demand load for byte address addr into cpu's L1D,
// returning add_rq's protocol result: -2 full, -1 fresh insertion, merge
// index otherwise. The packet's Address is addr's block number.
func (h *Hierarchy) IssueLoad(cpu int, addr, ip uint64, instrID uint64) int {
	return h.L1D[cpu].AddRQ(&packet.Packet{
		CPU: cpu, Type: packet.Load, Address: addr >> LogBlockSize, FullAddr: addr, IP: ip, InstrID: instrID,
		FillLevel: packet.FillL1, FillL1D: true, IsData: true,
		CycleEnqueued: h.clock.Cycle(cpu),
	})
}

// IssueStore enqueues an RFO into cpu's L1D write queue.
func (h *Hierarchy) IssueStore(cpu int, addr, ip uint64, instrID uint64) int {
	return h.L1D[cpu].AddWQ(&packet.Packet{
		CPU: cpu, Type: packet.RFO, Address: addr >> LogBlockSize, FullAddr: addr, IP: ip, InstrID: instrID,
		FillLevel: packet.FillL1, FillL1D: true, IsData: true,
		CycleEnqueued: h.clock.Cycle(cpu),
	})
}

// IssueInstrFetch enqueues an instruction fetch into cpu's L1I.
func (h *Hierarchy) IssueInstrFetch(cpu int, addr, ip uint64, instrID uint64) int {
	return h.L1I[cpu].AddRQ(&packet.Packet{
		CPU: cpu, Type: packet.Load, Address: addr >> LogBlockSize, FullAddr: addr, IP: ip, InstrID: instrID,
		FillLevel: packet.FillL1, FillL1I: true, Instruction: true,
		CycleEnqueued: h.clock.Cycle(cpu),
	})
}

// IssueInstrTranslation enqueues an instruction-address translation into
// cpu's ITLB; the reply carries the physical address once the STLB (or the
// va_to_pa callback behind it) resolves the miss.
func (h *Hierarchy) IssueInstrTranslation(cpu int, vaddr uint64, instrID uint64) int {
	return h.ITLB[cpu].AddRQ(&packet.Packet{
		CPU: cpu, Type: packet.Translation, Address: vaddr >> LogPageSize, FullAddr: vaddr,
		InstrID: instrID, FillLevel: packet.FillL1, FillL1I: true, Instruction: true,
		CycleEnqueued: h.clock.Cycle(cpu),
	})
}

// IssueDataTranslation enqueues a data-address translation into cpu's DTLB.
func (h *Hierarchy) IssueDataTranslation(cpu int, vaddr uint64, instrID uint64) int {
	return h.DTLB[cpu].AddRQ(&packet.Packet{
		CPU: cpu, Type: packet.Translation, Address: vaddr >> LogPageSize, FullAddr: vaddr,
		InstrID: instrID, FillLevel: packet.FillL1, FillL1D: true, IsData: true,
		CycleEnqueued: h.clock.Cycle(cpu),
	})
}

// DrainL1D/DrainL1I/DrainITLB/DrainDTLB return and clear the replies the
// core front-end has not yet consumed from cpu's core-facing levels.
func (h *Hierarchy) DrainL1D(cpu int) []packet.Packet  { return h.L1D[cpu].Processed() }
func (h *Hierarchy) DrainL1I(cpu int) []packet.Packet  { return h.L1I[cpu].Processed() }
func (h *Hierarchy) DrainITLB(cpu int) []packet.Packet { return h.ITLB[cpu].Processed() }
func (h *Hierarchy) DrainDTLB(cpu int) []packet.Packet { return h.DTLB[cpu].Processed() }

// SetLLCBypassPolicy installs the LLC's per-fill admission decision; only
// consulted when Params.Bypass is true.
func (h *Hierarchy) SetLLCBypassPolicy(fn func(set, cpu int) bool) { h.LLC.SetBypassPolicy(fn) }

// WarmUp gates whether miss latency is being accumulated; the access, hit,
// miss, stall, merge and prefetch counters are recorded regardless.
func (h *Hierarchy) WarmUp(complete bool) { h.Stats.WarmUp(complete) }
