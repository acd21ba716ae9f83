package llcsim

import (
	"sync"
	"sync/atomic"

	"github.com/archsim/llcsim/internal/packet"
)

// Stats is the top-level accounting surface: per-cpu, per-packet-type
// access/hit/miss counters, miss-latency accumulation, and prefetch
// usefulness bookkeeping, backed by atomic counters so concurrent readers
// never race with the pipeline recording them.
type Stats struct {
	numCPUs int

	access [][]atomic.Uint64
	hit    [][]atomic.Uint64
	miss   [][]atomic.Uint64

	totalMissLatency []atomic.Uint64
	stall            [][]atomic.Uint64
	mshrMerged       [][]atomic.Uint64

	prefetchIssued  []atomic.Uint64
	prefetchUseful  []atomic.Uint64
	prefetchUseless []atomic.Uint64
	prefetchFilled  []atomic.Uint64

	partitionEvents atomic.Uint64
	partitionMu     sync.Mutex
	lastAllocations []int

	warmUp atomic.Bool
}

// NewStats allocates per-cpu, per-type counter tables.
func NewStats(numCPUs int) *Stats {
	s := &Stats{numCPUs: numCPUs}
	s.access = make([][]atomic.Uint64, numCPUs)
	s.hit = make([][]atomic.Uint64, numCPUs)
	s.miss = make([][]atomic.Uint64, numCPUs)
	s.stall = make([][]atomic.Uint64, numCPUs)
	s.mshrMerged = make([][]atomic.Uint64, numCPUs)
	s.totalMissLatency = make([]atomic.Uint64, numCPUs)
	s.prefetchIssued = make([]atomic.Uint64, numCPUs)
	s.prefetchUseful = make([]atomic.Uint64, numCPUs)
	s.prefetchUseless = make([]atomic.Uint64, numCPUs)
	s.prefetchFilled = make([]atomic.Uint64, numCPUs)
	for c := 0; c < numCPUs; c++ {
		s.access[c] = make([]atomic.Uint64, packet.NumPacketTypes)
		s.hit[c] = make([]atomic.Uint64, packet.NumPacketTypes)
		s.miss[c] = make([]atomic.Uint64, packet.NumPacketTypes)
		s.stall[c] = make([]atomic.Uint64, packet.NumPacketTypes)
		s.mshrMerged[c] = make([]atomic.Uint64, packet.NumPacketTypes)
	}
	return s
}

// WarmUp gates whether miss-latency accumulation is active; no other
// counter consults it.
func (s *Stats) WarmUp(complete bool) { s.warmUp.Store(complete) }

func (s *Stats) warmedUp() bool { return s.warmUp.Load() }

func (s *Stats) RecordAccess(cpu int, t packet.PacketType, hit bool) {
	s.access[cpu][t].Add(1)
	if hit {
		s.hit[cpu][t].Add(1)
	} else {
		s.miss[cpu][t].Add(1)
	}
}

func (s *Stats) RecordStall(cpu int, t packet.PacketType) {
	s.stall[cpu][t].Add(1)
}

func (s *Stats) RecordMSHRMerge(cpu int, t packet.PacketType) {
	s.mshrMerged[cpu][t].Add(1)
}

func (s *Stats) RecordMissLatency(cpu int, cycles uint64) {
	if !s.warmedUp() {
		return
	}
	s.totalMissLatency[cpu].Add(cycles)
}

// RecordPartition keeps the most recent LLC way allocation and counts how
// many reconfigurations have run.
func (s *Stats) RecordPartition(allocations []int) {
	s.partitionEvents.Add(1)
	s.partitionMu.Lock()
	s.lastAllocations = append(s.lastAllocations[:0], allocations...)
	s.partitionMu.Unlock()
}

// PartitionEvents returns how many LLC reconfigurations have been applied.
func (s *Stats) PartitionEvents() uint64 { return s.partitionEvents.Load() }

// LastAllocations returns a copy of the most recently applied LLC way
// allocation, or nil if no reconfiguration has run yet.
func (s *Stats) LastAllocations() []int {
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()
	if s.lastAllocations == nil {
		return nil
	}
	return append([]int(nil), s.lastAllocations...)
}

func (s *Stats) RecordPrefetchIssued(cpu int)  { s.prefetchIssued[cpu].Add(1) }
func (s *Stats) RecordPrefetchUseful(cpu int)  { s.prefetchUseful[cpu].Add(1) }
func (s *Stats) RecordPrefetchUseless(cpu int) { s.prefetchUseless[cpu].Add(1) }
func (s *Stats) RecordPrefetchFilled(cpu int)  { s.prefetchFilled[cpu].Add(1) }

// CPUSnapshot is one cpu's point-in-time counters.
type CPUSnapshot struct {
	Access           [packet.NumPacketTypes]uint64
	Hit              [packet.NumPacketTypes]uint64
	Miss             [packet.NumPacketTypes]uint64
	Stall            [packet.NumPacketTypes]uint64
	MSHRMerged       [packet.NumPacketTypes]uint64
	TotalMissLatency uint64
	PrefetchIssued   uint64
	PrefetchUseful   uint64
	PrefetchUseless  uint64
	PrefetchFilled   uint64
}

// Snapshot returns a consistent-enough point-in-time read of every cpu's
// counters.
func (s *Stats) Snapshot() []CPUSnapshot {
	out := make([]CPUSnapshot, s.numCPUs)
	for c := 0; c < s.numCPUs; c++ {
		for t := 0; t < packet.NumPacketTypes; t++ {
			out[c].Access[t] = s.access[c][t].Load()
			out[c].Hit[t] = s.hit[c][t].Load()
			out[c].Miss[t] = s.miss[c][t].Load()
			out[c].Stall[t] = s.stall[c][t].Load()
			out[c].MSHRMerged[t] = s.mshrMerged[c][t].Load()
		}
		out[c].TotalMissLatency = s.totalMissLatency[c].Load()
		out[c].PrefetchIssued = s.prefetchIssued[c].Load()
		out[c].PrefetchUseful = s.prefetchUseful[c].Load()
		out[c].PrefetchUseless = s.prefetchUseless[c].Load()
		out[c].PrefetchFilled = s.prefetchFilled[c].Load()
	}
	return out
}
