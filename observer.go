package llcsim

import (
	"github.com/archsim/llcsim/internal/interfaces"
	"github.com/archsim/llcsim/internal/packet"
)

// StatsObserver adapts a *Stats to internal/interfaces.Observer, the
// narrow surface the cache pipeline calls into, keeping Stats itself free
// of any dependency on the pipeline packages.
type StatsObserver struct {
	stats *Stats
}

// NewStatsObserver wraps stats for consumption by the cache pipeline.
func NewStatsObserver(stats *Stats) *StatsObserver {
	return &StatsObserver{stats: stats}
}

func (o *StatsObserver) ObserveAccess(cpu int, cacheName string, kind packet.PacketType, hit bool) {
	o.stats.RecordAccess(cpu, kind, hit)
}

func (o *StatsObserver) ObserveStall(cpu int, cacheName string, kind packet.PacketType) {
	o.stats.RecordStall(cpu, kind)
}

func (o *StatsObserver) ObserveMSHRMerge(cpu int, cacheName string, kind packet.PacketType) {
	o.stats.RecordMSHRMerge(cpu, kind)
}

func (o *StatsObserver) ObservePartition(cycle uint64, allocations []int) {
	o.stats.RecordPartition(allocations)
}

func (o *StatsObserver) ObserveMissLatency(cpu int, cacheName string, cycles uint64) {
	o.stats.RecordMissLatency(cpu, cycles)
}

func (o *StatsObserver) ObservePrefetchIssued(cpu int, cacheName string) {
	o.stats.RecordPrefetchIssued(cpu)
}

func (o *StatsObserver) ObservePrefetchUseful(cpu int, cacheName string) {
	o.stats.RecordPrefetchUseful(cpu)
}

func (o *StatsObserver) ObservePrefetchUseless(cpu int, cacheName string) {
	o.stats.RecordPrefetchUseless(cpu)
}

func (o *StatsObserver) ObservePrefetchFilled(cpu int, cacheName string) {
	o.stats.RecordPrefetchFilled(cpu)
}

var _ interfaces.Observer = (*StatsObserver)(nil)

// NoOpObserver discards every event, used where no accounting is wanted
// (benchmarks measuring pure pipeline throughput, unit tests of unrelated
// behavior).
type NoOpObserver struct{}

func (NoOpObserver) ObserveAccess(cpu int, cacheName string, kind packet.PacketType, hit bool) {}
func (NoOpObserver) ObserveStall(cpu int, cacheName string, kind packet.PacketType)            {}
func (NoOpObserver) ObserveMSHRMerge(cpu int, cacheName string, kind packet.PacketType)         {}
func (NoOpObserver) ObservePartition(cycle uint64, allocations []int)                          {}
func (NoOpObserver) ObserveMissLatency(cpu int, cacheName string, cycles uint64)               {}
func (NoOpObserver) ObservePrefetchIssued(cpu int, cacheName string)                           {}
func (NoOpObserver) ObservePrefetchUseful(cpu int, cacheName string)                           {}
func (NoOpObserver) ObservePrefetchUseless(cpu int, cacheName string)                          {}
func (NoOpObserver) ObservePrefetchFilled(cpu int, cacheName string)                           {}

var _ interfaces.Observer = (*NoOpObserver)(nil)
