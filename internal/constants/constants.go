// Package constants holds the sizing and timing knobs shared across the
// cache hierarchy: block/page geometry, per-level set/way/latency/queue
// sizes, and the UCP reconfiguration cadence.
package constants

// Address geometry.
const (
	// LogBlockSize is log2 of the cache line size in bytes (64B lines).
	LogBlockSize = 6
	// LogPageSize is log2 of the page size in bytes (4KB pages), used by
	// the STLB's virtual-to-physical translation boundary.
	LogPageSize = 12
)

// CacheGeometry describes one level's set/way/latency/queue sizing.
type CacheGeometry struct {
	Sets      int
	Ways      int
	RQSize    int
	WQSize    int
	PQSize    int
	MSHRSize  int
	Latency   int
	MaxRead   int
	MaxWrite  int
	MaxFill   int
}

// Default per-level geometries, one CPU's worth unless noted. LLC scales
// Sets and MSHRSize by NumCPUs at construction time.
var (
	ITLB = CacheGeometry{Sets: 16, Ways: 4, RQSize: 16, WQSize: 16, PQSize: 0, MSHRSize: 8, Latency: 1, MaxRead: 2, MaxWrite: 2, MaxFill: 2}
	DTLB = CacheGeometry{Sets: 16, Ways: 4, RQSize: 16, WQSize: 16, PQSize: 0, MSHRSize: 8, Latency: 1, MaxRead: 2, MaxWrite: 2, MaxFill: 2}
	STLB = CacheGeometry{Sets: 128, Ways: 12, RQSize: 32, WQSize: 32, PQSize: 0, MSHRSize: 16, Latency: 8, MaxRead: 1, MaxWrite: 1, MaxFill: 1}
	L1I  = CacheGeometry{Sets: 64, Ways: 8, RQSize: 64, WQSize: 64, PQSize: 32, MSHRSize: 8, Latency: 4, MaxRead: 2, MaxWrite: 2, MaxFill: 2}
	L1D  = CacheGeometry{Sets: 64, Ways: 12, RQSize: 64, WQSize: 64, PQSize: 32, MSHRSize: 16, Latency: 5, MaxRead: 2, MaxWrite: 2, MaxFill: 2}
	L2C  = CacheGeometry{Sets: 1024, Ways: 8, RQSize: 32, WQSize: 32, PQSize: 32, MSHRSize: 32, Latency: 10, MaxRead: 1, MaxWrite: 1, MaxFill: 1}
	LLC  = CacheGeometry{Sets: 2048, Ways: 16, RQSize: 32, WQSize: 32, PQSize: 32, MSHRSize: 64, Latency: 20, MaxRead: 1, MaxWrite: 1, MaxFill: 1}
)

// DRAMLatency is the fixed-latency terminal memory response time in cycles.
const DRAMLatency = 200

// PartitionInterval is the number of cpu-0 cycles between UtilityPartitioner
// re-evaluations.
const PartitionInterval = 5_000_000

// ATDSampledSets is the number of dynamically-sampled sets per cpu that back
// each auxiliary tag directory.
const ATDSampledSets = 32
