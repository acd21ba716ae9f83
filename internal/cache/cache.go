package cache

import (
	"github.com/archsim/llcsim/internal/block"
	"github.com/archsim/llcsim/internal/cerr"
	"github.com/archsim/llcsim/internal/constants"
	"github.com/archsim/llcsim/internal/interfaces"
	"github.com/archsim/llcsim/internal/logging"
	"github.com/archsim/llcsim/internal/packet"
	"github.com/archsim/llcsim/internal/prefetch"
	"github.com/archsim/llcsim/internal/queue"
	"github.com/archsim/llcsim/internal/ucp"
)

// Clock is the cycle source a Cache consults instead of a hidden global. A
// Hierarchy owns one Clock and hands it to every level it constructs.
type Clock interface {
	Cycle(cpu int) uint64
}

// VaToPA resolves a miss's virtual address to a physical one; only the STLB
// calls it, on its handle_read miss path.
type VaToPA func(cpu int, instrID, fullAddr, blockAddr uint64, mode int) uint64

// Config bundles a level's static geometry and identity.
type Config struct {
	Name      string
	Type      Type
	FillLevel packet.FillLevel
	Geometry  constants.CacheGeometry
	NumCPUs   int

	// Bypass enables the LLC-only policy toggle that lets victim selection
	// skip installation of an incoming line entirely.
	Bypass bool
}

// Cache implements interfaces.Memory for one hierarchy level: the
// four-phase operate() pipeline, MSHR-backed miss handling, and (for the
// LLC) per-cpu partitioned replacement plus the UCP hooks.
type Cache struct {
	cfg   Config
	clock Clock
	log   *logging.Logger
	obs   interfaces.Observer

	rq   *queue.PacketQueue
	wq   *queue.PacketQueue
	pq   *queue.PacketQueue
	mshr *queue.MSHR

	processed    []packet.Packet
	processedCap int

	grid *block.Grid

	lower        interfaces.Memory
	upperICache  map[int]interfaces.Memory
	upperDCache  map[int]interfaces.Memory

	prefetcher prefetch.Prefetcher
	vaToPA     VaToPA

	// Partitioner (which owns the ATD) is non-nil only for the LLC.
	Partitioner *ucp.UtilityPartitioner

	// bypassPolicy, when set on an LLC with Config.Bypass enabled, decides
	// per-fill whether to skip installation entirely. Never consulted on
	// the writeback install path; bypass is forbidden there.
	bypassPolicy func(set, cpu int) bool
}

// SetBypassPolicy installs the LLC bypass decision function; only takes
// effect when Config.Bypass is true.
func (c *Cache) SetBypassPolicy(fn func(set, cpu int) bool) { c.bypassPolicy = fn }

// New constructs a cache level. lower may be nil (none below this level, as
// for a standalone STLB); callers wire upper/lower edges and the
// prefetcher/va_to_pa hooks after construction via the Set* methods, since
// the hierarchy graph is built bottom-up and top-down references can't all
// exist at construction time.
func New(cfg Config, clock Clock, log *logging.Logger, obs interfaces.Observer) *Cache {
	if log == nil {
		log = logging.Default()
	}
	if obs == nil {
		obs = noopObserver{}
	}
	g := cfg.Geometry
	c := &Cache{
		cfg:          cfg,
		clock:        clock,
		log:          log,
		obs:          obs,
		rq:           queue.NewPacketQueue(cfg.Name+".RQ", g.RQSize, g.Latency),
		wq:           queue.NewPacketQueue(cfg.Name+".WQ", g.WQSize, g.Latency),
		mshr:         queue.NewMSHR(g.MSHRSize, g.Latency),
		processedCap: g.MSHRSize,
		upperICache:  make(map[int]interfaces.Memory),
		upperDCache:  make(map[int]interfaces.Memory),
		prefetcher:   prefetch.NoOp{},
	}
	if g.PQSize > 0 {
		c.pq = queue.NewPacketQueue(cfg.Name+".PQ", g.PQSize, g.Latency)
	}
	if cfg.Type == LLC {
		c.grid = block.NewPartitionedGrid(g.Sets, g.Ways, cfg.NumCPUs)
		c.Partitioner = ucp.New(ucp.DefaultConfig(cfg.NumCPUs, g.Ways), log)
	} else {
		c.grid = block.NewGrid(g.Sets, g.Ways)
	}
	return c
}

func (c *Cache) Name() string { return c.cfg.Name }
func (c *Cache) Type() Type   { return c.cfg.Type }

// SetLower wires the level this cache forwards misses and dirty evictions
// to; nil for a terminal level with nothing beneath it (only the STLB may
// legitimately have no lower level).
func (c *Cache) SetLower(lower interfaces.Memory) { c.lower = lower }

// SetUpperICache/SetUpperDCache register the per-cpu level immediately
// above this one, consulted when a completed fill is routed upward. The
// LLC and STLB sit below a unified next level and register it on both
// sides; routeUp then picks the side by Instruction/IsData there and by
// FillL1I/FillL1D elsewhere.
func (c *Cache) SetUpperICache(cpu int, m interfaces.Memory) { c.upperICache[cpu] = m }
func (c *Cache) SetUpperDCache(cpu int, m interfaces.Memory) { c.upperDCache[cpu] = m }

// SetPrefetcher installs the per-level prefetcher.
func (c *Cache) SetPrefetcher(p prefetch.Prefetcher) {
	if p == nil {
		p = prefetch.NoOp{}
	}
	c.prefetcher = p
}

// SetVaToPA installs the STLB's virtual-to-physical translation callback.
func (c *Cache) SetVaToPA(fn VaToPA) { c.vaToPA = fn }

// getSet extracts the low log2(NumSet) bits of a block-aligned address.
func (c *Cache) getSet(address uint64) int {
	return int(address) & (c.cfg.Geometry.Sets - 1)
}

func blockTag(address uint64, numSets int) uint64 {
	return address / uint64(numSets)
}

var _ interfaces.Memory = (*Cache)(nil)

type noopObserver struct{}

func (noopObserver) ObserveAccess(int, string, packet.PacketType, bool) {}
func (noopObserver) ObserveStall(int, string, packet.PacketType)        {}
func (noopObserver) ObserveMSHRMerge(int, string, packet.PacketType)    {}
func (noopObserver) ObservePartition(uint64, []int)                    {}
func (noopObserver) ObserveMissLatency(int, string, uint64)             {}
func (noopObserver) ObservePrefetchIssued(int, string)                  {}
func (noopObserver) ObservePrefetchUseful(int, string)                  {}
func (noopObserver) ObservePrefetchUseless(int, string)                 {}
func (noopObserver) ObservePrefetchFilled(int, string)                  {}

// violation logs the broken invariant with cache/cpu context before raising
// the fatal contract-violation error, so the last line in the log on a
// crashing run names the offending cache and op without needing a stack
// trace to be read first.
func (c *Cache) violation(op string, cpu int, code cerr.Code, msg string) {
	c.log.WithCache(c.cfg.Name).WithCPU(cpu).Error(msg, "op", op, "code", string(code))
	cerr.Violation(op, c.cfg.Name, cpu, code, msg)
}
