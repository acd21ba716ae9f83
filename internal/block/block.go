// Package block implements one cache level's block/set storage grid and
// its LRU replacement policy, including the LLC's per-cpu partitioned
// variant.
package block

// Block is one cache way: its tag state plus the replacement and
// prefetch-accounting metadata threaded through fills.
type Block struct {
	Valid    bool
	Dirty    bool
	Prefetch bool
	Used     bool

	Tag      uint64
	Address  uint64
	FullAddr uint64
	Data     uint64
	IP       uint64
	InstrID  uint64

	// CPU is the owning core; only meaningful for the LLC's partitioned
	// sets. Non-LLC caches leave it at 0.
	CPU int
	// LRU is the stack position within the block's owning partition: 0 is
	// most-recently-used, larger is older.
	LRU int

	Depth      int
	Signature  uint32
	Confidence int
	Delta      int
}

// Grid is a set-by-way array of Blocks plus the replacement-policy
// operations. A single Grid backs one cache level; the LLC variant is
// distinguished by Partitioned=true.
type Grid struct {
	Sets int
	Ways int
	grid [][]Block

	// Partitioned selects the LLC's per-cpu LRU semantics. NumCPUs and
	// Partitions are only meaningful when this is set.
	Partitioned bool
	NumCPUs     int
	Partitions  []int
}

// NewGrid allocates an unpartitioned grid (used by every level but the
// LLC).
func NewGrid(sets, ways int) *Grid {
	g := &Grid{Sets: sets, Ways: ways, grid: make([][]Block, sets)}
	for s := range g.grid {
		blocks := make([]Block, ways)
		for w := range blocks {
			blocks[w].LRU = w
		}
		g.grid[s] = blocks
	}
	return g
}

// NewPartitionedGrid allocates the LLC's grid, initially dividing each set's
// ways evenly across cpus: block[s][w].CPU == w / (ways/numCPUs) and its LRU
// position is w modulo that quota.
func NewPartitionedGrid(sets, ways, numCPUs int) *Grid {
	g := &Grid{Sets: sets, Ways: ways, grid: make([][]Block, sets), Partitioned: true, NumCPUs: numCPUs}
	perCPU := ways / numCPUs
	g.Partitions = make([]int, numCPUs)
	for c := range g.Partitions {
		g.Partitions[c] = perCPU
	}
	for s := range g.grid {
		blocks := make([]Block, ways)
		for w := range blocks {
			blocks[w].CPU = w / perCPU
			blocks[w].LRU = w % perCPU
		}
		g.grid[s] = blocks
	}
	return g
}

func (g *Grid) At(set, way int) *Block { return &g.grid[set][way] }

// Find returns the way holding tag in set, or -1. Non-LLC grids match on
// tag alone; partitioned grids additionally require the requesting cpu to
// own the way.
func (g *Grid) Find(set int, tag uint64, cpu int) int {
	for w := 0; w < g.Ways; w++ {
		b := &g.grid[set][w]
		if !b.Valid || b.Tag != tag {
			continue
		}
		if g.Partitioned && b.CPU != cpu {
			continue
		}
		return w
	}
	return -1
}

// Touch promotes way to MRU (LRU=0) within its partition, aging every block
// with a strictly smaller prior position. For a partitioned grid, only
// blocks owned by the same cpu participate.
func (g *Grid) Touch(set, way int) {
	blocks := g.grid[set]
	touched := &blocks[way]
	prior := touched.LRU
	for w := range blocks {
		if w == way {
			continue
		}
		if g.Partitioned && blocks[w].CPU != touched.CPU {
			continue
		}
		if blocks[w].LRU < prior {
			blocks[w].LRU++
		}
	}
	touched.LRU = 0
}

// Victim picks the way to replace for a fill requested by cpu. Unpartitioned
// grids pick the block at position Ways-1. Partitioned grids restrict the
// search to the requesting cpu's own blocks and break LRU ties on the
// lowest way index.
func (g *Grid) Victim(set, cpu int) int {
	blocks := g.grid[set]
	if !g.Partitioned {
		for w := range blocks {
			if blocks[w].LRU == g.Ways-1 {
				return w
			}
		}
		return g.Ways - 1
	}

	best := -1
	bestLRU := -1
	for w := range blocks {
		if blocks[w].CPU != cpu {
			continue
		}
		if blocks[w].LRU > bestLRU {
			bestLRU = blocks[w].LRU
			best = w
		}
	}
	return best
}

// Install writes new content into set/way and assigns the block's owning
// cpu for partitioned grids, leaving LRU untouched; callers Touch separately
// once the install completes.
func (g *Grid) Install(set, way int, cpu int, tag, address, fullAddr, data, ip uint64, instrID uint64) {
	b := &g.grid[set][way]
	b.Valid = true
	b.Tag = tag
	b.Address = address
	b.FullAddr = fullAddr
	b.Data = data
	b.IP = ip
	b.InstrID = instrID
	if g.Partitioned {
		b.CPU = cpu
	}
}

// Reallocate applies a new way partition: for every set, ways whose LRU is
// now >= their owner's new quota are revoked and handed one-by-one to cpus
// whose quota grew. Valid/tag/data are left untouched, so a transferred way
// keeps whatever line it held until natural eviction.
func (g *Grid) Reallocate(newAllocations []int) {
	if !g.Partitioned {
		return
	}
	extra, deficient := splitExtraDeficient(g.Partitions, newAllocations)

	for s := 0; s < g.Sets; s++ {
		blocks := g.grid[s]
		var toAllocate []int
		for w := range blocks {
			if blocks[w].LRU >= newAllocations[blocks[w].CPU] {
				toAllocate = append(toAllocate, w)
			}
		}

		copyPartitions := append([]int(nil), g.Partitions...)
		for _, e := range extra {
			copyPartitions[e] = newAllocations[e]
		}
		for _, d := range deficient {
			for copyPartitions[d] < newAllocations[d] && len(toAllocate) > 0 {
				reqWay := toAllocate[len(toAllocate)-1]
				toAllocate = toAllocate[:len(toAllocate)-1]
				blocks[reqWay].CPU = d
				blocks[reqWay].LRU = copyPartitions[d]
				copyPartitions[d]++
			}
		}
	}
	copy(g.Partitions, newAllocations)
}

func splitExtraDeficient(current, next []int) (extra, deficient []int) {
	for c := range current {
		switch {
		case current[c] > next[c]:
			extra = append(extra, c)
		case current[c] < next[c]:
			deficient = append(deficient, c)
		}
	}
	return extra, deficient
}
