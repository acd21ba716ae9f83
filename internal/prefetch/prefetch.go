// Package prefetch defines the prefetcher callback contracts every cache
// level dispatches into and a minimal next-line prefetcher implementation.
package prefetch

import "github.com/archsim/llcsim/internal/constants"

// Prefetcher is the set of callbacks a cache level invokes as it processes
// demand and prefetch traffic. PrefetchLine is the one call a prefetcher
// makes back into its hosting cache to inject a request; the cache supplies
// it via Injector at construction. cpu identifies which core's access is
// being reported, which matters for a shared LLC dispatching on behalf of
// several cores.
type Prefetcher interface {
	// Operate is called on a demand access (and on prefetch-origin
	// pass-through) with the line address, requesting IP, whether it hit,
	// and the packet type.
	Operate(cpu int, addr, ip uint64, cacheHit bool, accessType int)
	// CacheFill is called when a block is installed, identifying the set
	// and way, whether the fill was itself for a prefetch, and the address
	// evicted.
	CacheFill(cpu int, addr uint64, set, way int, isPrefetch bool, evictedAddr uint64, metadata uint32) uint32
}

// Injector is the narrow callback surface a Prefetcher uses to request a
// line, implemented by the hosting Cache. It mirrors prefetch_line's
// contract: rejected (false) when the PQ is full or the request would
// cross a page boundary.
type Injector interface {
	PrefetchLine(cpu int, ip, baseAddr, pfAddr uint64, fillLevel int, metadata uint32) bool
}

// CrossesPage reports whether two block numbers fall in different pages,
// the rejection rule PrefetchLine enforces before ever reaching the PQ.
// Addresses throughout the pipeline are block numbers, so the page index
// sits LogPageSize-LogBlockSize bits up.
func CrossesPage(base, pf uint64) bool {
	const blockBitsPerPage = constants.LogPageSize - constants.LogBlockSize
	return base>>blockBitsPerPage != pf>>blockBitsPerPage
}

// NextLine is a minimal prefetcher: on every demand miss it requests the
// next sequential line, filled into its own hosting level.
type NextLine struct {
	inject    Injector
	fillLevel int
}

// NewNextLine builds a next-line prefetcher that injects through inject,
// targeting fillLevel (the hosting cache's own level).
func NewNextLine(inject Injector, fillLevel int) *NextLine {
	return &NextLine{inject: inject, fillLevel: fillLevel}
}

func (n *NextLine) Operate(cpu int, addr, ip uint64, cacheHit bool, accessType int) {
	if cacheHit {
		return
	}
	n.inject.PrefetchLine(cpu, ip, addr, addr+1, n.fillLevel, 0)
}

func (n *NextLine) CacheFill(cpu int, addr uint64, set, way int, isPrefetch bool, evictedAddr uint64, metadata uint32) uint32 {
	return metadata
}

// NoOp is a Prefetcher that never requests anything, used for levels with
// prefetching disabled (e.g. translation caches) and in tests.
type NoOp struct{}

func (NoOp) Operate(cpu int, addr, ip uint64, cacheHit bool, accessType int) {}
func (NoOp) CacheFill(cpu int, addr uint64, set, way int, isPrefetch bool, evictedAddr uint64, metadata uint32) uint32 {
	return metadata
}
