package ucp

import (
	"fmt"
	"strings"

	"github.com/archsim/llcsim/internal/constants"
	"github.com/archsim/llcsim/internal/logging"
)

// Config holds the UtilityPartitioner's knobs.
type Config struct {
	NumCPUs     int
	Ways        int
	SampledSets int
	Interval    uint64
}

// DefaultConfig returns sensible defaults: one sampled-set ATD of
// constants.ATDSampledSets per cpu, reconfiguring every
// constants.PartitionInterval cycles.
func DefaultConfig(numCPUs, ways int) *Config {
	return &Config{
		NumCPUs:     numCPUs,
		Ways:        ways,
		SampledSets: DefaultSampledSets,
		Interval:    constants.PartitionInterval,
	}
}

// UtilityPartitioner owns the ATD and, every Interval cycles of cpu 0,
// recomputes way allocations with the Qureshi-style greedy lookahead
// algorithm.
type UtilityPartitioner struct {
	cfg *Config
	ATD *AuxiliaryTagDirectory
	log *logging.Logger

	lastInterval uint64
}

// New constructs a partitioner; pass nil for log to use the package default
// logger.
func New(cfg *Config, log *logging.Logger) *UtilityPartitioner {
	if log == nil {
		log = logging.Default()
	}
	return &UtilityPartitioner{
		cfg: cfg,
		ATD: NewAuxiliaryTagDirectory(cfg.NumCPUs, cfg.Ways, cfg.SampledSets),
		log: log,
	}
}

// MaybeReconfigure checks whether cpu0Cycle has crossed an Interval
// boundary; if so it computes and returns new allocations (and advances
// internal decay state). Returns (nil, false) when no reconfiguration is
// due this cycle.
func (u *UtilityPartitioner) MaybeReconfigure(cpu0Cycle uint64) ([]int, bool) {
	interval := cpu0Cycle / u.cfg.Interval
	if interval == u.lastInterval {
		return nil, false
	}
	u.lastInterval = interval

	allocations := u.partitionAlgorithm()
	u.log.Infof("%s", partitionLine(cpu0Cycle, allocations))
	return allocations, true
}

// partitionLine renders the per-reconfiguration diagnostic line:
// "cycle w0 w1 ... w(N-1)".
func partitionLine(cycle uint64, allocations []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", cycle)
	for _, a := range allocations {
		fmt.Fprintf(&b, " %d", a)
	}
	return b.String()
}

// partitionAlgorithm runs the greedy lookahead allocation: start every cpu
// at one way, repeatedly hand the remaining balance to whichever cpu shows
// the highest marginal utility per extra way, split whatever is left evenly
// once all utilities hit zero, then decay the hit histograms.
func (u *UtilityPartitioner) partitionAlgorithm() []int {
	numCPUs := u.cfg.NumCPUs
	ways := u.cfg.Ways

	allocations := make([]int, numCPUs)
	for i := range allocations {
		allocations[i] = 1
	}
	balance := ways - numCPUs

	prefix := u.prefixSums()

	for balance > 0 {
		winner := -1
		winnerWays := 0
		var maxMU float64

		for c := 0; c < numCPUs; c++ {
			mu, w := maxMarginalUtility(prefix[c], allocations[c], balance)
			if mu > maxMU {
				maxMU = mu
				winner = c
				winnerWays = w
			}
		}
		if winner == -1 || winnerWays == 0 {
			break
		}
		allocations[winner] += winnerWays
		balance -= winnerWays
	}

	if balance > 0 {
		share := balance / numCPUs
		remainder := balance % numCPUs
		for c := 0; c < numCPUs; c++ {
			allocations[c] += share
		}
		allocations[0] += remainder
	}

	u.decayHitCounts()
	return allocations
}

// prefixSums builds prefix[c][k] = sum of HitCounts[c][0..k], the cumulative
// hit curve the marginal-utility formula differences against.
func (u *UtilityPartitioner) prefixSums() [][]uint64 {
	prefix := make([][]uint64, u.cfg.NumCPUs)
	for c := range prefix {
		prefix[c] = make([]uint64, u.cfg.Ways)
		var running uint64
		for k := 0; k < u.cfg.Ways; k++ {
			running += u.ATD.HitCounts[c][k]
			prefix[c][k] = running
		}
	}
	return prefix
}

// maxMarginalUtility scans additional way counts 1..balance and returns the
// (utility, wayCount) pair maximising mu(alloc, alloc+w). Ties on mu pick
// the smaller w because the scan keeps the first (smallest)
// strictly-greater value.
func maxMarginalUtility(prefix []uint64, alloc, balance int) (float64, int) {
	var maxMU float64
	minWay := 0
	for w := 1; w <= balance; w++ {
		mu := marginalUtility(prefix, alloc, alloc+w)
		if mu > maxMU {
			maxMU = mu
			minWay = w
		}
	}
	return maxMU, minWay
}

// marginalUtility computes (hits(b) - hits(a)) / (b - a) using the 1-ways
// cumulative prefix array (prefix[k] = hits with k+1 ways).
func marginalUtility(prefix []uint64, a, b int) float64 {
	u := int64(prefix[b-1]) - int64(prefix[a-1])
	return float64(u) / float64(b-a)
}

// decayHitCounts halves every histogram bucket so the counters stay
// responsive to phase changes.
func (u *UtilityPartitioner) decayHitCounts() {
	for c := range u.ATD.HitCounts {
		for w := range u.ATD.HitCounts[c] {
			u.ATD.HitCounts[c][w] /= 2
		}
	}
}
