package llcsim

import "github.com/archsim/llcsim/internal/constants"

// Re-exported sizing constants, so callers configuring a Hierarchy never
// need to import an internal package directly.
const (
	LogBlockSize = constants.LogBlockSize
	LogPageSize  = constants.LogPageSize
	DRAMLatency  = constants.DRAMLatency

	PartitionInterval = constants.PartitionInterval
	ATDSampledSets    = constants.ATDSampledSets
)

// CacheGeometry re-exports internal/constants.CacheGeometry for callers
// building a custom HierarchyParams.
type CacheGeometry = constants.CacheGeometry
