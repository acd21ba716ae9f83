// Package cache implements the per-level cache pipeline: the four-phase
// operate() loop (fill, writeback, read, prefetch), MSHR-backed miss
// handling, victim selection through internal/block's replacement policy,
// and the LLC-only ATD/UCP hooks. Every level runs the same fixed-order,
// queue-draining, bandwidth-limited state machine; Type only changes which
// branches apply.
package cache

// Type names which hierarchy level a Cache instance models. Every level is
// the same Cache implementation; Type only changes which branches of the
// pipeline apply (dirty-on-RFO-fill for L1D, PROCESSED delivery for the
// core-facing levels, va_to_pa dispatch for the STLB, ATD/UCP for the LLC).
type Type int

const (
	ITLB Type = iota
	DTLB
	STLB
	L1I
	L2
	L1D
	LLC
)

func (t Type) String() string {
	switch t {
	case ITLB:
		return "ITLB"
	case DTLB:
		return "DTLB"
	case STLB:
		return "STLB"
	case L1I:
		return "L1I"
	case L1D:
		return "L1D"
	case L2:
		return "L2"
	case LLC:
		return "LLC"
	default:
		return "UNKNOWN"
	}
}

// isCoreFacing reports whether misses/hits on this level deposit a reply
// into PROCESSED for the core front-end to drain (ITLB/DTLB/L1I/L1D only).
func (t Type) isCoreFacing() bool {
	switch t {
	case ITLB, DTLB, L1I, L1D:
		return true
	default:
		return false
	}
}

// Queue type indices for GetOccupancy/GetSize.
const (
	QueueMSHR = 0
	QueueRQ   = 1
	QueueWQ   = 2
	QueuePQ   = 3
)
