package index

import "sync/atomic"

// Process-wide counters. Every build reserves a fresh id range, so a doc id
// or generation never refers to two different records or snapshots within
// one process.
var (
	nextDocID      atomic.Uint32
	nextGeneration atomic.Uint64
)

// ReserveDocIDs reserves n consecutive doc ids and returns the first.
func ReserveDocIDs(n int) uint32 {
	return nextDocID.Add(uint32(n)) - uint32(n) // #nosec G115 -- record tables are far below 2^32 rows
}

// ObserveDocID makes sure ids loaded from disk are never handed out again.
func ObserveDocID(maxID uint32) {
	for {
		current := nextDocID.Load()
		if current > maxID {
			return
		}
		if nextDocID.CompareAndSwap(current, maxID+1) {
			return
		}
	}
}

// NextGeneration returns a new snapshot generation number (starting at 1).
func NextGeneration() uint64 {
	return nextGeneration.Add(1)
}

// ObserveGeneration advances the generation counter past a loaded snapshot.
func ObserveGeneration(gen uint64) {
	for {
		current := nextGeneration.Load()
		if current >= gen {
			return
		}
		if nextGeneration.CompareAndSwap(current, gen) {
			return
		}
	}
}
