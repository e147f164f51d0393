package mode

// Mode is the rank aggregation algorithm.
type Mode string

// Ranking algorithms.
const (
	// Sorted uses sorted access only; a score is final once every stream has emitted the candidate.
	Sorted Mode = "sorted"
	// Threshold resolves every new candidate by random access (Fagin's TA).
	Threshold Mode = "threshold"
	// NoRandomAccess bounds partially seen candidates instead of resolving them.
	NoRandomAccess Mode = "no_random_access"
	// PartialRandomAccess resolves only candidates that could still enter the top-k.
	PartialRandomAccess Mode = "partial_random_access"
	// Pivot runs one nearest-neighbor query in the shared embedding space.
	Pivot Mode = "pivot"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	switch m {
	case Sorted, Threshold, NoRandomAccess, PartialRandomAccess, Pivot:
		return true
	}
	return false
}

// UsesRandomAccess reports whether the mode may resolve values out of distance order.
func (m Mode) UsesRandomAccess() bool {
	return m == Threshold || m == PartialRandomAccess
}
