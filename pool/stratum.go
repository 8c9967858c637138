package pool

// DefaultFirstX is the default capacity of each stratum's first-X store
// (§3 "Per-stratum Pools (Stratified)").
const DefaultFirstX = 10_000

// StratumIndex is a saved pixel index (column X, row Y). The Queinnec push
// of §4.G stores the same pair; no separate window-centre column is kept.
type StratumIndex struct {
	X, Y int
}

// StratumStore holds, for every stratum, a probabilistic pool and a
// first-X pool (§3 invariant: if the stratum's population is <= X, the
// first-X store holds all of it; otherwise the probabilistic pool is
// used). A second store of the same shape is kept for the Queinnec method
// (§4.G "Queinnec"), since it is gated by a distinct, stricter selector.
type StratumStore struct {
	x int

	strataCounts []int64

	prob      [][]StratumIndex
	firstX    [][]StratumIndex
	firstXCnt []int
	firstXCap int // unused; overflow is recorded as firstXCnt[s] > x

	queinnecProb      [][]StratumIndex
	queinnecFirstX    [][]StratumIndex
	queinnecFirstXCnt []int
}

// NewStratumStore allocates per-stratum storage for numStrata strata, with
// first-X capacity x (pass pool.DefaultFirstX for the spec default).
func NewStratumStore(numStrata int, x int) *StratumStore {
	s := &StratumStore{
		x:                 x,
		strataCounts:      make([]int64, numStrata),
		prob:              make([][]StratumIndex, numStrata),
		firstX:            make([][]StratumIndex, numStrata),
		firstXCnt:         make([]int, numStrata),
		queinnecProb:      make([][]StratumIndex, numStrata),
		queinnecFirstX:    make([][]StratumIndex, numStrata),
		queinnecFirstXCnt: make([]int, numStrata),
	}
	for i := range s.firstX {
		s.firstX[i] = make([]StratumIndex, 0, x)
		s.queinnecFirstX[i] = make([]StratumIndex, 0, x)
	}
	return s
}

// IncrementCount records one more eligible pixel of stratum s (§4.G
// "strataCounts[v]++").
func (ss *StratumStore) IncrementCount(stratum int) { ss.strataCounts[stratum]++ }

// AddProb pushes idx onto stratum s's probabilistic pool (selector-gated
// by the caller).
func (ss *StratumStore) AddProb(stratum int, idx StratumIndex) {
	ss.prob[stratum] = append(ss.prob[stratum], idx)
}

// AddFirstX pushes idx onto stratum s's first-X store, ignoring the push
// once the store is full (§4.G "update firstX[v] (ignore once full)").
func (ss *StratumStore) AddFirstX(stratum int, idx StratumIndex) {
	if ss.firstXCnt[stratum] < ss.x {
		ss.firstX[stratum] = append(ss.firstX[stratum], idx)
		ss.firstXCnt[stratum]++
	} else if ss.firstXCnt[stratum] == ss.x {
		// The store is discarded once it overflows, exactly as the source's
		// vector-swap idiom frees it; the probabilistic pool takes over.
		ss.firstX[stratum] = nil
		ss.firstXCnt[stratum]++
	}
}

// AddQueinnecProb/AddQueinnecFirstX mirror AddProb/AddFirstX for the
// Queinnec focal-window pool (§4.G "Queinnec").
func (ss *StratumStore) AddQueinnecProb(stratum int, idx StratumIndex) {
	ss.queinnecProb[stratum] = append(ss.queinnecProb[stratum], idx)
}

func (ss *StratumStore) AddQueinnecFirstX(stratum int, idx StratumIndex) {
	if ss.queinnecFirstXCnt[stratum] < ss.x {
		ss.queinnecFirstX[stratum] = append(ss.queinnecFirstX[stratum], idx)
		ss.queinnecFirstXCnt[stratum]++
	} else if ss.queinnecFirstXCnt[stratum] == ss.x {
		ss.queinnecFirstX[stratum] = nil
		ss.queinnecFirstXCnt[stratum]++
	}
}

// StrataCounts returns the total eligible-pixel count per stratum.
func (ss *StratumStore) StrataCounts() []int64 { return ss.strataCounts }

// Pool selects the pool to draw from for stratum s given the number of
// existing samples already placed in it and the desired sample count
// (§4.G "The pool used is the probabilistic pool if prob_count >=
// remaining or the first-X store is overfull; otherwise the first-X
// store."). The returned slice is a copy; the caller shuffles an index
// order over it, so the store itself is never perturbed.
func (ss *StratumStore) Pool(stratum int, existingCount, desired int64) []StratumIndex {
	return pick(ss.prob[stratum], ss.firstX[stratum], ss.firstXCnt[stratum], ss.x, existingCount, desired)
}

// QueinnecPool is Pool's counterpart for the Queinnec focal-window store.
func (ss *StratumStore) QueinnecPool(stratum int, existingCount, desired int64) []StratumIndex {
	return pick(ss.queinnecProb[stratum], ss.queinnecFirstX[stratum], ss.queinnecFirstXCnt[stratum], ss.x, existingCount, desired)
}

func pick(prob, firstX []StratumIndex, firstXCnt, x int, existingCount, desired int64) []StratumIndex {
	remaining := desired - existingCount
	if int64(len(prob)) >= remaining || firstXCnt > x {
		out := make([]StratumIndex, len(prob))
		copy(out, prob)
		return out
	}
	out := make([]StratumIndex, len(firstX))
	copy(out, firstX)
	return out
}
