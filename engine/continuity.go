/*
continuity.go - State-continuity validator

PURPOSE:
  Every new payment triggers a full recomputation of the allocation from
  scratch. Before the result is committed, this validator proves that the
  recomputed ("current") state is a pure extension of the previously
  committed ("previous") state: no settled obligation was retroactively
  altered, no allocation was moved. The materializer must only ever append
  payment references to an obligation already in progress - this check is the
  gate that establishes that property on each recomputation.

SHAPE:
  Both states are per-obligation entry lists, obligation 0 being the down
  payment. Because the waterfall fills obligations strictly in order, a valid
  state is always a leading run of non-empty lists followed by empty ones; a
  non-empty list after an empty one is a gap and therefore fatal.
*/
package engine

// ContinuitySignal classifies a successful continuity check.
type ContinuitySignal int

const (
	// ContinuityNoChange: recomputed state is identical; commit is a no-op.
	ContinuityNoChange ContinuitySignal = iota
	// ContinuityFresh: nothing was committed before; trivially continuous.
	ContinuityFresh
	// ContinuityExtended: current strictly extends previous (new entries
	// appended at the boundary obligation and/or later obligations funded).
	ContinuityExtended
)

func (s ContinuitySignal) String() string {
	switch s {
	case ContinuityNoChange:
		return "no-change"
	case ContinuityFresh:
		return "fresh"
	case ContinuityExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// CheckContinuity certifies that current is a pure extension of previous.
// dues carries the due amount of each obligation, obligation 0 being the down
// payment; obligations with a zero due need no funding and are ignored, so a
// schedule financed without a down payment never reads as a gap. Violations
// return a ContinuityError unwrapping to ErrAllocationGap or
// ErrRewrittenHistory; these are fatal and must abort the commit.
func CheckContinuity(previous, current [][]AllocationEntry, dues []Cents) (ContinuitySignal, error) {
	previous = dropZeroDue(previous, dues)
	current = dropZeroDue(current, dues)

	prev, err := trimState(previous)
	if err != nil {
		return 0, err
	}
	curr, err := trimState(current)
	if err != nil {
		return 0, err
	}

	if statesEqual(prev, curr) {
		return ContinuityNoChange, nil
	}
	if len(prev) == 0 {
		return ContinuityFresh, nil
	}
	if len(curr) < len(prev) {
		return 0, rewriteError(len(curr), "recomputed state funds fewer obligations than committed")
	}

	// Every obligation before the previous boundary must be untouched.
	for i := 0; i < len(prev)-1; i++ {
		if !entriesEqual(prev[i], curr[i]) {
			return 0, rewriteError(i, "settled obligation's entries changed")
		}
	}

	// At the boundary obligation the committed entries, except possibly the
	// last one, must be an exact prefix of the recomputed ones.
	boundary := len(prev) - 1
	pEntries, cEntries := prev[boundary], curr[boundary]
	if len(cEntries) < len(pEntries)-1 {
		return 0, rewriteError(boundary, "boundary obligation lost committed entries")
	}
	for i := 0; i < len(pEntries)-1; i++ {
		if pEntries[i] != cEntries[i] {
			return 0, rewriteError(boundary, "boundary obligation's entry prefix changed")
		}
	}

	return ContinuityExtended, nil
}

// dropZeroDue removes obligations the waterfall has nothing to fill. An
// obligation that somehow carries entries is kept so the trim still flags it.
func dropZeroDue(state [][]AllocationEntry, dues []Cents) [][]AllocationEntry {
	kept := make([][]AllocationEntry, 0, len(state))
	for i, obligation := range state {
		if i < len(dues) && dues[i] == 0 && len(obligation) == 0 {
			continue
		}
		kept = append(kept, obligation)
	}
	return kept
}

// trimState keeps the leading run of obligations with entries. A non-empty
// obligation after an empty one means a later installment was funded while an
// earlier one was not - a broken waterfall.
func trimState(state [][]AllocationEntry) ([][]AllocationEntry, error) {
	cut := len(state)
	for i, entries := range state {
		if len(entries) == 0 {
			cut = i
			break
		}
	}
	for i := cut; i < len(state); i++ {
		if len(state[i]) != 0 {
			return nil, gapError(i, "obligation funded after an unfunded one")
		}
	}
	return state[:cut], nil
}

func statesEqual(a, b [][]AllocationEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entriesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func entriesEqual(a, b []AllocationEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
