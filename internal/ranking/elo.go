package ranking

import "math"

// EloUpdate computes new ratings for a decided pairwise comparison using the
// standard Elo update:
//
//	E_w = 1 / (1 + 10^((loser - winner) / 400))
//	winner' = winner + K * (1 - E_w)
//	loser'  = loser  - K * (1 - E_w)
//
// The update is zero-sum: the winner gains exactly what the loser gives up.
// Draws are not representable; equal inputs still produce a K/2 adjustment
// since the expected score is 0.5. Pure and deterministic.
func EloUpdate(winner, loser, kFactor float64) (newWinner, newLoser float64) {
	expectedWin := 1.0 / (1.0 + math.Pow(10, (loser-winner)/400.0))
	delta := kFactor * (1.0 - expectedWin)
	return winner + delta, loser - delta
}

// DerivePairs expands a total order over item IDs into the full set of
// pairwise outcomes: every pair (i, j) with i ranked above j yields one
// outcome with i as the winner.
//
// Elo updates are path dependent when more than two items are ranked, so the
// pair ordering matters. Pairs are emitted by rank distance ascending
// (all adjacent pairs first, then distance 2, and so on), which is the
// canonical application order; callers must apply them sequentially as
// returned.
func DerivePairs(orderedIDs []string, scopeID string) []PairwiseOutcome {
	n := len(orderedIDs)
	if n < 2 {
		return nil
	}

	outcomes := make([]PairwiseOutcome, 0, n*(n-1)/2)
	for distance := 1; distance < n; distance++ {
		for i := 0; i+distance < n; i++ {
			outcomes = append(outcomes, PairwiseOutcome{
				WinnerID: orderedIDs[i],
				LoserID:  orderedIDs[i+distance],
				ScopeID:  scopeID,
			})
		}
	}
	return outcomes
}
