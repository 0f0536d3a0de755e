// Package selection picks a draw winner from a candidate list.
//
// Selection is weighted, but not proportional to score. Each candidate's
// score is mapped onto a coarse band and the band decides how many "tickets"
// the candidate holds:
//
//	score       weight
//	0-100       1
//	101-200     5
//	201-300     10
//	301-400     20
//	401-500     40
//	501-600     70
//	601-700     100
//	701-800     200
//	801+        300
//	<0, invalid 0
//
// Bands are closed on their upper bound, so 100 is in the first band and 100.5
// in the second. A winner is found by drawing one ticket uniformly over the
// total weight and walking the cumulative weights until the ticket is covered.
package selection

import (
	"errors"
	"math"

	"doorprize/internal/models"

	"lukechampine.com/frand"
)

var (
	ErrEmptyPool            = errors.New("selection: no candidates to draw from")
	ErrInvalidSelectionPool = errors.New("selection: no candidate carries a positive weight")
)

// Source is the randomness used for a draw.
type Source interface {
	// Intn returns a non-negative random int in [0, n). n > 0.
	Intn(n int) int
}

type frandSource struct{}

func (frandSource) Intn(n int) int { return frand.Intn(n) }

// DefaultSource draws from frand.
func DefaultSource() Source { return frandSource{} }

type band struct {
	upper  float64
	weight int
}

var bands = []band{
	{100, 1},
	{200, 5},
	{300, 10},
	{400, 20},
	{500, 40},
	{600, 70},
	{700, 100},
	{800, 200},
}

const topWeight = 300

// Weight maps a score onto its band weight.
func Weight(score models.Score) int {
	s := float64(score)
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	for _, b := range bands {
		if s <= b.upper {
			return b.weight
		}
	}
	return topWeight
}

// TotalWeight sums the weights of all candidates.
func TotalWeight(candidates []models.Candidate) int {
	total := 0
	for _, c := range candidates {
		total += Weight(c.TotalScore)
	}
	return total
}

// SelectWinner draws one candidate. The returned candidate is always an element
// of candidates.
func SelectWinner(src Source, candidates []models.Candidate) (models.Candidate, error) {
	if len(candidates) == 0 {
		return models.Candidate{}, ErrEmptyPool
	}
	if src == nil {
		src = DefaultSource()
	}

	total := TotalWeight(candidates)
	if total == 0 {
		return models.Candidate{}, ErrInvalidSelectionPool
	}

	ticket := src.Intn(total)
	sum := 0
	for _, c := range candidates {
		w := Weight(c.TotalScore)
		if w == 0 {
			continue
		}
		sum += w
		if ticket < sum {
			return c, nil
		}
	}

	// Unreachable for a well-behaved source; guard against one returning >= total.
	for i := len(candidates) - 1; i >= 0; i-- {
		if Weight(candidates[i].TotalScore) > 0 {
			return candidates[i], nil
		}
	}
	return models.Candidate{}, ErrInvalidSelectionPool
}
