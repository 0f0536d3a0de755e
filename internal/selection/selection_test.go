package selection

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"doorprize/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns fixed tickets and records the bound it was asked for.
type scripted struct {
	tickets []int
	bounds  []int
}

func (s *scripted) Intn(n int) int {
	s.bounds = append(s.bounds, n)
	t := s.tickets[0]
	s.tickets = s.tickets[1:]
	return t
}

func candidate(name string, score float64) models.Candidate {
	return models.Candidate{ID: name, Name: name, TotalScore: models.Score(score)}
}

func TestWeight_BandBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  int
	}{
		{-1, 0},
		{-0.01, 0},
		{0, 1},
		{50, 1},
		{100, 1},
		{100.5, 5},
		{101, 5},
		{200, 5},
		{201, 10},
		{300, 10},
		{301, 20},
		{400, 20},
		{401, 40},
		{500, 40},
		{501, 70},
		{600, 70},
		{601, 100},
		{700, 100},
		{701, 200},
		{800, 200},
		{801, 300},
		{100000, 300},
		{math.Inf(1), 300},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Weight(models.Score(tc.score)), "score %v", tc.score)
	}
	assert.Equal(t, 0, Weight(models.InvalidScore()))
}

func TestWeight_NonDecreasing(t *testing.T) {
	prev := Weight(0)
	for s := 0.0; s <= 1000; s += 0.5 {
		w := Weight(models.Score(s))
		if w < prev {
			t.Fatalf("weight decreased at score %v: %d < %d", s, w, prev)
		}
		prev = w
	}
}

func TestSelectWinner_WalksCumulativeWeights(t *testing.T) {
	pool := []models.Candidate{
		candidate("alice", 50),  // 1
		candidate("nobody", -5), // 0
		candidate("bob", 850),   // 300
		candidate("carol", 150), // 5
	}

	t.Run("first ticket goes to first weighted candidate", func(t *testing.T) {
		src := &scripted{tickets: []int{0}}
		got, err := SelectWinner(src, pool)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		assert.Equal(t, []int{306}, src.bounds)
	})

	t.Run("zero weight candidate is skipped", func(t *testing.T) {
		got, err := SelectWinner(&scripted{tickets: []int{1}}, pool)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Name)
	})

	t.Run("last ticket goes to last candidate", func(t *testing.T) {
		got, err := SelectWinner(&scripted{tickets: []int{305}}, pool)
		require.NoError(t, err)
		assert.Equal(t, "carol", got.Name)
	})
}

func TestSelectWinner_ReturnsMember(t *testing.T) {
	src := rand.New(rand.NewSource(7))
	pool := []models.Candidate{
		candidate("a", 10), candidate("b", 250), candidate("c", 990), candidate("d", -1),
	}
	members := map[string]bool{"a": true, "b": true, "c": true}
	for i := 0; i < 500; i++ {
		got, err := SelectWinner(src, pool)
		require.NoError(t, err)
		assert.True(t, members[got.ID], "unexpected winner %q", got.ID)
	}
}

func TestSelectWinner_HigherWeightWinsMoreOften(t *testing.T) {
	src := rand.New(rand.NewSource(42))
	pool := []models.Candidate{candidate("low", 150), candidate("high", 450)}

	wins := map[string]int{}
	for i := 0; i < 5000; i++ {
		got, err := SelectWinner(src, pool)
		require.NoError(t, err)
		wins[got.Name]++
	}
	assert.Greater(t, wins["high"], wins["low"])
}

func TestSelectWinner_Errors(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		_, err := SelectWinner(DefaultSource(), nil)
		assert.True(t, errors.Is(err, ErrEmptyPool))
	})

	t.Run("all zero weight", func(t *testing.T) {
		pool := []models.Candidate{candidate("x", -1), {ID: "y", Name: "y", TotalScore: models.InvalidScore()}}
		_, err := SelectWinner(DefaultSource(), pool)
		assert.ErrorIs(t, err, ErrInvalidSelectionPool)
	})
}

func TestTotalWeight(t *testing.T) {
	pool := []models.Candidate{candidate("alice", 50), candidate("bob", 850)}
	assert.Equal(t, 301, TotalWeight(pool))
	assert.Equal(t, 0, TotalWeight(nil))
}
