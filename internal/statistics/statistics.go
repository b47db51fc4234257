// Package statistics aggregates simulated game outcomes.
package statistics

import (
	"fmt"
	"math"
	"sort"
)

// GameResult is one seat's outcome of a simulated game.
type GameResult struct {
	Chest   int   // rubies banked over the whole game
	Rank    int   // 1 is the winner
	Players int   // seats in the game
	Exits   int   // rounds the seat left the cave alive
	Seed    int64 // RNG seed of the game (for replay)
}

// Statistics tracks the chest distribution of one strategy.
type Statistics struct {
	Games  int
	Sum    float64
	Sum2   float64   // sum of squares for the variance
	Values []float64 // every chest, for median and percentiles

	Wins       int
	Busts      int   // games finished with an empty chest
	Exits      int   // exits over all games
	RankCounts []int // RankCounts[r] is how often the seat finished r-th
	MaxChest   int
	BestSeed   int64
}

// Mean returns the average chest per game
func (s *Statistics) Mean() float64 {
	if s.Games == 0 {
		return 0
	}
	return s.Sum / float64(s.Games)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Games < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.Sum2 - float64(s.Games)*mean*mean) / float64(s.Games-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(max(0, s.Variance()))
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Games == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Games))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// WinRate is the share of games won.
func (s *Statistics) WinRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games)
}

// Add incorporates a new game result into the statistics
func (s *Statistics) Add(result GameResult) {
	chest := float64(result.Chest)
	s.Games++
	s.Sum += chest
	s.Sum2 += chest * chest
	s.Values = append(s.Values, chest)
	s.Exits += result.Exits

	if result.Rank == 1 {
		s.Wins++
	}
	if result.Chest == 0 {
		s.Busts++
	}
	if result.Rank >= 1 {
		for len(s.RankCounts) <= result.Rank {
			s.RankCounts = append(s.RankCounts, 0)
		}
		s.RankCounts[result.Rank]++
	}
	if result.Chest > s.MaxChest || s.Games == 1 {
		s.MaxChest = result.Chest
		s.BestSeed = result.Seed
	}
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0),
// interpolating between neighbours.
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	p = min(1, max(0, p))
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Validate checks the running totals against the stored values.
func (s *Statistics) Validate() error {
	if s.Games <= 0 {
		return fmt.Errorf("invalid games count: %d", s.Games)
	}
	if len(s.Values) != s.Games {
		return fmt.Errorf("values array length (%d) does not match games count (%d)",
			len(s.Values), s.Games)
	}

	sum := 0.0
	for _, v := range s.Values {
		if v < 0 {
			return fmt.Errorf("negative chest %.0f", v)
		}
		sum += v
	}
	if math.Abs(sum-s.Sum) > 1e-6 {
		return fmt.Errorf("ledger mismatch: sum of values %.2f, running sum %.2f", sum, s.Sum)
	}

	if s.Busts > s.Games {
		return fmt.Errorf("busts (%d) exceed games (%d)", s.Busts, s.Games)
	}
	ranked := 0
	for _, n := range s.RankCounts {
		ranked += n
	}
	if ranked != s.Games {
		return fmt.Errorf("rank counts total (%d) does not match games (%d)", ranked, s.Games)
	}
	if len(s.RankCounts) > 1 && s.RankCounts[1] != s.Wins {
		return fmt.Errorf("wins (%d) do not match first places (%d)", s.Wins, s.RankCounts[1])
	}
	return nil
}

// Summary is a serialisable digest of a Statistics.
type Summary struct {
	Games    int     `json:"games"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	CI95Low  float64 `json:"ci95_low"`
	CI95High float64 `json:"ci95_high"`
	P05      float64 `json:"p05"`
	P95      float64 `json:"p95"`
	WinRate  float64 `json:"win_rate"`
	Busts    int     `json:"busts"`
	Exits    int     `json:"exits"`
	MaxChest int     `json:"max_chest"`
	BestSeed int64   `json:"best_seed"`
}

// Summarize computes a Summary.
func (s *Statistics) Summarize() Summary {
	low, high := s.ConfidenceInterval95()
	return Summary{
		Games:    s.Games,
		Mean:     s.Mean(),
		Median:   s.Median(),
		StdDev:   s.StdDev(),
		CI95Low:  low,
		CI95High: high,
		P05:      s.Percentile(0.05),
		P95:      s.Percentile(0.95),
		WinRate:  s.WinRate(),
		Busts:    s.Busts,
		Exits:    s.Exits,
		MaxChest: s.MaxChest,
		BestSeed: s.BestSeed,
	}
}
