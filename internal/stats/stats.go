// Package stats computes aggregate statistics over one round's votes.
// It is a pure function of its input; nothing here touches the store.
package stats

import (
	"math"
	"sort"
	"strconv"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
)

// VoteStats summarizes one revealed round.
type VoteStats struct {
	Average      float64        `json:"average"` // mean of numeric votes, one decimal place
	Median       float64        `json:"median"`
	Mode         []string       `json:"mode"` // every value at the maximum count, first-seen order
	Distribution map[string]int `json:"distribution"`
	Consensus    bool           `json:"consensus"` // all votes identical
}

// Calculate returns the statistics for a vote set, or nil for an empty
// one. Numeric and non-numeric votes share the distribution; only
// numeric votes feed average and median. Mode values are ordered by
// first appearance in the input.
func Calculate(votes []domain.Vote) *VoteStats {
	if len(votes) == 0 {
		return nil
	}

	distribution := make(map[string]int, len(votes))
	seenOrder := make([]string, 0, len(votes))
	var numeric []int

	for _, v := range votes {
		if _, seen := distribution[v.Value]; !seen {
			seenOrder = append(seenOrder, v.Value)
		}
		distribution[v.Value]++

		if n, err := strconv.Atoi(v.Value); err == nil {
			numeric = append(numeric, n)
		}
	}

	if len(numeric) == 0 {
		// All votes are escape values; no numeric aggregate exists.
		return &VoteStats{
			Average:      0,
			Median:       0,
			Mode:         []string{},
			Distribution: distribution,
			Consensus:    false,
		}
	}

	sum := 0
	for _, n := range numeric {
		sum += n
	}
	average := math.Round(float64(sum)/float64(len(numeric))*10) / 10

	sorted := make([]int, len(numeric))
	copy(sorted, numeric)
	sort.Ints(sorted)

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		median = float64(sorted[mid])
	}

	maxCount := 0
	for _, count := range distribution {
		if count > maxCount {
			maxCount = count
		}
	}
	mode := make([]string, 0, 1)
	for _, value := range seenOrder {
		if distribution[value] == maxCount {
			mode = append(mode, value)
		}
	}

	consensus := len(mode) == 1 && distribution[mode[0]] == len(votes)

	return &VoteStats{
		Average:      average,
		Median:       median,
		Mode:         mode,
		Distribution: distribution,
		Consensus:    consensus,
	}
}

// FormatEstimate renders a numeric estimate the way it appears on an
// issue: integral medians without a decimal point.
func FormatEstimate(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
