package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
)

func votesOf(values ...string) []domain.Vote {
	votes := make([]domain.Vote, len(values))
	for i, v := range values {
		votes[i] = domain.Vote{ParticipantID: string(rune('a' + i)), Value: v}
	}
	return votes
}

func TestCalculate_EmptyInput(t *testing.T) {
	assert.Nil(t, Calculate(nil))
	assert.Nil(t, Calculate([]domain.Vote{}))
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		values        []string
		wantAverage   float64
		wantMedian    float64
		wantMode      []string
		wantConsensus bool
	}{
		{
			name:          "mixed numeric votes",
			values:        []string{"5", "5", "8"},
			wantAverage:   6.0,
			wantMedian:    5,
			wantMode:      []string{"5"},
			wantConsensus: false,
		},
		{
			name:          "unanimous votes",
			values:        []string{"3", "3", "3"},
			wantAverage:   3,
			wantMedian:    3,
			wantMode:      []string{"3"},
			wantConsensus: true,
		},
		{
			name:          "single vote is consensus",
			values:        []string{"13"},
			wantAverage:   13,
			wantMedian:    13,
			wantMode:      []string{"13"},
			wantConsensus: true,
		},
		{
			name:          "even count medians between middle values",
			values:        []string{"3", "8", "5", "13"},
			wantAverage:   7.3,
			wantMedian:    6.5,
			wantMode:      []string{"3", "8", "5", "13"},
			wantConsensus: false,
		},
		{
			name:          "escape values excluded from numeric aggregates",
			values:        []string{"5", "5", "?", "☕"},
			wantAverage:   5,
			wantMedian:    5,
			wantMode:      []string{"5"},
			wantConsensus: false,
		},
		{
			name:          "tied modes keep first-seen order",
			values:        []string{"8", "5", "8", "5"},
			wantAverage:   6.5,
			wantMedian:    6.5,
			wantMode:      []string{"8", "5"},
			wantConsensus: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(votesOf(tt.values...))
			require.NotNil(t, got)

			assert.Equal(t, tt.wantAverage, got.Average)
			assert.Equal(t, tt.wantMedian, got.Median)
			assert.Equal(t, tt.wantMode, got.Mode)
			assert.Equal(t, tt.wantConsensus, got.Consensus)
			assert.Equal(t, len(tt.values), totalCount(got.Distribution))
		})
	}
}

func TestCalculate_AllEscapeValues(t *testing.T) {
	got := Calculate(votesOf("?", "☕", "?"))
	require.NotNil(t, got)

	assert.Zero(t, got.Average)
	assert.Zero(t, got.Median)
	assert.Empty(t, got.Mode)
	assert.False(t, got.Consensus)
	assert.Equal(t, map[string]int{"?": 2, "☕": 1}, got.Distribution)
}

func TestCalculate_DistributionCoversAllVotes(t *testing.T) {
	got := Calculate(votesOf("5", "?", "5", "8"))
	require.NotNil(t, got)
	assert.Equal(t, map[string]int{"5": 2, "?": 1, "8": 1}, got.Distribution)
}

func TestFormatEstimate(t *testing.T) {
	assert.Equal(t, "5", FormatEstimate(5))
	assert.Equal(t, "6.5", FormatEstimate(6.5))
	assert.Equal(t, "0", FormatEstimate(0))
}

func totalCount(distribution map[string]int) int {
	total := 0
	for _, count := range distribution {
		total += count
	}
	return total
}
