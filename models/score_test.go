package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestScoreValidate(t *testing.T) {
	teamA := intPtr(101)
	teamB := intPtr(102)

	testCases := []struct {
		name    string
		score   Score
		teamA   *int
		teamB   *int
		wantErr bool
	}{
		{
			name:  "valid two game score",
			score: Score{Games: []GameScore{{A: 11, B: 7}, {A: 11, B: 6}}},
			teamA: teamA, teamB: teamB,
		},
		{
			name:  "valid declared winner",
			score: Score{Games: []GameScore{{A: 11, B: 7}}, Winner: intPtr(102)},
			teamA: teamA, teamB: teamB,
		},
		{
			name:  "no games",
			score: Score{},
			teamA: teamA, teamB: teamB,
			wantErr: true,
		},
		{
			name:  "negative points",
			score: Score{Games: []GameScore{{A: -1, B: 7}}},
			teamA: teamA, teamB: teamB,
			wantErr: true,
		},
		{
			name:  "winner is not a side of the match",
			score: Score{Games: []GameScore{{A: 11, B: 7}}, Winner: intPtr(999)},
			teamA: teamA, teamB: teamB,
			wantErr: true,
		},
		{
			name:  "declared winner without both sides set",
			score: Score{Games: []GameScore{{A: 11, B: 7}}, Winner: intPtr(101)},
			teamA: teamA, teamB: nil,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.score.Validate(tc.teamA, tc.teamB)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveWinner(t *testing.T) {
	testCases := []struct {
		name   string
		score  Score
		winner int
		tie    bool
	}{
		{
			name:   "declared winner beats game count",
			score:  Score{Games: []GameScore{{A: 11, B: 2}, {A: 11, B: 3}}, Winner: intPtr(102)},
			winner: 102,
		},
		{
			name:   "declared winner outside the match is ignored",
			score:  Score{Games: []GameScore{{A: 11, B: 2}}, Winner: intPtr(999)},
			winner: 101,
		},
		{
			name:   "side with more games wins",
			score:  Score{Games: []GameScore{{A: 7, B: 11}, {A: 11, B: 9}, {A: 4, B: 11}}},
			winner: 102,
		},
		{
			name:   "equal games decided by total points",
			score:  Score{Games: []GameScore{{A: 11, B: 0}, {A: 2, B: 12}}},
			winner: 101,
		},
		{
			name:  "identical games and points is a tie",
			score: Score{Games: []GameScore{{A: 11, B: 0}, {A: 0, B: 11}}},
			tie:   true,
		},
		{
			name:  "drawn single game is a tie",
			score: Score{Games: []GameScore{{A: 5, B: 5}}},
			tie:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			winnerID, ok := tc.score.ResolveWinner(101, 102)
			if tc.tie {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.winner, winnerID)
		})
	}
}

func TestGamesWonIgnoresDrawnGames(t *testing.T) {
	score := Score{Games: []GameScore{{A: 11, B: 7}, {A: 8, B: 8}, {A: 3, B: 11}}}
	a, b := score.GamesWon()
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	aPts, bPts := score.TotalPoints()
	assert.Equal(t, 22, aPts)
	assert.Equal(t, 26, bPts)
}

func TestMatchStatusTransitions(t *testing.T) {
	assert.True(t, MatchStatusPending.CanTransition(MatchStatusReady))
	assert.True(t, MatchStatusReady.CanTransition(MatchStatusInProgress))
	assert.True(t, MatchStatusInProgress.CanTransition(MatchStatusReady), "pull returns a match to ready")
	assert.True(t, MatchStatusInProgress.CanTransition(MatchStatusCompleted))

	assert.False(t, MatchStatusPending.CanTransition(MatchStatusInProgress), "a match cannot skip ready")
	assert.False(t, MatchStatusCompleted.CanTransition(MatchStatusReady), "completed is terminal")
	assert.False(t, MatchStatusCancelled.CanTransition(MatchStatusReady), "cancelled is terminal")
	assert.False(t, MatchStatusReady.CanTransition(MatchStatusReady), "no self transitions")

	assert.True(t, MatchStatusCompleted.IsTerminal())
	assert.True(t, MatchStatusCancelled.IsTerminal())
	assert.False(t, MatchStatusInProgress.IsTerminal())
}
