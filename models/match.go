package models

import "time"

// MatchStatus соответствует ENUM match_status в БД.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusReady      MatchStatus = "ready"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// Match представляет один матч турнира.
// Статус меняется только через операции очереди и сдачу счёта;
// completed и cancelled — терминальные.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	BracketID    int         `json:"bracket_id" db:"bracket_id"`
	Round        int         `json:"round" db:"round"`
	MatchNumber  int         `json:"match_number" db:"match_number"`
	TeamAID      *int        `json:"team_a_id,omitempty" db:"team_a_id"`
	TeamBID      *int        `json:"team_b_id,omitempty" db:"team_b_id"`
	Status       MatchStatus `json:"status" db:"status"`
	CourtID      *int        `json:"court_id,omitempty" db:"court_id"`
	ScheduledAt  *time.Time  `json:"scheduled_at,omitempty" db:"scheduled_at"`
	WinnerTeamID *int        `json:"winner_team_id,omitempty" db:"winner_team_id"`
	Score        *Score      `json:"score,omitempty" db:"score"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

var allowedMatchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:    {MatchStatusReady, MatchStatusCancelled},
	MatchStatusReady:      {MatchStatusInProgress, MatchStatusCancelled},
	MatchStatusInProgress: {MatchStatusReady, MatchStatusCompleted, MatchStatusCancelled},
	MatchStatusCompleted:  {},
	MatchStatusCancelled:  {},
}

// CanTransition reports whether moving from the current status to next is
// allowed by the match lifecycle. in_progress -> ready covers Pull.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	if s == next {
		return false
	}
	for _, allowed := range allowedMatchTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}
