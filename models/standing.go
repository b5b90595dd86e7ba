package models

import "time"

// Standing — вычисленная строка таблицы внутри сетки (bracket).
// Полностью производная: набор строк сетки целиком заменяется при каждом
// пересчёте, вручную не редактируется.
type Standing struct {
	ID            int       `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	BracketID     int       `json:"bracket_id" db:"bracket_id"`
	TeamID        int       `json:"team_id" db:"team_id"`
	Wins          int       `json:"wins" db:"wins"`
	Losses        int       `json:"losses" db:"losses"`
	PointsFor     int       `json:"points_for" db:"points_for"`
	PointsAgainst int       `json:"points_against" db:"points_against"`
	Quotient      float64   `json:"quotient" db:"quotient"`
	Rank          int       `json:"rank" db:"rank"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PointDiff — разница очков, третий критерий сортировки таблицы.
func (s *Standing) PointDiff() int {
	return s.PointsFor - s.PointsAgainst
}
