package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// GameScore — очки одной партии: A и B соответствуют сторонам матча
// (team_a_id / team_b_id).
type GameScore struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Score — канонический формат счёта матча. Хранится в колонке score (JSONB).
// Winner опционален: если судья явно объявил победителя, его team id лежит здесь
// и имеет приоритет над подсчётом партий.
type Score struct {
	Games  []GameScore `json:"games"`
	Winner *int        `json:"winner,omitempty"`
}

// Validate проверяет форму счёта относительно сторон матча.
func (s *Score) Validate(teamAID, teamBID *int) error {
	if len(s.Games) == 0 {
		return errors.New("score must contain at least one game")
	}
	for i, g := range s.Games {
		if g.A < 0 || g.B < 0 {
			return fmt.Errorf("game %d has negative points", i+1)
		}
	}
	if s.Winner != nil {
		if teamAID == nil || teamBID == nil {
			return errors.New("declared winner requires both match sides to be set")
		}
		if *s.Winner != *teamAID && *s.Winner != *teamBID {
			return fmt.Errorf("declared winner %d is not a side of this match", *s.Winner)
		}
	}
	return nil
}

// GamesWon возвращает количество партий, выигранных каждой стороной.
// Партия с равным счётом не засчитывается никому.
func (s *Score) GamesWon() (a, b int) {
	for _, g := range s.Games {
		switch {
		case g.A > g.B:
			a++
		case g.B > g.A:
			b++
		}
	}
	return a, b
}

// TotalPoints возвращает суммарные очки каждой стороны по всем партиям.
func (s *Score) TotalPoints() (a, b int) {
	for _, g := range s.Games {
		a += g.A
		b += g.B
	}
	return a, b
}

// ResolveWinner определяет победителя в порядке приоритета: явно объявленный
// победитель, затем по выигранным партиям, затем по суммарным очкам.
// ok == false означает ничью: матч не даёт никому победы/поражения.
func (s *Score) ResolveWinner(teamAID, teamBID int) (winnerID int, ok bool) {
	if s.Winner != nil && (*s.Winner == teamAID || *s.Winner == teamBID) {
		return *s.Winner, true
	}
	aGames, bGames := s.GamesWon()
	if aGames != bGames {
		if aGames > bGames {
			return teamAID, true
		}
		return teamBID, true
	}
	aPts, bPts := s.TotalPoints()
	if aPts != bPts {
		if aPts > bPts {
			return teamAID, true
		}
		return teamBID, true
	}
	return 0, false
}

// Value / Scan — кодек для JSONB-колонки.
func (s Score) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Score) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported score column type %T", src)
	}
}
