package models

// Bracket — метаданные сетки: принадлежность турниру и дивизиону.
// Ядро читает их только для резолва tournament_id по bracket_id;
// генерация сеток живёт снаружи.
type Bracket struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	DivisionID   int    `json:"division_id" db:"division_id"`
	Name         string `json:"name" db:"name"`
}
