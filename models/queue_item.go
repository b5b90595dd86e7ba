package models

import "time"

// QueueItem — позиция матча в единой очереди турнира.
//
// Position — плотный индекс 1..N, уникальный внутри турнира; после каждой
// успешной мутации множество позиций остаётся перестановкой 1..N.
// Version растёт ровно на 1 при каждой принятой мутации строки и никогда
// не уменьшается; все записи идут через compare-and-swap по (id, version).
type QueueItem struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	MatchID      int       `json:"match_id" db:"match_id"`
	CourtID      *int      `json:"court_id,omitempty" db:"court_id"`
	Position     int       `json:"position" db:"position"`
	Version      int       `json:"version" db:"version"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// QueueActionKind — вид единичной операции над элементом очереди.
type QueueActionKind string

const (
	QueueActionMarkReady   QueueActionKind = "MARK_READY"
	QueueActionPull        QueueActionKind = "PULL"
	QueueActionSendToCourt QueueActionKind = "SEND_TO_COURT"
)

// ReorderItem — одна строка запроса на переупорядочивание:
// клиент сообщает желаемую позицию и версию, которую он последней видел.
type ReorderItem struct {
	ID       int `json:"id"`
	Position int `json:"position"`
	Version  int `json:"version"`
}
