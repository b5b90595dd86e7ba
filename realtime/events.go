package realtime

import (
	"strconv"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
)

// Topic — типизированный канал рассылки. Подписчики получают только события
// своего турнира; между топиками порядок не гарантируется и не нужен.
type Topic string

func TournamentTopic(tournamentID int) Topic {
	return Topic("tournament:" + strconv.Itoa(tournamentID))
}

type EventType string

const (
	EventQueueUpdated     EventType = "queue-updated"
	EventMatchUpdated     EventType = "match-updated"
	EventScoreUpdated     EventType = "score-updated"
	EventStandingsUpdated EventType = "standings-updated"
)

// Суб-действия queue-updated.
const (
	QueueActionReordered   = "reordered"
	QueueActionEnqueued    = "enqueued"
	QueueActionMarkedReady = "marked_ready"
	QueueActionSentToCourt = "sent_to_court"
	QueueActionPulled      = "pulled"
	QueueActionRemoved     = "removed"
)

// Суб-действия match-updated.
const (
	MatchActionCreated   = "created"
	MatchActionUpdated   = "updated"
	MatchActionCompleted = "completed"
)

// Event — конверт события. Payload всегда несёт полный снимок затронутой
// сущности, а не дельту: клиент, пропустивший событие, восстанавливает
// консистентность upsert-ом по id из следующего полученного события.
type Event struct {
	Type         EventType   `json:"type"`
	Action       string      `json:"action,omitempty"`
	TournamentID int         `json:"tournament_id"`
	Payload      interface{} `json:"payload"`
}

// QueueItemPayload — снимок одного элемента очереди вместе со связанным матчем.
type QueueItemPayload struct {
	QueueItem *models.QueueItem `json:"queue_item"`
	Match     *models.Match     `json:"match,omitempty"`
}

// QueueListPayload — полный снимок очереди после переупорядочивания.
type QueueListPayload struct {
	Items []*models.QueueItem `json:"items"`
}

// ScorePayload — счёт матча после сдачи.
type ScorePayload struct {
	MatchID int           `json:"match_id"`
	Score   *models.Score `json:"score"`
}

// StandingsPayload — пересчитанная таблица сетки целиком.
type StandingsPayload struct {
	BracketID int                `json:"bracket_id"`
	Standings []*models.Standing `json:"standings"`
}
