package services

import (
	"errors"
	"fmt"
)

// Общие ошибки сервисного слоя и маппинга HTTP.
var (
	// Ресурс не найден
	ErrNotFound          = errors.New("requested resource not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrMatchNotFound     = errors.New("match not found")
	ErrBracketNotFound   = errors.New("bracket not found")

	// Оптимистическая блокировка: ожидаемая и штатная ошибка, не баг.
	// Клиент обязан перечитать состояние и решить заново, не повторять вслепую.
	ErrVersionConflict = errors.New("queue item version conflict")

	// Бизнес-правила очереди и матчей
	ErrInvalidTransition  = errors.New("invalid match status transition")
	ErrMissingCourt       = errors.New("court id is required for this action")
	ErrUnknownQueueAction = errors.New("unknown queue action kind")

	// Валидация входа
	ErrValidationFailed = errors.New("validation failed")

	// Аутентификация персонала
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
)

// VersionConflictError указывает первый конфликтующий элемент очереди,
// чтобы клиент знал, какую строку перечитывать. Разворачивается в
// ErrVersionConflict для errors.Is.
type VersionConflictError struct {
	QueueItemID     int
	ExpectedVersion int
	ActualVersion   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("queue item %d version conflict: expected %d, stored %d",
		e.QueueItemID, e.ExpectedVersion, e.ActualVersion)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}
