package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/realtime"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/repositories"
)

// EventPublisher — то, что сервисы зовут после коммита. Реализуется realtime.Hub.
type EventPublisher interface {
	Publish(topic realtime.Topic, event realtime.Event)
}

// QueueActionResult — канонические строки после принятой мутации.
type QueueActionResult struct {
	QueueItem *models.QueueItem `json:"queue_item"`
	Match     *models.Match     `json:"match"`
}

// QueueService — контроллер очереди. Каждая операция — compare-and-swap по
// (id, version) внутри одной транзакции; при конфликте ничего не применяется,
// слияния конкурирующих записей не бывает: побеждает последний провалидированный
// писатель, остальные перечитывают и решают заново.
type QueueService interface {
	Enqueue(ctx context.Context, tournamentID, matchID int) (*models.QueueItem, error)
	List(ctx context.Context, tournamentID int) ([]*models.QueueItem, error)
	Reorder(ctx context.Context, tournamentID int, items []models.ReorderItem) ([]*models.QueueItem, error)
	MarkReady(ctx context.Context, queueItemID, expectedVersion int) (*QueueActionResult, error)
	SendToCourt(ctx context.Context, queueItemID, expectedVersion int, courtID *int) (*QueueActionResult, error)
	Pull(ctx context.Context, queueItemID, expectedVersion int) (*QueueActionResult, error)
	Action(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*QueueActionResult, error)
}

type queueService struct {
	transactor repositories.Transactor
	queueRepo  repositories.QueueRepository
	matchRepo  repositories.MatchRepository
	publisher  EventPublisher
	logger     *slog.Logger
}

func NewQueueService(
	transactor repositories.Transactor,
	queueRepo repositories.QueueRepository,
	matchRepo repositories.MatchRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) QueueService {
	return &queueService{
		transactor: transactor,
		queueRepo:  queueRepo,
		matchRepo:  matchRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *queueService) Enqueue(ctx context.Context, tournamentID, matchID int) (*models.QueueItem, error) {
	item := &models.QueueItem{TournamentID: tournamentID, MatchID: matchID}
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
			}
			return err
		}
		if match.TournamentID != tournamentID {
			return fmt.Errorf("%w: match %d belongs to tournament %d", ErrValidationFailed, matchID, match.TournamentID)
		}
		if match.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot enqueue %s match %d", ErrInvalidTransition, match.Status, matchID)
		}
		return s.queueRepo.Create(ctx, exec, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(tournamentID, realtime.Event{
		Type:         realtime.EventQueueUpdated,
		Action:       realtime.QueueActionEnqueued,
		TournamentID: tournamentID,
		Payload:      realtime.QueueItemPayload{QueueItem: item},
	})
	return item, nil
}

func (s *queueService) List(ctx context.Context, tournamentID int) ([]*models.QueueItem, error) {
	return s.queueRepo.ListByTournament(ctx, nil, tournamentID)
}

// Reorder применяет переупорядочивание целиком или никак. Частичное применение
// рассыпало бы плотную нумерацию 1..N, поэтому первый же конфликт версии
// откатывает всё и называет виновную строку.
func (s *queueService) Reorder(ctx context.Context, tournamentID int, items []models.ReorderItem) ([]*models.QueueItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: reorder requires at least one item", ErrValidationFailed)
	}
	seenIDs := make(map[int]bool, len(items))
	seenPositions := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Position < 1 {
			return nil, fmt.Errorf("%w: position %d for item %d is out of range", ErrValidationFailed, it.Position, it.ID)
		}
		if seenIDs[it.ID] {
			return nil, fmt.Errorf("%w: item %d listed twice", ErrValidationFailed, it.ID)
		}
		if seenPositions[it.Position] {
			return nil, fmt.Errorf("%w: position %d assigned twice", ErrValidationFailed, it.Position)
		}
		seenIDs[it.ID] = true
		seenPositions[it.Position] = true
	}

	var updated []*models.QueueItem
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, it := range items {
			current, err := s.queueRepo.GetByID(ctx, exec, it.ID)
			if err != nil {
				if errors.Is(err, repositories.ErrQueueItemNotFound) {
					return fmt.Errorf("%w: queue item %d", ErrQueueItemNotFound, it.ID)
				}
				return err
			}
			if current.TournamentID != tournamentID {
				return fmt.Errorf("%w: queue item %d belongs to tournament %d", ErrValidationFailed, it.ID, current.TournamentID)
			}
			if _, err := s.queueRepo.UpdatePositionCAS(ctx, exec, it.ID, it.Position, it.Version); err != nil {
				if errors.Is(err, repositories.ErrQueueItemStale) {
					return &VersionConflictError{
						QueueItemID:     it.ID,
						ExpectedVersion: it.Version,
						ActualVersion:   current.Version,
					}
				}
				return err
			}
		}

		all, err := s.queueRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if err := checkDensePositions(all); err != nil {
			return err
		}
		updated = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(tournamentID, realtime.Event{
		Type:         realtime.EventQueueUpdated,
		Action:       realtime.QueueActionReordered,
		TournamentID: tournamentID,
		Payload:      realtime.QueueListPayload{Items: updated},
	})
	return updated, nil
}

// checkDensePositions проверяет, что позиции — перестановка 1..N.
func checkDensePositions(items []*models.QueueItem) error {
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if item.Position < 1 || item.Position > len(items) {
			return fmt.Errorf("%w: reorder leaves position %d outside 1..%d", ErrValidationFailed, item.Position, len(items))
		}
		if seen[item.Position] {
			return fmt.Errorf("%w: reorder leaves duplicate position %d", ErrValidationFailed, item.Position)
		}
		seen[item.Position] = true
	}
	return nil
}

func (s *queueService) MarkReady(ctx context.Context, queueItemID, expectedVersion int) (*QueueActionResult, error) {
	result, err := s.applyAction(ctx, queueItemID, expectedVersion, actionSpec{
		allowedFrom: []models.MatchStatus{models.MatchStatusPending},
		nextStatus:  models.MatchStatusReady,
		keepCourt:   true,
		queueAction: realtime.QueueActionMarkedReady,
	})
	return result, err
}

func (s *queueService) SendToCourt(ctx context.Context, queueItemID, expectedVersion int, courtID *int) (*QueueActionResult, error) {
	if courtID == nil {
		return nil, ErrMissingCourt
	}
	return s.applyAction(ctx, queueItemID, expectedVersion, actionSpec{
		allowedFrom: []models.MatchStatus{models.MatchStatusReady},
		nextStatus:  models.MatchStatusInProgress,
		courtID:     courtID,
		queueAction: realtime.QueueActionSentToCourt,
	})
}

func (s *queueService) Pull(ctx context.Context, queueItemID, expectedVersion int) (*QueueActionResult, error) {
	return s.applyAction(ctx, queueItemID, expectedVersion, actionSpec{
		allowedFrom: []models.MatchStatus{models.MatchStatusInProgress},
		nextStatus:  models.MatchStatusReady,
		clearCourt:  true,
		queueAction: realtime.QueueActionPulled,
	})
}

func (s *queueService) Action(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*QueueActionResult, error) {
	switch kind {
	case models.QueueActionMarkReady:
		return s.MarkReady(ctx, queueItemID, expectedVersion)
	case models.QueueActionSendToCourt:
		return s.SendToCourt(ctx, queueItemID, expectedVersion, courtID)
	case models.QueueActionPull:
		return s.Pull(ctx, queueItemID, expectedVersion)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueueAction, kind)
	}
}

// actionSpec описывает, что единичная операция делает со строками.
// allowedFrom — исходные статусы матча, из которых операция разрешена.
// Общая таблица жизненного цикла здесь не годится: она допускает
// in_progress→ready и для MarkReady, а этот переход — работа Pull.
// Ровно одно из courtID / clearCourt / keepCourt задаёт судьбу корта.
type actionSpec struct {
	allowedFrom []models.MatchStatus
	nextStatus  models.MatchStatus
	courtID     *int
	clearCourt  bool
	keepCourt   bool
	queueAction string
}

func statusAllowed(status models.MatchStatus, allowed []models.MatchStatus) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}

func (s *queueService) applyAction(ctx context.Context, queueItemID, expectedVersion int, spec actionSpec) (*QueueActionResult, error) {
	var result QueueActionResult
	var tournamentID int

	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		item, err := s.queueRepo.GetByID(ctx, exec, queueItemID)
		if err != nil {
			if errors.Is(err, repositories.ErrQueueItemNotFound) {
				return fmt.Errorf("%w: queue item %d", ErrQueueItemNotFound, queueItemID)
			}
			return err
		}
		tournamentID = item.TournamentID

		if item.Version != expectedVersion {
			return &VersionConflictError{
				QueueItemID:     queueItemID,
				ExpectedVersion: expectedVersion,
				ActualVersion:   item.Version,
			}
		}

		match, err := s.matchRepo.GetByID(ctx, exec, item.MatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, item.MatchID)
			}
			return err
		}
		if !statusAllowed(match.Status, spec.allowedFrom) {
			return fmt.Errorf("%w: match %d is %s, cannot become %s",
				ErrInvalidTransition, match.ID, match.Status, spec.nextStatus)
		}

		var updatedItem *models.QueueItem
		switch {
		case spec.keepCourt:
			updatedItem, err = s.queueRepo.TouchCAS(ctx, exec, queueItemID, expectedVersion)
		case spec.clearCourt:
			updatedItem, err = s.queueRepo.UpdateCourtCAS(ctx, exec, queueItemID, nil, expectedVersion)
		default:
			updatedItem, err = s.queueRepo.UpdateCourtCAS(ctx, exec, queueItemID, spec.courtID, expectedVersion)
		}
		if err != nil {
			if errors.Is(err, repositories.ErrQueueItemStale) {
				// Версия ушла между чтением и записью в этой же транзакции —
				// параллельный коммит успел раньше. Сколько раз он подвинул
				// строку, отсюда не видно, поэтому перечитываем.
				current, readErr := s.queueRepo.GetByID(ctx, exec, queueItemID)
				if readErr != nil {
					if errors.Is(readErr, repositories.ErrQueueItemNotFound) {
						return fmt.Errorf("%w: queue item %d", ErrQueueItemNotFound, queueItemID)
					}
					return readErr
				}
				return &VersionConflictError{
					QueueItemID:     queueItemID,
					ExpectedVersion: expectedVersion,
					ActualVersion:   current.Version,
				}
			}
			return err
		}

		matchCourt := match.CourtID
		if spec.clearCourt {
			matchCourt = nil
		} else if !spec.keepCourt {
			matchCourt = spec.courtID
		}
		updatedMatch, err := s.matchRepo.UpdateStatusCourt(ctx, exec, match.ID, spec.nextStatus, matchCourt)
		if err != nil {
			return err
		}

		result.QueueItem = updatedItem
		result.Match = updatedMatch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(tournamentID, realtime.Event{
		Type:         realtime.EventQueueUpdated,
		Action:       spec.queueAction,
		TournamentID: tournamentID,
		Payload:      realtime.QueueItemPayload{QueueItem: result.QueueItem, Match: result.Match},
	})
	s.publish(tournamentID, realtime.Event{
		Type:         realtime.EventMatchUpdated,
		Action:       realtime.MatchActionUpdated,
		TournamentID: tournamentID,
		Payload:      result.Match,
	})
	return &result, nil
}

func (s *queueService) publish(tournamentID int, event realtime.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.TournamentTopic(tournamentID), event)
	if s.logger != nil {
		s.logger.Debug("queue event published",
			slog.Int("tournament_id", tournamentID),
			slog.String("type", string(event.Type)),
			slog.String("action", event.Action))
	}
}
