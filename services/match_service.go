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

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	SubmitScore(ctx context.Context, matchID int, score models.Score) (*models.Match, error)
}

type matchService struct {
	transactor repositories.Transactor
	matchRepo  repositories.MatchRepository
	queueRepo  repositories.QueueRepository
	standings  StandingsService
	publisher  EventPublisher
	// removeCompleted: удалять ли строку очереди завершённого матча в той же
	// транзакции (политика окружающей системы, см. QUEUE_REMOVE_COMPLETED).
	removeCompleted bool
	logger          *slog.Logger
}

func NewMatchService(
	transactor repositories.Transactor,
	matchRepo repositories.MatchRepository,
	queueRepo repositories.QueueRepository,
	standings StandingsService,
	publisher EventPublisher,
	removeCompleted bool,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		transactor:      transactor,
		matchRepo:       matchRepo,
		queueRepo:       queueRepo,
		standings:       standings,
		publisher:       publisher,
		removeCompleted: removeCompleted,
		logger:          logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, id)
		}
		return nil, err
	}
	return match, nil
}

// SubmitScore валидирует счёт, переводит матч в completed и, по политике,
// убирает его строку из очереди, закрыв дыру в нумерации, — всё в одной
// транзакции. После коммита рассылаются события и пересчитывается таблица сетки.
func (s *matchService) SubmitScore(ctx context.Context, matchID int, score models.Score) (*models.Match, error) {
	var updated *models.Match
	var removedItem *models.QueueItem
	var tournamentID, bracketID int

	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
			}
			return err
		}
		tournamentID = match.TournamentID
		bracketID = match.BracketID

		if err := score.Validate(match.TeamAID, match.TeamBID); err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		if !match.Status.CanTransition(models.MatchStatusCompleted) {
			return fmt.Errorf("%w: match %d is %s, cannot complete",
				ErrInvalidTransition, matchID, match.Status)
		}

		var winnerTeamID *int
		if match.TeamAID != nil && match.TeamBID != nil {
			if winnerID, ok := score.ResolveWinner(*match.TeamAID, *match.TeamBID); ok {
				winnerTeamID = &winnerID
			}
		}

		updated, err = s.matchRepo.UpdateScoreStatusWinner(ctx, exec, matchID, &score, models.MatchStatusCompleted, winnerTeamID)
		if err != nil {
			return err
		}

		if !s.removeCompleted {
			return nil
		}
		item, err := s.queueRepo.GetByMatchID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrQueueItemNotFound) {
				return nil // матч уже не в очереди
			}
			return err
		}
		if err := s.queueRepo.Delete(ctx, exec, item.ID); err != nil {
			return err
		}
		if err := s.queueRepo.CompactPositions(ctx, exec, item.TournamentID, item.Position); err != nil {
			return err
		}
		removedItem = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	topic := realtime.TournamentTopic(tournamentID)
	if s.publisher != nil {
		s.publisher.Publish(topic, realtime.Event{
			Type:         realtime.EventScoreUpdated,
			TournamentID: tournamentID,
			Payload:      realtime.ScorePayload{MatchID: matchID, Score: updated.Score},
		})
		s.publisher.Publish(topic, realtime.Event{
			Type:         realtime.EventMatchUpdated,
			Action:       realtime.MatchActionCompleted,
			TournamentID: tournamentID,
			Payload:      updated,
		})
		if removedItem != nil {
			s.publisher.Publish(topic, realtime.Event{
				Type:         realtime.EventQueueUpdated,
				Action:       realtime.QueueActionRemoved,
				TournamentID: tournamentID,
				Payload:      realtime.QueueItemPayload{QueueItem: removedItem, Match: updated},
			})
		}
	}

	// Счёт уже закоммичен: неудачный пересчёт таблицы не должен выглядеть как
	// отказ сдачи счёта. Логируем и оставляем таблицу до следующего триггера.
	if s.standings != nil {
		if _, err := s.standings.Recompute(ctx, bracketID); err != nil {
			s.logger.Error("standings recompute after score submission failed",
				slog.Int("match_id", matchID), slog.Int("bracket_id", bracketID), slog.Any("error", err))
		}
	}
	return updated, nil
}
