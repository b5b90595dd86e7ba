package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/realtime"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/repositories"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/storage"
	"golang.org/x/sync/errgroup"
)

// StandingsService пересчитывает таблицу сетки по завершённым матчам.
// Пересчёт идемпотентен: для фиксированного набора матчей результат
// детерминирован с точностью до байта.
type StandingsService interface {
	GetByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error)
	Recompute(ctx context.Context, bracketID int) ([]*models.Standing, error)
	RecomputeTournament(ctx context.Context, tournamentID int) error
}

type standingsService struct {
	transactor   repositories.Transactor
	matchRepo    repositories.MatchRepository
	standingRepo repositories.StandingRepository
	bracketRepo  repositories.BracketRepository
	publisher    EventPublisher
	snapshots    storage.SnapshotStore
	logger       *slog.Logger
}

func NewStandingsService(
	transactor repositories.Transactor,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	bracketRepo repositories.BracketRepository,
	publisher EventPublisher,
	snapshots storage.SnapshotStore,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		transactor:   transactor,
		matchRepo:    matchRepo,
		standingRepo: standingRepo,
		bracketRepo:  bracketRepo,
		publisher:    publisher,
		snapshots:    snapshots,
		logger:       logger,
	}
}

// ComputeStandings — чистая функция ранжирования. Матч без обеих сторон или
// без счёта пропускается: это незаполненная запись, не ошибка. Победитель
// определяется по приоритету: объявленный победитель, выигранные партии,
// суммарные очки; при полной ничьей очки идут в копилки обеих команд,
// а победа не достаётся никому.
//
// Порядок: wins ↓, quotient ↓, разница очков ↓, points_for ↓, team_id ↑.
// Последний критерий произволен, но стабилен — сортировка никогда не зависит
// от порядка вставки.
func ComputeStandings(tournamentID, bracketID int, matches []*models.Match) []*models.Standing {
	byTeam := make(map[int]*models.Standing)
	team := func(id int) *models.Standing {
		if s, ok := byTeam[id]; ok {
			return s
		}
		s := &models.Standing{TournamentID: tournamentID, BracketID: bracketID, TeamID: id}
		byTeam[id] = s
		return s
	}

	for _, m := range matches {
		if m.Status != models.MatchStatusCompleted || m.Score == nil {
			continue
		}
		if m.TeamAID == nil || m.TeamBID == nil {
			continue
		}
		a := team(*m.TeamAID)
		b := team(*m.TeamBID)

		aPts, bPts := m.Score.TotalPoints()
		a.PointsFor += aPts
		a.PointsAgainst += bPts
		b.PointsFor += bPts
		b.PointsAgainst += aPts

		if winnerID, ok := m.Score.ResolveWinner(*m.TeamAID, *m.TeamBID); ok {
			if winnerID == a.TeamID {
				a.Wins++
				b.Losses++
			} else {
				b.Wins++
				a.Losses++
			}
		}
	}

	standings := make([]*models.Standing, 0, len(byTeam))
	for _, s := range byTeam {
		s.Quotient = quotient(s.PointsFor, s.PointsAgainst)
		standings = append(standings, s)
	}

	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Quotient != b.Quotient {
			return a.Quotient > b.Quotient
		}
		if a.PointDiff() != b.PointDiff() {
			return a.PointDiff() > b.PointDiff()
		}
		if a.PointsFor != b.PointsFor {
			return a.PointsFor > b.PointsFor
		}
		return a.TeamID < b.TeamID
	})
	for i, s := range standings {
		s.Rank = i + 1
	}
	return standings
}

// quotient = pointsFor / max(1, pointsAgainst), 4 знака после запятой.
// max(1, …) страхует деление на ноль у команды, не пропустившей ни очка.
func quotient(pointsFor, pointsAgainst int) float64 {
	divisor := pointsAgainst
	if divisor < 1 {
		divisor = 1
	}
	return math.Round(float64(pointsFor)/float64(divisor)*10000) / 10000
}

func (s *standingsService) GetByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	if _, err := s.bracketRepo.GetByID(ctx, bracketID); err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, fmt.Errorf("%w: bracket %d", ErrBracketNotFound, bracketID)
		}
		return nil, err
	}
	return s.standingRepo.ListByBracket(ctx, nil, bracketID)
}

// Recompute полностью заменяет строки таблицы сетки в одной транзакции
// (delete-then-insert), чтобы частичный сбой не оставил смесь старых и
// новых строк, и рассылает снимок подписчикам турнира.
func (s *standingsService) Recompute(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, fmt.Errorf("%w: bracket %d", ErrBracketNotFound, bracketID)
		}
		return nil, err
	}

	var standings []*models.Standing
	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		matches, err := s.matchRepo.ListCompletedByBracket(ctx, exec, bracketID)
		if err != nil {
			return err
		}
		standings = ComputeStandings(bracket.TournamentID, bracketID, matches)
		return s.standingRepo.ReplaceForBracket(ctx, exec, bracketID, standings)
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(realtime.TournamentTopic(bracket.TournamentID), realtime.Event{
			Type:         realtime.EventStandingsUpdated,
			TournamentID: bracket.TournamentID,
			Payload:      realtime.StandingsPayload{BracketID: bracketID, Standings: standings},
		})
	}
	s.archiveSnapshot(ctx, bracketID, standings)
	return standings, nil
}

// RecomputeTournament — полный пересчёт всех сеток турнира по требованию.
func (s *standingsService) RecomputeTournament(ctx context.Context, tournamentID int) error {
	brackets, err := s.bracketRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, bracket := range brackets {
		bracketID := bracket.ID
		g.Go(func() error {
			_, err := s.Recompute(ctx, bracketID)
			return err
		})
	}
	return g.Wait()
}

// archiveSnapshot выгружает JSON-снимок таблицы в объектное хранилище.
// Сбой выгрузки не роняет пересчёт: снимок — побочный артефакт, БД уже
// содержит каноничные строки.
func (s *standingsService) archiveSnapshot(ctx context.Context, bracketID int, standings []*models.Standing) {
	if s.snapshots == nil {
		return
	}
	payload, err := json.Marshal(standings)
	if err != nil {
		s.logger.Error("failed to marshal standings snapshot",
			slog.Int("bracket_id", bracketID), slog.Any("error", err))
		return
	}
	key := fmt.Sprintf("standings/%d.json", bracketID)
	if _, err := s.snapshots.Upload(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		s.logger.Error("failed to archive standings snapshot",
			slog.Int("bracket_id", bracketID), slog.String("key", key), slog.Any("error", err))
	}
}
