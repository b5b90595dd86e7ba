package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
)

var ErrStandingNotFound = errors.New("standing not found")

// StandingRepository хранит производные строки таблицы. Единственный путь
// записи — полная замена набора строк сетки в одной транзакции; инкрементальных
// обновлений нет, чтобы частичный сбой не оставил смесь старых и новых строк.
type StandingRepository interface {
	ReplaceForBracket(ctx context.Context, exec SQLExecutor, bracketID int, standings []*models.Standing) error
	ListByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Standing, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) ReplaceForBracket(ctx context.Context, exec SQLExecutor, bracketID int, standings []*models.Standing) error {
	executor := r.getExecutor(exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM standings WHERE bracket_id = $1`, bracketID); err != nil {
		return fmt.Errorf("failed to delete standings for bracket %d: %w", bracketID, err)
	}

	query := `
		INSERT INTO standings
			(tournament_id, bracket_id, team_id, wins, losses, points_for, points_against, quotient, rank, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	now := time.Now()
	for _, s := range standings {
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
		err := executor.QueryRowContext(ctx, query,
			s.TournamentID, s.BracketID, s.TeamID, s.Wins, s.Losses,
			s.PointsFor, s.PointsAgainst, s.Quotient, s.Rank, s.UpdatedAt,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to insert standing for team %d in bracket %d: %w", s.TeamID, bracketID, err)
		}
	}
	return nil
}

func (r *postgresStandingRepository) ListByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Standing, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, bracket_id, team_id, wins, losses,
		       points_for, points_against, quotient, rank, updated_at
		FROM standings
		WHERE bracket_id = $1
		ORDER BY rank ASC`
	rows, err := executor.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	standings := make([]*models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		if scanErr := rows.Scan(
			&s.ID, &s.TournamentID, &s.BracketID, &s.TeamID, &s.Wins, &s.Losses,
			&s.PointsFor, &s.PointsAgainst, &s.Quotient, &s.Rank, &s.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", scanErr)
		}
		standings = append(standings, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during standing rows iteration: %w", err)
	}
	return standings, nil
}
