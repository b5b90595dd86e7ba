package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchBracketInvalid    = errors.New("match bracket conflict or invalid")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchCourtInvalid      = errors.New("match court conflict or invalid")
)

type MatchRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListCompletedByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Match, error)
	UpdateStatusCourt(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, courtID *int) (*models.Match, error)
	UpdateScoreStatusWinner(ctx context.Context, exec SQLExecutor, id int, score *models.Score, status models.MatchStatus, winnerTeamID *int) (*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, bracket_id, round, match_number,
	team_a_id, team_b_id, status, court_id, scheduled_at, winner_team_id, score, updated_at`

func scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var score models.Score
	var scoreRaw []byte
	err := rowScanner.Scan(
		&m.ID,
		&m.TournamentID,
		&m.BracketID,
		&m.Round,
		&m.MatchNumber,
		&m.TeamAID,
		&m.TeamBID,
		&m.Status,
		&m.CourtID,
		&m.ScheduledAt,
		&m.WinnerTeamID,
		&scoreRaw,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if scoreRaw != nil {
		if err := score.Scan(scoreRaw); err != nil {
			return nil, fmt.Errorf("failed to decode score for match %d: %w", m.ID, err)
		}
		m.Score = &score
	}
	return &m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)
	match, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListCompletedByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT %s FROM matches
		WHERE bracket_id = $1 AND status = $2 AND score IS NOT NULL
		ORDER BY round ASC, match_number ASC`, matchColumns)
	rows, err := executor.QueryContext(ctx, query, bracketID, models.MatchStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed matches for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatusCourt(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, courtID *int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE matches
		SET status = $2, court_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, matchColumns)
	match, err := scanMatch(executor.QueryRowContext(ctx, query, id, status, courtID))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, r.handleMatchError(err)
	}
	return match, nil
}

func (r *postgresMatchRepository) UpdateScoreStatusWinner(ctx context.Context, exec SQLExecutor, id int, score *models.Score, status models.MatchStatus, winnerTeamID *int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	var scoreArg interface{}
	if score != nil {
		raw, err := score.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to encode score for match %d: %w", id, err)
		}
		scoreArg = raw
	}
	query := fmt.Sprintf(`
		UPDATE matches
		SET score = $2, status = $3, winner_team_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, matchColumns)
	match, err := scanMatch(executor.QueryRowContext(ctx, query, id, scoreArg, status, winnerTeamID))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, r.handleMatchError(err)
	}
	return match, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_bracket_id_fkey":
			return ErrMatchBracketInvalid
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_court_id_fkey":
			return ErrMatchCourtInvalid
		}
	}
	return err
}
