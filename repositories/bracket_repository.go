package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
)

var ErrBracketNotFound = errors.New("bracket not found")

// BracketRepository — read-only метаданные сеток; генерация сеток живёт снаружи.
type BracketRepository interface {
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	query := `SELECT id, tournament_id, division_id, name FROM brackets WHERE id = $1`
	var b models.Bracket
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.TournamentID, &b.DivisionID, &b.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket by id %d: %w", id, err)
	}
	return &b, nil
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	query := `SELECT id, tournament_id, division_id, name FROM brackets WHERE tournament_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		var b models.Bracket
		if scanErr := rows.Scan(&b.ID, &b.TournamentID, &b.DivisionID, &b.Name); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket row: %w", scanErr)
		}
		brackets = append(brackets, &b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket rows iteration: %w", err)
	}
	return brackets, nil
}
