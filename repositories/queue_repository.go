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
	ErrQueueItemNotFound = errors.New("queue item not found")
	// ErrQueueItemStale: строка есть, но версия ушла, либо строки нет вовсе.
	// Сервис различает эти случаи повторным чтением.
	ErrQueueItemStale         = errors.New("queue item missing or version changed")
	ErrQueueMatchInvalid      = errors.New("queue item match conflict or invalid")
	ErrQueuePositionConflict  = errors.New("queue position conflict")
	ErrQueueTournamentInvalid = errors.New("queue item tournament conflict or invalid")
)

// QueueRepository владеет строками queue_items. Все мутации, кроме Create,
// идут через compare-and-swap по (id, version); version растёт на 1 при
// каждом принятом изменении строки, включая сдвиг позиций при компактации.
type QueueRepository interface {
	Create(ctx context.Context, exec SQLExecutor, item *models.QueueItem) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.QueueItem, error)
	GetByMatchID(ctx context.Context, exec SQLExecutor, matchID int) (*models.QueueItem, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.QueueItem, error)
	UpdatePositionCAS(ctx context.Context, exec SQLExecutor, id, position, expectedVersion int) (*models.QueueItem, error)
	UpdateCourtCAS(ctx context.Context, exec SQLExecutor, id int, courtID *int, expectedVersion int) (*models.QueueItem, error)
	TouchCAS(ctx context.Context, exec SQLExecutor, id, expectedVersion int) (*models.QueueItem, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	CompactPositions(ctx context.Context, exec SQLExecutor, tournamentID, removedPosition int) error
}

type postgresQueueRepository struct {
	db *sql.DB
}

func NewPostgresQueueRepository(db *sql.DB) QueueRepository {
	return &postgresQueueRepository{db: db}
}

func (r *postgresQueueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const queueItemColumns = "id, tournament_id, match_id, court_id, position, version, updated_at"

func scanQueueItem(rowScanner interface{ Scan(...interface{}) error }) (*models.QueueItem, error) {
	var item models.QueueItem
	err := rowScanner.Scan(
		&item.ID,
		&item.TournamentID,
		&item.MatchID,
		&item.CourtID,
		&item.Position,
		&item.Version,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *postgresQueueRepository) Create(ctx context.Context, exec SQLExecutor, item *models.QueueItem) error {
	executor := r.getExecutor(exec)
	// Новый элемент всегда встаёт в хвост: position = max+1 в том же стейтменте,
	// чтобы конкурентные вставки не выбили одинаковую позицию.
	query := `
		INSERT INTO queue_items (tournament_id, match_id, position, version, updated_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM queue_items WHERE tournament_id = $1),
			0, NOW())
		RETURNING id, position, version, updated_at`
	err := executor.QueryRowContext(ctx, query, item.TournamentID, item.MatchID).
		Scan(&item.ID, &item.Position, &item.Version, &item.UpdatedAt)
	return r.handleQueueError(err)
}

func (r *postgresQueueRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.QueueItem, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE id = $1`, queueItemColumns)
	return scanQueueItem(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresQueueRepository) GetByMatchID(ctx context.Context, exec SQLExecutor, matchID int) (*models.QueueItem, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE match_id = $1`, queueItemColumns)
	return scanQueueItem(executor.QueryRowContext(ctx, query, matchID))
}

func (r *postgresQueueRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.QueueItem, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE tournament_id = $1 ORDER BY position ASC`, queueItemColumns)
	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	items := make([]*models.QueueItem, 0)
	for rows.Next() {
		item, scanErr := scanQueueItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan queue item row: %w", scanErr)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during queue rows iteration: %w", err)
	}
	return items, nil
}

func (r *postgresQueueRepository) casUpdate(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.QueueItem, error) {
	executor := r.getExecutor(exec)
	item, err := scanQueueItem(executor.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrQueueItemNotFound) {
			// Нулевое число строк при CAS: либо id нет, либо версия не совпала.
			return nil, ErrQueueItemStale
		}
		return nil, r.handleQueueError(err)
	}
	return item, nil
}

func (r *postgresQueueRepository) UpdatePositionCAS(ctx context.Context, exec SQLExecutor, id, position, expectedVersion int) (*models.QueueItem, error) {
	query := fmt.Sprintf(`
		UPDATE queue_items
		SET position = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING %s`, queueItemColumns)
	return r.casUpdate(ctx, exec, query, id, position, expectedVersion)
}

func (r *postgresQueueRepository) UpdateCourtCAS(ctx context.Context, exec SQLExecutor, id int, courtID *int, expectedVersion int) (*models.QueueItem, error) {
	query := fmt.Sprintf(`
		UPDATE queue_items
		SET court_id = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING %s`, queueItemColumns)
	return r.casUpdate(ctx, exec, query, id, courtID, expectedVersion)
}

func (r *postgresQueueRepository) TouchCAS(ctx context.Context, exec SQLExecutor, id, expectedVersion int) (*models.QueueItem, error) {
	query := fmt.Sprintf(`
		UPDATE queue_items
		SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING %s`, queueItemColumns)
	return r.casUpdate(ctx, exec, query, id, expectedVersion)
}

func (r *postgresQueueRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrQueueItemNotFound)
}

// CompactPositions закрывает дыру после удаления строки с позиции removedPosition,
// сохраняя инвариант плотной нумерации 1..N. Сдвиг — тоже принятая мутация,
// поэтому версии сдвинутых строк растут.
func (r *postgresQueueRepository) CompactPositions(ctx context.Context, exec SQLExecutor, tournamentID, removedPosition int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE queue_items
		SET position = position - 1, version = version + 1, updated_at = NOW()
		WHERE tournament_id = $1 AND position > $2`
	_, err := executor.ExecContext(ctx, query, tournamentID, removedPosition)
	if err != nil {
		return fmt.Errorf("failed to compact queue positions for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresQueueRepository) handleQueueError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "queue_items_match_id_fkey", "queue_items_match_id_key":
			return ErrQueueMatchInvalid
		case "queue_items_tournament_id_fkey":
			return ErrQueueTournamentInvalid
		case "queue_items_tournament_id_position_key":
			return ErrQueuePositionConflict
		}
	}
	return err
}
