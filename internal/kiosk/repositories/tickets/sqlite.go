package tickets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/dbx"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, ticket *models.Ticket) (int64, bool, error) {
	if ticket.UserID == 0 || ticket.MealID == 0 || ticket.UUID == "" {
		return 0, false, fmt.Errorf("%w: user=%d meal=%d uuid=%q",
			common.ErrValidation, ticket.UserID, ticket.MealID, ticket.UUID)
	}

	if ticket.ID != 0 {
		query := `UPDATE tickets SET server_id = ?, user_id = ?, meal_id = ?, period_id = ?,
			created_at = ?, uuid = ?, sync_pending = ? WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query,
			nullInt(ticket.ServerID), ticket.UserID, ticket.MealID, ticket.PeriodID,
			ticket.CreatedAt, ticket.UUID, ticket.SyncPending, ticket.ID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update ticket: %w", err)
		}
		return ticket.ID, false, nil
	}

	query := `INSERT INTO tickets (server_id, user_id, meal_id, period_id, created_at, uuid, sync_pending)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		nullInt(ticket.ServerID), ticket.UserID, ticket.MealID, ticket.PeriodID,
		ticket.CreatedAt, ticket.UUID, ticket.SyncPending)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, userID, mealID, periodID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM tickets WHERE user_id = ? AND meal_id = ? AND period_id = ?`
	var n int
	err := dbx.QueryRow(ctx, r.db, []any{&n}, query, userID, mealID, periodID)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket existence: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Ticket, error) {
	return r.query(ctx, `SELECT id, server_id, user_id, meal_id, period_id, created_at, uuid, sync_pending
		FROM tickets ORDER BY created_at DESC`)
}

func (r *SQLiteRepository) GetPending(ctx context.Context) ([]models.Ticket, error) {
	return r.query(ctx, `SELECT id, server_id, user_id, meal_id, period_id, created_at, uuid, sync_pending
		FROM tickets WHERE sync_pending = 1 ORDER BY created_at DESC`)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tickets: %w", err)
	}
	defer rows.Close()

	var result []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanTicket(rows *sql.Rows) (models.Ticket, error) {
	var t models.Ticket
	var serverID sql.NullInt64
	err := rows.Scan(&t.ID, &serverID, &t.UserID, &t.MealID, &t.PeriodID,
		&t.CreatedAt, &t.UUID, &t.SyncPending)
	if err != nil {
		return t, err
	}
	t.ServerID = serverID.Int64
	return t, nil
}

func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]models.TicketWithUser, error) {
	query := `SELECT t.id, t.server_id, t.user_id, t.meal_id, t.period_id, t.created_at, t.uuid, t.sync_pending,
			COALESCE(u.code, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(m.name, '')
		FROM tickets t
		LEFT JOIN users u ON t.user_id = u.external_id
		LEFT JOIN meals m ON t.meal_id = m.external_id
		ORDER BY t.id DESC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select recent tickets: %w", err)
	}
	defer rows.Close()

	var result []models.TicketWithUser
	for rows.Next() {
		var t models.TicketWithUser
		var serverID sql.NullInt64
		err := rows.Scan(&t.ID, &serverID, &t.UserID, &t.MealID, &t.PeriodID,
			&t.CreatedAt, &t.UUID, &t.SyncPending,
			&t.Code, &t.FirstName, &t.LastName, &t.MealName)
		if err != nil {
			return nil, err
		}
		t.ServerID = serverID.Int64
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByUUID(ctx context.Context, uuid string) error {
	if uuid == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete ticket %s: %w", uuid, err)
	}
	return nil
}

func (r *SQLiteRepository) Stats(ctx context.Context, periodID, mealID int64) (models.TicketStats, error) {
	query := `SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN sync_pending = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_pending = 0 THEN 1 ELSE 0 END), 0)
		FROM tickets WHERE period_id = ? AND meal_id = ?`

	var s models.TicketStats
	err := dbx.QueryRow(ctx, r.db, []any{&s.Total, &s.Pending, &s.Synced}, query, periodID, mealID)
	if err != nil {
		return s, fmt.Errorf("failed to count tickets: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) CleanupOld(ctx context.Context, periodID, mealID int64, before string) error {
	query := `DELETE FROM tickets
		WHERE sync_pending = 0 AND period_id != ? AND meal_id != ? AND date(created_at) < ?`
	_, err := r.db.ExecContext(ctx, query, periodID, mealID, before)
	if err != nil {
		return fmt.Errorf("failed to clean up old tickets: %w", err)
	}
	return nil
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
