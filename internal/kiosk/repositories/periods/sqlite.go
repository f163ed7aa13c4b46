package periods

import (
	"context"
	"database/sql"
	"fmt"

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

func (r *SQLiteRepository) Save(ctx context.Context, period *models.Period) error {
	query := `INSERT INTO periods (external_id, name, start_date, end_date, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			active = excluded.active
	`
	_, err := r.db.ExecContext(ctx, query,
		period.ExternalID, period.Name, period.StartDate, period.EndDate, period.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert period: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Current(ctx context.Context, today string) (*models.Period, error) {
	query := `SELECT external_id, name, start_date, end_date, active
		FROM periods
		WHERE start_date <= ? AND end_date >= ? AND active = 1
		ORDER BY external_id DESC LIMIT 1`

	var p models.Period
	err := dbx.QueryRow(ctx, r.db,
		[]any{&p.ExternalID, &p.Name, &p.StartDate, &p.EndDate, &p.Active},
		query, today, today)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select current period: %w", err)
	}
	return &p, nil
}
