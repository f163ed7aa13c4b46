package meals

import (
	"context"
	"fmt"

	"github.com/jcastellanos/comedor-kiosk/internal/dbx"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/shopspring/decimal"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, meal *models.Meal) error {
	query := `INSERT INTO meals (external_id, name, start_time, end_time, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			active = excluded.active
	`
	_, err := r.db.ExecContext(ctx, query,
		meal.ExternalID, meal.Name, meal.StartTime, meal.EndTime, meal.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert meal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveLink(ctx context.Context, link *models.MealPeriodLink) error {
	// The server may re-issue the same (period, meal) pair under a new
	// link id, or move a link id to a different pair. OR REPLACE
	// resolves a conflict on either unique key.
	query := `INSERT OR REPLACE INTO meal_periods (id, period_id, meal_id, hours_before, max_persons, active, subsidy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.PeriodID, link.MealID, link.HoursBefore, link.MaxPersons,
		link.Active, link.Subsidy.String())
	if err != nil {
		return fmt.Errorf("failed to upsert meal-period link: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LinksForPeriod(ctx context.Context, periodID int64) ([]models.MealPeriodLink, error) {
	query := `SELECT mp.id, mp.period_id, mp.meal_id, mp.hours_before, mp.max_persons, mp.active, mp.subsidy,
			m.external_id, m.name, m.start_time, m.end_time, m.active
		FROM meal_periods mp
		JOIN meals m ON mp.meal_id = m.external_id
		WHERE mp.period_id = ?
		ORDER BY m.start_time`
	rows, err := r.db.QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to select meal-period links: %w", err)
	}
	defer rows.Close()

	var result []models.MealPeriodLink
	for rows.Next() {
		var link models.MealPeriodLink
		var subsidy string
		err := rows.Scan(&link.ID, &link.PeriodID, &link.MealID, &link.HoursBefore,
			&link.MaxPersons, &link.Active, &subsidy,
			&link.Meal.ExternalID, &link.Meal.Name, &link.Meal.StartTime,
			&link.Meal.EndTime, &link.Meal.Active)
		if err != nil {
			return nil, err
		}
		link.Subsidy, err = decimal.NewFromString(subsidy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subsidy %q: %w", subsidy, err)
		}
		result = append(result, link)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
