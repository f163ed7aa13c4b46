package users

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

func (r *SQLiteRepository) Save(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (external_id, code, first_name, last_name, birth_date, synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET code = excluded.code,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			birth_date = excluded.birth_date,
			synced = excluded.synced
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ExternalID, user.Code, user.FirstName, user.LastName,
		nullString(user.BirthDate), user.Synced)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT id, external_id, code, first_name, last_name, birth_date, synced
		FROM users WHERE code = ? LIMIT 1`

	var u models.User
	var birthDate sql.NullString
	err := dbx.QueryRow(ctx, r.db,
		[]any{&u.ID, &u.ExternalID, &u.Code, &u.FirstName, &u.LastName, &birthDate, &u.Synced},
		query, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select user by code: %w", err)
	}
	u.BirthDate = birthDate.String
	return &u, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, external_id, code, first_name, last_name, birth_date, synced FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var u models.User
		var birthDate sql.NullString
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Code, &u.FirstName, &u.LastName, &birthDate, &u.Synced); err != nil {
			return nil, err
		}
		u.BirthDate = birthDate.String
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
