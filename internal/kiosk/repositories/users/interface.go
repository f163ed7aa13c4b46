package users

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// Repository describes roster persistence. The roster is a read-mostly
// cache: rows are replaced wholesale on refresh and only looked up during
// issuance.
type Repository interface {
	// Save upserts a user by its server-assigned external id.
	Save(ctx context.Context, user *models.User) error

	// GetByCode returns the user with the given operator code, or nil.
	GetByCode(ctx context.Context, code string) (*models.User, error)

	// GetAll returns the whole roster.
	GetAll(ctx context.Context) ([]models.User, error)
}
