package periods

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// Repository persists periods. Only one period is "current" at a time.
type Repository interface {
	// Save upserts a period by external id. Links are not written here;
	// they go through the meals repository.
	Save(ctx context.Context, period *models.Period) error

	// Current returns the active period whose date range contains today,
	// highest external id on ties, or nil when none matches.
	Current(ctx context.Context, today string) (*models.Period, error)
}
