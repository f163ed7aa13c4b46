package meals

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// Repository persists meals and their links to periods. Both are upserted
// together during a period refresh.
type Repository interface {
	// Save upserts a meal by external id.
	Save(ctx context.Context, meal *models.Meal) error

	// SaveLink upserts a meal-period link by its id.
	SaveLink(ctx context.Context, link *models.MealPeriodLink) error

	// LinksForPeriod returns the period's links joined with meal fields,
	// ordered by meal start time.
	LinksForPeriod(ctx context.Context, periodID int64) ([]models.MealPeriodLink, error)
}
