package tickets

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// Repository persists tickets. UUID is unique: it is the merge key during
// sync and, because regular codes derive a deterministic UUID per
// (user, meal, day), also the hard duplicate-issuance guard.
type Repository interface {
	// Save updates the ticket in place when it carries a local id, inserts
	// it otherwise. Returns the local id and whether a new row was created.
	// Fails with common.ErrValidation when user, meal or uuid is missing.
	Save(ctx context.Context, ticket *models.Ticket) (int64, bool, error)

	// Exists reports whether any ticket matches the tuple, regardless of uuid.
	Exists(ctx context.Context, userID, mealID, periodID int64) (bool, error)

	// GetAll returns all tickets, most recently created first.
	GetAll(ctx context.Context) ([]models.Ticket, error)

	// GetPending returns tickets not yet confirmed on the server.
	GetPending(ctx context.Context) ([]models.Ticket, error)

	// Recent returns the latest tickets joined with user and meal names.
	Recent(ctx context.Context, limit int) ([]models.TicketWithUser, error)

	// DeleteByUUID removes all rows with the given uuid. No-op on empty uuid.
	DeleteByUUID(ctx context.Context, uuid string) error

	// Stats counts tickets in one (period, meal) scope.
	Stats(ctx context.Context, periodID, mealID int64) (models.TicketStats, error)

	// CleanupOld deletes synced tickets outside the given scope created
	// before the given date.
	CleanupOld(ctx context.Context, periodID, mealID int64, before string) error
}
