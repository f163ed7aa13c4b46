package store

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/meals"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/metadata"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/periods"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/tickets"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/users"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

// Repositories bundles the per-entity repositories bound to one retrying
// database handle.
type Repositories struct {
	Users    users.Repository
	Meals    meals.Repository
	Periods  periods.Repository
	Tickets  tickets.Repository
	Metadata metadata.Repository
}

// InitDatabase opens the local store at dsn, applies migrations, and
// returns the handle plus repositories bound to it.
func InitDatabase(ctx context.Context, dsn string, log logging.Logger) (*DB, *Repositories, error) {
	db, err := Open(ctx, dsn, log)
	if err != nil {
		return nil, nil, err
	}

	repos := &Repositories{
		Users:    users.NewSQLiteRepository(db),
		Meals:    meals.NewSQLiteRepository(db),
		Periods:  periods.NewSQLiteRepository(db),
		Tickets:  tickets.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}
	return db, repos, nil
}
