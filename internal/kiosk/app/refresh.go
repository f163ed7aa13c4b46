package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/dbx"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/meals"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/periods"
)

// RefreshRoster downloads the server roster page by page and replaces
// the in-memory code index. Requires connectivity.
func (a *App) RefreshRoster(ctx context.Context) error {
	total, err := a.client.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch roster size: %w", err)
	}

	pageSize := a.cfg.UserPageSize
	pages := (total + pageSize - 1) / pageSize
	byCode := make(map[string]models.User, total)

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := a.client.UsersPage(ctx, page, pageSize, true)
		if err != nil {
			return fmt.Errorf("failed to fetch roster page %d: %w", page, err)
		}
		for _, wire := range batch {
			u := wire.Model()
			if err := a.repos.Users.Save(ctx, &u); err != nil {
				return err
			}
			byCode[u.Code] = u
		}
	}

	a.mu.Lock()
	a.state.Roster = byCode
	a.mu.Unlock()
	a.notify(EventState)

	a.log.Info(ctx, "roster refreshed", "users", len(byCode))
	return nil
}

// RefreshPeriod downloads today's period with its meals and links,
// persists everything and re-resolves the active meal.
func (a *App) RefreshPeriod(ctx context.Context) error {
	wire, err := a.client.TodayPeriod(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch today's period: %w", err)
	}
	if wire == nil {
		a.log.Warn(ctx, "server has no period for today")
		return nil
	}

	period := wire.Model()
	raw, err := a.db.Unwrap(ctx)
	if err != nil {
		return err
	}
	// period, meals and links land together or not at all
	err = dbx.WithTx(ctx, raw, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := periods.NewSQLiteRepository(tx).Save(ctx, &period); err != nil {
			return err
		}
		mealsRepo := meals.NewSQLiteRepository(tx)
		for i := range period.Links {
			link := period.Links[i]
			if err := mealsRepo.Save(ctx, &link.Meal); err != nil {
				return err
			}
			if err := mealsRepo.SaveLink(ctx, &link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store today's period: %w", err)
	}

	// re-read so ids and ordering come from the store
	current, meal, err := a.loadPeriod(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.state.Period = current
	a.state.ActiveMeal = meal
	a.mu.Unlock()
	a.notify(EventState)

	a.log.Info(ctx, "period refreshed", "period", period.ExternalID)
	return nil
}

// StartOnlineStatusWatcher probes the server on the given interval and
// maintains the online flag used by the offline guards. Blocks until
// ctx is cancelled; run it on its own goroutine.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.client.Ping(probeCtx)
			cancel()

			was := a.online.Swap(err == nil)
			if was != (err == nil) {
				a.log.Info(ctx, "connectivity changed", "online", err == nil)
				a.mu.Lock()
				a.state.Online = err == nil
				a.mu.Unlock()
				a.notify(EventState)
			}

		case <-ctx.Done():
			return
		}
	}
}
