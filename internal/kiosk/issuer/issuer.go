// Package issuer turns an operator-entered code into a persisted pending
// ticket, enforcing the duplicate policy.
package issuer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/monitoring"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/tickets"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

// OverrideCodes is the closed set of staff/guest codes exempt from
// duplicate checking. They may be issued any number of times per period.
var OverrideCodes = map[string]struct{}{
	"V001": {},
	"E001": {},
	"G001": {},
	"P001": {},
	"X001": {},
}

// IsOverrideCode reports whether code bypasses the duplicate policy.
func IsOverrideCode(code string) bool {
	_, ok := OverrideCodes[code]
	return ok
}

// Request carries the context an issuance runs against: the cached roster
// and the period/meal the application resolved for "now".
type Request struct {
	Code   string
	Ready  bool
	Period *models.Period
	Meal   *models.Meal
	Roster map[string]models.User
}

// Result describes a successful (or soft-duplicate) issuance.
type Result struct {
	User          *models.User
	Ticket        *models.Ticket
	AlreadyIssued bool
}

type Engine struct {
	tickets tickets.Repository
	log     logging.Logger
	now     func() time.Time
}

func NewEngine(repo tickets.Repository, log logging.Logger) *Engine {
	return &Engine{tickets: repo, log: log, now: time.Now}
}

// WithClock replaces the engine's time source. Test seam.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Issue validates the request, derives the deterministic ticket id and
// persists a pending ticket. Preconditions are checked in a fixed order so
// the operator always hears the most specific problem first. A repeat of a
// regular code is reported through Result.AlreadyIssued, not as an error.
func (e *Engine) Issue(ctx context.Context, req Request) (*Result, error) {
	switch {
	case !req.Ready:
		return nil, common.ErrNotInitialized
	case strings.TrimSpace(req.Code) == "":
		return nil, common.ErrEmptyCode
	case req.Period == nil:
		return nil, common.ErrNoActivePeriod
	case req.Meal == nil:
		return nil, common.ErrNoActiveMeal
	case len(req.Roster) == 0:
		return nil, common.ErrEmptyRoster
	}

	code := strings.TrimSpace(req.Code)
	user, ok := req.Roster[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %s not in roster", common.ErrNotFound, code)
	}

	override := IsOverrideCode(code)
	now := e.now()
	ticket := &models.Ticket{
		UserID:      user.ExternalID,
		MealID:      req.Meal.ExternalID,
		PeriodID:    req.Period.ExternalID,
		CreatedAt:   now.Format(models.TicketTimeFormat),
		UUID:        TicketUUID(user.ExternalID, req.Meal.ExternalID, now, override),
		SyncPending: true,
	}

	exists, err := e.tickets.Exists(ctx, ticket.UserID, ticket.MealID, ticket.PeriodID)
	if err != nil {
		monitoring.TicketIssued("error")
		return nil, fmt.Errorf("failed to check for existing ticket: %w", err)
	}
	if exists && !override {
		monitoring.TicketIssued("duplicate")
		return &Result{User: &user, Ticket: ticket, AlreadyIssued: true}, nil
	}

	id, isNew, err := e.tickets.Save(ctx, ticket)
	if err != nil {
		monitoring.TicketIssued("error")
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	ticket.ID = id
	if !isNew {
		// Save only reports isNew=false for tickets carrying a local id,
		// which a fresh issuance never does.
		e.log.Warn(ctx, "issued ticket overwrote an existing row", "uuid", ticket.UUID)
	}

	e.log.Info(ctx, "ticket issued",
		"user", user.ExternalID, "meal", req.Meal.ExternalID,
		"period", req.Period.ExternalID, "override", override)
	monitoring.TicketIssued("ok")
	return &Result{User: &user, Ticket: ticket}, nil
}
