// Package remote speaks to the ticket API. The rest of the kiosk only
// sees the Client interface; sync and refresh logic never touch HTTP.
package remote

import (
	"context"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/shopspring/decimal"
)

// WireDate formats a date the way the API expects it in query parameters.
func WireDate(t time.Time) string {
	return t.Format("02-01-2006")
}

// Ticket is the wire form of a ticket.
type Ticket struct {
	ServerID  int64  `json:"ticket_id,omitempty"`
	UserID    int64  `json:"user_id"`
	MealID    int64  `json:"meal_id"`
	PeriodID  int64  `json:"period_id"`
	CreatedAt string `json:"created_at"`
	UUID      string `json:"uuid"`
}

// Model converts a wire ticket into a local one hydrated as already
// synced.
func (t Ticket) Model() models.Ticket {
	return models.Ticket{
		ServerID:  t.ServerID,
		UserID:    t.UserID,
		MealID:    t.MealID,
		PeriodID:  t.PeriodID,
		CreatedAt: t.CreatedAt,
		UUID:      t.UUID,
	}
}

// FromModel converts a local ticket into its wire form.
func FromModel(t models.Ticket) Ticket {
	return Ticket{
		ServerID:  t.ServerID,
		UserID:    t.UserID,
		MealID:    t.MealID,
		PeriodID:  t.PeriodID,
		CreatedAt: t.CreatedAt,
		UUID:      t.UUID,
	}
}

// User is the wire form of a roster entry.
type User struct {
	ExternalID int64  `json:"user_id"`
	Code       string `json:"code"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date,omitempty"`
}

func (u User) Model() models.User {
	return models.User{
		ExternalID: u.ExternalID,
		Code:       u.Code,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		BirthDate:  u.BirthDate,
		Synced:     true,
	}
}

// Meal, MealLink and Period mirror the nested payload of the
// today-period endpoint.
type Meal struct {
	ExternalID int64  `json:"meal_id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Active     bool   `json:"active"`
}

type MealLink struct {
	ID          int64  `json:"link_id"`
	MealID      int64  `json:"meal_id"`
	HoursBefore int    `json:"hours_before"`
	MaxPersons  int    `json:"max_persons"`
	Active      bool   `json:"active"`
	Subsidy     string `json:"subsidy"`
	Meal        Meal   `json:"meal"`
}

type Period struct {
	ExternalID int64      `json:"period_id"`
	Name       string     `json:"name"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	Active     bool       `json:"active"`
	Meals      []MealLink `json:"meals"`
}

func (p Period) Model() models.Period {
	out := models.Period{
		ExternalID: p.ExternalID,
		Name:       p.Name,
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		Active:     p.Active,
	}
	for _, l := range p.Meals {
		subsidy, err := decimal.NewFromString(l.Subsidy)
		if err != nil {
			subsidy = decimal.Zero
		}
		out.Links = append(out.Links, models.MealPeriodLink{
			ID:          l.ID,
			PeriodID:    p.ExternalID,
			MealID:      l.MealID,
			HoursBefore: l.HoursBefore,
			MaxPersons:  l.MaxPersons,
			Active:      l.Active,
			Subsidy:     subsidy,
			Meal: models.Meal{
				ExternalID: l.Meal.ExternalID,
				Name:       l.Meal.Name,
				StartTime:  l.Meal.StartTime,
				EndTime:    l.Meal.EndTime,
				Active:     l.Meal.Active,
			},
		})
	}
	return out
}

// Client is the remote ticket API as the kiosk core consumes it. Dates
// are passed in wire form (see WireDate).
type Client interface {
	// Ping probes reachability; used by the online watcher.
	Ping(ctx context.Context) error

	// TotalTicketsInRange returns the count of server tickets in the
	// inclusive date range.
	TotalTicketsInRange(ctx context.Context, startDate, endDate string) (int, error)

	// TicketsInRange returns one page of server tickets. Pages are
	// 1-based.
	TicketsInRange(ctx context.Context, startDate, endDate string, page, pageSize int) ([]Ticket, error)

	// CreateTicket uploads a locally issued ticket and returns the
	// server-assigned id. A server-side "limit_reached" business rule is
	// returned as common.ErrLimitReached.
	CreateTicket(ctx context.Context, ticket Ticket) (int64, error)

	// TodayPeriod returns the period containing today, or nil.
	TodayPeriod(ctx context.Context) (*Period, error)

	// UserCount returns the size of the server roster.
	UserCount(ctx context.Context) (int, error)

	// UsersPage returns one 1-based page of the roster.
	UsersPage(ctx context.Context, page, pageSize int, activeOnly bool) ([]User, error)
}
