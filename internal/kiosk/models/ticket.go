package models

// TicketTimeFormat is the layout Ticket.CreatedAt is stored in. It
// matches what the server sends back, so merged timestamps compare as
// plain strings.
const TicketTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Ticket is one issued meal. Created locally with SyncPending=true by the
// issuance engine, or hydrated from the server with SyncPending=false by
// the sync engine. UUID is the merge key between local and server state:
// deterministic per (user, meal, day) for regular codes, salted with a
// timestamp for override codes.
type Ticket struct {
	ID          int64
	ServerID    int64
	UserID      int64
	MealID      int64
	PeriodID    int64
	CreatedAt   string
	UUID        string
	SyncPending bool
}

// TicketWithUser is a ticket joined with roster and meal names, used by
// the recent-tickets view.
type TicketWithUser struct {
	Ticket
	Code      string
	FirstName string
	LastName  string
	MealName  string
}

// TicketStats summarizes local tickets for one (period, meal) scope.
type TicketStats struct {
	Total   int
	Pending int
	Synced  int
}
