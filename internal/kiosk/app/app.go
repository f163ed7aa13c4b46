// Package app wires the kiosk together and owns its runtime state. All
// mutations go through commands on App; consumers read state snapshots
// and get change notifications over the event channel.
package app

import (
	"context"
	"errors"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/announce"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/backup"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/config"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/issuer"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/mealtime"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/remote"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/metadata"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/store"
	syncer "github.com/jcastellanos/comedor-kiosk/internal/kiosk/sync"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

// How long transient feedback stays on screen.
const (
	successClearAfter = 500 * time.Millisecond
	errorClearAfter   = time.Second
)

const recentTicketsShown = 10

// Feedback is the transient operator-facing message.
type Feedback struct {
	Message string
	IsError bool
}

// State is one consistent snapshot of the kiosk.
type State struct {
	Initialized bool
	Online      bool
	Period      *models.Period
	ActiveMeal  *models.Meal
	Roster      map[string]models.User
	Stats       models.TicketStats
	Recent      []models.TicketWithUser
	Syncing     bool
	Progress    syncer.Progress
	Feedback    Feedback
}

// EventKind tells a subscriber what changed.
type EventKind int

const (
	EventState EventKind = iota
	EventProgress
	EventFeedback
)

type Event struct {
	Kind EventKind
}

// App is the kiosk controller.
type App struct {
	cfg     *config.Config
	db      *store.DB
	repos   *store.Repositories
	client  *remote.HTTPClient
	issuer  *issuer.Engine
	syncer  *syncer.Engine
	speaker announce.Speaker
	log     logging.Logger
	now     func() time.Time

	mu          stdsync.Mutex
	state       State
	subs        []chan Event
	feedbackSeq int

	online atomic.Bool
}

func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, repos, err := store.InitDatabase(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		repos:   repos,
		speaker: announce.NewLogSpeaker(log),
		log:     log,
		now:     time.Now,
	}
	a.state.Roster = map[string]models.User{}

	a.client = remote.NewHTTPClient(a.baseURL(ctx), log)
	a.issuer = issuer.NewEngine(repos.Tickets, log)
	a.syncer = syncer.NewEngine(syncer.Deps{
		Tickets: repos.Tickets,
		Periods: repos.Periods,
		Meals:   repos.Meals,
		Users:   repos.Users,
		Meta:    repos.Metadata,
		Client:  a.client,
		Backup:  backup.NewWriter(cfg.ExportDir, cfg.DataDir, log),
		Speaker: a.speaker,
		Logger:  log,
		Online:  func(context.Context) bool { return a.online.Load() },
	}).
		WithPageSize(cfg.TicketPageSize).
		WithMinInterval(cfg.SyncInterval).
		WithReporter(a.onProgress)

	return a, nil
}

// baseURL prefers the operator's persisted override over the configured
// endpoint.
func (a *App) baseURL(ctx context.Context) string {
	raw, err := a.repos.Metadata.Get(ctx, metadata.KeyAPIBaseURL)
	if err != nil {
		a.log.Warn(ctx, "failed to read api url override", "error", err)
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return a.cfg.APIBaseURL
}

// Bootstrap loads everything the issuance path needs from the local
// store. The kiosk stays usable offline with whatever the last sync
// left behind.
func (a *App) Bootstrap(ctx context.Context) error {
	roster, err := a.repos.Users.GetAll(ctx)
	if err != nil {
		return err
	}
	byCode := make(map[string]models.User, len(roster))
	for _, u := range roster {
		byCode[u.Code] = u
	}

	period, meal, err := a.loadPeriod(ctx)
	if err != nil {
		return err
	}

	// startup housekeeping: drop synced tickets from past scopes
	if period != nil && meal != nil {
		today := a.now().Format("2006-01-02")
		if err := a.repos.Tickets.CleanupOld(ctx, period.ExternalID, meal.ExternalID, today); err != nil {
			a.log.Warn(ctx, "old ticket cleanup failed", "error", err)
		}
	}

	a.mu.Lock()
	a.state.Roster = byCode
	a.state.Period = period
	a.state.ActiveMeal = meal
	a.state.Initialized = true
	a.mu.Unlock()
	a.notify(EventState)

	return a.RefreshTickets(ctx)
}

// loadPeriod reads the current period with its meal links and resolves
// the active meal.
func (a *App) loadPeriod(ctx context.Context) (*models.Period, *models.Meal, error) {
	period, err := a.repos.Periods.Current(ctx, a.now().Format("2006-01-02"))
	if err != nil {
		return nil, nil, err
	}
	if period == nil {
		return nil, nil, nil
	}
	period.Links, err = a.repos.Meals.LinksForPeriod(ctx, period.ExternalID)
	if err != nil {
		return nil, nil, err
	}
	return period, mealtime.ActiveMeal(period, a.now()), nil
}

// IssueTicket runs the issuance pipeline for one typed or scanned code
// and turns the outcome into operator feedback, visual and spoken.
func (a *App) IssueTicket(ctx context.Context, code string) (*issuer.Result, error) {
	a.mu.Lock()
	req := issuer.Request{
		Code:   code,
		Ready:  a.state.Initialized,
		Period: a.state.Period,
		Meal:   a.state.ActiveMeal,
		Roster: a.state.Roster,
	}
	a.mu.Unlock()

	res, err := a.issuer.Issue(ctx, req)
	if err != nil {
		a.setFeedback(ctx, issueErrorMessage(err), true)
		return nil, err
	}

	if res.AlreadyIssued {
		a.setFeedback(ctx, "already issued today", false)
	} else {
		a.setFeedback(ctx, "ticket issued", false)
	}

	if err := a.RefreshTickets(ctx); err != nil {
		a.log.Warn(ctx, "failed to refresh tickets after issuance", "error", err)
	}
	return res, nil
}

func issueErrorMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrNotInitialized):
		return "still loading, try again"
	case errors.Is(err, common.ErrEmptyCode):
		return "enter a code"
	case errors.Is(err, common.ErrNoActivePeriod):
		return "no active period, please sync"
	case errors.Is(err, common.ErrNoActiveMeal):
		return "no active meal right now"
	case errors.Is(err, common.ErrEmptyRoster):
		return "no roster loaded, please sync"
	case errors.Is(err, common.ErrNotFound):
		return "invalid code"
	default:
		return "could not save ticket"
	}
}

// Sync runs one reconciliation pass and refreshes local state after it.
func (a *App) Sync(ctx context.Context, force bool) (*syncer.Summary, error) {
	a.setSyncing(true)
	defer a.setSyncing(false)

	sum, err := a.syncer.Run(ctx, force)
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			return nil, err
		}
		a.setFeedback(ctx, "sync failed", true)
		return nil, err
	}
	if sum.Skipped {
		return sum, nil
	}

	if err := a.RefreshTickets(ctx); err != nil {
		a.log.Warn(ctx, "failed to refresh tickets after sync", "error", err)
	}
	return sum, nil
}

// RefreshTickets reloads the counters and the recent-tickets view for
// the active scope.
func (a *App) RefreshTickets(ctx context.Context) error {
	a.mu.Lock()
	period := a.state.Period
	meal := a.state.ActiveMeal
	a.mu.Unlock()

	var stats models.TicketStats
	if period != nil && meal != nil {
		var err error
		stats, err = a.repos.Tickets.Stats(ctx, period.ExternalID, meal.ExternalID)
		if err != nil {
			return err
		}
	}
	recent, err := a.repos.Tickets.Recent(ctx, recentTicketsShown)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.state.Stats = stats
	a.state.Recent = recent
	a.mu.Unlock()
	a.notify(EventState)
	return nil
}

// SetAPIBaseURL switches the remote endpoint and persists the override.
func (a *App) SetAPIBaseURL(ctx context.Context, url string) error {
	if err := a.repos.Metadata.Set(ctx, metadata.KeyAPIBaseURL, []byte(url)); err != nil {
		return err
	}
	a.client.SetBaseURL(url)
	return nil
}

// ResetAPIBaseURL drops the override and returns to the configured
// endpoint.
func (a *App) ResetAPIBaseURL(ctx context.Context) error {
	if err := a.repos.Metadata.Delete(ctx, metadata.KeyAPIBaseURL); err != nil {
		return err
	}
	a.client.SetBaseURL(a.cfg.APIBaseURL)
	return nil
}

// State returns a snapshot. The roster map is shared and must be
// treated as read-only.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsOnline reports the last probe result.
func (a *App) IsOnline() bool {
	return a.online.Load()
}

// Subscribe returns a channel that receives a notification whenever the
// state changes. Slow subscribers miss intermediate events instead of
// blocking the kiosk.
func (a *App) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	a.mu.Lock()
	a.subs = append(a.subs, ch)
	a.mu.Unlock()
	return ch
}

func (a *App) notify(kind EventKind) {
	a.mu.Lock()
	subs := a.subs
	a.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- Event{Kind: kind}:
		default:
		}
	}
}

// setFeedback publishes a transient message, speaks it and schedules
// its removal. A newer message cancels the pending clear of an older
// one.
func (a *App) setFeedback(ctx context.Context, msg string, isError bool) {
	a.mu.Lock()
	a.feedbackSeq++
	seq := a.feedbackSeq
	a.state.Feedback = Feedback{Message: msg, IsError: isError}
	a.mu.Unlock()
	a.notify(EventFeedback)
	a.speaker.Say(ctx, msg)

	delay := successClearAfter
	if isError {
		delay = errorClearAfter
	}
	time.AfterFunc(delay, func() {
		a.mu.Lock()
		stale := a.feedbackSeq != seq
		if !stale {
			a.state.Feedback = Feedback{}
		}
		a.mu.Unlock()
		if !stale {
			a.notify(EventFeedback)
		}
	})
}

func (a *App) setSyncing(v bool) {
	a.mu.Lock()
	a.state.Syncing = v
	if !v {
		a.state.Progress = syncer.Progress{}
	}
	a.mu.Unlock()
	a.notify(EventState)
}

func (a *App) onProgress(p syncer.Progress) {
	a.mu.Lock()
	a.state.Progress = p
	a.mu.Unlock()
	a.notify(EventProgress)
}

// Close releases the local store.
func (a *App) Close() error {
	return a.db.Close()
}
