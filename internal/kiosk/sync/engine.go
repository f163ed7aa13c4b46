// Package sync reconciles local tickets with the server's authoritative
// set for today, uploads pending tickets and prunes local rows the
// server already holds. One run at a time; concurrent triggers are
// rejected, frequent ones throttled.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/announce"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/backup"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/mealtime"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/monitoring"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/remote"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/meals"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/metadata"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/periods"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/tickets"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/users"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

const (
	// DefaultPageSize is how many tickets one download page carries.
	DefaultPageSize = 600

	// DefaultMinInterval is the throttle between non-forced runs.
	DefaultMinInterval = 5 * time.Minute

	// progressEvery limits how often the processing loop reports.
	progressEvery = 10
)

// Deps are the collaborators a sync engine needs.
type Deps struct {
	Tickets tickets.Repository
	Periods periods.Repository
	Meals   meals.Repository
	Users   users.Repository
	Meta    metadata.Repository
	Client  remote.Client
	Backup  *backup.Writer
	Speaker announce.Speaker
	Logger  logging.Logger

	// Online reports current connectivity; the run aborts when false.
	Online func(ctx context.Context) bool
}

// Engine runs the reconciliation algorithm. Safe for concurrent use:
// only one run executes at a time, extra callers get ErrSyncInProgress.
type Engine struct {
	deps Deps

	report      Reporter
	now         func() time.Time
	pageSize    int
	minInterval time.Duration

	running atomic.Bool
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		deps:        deps,
		report:      func(Progress) {},
		now:         time.Now,
		pageSize:    DefaultPageSize,
		minInterval: DefaultMinInterval,
	}
}

// WithReporter registers a progress consumer.
func (e *Engine) WithReporter(r Reporter) *Engine {
	e.report = r
	return e
}

// WithClock replaces the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithPageSize overrides the download page size.
func (e *Engine) WithPageSize(n int) *Engine {
	if n > 0 {
		e.pageSize = n
	}
	return e
}

// WithMinInterval overrides the throttle between non-forced runs.
func (e *Engine) WithMinInterval(d time.Duration) *Engine {
	e.minInterval = d
	return e
}

// Summary describes what one run did.
type Summary struct {
	Skipped    bool
	Downloaded int
	Saved      int
	Uploaded   int
	Failed     int
	Pruned     int
	BackupPath string
	Message    string
}

// Run executes one sync pass. Unless force is set, the run is skipped
// when the previous one completed less than the throttle interval ago.
// Returns ErrSyncInProgress when another run is active and ErrOffline
// when there is no connectivity.
func (e *Engine) Run(ctx context.Context, force bool) (*Summary, error) {
	if !e.running.CompareAndSwap(false, true) {
		monitoring.SyncRun("busy")
		return nil, common.ErrSyncInProgress
	}
	defer e.running.Store(false)

	if !force {
		if last, ok := e.lastSyncAt(ctx); ok && e.now().Sub(last) < e.minInterval {
			e.deps.Logger.Info(ctx, "sync skipped, ran recently", "last", last)
			monitoring.SyncRun("skipped")
			return &Summary{Skipped: true}, nil
		}
	}

	start := e.now()
	sum, err := e.run(ctx)
	monitoring.ObserveSyncDuration(e.now().Sub(start))
	if err != nil {
		result, msg := "error", "sync failed"
		if errors.Is(err, common.ErrOffline) {
			result, msg = "offline", "no connection"
		}
		monitoring.SyncRun(result)
		e.report(Progress{Stage: StageIdle, Message: msg})
		e.deps.Speaker.Say(ctx, msg)
		return nil, err
	}

	if sum.Failed > 0 {
		monitoring.SyncRun("partial")
	} else {
		monitoring.SyncRun("ok")
	}
	e.report(Progress{Stage: StageCompleted, Percent: 100, Message: sum.Message})
	e.deps.Speaker.Say(ctx, sum.Message)
	return sum, nil
}

func (e *Engine) run(ctx context.Context) (*Summary, error) {
	if !e.deps.Online(ctx) {
		return nil, common.ErrOffline
	}

	e.report(Progress{Stage: StageFetching, Message: "preparing sync"})

	now := e.now()
	period, err := e.deps.Periods.Current(ctx, now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, common.ErrNoActivePeriod
	}
	period.Links, err = e.deps.Meals.LinksForPeriod(ctx, period.ExternalID)
	if err != nil {
		return nil, err
	}
	meal := mealtime.ActiveMeal(period, now)
	if meal == nil {
		return e.uploadPendingOnly(ctx, period)
	}

	local, err := e.deps.Tickets.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	localByUUID := make(map[string]models.Ticket, len(local))
	for _, t := range local {
		localByUUID[t.UUID] = t
	}

	remoteByUUID, downloaded, err := e.download(ctx, meal.ExternalID)
	if err != nil {
		return nil, err
	}

	toSave, toUpload, toPrune := merge(local, localByUUID, remoteByUUID)

	saved, err := e.persist(ctx, toSave)
	if err != nil {
		return nil, err
	}

	uploaded, failed, err := e.upload(ctx, toUpload)
	if err != nil {
		return nil, err
	}

	backupPath := e.backupAndPrune(ctx, period, toPrune, failed)

	if err := e.deps.Meta.Set(ctx, metadata.KeyLastSync, []byte(e.now().Format(time.RFC3339))); err != nil {
		e.deps.Logger.Warn(ctx, "failed to record last sync time", "error", err)
	}

	return &Summary{
		Downloaded: downloaded,
		Saved:      saved,
		Uploaded:   uploaded,
		Failed:     len(failed),
		Pruned:     len(toPrune),
		BackupPath: backupPath,
		Message:    summaryMessage(len(failed)),
	}, nil
}

// uploadPendingOnly handles the run when no meal window is active.
// Without a meal there is no scope to reconcile or prune against, so
// the download phase is skipped entirely, but pending tickets still go
// up. Tickets issued near the end of a window would otherwise wait for
// the next one to open.
func (e *Engine) uploadPendingOnly(ctx context.Context, period *models.Period) (*Summary, error) {
	pending, err := e.deps.Tickets.GetPending(ctx)
	if err != nil {
		return nil, err
	}

	uploaded, failed, err := e.upload(ctx, pending)
	if err != nil {
		return nil, err
	}

	backupPath := e.backupAndPrune(ctx, period, nil, failed)

	if err := e.deps.Meta.Set(ctx, metadata.KeyLastSync, []byte(e.now().Format(time.RFC3339))); err != nil {
		e.deps.Logger.Warn(ctx, "failed to record last sync time", "error", err)
	}

	return &Summary{
		Uploaded:   uploaded,
		Failed:     len(failed),
		BackupPath: backupPath,
		Message:    summaryMessage(len(failed)),
	}, nil
}

func summaryMessage(failed int) string {
	if failed == 0 {
		return "sync completed"
	}
	return fmt.Sprintf("sync completed with %d errors", failed)
}

// download fetches today's server tickets page by page and returns the
// ones belonging to the active meal, keyed by uuid. The total-count
// fetch is the one fatal call; a failed page is skipped.
func (e *Engine) download(ctx context.Context, mealID int64) (map[string]remote.Ticket, int, error) {
	day := remote.WireDate(e.now())

	total, err := e.deps.Client.TotalTicketsInRange(ctx, day, day)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch server ticket count: %w", err)
	}

	pages := (total + e.pageSize - 1) / e.pageSize
	e.report(Progress{
		Stage:   StageFetching,
		Percent: percent(StageFetching, 0, pages),
		Message: fmt.Sprintf("downloading tickets (0/%d pages)", pages),
	})

	out := make(map[string]remote.Ticket)
	downloaded := 0
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		batch, err := e.deps.Client.TicketsInRange(ctx, day, day, page, e.pageSize)
		if err != nil {
			e.deps.Logger.Warn(ctx, "failed to download ticket page", "page", page, "error", err)
			continue
		}
		downloaded += len(batch)
		for _, t := range batch {
			if t.MealID == mealID {
				out[t.UUID] = t
			}
		}
		e.report(Progress{
			Stage:   StageFetching,
			Percent: percent(StageFetching, page, pages),
			Message: fmt.Sprintf("downloading tickets (%d/%d pages)", page, pages),
		})
	}
	return out, downloaded, nil
}

// merge reconciles both sets by uuid. Remote wins on existence and
// field values: a local counterpart is overwritten and marked synced, a
// remote-only ticket is inserted as synced. Local-only tickets split on
// their previous state: still-pending ones go to the upload list,
// already-synced ones are redundant (the server purged or never had
// them under this uuid) and go to the prune list.
func merge(local []models.Ticket, localByUUID map[string]models.Ticket, remoteByUUID map[string]remote.Ticket) (toSave, toUpload, toPrune []models.Ticket) {
	for uuid, rt := range remoteByUUID {
		merged := rt.Model()
		if lt, ok := localByUUID[uuid]; ok {
			merged.ID = lt.ID
		}
		toSave = append(toSave, merged)
	}
	for _, lt := range local {
		if _, ok := remoteByUUID[lt.UUID]; ok {
			continue
		}
		if lt.SyncPending {
			toUpload = append(toUpload, lt)
		} else {
			toPrune = append(toPrune, lt)
		}
	}
	return toSave, toUpload, toPrune
}

func (e *Engine) persist(ctx context.Context, toSave []models.Ticket) (int, error) {
	total := len(toSave)
	e.report(Progress{
		Stage:   StageProcessing,
		Percent: percent(StageProcessing, 0, total),
		Message: "processing tickets",
	})

	saved := 0
	for i := range toSave {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		t := toSave[i]
		if _, _, err := e.deps.Tickets.Save(ctx, &t); err != nil {
			e.deps.Logger.Warn(ctx, "failed to save merged ticket", "uuid", t.UUID, "error", err)
			continue
		}
		saved++
		if i%progressEvery == 0 || i == total-1 {
			e.report(Progress{
				Stage:   StageProcessing,
				Percent: percent(StageProcessing, i+1, total),
				Message: fmt.Sprintf("processing tickets (%d/%d)", i+1, total),
			})
		}
	}
	return saved, nil
}

// upload sends every pending ticket once. Success and the server's
// limit-reached answer both resolve the ticket; any other failure
// leaves it pending for the next run.
func (e *Engine) upload(ctx context.Context, pending []models.Ticket) (int, []models.Ticket, error) {
	total := len(pending)
	if total == 0 {
		e.report(Progress{
			Stage:   StageUploading,
			Percent: percent(StageUploading, 0, 0),
			Message: "no pending changes",
		})
		return 0, nil, nil
	}

	uploaded := 0
	var failed []models.Ticket
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return uploaded, failed, err
		}
		t := pending[i]
		e.report(Progress{
			Stage:   StageUploading,
			Percent: percent(StageUploading, i+1, total),
			Message: fmt.Sprintf("uploading changes (%d/%d)", i+1, total),
		})

		serverID, err := e.deps.Client.CreateTicket(ctx, remote.FromModel(t))
		switch {
		case err == nil:
			t.ServerID = serverID
		case errors.Is(err, common.ErrLimitReached):
			// the server already accounts for this ticket
		default:
			e.deps.Logger.Warn(ctx, "failed to upload ticket", "uuid", t.UUID, "error", err)
			monitoring.UploadFailed()
			failed = append(failed, t)
			continue
		}

		t.SyncPending = false
		if _, _, err := e.deps.Tickets.Save(ctx, &t); err != nil {
			e.deps.Logger.Warn(ctx, "failed to mark ticket synced", "uuid", t.UUID, "error", err)
			failed = append(failed, t)
			continue
		}
		uploaded++
	}
	return uploaded, failed, nil
}

// backupAndPrune snapshots the rows about to disappear locally (pruned
// redundant rows plus this run's upload failures) to CSV, then deletes
// the redundant ones. The backup is best effort and never blocks
// deletion.
func (e *Engine) backupAndPrune(ctx context.Context, period *models.Period, toPrune, failed []models.Ticket) string {
	if len(toPrune) == 0 && len(failed) == 0 {
		return ""
	}

	rows := e.backupRows(ctx, period, append(append([]models.Ticket{}, toPrune...), failed...))
	path, err := e.deps.Backup.Export(ctx, rows, e.now())
	if err != nil {
		e.deps.Logger.Warn(ctx, "ticket backup failed", "error", err)
	}

	for _, t := range toPrune {
		if err := e.deps.Tickets.DeleteByUUID(ctx, t.UUID); err != nil {
			e.deps.Logger.Warn(ctx, "failed to prune ticket", "uuid", t.UUID, "error", err)
		}
	}
	return path
}

// backupRows joins tickets with user codes and meal names for the CSV.
// Lookups are best effort: an unknown user or meal leaves the field
// empty rather than dropping the row.
func (e *Engine) backupRows(ctx context.Context, period *models.Period, list []models.Ticket) []models.TicketWithUser {
	codeByUser := make(map[int64]string)
	if roster, err := e.deps.Users.GetAll(ctx); err == nil {
		for _, u := range roster {
			codeByUser[u.ExternalID] = u.Code
		}
	} else {
		e.deps.Logger.Warn(ctx, "failed to load roster for backup", "error", err)
	}
	mealName := make(map[int64]string)
	for _, l := range period.Links {
		mealName[l.MealID] = l.Meal.Name
	}

	rows := make([]models.TicketWithUser, 0, len(list))
	for _, t := range list {
		rows = append(rows, models.TicketWithUser{
			Ticket:   t,
			Code:     codeByUser[t.UserID],
			MealName: mealName[t.MealID],
		})
	}
	return rows
}

func (e *Engine) lastSyncAt(ctx context.Context) (time.Time, bool) {
	raw, err := e.deps.Meta.Get(ctx, metadata.KeyLastSync)
	if err != nil || raw == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
