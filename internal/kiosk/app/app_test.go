package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/config"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/repositories/metadata"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "kiosk.db")
	cfg.ExportDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	a, err := New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	a.now = func() time.Time { return testNow }
	return a
}

// seed puts a current period with a lunch window and one roster entry
// into the local store.
func seed(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.repos.Periods.Save(ctx, &models.Period{
		ExternalID: 9, Name: "semana 11",
		StartDate: "2024-03-11", EndDate: "2024-03-17", Active: true,
	}))
	require.NoError(t, a.repos.Meals.Save(ctx, &models.Meal{
		ExternalID: 5, Name: "Almuerzo", StartTime: "12:00", EndTime: "14:30", Active: true,
	}))
	require.NoError(t, a.repos.Meals.SaveLink(ctx, &models.MealPeriodLink{
		ID: 20, PeriodID: 9, MealID: 5, Active: true, Subsidy: decimal.NewFromInt(2),
	}))
	require.NoError(t, a.repos.Users.Save(ctx, &models.User{
		ExternalID: 77, Code: "1234", FirstName: "Ana", LastName: "Mora",
	}))
}

func TestBootstrap(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)

	require.NoError(t, a.Bootstrap(context.Background()))

	st := a.State()
	assert.True(t, st.Initialized)
	require.NotNil(t, st.Period)
	assert.Equal(t, int64(9), st.Period.ExternalID)
	require.NotNil(t, st.ActiveMeal)
	assert.Equal(t, "Almuerzo", st.ActiveMeal.Name)
	assert.Contains(t, st.Roster, "1234")
}

func TestBootstrap_CleansUpOldSyncedTickets(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)
	ctx := context.Background()

	// synced leftover from a previous period's dinner
	_, _, err := a.repos.Tickets.Save(ctx, &models.Ticket{
		UserID: 77, MealID: 3, PeriodID: 8,
		CreatedAt: "2024-03-01T19:00:00.000Z", UUID: "old-dinner", SyncPending: false,
	})
	require.NoError(t, err)

	require.NoError(t, a.Bootstrap(ctx))

	all, err := a.repos.Tickets.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBootstrap_EmptyStoreStillInitializes(t *testing.T) {
	a := newApp(t, testConfig(t))

	require.NoError(t, a.Bootstrap(context.Background()))

	st := a.State()
	assert.True(t, st.Initialized)
	assert.Nil(t, st.Period)
	assert.Nil(t, st.ActiveMeal)
	assert.Empty(t, st.Roster)
}

func TestIssueTicket(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)
	ctx := context.Background()
	require.NoError(t, a.Bootstrap(ctx))

	res, err := a.IssueTicket(ctx, "1234")
	require.NoError(t, err)
	assert.False(t, res.AlreadyIssued)
	assert.Equal(t, "Ana", res.User.FirstName)

	st := a.State()
	assert.Equal(t, 1, st.Stats.Total)
	assert.Equal(t, 1, st.Stats.Pending)
	assert.Equal(t, "ticket issued", st.Feedback.Message)
	assert.False(t, st.Feedback.IsError)

	// same code again is a soft success, not a second row
	res, err = a.IssueTicket(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, res.AlreadyIssued)
	assert.Equal(t, 1, a.State().Stats.Total)
}

func TestIssueTicket_InvalidCode(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)
	ctx := context.Background()
	require.NoError(t, a.Bootstrap(ctx))

	_, err := a.IssueTicket(ctx, "9999")
	assert.ErrorIs(t, err, common.ErrNotFound)

	st := a.State()
	assert.Equal(t, "invalid code", st.Feedback.Message)
	assert.True(t, st.Feedback.IsError)
}

func TestIssueTicket_BeforeBootstrap(t *testing.T) {
	a := newApp(t, testConfig(t))

	_, err := a.IssueTicket(context.Background(), "1234")
	assert.ErrorIs(t, err, common.ErrNotInitialized)
	assert.Equal(t, "still loading, try again", a.State().Feedback.Message)
}

func TestFeedbackAutoClears(t *testing.T) {
	a := newApp(t, testConfig(t))

	a.setFeedback(context.Background(), "ticket issued", false)
	assert.Equal(t, "ticket issued", a.State().Feedback.Message)

	assert.Eventually(t, func() bool {
		return a.State().Feedback.Message == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribe_NotifiedOnStateChange(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)
	events := a.Subscribe()

	require.NoError(t, a.Bootstrap(context.Background()))

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no event after bootstrap")
	}
}

func TestRefreshRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/count":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "count": 2})
		case "/users":
			switch r.URL.Query().Get("page") {
			case "1":
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "users": []map[string]any{
					{"user_id": 77, "code": "1234", "first_name": "Ana", "last_name": "Mora"},
				}})
			case "2":
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "users": []map[string]any{
					{"user_id": 78, "code": "5678", "first_name": "Luis", "last_name": "Paz"},
				}})
			}
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.APIBaseURL = srv.URL
	cfg.UserPageSize = 1
	a := newApp(t, cfg)

	require.NoError(t, a.RefreshRoster(context.Background()))

	st := a.State()
	assert.Len(t, st.Roster, 2)
	assert.Contains(t, st.Roster, "5678")

	// persisted, not just cached
	u, err := a.repos.Users.GetByCode(context.Background(), "5678")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(78), u.ExternalID)
}

func TestRefreshPeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/periods/today", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"period": map[string]any{
				"period_id": 9, "name": "semana 11",
				"start_date": "2024-03-11", "end_date": "2024-03-17", "active": true,
				"meals": []map[string]any{
					{
						"link_id": 20, "meal_id": 5, "active": true, "subsidy": "2.50",
						"meal": map[string]any{"meal_id": 5, "name": "Almuerzo", "start_time": "12:00", "end_time": "14:30", "active": true},
					},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.APIBaseURL = srv.URL
	a := newApp(t, cfg)

	require.NoError(t, a.RefreshPeriod(context.Background()))

	st := a.State()
	require.NotNil(t, st.Period)
	assert.Equal(t, int64(9), st.Period.ExternalID)
	require.Len(t, st.Period.Links, 1)
	require.NotNil(t, st.ActiveMeal)
	assert.Equal(t, "Almuerzo", st.ActiveMeal.Name)
}

func TestRefreshPeriod_AtomicOnLinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"period": map[string]any{
				"period_id": 9, "name": "semana 11",
				"start_date": "2024-03-11", "end_date": "2024-03-17", "active": true,
				"meals": []map[string]any{
					{
						"link_id": 20, "meal_id": 5, "active": true, "subsidy": "2.50",
						"meal": map[string]any{"meal_id": 5, "name": "Almuerzo", "start_time": "12:00", "end_time": "14:30", "active": true},
					},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.APIBaseURL = srv.URL
	a := newApp(t, cfg)
	ctx := context.Background()

	// lose the link table so the last statement of the batch fails
	_, err := a.db.ExecContext(ctx, `DROP TABLE meal_periods`)
	require.NoError(t, err)

	require.Error(t, a.RefreshPeriod(ctx))

	// the period upsert from the same batch must have rolled back
	p, err := a.repos.Periods.Current(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSetAPIBaseURL_PersistsOverride(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)
	ctx := context.Background()

	require.NoError(t, a.SetAPIBaseURL(ctx, "http://other.example/api"))

	raw, err := a.repos.Metadata.Get(ctx, metadata.KeyAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "http://other.example/api", string(raw))
	assert.Equal(t, "http://other.example/api", a.baseURL(ctx))

	require.NoError(t, a.ResetAPIBaseURL(ctx))
	assert.Equal(t, cfg.APIBaseURL, a.baseURL(ctx))
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.APIBaseURL = srv.URL
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.StartOnlineStatusWatcher(ctx, 10*time.Millisecond)

	assert.Eventually(t, a.IsOnline, time.Second, 10*time.Millisecond)

	srv.Close()
	assert.Eventually(t, func() bool { return !a.IsOnline() }, time.Second, 10*time.Millisecond)
}

func TestSync_Offline(t *testing.T) {
	a := newApp(t, testConfig(t))
	seed(t, a)
	require.NoError(t, a.Bootstrap(context.Background()))

	_, err := a.Sync(context.Background(), true)
	assert.ErrorIs(t, err, common.ErrOffline)
	assert.False(t, a.State().Syncing)
}
