package remote

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, testLogger())
}

func TestWireDate(t *testing.T) {
	d := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "15-03-2024", WireDate(d))
}

func TestTotalTicketsInRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/total", r.URL.Path)
		assert.Equal(t, "15-03-2024", r.URL.Query().Get("start_date"))
		assert.Equal(t, "15-03-2024", r.URL.Query().Get("end_date"))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "count": 1234})
	})

	n, err := c.TotalTicketsInRange(context.Background(), "15-03-2024", "15-03-2024")
	require.NoError(t, err)
	assert.Equal(t, 1234, n)
}

func TestTotalTicketsInRange_Refused(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	})

	_, err := c.TotalTicketsInRange(context.Background(), "15-03-2024", "15-03-2024")
	require.Error(t, err)
}

func TestTicketsInRange_PagingParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "600", r.URL.Query().Get("page_size"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"tickets": []map[string]any{
				{"ticket_id": 1, "user_id": 77, "meal_id": 5, "period_id": 9, "created_at": "2024-03-15T12:00:00.000Z", "uuid": "u1"},
			},
		})
	})

	got, err := c.TicketsInRange(context.Background(), "15-03-2024", "15-03-2024", 2, 600)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(77), got[0].UserID)
	assert.Equal(t, "u1", got[0].UUID)
}

func TestCreateTicket_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var in Ticket
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "u1", in.UUID)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "ticket_id": 555})
	})

	id, err := c.CreateTicket(context.Background(), Ticket{UserID: 77, MealID: 5, PeriodID: 9, UUID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)
}

func TestCreateTicket_LimitReached(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "code": "limit_reached"})
	})

	_, err := c.CreateTicket(context.Background(), Ticket{UUID: "u1"})
	assert.ErrorIs(t, err, common.ErrLimitReached)
}

func TestCreateTicket_OtherRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "code": "bad_meal"})
	})

	_, err := c.CreateTicket(context.Background(), Ticket{UUID: "u1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrLimitReached)
}

func TestTodayPeriod_MapsNestedMeals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"period": map[string]any{
				"period_id": 9, "name": "semana 11",
				"start_date": "2024-03-11", "end_date": "2024-03-17", "active": true,
				"meals": []map[string]any{
					{
						"link_id": 20, "meal_id": 5, "hours_before": 1, "max_persons": 1,
						"active": true, "subsidy": "2.50",
						"meal": map[string]any{"meal_id": 5, "name": "Almuerzo", "start_time": "12:00", "end_time": "14:30", "active": true},
					},
				},
			},
		})
	})

	p, err := c.TodayPeriod(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)

	m := p.Model()
	assert.Equal(t, int64(9), m.ExternalID)
	require.Len(t, m.Links, 1)
	assert.Equal(t, int64(9), m.Links[0].PeriodID)
	assert.Equal(t, "Almuerzo", m.Links[0].Meal.Name)
	assert.Equal(t, "2.5", m.Links[0].Subsidy.String())
}

func TestTodayPeriod_Absent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "period": nil})
	})

	p, err := c.TodayPeriod(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDo_ConnectionErrorIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore
	c := NewHTTPClient(srv.URL, testLogger())

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrOffline)
}

func TestUsersPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"users": []map[string]any{
				{"user_id": 77, "code": "1234", "first_name": "Ana", "last_name": "Mora"},
			},
		})
	})

	got, err := c.UsersPage(context.Background(), 1, 300, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	u := got[0].Model()
	assert.Equal(t, int64(77), u.ExternalID)
	assert.True(t, u.Synced)
}
