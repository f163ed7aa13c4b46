package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

const requestTimeout = 10 * time.Second

// limitReachedCode is the business error the server answers when the user
// already consumed this meal; for sync bookkeeping it means "resolved".
const limitReachedCode = "limit_reached"

// HTTPClient implements Client against the JSON ticket API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL string, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		log:     log,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// SetBaseURL switches the client to a different server. Used when the
// operator overrides the configured endpoint.
func (c *HTTPClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/health", nil, &out)
}

func (c *HTTPClient) TotalTicketsInRange(ctx context.Context, startDate, endDate string) (int, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)

	var out struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := c.get(ctx, "/tickets/total", q, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("server refused ticket count for %s..%s", startDate, endDate)
	}
	return out.Count, nil
}

func (c *HTTPClient) TicketsInRange(ctx context.Context, startDate, endDate string, page, pageSize int) ([]Ticket, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out struct {
		Status  string   `json:"status"`
		Tickets []Ticket `json:"tickets"`
	}
	if err := c.get(ctx, "/tickets", q, &out); err != nil {
		return nil, err
	}
	if out.Status != "ok" {
		return nil, fmt.Errorf("server returned status %q for ticket page %d", out.Status, page)
	}
	return out.Tickets, nil
}

func (c *HTTPClient) CreateTicket(ctx context.Context, ticket Ticket) (int64, error) {
	var out struct {
		Status   string `json:"status"`
		TicketID int64  `json:"ticket_id"`
		Code     string `json:"code"`
	}
	if err := c.post(ctx, "/tickets", ticket, &out); err != nil {
		return 0, err
	}
	switch {
	case out.Status == "ok":
		return out.TicketID, nil
	case out.Code == limitReachedCode:
		return 0, common.ErrLimitReached
	default:
		return 0, fmt.Errorf("server rejected ticket %s: status=%q code=%q", ticket.UUID, out.Status, out.Code)
	}
}

func (c *HTTPClient) TodayPeriod(ctx context.Context) (*Period, error) {
	var out struct {
		Status string  `json:"status"`
		Period *Period `json:"period"`
	}
	if err := c.get(ctx, "/periods/today", nil, &out); err != nil {
		return nil, err
	}
	return out.Period, nil
}

func (c *HTTPClient) UserCount(ctx context.Context) (int, error) {
	var out struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	if err := c.get(ctx, "/users/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *HTTPClient) UsersPage(ctx context.Context, page, pageSize int, activeOnly bool) ([]User, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("active", strconv.FormatBool(activeOnly))

	var out struct {
		Status string `json:"status"`
		Users  []User `json:"users"`
	}
	if err := c.get(ctx, "/users", q, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrOffline, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn(req.Context(), "api request failed",
			"method", req.Method, "path", req.URL.Path, "status", resp.Status)
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
