// Package syncapi implements the wire protocol against the scheduling
// endpoint: it serializes a draft into a submission request and maps the
// server's authoritative schedule (user entries plus AI-predicted ones)
// back into store entries.
//
// The client is stateless and reentrant-safe; the one-submission-at-a-time
// rule is the board's job, not the client's. It never retries.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hiveboard/internal/schedule"
	"hiveboard/pkg/logx"
)

// maxBodyBytes caps response reads; a month of entries is tiny.
const maxBodyBytes = 1 << 20

type Config struct {
	// Endpoint is the scheduling endpoint URL, e.g.
	// "http://localhost:8000/api/calendar/schedule".
	Endpoint string
	// Timeout bounds each round-trip (besides the caller's ctx).
	Timeout time.Duration
}

type Client struct {
	endpoint string
	http     *http.Client
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	ep := strings.TrimSpace(cfg.Endpoint)
	if ep == "" {
		return nil, errors.New("sync endpoint is empty")
	}
	u, err := url.Parse(ep)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sync endpoint %q", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		endpoint: ep,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}, nil
}

// submitPayload is the submission request body.
type submitPayload struct {
	Date  schedule.Date `json:"date"`
	Tasks []string      `json:"tasks"`
}

// wireEntry is one entry in the server response. The AI flag maps to
// Entry.Provisional.
type wireEntry struct {
	Date schedule.Date `json:"date"`
	Task string        `json:"task"`
	AI   bool          `json:"AI"`
}

// Submit posts the draft payload:
//
//	POST {endpoint}
//	{"date":"YYYY-MM-DD","tasks":["<label>",...]}
//
// and returns the ordered entry list from the response's "response"
// field. Transport failures and non-2xx statuses come back as a
// transport SyncError; a 2xx body whose "response" field is absent or
// not a list is a malformed SyncError. Either way nothing is applied to
// any store here.
func (c *Client) Submit(ctx context.Context, date schedule.Date, tasks []string) ([]schedule.Entry, error) {
	body, err := json.Marshal(submitPayload{Date: date, Tasks: tasks})
	if err != nil {
		return nil, transportErr("submit", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, transportErr("submit", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "submit")
}

// FetchMonth reads the existing schedule for a month:
//
//	GET {endpoint}?month=<1-12>&year=<YYYY>
//
// The response shape and error taxonomy match Submit.
func (c *Client) FetchMonth(ctx context.Context, year int, month time.Month) ([]schedule.Entry, error) {
	if month < time.January || month > time.December {
		return nil, transportErr("fetch", 0, fmt.Errorf("invalid month %d", month))
	}
	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("month", strconv.Itoa(int(month)))
	q.Set("year", strconv.Itoa(year))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, transportErr("fetch", 0, err)
	}

	return c.do(req, "fetch")
}

func (c *Client) do(req *http.Request, op string) ([]schedule.Entry, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportErr(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportErr(op, resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, transportErr(op, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	entries, err := decodeEntries(data, op)
	if err != nil {
		return nil, err
	}

	c.log.Debug("sync round-trip",
		logx.String("op", op), logx.Int("status", resp.StatusCode),
		logx.Int("entries", len(entries)), logx.Duration("took", time.Since(start)))
	return entries, nil
}

// decodeEntries parses {"response":[{...},...]} into schedule entries.
// A missing or non-list "response" field is malformed, distinct from a
// transport error.
func decodeEntries(data []byte, op string) ([]schedule.Entry, error) {
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, malformedErr(op, fmt.Errorf("decode body: %w", err))
	}
	if len(envelope.Response) == 0 || string(envelope.Response) == "null" {
		return nil, malformedErr(op, errors.New(`missing "response" field`))
	}

	var wire []wireEntry
	if err := json.Unmarshal(envelope.Response, &wire); err != nil {
		return nil, malformedErr(op, fmt.Errorf(`"response" is not an entry list: %w`, err))
	}

	entries := make([]schedule.Entry, 0, len(wire))
	for _, w := range wire {
		entries = append(entries, schedule.Entry{
			Date:        w.Date,
			Task:        w.Task,
			Provisional: w.AI,
		})
	}
	return entries, nil
}
