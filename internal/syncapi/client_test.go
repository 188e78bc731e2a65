package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hiveboard/internal/schedule"
	"hiveboard/pkg/logx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	for _, ep := range []string{"", "   ", "not a url", "/relative/path"} {
		if _, err := New(Config{Endpoint: ep}, logx.Nop()); err == nil {
			t.Fatalf("New(%q) accepted", ep)
		}
	}
}

func TestSubmitRoundTrip(t *testing.T) {
	var gotBody struct {
		Date  string   `json:"date"`
		Tasks []string `json:"tasks"`
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"response":[
			{"date":"2025-10-05","task":"Hive Inspection","AI":false},
			{"date":"2025-10-05","task":"Varroa Mite Treatment","AI":true}
		]}`))
	})

	d := schedule.Date{Year: 2025, Month: 10, Day: 5}
	entries, err := c.Submit(context.Background(), d, []string{"Hive Inspection"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotBody.Date != "2025-10-05" || len(gotBody.Tasks) != 1 || gotBody.Tasks[0] != "Hive Inspection" {
		t.Fatalf("request body = %+v", gotBody)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Provisional || !entries[1].Provisional {
		t.Fatalf("AI flag mapping wrong: %+v", entries)
	}
	if entries[1].Date != d || entries[1].Task != "Varroa Mite Treatment" {
		t.Fatalf("entry fields wrong: %+v", entries[1])
	}
}

func TestSubmitTransportErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	_, err := c.Submit(context.Background(), schedule.Date{Year: 2025, Month: 10, Day: 5}, []string{"x"})
	if !IsTransport(err) {
		t.Fatalf("want transport error, got %v", err)
	}
	var se *SyncError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("status not carried: %v", err)
	}

	// Connection refused (server closed) is also transport.
	c2, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	if _, err := c2.Submit(context.Background(), schedule.Date{Year: 2025, Month: 10, Day: 5}, nil); !IsTransport(err) {
		t.Fatalf("want transport error, got %v", err)
	}
}

func TestSubmitMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{{`,
		"missing field":   `{"ok":true}`,
		"null response":   `{"response":null}`,
		"not a list":      `{"response":{"date":"2025-10-05"}}`,
		"scalar response": `{"response":42}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.Submit(context.Background(), schedule.Date{Year: 2025, Month: 10, Day: 5}, []string{"x"})
			if !IsMalformed(err) {
				t.Fatalf("want malformed error, got %v", err)
			}
			if IsTransport(err) {
				t.Fatalf("error classified both ways: %v", err)
			}
		})
	}
}

func TestSubmitEmptyEntryList(t *testing.T) {
	// An empty list is a valid response, not malformed.
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":[]}`))
	})
	entries, err := c.Submit(context.Background(), schedule.Date{Year: 2025, Month: 10, Day: 5}, []string{"x"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestFetchMonthQuery(t *testing.T) {
	var gotMonth, gotYear string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		gotMonth = r.URL.Query().Get("month")
		gotYear = r.URL.Query().Get("year")
		w.Write([]byte(`{"response":[{"date":"2025-11-02","task":"Winter Preparation","AI":true}]}`))
	})

	entries, err := c.FetchMonth(context.Background(), 2025, time.November)
	if err != nil {
		t.Fatalf("FetchMonth: %v", err)
	}
	if gotMonth != "11" || gotYear != "2025" {
		t.Fatalf("query = month=%s year=%s", gotMonth, gotYear)
	}
	if len(entries) != 1 || !entries[0].Provisional {
		t.Fatalf("entries = %+v", entries)
	}

	if _, err := c.FetchMonth(context.Background(), 2025, time.Month(13)); err == nil {
		t.Fatalf("invalid month accepted")
	}
}
