package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daycount/internal/catalog"
	"daycount/internal/config"
	"daycount/internal/countdown"
	"daycount/internal/model"
	"daycount/internal/store"
)

var testNow = time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, auth *config.BasicAuthConfig) *Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BasicAuth = auth

	asm := countdown.New(st, catalog.Default(), cfg.Milestones)
	s := NewServer(cfg, asm)
	s.now = func() time.Time { return testNow }
	return s
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := doJSON(t, s.Handler(), "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestGetCountdowns(t *testing.T) {
	s := newTestServer(t, nil)

	w := doJSON(t, s.Handler(), "GET", "/api/countdowns?category=holidays", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp countdownsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Today != "2025-01-01" {
		t.Errorf("today = %q, want 2025-01-01", resp.Today)
	}
	if len(resp.Countdowns) == 0 {
		t.Fatal("no countdowns returned")
	}
	first := resp.Countdowns[0]
	if first.DisplayName != "元旦" || first.DaysRemaining != 0 {
		t.Errorf("first record = %+v, want 元旦 with 0 days", first)
	}
	for i := 1; i < len(resp.Countdowns); i++ {
		if resp.Countdowns[i].DaysRemaining < resp.Countdowns[i-1].DaysRemaining {
			t.Errorf("response not sorted at index %d", i)
		}
	}
}

func TestGetCountdownsBadCategory(t *testing.T) {
	s := newTestServer(t, nil)
	for _, target := range []string{"/api/countdowns", "/api/countdowns?category=weddings"} {
		w := doJSON(t, s.Handler(), "GET", target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, w.Code)
		}
	}
}

func TestAddAndListEvent(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	w := doJSON(t, h, "POST", "/api/events", addEventRequest{
		Category: "holidays", Name: "公司周年庆", Month: 3, Day: 18,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", w.Code, w.Body.String())
	}
	var created model.CustomEvent
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created event: %v", err)
	}
	if created.ID == "" {
		t.Error("created event has no ID")
	}

	// The cached listing must reflect the mutation immediately.
	w = doJSON(t, h, "GET", "/api/countdowns?category=holidays", nil)
	var resp countdownsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, c := range resp.Countdowns {
		if c.Key == created.ID {
			found = true
			if c.Date != "2025-03-18" || c.DaysRemaining != 76 {
				t.Errorf("new event record = %+v", c)
			}
			if !c.Deletable {
				t.Error("custom event not deletable")
			}
		}
	}
	if !found {
		t.Error("added event missing from listing")
	}
}

func TestAddEventErrors(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name string
		req  addEventRequest
		want int
	}{
		{"built-in collision", addEventRequest{Category: "holidays", Name: "元旦", Month: 1, Day: 1}, http.StatusConflict},
		{"bad category", addEventRequest{Category: "weddings", Name: "x", Month: 1, Day: 1}, http.StatusBadRequest},
		{"invalid day", addEventRequest{Category: "holidays", Name: "坏日期", Month: 2, Day: 30}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, "POST", "/api/events", tt.req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	// Duplicate of an existing custom event.
	if w := doJSON(t, h, "POST", "/api/events", addEventRequest{Category: "holidays", Name: "部门团建", Month: 4, Day: 1}); w.Code != http.StatusCreated {
		t.Fatalf("seed add failed: %d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/events", addEventRequest{Category: "holidays", Name: "部门团建", Month: 5, Day: 1}); w.Code != http.StatusConflict {
		t.Errorf("duplicate custom status = %d, want 409", w.Code)
	}
}

func TestDeleteEvent(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	// Built-ins are never deletable, keyed by their catalog name.
	w := doJSON(t, h, "DELETE", "/api/events/"+url.PathEscape("元旦")+"?category=holidays", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("delete built-in status = %d, want 403", w.Code)
	}

	w = doJSON(t, h, "DELETE", "/api/events/no-such-key?category=holidays", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/events", addEventRequest{Category: "holidays", Name: "临时活动", Month: 6, Day: 6})
	if w.Code != http.StatusCreated {
		t.Fatalf("seed add failed: %d", w.Code)
	}
	var created model.CustomEvent
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created event: %v", err)
	}

	w = doJSON(t, h, "DELETE", "/api/events/"+created.ID+"?category=holidays", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204 (body %s)", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/api/countdowns?category=holidays", nil)
	if strings.Contains(w.Body.String(), created.ID) {
		t.Error("deleted event still listed")
	}
}

func TestCalendarFeed(t *testing.T) {
	s := newTestServer(t, nil)

	w := doJSON(t, s.Handler(), "GET", "/calendar.ics?category=holidays&days=40", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/calendar") {
		t.Errorf("content type = %q, want text/calendar", ct)
	}
	body := w.Body.String()
	for _, field := range []string{"BEGIN:VCALENDAR", "SUMMARY:元旦", "SUMMARY:春节", "END:VCALENDAR"} {
		if !strings.Contains(body, field) {
			t.Errorf("feed missing %q", field)
		}
	}
}

func TestRefreshPrewarmsCache(t *testing.T) {
	s := newTestServer(t, nil)
	s.Refresh(context.Background())

	s.cacheMu.RLock()
	cached := len(s.cache)
	s.cacheMu.RUnlock()
	if cached != 3 {
		t.Errorf("Refresh cached %d categories, want 3", cached)
	}

	if w := doJSON(t, s.Handler(), "GET", "/api/countdowns?category=birthdays", nil); w.Code != http.StatusOK {
		t.Errorf("listing after refresh = %d, want 200", w.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, &config.BasicAuthConfig{Username: "gao", Password: "secret"})
	h := s.Handler()

	// /health stays open.
	if w := doJSON(t, h, "GET", "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health with auth enabled = %d, want 200", w.Code)
	}

	if w := doJSON(t, h, "GET", "/api/countdowns?category=holidays", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/countdowns?category=holidays", nil)
	req.SetBasicAuth("gao", "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/countdowns?category=holidays", nil)
	req.SetBasicAuth("gao", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
}
