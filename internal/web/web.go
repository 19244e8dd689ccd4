// Package web exposes the countdown engine over HTTP: countdown listings,
// custom-event mutations, and an iCalendar feed.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"daycount/internal/config"
	"daycount/internal/countdown"
	"daycount/internal/feed"
	applog "daycount/internal/log"
	"daycount/internal/model"
)

// Server provides the HTTP API on top of a countdown.Assembler.
type Server struct {
	cfg       *config.Config
	assembler *countdown.Assembler
	loc       *time.Location
	mux       *http.ServeMux

	// now is replaceable in tests.
	now func() time.Time

	// cacheMu guards cache. Entries stay valid for the calendar day they
	// were assembled on and are dropped on any mutation (and by the cron
	// rollover in cmd/daycountd).
	cacheMu sync.RWMutex
	cache   map[model.Category]*countdownCache
}

type countdownCache struct {
	day     string
	records []model.Countdown
}

// NewServer constructs a Server. The configured timezone decides which
// calendar date counts as "today"; invalid names fall back to time.Local.
func NewServer(cfg *config.Config, asm *countdown.Assembler) *Server {
	s := &Server{
		cfg:       cfg,
		assembler: asm,
		loc:       resolveLocationOrLocal(cfg.Timezone),
		mux:       http.NewServeMux(),
		now:       time.Now,
		cache:     make(map[model.Category]*countdownCache),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/countdowns", s.handleCountdowns)
	s.mux.HandleFunc("POST /api/events", s.handleAddEvent)
	s.mux.HandleFunc("DELETE /api/events/{key}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendarFeed)
}

// Handler returns the underlying http.Handler, wrapped with basic auth
// when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		applog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// InvalidateCache drops all cached countdown listings. Mutations call this
// internally.
func (s *Server) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[model.Category]*countdownCache)
	s.cacheMu.Unlock()
}

// Refresh drops the cache and reassembles every category for the current
// date. The daemon's midnight cron calls it so the first request of a new
// day does not pay the full lunar-search cost.
func (s *Server) Refresh(ctx context.Context) {
	s.InvalidateCache()
	today := s.today()
	for _, category := range []model.Category{
		model.CategoryAnniversaries,
		model.CategoryBirthdays,
		model.CategoryHolidays,
	} {
		if _, err := s.assembleCached(ctx, category, today); err != nil {
			applog.Error("scheduled refresh failed", err, "category", category)
		}
	}
}

// today returns the current calendar date in the configured timezone,
// truncated to midnight.
func (s *Server) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="daycount", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// countdownDTO is the JSON view of a countdown record.
type countdownDTO struct {
	Key           string `json:"key"`
	DisplayName   string `json:"display_name"`
	Date          string `json:"date"`
	DaysRemaining int64  `json:"days_remaining"`
	Deletable     bool   `json:"deletable"`
}

// countdownsResponse is the JSON response shape for /api/countdowns.
type countdownsResponse struct {
	Category   model.Category `json:"category"`
	Today      string         `json:"today"`
	Countdowns []countdownDTO `json:"countdowns"`
}

// handleCountdowns returns the assembled countdown list for one category.
//
// GET /api/countdowns?category=anniversaries|birthdays|holidays
func (s *Server) handleCountdowns(w http.ResponseWriter, r *http.Request) {
	category, err := model.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	today := s.today()
	records, err := s.assembleCached(r.Context(), category, today)
	if err != nil {
		applog.Error("assemble failed", err, "category", category)
		writeError(w, http.StatusInternalServerError, "failed to assemble countdowns")
		return
	}

	dtos := make([]countdownDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, countdownDTO{
			Key:           rec.Key,
			DisplayName:   rec.DisplayName,
			Date:          rec.Date.Format("2006-01-02"),
			DaysRemaining: rec.DaysRemaining,
			Deletable:     rec.Deletable,
		})
	}

	writeJSON(w, http.StatusOK, countdownsResponse{
		Category:   category,
		Today:      today.Format("2006-01-02"),
		Countdowns: dtos,
	})
}

func (s *Server) assembleCached(ctx context.Context, category model.Category, today time.Time) ([]model.Countdown, error) {
	day := today.Format("2006-01-02")

	s.cacheMu.RLock()
	c := s.cache[category]
	s.cacheMu.RUnlock()
	if c != nil && c.day == day {
		return c.records, nil
	}

	records, err := s.assembler.Assemble(ctx, category, today)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[category] = &countdownCache{day: day, records: records}
	s.cacheMu.Unlock()
	return records, nil
}

// addEventRequest is the JSON request body for POST /api/events.
type addEventRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	Lunar       bool   `json:"lunar"`
	OneTimeYear *int   `json:"one_time_year,omitempty"`
}

// handleAddEvent creates a custom event. Duplicate names answer 409 so the
// client can re-prompt.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	category, err := model.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spec := model.CalendarSpec{Month: req.Month, Day: req.Day, Lunar: req.Lunar}
	ev, err := s.assembler.Add(r.Context(), category, req.Name, spec, req.OneTimeYear)
	if err != nil {
		var specErr *model.InvalidSpecError
		switch {
		case errors.Is(err, model.ErrDuplicateName):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &specErr):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			applog.Error("add event failed", err, "category", category, "name", req.Name)
			writeError(w, http.StatusInternalServerError, "failed to save event")
		}
		return
	}

	s.InvalidateCache()
	applog.Info("custom event added", "category", category, "name", ev.Name, "id", ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

// handleDeleteEvent removes a custom event by its stable key.
//
// DELETE /api/events/{key}?category=...
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	category, err := model.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := r.PathValue("key")

	if err := s.assembler.Delete(r.Context(), category, key); err != nil {
		switch {
		case errors.Is(err, model.ErrNotDeletable):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, model.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			applog.Error("delete event failed", err, "category", category, "key", key)
			writeError(w, http.StatusInternalServerError, "failed to delete event")
		}
		return
	}

	s.InvalidateCache()
	applog.Info("custom event deleted", "category", category, "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// handleCalendarFeed serves upcoming occurrences as an iCalendar document.
//
// GET /calendar.ics?category=...&days=365
func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, err := model.ParseCategory(q.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := parseIntDefault(q.Get("days"), 365)
	if days <= 0 {
		days = 365
	}

	today := s.today()
	occurrences, err := s.assembler.Project(r.Context(), category, today, days)
	if err != nil {
		applog.Error("feed projection failed", err, "category", category)
		writeError(w, http.StatusInternalServerError, "failed to build calendar feed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=daycount_`+string(category)+`.ics`)
	_, _ = w.Write([]byte(feed.Build(category, occurrences, s.now())))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		applog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
