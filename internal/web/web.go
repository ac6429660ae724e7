package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gridcal/internal/config"
	"gridcal/internal/ics"
	"gridcal/internal/layout"
	appLog "gridcal/internal/log"
	"gridcal/internal/model"
)

// Server provides the HTTP API and the embedded day-grid UI.
//
// Two caches sit behind it: a short-TTL occurrence cache (so the Web UI does
// not re-fetch/re-parse feeds on every request) and a shared layout.Cache
// keyed by content hash, owned by this server instance.
type Server struct {
	cfg      *config.Config
	debug    bool
	mux      *http.ServeMux
	cacheDir string

	eventsMu    sync.RWMutex
	eventsCache *eventsCache

	layouts *layout.Cache
}

// embeddedStatic contains the built-in day-grid UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, debug bool) *Server {
	cacheDir := "/var/lib/gridcal/ics-cache"
	if debug {
		cacheDir = "./cache/ics-cache"
	}
	s := &Server{
		cfg:      cfg,
		debug:    debug,
		mux:      http.NewServeMux(),
		cacheDir: cacheDir,
		layouts:  layout.NewCache(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// InvalidateCaches drops both the occurrence cache and the layout cache.
// The cron refresher calls this so the next request recomputes from fresh
// feed data.
func (s *Server) InvalidateCaches() {
	s.eventsMu.Lock()
	s.eventsCache = nil
	s.eventsMu.Unlock()
	s.layouts.Clear()
}

// StartServer starts an HTTP server bound to cfg.Listen, shutting down
// gracefully when ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, debug bool) error {
	s := NewServer(cfg, debug)
	return s.Serve(ctx)
}

// Serve runs the HTTP server until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth rather than locking
	// everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gridcal", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/layout", s.handleLayout)
	s.mux.HandleFunc("/preview.png", s.handlePreview)

	// Embedded day-grid UI; all non-/api/* paths fall back to it.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never serve HTML for API paths; a missing API handler must 404.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// handlePreview serves the last rendered PNG preview from disk. The path
// matches the capture pipeline in cmd/gridcal.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	previewPath := "/var/lib/gridcal/preview.png"
	if s.debug {
		previewPath = "./cache/preview.png"
	}
	http.ServeFile(w, r, previewPath)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	TruncatedUIDs   []string   `json:"truncated_uids,omitempty"`
	RangeStart      time.Time  `json:"range_start"`
	RangeEnd        time.Time  `json:"range_end"`
	DisplayTimeZone string     `json:"display_timezone"`
	WeekStart       string     `json:"week_start"`
}

// eventsCache holds a cached occurrence set and its timestamp.
type eventsCache struct {
	key       string
	events    []model.Event
	truncated []string
	updatedAt time.Time
}

// eventDTO is a JSON-friendly view of one occurrence.
type eventDTO struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		SourceID:    ev.SourceID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       ev.Start,
		End:         ev.End,
	}
}

// loadOccurrences fetches, parses and expands all configured feeds into the
// given window, with a short-TTL in-memory cache keyed by the window. The
// main refresh loop is still cron-driven; this only smooths Web UI access.
func (s *Server) loadOccurrences(ctx context.Context, rangeStart, rangeEnd time.Time, loc *time.Location) ([]model.Event, []string, error) {
	const ttl = 30 * time.Second
	cacheKey := rangeStart.Format(time.RFC3339) + "|" + rangeEnd.Format(time.RFC3339)

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.key == cacheKey && time.Since(ec.updatedAt) < ttl {
		return ec.events, ec.truncated, nil
	}

	sources := make([]ics.Source, 0, len(s.cfg.ICS))
	for _, csrc := range s.cfg.ICS {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: csrc.URL})
	}
	if len(sources) == 0 {
		return nil, nil, nil
	}

	fetcher := ics.NewFetcher(s.cacheDir)
	fetchResults, fetchErrs := fetcher.FetchAll(ctx, sources)
	if len(fetchErrs) > 0 {
		appLog.Error("one or more ICS fetches failed", errorsAggregate(fetchErrs), "error_count", len(fetchErrs))
	}

	parsedEvents := make([]ics.ParsedEvent, 0)
	for _, res := range fetchResults {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsedEvents = append(parsedEvents, events...)
	}

	expandResult, err := ics.ExpandOccurrences(parsedEvents, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		return nil, nil, err
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{
		key:       cacheKey,
		events:    expandResult.Events,
		truncated: expandResult.TruncatedUIDs,
		updatedAt: time.Now(),
	}
	s.eventsMu.Unlock()

	return expandResult.Events, expandResult.TruncatedUIDs, nil
}

// handleEvents returns expanded occurrences for the configured ICS sources
// within a requested time window.
//
// GET /api/events?days=7&backfill=1
//   - days:     how many days ahead to include (default 7)
//   - backfill: how many past days to include (default 1)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	appLog.Debug("api events request",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	events, truncated, err := s.loadOccurrences(r.Context(), rangeStart, rangeEnd, loc)
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          dtos,
		TruncatedUIDs:   truncated,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
		WeekStart:       s.cfg.WeekStart,
	})
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	Date            string        `json:"date"`
	DayStart        time.Time     `json:"day_start"`
	PixelsPerMinute float64       `json:"pixels_per_minute"`
	Events          []layoutedDTO `json:"events"`
	AllDay          []eventDTO    `json:"all_day,omitempty"`
	DisplayTimeZone string        `json:"display_timezone"`
}

// layoutedDTO is one positioned event in the day grid.
type layoutedDTO struct {
	eventDTO

	ClusterID    int          `json:"cluster_id"`
	ColumnIndex  int          `json:"column_index"`
	TotalColumns int          `json:"total_columns"`
	Style        layout.Style `json:"style"`
}

// handleLayout computes the day-grid layout for a single day.
//
// GET /api/layout?date=2025-06-02
//   - date: the day to lay out, YYYY-MM-DD in the display timezone
//     (default: today)
//
// Timed events are clustered and assigned columns by the layout engine;
// all-day events are returned in a separate list for the all-day strip.
// Results are memoized in the server's layout cache, keyed by date plus a
// content hash of the day's events so feed changes never serve stale
// geometry.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	dateStr := r.URL.Query().Get("date")
	var day time.Time
	if dateStr == "" {
		now := time.Now().In(loc)
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	} else {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		day = parsed
	}
	nextDay := day.AddDate(0, 0, 1)

	events, _, err := s.loadOccurrences(r.Context(), day, nextDay, loc)
	if err != nil {
		appLog.Error("api layout: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	// Keep only occurrences intersecting the day. Expansion windows are
	// inclusive, so an event ending exactly at midnight would otherwise
	// leak into the next day's grid.
	dayEvents := make([]model.Event, 0, len(events))
	allDay := make([]eventDTO, 0)
	for _, ev := range events {
		if ev.Start.Before(nextDay) && day.Before(ev.End) {
			if ev.AllDay {
				if s.cfg.ShowAllDay {
					allDay = append(allDay, toEventDTO(ev))
				}
				continue
			}
			dayEvents = append(dayEvents, ev)
		}
	}

	key := day.Format("2006-01-02") + "|" + layout.ContentKey(dayEvents)
	layouted := s.layouts.GetOrCompute(key, dayEvents)

	scale := layout.Scale{
		DayStart:        day.Add(time.Duration(s.cfg.Grid.DayStartHour) * time.Hour),
		PixelsPerMinute: s.cfg.Grid.PixelsPerMinute,
		MinEventHeight:  s.cfg.Grid.MinEventHeightPx,
	}

	dtos := make([]layoutedDTO, 0, len(layouted))
	for _, le := range layouted {
		dtos = append(dtos, layoutedDTO{
			eventDTO:     toEventDTO(le.Event),
			ClusterID:    le.ClusterID,
			ColumnIndex:  le.ColumnIndex,
			TotalColumns: le.TotalColumns,
			Style:        scale.Style(le),
		})
	}

	writeJSON(w, http.StatusOK, layoutResponse{
		Date:            day.Format("2006-01-02"),
		DayStart:        scale.DayStart,
		PixelsPerMinute: scale.PixelsPerMinute,
		Events:          dtos,
		AllDay:          allDay,
		DisplayTimeZone: loc.String(),
	})
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
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
