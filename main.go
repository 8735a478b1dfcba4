package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coldcall_crm/analytics"
	"coldcall_crm/config"
	"coldcall_crm/importer"
	"coldcall_crm/metrics"
	"coldcall_crm/queue"
	"coldcall_crm/store"
	"coldcall_crm/usage"
)

type server struct {
	cfg      config.Config
	store    *store.Store
	queue    *queue.Queue
	metrics  *metrics.Metrics
	loader   *analytics.Loader
	importer *importer.Importer

	mu            sync.Mutex
	lastAnalytics *analyticsRequest
}

// analyticsRequest remembers the most recent analytics query so the
// background refresh keeps its snapshot warm.
type analyticsRequest struct {
	UserID        string
	Period        analytics.Period
	ContactListID int64
}

func main() {
	config.LoadDotEnv(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatalf("failed to ensure work dir: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	m := metrics.New()
	q := queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second, m)

	var usageSource analytics.UsageSource
	if cfg.Usage.Enabled {
		usageSource = usageMinutes{client: usage.New(cfg.Usage.BaseURL, cfg.Usage.Token, nil)}
	}
	loader := analytics.NewLoader(storeStats{st: st}, usageSource)

	s := &server{
		cfg:     cfg,
		store:   st,
		queue:   q,
		metrics: m,
		loader:  loader,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q.Start(ctx)

	im := importer.New(cfg.ImportDir, importUserID(), st, q, m)
	if err := im.Start(ctx); err != nil {
		log.Printf("import watcher unavailable: %v", err)
	} else if err := im.Scan(ctx); err != nil {
		log.Printf("import scan failed: %v", err)
	}
	s.importer = im

	go s.refreshAnalyticsLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/calls", s.handleCalls)
	mux.HandleFunc("/api/calls/export", s.handleExport)
	mux.HandleFunc("/api/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/contact-lists", s.handleContactLists)
	mux.HandleFunc("/api/contact-lists/import", s.handleImportTrigger)
	mux.HandleFunc("/ops/status", s.handleOpsStatus)
	mux.HandleFunc("/ops/jobs", s.handleOpsJobs)
	mux.HandleFunc("/ops/jobs/", s.handleOpsJobDetail)

	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		q.Stop(shutdownCtx)
	}()

	log.Printf("server listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func importUserID() string {
	if v := os.Getenv("IMPORT_USER_ID"); v != "" {
		return v
	}
	return "default"
}

// refreshAnalyticsLoop periodically re-runs the most recent analytics query
// so /api/analytics can serve a warm snapshot between requests.
func (s *server) refreshAnalyticsLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Analytics.RefreshIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			req := s.lastAnalytics
			s.mu.Unlock()
			if req == nil {
				continue
			}
			if _, accepted := s.loader.Refresh(ctx, req.UserID, req.Period, req.ContactListID); !accepted {
				log.Printf("background analytics refresh superseded for user=%s", req.UserID)
			}
		}
	}
}

func (s *server) rememberAnalytics(req analyticsRequest) {
	s.mu.Lock()
	s.lastAnalytics = &req
	s.mu.Unlock()
}

// requireUser extracts the X-User-ID scoping header. A missing header ends
// the request with 401 before any query is issued.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing X-User-ID")
		return "", false
	}
	return userID, true
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
