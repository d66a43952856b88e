// Package api exposes a lightweight REST surface over the record store and
// the automation flows. Flows run in the background; the handlers return as
// soon as the run is accepted, because a campaign can hold the browser for
// minutes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/campaign"
	"github.com/nguyenanhtuan21/threads-manager/storage"
)

// Server serves the management API.
type Server struct {
	store  *storage.Store
	runner *campaign.Runner
	logger *logrus.Logger
	server *http.Server
}

// NewServer wires the routes and builds the HTTP server.
func NewServer(addr string, store *storage.Store, runner *campaign.Runner, log *logrus.Logger) *Server {
	s := &Server{store: store, runner: runner, logger: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/accounts", s.handleAccounts)
	mux.HandleFunc("/api/accounts/", s.handleAccountActions)
	mux.HandleFunc("/api/proxies/import", s.handleImportProxies)
	mux.HandleFunc("/api/posts", s.handlePosts)
	mux.HandleFunc("/api/campaigns", s.handleCampaigns)
	mux.HandleFunc("/api/campaigns/", s.handleCampaignActions)
	mux.HandleFunc("/api/farm-accounts/", s.handleFarmAccountActions)
	mux.HandleFunc("/api/scraper/run", s.handleRunScraper)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.loggingMiddleware(mux),
	}
	return s
}

// Start begins serving in a separate goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server stopped")
		}
	}()
	s.logger.WithField("addr", s.server.Addr).Info("API server listening")
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := s.store.ListAccounts()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, accounts)
	case http.MethodPost:
		s.importAccounts(w, r)
	default:
		methodNotAllowed(w)
	}
}

// importAccounts accepts "username:password" lines, one account each.
// Malformed lines are skipped, not imported.
func (s *Server) importAccounts(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.store.ImportAccounts(payload.Lines)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"imported": created,
		"skipped":  len(payload.Lines) - created,
	})
}

func (s *Server) handleAccountActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case parts[1] == "check" && r.Method == http.MethodPost:
		live, err := s.runner.CheckAccountLive(r.Context(), id)
		if err != nil {
			s.respondStoreError(w, err)
			return
		}
		status := storage.AccountStatusError
		if live {
			status = storage.AccountStatusLive
		}
		respondJSON(w, http.StatusOK, map[string]any{"live": live, "status": status})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleImportProxies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var payload struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.store.ImportProxies(payload.Lines)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"imported": created,
		"skipped":  len(payload.Lines) - created,
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var payload struct {
		Content    string   `json:"content"`
		MediaPaths []string `json:"media_paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Content == "" && len(payload.MediaPaths) == 0 {
		respondError(w, http.StatusBadRequest, "content or media_paths is required")
		return
	}

	post, err := storage.NewPost(payload.Content, payload.MediaPaths)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreatePost(post); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var payload struct {
		Name        string     `json:"name"`
		PostID      string     `json:"post_id"`
		AccountIDs  []string   `json:"account_ids"`
		DelayMin    int        `json:"delay_min"`
		DelayMax    int        `json:"delay_max"`
		ScheduledAt *time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" || payload.PostID == "" || len(payload.AccountIDs) == 0 {
		respondError(w, http.StatusBadRequest, "name, post_id and account_ids are required")
		return
	}

	c := &storage.Campaign{
		Name:        payload.Name,
		PostID:      payload.PostID,
		DelayMin:    payload.DelayMin,
		DelayMax:    payload.DelayMax,
		ScheduledAt: payload.ScheduledAt,
	}
	if err := s.store.CreateCampaign(c, payload.AccountIDs); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCampaignActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/campaigns/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case parts[1] == "run" && r.Method == http.MethodPost:
		// Validate the id up front so the caller gets the 404, then run in
		// the background.
		if _, err := s.store.GetCampaign(id); err != nil {
			s.respondStoreError(w, err)
			return
		}
		go func() {
			if err := s.runner.RunCampaign(context.Background(), id); err != nil {
				s.logger.WithError(err).WithField("campaign", id).Error("Campaign run failed")
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleFarmAccountActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/farm-accounts/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case parts[1] == "run" && r.Method == http.MethodPost:
		if _, err := s.store.GetFarmCampaignAccount(id); err != nil {
			s.respondStoreError(w, err)
			return
		}
		go func() {
			if err := s.runner.RunFarmCampaignAccount(context.Background(), id); err != nil {
				s.logger.WithError(err).WithField("join", id).Error("Farm account run failed")
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var payload struct {
		AccountIDs []string `json:"account_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.AccountIDs) == 0 {
		respondError(w, http.StatusBadRequest, "account_ids is required")
		return
	}

	go func() {
		if err := s.runner.RunScraper(context.Background(), payload.AccountIDs); err != nil {
			s.logger.WithError(err).Error("Scraper run failed")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"count":  len(payload.AccountIDs),
	})
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}
