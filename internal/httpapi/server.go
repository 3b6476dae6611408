package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/events"
	"jobpilot/internal/orchestrator"
	"jobpilot/internal/store"
)

// Server is the localhost observation surface. It is read-only: the
// pipeline is driven by the scheduler, not by HTTP calls.
type Server struct {
	db     *store.DB
	hub    *events.Hub
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

func New(db *store.DB, hub *events.Hub, orch *orchestrator.Orchestrator, logger *zap.Logger) *Server {
	return &Server{db: db, hub: hub, orch: orch, logger: logger}
}

// Serve listens on addr until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/postings", s.handlePostings)
	mux.HandleFunc("/applications", s.handleApplications)
	mux.HandleFunc("/queue", s.handleQueue)
	mux.HandleFunc("/events", s.handleEvents)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("http api listening", zap.String("addr", ln.Addr().String()))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": time.Now().Format(time.RFC3339)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, ran := s.orch.LastReport()
	resp := map[string]any{"cycle_ran": ran}
	if ran {
		resp["last_cycle"] = report
	}
	writeJSON(w, resp)
}

func (s *Server) handlePostings(w http.ResponseWriter, r *http.Request) {
	postings, err := s.db.RecentPostings(r.Context(), 200)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, postings)
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.RecentApplications(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, records)
}

// handleQueue lists outreach messages awaiting manual send.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queued, err := s.db.QueuedOutreach(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, queued)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", 500)
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	fmt.Fprintf(w, "event: ping\ndata: %s\n\n", `{"type":"ping"}`)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
