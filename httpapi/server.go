// Package httpapi exposes the external read-only queries:
// accepted_view, heaviest_chain, is_safe, plus a debug snapshot of
// the full local view, over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/message"
)

// SafetyChecker is whatever the server queries to answer a request:
// satisfied by node.Node, and by a stub in tests.
type SafetyChecker interface {
	// AcceptedView returns Accepted(localView).
	AcceptedView() message.View

	// HeaviestChain returns a deterministic representative heaviest
	// consistent chain of the local view.
	HeaviestChain() message.View

	// IsSafe checks the safety invariant over the most recent pending
	// message(s); with nothing pending to check, ok is true and err is
	// nil.
	IsSafe() (ok bool, err error)

	// DAGSnapshot returns the complete local view, for debugging.
	DAGSnapshot() message.View

	// DroppedCount returns the number of malformed messages dropped.
	DroppedCount() uint64
}

// Server serves the SafetyChecker's queries over HTTP using
// gorilla/mux.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	checker    SafetyChecker
	logger     *zap.Logger
}

// NewServer builds a Server bound to addr (e.g. ":8080"), not yet
// listening.
func NewServer(addr string, checker SafetyChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  mux.NewRouter(),
		checker: checker,
		logger:  logger,
	}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/accepted", s.handleAccepted).Methods(http.MethodGet)
	s.router.HandleFunc("/chain/heaviest", s.handleHeaviestChain).Methods(http.MethodGet)
	s.router.HandleFunc("/safety", s.handleSafety).Methods(http.MethodGet)
	s.router.HandleFunc("/dag", s.handleDAG).Methods(http.MethodGet)
}

// ServeHTTP lets Server itself act as an http.Handler, for tests that
// drive it with httptest.NewRecorder without binding a real port.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening in a background goroutine. Listen errors
// after a successful start are logged, not returned; this is a
// fire-and-forget ListenAndServe pattern.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
}

// Close shuts the server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAccepted(w http.ResponseWriter, r *http.Request) {
	writeView(w, s.checker.AcceptedView())
}

func (s *Server) handleHeaviestChain(w http.ResponseWriter, r *http.Request) {
	writeView(w, s.checker.HeaviestChain())
}

func (s *Server) handleDAG(w http.ResponseWriter, r *http.Request) {
	writeView(w, s.checker.DAGSnapshot())
}

type safetyResponse struct {
	Safe    bool   `json:"safe"`
	Error   string `json:"error,omitempty"`
	Dropped uint64 `json:"dropped"`
}

func (s *Server) handleSafety(w http.ResponseWriter, r *http.Request) {
	ok, err := s.checker.IsSafe()
	resp := safetyResponse{Safe: ok, Dropped: s.checker.DroppedCount()}
	if err != nil {
		resp.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if jerr := json.NewEncoder(w).Encode(resp); jerr != nil {
		s.logger.Error("encoding safety response", zap.Error(jerr))
	}
}

func writeView(w http.ResponseWriter, v message.View) {
	data, err := v.Export()
	if err != nil {
		http.Error(w, fmt.Sprintf("exporting view: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
