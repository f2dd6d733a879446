// Package server implements blablachatd, the realtime store daemon the chat
// clients talk to. It exposes one websocket endpoint through which clients
// read, write, append and subscribe to nodes of a shared JSON tree.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config holds the daemon settings, read from the environment by cmd/blablachatd.
type Config struct {
	Addr   string // listen address, e.g. ":8080"
	DBPath string // SQLite file; empty means in-memory only
}

// Server wires the hub into an HTTP router.
type Server struct {
	cfg    Config
	hub    *Hub
	router *mux.Router
	log    *slog.Logger
}

// New builds a Server around a restored hub.
func New(cfg Config, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, hub: hub, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving HTTP until the listener fails or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	s.log.Info("listening", "addr", s.cfg.Addr)
	err := srv.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Attach(conn)
}
