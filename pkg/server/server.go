// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes a running session over HTTP: Prometheus
// metrics, the LiveSplit One websocket, a JSON status view and a manual
// split trigger.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-delve/delve/pkg/logflags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/session"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/timer"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// Server serves one session.
type Server struct {
	sess *session.Session
	hub  *timer.Hub
	srv  *http.Server
}

// New returns a server for sess. hub may be nil to disable /ws.
func New(addr string, sess *session.Session, hub *timer.Hub) *Server {
	s := &Server{sess: sess, hub: hub}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	mux.HandleFunc("GET /debug/snapshot", s.snapshot)
	mux.HandleFunc("POST /split/advance", s.advance)
	mux.HandleFunc("POST /split/disconnect", s.disconnect)
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version.Current.Short()})
	})
	return mux
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sess.Status())
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	s.sess.Advance()
	writeJSON(w, s.sess.Status())
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	s.sess.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logflags.DebuggerLogger().Debugf("write response: %v", err)
	}
}

// Run listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logflags.DebuggerLogger().Infof("serving on http://%s", ln.Addr())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(sctx)
	})
	return g.Wait()
}
