package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/task/scheduler"
	logx "remindbot/pkg/logx"
)

const defaultAddr = "127.0.0.1:8086"

type Config struct {
	Enabled bool
	Addr    string
	Pprof   bool
}

// Jobs is the read side of the reminder job store.
type Jobs interface {
	ListPending() []reminder.PendingJob
	Snapshot() scheduler.Snapshot
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Service serves a small read-only JSON view of the running process.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	jobs    Jobs
	db      Pinger
	reg     *supervisor.Registry
	started time.Time
	router  chi.Router

	sup *supervisor.Supervisor
	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, jobs Jobs, db Pinger, reg *supervisor.Registry, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "status")),
		jobs:    jobs,
		db:      db,
		reg:     reg,
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr reports the bound listen address while running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the listener and serves until Stop or ctx cancellation.
// A disabled or already running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = defaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", addr, err)
	}
	s.ln = ln

	// status is observability only; a failure here never stops the app
	s.sup = supervisor.New(ctx,
		supervisor.WithLogger(s.log),
		supervisor.WithCancelOnError(false),
	)
	s.sup.GoRestart("http.serve", s.serveOnce,
		supervisor.WithPublishFirstError(true),
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
	s.reg.Set("status", s.sup)
	s.log.Info("status endpoint started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup, srv, ln := s.sup, s.srv, s.ln
	s.sup, s.srv, s.ln = nil, nil, nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	sup.Cancel()
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	if ln != nil {
		_ = ln.Close()
	}
	_ = sup.Stop(ctx)
	s.reg.Delete("status")
	s.log.Info("status endpoint stopped")
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return context.Canceled
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	err := srv.Serve(ln)
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("status server exited unexpectedly")
	}
	// the listener is gone; bind again before the next attempt
	if nl, lerr := net.Listen("tcp", ln.Addr().String()); lerr == nil {
		s.mu.Lock()
		s.ln = nl
		s.mu.Unlock()
	}
	return err
}
