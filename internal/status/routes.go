package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	logx "remindbot/pkg/logx"
)

func (s *Service) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/healthz", s.handleHealth)
	r.Get("/reminders", s.handleReminders)
	r.Get("/reminders/{noteID}", s.handleNoteReminders)
	r.Get("/tasks", s.handleTasks)
	r.Get("/supervisors", s.handleSupervisors)

	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	s.router = r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := s.db.Ping(ctx); err != nil {
			dbOK = false
			s.log.Warn("health check: database ping failed", logx.Err(err))
		}
		cancel()
	}

	code := http.StatusOK
	state := "ok"
	if !dbOK {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status": state,
		"uptime": time.Since(s.started).Seconds(),
		"db":     dbOK,
	})
}

func (s *Service) handleReminders(w http.ResponseWriter, r *http.Request) {
	jobs := []reminder.PendingJob{}
	if s.jobs != nil {
		jobs = append(jobs, s.jobs.ListPending()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

func (s *Service) handleNoteReminders(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid note id"})
		return
	}
	jobs := []reminder.PendingJob{}
	if s.jobs != nil {
		for _, j := range s.jobs.ListPending() {
			if j.NoteID == id {
				jobs = append(jobs, j)
			}
		}
	}
	if len(jobs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending reminders"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note_id": id, "jobs": jobs})
}

func (s *Service) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler not wired"})
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.Snapshot())
}

func (s *Service) handleSupervisors(w http.ResponseWriter, r *http.Request) {
	snaps := s.reg.Snapshots()
	if snaps == nil {
		snaps = map[string]supervisor.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
