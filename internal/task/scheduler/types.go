package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA zone for cron schedules; empty means Local
}

// FireFunc receives the payload of a reminder job that came due.
type FireFunc func(ctx context.Context, p reminder.Payload) error

type TaskOptions = engine.TaskOptions

type scheduleDef struct {
	id            string
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           func(ctx context.Context) error
	entryID       cron.EntryID
	startupSpread time.Duration
	opt           TaskOptions
	state         *engine.RunState
}

// reminderJob is one armed (or, while stopped, parked) reminder.
type reminderJob struct {
	key     reminder.JobKey
	runAt   time.Time
	payload reminder.Payload
	ver     uint64
	timer   clock.Timer // nil while the service is stopped
}

func (j *reminderJob) pending() reminder.PendingJob {
	return reminder.PendingJob{
		Key:     j.key,
		Name:    j.key.String(),
		NoteID:  j.key.NoteID,
		Kind:    j.key.Kind,
		RunAt:   j.runAt,
		Payload: j.payload,
	}
}

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	cfg   Config
	loc   *time.Location
	bus   eventbus.Bus
	clock clock.Clock

	engine *engine.Service

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time

	// reminder job store
	jmu         sync.Mutex
	jobs        map[reminder.JobKey]*reminderJob
	jobSeq      uint64
	armed       bool
	fire        FireFunc
	fireTimeout time.Duration
}

type ScheduleInfo struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Next    time.Time     `json:"next"`
	Prev    time.Time     `json:"prev"`
}

type Snapshot struct {
	Enabled      bool            `json:"enabled"`
	Timezone     string          `json:"timezone"`
	PendingJobs  int             `json:"pending_jobs"`
	NextReminder time.Time       `json:"next_reminder"`
	Schedules    []ScheduleInfo  `json:"schedules"`
	Engine       engine.Snapshot `json:"engine"`
}
