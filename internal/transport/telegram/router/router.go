// Package router turns Telegram updates into reminder actions: button
// callbacks (snooze, done) and a few chat commands.
package router

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Reminders is the part of the lifecycle manager buttons drive.
type Reminders interface {
	Snooze(ctx context.Context, noteID int64, minutes int) (time.Time, error)
	Complete(ctx context.Context, noteID int64) (recurring bool, err error)
}

type Notes interface {
	GetNote(ctx context.Context, noteID int64) (*reminder.Note, error)
}

type Profiles interface {
	reminder.ProfileStore
	UpsertProfile(ctx context.Context, p reminder.UserProfile) error
}

type ActionLog interface {
	AppendAction(ctx context.Context, a storage.UserAction) error
}

type PendingLister interface {
	ListPending() []reminder.PendingJob
}

type Deps struct {
	Adapter   kit.Adapter
	Reminders Reminders
	Notes     Notes
	Profiles  Profiles
	Actions   ActionLog     // optional
	Jobs      PendingLister // optional; enables /reminders
	Registry  *supervisor.Registry
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Router struct {
	log  logx.Logger
	deps Deps
	cfg  Config

	commands map[string]HandlerFunc

	mu      sync.RWMutex
	running bool
	jobs    chan func()
}

func New(log logx.Logger, deps Deps, cfg Config) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	r := &Router{
		log:  log.With(logx.String("comp", "telegram.router")),
		deps: deps,
		cfg:  cfg,
		jobs: make(chan func(), cfg.QueueSize),
	}
	r.commands = map[string]HandlerFunc{
		"start":     r.cmdStart,
		"help":      r.cmdHelp,
		"reminders": r.cmdReminders,
	}
	return r
}

func (r *Router) tryEnqueue(fn func()) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		return false
	}
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop routes updates until ctx ends or updates is closed. Handlers
// run on a bounded worker pool.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log),
		supervisor.WithCancelOnError(false),
	)
	r.deps.Registry.Set("telegram.router", sup)
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	r.log.Info("dispatcher started", logx.Int("workers", r.cfg.Workers), logx.Int("queue_cap", cap(r.jobs)))

	for i := 0; i < r.cfg.Workers; i++ {
		idx := i
		sup.GoRestart("worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					r.runJob(idx, job)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
		)
	}

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.deps.Registry.Delete("telegram.router")
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, cmd string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: cmd,
		ReqID:   rid,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
		),
	}
}

func (r *Router) wrap(h HandlerFunc) HandlerFunc {
	return Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(r.cfg.Timeout),
	)
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil || msg.IsGroup {
		return
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	h, ok := r.commands[strings.ToLower(word)]
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID}
	req := r.newRequest(up, chat, msg.FromID, word)
	req.Args = fields[1:]

	final := r.wrap(h)
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = r.deps.Adapter.SendText(ctx, chat, "Busy, try again in a moment.", nil)
	}
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	act, err := reminder.DecodeAction(cb.Data)
	if err != nil {
		r.log.Debug("unknown callback ignored", logx.String("data", cb.Data))
		_ = r.deps.Adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	req := r.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID}, cb.FromID, "cb:"+string(act.Kind))
	final := r.wrap(func(c context.Context, req *Request) error {
		return r.handleAction(c, req, act)
	})
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		_ = r.deps.Adapter.AnswerCallback(ctx, cb.ID, "Busy, try again")
	}
}
