package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrNoAdapter = errors.New("notifier has no chat adapter")
)

const historyCap = 300

// Service implements reminder.Sender. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	pusher  Pusher
	bus     eventbus.Bus
	store   DedupStore
	clock   clock.Clock

	cfg     Config
	limiter *rate.Limiter

	sup       *supervisor.Supervisor
	persistCh chan dedupWrite

	// key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

var _ reminder.Sender = (*Service)(nil)

type dedupWrite struct {
	key   string
	until time.Time
}

type Option func(*Service)

func WithPusher(p Pusher) Option { return func(s *Service) { s.pusher = p } }

func WithDedupStore(d DedupStore) Option { return func(s *Service) { s.store = d } }

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

func New(cfg Config, adapter kit.Adapter, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		log:     log.With(logx.String("comp", "notifier")),
		clock:   clock.Real(),
		dedup:   map[string]time.Time{},
	}
	for _, o := range opts {
		o(s)
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	s.cfg = cfg
	// burst = rate so short spikes don't block
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start runs the dedup persist loop when persistence is configured. It is
// idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return
	}
	s.sup = supervisor.New(ctx,
		supervisor.WithLogger(s.log),
		supervisor.WithCancelOnError(false),
	)
	if !s.cfg.PersistDedup || s.store == nil {
		return
	}
	ch := make(chan dedupWrite, 1024)
	s.persistCh = ch
	st := s.store
	s.sup.GoRestart("dedup.persist", func(c context.Context) error {
		s.persistLoop(c, ch, st)
		return c.Err()
	}, supervisor.WithPublishFirstError(true), supervisor.WithStopOnCleanExit(true))
}

// Stop cancels the persist loop and flushes buffered dedup writes.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup, ch, st := s.sup, s.persistCh, s.store
	s.sup, s.persistCh = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	// the loop may never have run
	if ch != nil {
		s.drain(ch, st)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) Supervisor() *supervisor.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// SendMessage delivers msg to the user's private chat. A message identical to
// one sent inside the dedup window is dropped and reported as delivered.
func (s *Service) SendMessage(ctx context.Context, userID int64, msg reminder.Message) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	pch := s.persistCh
	s.mu.Unlock()

	if !cfg.Enabled {
		return ErrDisabled
	}
	if ad == nil {
		return ErrNoAdapter
	}

	key := dedupKey(userID, msg.Text)
	if cfg.DedupWindow > 0 && !s.dedupAllow(ctx, key, cfg, pch) {
		s.publish(eventbus.NotifyDeduped, userID, key, nil)
		s.log.Debug("duplicate message suppressed", logx.Int64("user", userID))
		return nil
	}

	if err := lim.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	_, err := ad.SendText(callCtx, kit.ChatTarget{ChatID: userID}, msg.Text, &kit.SendOptions{
		DisablePreview: true,
		Buttons:        toButtons(msg.Actions),
	})
	if err != nil {
		// let a later retry through
		s.forget(key)
		s.publish(eventbus.NotifyFailed, userID, key, err)
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	s.appendHistory(userID, msg.Text)
	s.publish(eventbus.NotifySent, userID, key, nil)
	return nil
}

// SendPush is best-effort.
func (s *Service) SendPush(ctx context.Context, userID int64, title, body string, data map[string]string) {
	s.mu.Lock()
	p := s.pusher
	s.mu.Unlock()
	if p == nil {
		return
	}
	n, err := p.SendToUser(ctx, userID, title, body, data)
	if err != nil {
		s.log.Warn("push failed", logx.Int64("user", userID), logx.Int("delivered", n), logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Debug("push sent", logx.Int64("user", userID), logx.Int("devices", n))
	}
}

func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(userID int64, text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.clock.Now(), UserID: userID, Text: text})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, userID int64, key string, err error) {
	if s.bus == nil {
		return
	}
	now := s.clock.Now()
	ev := NotificationEvent{UserID: userID, Key: key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func (s *Service) persistLoop(ctx context.Context, ch <-chan dedupWrite, st DedupStore) {
	for {
		select {
		case <-ctx.Done():
			s.drain(ch, st)
			return
		case w := <-ch:
			s.persistOne(ctx, st, w)
		}
	}
}

func (s *Service) drain(ch <-chan dedupWrite, st DedupStore) {
	for {
		select {
		case w := <-ch:
			s.persistOne(context.Background(), st, w)
		default:
			return
		}
	}
}

func (s *Service) persistOne(ctx context.Context, st DedupStore, w dedupWrite) {
	cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	if err := st.PutDedup(cctx, w.key, w.until); err != nil {
		s.log.Debug("dedup persist failed", logx.Err(err))
	}
}

func toButtons(rows [][]reminder.Action) [][]kit.Button {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]kit.Button, 0, len(rows))
	for _, row := range rows {
		r := make([]kit.Button, 0, len(row))
		for _, a := range row {
			r = append(r, kit.Button{Text: a.Label, Data: a.Data})
		}
		out = append(out, r)
	}
	return out
}

func dedupKey(userID int64, text string) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d|", userID)
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("msg:%x", h.Sum64())
}

func (s *Service) dedupAllow(ctx context.Context, key string, cfg Config, pch chan<- dedupWrite) bool {
	now := s.clock.Now()

	s.dmu.Lock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return false
	}
	s.dmu.Unlock()

	if cfg.PersistDedup && s.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		until, ok, err := s.store.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	until := now.Add(cfg.DedupWindow)
	s.dmu.Lock()
	s.dedup[key] = until
	for k, t := range s.dedup {
		if !now.Before(t) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > cfg.DedupMaxEntries {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	s.dmu.Unlock()

	if pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: until}:
		default:
		}
	}
	return true
}

func (s *Service) forget(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}
