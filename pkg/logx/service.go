package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Remote  RemoteConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// RemoteConfig controls the remote (chat) sink.
type RemoteConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// RemoteSink delivers a formatted log line somewhere outside the process.
// The Telegram adapter implements it by posting to the log chat.
type RemoteSink interface {
	SendLog(ctx context.Context, text string) error
}

// Service owns the active zerolog root and its outputs.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // zerolog.Logger

	file *os.File

	remote       RemoteSink
	remoteQueue  chan string
	remoteOnce   sync.Once
	remoteCancel context.CancelFunc
	remoteWG     sync.WaitGroup

	// guarded by mu
	limiter  *rate.Limiter
	minLevel zerolog.Level
}

// New builds the service, applies cfg and returns a live root Logger.
// remote may be nil.
func New(cfg Config, remote RemoteSink) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat

	s := &Service{
		cfg:         cfg,
		remote:      remote,
		remoteQueue: make(chan string, 256),
	}
	s.root.Store(zerolog.New(newConsoleWriter(Stdout())).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger())
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	zl, ok := s.root.Load().(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetRemote swaps the remote sink. The app calls it once the Telegram
// adapter exists, since the adapter itself logs through this service.
func (s *Service) SetRemote(remote RemoteSink) {
	s.mu.Lock()
	s.remote = remote
	s.mu.Unlock()
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	cancel := s.remoteCancel
	s.remoteCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.remoteWG.Wait()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply swaps outputs and levels at runtime. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.minLevel = parseLevel(cfg.Remote.MinLevel, zerolog.WarnLevel)
	rps := max(1, cfg.Remote.RatePerSec)
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, newConsoleWriter(Stdout()))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./remindbot.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: open log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Remote.Enabled {
		s.remoteOnce.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.remoteCancel = cancel
			s.remoteWG.Add(1)
			go func() {
				defer s.remoteWG.Done()
				s.remoteWorker(ctx)
			}()
		})
		writers = append(writers, &remoteWriter{svc: s})
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(Stdout()))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger()
	s.root.Store(zl)
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

func (s *Service) remoteWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.remoteQueue:
			s.mu.Lock()
			sink := s.remote
			s.mu.Unlock()
			if sink == nil {
				continue
			}
			_ = sink.SendLog(ctx, msg)
		}
	}
}

// Stdout returns the stdout sink.
func Stdout() io.Writer { return os.Stdout }

// Stderr returns the stderr sink.
func Stderr() io.Writer { return os.Stderr }
