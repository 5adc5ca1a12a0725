package reconnect

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/metrics"
	"github.com/DoyleJ11/connect-four-backend/internal/timer"
)

const DefaultGrace = 120 * time.Second

type Config struct {
	Grace   time.Duration
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type pending struct {
	countdown *timer.Countdown
	gen       uint64
}

// Supervisor keeps at most one grace timer per identity. onExpire runs on a
// timer goroutine and must not block for long; the hub only enqueues there.
type Supervisor struct {
	mu       sync.Mutex
	cfg      Config
	log      *zap.Logger
	timers   map[string]*pending
	onExpire func(identity string)
}

func New(cfg Config, onExpire func(identity string)) *Supervisor {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Supervisor{
		cfg:      cfg,
		log:      logging.OrNop(cfg.Logger),
		timers:   make(map[string]*pending),
		onExpire: onExpire,
	}
}

// Disconnected starts the grace timer for identity. It reports false when a
// timer is already pending; a second disconnect never restarts the window.
func (s *Supervisor) Disconnected(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[identity]; ok {
		return false
	}
	p := &pending{}
	p.countdown = timer.New(s.cfg.Clock, func(gen uint64) { s.expire(identity, p, gen) })
	// expire needs s.mu, so it cannot observe p before gen is stored
	p.gen = p.countdown.Start(s.cfg.Grace)
	s.timers[identity] = p

	s.cfg.Metrics.Grace(metrics.GraceStarted)
	s.log.Info("grace period started", zap.String("identity", identity), zap.Duration("grace", s.cfg.Grace))
	return true
}

// Reconnected cancels a pending timer and reports whether there was one.
func (s *Supervisor) Reconnected(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.timers[identity]
	if !ok {
		return false
	}
	p.countdown.Reset()
	delete(s.timers, identity)

	s.cfg.Metrics.Grace(metrics.GraceCancelled)
	s.log.Info("grace period cancelled", zap.String("identity", identity))
	return true
}

func (s *Supervisor) Pending(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[identity]
	return ok
}

// Remaining is the time left before identity is evicted, zero if none.
func (s *Supervisor) Remaining(identity string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.timers[identity]; ok {
		return p.countdown.Remaining()
	}
	return 0
}

// Stop cancels every pending timer without evicting anyone.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.timers {
		p.countdown.Reset()
		delete(s.timers, id)
	}
}

// expire only consumes the entry that armed it. A fire from a timer that was
// cancelled and replaced finds a different entry and is dropped.
func (s *Supervisor) expire(identity string, from *pending, gen uint64) {
	s.mu.Lock()
	p, ok := s.timers[identity]
	if !ok || p != from || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, identity)
	s.mu.Unlock()

	s.cfg.Metrics.Grace(metrics.GraceExpired)
	s.log.Info("grace period expired", zap.String("identity", identity))
	if s.onExpire != nil {
		s.onExpire(identity)
	}
}
