package retention

import (
	"log/slog"
	"sync"
	"time"
)

// Pruner deletes stored sessions closed before a cutoff.
type Pruner interface {
	DeleteSessionsBefore(cutoff time.Time) (int64, error)
}

type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		MaxAge:   30 * 24 * time.Hour,
	}
}

// Service periodically removes session history older than MaxAge.
type Service struct {
	store  Pruner
	config Config
	log    *slog.Logger
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func New(store Pruner, config Config, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		config: config,
		log:    log,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("Retention service started", "interval", s.config.Interval, "max_age", s.config.MaxAge)
}

func (s *Service) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.log.Info("Retention service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.SweepNow()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepNow()
		}
	}
}

// SweepNow runs one pruning pass and returns how many sessions it removed.
func (s *Service) SweepNow() int64 {
	cutoff := s.now().Add(-s.config.MaxAge)
	deleted, err := s.store.DeleteSessionsBefore(cutoff)
	if err != nil {
		s.log.Error("Retention sweep failed", "error", err)
		return 0
	}
	if deleted > 0 {
		s.log.Info("Pruned session history", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted
}
