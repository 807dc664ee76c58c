package notice

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PublishStore is the slice of the repository the scheduler needs.
type PublishStore interface {
	FindDue(ctx context.Context, now time.Time) ([]Notice, error)
	ClaimPublish(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
}

// Scheduler promotes due scheduled notices to published state. It owns its
// ticker, runs one check immediately on start, and claims each notice with
// a conditional update so a second instance losing the claim skips the
// fanout instead of double-publishing.
type Scheduler struct {
	store    PublishStore
	notifier Notifier
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
}

func NewScheduler(repo *Repository, notifier Notifier, log *zap.Logger) *Scheduler {
	interval := 60 * time.Second
	if v := os.Getenv("SCHEDULER_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		} else {
			log.Warn("Invalid SCHEDULER_INTERVAL_SECONDS, using default", zap.String("value", v))
		}
	}
	return &Scheduler{
		store:    repo,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start registers the scheduler loop with the application lifecycle.
func (s *Scheduler) Start(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("Starting publication scheduler", zap.Duration("interval", s.interval))
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("Stopping publication scheduler")
			close(s.done)
			return nil
		},
	})
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First check happens at startup, not one interval later.
	s.PublishDue(context.Background())
	for {
		select {
		case <-ticker.C:
			s.PublishDue(context.Background())
		case <-s.done:
			return
		}
	}
}

// PublishDue performs one scheduler tick: find all due notices, claim each,
// and fan out the ones this instance won. Notices due in the same tick are
// handled sequentially.
func (s *Scheduler) PublishDue(ctx context.Context) {
	now := s.now()
	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		s.log.Error("Failed to fetch due notices", zap.Error(err))
		return
	}
	published := 0
	for i := range due {
		n := due[i]
		claimed, err := s.store.ClaimPublish(ctx, n.ID, now)
		if err != nil {
			s.log.Error("Failed to publish scheduled notice", zap.String("id", n.ID.Hex()), zap.Error(err))
			continue
		}
		if !claimed {
			// Another instance got there first.
			continue
		}
		n.IsPublished = true
		n.PublishedAt = now
		if s.notifier != nil {
			s.notifier.NoticePublished(ctx, &n)
		}
		published++
	}
	if published > 0 {
		s.log.Info("Published scheduled notices", zap.Int("count", published))
	}
}
