package scheduler

import (
	"context"
	"sync"
	"time"

	"dcorpbot/clock"
	"dcorpbot/config"
	"dcorpbot/database"
	"dcorpbot/ledger"
	"dcorpbot/stats"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const expiredNoticeText = "⌛ Твоя подписка закончилась. Продлить: /subscribe"

var Module = fx.Options(
	fx.Provide(Provide),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				s.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)

// Messenger opens DM channels and posts into them.
type Messenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Grants interface {
	ExpiredBetween(ctx context.Context, from, to time.Time) ([]database.Subscription, error)
	IsEntitled(ctx context.Context, id snowflake.ID) (bool, error)
}

type Refresher interface {
	Refresh(ctx context.Context)
}

// Scheduler periodically tells users their access ended and refreshes stats.
type Scheduler struct {
	messenger Messenger
	grants    Grants
	stats     Refresher
	clock     clock.Clock
	interval  time.Duration
	log       *zap.Logger

	lastCheck time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(m Messenger, g Grants, r Refresher, clk clock.Clock, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		messenger: m,
		grants:    g,
		stats:     r,
		clock:     clk,
		interval:  interval,
		log:       log.Named("scheduler"),
		lastCheck: clk.Now(),
	}
}

func Provide(s *discordgo.Session, l *ledger.Ledger, sm *stats.StatsManager, clk clock.Clock, cfg config.Config, log *zap.Logger) *Scheduler {
	return New(s, l, sm, clk, cfg.SchedulerInterval, log)
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ticker := time.NewTicker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) Tick(ctx context.Context) {
	s.notifyExpired(ctx)
	if s.stats != nil {
		s.stats.Refresh(ctx)
	}
}

func (s *Scheduler) notifyExpired(ctx context.Context) {
	now := s.clock.Now()
	expired, err := s.grants.ExpiredBetween(ctx, s.lastCheck, now)
	if err != nil {
		s.log.Error("error getting expired subscriptions", zap.Error(err))
		return
	}
	s.lastCheck = now

	notified := make(map[snowflake.ID]bool, len(expired))
	for _, sub := range expired {
		if notified[sub.ExternalID] {
			continue
		}
		notified[sub.ExternalID] = true

		entitled, err := s.grants.IsEntitled(ctx, sub.ExternalID)
		if err != nil {
			s.log.Error("entitlement check failed", zap.Int64("external_id", sub.ExternalID.Int64()), zap.Error(err))
			continue
		}
		if entitled {
			continue
		}
		s.sendExpiredNotice(sub)
	}
}

func (s *Scheduler) sendExpiredNotice(sub database.Subscription) {
	log := s.log.With(zap.Int64("external_id", sub.ExternalID.Int64()), zap.Int64("subscription_id", sub.ID))

	channel, err := s.messenger.UserChannelCreate(sub.ExternalID.String())
	if err != nil {
		log.Warn("error opening dm channel", zap.Error(err))
		return
	}
	if _, err := s.messenger.ChannelMessageSend(channel.ID, expiredNoticeText); err != nil {
		log.Warn("error sending expiry notice", zap.Error(err))
		return
	}
	log.Info("expiry notice sent")
}
