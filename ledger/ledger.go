package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dcorpbot/clock"
	"dcorpbot/config"
	"dcorpbot/database"
	"dcorpbot/metrics"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PlanTrial      = "trial"
	extendedMarker = "(extended)"
)

var ErrAlreadyEntitled = errors.New("user already has an active subscription")

var Module = fx.Provide(Provide)

// Ledger creates, extends and queries subscription grants. At query
// time the current grant of a user is the active grant with the greatest
// end_time that is still in the future.
type Ledger struct {
	db            *gorm.DB
	clock         clock.Clock
	locker        Locker
	trialDuration time.Duration
	log           *zap.Logger
	metrics       *metrics.Metrics
}

func New(db *gorm.DB, clk clock.Clock, locker Locker, trialDuration time.Duration, log *zap.Logger, m *metrics.Metrics) *Ledger {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Ledger{
		db:            db,
		clock:         clk,
		locker:        locker,
		trialDuration: trialDuration,
		log:           log.Named("ledger"),
		metrics:       m,
	}
}

// Provide wires the ledger with a Redis locker when REDIS_ADDR is set.
func Provide(lc fx.Lifecycle, db *gorm.DB, clk clock.Clock, cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Ledger {
	var locker Locker = NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		locker = NewRedisLocker(client, 30*time.Second, log.Named("lock"))
		log.Info("using redis locker for trial grants", zap.String("addr", cfg.RedisAddr))
	}
	return New(db, clk, locker, cfg.TrialDuration, log, m)
}

func (l *Ledger) TrialDuration() time.Duration {
	return l.trialDuration
}

// IsEntitled reports whether the user holds a current grant. It returns
// false together with any storage error.
func (l *Ledger) IsEntitled(ctx context.Context, id snowflake.ID) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&database.Subscription{}).
		Where("external_id = ? AND active = ? AND end_time > ?", id, true, l.clock.Now()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check entitlement for %d: %w", id, err)
	}
	return n > 0, nil
}

// Current returns the user's current grant or nil.
func (l *Ledger) Current(ctx context.Context, id snowflake.ID) (*database.Subscription, error) {
	sub, err := currentGrant(l.db.WithContext(ctx), id, l.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load current grant for %d: %w", id, err)
	}
	return sub, nil
}

// GrantOrExtend pushes the end of the current grant forward by d, or
// opens a new grant [now, now+d] when there is none. It does not refuse
// users who are already entitled. On postgres the current grant is read
// FOR UPDATE, so concurrent extensions of one grant apply in turn; sqlite
// gets the same effect from its single connection.
func (l *Ledger) GrantOrExtend(ctx context.Context, id snowflake.ID, d time.Duration, plan string) (*database.Subscription, error) {
	if d <= 0 {
		return nil, fmt.Errorf("grant for %d: duration must be positive, got %s", id, d)
	}

	var (
		result   database.Subscription
		extended bool
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.clock.Now()

		current, err := lockedCurrentGrant(tx, id, now)
		if err != nil {
			return err
		}

		if current != nil {
			current.EndTime = current.EndTime.Add(d)
			current.PlanLabel = markExtended(current.PlanLabel)
			if err := tx.Model(&database.Subscription{}).
				Where("id = ?", current.ID).
				Updates(map[string]interface{}{
					"end_time":   current.EndTime,
					"plan_label": current.PlanLabel,
				}).Error; err != nil {
				return err
			}
			result, extended = *current, true
			return nil
		}

		result = database.Subscription{
			ExternalID: id,
			StartTime:  now,
			EndTime:    now.Add(d),
			Active:     true,
			PlanLabel:  plan,
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		l.metrics.GrantWritten("failed")
		return nil, fmt.Errorf("grant or extend for %d: %w", id, err)
	}

	if extended {
		l.metrics.GrantWritten("extended")
	} else {
		l.metrics.GrantWritten("created")
	}
	l.log.Info("subscription granted",
		zap.Int64("external_id", id.Int64()),
		zap.Int64("subscription_id", result.ID),
		zap.Bool("extended", extended),
		zap.Time("end_time", result.EndTime),
	)
	return &result, nil
}

// GrantTrial grants a trial unless the user is already entitled. Calls
// for the same user are serialized by the locker.
func (l *Ledger) GrantTrial(ctx context.Context, id snowflake.ID) (*database.Subscription, error) {
	unlock, err := l.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock trial for %d: %w", id, err)
	}
	defer unlock()

	entitled, err := l.IsEntitled(ctx, id)
	if err != nil {
		return nil, err
	}
	if entitled {
		return nil, ErrAlreadyEntitled
	}
	return l.GrantOrExtend(ctx, id, l.trialDuration, PlanTrial)
}

// ExpiredBetween lists active grants whose end_time lies in (from, to].
func (l *Ledger) ExpiredBetween(ctx context.Context, from, to time.Time) ([]database.Subscription, error) {
	var subs []database.Subscription
	err := l.db.WithContext(ctx).
		Where("active = ? AND end_time > ? AND end_time <= ?", true, from, to).
		Order("end_time").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// CountEntitled returns the number of distinct users with a current grant.
func (l *Ledger) CountEntitled(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&database.Subscription{}).
		Where("active = ? AND end_time > ?", true, l.clock.Now()).
		Distinct("external_id").
		Count(&n).Error
	return n, err
}

func currentGrant(db *gorm.DB, id snowflake.ID, now time.Time) (*database.Subscription, error) {
	return firstGrant(grantQuery(db, id, now, false))
}

func lockedCurrentGrant(tx *gorm.DB, id snowflake.ID, now time.Time) (*database.Subscription, error) {
	return firstGrant(grantQuery(tx, id, now, true))
}

func grantQuery(db *gorm.DB, id snowflake.ID, now time.Time, forUpdate bool) *gorm.DB {
	q := db.
		Where("external_id = ? AND active = ? AND end_time > ?", id, true, now).
		Order("end_time DESC").
		Order("id DESC").
		Limit(1)
	// sqlite has no row locks and rejects FOR UPDATE
	if forUpdate && db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func firstGrant(q *gorm.DB) (*database.Subscription, error) {
	var subs []database.Subscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

func markExtended(plan string) string {
	plan = strings.TrimSpace(plan)
	if strings.HasSuffix(plan, extendedMarker) {
		return plan
	}
	if plan == "" {
		return extendedMarker
	}
	return plan + " " + extendedMarker
}

func lockKey(id snowflake.ID) string {
	return "dcorpbot:trial:" + id.String()
}
