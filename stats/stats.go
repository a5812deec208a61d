package stats

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dcorpbot/config"
	"dcorpbot/ledger"
	"dcorpbot/metrics"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const statsHeader = "📊 Активные подписки"

var Module = fx.Options(
	fx.Provide(Provide),
	fx.Invoke(func(lc fx.Lifecycle, sm *StatsManager) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sm.CleanupStatsMessage()
				return nil
			},
		})
	}),
)

// Poster is the part of *discordgo.Session the stats message needs.
type Poster interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Counter reports how many users are entitled right now.
type Counter interface {
	CountEntitled(ctx context.Context) (int64, error)
}

// StatsManager publishes the entitled-user count as a gauge and, when a
// channel is configured, as a single message kept up to date there.
type StatsManager struct {
	session   Poster
	counter   Counter
	metrics   *metrics.Metrics
	log       *zap.Logger
	channelID string

	mutex     sync.Mutex
	messageID string
}

func NewStatsManager(s Poster, counter Counter, m *metrics.Metrics, log *zap.Logger, channelID string) *StatsManager {
	return &StatsManager{
		session:   s,
		counter:   counter,
		metrics:   m,
		log:       log.Named("stats"),
		channelID: channelID,
	}
}

func Provide(s *discordgo.Session, l *ledger.Ledger, m *metrics.Metrics, log *zap.Logger, cfg config.Config) *StatsManager {
	return NewStatsManager(s, l, m, log, cfg.StatsChannelID)
}

func (sm *StatsManager) Refresh(ctx context.Context) {
	n, err := sm.counter.CountEntitled(ctx)
	if err != nil {
		sm.log.Error("error counting entitled users", zap.Error(err))
		return
	}
	sm.metrics.SetEntitledUsers(n)

	if sm.channelID == "" || sm.session == nil {
		return
	}

	content := formatStatsMessage(n)

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.messageID != "" {
		_, err := sm.session.ChannelMessageEdit(sm.channelID, sm.messageID, content)
		if err != nil {
			sm.log.Warn("error updating stats message", zap.Error(err))
			sm.messageID = "" // recreate below
		}
	}

	if sm.messageID == "" {
		msg, err := sm.session.ChannelMessageSend(sm.channelID, content)
		if err != nil {
			sm.log.Error("error sending stats message", zap.Error(err))
			return
		}
		sm.messageID = msg.ID
	}
}

func (sm *StatsManager) CleanupStatsMessage() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.messageID == "" || sm.session == nil {
		return
	}
	if err := sm.session.ChannelMessageDelete(sm.channelID, sm.messageID); err != nil {
		sm.log.Warn("error deleting stats message", zap.Error(err))
		return
	}
	sm.log.Info("stats message deleted", zap.String("message_id", sm.messageID))
	sm.messageID = ""
}

func formatStatsMessage(n int64) string {
	var sb strings.Builder
	sb.WriteString("**" + statsHeader + ":**\n")
	if n == 0 {
		sb.WriteString("Нет активных подписок")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("```\n%d\n```", n))
	return sb.String()
}
