package handlers

import (
	"context"
	"errors"
	"strings"

	"dcorpbot/ai"
	"dcorpbot/ledger"
	"dcorpbot/metrics"
	"dcorpbot/registry"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Session is the part of *discordgo.Session the router talks to.
type Session interface {
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

type Router struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	ai       ai.Completer
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewRouter(reg *registry.Registry, l *ledger.Ledger, completer ai.Completer, m *metrics.Metrics, log *zap.Logger) *Router {
	return &Router{
		registry: reg,
		ledger:   l,
		ai:       completer,
		metrics:  m,
		log:      log.Named("router"),
	}
}

// MessageCreate is registered with discordgo.
func (r *Router) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	r.Handle(context.Background(), s, m)
}

// Handle processes one inbound message: register the author, then
// dispatch on the command.
func (r *Router) Handle(ctx context.Context, s Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	id, err := snowflake.ParseString(m.Author.ID)
	if err != nil {
		r.log.Warn("unparsable author id", zap.String("author_id", m.Author.ID), zap.Error(err))
		return
	}

	r.registry.Touch(ctx, registry.Profile{
		ExternalID: id,
		Handle:     m.Author.Username,
		GivenName:  displayName(m.Author),
	})

	cmd, payload := ParseCommand(content)
	r.metrics.MessageReceived(cmd.String())

	log := r.log.With(zap.Int64("external_id", id.Int64()), zap.Stringer("command", cmd))
	log.Debug("message received")

	switch cmd {
	case CommandStart:
		log.Info("user started the bot", zap.String("name", displayName(m.Author)))
		r.reply(s, m, welcomeText(displayName(m.Author)))
	case CommandHelp:
		r.reply(s, m, helpText)
	case CommandSubscribe:
		r.reply(s, m, subscribeText)
	case CommandGetTrial:
		r.handleTrial(ctx, s, m, id, log)
	case CommandStatus:
		r.handleStatus(ctx, s, m, id, log)
	case CommandText:
		r.handleText(ctx, s, m, id, payload, log)
	case CommandUnknown:
		r.reply(s, m, unknownCommandText)
	}
}

func (r *Router) handleTrial(ctx context.Context, s Session, m *discordgo.MessageCreate, id snowflake.ID, log *zap.Logger) {
	sub, err := r.ledger.GrantTrial(ctx, id)
	switch {
	case errors.Is(err, ledger.ErrAlreadyEntitled):
		r.reply(s, m, alreadyEntitledText)
	case err != nil:
		log.Error("trial grant failed", zap.Error(err))
		r.reply(s, m, trialFailedText)
	default:
		r.reply(s, m, trialGrantedText(r.ledger.TrialDuration(), sub.EndTime))
	}
}

func (r *Router) handleStatus(ctx context.Context, s Session, m *discordgo.MessageCreate, id snowflake.ID, log *zap.Logger) {
	sub, err := r.ledger.Current(ctx, id)
	if err != nil {
		log.Error("status lookup failed", zap.Error(err))
	}
	if sub == nil {
		r.reply(s, m, noSubscriptionText)
		return
	}
	r.reply(s, m, statusActiveText(sub.PlanLabel, sub.EndTime))
}

func (r *Router) handleText(ctx context.Context, s Session, m *discordgo.MessageCreate, id snowflake.ID, prompt string, log *zap.Logger) {
	entitled, err := r.ledger.IsEntitled(ctx, id)
	if err != nil {
		log.Error("entitlement check failed", zap.Error(err))
	}
	if !entitled {
		r.reply(s, m, noSubscriptionText)
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Warn("typing indicator failed", zap.Error(err))
	}

	answer := r.ai.Complete(ctx, prompt)
	for _, chunk := range splitMessage(answer.Text, maxMessageLength) {
		r.reply(s, m, chunk)
	}
}

func (r *Router) reply(s Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		r.log.Error("error sending reply", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

func displayName(u *discordgo.User) string {
	if name := strings.TrimSpace(u.GlobalName); name != "" {
		return name
	}
	return u.Username
}
