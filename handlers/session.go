package handlers

import (
	"context"
	"fmt"

	"dcorpbot/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(NewSession, NewRouter),
	fx.Invoke(Register),
)

func NewSession(cfg config.Config) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return s, nil
}

// Register attaches the handlers and ties the gateway connection to the
// application lifecycle.
func Register(lc fx.Lifecycle, s *discordgo.Session, router *Router, log *zap.Logger) {
	s.AddHandler(Ready(log))
	s.AddHandler(router.MessageCreate)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Open(); err != nil {
				return fmt.Errorf("open discord connection: %w", err)
			}
			log.Info("bot is now running")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down bot")
			return s.Close()
		},
	})
}

func Ready(log *zap.Logger) func(s *discordgo.Session, r *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("connected to discord", zap.String("user", r.User.Username))
		if err := s.UpdateGameStatus(0, "Нейросеть • /help"); err != nil {
			log.Warn("error updating game status", zap.Error(err))
		}
	}
}
