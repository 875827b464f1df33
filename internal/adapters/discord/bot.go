package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"withgames/internal/config"
)

// Bot is the Discord adapter.
type Bot struct {
	session *discordgo.Session
	config  *config.Config
	handler *Handler
	log     *zap.Logger
}

// NewSession creates the Discord session. It is created before the services so the
// dispatcher can send through it.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return s, nil
}

func NewBot(session *discordgo.Session, cfg *config.Config, handler *Handler, log *zap.Logger) *Bot {
	bot := &Bot{
		session: session,
		config:  cfg,
		handler: handler,
		log:     log,
	}
	bot.setupHandlers()
	return bot
}

func (b *Bot) setupHandlers() {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("discord session ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handler.HandleInteraction(s, i)
	})
}

// Start opens the session, registers the commands and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer b.session.Close()

	commands := Commands(b.config.MaxCapacity)
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, commands); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.log.Info("bot online", zap.String("guild_id", b.config.GuildID), zap.Int("commands", len(commands)))

	<-ctx.Done()
	b.log.Info("bot stopping")
	return nil
}
