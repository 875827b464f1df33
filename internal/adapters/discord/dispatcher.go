package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"withgames/internal/ports/output"
	pkgdiscord "withgames/pkg/discord"
)

// Messenger is the part of *discordgo.Session the dispatcher sends through.
type Messenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Dispatcher renders notifications with the catalog and sends them as DMs or
// channel messages.
type Dispatcher struct {
	messenger Messenger
	tr        output.T
	locale    string
	loc       *time.Location
	log       *zap.Logger
}

var _ output.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(messenger Messenger, tr output.T, locale string, loc *time.Location, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		tr:        tr,
		locale:    locale,
		loc:       loc,
		log:       log,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n output.Notification) error {
	content, err := d.Render(n)
	if err != nil {
		return err
	}

	channelID := n.Target.ChannelID
	if n.Target.IsUser() {
		ch, err := d.messenger.UserChannelCreate(n.Target.UserID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("open DM with %s: %w", n.Target.UserID, err)
		}
		channelID = ch.ID
	}
	if channelID == "" {
		return fmt.Errorf("notification %s for event %s has no target", n.Kind, n.EventID)
	}

	if _, err := d.messenger.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Kind, n.Target, err)
	}
	d.log.Debug("notification sent",
		zap.String("event_id", n.EventID),
		zap.Stringer("kind", n.Kind),
		zap.Stringer("target", n.Target),
	)
	return nil
}

// Render builds the message text for n.
func (d *Dispatcher) Render(n output.Notification) (string, error) {
	key, err := messageKey(n)
	if err != nil {
		return "", err
	}
	mentions := make([]string, 0, len(n.Mentions))
	for _, id := range n.Mentions {
		mentions = append(mentions, "<@"+id+">")
	}
	return d.tr.T(d.locale, key, map[string]any{
		"Title":     n.Title,
		"StartTime": pkgdiscord.FormatEventDateTime(n.StartTime, d.loc),
		"Minutes":   n.MinutesBefore,
		"Mentions":  strings.Join(mentions, " "),
	}), nil
}

func messageKey(n output.Notification) (string, error) {
	switch n.Kind {
	case output.NotifyReminder:
		if n.Target.IsUser() {
			return "notify.reminder.dm", nil
		}
		return "notify.reminder.channel", nil
	case output.NotifyCompletion:
		return "notify.completion.channel", nil
	case output.NotifyRosterChange:
		switch n.Change {
		case output.ChangePromoted, output.ChangeDemoted, output.ChangeEventCancelled:
			return "notify.roster." + n.Change.String(), nil
		}
	}
	return "", fmt.Errorf("no message for %s/%s", n.Kind, n.Change)
}

// LogDispatcher only logs notifications; used when Discord is disabled.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Notify(_ context.Context, n output.Notification) error {
	d.log.Info("notification",
		zap.String("event_id", n.EventID),
		zap.Stringer("kind", n.Kind),
		zap.Stringer("change", n.Change),
		zap.Stringer("target", n.Target),
		zap.Strings("mentions", n.Mentions),
	)
	return nil
}
