package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"withgames/internal/domain/entities"
	pkgdiscord "withgames/pkg/discord"
)

// applyListing keeps the channel's listing message in line with the event after a
// successful command. Failures are logged; the command already succeeded.
func (h *Handler) applyListing(ctx context.Context, s Session, channelID string, rep reply) {
	switch rep.Listing {
	case listingPost:
		h.postListing(ctx, s, channelID, rep.EventID)
	case listingRefresh:
		h.updateListing(ctx, s, rep.EventID, rep.ChannelID, rep.MessageID)
	case listingDelete:
		if rep.MessageID == "" {
			return
		}
		if err := s.ChannelMessageDelete(rep.ChannelID, rep.MessageID, discordgo.WithContext(ctx)); err != nil {
			h.log.Warn("listing not deleted", zap.String("event_id", rep.EventID), zap.Error(err))
		}
	}
}

func (h *Handler) listingEmbed(ctx context.Context, eventID string) (*discordgo.MessageEmbed, *entities.Event, error) {
	roster, err := h.roster.GetRoster(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	embed := pkgdiscord.BuildEventEmbed(h.tr, h.locale, &roster.Event, roster.Confirmed, roster.Waitlist, h.loc)
	return embed, &roster.Event, nil
}

func (h *Handler) postListing(ctx context.Context, s Session, channelID, eventID string) {
	embed, ev, err := h.listingEmbed(ctx, eventID)
	if err != nil {
		h.log.Error("listing not built", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: buildComponents(ev.ID, ev.Status == entities.StatusOpen),
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Error("listing not posted", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if err := h.lifecycle.SetMessageID(ctx, eventID, msg.ID); err != nil {
		h.log.Error("listing message id not saved", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (h *Handler) updateListing(ctx context.Context, s Session, eventID, channelID, messageID string) {
	if messageID == "" {
		return
	}
	embed, ev, err := h.listingEmbed(ctx, eventID)
	if err != nil {
		h.log.Error("listing not built", zap.String("event_id", eventID), zap.Error(err))
		return
	}

	embeds := []*discordgo.MessageEmbed{embed}
	components := buildComponents(ev.ID, ev.Status == entities.StatusOpen)
	if _, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx)); err != nil {
		h.log.Warn("listing not updated", zap.String("event_id", eventID), zap.Error(err))
	}
}
