package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"withgames/internal/ports/input"
	"withgames/internal/ports/output"
	pkgdiscord "withgames/pkg/discord"
)

// Handler handles Discord interactions using use cases.
type Handler struct {
	lifecycle input.LifecycleUseCase
	roster    input.RosterUseCase
	tr        output.T
	locale    string
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

func NewHandler(
	lifecycle input.LifecycleUseCase,
	roster input.RosterUseCase,
	tr output.T,
	locale string,
	loc *time.Location,
	log *zap.Logger,
) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		roster:    roster,
		tr:        tr,
		locale:    locale,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

// invocation is one user request, from a slash command or a listing button.
type invocation struct {
	GuildID     string
	ChannelID   string
	UserID      string
	Username    string
	Permissions int64
	Locale      string
	Sub         string
	EventID     string
	Options     optionMap
}

type listingAction int

const (
	listingNone listingAction = iota
	listingPost
	listingRefresh
	listingDelete
)

// reply is the ephemeral answer to an invocation plus what to do with the listing.
type reply struct {
	Content   string
	Listing   listingAction
	EventID   string
	ChannelID string
	MessageID string
}

func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	var inv invocation
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name != commandName || len(data.Options) == 0 {
			return
		}
		sub := data.Options[0]
		inv.Sub = sub.Name
		inv.Options = newOptionMap(sub.Options)
		inv.EventID, _ = inv.Options.str(optEvent)
	case discordgo.InteractionMessageComponent:
		sub, eventID, ok := parseButtonID(i.MessageComponentData().CustomID)
		if !ok {
			return
		}
		inv.Sub = sub
		inv.EventID = eventID
		inv.Options = optionMap{}
	default:
		return
	}

	inv.GuildID = i.GuildID
	inv.ChannelID = i.ChannelID
	inv.UserID = i.Member.User.ID
	inv.Username = participantName(i.Member)
	inv.Permissions = i.Member.Permissions
	inv.Locale = string(i.Locale)

	ctx := context.Background()
	log := h.log.With(
		zap.String("sub", inv.Sub),
		zap.String("user_id", inv.UserID),
		zap.String("event_id", inv.EventID),
	)

	rep, err := h.execute(ctx, inv)
	if err != nil {
		log.Info("interaction rejected", zap.Error(err))
		if rerr := respondEphemeral(s, i.Interaction, pkgdiscord.DomainErrorMessage(h.tr, inv.Locale, err)); rerr != nil {
			log.Warn("interaction response failed", zap.Error(rerr))
		}
		return
	}

	if err := respondEphemeral(s, i.Interaction, rep.Content); err != nil {
		log.Warn("interaction response failed", zap.Error(err))
	}
	h.applyListing(ctx, s, inv.ChannelID, rep)
}

func (h *Handler) execute(ctx context.Context, inv invocation) (reply, error) {
	switch inv.Sub {
	case subCreate:
		return h.create(ctx, inv)
	case subJoin:
		return h.join(ctx, inv)
	case subLeave:
		return h.leave(ctx, inv)
	case subEdit:
		return h.edit(ctx, inv)
	case subClose:
		return h.close(ctx, inv)
	case subCancel:
		return h.cancel(ctx, inv)
	case subDelete:
		return h.delete(ctx, inv)
	case subList:
		return h.list(ctx, inv)
	default:
		return reply{Content: h.tr.T(inv.Locale, "error.unknown", nil)}, nil
	}
}

func (h *Handler) t(inv invocation, key string, data map[string]any) string {
	locale := inv.Locale
	if locale == "" {
		locale = h.locale
	}
	return h.tr.T(locale, key, data)
}
