package discord

import (
	"context"
	"fmt"
	"strings"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
	"withgames/internal/ports/input"
	pkgdiscord "withgames/pkg/discord"
)

func (h *Handler) create(ctx context.Context, inv invocation) (reply, error) {
	title, _ := inv.Options.str(optTitle)
	description, _ := inv.Options.str(optDescription)
	startStr, _ := inv.Options.str(optStart)
	capacity, _ := inv.Options.integer(optCapacity)

	start, err := pkgdiscord.ParseEventDateTime(startStr, h.loc, h.now())
	if err != nil {
		return reply{}, err
	}

	params := input.CreateEventParams{
		OwnerID:     inv.UserID,
		GuildID:     inv.GuildID,
		ChannelID:   inv.ChannelID,
		Title:       title,
		Description: description,
		StartTime:   start,
		Capacity:    capacity,
	}
	if v, ok := inv.Options.integer(optReminder); ok {
		params.ReminderOffsetMinutes = &v
	}

	agg, err := h.lifecycle.CreateEvent(ctx, params)
	if err != nil {
		return reply{}, err
	}
	return reply{
		Content: h.t(inv, "reply.create.done", map[string]any{
			"Title":     agg.Event.Title,
			"StartTime": pkgdiscord.FormatEventDateTime(agg.Event.StartTime, h.loc),
			"Capacity":  agg.Event.Capacity,
		}),
		Listing: listingPost,
		EventID: agg.Event.ID,
	}, nil
}

func (h *Handler) join(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookup(ctx, inv)
	if err != nil {
		return reply{}, err
	}
	role, err := h.roster.Join(ctx, ev.ID, inv.UserID, inv.Username, h.now())
	if err != nil {
		return reply{}, err
	}

	key := "reply.join.confirmed"
	if role == entities.RoleWaitlisted {
		key = "reply.join.waitlisted"
	}
	return h.refresh(ev, h.t(inv, key, map[string]any{"Title": ev.Title})), nil
}

func (h *Handler) leave(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookup(ctx, inv)
	if err != nil {
		return reply{}, err
	}
	res, err := h.roster.Cancel(ctx, ev.ID, inv.UserID, h.now())
	if err != nil {
		return reply{}, err
	}

	content := h.t(inv, "reply.leave.done", map[string]any{"Title": ev.Title})
	if res.Promoted != nil {
		content = h.t(inv, "reply.leave.promoted", map[string]any{
			"Title":  ev.Title,
			"UserID": res.Promoted.UserID,
		})
	}
	return h.refresh(ev, content), nil
}

func (h *Handler) edit(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookupAsOrganizer(ctx, inv)
	if err != nil {
		return reply{}, err
	}

	var params input.EditEventParams
	if v, ok := inv.Options.str(optTitle); ok {
		params.Title = &v
	}
	if v, ok := inv.Options.str(optDescription); ok {
		params.Description = &v
	}
	if v, ok := inv.Options.integer(optCapacity); ok {
		params.Capacity = &v
	}
	if v, ok := inv.Options.integer(optReminder); ok {
		params.ReminderOffsetMinutes = &v
	}
	if v, ok := inv.Options.str(optStart); ok {
		start, err := pkgdiscord.ParseEventDateTime(v, h.loc, h.now())
		if err != nil {
			return reply{}, err
		}
		params.StartTime = &start
	}
	if params.Empty() {
		return reply{Content: h.t(inv, "reply.edit.nothing", nil)}, nil
	}

	agg, err := h.lifecycle.EditEvent(ctx, ev.ID, params)
	if err != nil {
		return reply{}, err
	}
	return h.refresh(&agg.Event, h.t(inv, "reply.edit.done", map[string]any{"Title": agg.Event.Title})), nil
}

func (h *Handler) close(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookupAsOrganizer(ctx, inv)
	if err != nil {
		return reply{}, err
	}
	ev, err = h.lifecycle.CloseEvent(ctx, ev.ID)
	if err != nil {
		return reply{}, err
	}
	return h.refresh(ev, h.t(inv, "reply.close.done", map[string]any{"Title": ev.Title})), nil
}

func (h *Handler) cancel(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookupAsOrganizer(ctx, inv)
	if err != nil {
		return reply{}, err
	}
	ev, err = h.lifecycle.CancelEvent(ctx, ev.ID)
	if err != nil {
		return reply{}, err
	}
	return h.refresh(ev, h.t(inv, "reply.cancel.done", map[string]any{"Title": ev.Title})), nil
}

func (h *Handler) delete(ctx context.Context, inv invocation) (reply, error) {
	ev, err := h.lookupAsOrganizer(ctx, inv)
	if err != nil {
		return reply{}, err
	}
	if err := h.lifecycle.DeleteEvent(ctx, ev.ID); err != nil {
		return reply{}, err
	}
	return reply{
		Content:   h.t(inv, "reply.delete.done", nil),
		Listing:   listingDelete,
		EventID:   ev.ID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
	}, nil
}

func (h *Handler) list(ctx context.Context, inv invocation) (reply, error) {
	events, err := h.lifecycle.ListEvents(ctx, inv.GuildID)
	if err != nil {
		return reply{}, err
	}
	if len(events) == 0 {
		return reply{Content: h.t(inv, "reply.list.empty", nil)}, nil
	}

	var b strings.Builder
	b.WriteString(h.t(inv, "reply.list.header", nil))
	for _, ev := range events {
		roster, err := h.roster.GetRoster(ctx, ev.ID)
		if err != nil {
			// deleted between the two reads
			continue
		}
		b.WriteString("\n")
		b.WriteString(h.t(inv, "reply.list.item", map[string]any{
			"Title":     ev.Title,
			"StartTime": pkgdiscord.FormatEventDateTime(ev.StartTime, h.loc),
			"Confirmed": len(roster.Confirmed),
			"Capacity":  ev.Capacity,
			"ID":        ev.ID,
		}))
	}
	return reply{Content: b.String()}, nil
}

func (h *Handler) refresh(ev *entities.Event, content string) reply {
	return reply{
		Content:   content,
		Listing:   listingRefresh,
		EventID:   ev.ID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
	}
}

// lookup loads the event named by the invocation. Events of other guilds are
// reported as not found.
func (h *Handler) lookup(ctx context.Context, inv invocation) (*entities.Event, error) {
	id := strings.TrimSpace(inv.EventID)
	if id == "" {
		return nil, domain.ErrEventNotFound
	}
	ev, err := h.lifecycle.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.GuildID != inv.GuildID {
		return nil, fmt.Errorf("event %s belongs to another guild: %w", id, domain.ErrEventNotFound)
	}
	return ev, nil
}

func (h *Handler) lookupAsOrganizer(ctx context.Context, inv invocation) (*entities.Event, error) {
	ev, err := h.lookup(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !isOrganizer(ev, inv.UserID, inv.Permissions) {
		return nil, domain.ErrNotOrganizer
	}
	return ev, nil
}
