package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"withgames/internal/domain/entities"
	"withgames/internal/ports/output"
)

const (
	embedColorOpen   = 0x5865F2
	embedColorClosed = 0x99AAB5
	embedColorDone   = 0x57F287
	embedColorCancel = 0xED4245
)

func embedColor(status entities.EventStatus) int {
	switch status {
	case entities.StatusClosed:
		return embedColorClosed
	case entities.StatusCompleted:
		return embedColorDone
	case entities.StatusCancelled:
		return embedColorCancel
	default:
		return embedColorOpen
	}
}

// Mentions renders participants as "<@id>" in the order given.
func Mentions(participants []entities.Participant) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		out = append(out, fmt.Sprintf("<@%s>", p.UserID))
	}
	return out
}

// BuildEventEmbed renders the listing message for an event and its roster.
func BuildEventEmbed(tr output.T, locale string, e *entities.Event, confirmed, waitlist []entities.Participant, loc *time.Location) *discordgo.MessageEmbed {
	description := tr.T(locale, "listing.body", map[string]any{
		"Title":       e.Title,
		"Description": e.Description,
		"StartTime":   FormatEventDateTime(e.StartTime, loc),
		"Confirmed":   len(confirmed),
		"Capacity":    e.Capacity,
		"ID":          e.ID,
	})

	fields := []*discordgo.MessageEmbedField{
		{Name: "✅", Value: listOrDash(Mentions(confirmed)), Inline: true},
	}
	if len(waitlist) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "⏳", Value: listOrDash(Mentions(waitlist)), Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: description,
		Color:       embedColor(e.Status),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: e.Status.String()},
		Timestamp:   e.StartTime.UTC().Format(time.RFC3339),
	}
}

// Embed field values are capped at 1024 characters by Discord.
const maxFieldLength = 1024

func listOrDash(lines []string) string {
	if len(lines) == 0 {
		return "-"
	}
	s := strings.Join(lines, "\n")
	if len(s) > maxFieldLength {
		cut := strings.LastIndex(s[:maxFieldLength-4], "\n")
		if cut < 0 {
			cut = maxFieldLength - 4
		}
		s = s[:cut] + "\n…"
	}
	return s
}
