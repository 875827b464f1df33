package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	buttonJoinPrefix  = "event_join:"
	buttonLeavePrefix = "event_leave:"
)

func parseButtonID(customID string) (sub, eventID string, ok bool) {
	switch {
	case strings.HasPrefix(customID, buttonJoinPrefix):
		sub, eventID = subJoin, strings.TrimPrefix(customID, buttonJoinPrefix)
	case strings.HasPrefix(customID, buttonLeavePrefix):
		sub, eventID = subLeave, strings.TrimPrefix(customID, buttonLeavePrefix)
	default:
		return "", "", false
	}
	return sub, eventID, eventID != ""
}

// buildComponents returns the Join/Leave row, or nothing once the event no longer
// takes sign-ups.
func buildComponents(eventID string, open bool) []discordgo.MessageComponent {
	if !open {
		return []discordgo.MessageComponent{}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "参加 / Join", Style: discordgo.SuccessButton, CustomID: buttonJoinPrefix + eventID},
			discordgo.Button{Label: "取消 / Leave", Style: discordgo.DangerButton, CustomID: buttonLeavePrefix + eventID},
		}},
	}
}
