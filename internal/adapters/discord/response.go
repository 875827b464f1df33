package discord

import (
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// maxNameRunes matches Discord's nickname limit; longer names come from
// webhook-style users and would widen the roster embed.
const maxNameRunes = 32

// participantName is the name stored on a roster entry: server nickname,
// then global name, then username.
func participantName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	name := strings.TrimSpace(member.Nick)
	if name == "" {
		name = strings.TrimSpace(member.User.GlobalName)
	}
	if name == "" {
		name = member.User.Username
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// respondEphemeral answers only the invoking user. Event titles are user
// input, so only user mentions are allowed to resolve.
func respondEphemeral(s Session, i *discordgo.Interaction, content string) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			},
		},
	})
}
