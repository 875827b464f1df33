package discord

import (
	"github.com/bwmarrin/discordgo"

	"withgames/internal/domain/entities"
)

// isOrganizer reports whether the user may manage ev: its owner, or a member
// with Administrator or Manage Server in the guild.
func isOrganizer(ev *entities.Event, userID string, permissions int64) bool {
	if ev.OwnerID == userID {
		return true
	}
	return permissions&discordgo.PermissionAdministrator != 0 ||
		permissions&discordgo.PermissionManageServer != 0
}
