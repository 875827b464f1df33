package discord

import (
	"github.com/bwmarrin/discordgo"

	"withgames/internal/domain/entities"
)

const commandName = "event"

const (
	subCreate = "create"
	subJoin   = "join"
	subLeave  = "leave"
	subEdit   = "edit"
	subClose  = "close"
	subCancel = "cancel"
	subDelete = "delete"
	subList   = "list"
)

const (
	optEvent       = "event"
	optTitle       = "title"
	optDescription = "description"
	optStart       = "start"
	optCapacity    = "capacity"
	optReminder    = "reminder"
)

const placeholderStart = "2026-01-31 21:00"

func eventOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optEvent,
		Description: "Event ID",
		Required:    true,
	}
}

// Commands returns the /event command tree registered with Discord.
func Commands(maxCapacity int) []*discordgo.ApplicationCommand {
	one := 1.0
	zero := 0.0
	dm := false
	maxCap := float64(maxCapacity)
	if maxCapacity <= 0 {
		maxCap = 0
	}

	title := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionString, Name: optTitle, Description: "Title",
			Required: required, MaxLength: entities.MaxTitleLength,
		}
	}
	description := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: optDescription, Description: "Details",
		MaxLength: entities.MaxDescriptionLength,
	}
	start := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionString, Name: optStart,
			Description: "Start time, e.g. " + placeholderStart, Required: required,
		}
	}
	capacity := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionInteger, Name: optCapacity, Description: "Number of slots",
			Required: required, MinValue: &one, MaxValue: maxCap,
		}
	}
	reminder := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionInteger, Name: optReminder, Description: "Reminder, minutes before start",
		MinValue: &zero, MaxValue: entities.MaxReminderOffsetMins,
	}

	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts,
		}
	}

	return []*discordgo.ApplicationCommand{{
		Name:         commandName,
		Description:  "Group activity recruitment",
		DMPermission: &dm,
		Options: []*discordgo.ApplicationCommandOption{
			sub(subCreate, "Start recruiting", title(true), start(true), capacity(true), description, reminder),
			sub(subJoin, "Join an event", eventOption()),
			sub(subLeave, "Leave an event", eventOption()),
			sub(subEdit, "Edit an event", eventOption(), title(false), start(false), capacity(false), description, reminder),
			sub(subClose, "Stop accepting participants", eventOption()),
			sub(subCancel, "Cancel an event", eventOption()),
			sub(subDelete, "Delete an event", eventOption()),
			sub(subList, "List open events"),
		},
	}}
}

// optionMap indexes a subcommand's options by name.
type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func newOptionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) str(name string) (string, bool) {
	o, ok := m[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return "", false
	}
	return o.StringValue(), true
}

func (m optionMap) integer(name string) (int, bool) {
	o, ok := m[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionInteger {
		return 0, false
	}
	return int(o.IntValue()), true
}
