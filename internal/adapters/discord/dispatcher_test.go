package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"withgames/internal/infrastructure/i18n"
	"withgames/internal/ports/output"
	"withgames/pkg/tz"
)

type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	args := m.Called(recipientID)
	ch, _ := args.Get(0).(*discordgo.Channel)
	return ch, args.Error(1)
}

func (m *mockMessenger) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, content)
	msg, _ := args.Get(0).(*discordgo.Message)
	return msg, args.Error(1)
}

var startTime = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(m Messenger) *Dispatcher {
	return NewDispatcher(m, i18n.NewTranslator("en", zap.NewNop()), "en", tz.Tokyo, zap.NewNop())
}

func TestDispatcher_ReminderDM(t *testing.T) {
	m := new(mockMessenger)
	m.On("UserChannelCreate", "u1").Return(&discordgo.Channel{ID: "dm-1"}, nil)
	m.On("ChannelMessageSend", "dm-1", "⏰ **Raid** starts in 30 minutes (2026/06/10 21:00).").
		Return(&discordgo.Message{ID: "m"}, nil)

	err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
		Target:        output.Target{UserID: "u1"},
		Kind:          output.NotifyReminder,
		EventID:       "ev-1",
		Title:         "Raid",
		StartTime:     startTime,
		MinutesBefore: 30,
	})
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestDispatcher_ChannelMessages(t *testing.T) {
	tests := []struct {
		name string
		n    output.Notification
		want string
	}{
		{
			name: "reminder with mentions",
			n: output.Notification{
				Kind: output.NotifyReminder, Title: "Raid", StartTime: startTime,
				MinutesBefore: 15, Mentions: []string{"a", "b"},
			},
			want: "⏰ <@a> <@b> **Raid** starts in 15 minutes!",
		},
		{
			name: "completion",
			n:    output.Notification{Kind: output.NotifyCompletion, Title: "Raid", StartTime: startTime},
			want: "✅ **Raid** has started and recruitment is over. Have fun!",
		},
		{
			name: "cancelled",
			n: output.Notification{
				Kind: output.NotifyRosterChange, Change: output.ChangeEventCancelled,
				Title: "Raid", StartTime: startTime, Mentions: []string{"a"},
			},
			want: "❌ <@a> **Raid** (2026/06/10 21:00) has been cancelled.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockMessenger)
			m.On("ChannelMessageSend", "chan-1", tt.want).Return(&discordgo.Message{}, nil)

			tt.n.Target = output.Target{ChannelID: "chan-1"}
			require.NoError(t, newTestDispatcher(m).Notify(context.Background(), tt.n))
			m.AssertExpectations(t)
			m.AssertNotCalled(t, "UserChannelCreate", mock.Anything)
		})
	}
}

func TestDispatcher_RosterChangeDM(t *testing.T) {
	m := new(mockMessenger)
	m.On("UserChannelCreate", "u2").Return(&discordgo.Channel{ID: "dm-2"}, nil)
	m.On("ChannelMessageSend", "dm-2", mock.MatchedBy(func(s string) bool {
		return assert.Contains(t, s, "you are now confirmed for **Raid**")
	})).Return(&discordgo.Message{}, nil)

	err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
		Target: output.Target{UserID: "u2"}, Kind: output.NotifyRosterChange,
		Change: output.ChangePromoted, Title: "Raid", StartTime: startTime,
	})
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestDispatcher_Errors(t *testing.T) {
	t.Run("dm channel fails", func(t *testing.T) {
		m := new(mockMessenger)
		m.On("UserChannelCreate", "u1").Return(nil, errors.New("cannot DM"))

		err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
			Target: output.Target{UserID: "u1"}, Kind: output.NotifyReminder, Title: "Raid",
		})
		assert.ErrorContains(t, err, "cannot DM")
		m.AssertNotCalled(t, "ChannelMessageSend", mock.Anything, mock.Anything)
	})

	t.Run("send fails", func(t *testing.T) {
		m := new(mockMessenger)
		m.On("ChannelMessageSend", "chan-1", mock.Anything).Return(nil, errors.New("missing access"))

		err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
			Target: output.Target{ChannelID: "chan-1"}, Kind: output.NotifyCompletion, Title: "Raid",
		})
		assert.ErrorContains(t, err, "missing access")
	})

	t.Run("no target", func(t *testing.T) {
		m := new(mockMessenger)
		err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
			Kind: output.NotifyCompletion, Title: "Raid",
		})
		assert.Error(t, err)
		m.AssertNotCalled(t, "ChannelMessageSend", mock.Anything, mock.Anything)
	})

	t.Run("unknown change", func(t *testing.T) {
		m := new(mockMessenger)
		err := newTestDispatcher(m).Notify(context.Background(), output.Notification{
			Target: output.Target{ChannelID: "c"}, Kind: output.NotifyRosterChange, Change: output.ChangeNone,
		})
		assert.Error(t, err)
	})
}

func TestLogDispatcher(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(zap.NewNop()).Notify(context.Background(), output.Notification{
		Kind: output.NotifyCompletion,
	}))
}
