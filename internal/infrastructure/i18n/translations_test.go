package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTranslator_T(t *testing.T) {
	tr := NewTranslator("ja", zap.NewNop())

	assert.Equal(t, "ja", tr.DefaultLocale())
	assert.Equal(t, "イベントが見つかりません。", tr.T("", "error.event_not_found", nil))
	assert.Equal(t, "Event not found.", tr.T("en", "error.event_not_found", nil))
	assert.Equal(t, "Event not found.", tr.T("en-US", "error.event_not_found", nil))

	got := tr.T("en", "notify.reminder.dm", map[string]any{
		"Title":     "Raid",
		"Minutes":   30,
		"StartTime": "21:00",
	})
	assert.Equal(t, "⏰ **Raid** starts in 30 minutes (21:00).", got)

	assert.Equal(t, "no.such.key", tr.T("en", "no.such.key", nil))
	assert.Equal(t, "", tr.T("en", "", nil))
}

func TestTranslator_FallsBackToDefaultLocale(t *testing.T) {
	tr := NewTranslator("en", zap.NewNop())
	assert.Equal(t, "Event not found.", tr.T("fr", "error.event_not_found", nil))

	bad := NewTranslator("not a locale", zap.NewNop())
	assert.Equal(t, "ja", bad.DefaultLocale())
}
