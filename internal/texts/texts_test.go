package texts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesParams(t *testing.T) {
	got := Render(UserRestartedBot, "en", map[string]string{"name": "Alice"})
	assert.Contains(t, got, "Alice")
	assert.NotContains(t, got, "{name}")
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	en := Render(MainMenu, "en", nil)
	assert.Equal(t, en, Render(MainMenu, "de", nil))
	assert.Equal(t, en, Render(MainMenu, "", nil))
}

func TestRenderLocalized(t *testing.T) {
	en := Render(MessageSent, "en", nil)
	ru := Render(MessageSent, "ru", nil)
	assert.NotEmpty(t, en)
	assert.NotEmpty(t, ru)
	assert.NotEqual(t, en, ru)
}

func TestAllTemplatesPresentInAllLanguages(t *testing.T) {
	ids := []string{
		SelectLanguage, ChangeLanguage, MainMenu, MessageSent, MessageEdited,
		UserStartedBot, UserRestartedBot, UserStoppedBot, UserBlocked,
		UserUnblocked, BlockedByUser, UserInformation, MessageNotSent,
		MessageSentToUser, SilentModeEnabled, SilentModeDisabled,
		AskTargetUserID,
	}
	for lang := range SupportedLanguages {
		table, ok := templates[lang]
		require.True(t, ok, "missing table for %q", lang)
		for _, id := range ids {
			assert.NotEmpty(t, table[id], "missing %q in %q", id, lang)
		}
	}
}
