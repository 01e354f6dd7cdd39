package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-hebsync/internal/config"
)

func TestNewLoadsAllSupportedLanguages(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)
	assert.ElementsMatch(t, config.SupportedLanguages, tr.Languages)
}

func TestTranslationsPresent(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	assert.Equal(t, "Hebrew/Gregorian Birthday", tr.T("en", config.TKeyCalendarName))
	assert.NotEqual(t, config.TKeyCalendarName, tr.T("he", config.TKeyCalendarName))
	assert.NotEqual(t, config.TKeyCalendarName, tr.T("es", config.TKeyCalendarName))
}

func TestEveryKeyTranslatedInEveryLanguage(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	keys := []string{
		config.TKeyCalendarName,
		config.TKeyTitleGreg,
		config.TKeyTitleHebrew,
		config.TKeyDescWishlist,
		config.TKeyDescGregDate,
		config.TKeyDescHebDate,
		config.TKeyDescSunset,
		config.TKeyDescGroups,
		config.TKeyDescNotes,
		config.TKeyDescZodiac,
		config.TKeyFeedEventHeb,
		config.TKeyFeedEventGreg,
	}
	signs := []string{
		"aries", "taurus", "gemini", "cancer", "leo", "virgo",
		"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
	}
	for _, sign := range signs {
		keys = append(keys, config.TKeyZodiacPrefix+sign)
	}

	for _, lang := range config.SupportedLanguages {
		for _, key := range keys {
			got := tr.T(lang, key)
			assert.NotEqual(t, key, got, "missing %s/%s", lang, key)
			assert.NotEmpty(t, got)
		}
	}
}

func TestUnknownLanguageFallsBackToDefault(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	fallback := tr.T("fr", config.TKeyCalendarName)
	assert.Equal(t, tr.T(config.DefaultLanguage, config.TKeyCalendarName), fallback)
}

func TestMissingKeyReturnsKey(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	assert.Equal(t, "no_such_key", tr.T("en", "no_such_key"))
}
