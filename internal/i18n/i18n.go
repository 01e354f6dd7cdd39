// Package i18n provides the embedded-locale translator used for event titles,
// description labels, zodiac names and the expected calendar display name.
package i18n

import (
	"embed"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tartampluch/go-hebsync/internal/config"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message keys per language, falling back to the key
// itself when a translation is missing.
type Translator struct {
	bundle     *goi18n.Bundle
	localizers map[string]*goi18n.Localizer

	// Languages lists the locale codes that were actually loaded.
	Languages []string
}

// New loads every embedded locale file into a Translator.
func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return nil, err
	}

	t := &Translator{
		bundle:     bundle,
		localizers: make(map[string]*goi18n.Localizer),
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}

		t.Languages = append(t.Languages, langCode)
		t.localizers[langCode] = goi18n.NewLocalizer(bundle, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	return t, nil
}

// T translates key for the given language. Unknown languages fall back to the
// default language; missing keys return the key itself.
func (t *Translator) T(lang, key string) string {
	loc, ok := t.localizers[lang]
	if !ok {
		loc, ok = t.localizers[config.DefaultLanguage]
		if !ok {
			return key
		}
	}
	msg, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: key})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyLang, lang,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}
