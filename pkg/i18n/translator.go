package i18n

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/roomsync/pkg/logger"
)

// DefaultLanguage is used when no language option is given.
const DefaultLanguage = "ko"

// Option configures a Translator.
type Option func(*Translator)

// WithDefaultLanguage sets the language used when a requested one is not
// available.
func WithDefaultLanguage(lang string) Option {
	return func(t *Translator) {
		t.defaultLang = lang
	}
}

// WithLogger sets the logger used to report missing keys.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// Translator looks up translations for a language and key.
// It is immutable after construction and safe for concurrent use.
type Translator struct {
	translations map[string]map[string]any
	defaultLang  string
	tags         []language.Tag
	langs        []string
	matcher      language.Matcher
	logger       *slog.Logger
}

// NewTranslator builds a translator over the given translation tables.
func NewTranslator(translations map[string]map[string]any, opts ...Option) (*Translator, error) {
	if len(translations) == 0 {
		return nil, ErrNoTranslations
	}

	t := &Translator{
		translations: translations,
		defaultLang:  DefaultLanguage,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if _, ok := translations[t.defaultLang]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefault, t.defaultLang)
	}

	// The default goes first so the matcher falls back to it.
	t.langs = append(t.langs, t.defaultLang)
	for lang := range translations {
		if lang != t.defaultLang {
			t.langs = append(t.langs, lang)
		}
	}
	slices.Sort(t.langs[1:])

	for _, lang := range t.langs {
		t.tags = append(t.tags, language.Make(lang))
	}
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Languages returns the loaded languages, default first.
func (t *Translator) Languages() []string {
	return slices.Clone(t.langs)
}

// Match resolves a requested language tag to a loaded language.
func (t *Translator) Match(lang string) string {
	if _, ok := t.translations[lang]; ok {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return t.defaultLang
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.defaultLang
	}
	return t.langs[idx]
}

// Has reports whether key resolves to a string in lang.
func (t *Translator) Has(lang, key string) bool {
	v, ok := lookup(t.translations[t.Match(lang)], key)
	if !ok {
		return false
	}
	_, ok = v.(string)
	return ok
}

// T translates key for lang, substituting %{name} placeholders from args
// given as key, value pairs. A key missing in lang is looked up in the
// default language; a key missing there too is returned as is.
func (t *Translator) T(lang, key string, args ...string) string {

	resolved := t.Match(lang)
	tmpl, ok := t.template(resolved, key)
	if !ok && resolved != t.defaultLang {
		tmpl, ok = t.template(t.defaultLang, key)
	}
	if !ok {
		t.logger.Warn("translation not found",
			slog.String("lang", resolved),
			slog.String("key", key),
		)
		return key
	}
	return Sprintf(tmpl, args...)
}

func (t *Translator) template(lang, key string) (string, bool) {
	v, ok := lookup(t.translations[lang], key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookup(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := strings.Split(key, ".")
	current := m
	for i, part := range parts {
		val, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return val, true
		}
		next, ok := val.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

var paramRegex = regexp.MustCompile(`%\{([^}]+)\}`)

// Sprintf substitutes %{name} placeholders from key, value pairs.
// Unknown placeholders are left untouched; a trailing odd argument is
// ignored.
func Sprintf(tmpl string, args ...string) string {
	if len(args) < 2 {
		return tmpl
	}
	params := make(map[string]string, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		params[args[i]] = args[i+1]
	}
	return paramRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		if val, ok := params[match[2:len(match)-1]]; ok {
			return val
		}
		return match
	})
}
