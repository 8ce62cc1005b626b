package i18n

import "errors"

var (
	ErrNoTranslations  = errors.New("i18n: no translations loaded")
	ErrInvalidDocument = errors.New("i18n: invalid translation document")
	ErrUnknownDefault  = errors.New("i18n: default language has no translations")
)
