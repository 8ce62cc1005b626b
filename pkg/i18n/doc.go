// Package i18n resolves user-facing strings from nested translation maps.
//
// Translations are loaded from YAML documents whose top-level keys are
// language tags:
//
//	ko:
//	  reservation:
//	    requested: "%{nickname}님이 '%{title}' 예약을 요청했습니다."
//	en:
//	  reservation:
//	    requested: "%{nickname} requested a reservation for '%{title}'."
//
// Keys are dot separated paths into that tree. Named placeholders in the
// form %{name} are substituted from key/value argument pairs.
//
// Language selection goes through golang.org/x/text/language, so a request
// for "en-US" resolves to the "en" table and an unknown tag falls back to
// the default language.
package i18n
