package voice

import "strings"

const (
	warningTitle          = "Use voice input?"
	msgLocaleNotSupported = "Voice input is not yet available for your language, but it works in English."
	msgMayNotUnderstand   = "Voice input is an experimental feature and may not understand everything you say."
	msgHowToTurnOff       = "To turn off voice input, open the keyboard settings and set the voice mode to off."
)

// WarningMessage is the content of the first-use warning.
type WarningMessage struct {
	Title           string
	Body            string
	LocaleSupported bool
}

func warningMessage(localeSupported bool) WarningMessage {
	parts := []string{msgMayNotUnderstand, msgHowToTurnOff}
	if !localeSupported {
		parts = append([]string{msgLocaleNotSupported}, parts...)
	}
	return WarningMessage{
		Title:           warningTitle,
		Body:            strings.Join(parts, "\n\n"),
		LocaleSupported: localeSupported,
	}
}
