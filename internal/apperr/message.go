package apperr

import (
	"errors"
	"strings"
	"unicode"
)

// Language is a user-facing message language.
type Language string

const (
	English Language = "en"
	French  Language = "fr"
)

var frenchMarkers = map[string]bool{
	"le": true, "la": true, "les": true, "des": true, "est": true, "une": true,
	"bonjour": true, "merci": true, "quel": true, "quelle": true, "combien": true,
	"pour": true, "avec": true, "dans": true, "je": true, "vous": true, "nous": true,
	"où": true, "prix": true, "logement": true, "salut": true, "sont": true,
}

var englishMarkers = map[string]bool{
	"the": true, "is": true, "are": true, "what": true, "how": true, "where": true,
	"hello": true, "thanks": true, "thank": true, "you": true, "price": true,
	"for": true, "with": true, "in": true, "my": true, "i": true, "hi": true,
}

// DetectLanguage guesses the language of text from common words.
// It falls back to English when nothing is recognizable.
func DetectLanguage(text string) Language {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var fr, en int
	for _, w := range words {
		if frenchMarkers[w] {
			fr++
		}
		if englishMarkers[w] {
			en++
		}
	}
	if fr > en {
		return French
	}
	return English
}

var messages = map[string]map[Language]string{
	"timeout": {
		English: "Sorry, that took too long to answer. Please try again in a moment.",
		French:  "Désolé, la réponse a pris trop de temps. Veuillez réessayer dans un instant.",
	},
	"validation": {
		English: "Your request is missing information: ",
		French:  "Il manque des informations dans votre demande : ",
	},
	"tools_failed": {
		English: "I couldn't retrieve the information needed to answer that right now. Please try again later.",
		French:  "Je n'ai pas pu récupérer les informations nécessaires pour répondre pour le moment. Veuillez réessayer plus tard.",
	},
	"generic": {
		English: "Something went wrong on our side. Please try again.",
		French:  "Une erreur est survenue de notre côté. Veuillez réessayer.",
	},
	"busy": {
		English: "The assistant is busy right now. Please try again.",
		French:  "L'assistant est occupé pour le moment. Veuillez réessayer.",
	},
}

// Message returns the localized template for key, defaulting to English.
func Message(key string, lang Language) string {
	m, ok := messages[key]
	if !ok {
		m = messages["generic"]
	}
	if s, ok := m[lang]; ok {
		return s
	}
	return m[English]
}

// UserMessage maps err to a message safe to show to an end user. Validation
// details are surfaced; provider and internal errors are not.
func UserMessage(err error, lang Language) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return Message("timeout", lang)
	case errors.Is(err, ErrValidation):
		var ve *ValidationError
		if errors.As(err, &ve) {
			detail := ve.Message
			if ve.Field != "" {
				detail = ve.Field + " " + detail
			}
			return Message("validation", lang) + detail
		}
		return Message("validation", lang) + err.Error()
	case errors.Is(err, ErrToolExecution):
		return Message("tools_failed", lang)
	default:
		return Message("generic", lang)
	}
}
