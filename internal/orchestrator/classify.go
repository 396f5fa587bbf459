package orchestrator

import (
	"strings"
	"unicode"
)

// Path is the route a message takes through the orchestrator.
type Path string

const (
	PathDirect    Path = "direct"
	PathDelegated Path = "delegated"
)

// Classifier decides whether a message can be answered from the
// conversation alone or needs retrieval and tools.
type Classifier interface {
	Classify(message string) Path
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(message string) Path

func (f ClassifierFunc) Classify(message string) Path { return f(message) }

// smallTalk are phrases answered without tools, in English and French.
var smallTalk = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"bonjour", "bonsoir", "salut", "coucou",
	"thanks", "thank you", "thx", "cheers", "merci", "great", "perfect", "ok", "okay",
	"bye", "goodbye", "au revoir", "bonne journée", "bonne soirée",
	"help", "aide", "what can you do", "who are you", "how are you",
	"que peux-tu faire", "qui es-tu", "comment ça va", "ça va",
}

// filler are the words that may follow a small-talk phrase ("thanks a lot",
// "hello there") without turning it into a question.
var filler = map[string]bool{
	"there": true, "a": true, "lot": true, "so": true, "much": true, "very": true,
	"again": true, "you": true, "all": true, "everyone": true, "guys": true,
	"folks": true, "today": true,
	"beaucoup": true, "bien": true, "à": true, "tous": true, "toi": true,
	"vous": true, "encore": true, "tout": true, "le": true, "monde": true,
}

// HeuristicClassifier routes greetings, thanks and help requests to the
// direct path and everything else to delegation.
type HeuristicClassifier struct {
	phrases []string
}

// NewHeuristicClassifier creates a classifier with the built-in phrases
// plus any extra ones.
func NewHeuristicClassifier(extra ...string) *HeuristicClassifier {
	phrases := make([]string, 0, len(smallTalk)+len(extra))
	phrases = append(phrases, smallTalk...)
	for _, p := range extra {
		if p = normalize(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &HeuristicClassifier{phrases: phrases}
}

func (c *HeuristicClassifier) Classify(message string) Path {
	text := normalize(message)
	if text == "" {
		return PathDirect
	}
	for _, p := range c.phrases {
		if text != p && !strings.HasPrefix(text, p+" ") {
			continue
		}
		if text == p {
			return PathDirect
		}
		// Anything after the phrase must be filler, and a question mark
		// means the greeting leads into a real question.
		if strings.Contains(message, "?") {
			continue
		}
		if allFiller(strings.Fields(strings.TrimPrefix(text, p))) {
			return PathDirect
		}
	}
	return PathDelegated
}

func allFiller(words []string) bool {
	for _, w := range words {
		if !filler[w] {
			return false
		}
	}
	return true
}

// normalize lowercases s, turns punctuation into spaces and collapses runs
// of whitespace. Apostrophes and hyphens inside words are kept.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '\'', r == '-':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
