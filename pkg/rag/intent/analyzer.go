// Package intent recognizes small talk that can be answered without touching
// the knowledge base.
package intent

import (
	"regexp"
	"strings"
	"sync"
)

type Category string

const (
	CategoryNone      Category = ""
	CategoryGreeting  Category = "greeting"
	CategoryWellBeing Category = "well_being"
	CategoryIdentity  Category = "identity"
)

// maxGreetingPhraseWords bounds phrases like "hi there" or "hello friend".
const maxGreetingPhraseWords = 3

var (
	simpleGreetings = setOf(
		"hi", "hello", "hey", "hola", "greetings", "howdy",
		"yo", "sup", "hiya", "heya", "bonjour", "aloha",
	)

	wellBeingQuestions = setOf(
		"how are you", "how are you doing", "how're you", "how're you doing",
		"how do you do", "what's up", "whats up", "wassup", "what's going on",
		"whats going on", "how have you been", "how's it going", "hows it going",
		"how you doing", "you good", "you okay", "how are things", "how is it going",
	)

	identityQuestions = setOf(
		"who are you", "what are you", "what is your name", "whats your name",
		"what's your name", "who r u", "what r u", "tell me about yourself",
		"introduce yourself",
	)

	greetingPattern = regexp.MustCompile(`^(hi+|he+y+|hello+|hola+|yo+)[\s!.?]*$`)
)

var defaultReplies = map[Category][]string{
	CategoryGreeting: {
		"Hello! How can I help you with your knowledge base today?",
		"Hi there! What would you like to know from your knowledge base?",
		"Hey! I'm ready to help you explore your knowledge base.",
	},
	CategoryWellBeing: {
		"I'm doing great! I'm here to help you with your knowledge base. What can I answer for you?",
		"I'm excellent, thank you! Ready to assist you with any questions about your knowledge base.",
	},
	CategoryIdentity: {
		"I'm your Knowledge Base Assistant. I help you find and understand information from your knowledge base. What would you like to know?",
		"I'm an AI assistant designed to help you explore your knowledge base. How can I assist you today?",
	},
}

type Result struct {
	Category Category
	Reply    string
}

func (r Result) IsSmallTalk() bool {
	return r.Category != CategoryNone
}

// Analyzer is safe for concurrent use. Replies rotate per category.
type Analyzer struct {
	mu      sync.Mutex
	replies map[Category][]string
	next    map[Category]int
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		replies: defaultReplies,
		next:    make(map[Category]int),
	}
}

func (a *Analyzer) Analyze(query string) Result {
	category := Classify(query)
	if category == CategoryNone {
		return Result{}
	}
	return Result{Category: category, Reply: a.reply(category)}
}

// Classify has no side effects; Analyze adds the canned reply.
func Classify(query string) Category {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if len(normalized) < 2 {
		return CategoryNone
	}
	cleaned := strings.TrimRight(normalized, "!?.,;")

	switch {
	case simpleGreetings[cleaned]:
		return CategoryGreeting
	case greetingPattern.MatchString(normalized):
		return CategoryGreeting
	case wellBeingQuestions[cleaned]:
		return CategoryWellBeing
	case identityQuestions[cleaned]:
		return CategoryIdentity
	}

	words := strings.Fields(cleaned)
	if len(words) > 0 && len(words) <= maxGreetingPhraseWords && simpleGreetings[words[0]] {
		return CategoryGreeting
	}
	return CategoryNone
}

func (a *Analyzer) reply(category Category) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	options := a.replies[category]
	i := a.next[category]
	a.next[category] = (i + 1) % len(options)
	return options[i]
}

func setOf(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
