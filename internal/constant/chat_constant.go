package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// DefaultSessionTitle is used until the first user message names
	// the session.
	DefaultSessionTitle = "New Conversation"

	// SessionTitleMaxLen caps titles derived from the first message.
	SessionTitleMaxLen = 80

	GreetingAnswer = "Hello! I'm your CSEC AI assistant. I can help you find information about the club, events, or technical documentation in our knowledge base. What would you like to know?"
)

// Greetings are matched either exactly or as a prefix followed by a
// space, '?' or '!'.
var Greetings = []string{
	"hello", "hi", "hey", "greetings", "yo",
	"good morning", "good afternoon", "good evening",
}
