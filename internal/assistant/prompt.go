package assistant

import (
	"fmt"

	"github.com/schedchat/schedchat/internal/ollama"
)

const systemPrompt = "You are a professional assistant. When the user asks for a schedule, " +
	"respond with clear, concise points. Ensure each day or task is on a new line."

const userTemplate = "Question: %s\n\nRelevant Content:\n%s"

// BuildMessages constructs the chat messages for one question and its
// attached schedule context.
func BuildMessages(question, scheduleContent string) []ollama.Message {
	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(userTemplate, question, scheduleContent)},
	}
}
