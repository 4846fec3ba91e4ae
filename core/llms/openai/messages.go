package openai

import "github.com/voialabs/callcore/core/llms"

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(systemPrompt string, turns []llms.Turn) []message {
	messages := []message{}
	if systemPrompt != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, turn := range turns {
		role := messageRoleUser
		if turn.Role == llms.RoleAssistant {
			role = messageRoleAssistant
		}
		messages = append(messages, message{
			Role:    role,
			Content: turn.Content,
		})
	}

	return messages
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
