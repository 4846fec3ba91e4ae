package openai

import (
	"testing"

	"github.com/voialabs/callcore/core/llms"
)

func TestToMessagesPrependsSystemPrompt(t *testing.T) {
	turns := []llms.Turn{
		{Role: llms.RoleUser, Content: "hello"},
		{Role: llms.RoleAssistant, Content: "hi there"},
		{Role: llms.RoleUser, Content: "what are your hours?"},
	}

	messages := toMessages("You are a receptionist.", turns)

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "You are a receptionist." {
		t.Fatalf("unexpected system message: %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser || messages[1].Content != "hello" {
		t.Fatalf("unexpected first message: %+v", messages[1])
	}
	if messages[2].Role != messageRoleAssistant || messages[2].Content != "hi there" {
		t.Fatalf("unexpected assistant message: %+v", messages[2])
	}
	if messages[3].Role != messageRoleUser || messages[3].Content != "what are your hours?" {
		t.Fatalf("history truncated before final turn: %+v", messages[3])
	}
}

func TestToMessagesWithoutSystemPrompt(t *testing.T) {
	messages := toMessages("", []llms.Turn{{Role: llms.RoleUser, Content: "hello"}})

	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Role != messageRoleUser {
		t.Fatalf("unexpected role: %+v", messages[0])
	}
}
