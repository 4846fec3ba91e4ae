// Package llms defines the request surface shared by response-generation
// adapters. Adapters are stateless: the full turn history is supplied on
// every call.
package llms

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance of conversation context handed to the generator.
type Turn struct {
	Role    Role
	Content string
}
