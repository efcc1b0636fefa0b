package core

import (
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"

	// roleAI is the front end's name for assistant turns.
	roleAI Role = "ai"
)

// NormalizeRole maps "ai" to "assistant". Every other value is returned unchanged.
func NormalizeRole(role Role) Role {
	if role == roleAI {
		return RoleAssistant
	}
	return role
}

// Message represents a single message in the chat
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NormalizeMessages returns a copy of msgs with every role normalized.
// Order is preserved and msgs itself is not modified.
func NormalizeMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: NormalizeRole(m.Role), Content: m.Content}
	}
	return out
}

// ProviderKind names an upstream provider family.
type ProviderKind string

const (
	KindGoogle ProviderKind = "google"
	KindOpenAI ProviderKind = "openai"
	KindGroq   ProviderKind = "groq"
	KindCustom ProviderKind = "custom"
)

// Identity carries everything needed to reach one provider.
type Identity struct {
	Kind    ProviderKind `json:"kind"`
	APIKey  string       `json:"apiKey"`
	BaseURL string       `json:"baseUrl,omitempty"`
}

// Validate enforces that BaseURL is set exactly when Kind is custom.
func (id Identity) Validate() error {
	hasBaseURL := strings.TrimSpace(id.BaseURL) != ""
	switch {
	case id.Kind == KindCustom && !hasBaseURL:
		return NewInvalidRequestError("baseUrl is required for custom providers", nil)
	case id.Kind != KindCustom && hasBaseURL:
		return NewInvalidRequestError(fmt.Sprintf("baseUrl is only allowed for custom providers, got provider %q", id.Kind), nil)
	}
	return nil
}

// StreamChunk is one item of a chat stream: either a text fragment or a
// terminal error. A chunk with a non-nil Err is always the last one.
type StreamChunk struct {
	Text string
	Err  error
}

// ModelList is the result of listing one provider's models.
// Err is set when the listing failed; Models is then empty.
type ModelList struct {
	Models []string
	Err    error
}

// OK reports whether the listing succeeded.
func (l ModelList) OK() bool {
	return l.Err == nil
}

// ModelListErrorPrefix starts the single wire element of a failed listing.
const ModelListErrorPrefix = "Error: "

// Wire flattens the list into the JSON array sent to clients. A failed
// listing becomes a one-element array holding "Error: <message>".
func (l ModelList) Wire() []string {
	if l.Err != nil {
		return []string{ModelListErrorPrefix + ErrorMessage(l.Err)}
	}
	if l.Models == nil {
		return []string{}
	}
	return l.Models
}
