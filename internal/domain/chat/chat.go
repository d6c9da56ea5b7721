package chat

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain"
)

// ContextKind tags what the visitor is currently looking at in the UI.
type ContextKind int

const (
	// ContextListing scopes the conversation to one listing.
	ContextListing ContextKind = iota + 1
	// ContextDevelopment scopes the conversation to one development.
	ContextDevelopment
)

// ParseContextKind maps the wire value to a ContextKind.
func ParseContextKind(s string) (ContextKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "listing":
		return ContextListing, nil
	case "development":
		return ContextDevelopment, nil
	default:
		return 0, fmt.Errorf("unknown context type %q: %w", s, domain.ErrInvalidQuery)
	}
}

func (k ContextKind) String() string {
	switch k {
	case ContextListing:
		return "listing"
	case ContextDevelopment:
		return "development"
	default:
		return "unknown"
	}
}

// ExternalContext is the UI-supplied scoping hint.
type ExternalContext struct {
	kind ContextKind
	id   string
}

// NewExternalContext validates and creates an ExternalContext.
func NewExternalContext(kind ContextKind, id string) (ExternalContext, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ExternalContext{}, fmt.Errorf("context id is required: %w", domain.ErrInvalidQuery)
	}
	switch kind {
	case ContextListing, ContextDevelopment:
	default:
		return ExternalContext{}, fmt.Errorf("unknown context kind %d: %w", kind, domain.ErrInvalidQuery)
	}
	return ExternalContext{kind: kind, id: id}, nil
}

// Kind returns the context kind.
func (c ExternalContext) Kind() ContextKind { return c.kind }

// ID returns the scoped entity id.
func (c ExternalContext) ID() string { return c.id }

// ListingID returns the id when the context is a listing, "" otherwise.
func (c *ExternalContext) ListingID() string {
	if c == nil || c.kind != ContextListing {
		return ""
	}
	return c.id
}

// DevelopmentID returns the id when the context is a development, "" otherwise.
func (c *ExternalContext) DevelopmentID() string {
	if c == nil || c.kind != ContextDevelopment {
		return ""
	}
	return c.id
}

// Role identifies the author of a conversation turn.
type Role int

const (
	// RoleUser is the visitor.
	RoleUser Role = iota + 1
	// RoleAssistant is the bot.
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire role to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("unknown turn role %q: %w", s, domain.ErrInvalidQuery)
	}
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role Role
	Text string
}

// Line renders the turn as a labelled history line ("user: ...").
func (t Turn) Line() string {
	return t.Role.String() + ": " + t.Text
}

// Query is one visitor question plus the state it arrives with.
type Query struct {
	text       string
	context    *ExternalContext
	history    []string
	onboarding map[string]string
}

// NewQuery validates and creates a Query. History is kept as ordered
// "role: text" lines, oldest first.
func NewQuery(text string, ctx *ExternalContext, history []string, onboarding map[string]string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("message is required: %w", domain.ErrInvalidQuery)
	}
	return Query{text: text, context: ctx, history: history, onboarding: onboarding}, nil
}

// Text returns the question text.
func (q Query) Text() string { return q.text }

// Context returns the external context, or nil.
func (q Query) Context() *ExternalContext { return q.context }

// History returns the prior conversation lines, oldest first.
func (q Query) History() []string { return q.history }

// Onboarding returns the onboarding answers (may be nil).
func (q Query) Onboarding() map[string]string { return q.onboarding }

// CompletionRequest is the input of one chat-completion call.
type CompletionRequest struct {
	System    string
	Turns     []Turn
	Question  string
	MaxTokens int
}

// CompletionResult is the output of one chat-completion call.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (r CompletionResult) TotalTokens() int { return r.PromptTokens + r.CompletionTokens }
