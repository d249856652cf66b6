package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role tags a message in a flattened conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry sent to the inference API.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one user message and the assistant reply, if any yet.
type Turn struct {
	User      string  `json:"user"`
	Assistant *string `json:"assistant"`
}

// Answered reports whether the assistant slot has been filled.
func (t Turn) Answered() bool { return t.Assistant != nil }

// Conversation is the ordered history of a session.
type Conversation []Turn

// Clone returns a copy that shares no slot pointers with c.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, t := range c {
		out[i] = Turn{User: t.User}
		if t.Assistant != nil {
			a := *t.Assistant
			out[i].Assistant = &a
		}
	}
	return out
}

// Flatten converts history into user/assistant messages, skipping empty
// slots, and appends prompt as a trailing user message unless the history
// already ends with an unanswered user message.
func Flatten(history Conversation, prompt string) []Message {
	messages := make([]Message, 0, len(history)*2+1)
	for _, t := range history {
		if t.User != "" {
			messages = append(messages, Message{Role: RoleUser, Content: t.User})
		}
		if t.Assistant != nil && *t.Assistant != "" {
			messages = append(messages, Message{Role: RoleAssistant, Content: *t.Assistant})
		}
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != RoleUser {
		messages = append(messages, Message{Role: RoleUser, Content: prompt})
	}
	return messages
}

// Parameter bounds accepted by the UIs.
const (
	MinTemperature = 0.01
	MaxTemperature = 1.0
	MinTopP        = 0.01
	MaxTopP        = 1.0
	MinMaxLength   = 20
	MaxMaxLength   = 2040
)

// ErrParamOutOfRange is returned by Params.Validate.
var ErrParamOutOfRange = errors.New("generation parameter out of range")

// Params are the per-request generation parameters.
type Params struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
	MaxLength   int     `json:"max_length" yaml:"max_length"`
}

// DefaultParams mirrors the initial slider positions.
func DefaultParams() Params {
	return Params{Temperature: 0.01, TopP: 0.9, MaxLength: 2000}
}

// Validate checks temperature and top_p in (0,1] and max_length in [20,2040].
func (p Params) Validate() error {
	if p.Temperature <= 0 || p.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %v", ErrParamOutOfRange, p.Temperature)
	}
	if p.TopP <= 0 || p.TopP > MaxTopP {
		return fmt.Errorf("%w: top_p %v", ErrParamOutOfRange, p.TopP)
	}
	if p.MaxLength < MinMaxLength || p.MaxLength > MaxMaxLength {
		return fmt.Errorf("%w: max_length %d", ErrParamOutOfRange, p.MaxLength)
	}
	return nil
}

// TokenPrefix is the prefix every Hugging Face access token carries.
const TokenPrefix = "hf_"

// Credential is the API token a session uses for remote calls.
type Credential struct {
	Token string
	Valid bool
}

// NewCredential validates token against the hf_ prefix convention.
func NewCredential(token string) Credential {
	token = strings.TrimSpace(token)
	return Credential{Token: token, Valid: strings.HasPrefix(token, TokenPrefix)}
}
