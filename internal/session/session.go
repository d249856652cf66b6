// Package session holds the per-user chat state and orchestrates uploads
// and turns against the ingestion pipeline and the response engine.
package session

import (
	"context"
	"strings"
	"sync"

	"slmchat/internal/domain"
	"slmchat/internal/index"
	"slmchat/internal/ingest"
	"slmchat/internal/logger"
	"slmchat/internal/responder"
)

const (
	MsgKeySet       = "API key set successfully! ✅"
	MsgKeyAvailable = "API key already available! ✅"
	MsgKeyInvalid   = "Please enter a valid HuggingFace API key. ⚠️"
	MsgNeedKey      = "Please set a valid API key first. ⚠️"
	MsgCleared      = "Chat history cleared."
	MsgBusy         = "Please wait for the current response to finish. ⏳"
)

// Ingester builds a document index from an upload.
type Ingester interface {
	Ingest(ctx context.Context, upload *ingest.Upload, cred domain.Credential) (*index.Index, domain.Result)
}

// Engine produces assistant replies.
type Engine interface {
	Respond(ctx context.Context, prompt string, history domain.Conversation, modelName string, params domain.Params, cred domain.Credential) domain.Result
	Answer(ctx context.Context, query, modelName string, retriever responder.Retriever, params domain.Params, cred domain.Credential) domain.Result
}

// Notifier is told about turn progress. Calls happen outside the session lock.
type Notifier interface {
	TurnStarted(sessionID string, turn int, t domain.Turn)
	TurnCompleted(sessionID string, turn int, t domain.Turn, res domain.Result)
}

// Deps are the shared collaborators of every session.
type Deps struct {
	Ingester Ingester
	Engine   Engine
	Notifier Notifier
	Logger   logger.Logger
}

// Session is safe for concurrent use. The lock is never held across
// network calls.
type Session struct {
	id   string
	deps Deps

	mu           sync.Mutex
	conversation domain.Conversation
	index        *index.Index
	cred         domain.Credential
	status       string
	// active is the turn between Begin and Complete. Only one turn runs
	// per session at a time.
	active *Pending
	// generation changes on Clear so in-flight turns can tell that the
	// conversation they were appended to is gone.
	generation uint64
}

// Pending is a turn accepted by Begin and not yet answered.
type Pending struct {
	Message string
	Model   string
	Params  domain.Params
	// Turn is the position of the turn in the conversation.
	Turn int

	cred       domain.Credential
	index      *index.Index
	history    domain.Conversation
	generation uint64
}

// New creates a session. initial may carry a token from the environment.
func New(id string, deps Deps, initial domain.Credential) *Session {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Session{id: id, deps: deps, cred: initial}
}

func (s *Session) ID() string { return s.id }

// SetCredential stores token if it looks like a Hugging Face token.
// Otherwise an already stored valid credential is kept.
func (s *Session) SetCredential(token string) (bool, string) {
	cred := domain.NewCredential(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case cred.Valid:
		s.cred = cred
		return true, MsgKeySet
	case s.cred.Valid:
		return true, MsgKeyAvailable
	default:
		return false, MsgKeyInvalid
	}
}

// Upload indexes a document. A failed upload leaves the previous index in place.
func (s *Session) Upload(ctx context.Context, upload *ingest.Upload) domain.Result {
	s.mu.Lock()
	cred := s.cred
	s.mu.Unlock()

	ix, res := s.deps.Ingester.Ingest(ctx, upload, cred)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ix != nil {
		s.index = ix
	}
	s.status = res.Text
	return res
}

// Begin records message as a new unanswered turn. It returns a nil Pending
// when there is nothing to answer; the result's Text is the status to show
// and its Kind says why.
func (s *Session) Begin(message, modelName string, params domain.Params) (*Pending, domain.Result) {
	s.mu.Lock()
	switch {
	case !s.cred.Valid:
		s.mu.Unlock()
		return nil, domain.Fail(domain.KindCredential, MsgNeedKey, "")
	case strings.TrimSpace(message) == "":
		status := s.status
		s.mu.Unlock()
		return nil, domain.Result{Kind: domain.KindEmpty, Text: status}
	case s.active != nil:
		s.mu.Unlock()
		return nil, domain.Fail(domain.KindBusy, MsgBusy, "")
	}

	s.conversation = append(s.conversation, domain.Turn{User: message})
	p := &Pending{
		Message:    message,
		Model:      modelName,
		Params:     params,
		Turn:       len(s.conversation) - 1,
		cred:       s.cred,
		index:      s.index,
		history:    s.conversation.Clone(),
		generation: s.generation,
	}
	s.active = p
	status := s.status
	s.mu.Unlock()

	if s.deps.Notifier != nil {
		s.deps.Notifier.TurnStarted(s.id, p.Turn, domain.Turn{User: message})
	}
	return p, domain.Ok(status)
}

// Complete answers p, using document QA when an index was present at Begin.
// The reply is dropped if the conversation was cleared in the meantime.
func (s *Session) Complete(ctx context.Context, p *Pending) (domain.Turn, string) {
	if p == nil {
		return domain.Turn{}, s.Status()
	}

	var res domain.Result
	if p.index != nil {
		res = s.deps.Engine.Answer(ctx, p.Message, p.Model, p.index, p.Params, p.cred)
	} else {
		res = s.deps.Engine.Respond(ctx, p.Message, p.history, p.Model, p.Params, p.cred)
	}

	reply := res.Text
	turn := domain.Turn{User: p.Message, Assistant: &reply}

	s.mu.Lock()
	if s.active == p {
		s.active = nil
	}
	stale := s.generation != p.generation || p.Turn >= len(s.conversation)
	if !stale {
		s.conversation[p.Turn].Assistant = &reply
	}
	status := s.status
	s.mu.Unlock()

	if stale {
		s.deps.Logger.Info("SESSION", "Dropped reply for cleared conversation", map[string]interface{}{
			"session": s.id,
			"turn":    p.Turn,
		})
		return turn, status
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.TurnCompleted(s.id, p.Turn, turn, res)
	}
	return turn, status
}

// Submit runs both phases of a turn.
func (s *Session) Submit(ctx context.Context, message, modelName string, params domain.Params) (domain.Conversation, string) {
	p, res := s.Begin(message, modelName, params)
	if p == nil {
		return s.Conversation(), res.Text
	}
	_, status := s.Complete(ctx, p)
	return s.Conversation(), status
}

// Clear empties the conversation and releases any running turn, whose
// reply will be dropped. The document index is kept.
func (s *Session) Clear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = nil
	s.active = nil
	s.generation++
	s.status = MsgCleared
	return MsgCleared
}

// Conversation returns a copy of the history.
func (s *Session) Conversation() domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Clone()
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Index returns the current document index, or nil.
func (s *Session) Index() *index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// HasCredential reports whether a valid token is stored.
func (s *Session) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.Valid
}
