// Package responder produces assistant replies in free-chat and
// document-QA modes.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/index"
	"slmchat/internal/llm"
	"slmchat/internal/logger"
	"slmchat/internal/tokens"
)

const (
	MsgModelNotFound = "Error: Model not found in configuration."
	msgChatFailed    = "Error generating response: %s"
	msgQAFailed      = "Error generating document-based response: %s"
)

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Options configures a Responder. Models and Client are required.
type Options struct {
	Models ModelResolver
	Client llm.ChatClient
	Tokens *tokens.Counter
	// ChatSystemPrompt is prepended to free chat when non-empty.
	ChatSystemPrompt string
	// QASystemPrompt defaults to config.QASystemPrompt.
	QASystemPrompt string
	TopK           int
	Logger         logger.Logger
}

// ModelResolver maps a display name to a model identifier.
type ModelResolver interface {
	Resolve(name string) (string, error)
}

// Responder is stateless and safe for concurrent use.
type Responder struct {
	models     ModelResolver
	client     llm.ChatClient
	tokens     *tokens.Counter
	chatPrompt string
	qaPrompt   string
	topK       int
	log        logger.Logger
}

func New(opts Options) *Responder {
	r := &Responder{
		models:     opts.Models,
		client:     opts.Client,
		tokens:     opts.Tokens,
		chatPrompt: strings.TrimSpace(opts.ChatSystemPrompt),
		qaPrompt:   opts.QASystemPrompt,
		topK:       opts.TopK,
		log:        opts.Logger,
	}
	if r.qaPrompt == "" {
		r.qaPrompt = config.QASystemPrompt
	}
	if r.topK <= 0 {
		r.topK = index.DefaultTopK
	}
	if r.tokens == nil {
		r.tokens = tokens.Estimating()
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	return r
}

// Respond streams a free-chat reply to prompt given the prior history.
func (r *Responder) Respond(ctx context.Context, prompt string, history domain.Conversation, modelName string, params domain.Params, cred domain.Credential) domain.Result {
	modelID, err := r.models.Resolve(modelName)
	if err != nil {
		return domain.Fail(domain.KindModelNotFound, MsgModelNotFound, err.Error())
	}

	messages := domain.Flatten(history, prompt)
	if r.chatPrompt != "" {
		messages = append([]domain.Message{{Role: domain.RoleSystem, Content: r.chatPrompt}}, messages...)
	}

	req := r.request(cred, modelID, messages, params)
	started := time.Now()
	text, err := r.client.Stream(ctx, req)
	if err != nil {
		r.logFailure("chat", modelID, err)
		return domain.Fail(domain.KindInference, fmt.Sprintf(msgChatFailed, err), err.Error())
	}
	r.logUsage("chat", modelID, messages, text, started)
	return domain.Ok(text)
}

// Answer replies to query from the chunks retriever finds, in one
// non-streamed call.
func (r *Responder) Answer(ctx context.Context, query, modelName string, retriever Retriever, params domain.Params, cred domain.Credential) domain.Result {
	modelID, err := r.models.Resolve(modelName)
	if err != nil {
		return domain.Fail(domain.KindModelNotFound, MsgModelNotFound, err.Error())
	}
	if retriever == nil {
		err := errors.New("no document index")
		return domain.Fail(domain.KindInference, fmt.Sprintf(msgQAFailed, err), err.Error())
	}

	results, err := retriever.Retrieve(ctx, query, r.topK)
	if err != nil {
		r.logFailure("qa", modelID, err)
		return domain.Fail(domain.KindInference, fmt.Sprintf(msgQAFailed, err), err.Error())
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: r.qaPrompt},
		{Role: domain.RoleUser, Content: qaPrompt(results, query)},
	}
	req := r.request(cred, modelID, messages, params)
	started := time.Now()
	text, err := r.client.Complete(ctx, req)
	if err != nil {
		r.logFailure("qa", modelID, err)
		return domain.Fail(domain.KindInference, fmt.Sprintf(msgQAFailed, err), err.Error())
	}
	r.logUsage("qa", modelID, messages, text, started)
	return domain.Ok(strings.TrimSpace(text))
}

func qaPrompt(results []domain.SearchResult, query string) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Chunk.Text)
	}
	return "Context:\n" + strings.Join(parts, "\n\n") + "\n\nQuestion: " + query
}

func (r *Responder) request(cred domain.Credential, modelID string, messages []domain.Message, params domain.Params) llm.Request {
	return llm.Request{
		APIKey:      cred.Token,
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   params.MaxLength,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
}

func (r *Responder) logUsage(mode, modelID string, messages []domain.Message, reply string, started time.Time) {
	r.log.Info("RESPONDER", "Completion finished", map[string]interface{}{
		"mode":              mode,
		"model":             modelID,
		"prompt_tokens":     r.tokens.CountMessages(messages),
		"completion_tokens": r.tokens.Count(reply),
		"exact_tokens":      r.tokens.Exact(),
		"duration_ms":       time.Since(started).Milliseconds(),
	})
}

func (r *Responder) logFailure(mode, modelID string, err error) {
	r.log.Error("RESPONDER", "Completion failed", map[string]interface{}{
		"mode":  mode,
		"model": modelID,
		"error": err,
	})
}

var (
	_ ModelResolver = config.ModelTable(nil)
	_ Retriever     = (*index.Index)(nil)
)
