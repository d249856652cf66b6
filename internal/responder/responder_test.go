package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/llm"
)

type fakeClient struct {
	reply    string
	err      error
	streamed []llm.Request
	complete []llm.Request
}

func (f *fakeClient) Stream(_ context.Context, req llm.Request) (string, error) {
	f.streamed = append(f.streamed, req)
	return f.reply, f.err
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.complete = append(f.complete, req)
	return f.reply, f.err
}

func (f *fakeClient) calls() int { return len(f.streamed) + len(f.complete) }

type fakeRetriever struct {
	results []domain.SearchResult
	err     error
	k       int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	f.k = k
	return f.results, f.err
}

func strp(s string) *string { return &s }

var cred = domain.NewCredential("hf_secret")

func newResponder(client llm.ChatClient, chatPrompt string) *Responder {
	return New(Options{
		Models:           config.DefaultModels(),
		Client:           client,
		ChatSystemPrompt: chatPrompt,
	})
}

func TestUnknownModelMakesNoCall(t *testing.T) {
	client := &fakeClient{reply: "x"}
	r := newResponder(client, "")

	res := r.Respond(context.Background(), "hi", nil, "GPT-9", domain.DefaultParams(), cred)
	assert.Equal(t, domain.KindModelNotFound, res.Kind)
	assert.Equal(t, "Error: Model not found in configuration.", res.Text)

	res = r.Answer(context.Background(), "hi", "GPT-9", &fakeRetriever{}, domain.DefaultParams(), cred)
	assert.Equal(t, domain.KindModelNotFound, res.Kind)
	assert.Equal(t, "Error: Model not found in configuration.", res.Text)

	assert.Zero(t, client.calls())
}

func TestRespondForwardsParams(t *testing.T) {
	tests := []domain.Params{
		{Temperature: 0.01, TopP: 0.9, MaxLength: 2000},
		{Temperature: 1, TopP: 1, MaxLength: 20},
		{Temperature: 0.5, TopP: 0.01, MaxLength: 2040},
	}
	for _, p := range tests {
		client := &fakeClient{reply: "ok"}
		res := newResponder(client, "").Respond(context.Background(), "hi", nil, "Phi-3.5", p, cred)
		require.True(t, res.OK())
		require.Len(t, client.streamed, 1)

		req := client.streamed[0]
		assert.Equal(t, "microsoft/Phi-3.5-mini-instruct", req.Model)
		assert.Equal(t, p.Temperature, req.Temperature)
		assert.Equal(t, p.TopP, req.TopP)
		assert.Equal(t, p.MaxLength, req.MaxTokens)
		assert.Equal(t, "hf_secret", req.APIKey)
	}
}

func TestRespondDoesNotDuplicatePendingPrompt(t *testing.T) {
	client := &fakeClient{reply: "see you"}
	history := domain.Conversation{
		{User: "hi", Assistant: strp("hello")},
		{User: "bye"},
	}

	res := newResponder(client, "").Respond(context.Background(), "bye", history, "Llama 3.2 : 1B", domain.DefaultParams(), cred)
	require.True(t, res.OK())
	assert.Equal(t, "see you", res.Text)

	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, Content: "bye"},
	}, client.streamed[0].Messages)
}

func TestRespondChatSystemPrompt(t *testing.T) {
	client := &fakeClient{}
	newResponder(client, "  Be brief.  ").Respond(context.Background(), "hi", nil, "Phi-3.5", domain.DefaultParams(), cred)

	msgs := client.streamed[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleSystem, Content: "Be brief."}, msgs[0])
}

func TestRespondInferenceError(t *testing.T) {
	client := &fakeClient{err: errors.New("429 Too Many Requests")}
	res := newResponder(client, "").Respond(context.Background(), "hi", nil, "Phi-3.5", domain.DefaultParams(), cred)
	assert.Equal(t, domain.KindInference, res.Kind)
	assert.Equal(t, "Error generating response: 429 Too Many Requests", res.Text)
	assert.Equal(t, "429 Too Many Requests", res.Detail)
}

func TestAnswerBuildsContextPrompt(t *testing.T) {
	client := &fakeClient{reply: "  The sky is blue.\n"}
	retriever := &fakeRetriever{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "The sky is blue."}},
		{Chunk: domain.Chunk{Text: "Grass is green."}},
	}}
	params := domain.Params{Temperature: 0.2, TopP: 0.8, MaxLength: 512}

	res := newResponder(client, "ignored in QA").Answer(context.Background(), "What color is the sky?", "Gemma 3 : 27B", retriever, params, cred)
	require.True(t, res.OK())
	assert.Equal(t, "The sky is blue.", res.Text)
	assert.Equal(t, 5, retriever.k)

	require.Len(t, client.complete, 1)
	assert.Empty(t, client.streamed)
	req := client.complete[0]
	assert.Equal(t, "google/gemma-3-27b-it", req.Model)
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleSystem, Content: config.QASystemPrompt},
		{Role: domain.RoleUser, Content: "Context:\nThe sky is blue.\n\nGrass is green.\n\nQuestion: What color is the sky?"},
	}, req.Messages)
}

func TestAnswerErrors(t *testing.T) {
	r := newResponder(&fakeClient{}, "")
	res := r.Answer(context.Background(), "q", "Phi-3.5", &fakeRetriever{err: errors.New("embedding query: 401")}, domain.DefaultParams(), cred)
	assert.Equal(t, domain.KindInference, res.Kind)
	assert.Equal(t, "Error generating document-based response: embedding query: 401", res.Text)

	r = newResponder(&fakeClient{err: errors.New("timeout")}, "")
	res = r.Answer(context.Background(), "q", "Phi-3.5", &fakeRetriever{}, domain.DefaultParams(), cred)
	assert.Equal(t, "Error generating document-based response: timeout", res.Text)
}
