package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slmchat/internal/chunker"
	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/embedding"
	"slmchat/internal/embedding/tfidf"
	"slmchat/internal/events"
	"slmchat/internal/ingest"
	"slmchat/internal/llm"
	"slmchat/internal/responder"
	"slmchat/internal/session"
)

type stubClient struct {
	mu   sync.Mutex
	reqs []llm.Request
	// gate, when set, holds streamed replies until closed.
	gate chan struct{}
}

func (c *stubClient) Stream(_ context.Context, req llm.Request) (string, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return "Hello!", nil
}

func (c *stubClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return "The sky is blue.", nil
}

func (c *stubClient) last() llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqs[len(c.reqs)-1]
}

type fixture struct {
	app    *fiber.App
	client *stubClient
	bus    *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := &stubClient{}
	bus := events.NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	deps := session.Deps{
		Ingester: ingest.NewPipeline(ingest.Options{
			Chunker:   chunker.NewRecursiveChunker(1000, 100),
			Embedders: func(domain.Credential) (embedding.Embedder, error) { return tfidf.NewEmbedder(), nil },
		}),
		Engine:   responder.New(responder.Options{Models: config.DefaultModels(), Client: client}),
		Notifier: bus,
	}
	srv := New(Options{
		Store:    session.NewStore(time.Minute, deps, domain.Credential{}),
		Models:   config.DefaultModels(),
		Defaults: domain.DefaultParams(),
		Bus:      bus,
	})
	return &fixture{app: srv.App(), client: client, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return body["data"].(map[string]any)["id"].(string)
}

func (f *fixture) upload(t *testing.T, id, name, content string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/document", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return f.send(t, req)
}

func TestModels(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Len(t, data["models"], 6)
	assert.Equal(t, "Llama 3.2 : 1B", data["default"])
	assert.InDelta(t, 2040, data["bounds"].(map[string]any)["max_max_length"], 0)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestMessageWithoutCredential(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	resp, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages?wait=true", map[string]any{
		"message": "hello",
		"model":   "Phi-3.5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["accepted"])
	assert.Equal(t, "Please set a valid API key first. ⚠️", data["status"])
	assert.Empty(t, data["conversation"])
}

func TestMessageValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing model", body: map[string]any{"message": "hi"}},
		{name: "temperature zero", body: map[string]any{"message": "hi", "model": "Phi-3.5", "temperature": 0}},
		{name: "top_p above one", body: map[string]any{"message": "hi", "model": "Phi-3.5", "top_p": 1.5}},
		{name: "max_length too small", body: map[string]any{"message": "hi", "model": "Phi-3.5", "max_length": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestChatFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	_, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/credential", map[string]any{"token": "hf_http"})
	assert.Equal(t, "API key set successfully! ✅", body["message"])

	resp, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages?wait=true", map[string]any{
		"message":     "hi",
		"model":       "Phi-3.5",
		"temperature": 0.7,
		"max_length":  256,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := body["data"].(map[string]any)["conversation"].([]any)
	require.Len(t, conv, 1)
	assert.Equal(t, "Hello!", conv[0].(map[string]any)["assistant"])

	req := f.client.last()
	assert.Equal(t, "hf_http", req.APIKey)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 0.9, req.TopP)
	assert.Equal(t, 256, req.MaxTokens)

	_, body = f.do(t, http.MethodDelete, "/api/sessions/"+id+"/history", nil)
	assert.Equal(t, "Chat history cleared.", body["message"])
	assert.Empty(t, body["data"].(map[string]any)["conversation"])
}

func TestAsyncMessagePublishesEvents(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/credential", map[string]any{"token": "hf_http"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	turns, err := f.bus.Subscribe(ctx)
	require.NoError(t, err)

	resp, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{
		"message": "hi",
		"model":   "Phi-3.5",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.InDelta(t, 0, body["data"].(map[string]any)["turn"], 0)

	var got []events.TurnEvent
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-turns:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d events", len(got))
		}
	}
	assert.Equal(t, events.TypeTurnStarted, got[0].Type)
	assert.Equal(t, events.TypeTurnCompleted, got[1].Type)
	assert.Equal(t, id, got[1].SessionID)
	require.NotNil(t, got[1].Assistant)
	assert.Equal(t, "Hello!", *got[1].Assistant)
}

func TestMessageWhileTurnRunningConflicts(t *testing.T) {
	f := newFixture(t)
	f.client.gate = make(chan struct{})
	id := f.createSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/credential", map[string]any{"token": "hf_http"})

	resp, _ := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"message": "first", "model": "Phi-3.5"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]any{"message": "second", "model": "Phi-3.5"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, session.MsgBusy, body["message"])
	assert.Len(t, body["data"].(map[string]any)["conversation"], 1)

	close(f.client.gate)
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/sessions/"+id, nil)
		conv := body["data"].(map[string]any)["conversation"].([]any)
		return conv[0].(map[string]any)["assistant"] == "Hello!"
	}, 5*time.Second, 10*time.Millisecond)

	resp, body = f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages?wait=true", map[string]any{"message": "second", "model": "Phi-3.5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"].(map[string]any)["conversation"], 2)
}

func TestUploadAndAsk(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	resp, body := f.upload(t, id, "notes.txt", "The sky is blue.")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Please set a valid API key before uploading documents. ⚠️", body["message"])

	f.do(t, http.MethodPost, "/api/sessions/"+id+"/credential", map[string]any{"token": "hf_http"})

	resp, body = f.upload(t, id, "notes.txt", "The sky is blue.")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "✅ Document processed successfully: notes.txt", body["message"])
	doc := body["data"].(map[string]any)["document"].(map[string]any)
	assert.Equal(t, "notes.txt", doc["file_name"])

	resp, body = f.upload(t, id, "broken.docx", "not a zip")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["message"], "❌ Error processing document: ")

	_, body = f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages?wait=true", map[string]any{
		"message": "What color is the sky?",
		"model":   "Phi-3.5",
	})
	conv := body["data"].(map[string]any)["conversation"].([]any)
	assert.Equal(t, "The sky is blue.", conv[0].(map[string]any)["assistant"])

	_, body = f.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	doc = body["data"].(map[string]any)["document"].(map[string]any)
	assert.Equal(t, "notes.txt", doc["file_name"], "failed upload keeps the previous document")
}

func TestUploadRequiresFile(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	resp, _ := f.do(t, http.MethodPost, "/api/sessions/"+id+"/document", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	resp, _ := f.do(t, http.MethodGet, "/ws/sessions/"+id, nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/ws/sessions/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebsocketWithoutBusIsUnavailable(t *testing.T) {
	deps := session.Deps{Engine: responder.New(responder.Options{Models: config.DefaultModels(), Client: &stubClient{}})}
	srv := New(Options{
		Store:    session.NewStore(time.Minute, deps, domain.Credential{}),
		Models:   config.DefaultModels(),
		Defaults: domain.DefaultParams(),
	})
	app := srv.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/sessions", nil), -1)
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	id := created["data"].(map[string]any)["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/ws/sessions/"+id, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
