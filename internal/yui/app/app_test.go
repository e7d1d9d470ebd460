package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/config"
	"github.com/bdobrica/yui/internal/yui/console"
	"github.com/bdobrica/yui/internal/yui/session"
)

const (
	testBot  = "@yui:test"
	testUser = "@alice:test"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	handler chat.Handler
	started chan struct{}
	stopped bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{started: make(chan struct{})}
}

func (f *fakeTransport) Identity(context.Context) (chat.Identity, error) {
	return chat.Identity{UserID: testBot, Names: []string{"Yui"}}, nil
}

func (f *fakeTransport) Start(_ context.Context, h chat.Handler) error {
	f.handler = h
	close(f.started)
	return nil
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTransport) SendText(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// newProviders serves both remote providers, answering with the provider's
// name.
func newProviders(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := "from groq"
		if strings.HasPrefix(r.URL.Path, "/api/v1/") {
			reply = "from openrouter"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"` + reply + `"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(providerURL string) *config.Config {
	return &config.Config{
		OpenRouterAPIKey:      "or-key",
		OpenRouterBaseURL:     providerURL + "/api/v1",
		OpenRouterModel:       "openai/gpt-4o",
		GroqAPIKey:            "groq-key",
		GroqBaseURL:           providerURL + "/openai/v1",
		GroqModel:             "llama-3.3-70b-versatile",
		RemoteMaxTokens:       100,
		RemoteTimeout:         5 * time.Second,
		RemoteMaxAttempts:     1,
		MaxMessageLength:      2000,
		GeneratorEncoding:     "r50k_base",
		GeneratorWindow:       1024,
		GeneratorMaxLength:    1000,
		GeneratorMinNewTokens: 48,
		GeneratorTopK:         50,
		GeneratorTopP:         0.9,
		GeneratorSeed:         7,
		RateLimit:             20,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	a, err := New(context.Background(), testConfig(newProviders(t).URL), tr, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a, tr
}

func mention(content string) chat.Message {
	return chat.Message{ID: "$1", Author: testUser, Channel: "!room", Content: content, Mentions: []string{testBot}}
}

func plain(content string) chat.Message {
	return chat.Message{ID: "$1", Author: testUser, Channel: "!room", Content: content}
}

func TestHandle_Commands(t *testing.T) {
	a, tr := newTestApp(t)
	ctx := context.Background()

	a.handle(ctx, plain("!switch"))
	a.handle(ctx, plain("!mode"))
	a.handle(ctx, plain("!reset"))
	a.handle(ctx, plain("!bogus"))

	sent := tr.messages()
	require.Len(t, sent, 4)
	assert.Equal(t, "✅ Switched to **OPENROUTER** mode for you.", sent[0])
	assert.Equal(t, "Your current mode is **OPENROUTER**.", sent[1])
	assert.Equal(t, "✅ Your chat history has been reset.", sent[2])
	assert.True(t, strings.HasPrefix(sent[3], "❌ Error: "), sent[3])
	assert.Equal(t, session.ModeOpenRouter, a.Sessions().Get(testUser).Mode)
}

func TestHandle_CommandIsNotAlsoAPrompt(t *testing.T) {
	a, tr := newTestApp(t)

	a.handle(context.Background(), mention("!switch"))
	assert.Len(t, tr.messages(), 1)
}

func TestHandle_PatternPreempts(t *testing.T) {
	a, tr := newTestApp(t)
	ctx := context.Background()
	a.handle(ctx, plain("!switch"))

	a.handle(ctx, mention(testBot+" what is SAOVS?"))
	sent := tr.messages()
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[1], "SAOVS is a mobile application"), sent[1])
}

func TestHandle_RemoteModes(t *testing.T) {
	a, tr := newTestApp(t)
	ctx := context.Background()

	a.handle(ctx, plain("!switch"))
	a.handle(ctx, mention("Yui, tell me a joke about penguins"))
	a.handle(ctx, plain("!switch"))
	a.handle(ctx, mention("Yui, tell me a joke about penguins"))

	sent := tr.messages()
	require.Len(t, sent, 4)
	assert.Equal(t, "from openrouter", sent[1])
	assert.Equal(t, "from groq", sent[3])
}

func TestHandle_LocalGenerator(t *testing.T) {
	a, tr := newTestApp(t)

	a.handle(context.Background(), mention("Yui: tell me about the weather in Lisbon"))
	sent := tr.messages()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, strings.TrimSpace(sent[0]))
}

func TestHandle_EmptyPrompt(t *testing.T) {
	a, tr := newTestApp(t)

	a.handle(context.Background(), mention("Yui:"))
	assert.Equal(t, []string{"Yes? How can I help you?"}, tr.messages())
}

func TestHandle_Ignored(t *testing.T) {
	a, tr := newTestApp(t)
	ctx := context.Background()

	a.handle(ctx, plain("just chatting"))
	own := mention("!switch")
	own.Author = testBot
	a.handle(ctx, own)
	assert.Empty(t, tr.messages())
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.GeneratorEncoding = "bogus"
	_, err := New(context.Background(), cfg, newFakeTransport())
	assert.Error(t, err)

	cfg = testConfig("http://127.0.0.1:1")
	cfg.PatternCorpus = "testdata/absent.yml"
	_, err = New(context.Background(), cfg, newFakeTransport())
	assert.Error(t, err)
}

func TestNew_ExtraGeneratorCorpus(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.GeneratorCorpus = "../backend/generator/testdata/dialogues.txt"
	a, err := New(context.Background(), cfg, newFakeTransport())
	require.NoError(t, err)
	a.Stop()
}

func TestRun_Console(t *testing.T) {
	var out strings.Builder
	tr := console.New(strings.NewReader("!mode\nwhat is SAOVS?\nYui\n"), &out, console.Options{}, nil)
	a, err := New(context.Background(), testConfig("http://127.0.0.1:1"), tr)
	require.NoError(t, err)
	defer a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))
	require.NoError(t, ctx.Err(), "run should end at end of input")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Yui: Your current mode is **LOCAL**.", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Yui: SAOVS is a mobile application"), lines[1])
	assert.Equal(t, "Yui: Yes? How can I help you?", lines[2])
}

func TestRun_ConcurrentTurns(t *testing.T) {
	a, tr := newTestApp(t, WithConcurrentTurns())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()
	<-tr.started

	users := []string{"@a:test", "@b:test", "@c:test", "@d:test"}
	for _, u := range users {
		msg := plain("!switch")
		msg.Author = u
		tr.handler(context.Background(), msg)
	}

	cancel()
	require.NoError(t, <-runErr)
	a.Stop()

	assert.Len(t, tr.messages(), len(users))
	for _, u := range users {
		assert.Equal(t, session.ModeOpenRouter, a.Sessions().Get(u).Mode)
	}
}
