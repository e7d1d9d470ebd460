package dispatch_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/backend/generator"
	"github.com/bdobrica/yui/internal/yui/backend/pattern"
	"github.com/bdobrica/yui/internal/yui/backend/remote"
	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/dispatch"
	"github.com/bdobrica/yui/internal/yui/session"
)

const (
	botID = "@yui:example.org"
	alice = "@alice:example.org"
	room  = "!room:example.org"
)

type harness struct {
	router   *dispatch.Router
	sender   chat.Sender
	sessions *session.Store
	local    *fakeBackend
	a        *fakeBackend
	b        *fakeBackend
}

func newHarness(t *testing.T, matcher dispatch.Matcher, sender chat.Sender, cfg dispatch.Config) *harness {
	t.Helper()
	h := &harness{
		sender:   sender,
		sessions: session.NewStore(),
		local:    &fakeBackend{name: "local", result: backend.OK("local reply")},
		a:        &fakeBackend{name: "openrouter", result: backend.OK("openrouter reply")},
		b:        &fakeBackend{name: "groq", result: backend.OK("groq reply")},
	}
	if cfg.BotID == "" {
		cfg.BotID = botID
	}
	if cfg.AddressingTokens == nil {
		cfg.AddressingTokens = []string{"https://matrix.to/#/" + botID, "Yui"}
	}
	r, err := dispatch.New(cfg, matcher, map[session.Mode]backend.Responder{
		session.ModeLocal:      h.local,
		session.ModeOpenRouter: h.a,
		session.ModeGroq:       h.b,
	}, h.sessions, sender, nil)
	require.NoError(t, err)
	h.router = r
	return h
}

func mention(content string) chat.Message {
	return chat.Message{ID: "$1", Author: alice, Channel: room, Content: content, Mentions: []string{botID}}
}

func TestNew_RequiresEveryMode(t *testing.T) {
	_, err := dispatch.New(dispatch.Config{BotID: botID}, fakeMatcher{}, map[session.Mode]backend.Responder{
		session.ModeLocal: &fakeBackend{name: "local"},
	}, session.NewStore(), &recordingSender{}, nil)
	require.Error(t, err)

	_, err = dispatch.New(dispatch.Config{}, fakeMatcher{}, nil, session.NewStore(), &recordingSender{}, nil)
	require.Error(t, err)
}

func TestHandleMention_IgnoresOwnMessages(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})

	msg := mention(botID + " hello")
	msg.Author = botID
	require.NoError(t, h.router.HandleMention(context.Background(), msg))
	assert.Empty(t, s.texts())
	assert.Empty(t, h.local.calls())
}

func TestHandleMention_IgnoresMessagesWithoutMention(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})

	msg := mention("hello everyone")
	msg.Mentions = []string{"@bob:example.org"}
	require.NoError(t, h.router.HandleMention(context.Background(), msg))
	assert.Empty(t, s.texts())
}

func TestHandleMention_EmptyPrompt(t *testing.T) {
	for _, content := range []string{botID, "  " + botID + "  ", "Yui:", "yui ,", "https://matrix.to/#/" + botID + ": "} {
		t.Run(content, func(t *testing.T) {
			s := &recordingSender{}
			h := newHarness(t, fakeMatcher{match: pattern.Match{Text: "x", Confidence: 1}}, s, dispatch.Config{})

			require.NoError(t, h.router.HandleMention(context.Background(), mention(content)))
			assert.Equal(t, []string{"Yes? How can I help you?"}, s.texts())
			assert.Empty(t, h.local.calls())
			assert.Zero(t, h.sessions.Len(), "empty prompts do not touch the session store")
		})
	}
}

func TestHandleMention_PreemptAtThreshold(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{match: pattern.Match{Text: "canned answer", Confidence: 0.80}}, s, dispatch.Config{})
	h.sessions.SetMode(alice, session.ModeGroq)

	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" What is SAOVS?")))
	assert.Equal(t, []string{"canned answer"}, s.texts())
	assert.Empty(t, h.b.calls())
	assert.Empty(t, h.local.calls())
}

func TestHandleMention_BelowThresholdUsesBackend(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{match: pattern.Match{Text: "canned answer", Confidence: 0.79}}, s, dispatch.Config{})

	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" tell me a story")))
	assert.Equal(t, []string{"local reply"}, s.texts())
	assert.Equal(t, []string{"tell me a story"}, h.local.calls())
}

func TestHandleMention_PatternErrorFallsThrough(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{err: errors.New("db closed")}, s, dispatch.Config{})

	require.NoError(t, h.router.HandleMention(context.Background(), mention("Yui: hi")))
	assert.Equal(t, []string{"local reply"}, s.texts())
	assert.Equal(t, []string{"hi"}, h.local.calls())
}

func TestHandleMention_RoutesBySessionMode(t *testing.T) {
	tests := []struct {
		mode session.Mode
		want string
	}{
		{session.ModeLocal, "local reply"},
		{session.ModeOpenRouter, "openrouter reply"},
		{session.ModeGroq, "groq reply"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s := &recordingSender{}
			h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})
			h.sessions.SetMode(alice, tt.mode)

			require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" hi")))
			assert.Equal(t, []string{tt.want}, s.texts())
		})
	}
}

func TestHandleMention_RemoteFailureIsolation(t *testing.T) {
	tests := []struct {
		mode    session.Mode
		apology string
	}{
		{session.ModeOpenRouter, remote.OpenRouterApology},
		{session.ModeGroq, remote.GroqApology},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s := &recordingSender{}
			h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})
			failing := remote.NewAdapter(tt.mode.String(), tt.apology, completerFunc(func(context.Context, string) (string, error) {
				return "", errors.New("HTTP 503")
			}), nil, nil)
			r, err := dispatch.New(dispatch.Config{BotID: botID}, fakeMatcher{}, map[session.Mode]backend.Responder{
				session.ModeLocal:      h.local,
				session.ModeOpenRouter: failing,
				session.ModeGroq:       failing,
			}, h.sessions, s, nil)
			require.NoError(t, err)
			h.sessions.SetMode(alice, tt.mode)

			require.NoError(t, r.HandleMention(context.Background(), mention(botID+" hi")))
			assert.Equal(t, []string{tt.apology}, s.texts())

			// The router keeps serving later turns.
			require.NoError(t, r.HandleMention(context.Background(), mention(botID+" again")))
			assert.Len(t, s.texts(), 2)
		})
	}
}

func TestHandleMention_SegmentsLongReplies(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{MaxMessageLength: 10})
	h.local.result = backend.OK("aaaa bbbb cccc dddd")

	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" hi")))
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, s.texts())
}

func TestHandleMention_RelayStopsAtFirstFailure(t *testing.T) {
	s := &recordingSender{failAt: 2}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{MaxMessageLength: 5})
	h.local.result = backend.OK("aaaa bbbb cccc")

	err := h.router.HandleMention(context.Background(), mention(botID+" hi"))
	require.Error(t, err)
	assert.Equal(t, []string{"aaaa"}, s.texts())
}

func TestHandleMention_RateLimit(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{RateLimit: 1, RateWindow: time.Hour})

	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" one")))
	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" two")))

	assert.Equal(t, []string{"local reply", dispatch.RateLimitReply}, s.texts())
	assert.Equal(t, []string{"one"}, h.local.calls())
}

func TestHandleMention_RateLimitDoesNotBlockPatternAnswers(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{match: pattern.Match{Text: "canned", Confidence: 0.9}}, s, dispatch.Config{RateLimit: 1})

	for range 3 {
		require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" What is SAOVS?")))
	}
	assert.Equal(t, []string{"canned", "canned", "canned"}, s.texts())
}

func TestHandleMention_TypingIndicator(t *testing.T) {
	s := &typingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})

	require.NoError(t, h.router.HandleMention(context.Background(), mention(botID+" hi")))
	assert.Equal(t, []bool{true, false}, s.typing)
}

func TestHandleMention_ContextTruncation(t *testing.T) {
	s := &recordingSender{}
	h := newHarness(t, fakeMatcher{}, s, dispatch.Config{})

	tok := runeTokenizer{}
	var seen int
	gen := generator.New(tok, generator.ModelFunc(func(_ context.Context, in []uint, p generator.Params) ([]uint, error) {
		seen = len(in)
		return append(slices.Clone(in), 'o'+1, 'k'+1, p.EOS), nil
	}), generator.Config{}, nil)

	r, err := dispatch.New(dispatch.Config{BotID: botID}, fakeMatcher{}, map[session.Mode]backend.Responder{
		session.ModeLocal:      gen,
		session.ModeOpenRouter: h.a,
		session.ModeGroq:       h.b,
	}, h.sessions, s, nil)
	require.NoError(t, err)

	require.NoError(t, h.sessions.Update(alice, func(sess *session.Session) error {
		sess.Context = slices.Repeat([]uint{'x' + 1}, 5000)
		return nil
	}))

	require.NoError(t, r.HandleMention(context.Background(), mention(botID+" hello")))
	assert.Equal(t, 1024, seen)
	assert.Equal(t, []string{"ok"}, s.texts())
	assert.Len(t, h.sessions.Get(alice).Context, 1024+3)
}

func TestHandleMention_SameUserTurnsAreSerialised(t *testing.T) {
	s := &recordingSender{}
	var inFlight, peak atomic.Int32
	slow := backendFunc(func(_ context.Context, _ string, sess *session.Session) backend.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		sess.Context = append(sess.Context, 1)
		inFlight.Add(-1)
		return backend.OK("ok")
	})

	r, err := dispatch.New(dispatch.Config{BotID: botID, RateLimit: 1000}, fakeMatcher{}, map[session.Mode]backend.Responder{
		session.ModeLocal:      slow,
		session.ModeOpenRouter: slow,
		session.ModeGroq:       slow,
	}, session.NewStore(), s, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.HandleMention(context.Background(), mention(botID+" hi")))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Len(t, s.texts(), 20)
}

func TestStripAddressing(t *testing.T) {
	h := newHarness(t, fakeMatcher{}, &recordingSender{}, dispatch.Config{})

	tests := []struct{ in, want string }{
		{botID + " hello", "hello"},
		{"hello " + botID, "hello"},
		{"Yui: how are you?", "how are you?"},
		{"YUI, what's up", "what's up"},
		{"https://matrix.to/#/" + botID + " hi", "hi"},
		{"no address here", "no address here"},
		{"  ", ""},
		{botID + " " + botID + " hi", "hi"},
		{botID + ": tell me about Yuichi", "tell me about Yuichi"},
		{botID + " what does the name Yui mean?", "what does the name Yui mean?"},
		{"Yuichi is here", "Yuichi is here"},
		{"yui", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.router.StripAddressing(tt.in), tt.in)
	}
}

func TestStripAddressing_KeepsWordsContainingTheName(t *testing.T) {
	const id = "@bot:example.org"
	r, err := dispatch.New(dispatch.Config{BotID: id, AddressingTokens: []string{"https://matrix.to/#/" + id, "bot"}},
		fakeMatcher{}, map[session.Mode]backend.Responder{
			session.ModeLocal:      &fakeBackend{name: "local"},
			session.ModeOpenRouter: &fakeBackend{name: "openrouter"},
			session.ModeGroq:       &fakeBackend{name: "groq"},
		}, session.NewStore(), &recordingSender{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "tell me about robots and bottles", r.StripAddressing(id+" tell me about robots and bottles"))
	assert.Equal(t, "are you a bot?", r.StripAddressing("bot, are you a bot?"))
	assert.Equal(t, "botanical facts", r.StripAddressing("botanical facts"))
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type backendFunc func(ctx context.Context, prompt string, s *session.Session) backend.Result

func (f backendFunc) Name() string { return "func" }

func (f backendFunc) Respond(ctx context.Context, prompt string, s *session.Session) backend.Result {
	return f(ctx, prompt, s)
}

// runeTokenizer maps each rune r to r+1; 0 is EOS.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) ([]uint, error) {
	out := make([]uint, 0, len(text))
	for _, r := range text {
		out = append(out, uint(r)+1)
	}
	return out, nil
}

func (runeTokenizer) Decode(ids []uint) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id != 0 {
			b.WriteRune(rune(id - 1))
		}
	}
	return b.String(), nil
}

func (runeTokenizer) EOS() uint { return 0 }
