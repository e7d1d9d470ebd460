package dispatch_test

import (
	"context"
	"errors"
	"sync"

	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/backend/pattern"
	"github.com/bdobrica/yui/internal/yui/session"
)

type sent struct {
	channel string
	text    string
}

type recordingSender struct {
	mu     sync.Mutex
	msgs   []sent
	failAt int // 1-based send index that fails; 0 = never
	calls  int
	typing []bool
}

func (s *recordingSender) SendText(_ context.Context, channel, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return errors.New("send failed")
	}
	s.msgs = append(s.msgs, sent{channel, text})
	return nil
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.text
	}
	return out
}

// typingSender also implements chat.Typer.
type typingSender struct {
	recordingSender
}

func (s *typingSender) SetTyping(_ context.Context, _ string, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, typing)
	return nil
}

type fakeMatcher struct {
	match pattern.Match
	err   error
}

func (m fakeMatcher) Match(context.Context, string) (pattern.Match, error) {
	return m.match, m.err
}

// fakeBackend replies with a fixed result and appends one token per turn to
// the session context.
type fakeBackend struct {
	name    string
	result  backend.Result
	mu      sync.Mutex
	prompts []string
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Respond(_ context.Context, prompt string, s *session.Session) backend.Result {
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	if !b.result.Failed() {
		s.Context = append(s.Context, 1)
	}
	return b.result
}

func (b *fakeBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}
