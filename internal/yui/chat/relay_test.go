package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/yui/internal/yui/chat"
)

type recordingSender struct {
	sent   []string
	failAt int // 1-based send index that fails; 0 = never
}

func (r *recordingSender) SendText(_ context.Context, channel, text string) error {
	if r.failAt > 0 && len(r.sent)+1 == r.failAt {
		return errors.New("network dropped")
	}
	r.sent = append(r.sent, channel+"|"+text)
	return nil
}

func TestRelay_SendsChunksInOrder(t *testing.T) {
	s := &recordingSender{}
	err := chat.Relay(context.Background(), s, "!room", "aaa bbb ccc ddd", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"!room|aaa bbb", "!room|ccc ddd"}, s.sent)
}

func TestRelay_StopsAtFirstFailure(t *testing.T) {
	s := &recordingSender{failAt: 2}
	err := chat.Relay(context.Background(), s, "!room", "one two three", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay chunk 1")
	assert.Equal(t, []string{"!room|one"}, s.sent)
}

func TestRelay_EmptyTextSendsNothing(t *testing.T) {
	s := &recordingSender{}
	require.NoError(t, chat.Relay(context.Background(), s, "!room", "", 10))
	assert.Empty(t, s.sent)
}

func TestRelay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &recordingSender{}
	err := chat.Relay(ctx, s, "!room", "hello", 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.sent)
}

func TestSenderFunc(t *testing.T) {
	var got string
	f := chat.SenderFunc(func(_ context.Context, channel, text string) error {
		got = channel + ":" + text
		return nil
	})
	require.NoError(t, f.SendText(context.Background(), "c", "t"))
	assert.Equal(t, "c:t", got)
}

func TestMessage_MentionsUser(t *testing.T) {
	m := chat.Message{Mentions: []string{"@yui:example.org"}}
	assert.True(t, m.MentionsUser("@yui:example.org"))
	assert.False(t, m.MentionsUser("@other:example.org"))
}
