// Package console is a transport that reads prompts from a terminal. Every
// line is a message addressed to the bot; replies are printed in colour.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/bdobrica/yui/internal/yui/chat"
)

const (
	// BotID is the bot's identity on the console.
	BotID = "@yui:console"
	// DefaultUser is the author of every console line.
	DefaultUser = "@you:console"
	// Channel is the only channel the console has.
	Channel = "console"

	botName = "Yui"
)

// Options configures a Transport.
type Options struct {
	// User is the author ID given to input lines. Empty means DefaultUser.
	User string
	// Color enables ANSI colour in replies.
	Color bool
}

// Transport reads lines from in and writes replies to out.
type Transport struct {
	in     io.Reader
	out    io.Writer
	user   string
	logger *slog.Logger

	name   *color.Color
	reply  *color.Color
	notice *color.Color

	mu       sync.Mutex // serialises writes to out
	done     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New returns a console transport.
func New(in io.Reader, out io.Writer, opts Options, logger *slog.Logger) *Transport {
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		in:     in,
		out:    out,
		user:   opts.User,
		logger: logger,
		name:   color.New(color.FgMagenta, color.Bold),
		reply:  color.New(color.FgCyan),
		notice: color.New(color.Faint, color.Italic),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}
	for _, c := range []*color.Color{t.name, t.reply, t.notice} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

// Identity returns the console bot identity; users may address it by name.
func (t *Transport) Identity(context.Context) (chat.Identity, error) {
	return chat.Identity{UserID: BotID, Names: []string{botName}}, nil
}

// Start reads input in the background. Each non-blank line is passed to
// handler, one at a time and in order. Done is closed at end of input.
func (t *Transport) Start(ctx context.Context, handler chat.Handler) error {
	go func() {
		defer close(t.done)
		t.read(ctx, handler)
	}()
	return nil
}

func (t *Transport) read(ctx context.Context, handler chat.Handler) {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n++
		handler(ctx, chat.Message{
			ID:       fmt.Sprintf("console-%d", n),
			Author:   t.user,
			Channel:  Channel,
			Content:  line,
			Mentions: []string{BotID},
		})
	}
	if err := scanner.Err(); err != nil {
		t.logger.Error("console: read failed", "err", err)
	}
}

// Done is closed once input is exhausted.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Stop makes the reader drop any further input. A read already blocked on
// the terminal is not interrupted.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// SendText prints a reply.
func (t *Transport) SendText(_ context.Context, _ string, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.name.Fprint(t.out, botName+": "); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	if _, err := t.reply.Fprintln(t.out, text); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	return nil
}

// SetTyping prints a faint notice when a turn starts.
func (t *Transport) SetTyping(_ context.Context, _ string, typing bool) error {
	if !typing {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.notice.Fprintln(t.out, botName+" is typing…")
	return err
}
