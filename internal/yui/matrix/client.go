// Package matrix is the Matrix transport: it turns room messages into
// chat.Message values and delivers replies.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/store"
)

const (
	typingTimeout = 30 * time.Second
	backoffMin    = 2 * time.Second
	backoffMax    = 5 * time.Minute
)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// AllowedRooms restricts the rooms the bot joins and answers in. Empty
	// means any room it is invited to.
	AllowedRooms []string
	// AutoJoin accepts room invites.
	AutoJoin bool
	// Store persists the sync token across restarts. When nil, an in-memory
	// store is used and messages sent before startup are skipped.
	Store *store.Store
}

// Client wraps the Matrix client
type Client struct {
	client    *mautrix.Client
	config    *Config
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	handler   chat.Handler
	startedAt time.Time

	mu          sync.RWMutex
	displayName string
}

// New creates a new Matrix client. It does not contact the homeserver.
func New(config *Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if config.Store != nil {
		client.Store = NewDBSyncStore(config.Store)
		logger.Info("Matrix sync store: using persistent SQLite store")
	} else {
		logger.Warn("Matrix sync store: no database configured, using in-memory store")
	}

	return c, nil
}

// Identity fetches the bot's display name and returns the tokens users type
// to address it. A failed profile lookup falls back to the localpart.
func (c *Client) Identity(ctx context.Context) (chat.Identity, error) {
	uid := id.UserID(c.config.UserID)
	name := ""
	profile, err := c.client.GetProfile(ctx, uid)
	if err != nil {
		c.logger.Warn("failed to fetch bot profile; using localpart as display name", "err", err)
	} else {
		name = profile.DisplayName
	}
	if name == "" {
		name = localpart(c.config.UserID)
	}

	c.mu.Lock()
	c.displayName = name
	c.mu.Unlock()

	return chat.Identity{
		UserID: c.config.UserID,
		Names:  []string{"https://matrix.to/#/" + c.config.UserID, name},
	}, nil
}

// Start begins syncing with the Matrix homeserver. handler is called for
// every text message in an allowed room, on the sync goroutine.
func (c *Client) Start(ctx context.Context, handler chat.Handler) error {
	c.handler = handler
	c.startedAt = time.Now()

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMember)

	for _, roomID := range c.config.AllowedRooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.syncLoop()
	}()

	return nil
}

// syncLoop keeps /sync running, reconnecting with exponential back-off so a
// transient homeserver error does not leave the bot deaf.
func (c *Client) syncLoop() {
	backoff := backoffMin
	for {
		started := time.Now()
		err := c.client.Sync()
		select {
		case <-c.stopCh:
			return
		default:
		}
		if err == nil {
			return
		}
		if time.Since(started) > backoffMax {
			backoff = backoffMin
		}
		c.logger.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// Stop stops syncing and waits for the sync goroutine to exit.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
	c.wg.Wait()
}

// SendText sends text to a room. Replies containing Markdown are sent with
// an HTML formatted body as well.
func (c *Client) SendText(ctx context.Context, roomID, text string) error {
	var err error
	if hasMarkdown(text) {
		content := event.MessageEventContent{
			MsgType:       event.MsgText,
			Body:          text,
			Format:        event.FormatHTML,
			FormattedBody: markdownToHTML(text),
		}
		_, err = c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	} else {
		_, err = c.client.SendText(ctx, id.RoomID(roomID), text)
	}
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SetTyping sets typing indicator
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool) error {
	_, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, typingTimeout)
	if err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// roomAllowed reports whether the bot answers in roomID.
func (c *Client) roomAllowed(roomID string) bool {
	return len(c.config.AllowedRooms) == 0 || slices.Contains(c.config.AllowedRooms, roomID)
}

// handleMessage converts text messages into chat.Message values.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	msg, ok := c.toMessage(evt)
	if !ok || c.handler == nil {
		return
	}
	c.handler(ctx, msg)
}

func (c *Client) toMessage(evt *event.Event) (chat.Message, bool) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return chat.Message{}, false
	}

	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return chat.Message{}, false
	}

	if !c.roomAllowed(evt.RoomID.String()) {
		return chat.Message{}, false
	}

	// A reply quotes the message it answers; only the new text is the prompt.
	content.RemoveReplyFallback()

	// Without a persistent sync token the first sync returns backlog.
	if c.config.Store == nil && !c.startedAt.IsZero() && time.UnixMilli(evt.Timestamp).Before(c.startedAt) {
		return chat.Message{}, false
	}

	return chat.Message{
		ID:       evt.ID.String(),
		Author:   evt.Sender.String(),
		Channel:  evt.RoomID.String(),
		Content:  content.Body,
		Mentions: c.mentions(content),
	}, true
}

// mentions collects the users a message addresses: the explicit m.mentions
// list, plus the bot when its ID or display name appears in the body.
func (c *Client) mentions(content *event.MessageEventContent) []string {
	var out []string
	if content.Mentions != nil {
		for _, uid := range content.Mentions.UserIDs {
			out = append(out, uid.String())
		}
	}

	bot := c.config.UserID
	if slices.Contains(out, bot) {
		return out
	}

	c.mu.RLock()
	name := c.displayName
	c.mu.RUnlock()

	body := content.Body
	if strings.Contains(body, bot) || (name != "" && containsWord(body, name)) {
		out = append(out, bot)
	}
	return out
}

// handleMember accepts invites for the bot.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	if !c.config.AutoJoin || evt.GetStateKey() != c.config.UserID {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if !c.roomAllowed(evt.RoomID.String()) {
		c.logger.Info("ignoring invite to room outside allowlist", "room", evt.RoomID, "inviter", evt.Sender)
		return
	}
	if err := c.joinRoom(ctx, evt.RoomID); err != nil {
		c.logger.Error("failed to accept invite", "room", evt.RoomID, "err", err)
		return
	}
	c.logger.Info("joined room", "room", evt.RoomID, "inviter", evt.Sender)
}

// joinRoom attempts to join a room
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// M_FORBIDDEN is returned when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

// localpart returns "yui" for "@yui:example.org".
func localpart(userID string) string {
	lp, _, _ := strings.Cut(strings.TrimPrefix(userID, "@"), ":")
	return lp
}
