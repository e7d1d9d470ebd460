package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bdobrica/yui/common/trace"
	"github.com/bdobrica/yui/common/version"
	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/session"
)

// Handlers holds the per-user session commands.
type Handlers struct {
	sessions *session.Store
	router   *Router
}

// usage describes the commands listed by !help.
var usage = map[string]string{
	"help":    "Show this help message",
	"mode":    "[name] - Show or set your backend",
	"ping":    "Health check",
	"reset":   "Forget your local chat history",
	"switch":  "Cycle your backend (local → openrouter → groq)",
	"version": "Show version information",
}

// NewHandlers creates a new Handlers instance
func NewHandlers(sessions *session.Store) *Handlers {
	return &Handlers{sessions: sessions}
}

// Register wires every handler into r.
func (h *Handlers) Register(r *Router) {
	h.router = r
	r.Register("switch", h.HandleSwitch)
	r.Register("reset", h.HandleReset)
	r.Register("mode", h.HandleMode)
	r.Register("help", h.HandleHelp)
	r.Register("version", h.HandleVersion)
	r.Register("ping", h.HandlePing)
}

func switchedAck(m session.Mode) string {
	return fmt.Sprintf("✅ Switched to **%s** mode for you.", strings.ToUpper(m.String()))
}

// HandleSwitch advances the sender's backend one step through the cycle.
func (h *Handlers) HandleSwitch(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	return switchedAck(h.sessions.CycleMode(msg.Author)), nil
}

// HandleReset clears the sender's local dialogue context. The selected mode
// is kept.
func (h *Handlers) HandleReset(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	h.sessions.ClearContext(msg.Author)
	return "✅ Your chat history has been reset.", nil
}

// HandleMode shows the sender's mode, or selects one directly when a mode
// name follows the command.
func (h *Handlers) HandleMode(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	if cmd.Subcommand == "" {
		m := h.sessions.Get(msg.Author).Mode
		return fmt.Sprintf("Your current mode is **%s**.", strings.ToUpper(m.String())), nil
	}

	m, err := session.ParseMode(cmd.Subcommand)
	if err != nil {
		return "", fmt.Errorf("%w (choose one of: %s)", err, modeList())
	}
	h.sessions.SetMode(msg.Author, m)
	return switchedAck(m), nil
}

func modeList() string {
	names := make([]string, len(session.Modes))
	for i, m := range session.Modes {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}

// HandleHelp lists the registered commands.
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	var b strings.Builder
	b.WriteString("**Yui**\n\nMention me with a question to get an answer.\n\n**Commands:**")
	for _, name := range h.router.Commands() {
		desc, ok := usage[name]
		if !ok {
			continue
		}
		sep := " - "
		if strings.HasPrefix(desc, "[") {
			sep = " "
		}
		fmt.Fprintf(&b, "\n• %s%s%s%s", h.router.Prefix(), name, sep, desc)
	}
	return b.String(), nil
}

// HandleVersion shows version information
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	return fmt.Sprintf("**Yui**\nVersion: %s\nCommit: %s\nBuild Time: %s",
		version.Version, version.GitCommit, version.BuildTime), nil
}

// HandlePing responds with a health check
func (h *Handlers) HandlePing(ctx context.Context, cmd *Command, msg chat.Message) (string, error) {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		traceID = trace.GenerateID()
	}
	return fmt.Sprintf("🏓 Pong! (trace: %s)", traceID), nil
}
