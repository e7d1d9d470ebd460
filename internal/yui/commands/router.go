// Package commands parses "!"-prefixed chat commands and routes them to
// handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bdobrica/yui/internal/yui/chat"
)

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// Command represents a parsed command
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string]string
	RawText    string
}

// ErrNotACommand is returned by Parse when the message does not start with the
// command prefix. Callers should use errors.Is to distinguish this expected
// case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// ErrUnknownCommand is returned by Route for a well-formed command with no
// handler.
var ErrUnknownCommand = errors.New("unknown command")

// Handler is a function that handles a command
type Handler func(ctx context.Context, cmd *Command, msg chat.Message) (string, error)

// Router routes commands to handlers
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a new command router
func NewRouter(prefix string) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string { return r.prefix }

// Register registers a command handler
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Commands returns the registered handler keys, sorted.
func (r *Router) Commands() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Parse parses a message into a command. The command name is
// case-insensitive.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &Command{
		Name:    strings.ToLower(parts[0]),
		Args:    []string{},
		Flags:   make(map[string]string),
		RawText: text,
	}

	if len(parts) > 1 {
		// The second word is a subcommand unless it is a flag.
		if !strings.HasPrefix(parts[1], "-") {
			cmd.Subcommand = parts[1]
			parts = parts[2:]
		} else {
			parts = parts[1:]
		}

		for i := 0; i < len(parts); i++ {
			part := parts[i]

			if strings.HasPrefix(part, "--") {
				flagName := strings.TrimPrefix(part, "--")

				if i+1 < len(parts) && !strings.HasPrefix(parts[i+1], "--") {
					cmd.Flags[flagName] = parts[i+1]
					i++
				} else {
					cmd.Flags[flagName] = "true"
				}
			} else {
				cmd.Args = append(cmd.Args, part)
			}
		}
	}

	return cmd, nil
}

// Route parses text and calls the handler registered for "name.subcommand",
// falling back to "name".
func (r *Router) Route(ctx context.Context, text string, msg chat.Message) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handlerKey := cmd.Name
	if cmd.Subcommand != "" {
		handlerKey = cmd.Name + "." + strings.ToLower(cmd.Subcommand)
	}

	handler, ok := r.handlers[handlerKey]
	if !ok {
		handler, ok = r.handlers[cmd.Name]
		if !ok {
			return "", fmt.Errorf("%w: %s%s", ErrUnknownCommand, r.prefix, cmd.Name)
		}
	}

	return handler(ctx, cmd, msg)
}

// GetFlag returns a flag value with a default
func (c *Command) GetFlag(name, defaultValue string) string {
	if val, ok := c.Flags[name]; ok {
		return val
	}
	return defaultValue
}

// HasFlag checks if a flag is present
func (c *Command) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}

// GetArg returns an argument by index
func (c *Command) GetArg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}

// FullCommand returns the full command string
func (c *Command) FullCommand() string {
	if c.Subcommand != "" {
		return c.Name + " " + c.Subcommand
	}
	return c.Name
}
