// Package admin implements the bot's command surface: authorization of the
// invoking user and the commands that inspect or change the settings.
package admin

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ciabot/redactor/internal/audit"
	"github.com/ciabot/redactor/internal/metrics"
	"github.com/ciabot/redactor/internal/settings"
)

// Fixed replies.
const (
	DenialReply         = "You don't have permission to do that"
	AlreadyTimedOut     = "The bot is already in timeout."
	UnknownCommandReply = "Unknown command. Type /help for help message."
)

var (
	// ErrUnauthorized is returned with DenialReply when the user may not run
	// the command.
	ErrUnauthorized = errors.New("admin: unauthorized")

	// ErrUnknownCommand is returned for a command name with no handler.
	ErrUnknownCommand = errors.New("admin: unknown command")

	// ErrAlreadyInTimeout is returned with AlreadyTimedOut when a timeout is
	// requested while one is in effect.
	ErrAlreadyInTimeout = errors.New("admin: already in timeout")

	// ErrInvalidArgument is returned when a command argument is missing or
	// out of range.
	ErrInvalidArgument = errors.New("admin: invalid argument")
)

// User is the invoker of a command as resolved by the platform.
type User struct {
	ID             string
	Name           string
	Roles          []string // role names
	ManageMessages bool
	Administrator  bool
}

// Request is one command invocation.
type Request struct {
	Command   string
	Args      []string
	User      User
	ChannelID string
}

// SettingsStore is the part of *settings.Store the commands use.
type SettingsStore interface {
	Snapshot() settings.Configuration
	Reload(ctx context.Context) (settings.Configuration, error)
	Update(ctx context.Context, fn func(*settings.Configuration) error) error
	SetField(ctx context.Context, key string, value any) error
	AddToSet(ctx context.Context, key string, elems ...string) error
	RemoveFromSet(ctx context.Context, key string, elems ...string) error
}

// CommandRecorder records command invocations. *audit.Store satisfies it.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, c audit.Command) (uuid.UUID, error)
}

// Gateway authorizes and executes commands.
type Gateway struct {
	store    SettingsStore
	adminID  string
	now      func() time.Time
	recorder CommandRecorder
	registry *Registry
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for timeouts.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithRecorder records every state-changing or denied command.
func WithRecorder(r CommandRecorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// NewGateway creates a Gateway over store. adminID is the single user who is
// always authorized; empty disables that rule.
func NewGateway(store SettingsStore, adminID string, opts ...Option) *Gateway {
	g := &Gateway{
		store:   store,
		adminID: adminID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.registry = NewRegistry()
	g.registerCommands()
	return g
}

// Authorize reports whether user may run restricted commands: a role whose
// name contains "mod" in any case, the manage-messages or administrator
// permission, or the configured admin identity.
func (g *Gateway) Authorize(user User) bool {
	if user.ManageMessages || user.Administrator {
		return true
	}
	if g.adminID != "" && user.ID == g.adminID {
		return true
	}
	for _, role := range user.Roles {
		if strings.Contains(strings.ToLower(role), "mod") {
			return true
		}
	}
	return false
}

// Execute runs req and returns the reply for the user. An unauthorized user
// gets DenialReply with ErrUnauthorized and nothing is changed. Any other
// error comes with a reply that describes it.
func (g *Gateway) Execute(ctx context.Context, req Request) (string, error) {
	cmd, ok := g.registry.Lookup(req.Command)
	if !ok {
		log.Printf("[admin] unknown command=%q user=%s", req.Command, req.User.ID)
		metrics.CommandsTotal.WithLabelValues("unknown", "error").Inc()
		return UnknownCommandReply, ErrUnknownCommand
	}

	log.Printf("[admin] user=%s name=%q command=%s args=%q", req.User.ID, req.User.Name, cmd.Name, req.Args)

	if cmd.Restricted && !g.Authorize(req.User) {
		log.Printf("[admin] user=%s command=%s: insufficient permissions", req.User.ID, cmd.Name)
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "denied").Inc()
		g.record(ctx, req, false, false, DenialReply)
		return DenialReply, ErrUnauthorized
	}

	reply, err := cmd.Run(ctx, req)
	if err != nil {
		log.Printf("[admin] user=%s command=%s failed: %v", req.User.ID, cmd.Name, err)
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "error").Inc()
	} else {
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "ok").Inc()
	}
	if cmd.Mutates {
		g.record(ctx, req, true, err == nil, reply)
	}
	return reply, err
}

// Commands lists the registered commands in help order.
func (g *Gateway) Commands() []Command {
	return g.registry.All()
}

func (g *Gateway) record(ctx context.Context, req Request, authorized, succeeded bool, reply string) {
	if g.recorder == nil {
		return
	}
	_, err := g.recorder.RecordCommand(context.WithoutCancel(ctx), audit.Command{
		UserID:     req.User.ID,
		ChannelID:  req.ChannelID,
		Command:    req.Command,
		Args:       req.Args,
		Authorized: authorized,
		Succeeded:  succeeded,
		Reply:      reply,
	})
	if err != nil {
		log.Printf("[admin] audit command=%s: %v", req.Command, err)
	}
}
