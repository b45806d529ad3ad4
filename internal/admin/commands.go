package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ciabot/redactor/internal/settings"
)

// Timeout bounds in minutes.
const (
	MinTimeoutMinutes = 5
	MaxTimeoutMinutes = 360
)

func (g *Gateway) registerCommands() {
	g.registry.Register(Command{
		Name:        "bot-timeout",
		Usage:       "<minutes>",
		Description: fmt.Sprintf("Stops the bot from redacting messages for a while, between %d minutes and %d hours.", MinTimeoutMinutes, MaxTimeoutMinutes/60),
		Mutates:     true,
		Public:      true,
		Run:         g.timeout,
	})
	g.registry.Register(Command{
		Name:        "show-values",
		Description: "Responds with the current configuration.",
		Run:         g.showValues,
	})
	g.registry.Register(Command{
		Name:        "read-json",
		Description: "Reloads the configuration values from storage.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.reload,
	})
	g.registry.Register(Command{
		Name:        "change-bypass-prefix",
		Usage:       "<prefix>",
		Description: "Changes the prefix that allows bypassing the bot.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.setString(settings.KeyBypassPrefix),
	})
	g.registry.Register(Command{
		Name:        "change-selected-chance",
		Usage:       "<0-100>",
		Description: "Chance (in percentage) that a message without trigger words is picked for redaction at all.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.setPercent(settings.KeySelectionChance),
	})
	g.registry.Register(Command{
		Name:        "change-redacted-chance",
		Usage:       "<0-100>",
		Description: "Chance (in percentage) to redact each word of a picked message. If no word is hit, one random word is redacted.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.setPercent(settings.KeyRedactionChance),
	})
	g.registry.Register(Command{
		Name:        "change-trigger-word-chance",
		Usage:       "<0-100>",
		Description: "Chance (in percentage) to redact each trigger word in a message. If no trigger word is hit, one of them is redacted anyway.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.setPercent(settings.KeyTriggerWordChance),
	})
	g.registry.Register(Command{
		Name:        "add-channels-to-blacklist",
		Usage:       "<channel ids>",
		Description: "Adds space-separated channel IDs to the channel blacklist.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.addToSet(settings.KeyChannelBlacklist),
	})
	g.registry.Register(Command{
		Name:        "remove-channels-from-blacklist",
		Usage:       "<channel ids>",
		Description: "Removes space-separated channel IDs from the channel blacklist.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.removeFromSet(settings.KeyChannelBlacklist),
	})
	g.registry.Register(Command{
		Name:        "add-channels-to-whitelist",
		Usage:       "<channel ids>",
		Description: "Adds space-separated channel IDs to the channel whitelist. A non-empty whitelist limits the bot to those channels.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.addToSet(settings.KeyChannelWhitelist),
	})
	g.registry.Register(Command{
		Name:        "remove-channels-from-whitelist",
		Usage:       "<channel ids>",
		Description: "Removes space-separated channel IDs from the channel whitelist.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.removeFromSet(settings.KeyChannelWhitelist),
	})
	g.registry.Register(Command{
		Name:        "add-trigger-words",
		Usage:       "<words>",
		Description: "Adds space-separated trigger words to the dictionary.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.addToSet(settings.KeyTriggerWords),
	})
	g.registry.Register(Command{
		Name:        "remove-trigger-words",
		Usage:       "<words>",
		Description: "Removes space-separated trigger words from the dictionary if present.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.removeFromSet(settings.KeyTriggerWords),
	})
	g.registry.Register(Command{
		Name:        "change-debug-channel-id",
		Usage:       "<channel id>",
		Description: "Changes the channel used for failure notices and by the non-production bot.",
		Restricted:  true,
		Mutates:     true,
		Run:         g.setString(settings.KeyDebugChannelID),
	})
	g.registry.Register(Command{
		Name:        "help",
		Description: "Lists all available commands with their descriptions, along with some tips.",
		Run:         g.help,
	})
}

// timeout suspends moderation. The check and the write happen under the
// store's lock so two concurrent requests cannot both extend the window.
func (g *Gateway) timeout(ctx context.Context, req Request) (string, error) {
	minutes, err := intArg(req.Args)
	if err != nil || minutes < MinTimeoutMinutes || minutes > MaxTimeoutMinutes {
		return fmt.Sprintf("Duration must be between %d and %d minutes", MinTimeoutMinutes, MaxTimeoutMinutes), ErrInvalidArgument
	}

	now := g.now()
	err = g.store.Update(ctx, func(c *settings.Configuration) error {
		if c.InTimeout(now) {
			return ErrAlreadyInTimeout
		}
		c.TimeoutExpiration = now.Add(time.Duration(minutes) * time.Minute).Unix()
		return nil
	})
	switch {
	case errors.Is(err, ErrAlreadyInTimeout):
		return AlreadyTimedOut, err
	case err != nil:
		return updateFailed(settings.KeyTimeoutExpiration), err
	}
	return fmt.Sprintf("Timed out for %d minutes", minutes), nil
}

func (g *Gateway) showValues(_ context.Context, _ Request) (string, error) {
	data, err := json.MarshalIndent(g.store.Snapshot(), "", "  ")
	if err != nil {
		return "Error reading settings", fmt.Errorf("admin: encode settings: %w", err)
	}
	return "```json\n" + string(data) + "\n```", nil
}

func (g *Gateway) reload(ctx context.Context, _ Request) (string, error) {
	if _, err := g.store.Reload(ctx); err != nil {
		return updateFailed("settings"), err
	}
	return updated("settings"), nil
}

func (g *Gateway) setString(key string) Handler {
	return func(ctx context.Context, req Request) (string, error) {
		value := strings.TrimSpace(strings.Join(req.Args, " "))
		if err := g.store.SetField(ctx, key, value); err != nil {
			return updateFailed(key), err
		}
		return updated(key), nil
	}
}

// setPercent stores a 0-100 argument as a 0-1 probability.
func (g *Gateway) setPercent(key string) Handler {
	return func(ctx context.Context, req Request) (string, error) {
		pct, err := percentArg(req.Args)
		if err != nil {
			return fmt.Sprintf("Invalid value for %s: expected a number from 0 to 100", key), err
		}
		if err := g.store.SetField(ctx, key, pct/100.0); err != nil {
			return updateFailed(key), err
		}
		return updated(key), nil
	}
}

func (g *Gateway) addToSet(key string) Handler {
	return func(ctx context.Context, req Request) (string, error) {
		raw, elems, err := listArg(req.Args)
		if err != nil {
			return fmt.Sprintf("Nothing to add to %s", key), err
		}
		if err := g.store.AddToSet(ctx, key, elems...); err != nil {
			return updateFailed(key), err
		}
		return elementUpdated(raw, key), nil
	}
}

func (g *Gateway) removeFromSet(key string) Handler {
	return func(ctx context.Context, req Request) (string, error) {
		raw, elems, err := listArg(req.Args)
		if err != nil {
			return fmt.Sprintf("Nothing to remove from %s", key), err
		}
		if err := g.store.RemoveFromSet(ctx, key, elems...); err != nil {
			return updateFailed(key), err
		}
		return elementUpdated(raw, key), nil
	}
}

func (g *Gateway) help(_ context.Context, _ Request) (string, error) {
	prefix := g.store.Snapshot().BypassPrefix

	var b strings.Builder
	if prefix != "" {
		fmt.Fprintf(&b, "Bypassing the bot:\nType `%s` before a message to bypass the bot for important messages or if it's being super annoying.\n", prefix)
		fmt.Fprintf(&b, "Example:\n`%shelp I'm being followed by a black van`\n\n", prefix)
	}
	b.WriteString("Available commands:\n")
	for _, cmd := range g.registry.All() {
		b.WriteString("`/" + cmd.Name)
		if cmd.Usage != "" {
			b.WriteString(" " + cmd.Usage)
		}
		b.WriteString("`: " + cmd.Description + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func updated(key string) string {
	return fmt.Sprintf("Parameter %s updated successfully", key)
}

func elementUpdated(element, key string) string {
	return fmt.Sprintf("%s updated in parameter %s", element, key)
}

func updateFailed(key string) string {
	return fmt.Sprintf("Error updating %s", key)
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, ErrInvalidArgument
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return n, nil
}

func percentArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, ErrInvalidArgument
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidArgument, v)
	}
	return v, nil
}

// listArg joins the arguments and splits them on whitespace. raw is the
// joined text echoed back in the reply.
func listArg(args []string) (raw string, elems []string, err error) {
	raw = strings.TrimSpace(strings.Join(args, " "))
	elems = strings.Fields(raw)
	if len(elems) == 0 {
		return "", nil, ErrInvalidArgument
	}
	return raw, elems, nil
}
