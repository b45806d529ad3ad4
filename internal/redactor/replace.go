package redactor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ciabot/redactor/internal/metrics"
	"github.com/ciabot/redactor/internal/moderation"
)

// Platform is the chat platform surface the bot acts through.
// *messaging.Platform satisfies it.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendMessage(ctx context.Context, channelID, text string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// ReplacementError reports which steps of a replacement failed. Either field
// may be nil, never both.
type ReplacementError struct {
	MessageID string
	Delete    error
	Send      error
}

func (e *ReplacementError) Error() string {
	var parts []string
	if e.Delete != nil {
		parts = append(parts, "delete: "+e.Delete.Error())
	}
	if e.Send != nil {
		parts = append(parts, "send: "+e.Send.Error())
	}
	return fmt.Sprintf("redactor: replace message %s: %s", e.MessageID, strings.Join(parts, "; "))
}

// Unwrap exposes both step errors to errors.Is and errors.As.
func (e *ReplacementError) Unwrap() []error {
	var errs []error
	if e.Delete != nil {
		errs = append(errs, e.Delete)
	}
	if e.Send != nil {
		errs = append(errs, e.Send)
	}
	return errs
}

// Replacer swaps a message for its redacted copy.
type Replacer struct {
	platform Platform
}

// NewReplacer returns a Replacer acting through platform.
func NewReplacer(platform Platform) *Replacer {
	return &Replacer{platform: platform}
}

// Apply deletes msg and then posts redacted in the same channel, attributed
// to the original author. The two steps are not transactional: the post is
// attempted whether or not the delete succeeded, nothing is retried and
// nothing is rolled back. Cancelling ctx does not abort a replacement in
// progress. The returned error, if any, is a *ReplacementError.
func (r *Replacer) Apply(ctx context.Context, msg moderation.Message, redacted string) error {
	ctx = context.WithoutCancel(ctx)

	deleteErr := r.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	if deleteErr != nil {
		metrics.PlatformErrors.WithLabelValues("delete").Inc()
		log.Printf("[redactor] delete failed message=%s channel=%s: %v", msg.ID, msg.ChannelID, deleteErr)
	}

	sendErr := r.platform.SendMessage(ctx, msg.ChannelID, Repost(msg, redacted))
	if sendErr != nil {
		metrics.PlatformErrors.WithLabelValues("send").Inc()
		log.Printf("[redactor] send failed message=%s channel=%s: %v", msg.ID, msg.ChannelID, sendErr)
	}

	if deleteErr == nil && sendErr == nil {
		return nil
	}
	return &ReplacementError{MessageID: msg.ID, Delete: deleteErr, Send: sendErr}
}

// Repost formats the replacement text: the author's display name, or a
// mention when no name is known, then a newline and the redacted text.
func Repost(msg moderation.Message, redacted string) string {
	who := msg.AuthorName
	if who == "" {
		who = "<@" + msg.AuthorID + ">"
	}
	return who + ":\n" + redacted
}

// stepErrors returns the error strings recorded in the audit log.
func stepErrors(err error) (deleteErr, sendErr string) {
	var re *ReplacementError
	if !errors.As(err, &re) {
		return "", ""
	}
	if re.Delete != nil {
		deleteErr = re.Delete.Error()
	}
	if re.Send != nil {
		sendErr = re.Send.Error()
	}
	return deleteErr, sendErr
}
