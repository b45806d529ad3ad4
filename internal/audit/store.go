// Package audit provides PostgreSQL-backed storage for the bot's audit trail.
// Every replacement attempt is recorded with the outcome of its delete and
// send steps, and every configuration command with who ran it and whether it
// was allowed.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// validModes matches the CHECK constraint on the redaction_events table.
var validModes = map[string]bool{
	"trigger": true,
	"ambient": true,
}

// Store manages audit rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Replacement describes one attempt to replace a message with its redacted
// copy. DeleteError and SendError are empty when the step succeeded.
type Replacement struct {
	MessageID   string
	ChannelID   string
	AuthorID    string
	Mode        string
	Redacted    int // number of tokens replaced
	DeleteError string
	SendError   string
}

// Command describes one invocation of a configuration command.
type Command struct {
	UserID     string
	ChannelID  string
	Command    string
	Args       []string
	Authorized bool
	Succeeded  bool
	Reply      string
}

// NewStore creates a new audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordReplacement inserts a replacement attempt and returns its id.
func (s *Store) RecordReplacement(ctx context.Context, r Replacement) (uuid.UUID, error) {
	if !validModes[r.Mode] {
		return uuid.Nil, fmt.Errorf("audit: invalid mode %q", r.Mode)
	}
	if r.Redacted <= 0 {
		return uuid.Nil, fmt.Errorf("audit: redacted count must be positive, got %d", r.Redacted)
	}

	const query = `
		INSERT INTO redaction_events (id, message_id, channel_id, author_id, mode, redacted_count, delete_error, send_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, query,
		id,
		r.MessageID,
		r.ChannelID,
		r.AuthorID,
		r.Mode,
		r.Redacted,
		nullString(r.DeleteError),
		nullString(r.SendError),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("audit: insert replacement: %w", err)
	}
	return id, nil
}

// RecordCommand inserts a command invocation and returns its id. Args are
// stored as JSONB.
func (s *Store) RecordCommand(ctx context.Context, c Command) (uuid.UUID, error) {
	if c.Command == "" {
		return uuid.Nil, fmt.Errorf("audit: empty command name")
	}

	var argsJSON []byte
	if len(c.Args) > 0 {
		var err error
		argsJSON, err = json.Marshal(c.Args)
		if err != nil {
			return uuid.Nil, fmt.Errorf("audit: marshal args: %w", err)
		}
	}

	const query = `
		INSERT INTO command_events (id, user_id, channel_id, command, args, authorized, succeeded, reply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, query,
		id,
		c.UserID,
		c.ChannelID,
		c.Command,
		argsJSON,
		c.Authorized,
		c.Succeeded,
		c.Reply,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("audit: insert command: %w", err)
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
