package audit

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		t.Skipf("postgres not available: %v", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordReplacement_Validation(t *testing.T) {
	// Validation happens before any database access.
	s := NewStore(nil)
	ctx := context.Background()

	cases := []struct {
		name string
		r    Replacement
	}{
		{"unknown mode", Replacement{MessageID: "m", Mode: "random", Redacted: 1}},
		{"empty mode", Replacement{MessageID: "m", Redacted: 1}},
		{"nothing redacted", Replacement{MessageID: "m", Mode: "trigger", Redacted: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.RecordReplacement(ctx, tc.r); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRecordCommand_RequiresName(t *testing.T) {
	if _, err := NewStore(nil).RecordCommand(context.Background(), Command{UserID: "u"}); err == nil {
		t.Error("expected error for empty command name")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestRecordReplacement_Persists(t *testing.T) {
	db := setupDB(t)
	s := NewStore(db)
	ctx := context.Background()
	msgID := uuid.NewString()

	id, err := s.RecordReplacement(ctx, Replacement{
		MessageID:   msgID,
		ChannelID:   "c1",
		AuthorID:    "u1",
		Mode:        "trigger",
		Redacted:    2,
		DeleteError: "missing permissions",
	})
	if err != nil {
		t.Fatalf("RecordReplacement: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM redaction_events WHERE id = $1`, id) })

	var (
		mode      string
		count     int
		deleteErr sql.NullString
		sendErr   sql.NullString
	)
	err = db.QueryRowContext(ctx,
		`SELECT mode, redacted_count, delete_error, send_error FROM redaction_events WHERE id = $1`, id,
	).Scan(&mode, &count, &deleteErr, &sendErr)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if mode != "trigger" || count != 2 {
		t.Errorf("got mode=%q count=%d, want trigger/2", mode, count)
	}
	if !deleteErr.Valid || deleteErr.String != "missing permissions" {
		t.Errorf("delete_error = %+v", deleteErr)
	}
	if sendErr.Valid {
		t.Errorf("send_error = %+v, want NULL", sendErr)
	}
}

func TestRecordCommand_Persists(t *testing.T) {
	db := setupDB(t)
	s := NewStore(db)
	ctx := context.Background()

	id, err := s.RecordCommand(ctx, Command{
		UserID:     "u1",
		ChannelID:  "c1",
		Command:    "add-trigger-words",
		Args:       []string{"spy agent"},
		Authorized: true,
		Succeeded:  true,
		Reply:      "spy agent updated in parameter trigger_words",
	})
	if err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM command_events WHERE id = $1`, id) })

	var args string
	if err := db.QueryRowContext(ctx, `SELECT args::text FROM command_events WHERE id = $1`, id).Scan(&args); err != nil {
		t.Fatalf("select: %v", err)
	}
	if args != `["spy agent"]` {
		t.Errorf("args = %s", args)
	}
}
