package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a message_create event
// ---------------------------------------------------------------------------

func TestParseEvent_MessageCreate(t *testing.T) {
	input := []byte(`{
		"type":"message_create",
		"id":"m1",
		"channel_id":"c1",
		"content":"hello there",
		"author":{"id":"u1","username":"alice","display_name":"Alice A.","bot":false},
		"attachments":[{"id":"a1","filename":"cat.png","content_type":"image/png"}],
		"timestamp":"2024-05-01T12:00:00Z"
	}`)

	msgType, msg, err := ParseEvent(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessageCreate {
		t.Fatalf("expected type %q, got %q", TypeMessageCreate, msgType)
	}

	ev, ok := msg.(MessageCreateEvent)
	if !ok {
		t.Fatalf("expected MessageCreateEvent, got %T", msg)
	}
	if ev.ID != "m1" || ev.ChannelID != "c1" || ev.Content != "hello there" {
		t.Errorf("unexpected event fields: %+v", ev)
	}
	if ev.Author.ID != "u1" || ev.Author.Bot || ev.Author.DisplayName != "Alice A." {
		t.Errorf("unexpected author: %+v", ev.Author)
	}
	if !ev.HasImage() {
		t.Error("expected HasImage to be true for image/png attachment")
	}
	if ev.Timestamp.Unix() != 1714564800 {
		t.Errorf("expected timestamp 1714564800, got %d", ev.Timestamp.Unix())
	}
}

func TestAuthor_Name(t *testing.T) {
	tests := []struct {
		name   string
		author Author
		want   string
	}{
		{"display name wins", Author{Username: "alice", DisplayName: "Alice A."}, "Alice A."},
		{"falls back to username", Author{Username: "alice"}, "alice"},
		{"neither", Author{ID: "u1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.author.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a command event
// ---------------------------------------------------------------------------

func TestParseEvent_Command(t *testing.T) {
	input := []byte(`{"type":"command","id":"i1","channel_id":"c1","command":"add-trigger-words",
		"args":["spy agent"],"member":{"id":"u2","username":"bob","roles":["Moderator"],"manage_messages":true}}`)

	msgType, msg, err := ParseEvent(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeCommand {
		t.Fatalf("expected type %q, got %q", TypeCommand, msgType)
	}

	cmd, ok := msg.(CommandEvent)
	if !ok {
		t.Fatalf("expected CommandEvent, got %T", msg)
	}
	if cmd.Command != "add-trigger-words" {
		t.Errorf("expected command %q, got %q", "add-trigger-words", cmd.Command)
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "spy agent" {
		t.Errorf("unexpected args: %v", cmd.Args)
	}
	if !cmd.Member.ManageMessages || cmd.Member.Administrator {
		t.Errorf("unexpected member permissions: %+v", cmd.Member)
	}
}

// ---------------------------------------------------------------------------
// Test: Image detection
// ---------------------------------------------------------------------------

func TestAttachment_IsImage(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{"video/mp4", false},
		{"application/pdf", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := (Attachment{ContentType: tc.contentType}).IsImage(); got != tc.want {
			t.Errorf("IsImage(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}

	ev := MessageCreateEvent{Attachments: []Attachment{{ContentType: "text/plain"}}}
	if ev.HasImage() {
		t.Error("expected HasImage to be false without image attachments")
	}
}

// ---------------------------------------------------------------------------
// Test: Encoding a reply injects the type
// ---------------------------------------------------------------------------

func TestEncode_CommandReply(t *testing.T) {
	data, err := Encode(TypeCommandReply, CommandReply{ID: "i1", Content: "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypeCommandReply {
		t.Errorf("expected type %q, got %v", TypeCommandReply, result["type"])
	}
	if result["content"] != "done" {
		t.Errorf("expected content %q, got %v", "done", result["content"])
	}
	if _, ok := result["ephemeral"]; ok {
		t.Error("expected ephemeral to be omitted when false")
	}
}

// ---------------------------------------------------------------------------
// Test: Platform replies
// ---------------------------------------------------------------------------

func TestDecodePlatformReply(t *testing.T) {
	ok, err := DecodePlatformReply([]byte(`{"type":"platform_reply","request_id":"r1","ok":true,"message_id":"m9"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Err() != nil || ok.MessageID != "m9" {
		t.Errorf("unexpected reply: %+v", ok)
	}

	failed, err := DecodePlatformReply([]byte(`{"request_id":"r2","ok":false,"code":"missing_permissions","error":"cannot delete"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Err() == nil {
		t.Fatal("expected error for failed reply")
	}

	if _, err := DecodePlatformReply([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// ---------------------------------------------------------------------------
// Test: Unknown types and envelope edge cases
// ---------------------------------------------------------------------------

func TestParseEvent_UnknownType(t *testing.T) {
	msgType, msg, err := ParseEvent([]byte(`{"type":"presence_update","data":"something"}`))
	if err == nil {
		t.Fatal("expected an error for unknown event type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "presence_update" {
		t.Errorf("expected returned type %q, got %q", "presence_update", msgType)
	}
}

func TestParseEvent_BadPayload(t *testing.T) {
	_, _, err := ParseEvent([]byte(`{"type":"message_create","author":"not an object"}`))
	if err == nil {
		t.Fatal("expected decode error for malformed author")
	}
}

func TestEnvelope_MissingType(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"data":"no type field"}`), &env); err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{invalid json}`), &env); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
