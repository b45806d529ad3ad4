package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ciabot/redactor/internal/protocol"
)

type fakeRequester struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	reply    []byte
	err      error
	deadline bool
}

func (f *fakeRequester) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	_, f.deadline = ctx.Deadline()
	return f.reply, f.err
}

func okReply() []byte {
	return []byte(`{"type":"platform_reply","ok":true}`)
}

func TestPlatform_Subjects(t *testing.T) {
	fr := &fakeRequester{reply: okReply()}
	p := NewPlatform(fr, time.Second)
	ctx := context.Background()

	if err := p.DeleteMessage(ctx, "c1", "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := p.SendMessage(ctx, "c1", "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := p.AddReaction(ctx, "c1", "m1", "\U0001F1E7"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	want := []string{SubjectDeleteMessage, SubjectSendMessage, SubjectAddReaction}
	if len(fr.subjects) != len(want) {
		t.Fatalf("got %d requests, want %d", len(fr.subjects), len(want))
	}
	for i, s := range want {
		if fr.subjects[i] != s {
			t.Errorf("request %d subject = %q, want %q", i, fr.subjects[i], s)
		}
	}
	if !fr.deadline {
		t.Error("expected request context to carry a deadline")
	}

	var send protocol.SendMessageRequest
	if err := json.Unmarshal(fr.payloads[1], &send); err != nil {
		t.Fatalf("decode send payload: %v", err)
	}
	if send.ChannelID != "c1" || send.Content != "hi" || send.RequestID == "" {
		t.Errorf("unexpected send payload: %+v", send)
	}
}

func TestPlatform_Errors(t *testing.T) {
	transport := errors.New("no responders")

	cases := []struct {
		name  string
		fr    *fakeRequester
		check func(error) bool
	}{
		{"transport error", &fakeRequester{err: transport}, func(err error) bool { return errors.Is(err, transport) }},
		{"rejected by bridge", &fakeRequester{reply: []byte(`{"ok":false,"code":"forbidden","error":"missing permissions"}`)}, func(err error) bool { return err != nil }},
		{"garbled reply", &fakeRequester{reply: []byte(`<html>`)}, func(err error) bool { return err != nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewPlatform(tc.fr, time.Second).DeleteMessage(context.Background(), "c1", "m1")
			if !tc.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlatform_DefaultTimeout(t *testing.T) {
	p := NewPlatform(&fakeRequester{}, 0)
	if p.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", p.timeout)
	}
}

func connectNATS(t *testing.T) *NATSClient {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.MaxReconnects = 0
	c, err := NewNATSClient(cfg)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNATSClient_CommandRequestReply(t *testing.T) {
	c := connectNATS(t)

	err := c.SubscribeCommands("", func(data []byte) []byte {
		return append([]byte("echo:"), data...)
	})
	if err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := c.Request(ctx, SubjectCommand, []byte("ping"))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(reply) != "echo:ping" {
		t.Errorf("reply = %q, want %q", reply, "echo:ping")
	}
}

func TestNATSClient_PlatformOverNATS(t *testing.T) {
	c := connectNATS(t)

	got := make(chan protocol.AddReactionRequest, 1)
	err := c.Subscribe(SubjectAddReaction, "", func(msg *nats.Msg) {
		var req protocol.AddReactionRequest
		_ = json.Unmarshal(msg.Data, &req)
		got <- req
		_ = msg.Respond(okReply())
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	p := NewPlatform(c, 2*time.Second)
	if err := p.AddReaction(context.Background(), "c1", "m1", "x"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	req := <-got
	if req.MessageID != "m1" || req.Emoji != "x" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestNATSClient_UnsubscribeUnknown(t *testing.T) {
	c := connectNATS(t)
	if err := c.UnsubscribeMessages(); err == nil {
		t.Error("expected error unsubscribing without a subscription")
	}
}
