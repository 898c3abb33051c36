package fakeadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
)

func TestSendMessageRecordsCall(t *testing.T) {
	f := &FakeAdapter{}
	msg, err := f.SendMessage(context.Background(), 1, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID == 0 || msg.ChatID != 1 || msg.Transport != "telegram" || msg.Payload != "hello" {
		t.Fatalf("unexpected bot message: %+v", msg)
	}
	call := f.LastCall("send_message")
	if call == nil || call.Text != "hello" || call.ChatID != 1 {
		t.Fatalf("recorded call mismatch: %+v", call)
	}
}

func TestSendFileRecordsPath(t *testing.T) {
	f := &FakeAdapter{}
	if _, err := f.SendFile(context.Background(), 2, "/data/sessions.json", "export"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := f.LastCall("send_file")
	if call == nil || call.Path != "/data/sessions.json" || call.Text != "export" {
		t.Fatalf("recorded call mismatch: %+v", call)
	}
}

func TestFetchAttachmentReturnsRegisteredBytes(t *testing.T) {
	f := &FakeAdapter{}
	f.AddFile("f1", []byte("payload"))

	data, err := f.FetchAttachment(context.Background(), botport.Attachment{FileID: "f1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected data %q", data)
	}

	_, err = f.FetchAttachment(context.Background(), botport.Attachment{FileID: "missing"})
	if !botport.IsCode(err, botport.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestFailNextWrapsError(t *testing.T) {
	f := &FakeAdapter{}
	f.Fail("send_message", errors.New("boom"))
	_, err := f.SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	var be *botport.BotError
	if !errors.As(err, &be) {
		t.Fatalf("expected BotError, got %T", err)
	}
	if be.Code != "fake_error" {
		t.Fatalf("expected fake_error, got %s", be.Code)
	}

	if _, err := f.SendMessage(context.Background(), 1, "y"); err != nil {
		t.Fatalf("expected failure to apply once, got %v", err)
	}
}

func TestRateLimitedHelperSetsRetryAfter(t *testing.T) {
	f := &FakeAdapter{}
	f.Fail("send_message", RateLimited("send_message", 2*time.Second))
	_, err := f.SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	var be *botport.BotError
	if !errors.As(err, &be) {
		t.Fatalf("expected BotError, got %T", err)
	}
	if be.Code != botport.CodeRateLimited || be.RetryAfter != 2*time.Second {
		t.Fatalf("unexpected bot error: %+v", be)
	}
}

func TestTextsFiltersByChat(t *testing.T) {
	f := &FakeAdapter{}
	_, _ = f.SendMessage(context.Background(), 1, "a")
	_, _ = f.SendMessage(context.Background(), 2, "b")
	_, _ = f.SendMessage(context.Background(), 1, "c")

	got := f.Texts(1)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected texts %v", got)
	}
}
