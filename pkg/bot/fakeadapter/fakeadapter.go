package fakeadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
)

// FakeAdapter implements botport.Messenger for headless tests.
type FakeAdapter struct {
	mu            sync.Mutex
	Calls         []Call
	NextMessageID int
	FailNext      map[string]error
	Files         map[string][]byte
}

// Call captures a bot operation invocation.
type Call struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	Path      string
	FileID    string
}

var _ botport.Messenger = (*FakeAdapter)(nil)

// SendMessage records a send operation and returns a synthetic BotMessage.
func (f *FakeAdapter) SendMessage(ctx context.Context, chatID int64, text string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_message", err)
	}
	if err := f.maybeFail("send_message"); err != nil {
		return botport.BotMessage{}, err
	}
	msgID := f.nextMessageID()
	f.record(Call{Op: "send_message", ChatID: chatID, MessageID: msgID, Text: text})
	return f.botMessage(chatID, msgID, text), nil
}

// SendFile records a file upload.
func (f *FakeAdapter) SendFile(ctx context.Context, chatID int64, path string, caption string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_file", err)
	}
	if err := f.maybeFail("send_file"); err != nil {
		return botport.BotMessage{}, err
	}
	msgID := f.nextMessageID()
	f.record(Call{Op: "send_file", ChatID: chatID, MessageID: msgID, Text: caption, Path: path})
	return f.botMessage(chatID, msgID, caption), nil
}

// FetchAttachment returns the bytes registered with AddFile.
func (f *FakeAdapter) FetchAttachment(ctx context.Context, att botport.Attachment) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextError("fetch_attachment", err)
	}
	if err := f.maybeFail("fetch_attachment"); err != nil {
		return nil, err
	}
	f.record(Call{Op: "fetch_attachment", FileID: att.FileID, Text: att.FileName})

	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Files[att.FileID]
	if !ok {
		return nil, &botport.BotError{Op: "fetch_attachment", Code: botport.CodeNotFound, Wrapped: fmt.Errorf("file %s not registered", att.FileID)}
	}
	return append([]byte(nil), data...), nil
}

// AddFile registers downloadable content for a file id.
func (f *FakeAdapter) AddFile(fileID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Files == nil {
		f.Files = make(map[string][]byte)
	}
	f.Files[fileID] = data
}

// Fail configures the next call for op to return err (wrapped as BotError if needed).
func (f *FakeAdapter) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext == nil {
		f.FailNext = make(map[string]error)
	}
	f.FailNext[op] = err
}

// LastCall returns the most recent call for the given op.
func (f *FakeAdapter) LastCall(op string) *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Calls) - 1; i >= 0; i-- {
		if f.Calls[i].Op == op {
			c := f.Calls[i]
			return &c
		}
	}
	return nil
}

// CallsFor returns a copy of every call recorded for op, oldest first.
func (f *FakeAdapter) CallsFor(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the texts sent to chatID, oldest first.
func (f *FakeAdapter) Texts(chatID int64) []string {
	var out []string
	for _, c := range f.CallsFor("send_message") {
		if c.ChatID == chatID {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *FakeAdapter) botMessage(chatID int64, messageID int, text string) botport.BotMessage {
	return botport.BotMessage{
		ChatID:    chatID,
		MessageID: messageID,
		Transport: "telegram",
		Payload:   text,
		Meta:      map[string]string{"fake": "true"},
	}
}

func (f *FakeAdapter) nextMessageID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextMessageID == 0 {
		f.NextMessageID = 1
	}
	id := f.NextMessageID
	f.NextMessageID++
	return id
}

func (f *FakeAdapter) record(call Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *FakeAdapter) maybeFail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext == nil {
		return nil
	}
	err, ok := f.FailNext[op]
	if !ok {
		return nil
	}
	delete(f.FailNext, op)
	if _, ok := err.(*botport.BotError); ok {
		return err
	}
	return &botport.BotError{Op: op, Code: "fake_error", Wrapped: err}
}

func wrapContextError(op string, err error) error {
	switch err {
	case context.Canceled:
		return &botport.BotError{Op: op, Code: botport.CodeContextCanceled, Wrapped: err}
	case context.DeadlineExceeded:
		return &botport.BotError{Op: op, Code: botport.CodeContextDeadline, Wrapped: err}
	default:
		return &botport.BotError{Op: op, Code: botport.CodeContextError, Wrapped: err}
	}
}

// RateLimited scripts a Telegram flood-control failure.
func RateLimited(op string, retry time.Duration) *botport.BotError {
	return &botport.BotError{Op: op, Code: botport.CodeRateLimited, RetryAfter: retry, Wrapped: fmt.Errorf("rate limited")}
}
