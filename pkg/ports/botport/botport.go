// Package botport is the boundary between the interview core and chat transports.
package botport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Normalized failure codes carried by BotError.
const (
	CodeBadRequest      = "bad_request"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeTooLarge        = "too_large"
	CodeContextCanceled = "context_canceled"
	CodeContextDeadline = "context_deadline"
	CodeContextError    = "context_error"
	CodeUnknown         = "unknown"
)

// BotMessage identifies something the bot sent.
type BotMessage struct {
	ChatID    int64
	MessageID int
	Transport string
	Payload   string
	Meta      map[string]string
}

// Attachment references a file uploaded by a user. The bytes are fetched lazily through the Messenger.
type Attachment struct {
	FileID   string
	FileName string
	Size     int64
}

// Message is an inbound user message, normalized by the adapter.
type Message struct {
	AuthorID    int64
	AuthorName  string
	ChatID      int64
	MessageID   int
	Text        string
	Attachments []Attachment
	Date        time.Time
}

// HasAttachments reports whether the message carries at least one file.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// BotError is a transport failure tagged with one of the Code constants.
type BotError struct {
	Op         string
	Code       string
	RetryAfter time.Duration
	Wrapped    error
}

func (e *BotError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Wrapped == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Wrapped)
	}
}

func (e *BotError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// Retryable is true for rate limiting, the only failure worth sending again as is.
func (e *BotError) Retryable() bool {
	return e != nil && e.Code == CodeRateLimited
}

func NewBotError(op, code string, err error) *BotError {
	return &BotError{Op: op, Code: code, Wrapped: err}
}

// CodeOf returns the code of the first BotError in err's chain, or "".
func CodeOf(err error) string {
	var be *BotError
	if err == nil || !errors.As(err, &be) || be == nil {
		return ""
	}
	return be.Code
}

// IsCode reports whether err carries a BotError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Messenger is what the interview core needs from a chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (BotMessage, error)
	SendFile(ctx context.Context, chatID int64, path string, caption string) (BotMessage, error)
	FetchAttachment(ctx context.Context, att Attachment) ([]byte, error)
}
