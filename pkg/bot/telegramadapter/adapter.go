package telegramadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/bot"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Package telegramadapter implements botport.Messenger using the Telegram client.

// maxAttachmentBytes matches the Bot API download limit.
const maxAttachmentBytes = 20 << 20

// Logger defines the minimal logging interface used by the adapter.
type Logger interface {
	Printf(format string, args ...any)
}

type telegramClient interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, path string, caption string) (tgbotapi.Message, error)
	FileURL(fileID string) (string, error)
}

// Adapter wraps a Telegram client and satisfies botport.Messenger.
type Adapter struct {
	client telegramClient
	http   *http.Client
	logger Logger
}

var _ telegramClient = (*bot.Client)(nil)
var _ botport.Messenger = (*Adapter)(nil)

// New constructs a Telegram adapter with the provided bot client and logger.
func New(client telegramClient, logger Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("telegramadapter: client is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		client: client,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

// SendMessage dispatches a new Telegram message and returns a botport.BotMessage record.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_message", err)
	}
	msg, err := a.client.SendMessage(chatID, text)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("send_message", chatID, err)
	}
	bm := toBotMessage(msg)
	a.log("send_message", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID})
	return bm, nil
}

// SendFile uploads a local file as a document with an optional caption.
func (a *Adapter) SendFile(ctx context.Context, chatID int64, path string, caption string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_file", err)
	}
	msg, err := a.client.SendDocument(chatID, path, caption)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("send_file", chatID, err)
	}
	bm := toBotMessage(msg)
	bm.Meta = map[string]string{"path": path}
	a.log("send_file", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID, "path": path})
	return bm, nil
}

// FetchAttachment downloads the attachment bytes from the Telegram file endpoint.
func (a *Adapter) FetchAttachment(ctx context.Context, att botport.Attachment) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextError("fetch_attachment", err)
	}
	url, err := a.client.FileURL(att.FileID)
	if err != nil {
		return nil, a.wrapAndLogError("fetch_attachment", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, botport.NewBotError("fetch_attachment", botport.CodeBadRequest, err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, a.wrapAndLogError("fetch_attachment", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.wrapAndLogError("fetch_attachment", 0, fmt.Errorf("download %s: unexpected status %s", att.FileName, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, a.wrapAndLogError("fetch_attachment", 0, err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, botport.NewBotError("fetch_attachment", botport.CodeTooLarge, fmt.Errorf("attachment %s exceeds %d bytes", att.FileName, maxAttachmentBytes))
	}
	a.log("fetch_attachment", map[string]any{"file_id": att.FileID, "bytes": len(data)})
	return data, nil
}

func (a *Adapter) wrapAndLogError(op string, chatID int64, err error) error {
	wrapped := wrapTelegramError(op, err)
	a.log(op, map[string]any{
		"chat_id": chatID,
		"code":    botport.CodeOf(wrapped),
		"error":   err.Error(),
	})
	return wrapped
}

func (a *Adapter) log(op string, attrs map[string]any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf("botport op=%s attrs=%v", op, attrs)
}

func toBotMessage(msg tgbotapi.Message) botport.BotMessage {
	payload := msg.Text
	if payload == "" {
		payload = msg.Caption
	}
	return botport.BotMessage{
		ChatID:    chatIDFromMessage(msg),
		MessageID: msg.MessageID,
		Transport: "telegram",
		Payload:   payload,
	}
}

func chatIDFromMessage(msg tgbotapi.Message) int64 {
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return 0
}

func wrapContextError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &botport.BotError{Op: op, Code: botport.CodeContextCanceled, Wrapped: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &botport.BotError{Op: op, Code: botport.CodeContextDeadline, Wrapped: err}
	}
	return &botport.BotError{Op: op, Code: botport.CodeContextError, Wrapped: err}
}

func wrapTelegramError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapContextError(op, err)
	}
	code, retry := classifyTelegramError(err)
	return &botport.BotError{
		Op:         op,
		Code:       code,
		RetryAfter: retry,
		Wrapped:    err,
	}
}

var retryAfterRegex = regexp.MustCompile(`(?i)retry after (\d+)`)

// telegramFailures maps fragments of Bot API error descriptions to codes, checked in order.
var telegramFailures = []struct {
	fragment string
	code     string
}{
	{"too many requests", botport.CodeRateLimited},
	{"bad request", botport.CodeBadRequest},
	{"forbidden", botport.CodeForbidden},
	{"not found", botport.CodeNotFound},
}

func classifyTelegramError(err error) (string, time.Duration) {
	if err == nil {
		return botport.CodeUnknown, 0
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, f := range telegramFailures {
		if !strings.Contains(lower, f.fragment) {
			continue
		}
		if f.code == botport.CodeRateLimited {
			return f.code, extractRetryAfter(msg)
		}
		return f.code, 0
	}
	return botport.CodeUnknown, 0
}

func extractRetryAfter(msg string) time.Duration {
	matches := retryAfterRegex.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0
	}
	seconds, err := time.ParseDuration(matches[1] + "s")
	if err != nil {
		return 0
	}
	return seconds
}
