package commands

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/interview"
	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
)

// Replies routes a message to an interview waiting for it.
type Replies interface {
	Deliver(msg botport.Message) bool
}

type Interviews interface {
	Run(ctx context.Context, req interview.Request) (*record.InterviewRecord, error)
}

type Reports interface {
	Compute(ctx context.Context, userID int64) (stats.Report, error)
	ComputeAll(ctx context.Context) ([]stats.Report, error)
}

type Charts interface {
	WriteFile(userID int64, title string, s stats.Series) (string, error)
}

// Records is the read side of the record store used by /last and /export.
type Records interface {
	Load(ctx context.Context) ([]record.InterviewRecord, error)
	Path() string
	Exists() bool
}

type Dependencies struct {
	Messenger  botport.Messenger
	Replies    Replies
	Interviews Interviews
	Reports    Reports
	Charts     Charts
	Records    Records
	Metrics    *metrics.Metrics
}

// Handler turns inbound messages into interview replies or command executions.
type Handler struct {
	questionnaire *config.Questionnaire
	messenger     botport.Messenger
	replies       Replies
	interviews    Interviews
	reports       Reports
	charts        Charts
	records       Records
	metrics       *metrics.Metrics

	wg sync.WaitGroup
}

func NewHandler(q *config.Questionnaire, deps Dependencies) (*Handler, error) {
	if q == nil {
		return nil, fmt.Errorf("commands: questionnaire is nil")
	}
	if deps.Messenger == nil || deps.Replies == nil || deps.Interviews == nil || deps.Reports == nil || deps.Records == nil {
		return nil, fmt.Errorf("commands: missing dependency")
	}
	return &Handler{
		questionnaire: q,
		messenger:     deps.Messenger,
		replies:       deps.Replies,
		interviews:    deps.Interviews,
		reports:       deps.Reports,
		charts:        deps.Charts,
		records:       deps.Records,
		metrics:       deps.Metrics,
	}, nil
}

// Dispatch handles one inbound message. Known commands always run, even while the author is being
// interviewed; anything else goes to a waiting interview first. Commands run on their own goroutine
// so the update loop never blocks.
func (h *Handler) Dispatch(ctx context.Context, msg botport.Message) {
	name, args, isCommand := ParseCommand(msg.Text)
	var handler commandFunc
	known := false
	if isCommand {
		handler, known = h.lookup(name)
	}

	if !known && h.replies.Deliver(msg) {
		return
	}
	if !isCommand {
		log.Printf("[commands] Ignoring non-command message from user %d in chat %d", msg.AuthorID, msg.ChatID)
		return
	}
	if !known {
		h.send(ctx, msg.ChatID, msgUnknownCommand)
		return
	}

	log.Printf("[commands] User %d (%s) ran /%s %v", msg.AuthorID, msg.AuthorName, name, args)
	h.metrics.IncrementCommands()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		handler(ctx, msg, args)
	}()
}

// Wait blocks until every command started by Dispatch has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

type commandFunc func(ctx context.Context, msg botport.Message, args []string)

func (h *Handler) lookup(name string) (commandFunc, bool) {
	switch name {
	case CommandSession:
		return h.handleSession, true
	case CommandLast, CommandLastAlias:
		return h.handleLast, true
	case CommandExport, CommandExportAlias:
		return h.handleExport, true
	case CommandStats:
		return h.handleStats, true
	case CommandPing:
		return h.handlePing, true
	case CommandStart, CommandHelp:
		return h.handleHelp, true
	}
	return nil, false
}

// ParseCommand splits "/name@bot arg1 arg2" into a lower-cased name and its arguments.
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if _, err := h.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("[commands] Failed to send message to chat %d: %v", chatID, err)
	}
}

func (h *Handler) sendFile(ctx context.Context, chatID int64, path, caption string) bool {
	if _, err := h.messenger.SendFile(ctx, chatID, path, caption); err != nil {
		log.Printf("[commands] Failed to send %s to chat %d: %v", path, chatID, err)
		return false
	}
	return true
}
