package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/bot/inbox"
	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
	"github.com/dkalashnik/telegram-session-log/pkg/storage"
	"github.com/looplab/fsm"
)

// Sessions grants per-user exclusivity.
type Sessions interface {
	TryAcquire(userID int64) bool
	Release(userID int64)
}

// Replies yields the next inbound message accepted by match.
type Replies interface {
	Await(ctx context.Context, match inbox.Predicate, timeout time.Duration) (botport.Message, error)
}

type AttachmentSaver interface {
	Save(userID int64, at time.Time, originalName string, data []byte) (string, error)
}

type RecordAppender interface {
	AppendAndCommit(ctx context.Context, rec *record.InterviewRecord) error
}

// Request identifies who asked for an interview and where to conduct it.
type Request struct {
	UserID   int64
	UserName string
	ChatID   int64
}

type Dependencies struct {
	Sessions    Sessions
	Replies     Replies
	Messenger   botport.Messenger
	Attachments AttachmentSaver
	Records     RecordAppender
	Metrics     *metrics.Metrics
}

type Option func(*Engine)

// WithReplyTimeout overrides the questionnaire's per-question timeout.
func WithReplyTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine conducts questionnaire interviews, one per admitted user.
type Engine struct {
	questionnaire *config.Questionnaire
	sessions      Sessions
	replies       Replies
	messenger     botport.Messenger
	attachments   AttachmentSaver
	records       RecordAppender
	metrics       *metrics.Metrics
	timeout       time.Duration
	now           func() time.Time
}

func NewEngine(q *config.Questionnaire, deps Dependencies, opts ...Option) (*Engine, error) {
	if q == nil {
		return nil, fmt.Errorf("interview: questionnaire is nil")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if deps.Sessions == nil || deps.Replies == nil || deps.Messenger == nil || deps.Attachments == nil || deps.Records == nil {
		return nil, fmt.Errorf("interview: missing dependency")
	}
	e := &Engine{
		questionnaire: q,
		sessions:      deps.Sessions,
		replies:       deps.Replies,
		messenger:     deps.Messenger,
		attachments:   deps.Attachments,
		records:       deps.Records,
		metrics:       deps.Metrics,
		timeout:       q.Timeout(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run conducts one interview and persists it on completion. It returns ErrSessionActive when the user
// is already being interviewed, ErrTimedOut or ErrCancelled when the interview is abandoned, and an
// error wrapping storage.ErrPersistence when the finished record could not be stored.
func (e *Engine) Run(ctx context.Context, req Request) (*record.InterviewRecord, error) {
	if !e.sessions.TryAcquire(req.UserID) {
		log.Printf("[interview] User %d rejected: %s", req.UserID, StateRejected)
		e.metrics.IncrementRejected()
		e.notify(ctx, req.ChatID, fmt.Sprintf(msgAlreadyActive, e.cancelHint()))
		return nil, ErrSessionActive
	}
	e.metrics.IncrementStarted()

	rec, err := e.conduct(ctx, req)
	if err != nil {
		return nil, err
	}

	// The interview is over even if the caller is shutting down; the record still gets written.
	saveCtx := context.WithoutCancel(ctx)
	if err := e.records.AppendAndCommit(saveCtx, rec); err != nil {
		if !errors.Is(err, storage.ErrPersistence) {
			err = fmt.Errorf("%w: %w", storage.ErrPersistence, err)
		}
		log.Printf("[interview] Failed to persist record for user %d: %v", req.UserID, err)
		e.metrics.IncrementPersistenceFailure()
		e.notify(saveCtx, req.ChatID, msgSaveFailed)
		return nil, err
	}

	e.metrics.IncrementCompleted()
	log.Printf("[interview] Record for user %d saved (%d answers)", req.UserID, len(rec.Answers))
	e.notify(saveCtx, req.ChatID, msgSaved)
	return rec, nil
}

// conduct runs the question loop. Exclusivity is released on every way out of it.
func (e *Engine) conduct(ctx context.Context, req Request) (*record.InterviewRecord, error) {
	defer e.sessions.Release(req.UserID)

	machine := NewMachine(req.UserID)
	defer func() {
		if !IsTerminal(machine.Current()) {
			log.Printf("[interview] User %d: interview abandoned in state %s", req.UserID, machine.Current())
		}
	}()
	rec := record.New(req.UserID, req.UserName, e.now().UTC())
	match := inbox.FromAuthorInChat(req.UserID, req.ChatID)

	e.notify(ctx, req.ChatID, fmt.Sprintf(msgIntro, len(e.questionnaire.Questions), e.cancelHint()))

	for i, question := range e.questionnaire.Questions {
		if err := fire(ctx, machine, EventAsk); err != nil {
			return nil, e.fail(ctx, machine, req, err)
		}
		log.Printf("[interview] User %d: question %d/%d (%s)", req.UserID, i+1, len(e.questionnaire.Questions), question.Key)

		if _, err := e.messenger.SendMessage(ctx, req.ChatID, question.Prompt); err != nil {
			return nil, e.fail(ctx, machine, req, fmt.Errorf("interview: sending prompt %q: %w", question.Key, err))
		}

		reply, err := e.replies.Await(ctx, match, e.timeout)
		if errors.Is(err, inbox.ErrTimeout) {
			_ = fire(ctx, machine, EventTimeout)
			e.metrics.IncrementTimedOut()
			e.notify(ctx, req.ChatID, msgTimedOut)
			return nil, ErrTimedOut
		}
		if err != nil {
			return nil, e.fail(ctx, machine, req, fmt.Errorf("interview: awaiting reply to %q: %w", question.Key, err))
		}

		if e.questionnaire.IsCancelKeyword(reply.Text) {
			_ = fire(ctx, machine, EventCancel)
			e.metrics.IncrementCancelled()
			e.notify(ctx, req.ChatID, msgCancelled)
			return nil, ErrCancelled
		}

		answer, err := e.capture(ctx, req.UserID, reply)
		if err != nil {
			_ = fire(ctx, machine, EventFail)
			e.metrics.IncrementFailed()
			log.Printf("[interview] User %d: %v", req.UserID, err)
			e.notify(ctx, req.ChatID, msgAttachmentFailed)
			return nil, err
		}
		rec.Set(question.Key, answer)
	}

	if err := fire(ctx, machine, EventComplete); err != nil {
		return nil, e.fail(ctx, machine, req, err)
	}
	return rec, nil
}

// capture turns a reply into an answer, storing its first attachment if any.
func (e *Engine) capture(ctx context.Context, userID int64, reply botport.Message) (record.Answer, error) {
	text := strings.TrimSpace(reply.Text)
	if !reply.HasAttachments() {
		return record.Plain(text), nil
	}

	att := reply.Attachments[0]
	data, err := e.messenger.FetchAttachment(ctx, att)
	if err != nil {
		return record.Answer{}, fmt.Errorf("interview: fetching attachment %s: %w", att.FileName, err)
	}
	path, err := e.attachments.Save(userID, e.now(), att.FileName, data)
	if err != nil {
		return record.Answer{}, fmt.Errorf("interview: saving attachment %s: %w", att.FileName, err)
	}
	e.metrics.IncrementAttachmentsSaved()
	log.Printf("[interview] User %d: attachment stored at %s (%d bytes)", userID, path, len(data))
	return record.WithAttachment(text, path), nil
}

func (e *Engine) fail(ctx context.Context, machine *fsm.FSM, req Request, err error) error {
	if fireErr := fire(ctx, machine, EventFail); fireErr != nil {
		log.Printf("[interview] User %d: %v", req.UserID, fireErr)
	}
	e.metrics.IncrementFailed()
	log.Printf("[interview] User %d: interview failed: %v", req.UserID, err)
	if ctx.Err() == nil {
		e.notify(ctx, req.ChatID, msgFailed)
	}
	return err
}

func (e *Engine) notify(ctx context.Context, chatID int64, text string) {
	if _, err := e.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("[interview] Failed to notify chat %d: %v", chatID, err)
	}
}

func (e *Engine) cancelHint() string {
	if len(e.questionnaire.CancelKeywords) == 0 {
		return ""
	}
	return e.questionnaire.CancelKeywords[0]
}
