package interview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/telegram-session-log/pkg/bot/fakeadapter"
	"github.com/dkalashnik/telegram-session-log/pkg/bot/inbox"
	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
	"github.com/dkalashnik/telegram-session-log/pkg/session"
	"github.com/dkalashnik/telegram-session-log/pkg/storage"
)

func testQuestionnaire() *config.Questionnaire {
	return &config.Questionnaire{
		TimeoutSeconds: 180,
		CancelKeywords: []string{"stop", "cancel", "annuler"},
		ResultUnit:     "DTS",
		Questions: []config.Question{
			{Key: "date", Prompt: "Date?"},
			{Key: "resultat", Prompt: "Result?"},
			{Key: "erreur", Prompt: "Errors?"},
			{Key: "call_muck", Prompt: "Call mucks?"},
		},
		Stats: config.StatsFields{Date: "date", Result: "resultat", Errors: "erreur", CallMuck: "call_muck"},
	}
}

type harness struct {
	engine      *Engine
	inbox       *inbox.Inbox
	bot         *fakeadapter.FakeAdapter
	sessions    *session.Coordinator
	store       *storage.FileStore
	attachments *storage.AttachmentStore
	metrics     *metrics.Metrics
}

func newHarness(t *testing.T, timeout time.Duration, records RecordAppender) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	attachments, err := storage.NewAttachmentStore(filepath.Join(dir, "attachments"))
	require.NoError(t, err)

	h := &harness{
		inbox:       inbox.New(),
		bot:         &fakeadapter.FakeAdapter{},
		sessions:    session.NewCoordinator(),
		store:       store,
		attachments: attachments,
		metrics:     metrics.NewMetrics(),
	}
	if records == nil {
		records = store
	}
	h.engine, err = NewEngine(testQuestionnaire(), Dependencies{
		Sessions:    h.sessions,
		Replies:     h.inbox,
		Messenger:   h.bot,
		Attachments: attachments,
		Records:     records,
		Metrics:     h.metrics,
	}, WithReplyTimeout(timeout))
	require.NoError(t, err)
	return h
}

// script delivers msgs one by one, each to the next waiter registered for its author.
func (h *harness) script(t *testing.T, msgs ...botport.Message) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, msg := range msgs {
			deadline := time.Now().Add(2 * time.Second)
			for !h.inbox.Deliver(msg) {
				if time.Now().After(deadline) {
					t.Errorf("reply %q was never consumed", msg.Text)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()
	return done
}

func replies(userID, chatID int64, texts ...string) []botport.Message {
	out := make([]botport.Message, 0, len(texts))
	for _, text := range texts {
		out = append(out, botport.Message{AuthorID: userID, ChatID: chatID, Text: text})
	}
	return out
}

var alice = Request{UserID: 7, UserName: "alice", ChatID: 70}

func TestRunCompletesAndPersists(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	done := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01", " +120 DTS ", "1", "0")...)

	rec, err := h.engine.Run(context.Background(), alice)
	require.NoError(t, err)
	<-done

	assert.Equal(t, "+120 DTS", rec.Text("resultat"))
	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, "alice", rec.UserName)

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "2024-06-01", stored[0].Text("date"))
	assert.Equal(t, "0", stored[0].Text("call_muck"))

	assert.Zero(t, h.sessions.Active())
	texts := h.bot.Texts(alice.ChatID)
	assert.Contains(t, texts, "Date?")
	assert.Contains(t, texts, "Call mucks?")
	assert.Equal(t, msgSaved, texts[len(texts)-1])

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.InterviewsStarted)
	assert.Equal(t, int64(1), snap.InterviewsCompleted)
}

func TestRunTimeoutDiscardsPartialRecordAndReleases(t *testing.T) {
	h := newHarness(t, 100*time.Millisecond, nil)
	done := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01")...)

	_, err := h.engine.Run(context.Background(), alice)
	require.ErrorIs(t, err, ErrTimedOut)
	<-done

	assert.False(t, h.store.Exists(), "no partial record may be persisted")
	assert.True(t, h.sessions.TryAcquire(alice.UserID), "user must be able to start again right away")
	h.sessions.Release(alice.UserID)

	texts := h.bot.Texts(alice.ChatID)
	assert.Equal(t, msgTimedOut, texts[len(texts)-1])
	assert.Equal(t, int64(1), h.metrics.Snapshot().InterviewsTimedOut)
}

func TestRunCancelKeywordIsTrimmedAndCaseInsensitive(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	done := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01", " STOP ")...)

	_, err := h.engine.Run(context.Background(), alice)
	require.ErrorIs(t, err, ErrCancelled)
	<-done

	assert.False(t, h.store.Exists())
	assert.Zero(t, h.sessions.Active())
	texts := h.bot.Texts(alice.ChatID)
	assert.Equal(t, msgCancelled, texts[len(texts)-1])
	assert.NotContains(t, texts, "Errors?", "no further question after cancellation")
}

func TestRunStoresAttachmentAsStructuredAnswer(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	payload := []byte("\x89PNG fake image")
	h.bot.AddFile("file-1", payload)

	msgs := replies(alice.UserID, alice.ChatID, "2024-06-01", "+10", "2", "1")
	msgs[2].Attachments = []botport.Attachment{{FileID: "file-1", FileName: "hand.png", Size: int64(len(payload))}}
	done := h.script(t, msgs...)

	rec, err := h.engine.Run(context.Background(), alice)
	require.NoError(t, err)
	<-done

	answer, ok := rec.Get("erreur")
	require.True(t, ok)
	require.True(t, answer.HasAttachment())
	assert.Equal(t, "2", answer.Text)
	assert.Equal(t, h.attachments.Dir(), filepath.Dir(answer.AttachmentPath))
	assert.True(t, strings.HasPrefix(filepath.Base(answer.AttachmentPath), "7_"))
	assert.True(t, strings.HasSuffix(answer.AttachmentPath, "_hand.png"))

	saved, err := os.ReadFile(answer.AttachmentPath)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	storedAnswer, _ := stored[0].Get("erreur")
	assert.Equal(t, answer, storedAnswer)
}

func TestRunAttachmentFailureAbortsAndReleases(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	msgs := replies(alice.UserID, alice.ChatID, "2024-06-01")
	msgs[0].Attachments = []botport.Attachment{{FileID: "missing", FileName: "x.png"}}
	done := h.script(t, msgs...)

	_, err := h.engine.Run(context.Background(), alice)
	require.Error(t, err)
	assert.True(t, botport.IsCode(err, botport.CodeNotFound))
	<-done

	assert.False(t, h.store.Exists())
	assert.Zero(t, h.sessions.Active())
	assert.Equal(t, int64(1), h.metrics.Snapshot().InterviewsFailed)
}

func TestRunRejectsSecondSessionWithoutSideEffects(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	require.True(t, h.sessions.TryAcquire(alice.UserID))

	_, err := h.engine.Run(context.Background(), alice)
	require.ErrorIs(t, err, ErrSessionActive)

	_, held := h.sessions.Lookup(alice.UserID)
	assert.True(t, held, "rejection must not release the running session")
	texts := h.bot.Texts(alice.ChatID)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "already in progress")
	assert.Zero(t, h.inbox.Pending())
	assert.Equal(t, int64(1), h.metrics.Snapshot().InterviewsRejected)
}

type failingAppender struct {
	sessions *session.Coordinator
	userID   int64
	heldOnce bool
}

func (f *failingAppender) AppendAndCommit(context.Context, *record.InterviewRecord) error {
	_, f.heldOnce = f.sessions.Lookup(f.userID)
	return errors.New("disk full")
}

func TestRunPersistenceFailureStillReleasesFirst(t *testing.T) {
	appender := &failingAppender{userID: alice.UserID}
	h := newHarness(t, time.Second, appender)
	appender.sessions = h.sessions
	done := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01", "+1", "0", "0")...)

	_, err := h.engine.Run(context.Background(), alice)
	require.ErrorIs(t, err, storage.ErrPersistence)
	<-done

	assert.False(t, appender.heldOnce, "exclusivity must be released before persistence")
	assert.Zero(t, h.sessions.Active())
	texts := h.bot.Texts(alice.ChatID)
	assert.Equal(t, msgSaveFailed, texts[len(texts)-1])
	assert.Equal(t, int64(1), h.metrics.Snapshot().PersistenceFailures)
}

func TestRunAcceptsEmptyReplyVerbatim(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	done := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01", "", "  ", "0")...)

	rec, err := h.engine.Run(context.Background(), alice)
	require.NoError(t, err)
	<-done

	answer, ok := rec.Get("resultat")
	require.True(t, ok)
	assert.Equal(t, record.Plain(""), answer)
	assert.Equal(t, "", rec.Text("erreur"))
}

func TestRunIgnoresOtherUsersAndChats(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	bob := Request{UserID: 8, UserName: "bob", ChatID: 80}

	var wg sync.WaitGroup
	results := make(map[int64]*record.InterviewRecord)
	var mu sync.Mutex
	for _, req := range []Request{alice, bob} {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			rec, err := h.engine.Run(context.Background(), req)
			assert.NoError(t, err)
			mu.Lock()
			results[req.UserID] = rec
			mu.Unlock()
		}(req)
	}

	doneA := h.script(t, replies(alice.UserID, alice.ChatID, "2024-06-01", "+1", "0", "0")...)
	doneB := h.script(t, replies(bob.UserID, bob.ChatID, "2024-06-02", "-1", "1", "1")...)
	wg.Wait()
	<-doneA
	<-doneB

	require.NotNil(t, results[alice.UserID])
	require.NotNil(t, results[bob.UserID])
	assert.Equal(t, "+1", results[alice.UserID].Text("resultat"))
	assert.Equal(t, "-1", results[bob.UserID].Text("resultat"))

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Zero(t, h.sessions.Active())
}

func TestRunAbortsWhenContextCancelled(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return h.inbox.Pending() == 1 }, time.Second, time.Millisecond)
		cancel()
	}()

	_, err := h.engine.Run(ctx, alice)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.sessions.Active())
	assert.False(t, h.store.Exists())
}

func TestNewEngineValidatesInputs(t *testing.T) {
	_, err := NewEngine(nil, Dependencies{})
	assert.Error(t, err)

	_, err = NewEngine(testQuestionnaire(), Dependencies{})
	assert.Error(t, err)
}
