package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/telegram-session-log/pkg/bot/fakeadapter"
	"github.com/dkalashnik/telegram-session-log/pkg/bot/inbox"
	"github.com/dkalashnik/telegram-session-log/pkg/chart"
	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/interview"
	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
	"github.com/dkalashnik/telegram-session-log/pkg/session"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
	"github.com/dkalashnik/telegram-session-log/pkg/storage"
)

const (
	userID = int64(7)
	chatID = int64(70)
)

type fixture struct {
	handler     *Handler
	bot         *fakeadapter.FakeAdapter
	inbox       *inbox.Inbox
	store       *storage.FileStore
	attachments *storage.AttachmentStore
	questions   *config.Questionnaire
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	q := config.DefaultQuestionnaire()

	store, err := storage.NewFileStore(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	attachments, err := storage.NewAttachmentStore(filepath.Join(dir, "attachments"))
	require.NoError(t, err)
	charts, err := chart.NewRenderer(filepath.Join(dir, "charts"), q.ResultUnit)
	require.NoError(t, err)

	f := &fixture{
		bot:         &fakeadapter.FakeAdapter{},
		inbox:       inbox.New(),
		store:       store,
		attachments: attachments,
		questions:   q,
	}
	m := metrics.NewMetrics()
	engine, err := interview.NewEngine(q, interview.Dependencies{
		Sessions:    session.NewCoordinator(),
		Replies:     f.inbox,
		Messenger:   f.bot,
		Attachments: attachments,
		Records:     store,
		Metrics:     m,
	}, interview.WithReplyTimeout(2*time.Second))
	require.NoError(t, err)
	aggregator, err := stats.NewAggregator(store, q)
	require.NoError(t, err)

	f.handler, err = NewHandler(q, Dependencies{
		Messenger:  f.bot,
		Replies:    f.inbox,
		Interviews: engine,
		Reports:    aggregator,
		Charts:     charts,
		Records:    store,
		Metrics:    m,
	})
	require.NoError(t, err)
	return f
}

func message(text string) botport.Message {
	return botport.Message{AuthorID: userID, AuthorName: "alice", ChatID: chatID, Text: text}
}

// answer waits until the interview is waiting for a reply, then dispatches text.
func (f *fixture) answer(t *testing.T, text string) {
	t.Helper()
	require.Eventually(t, func() bool { return f.inbox.Pending() == 1 }, 2*time.Second, time.Millisecond)
	f.handler.Dispatch(context.Background(), message(text))
}

func (f *fixture) seed(t *testing.T, recs ...*record.InterviewRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, f.store.AppendAndCommit(context.Background(), rec))
	}
}

func seeded(user int64, name, date, result string) *record.InterviewRecord {
	rec := record.New(user, name, time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC))
	rec.Set("date", record.Plain(date))
	rec.Set("resultat", record.Plain(result))
	rec.Set("erreur", record.Plain("1"))
	rec.Set("call_muck", record.Plain("0"))
	return rec
}

func TestParseCommand(t *testing.T) {
	name, args, ok := ParseCommand("/Stats@session_log_bot all")
	require.True(t, ok)
	assert.Equal(t, "stats", name)
	assert.Equal(t, []string{"all"}, args)

	_, _, ok = ParseCommand("hello")
	assert.False(t, ok)
	_, _, ok = ParseCommand("/")
	assert.False(t, ok)
}

func TestSessionCommandRunsFullInterview(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/session"))

	for _, q := range f.questions.Questions {
		switch q.Key {
		case "resultat":
			f.answer(t, "+120")
		case "date":
			f.answer(t, "2024-06-01")
		default:
			// Unknown slash words are answers while the interview waits.
			f.answer(t, "/shrug")
		}
	}
	f.handler.Wait()

	recs, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "+120", recs[0].Text("resultat"))
	assert.Equal(t, "/shrug", recs[0].Text("lieu"))
	assert.NotContains(t, f.bot.Texts(chatID), msgUnknownCommand)
}

func TestKnownCommandsRunDuringInterview(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/session"))
	require.Eventually(t, func() bool { return f.inbox.Pending() == 1 }, 2*time.Second, time.Millisecond)

	f.handler.Dispatch(context.Background(), message("/ping"))
	f.handler.Dispatch(context.Background(), message("/session"))
	require.Eventually(t, func() bool {
		texts := f.bot.Texts(chatID)
		pong, conflict := false, false
		for _, text := range texts {
			pong = pong || text == msgPong
			conflict = conflict || strings.Contains(text, "already in progress")
		}
		return pong && conflict
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, f.inbox.Pending())

	for _, q := range f.questions.Questions {
		if q.Key == "date" {
			f.answer(t, "2024-06-01")
			continue
		}
		f.answer(t, "1")
	}
	f.handler.Wait()

	recs, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2024-06-01", recs[0].Text("date"))
	assert.Equal(t, "1", recs[0].Text("lieu"))
}

func TestPingAndHelp(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/ping"))
	f.handler.Wait()
	f.handler.Dispatch(context.Background(), message("/help"))
	f.handler.Wait()
	f.handler.Dispatch(context.Background(), message("/unknown"))
	f.handler.Dispatch(context.Background(), message("just chatting"))
	f.handler.Wait()

	texts := f.bot.Texts(chatID)
	require.Len(t, texts, 3)
	assert.Equal(t, msgPong, texts[0])
	assert.Contains(t, texts[1], "/session")
	assert.Equal(t, msgUnknownCommand, texts[2])
}

func TestLastSendsSummaryAndExistingAttachments(t *testing.T) {
	f := newFixture(t)
	path, err := f.attachments.Save(userID, time.Unix(1, 0), "hand.png", []byte("png"))
	require.NoError(t, err)

	older := seeded(userID, "alice", "2024-06-01", "+5")
	latest := seeded(userID, "alice", "2024-06-02", "-7")
	latest.Set("main_cle", record.WithAttachment("AK", path))
	latest.Set("action_corrective", record.WithAttachment("", filepath.Join(f.attachments.Dir(), "deleted.png")))
	f.seed(t, older, latest, seeded(99, "bob", "2024-06-03", "+1"))

	f.handler.Dispatch(context.Background(), message("/derniere_session"))
	f.handler.Wait()

	texts := f.bot.Texts(chatID)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Result: -7\n")
	assert.Contains(t, texts[0], "Key hand: AK [attachment]")

	files := f.bot.CallsFor("send_file")
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
}

func TestLastWithoutRecords(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/last"))
	f.handler.Wait()
	assert.Equal(t, []string{msgNoRecord}, f.bot.Texts(chatID))
}

func TestExportSendsStoreFileOrReportsNothing(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/export"))
	f.handler.Wait()
	assert.Equal(t, []string{msgNothingToSend}, f.bot.Texts(chatID))

	f.seed(t, seeded(userID, "alice", "2024-06-01", "+5"))
	f.handler.Dispatch(context.Background(), message("/export_sessions"))
	f.handler.Wait()

	call := f.bot.LastCall("send_file")
	require.NotNil(t, call)
	assert.Equal(t, f.store.Path(), call.Path)
}

func TestStatsSendsSummaryAndChart(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		seeded(userID, "alice", "2024-06-02", "-50"),
		seeded(userID, "alice", "2024-06-01", "+120"),
		seeded(99, "bob", "2024-06-01", "+1"),
	)

	f.handler.Dispatch(context.Background(), message("/stats"))
	f.handler.Wait()

	texts := f.bot.Texts(chatID)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Player: alice")
	assert.Contains(t, texts[0], "Total result: 70.00 DTS")

	files := f.bot.CallsFor("send_file")
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Path, "stats_7.png"))
	_, err := os.Stat(files[0].Path)
	assert.NoError(t, err)
}

func TestStatsAllReportsEveryPlayer(t *testing.T) {
	f := newFixture(t)
	bobbyRecord := seeded(99, "bob", "2024-06-01", "n/a")
	f.seed(t, seeded(userID, "alice", "2024-06-01", "+1"), bobbyRecord)

	f.handler.Dispatch(context.Background(), message("/stats all"))
	f.handler.Wait()

	texts := f.bot.Texts(chatID)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Player: alice")
	assert.Equal(t, "No valid data for bob.", texts[1])
	assert.Len(t, f.bot.CallsFor("send_file"), 1)
}

func TestStatsWithoutData(t *testing.T) {
	f := newFixture(t)
	f.handler.Dispatch(context.Background(), message("/stats all"))
	f.handler.Wait()
	assert.Equal(t, []string{msgNoData}, f.bot.Texts(chatID))

	f.handler.Dispatch(context.Background(), message("/stats"))
	f.handler.Wait()
	assert.Equal(t, "No valid data for alice.", f.bot.Texts(chatID)[1])
}
