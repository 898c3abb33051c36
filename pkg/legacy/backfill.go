package legacy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
)

const (
	DefaultLocation = "Ancienne période"
	notApplicable   = "n/a"
)

// Backfill describes a block of sessions known only by their totals, spread evenly over
// consecutive days starting at Start.
type Backfill struct {
	UserID      int64
	UserName    string
	Sessions    int
	TotalResult float64
	TotalHours  float64
	Start       time.Time
	Location    string
}

type BatchAppender interface {
	AppendAll(ctx context.Context, recs ...record.InterviewRecord) error
}

func (b Backfill) Validate() error {
	if b.UserID == 0 {
		return fmt.Errorf("legacy: user id is required")
	}
	if b.Sessions <= 0 {
		return fmt.Errorf("legacy: sessions must be positive, got %d", b.Sessions)
	}
	if b.TotalHours < 0 {
		return fmt.Errorf("legacy: total hours must not be negative")
	}
	if b.Start.IsZero() {
		return fmt.Errorf("legacy: start date is required")
	}
	return nil
}

// Records builds the synthetic records. Only keys present in q are filled.
func (b Backfill) Records(q *config.Questionnaire, now time.Time) ([]record.InterviewRecord, error) {
	if q == nil {
		return nil, fmt.Errorf("legacy: questionnaire is nil")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	location := b.Location
	if location == "" {
		location = DefaultLocation
	}
	userName := b.UserName
	if userName == "" {
		userName = fmt.Sprintf("User %d", b.UserID)
	}

	perResult := b.TotalResult / float64(b.Sessions)
	perHours := b.TotalHours / float64(b.Sessions)

	recs := make([]record.InterviewRecord, 0, b.Sessions)
	for i := 0; i < b.Sessions; i++ {
		values := map[string]string{
			"lieu":           location,
			"buyin":          "0",
			"heures":         fmt.Sprintf("%.1f", perHours),
			"plan_respecte":  notApplicable,
			"tilt":           notApplicable,
			"patience":       notApplicable,
			q.Stats.Date:     b.Start.AddDate(0, 0, i).Format("2006-01-02"),
			q.Stats.Result:   fmt.Sprintf("%.2f", perResult),
			q.Stats.Errors:   "0",
			q.Stats.CallMuck: "0",
		}

		rec := record.New(b.UserID, userName, now.UTC())
		for _, question := range q.Questions {
			rec.Set(question.Key, record.Plain(values[question.Key]))
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// Apply appends the synthetic records to store in a single commit.
func (b Backfill) Apply(ctx context.Context, store BatchAppender, q *config.Questionnaire, now time.Time) (int, error) {
	recs, err := b.Records(q, now)
	if err != nil {
		return 0, err
	}
	if err := store.AppendAll(ctx, recs...); err != nil {
		return 0, fmt.Errorf("legacy: appending %d records: %w", len(recs), err)
	}
	log.Printf("[legacy] Added %d past sessions for %s (%d)", len(recs), recs[0].UserName, b.UserID)
	return len(recs), nil
}
