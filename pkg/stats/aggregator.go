package stats

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"

	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
)

// Series is the chart input: one point per surviving record, in date order.
type Series struct {
	Dates      []string  `json:"dates"`
	Cumulative []float64 `json:"cumulative_results"`
	Errors     []int     `json:"error_counts"`
	CallMucks  []int     `json:"call_muck_counts"`
}

func (s Series) Len() int {
	return len(s.Dates)
}

// Report aggregates one user's records.
type Report struct {
	UserID           int64   `json:"user_id"`
	UserName         string  `json:"user_name"`
	Unit             string  `json:"unit"`
	Sessions         int     `json:"sessions"`
	Total            float64 `json:"total_result"`
	AverageResult    float64 `json:"average_result"`
	AverageErrors    float64 `json:"average_errors"`
	ErrorSamples     int     `json:"error_samples"`
	AverageCallMucks float64 `json:"average_call_mucks"`
	CallMuckSamples  int     `json:"call_muck_samples"`
	Series           Series  `json:"series"`
}

// Empty reports whether no record of the user had a usable result.
func (r Report) Empty() bool {
	return r.Sessions == 0
}

type Loader interface {
	Load(ctx context.Context) ([]record.InterviewRecord, error)
}

type Aggregator struct {
	records Loader
	fields  config.StatsFields
	unit    string
	unitRe  *regexp.Regexp
}

func NewAggregator(records Loader, q *config.Questionnaire) (*Aggregator, error) {
	if records == nil {
		return nil, fmt.Errorf("stats: record loader is nil")
	}
	if q == nil {
		return nil, fmt.Errorf("stats: questionnaire is nil")
	}
	return &Aggregator{
		records: records,
		fields:  q.Stats,
		unit:    q.ResultUnit,
		unitRe:  unitPattern(q.ResultUnit),
	}, nil
}

// Compute loads the store and aggregates userID's records.
func (a *Aggregator) Compute(ctx context.Context, userID int64) (Report, error) {
	recs, err := a.records.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats: loading records: %w", err)
	}
	var own []record.InterviewRecord
	for _, rec := range recs {
		if rec.UserID == userID {
			own = append(own, rec)
		}
	}
	return a.Build(userID, own), nil
}

// ComputeAll returns one report per user, in the order users first appear in the store.
func (a *Aggregator) ComputeAll(ctx context.Context) ([]Report, error) {
	recs, err := a.records.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: loading records: %w", err)
	}

	var order []int64
	byUser := make(map[int64][]record.InterviewRecord)
	for _, rec := range recs {
		if _, seen := byUser[rec.UserID]; !seen {
			order = append(order, rec.UserID)
		}
		byUser[rec.UserID] = append(byUser[rec.UserID], rec)
	}

	reports := make([]Report, 0, len(order))
	for _, userID := range order {
		reports = append(reports, a.Build(userID, byUser[userID]))
	}
	log.Printf("[stats] Computed reports for %d users from %d records", len(reports), len(recs))
	return reports, nil
}

// Build aggregates recs, which must all belong to userID. It does not modify recs.
func (a *Aggregator) Build(userID int64, recs []record.InterviewRecord) Report {
	report := Report{
		UserID:   userID,
		UserName: fmt.Sprintf("User %d", userID),
		Unit:     a.unit,
	}
	if len(recs) > 0 && recs[0].UserName != "" {
		report.UserName = recs[0].UserName
	}

	valid := make([]record.InterviewRecord, 0, len(recs))
	for _, rec := range recs {
		answer, ok := rec.Get(a.fields.Result)
		if !ok || IsNotApplicable(answer.Text) {
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return report
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Text(a.fields.Date) < valid[j].Text(a.fields.Date)
	})

	var running float64
	var errorSum, callMuckSum int
	for _, rec := range valid {
		result, ok := parseResult(rec.Text(a.fields.Result), a.unitRe)
		if !ok {
			log.Printf("[stats] User %d: unparsable result %q counted as 0", userID, rec.Text(a.fields.Result))
		}
		running += result

		date := rec.Text(a.fields.Date)
		if date == "" {
			date = "n/a"
		}

		errCount, errOK := ParseCount(rec.Text(a.fields.Errors))
		if errOK {
			errorSum += errCount
			report.ErrorSamples++
		}
		muckCount, muckOK := ParseCount(rec.Text(a.fields.CallMuck))
		if muckOK {
			callMuckSum += muckCount
			report.CallMuckSamples++
		}

		report.Series.Dates = append(report.Series.Dates, date)
		report.Series.Cumulative = append(report.Series.Cumulative, running)
		report.Series.Errors = append(report.Series.Errors, errCount)
		report.Series.CallMucks = append(report.Series.CallMucks, muckCount)
	}

	report.Sessions = len(valid)
	report.Total = running
	report.AverageResult = running / float64(len(valid))
	if report.ErrorSamples > 0 {
		report.AverageErrors = float64(errorSum) / float64(report.ErrorSamples)
	}
	if report.CallMuckSamples > 0 {
		report.AverageCallMucks = float64(callMuckSum) / float64(report.CallMuckSamples)
	}
	return report
}
