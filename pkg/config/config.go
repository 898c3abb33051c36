package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimeoutSeconds = 180
	DefaultResultUnit     = "DTS"
)

type Questionnaire struct {
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	CancelKeywords []string    `yaml:"cancel_keywords"`
	ResultUnit     string      `yaml:"result_unit"`
	Questions      []Question  `yaml:"questions"`
	Stats          StatsFields `yaml:"stats"`
}

type Question struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label,omitempty"`
	Prompt string `yaml:"prompt"`
}

// DisplayLabel is the short name used when echoing an answer back.
func (q Question) DisplayLabel() string {
	if q.Label != "" {
		return q.Label
	}
	return q.Key
}

// StatsFields names the question keys the aggregator reads.
type StatsFields struct {
	Date     string `yaml:"date"`
	Result   string `yaml:"result"`
	Errors   string `yaml:"errors"`
	CallMuck string `yaml:"call_muck"`
}

// Timeout returns the per-question reply bound.
func (q *Questionnaire) Timeout() time.Duration {
	return time.Duration(q.TimeoutSeconds) * time.Second
}

// Keys returns the question keys in prompt order.
func (q *Questionnaire) Keys() []string {
	keys := make([]string, 0, len(q.Questions))
	for _, question := range q.Questions {
		keys = append(keys, question.Key)
	}
	return keys
}

// HasKey reports whether key belongs to the question vocabulary.
func (q *Questionnaire) HasKey(key string) bool {
	for _, question := range q.Questions {
		if question.Key == key {
			return true
		}
	}
	return false
}

// IsCancelKeyword reports whether text, trimmed and case-folded, is one of the cancel keywords.
func (q *Questionnaire) IsCancelKeyword(text string) bool {
	text = strings.TrimSpace(text)
	for _, kw := range q.CancelKeywords {
		if strings.EqualFold(text, kw) {
			return true
		}
	}
	return false
}

// applyDefaults fills optional settings left empty in the file.
func (q *Questionnaire) applyDefaults() {
	if q.TimeoutSeconds == 0 {
		q.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if len(q.CancelKeywords) == 0 {
		q.CancelKeywords = []string{"stop", "cancel", "annuler"}
	}
	if q.ResultUnit == "" {
		q.ResultUnit = DefaultResultUnit
	}
	if q.Stats == (StatsFields{}) {
		q.Stats = StatsFields{Date: "date", Result: "resultat", Errors: "erreur", CallMuck: "call_muck"}
	}
}

func (q *Questionnaire) Validate() error {
	if q == nil {
		return fmt.Errorf("config is nil")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("config validation failed: no questions defined")
	}
	if q.TimeoutSeconds <= 0 {
		return fmt.Errorf("config validation failed: timeout_seconds must be positive, got %d", q.TimeoutSeconds)
	}

	uniqueKeys := make(map[string]bool)
	for i, question := range q.Questions {
		if question.Key == "" {
			return fmt.Errorf("config validation failed: question #%d has no key", i+1)
		}
		if question.Prompt == "" {
			return fmt.Errorf("config validation failed: question '%s' has no prompt", question.Key)
		}
		switch question.Key {
		case "user_id", "user_name", "created_at", "created_at_utc":
			return fmt.Errorf("config validation failed: question key '%s' is reserved", question.Key)
		}
		if uniqueKeys[question.Key] {
			return fmt.Errorf("config validation failed: duplicate key '%s' found (question #%d)", question.Key, i+1)
		}
		uniqueKeys[question.Key] = true
	}

	for _, kw := range q.CancelKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("config validation failed: empty cancel keyword")
		}
	}

	for field, key := range map[string]string{
		"date":      q.Stats.Date,
		"result":    q.Stats.Result,
		"errors":    q.Stats.Errors,
		"call_muck": q.Stats.CallMuck,
	} {
		if key == "" {
			return fmt.Errorf("config validation failed: stats field '%s' is not mapped", field)
		}
		if !uniqueKeys[key] {
			return fmt.Errorf("config validation failed: stats field '%s' refers to unknown question key '%s'", field, key)
		}
	}
	return nil
}

// DefaultQuestionnaire is the poker session debrief used when no file is configured.
func DefaultQuestionnaire() *Questionnaire {
	q := &Questionnaire{
		Questions: []Question{
			{Key: "date", Label: "Date", Prompt: "Session date? (YYYY-MM-DD)"},
			{Key: "lieu", Label: "Location", Prompt: "Where did you play?"},
			{Key: "resultat", Label: "Result", Prompt: "Net result (DTS)? (e.g. +120 or -50)"},
			{Key: "buyin", Label: "Buy-in", Prompt: "Buy-in?"},
			{Key: "heures", Label: "Hours", Prompt: "Number of hours?"},
			{Key: "plan_respecte", Label: "Plan followed", Prompt: "How well did you follow your plan? (out of 10)"},
			{Key: "tilt", Label: "Tilt", Prompt: "Tilt level? (out of 10)"},
			{Key: "main_cle", Label: "Key hand", Prompt: "Key hands (describe the hand, you can also attach a file or a link)"},
			{Key: "erreur", Label: "Big mistakes", Prompt: "Number of big mistakes?"},
			{Key: "call_muck", Label: "Call mucks", Prompt: "Number of call mucks?"},
			{Key: "patience", Label: "Took my time", Prompt: "Did you take your time? yes/no"},
			{Key: "points_positifs", Label: "Positive point", Prompt: "One positive point?"},
			{Key: "action_corrective", Label: "Corrective action", Prompt: "Corrective action for next time?"},
		},
	}
	q.applyDefaults()
	return q
}
