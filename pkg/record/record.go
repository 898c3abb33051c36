package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	keyUserID       = "user_id"
	keyUserName     = "user_name"
	keyCreatedAt    = "created_at"
	keyLegacyCreate = "created_at_utc"
)

// Answer is either plain text or text with an attachment saved on disk.
type Answer struct {
	Text           string
	AttachmentPath string
}

// Plain builds a text-only answer.
func Plain(text string) Answer {
	return Answer{Text: text}
}

// WithAttachment builds a structured answer pointing at a saved file.
func WithAttachment(text, path string) Answer {
	return Answer{Text: text, AttachmentPath: path}
}

func (a Answer) HasAttachment() bool {
	return a.AttachmentPath != ""
}

type structuredAnswer struct {
	Text           string `json:"text"`
	AttachmentPath string `json:"attachment_path"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if !a.HasAttachment() {
		return json.Marshal(a.Text)
	}
	return json.Marshal(structuredAnswer{Text: a.Text, AttachmentPath: a.AttachmentPath})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = Answer{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Plain(s)
		return nil
	case data[0] == '{':
		var s structuredAnswer
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = WithAttachment(s.Text, s.AttachmentPath)
		return nil
	default:
		// Numbers and booleans written by hand-edited files keep their literal form.
		*a = Plain(string(data))
		return nil
	}
}

// InterviewRecord is one completed interview. Records are immutable once committed to the store.
type InterviewRecord struct {
	UserID    int64
	UserName  string
	CreatedAt time.Time
	Answers   map[string]Answer
}

func New(userID int64, userName string, createdAt time.Time) *InterviewRecord {
	return &InterviewRecord{
		UserID:    userID,
		UserName:  userName,
		CreatedAt: createdAt,
		Answers:   make(map[string]Answer),
	}
}

func (r *InterviewRecord) Set(key string, answer Answer) {
	if r.Answers == nil {
		r.Answers = make(map[string]Answer)
	}
	r.Answers[key] = answer
}

func (r InterviewRecord) Get(key string) (Answer, bool) {
	a, ok := r.Answers[key]
	return a, ok
}

// Text returns the text of the answer stored under key, or "" when absent.
func (r InterviewRecord) Text(key string) string {
	return r.Answers[key].Text
}

// Keys returns the answer keys in sorted order.
func (r InterviewRecord) Keys() []string {
	keys := make([]string, 0, len(r.Answers))
	for k := range r.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r InterviewRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Answers)+3)
	for k, v := range r.Answers {
		out[k] = v
	}
	out[keyUserID] = r.UserID
	out[keyUserName] = r.UserName
	out[keyCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

func (r *InterviewRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	rec := InterviewRecord{Answers: make(map[string]Answer, len(raw))}
	for key, value := range raw {
		switch key {
		case keyUserID:
			id, err := decodeUserID(value)
			if err != nil {
				return fmt.Errorf("decode record %s: %w", key, err)
			}
			rec.UserID = id
		case keyUserName:
			var name string
			if err := json.Unmarshal(value, &name); err != nil {
				return fmt.Errorf("decode record %s: %w", key, err)
			}
			rec.UserName = name
		case keyCreatedAt, keyLegacyCreate:
			if !rec.CreatedAt.IsZero() && key == keyLegacyCreate {
				continue
			}
			rec.CreatedAt = decodeTime(value)
		default:
			var a Answer
			if err := a.UnmarshalJSON(value); err != nil {
				return fmt.Errorf("decode record answer %s: %w", key, err)
			}
			rec.Answers[key] = a
		}
	}

	*r = rec
	return nil
}

func decodeUserID(value json.RawMessage) (int64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("unsupported user id %s", string(value))
	}
	return strconv.ParseInt(n.String(), 10, 64)
}

// decodeTime accepts RFC 3339 timestamps; unparsable values are tolerated as the zero time.
func decodeTime(value json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
