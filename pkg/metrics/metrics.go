package metrics

import (
	"sync"
	"time"
)

// Metrics counts interview outcomes. A nil *Metrics ignores every call.
type Metrics struct {
	mu                  sync.RWMutex
	InterviewsStarted   int64
	InterviewsCompleted int64
	InterviewsCancelled int64
	InterviewsTimedOut  int64
	InterviewsRejected  int64
	InterviewsFailed    int64
	PersistenceFailures int64
	AttachmentsSaved    int64
	CommandsHandled     int64
	LastUpdateTime      time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		LastUpdateTime: time.Now(),
	}
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementStarted() {
	if m != nil {
		m.add(&m.InterviewsStarted)
	}
}

func (m *Metrics) IncrementCompleted() {
	if m != nil {
		m.add(&m.InterviewsCompleted)
	}
}

func (m *Metrics) IncrementCancelled() {
	if m != nil {
		m.add(&m.InterviewsCancelled)
	}
}

func (m *Metrics) IncrementTimedOut() {
	if m != nil {
		m.add(&m.InterviewsTimedOut)
	}
}

func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.add(&m.InterviewsRejected)
	}
}

func (m *Metrics) IncrementFailed() {
	if m != nil {
		m.add(&m.InterviewsFailed)
	}
}

func (m *Metrics) IncrementPersistenceFailure() {
	if m != nil {
		m.add(&m.PersistenceFailures)
	}
}

func (m *Metrics) IncrementAttachmentsSaved() {
	if m != nil {
		m.add(&m.AttachmentsSaved)
	}
}

func (m *Metrics) IncrementCommands() {
	if m != nil {
		m.add(&m.CommandsHandled)
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	InterviewsStarted   int64     `json:"interviews_started"`
	InterviewsCompleted int64     `json:"interviews_completed"`
	InterviewsCancelled int64     `json:"interviews_cancelled"`
	InterviewsTimedOut  int64     `json:"interviews_timed_out"`
	InterviewsRejected  int64     `json:"interviews_rejected"`
	InterviewsFailed    int64     `json:"interviews_failed"`
	PersistenceFailures int64     `json:"persistence_failures"`
	AttachmentsSaved    int64     `json:"attachments_saved"`
	CommandsHandled     int64     `json:"commands_handled"`
	LastUpdateTime      time.Time `json:"last_update_time"`
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		InterviewsStarted:   m.InterviewsStarted,
		InterviewsCompleted: m.InterviewsCompleted,
		InterviewsCancelled: m.InterviewsCancelled,
		InterviewsTimedOut:  m.InterviewsTimedOut,
		InterviewsRejected:  m.InterviewsRejected,
		InterviewsFailed:    m.InterviewsFailed,
		PersistenceFailures: m.PersistenceFailures,
		AttachmentsSaved:    m.AttachmentsSaved,
		CommandsHandled:     m.CommandsHandled,
		LastUpdateTime:      m.LastUpdateTime,
	}
}
