package interview

const (
	StateAdmitted       = "admitted"
	StateAskingQuestion = "asking_question"
	StateCancelled      = "cancelled"
	StateTimedOut       = "timed_out"
	StateCompleted      = "completed"
	StateFailed         = "failed"
	StateRejected       = "rejected"
)

const (
	EventAsk      = "ask"
	EventCancel   = "cancel"
	EventTimeout  = "timeout"
	EventComplete = "complete"
	EventFail     = "fail"
)

const (
	msgAlreadyActive    = "A session is already in progress. Finish it or reply %q to abort it."
	msgIntro            = "Session debrief: %d questions. Reply %q at any time to abort."
	msgCancelled        = "Session cancelled. Nothing was saved."
	msgTimedOut         = "No reply received in time. Session aborted, nothing was saved."
	msgAttachmentFailed = "Could not store your attachment. Session aborted, nothing was saved."
	msgFailed           = "Something went wrong. Session aborted, nothing was saved."
	msgSaved            = "Session saved. Thanks!"
	msgSaveFailed       = "Session finished but could not be saved. Please try again later."
)
