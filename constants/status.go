package constants

// SessionStatus is the coarse state of a review session's current document.
type SessionStatus string

const (
	SessionEmpty       SessionStatus = "EMPTY"        // nothing uploaded
	SessionRunning     SessionStatus = "RUNNING"      // an action is in flight
	SessionOCROK       SessionStatus = "OCR_OK"       // pages and OCR text cached
	SessionLLMOK       SessionStatus = "LLM_OK"       // model answered and the JSON parsed
	SessionInvalidJSON SessionStatus = "INVALID_JSON" // model or user text is not valid JSON
	SessionFailed      SessionStatus = "FAILED"       // upstream failure, see last error
)
