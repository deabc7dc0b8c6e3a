// Package session keeps the per-browser review state between requests.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/document"
	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

var ErrNoPage = errors.New("page not cached")

// State is one review session. Actions hold the action lock for their whole
// run; reads take a snapshot under the field lock and never wait on an action.
type State struct {
	ID string

	action sync.Mutex

	mu        sync.Mutex
	identity  document.Identity
	prep      *pipeline.Prepared
	text      string
	valid     bool
	warnings  []string
	summary   invoice.Summary
	model     string
	lastErr   string
	errCode   string
	status    constants.SessionStatus
	updatedAt time.Time
	inflight  context.CancelFunc
	gen       uint64
	lastSeen  time.Time
}

func NewState(id string) *State {
	now := time.Now()
	return &State{ID: id, status: constants.SessionEmpty, updatedAt: now, lastSeen: now}
}

// Lock serializes user actions on the session.
func (s *State) Lock() { s.action.Lock() }

func (s *State) Unlock() { s.action.Unlock() }

// Reset drops the document, OCR text and JSON. It does not cancel work in
// flight; callers do that first.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = document.Identity{}
	s.prep = nil
	s.text = ""
	s.valid = false
	s.warnings = nil
	s.summary = invoice.Summary{}
	s.model = ""
	s.lastErr = ""
	s.errCode = ""
	s.status = constants.SessionEmpty
	s.updatedAt = time.Now()
}

// IsNewFile reports whether id differs from the cached upload.
func (s *State) IsNewFile(id document.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prep == nil || s.identity != id
}

// HasResult reports whether the cached upload already went through the model.
func (s *State) HasResult() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == constants.SessionLLMOK || s.status == constants.SessionInvalidJSON
}

func (s *State) SetRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = constants.SessionRunning
	s.lastErr = ""
	s.errCode = ""
	s.updatedAt = time.Now()
}

// SetPrepared caches the pages and OCR text of a fresh upload.
func (s *State) SetPrepared(p *pipeline.Prepared) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prep = p
	if p != nil && p.Document != nil {
		s.identity = p.Document.Identity
	}
	s.status = constants.SessionOCROK
	s.updatedAt = time.Now()
}

// Prepared returns the cached pages and OCR text, or nil.
func (s *State) Prepared() *pipeline.Prepared {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prep
}

// SetExtraction replaces the JSON with a fresh model answer.
func (s *State) SetExtraction(x pipeline.Extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = x.Completion.Model
	s.applyLocked(x.Repair, x.Warnings, x.Summary)
}

// SetEdited stores user-edited text as typed, valid or not.
func (s *State) SetEdited(r llm.Repaired) {
	var (
		warnings []string
		summary  invoice.Summary
	)
	if r.Valid {
		data := []byte(r.Text)
		warnings = llm.SchemaWarnings(data)
		if records, err := invoice.Parse(data); err == nil {
			warnings = append(warnings, invoice.Lint(records)...)
		}
		summary = invoice.Summarize(data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(r, warnings, summary)
}

func (s *State) applyLocked(r llm.Repaired, warnings []string, summary invoice.Summary) {
	s.text = r.Text
	s.valid = r.Valid
	s.warnings = warnings
	s.summary = summary
	s.lastErr = ""
	s.errCode = ""
	if r.Valid {
		s.status = constants.SessionLLMOK
	} else {
		s.status = constants.SessionInvalidJSON
		s.errCode = "INVALID_JSON"
		if r.Err != nil {
			s.lastErr = r.Err.Error()
		}
	}
	s.updatedAt = time.Now()
}

// SetError records a failed action. Cached pages and JSON are kept.
func (s *State) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
	s.errCode = common.ErrorCode(err)
	s.status = constants.SessionFailed
	s.updatedAt = time.Now()
}

// Text returns the current JSON text and whether it parses.
func (s *State) Text() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.valid
}

// Page returns cached page n (1-based) and its content type.
func (s *State) Page(n int) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prep == nil || s.prep.Document == nil || n < 1 || n > s.prep.Document.PageCount() {
		return nil, "", ErrNoPage
	}
	return s.prep.Document.Pages[n-1], s.prep.Document.PageMIME, nil
}

// BeginRequest cancels any request in flight and registers cancel as the new
// one. The returned func clears the registration if it is still current.
func (s *State) BeginRequest(cancel context.CancelFunc) func() {
	s.mu.Lock()
	prev := s.inflight
	s.gen++
	mine := s.gen
	s.inflight = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == mine {
			s.inflight = nil
		}
	}
}

// CancelInflight stops the request in flight, if any. It reports whether one
// was running.
func (s *State) CancelInflight() bool {
	s.mu.Lock()
	cancel := s.inflight
	s.inflight = nil
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Busy reports whether a request is in flight.
func (s *State) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// View is a read-only copy of the session for rendering.
type View struct {
	ID        string
	FileName  string
	FileSize  int64
	MIME      string
	Pages     int
	OCRText   string
	OCRConf   float32
	Text      string
	Valid     bool
	Warnings  []string
	Summary   invoice.Summary
	Model     string
	LastError string
	ErrorCode string
	Status    constants.SessionStatus
	Busy      bool
	UpdatedAt time.Time
}

func (s *State) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.ID,
		Text:      s.text,
		Valid:     s.valid,
		Warnings:  append([]string(nil), s.warnings...),
		Summary:   s.summary,
		Model:     s.model,
		LastError: s.lastErr,
		ErrorCode: s.errCode,
		Status:    s.status,
		Busy:      s.inflight != nil,
		UpdatedAt: s.updatedAt,
	}
	if s.prep != nil && s.prep.Document != nil {
		v.FileName = s.identity.Name
		v.FileSize = s.identity.Size
		v.MIME = s.prep.Document.MIME
		v.Pages = s.prep.Document.PageCount()
		v.OCRText = s.prep.OCR.Text
		v.OCRConf = s.prep.OCR.Confidence
	}
	return v
}
