package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/document"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/session"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, stateFrom(r.Context()))
}

// readUpload returns the name and bytes of the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := s.cfg.MaxUploadBytes
	if limit > 0 {
		// room for the multipart framing around the file
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, common.NewAppError("INVALID_INPUT", fmt.Sprintf("file must be at most %d MB", limit>>20), errors.Join(common.ErrInvalidInput, err))
		}
		return "", nil, common.NewAppError("INVALID_INPUT", "expected a multipart upload", errors.Join(common.ErrInvalidInput, err))
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return "", nil, common.NewAppError("INVALID_INPUT", "file is required", errors.Join(common.ErrInvalidInput, err))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, common.NewAppError("INVALID_INPUT", "read upload", errors.Join(common.ErrInvalidInput, err))
	}

	name := filepath.Base(hdr.Filename)
	v := common.NewValidator().
		Field("file", data, common.Required, common.MaxBytes(limit)).
		Field("filename", name, common.Required)
	if err := v.Err(); err != nil {
		return "", nil, err
	}
	return name, data, nil
}

// track cancels the session's previous request and makes ctx the new one.
func track(ctx context.Context, st *session.State) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	release := st.BeginRequest(cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

func cancelled(err error) error {
	return common.NewAppError("CANCELLED", "request cancelled", errors.Join(common.ErrConflict, err))
}

// runFailed records err on the session and answers the request.
func (s *Server) runFailed(w http.ResponseWriter, r *http.Request, st *session.State, stage string, err error) {
	if errors.Is(err, context.Canceled) {
		err = cancelled(err)
	}
	s.logger.Warn("server."+stage+".failed", append(common.LogAttrs(r.Context()), "code", common.ErrorCode(err), "error", err)...)
	st.SetError(err)
	s.fail(w, r, err)
}

// upload loads, OCRs and extracts a new document. The same file again keeps
// the current result; a different file resets the session first.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.runFailed(w, r, st, "upload", err)
		return
	}

	ctx, release := track(r.Context(), st)
	defer release()
	st.Lock()
	defer st.Unlock()

	id := document.IdentityOf(name, data)
	if !st.IsNewFile(id) && st.HasResult() {
		s.logger.Info("server.upload.unchanged", append(common.LogAttrs(ctx), "name", name)...)
		s.done(w, r, st)
		return
	}
	st.Reset()
	st.SetRunning()

	prep, err := async.Do(ctx, func(ctx context.Context) (*pipeline.Prepared, error) {
		return s.proc.Prepare(ctx, name, data)
	})
	if err != nil {
		s.runFailed(w, r, st, "upload", err)
		return
	}
	st.SetPrepared(prep)

	if !s.extract(ctx, w, r, st, prep) {
		return
	}
	s.done(w, r, st)
}

// regenerate re-runs the model on the cached pages and OCR text.
func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	ctx, release := track(r.Context(), st)
	defer release()
	st.Lock()
	defer st.Unlock()

	prep := st.Prepared()
	if prep == nil {
		err := common.NewAppError("NO_DOCUMENT", "upload a document first", common.ErrInvalidInput)
		s.runFailed(w, r, st, "regenerate", err)
		return
	}
	st.SetRunning()
	if !s.extract(ctx, w, r, st, prep) {
		return
	}
	s.done(w, r, st)
}

func (s *Server) extract(ctx context.Context, w http.ResponseWriter, r *http.Request, st *session.State, prep *pipeline.Prepared) bool {
	ext, err := async.Do(ctx, func(ctx context.Context) (pipeline.Extraction, error) {
		return s.proc.Extract(ctx, prep)
	})
	if err != nil {
		s.runFailed(w, r, st, "extract", err)
		return false
	}
	st.SetExtraction(ext)
	return true
}

// edit replaces the JSON with the user's text, kept as typed.
func (s *Server) edit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		s.runFailed(w, r, st, "edit", common.NewAppError("INVALID_INPUT", "bad form", errors.Join(common.ErrInvalidInput, err)))
		return
	}
	text := r.PostForm.Get("json")

	st.Lock()
	defer st.Unlock()
	res := llm.ValidateEdited(text)
	st.SetEdited(res)
	if !res.Valid {
		s.logger.Info("server.edit.invalid_json", append(common.LogAttrs(r.Context()), "error", res.Err)...)
	}
	s.done(w, r, st)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	st.CancelInflight()
	st.Lock()
	defer st.Unlock()
	st.Reset()
	s.done(w, r, st)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if st.CancelInflight() {
		s.logger.Info("server.cancel.ok", common.LogAttrs(r.Context())...)
	}
	s.done(w, r, st)
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, mime, err := st.Page(n)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) downloadJSON(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	text, _ := st.Text()
	out, err := s.export.JSON(r.Context(), text)
	if err != nil {
		s.downloadFailed(w, r, err)
		return
	}
	attach(w, constants.ExportJSONName, "application/json; charset=utf-8", out)
}

func (s *Server) downloadXLSX(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	text, _ := st.Text()
	out, err := s.export.XLSX(r.Context(), st.Snapshot().FileName, text)
	if err != nil {
		s.downloadFailed(w, r, err)
		return
	}
	attach(w, constants.ExportXLSXName, xlsxMIME, out)
}

// downloadFailed always answers with a status: a download link has no page
// to return to.
func (s *Server) downloadFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	if wantsJSON(r) {
		s.fail(w, r, err)
		return
	}
	http.Error(w, userMessage(err), status)
}

func attach(w http.ResponseWriter, name, mime string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
