package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/session"
)

// genericFailure is shown above the raw error text of upstream failures.
const genericFailure = "Ocorreu um erro no processamento. Por favor, tente novamente."

var templateFuncs = template.FuncMap{
	"pages": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
	"filesize": func(n int64) string {
		switch {
		case n >= 1<<20:
			return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
		case n >= 1<<10:
			return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
		default:
			return fmt.Sprintf("%d B", n)
		}
	},
	"pct": func(f float32) string { return fmt.Sprintf("%.0f%%", f*100) },
}

type pageData struct {
	session.View
	Generic     string
	FieldsHTML  template.HTML
	MaxUploadMB int64
}

// stateJSON is the view returned to clients that accept application/json.
type stateJSON struct {
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	File      string   `json:"file,omitempty"`
	Pages     int      `json:"pages"`
	OCRText   string   `json:"ocr_text,omitempty"`
	JSON      string   `json:"json"`
	Valid     bool     `json:"valid"`
	Warnings  []string `json:"warnings,omitempty"`
	Model     string   `json:"model,omitempty"`
	Busy      bool     `json:"busy"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
}

type errorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func toJSON(v session.View) stateJSON {
	return stateJSON{
		SessionID: v.ID,
		Status:    string(v.Status),
		File:      v.FileName,
		Pages:     v.Pages,
		OCRText:   v.OCRText,
		JSON:      v.Text,
		Valid:     v.Valid,
		Warnings:  v.Warnings,
		Model:     v.Model,
		Busy:      v.Busy,
		Error:     v.LastError,
		ErrorCode: v.ErrorCode,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// done answers a finished action: JSON clients get the session view, browsers
// are sent back to the page.
func (s *Server) done(w http.ResponseWriter, r *http.Request, st *session.State) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, toJSON(st.Snapshot()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail answers a failed action. Browsers see the error on the page through
// the session; JSON clients get it in the body with a mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		body := errorJSON{Code: common.ErrorCode(err), Message: userMessage(err), Detail: err.Error()}
		writeJSON(w, common.HTTPStatus(err), body)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func userMessage(err error) string {
	if common.ErrorCode(err) == "UPSTREAM_ERROR" {
		return genericFailure
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, st *session.State) {
	view := st.Snapshot()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, toJSON(view))
		return
	}
	data := pageData{
		View:        view,
		Generic:     genericFailure,
		FieldsHTML:  s.fields,
		MaxUploadMB: s.cfg.MaxUploadBytes >> 20,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("server.render.failed", append(common.LogAttrs(r.Context()), "error", err)...)
	}
}
