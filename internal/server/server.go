// Package server is the browser review UI: upload, regenerate, edit and download.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Extractor is the part of the pipeline the handlers call.
type Extractor interface {
	Prepare(ctx context.Context, name string, data []byte) (*pipeline.Prepared, error)
	Extract(ctx context.Context, prep *pipeline.Prepared) (pipeline.Extraction, error)
}

type Server struct {
	cfg      common.ServerConfig
	proc     Extractor
	sessions *session.Store
	export   *export.Service
	logger   *slog.Logger

	tmpl   *template.Template
	fields template.HTML
}

func New(cfg common.ServerConfig, proc Extractor, sessions *session.Store, exp *export.Service, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exp == nil {
		exp = export.NewService(logger)
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, common.WrapError(err, "parse templates")
	}
	fields, err := renderFieldDefinitions()
	if err != nil {
		return nil, common.WrapError(err, "render field definitions")
	}
	return &Server{
		cfg:      cfg,
		proc:     proc,
		sessions: sessions,
		export:   exp,
		logger:   logger,
		tmpl:     tmpl,
		fields:   fields,
	}, nil
}

// Routes builds the router. Everything but /healthz runs inside a session.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestID, s.withLogging)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	app := r.PathPrefix("/").Subrouter()
	app.Use(s.withSession)
	app.HandleFunc("/", s.index).Methods(http.MethodGet)
	app.HandleFunc("/upload", s.upload).Methods(http.MethodPost)
	app.HandleFunc("/regenerate", s.regenerate).Methods(http.MethodPost)
	app.HandleFunc("/edit", s.edit).Methods(http.MethodPost)
	app.HandleFunc("/clear", s.clear).Methods(http.MethodPost)
	app.HandleFunc("/cancel", s.cancel).Methods(http.MethodPost)
	app.HandleFunc("/pages/{n:[0-9]+}", s.page).Methods(http.MethodGet)
	app.HandleFunc("/download/json", s.downloadJSON).Methods(http.MethodGet)
	app.HandleFunc("/download/xlsx", s.downloadXLSX).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	go s.sessions.Run(ctx, 0)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown")
	s.sessions.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return common.WrapError(err, "shutdown")
	}
	return nil
}
