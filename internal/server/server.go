// Package server exposes the ambience controller and the contact form over
// HTTP for foliod.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/outbox"
	"github.com/jmylchreest/folio/internal/visibility"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 5 * time.Second
	defaultLimit    = 50
)

// Submitter posts a contact form to the backend.
type Submitter interface {
	Submit(ctx context.Context, form contact.Form) (*contact.Receipt, error)
}

// Notifier is told about every relayed submission.
type Notifier interface {
	Submission(form contact.Form) (uint32, error)
}

// Options configures a Server. Outbox and Notifier may be nil.
type Options struct {
	Controller     *fade.Controller
	Submitter      Submitter
	Outbox         *outbox.Store
	Notifier       Notifier
	NoticeDuration time.Duration
	Logger         *slog.Logger
}

// Server serves the folio HTTP API.
type Server struct {
	controller     *fade.Controller
	submitter      Submitter
	outbox         *outbox.Store
	notifier       Notifier
	noticeDuration time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := opts.NoticeDuration
	if d <= 0 {
		d = contact.DefaultNoticeDuration
	}
	return &Server{
		controller:     opts.Controller,
		submitter:      opts.Submitter,
		outbox:         opts.Outbox,
		notifier:       opts.Notifier,
		noticeDuration: d,
		logger:         logger,
		now:            time.Now,
	}
}

// Handler returns the router for the API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/ambience", s.ambience).Methods(http.MethodGet)
	r.HandleFunc("/api/visibility", s.setVisibility).Methods(http.MethodPost)
	r.HandleFunc("/api/contact", s.submitContact).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions", s.listSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/api/submissions/{id}", s.getSubmission).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// ContactResponse is the body returned by POST /api/contact.
type ContactResponse struct {
	OK     bool           `json:"ok"`
	ID     string         `json:"id,omitempty"`
	Notice contact.Notice `json:"notice"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ambience(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	raw, err := visibilityInput(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	visible, skip, err := visibility.ParseLine(raw)
	if err != nil || skip {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unrecognised visibility %q", raw))
		return
	}

	s.controller.SetVisible(visible)
	s.logger.Debug("visibility updated over http", "visible", visible)
	s.writeJSON(w, http.StatusOK, s.controller.State())
}

// visibilityInput returns the request's visibility as a line the reader
// understands: the raw JSON body, or the form's "visible" value.
func visibilityInput(w http.ResponseWriter, r *http.Request) (string, error) {
	if isJSON(r) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return strings.TrimSpace(string(body)), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("failed to parse form: %w", err)
	}
	return r.FormValue("visible"), nil
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	form = form.Normalize()

	now := s.now()
	if err := form.Validate(); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, ContactResponse{
			Notice: contact.NoticeFor(err, now, s.noticeDuration),
		})
		return
	}

	receipt, err := s.submitter.Submit(r.Context(), form)
	resp := ContactResponse{
		OK:     err == nil,
		Notice: contact.NoticeFor(err, s.now(), s.noticeDuration),
	}
	if receipt != nil {
		resp.ID = receipt.ID
	}

	s.record(form, receipt, err)

	if err != nil {
		s.logger.Warn("contact submission failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	if s.notifier != nil {
		if _, nerr := s.notifier.Submission(form); nerr != nil {
			s.logger.Warn("failed to send desktop notification", "error", nerr)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) record(form contact.Form, receipt *contact.Receipt, submitErr error) {
	if s.outbox == nil {
		return
	}
	entry, err := outbox.NewEntry("http", form, receipt, submitErr)
	if err != nil {
		s.logger.Error("failed to build outbox entry", "error", err)
		return
	}
	if err := s.outbox.Add(*entry); err != nil {
		s.logger.Error("failed to record submission", "error", err)
	}
}

func decodeForm(w http.ResponseWriter, r *http.Request) (contact.Form, error) {
	var form contact.Form
	if isJSON(r) {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&form); err != nil {
			return form, fmt.Errorf("failed to decode body: %w", err)
		}
		return form, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return form, fmt.Errorf("failed to parse form: %w", err)
	}
	return contact.FormFromValues(r.PostForm), nil
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		s.writeError(w, http.StatusNotFound, errors.New("outbox is disabled"))
		return
	}

	opts := outbox.FilterOptions{Limit: defaultLimit, Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.ParseDuration(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since %q", v))
			return
		}
		opts.Since = since
	}

	s.writeJSON(w, http.StatusOK, s.outbox.List(opts))
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		s.writeError(w, http.StatusNotFound, errors.New("outbox is disabled"))
		return
	}

	id := mux.Vars(r)["id"]
	entry := s.outbox.Get(id)
	if entry == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("submission %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
