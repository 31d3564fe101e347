package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"product-studio-ai/internal/session"
	"product-studio-ai/internal/studio"
)

const (
	maxUploadBytes = 25 << 20
	// maxRequestBytes leaves room for the multipart framing around the image.
	maxRequestBytes = maxUploadBytes + 1<<20
)

type Options struct {
	Sessions       *session.Store
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

type Server struct {
	sessions       *session.Store
	logger         *slog.Logger
	requestTimeout time.Duration
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	return &Server{
		sessions:       opts.Sessions,
		logger:         logger,
		requestTimeout: timeout,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(withLogging(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/templates", s.handleTemplates)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/source", s.handleSetSource)
			r.Post("/generate", s.handleGenerateAll)
			r.Route("/nodes/{nodeID}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Post("/generate", s.handleGenerateNode)
				r.Post("/revert", s.handleRevert)
				r.Get("/download", s.handleDownload)
			})
		})
	})

	return r
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	tmpls := studio.Templates()
	out := make([]templateView, 0, len(tmpls))
	for _, t := range tmpls {
		out = append(out, templateView{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			AspectRatio: string(t.AspectRatio),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, newSessionView(id, sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(id, sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}
	if len(imgBytes) > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: "image too large"})
		return
	}

	mimeType := detectMimeType(header.Header.Get("Content-Type"), imgBytes)
	if !strings.HasPrefix(mimeType, "image/") {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "file is not an image"})
		return
	}

	err = sess.SetSource(studio.Source{
		DataBase64: base64.StdEncoding.EncodeToString(imgBytes),
		MimeType:   mimeType,
		Filename:   header.Filename,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionView(id, sess))
}

func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.runContext(r)
	run, err := sess.StartAll(ctx)
	if err != nil {
		cancel()
		s.writeError(w, err)
		return
	}
	s.settle(r, run, cancel)

	writeJSON(w, statusFor(r), newSessionView(id, sess))
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, found := sess.Node(nodeParam(r))
	if !found {
		s.writeError(w, studio.ErrUnknownNode)
		return
	}
	writeJSON(w, http.StatusOK, newNodeView(snap))
}

func (s *Server) handleGenerateNode(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
			return
		}
	}

	nodeID := nodeParam(r)
	ctx, cancel := s.runContext(r)
	run, err := sess.StartOne(ctx, nodeID, req.Instruction, req.AreaSelected)
	if err != nil {
		cancel()
		s.writeError(w, err)
		return
	}
	s.settle(r, run, cancel)

	snap, _ := sess.Node(nodeID)
	writeJSON(w, statusFor(r), newNodeView(snap))
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req revertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "index is required"})
		return
	}

	snap, err := sess.Revert(nodeParam(r), *req.Index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNodeView(snap))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	d, err := sess.Download(nodeParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("content-type", d.MimeType)
	w.Header().Set("content-length", strconv.Itoa(len(d.Data)))
	w.Header().Set("content-disposition", `attachment; filename="`+d.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *studio.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return "", nil, false
	}
	return id, sess, true
}

// runContext outlives the request so async generations are not cut off when
// the handler returns.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.requestTimeout)
}

func (s *Server) settle(r *http.Request, run *studio.Run, cancel context.CancelFunc) {
	if wantsWait(r) {
		run.Wait()
		cancel()
		return
	}
	go func() {
		defer cancel()
		run.Wait()
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studio.ErrNoSource), errors.Is(err, studio.ErrNodeBusy):
		status = http.StatusConflict
	case errors.Is(err, studio.ErrUnknownNode), errors.Is(err, studio.ErrNoImage):
		status = http.StatusNotFound
	case errors.Is(err, studio.ErrHistoryIndex), errors.Is(err, studio.ErrInvalidSource):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, apiError{Error: err.Error()})
}

// nodeParam accepts "node3" as well as the bare "3".
func nodeParam(r *http.Request) string {
	raw := chi.URLParam(r, "nodeID")
	if id, ok := studio.ResolveNodeID(raw); ok {
		return id
	}
	return raw
}

func wantsWait(r *http.Request) bool {
	return parseBool(r.URL.Query().Get("wait"))
}

func statusFor(r *http.Request) int {
	if wantsWait(r) {
		return http.StatusOK
	}
	return http.StatusAccepted
}

func detectMimeType(header string, data []byte) string {
	mimeType := strings.TrimSpace(header)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	return mimeType
}

func parseBool(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"dur_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
