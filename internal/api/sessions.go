package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/id"
	"github.com/dunamismax/photoresize/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type sessionView struct {
	SessionID string                `json:"session_id"`
	State     string                `json:"state"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Format    string                `json:"source_format,omitempty"`
	Transform editor.TransformState `json:"transform"`
	Output    editor.OutputSpec     `json:"output"`
}

func newSessionView(sessionID string, sess *editor.Session) sessionView {
	view := sessionView{
		SessionID: sessionID,
		State:     sess.State().String(),
		Transform: sess.Transform(),
		Output:    sess.Output(),
	}
	if src := sess.Source(); src != nil {
		view.Width = src.Width()
		view.Height = src.Height()
		view.Format = src.Format()
	}
	return view
}

// transformRequest is a transform patch plus relative edits applied after it.
type transformRequest struct {
	editor.TransformPatch
	RotateBy *int   `json:"rotate_by,omitempty"`
	Flip     string `json:"flip,omitempty"`
}

type outputRequest struct {
	Width      *int    `json:"width,omitempty"`
	Height     *int    `json:"height,omitempty"`
	Format     *string `json:"format,omitempty"`
	Quality    *int    `json:"quality,omitempty"`
	LockAspect *bool   `json:"lock_aspect,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImageBody(w, r)
	if !ok {
		return
	}

	sess := editor.NewSession(s.sessionOpts...)
	if _, err := sess.Load(data); err != nil {
		s.writeEditorError(w, err)
		return
	}

	sessionID := id.New()
	s.sessions.Put(sessionID, sess)
	s.logger.Printf("session created session_id=%s size=%dx%d format=%s", sessionID, sess.Source().Width(), sess.Source().Height(), sess.Source().Format())
	w.Header().Set("Location", "/v1/sessions/"+sessionID)
	writeJSON(w, http.StatusCreated, newSessionView(sessionID, sess))
}

func (s *Server) handleReplaceImage(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImageBody(w, r)
	if !ok {
		return
	}
	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		if _, err := sess.Load(data); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newSessionView(sessionID, sess))
		return nil
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		writeJSON(w, http.StatusOK, newSessionView(sessionID, sess))
		return nil
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, store.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatchTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		axis    editor.Axis
		hasFlip = strings.TrimSpace(req.Flip) != ""
	)
	if hasFlip {
		parsed, err := editor.ParseAxis(req.Flip)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		axis = parsed
	}

	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		if sess.Source() == nil {
			return editor.ErrNoImage
		}
		sess.SetTransform(req.TransformPatch)
		if req.RotateBy != nil {
			sess.Rotate(*req.RotateBy)
		}
		if hasFlip {
			sess.Flip(axis)
		}
		writeJSON(w, http.StatusOK, newSessionView(sessionID, sess))
		return nil
	})
}

func (s *Server) handlePutOutput(w http.ResponseWriter, r *http.Request) {
	var req outputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var format editor.Format
	if req.Format != nil {
		parsed, err := editor.ParseFormat(*req.Format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = parsed
	}
	if (req.Width != nil && *req.Width < 0) || (req.Height != nil && *req.Height < 0) {
		writeError(w, http.StatusBadRequest, "width and height must not be negative")
		return
	}

	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		spec := sess.Output()
		if req.LockAspect != nil {
			spec.LockAspect = *req.LockAspect
		}
		if req.Format != nil {
			spec.Format = format
		}
		if req.Quality != nil {
			spec.Quality = *req.Quality
		}
		if req.Width != nil && req.Height != nil {
			spec.Width, spec.Height = *req.Width, *req.Height
		}
		prev := sess.Output()
		if err := sess.SetOutput(spec); err != nil {
			return err
		}

		switch {
		case req.Width != nil && req.Height == nil:
			sess.SetWidth(*req.Width)
		case req.Height != nil && req.Width == nil:
			sess.SetHeight(*req.Height)
		}
		// A single axis with the aspect lock on can derive an oversized other axis.
		out := sess.Output()
		if err := sess.Limits().CheckSize(out.Width, out.Height); err != nil {
			_ = sess.SetOutput(prev)
			return &editor.EncodeError{Format: out.Format, Err: err}
		}
		writeJSON(w, http.StatusOK, newSessionView(sessionID, sess))
		return nil
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		sess.Reset()
		writeJSON(w, http.StatusOK, newSessionView(sessionID, sess))
		return nil
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.exportWith(w, r, "preview", false, func(ctx context.Context, sess *editor.Session) (editor.EncodedOutput, error) {
		return sess.ExportPreview(ctx)
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.exportWith(w, r, "export", true, func(ctx context.Context, sess *editor.Session) (editor.EncodedOutput, error) {
		return sess.Export(ctx)
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	s.exportWith(w, r, "resize", true, func(ctx context.Context, sess *editor.Session) (editor.EncodedOutput, error) {
		return sess.ExportResized(ctx)
	})
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	ratio, err := editor.ParseRatio(r.URL.Query().Get("ratio"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.exportWith(w, r, "crop", true, func(ctx context.Context, sess *editor.Session) (editor.EncodedOutput, error) {
		return sess.ExportCropped(ctx, ratio)
	})
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	threshold := editor.DefaultBackgroundThreshold
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 255 {
			writeError(w, http.StatusBadRequest, "threshold must be an integer in [0,255]")
			return
		}
		threshold = parsed
	}
	s.exportWith(w, r, "remove_background", true, func(ctx context.Context, sess *editor.Session) (editor.EncodedOutput, error) {
		return sess.ExportBackgroundRemoved(ctx, threshold)
	})
}

// exportWith runs fn under the session lock and streams the encoded result.
func (s *Server) exportWith(w http.ResponseWriter, r *http.Request, kind string, attachment bool, fn func(context.Context, *editor.Session) (editor.EncodedOutput, error)) {
	s.withSession(w, r, func(sessionID string, sess *editor.Session) error {
		out, err := fn(r.Context(), sess)
		if err != nil {
			return err
		}

		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("export.kind", kind),
			attribute.String("export.format", string(out.Format)),
			attribute.Int("export.bytes", len(out.Data)),
		)
		s.metrics.exportsTotal.WithLabelValues(kind, string(out.Format)).Inc()
		writeImage(w, out, attachment)
		return nil
	})
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(string, *editor.Session) error) {
	sessionID := r.PathValue("id")
	err := s.sessions.With(sessionID, func(sess *editor.Session) error {
		return fn(sessionID, sess)
	})
	if err != nil {
		s.writeEditorError(w, err)
	}
}

// readImageBody enforces an image/* content type and the upload size limit.
func (s *Server) readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if !editor.IsImageContentType(r.Header.Get("Content-Type")) {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be image/*")
		return nil, false
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "upload body is empty")
		return nil, false
	}
	return data, true
}

func (s *Server) writeEditorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, editor.ErrNoImage):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, editor.ErrDecode), errors.Is(err, editor.ErrEncode), errors.Is(err, editor.ErrTooLarge):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, editor.ErrUnsupportedRatio), errors.Is(err, editor.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		s.logger.Printf("session operation failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeImage(w http.ResponseWriter, out editor.EncodedOutput, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": out.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("X-Image-Width", strconv.Itoa(out.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(out.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
