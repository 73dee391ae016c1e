package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"portal/cmd/internal/httpjson"
)

// Serve adapts an ErrorHandler to net/http. Rejections made by a Guard become
// 401/404/403, *HTTPError picks its own status and anything else is a 500.
// If the handler already started the response, the error is only logged.
func Serve(log *slog.Logger, h ErrorHandler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		err := h(tw, r)
		if err == nil {
			return
		}
		if tw.wrote {
			log.Error("guard.handler.fail_after_write", "err", err, "path", r.URL.Path)
			return
		}
		writeGuardError(log, tw, r, err)
	})
}

func writeGuardError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		rej *rejection
		he  *HTTPError
	)
	switch {
	case errors.As(err, &rej) && errors.Is(rej.err, ErrUnauthenticated):
		httpjson.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.As(err, &rej) && errors.Is(rej.err, ErrMemberNotFound):
		httpjson.WriteError(w, http.StatusNotFound, "member_not_found", "member not found")
	case errors.As(err, &rej) && errors.Is(rej.err, ErrForbidden):
		httpjson.WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
	case errors.As(err, &he):
		if he.Status >= http.StatusInternalServerError {
			log.Error("guard.handler.fail", "err", err, "path", r.URL.Path, "status", he.Status)
		}
		httpjson.WriteError(w, he.Status, he.Code, he.Message)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		log.Debug("guard.handler.canceled", "path", r.URL.Path)
	default:
		log.Error("guard.handler.fail", "err", err, "path", r.URL.Path)
		httpjson.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *trackingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
