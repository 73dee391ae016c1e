// Package httpjson writes and reads the JSON envelopes used by portal's HTTP surfaces.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps APIError as {"error":{...}}.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Write encodes v with the given status. Responses are never cached.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an {"error":{"code","message"}} envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, ErrorResponse{Error: APIError{Code: code, Message: msg}})
}

// Decode reads exactly one JSON value of at most maxBytes into dst.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
