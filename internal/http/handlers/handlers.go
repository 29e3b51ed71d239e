// Package handlers implements the SIVEAL REST endpoints on top of the service.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/siveal/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds the handler dependencies.
type Handlers struct {
	svc *service.Service
	now func() time.Time
}

func New(svc *service.Service) *Handlers {
	return &Handlers{svc: svc, now: time.Now}
}

// writeJSON writes value with the JSON content type.
// Errors go through apierrors.WriteError instead.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict decodes a JSON body and rejects unknown fields.
// Any decoding failure is an invalid argument.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	const op = "handlers/decodeStrict"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		msg := "invalid JSON body"

		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			msg = "request body too large"
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			msg = "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
		}

		return fmt.Errorf("%s: %w", op, &service.ValidationError{Message: msg})
	}

	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	const op = "handlers/pathID"

	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: %w", op, &service.ValidationError{Field: name, Message: "must be a positive integer"})
	}

	return n, nil
}

// queryInt parses an optional integer query parameter; absent is 0.
func queryInt(r *http.Request, name string) (int64, error) {
	const op = "handlers/queryInt"

	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, &service.ValidationError{Field: name, Message: "must be an integer"})
	}

	return n, nil
}
