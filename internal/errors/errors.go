// Package errors turns service errors into HTTP responses:
//   - an HTTP status and a short stable code;
//   - a message that is safe for the client. Detail sentinels and
//     validation errors carry their own text, everything else gets a
//     generic phrase for its kind.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/siveal/internal/service"
)

// StatusClientClosedRequest is the non-standard "client closed the connection" status.
const StatusClientClosedRequest = 499

// ErrRateLimited is returned by the rate-limit middleware. HTTP 429.
var ErrRateLimited = stderrors.New("too many requests, please try again later")

// ErrMethodNotAllowed and ErrRouteNotFound back the router fallbacks.
var (
	ErrMethodNotAllowed = stderrors.New("method not allowed")
	ErrRouteNotFound    = stderrors.New("route not found")
)

// APIError is the error body for the frontend.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the root object of an error response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// details are the sentinels whose text goes to the client as is.
var details = []error{
	service.ErrInvalidUsername,
	service.ErrInvalidEmail,
	service.ErrWeakPassword,
	service.ErrInvalidContent,
	service.ErrParentNotFound,
	service.ErrCurrentPasswordRequired,
	service.ErrWrongPassword,
	service.ErrUserExists,
	service.ErrEmailTaken,
	service.ErrAlreadySubscribed,
	service.ErrAdminUndeletable,
	service.ErrImagesDisabled,
}

type kindMapping struct {
	kind    error
	status  int
	code    string
	message string
}

// kinds is checked in order; the first match wins.
var kinds = []kindMapping{
	{service.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument", "invalid argument"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthenticated", "access token required"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	{service.ErrTokenExpired, http.StatusForbidden, "token_expired", "token expired"},
	{service.ErrInvalidToken, http.StatusForbidden, "invalid_token", "invalid token"},
	{service.ErrForbidden, http.StatusForbidden, "permission_denied", "permission denied"},
	{service.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{ErrRouteNotFound, http.StatusNotFound, "not_found", "route not found"},
	{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed"},
	{service.ErrConflict, http.StatusConflict, "already_exists", "already exists"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ErrRateLimited.Error()},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "service unavailable"},
	{context.Canceled, StatusClientClosedRequest, "canceled", "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"},
}

// ToHTTP maps err to a status and a response body.
//
// err == nil is a programming error of the caller and gives 500 rather
// than a 200 with an error body. Unknown errors give 500 without details.
func ToHTTP(err error) (int, ErrorResponse) {
	internal := ErrorResponse{Error: APIError{Code: "internal", Message: "internal error"}}

	if err == nil {
		return http.StatusInternalServerError, internal
	}

	for _, k := range kinds {
		if !stderrors.Is(err, k.kind) {
			continue
		}

		return k.status, ErrorResponse{Error: APIError{Code: k.code, Message: message(err, k.message)}}
	}

	return http.StatusInternalServerError, internal
}

func message(err error, fallback string) string {
	var ve *service.ValidationError
	if stderrors.As(err, &ve) {
		return ve.Error()
	}

	for _, d := range details {
		if stderrors.Is(err, d) {
			return d.Error()
		}
	}

	return fallback
}

// WriteError writes the status and the body, adding request_id from the X-Request-Id header.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
