package acl

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// remoteError is an error body sent by the remote service. It accepts both
// {"error":{"message":...}} and a flat {"message":...}.
type remoteError struct {
	Nested struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *remoteError) code() string {
	return cmp.Or(e.Nested.Code, e.Code)
}

func (e *remoteError) message() string {
	return cmp.Or(e.Nested.Message, e.Message)
}

// firstDetail returns the detail with the lowest field name.
func (e *remoteError) firstDetail() (field, msg string, ok bool) {
	if len(e.Nested.Details) == 0 {
		return "", "", false
	}

	field = slices.Sorted(maps.Keys(e.Nested.Details))[0]

	return field, e.Nested.Details[field], true
}

// parseRemoteError returns nil unless body decodes to an object carrying a
// code, a message or field details.
func parseRemoteError(body io.Reader) *remoteError {
	if body == nil {
		return nil
	}

	var e remoteError
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&e); err != nil {
		return nil
	}

	if e.code() == "" && e.message() == "" && len(e.Nested.Details) == 0 {
		return nil
	}

	return &e
}

// toDomainError maps a client failure or a non-2xx response to a domain error:
//
//   - transport failures, open circuit and exhausted retries: ErrUnavailable
//   - 404: ErrNotFound
//   - 409: ErrConflict
//   - 400, 422 and other 4xx: ErrValidation
//   - 401 and 403: ErrForbidden
//   - 429 and 5xx: ErrUnavailable
//
// It returns nil for a 2xx response.
func toDomainError(resp *http.Response, clientErr error, service, operation string) error {
	if clientErr != nil {
		return clientFailure(clientErr, service, operation)
	}

	if resp == nil {
		return domain.NewUnavailableError(service, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	return statusFailure(resp.StatusCode, parseRemoteError(resp.Body), service, operation)
}

func clientFailure(err error, service, operation string) error {
	var reason string

	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		reason = "circuit breaker open during " + operation
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		reason = "max retries exceeded during " + operation
	default:
		reason = fmt.Sprintf("%s failed: %v", operation, err)
	}

	return domain.NewUnavailableError(service, reason)
}

func statusFailure(status int, body *remoteError, service, operation string) error {
	message := fmt.Sprintf("%s failed with status %d", operation, status)
	if body != nil && body.message() != "" {
		message = body.message()
	}

	switch {
	case status == http.StatusNotFound:
		return domain.NewNotFoundError(service+" resource", operation)
	case status == http.StatusConflict:
		return domain.NewConflictError(service, message)
	case status == http.StatusUnauthorized:
		return domain.NewForbiddenError(operation, "authentication required")
	case status == http.StatusForbidden:
		return domain.NewForbiddenError(operation, message)
	case status == http.StatusTooManyRequests:
		return domain.NewUnavailableError(service, "rate limit exceeded")
	case status >= http.StatusInternalServerError:
		return domain.NewUnavailableError(service, message)
	}

	if body != nil {
		if field, msg, ok := body.firstDetail(); ok {
			return domain.NewValidationError(field, msg)
		}
	}

	return domain.NewValidationError("", message)
}
