package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/suivie/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// StatusError is a non-2xx response whose body has already been consumed.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// upstreamErrors matches the two error shapes GraphQL APIs answer with:
// {"errors":[{"message":"..."}]} and {"errors":"..."}.
type upstreamErrors struct {
	Errors json.RawMessage `json:"errors"`
}

// ParseResponseError consumes and closes a non-2xx response and maps it to
// an AppError. Only call it when resp.StatusCode is not 2xx.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.Upstream(service, fmt.Sprintf("status %d (failed to read body: %v)", resp.StatusCode, err))
	}
	return MapStatus(resp.StatusCode, ErrorMessage(body), service)
}

// ErrorMessage extracts a human-readable message from an error body, falling
// back to the trimmed raw body.
func ErrorMessage(body []byte) string {
	var env upstreamErrors
	if json.Unmarshal(body, &env) == nil && len(env.Errors) > 0 {
		var text string
		if json.Unmarshal(env.Errors, &text) == nil {
			return text
		}
		var list []struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Errors, &list) == nil {
			msgs := make([]string, 0, len(list))
			for _, e := range list {
				if e.Message != "" {
					msgs = append(msgs, e.Message)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// MapStatus translates an upstream status into an AppError. Upstream auth
// failures are a server misconfiguration, so they surface as 502 rather
// than being passed through to the caller.
func MapStatus(status int, message, service string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(fmt.Sprintf("%s: %s", service, message))
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(fmt.Sprintf("%s: %s", service, message))
	default:
		return apperrors.Upstream(service, fmt.Sprintf("status %d: %s", status, message))
	}
}

// ToAppError maps transport-level failures (open circuit, StatusError,
// network errors) to AppErrors. AppErrors pass through unchanged.
func ToAppError(err error, service string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.ServiceUnavailable(service + " temporarily unavailable")
	}
	var se *StatusError
	if errors.As(err, &se) {
		return MapStatus(se.Status, ErrorMessage([]byte(se.Body)), service)
	}
	return apperrors.Upstream(service, err.Error())
}
