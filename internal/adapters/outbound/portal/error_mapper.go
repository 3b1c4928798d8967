package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/pkg/circuitbreaker"
)

// statusError carries a 5xx outcome through the retry loop so exhausted
// retries still reach the status mapping.
type statusError struct {
	code     int
	envelope *model.Envelope
}

func (e *statusError) Error() string {
	return fmt.Sprintf("portal responded with status %d", e.code)
}

func asStatusError(err error, target **statusError) bool {
	return errors.As(err, target)
}

// mapStatus converts a non-2xx outcome into the uniform failure envelope
// and raises the matching dialog. 401 additionally tears the session down.
func (c *Client) mapStatus(ctx context.Context, code int, envelope *model.Envelope) *model.Envelope {
	notice := noticeFor(code, envelope)

	if code == http.StatusUnauthorized && c.deps.Session != nil {
		c.deps.Session.EndSession(ctx)
	}

	if c.deps.Notifier != nil && !isQuiet(ctx) {
		c.deps.Notifier.Dialog(notice)
	}

	result := &model.Envelope{Status: false, Message: notice.Body}
	if envelope != nil {
		result.Data = envelope.Data
		if envelope.Message != "" {
			result.Message = envelope.Message
		}
	}

	return result
}

// transportFailure handles outcomes with no HTTP status at all: network
// errors, exhausted rate-limit waits, and an open circuit breaker.
func (c *Client) transportFailure(ctx context.Context, err error) *model.Envelope {
	notice := model.Notice{
		Title:    "Service unavailable",
		Body:     "Could not reach the server, please try again later.",
		Severity: model.SeverityDanger,
	}

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		notice.Body = "The server is having trouble, please wait a moment and retry."
	case errors.Is(err, model.ErrRateLimited):
		notice.Title = "Slow down"
		notice.Body = "Too many requests in a short time, please retry shortly."
		notice.Severity = model.SeverityWarning
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		notice.Body = "The request timed out, please try again."
	}

	if c.deps.Notifier != nil && !isQuiet(ctx) {
		c.deps.Notifier.Dialog(notice)
	}

	return &model.Envelope{Status: false, Message: notice.Body}
}

// localFailure covers misuse detected before any network activity. No
// dialog: the caller made the mistake, not the server.
func (c *Client) localFailure(message string) *model.Envelope {
	return &model.Envelope{Status: false, Message: message}
}

func noticeFor(code int, envelope *model.Envelope) model.Notice {
	serverMessage := ""
	if envelope != nil {
		serverMessage = envelope.Message
	}

	switch code {
	case http.StatusUnauthorized:
		return model.Notice{
			Title:    "Session expired",
			Body:     "Your session has expired, please sign in again.",
			Severity: model.SeverityDanger,
		}

	case http.StatusForbidden:
		return model.Notice{
			Title:    "Not allowed",
			Body:     "You do not have permission to perform this action.",
			Severity: model.SeverityWarning,
		}

	case http.StatusUnprocessableEntity:
		body := "The submitted data failed validation."
		if serverMessage != "" {
			body = serverMessage
		}

		return model.Notice{
			Title:    "Validation failed",
			Body:     body,
			Severity: model.SeverityWarning,
		}

	case http.StatusTooManyRequests:
		return model.Notice{
			Title:    "Slow down",
			Body:     "Too many requests in a short time, please retry shortly.",
			Severity: model.SeverityWarning,
		}

	default:
		body := "Something went wrong, please try again later."
		if serverMessage != "" {
			body = serverMessage
		}

		return model.Notice{
			Title:    "Server error",
			Body:     body,
			Severity: model.SeverityDanger,
		}
	}
}
