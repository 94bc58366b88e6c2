package service

import (
	"errors"
	"net/http"

	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

// upstreamFailure maps a backend error onto the gateway taxonomy. An expired session always wins
// so the console can send the user back to the login page.
func upstreamFailure(err error, fallback *appErrors.Error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, upstream.ErrSessionExpired) {
		return appErrors.Wrap(err, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
	}
	if message == "" {
		message = fallback.Message
	}
	return appErrors.Wrap(err, fallback.Code, fallback.Status, message)
}

// upstreamLookupFailure is upstreamFailure for single-record reads, where a backend 404 or 403
// is passed through instead of being reported as a gateway failure.
func upstreamLookupFailure(err error, message string) error {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "class not found")
		case http.StatusForbidden:
			return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, appErrors.ErrForbidden.Message)
		}
	}
	return upstreamFailure(err, appErrors.ErrUpstream, message)
}
