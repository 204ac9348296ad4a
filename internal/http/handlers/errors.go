package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// Error codes. Clients branch on these, never on the message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeBusy             = "busy"
	ErrCodeNotOnline        = "not_online"
	ErrCodeProtocolMismatch = "protocol_mismatch"
	ErrCodePacketRejected   = "packet_rejected"
	ErrCodeTimeout          = "timeout"
)

// classify maps service sentinels to an HTTP status and code. Anything
// unknown is a 500.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrPlayerNotFound),
		errors.Is(err, services.ErrMailNotFound),
		errors.Is(err, services.ErrRegionNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrInvalidIdentity),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrEmptyValue),
		errors.Is(err, services.ErrNoRecipients),
		errors.Is(err, services.ErrIncompleteSelection):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrChannelDenied):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, services.ErrRegionExists):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrNotOnline):
		return http.StatusConflict, ErrCodeNotOnline
	case errors.Is(err, services.ErrBusy):
		return http.StatusTooManyRequests, ErrCodeBusy
	case errors.Is(err, syncproto.ErrUnknownPacket):
		return http.StatusUnprocessableEntity, ErrCodeProtocolMismatch
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
