package smsc

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrClient is the root of every error this library produces.
	// errors.Is(err, ErrClient) matches any of the sentinels below.
	ErrClient = errors.New("smsc client error")

	// ErrMessageTooLong indicates message text over the gateway's 800 character limit.
	ErrMessageTooLong = fmt.Errorf("%w: message text exceeds %d characters", ErrClient, MaxTextLength)

	// ErrSend indicates a failed send call.
	ErrSend = fmt.Errorf("%w: send failed", ErrClient)
	// ErrGetCost indicates a failed cost estimation call.
	ErrGetCost = fmt.Errorf("%w: get cost failed", ErrClient)
	// ErrGetStatus indicates a failed delivery status call.
	ErrGetStatus = fmt.Errorf("%w: get status failed", ErrClient)
	// ErrGetBalance indicates a failed balance call.
	ErrGetBalance = fmt.Errorf("%w: get balance failed", ErrClient)
)

// GatewayError describes a gateway call that could not produce a usable
// response: a non-200 HTTP status, or a body whose shape the operation
// cannot accept. The raw status, headers and body are kept for diagnostics.
type GatewayError struct {
	Op         string // "send", "get_cost", "get_status", "get_balance"
	StatusCode int
	Header     http.Header
	Body       []byte
	Reason     string
}

func (e *GatewayError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("smsc %s: %s (status %d): %s", e.Op, e.Reason, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("smsc %s: gateway returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap yields the per-operation sentinel, so callers can use
// errors.Is(err, smsc.ErrSend) as well as errors.Is(err, smsc.ErrClient).
func (e *GatewayError) Unwrap() error {
	switch e.Op {
	case opSend:
		return ErrSend
	case opGetCost:
		return ErrGetCost
	case opGetStatus:
		return ErrGetStatus
	case opGetBalance:
		return ErrGetBalance
	}
	return ErrClient
}

// Error is a business-level failure reported by the gateway inside an
// otherwise successful (HTTP 200) response, e.g. "cannot deliver".
// It is surfaced on the response value, never as a returned Go error,
// so callers can distinguish it from transport failures.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("smsc gateway error %d: %s", e.Code, e.Message)
}
