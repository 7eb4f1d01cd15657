package notify

import (
	"context"

	"github.com/remindkit/remindkit/internal/domain"
)

// Sender dispatches a push payload to a set of device tokens in one
// fan-out call. Implementations wrap a concrete delivery provider.
type Sender interface {
	// Send delivers the payload to every token and reports per-token
	// results. The returned error covers failures of the call itself;
	// individual token failures are reported in the result.
	Send(
		ctx context.Context,
		tokens []string,
		payload domain.NotificationPayload,
	) (*SendResult, error)
}

// SendResult summarizes one fan-out delivery attempt.
type SendResult struct {
	SuccessCount int
	FailureCount int
	Responses    []TokenResult
}

// TokenResult is the delivery outcome for a single endpoint.
type TokenResult struct {
	Token   string
	Success bool
	Err     error

	// Unregistered marks a permanent-invalidity error (token not
	// registered or malformed). Only these endpoints are deactivated;
	// transient failures are not.
	Unregistered bool
}

// SuccessfulTokens returns the tokens that accepted the payload.
func (r *SendResult) SuccessfulTokens() []string {
	var tokens []string
	for _, tr := range r.Responses {
		if tr.Success {
			tokens = append(tokens, tr.Token)
		}
	}
	return tokens
}

// InvalidTokens returns the tokens the provider reported as permanently
// invalid. These should be deactivated so they are not addressed again.
func (r *SendResult) InvalidTokens() []string {
	var tokens []string
	for _, tr := range r.Responses {
		if tr.Unregistered {
			tokens = append(tokens, tr.Token)
		}
	}
	return tokens
}

// FirstError returns the first per-token error message, or a generic
// message when the provider reported no detail. Used as the retry cause
// on a fully failed attempt.
func (r *SendResult) FirstError() string {
	for _, tr := range r.Responses {
		if tr.Err != nil {
			return tr.Err.Error()
		}
	}
	return "all deliveries failed"
}
