// Package fcm implements the push delivery provider on Firebase Cloud
// Messaging. It adapts FCM's multicast API to the notify.Sender contract,
// mapping provider error codes onto the permanent/transient distinction
// the delivery pipeline acts on.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/notify"
)

// Client sends push payloads through Firebase Cloud Messaging.
type Client struct {
	messaging *messaging.Client
	logger    *slog.Logger
}

// NewClient creates an FCM-backed sender. When credentialsFile is empty
// the SDK falls back to application default credentials.
// If logger is nil, a default logger is used.
func NewClient(ctx context.Context, credentialsFile string, logger *slog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		messaging: client,
		logger:    logger.With(slog.String("component", "fcm_sender")),
	}, nil
}

// Ensure Client implements notify.Sender interface
var _ notify.Sender = (*Client)(nil)

// Send implements notify.Sender.Send
// It fans the payload out to every token in one multicast call and maps
// each response onto a per-token result.
func (c *Client) Send(
	ctx context.Context,
	tokens []string,
	payload domain.NotificationPayload,
) (*notify.SendResult, error) {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Icon: payload.Icon,
			},
		},
	}

	batch, err := c.messaging.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send multicast message: %w", err)
	}

	result := &notify.SendResult{
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
		Responses:    make([]notify.TokenResult, len(batch.Responses)),
	}

	for i, resp := range batch.Responses {
		tr := notify.TokenResult{
			Token:   tokens[i],
			Success: resp.Success,
			Err:     resp.Error,
		}
		if resp.Error != nil {
			// Unregistered and malformed tokens are dead endpoints; every
			// other error code is treated as transient.
			tr.Unregistered = messaging.IsUnregistered(resp.Error) ||
				errorutils.IsInvalidArgument(resp.Error)
		}
		result.Responses[i] = tr
	}

	c.logger.Debug("multicast send complete",
		"tokens", len(tokens),
		"success_count", result.SuccessCount,
		"failure_count", result.FailureCount)
	return result, nil
}
