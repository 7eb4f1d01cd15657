package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/store"
)

// mockNotificationStore records calls and returns canned data.
type mockNotificationStore struct {
	due        []*domain.Notification
	listDueErr error
	createErr  error
	updateErr  error
	deleteErr  error

	created     [][]*domain.Notification
	updated     []*domain.Notification
	deletedFor  []uuid.UUID
	deleteCount int64
}

var _ store.NotificationStore = (*mockNotificationStore)(nil)

func (m *mockNotificationStore) CreateMultiple(
	ctx context.Context,
	notifications []*domain.Notification,
) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, notifications)
	return nil
}

func (m *mockNotificationStore) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Notification, error) {
	if m.listDueErr != nil {
		return nil, m.listDueErr
	}
	if len(m.due) > limit {
		return m.due[:limit], nil
	}
	return m.due, nil
}

func (m *mockNotificationStore) UpdateMultiple(
	ctx context.Context,
	notifications []*domain.Notification,
) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, notifications...)
	return nil
}

func (m *mockNotificationStore) DeleteUnsentByTask(
	ctx context.Context,
	ownerID, taskID uuid.UUID,
) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedFor = append(m.deletedFor, taskID)
	return m.deleteCount, nil
}

func (m *mockNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return m
}

// mockDeviceTokenStore serves canned endpoints and records invalidations.
type mockDeviceTokenStore struct {
	byOwner map[uuid.UUID][]*domain.DeviceToken
	listErr error

	deactivated []string
	markedUsed  []string
}

var _ store.DeviceTokenStore = (*mockDeviceTokenStore)(nil)

func (m *mockDeviceTokenStore) Upsert(ctx context.Context, token *domain.DeviceToken) error {
	if m.byOwner == nil {
		m.byOwner = make(map[uuid.UUID][]*domain.DeviceToken)
	}
	m.byOwner[token.OwnerID] = append(m.byOwner[token.OwnerID], token)
	return nil
}

func (m *mockDeviceTokenStore) ListActiveByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.DeviceToken, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.byOwner[ownerID], nil
}

func (m *mockDeviceTokenStore) DeactivateTokens(
	ctx context.Context,
	tokens []string,
) (int64, error) {
	m.deactivated = append(m.deactivated, tokens...)
	return int64(len(tokens)), nil
}

func (m *mockDeviceTokenStore) MarkUsed(
	ctx context.Context,
	tokens []string,
	at time.Time,
) error {
	m.markedUsed = append(m.markedUsed, tokens...)
	return nil
}

func (m *mockDeviceTokenStore) WithTx(tx *sql.Tx) store.DeviceTokenStore {
	return m
}

// mockSender returns a scripted result per call.
type mockSender struct {
	sendFn func(ctx context.Context, tokens []string, payload domain.NotificationPayload) (*SendResult, error)

	calls [][]string
}

var _ Sender = (*mockSender)(nil)

func (m *mockSender) Send(
	ctx context.Context,
	tokens []string,
	payload domain.NotificationPayload,
) (*SendResult, error) {
	m.calls = append(m.calls, tokens)
	if m.sendFn != nil {
		return m.sendFn(ctx, tokens, payload)
	}
	return allSucceed(tokens), nil
}

// allSucceed builds a SendResult where every token accepted the payload.
func allSucceed(tokens []string) *SendResult {
	res := &SendResult{SuccessCount: len(tokens)}
	for _, token := range tokens {
		res.Responses = append(res.Responses, TokenResult{Token: token, Success: true})
	}
	return res
}

// allFail builds a SendResult where every token failed with err.
func allFail(tokens []string, err error) *SendResult {
	res := &SendResult{FailureCount: len(tokens)}
	for _, token := range tokens {
		res.Responses = append(res.Responses, TokenResult{Token: token, Err: err})
	}
	return res
}
