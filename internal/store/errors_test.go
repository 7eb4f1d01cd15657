package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundErrorFamily(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrTaskNotFound, ErrNotificationNotFound} {
		assert.True(t, IsNotFoundError(err))
		assert.ErrorIs(t, err, ErrNotFound)
	}

	wrapped := fmt.Errorf("failed to load task: %w", ErrTaskNotFound)
	assert.True(t, IsNotFoundError(wrapped))
	assert.ErrorIs(t, wrapped, ErrTaskNotFound)

	assert.False(t, IsNotFoundError(ErrOccurrenceExists))
	assert.False(t, IsNotFoundError(errors.New("connection reset")))
}

func TestDuplicateErrorFamily(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrOccurrenceExists))
	assert.ErrorIs(t, ErrOccurrenceExists, ErrDuplicate)
	assert.False(t, IsDuplicateError(ErrTaskNotFound))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("serialization failure")
	err := NewStoreError("notification", "update", "batch write aborted", cause)

	assert.Equal(t, "update operation on notification failed: batch write aborted: serialization failure", err.Error())
	assert.ErrorIs(t, err, cause)

	var storeErr *StoreError
	require.ErrorAs(t, error(err), &storeErr)
	assert.Equal(t, "notification", storeErr.Entity)

	bare := NewStoreError("task", "create", "invalid state", nil)
	assert.Equal(t, "create operation on task failed: invalid state", bare.Error())
}
