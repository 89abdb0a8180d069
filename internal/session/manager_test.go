package session

import (
	"context"
	"testing"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/infrastructure/driver"
	"github.com/codetrail/learngate/internal/infrastructure/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager() *Manager {
	return NewManager(driver.NewMemoryKV(), uuid.NewNanoIDGenerator(24), time.Hour, zap.NewNop())
}

func TestManager_IssueAndGet(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "token-1")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)
	assert.Equal(t, "token-1", issued.Credential)

	loaded, err := manager.Get(ctx, issued.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, issued.ID, loaded.ID)
	assert.Equal(t, "token-1", loaded.Credential)
	assert.True(t, loaded.Authenticated())
}

func TestManager_IssueRequiresCredential(t *testing.T) {
	manager := newTestManager()

	_, err := manager.Issue(context.Background(), "")
	assert.Equal(t, domain.ErrUnauthenticated, err)
}

func TestManager_GetUnknownSession(t *testing.T) {
	manager := newTestManager()

	loaded, err := manager.Get(context.Background(), "no-such-sid")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_Discard(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "token-1")
	require.NoError(t, err)

	require.NoError(t, manager.Discard(ctx, issued.ID))

	loaded, err := manager.Get(ctx, issued.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_SessionExpires(t *testing.T) {
	manager := NewManager(driver.NewMemoryKV(), uuid.NewNanoIDGenerator(24), 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "token-1")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	loaded, err := manager.Get(ctx, issued.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_SessionIDsAreUnique(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		issued, err := manager.Issue(ctx, "token-1")
		require.NoError(t, err)
		assert.False(t, seen[issued.ID])
		seen[issued.ID] = true
	}
}
