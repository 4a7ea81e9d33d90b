package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*Lock, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	lock := NewLock(rdb, "usersvc:lock", time.Minute)
	lock.newValue = func() string { return "holder-1" }
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return lock, mock
}

func TestLock_AcquireAndRelease(t *testing.T) {
	lock, mock := newTestLock(t)
	ctx := context.Background()

	mock.ExpectSetNX("usersvc:lock", "holder-1", time.Minute).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"usersvc:lock"}, "holder-1").SetVal(int64(1))

	release, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := release(ctx)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestLock_ReleaseAfterExpiry(t *testing.T) {
	lock, mock := newTestLock(t)
	ctx := context.Background()

	mock.ExpectSetNX("usersvc:lock", "holder-1", time.Minute).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"usersvc:lock"}, "holder-1").SetVal(int64(0))

	release, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := release(ctx)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLock_HeldElsewhere(t *testing.T) {
	lock, mock := newTestLock(t)

	mock.ExpectSetNX("usersvc:lock", "holder-1", time.Minute).SetVal(false)

	release, ok, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
}

func TestLock_AcquireError(t *testing.T) {
	lock, mock := newTestLock(t)

	mock.ExpectSetNX("usersvc:lock", "holder-1", time.Minute).SetErr(errors.New("redis down"))

	_, ok, err := lock.TryAcquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}
