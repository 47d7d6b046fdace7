package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	manager := NewManager(Config{MaxFailures: 2, Timeout: time.Minute, MaxRequests: 1}, newTestLogger())

	directory := manager.GetOrCreate("directory")
	require.NotNil(t, directory)
	assert.Same(t, directory, manager.GetOrCreate("directory"))

	email := manager.GetOrCreate("email")
	assert.NotSame(t, directory, email)

	assert.Same(t, email, manager.Get("email"))
	assert.Nil(t, manager.Get("missing"))

	snapshots := manager.Snapshots()
	require.Len(t, snapshots, 2)
	assert.Equal(t, "directory", snapshots[0].Name)
	assert.Equal(t, "email", snapshots[1].Name)
	assert.Equal(t, 2, snapshots[0].MaxFailures)
}

func TestManagerReset(t *testing.T) {
	manager := NewManager(Config{MaxFailures: 1, Timeout: time.Minute}, newTestLogger())

	payments := manager.GetOrCreate("payments")
	email := manager.GetOrCreate("email")
	_ = payments.Do(context.Background(), failing)
	_ = email.Do(context.Background(), failing)
	require.Equal(t, StateOpen, payments.State())

	assert.True(t, manager.Reset("payments"))
	assert.False(t, manager.Reset("missing"))
	assert.Equal(t, StateClosed, payments.State())
	assert.Equal(t, StateOpen, email.State())

	manager.ResetAll()
	assert.Equal(t, StateClosed, email.State())
}
