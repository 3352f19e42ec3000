package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
)

func TestNotifier_KeepsLastFifty(t *testing.T) {
	n := NewNotifier()
	for i := 0; i < 60; i++ {
		n.Publish(NotificationInfo, fmt.Sprintf("message %d", i))
	}

	recent := n.Recent()
	require.Len(t, recent, maxNotifications)
	assert.Equal(t, "message 10", recent[0].Message)
	assert.Equal(t, "message 59", recent[len(recent)-1].Message)
}

func TestNotifier_TakeUnseenReturnsEachOnce(t *testing.T) {
	n := NewNotifier()
	n.Publish(NotificationInfo, "first")
	n.Publish(NotificationInfo, "second")

	unseen := n.TakeUnseen()
	require.Len(t, unseen, 2)
	assert.Equal(t, "first", unseen[0].Message)
	assert.Empty(t, n.TakeUnseen())

	n.Publish(NotificationInfo, "third")
	unseen = n.TakeUnseen()
	require.Len(t, unseen, 1)
	assert.Equal(t, "third", unseen[0].Message)
	assert.Len(t, n.Recent(), 3)
}

func TestNotifier_ErrorIsNormalized(t *testing.T) {
	n := NewNotifier()

	serverErr := n.Error(&apperrors.ServiceError{Op: "list projects", StatusCode: 503})
	clientErr := n.Error(errors.New("dial tcp: connection refused"))

	assert.Equal(t, NotificationError, serverErr.Level)
	assert.Equal(t, "Server error: 503 Service Unavailable", serverErr.Message)
	assert.Equal(t, "Client error: dial tcp: connection refused", clientErr.Message)
	assert.NotEqual(t, serverErr.ID, clientErr.ID)
}

func TestNotifier_Subscribe(t *testing.T) {
	n := NewNotifier()
	ch, unsubscribe := n.Subscribe()

	n.Publish(NotificationInfo, "hello")
	got := <-ch
	assert.Equal(t, "hello", got.Message)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	n.Publish(NotificationInfo, "after unsubscribe")
}

func TestLoadState_OverlappingLoads(t *testing.T) {
	l := NewLoadState()
	assert.Equal(t, LoadingFlags{}, l.Flags())

	first := l.Begin(LoadNotes)
	second := l.Begin(LoadNotes)
	assert.True(t, l.Flags().Notes)
	assert.False(t, l.Flags().Reports)

	first()
	first()
	assert.True(t, l.Flags().Notes, "one load is still running")

	second()
	assert.False(t, l.Flags().Notes)
}
