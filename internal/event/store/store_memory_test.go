package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookedge/internal/event/models"
	"bookedge/internal/event/store"
	dErrors "bookedge/pkg/domainerrors"
)

func newEvent(eventType models.EventType, txID, paymentID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Type: eventType,
		Data: models.EventData{PaymentID: paymentID, TransactionID: txID},
	}
}

func TestMemoryStoreApply(t *testing.T) {
	s := store.NewMemory()
	s.AddReservation("resv_1", "user_1", "Nail Atelier", 55000, models.StatusPending, "pay_1")

	result, info, err := s.ApplyEvent(context.Background(),
		newEvent(models.EventTypePaid, "tx_1", "pay_1"))
	require.NoError(t, err)

	assert.True(t, result.FirstClaim)
	assert.Equal(t, "resv_1", result.ReservationRef)
	require.NotNil(t, result.Transition)
	assert.True(t, result.Transition.Applied())
	require.NotNil(t, info)
	assert.Equal(t, "user_1", info.UserRef)

	status, ok := s.Status("resv_1")
	require.True(t, ok)
	assert.Equal(t, models.StatusPaid, status)
}

func TestMemoryStoreDuplicate(t *testing.T) {
	s := store.NewMemory()
	s.AddReservation("resv_1", "user_1", "", 0, models.StatusPending, "pay_1")

	event := newEvent(models.EventTypeCancelled, "tx_1", "pay_1")
	_, _, err := s.ApplyEvent(context.Background(), event)
	require.NoError(t, err)

	result, _, err := s.ApplyEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, result.FirstClaim)
}

func TestMemoryStoreConcurrentClaims(t *testing.T) {
	s := store.NewMemory()
	s.AddReservation("resv_1", "user_1", "", 0, models.StatusPending, "pay_1")

	var firstClaims atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := s.ApplyEvent(context.Background(),
				newEvent(models.EventTypePaid, "tx_race", "pay_1"))
			require.NoError(t, err)
			if result.FirstClaim {
				firstClaims.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), firstClaims.Load())
}

func TestMemoryStoreFailure(t *testing.T) {
	s := store.NewMemory()
	s.FailWith(errors.New("boom"))

	_, _, err := s.ApplyEvent(context.Background(),
		newEvent(models.EventTypePaid, "tx_1", "pay_1"))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}
