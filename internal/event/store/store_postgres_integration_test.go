//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"bookedge/internal/event/models"
	"bookedge/internal/event/store"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func (s *PostgresStoreSuite) seedReservation(ref, paymentID string, status models.PaymentStatus) {
	_, err := s.postgres.DB.ExecContext(context.Background(), `
		INSERT INTO reservations (reference, user_ref, shop_name, amount, payment_status, payment_id)
		VALUES ($1, 'user_1', 'Nail Atelier', 55000, $2, $3)
	`, ref, string(status), paymentID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) paymentStatus(ref string) models.PaymentStatus {
	var status string
	err := s.postgres.DB.QueryRowContext(context.Background(),
		`SELECT payment_status FROM reservations WHERE reference = $1`, ref).Scan(&status)
	s.Require().NoError(err)
	return models.PaymentStatus(status)
}

func paidEvent(txID, paymentID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Type: models.EventTypePaid,
		Data: models.EventData{PaymentID: paymentID, TransactionID: txID},
	}
}

func (s *PostgresStoreSuite) TestFirstClaimAppliesTransition() {
	ctx := context.Background()
	s.seedReservation("resv_1", "pay_1", models.StatusPending)

	result, info, err := s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_1"))
	s.Require().NoError(err)

	s.True(result.FirstClaim)
	s.Equal("resv_1", result.ReservationRef)
	s.Require().NotNil(result.Transition)
	s.True(result.Transition.Applied())
	s.Equal(models.StatusPaid, s.paymentStatus("resv_1"))

	s.Require().NotNil(info)
	s.Equal("user_1", info.UserRef)
	s.Equal("Nail Atelier", info.ShopName)
	s.Equal(int64(55000), info.Amount)
}

func (s *PostgresStoreSuite) TestDuplicateDeliveryTouchesNothing() {
	ctx := context.Background()
	s.seedReservation("resv_1", "pay_1", models.StatusPending)

	event := paidEvent("tx_1", "pay_1")
	_, _, err := s.store.ApplyEvent(ctx, event)
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		result, _, err := s.store.ApplyEvent(ctx, event)
		s.Require().NoError(err)
		s.False(result.FirstClaim)
	}
	s.Equal(models.StatusPaid, s.paymentStatus("resv_1"))
}

func (s *PostgresStoreSuite) TestConcurrentClaimsExactlyOneWins() {
	ctx := context.Background()
	s.seedReservation("resv_1", "pay_1", models.StatusPending)

	const deliveries = 10
	var firstClaims atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := s.store.ApplyEvent(ctx, paidEvent("tx_race", "pay_1"))
			if err != nil {
				return
			}
			if result.FirstClaim {
				firstClaims.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int64(1), firstClaims.Load(), "exactly one delivery may win the claim")
	s.Equal(models.StatusPaid, s.paymentStatus("resv_1"))
}

func (s *PostgresStoreSuite) TestConflictIsRecordedNotApplied() {
	ctx := context.Background()
	s.seedReservation("resv_1", "pay_1", models.StatusCancelled)

	result, _, err := s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_1"))
	s.Require().NoError(err)

	s.True(result.FirstClaim)
	s.Require().NotNil(result.Transition)
	s.True(result.Transition.Conflict)
	s.Equal(models.StatusCancelled, s.paymentStatus("resv_1"), "conflicting events never overwrite state")

	// The claim still committed: the provider's retry is a duplicate now.
	result, _, err = s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_1"))
	s.Require().NoError(err)
	s.False(result.FirstClaim)
}

func (s *PostgresStoreSuite) TestCustomDataRefWinsOverPaymentLookup() {
	ctx := context.Background()
	s.seedReservation("resv_direct", "", models.StatusPending)
	s.seedReservation("resv_by_payment", "pay_1", models.StatusPending)

	event := paidEvent("tx_1", "pay_1")
	event.Data.CustomData = `{"reservationId":"resv_direct"}`

	result, _, err := s.store.ApplyEvent(ctx, event)
	s.Require().NoError(err)
	s.Equal("resv_direct", result.ReservationRef)
	s.Equal(models.StatusPaid, s.paymentStatus("resv_direct"))
	s.Equal(models.StatusPending, s.paymentStatus("resv_by_payment"))
}

func (s *PostgresStoreSuite) TestUnmappedPaymentIsAcknowledged() {
	ctx := context.Background()

	result, info, err := s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_unknown"))
	s.Require().NoError(err)

	s.True(result.FirstClaim)
	s.Empty(result.ReservationRef)
	s.Nil(result.Transition)
	s.Nil(info)

	result, _, err = s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_unknown"))
	s.Require().NoError(err)
	s.False(result.FirstClaim, "the unmapped event is still recorded")
}

func (s *PostgresStoreSuite) TestStorageFailureIsUnavailable() {
	ctx := context.Background()

	_, err := s.postgres.DB.ExecContext(ctx, `ALTER TABLE processed_events RENAME TO processed_events_gone`)
	s.Require().NoError(err)
	defer func() {
		_, err := s.postgres.DB.ExecContext(ctx, `ALTER TABLE processed_events_gone RENAME TO processed_events`)
		s.Require().NoError(err)
	}()

	_, _, err = s.store.ApplyEvent(ctx, paidEvent("tx_1", "pay_1"))
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
}
