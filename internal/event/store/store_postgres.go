// Package store persists webhook event application: the idempotency ledger
// and the guarded reservation transition, committed together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"bookedge/internal/event/models"
	"bookedge/internal/event/processor"
	dErrors "bookedge/pkg/domainerrors"
)

// PostgresStore implements the atomic claim-and-apply unit over PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyEvent claims the event id and applies the reservation transition in
// one transaction. Duplicate deliveries return FirstClaim=false and touch
// nothing. Any storage failure rolls back and surfaces as unavailable so
// the caller fails closed and the provider retries.
func (s *PostgresStore) ApplyEvent(ctx context.Context, event *models.WebhookEvent) (*models.ApplyResult, *processor.ReservationInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, unavailable(err, "begin event transaction")
	}
	defer func() { _ = tx.Rollback() }()

	first, err := s.claim(ctx, tx, event)
	if err != nil {
		return nil, nil, err
	}
	if !first {
		return &models.ApplyResult{FirstClaim: false}, nil, nil
	}

	result := &models.ApplyResult{FirstClaim: true}

	ref, info, err := s.resolveReservation(ctx, tx, event)
	if err != nil {
		return nil, nil, err
	}
	if ref == "" {
		// Payment with no mapped reservation: record the event so retries
		// stop, leave reconciliation to operators.
		if err := s.finishClaim(ctx, tx, event, models.OutcomeHash(event.EventID(), "", "")); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, nil, unavailable(err, "commit event transaction")
		}
		return result, nil, nil
	}
	result.ReservationRef = ref

	current, err := s.lockStatus(ctx, tx, ref)
	if err != nil {
		return nil, nil, err
	}

	transition := processor.Transition(event.Type, current)
	result.Transition = transition

	if transition.Applied() {
		if err := s.applyTransition(ctx, tx, ref, event, transition); err != nil {
			return nil, nil, err
		}
	}

	hash := models.OutcomeHash(event.EventID(), transition.From, transition.To)
	if err := s.finishClaim(ctx, tx, event, hash); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, unavailable(err, "commit event transaction")
	}
	return result, info, nil
}

// claim inserts the idempotency record. RowsAffected 0 means the unique
// constraint held: this delivery is a retry.
func (s *PostgresStore) claim(ctx context.Context, tx *sql.Tx, event *models.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO processed_events (event_id, event_type, payment_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query,
		event.EventID(), string(event.Type), event.Data.PaymentID, s.clock())
	if err != nil {
		return false, unavailable(err, "claim event")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err, "claim event")
	}
	return rows == 1, nil
}

// finishClaim records what the event did.
func (s *PostgresStore) finishClaim(ctx context.Context, tx *sql.Tx, event *models.WebhookEvent, outcomeHash string) error {
	query := `
		UPDATE processed_events
		SET outcome_hash = $2
		WHERE event_id = $1
	`
	if _, err := tx.ExecContext(ctx, query, event.EventID(), outcomeHash); err != nil {
		return unavailable(err, "record event outcome")
	}
	return nil
}

// resolveReservation finds the reservation for the payment: the custom data
// reference wins, then a lookup by payment id.
func (s *PostgresStore) resolveReservation(ctx context.Context, tx *sql.Tx, event *models.WebhookEvent) (string, *processor.ReservationInfo, error) {
	ref := event.ReservationRefFromCustomData()

	var query string
	var arg string
	if ref != "" {
		query = `
			SELECT reference, user_ref, shop_name, amount
			FROM reservations
			WHERE reference = $1
		`
		arg = ref
	} else {
		query = `
			SELECT reference, user_ref, shop_name, amount
			FROM reservations
			WHERE payment_id = $1
		`
		arg = event.Data.PaymentID
	}

	info := &processor.ReservationInfo{}
	err := tx.QueryRowContext(ctx, query, arg).
		Scan(&info.Ref, &info.UserRef, &info.ShopName, &info.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, unavailable(err, "resolve reservation")
	}
	return info.Ref, info, nil
}

// lockStatus reads the current payment status under a row lock so a racing
// transaction for another event on the same reservation serializes behind
// this one.
func (s *PostgresStore) lockStatus(ctx context.Context, tx *sql.Tx, ref string) (models.PaymentStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT payment_status FROM reservations WHERE reference = $1 FOR UPDATE`,
		ref).Scan(&status)
	if err != nil {
		return "", unavailable(err, "lock reservation")
	}
	return models.PaymentStatus(status), nil
}

// applyTransition performs the guarded update. The status guard re-checks
// the allowed source states even under the row lock; rows affected must be 1.
func (s *PostgresStore) applyTransition(ctx context.Context, tx *sql.Tx, ref string, event *models.WebhookEvent, t *models.Transition) error {
	allowed := processor.AllowedFrom(event.Type)
	from := make([]string, len(allowed))
	for i, a := range allowed {
		from[i] = string(a)
	}

	query := `
		UPDATE reservations
		SET payment_status = $2,
		    payment_id = $3,
		    updated_at = $4
		WHERE reference = $1
		  AND payment_status = ANY($5)
	`
	res, err := tx.ExecContext(ctx, query,
		ref, string(t.To), event.Data.PaymentID, s.clock(), from)
	if err != nil {
		return unavailable(err, "apply transition")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return unavailable(err, "apply transition")
	}
	if rows != 1 {
		return unavailable(fmt.Errorf("guarded update affected %d rows", rows), "apply transition")
	}
	return nil
}

func unavailable(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		err = fmt.Errorf("%s: %s (%s)", op, pgErr.Message, pgErr.Code)
	} else {
		err = fmt.Errorf("%s: %w", op, err)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "event storage unavailable")
}
