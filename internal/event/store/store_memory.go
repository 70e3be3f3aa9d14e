package store

import (
	"context"
	"sync"
	"time"

	"bookedge/internal/event/models"
	"bookedge/internal/event/processor"
	dErrors "bookedge/pkg/domainerrors"
)

// memReservation mirrors one reservations row.
type memReservation struct {
	Ref      string
	UserRef  string
	ShopName string
	Amount   int64
	Status   models.PaymentStatus
	PayID    string
}

// MemoryStore implements the claim-and-apply unit in memory. Used in tests
// and demo deployments; it provides the same atomicity per process but no
// cross-instance guarantee.
type MemoryStore struct {
	mu           sync.Mutex
	claims       map[string]*models.IdempotencyRecord
	reservations map[string]*memReservation
	byPayment    map[string]string
	err          error
	clock        func() time.Time
}

// NewMemory constructs an empty in-memory event store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		claims:       make(map[string]*models.IdempotencyRecord),
		reservations: make(map[string]*memReservation),
		byPayment:    make(map[string]string),
		clock:        time.Now,
	}
}

// AddReservation seeds a reservation.
func (s *MemoryStore) AddReservation(ref, userRef, shopName string, amount int64, status models.PaymentStatus, paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[ref] = &memReservation{
		Ref: ref, UserRef: userRef, ShopName: shopName,
		Amount: amount, Status: status, PayID: paymentID,
	}
	if paymentID != "" {
		s.byPayment[paymentID] = ref
	}
}

// Status returns the current payment status of a reservation.
func (s *MemoryStore) Status(ref string) (models.PaymentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[ref]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// Claimed reports whether an event id has been recorded.
func (s *MemoryStore) Claimed(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claims[eventID]
	return ok
}

// FailWith makes subsequent applies return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) ApplyEvent(_ context.Context, event *models.WebhookEvent) (*models.ApplyResult, *processor.ReservationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, nil, dErrors.Wrap(s.err, dErrors.CodeUnavailable, "event storage unavailable")
	}

	eventID := event.EventID()
	if _, dup := s.claims[eventID]; dup {
		return &models.ApplyResult{FirstClaim: false}, nil, nil
	}

	record := &models.IdempotencyRecord{
		EventID:     eventID,
		EventType:   event.Type,
		PaymentID:   event.Data.PaymentID,
		ProcessedAt: s.clock(),
	}
	s.claims[eventID] = record

	ref := event.ReservationRefFromCustomData()
	if ref == "" {
		ref = s.byPayment[event.Data.PaymentID]
	}
	res, ok := s.reservations[ref]
	if !ok {
		record.OutcomeHash = models.OutcomeHash(eventID, "", "")
		return &models.ApplyResult{FirstClaim: true}, nil, nil
	}

	transition := processor.Transition(event.Type, res.Status)
	if transition.Applied() {
		res.Status = transition.To
		res.PayID = event.Data.PaymentID
		s.byPayment[event.Data.PaymentID] = res.Ref
	}
	record.OutcomeHash = models.OutcomeHash(eventID, transition.From, transition.To)

	info := &processor.ReservationInfo{
		Ref:      res.Ref,
		UserRef:  res.UserRef,
		ShopName: res.ShopName,
		Amount:   res.Amount,
	}
	return &models.ApplyResult{
		FirstClaim:     true,
		ReservationRef: res.Ref,
		Transition:     transition,
	}, info, nil
}
