package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/outbox"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/providers"
	"github.com/google/uuid"
)

// --- Reservation Repository Mock ---

// MockReservationRepository is an in-memory reservation.Repository. Like the
// Postgres store it refuses a second active reservation for the same slot.
type MockReservationRepository struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation.Reservation

	CheckAvailabilityFunc func(ctx context.Context, court reservation.Court, date time.Time, slot reservation.TimeSlot) (bool, error)
	CreateFunc            func(ctx context.Context, r *reservation.Reservation) error
	TransitionFunc        func(ctx context.Context, id uuid.UUID, newStatus reservation.Status, note reservation.TransitionNote) (*reservation.Reservation, error)
	FindByIDFunc          func(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error)
	FindByPaymentRefFunc  func(ctx context.Context, ref string) (*reservation.Reservation, error)
	ListByDateFunc        func(ctx context.Context, court reservation.Court, date time.Time) ([]*reservation.Reservation, error)
	ListStalePendingFunc  func(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error)
}

func NewMockReservationRepository() *MockReservationRepository {
	return &MockReservationRepository{
		reservations: make(map[uuid.UUID]*reservation.Reservation),
	}
}

// Put stores a reservation as-is, bypassing slot checks.
func (m *MockReservationRepository) Put(r *reservation.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reservations[r.ID] = &cp
}

// All returns a snapshot of every stored reservation.
func (m *MockReservationRepository) All() []*reservation.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*reservation.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (m *MockReservationRepository) CheckAvailability(ctx context.Context, court reservation.Court, date time.Time, slot reservation.TimeSlot) (bool, error) {
	if m.CheckAvailabilityFunc != nil {
		return m.CheckAvailabilityFunc(ctx, court, date, slot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holderLocked(court, date, slot) == nil, nil
}

func (m *MockReservationRepository) Create(ctx context.Context, r *reservation.Reservation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holderLocked(r.Court, r.Date, r.TimeSlot) != nil {
		return domainErrors.NewConflictError(string(r.Court), r.Date.Format(reservation.DateLayout), string(r.TimeSlot))
	}
	cp := *r
	m.reservations[r.ID] = &cp
	return nil
}

func (m *MockReservationRepository) Transition(ctx context.Context, id uuid.UUID, newStatus reservation.Status, note reservation.TransitionNote) (*reservation.Reservation, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, newStatus, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[id]
	if !ok {
		return nil, domainErrors.ErrReservationNotFound
	}
	cp := *stored
	if err := cp.Apply(newStatus, note); err != nil {
		return nil, err
	}
	m.reservations[id] = &cp
	out := cp
	return &out, nil
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, domainErrors.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockReservationRepository) FindByPaymentRef(ctx context.Context, ref string) (*reservation.Reservation, error) {
	if m.FindByPaymentRefFunc != nil {
		return m.FindByPaymentRefFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.PaymentRef != nil && *r.PaymentRef == ref {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrReservationNotFound
}

func (m *MockReservationRepository) ListByDate(ctx context.Context, court reservation.Court, date time.Time) ([]*reservation.Reservation, error) {
	if m.ListByDateFunc != nil {
		return m.ListByDateFunc(ctx, court, date)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range m.reservations {
		if r.Court == court && r.Date.Equal(date) && r.IsActive() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockReservationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	if m.ListStalePendingFunc != nil {
		return m.ListStalePendingFunc(ctx, cutoff, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range m.reservations {
		if r.Status == reservation.StatusPending && r.PaymentMethod.RequiresProvider() && r.CreatedAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockReservationRepository) holderLocked(court reservation.Court, date time.Time, slot reservation.TimeSlot) *reservation.Reservation {
	for _, r := range m.reservations {
		if r.Court == court && r.Date.Equal(date) && r.TimeSlot == slot && r.IsActive() {
			return r
		}
	}
	return nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository that
// remembers inserted entries.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
	PurgeFunc         func(ctx context.Context, before time.Time) (int64, error)
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	if m.PurgeFunc != nil {
		return m.PurgeFunc(ctx, before)
	}
	return 0, nil
}

// EventTypes lists the event types inserted so far, in order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.EventType)
	}
	return out
}

// --- Gateway Mock ---

// MockGateway is a scriptable providers.Gateway. Without overrides it opens
// intents named after the reservation and completes every confirmation.
type MockGateway struct {
	Method reservation.PaymentMethod

	CreateIntentFunc  func(ctx context.Context, req providers.IntentRequest) (*providers.Intent, error)
	ConfirmIntentFunc func(ctx context.Context, req providers.ConfirmRequest) (*providers.Confirmation, error)
	CancelIntentFunc  func(ctx context.Context, externalID string) error

	mu           sync.Mutex
	createCalls  int
	confirmCalls int
	cancelled    []string
}

func NewMockGateway(method reservation.PaymentMethod) *MockGateway {
	return &MockGateway{Method: method}
}

func (m *MockGateway) Name() reservation.PaymentMethod { return m.Method }

func (m *MockGateway) CreateIntent(ctx context.Context, req providers.IntentRequest) (*providers.Intent, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	return &providers.Intent{
		ExternalID:  fmt.Sprintf("%s-%s", m.Method, req.ReservationID),
		Status:      providers.IntentCreated,
		Amount:      req.Amount,
		RedirectURL: "https://provider.test/approve/" + req.ReservationID,
	}, nil
}

func (m *MockGateway) ConfirmIntent(ctx context.Context, req providers.ConfirmRequest) (*providers.Confirmation, error) {
	m.mu.Lock()
	m.confirmCalls++
	m.mu.Unlock()
	if m.ConfirmIntentFunc != nil {
		return m.ConfirmIntentFunc(ctx, req)
	}
	return &providers.Confirmation{
		ExternalID:    req.ExternalID,
		TransactionID: "txn-" + req.ExternalID,
		Status:        providers.IntentCompleted,
	}, nil
}

func (m *MockGateway) CancelIntent(ctx context.Context, externalID string) error {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, externalID)
	m.mu.Unlock()
	if m.CancelIntentFunc != nil {
		return m.CancelIntentFunc(ctx, externalID)
	}
	return nil
}

func (m *MockGateway) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

func (m *MockGateway) ConfirmCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmCalls
}

// Cancelled returns the external ids passed to CancelIntent.
func (m *MockGateway) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// MockGatewayResolver resolves gateways from a fixed set.
type MockGatewayResolver struct {
	gateways map[reservation.PaymentMethod]providers.Gateway
}

func NewMockGatewayResolver(gateways ...providers.Gateway) *MockGatewayResolver {
	r := &MockGatewayResolver{gateways: make(map[reservation.PaymentMethod]providers.Gateway)}
	r.gateways[reservation.MethodCash] = providers.NewCashGateway()
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *MockGatewayResolver) Get(method reservation.PaymentMethod) (providers.Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, domainErrors.ErrProviderNotFound
	}
	return g, nil
}

// --- Locker Mock ---

// MockLocker grants each key to one holder at a time.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

// Hold marks key as held by someone else.
func (m *MockLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = true
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, true, nil
}

// IsHeld reports whether key is currently locked.
func (m *MockLocker) IsHeld(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

// --- Slot Notifier Mock ---

// MockSlotNotifier records every slot change.
type MockSlotNotifier struct {
	mu      sync.Mutex
	changes []reservation.SlotChange
}

func (m *MockSlotNotifier) SlotChanged(_ context.Context, change reservation.SlotChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
}

func (m *MockSlotNotifier) Changes() []reservation.SlotChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reservation.SlotChange(nil), m.changes...)
}
