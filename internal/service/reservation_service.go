package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/outbox"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/cassiomorais/courts/internal/providers"
	"github.com/cassiomorais/courts/pkg/saga"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	captureLockPrefix = "reservation:capture:"
	sweepLockKey      = "reservation:expiry-sweep"
)

// TransactionManager runs fn in one database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// GatewayResolver resolves the gateway serving a payment method.
type GatewayResolver interface {
	Get(method reservation.PaymentMethod) (providers.Gateway, error)
}

// Locker hands out short-lived distributed locks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// SlotNotifier is told whenever a slot is taken or released.
type SlotNotifier interface {
	SlotChanged(ctx context.Context, change reservation.SlotChange)
}

// Settings tunes the reservation lifecycle.
type Settings struct {
	// Currencies maps each payment method to the currency it charges in.
	Currencies map[reservation.PaymentMethod]string
	// PendingTTL is how long a provider-backed reservation may wait for payment.
	PendingTTL time.Duration
	// CaptureLockTTL bounds how long one capture may hold its reference lock.
	CaptureLockTTL time.Duration
	// SweepBatch caps the reservations expired per sweep.
	SweepBatch int
}

// Option configures optional collaborators of ReservationService.
type Option func(*ReservationService)

// WithLocker serializes captures per payment reference and sweeps across instances.
func WithLocker(l Locker) Option {
	return func(s *ReservationService) { s.locker = l }
}

// WithNotifier publishes slot changes to live availability watchers.
func WithNotifier(n SlotNotifier) Option {
	return func(s *ReservationService) { s.notifier = n }
}

// WithMetrics records reservation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

// ReservationService orchestrates slot arbitration and payment for reservations.
type ReservationService struct {
	repo       reservation.Repository
	outboxRepo outbox.Writer
	txManager  TransactionManager
	gateways   GatewayResolver
	catalog    *reservation.Catalog
	settings   Settings

	locker   Locker
	notifier SlotNotifier
	metrics  *observability.Metrics
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	repo reservation.Repository,
	outboxRepo outbox.Writer,
	txManager TransactionManager,
	gateways GatewayResolver,
	catalog *reservation.Catalog,
	settings Settings,
	opts ...Option,
) *ReservationService {
	if settings.PendingTTL <= 0 {
		settings.PendingTTL = 15 * time.Minute
	}
	if settings.CaptureLockTTL <= 0 {
		settings.CaptureLockTTL = 30 * time.Second
	}
	if settings.SweepBatch <= 0 {
		settings.SweepBatch = 50
	}
	s := &ReservationService{
		repo:       repo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		gateways:   gateways,
		catalog:    catalog,
		settings:   settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the price table used to charge reservations.
func (s *ReservationService) Catalog() *reservation.Catalog {
	return s.catalog
}

// ReserveResult is the outcome of a successful Reserve.
type ReserveResult struct {
	Reservation *reservation.Reservation
	// Intent is the provider payment attempt the customer must complete. It is
	// nil when nothing is left to pay online.
	Intent *providers.Intent
}

// Reserve claims a slot for a validated draft. Provider-backed methods open the
// payment intent first and only then write the pending row; cash is confirmed
// immediately.
func (s *ReservationService) Reserve(ctx context.Context, d reservation.Draft) (*ReserveResult, error) {
	start := time.Now()

	currency := s.settings.Currencies[d.PaymentMethod]
	amount, ok := s.catalog.Price(d.Court, currency)
	if !ok {
		return nil, domainErrors.NewValidationError("court", "unknown court "+string(d.Court))
	}

	available, err := s.repo.CheckAvailability(ctx, d.Court, d.Date, d.TimeSlot)
	if err != nil {
		return nil, err
	}
	if !available {
		s.recordConflict(d.Court)
		return nil, domainErrors.NewConflictError(d.Slot())
	}

	gateway, err := s.gateways.Get(d.PaymentMethod)
	if err != nil {
		return nil, err
	}

	res := reservation.NewReservation(d, amount)
	logger := observability.WithReservation(log.Logger, res.ID.String(), string(res.Court), string(res.TimeSlot))

	var intent *providers.Intent
	_, err = saga.New("reserve").
		AddStep(saga.Step{
			Name: "create_intent",
			Execute: func(ctx context.Context) error {
				created, err := gateway.CreateIntent(ctx, providers.IntentRequest{
					ReservationID: res.ID.String(),
					Court:         res.Court,
					Date:          res.Date,
					TimeSlot:      res.TimeSlot,
					Amount:        amount,
					PayerName:     res.Booker.DisplayName(),
					PayerEmail:    res.Booker.ContactEmail(),
				})
				intent = created
				return err
			},
			Compensate: func(ctx context.Context) error {
				if intent == nil || intent.ExternalID == "" {
					return nil
				}
				return gateway.CancelIntent(context.WithoutCancel(ctx), intent.ExternalID)
			},
		}).
		AddStep(saga.Step{
			Name: "persist_reservation",
			Execute: func(ctx context.Context) error {
				return s.persist(ctx, res, intent)
			},
		}).
		Execute(ctx)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSlotTaken) {
			s.recordConflict(d.Court)
		} else {
			logger.Error().Err(err).Str("method", string(d.PaymentMethod)).Msg("reservation failed")
		}
		return nil, err
	}

	s.recordReservation(res, start)
	s.notify(ctx, res)
	logger.Info().Str("method", string(res.PaymentMethod)).Str("status", string(res.Status)).Msg("reservation created")

	result := &ReserveResult{Reservation: res}
	if intent != nil && intent.Status != providers.IntentCompleted {
		result.Intent = intent
	}
	return result, nil
}

// persist writes the reservation and its outbox event in one transaction. An
// intent the provider already settled confirms the reservation on insert.
func (s *ReservationService) persist(ctx context.Context, res *reservation.Reservation, intent *providers.Intent) error {
	if intent.ExternalID != "" {
		res.SetPaymentRef(intent.ExternalID)
	}
	eventType := outbox.EventReservationPending
	if intent.Status == providers.IntentCompleted {
		if err := res.MarkConfirmed(); err != nil {
			return err
		}
		eventType = outbox.EventReservationConfirmed
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, res); err != nil {
			return err
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewReservationEntry(res.ID, eventType, eventPayload(res)))
	})
}

// CaptureResult is the outcome of a capture or card submission.
type CaptureResult struct {
	Reservation  *reservation.Reservation
	Confirmation *providers.Confirmation
	// AlreadyConfirmed is set when an earlier capture had already settled the reservation.
	AlreadyConfirmed bool
}

// Confirmed reports whether the reservation is paid.
func (r *CaptureResult) Confirmed() bool {
	return r.Reservation.Status == reservation.StatusConfirmed
}

// CapturePayPalOrder captures an approved PayPal order and confirms its reservation.
func (s *ReservationService) CapturePayPalOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	if orderID == "" {
		return nil, domainErrors.NewValidationError("orderID", "is required")
	}
	res, err := s.repo.FindByPaymentRef(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.PaymentMethod != reservation.MethodPayPal {
		return nil, domainErrors.NewValidationError("orderID", "is not a PayPal order")
	}
	return s.settle(ctx, res.ID, orderID, nil)
}

// Submission is a card payment posted by the MercadoPago checkout widget.
// Either ReservationID (the preference external_reference) or PreferenceID
// identifies the reservation.
type Submission struct {
	ReservationID string
	PreferenceID  string
	Instrument    providers.CardInstrument
}

// SubmitCardPayment submits a tokenized card for a MercadoPago reservation.
func (s *ReservationService) SubmitCardPayment(ctx context.Context, sub Submission) (*CaptureResult, error) {
	var (
		res *reservation.Reservation
		err error
	)
	switch {
	case sub.ReservationID != "":
		id, parseErr := uuid.Parse(sub.ReservationID)
		if parseErr != nil {
			return nil, domainErrors.NewValidationError("reservationId", "must be a valid UUID")
		}
		res, err = s.repo.FindByID(ctx, id)
	case sub.PreferenceID != "":
		res, err = s.repo.FindByPaymentRef(ctx, sub.PreferenceID)
	default:
		return nil, domainErrors.NewValidationError("reservationId", "is required")
	}
	if err != nil {
		return nil, err
	}
	if res.PaymentMethod != reservation.MethodMercadoPago {
		return nil, domainErrors.NewValidationError("reservationId", "is not a MercadoPago reservation")
	}
	if res.PaymentRef == nil {
		return nil, domainErrors.NewDomainError("missing_payment_ref", "reservation has no payment preference", domainErrors.ErrInvalidStateTransition)
	}

	instrument := sub.Instrument
	return s.settle(ctx, res.ID, *res.PaymentRef, &instrument)
}

// settle confirms the intent behind a reservation while holding the lock for its
// payment reference, then applies the outcome to the reservation.
func (s *ReservationService) settle(ctx context.Context, id uuid.UUID, ref string, instrument *providers.CardInstrument) (*CaptureResult, error) {
	release, acquired, err := s.tryLock(ctx, captureLockPrefix+ref, s.settings.CaptureLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire capture lock: %w", err)
	}
	if !acquired {
		return nil, domainErrors.ErrCaptureInProgress
	}
	defer s.unlock(ctx, release)

	// Re-read under the lock: a concurrent capture may have finished meanwhile.
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case reservation.StatusConfirmed:
		return &CaptureResult{Reservation: res, AlreadyConfirmed: true}, nil
	case reservation.StatusCancelled:
		return nil, closedError(res.Status, "cannot capture payment for a cancelled reservation")
	}

	gateway, err := s.gateways.Get(res.PaymentMethod)
	if err != nil {
		return nil, err
	}

	conf, err := gateway.ConfirmIntent(ctx, providers.ConfirmRequest{
		ExternalID:    ref,
		ReservationID: res.ID.String(),
		Amount:        res.Amount,
		Instrument:    instrument,
	})
	s.recordCapture(res.PaymentMethod, err)
	if err != nil {
		return nil, s.captureFailed(ctx, res, err)
	}
	if !conf.Completed() {
		log.Info().Str("reservation_id", res.ID.String()).Str("provider_status", string(conf.Status)).Msg("payment pending at provider")
		return &CaptureResult{Reservation: res, Confirmation: conf}, nil
	}

	updated, err := s.transition(ctx, res.ID, reservation.StatusConfirmed, reservation.TransitionNote{TransactionID: conf.TransactionID})
	if err != nil {
		return nil, err
	}
	s.pendingResolved()
	log.Info().Str("reservation_id", res.ID.String()).Str("transaction_id", conf.TransactionID).Msg("reservation confirmed")
	return &CaptureResult{Reservation: updated, Confirmation: conf}, nil
}

// captureFailed leaves the reservation pending for declines and transient
// failures so the customer can retry, and cancels it when the provider
// rejected the intent for good.
func (s *ReservationService) captureFailed(ctx context.Context, res *reservation.Reservation, err error) error {
	logger := log.With().Str("reservation_id", res.ID.String()).Str("method", string(res.PaymentMethod)).Logger()

	var declined *domainErrors.DeclinedError
	if errors.As(err, &declined) {
		logger.Info().Str("issue", declined.Issue).Msg("payment declined")
		return err
	}

	var gwErr *domainErrors.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Retryable || gwErr.CredentialFailure() {
		logger.Warn().Err(err).Msg("capture failed, reservation left pending")
		return err
	}

	logger.Error().Err(err).Int("provider_status", gwErr.Status).Msg("provider rejected payment, cancelling reservation")
	if _, cancelErr := s.transition(ctx, res.ID, reservation.StatusCancelled, reservation.TransitionNote{Reason: reservation.ReasonPaymentFailed}); cancelErr != nil {
		logger.Error().Err(cancelErr).Msg("failed to cancel rejected reservation")
	} else {
		s.pendingResolved()
	}
	return err
}

// closedError reports an operation against a reservation that reached a
// terminal status.
func closedError(status reservation.Status, message string) *domainErrors.DomainError {
	return domainErrors.NewDomainError("reservation_"+string(status), message, domainErrors.ErrInvalidStateTransition)
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	return s.repo.FindByID(ctx, id)
}

// Cancel releases a pending reservation. Any open provider intent is abandoned
// best-effort.
func (s *ReservationService) Cancel(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != reservation.StatusPending {
		return nil, closedError(res.Status, "only pending reservations can be cancelled")
	}

	if res.PaymentRef != nil {
		release, acquired, err := s.tryLock(ctx, captureLockPrefix+*res.PaymentRef, s.settings.CaptureLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire capture lock: %w", err)
		}
		if !acquired {
			return nil, domainErrors.ErrCaptureInProgress
		}
		defer s.unlock(ctx, release)
	}

	updated, err := s.transition(ctx, id, reservation.StatusCancelled, reservation.TransitionNote{Reason: reservation.ReasonUserCancelled})
	if err != nil {
		return nil, err
	}
	s.pendingResolved()
	s.abandonIntent(ctx, updated)
	return updated, nil
}

// SlotState is one row of a court's daily availability grid.
type SlotState struct {
	TimeSlot  reservation.TimeSlot
	Available bool
	Status    reservation.Status
}

// Availability returns the state of every bookable slot of a court on a date.
func (s *ReservationService) Availability(ctx context.Context, court reservation.Court, date time.Time) ([]SlotState, error) {
	if !s.catalog.Has(court) {
		return nil, domainErrors.NewValidationError("court", "unknown court "+string(court))
	}
	active, err := s.repo.ListByDate(ctx, court, reservation.NormalizeDate(date))
	if err != nil {
		return nil, err
	}

	taken := make(map[reservation.TimeSlot]reservation.Status, len(active))
	for _, r := range active {
		taken[r.TimeSlot] = r.Status
	}

	grid := make([]SlotState, 0, len(reservation.Slots))
	for _, slot := range reservation.Slots {
		status, held := taken[slot]
		grid = append(grid, SlotState{TimeSlot: slot, Available: !held, Status: status})
	}
	return grid, nil
}

// ExpirePending cancels provider-backed reservations that stayed unpaid past
// the pending TTL. Only one instance sweeps at a time.
func (s *ReservationService) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	release, acquired, err := s.tryLock(ctx, sweepLockKey, s.settings.PendingTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}
	defer s.unlock(ctx, release)

	stale, err := s.repo.ListStalePending(ctx, now.Add(-s.settings.PendingTTL), s.settings.SweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, res := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		ok, err := s.expire(ctx, res)
		if err != nil {
			log.Error().Err(err).Str("reservation_id", res.ID.String()).Msg("failed to expire reservation")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		if s.metrics != nil {
			s.metrics.ReservationsExpired.Add(float64(expired))
		}
		log.Info().Int("count", expired).Msg("expired unpaid reservations")
	}
	return expired, nil
}

func (s *ReservationService) expire(ctx context.Context, res *reservation.Reservation) (bool, error) {
	if res.PaymentRef != nil {
		release, acquired, err := s.tryLock(ctx, captureLockPrefix+*res.PaymentRef, s.settings.CaptureLockTTL)
		if err != nil {
			return false, err
		}
		if !acquired {
			return false, nil
		}
		defer s.unlock(ctx, release)
	}

	updated, err := s.transition(ctx, res.ID, reservation.StatusCancelled, reservation.TransitionNote{Reason: reservation.ReasonPendingExpired})
	if errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.pendingResolved()
	s.abandonIntent(ctx, updated)
	return true, nil
}

// transition applies a status change and enqueues the matching event atomically.
func (s *ReservationService) transition(ctx context.Context, id uuid.UUID, status reservation.Status, note reservation.TransitionNote) (*reservation.Reservation, error) {
	var updated *reservation.Reservation
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		res, err := s.repo.Transition(txCtx, id, status, note)
		if err != nil {
			return err
		}
		updated = res
		return s.outboxRepo.Insert(txCtx, outbox.NewReservationEntry(res.ID, eventTypeFor(res.Status), eventPayload(res)))
	})
	if err != nil {
		return nil, err
	}
	if status == reservation.StatusCancelled {
		s.notify(ctx, updated)
	}
	return updated, nil
}

func (s *ReservationService) abandonIntent(ctx context.Context, res *reservation.Reservation) {
	if res.PaymentRef == nil {
		return
	}
	gateway, err := s.gateways.Get(res.PaymentMethod)
	if err != nil {
		return
	}
	if err := gateway.CancelIntent(context.WithoutCancel(ctx), *res.PaymentRef); err != nil {
		log.Warn().Err(err).Str("reservation_id", res.ID.String()).Msg("failed to cancel payment intent")
	}
}

func (s *ReservationService) tryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if s.locker == nil {
		return func(context.Context) error { return nil }, true, nil
	}
	return s.locker.TryLock(ctx, key, ttl)
}

func (s *ReservationService) unlock(ctx context.Context, release func(context.Context) error) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("failed to release lock")
	}
}

func (s *ReservationService) notify(ctx context.Context, res *reservation.Reservation) {
	if s.notifier != nil {
		s.notifier.SlotChanged(ctx, res.SlotChange())
	}
}

func (s *ReservationService) recordReservation(res *reservation.Reservation, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReservationsTotal.WithLabelValues(string(res.PaymentMethod), string(res.Status)).Inc()
	s.metrics.ReservationDuration.WithLabelValues(string(res.PaymentMethod)).Observe(time.Since(start).Seconds())
	if res.Status == reservation.StatusPending {
		s.metrics.PendingReservations.Inc()
	}
}

func (s *ReservationService) recordConflict(court reservation.Court) {
	if s.metrics != nil {
		s.metrics.SlotConflicts.WithLabelValues(string(court)).Inc()
	}
}

func (s *ReservationService) recordCapture(method reservation.PaymentMethod, err error) {
	if s.metrics != nil {
		s.metrics.CapturesTotal.WithLabelValues(string(method), providers.Outcome(err)).Inc()
	}
}

func (s *ReservationService) pendingResolved() {
	if s.metrics != nil {
		s.metrics.PendingReservations.Dec()
	}
}

func eventTypeFor(status reservation.Status) string {
	switch status {
	case reservation.StatusConfirmed:
		return outbox.EventReservationConfirmed
	case reservation.StatusCancelled:
		return outbox.EventReservationCancelled
	default:
		return outbox.EventReservationPending
	}
}

func eventPayload(res *reservation.Reservation) map[string]any {
	payload := map[string]any{
		"reservation_id": res.ID.String(),
		"court":          string(res.Court),
		"date":           res.Date.Format(reservation.DateLayout),
		"time_slot":      string(res.TimeSlot),
		"payment_method": string(res.PaymentMethod),
		"status":         string(res.Status),
		"booker_kind":    string(res.Booker.Kind()),
		"amount":         res.Amount.Decimal(),
		"currency":       res.Amount.Currency,
	}
	if res.PaymentRef != nil {
		payload["payment_ref"] = *res.PaymentRef
	}
	if res.ProviderTxID != nil {
		payload["provider_transaction_id"] = *res.ProviderTxID
	}
	if res.CancelReason != nil {
		payload["cancel_reason"] = *res.CancelReason
	}
	return payload
}
