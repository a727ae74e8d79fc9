package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"

	activeSlotConstraint = "reservations_active_slot_uq"
	paymentRefConstraint = "reservations_payment_ref_uq"
)

const reservationColumns = `id, court, reservation_date, time_slot, payment_method, status,
	booker_kind, user_id, contact_name, contact_email, contact_phone,
	payment_ref, provider_transaction_id, amount::text, currency, cancel_reason, created_at, updated_at`

// ReservationRepository implements reservation.Repository using PostgreSQL.
// The partial unique index on active slots is the arbiter of conflicts.
type ReservationRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

var _ reservation.Repository = (*ReservationRepository)(nil)

// NewReservationRepository creates a new ReservationRepository.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool, tx: NewTxManager(pool)}
}

func (r *ReservationRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// CheckAvailability reports whether the slot has no active reservation.
func (r *ReservationRepository) CheckAvailability(ctx context.Context, court reservation.Court, date time.Time, slot reservation.TimeSlot) (bool, error) {
	var taken bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM reservations
		   WHERE court = $1 AND reservation_date = $2 AND time_slot = $3
		     AND status IN ('pending', 'confirmed'))`,
		string(court), date.Format(reservation.DateLayout), string(slot),
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !taken, nil
}

// Create inserts a reservation. A concurrent insert for the same active slot
// loses on the unique index and surfaces as a ConflictError.
func (r *ReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	b := bookerColumnsOf(res.Booker)
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO reservations
		 (id, court, reservation_date, time_slot, payment_method, status,
		  booker_kind, user_id, contact_name, contact_email, contact_phone,
		  payment_ref, provider_transaction_id, amount, currency, cancel_reason, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::numeric,$15,$16,$17,$18)`,
		res.ID, string(res.Court), res.Date.Format(reservation.DateLayout), string(res.TimeSlot),
		string(res.PaymentMethod), string(res.Status),
		string(b.kind), b.userID, b.name, b.email, b.phone,
		res.PaymentRef, res.ProviderTxID, res.Amount.Decimal(), res.Amount.Currency, res.CancelReason,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return insertError(err, res)
	}
	return nil
}

func insertError(err error, res *reservation.Reservation) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case activeSlotConstraint:
			return domainErrors.NewConflictError(string(res.Court), res.Date.Format(reservation.DateLayout), string(res.TimeSlot))
		case paymentRefConstraint:
			return domainErrors.NewDomainError("duplicate_payment_ref", "payment reference already bound to a reservation", domainErrors.ErrInvalidInput)
		}
	}
	return fmt.Errorf("insert reservation: %w", err)
}

// Transition locks the row, applies the state machine and persists the result.
func (r *ReservationRepository) Transition(ctx context.Context, id uuid.UUID, newStatus reservation.Status, note reservation.TransitionNote) (*reservation.Reservation, error) {
	var updated *reservation.Reservation
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := r.scanReservation(r.db(ctx).QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := res.Apply(newStatus, note); err != nil {
			return err
		}

		tag, err := r.db(ctx).Exec(ctx,
			`UPDATE reservations SET status = $1, provider_transaction_id = $2, cancel_reason = $3, updated_at = $4
			 WHERE id = $5`,
			string(res.Status), res.ProviderTxID, res.CancelReason, res.UpdatedAt, res.ID,
		)
		if err != nil {
			return fmt.Errorf("update reservation status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrReservationNotFound
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByID retrieves a reservation by its ID.
func (r *ReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	return r.scanReservation(r.db(ctx).QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
}

// FindByPaymentRef retrieves the reservation bound to a provider intent.
func (r *ReservationRepository) FindByPaymentRef(ctx context.Context, ref string) (*reservation.Reservation, error) {
	return r.scanReservation(r.db(ctx).QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE payment_ref = $1`, ref))
}

// ListByDate returns the active reservations of a court on a date, in slot order.
func (r *ReservationRepository) ListByDate(ctx context.Context, court reservation.Court, date time.Time) ([]*reservation.Reservation, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE court = $1 AND reservation_date = $2 AND status IN ('pending', 'confirmed')
		 ORDER BY time_slot`,
		string(court), date.Format(reservation.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations by date: %w", err)
	}
	return r.collect(rows)
}

// ListStalePending returns provider-backed pending reservations created before cutoff.
func (r *ReservationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = 'pending' AND payment_method <> 'cash' AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale pending reservations: %w", err)
	}
	return r.collect(rows)
}

// CountPending returns the number of reservations holding a slot without payment.
func (r *ReservationRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending reservations: %w", err)
	}
	return n, nil
}

func (r *ReservationRepository) collect(rows pgx.Rows) ([]*reservation.Reservation, error) {
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ReservationRepository) scanReservation(row scanner) (*reservation.Reservation, error) {
	var (
		res                 reservation.Reservation
		court, slot         string
		method, status      string
		b                   bookerColumns
		kind                string
		amountStr, currency string
	)
	err := row.Scan(
		&res.ID, &court, &res.Date, &slot, &method, &status,
		&kind, &b.userID, &b.name, &b.email, &b.phone,
		&res.PaymentRef, &res.ProviderTxID, &amountStr, &currency, &res.CancelReason,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}

	amount, err := numericToAmount(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}

	b.kind = reservation.BookerKind(kind)
	res.Court = reservation.Court(court)
	res.Date = reservation.NormalizeDate(res.Date)
	res.TimeSlot = reservation.TimeSlot(slot)
	res.PaymentMethod = reservation.PaymentMethod(method)
	res.Status = reservation.Status(status)
	res.Booker = b.booker()
	res.Amount = amount
	return &res, nil
}

// bookerColumns is the flattened storage form of a Booker.
type bookerColumns struct {
	kind   reservation.BookerKind
	userID *string
	name   *string
	email  *string
	phone  *string
}

func bookerColumnsOf(b reservation.Booker) bookerColumns {
	switch v := b.(type) {
	case reservation.RegisteredBooker:
		return bookerColumns{kind: reservation.BookerRegistered, userID: &v.UserID, email: nilIfEmpty(v.Email)}
	case reservation.GuestBooker:
		return bookerColumns{kind: reservation.BookerGuest, name: &v.Name, email: &v.Email, phone: v.Phone}
	default:
		return bookerColumns{}
	}
}

func (b bookerColumns) booker() reservation.Booker {
	if b.kind == reservation.BookerRegistered {
		return reservation.RegisteredBooker{UserID: deref(b.userID), Email: deref(b.email)}
	}
	return reservation.GuestBooker{Name: deref(b.name), Email: deref(b.email), Phone: b.phone}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
