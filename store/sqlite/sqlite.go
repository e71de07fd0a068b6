/*
Package sqlite provides the SQLite-backed implementation of every
persistence port in the engine.

PURPOSE:
  One Store implements booking.Store, booking.PromotionStore,
  rewards.Store, voucher.Store, refund.Store and payout.Store. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INVARIANTS ENFORCED HERE:
  - Double-booking: the overlap check re-runs inside the same
    transaction as the booking INSERT.
  - Accrual idempotency: reward_accruals.booking_id PRIMARY KEY.
  - Issuance idempotency: vouchers.source_booking_id UNIQUE.
  - One refund per booking: refund_requests.booking_id UNIQUE.
  - Payout/refund race: MarkPaid re-checks for an open refund inside
    the transaction that sets the paid flag.
  - Non-negative points: reward_accounts.balance CHECK(balance >= 0)
    plus a guarded UPDATE.

CONCURRENCY:
  Uses sync.RWMutex so check-then-write sequences inside one method are
  serialized in-process; SQLite's single-writer model covers the rest.
  With PostgreSQL, row locks (SELECT ... FOR UPDATE) replace the mutex.

WAL MODE:
  SQLite is opened with WAL so readers don't block during settlement
  runs.

USAGE:
  store, err := sqlite.New("./data/condotel.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - booking/store.go, rewards/ledger.go, refund/workflow.go,
    payout/engine.go, voucher/issuer.go: port definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/payout"
	"github.com/stayward/condotel-engine/refund"
)

// Store implements all persistence ports using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the store serializes writers itself, and an
	// in-memory database must not be split across pool connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema.
func (s *Store) migrate() error {
	schema := `
	-- Units (condotels), read-mostly
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		nightly_rate TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_host ON units(host_id);

	-- Bookings: start_date/end_date are half-open [start, end)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_price TEXT NOT NULL,
		status TEXT NOT NULL,
		promotion_id TEXT,
		used_reward_points INTEGER NOT NULL DEFAULT 0,
		paid_to_host INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		CHECK (start_date < end_date)
	);

	-- Hot path: overlap checks and scheduler scans
	CREATE INDEX IF NOT EXISTS idx_bookings_unit_dates
		ON bookings(unit_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_status_end
		ON bookings(status, end_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_customer
		ON bookings(customer_id, created_at DESC);

	-- Promotions
	CREATE TABLE IF NOT EXISTS promotions (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		discount_percent TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_promotions_unit
		ON promotions(unit_id, start_date, end_date);

	-- Vouchers. source_booking_id is the issuance idempotency key.
	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		unit_id TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL DEFAULT '',
		discount_amount TEXT NOT NULL DEFAULT '0',
		discount_percent TEXT NOT NULL DEFAULT '0',
		valid_from TEXT NOT NULL,
		valid_to TEXT NOT NULL,
		usage_limit INTEGER NOT NULL DEFAULT 1,
		used_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		source_booking_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_vouchers_source_booking
		ON vouchers(source_booking_id) WHERE source_booking_id IS NOT NULL AND source_booking_id != '';
	CREATE INDEX IF NOT EXISTS idx_vouchers_customer
		ON vouchers(customer_id);

	-- Reward accounts: one row per customer, balance never negative
	CREATE TABLE IF NOT EXISTS reward_accounts (
		customer_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TEXT NOT NULL
	);

	-- Accrual idempotency markers: one per completed booking
	CREATE TABLE IF NOT EXISTS reward_accruals (
		booking_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Refund requests: at most one per booking, attempts tracked in-row
	CREATE TABLE IF NOT EXISTS refund_requests (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 1,
		appeal_reason TEXT,
		appealed_at TEXT,
		rejection_reason TEXT,
		rejected_at TEXT,
		bank_name TEXT NOT NULL DEFAULT '',
		bank_account_number TEXT NOT NULL DEFAULT '',
		bank_account_holder TEXT NOT NULL DEFAULT '',
		processed_by TEXT,
		processed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refunds_status
		ON refund_requests(status, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNITS
// =============================================================================

// SaveUnit inserts or replaces a unit record.
func (s *Store) SaveUnit(ctx context.Context, u booking.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO units (id, host_id, name, nightly_rate, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.HostID, u.Name, u.NightlyRate.String(), formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

// GetUnit implements booking.Store.
func (s *Store) GetUnit(ctx context.Context, id booking.UnitID) (*booking.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         booking.Unit
		rate      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, host_id, name, nightly_rate, created_at FROM units WHERE id = ?`, id,
	).Scan(&u.ID, &u.HostID, &u.Name, &rate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unit %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	u.NightlyRate = parseDecimal(rate)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// ListUnits returns all units.
func (s *Store) ListUnits(ctx context.Context) ([]booking.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host_id, name, nightly_rate, created_at FROM units ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []booking.Unit
	for rows.Next() {
		var (
			u         booking.Unit
			rate      string
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.HostID, &u.Name, &rate, &createdAt); err != nil {
			return nil, err
		}
		u.NightlyRate = parseDecimal(rate)
		u.CreatedAt = parseTime(createdAt)
		units = append(units, u)
	}
	return units, rows.Err()
}

// =============================================================================
// BOOKINGS (booking.Store)
// =============================================================================

const bookingColumns = `id, unit_id, customer_id, start_date, end_date, total_price,
	status, promotion_id, used_reward_points, paid_to_host, paid_at, created_at`

// CreateBooking atomically re-checks availability and inserts the
// Pending booking. The overlap query and the INSERT share one
// transaction (and the store mutex), so two racing creates for
// overlapping intervals cannot both commit.
func (s *Store) CreateBooking(ctx context.Context, b booking.Booking, voucherCode booking.VoucherCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Half-open overlap: existing.start < new.end AND existing.end > new.start
	var conflicts int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE unit_id = ? AND status != ? AND start_date < ? AND end_date > ?`,
		b.UnitID, booking.StatusCancelled, b.End.String(), b.Start.String(),
	).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	if conflicts > 0 {
		return &booking.OverlapError{UnitID: b.UnitID, Start: b.Start, End: b.End}
	}

	// Consume the voucher in the same transaction so its usage limit
	// holds under concurrency.
	if voucherCode != "" {
		res, err := tx.ExecContext(ctx, `
			UPDATE vouchers SET used_count = used_count + 1
			WHERE code = ? AND status = ? AND used_count < usage_limit`,
			voucherCode, booking.VoucherActive)
		if err != nil {
			return fmt.Errorf("failed to consume voucher: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return booking.ErrVoucherInvalid
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UnitID, b.CustomerID, b.Start.String(), b.End.String(),
		b.TotalPrice.String(), b.Status, nullString(string(b.PromotionID)),
		boolToInt(b.UsedRewardPoints), boolToInt(b.PaidToHost),
		nullTime(b.PaidAt), formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit()
}

// GetBooking implements booking.Store and payout.Store.
func (s *Store) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookingsByCustomer implements booking.Store.
func (s *Store) ListBookingsByCustomer(ctx context.Context, customerID booking.CustomerID) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

// ListOverlapping implements booking.Store.
func (s *Store) ListOverlapping(ctx context.Context, unitID booking.UnitID, start, end booking.Date) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE unit_id = ? AND status != ? AND start_date < ? AND end_date > ?
		ORDER BY start_date`,
		unitID, booking.StatusCancelled, end.String(), start.String())
}

// ListConfirmedEndedBefore implements booking.Store.
func (s *Store) ListConfirmedEndedBefore(ctx context.Context, before booking.Date, limit int) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND end_date < ?
		ORDER BY end_date LIMIT ?`,
		booking.StatusConfirmed, before.String(), limit)
}

// UpdateBookingStatus implements booking.Store. Compare-and-swap on the
// status column: re-runs and races serialize here.
func (s *Store) UpdateBookingStatus(ctx context.Context, id booking.BookingID, from, to booking.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current booking.Status
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM bookings WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return &booking.TransitionError{BookingID: id, From: current, To: to}
	}
	return nil
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		b          booking.Booking
		startDate  string
		endDate    string
		totalPrice string
		promoID    sql.NullString
		usedPoints int
		paidToHost int
		paidAt     sql.NullString
		createdAt  string
	)
	err := row.Scan(&b.ID, &b.UnitID, &b.CustomerID, &startDate, &endDate,
		&totalPrice, &b.Status, &promoID, &usedPoints, &paidToHost, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}

	b.Start, _ = booking.ParseDate(startDate)
	b.End, _ = booking.ParseDate(endDate)
	b.TotalPrice = parseDecimal(totalPrice)
	b.PromotionID = booking.PromotionID(promoID.String)
	b.UsedRewardPoints = usedPoints != 0
	b.PaidToHost = paidToHost != 0
	b.PaidAt = parseNullTime(paidAt)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

// =============================================================================
// PROMOTIONS (booking.PromotionStore)
// =============================================================================

// CreatePromotion inserts the promotion after re-checking the per-unit
// non-overlap invariant inside the same transaction.
func (s *Store) CreatePromotion(ctx context.Context, p booking.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Inclusive-window overlap within the same unit scope (global
	// promotions form their own scope).
	var conflicts int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM promotions
		WHERE unit_id = ? AND status = ? AND start_date <= ? AND end_date >= ?`,
		p.UnitID, booking.PromotionActive, p.End.String(), p.Start.String(),
	).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to check promotion overlap: %w", err)
	}
	if conflicts > 0 {
		return booking.ErrPromotionOverlap
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO promotions (id, unit_id, start_date, end_date, discount_percent, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UnitID, p.Start.String(), p.End.String(),
		p.DiscountPercent.String(), p.Status, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert promotion: %w", err)
	}

	return tx.Commit()
}

// GetPromotion implements booking.Store.
func (s *Store) GetPromotion(ctx context.Context, id booking.PromotionID) (*booking.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p         booking.Promotion
		start     string
		end       string
		percent   string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, unit_id, start_date, end_date, discount_percent, status, created_at
		FROM promotions WHERE id = ?`, id,
	).Scan(&p.ID, &p.UnitID, &start, &end, &percent, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("promotion %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	p.Start, _ = booking.ParseDate(start)
	p.End, _ = booking.ParseDate(end)
	p.DiscountPercent = parseDecimal(percent)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// ListPromotions implements booking.PromotionStore ("" = all units).
func (s *Store) ListPromotions(ctx context.Context, unitID booking.UnitID) ([]booking.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, unit_id, start_date, end_date, discount_percent, status, created_at
		FROM promotions
		WHERE (? = '' OR unit_id = ?)
		ORDER BY start_date`, unitID, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promos []booking.Promotion
	for rows.Next() {
		var (
			p         booking.Promotion
			start     string
			end       string
			percent   string
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.UnitID, &start, &end, &percent, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		p.Start, _ = booking.ParseDate(start)
		p.End, _ = booking.ParseDate(end)
		p.DiscountPercent = parseDecimal(percent)
		p.CreatedAt = parseTime(createdAt)
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// =============================================================================
// VOUCHERS (voucher.Store + booking.Store read side)
// =============================================================================

const voucherColumns = `id, code, unit_id, customer_id, discount_amount, discount_percent,
	valid_from, valid_to, usage_limit, used_count, status, source_booking_id, created_at`

// InsertVoucher implements voucher.Store. The unique index on
// source_booking_id makes completion issuance idempotent per booking.
func (s *Store) InsertVoucher(ctx context.Context, v booking.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vouchers (`+voucherColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Code, v.UnitID, v.CustomerID,
		v.DiscountAmount.String(), v.DiscountPercent.String(),
		v.ValidFrom.String(), v.ValidTo.String(),
		v.UsageLimit, v.UsedCount, v.Status,
		string(v.SourceBookingID), formatTime(v.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "source_booking") {
			return booking.ErrAlreadyIssued
		}
		return fmt.Errorf("failed to insert voucher: %w", err)
	}
	return nil
}

// GetVoucherByCode implements booking.Store.
func (s *Store) GetVoucherByCode(ctx context.Context, code booking.VoucherCode) (*booking.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = ?`, code)
	v, err := scanVoucher(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("voucher %s: %w", code, booking.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVouchersByCustomer implements voucher.Store.
func (s *Store) ListVouchersByCustomer(ctx context.Context, customerID booking.CustomerID) ([]booking.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+voucherColumns+` FROM vouchers
		WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []booking.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, rows.Err()
}

func scanVoucher(row rowScanner) (*booking.Voucher, error) {
	var (
		v         booking.Voucher
		amount    string
		percent   string
		validFrom string
		validTo   string
		sourceID  sql.NullString
		createdAt string
	)
	err := row.Scan(&v.ID, &v.Code, &v.UnitID, &v.CustomerID, &amount, &percent,
		&validFrom, &validTo, &v.UsageLimit, &v.UsedCount, &v.Status, &sourceID, &createdAt)
	if err != nil {
		return nil, err
	}
	v.DiscountAmount = parseDecimal(amount)
	v.DiscountPercent = parseDecimal(percent)
	v.ValidFrom, _ = booking.ParseDate(validFrom)
	v.ValidTo, _ = booking.ParseDate(validTo)
	v.SourceBookingID = booking.BookingID(sourceID.String)
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// =============================================================================
// REWARD ACCOUNTS (rewards.Store)
// =============================================================================

// Balance implements rewards.Store. Unknown customers have balance 0.
func (s *Store) Balance(ctx context.Context, customerID booking.CustomerID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM reward_accounts WHERE customer_id = ?`, customerID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// Credit implements rewards.Store. The accrual marker insert and the
// balance upsert share a transaction; the marker's primary key makes
// the whole operation idempotent per booking.
func (s *Store) Credit(ctx context.Context, customerID booking.CustomerID, bookingID booking.BookingID, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_accruals (booking_id, customer_id, points, created_at)
		VALUES (?, ?, ?, ?)`,
		bookingID, customerID, points, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.ErrAlreadyAccrued
		}
		return fmt.Errorf("failed to record accrual: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_accounts (customer_id, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		customerID, points, now)
	if err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}

	return tx.Commit()
}

// Debit implements rewards.Store. Balance decrement, price reduction
// and the redeemed flag land in one transaction; every precondition is
// re-checked under it so a racing cancel or second redemption loses.
func (s *Store) Debit(ctx context.Context, customerID booking.CustomerID, bookingID booking.BookingID, points int64, newTotal decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		status booking.Status
		used   int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, used_reward_points FROM bookings WHERE id = ? AND customer_id = ?`,
		bookingID, customerID,
	).Scan(&status, &used)
	if err == sql.ErrNoRows {
		return fmt.Errorf("booking %s: %w", bookingID, booking.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if status != booking.StatusPending {
		return &booking.TransitionError{BookingID: bookingID, From: status, To: booking.StatusPending}
	}
	if used != 0 {
		return booking.ErrAlreadyRedeemed
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE reward_accounts SET balance = balance - ?, updated_at = ?
		WHERE customer_id = ? AND balance >= ?`,
		points, formatTime(time.Now().UTC()), customerID, points)
	if err != nil {
		return fmt.Errorf("failed to debit points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrInsufficientPoints
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE bookings SET total_price = ?, used_reward_points = 1
		WHERE id = ? AND status = ? AND used_reward_points = 0`,
		newTotal.String(), bookingID, booking.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to apply point discount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrAlreadyRedeemed
	}

	return tx.Commit()
}

// =============================================================================
// REFUND REQUESTS (refund.Store)
// =============================================================================

const refundColumns = `id, booking_id, customer_id, amount, status, attempt,
	appeal_reason, appealed_at, rejection_reason, rejected_at,
	bank_name, bank_account_number, bank_account_holder,
	processed_by, processed_at, created_at`

// InsertRefund implements refund.Store. The booking_id unique index
// enforces one request per booking.
func (s *Store) InsertRefund(ctx context.Context, r refund.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refund_requests (`+refundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BookingID, r.CustomerID, r.Amount.String(), r.Status, r.Attempt,
		nullString(r.AppealReason), nullTime(r.AppealedAt),
		nullString(r.RejectionReason), nullTime(r.RejectedAt),
		r.Bank.BankName, r.Bank.AccountNumber, r.Bank.AccountHolder,
		nullString(r.ProcessedBy), nullTime(r.ProcessedAt), formatTime(r.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.ErrRefundExists
		}
		return fmt.Errorf("failed to insert refund request: %w", err)
	}
	return nil
}

// GetRefund implements refund.Store.
func (s *Store) GetRefund(ctx context.Context, id refund.RequestID) (*refund.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refund_requests WHERE id = ?`, id)
	r, err := scanRefund(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("refund request %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRefund implements refund.Store via compare-and-swap on status.
func (s *Store) UpdateRefund(ctx context.Context, r refund.Request, from refund.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE refund_requests SET
			status = ?, attempt = ?,
			appeal_reason = ?, appealed_at = ?,
			rejection_reason = ?, rejected_at = ?,
			processed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`,
		r.Status, r.Attempt,
		nullString(r.AppealReason), nullTime(r.AppealedAt),
		nullString(r.RejectionReason), nullTime(r.RejectedAt),
		nullString(r.ProcessedBy), nullTime(r.ProcessedAt),
		r.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update refund request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("refund request %s changed concurrently: %w", r.ID, booking.ErrInvalidTransition)
	}
	return nil
}

// ListRefunds implements refund.Store ("" = all statuses).
func (s *Store) ListRefunds(ctx context.Context, status refund.Status) ([]refund.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+refundColumns+` FROM refund_requests
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC`, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund requests: %w", err)
	}
	defer rows.Close()

	var requests []refund.Request
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// HasOpenRefund implements refund.Store and payout.Store.
func (s *Store) HasOpenRefund(ctx context.Context, bookingID booking.BookingID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hasOpenRefund(ctx, s.db, bookingID)
}

func (s *Store) hasOpenRefund(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, bookingID booking.BookingID) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM refund_requests
		WHERE booking_id = ? AND status IN (?, ?)`,
		bookingID, refund.StatusPending, refund.StatusAppealed,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check refund requests: %w", err)
	}
	return count > 0, nil
}

func scanRefund(row rowScanner) (*refund.Request, error) {
	var (
		r               refund.Request
		amount          string
		appealReason    sql.NullString
		appealedAt      sql.NullString
		rejectionReason sql.NullString
		rejectedAt      sql.NullString
		processedBy     sql.NullString
		processedAt     sql.NullString
		createdAt       string
	)
	err := row.Scan(&r.ID, &r.BookingID, &r.CustomerID, &amount, &r.Status, &r.Attempt,
		&appealReason, &appealedAt, &rejectionReason, &rejectedAt,
		&r.Bank.BankName, &r.Bank.AccountNumber, &r.Bank.AccountHolder,
		&processedBy, &processedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Amount = parseDecimal(amount)
	r.AppealReason = appealReason.String
	r.AppealedAt = parseNullTime(appealedAt)
	r.RejectionReason = rejectionReason.String
	r.RejectedAt = parseNullTime(rejectedAt)
	r.ProcessedBy = processedBy.String
	r.ProcessedAt = parseNullTime(processedAt)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// =============================================================================
// PAYOUTS (payout.Store)
// =============================================================================

// ListPayoutCandidates implements payout.Store: Completed, unpaid,
// positive-price bookings past the hold cutoff with no open refund.
func (s *Store) ListPayoutCandidates(ctx context.Context, hostID booking.HostID, endedOnOrBefore booking.Date) ([]payout.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.unit_id, u.host_id, b.customer_id, b.end_date, b.total_price
		FROM bookings b
		JOIN units u ON u.id = b.unit_id
		WHERE b.status = ?
		  AND b.paid_to_host = 0
		  AND CAST(b.total_price AS REAL) > 0
		  AND b.end_date <= ?
		  AND (? = '' OR u.host_id = ?)
		  AND NOT EXISTS (
			SELECT 1 FROM refund_requests r
			WHERE r.booking_id = b.id AND r.status IN (?, ?)
		  )
		ORDER BY b.end_date`,
		booking.StatusCompleted, endedOnOrBefore.String(), hostID, hostID,
		refund.StatusPending, refund.StatusAppealed)
	if err != nil {
		return nil, fmt.Errorf("failed to list payout candidates: %w", err)
	}
	defer rows.Close()

	var items []payout.Item
	for rows.Next() {
		var (
			item    payout.Item
			endDate string
			amount  string
		)
		if err := rows.Scan(&item.BookingID, &item.UnitID, &item.HostID,
			&item.CustomerID, &endDate, &amount); err != nil {
			return nil, err
		}
		item.EndDate, _ = booking.ParseDate(endDate)
		item.Amount = parseDecimal(amount)
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkPaid implements payout.Store. The open-refund check runs again
// inside this transaction: a refund filed after the candidate read but
// before the commit aborts the payout, preventing double payment.
func (s *Store) MarkPaid(ctx context.Context, id booking.BookingID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	open, err := s.hasOpenRefund(ctx, tx, id)
	if err != nil {
		return err
	}
	if open {
		return booking.ErrRefundOpen
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET paid_to_host = 1, paid_at = ?
		WHERE id = ? AND status = ? AND paid_to_host = 0`,
		formatTime(at), id, booking.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
		}
		return booking.ErrAlreadyPaid
	}

	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
