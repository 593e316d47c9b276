package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// ReservationRepo provides access to the bookings table. Rows are never
// deleted: a cancelled booking keeps its PNR and seat number as history
// while the seat itself becomes free again. All timestamp fields are
// assumed to be stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, pnr, user_id, train_id, passenger_name, passenger_age,
	passenger_gender, passenger_phone, seat_number, status, created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var r model.Reservation
	err := s.Scan(&r.ID, &r.PNR, &r.HolderID, &r.TrainID, &r.Passenger.Name, &r.Passenger.Age,
		&r.Passenger.Gender, &r.Passenger.Phone, &r.SeatNumber, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateTx inserts a booking within the scope of an existing
// transaction and populates the generated ID. The caller must commit or
// rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO bookings (pnr, user_id, train_id, passenger_name, passenger_age,
		passenger_gender, passenger_phone, seat_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.PNR, res.HolderID, res.TrainID,
		res.Passenger.Name, res.Passenger.Age, res.Passenger.Gender, res.Passenger.Phone,
		res.SeatNumber, res.Status, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByPNRTx loads a booking by confirmation code inside tx.
func (r *ReservationRepo) GetByPNRTx(ctx context.Context, tx *sql.Tx, pnr string) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM bookings WHERE pnr = ?`, pnr))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// CancelTx flips an ACTIVE booking to CANCELLED. A booking that is
// already cancelled is left untouched and reported as not found so that
// a double release never frees a seat twice.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusCancelled, at, id, model.StatusActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// ActiveSeatsTx returns the seat numbers held by ACTIVE bookings of the
// train in ascending order.
func (r *ReservationRepo) ActiveSeatsTx(ctx context.Context, tx *sql.Tx, trainID uint64) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_number FROM bookings WHERE train_id = ? AND status = ? ORDER BY seat_number`,
		trainID, model.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ListActive returns every ACTIVE booking ordered by train and seat.
func (r *ReservationRepo) ListActive(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM bookings WHERE status = ? ORDER BY train_id, seat_number`,
		model.StatusActive)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}
