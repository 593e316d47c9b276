package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// TrainRepo provides access to the trains table. Reads outside a
// transaction serve admin tooling and mirror reloads; every mutation of
// the seat counters runs through the Tx variants under the allocation
// engine's per-train lock.
type TrainRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewTrainRepo returns a new TrainRepo bound to the given database.
func NewTrainRepo(db *sql.DB, dialect Dialect) *TrainRepo {
	return &TrainRepo{db: db, dialect: dialect}
}

const trainColumns = `id, train_number, train_name, source, destination, fare,
	departure_time, arrival_time, total_seats, available_seats, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrain(s rowScanner) (model.Train, error) {
	var t model.Train
	err := s.Scan(&t.ID, &t.Number, &t.Name, &t.Source, &t.Destination, &t.Fare,
		&t.DepartureTime, &t.ArrivalTime, &t.TotalSeats, &t.AvailableSeats, &t.Version,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTx inserts a train and populates its generated ID. Version starts
// at whatever the caller set (normally 1).
func (r *TrainRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Train) error {
	const q = `INSERT INTO trains (train_number, train_name, source, destination, fare,
		departure_time, arrival_time, total_seats, available_seats, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.Number, t.Name, t.Source, t.Destination, t.Fare,
		t.DepartureTime, t.ArrivalTime, t.TotalSeats, t.AvailableSeats, t.Version,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return ErrDuplicateTrainNumber
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByIDTx loads a train inside tx. When lock is true the row stays
// locked until the transaction ends. Returns ErrTrainNotFound when the
// row is missing.
func (r *TrainRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (model.Train, error) {
	q := `SELECT ` + trainColumns + ` FROM trains WHERE id = ?`
	if lock {
		q += r.dialect.lockClause()
	}
	t, err := scanTrain(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Train{}, ErrTrainNotFound
	}
	return t, err
}

// UpdateSeatsTx writes total_seats, available_seats and the next
// version. The update only applies when the stored version still equals
// prev; otherwise ErrStaleVersion is returned.
func (r *TrainRepo) UpdateSeatsTx(ctx context.Context, tx *sql.Tx, t *model.Train, prev uint64) error {
	const q = `UPDATE trains SET total_seats = ?, available_seats = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, q, t.TotalSeats, t.AvailableSeats, t.Version, t.UpdatedAt, t.ID, prev)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleVersion
	}
	return nil
}

// DeleteTx removes the train row. Returns ErrTrainNotFound when nothing
// was deleted.
func (r *TrainRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM trains WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTrainNotFound
	}
	return nil
}

// List returns every train ordered by id.
func (r *TrainRepo) List(ctx context.Context) ([]model.Train, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+trainColumns+` FROM trains ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Train
	for rows.Next() {
		t, err := scanTrain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
