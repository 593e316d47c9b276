package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// WaitlistRepo provides access to the waiting_list table. Positions are
// kept contiguous per train by the engine: rows are appended at
// length+1 and, after the head is removed, every later row is shifted
// down by one inside the same transaction.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, train_id, user_id, passenger_name, passenger_age,
	passenger_gender, passenger_phone, position, added_at`

func scanWaitlist(s rowScanner) (model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	err := s.Scan(&e.ID, &e.TrainID, &e.HolderID, &e.Passenger.Name, &e.Passenger.Age,
		&e.Passenger.Gender, &e.Passenger.Phone, &e.Position, &e.AddedAt)
	return e, err
}

// CountTx returns the number of entries queued for the train.
func (r *WaitlistRepo) CountTx(ctx context.Context, tx *sql.Tx, trainID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM waiting_list WHERE train_id = ?`, trainID).Scan(&n)
	return n, err
}

// HeadTx returns the entry at the lowest position. ok is false when the
// train has no waiting list.
func (r *WaitlistRepo) HeadTx(ctx context.Context, tx *sql.Tx, trainID uint64) (model.WaitlistEntry, bool, error) {
	e, err := scanWaitlist(tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waiting_list WHERE train_id = ? ORDER BY position, id LIMIT 1`, trainID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.WaitlistEntry{}, false, nil
	}
	if err != nil {
		return model.WaitlistEntry{}, false, err
	}
	return e, true, nil
}

// CreateTx appends an entry and populates its generated ID.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.WaitlistEntry) error {
	const q = `INSERT INTO waiting_list (train_id, user_id, passenger_name, passenger_age,
		passenger_gender, passenger_phone, position, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.TrainID, e.HolderID, e.Passenger.Name, e.Passenger.Age,
		e.Passenger.Gender, e.Passenger.Phone, e.Position, e.AddedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// DeleteTx removes a single entry by id.
func (r *WaitlistRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM waiting_list WHERE id = ?`, id)
	return err
}

// ShiftTx decrements the position of every entry of the train at or
// after fromPosition.
func (r *WaitlistRepo) ShiftTx(ctx context.Context, tx *sql.Tx, trainID uint64, fromPosition int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE waiting_list SET position = position - 1 WHERE train_id = ? AND position >= ?`,
		trainID, fromPosition)
	return err
}

// DeleteByTrainTx drops the whole waiting list of a train.
func (r *WaitlistRepo) DeleteByTrainTx(ctx context.Context, tx *sql.Tx, trainID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM waiting_list WHERE train_id = ?`, trainID)
	return err
}

// List returns every entry ordered by train and position.
func (r *WaitlistRepo) List(ctx context.Context) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+waitlistColumns+` FROM waiting_list ORDER BY train_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
