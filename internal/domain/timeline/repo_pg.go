package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medintel/medintel/internal/platform/db"
)

// =========== Schedule Repository ===========

type scheduleRepoPG struct {
	pool *pgxpool.Pool
	tx   db.Transactor
}

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool, tx: db.NewTransactor(pool)}
}

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const scheduleCols = `id, medicine_id, prescription_id, user_id, scheduled_time, frequency,
	start_date, end_date, is_active, meal_timing, created_at`

var scheduleCopyCols = []string{"id", "medicine_id", "prescription_id", "user_id", "scheduled_time",
	"frequency", "start_date", "end_date", "is_active", "meal_timing", "created_at"}

func (r *scheduleRepoPG) scanSchedule(row pgx.Row) (*DosingEvent, error) {
	var ev DosingEvent
	var meal *string
	err := row.Scan(&ev.ID, &ev.MedicineID, &ev.PrescriptionID, &ev.UserID, &ev.ScheduledTime, &ev.Frequency,
		&ev.StartDate, &ev.EndDate, &ev.IsActive, &meal, &ev.CreatedAt)
	if meal != nil {
		m := MealTiming(*meal)
		ev.MealTiming = &m
	}
	return &ev, err
}

func (r *scheduleRepoPG) ReplaceForMedicine(ctx context.Context, medicineID uuid.UUID, events []*DosingEvent) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if _, err := tx.Exec(ctx, `DELETE FROM medication_schedule WHERE medicine_id = $1`, medicineID); err != nil {
			return fmt.Errorf("delete schedules of medicine %s: %w", medicineID, err)
		}
		if len(events) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(events))
		for _, ev := range events {
			if ev.MedicineID != medicineID {
				return fmt.Errorf("schedule %s belongs to medicine %s, not %s", ev.ID, ev.MedicineID, medicineID)
			}
			if ev.ID == uuid.Nil {
				ev.ID = uuid.New()
			}
			if ev.CreatedAt.IsZero() {
				ev.CreatedAt = time.Now()
			}
			var meal *string
			if ev.MealTiming != nil {
				s := string(*ev.MealTiming)
				meal = &s
			}
			rows = append(rows, []interface{}{
				ev.ID, ev.MedicineID, ev.PrescriptionID, ev.UserID, ev.ScheduledTime,
				ev.Frequency, ev.StartDate, ev.EndDate, ev.IsActive, meal, ev.CreatedAt,
			})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"medication_schedule"}, scheduleCopyCols, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("insert schedules of medicine %s: %w", medicineID, err)
		}
		return nil
	})
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DosingEvent, error) {
	ev, err := r.scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+scheduleCols+` FROM medication_schedule WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return ev, nil
}

func (r *scheduleRepoPG) ListForRange(ctx context.Context, userID string, start, end time.Time) ([]*DosingEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+scheduleCols+` FROM medication_schedule
		WHERE user_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time, medicine_id`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return r.collect(rows)
}

func (r *scheduleRepoPG) ListActiveByUser(ctx context.Context, userID string) ([]*DosingEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+scheduleCols+` FROM medication_schedule
		WHERE user_id = $1 AND is_active ORDER BY scheduled_time, medicine_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return r.collect(rows)
}

func (r *scheduleRepoPG) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*DosingEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+scheduleCols+` FROM medication_schedule
		WHERE medicine_id = $1 ORDER BY scheduled_time`, medicineID)
	if err != nil {
		return nil, fmt.Errorf("list schedules of medicine %s: %w", medicineID, err)
	}
	return r.collect(rows)
}

func (r *scheduleRepoPG) UpdateMealTiming(ctx context.Context, id uuid.UUID, meal MealTiming) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE medication_schedule SET meal_timing = $2 WHERE id = $1`, id, string(meal))
	if err != nil {
		return fmt.Errorf("update meal timing of schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *scheduleRepoPG) collect(rows pgx.Rows) ([]*DosingEvent, error) {
	defer rows.Close()
	var items []*DosingEvent
	for rows.Next() {
		ev, err := r.scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

// =========== Status Repository ===========

type statusRepoPG struct{ pool *pgxpool.Pool }

func NewStatusRepoPG(pool *pgxpool.Pool) StatusRepository {
	return &statusRepoPG{pool: pool}
}

func (r *statusRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const statusCols = `id, schedule_id, medicine_id, prescription_id, user_id, scheduled_time,
	actual_time, status, notes, created_at, updated_at`

func (r *statusRepoPG) scanStatus(row pgx.Row) (*DosingStatus, error) {
	var st DosingStatus
	var status string
	err := row.Scan(&st.ID, &st.ScheduleID, &st.MedicineID, &st.PrescriptionID, &st.UserID, &st.ScheduledTime,
		&st.ActualTime, &status, &st.Notes, &st.CreatedAt, &st.UpdatedAt)
	st.Status = StatusType(status)
	return &st, err
}

// Upsert relies on the unique index on schedule_id; concurrent writers to
// one schedule resolve last-write-wins.
func (r *statusRepoPG) Upsert(ctx context.Context, st *DosingStatus) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_status (id, schedule_id, medicine_id, prescription_id, user_id,
			scheduled_time, actual_time, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (schedule_id) DO UPDATE SET
			actual_time = EXCLUDED.actual_time,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		st.ID, st.ScheduleID, st.MedicineID, st.PrescriptionID, st.UserID,
		st.ScheduledTime, st.ActualTime, string(st.Status), st.Notes,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
}

func (r *statusRepoPG) ListForRange(ctx context.Context, userID string, start, end time.Time) ([]*DosingStatus, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+statusCols+` FROM medication_status
		WHERE user_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var items []*DosingStatus
	for rows.Next() {
		st, err := r.scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		items = append(items, st)
	}
	return items, rows.Err()
}
