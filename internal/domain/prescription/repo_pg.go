package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medintel/medintel/internal/platform/db"
)

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `id, user_id, file_name, doctor_name, hospital_clinic, consultation_date,
	patient_name, diagnosis, follow_up_date, special_instructions, prescription_number,
	processing_status, extraction_confidence, priority_level, created_at, updated_at`

func (r *prescriptionRepoPG) scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.UserID, &p.FileName, &p.DoctorName, &p.HospitalClinic, &p.ConsultationDate,
		&p.PatientName, &p.Diagnosis, &p.FollowUpDate, &p.SpecialInstructions, &p.PrescriptionNumber,
		&p.ProcessingStatus, &p.ExtractionConfidence, &p.PriorityLevel, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, user_id, file_name, doctor_name, hospital_clinic, consultation_date,
			patient_name, diagnosis, follow_up_date, special_instructions, prescription_number,
			processing_status, extraction_confidence, priority_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.FileName, p.DoctorName, p.HospitalClinic, p.ConsultationDate,
		p.PatientName, p.Diagnosis, p.FollowUpDate, p.SpecialInstructions, p.PrescriptionNumber,
		p.ProcessingStatus, p.ExtractionConfidence, p.PriorityLevel,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := r.scanRx(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription %s: %w", id, err)
	}
	return p, nil
}

func (r *prescriptionRepoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescription
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *prescriptionRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Prescription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions by id: %w", err)
	}
	return r.collect(rows)
}

func (r *prescriptionRepoPG) collect(rows pgx.Rows) ([]*Prescription, error) {
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanRx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prescription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository {
	return &medicineRepoPG{pool: pool}
}

func (r *medicineRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const medCols = `id, prescription_id, name, generic_name, dosage, frequency, duration,
	instructions, quantity, timing_instructions, priority_level, administration_route, created_at`

func (r *medicineRepoPG) scanMed(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.PrescriptionID, &m.Name, &m.GenericName, &m.Dosage, &m.Frequency, &m.Duration,
		&m.Instructions, &m.Quantity, &m.TimingInstructions, &m.PriorityLevel, &m.AdministrationRoute, &m.CreatedAt)
	return &m, err
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine (id, prescription_id, name, generic_name, dosage, frequency, duration,
			instructions, quantity, timing_instructions, priority_level, administration_route)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		m.ID, m.PrescriptionID, m.Name, m.GenericName, m.Dosage, m.Frequency, m.Duration,
		m.Instructions, m.Quantity, m.TimingInstructions, m.PriorityLevel, m.AdministrationRoute,
	).Scan(&m.CreatedAt)
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := r.scanMed(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medicine WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMedicineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medicine %s: %w", id, err)
	}
	return m, nil
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET name=$2, generic_name=$3, dosage=$4, frequency=$5, duration=$6,
			instructions=$7, quantity=$8, timing_instructions=$9, priority_level=$10, administration_route=$11
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Dosage, m.Frequency, m.Duration,
		m.Instructions, m.Quantity, m.TimingInstructions, m.PriorityLevel, m.AdministrationRoute)
	if err != nil {
		return fmt.Errorf("update medicine %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMedicineNotFound
	}
	return nil
}

func (r *medicineRepoPG) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medicine
		WHERE prescription_id = $1 ORDER BY created_at, name`, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return r.collect(rows)
}

func (r *medicineRepoPG) ListByPrescriptions(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*Medicine, error) {
	if len(prescriptionIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medicine
		WHERE prescription_id = ANY($1) ORDER BY created_at, name`, prescriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return r.collect(rows)
}

func (r *medicineRepoPG) ListByUser(ctx context.Context, userID string) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT m.id, m.prescription_id, m.name, m.generic_name, m.dosage, m.frequency, m.duration,
		m.instructions, m.quantity, m.timing_instructions, m.priority_level, m.administration_route, m.created_at
		FROM medicine m
		JOIN prescription p ON p.id = m.prescription_id
		WHERE p.user_id = $1 ORDER BY m.created_at, m.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list medicines for user: %w", err)
	}
	return r.collect(rows)
}

func (r *medicineRepoPG) collect(rows pgx.Rows) ([]*Medicine, error) {
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := r.scanMed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
