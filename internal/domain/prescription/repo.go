package prescription

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Prescription, int, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Prescription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Medicine, error)
	ListByPrescriptions(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*Medicine, error)
	// ListByUser returns every medicine across the user's prescriptions.
	ListByUser(ctx context.Context, userID string) ([]*Medicine, error)
}
