package timeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// ReplaceForMedicine deletes every event of the medicine and inserts
	// events atomically. Readers see the old set or the new one.
	ReplaceForMedicine(ctx context.Context, medicineID uuid.UUID, events []*DosingEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*DosingEvent, error)
	// ListForRange returns the user's events scheduled in [start, end).
	ListForRange(ctx context.Context, userID string, start, end time.Time) ([]*DosingEvent, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*DosingEvent, error)
	ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*DosingEvent, error)
	UpdateMealTiming(ctx context.Context, id uuid.UUID, meal MealTiming) error
}

type StatusRepository interface {
	// Upsert writes the status of st.ScheduleID, replacing any earlier one.
	Upsert(ctx context.Context, st *DosingStatus) error
	// ListForRange returns the user's statuses scheduled in [start, end).
	ListForRange(ctx context.Context, userID string, start, end time.Time) ([]*DosingStatus, error)
}
