package prescription

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrMedicineNotFound     = errors.New("medicine not found")
	ErrValidation           = errors.New("validation failed")
)
