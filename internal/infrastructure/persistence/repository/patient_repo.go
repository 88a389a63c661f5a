package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PatientDirectory implements port.PatientDirectory over the patients and
// appointments tables. It is read-only.
type PatientDirectory struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientDirectory creates a new patient directory
func NewPatientDirectory(db *sql.DB, logger *zap.Logger) port.PatientDirectory {
	return &PatientDirectory{
		db:     db,
		logger: logger,
	}
}

// GetPatient retrieves a patient by ID
func (r *PatientDirectory) GetPatient(ctx context.Context, id int64) (*entity.Patient, error) {
	var patient entity.Patient

	err := r.getExecutor(ctx).
		QueryRowContext(ctx, `SELECT id, name FROM patients WHERE id = ?`, id).
		Scan(&patient.ID, &patient.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get patient", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return &patient, nil
}

// AppointmentExists reports whether an appointment with id exists
func (r *PatientDirectory) AppointmentExists(ctx context.Context, id int64) (bool, error) {
	var exists bool

	err := r.getExecutor(ctx).
		QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = ?)`, id).
		Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check appointment", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to check appointment: %w", err)
	}

	return exists, nil
}

// getExecutor returns appropriate executor based on context
func (r *PatientDirectory) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
