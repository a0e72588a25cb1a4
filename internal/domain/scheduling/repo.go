package scheduling

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("scheduling: not found")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("scheduling: duplicate")
)

type SlotRepository interface {
	DoctorIDByUser(ctx context.Context, userID int64) (int64, error)
	Create(ctx context.Context, sl *TimeSlot) error
	// CreateBatch inserts windows for doctorID, skipping start times that
	// already exist, and returns how many rows were inserted.
	CreateBatch(ctx context.Context, doctorID int64, windows []Window) (int, error)
	// DeleteOwnedFree removes the slot only when doctorID owns it and it is
	// not booked. It reports whether a row was removed.
	DeleteOwnedFree(ctx context.Context, slotID, doctorID int64) (bool, error)
	ListByDoctorFrom(ctx context.Context, doctorID int64, from time.Time, limit, offset int) ([]TimeSlot, int, error)
	ListFree(ctx context.Context, doctorID int64, after time.Time) ([]TimeSlot, error)
	// LockForBooking row-locks the slot for the rest of the transaction and
	// returns its current is_booked flag.
	LockForBooking(ctx context.Context, slotID int64) (bool, error)
	SetBooked(ctx context.Context, slotID int64, booked bool) error
}

type AppointmentRepository interface {
	PatientIDByUser(ctx context.Context, userID int64) (int64, error)
	Create(ctx context.Context, a *Appointment) error
	// GetOwned returns the appointment only if patientID owns it.
	GetOwned(ctx context.Context, appointmentID, patientID int64) (*Appointment, error)
	SetStatus(ctx context.Context, appointmentID int64, status AppointmentStatus) error
	ListUpcomingForPatient(ctx context.Context, patientID int64, from time.Time) ([]PatientAppointment, error)
	ListForDoctorBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]DoctorAppointment, error)
}
