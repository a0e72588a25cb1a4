package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("identity: not found")
	// ErrDuplicate means the email is already registered.
	ErrDuplicate = errors.New("identity: duplicate")
	// ErrUnknownReference means a foreign key (the specialization) does not exist.
	ErrUnknownReference = errors.New("identity: unknown reference")
)

type AccountRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, userID int64) error

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	ListPatients(ctx context.Context) ([]PatientSummary, error)
	// ReleasePatientSlots frees every slot held by the patient's scheduled
	// appointments and returns how many were released.
	ReleasePatientSlots(ctx context.Context, patientID int64) (int, error)

	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
}
