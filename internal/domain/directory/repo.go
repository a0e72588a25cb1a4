package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("directory: not found")
	ErrDuplicate = errors.New("directory: duplicate")
)

type DirectoryRepository interface {
	ListDoctors(ctx context.Context) ([]DoctorListing, error)
	ListSpecializations(ctx context.Context) ([]Specialization, error)
	CreateSpecialization(ctx context.Context, s *Specialization) error

	PatientProfile(ctx context.Context, userID int64) (*PatientProfile, error)
	PatientHistory(ctx context.Context, userID int64) ([]PatientVisit, error)
	DoctorProfile(ctx context.Context, userID int64) (*DoctorProfile, error)
	DoctorHistory(ctx context.Context, userID int64) ([]DoctorVisit, error)
}
