package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
)

// Service serves read-only views; none of them need a transaction.
type Service struct {
	repo DirectoryRepository
}

func NewService(repo DirectoryRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListDoctors(ctx context.Context) ([]DoctorListing, error) {
	items, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list doctors")
	}
	if items == nil {
		items = []DoctorListing{}
	}
	return items, nil
}

func (s *Service) ListSpecializations(ctx context.Context) ([]Specialization, error) {
	items, err := s.repo.ListSpecializations(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list specializations")
	}
	if items == nil {
		items = []Specialization{}
	}
	return items, nil
}

func (s *Service) AddSpecialization(ctx context.Context, name string) (*Specialization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("specialization name is required")
	}
	sp := &Specialization{Name: name}
	switch err := s.repo.CreateSpecialization(ctx, sp); {
	case errors.Is(err, ErrDuplicate):
		return nil, apperr.NewConflict("specialization already exists")
	case err != nil:
		return nil, apperr.Wrap(err, "create specialization")
	}
	return sp, nil
}

func (s *Service) GetMyProfile(ctx context.Context, id auth.Identity) (*Profile, error) {
	switch id.Role {
	case auth.RolePatient:
		p, err := s.repo.PatientProfile(ctx, id.UserID)
		if err != nil {
			return nil, profileErr(err)
		}
		history, err := s.repo.PatientHistory(ctx, id.UserID)
		if err != nil {
			return nil, apperr.Wrap(err, "load appointment history")
		}
		if history == nil {
			history = []PatientVisit{}
		}
		return &Profile{Role: id.Role, Details: p, History: history}, nil

	case auth.RoleDoctor:
		d, err := s.repo.DoctorProfile(ctx, id.UserID)
		if err != nil {
			return nil, profileErr(err)
		}
		history, err := s.repo.DoctorHistory(ctx, id.UserID)
		if err != nil {
			return nil, apperr.Wrap(err, "load appointment history")
		}
		if history == nil {
			history = []DoctorVisit{}
		}
		return &Profile{Role: id.Role, Details: d, History: history}, nil

	case auth.RoleAdmin:
		return &Profile{Role: id.Role, Details: AdminProfile{Email: id.Email}, History: []struct{}{}}, nil

	default:
		return nil, apperr.NewForbidden("unknown role")
	}
}

func profileErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NewNotFound("profile not found")
	}
	return apperr.Wrap(err, "load profile")
}
