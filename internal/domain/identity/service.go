package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/blobstore"
	"github.com/medbook/medbook/internal/platform/db"
)

// TokenIssuer signs credentials for authenticated identities.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

const invalidCredentials = "invalid email or password"

type Service struct {
	accounts AccountRepository
	tx       db.Transactor
	tokens   TokenIssuer
	photos   blobstore.BlobStore
	logger   zerolog.Logger
}

func NewService(accounts AccountRepository, tx db.Transactor, tokens TokenIssuer, photos blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{accounts: accounts, tx: tx, tokens: tokens, photos: photos, logger: logger}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return apperr.Validationf("invalid email address")
	}
	return nil
}

func (s *Service) issue(u *User) (*AuthResult, error) {
	id := u.Identity()
	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, apperr.Wrap(err, "issue token")
	}
	return &AuthResult{Token: token, Identity: id}, nil
}

// newUser validates credentials and builds an unsaved user with a hashed
// password.
func newUser(email, password string, role auth.Role) (*User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, apperr.Validationf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return nil, apperr.Validationf("password must be at most %d bytes", MaxPasswordLen)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	return &User{Email: email, PasswordHash: hash, Role: role}, nil
}

func (s *Service) createUser(ctx context.Context, u *User) error {
	switch err := s.accounts.CreateUser(ctx, u); {
	case errors.Is(err, ErrDuplicate):
		return apperr.NewConflict("a user with this email already exists")
	case err != nil:
		return apperr.Wrap(err, "create user")
	}
	return nil
}

// -- Self-service --

// Register creates a patient account and signs the caller in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return nil, apperr.Validationf("firstName, lastName, email and password are required")
	}

	u, err := newUser(req.Email, req.Password, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.createUser(ctx, u); err != nil {
			return err
		}
		p := &Patient{UserID: u.ID, FirstName: req.FirstName, LastName: req.LastName}
		if err := s.accounts.CreatePatient(ctx, p); err != nil {
			return apperr.Wrap(err, "create patient")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login does not reveal whether the email is registered.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validationf("email and password are required")
	}

	u, err := s.accounts.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NewUnauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load user")
	}
	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "check password")
	}
	if !ok {
		return nil, apperr.NewUnauthorized(invalidCredentials)
	}
	return s.issue(u)
}

func (s *Service) Me(_ context.Context, id auth.Identity) auth.Identity {
	return id
}

// -- Administration --

// CreateDoctor provisions a doctor account. The photo is stored before the
// transaction and removed again if the transaction fails.
func (s *Service) CreateDoctor(ctx context.Context, req CreateDoctorRequest, photo *blobstore.Upload) (*Doctor, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" || req.SpecializationID <= 0 {
		return nil, apperr.Validationf("firstName, lastName, email, password and specializationId are required")
	}
	if req.ExperienceYears != nil && *req.ExperienceYears < 0 {
		return nil, apperr.Validationf("experienceYears must not be negative")
	}
	if req.OfficeNumber != nil && strings.TrimSpace(*req.OfficeNumber) == "" {
		req.OfficeNumber = nil
	}

	u, err := newUser(req.Email, req.Password, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}

	var photoURL *string
	if photo != nil {
		meta, err := s.photos.Put(ctx, *photo)
		if err != nil {
			if apperr.IsDomain(err) {
				return nil, err
			}
			return nil, apperr.Wrap(err, "store photo")
		}
		photoURL = &meta.URL
	}

	d := &Doctor{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		SpecializationID: req.SpecializationID,
		PhotoURL:         photoURL,
		ExperienceYears:  req.ExperienceYears,
		OfficeNumber:     req.OfficeNumber,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.createUser(ctx, u); err != nil {
			return err
		}
		d.UserID = u.ID
		switch err := s.accounts.CreateDoctor(ctx, d); {
		case errors.Is(err, ErrUnknownReference):
			return apperr.Validationf("unknown specialization %d", req.SpecializationID)
		case err != nil:
			return apperr.Wrap(err, "create doctor")
		}
		return nil
	})
	if err != nil {
		if photoURL != nil {
			s.removePhoto(ctx, *photoURL)
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) removePhoto(ctx context.Context, url string) {
	if err := s.photos.Delete(ctx, url); err != nil {
		s.logger.Warn().Err(err).Str("photo_url", url).Msg("failed to remove doctor photo")
	}
}

// DeleteDoctor removes the doctor's account; slots and their appointments
// go with it.
func (s *Service) DeleteDoctor(ctx context.Context, doctorID int64) error {
	d, err := s.accounts.GetDoctor(ctx, doctorID)
	if errors.Is(err, ErrNotFound) {
		return apperr.NewNotFound("doctor not found")
	}
	if err != nil {
		return apperr.Wrap(err, "load doctor")
	}
	if err := s.accounts.DeleteUser(ctx, d.UserID); err != nil && !errors.Is(err, ErrNotFound) {
		return apperr.Wrap(err, "delete doctor")
	}
	if d.PhotoURL != nil {
		s.removePhoto(ctx, *d.PhotoURL)
	}
	return nil
}

func (s *Service) ListPatients(ctx context.Context) ([]PatientSummary, error) {
	items, err := s.accounts.ListPatients(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list patients")
	}
	if items == nil {
		items = []PatientSummary{}
	}
	return items, nil
}

// DeletePatient frees the slots of the patient's scheduled appointments
// before the cascade removes those appointments.
func (s *Service) DeletePatient(ctx context.Context, patientID int64) error {
	var (
		userID   int64
		released int
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.accounts.GetPatient(ctx, patientID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NewNotFound("patient not found")
		}
		if err != nil {
			return apperr.Wrap(err, "load patient")
		}
		released, err = s.accounts.ReleasePatientSlots(ctx, p.ID)
		if err != nil {
			return apperr.Wrap(err, "release patient slots")
		}
		if err := s.accounts.DeleteUser(ctx, p.UserID); err != nil {
			return apperr.Wrap(err, "delete patient")
		}
		userID = p.UserID
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int64("patient_id", patientID).Int64("user_id", userID).Int("released_slots", released).Msg("patient deleted")
	return nil
}

// CreateAdmin provisions an administrator. It is only reachable from the CLI.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (*auth.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validationf("email and password are required")
	}
	u, err := newUser(email, password, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}
	id := u.Identity()
	return &id, nil
}
