package identity

import (
	"time"

	"github.com/medbook/medbook/internal/platform/auth"
)

// Password length bounds. bcrypt rejects input longer than 72 bytes.
const (
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

// User maps to the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Patient maps to the patients table.
type Patient struct {
	ID          int64   `db:"id" json:"id"`
	UserID      int64   `db:"user_id" json:"user_id"`
	FirstName   string  `db:"first_name" json:"first_name"`
	LastName    string  `db:"last_name" json:"last_name"`
	PhoneNumber *string `db:"phone_number" json:"phone_number"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID               int64   `db:"id" json:"id"`
	UserID           int64   `db:"user_id" json:"user_id"`
	FirstName        string  `db:"first_name" json:"first_name"`
	LastName         string  `db:"last_name" json:"last_name"`
	SpecializationID int64   `db:"specialization_id" json:"specialization_id"`
	PhotoURL         *string `db:"photo_url" json:"photo_url"`
	ExperienceYears  *int    `db:"experience_years" json:"experience_years"`
	OfficeNumber     *string `db:"office_number" json:"office_number"`
}

// PatientSummary is a row of the admin patient list.
type PatientSummary struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Email       string  `json:"email"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateDoctorRequest struct {
	FirstName        string
	LastName         string
	Email            string
	Password         string
	SpecializationID int64
	ExperienceYears  *int
	OfficeNumber     *string
}

// AuthResult is a freshly issued credential and the identity it encodes.
type AuthResult struct {
	Token    string        `json:"token"`
	Identity auth.Identity `json:"user"`
}
