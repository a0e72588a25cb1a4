package directory

import (
	"time"

	"github.com/medbook/medbook/internal/platform/auth"
)

type Specialization struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DoctorListing is a doctor as shown in the public directory.
type DoctorListing struct {
	ID              int64   `json:"id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	PhotoURL        *string `json:"photo_url"`
	ExperienceYears *int    `json:"experience_years"`
	OfficeNumber    *string `json:"office_number"`
	Specialization  string  `json:"specialization"`
}

type PatientProfile struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Email       string  `json:"email"`
}

type DoctorProfile struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Specialization string `json:"specialization"`
	Email          string `json:"email"`
}

type AdminProfile struct {
	Email string `json:"email"`
}

// PatientVisit is one entry of a patient's appointment history.
type PatientVisit struct {
	AppointmentID   int64     `json:"appointment_id"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	DoctorFirstName string    `json:"doctor_first_name"`
	DoctorLastName  string    `json:"doctor_last_name"`
	Specialization  string    `json:"specialization"`
}

// DoctorVisit is one entry of a doctor's appointment history.
type DoctorVisit struct {
	Status           string    `json:"status"`
	StartTime        time.Time `json:"start_time"`
	PatientFirstName string    `json:"patient_first_name"`
	PatientLastName  string    `json:"patient_last_name"`
}

// Profile is the caller's own account data plus their full history, newest
// first. Details and History hold the role-specific types above.
type Profile struct {
	Role    auth.Role   `json:"-"`
	Details interface{} `json:"profile"`
	History interface{} `json:"appointments"`
}
