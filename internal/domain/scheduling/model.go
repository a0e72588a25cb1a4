package scheduling

import (
	"fmt"
	"time"

	"github.com/medbook/medbook/internal/platform/auth"
)

// SlotDuration is the length of a slot created one at a time.
const SlotDuration = 30 * time.Minute

// Working-day window used by GenerateDaySlots: 08:00 to 16:00 local clinic
// time, one slot every 15 minutes, each 15 minutes long.
const (
	WorkdayStartHour     = 8
	WorkdayEndHour       = 16
	GeneratedCadence     = 15 * time.Minute
	GeneratedSlotLen     = 15 * time.Minute
	GeneratedSlotsPerDay = int((WorkdayEndHour - WorkdayStartHour) * time.Hour / GeneratedCadence)
)

// DateLayout is the accepted format of GenerateDaySlots' date.
const DateLayout = "2006-01-02"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// TimeSlot maps to the time_slots table.
type TimeSlot struct {
	ID        int64     `db:"id" json:"id"`
	DoctorID  int64     `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	IsBooked  bool      `db:"is_booked" json:"is_booked"`
}

// Window is a [Start, End) interval to be inserted as a slot.
type Window struct {
	Start time.Time
	End   time.Time
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID         int64             `db:"id" json:"id"`
	PatientID  int64             `db:"patient_id" json:"patient_id"`
	TimeSlotID int64             `db:"time_slot_id" json:"time_slot_id"`
	Status     AppointmentStatus `db:"status" json:"status"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// PatientAppointment is an upcoming visit as seen by the patient.
type PatientAppointment struct {
	AppointmentID   int64             `json:"appointment_id"`
	Status          AppointmentStatus `json:"status"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DoctorFirstName string            `json:"doctor_first_name"`
	DoctorLastName  string            `json:"doctor_last_name"`
	Specialization  string            `json:"specialization"`
}

// DoctorAppointment is one of today's visits as seen by the doctor.
type DoctorAppointment struct {
	AppointmentID    int64     `json:"appointment_id"`
	StartTime        time.Time `json:"start_time"`
	PatientFirstName string    `json:"patient_first_name"`
	PatientLastName  string    `json:"patient_last_name"`
	PatientPhone     *string   `json:"patient_phone"`
}

// MyAppointments holds the role-specific listing; exactly one of the slices
// is meaningful, selected by Role.
type MyAppointments struct {
	Role    auth.Role
	Patient []PatientAppointment
	Doctor  []DoctorAppointment
}

// Items returns the listing to render.
func (m *MyAppointments) Items() interface{} {
	switch m.Role {
	case auth.RolePatient:
		return m.Patient
	case auth.RoleDoctor:
		return m.Doctor
	default:
		return []struct{}{}
	}
}

// AvailableSlots is the public free-slot listing for one doctor.
type AvailableSlots struct {
	DoctorID int64
	Slots    []TimeSlot
}

// Empty reports the "no free slots" condition, which callers render as an
// explicit marker rather than an empty list.
func (a *AvailableSlots) Empty() bool { return len(a.Slots) == 0 }

// GenerationResult summarises one GenerateDaySlots call.
type GenerationResult struct {
	Date      string `json:"date"`
	Requested int    `json:"requested"`
	Created   int    `json:"created"`
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc.
func ParseDay(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayWindows enumerates the generated slots for day, which must be a
// midnight in the clinic location.
func DayWindows(day time.Time) []Window {
	loc := day.Location()
	y, m, d := day.Date()
	start := time.Date(y, m, d, WorkdayStartHour, 0, 0, 0, loc)
	end := time.Date(y, m, d, WorkdayEndHour, 0, 0, 0, loc)

	windows := make([]Window, 0, GeneratedSlotsPerDay)
	for t := start; t.Before(end); t = t.Add(GeneratedCadence) {
		windows = append(windows, Window{Start: t, End: t.Add(GeneratedSlotLen)})
	}
	return windows
}
