package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/db"
	"github.com/medbook/medbook/internal/platform/telemetry"
	"github.com/medbook/medbook/pkg/pagination"
)

type Service struct {
	slots        SlotRepository
	appointments AppointmentRepository
	tx           db.Transactor
	metrics      telemetry.Recorder
	loc          *time.Location
	now          func() time.Time
}

func NewService(slots SlotRepository, appts AppointmentRepository, tx db.Transactor, loc *time.Location, metrics telemetry.Recorder) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if metrics == nil {
		metrics = telemetry.Nop{}
	}
	return &Service{
		slots:        slots,
		appointments: appts,
		tx:           tx,
		metrics:      metrics,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock replaces the service clock; tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) doctorID(ctx context.Context, id auth.Identity) (int64, error) {
	doctorID, err := s.slots.DoctorIDByUser(ctx, id.UserID)
	if errors.Is(err, ErrNotFound) {
		return 0, apperr.NewNotFound("doctor profile not found")
	}
	if err != nil {
		return 0, apperr.Wrap(err, "resolve doctor profile")
	}
	return doctorID, nil
}

func (s *Service) patientID(ctx context.Context, id auth.Identity) (int64, error) {
	patientID, err := s.appointments.PatientIDByUser(ctx, id.UserID)
	if errors.Is(err, ErrNotFound) {
		return 0, apperr.NewNotFound("patient profile not found")
	}
	if err != nil {
		return 0, apperr.Wrap(err, "resolve patient profile")
	}
	return patientID, nil
}

// -- Slots --

func (s *Service) CreateSlot(ctx context.Context, id auth.Identity, startTime *time.Time) (*TimeSlot, error) {
	if startTime == nil || startTime.IsZero() {
		return nil, apperr.Validationf("startTime is required")
	}
	doctorID, err := s.doctorID(ctx, id)
	if err != nil {
		return nil, err
	}

	sl := &TimeSlot{
		DoctorID:  doctorID,
		StartTime: *startTime,
		EndTime:   startTime.Add(SlotDuration),
	}
	switch err := s.slots.Create(ctx, sl); {
	case errors.Is(err, ErrDuplicate):
		return nil, apperr.NewConflict("slot already exists")
	case err != nil:
		return nil, apperr.Wrap(err, "create slot")
	}
	return sl, nil
}

// GenerateDaySlots fills the working day of date with 15-minute slots.
// Start times the doctor already has are left untouched, so repeated calls
// for the same date are harmless.
func (s *Service) GenerateDaySlots(ctx context.Context, id auth.Identity, date string) (*GenerationResult, error) {
	if date == "" {
		return nil, apperr.Validationf("date is required")
	}
	day, err := ParseDay(date, s.loc)
	if err != nil {
		return nil, apperr.Validationf("%s", err.Error())
	}
	if day.Before(StartOfDay(s.now(), s.loc)) {
		return nil, apperr.Validationf("cannot generate slots for a past date")
	}

	doctorID, err := s.doctorID(ctx, id)
	if err != nil {
		return nil, err
	}

	windows := DayWindows(day)
	created, err := s.slots.CreateBatch(ctx, doctorID, windows)
	if err != nil {
		return nil, apperr.Wrap(err, "generate day slots")
	}
	s.metrics.SlotsGenerated(created)

	return &GenerationResult{Date: date, Requested: len(windows), Created: created}, nil
}

// DeleteSlot answers every refusal with the same Forbidden error: missing
// slot, another doctor's slot, booked slot, or a caller with no doctor profile.
func (s *Service) DeleteSlot(ctx context.Context, id auth.Identity, slotID int64) error {
	doctorID, err := s.doctorID(ctx, id)
	if apperr.Is(err, apperr.NotFound) {
		return errSlotNotDeletable
	}
	if err != nil {
		return err
	}
	deleted, err := s.slots.DeleteOwnedFree(ctx, slotID, doctorID)
	if err != nil {
		return apperr.Wrap(err, "delete slot")
	}
	if !deleted {
		return errSlotNotDeletable
	}
	return nil
}

var errSlotNotDeletable = apperr.NewForbidden("slot not found, not yours, or already booked")

func (s *Service) ListMySlots(ctx context.Context, id auth.Identity, p pagination.Params) (*pagination.Page[TimeSlot], error) {
	doctorID, err := s.doctorID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, total, err := s.slots.ListByDoctorFrom(ctx, doctorID, s.now(), p.Limit, p.Offset())
	if err != nil {
		return nil, apperr.Wrap(err, "list slots")
	}
	return pagination.NewPage(items, total, p), nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, doctorID int64) (*AvailableSlots, error) {
	if doctorID <= 0 {
		return nil, apperr.Validationf("invalid doctor id")
	}
	items, err := s.slots.ListFree(ctx, doctorID, s.now())
	if err != nil {
		return nil, apperr.Wrap(err, "list available slots")
	}
	if items == nil {
		items = []TimeSlot{}
	}
	return &AvailableSlots{DoctorID: doctorID, Slots: items}, nil
}

// -- Appointments --

// BookAppointment claims slotID for the calling patient. The availability
// check happens on a locked row inside the same transaction as the writes;
// the loser of a race sees is_booked = true and gets Conflict.
func (s *Service) BookAppointment(ctx context.Context, id auth.Identity, slotID int64) (*Appointment, error) {
	if slotID <= 0 {
		s.metrics.BookingAttempt(telemetry.OutcomeRejected)
		return nil, apperr.Validationf("timeSlotId is required")
	}

	var appt *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		patientID, err := s.patientID(ctx, id)
		if err != nil {
			return err
		}

		booked, err := s.slots.LockForBooking(ctx, slotID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NewNotFound("time slot not found")
		}
		if err != nil {
			return apperr.Wrap(err, "lock time slot")
		}
		if booked {
			return apperr.NewConflict("this slot is already booked")
		}

		a := &Appointment{PatientID: patientID, TimeSlotID: slotID, Status: StatusScheduled}
		switch err := s.appointments.Create(ctx, a); {
		case errors.Is(err, ErrDuplicate):
			return apperr.NewConflict("this slot is already booked")
		case errors.Is(err, ErrNotFound):
			return apperr.NewNotFound("time slot not found")
		case err != nil:
			return apperr.Wrap(err, "create appointment")
		}

		if err := s.slots.SetBooked(ctx, slotID, true); err != nil {
			return apperr.Wrap(err, "mark slot booked")
		}
		appt = a
		return nil
	})
	s.metrics.BookingAttempt(bookingOutcome(err))
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeBooked
	case apperr.Is(err, apperr.Conflict):
		return telemetry.OutcomeConflict
	case apperr.Is(err, apperr.NotFound):
		return telemetry.OutcomeNotFound
	case apperr.IsDomain(err):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

// CancelAppointment does not distinguish a missing appointment from one
// belonging to another patient.
func (s *Service) CancelAppointment(ctx context.Context, id auth.Identity, appointmentID int64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		patientID, err := s.appointments.PatientIDByUser(ctx, id.UserID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NewForbidden("appointment not found or not yours")
		}
		if err != nil {
			return apperr.Wrap(err, "resolve patient profile")
		}

		a, err := s.appointments.GetOwned(ctx, appointmentID, patientID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NewForbidden("appointment not found or not yours")
		}
		if err != nil {
			return apperr.Wrap(err, "load appointment")
		}
		if a.Status != StatusScheduled {
			return apperr.Validationf("cannot cancel an appointment with status %s", a.Status)
		}

		if err := s.appointments.SetStatus(ctx, a.ID, StatusCancelled); err != nil {
			return apperr.Wrap(err, "cancel appointment")
		}
		if err := s.slots.SetBooked(ctx, a.TimeSlotID, false); err != nil {
			return apperr.Wrap(err, "release slot")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.AppointmentCancelled()
	return nil
}

func (s *Service) ListMyAppointments(ctx context.Context, id auth.Identity) (*MyAppointments, error) {
	now := s.now()
	switch id.Role {
	case auth.RolePatient:
		patientID, err := s.patientID(ctx, id)
		if err != nil {
			return nil, err
		}
		items, err := s.appointments.ListUpcomingForPatient(ctx, patientID, now)
		if err != nil {
			return nil, apperr.Wrap(err, "list appointments")
		}
		if items == nil {
			items = []PatientAppointment{}
		}
		return &MyAppointments{Role: id.Role, Patient: items}, nil

	case auth.RoleDoctor:
		doctorID, err := s.doctorID(ctx, id)
		if err != nil {
			return nil, err
		}
		from := StartOfDay(now, s.loc)
		items, err := s.appointments.ListForDoctorBetween(ctx, doctorID, from, from.AddDate(0, 0, 1))
		if err != nil {
			return nil, apperr.Wrap(err, "list appointments")
		}
		if items == nil {
			items = []DoctorAppointment{}
		}
		return &MyAppointments{Role: id.Role, Doctor: items}, nil

	case auth.RoleAdmin:
		return nil, apperr.NewForbidden("appointments are listed for patients and doctors only")

	default:
		return nil, apperr.NewForbidden("unknown role")
	}
}
