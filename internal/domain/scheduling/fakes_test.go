package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the time_slots, appointments,
// doctors and patients tables. WithTx serialises transactions and restores a
// snapshot when fn fails, which is enough to model commit/rollback.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	doctors  map[int64]int64 // user id -> doctor id
	patients map[int64]int64 // user id -> patient id
	slots    map[int64]TimeSlot
	appts    map[int64]Appointment
	nextSlot int64
	nextAppt int64

	failSetBooked bool
}

func newMemStore() *memStore {
	return &memStore{
		doctors:  map[int64]int64{},
		patients: map[int64]int64{},
		slots:    map[int64]TimeSlot{},
		appts:    map[int64]Appointment{},
	}
}

type memTxKey struct{}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	slots := make(map[int64]TimeSlot, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	appts := make(map[int64]Appointment, len(m.appts))
	for k, v := range m.appts {
		appts[k] = v
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.slots, m.appts = slots, appts
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) addSlot(doctorID int64, start time.Time, booked bool) TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSlot++
	s := TimeSlot{ID: m.nextSlot, DoctorID: doctorID, StartTime: start, EndTime: start.Add(SlotDuration), IsBooked: booked}
	m.slots[s.ID] = s
	return s
}

func (m *memStore) slot(id int64) (TimeSlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return s, ok
}

func (m *memStore) appointment(id int64) (Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	return a, ok
}

func (m *memStore) countSlots(doctorID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.DoctorID == doctorID {
			n++
		}
	}
	return n
}

func sortSlots(items []TimeSlot) {
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
}

// -- SlotRepository --

type memSlotRepo struct{ m *memStore }

func (r memSlotRepo) DoctorIDByUser(_ context.Context, userID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	id, ok := r.m.doctors[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (r memSlotRepo) Create(_ context.Context, sl *TimeSlot) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.slots {
		if s.DoctorID == sl.DoctorID && s.StartTime.Equal(sl.StartTime) {
			return ErrDuplicate
		}
	}
	r.m.nextSlot++
	sl.ID = r.m.nextSlot
	r.m.slots[sl.ID] = *sl
	return nil
}

func (r memSlotRepo) CreateBatch(ctx context.Context, doctorID int64, windows []Window) (int, error) {
	n := 0
	for _, w := range windows {
		err := r.Create(ctx, &TimeSlot{DoctorID: doctorID, StartTime: w.Start, EndTime: w.End})
		if err == ErrDuplicate {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r memSlotRepo) DeleteOwnedFree(_ context.Context, slotID, doctorID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.slots[slotID]
	if !ok || s.DoctorID != doctorID || s.IsBooked {
		return false, nil
	}
	delete(r.m.slots, slotID)
	return true, nil
}

func (r memSlotRepo) ListByDoctorFrom(_ context.Context, doctorID int64, from time.Time, limit, offset int) ([]TimeSlot, int, error) {
	r.m.mu.Lock()
	var all []TimeSlot
	for _, s := range r.m.slots {
		if s.DoctorID == doctorID && !s.StartTime.Before(from) {
			all = append(all, s)
		}
	}
	r.m.mu.Unlock()
	sortSlots(all)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r memSlotRepo) ListFree(_ context.Context, doctorID int64, after time.Time) ([]TimeSlot, error) {
	r.m.mu.Lock()
	var out []TimeSlot
	for _, s := range r.m.slots {
		if s.DoctorID == doctorID && !s.IsBooked && s.StartTime.After(after) {
			out = append(out, s)
		}
	}
	r.m.mu.Unlock()
	sortSlots(out)
	return out, nil
}

func (r memSlotRepo) LockForBooking(_ context.Context, slotID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.slots[slotID]
	if !ok {
		return false, ErrNotFound
	}
	return s.IsBooked, nil
}

func (r memSlotRepo) SetBooked(_ context.Context, slotID int64, booked bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failSetBooked {
		return context.DeadlineExceeded
	}
	s, ok := r.m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	s.IsBooked = booked
	r.m.slots[slotID] = s
	return nil
}

// -- AppointmentRepository --

type memAppointmentRepo struct {
	m *memStore
	// doctor display data keyed by doctor id
	names map[int64][3]string
}

func (r memAppointmentRepo) PatientIDByUser(_ context.Context, userID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	id, ok := r.m.patients[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (r memAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.appts {
		if x.TimeSlotID == a.TimeSlotID && x.Status == StatusScheduled {
			return ErrDuplicate
		}
	}
	r.m.nextAppt++
	a.ID = r.m.nextAppt
	a.CreatedAt = time.Now()
	r.m.appts[a.ID] = *a
	return nil
}

func (r memAppointmentRepo) GetOwned(_ context.Context, appointmentID, patientID int64) (*Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.appts[appointmentID]
	if !ok || a.PatientID != patientID {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memAppointmentRepo) SetStatus(_ context.Context, appointmentID int64, status AppointmentStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a := r.m.appts[appointmentID]
	a.Status = status
	r.m.appts[appointmentID] = a
	return nil
}

func (r memAppointmentRepo) ListUpcomingForPatient(_ context.Context, patientID int64, from time.Time) ([]PatientAppointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []PatientAppointment
	for _, a := range r.m.appts {
		s := r.m.slots[a.TimeSlotID]
		if a.PatientID != patientID || a.Status != StatusScheduled || s.StartTime.Before(from) {
			continue
		}
		n := r.names[s.DoctorID]
		out = append(out, PatientAppointment{
			AppointmentID: a.ID, Status: a.Status, StartTime: s.StartTime, EndTime: s.EndTime,
			DoctorFirstName: n[0], DoctorLastName: n[1], Specialization: n[2],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r memAppointmentRepo) ListForDoctorBetween(_ context.Context, doctorID int64, from, to time.Time) ([]DoctorAppointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []DoctorAppointment
	for _, a := range r.m.appts {
		s := r.m.slots[a.TimeSlotID]
		if s.DoctorID != doctorID || a.Status != StatusScheduled || s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		out = append(out, DoctorAppointment{AppointmentID: a.ID, StartTime: s.StartTime, PatientFirstName: "Pat", PatientLastName: "Ient"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	cancelled int
	generated int
}

func (r *recordingMetrics) BookingAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) AppointmentCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled++
}

func (r *recordingMetrics) SlotsGenerated(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated += n
}
