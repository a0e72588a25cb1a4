package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/db"
)

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const slotCols = `id, doctor_id, start_time, end_time, is_booked`

func scanSlot(row pgx.Row) (TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.IsBooked)
	return s, err
}

func (r *slotRepoPG) DoctorIDByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM doctors WHERE user_id = $1`, userID).Scan(&id)
	if db.IsNoRows(err) {
		return 0, ErrNotFound
	}
	return id, err
}

func (r *slotRepoPG) Create(ctx context.Context, sl *TimeSlot) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO time_slots (doctor_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id, is_booked`,
		sl.DoctorID, sl.StartTime, sl.EndTime).Scan(&sl.ID, &sl.IsBooked)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *slotRepoPG) CreateBatch(ctx context.Context, doctorID int64, windows []Window) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}
	starts := make([]time.Time, len(windows))
	ends := make([]time.Time, len(windows))
	for i, w := range windows {
		starts[i] = w.Start
		ends[i] = w.End
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO time_slots (doctor_id, start_time, end_time)
		SELECT $1, s, e FROM unnest($2::timestamptz[], $3::timestamptz[]) AS w(s, e)
		ON CONFLICT (doctor_id, start_time) DO NOTHING`,
		doctorID, starts, ends)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *slotRepoPG) DeleteOwnedFree(ctx context.Context, slotID, doctorID int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM time_slots WHERE id = $1 AND doctor_id = $2 AND is_booked = FALSE`,
		slotID, doctorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *slotRepoPG) ListByDoctorFrom(ctx context.Context, doctorID int64, from time.Time, limit, offset int) ([]TimeSlot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM time_slots WHERE doctor_id = $1 AND start_time >= $2`,
		doctorID, from).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM time_slots
		WHERE doctor_id = $1 AND start_time >= $2
		ORDER BY start_time ASC LIMIT $3 OFFSET $4`,
		doctorID, from, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *slotRepoPG) ListFree(ctx context.Context, doctorID int64, after time.Time) ([]TimeSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM time_slots
		WHERE doctor_id = $1 AND is_booked = FALSE AND start_time > $2
		ORDER BY start_time ASC`, doctorID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) LockForBooking(ctx context.Context, slotID int64) (bool, error) {
	var booked bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT is_booked FROM time_slots WHERE id = $1 FOR UPDATE`, slotID).Scan(&booked)
	if db.IsNoRows(err) {
		return false, ErrNotFound
	}
	return booked, err
}

func (r *slotRepoPG) SetBooked(ctx context.Context, slotID int64, booked bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE time_slots SET is_booked = $2 WHERE id = $1`, slotID, booked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *appointmentRepoPG) PatientIDByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM patients WHERE user_id = $1`, userID).Scan(&id)
	if db.IsNoRows(err) {
		return 0, ErrNotFound
	}
	return id, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (patient_id, time_slot_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		a.PatientID, a.TimeSlotID, a.Status).Scan(&a.ID, &a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if db.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *appointmentRepoPG) GetOwned(ctx context.Context, appointmentID, patientID int64) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, time_slot_id, status, created_at
		FROM appointments WHERE id = $1 AND patient_id = $2
		FOR UPDATE`,
		appointmentID, patientID).Scan(&a.ID, &a.PatientID, &a.TimeSlotID, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) SetStatus(ctx context.Context, appointmentID int64, status AppointmentStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, appointmentID, status)
	return err
}

func (r *appointmentRepoPG) ListUpcomingForPatient(ctx context.Context, patientID int64, from time.Time) ([]PatientAppointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.status, ts.start_time, ts.end_time,
			d.first_name, d.last_name, sp.name
		FROM appointments a
		JOIN time_slots ts ON ts.id = a.time_slot_id
		JOIN doctors d ON d.id = ts.doctor_id
		JOIN specializations sp ON sp.id = d.specialization_id
		WHERE a.patient_id = $1 AND a.status = 'scheduled' AND ts.start_time >= $2
		ORDER BY ts.start_time ASC`, patientID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatientAppointment
	for rows.Next() {
		var p PatientAppointment
		if err := rows.Scan(&p.AppointmentID, &p.Status, &p.StartTime, &p.EndTime,
			&p.DoctorFirstName, &p.DoctorLastName, &p.Specialization); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListForDoctorBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]DoctorAppointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, ts.start_time, p.first_name, p.last_name, p.phone_number
		FROM appointments a
		JOIN time_slots ts ON ts.id = a.time_slot_id
		JOIN patients p ON p.id = a.patient_id
		WHERE ts.doctor_id = $1 AND a.status = 'scheduled'
			AND ts.start_time >= $2 AND ts.start_time < $3
		ORDER BY ts.start_time ASC`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DoctorAppointment
	for rows.Next() {
		var d DoctorAppointment
		if err := rows.Scan(&d.AppointmentID, &d.StartTime,
			&d.PatientFirstName, &d.PatientLastName, &d.PatientPhone); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
