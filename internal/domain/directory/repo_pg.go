package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/db"
)

type directoryRepoPG struct{ pool *pgxpool.Pool }

func NewDirectoryRepoPG(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepoPG{pool: pool}
}

func (r *directoryRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *directoryRepoPG) ListDoctors(ctx context.Context) ([]DoctorListing, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.id, d.first_name, d.last_name, d.photo_url,
			d.experience_years, d.office_number, s.name
		FROM doctors d
		JOIN specializations s ON s.id = d.specialization_id
		ORDER BY d.last_name, d.first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DoctorListing
	for rows.Next() {
		var d DoctorListing
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName, &d.PhotoURL,
			&d.ExperienceYears, &d.OfficeNumber, &d.Specialization); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *directoryRepoPG) ListSpecializations(ctx context.Context) ([]Specialization, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM specializations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Specialization
	for rows.Next() {
		var s Specialization
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *directoryRepoPG) CreateSpecialization(ctx context.Context, s *Specialization) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO specializations (name) VALUES ($1) RETURNING id`, s.Name).Scan(&s.ID)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *directoryRepoPG) PatientProfile(ctx context.Context, userID int64) (*PatientProfile, error) {
	var p PatientProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT p.first_name, p.last_name, p.phone_number, u.email
		FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`, userID).
		Scan(&p.FirstName, &p.LastName, &p.PhoneNumber, &p.Email)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *directoryRepoPG) PatientHistory(ctx context.Context, userID int64) ([]PatientVisit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.status, ts.start_time, d.first_name, d.last_name, s.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN time_slots ts ON ts.id = a.time_slot_id
		JOIN doctors d ON d.id = ts.doctor_id
		JOIN specializations s ON s.id = d.specialization_id
		WHERE p.user_id = $1
		ORDER BY ts.start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatientVisit
	for rows.Next() {
		var v PatientVisit
		if err := rows.Scan(&v.AppointmentID, &v.Status, &v.StartTime,
			&v.DoctorFirstName, &v.DoctorLastName, &v.Specialization); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *directoryRepoPG) DoctorProfile(ctx context.Context, userID int64) (*DoctorProfile, error) {
	var d DoctorProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT d.first_name, d.last_name, s.name, u.email
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		JOIN specializations s ON s.id = d.specialization_id
		WHERE d.user_id = $1`, userID).
		Scan(&d.FirstName, &d.LastName, &d.Specialization, &d.Email)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *directoryRepoPG) DoctorHistory(ctx context.Context, userID int64) ([]DoctorVisit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.status, ts.start_time, p.first_name, p.last_name
		FROM appointments a
		JOIN time_slots ts ON ts.id = a.time_slot_id
		JOIN doctors d ON d.id = ts.doctor_id
		JOIN patients p ON p.id = a.patient_id
		WHERE d.user_id = $1
		ORDER BY ts.start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DoctorVisit
	for rows.Next() {
		var v DoctorVisit
		if err := rows.Scan(&v.Status, &v.StartTime, &v.PatientFirstName, &v.PatientLastName); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
