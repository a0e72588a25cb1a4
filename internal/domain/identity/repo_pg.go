package identity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/db"
)

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) AccountRepository { return &accountRepoPG{pool: pool} }

func (r *accountRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *accountRepoPG) CreateUser(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *accountRepoPG) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser relies on ON DELETE CASCADE to remove the profile row and
// everything hanging off it.
func (r *accountRepoPG) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) CreatePatient(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (user_id, first_name, last_name, phone_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.UserID, p.FirstName, p.LastName, p.PhoneNumber).Scan(&p.ID)
}

func (r *accountRepoPG) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, user_id, first_name, last_name, phone_number FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.PhoneNumber)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *accountRepoPG) ListPatients(ctx context.Context) ([]PatientSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.first_name, p.last_name, p.phone_number, u.email
		FROM patients p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.last_name, p.first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatientSummary
	for rows.Next() {
		var p PatientSummary
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.Email); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *accountRepoPG) ReleasePatientSlots(ctx context.Context, patientID int64) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slots SET is_booked = FALSE
		WHERE id IN (
			SELECT time_slot_id FROM appointments
			WHERE patient_id = $1 AND status = 'scheduled'
		)`, patientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *accountRepoPG) CreateDoctor(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (user_id, first_name, last_name, specialization_id,
			photo_url, experience_years, office_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		d.UserID, d.FirstName, d.LastName, d.SpecializationID,
		d.PhotoURL, d.ExperienceYears, d.OfficeNumber).Scan(&d.ID)
	if db.IsForeignKeyViolation(err) {
		return ErrUnknownReference
	}
	return err
}

func (r *accountRepoPG) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	var d Doctor
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, first_name, last_name, specialization_id,
			photo_url, experience_years, office_number
		FROM doctors WHERE id = $1`, id).
		Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.SpecializationID,
			&d.PhotoURL, &d.ExperienceYears, &d.OfficeNumber)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
