package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dental-inspections/internal/domain/clinics"
)

type ClinicsRepo struct {
	db *sql.DB
}

func NewClinicsRepo(db *sql.DB) *ClinicsRepo {
	return &ClinicsRepo{db: db}
}

const clinicColumns = `id, name, license_number, governorate, area, address, owner_name, phone, created_at, updated_at`

func (r *ClinicsRepo) Create(ctx context.Context, c clinics.Clinic) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clinics (`+clinicColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		c.ID, c.Name, c.LicenseNumber, string(c.Governorate),
		c.Area, c.Address, c.OwnerName, c.Phone,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *ClinicsRepo) Update(ctx context.Context, c clinics.Clinic) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clinics
		SET name = $2, governorate = $3, area = $4, address = $5,
			owner_name = $6, phone = $7, updated_at = $8
		WHERE id = $1
	`,
		c.ID, c.Name, string(c.Governorate), c.Area, c.Address,
		c.OwnerName, c.Phone, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ClinicsRepo) GetByID(ctx context.Context, id string) (clinics.Clinic, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return clinics.Clinic{}, ErrNotFound
	}
	return scanClinic(r.db.QueryRowContext(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id))
}

func (r *ClinicsRepo) GetByLicense(ctx context.Context, license string) (clinics.Clinic, error) {
	return scanClinic(r.db.QueryRowContext(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE license_number = $1`, license))
}

func (r *ClinicsRepo) List(ctx context.Context, f clinics.ListFilter) ([]clinics.Clinic, error) {
	var (
		where []string
		args  []any
	)
	if f.Governorate != "" {
		args = append(args, string(f.Governorate))
		where = append(where, fmt.Sprintf("governorate = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%[1]d OR license_number ILIKE $%[1]d OR area ILIKE $%[1]d)", len(args)))
	}

	q := `SELECT ` + clinicColumns + ` FROM clinics`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY name ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]clinics.Clinic, 0)
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClinic(s rowScanner) (clinics.Clinic, error) {
	var c clinics.Clinic
	var gov string
	if err := s.Scan(
		&c.ID, &c.Name, &c.LicenseNumber, &gov,
		&c.Area, &c.Address, &c.OwnerName, &c.Phone,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return clinics.Clinic{}, ErrNotFound
		}
		return clinics.Clinic{}, err
	}
	c.Governorate = clinics.Governorate(gov)
	return c, nil
}
