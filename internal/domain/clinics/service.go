package clinics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("clinic not found")
	ErrConflict     = errors.New("license number already registered")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name          string
	LicenseNumber string
	Governorate   Governorate
	Area          string
	Address       string
	OwnerName     string
	Phone         string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Clinic, error) {
	name := strings.TrimSpace(in.Name)
	license := normalizeLicense(in.LicenseNumber)
	if name == "" || license == "" {
		return Clinic{}, ErrInvalidInput
	}
	if !in.Governorate.Valid() {
		return Clinic{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByLicense(ctx, license); err == nil {
		return Clinic{}, ErrConflict
	}

	now := s.now()
	c := Clinic{
		ID:            uuid.NewString(),
		Name:          name,
		LicenseNumber: license,
		Governorate:   in.Governorate,
		Area:          strings.TrimSpace(in.Area),
		Address:       strings.TrimSpace(in.Address),
		OwnerName:     strings.TrimSpace(in.OwnerName),
		Phone:         strings.TrimSpace(in.Phone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return Clinic{}, err
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Clinic, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Clinic{}, ErrNotFound
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Clinic{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Clinic, error) {
	if filter.Governorate != "" && !filter.Governorate.Valid() {
		return nil, ErrInvalidInput
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.repo.List(ctx, filter)
}

// UpdateInput: punteros para PATCH real, nil = no tocar.
type UpdateInput struct {
	Name        *string
	Governorate *Governorate
	Area        *string
	Address     *string
	OwnerName   *string
	Phone       *string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Clinic, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return Clinic{}, err
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		if v == "" {
			return Clinic{}, ErrInvalidInput
		}
		c.Name = v
	}
	if in.Governorate != nil {
		if !in.Governorate.Valid() {
			return Clinic{}, ErrInvalidInput
		}
		c.Governorate = *in.Governorate
	}
	if in.Area != nil {
		c.Area = strings.TrimSpace(*in.Area)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.OwnerName != nil {
		c.OwnerName = strings.TrimSpace(*in.OwnerName)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return Clinic{}, err
	}
	return c, nil
}

// Exists lo usan visits para validar el clinic_id sin importar este paquete entero.
func (s *Service) Exists(ctx context.Context, id string) bool {
	_, err := s.GetByID(ctx, id)
	return err == nil
}

func normalizeLicense(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
