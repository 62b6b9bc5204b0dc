package clinics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Clinic
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Clinic{}} }

func (r *testRepo) Create(_ context.Context, c Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	return nil
}

func (r *testRepo) Update(_ context.Context, c Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return errors.New("not found")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Clinic{}, errors.New("not found")
	}
	return c, nil
}

func (r *testRepo) GetByLicense(_ context.Context, license string) (Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.LicenseNumber == license {
			return c, nil
		}
	}
	return Clinic{}, errors.New("not found")
}

func (r *testRepo) List(_ context.Context, f ListFilter) ([]Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Clinic
	for _, c := range r.byID {
		if f.Governorate != "" && c.Governorate != f.Governorate {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func TestService_CreateNormalizesLicense(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{Name: "  Smile Dental ", LicenseNumber: "dl 100 7", Governorate: GovernorateAhmadi})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Smile Dental" || c.LicenseNumber != "DL1007" {
		t.Fatalf("unexpected clinic: %+v", c)
	}

	_, err = svc.Create(ctx, CreateInput{Name: "Other", LicenseNumber: "DL1007", Governorate: GovernorateJahra})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newTestRepo())
	cases := []CreateInput{
		{Name: "", LicenseNumber: "L1", Governorate: GovernorateCapital},
		{Name: "x", LicenseNumber: "  ", Governorate: GovernorateCapital},
		{Name: "x", LicenseNumber: "L1", Governorate: "kuwait_city"},
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestService_UpdatePartial(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	c, err := svc.Create(ctx, CreateInput{Name: "Smile", LicenseNumber: "L1", Governorate: GovernorateCapital, Phone: "2222"})
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return created.Add(time.Hour) }
	area := " Salmiya "
	gov := GovernorateHawalli
	up, err := svc.Update(ctx, c.ID, UpdateInput{Area: &area, Governorate: &gov})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.Area != "Salmiya" || up.Governorate != GovernorateHawalli || up.Phone != "2222" {
		t.Fatalf("unexpected update: %+v", up)
	}
	if !up.UpdatedAt.After(up.CreatedAt) {
		t.Fatalf("expected UpdatedAt to move")
	}

	empty := " "
	if _, err := svc.Update(ctx, c.ID, UpdateInput{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", UpdateInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !svc.Exists(ctx, c.ID) || svc.Exists(ctx, "missing") {
		t.Fatalf("Exists mismatch")
	}
}

func TestService_ListRejectsUnknownGovernorate(t *testing.T) {
	svc := NewService(newTestRepo())
	if _, err := svc.List(context.Background(), ListFilter{Governorate: "nowhere"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
