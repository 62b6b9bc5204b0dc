package violations

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Report
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Report{}}
}

func (r *testRepo) Create(ctx context.Context, rep Report) error {
	r.byID[rep.ID] = rep
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Report, error) {
	rep, ok := r.byID[id]
	if !ok {
		return Report{}, errRepoNotFound
	}
	return rep, nil
}

func (r *testRepo) ListByVisit(ctx context.Context, visitID string, filter ListFilter) ([]Report, error) {
	kinds := map[Kind]struct{}{}
	for _, k := range filter.Kinds {
		kinds[k] = struct{}{}
	}
	out := make([]Report, 0)
	for _, rep := range r.byID {
		if rep.VisitID != visitID {
			continue
		}
		if !filter.IncludeVoided && rep.Status == StatusVoided {
			continue
		}
		if len(kinds) > 0 {
			if _, ok := kinds[rep.Kind]; !ok {
				continue
			}
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r *testRepo) Void(ctx context.Context, id, actorID string, at time.Time) error {
	rep, ok := r.byID[id]
	if !ok {
		return errRepoNotFound
	}
	rep.Status = StatusVoided
	rep.VoidedBy = actorID
	rep.VoidedAt = &at
	r.byID[id] = rep
	return nil
}

type testVisits map[string]bool

func (v testVisits) IsOpen(ctx context.Context, id string) (bool, error) {
	open, ok := v[id]
	if !ok {
		return false, errors.New("visit not found")
	}
	return open, nil
}

func TestService_Create_ValidatesAndDefaults(t *testing.T) {
	visits := testVisits{"v-1": true}
	svc := NewService(newTestRepo(), visits)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	rep, err := svc.Create(ctx, "v-1", "insp-1", CreateInput{
		Kind:     KindMedicalWaste,
		Action:   ActionFine,
		Articles: []string{" 12 ", "", "12", "14"},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rep.Status != StatusActive || rep.IssuedAt != now || rep.IssuedBy != "insp-1" {
		t.Fatalf("unexpected report %#v", rep)
	}
	if len(rep.Articles) != 2 || rep.Articles[0] != "12" || rep.Articles[1] != "14" {
		t.Fatalf("expected cleaned articles, got %v", rep.Articles)
	}

	bad := []CreateInput{
		{Kind: Kind("parking"), Action: ActionFine},
		{Kind: KindAdvertising, Action: Action("jail")},
		{Kind: KindOther, Action: ActionWarning},
	}
	for _, in := range bad {
		if _, err := svc.Create(ctx, "v-1", "insp-1", in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %#v, got %v", in, err)
		}
	}

	if _, err := svc.Create(ctx, "v-x", "insp-1", CreateInput{Kind: KindAdvertising, Action: ActionWarning}); !errors.Is(err, ErrNoVisit) {
		t.Fatalf("expected ErrNoVisit, got %v", err)
	}

	visits["v-1"] = false
	if _, err := svc.Create(ctx, "v-1", "insp-1", CreateInput{Kind: KindAdvertising, Action: ActionWarning}); !errors.Is(err, ErrVisitClosed) {
		t.Fatalf("expected ErrVisitClosed, got %v", err)
	}
}

func TestService_Void_IdempotentWhileOpen(t *testing.T) {
	visits := testVisits{"v-1": true}
	svc := NewService(newTestRepo(), visits)
	ctx := context.Background()

	rep, _ := svc.Create(ctx, "v-1", "insp-1", CreateInput{Kind: KindExpiredLicense, Action: ActionWarning})

	if _, err := svc.Void(ctx, "v-other", rep.ID, "sup-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for report of another visit, got %v", err)
	}

	voided, err := svc.Void(ctx, "v-1", rep.ID, "sup-1")
	if err != nil {
		t.Fatalf("Void error: %v", err)
	}
	if voided.Status != StatusVoided || voided.VoidedBy != "sup-1" || voided.VoidedAt == nil {
		t.Fatalf("unexpected voided report %#v", voided)
	}

	// cerrada la visita, anular de nuevo sigue siendo idempotente
	visits["v-1"] = false
	again, err := svc.Void(ctx, "v-1", rep.ID, "sup-2")
	if err != nil || again.VoidedBy != "sup-1" {
		t.Fatalf("expected idempotent void, got %v / %#v", err, again)
	}
}

func TestService_Void_RejectsClosedVisit(t *testing.T) {
	visits := testVisits{"v-1": true}
	svc := NewService(newTestRepo(), visits)
	ctx := context.Background()

	rep, _ := svc.Create(ctx, "v-1", "insp-1", CreateInput{Kind: KindInfectionControl, Action: ActionClosure})
	visits["v-1"] = false

	if _, err := svc.Void(ctx, "v-1", rep.ID, "sup-1"); !errors.Is(err, ErrVisitClosed) {
		t.Fatalf("expected ErrVisitClosed, got %v", err)
	}
}

func TestService_ListByVisit_Filters(t *testing.T) {
	svc := NewService(newTestRepo(), testVisits{"v-1": true})
	ctx := context.Background()

	a, _ := svc.Create(ctx, "v-1", "insp-1", CreateInput{Kind: KindMedicalWaste, Action: ActionFine})
	_, _ = svc.Create(ctx, "v-1", "insp-1", CreateInput{Kind: KindAdvertising, Action: ActionWarning})
	_, _ = svc.Void(ctx, "v-1", a.ID, "sup-1")

	active, err := svc.Active(ctx, "v-1")
	if err != nil || len(active) != 1 || active[0].Kind != KindAdvertising {
		t.Fatalf("expected only the active report, got %v / %#v", err, active)
	}

	all, _ := svc.ListByVisit(ctx, "v-1", ListFilter{IncludeVoided: true, Kinds: []Kind{KindMedicalWaste}})
	if len(all) != 1 || all[0].ID != a.ID {
		t.Fatalf("expected voided medical_waste report, got %#v", all)
	}

	if _, err := svc.ListByVisit(ctx, "v-1", ListFilter{Kinds: []Kind{"nope"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}
