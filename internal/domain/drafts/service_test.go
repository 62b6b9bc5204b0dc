package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/realtime"
)

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Draft
	// beforeMerge simula otra escritura que llega justo antes de la propia
	beforeMerge func()
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Draft{}}
}

func (r *testRepo) Create(ctx context.Context, d Draft) error {
	r.byID[d.ID] = d
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Draft, error) {
	d, ok := r.byID[id]
	if !ok {
		return Draft{}, errRepoNotFound
	}
	return d, nil
}

func (r *testRepo) GetByVisit(ctx context.Context, visitID string) (Draft, error) {
	var out Draft
	found := false
	for _, d := range r.byID {
		if d.VisitID != visitID {
			continue
		}
		if !found || d.Status == StatusOpen || d.CreatedAt.After(out.CreatedAt) {
			out = d
			found = true
		}
	}
	if !found {
		return Draft{}, errRepoNotFound
	}
	return out, nil
}

func (r *testRepo) MergeSections(ctx context.Context, id string, sections map[Section]json.RawMessage, actorID string, at time.Time, expectVersion int64) (Draft, error) {
	if r.beforeMerge != nil {
		r.beforeMerge()
	}
	d, ok := r.byID[id]
	if !ok || d.Status != StatusOpen {
		return Draft{}, errRepoNotFound
	}
	if expectVersion > 0 && d.Version != expectVersion {
		return Draft{}, errRepoNotFound
	}
	merged := make(map[Section]json.RawMessage, len(d.Sections)+len(sections))
	for k, v := range d.Sections {
		merged[k] = v
	}
	for k, v := range sections {
		merged[k] = v
	}
	d.Sections = merged
	d.Version++
	d.UpdatedBy = actorID
	d.UpdatedAt = at
	r.byID[id] = d
	return d, nil
}

func (r *testRepo) SetStatus(ctx context.Context, id string, from, to Status, at time.Time) (Draft, error) {
	d, ok := r.byID[id]
	if !ok || d.Status != from {
		return Draft{}, errRepoNotFound
	}
	d.Status = to
	d.UpdatedAt = at
	r.byID[id] = d
	return d, nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
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

type testGrants map[string]collaborators.Scope

func (g testGrants) Allows(ctx context.Context, draftID, userID string, scope collaborators.Scope) bool {
	have, ok := g[draftID+"/"+userID]
	if !ok {
		return false
	}
	return collaborators.HasScope(collaborators.Grant{Scopes: []collaborators.Scope{have}}, scope)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, draftID string, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func newTestService() (*Service, *testRepo, *recordingPublisher) {
	repo := newTestRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, testVisits{"visit-1": true, "visit-done": false}, testGrants{}).WithPublisher(pub)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo, pub
}

func TestService_Open_ReturnsExistingOpenDraft(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	d1, created, err := svc.Open(ctx, "visit-1", "insp-1")
	if err != nil || !created {
		t.Fatalf("expected new draft, got created=%v err=%v", created, err)
	}
	if d1.Version != 1 || d1.Status != StatusOpen {
		t.Fatalf("unexpected new draft: %#v", d1)
	}

	d2, created, err := svc.Open(ctx, "visit-1", "insp-2")
	if err != nil {
		t.Fatalf("Open #2 error: %v", err)
	}
	if created || d2.ID != d1.ID {
		t.Fatalf("expected the same open draft, got %s vs %s", d2.ID, d1.ID)
	}
}

func TestService_Open_VisitChecks(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Open(ctx, "missing", "insp-1"); !errors.Is(err, ErrNoVisit) {
		t.Fatalf("expected ErrNoVisit, got %v", err)
	}
	if _, _, err := svc.Open(ctx, "visit-done", "insp-1"); !errors.Is(err, ErrVisitClosed) {
		t.Fatalf("expected ErrVisitClosed, got %v", err)
	}
}

func TestService_SaveSection_LastWriteWins(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	if _, err := svc.SaveSection(ctx, d.ID, SectionGeneral, json.RawMessage(`{"clinic_name": "A", "area": "Salmiya"}`), "insp-1"); err != nil {
		t.Fatalf("SaveSection #1 error: %v", err)
	}
	d2, err := svc.SaveSection(ctx, d.ID, SectionGeneral, json.RawMessage(`{"clinic_name":"B"}`), "insp-2")
	if err != nil {
		t.Fatalf("SaveSection #2 error: %v", err)
	}

	if got := string(d2.Sections[SectionGeneral]); got != `{"clinic_name":"B"}` {
		t.Fatalf("expected section replaced by last write, got %s", got)
	}
	if d2.Version != 3 {
		t.Fatalf("expected version 3, got %d", d2.Version)
	}
	if d2.UpdatedBy != "insp-2" {
		t.Fatalf("expected UpdatedBy insp-2, got %s", d2.UpdatedBy)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}
	last := pub.events[1]
	if last.Type != realtime.EventDraftUpdated || last.Version != 3 || last.Sections[0] != "general" {
		t.Fatalf("unexpected event %#v", last)
	}
}

func TestService_SaveSections_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	cases := []struct {
		name    string
		section Section
		data    string
		want    error
	}{
		{"unknown section", Section("billing"), `{}`, ErrInvalidInput},
		{"array body", SectionLab, `[1,2]`, ErrInvalidInput},
		{"invalid json", SectionLab, `{"a":`, ErrInvalidInput},
		{"too large", SectionLab, `{"a":"` + strings.Repeat("x", MaxSectionBytes) + `"}`, ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SaveSection(ctx, d.ID, tc.section, json.RawMessage(tc.data), "insp-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	multi, err := svc.SaveSections(ctx, d.ID, map[Section]json.RawMessage{
		SectionLab:   json.RawMessage(`{"has_lab": true}`),
		SectionStaff: json.RawMessage(`{"dentists": 3}`),
	}, "insp-1")
	if err != nil {
		t.Fatalf("SaveSections error: %v", err)
	}
	if multi.Version != 2 {
		t.Fatalf("expected one version bump for a batch, got %d", multi.Version)
	}
}

func TestService_Locked_RejectsWritesAndDiscard(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	if _, err := svc.Lock(ctx, d.ID); err != nil {
		t.Fatalf("Lock error: %v", err)
	}
	if _, err := svc.Lock(ctx, d.ID); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on second lock, got %v", err)
	}
	if _, err := svc.SaveSection(ctx, d.ID, SectionNotes, json.RawMessage(`{"text":"x"}`), "insp-1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := svc.Discard(ctx, d.ID, auth.Claims{UserID: "insp-1"}); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked discarding submitted draft, got %v", err)
	}

	if err := svc.Reopen(ctx, d.ID); err != nil {
		t.Fatalf("Reopen error: %v", err)
	}
	if _, err := svc.SaveSection(ctx, d.ID, SectionNotes, json.RawMessage(`{"text":"x"}`), "insp-1"); err != nil {
		t.Fatalf("expected writes after reopen, got %v", err)
	}
}

func TestService_Discard_CreatorOrSupervisor(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	if err := svc.Discard(ctx, d.ID, auth.Claims{UserID: "insp-2", Role: auth.RoleInspector}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Discard(ctx, d.ID, auth.Claims{UserID: "sup-1", Role: auth.RoleSupervisor}); err != nil {
		t.Fatalf("supervisor discard error: %v", err)
	}
	if _, ok := repo.byID[d.ID]; ok {
		t.Fatalf("expected draft to be deleted")
	}
}

func TestService_CanAccess(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, testVisits{}, testGrants{
		"d-1/reader": collaborators.ScopeDraftRead,
		"d-1/editor": collaborators.ScopeDraftEdit,
	})
	ctx := context.Background()
	d := Draft{ID: "d-1", CreatedBy: "owner"}

	cases := []struct {
		who   auth.Claims
		scope collaborators.Scope
		want  bool
	}{
		{auth.Claims{UserID: "owner"}, collaborators.ScopeDraftEdit, true},
		{auth.Claims{UserID: "sup", Role: auth.RoleSupervisor}, collaborators.ScopeDraftEdit, true},
		{auth.Claims{UserID: "reader"}, collaborators.ScopeDraftRead, true},
		{auth.Claims{UserID: "reader"}, collaborators.ScopeDraftEdit, false},
		{auth.Claims{UserID: "editor"}, collaborators.ScopeDraftRead, true},
		{auth.Claims{UserID: "stranger"}, collaborators.ScopeDraftRead, false},
		{auth.Claims{}, collaborators.ScopeDraftRead, false},
	}
	for _, tc := range cases {
		if got := svc.CanAccess(ctx, d, tc.who, tc.scope); got != tc.want {
			t.Fatalf("CanAccess(%s, %s) = %v, want %v", tc.who.UserID, tc.scope, got, tc.want)
		}
	}
}

func TestDraft_Missing(t *testing.T) {
	d := Draft{Sections: map[Section]json.RawMessage{
		SectionGeneral:    json.RawMessage(`{"a":1}`),
		SectionSignatures: json.RawMessage(`{}`),
	}}
	missing := d.Missing(SectionGeneral, SectionSignatures)
	if len(missing) != 1 || missing[0] != SectionSignatures {
		t.Fatalf("expected signatures missing, got %v", missing)
	}
}

func TestService_UpdateSection_RetriesOnConcurrentWrite(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	// otra firma entra entre la lectura y la escritura de la primera
	raced := false
	repo.beforeMerge = func() {
		if raced {
			return
		}
		raced = true
		cur := repo.byID[d.ID]
		sections := map[Section]json.RawMessage{SectionSignatures: json.RawMessage(`{"clinic_manager":{"signed_by":"mgr"}}`)}
		cur.Sections = sections
		cur.Version++
		repo.byID[d.ID] = cur
	}

	calls := 0
	got, err := svc.UpdateSection(ctx, d.ID, SectionSignatures, "insp-1", func(current json.RawMessage) (json.RawMessage, error) {
		calls++
		m := map[string]json.RawMessage{}
		if len(current) > 0 {
			if err := json.Unmarshal(current, &m); err != nil {
				return nil, err
			}
		}
		m["inspector"] = json.RawMessage(`{"signed_by":"insp-1"}`)
		return json.Marshal(m)
	})
	if err != nil {
		t.Fatalf("UpdateSection error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected mutate to be reapplied once, got %d calls", calls)
	}

	var stored map[string]json.RawMessage
	if err := json.Unmarshal(got.Sections[SectionSignatures], &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := stored["clinic_manager"]; !ok {
		t.Fatalf("concurrent signature lost: %s", got.Sections[SectionSignatures])
	}
	if _, ok := stored["inspector"]; !ok {
		t.Fatalf("own signature missing: %s", got.Sections[SectionSignatures])
	}
	if got.Version != 3 {
		t.Fatalf("expected version 3, got %d", got.Version)
	}
}

func TestService_UpdateSection_GivesUpWhenAlwaysStale(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	repo.beforeMerge = func() {
		cur := repo.byID[d.ID]
		cur.Version++
		repo.byID[d.ID] = cur
	}
	_, err := svc.UpdateSection(ctx, d.ID, SectionNotes, "insp-1", func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"text":"x"}`), nil
	})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestService_FlushBatch_KeepsValidSections(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	err := svc.FlushBatch(ctx, d.ID, "insp-1", map[string]json.RawMessage{
		"lab":  json.RawMessage(`{"autoclave":true}`),
		"xray": json.RawMessage(`[1,2]`),
	})
	if err != nil {
		t.Fatalf("FlushBatch error: %v", err)
	}
	saved := repo.byID[d.ID]
	if got := string(saved.Sections[SectionLab]); got != `{"autoclave":true}` {
		t.Fatalf("expected lab saved, got %q", got)
	}
	if _, ok := saved.Sections[SectionXRay]; ok {
		t.Fatalf("invalid xray section should not be saved")
	}

	err = svc.FlushBatch(ctx, d.ID, "insp-1", map[string]json.RawMessage{"xray": json.RawMessage(`"x"`)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an all-invalid batch, got %v", err)
	}
}

func TestValidateSection(t *testing.T) {
	cases := []struct {
		section Section
		data    string
		want    error
	}{
		{SectionLab, `{"a":1}`, nil},
		{SectionLab, `[1,2]`, ErrInvalidInput},
		{SectionLab, `5`, ErrInvalidInput},
		{SectionLab, `"x"`, ErrInvalidInput},
		{Section("billing"), `{}`, ErrInvalidInput},
	}
	for _, tc := range cases {
		if err := ValidateSection(tc.section, json.RawMessage(tc.data)); !errors.Is(err, tc.want) {
			t.Fatalf("ValidateSection(%s, %s) = %v, want %v", tc.section, tc.data, err, tc.want)
		}
	}
}

func TestService_Lock_ReturnsLatestState(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	d, _, _ := svc.Open(ctx, "visit-1", "insp-1")

	// escritura que entra después de que el llamador leyó el borrador
	cur := repo.byID[d.ID]
	cur.Sections = map[Section]json.RawMessage{SectionLab: json.RawMessage(`{"late":true}`)}
	cur.Version = 4
	repo.byID[d.ID] = cur

	locked, err := svc.Lock(ctx, d.ID)
	if err != nil {
		t.Fatalf("Lock error: %v", err)
	}
	if locked.Status != StatusSubmitted || locked.Version != 4 || string(locked.Sections[SectionLab]) != `{"late":true}` {
		t.Fatalf("expected locked row with latest sections, got %#v", locked)
	}
}
