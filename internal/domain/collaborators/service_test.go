package collaborators

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Grant
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) Update(ctx context.Context, g Grant) error {
	if _, ok := r.byID[g.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, errRepoNotFound
	}
	return g, nil
}

func (r *testRepo) ListByDraft(ctx context.Context, draftID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.DraftID == draftID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) GetActiveGrant(ctx context.Context, draftID, granteeUserID string) (Grant, error) {
	var winner Grant
	has := false
	for _, g := range r.byID {
		if g.DraftID != draftID || g.GranteeUserID != granteeUserID || g.Status != StatusActive {
			continue
		}
		if !has || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			has = true
		}
	}
	if !has {
		return Grant{}, errRepoNotFound
	}
	return winner, nil
}

func (r *testRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.GranteeUserID == granteeUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func TestService_Invite_DefaultScopes_WhenEmpty(t *testing.T) {
	svc := NewService(newTestRepo())

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, err := svc.Invite(context.Background(), InviteInput{
		DraftID:       "draft-1",
		OwnerUserID:   "insp-1",
		GranteeUserID: "insp-2",
	})
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if g.Status != StatusInvited {
		t.Fatalf("expected status invited, got %s", g.Status)
	}
	if g.CreatedAt != now || g.UpdatedAt != now {
		t.Fatalf("expected CreatedAt/UpdatedAt to be now")
	}
	if !HasScope(g, ScopeDraftRead) || !HasScope(g, ScopeDraftEdit) {
		t.Fatalf("expected default scopes draft:read + draft:edit, got %#v", g.Scopes)
	}
	if HasScope(g, ScopeDraftSubmit) {
		t.Fatalf("submit must not be granted by default")
	}
}

func TestService_Invite_RejectsSelfAndUnknownScopes(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Invite(context.Background(), InviteInput{
		DraftID:       "draft-1",
		OwnerUserID:   "insp-1",
		GranteeUserID: "insp-1",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self invite, got %v", err)
	}

	_, err = svc.Invite(context.Background(), InviteInput{
		DraftID:       "draft-1",
		OwnerUserID:   "insp-1",
		GranteeUserID: "insp-2",
		Scopes:        []Scope{ScopeDraftRead, Scope("clinics:delete")},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Invite_Dedup_UpdatesSameGrant(t *testing.T) {
	svc := NewService(newTestRepo())

	now1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now2 := now1.Add(5 * time.Minute)

	svc.now = func() time.Time { return now1 }
	g1, err := svc.Invite(context.Background(), InviteInput{
		DraftID:       "draft-1",
		OwnerUserID:   "insp-1",
		GranteeUserID: "insp-2",
		Scopes:        []Scope{ScopeDraftRead},
	})
	if err != nil {
		t.Fatalf("Invite #1 error: %v", err)
	}

	svc.now = func() time.Time { return now2 }
	g2, err := svc.Invite(context.Background(), InviteInput{
		DraftID:       "draft-1",
		OwnerUserID:   "insp-1",
		GranteeUserID: "insp-2",
		Scopes:        []Scope{ScopeDraftEdit, ScopeDraftSubmit, ScopeDraftEdit},
	})
	if err != nil {
		t.Fatalf("Invite #2 error: %v", err)
	}
	if g2.ID != g1.ID {
		t.Fatalf("expected same grant ID (dedup), got %s vs %s", g1.ID, g2.ID)
	}
	if g2.UpdatedAt != now2 {
		t.Fatalf("expected UpdatedAt to change on reinvite")
	}
	if len(g2.Scopes) != 2 || !HasScope(g2, ScopeDraftSubmit) {
		t.Fatalf("expected deduped scopes, got %#v", g2.Scopes)
	}
}

func TestService_Accept_OnlyGrantee_AndIdempotent(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	g, err := svc.Invite(ctx, InviteInput{DraftID: "draft-1", OwnerUserID: "insp-1", GranteeUserID: "insp-2"})
	if err != nil {
		t.Fatalf("Invite error: %v", err)
	}

	if _, err := svc.Accept(ctx, g.ID, "insp-3"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	accepted, err := svc.Accept(ctx, g.ID, "insp-2")
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if accepted.Status != StatusActive {
		t.Fatalf("expected active, got %s", accepted.Status)
	}

	again, err := svc.Accept(ctx, g.ID, "insp-2")
	if err != nil || again.Status != StatusActive {
		t.Fatalf("expected idempotent accept, got %v / %s", err, again.Status)
	}

	if !svc.Allows(ctx, "draft-1", "insp-2", ScopeDraftEdit) {
		t.Fatalf("expected edit access after accept")
	}
	if svc.Allows(ctx, "draft-1", "insp-2", ScopeDraftSubmit) {
		t.Fatalf("did not expect submit access")
	}
}

func TestService_Accept_LeavesOnlyOneActive(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i, id := range []string{"g1", "g2"} {
		ts := now.Add(-time.Duration(10-i*5) * time.Minute)
		_ = repo.Create(context.Background(), Grant{
			ID:            id,
			DraftID:       "draft-1",
			OwnerUserID:   "insp-1",
			GranteeUserID: "insp-2",
			Scopes:        []Scope{ScopeDraftRead},
			Status:        StatusInvited,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		})
	}

	if _, err := svc.Accept(context.Background(), "g2", "insp-2"); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	active := 0
	for _, g := range repo.byID {
		if g.Status == StatusActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active grant, got %d", active)
	}
	if repo.byID["g1"].Status != StatusRevoked {
		t.Fatalf("expected duplicate to be revoked, got %s", repo.byID["g1"].Status)
	}
}

func TestService_Revoke_OwnerOnly(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	g, _ := svc.Invite(ctx, InviteInput{DraftID: "draft-1", OwnerUserID: "insp-1", GranteeUserID: "insp-2"})
	_, _ = svc.Accept(ctx, g.ID, "insp-2")

	if _, err := svc.Revoke(ctx, g.ID, "insp-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	revoked, err := svc.Revoke(ctx, g.ID, "insp-1")
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked.Status != StatusRevoked || revoked.RevokedAt == nil {
		t.Fatalf("expected revoked with timestamp, got %#v", revoked)
	}
	if svc.Allows(ctx, "draft-1", "insp-2", ScopeDraftRead) {
		t.Fatalf("revoked grant must not allow access")
	}
	if _, err := svc.Accept(ctx, g.ID, "insp-2"); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState accepting revoked grant, got %v", err)
	}
}
